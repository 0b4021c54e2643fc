package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/umarov/storefront/internal/database"
	"github.com/umarov/storefront/internal/models"
	"github.com/umarov/storefront/internal/store"
)

// ProductCache is a read-through JSON cache over the products table.
// Stock quantities in cached entries can lag by up to the TTL, so the
// checkout path never reads through it; placements invalidate touched
// products after commit.
type ProductCache struct {
	db     *sql.DB
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewProductCache(db *sql.DB, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *ProductCache {
	return &ProductCache{db: db, rdb: rdb, ttl: ttl, logger: logger}
}

func productKey(id int64) string {
	return fmt.Sprintf("product:%d", id)
}

func (c *ProductCache) Get(ctx context.Context, id int64) (*models.Product, error) {
	if cached, err := c.rdb.Get(ctx, productKey(id)).Result(); err == nil {
		var product models.Product
		if err := json.Unmarshal([]byte(cached), &product); err == nil {
			return &product, nil
		}
	}

	product, err := store.GetProduct(ctx, c.db, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(product); err == nil {
		if err := c.rdb.Set(ctx, productKey(id), data, c.ttl).Err(); err != nil {
			c.logger.Warn("cache product", zap.Int64("product_id", id), zap.Error(err))
		}
	}

	return product, nil
}

func (c *ProductCache) Invalidate(ctx context.Context, productIDs ...int64) {
	keys := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		keys = append(keys, productKey(id))
	}
	if len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("invalidate products", zap.Int64s("product_ids", productIDs), zap.Error(err))
	}
}

// Warmup primes the cache for the given products in parallel. Missing
// products are skipped, other errors abort.
func (c *ProductCache) Warmup(ctx context.Context, productIDs []int64) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for _, id := range productIDs {
		id := id
		g.Go(func() error {
			_, err := c.Get(ctx, id)
			if errors.Is(err, database.ErrProductNotFound) {
				c.logger.Warn("warmup skipped missing product", zap.Int64("product_id", id))
				return nil
			}
			return err
		})
	}

	return g.Wait()
}
