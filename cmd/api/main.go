package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/umarov/storefront/internal/api"
	"github.com/umarov/storefront/internal/cache"
	"github.com/umarov/storefront/internal/checkout"
	"github.com/umarov/storefront/internal/config"
	"github.com/umarov/storefront/internal/database"
	"github.com/umarov/storefront/internal/events"
	"github.com/umarov/storefront/internal/metrics"
	"github.com/umarov/storefront/internal/payment"
	"github.com/umarov/storefront/internal/pricing"
	"github.com/umarov/storefront/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		logger.Fatal("connect to database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("connected to database")

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
		DB:   cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Warn("redis unavailable, product reads fall through to the database", zap.Error(err))
	}

	gateway := payment.NewClient(cfg.Payment.GatewayURL, cfg.Payment.Timeout)
	calculator := pricing.NewCalculatorFromConfig(cfg.Delivery)
	productCache := cache.NewProductCache(db, redisClient, cfg.Redis.CacheTTL, logger)

	warmupCtx, cancelWarmup := context.WithTimeout(context.Background(), 30*time.Second)
	if ids, err := store.ProductIDs(warmupCtx, db, 100); err != nil {
		logger.Warn("list products for cache warmup", zap.Error(err))
	} else if err := productCache.Warmup(warmupCtx, ids); err != nil {
		logger.Warn("product cache warmup", zap.Error(err))
	}
	cancelWarmup()

	checkoutSvc := checkout.NewService(db, gateway, calculator, logger)
	checkoutSvc.SetInvalidator(productCache)

	publisher, err := events.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
	if err != nil {
		logger.Warn("rabbitmq unavailable, order events disabled", zap.Error(err))
	} else {
		defer publisher.Close()
		checkoutSvc.SetPublisher(publisher)
	}

	handler := api.NewHandler(db, checkoutSvc, productCache, logger)
	serverMetrics := metrics.NewServerMetrics("api")

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler.RegisterRoutes(router, serverMetrics)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	logger.Info("server starting", zap.String("port", cfg.Server.Port))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
