package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/umarov/storefront/internal/config"
	"github.com/umarov/storefront/internal/models"
)

var ErrUnknownDeliveryMethod = fmt.Errorf("unknown delivery method")

// Line is one priced cart position. UnitPrice is the catalog price read by
// the caller at calculation time; the same value is snapshotted into the
// order item.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

type Quote struct {
	Subtotal    decimal.Decimal
	DeliveryFee decimal.Decimal
	Total       decimal.Decimal
}

// FeeTable maps each delivery method to its flat surcharge in currency
// units. The table is configuration, not logic: the calculator refuses
// methods it has no entry for instead of falling through to a zero fee.
type FeeTable map[models.DeliveryMethod]decimal.Decimal

type Calculator struct {
	fees FeeTable
}

func NewCalculator(fees FeeTable) *Calculator {
	return &Calculator{fees: fees}
}

// NewCalculatorFromConfig builds the production fee table
// (pickup 0, courier 100, post 80, premium 150 by default).
func NewCalculatorFromConfig(cfg config.DeliveryConfig) *Calculator {
	return NewCalculator(FeeTable{
		models.DeliveryPickup:  cfg.PickupFee,
		models.DeliveryCourier: cfg.CourierFee,
		models.DeliveryPost:    cfg.PostFee,
		models.DeliveryPremium: cfg.PremiumFee,
	})
}

// Quote computes subtotal, delivery surcharge and the delivery-inclusive
// total. Pure function: no I/O, no side effects.
func (c *Calculator) Quote(lines []Line, method models.DeliveryMethod) (Quote, error) {
	fee, ok := c.fees[method]
	if !ok {
		return Quote{}, fmt.Errorf("%w: %q", ErrUnknownDeliveryMethod, method)
	}

	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	return Quote{
		Subtotal:    subtotal,
		DeliveryFee: fee,
		Total:       subtotal.Add(fee),
	}, nil
}
