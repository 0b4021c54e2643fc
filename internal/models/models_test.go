package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeliveryMethodValid(t *testing.T) {
	for _, m := range []DeliveryMethod{DeliveryPickup, DeliveryCourier, DeliveryPost, DeliveryPremium} {
		assert.True(t, m.Valid(), "%s should be valid", m)
	}
	assert.False(t, DeliveryMethod("drone").Valid())
	assert.False(t, DeliveryMethod("").Valid())
}

func TestPaymentMethodValid(t *testing.T) {
	assert.True(t, PaymentCash.Valid())
	assert.True(t, PaymentCard.Valid())
	assert.False(t, PaymentMethod("crypto").Valid())
	assert.False(t, PaymentMethod("").Valid())
}

func TestPaymentMethodRequiresGateway(t *testing.T) {
	assert.False(t, PaymentCash.RequiresGateway())
	assert.True(t, PaymentCard.RequiresGateway())
}
