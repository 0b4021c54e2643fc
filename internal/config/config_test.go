package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.True(t, cfg.Delivery.PickupFee.IsZero())
	assert.Equal(t, "100", cfg.Delivery.CourierFee.String())
	assert.Equal(t, "80", cfg.Delivery.PostFee.String())
	assert.Equal(t, "150", cfg.Delivery.PremiumFee.String())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9999")
	t.Setenv("DELIVERY_FEE_COURIER", "120.50")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, "120.5", cfg.Delivery.CourierFee.String())
}

func TestLoadRejectsNegativeFee(t *testing.T) {
	t.Setenv("DELIVERY_FEE_POST", "-1")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DELIVERY_FEE_POST")
}
