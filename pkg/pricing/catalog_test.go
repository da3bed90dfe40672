package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/sunquote/sunquote/pkg/types"
)

func TestRoundPower(t *testing.T) {
	assert.Equal(t, 6.0, RoundPower(6.1))
	assert.Equal(t, 6.5, RoundPower(6.3))
	assert.Equal(t, 6.5, RoundPower(6.74))
	assert.Equal(t, 7.0, RoundPower(6.76))
}

func TestInstallPrice(t *testing.T) {
	t.Run("DefaultTable", func(t *testing.T) {
		amount, ok := InstallPrice(6.0, nil)
		assert.True(t, ok)
		assert.Equal(t, 12990.0, amount)
	})

	t.Run("RoundsBeforeLookup", func(t *testing.T) {
		amount, ok := InstallPrice(6.1, nil)
		assert.True(t, ok)
		assert.Equal(t, 12990.0, amount)
	})

	t.Run("OverrideWinsOverDefault", func(t *testing.T) {
		overrides := []types.PricePoint{{PowerKWC: 6, Amount: 11490}}
		amount, ok := InstallPrice(6.0, overrides)
		assert.True(t, ok)
		assert.Equal(t, 11490.0, amount)
	})

	t.Run("MissingResidentialPrice", func(t *testing.T) {
		amount, ok := InstallPrice(2.0, nil)
		assert.False(t, ok)
		assert.Equal(t, 0.0, amount)
	})

	t.Run("ProfessionalDefault", func(t *testing.T) {
		amount, ok := InstallPrice(12, nil)
		assert.True(t, ok)
		assert.Equal(t, 20490.0, amount)
	})

	t.Run("NearestProfessionalOverride", func(t *testing.T) {
		overrides := []types.PricePoint{
			{PowerKWC: 30.5, Amount: 48000},
			{PowerKWC: 40, Amount: 60000},
		}
		// 37 is 6.5 away from 30.5 and 3 away from 40
		amount, ok := InstallPrice(37, overrides)
		assert.True(t, ok)
		assert.Equal(t, 60000.0, amount)
	})

	t.Run("EquidistantTieGoesToLowerPower", func(t *testing.T) {
		overrides := []types.PricePoint{
			{PowerKWC: 31, Amount: 48000},
			{PowerKWC: 35, Amount: 55000},
		}
		amount, ok := InstallPrice(33, overrides)
		assert.True(t, ok)
		assert.Equal(t, 48000.0, amount)
	})

	t.Run("ResidentialOverridesIgnoredForProTier", func(t *testing.T) {
		overrides := []types.PricePoint{{PowerKWC: 8, Amount: 14000}}
		amount, ok := InstallPrice(11, overrides)
		assert.False(t, ok)
		assert.Equal(t, 0.0, amount)
	})

	t.Run("Idempotent", func(t *testing.T) {
		overrides := []types.PricePoint{{PowerKWC: 12.5, Amount: 21000}}
		first, ok1 := InstallPrice(12.4, overrides)
		second, ok2 := InstallPrice(12.4, overrides)
		assert.Equal(t, ok1, ok2)
		assert.Equal(t, first, second)
	})
}

func TestResaleTariff(t *testing.T) {
	tiers := []types.TariffTier{
		{MaxKWC: 9, PerKWH: 0.1269},
		{MaxKWC: 100, PerKWH: 0.0761},
	}
	assert.Equal(t, 0.1269, ResaleTariff(6, tiers))
	assert.Equal(t, 0.1269, ResaleTariff(9, tiers))
	assert.Equal(t, 0.0761, ResaleTariff(12, tiers))
	assert.Equal(t, 0.0, ResaleTariff(120, tiers))
	assert.Equal(t, 0.0, ResaleTariff(6, nil))
}
