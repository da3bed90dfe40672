package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/sunquote/sunquote/pkg/types"
)

func TestSubsidy(t *testing.T) {
	bands := []types.SubsidyBand{
		{MinKWC: 0, MaxKWC: 3, PerKWC: 220},
		{MinKWC: 3, MaxKWC: 9, PerKWC: 160},
	}

	t.Run("FirstMatchingBandWins", func(t *testing.T) {
		// 3 kWc is inside both bands, the first one applies
		assert.Equal(t, 660.0, Subsidy(3, bands))
	})

	t.Run("RoundsToNearestUnit", func(t *testing.T) {
		b := []types.SubsidyBand{{MinKWC: 0, MaxKWC: 9, PerKWC: 160.1}}
		assert.Equal(t, 1041.0, Subsidy(6.5, b)) // 1040.65 rounds up
	})

	t.Run("NoMatch", func(t *testing.T) {
		assert.Equal(t, 0.0, Subsidy(12, bands))
	})

	t.Run("NoBands", func(t *testing.T) {
		assert.Equal(t, 0.0, Subsidy(6, nil))
	})
}
