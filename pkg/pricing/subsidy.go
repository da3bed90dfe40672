package pricing

import (
	"math"

	"github.com/sunquote/sunquote/pkg/types"
)

// Subsidy resolves the up-front subsidy for the installed power. The first
// band whose range contains the power wins; the result is the band's per-kWc
// amount multiplied by the power, rounded to the nearest currency unit.
// Returns 0 when no band matches or no bands are configured.
func Subsidy(powerKWC float64, bands []types.SubsidyBand) float64 {
	for _, b := range bands {
		if powerKWC >= b.MinKWC && powerKWC <= b.MaxKWC {
			return math.Round(b.PerKWC * powerKWC)
		}
	}
	return 0
}
