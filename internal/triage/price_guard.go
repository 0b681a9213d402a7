package triage

import (
	"fmt"

	"ResellBot/internal/domain"
)

// PriceGuard rejects prefiltered listings above the configured ceiling.
// Some result pages include promoted listings outside the requested price range.
type PriceGuard struct {
	ceiling float64
}

// NewPriceGuard builds a guard; a ceiling <= 0 disables it.
func NewPriceGuard(ceiling float64) PriceGuard {
	return PriceGuard{ceiling: ceiling}
}

// Apply checks the already-normalized price of a passed_prefilter listing.
func (g PriceGuard) Apply(t *domain.Triage) {
	if t.Status != domain.StatusPassedPrefilter || g.ceiling <= 0 {
		return
	}
	if t.Price > g.ceiling {
		t.Advance(domain.StatusRejectedPrice, fmt.Sprintf("price %.2f exceeds ceiling %.2f", t.Price, g.ceiling))
	}
}
