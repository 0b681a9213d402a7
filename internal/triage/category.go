package triage

import (
	"ResellBot/internal/domain"
	"ResellBot/internal/textutil"
)

// Categorizer tags listing content. It never looks at the filter status.
type Categorizer struct {
	defect []string
	pickup []string
}

// NewCategorizer uses the profile's keyword lists.
func NewCategorizer(profile Profile) Categorizer {
	return Categorizer{defect: profile.DefectKeywords, pickup: profile.PickupKeywords}
}

// Categorize applies the fixed priority defekt > abholung > normal.
func (c Categorizer) Categorize(title, description string) domain.Category {
	text := textutil.Normalize(title + " " + description)
	if _, ok := textutil.ContainsAny(text, c.defect); ok {
		return domain.CategoryDefect
	}
	if _, ok := textutil.ContainsAny(text, c.pickup); ok {
		return domain.CategoryPickup
	}
	return domain.CategoryNormal
}
