package triage

import (
	"context"
	"log/slog"

	"ResellBot/internal/domain"
	"ResellBot/internal/ports"
	"ResellBot/internal/textutil"
)

// FilterConfig groups the knobs of the filter stages.
type FilterConfig struct {
	Phrase            string
	Profile           Profile
	PriceCeiling      float64
	BatchSize         int
	DescriptionPrefix int
}

// Filter sequences prefilter, price guard and the two classifier stages.
type Filter struct {
	prefilter    *Prefilter
	priceGuard   PriceGuard
	titles       *TitleClassifier
	descriptions *DescriptionClassifier
	categorizer  Categorizer
	logger       *slog.Logger
}

// NewFilter builds all stages for one search.
func NewFilter(cfg FilterConfig, classifier ports.Classifier, logger *slog.Logger) *Filter {
	pre := NewPrefilter(cfg.Phrase, cfg.Profile)
	return &Filter{
		prefilter:    pre,
		priceGuard:   NewPriceGuard(cfg.PriceCeiling),
		titles:       NewTitleClassifier(classifier, pre, cfg.Profile, cfg.BatchSize, logger),
		descriptions: NewDescriptionClassifier(classifier, cfg.Profile, cfg.DescriptionPrefix, logger),
		categorizer:  NewCategorizer(cfg.Profile),
		logger:       logger,
	}
}

// Screen runs the title-level stages over the whole batch and returns the number of
// classifier batches that fell back to rules. Input order is kept for index mapping.
func (f *Filter) Screen(ctx context.Context, items []*domain.Triage) int {
	for _, t := range items {
		t.Price = textutil.ParsePrice(t.Candidate.RawPrice)
		f.prefilter.Apply(t)
		f.logOutcome("prefilter", t)
		if t.Status == domain.StatusPassedPrefilter {
			f.priceGuard.Apply(t)
			if t.Status == domain.StatusRejectedPrice {
				f.logOutcome("price_guard", t)
			}
		}
	}

	before := make([]domain.FilterStatus, len(items))
	for i, t := range items {
		before[i] = t.Status
	}
	fallbacks := f.titles.Apply(ctx, items)
	for i, t := range items {
		if t.Status != before[i] {
			f.logOutcome("title_classifier", t)
		}
	}
	return fallbacks
}

// Confirm runs the description stage on one listing whose description is already attached.
func (f *Filter) Confirm(ctx context.Context, t *domain.Triage) {
	if t.Status != domain.StatusPassedAITitle {
		return
	}
	f.descriptions.Apply(ctx, t)
	f.logOutcome("description_classifier", t)
}

// Categorize tags every listing regardless of its status.
func (f *Filter) Categorize(t *domain.Triage) {
	t.Category = f.categorizer.Categorize(t.Candidate.Title, t.Description)
}

func (f *Filter) logOutcome(stage string, t *domain.Triage) {
	if f.logger == nil {
		return
	}
	f.logger.Debug("triage",
		"stage", stage,
		"listing_id", t.Candidate.ID,
		"outcome", string(t.Status),
		"reason", t.Reason,
	)
}
