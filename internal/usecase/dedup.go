package usecase

import (
	"context"
	"log/slog"

	"ResellBot/internal/domain"
	"ResellBot/internal/ports"
)

// DedupGate drops candidates already triaged or contacted in earlier runs.
type DedupGate struct {
	listings ports.ListingRepository
	messages ports.MessageLog
	logger   *slog.Logger
}

// NewDedupGate wires the stores consulted for prior knowledge.
func NewDedupGate(listings ports.ListingRepository, messages ports.MessageLog, logger *slog.Logger) *DedupGate {
	return &DedupGate{listings: listings, messages: messages, logger: logger}
}

// Filter returns unseen candidates in input order plus the number dropped.
// In-batch duplicates collapse to the first occurrence. A failing store lookup
// lets every candidate through; the upsert keeps persistence idempotent anyway.
func (g *DedupGate) Filter(ctx context.Context, candidates []domain.CandidateListing) ([]domain.CandidateListing, int) {
	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ID)
	}

	known := make(map[string]bool)
	if g.listings != nil {
		existing, err := g.listings.ExistingListingIDs(ctx, ids)
		if err != nil {
			g.warn("dedup lookup failed, passing candidates", "source", "listings", "error", err)
		}
		for id := range existing {
			known[id] = true
		}
	}
	if g.messages != nil {
		attempted, err := g.messages.AttemptedListingIDs(ctx, ids)
		if err != nil {
			g.warn("dedup lookup failed, passing candidates", "source", "sent_messages", "error", err)
		}
		for id := range attempted {
			known[id] = true
		}
	}

	fresh := make([]domain.CandidateListing, 0, len(candidates))
	skipped := 0
	for _, c := range candidates {
		if c.ID == "" || known[c.ID] {
			skipped++
			continue
		}
		known[c.ID] = true
		fresh = append(fresh, c)
	}
	return fresh, skipped
}

func (g *DedupGate) warn(msg string, args ...any) {
	if g.logger != nil {
		g.logger.Warn(msg, args...)
	}
}
