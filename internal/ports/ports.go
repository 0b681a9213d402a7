package ports

import (
	"context"
	"time"

	"ResellBot/internal/domain"
)

// ListingSource pulls candidate listings and their detail pages from the marketplace.
type ListingSource interface {
	FetchCandidates(ctx context.Context, search domain.SearchConfig, page int) ([]domain.CandidateListing, error)
	FetchDescription(ctx context.Context, listing domain.CandidateListing) (domain.ListingDetails, error)
}

// Messenger is the authenticated side of the marketplace used by dispatch.
type Messenger interface {
	EnsureAuthenticated(ctx context.Context) error
	CheckRemoved(ctx context.Context, listing domain.TriageRecord) (bool, error)
	SubmitMessage(ctx context.Context, listing domain.TriageRecord, text string) error
}

// Classifier sends prompts to the AI classification service and returns its raw reply.
// Replies are free text; callers own parsing.
type Classifier interface {
	ClassifyBatch(ctx context.Context, prompt string) (string, error)
	ClassifyYesNo(ctx context.Context, prompt string) (string, error)
}

// ListingRepository persists triage records.
type ListingRepository interface {
	ExistingListingIDs(ctx context.Context, ids []string) (map[string]bool, error)
	SaveTriage(ctx context.Context, record domain.TriageRecord) error
	DispatchCandidates(ctx context.Context) ([]domain.TriageRecord, error)
	MarkMessageSent(ctx context.Context, id string) error
	MarkDeleted(ctx context.Context, id string) error
}

// MessageLog is the append-only record of outreach attempts.
type MessageLog interface {
	AttemptedListingIDs(ctx context.Context, ids []string) (map[string]bool, error)
	ListingIDsByStatus(ctx context.Context, status domain.SendStatus) (map[string]bool, error)
	AppendAttempt(ctx context.Context, record domain.SentMessageRecord) error
}

// TemplateSource reads externally managed message templates.
type TemplateSource interface {
	ActiveTemplates(ctx context.Context) ([]domain.MessageTemplate, error)
}

// StatsReader aggregates the store for the status summary.
type StatsReader interface {
	Stats(ctx context.Context) (domain.Stats, error)
}

// Store is the full persistence surface.
type Store interface {
	ListingRepository
	MessageLog
	TemplateSource
	StatsReader
}

// Notifier streams run summaries to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
