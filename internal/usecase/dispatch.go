package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"ResellBot/internal/domain"
	"ResellBot/internal/ports"
)

const fallbackMessage = "Hallo, ist Versand und PayPal möglich?"

// DispatchConfig controls template fallback, pacing and the retry policy.
type DispatchConfig struct {
	DefaultMessage string
	MinDelay       time.Duration
	MaxDelay       time.Duration
	// RetryFailed re-queues listings whose only prior attempts failed.
	RetryFailed bool
}

// DispatchReport counts the outcome of one dispatch run.
type DispatchReport struct {
	Eligible int
	Sent     int
	Failed   int
	Skipped  int
	Removed  int
}

// DispatchDeps wires the stores and the marketplace messenger.
type DispatchDeps struct {
	Listings  ports.ListingRepository
	Messages  ports.MessageLog
	Templates ports.TemplateSource
	Messenger ports.Messenger
	Logger    *slog.Logger
	// Sleep waits between external actions; defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

// Dispatcher sends one message per eligible listing, never twice.
type Dispatcher struct {
	cfg       DispatchConfig
	listings  ports.ListingRepository
	messages  ports.MessageLog
	templates ports.TemplateSource
	messenger ports.Messenger
	logger    *slog.Logger
	sleep     func(ctx context.Context, d time.Duration) error
	now       func() time.Time
}

// NewDispatcher constructs the dispatch engine.
func NewDispatcher(cfg DispatchConfig, deps DispatchDeps) *Dispatcher {
	if strings.TrimSpace(cfg.DefaultMessage) == "" {
		cfg.DefaultMessage = fallbackMessage
	}
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = cfg.MinDelay
	}
	d := &Dispatcher{
		cfg:       cfg,
		listings:  deps.Listings,
		messages:  deps.Messages,
		templates: deps.Templates,
		messenger: deps.Messenger,
		logger:    deps.Logger,
		sleep:     deps.Sleep,
		now:       deps.Now,
	}
	if d.sleep == nil {
		d.sleep = sleepContext
	}
	if d.now == nil {
		d.now = time.Now
	}
	return d
}

// Run loads eligible listings and contacts each in sequence. Only an
// authentication failure aborts the run; it is returned wrapped in ErrAuthentication.
func (d *Dispatcher) Run(ctx context.Context) (DispatchReport, error) {
	var report DispatchReport
	if d.listings == nil || d.messages == nil || d.messenger == nil {
		return report, fmt.Errorf("dispatcher is not fully configured")
	}

	queue, skipped, err := d.queue(ctx)
	report.Skipped = skipped
	if err != nil {
		return report, err
	}
	report.Eligible = len(queue)
	if len(queue) == 0 {
		d.logInfo("nothing to dispatch", "skipped", skipped)
		return report, nil
	}

	if err := d.messenger.EnsureAuthenticated(ctx); err != nil {
		report.Failed = len(queue)
		d.logError("authentication failed, aborting dispatch", "remaining", len(queue), "error", err)
		return report, authError(err)
	}

	texts := d.rotation(ctx)
	for i, rec := range queue {
		if ctx.Err() != nil {
			d.logWarn("dispatch interrupted", "remaining", len(queue)-i)
			return report, ctx.Err()
		}
		if i > 0 {
			if err := d.pace(ctx); err != nil {
				return report, err
			}
		}

		removed, err := d.messenger.CheckRemoved(ctx, rec)
		if err != nil {
			if errors.Is(err, domain.ErrAuthentication) {
				report.Failed += len(queue) - i
				d.logError("authentication lost, aborting dispatch", "listing_id", rec.ID, "remaining", len(queue)-i)
				return report, authError(err)
			}
			report.Failed++
			d.recordFailure(ctx, rec, fmt.Sprintf("check removed: %v", err))
			continue
		}
		if removed {
			report.Removed++
			if err := d.listings.MarkDeleted(ctx, rec.ID); err != nil {
				d.logError("mark deleted failed", "listing_id", rec.ID, "error", err)
			}
			d.event(rec.ID, "removed", "listing removed by seller")
			continue
		}

		text := texts(rec)
		if err := d.pace(ctx); err != nil {
			return report, err
		}
		if err := d.messenger.SubmitMessage(ctx, rec, text); err != nil {
			report.Failed++
			d.recordFailure(ctx, rec, fmt.Sprintf("submit: %v", err))
			if errors.Is(err, domain.ErrAuthentication) {
				rest := len(queue) - i - 1
				report.Failed += rest
				d.logError("authentication lost, aborting dispatch", "listing_id", rec.ID, "remaining", rest)
				return report, authError(err)
			}
			continue
		}

		report.Sent++
		d.recordSuccess(ctx, rec, text)
	}

	return report, nil
}

// queue applies the send-once rule. A failing sent-lookup aborts dispatch since
// without it the guarantee cannot hold.
func (d *Dispatcher) queue(ctx context.Context) ([]domain.TriageRecord, int, error) {
	candidates, err := d.listings.DispatchCandidates(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("load dispatch candidates: %w", err)
	}
	sent, err := d.messages.ListingIDsByStatus(ctx, domain.SendStatusSent)
	if err != nil {
		return nil, 0, fmt.Errorf("load sent listings: %w", err)
	}
	failed := map[string]bool{}
	if !d.cfg.RetryFailed {
		failed, err = d.messages.ListingIDsByStatus(ctx, domain.SendStatusFailed)
		if err != nil {
			return nil, 0, fmt.Errorf("load failed listings: %w", err)
		}
	}

	queue := make([]domain.TriageRecord, 0, len(candidates))
	skipped := 0
	for _, rec := range candidates {
		switch {
		case sent[rec.ID] || rec.MessageSent:
			d.event(rec.ID, "skipped", "already sent")
		case rec.Category != domain.CategoryNormal:
			d.event(rec.ID, "skipped", "category "+string(rec.Category))
		case rec.FilterStatus != domain.StatusPassed || rec.Deleted:
			d.event(rec.ID, "skipped", "not eligible")
		case failed[rec.ID]:
			d.event(rec.ID, "skipped", "previous attempt failed, not re-queued")
		default:
			queue = append(queue, rec)
			continue
		}
		skipped++
	}
	return queue, skipped, nil
}

// rotation returns the text picker for this run: active templates round-robin,
// else the listing's generated message, else the default message.
func (d *Dispatcher) rotation(ctx context.Context) func(domain.TriageRecord) string {
	var active []string
	if d.templates != nil {
		templates, err := d.templates.ActiveTemplates(ctx)
		if err != nil {
			d.logWarn("load templates failed, using fallback text", "error", err)
		}
		for _, t := range templates {
			if t.IsActive && strings.TrimSpace(t.Content) != "" {
				active = append(active, t.Content)
			}
		}
	}

	next := 0
	return func(rec domain.TriageRecord) string {
		if len(active) > 0 {
			text := active[next%len(active)]
			next++
			return text
		}
		if generated := strings.TrimSpace(rec.GeneratedMessage()); generated != "" {
			return generated
		}
		return d.cfg.DefaultMessage
	}
}

func (d *Dispatcher) recordSuccess(ctx context.Context, rec domain.TriageRecord, text string) {
	if err := d.messages.AppendAttempt(ctx, domain.SentMessageRecord{
		ListingID: rec.ID,
		Status:    domain.SendStatusSent,
		SentAt:    d.now().UTC(),
		Log:       text,
	}); err != nil {
		d.logError("record sent attempt failed", "listing_id", rec.ID, "error", err)
	}
	if err := d.listings.MarkMessageSent(ctx, rec.ID); err != nil {
		d.logError("mark message sent failed", "listing_id", rec.ID, "error", err)
	}
	d.event(rec.ID, "sent", "")
}

func (d *Dispatcher) recordFailure(ctx context.Context, rec domain.TriageRecord, reason string) {
	if err := d.messages.AppendAttempt(ctx, domain.SentMessageRecord{
		ListingID: rec.ID,
		Status:    domain.SendStatusFailed,
		SentAt:    d.now().UTC(),
		Log:       reason,
	}); err != nil {
		d.logError("record failed attempt failed", "listing_id", rec.ID, "error", err)
	}
	d.event(rec.ID, "failed", reason)
}

func (d *Dispatcher) pace(ctx context.Context) error {
	delay := d.cfg.MinDelay
	if spread := d.cfg.MaxDelay - d.cfg.MinDelay; spread > 0 {
		delay += rand.N(spread + 1)
	}
	return d.sleep(ctx, delay)
}

func (d *Dispatcher) event(listingID, outcome, reason string) {
	if d.logger != nil {
		d.logger.Info("dispatch", "stage", "dispatch", "listing_id", listingID, "outcome", outcome, "reason", reason)
	}
}

func (d *Dispatcher) logInfo(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Info(msg, args...)
	}
}

func (d *Dispatcher) logWarn(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Warn(msg, args...)
	}
}

func (d *Dispatcher) logError(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Error(msg, args...)
	}
}

func authError(err error) error {
	if errors.Is(err, domain.ErrAuthentication) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrAuthentication, err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
