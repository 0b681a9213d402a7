package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ResellBot/internal/domain"
	"ResellBot/internal/ports"
	"ResellBot/internal/triage"
)

// Mode selects which halves of the pipeline a run executes.
type Mode string

const (
	ModeFull   Mode = "full"
	ModeScrape Mode = "scrape"
	ModeSend   Mode = "send"
	ModeLogin  Mode = "login"
)

// ParseMode accepts a mode name; empty means full.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeFull:
		return ModeFull, nil
	case ModeScrape, ModeSend, ModeLogin:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source     ports.ListingSource
	Messenger  ports.Messenger
	Listings   ports.ListingRepository
	Messages   ports.MessageLog
	Filter     *triage.Filter
	Dispatcher *Dispatcher
	Notifier   ports.Notifier
	Logger     *slog.Logger

	Search domain.SearchConfig
	// PageDelay separates consecutive page loads; Pause separates scrape and send.
	PageDelay time.Duration
	Pause     time.Duration

	NewSessionID func() string
	Sleep        func(ctx context.Context, d time.Duration) error
}

// Pipeline implements the scrape, triage and dispatch workflow.
type Pipeline struct {
	source     ports.ListingSource
	messenger  ports.Messenger
	dedup      *DedupGate
	filter     *triage.Filter
	sink       *PersistSink
	dispatcher *Dispatcher
	notifier   ports.Notifier
	logger     *slog.Logger

	search    domain.SearchConfig
	pageDelay time.Duration
	pause     time.Duration
	sessionID func() string
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	p := &Pipeline{
		source:     deps.Source,
		messenger:  deps.Messenger,
		dedup:      NewDedupGate(deps.Listings, deps.Messages, logger.With("component", "dedup")),
		filter:     deps.Filter,
		sink:       NewPersistSink(deps.Listings, 0, logger.With("component", "persist")),
		dispatcher: deps.Dispatcher,
		notifier:   deps.Notifier,
		logger:     logger,
		search:     deps.Search,
		pageDelay:  deps.PageDelay,
		pause:      deps.Pause,
		sessionID:  deps.NewSessionID,
		sleep:      deps.Sleep,
	}
	if p.search.Pages <= 0 {
		p.search.Pages = 1
	}
	if p.sessionID == nil {
		p.sessionID = func() string { return time.Now().UTC().Format("20060102T150405.000000000") }
	}
	if p.sleep == nil {
		p.sleep = sleepContext
	}
	return p
}

// Run executes one session in the given mode. The report is filled as far as the
// run got, also when an error is returned.
func (p *Pipeline) Run(ctx context.Context, mode Mode) (RunReport, error) {
	report := newRunReport(p.sessionID(), mode)
	logger := p.logger.With("session_id", report.SessionID, "mode", string(mode))
	logger.Info("run started")

	var err error
	switch mode {
	case ModeLogin:
		err = p.login(ctx)
	case ModeScrape:
		err = p.scrape(ctx, logger, &report)
	case ModeSend:
		err = p.dispatch(ctx, &report)
	case ModeFull:
		if err = p.scrape(ctx, logger, &report); err != nil {
			break
		}
		if p.pause > 0 {
			logger.Info("pausing before dispatch", "pause", p.pause)
			if err = p.sleep(ctx, p.pause); err != nil {
				break
			}
		}
		err = p.dispatch(ctx, &report)
	default:
		err = fmt.Errorf("unknown mode %q", mode)
	}

	if err != nil {
		logger.Error("run finished with error", "error", err)
	} else {
		logger.Info("run finished", report.LogAttrs()...)
	}
	return report, err
}

func (p *Pipeline) login(ctx context.Context) error {
	if p.messenger == nil {
		return fmt.Errorf("messenger is not configured")
	}
	if err := p.messenger.EnsureAuthenticated(ctx); err != nil {
		return authError(err)
	}
	return nil
}

func (p *Pipeline) dispatch(ctx context.Context, report *RunReport) error {
	if p.dispatcher == nil {
		return fmt.Errorf("dispatcher is not configured")
	}
	dr, err := p.dispatcher.Run(ctx)
	report.Dispatch = dr
	return err
}

// scrape fetches, deduplicates, triages and persists one search.
func (p *Pipeline) scrape(ctx context.Context, logger *slog.Logger, report *RunReport) error {
	if p.source == nil || p.filter == nil {
		return fmt.Errorf("source and filter are required for scraping")
	}

	candidates, err := p.fetch(ctx, logger)
	if err != nil {
		return err
	}
	report.Fetched = len(candidates)

	fresh, skipped := p.dedup.Filter(ctx, candidates)
	report.Skipped = skipped
	logger.Info("dedup finished", "fetched", len(candidates), "fresh", len(fresh), "skipped", skipped)
	if len(fresh) == 0 {
		return nil
	}

	items := make([]*domain.Triage, len(fresh))
	for i, c := range fresh {
		items[i] = domain.NewTriage(c)
	}

	report.Fallbacks = p.filter.Screen(ctx, items)
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := p.confirm(ctx, logger, items); err != nil {
		return err
	}

	for _, t := range items {
		p.filter.Categorize(t)
		report.StatusCounts[t.Status]++
		if t.Status == domain.StatusPassed && t.Category == domain.CategoryNormal {
			report.Matches = append(report.Matches, Match{
				ID:    t.Candidate.ID,
				Title: t.Candidate.Title,
				Price: t.Price,
				Link:  t.Candidate.Link,
			})
		}
	}

	report.Persisted, report.PersistFailed = p.sink.Persist(ctx, report.SessionID, items)
	p.notify(ctx, logger, *report)
	return nil
}

// fetch walks the result pages. A failing page ends paging but keeps what was loaded.
func (p *Pipeline) fetch(ctx context.Context, logger *slog.Logger) ([]domain.CandidateListing, error) {
	var all []domain.CandidateListing
	for page := 1; page <= p.search.Pages; page++ {
		if page > 1 && p.pageDelay > 0 {
			if err := p.sleep(ctx, p.pageDelay); err != nil {
				return nil, err
			}
		}
		listings, err := p.source.FetchCandidates(ctx, p.search, page)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("fetch page failed", "page", page, "error", err)
			break
		}
		logger.Debug("fetched page", "page", page, "listings", len(listings))
		if len(listings) == 0 {
			break
		}
		all = append(all, listings...)
	}
	return all, nil
}

// confirm loads descriptions for title matches and runs the description stage.
// A missing or unparsable description counts as empty.
func (p *Pipeline) confirm(ctx context.Context, logger *slog.Logger, items []*domain.Triage) error {
	first := true
	for _, t := range items {
		if t.Status != domain.StatusPassedAITitle {
			continue
		}
		if !first && p.pageDelay > 0 {
			if err := p.sleep(ctx, p.pageDelay); err != nil {
				return err
			}
		}
		first = false

		details, err := p.source.FetchDescription(ctx, t.Candidate)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			level := slog.LevelWarn
			if errors.Is(err, domain.ErrParse) {
				level = slog.LevelDebug
			}
			logger.Log(ctx, level, "description unavailable, continuing without",
				"listing_id", t.Candidate.ID, "error", err)
		}
		t.Description = details.Description
		t.SellerName = details.SellerName

		p.filter.Confirm(ctx, t)
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) notify(ctx context.Context, logger *slog.Logger, report RunReport) {
	if p.notifier == nil || len(report.Matches) == 0 {
		return
	}
	if err := p.notifier.PublishDigest(ctx, FormatDigest(report)); err != nil {
		logger.Warn("publish digest failed", "error", err)
	}
}
