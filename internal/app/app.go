package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"ResellBot/internal/config"
	"ResellBot/internal/domain"
	"ResellBot/internal/infrastructure/llm"
	"ResellBot/internal/infrastructure/marketplace"
	"ResellBot/internal/infrastructure/runlock"
	"ResellBot/internal/infrastructure/scheduler"
	"ResellBot/internal/infrastructure/storage"
	"ResellBot/internal/infrastructure/telegram"
	"ResellBot/internal/logging"
	"ResellBot/internal/ports"
	"ResellBot/internal/triage"
	"ResellBot/internal/usecase"
)

// Options are per-invocation overrides on top of the loaded config.
type Options struct {
	RetryFailed bool
}

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	db       *sql.DB
	store    *storage.SQLRepository
	pipeline *usecase.Pipeline
}

// New opens the store and builds the pipeline with all adapters.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger, opts Options) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	dialect, err := storage.ParseDialect(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}
	db, err := storage.Open(ctx, dialect, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	store := storage.NewSQLRepository(db, dialect)

	connector, err := marketplace.NewConnector(cfg.Marketplace, nil, baseLogger.With("component", "marketplace"))
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	var classifier ports.Classifier
	if cfg.Classifier.APIKey != "" {
		classifier = llm.NewChatClassifier(cfg.Classifier)
	} else {
		baseLogger.Warn("classifier api key not set, title stage uses rule fallback")
	}

	var notifier ports.Notifier
	if tg := telegram.NewNotifier(cfg.Notifications.Telegram, nil); tg.Enabled() {
		notifier = tg
	}

	filter := triage.NewFilter(triage.FilterConfig{
		Phrase:            cfg.Search.Phrase,
		Profile:           resolveProfile(cfg),
		PriceCeiling:      float64(cfg.Search.MaxPrice),
		BatchSize:         cfg.Classifier.BatchSize,
		DescriptionPrefix: cfg.Classifier.DescriptionPrefix,
	}, classifier, baseLogger.With("component", "triage"))

	dispatcher := usecase.NewDispatcher(usecase.DispatchConfig{
		DefaultMessage: cfg.Dispatch.DefaultMessage,
		MinDelay:       cfg.Dispatch.MinDelay(),
		MaxDelay:       cfg.Dispatch.MaxDelay(),
		RetryFailed:    cfg.Dispatch.RetryFailed || opts.RetryFailed,
	}, usecase.DispatchDeps{
		Listings:  store,
		Messages:  store,
		Templates: store,
		Messenger: connector,
		Logger:    baseLogger.With("component", "dispatch"),
	})

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:     connector,
		Messenger:  connector,
		Listings:   store,
		Messages:   store,
		Filter:     filter,
		Dispatcher: dispatcher,
		Notifier:   notifier,
		Logger:     baseLogger.With("component", "pipeline"),
		Search: domain.SearchConfig{
			Phrase:   cfg.Search.Phrase,
			MinPrice: cfg.Search.MinPrice,
			MaxPrice: cfg.Search.MaxPrice,
			Pages:    cfg.Search.Pages,
		},
		PageDelay:    cfg.Marketplace.PageDelay(),
		Pause:        cfg.Dispatch.Pause(),
		NewSessionID: uuid.NewString,
	})

	return &Application{cfg: cfg, logger: baseLogger, db: db, store: store, pipeline: pipeline}, nil
}

// resolveProfile puts configured profiles ahead of the built-in ones.
func resolveProfile(cfg config.Config) triage.Profile {
	profiles := make([]triage.Profile, 0, len(cfg.Profiles)+1)
	for _, p := range cfg.Profiles {
		profiles = append(profiles, triage.Profile(p))
	}
	profiles = append(profiles, triage.PlayStation5Profile())
	return triage.ResolveProfile(cfg.Search.Phrase, cfg.Search.Synonyms, cfg.Search.ExcludeKeywords, profiles)
}

// Run performs a single pipeline execution under the run lock.
func (a *Application) Run(ctx context.Context, mode usecase.Mode) (usecase.RunReport, error) {
	lock, err := runlock.Acquire(a.cfg.Lock.Path)
	if err != nil {
		return usecase.RunReport{Mode: mode}, err
	}
	defer a.release(lock)

	return a.pipeline.Run(ctx, mode)
}

// Watch runs the pipeline on the configured interval until ctx is cancelled.
// The run lock is held for the whole watch.
func (a *Application) Watch(ctx context.Context, mode usecase.Mode) error {
	lock, err := runlock.Acquire(a.cfg.Lock.Path)
	if err != nil {
		return err
	}
	defer a.release(lock)

	driver := scheduler.NewIntervalScheduler(a.cfg.Scheduler.Interval(), a.cfg.Scheduler.Location())
	sched := usecase.NewScheduler(driver, a.pipeline, mode, a.logger.With("component", "scheduler"))
	if err := sched.Start(ctx); err != nil {
		return err
	}
	a.logger.Info("watching", "interval", a.cfg.Scheduler.Interval(), "mode", string(mode))

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := sched.Stop(stopCtx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stop scheduler: %w", err)
	}
	return nil
}

// Stats summarizes the store.
func (a *Application) Stats(ctx context.Context) (domain.Stats, error) {
	return a.store.Stats(ctx)
}

// AddTemplate stores a new outreach text.
func (a *Application) AddTemplate(ctx context.Context, content string, active bool) error {
	return a.store.AddTemplate(ctx, content, active)
}

// Templates lists the active outreach texts in rotation order.
func (a *Application) Templates(ctx context.Context) ([]domain.MessageTemplate, error) {
	return a.store.ActiveTemplates(ctx)
}

// Attempts returns the outreach log of one listing, oldest first.
func (a *Application) Attempts(ctx context.Context, listingID string) ([]domain.SentMessageRecord, error) {
	return a.store.Attempts(ctx, listingID)
}

// Close releases the database handle.
func (a *Application) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

func (a *Application) release(lock *runlock.Lock) {
	if err := lock.Release(); err != nil {
		a.logger.Warn("release run lock failed", "path", lock.Path(), "error", err)
	}
}
