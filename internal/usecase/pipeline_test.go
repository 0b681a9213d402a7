package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"ResellBot/internal/domain"
	"ResellBot/internal/triage"
)

type pipelineFixture struct {
	store     *memStore
	source    *fakeSource
	messenger *fakeMessenger
	notifier  *fakeNotifier
	sleep     *recordingSleep
	pipeline  *Pipeline
}

func consoleListings() map[int][]domain.CandidateListing {
	return map[int][]domain.CandidateListing{
		1: {
			{ID: "55", Title: "PS5 Disc Edition", RawPrice: "350 €", Link: "https://example.test/s-anzeige/ps5/55-1-1"},
			{ID: "56", Title: "PS4 Pro 1TB", RawPrice: "180 €"},
			{ID: "57", Title: "PS5 Slim mit zwei Controllern", RawPrice: "450 €"},
			{ID: "58", Title: "PS5 Digital defekt", RawPrice: "120 € VB", Snippet: "Konsole startet nicht"},
		},
		2: {
			{ID: "55", Title: "PS5 Disc Edition", RawPrice: "350 €"},
		},
	}
}

func newPipelineFixture(classifier *fakeClassifier) *pipelineFixture {
	f := &pipelineFixture{
		store: newMemStore(),
		source: &fakeSource{
			pages: consoleListings(),
			descriptions: map[string]domain.ListingDetails{
				"55": {Description: "Top Zustand, Versand möglich", SellerName: "Jan"},
			},
			descErr: map[string]error{
				"58": fmt.Errorf("%w: no description block", domain.ErrParse),
			},
		},
		messenger: &fakeMessenger{},
		notifier:  &fakeNotifier{},
		sleep:     &recordingSleep{},
	}

	filter := triage.NewFilter(triage.FilterConfig{
		Phrase:       "PlayStation 5",
		Profile:      triage.ResolveProfile("PlayStation 5", nil, nil, []triage.Profile{triage.PlayStation5Profile()}),
		PriceCeiling: 400,
		BatchSize:    40,
	}, classifier, nil)

	dispatcher := NewDispatcher(DispatchConfig{}, DispatchDeps{
		Listings:  f.store,
		Messages:  f.store,
		Templates: f.store,
		Messenger: f.messenger,
		Sleep:     f.sleep.Sleep,
	})

	runs := 0
	f.pipeline = NewPipeline(PipelineDeps{
		Source:     f.source,
		Messenger:  f.messenger,
		Listings:   f.store,
		Messages:   f.store,
		Filter:     filter,
		Dispatcher: dispatcher,
		Notifier:   f.notifier,
		Search:     domain.SearchConfig{Phrase: "PlayStation 5", MinPrice: 100, MaxPrice: 400, Pages: 3},
		PageDelay:  time.Second,
		Pause:      5 * time.Second,
		NewSessionID: func() string {
			runs++
			return fmt.Sprintf("session-%d", runs)
		},
		Sleep: f.sleep.Sleep,
	})
	return f
}

func TestPipelineFullRunTriagesPersistsAndSendsOnce(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(&fakeClassifier{batchReply: "Passend: [1, 2]", yesNoReply: "JA"})

	report, err := f.pipeline.Run(context.Background(), ModeFull)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if report.Fetched != 5 || report.Skipped != 1 {
		t.Fatalf("unexpected fetch counts %+v", report)
	}
	if report.StatusCounts[domain.StatusPassed] != 2 ||
		report.StatusCounts[domain.StatusRejectedNameMismatch] != 1 ||
		report.StatusCounts[domain.StatusRejectedPrice] != 1 {
		t.Fatalf("unexpected status counts %v", report.StatusCounts)
	}
	if report.Persisted != 4 || report.PersistFailed != 0 {
		t.Fatalf("unexpected persist counts %+v", report)
	}
	if len(report.Matches) != 1 || report.Matches[0].ID != "55" {
		t.Fatalf("expected only 55 as match, got %+v", report.Matches)
	}
	if report.Dispatch.Sent != 1 {
		t.Fatalf("expected one send, got %+v", report.Dispatch)
	}

	defect, ok := f.store.record("58")
	if !ok || defect.Category != domain.CategoryDefect || defect.FilterStatus != domain.StatusPassed {
		t.Fatalf("expected 58 passed but defekt, got %+v", defect)
	}
	good, _ := f.store.record("55")
	if good.SessionID != "session-1" || !good.MessageSent {
		t.Fatalf("unexpected record for 55 %+v", good)
	}
	if !strings.Contains(string(good.Payload), "Top Zustand") {
		t.Fatalf("expected description in payload, got %s", good.Payload)
	}
	if len(f.notifier.digests) != 1 || !strings.Contains(f.notifier.digests[0], "PS5 Disc Edition") {
		t.Fatalf("unexpected digests %v", f.notifier.digests)
	}

	second, err := f.pipeline.Run(context.Background(), ModeFull)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Skipped != second.Fetched || second.Dispatch.Sent != 0 {
		t.Fatalf("expected everything skipped on rerun, got %+v", second)
	}
	if len(f.messenger.submitted) != 1 {
		t.Fatalf("listing messaged more than once: %v", f.messenger.submitted)
	}
	if len(f.notifier.digests) != 1 {
		t.Fatal("expected no digest without new matches")
	}
}

func TestPipelineClassifierOutageFallsBackToRules(t *testing.T) {
	t.Parallel()

	outage := fmt.Errorf("%w: status 503", domain.ErrClassification)
	f := newPipelineFixture(&fakeClassifier{batchErr: outage, yesNoErr: outage})

	report, err := f.pipeline.Run(context.Background(), ModeScrape)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Fallbacks != 1 {
		t.Fatalf("expected one fallback batch, got %d", report.Fallbacks)
	}
	// 58 names the console, so its "defekt" hit is kept by the fallback and left to the categorizer
	if rec, _ := f.store.record("55"); rec.FilterStatus != domain.StatusPassed {
		t.Fatalf("expected 55 passed, got %+v", rec)
	}
	if rec, _ := f.store.record("58"); rec.FilterStatus != domain.StatusPassed || rec.Category != domain.CategoryDefect {
		t.Fatalf("expected 58 passed and tagged defekt, got %+v", rec)
	}
	if len(report.Matches) != 1 || report.Matches[0].ID != "55" {
		t.Fatalf("defekt listing must not be a match, got %+v", report.Matches)
	}
	if report.Dispatch.Sent != 0 || len(f.messenger.submitted) != 0 {
		t.Fatal("scrape mode must not dispatch")
	}
}

func TestPipelineCountsPersistFailures(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(&fakeClassifier{batchReply: "[1]", yesNoReply: "JA"})
	f.store.saveErr["56"] = fmt.Errorf("%w: disk full", domain.ErrPersistence)

	report, err := f.pipeline.Run(context.Background(), ModeScrape)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Persisted != 3 || report.PersistFailed != 1 {
		t.Fatalf("unexpected persist counts %+v", report)
	}
	if _, ok := f.store.record("56"); ok {
		t.Fatal("56 should not be stored")
	}
}

func TestPipelineStopsPagingOnEmptyOrFailingPage(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(&fakeClassifier{batchReply: "[]"})
	f.source.pages = map[int][]domain.CandidateListing{1: consoleListings()[1]}
	f.source.pageErr = map[int]error{2: fmt.Errorf("%w: status 500", domain.ErrConnector)}

	report, err := f.pipeline.Run(context.Background(), ModeScrape)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Fetched != 4 {
		t.Fatalf("expected page 1 kept, got %d", report.Fetched)
	}
	if len(f.source.requestedPages) != 2 {
		t.Fatalf("expected paging to stop after page 2, got %v", f.source.requestedPages)
	}
	if report.Passed() != 0 {
		t.Fatalf("empty selection must reject all, got %d passed", report.Passed())
	}
}

func TestPipelineCancelledScrapeDoesNotPersist(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(&fakeClassifier{batchReply: "[1, 2]", yesNoReply: "JA"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.pipeline.Run(ctx, ModeScrape)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if stats, _ := f.store.Stats(context.Background()); stats.Listings != 0 {
		t.Fatalf("expected nothing persisted, got %d", stats.Listings)
	}
}

func TestPipelineLoginMode(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(&fakeClassifier{})
	f.messenger.authErr = errors.New("no credentials")

	_, err := f.pipeline.Run(context.Background(), ModeLogin)
	if !errors.Is(err, domain.ErrAuthentication) {
		t.Fatalf("expected authentication error, got %v", err)
	}
	if f.messenger.authCalls != 1 {
		t.Fatalf("expected one login attempt, got %d", f.messenger.authCalls)
	}
}

func TestDedupGate(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	store.seed(domain.TriageRecord{ID: "1"})
	_ = store.AppendAttempt(context.Background(), domain.SentMessageRecord{ListingID: "2", Status: domain.SendStatusFailed})
	gate := NewDedupGate(store, store, nil)

	candidates := []domain.CandidateListing{{ID: "1"}, {ID: "2"}, {ID: "3"}, {ID: "3"}, {ID: ""}, {ID: "4"}}
	fresh, skipped := gate.Filter(context.Background(), candidates)
	if skipped != 4 || len(fresh) != 2 || fresh[0].ID != "3" || fresh[1].ID != "4" {
		t.Fatalf("unexpected dedup result %v skipped=%d", fresh, skipped)
	}

	store.lookupErr = errors.New("connection refused")
	fresh, skipped = gate.Filter(context.Background(), candidates)
	if skipped != 2 || len(fresh) != 4 {
		t.Fatalf("expected fail-open dedup, got %v skipped=%d", fresh, skipped)
	}
}

func TestFormatDigest(t *testing.T) {
	t.Parallel()

	report := newRunReport("s", ModeScrape)
	report.Fetched = 10
	report.Skipped = 3
	report.StatusCounts[domain.StatusRejectedKeyword] = 4
	report.StatusCounts[domain.StatusPassed] = 1
	report.Matches = []Match{{ID: "55", Title: "PS5 Disc", Price: 350, Link: "https://example.test/55"}}

	got := FormatDigest(report)
	want := "ResellBot: 1 neue Treffer (10 geladen, 3 bekannt, 4 abgelehnt)\n\nPS5 Disc\n350.00 €\nhttps://example.test/55"
	if got != want {
		t.Fatalf("unexpected digest:\n%s", got)
	}
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Mode{"": ModeFull, "full": ModeFull, "scrape": ModeScrape, "send": ModeSend, "login": ModeLogin} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseMode(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseMode("turbo"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

type fakeDriver struct {
	started bool
	stopped bool
}

func (d *fakeDriver) Start(_ context.Context, job func(time.Time)) error {
	d.started = true
	job(time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC))
	return nil
}

func (d *fakeDriver) Stop(context.Context) error {
	d.stopped = true
	return nil
}

func TestSchedulerRunsPipelineOnTrigger(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(&fakeClassifier{batchReply: "[1]", yesNoReply: "JA"})
	driver := &fakeDriver{}
	s := NewScheduler(driver, f.pipeline, ModeScrape, nil)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, ok := f.store.record("55"); !ok {
		t.Fatal("expected scheduled run to persist listings")
	}
	if err := s.Stop(context.Background()); err != nil || !driver.stopped {
		t.Fatalf("Stop: %v", err)
	}
}
