package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"ResellBot/internal/config"
	"ResellBot/internal/domain"
	"ResellBot/internal/infrastructure/runlock"
	"ResellBot/internal/usecase"
)

func testConfig(t *testing.T, baseURL string) config.Config {
	t.Helper()

	dir := t.TempDir()
	var cfg config.Config
	cfg.Database.Driver = "sqlite"
	cfg.Database.DSN = filepath.Join(dir, "resellbot.db")
	cfg.Lock.Path = filepath.Join(dir, "resellbot.lock")
	cfg.Search.Phrase = "PlayStation 5"
	cfg.Search.MaxPrice = 400
	cfg.Search.Pages = 1
	cfg.Marketplace.BaseURL = baseURL
	return cfg
}

func newTestApplication(t *testing.T, cfg config.Config) *Application {
	t.Helper()

	a, err := New(context.Background(), cfg, slog.New(slog.DiscardHandler), Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

const searchPage = `<html><body><ul>
<li><article class="aditem" data-adid="55">
  <h2><a class="ellipsis" href="/s-anzeige/ps5-disc/55-279-1">PS5 Disc Edition</a></h2>
  <p class="aditem-main--middle--price-shipping--price">350 €</p>
</article></li>
<li><article class="aditem" data-adid="56">
  <h2><a class="ellipsis" href="/s-anzeige/ps4/56-279-1">PS4 Pro</a></h2>
  <p class="aditem-main--middle--price-shipping--price">180 €</p>
</article></li>
</ul></body></html>`

func TestRunScrapePersistsTriage(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if r.URL.Path == "/s-anzeige/ps5-disc/55-279-1" {
			_, _ = w.Write([]byte(`<html><body><p id="viewad-description-text">Top Zustand</p></body></html>`))
			return
		}
		_, _ = w.Write([]byte(searchPage))
	}))
	defer server.Close()

	a := newTestApplication(t, testConfig(t, server.URL))

	report, err := a.Run(context.Background(), usecase.ModeScrape)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Fetched != 2 || report.Persisted != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.SessionID == "" {
		t.Fatal("expected session id")
	}

	stats, err := a.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Listings != 2 || stats.ByFilterStatus[domain.StatusRejectedNameMismatch] != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestRunRefusesWhileLocked(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "http://127.0.0.1:1")
	a := newTestApplication(t, cfg)

	held, err := runlock.Acquire(cfg.Lock.Path)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer held.Release()

	if _, err := a.Run(context.Background(), usecase.ModeScrape); !errors.Is(err, runlock.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func TestTemplates(t *testing.T) {
	t.Parallel()

	a := newTestApplication(t, testConfig(t, "http://127.0.0.1:1"))
	ctx := context.Background()

	if err := a.AddTemplate(ctx, "Hallo, noch da?", true); err != nil {
		t.Fatalf("AddTemplate: %v", err)
	}
	if err := a.AddTemplate(ctx, "Alt", false); err != nil {
		t.Fatalf("AddTemplate: %v", err)
	}
	templates, err := a.Templates(ctx)
	if err != nil {
		t.Fatalf("Templates: %v", err)
	}
	if len(templates) != 1 || templates[0].Content != "Hallo, noch da?" {
		t.Fatalf("unexpected templates %+v", templates)
	}
}

func TestResolveProfilePrefersConfiguredProfiles(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "")
	cfg.Search.Phrase = "Nintendo Switch"
	cfg.Search.ExcludeKeywords = []string{"lite"}
	cfg.Profiles = []config.ProfileConfig{{Name: "switch", Match: []string{"switch"}, Subject: "eine Nintendo Switch"}}

	profile := resolveProfile(cfg)
	if profile.Name != "switch" || profile.Subject != "eine Nintendo Switch" {
		t.Fatalf("unexpected profile %+v", profile)
	}
	if len(profile.ExcludeKeywords) != 1 || profile.ExcludeKeywords[0] != "lite" {
		t.Fatalf("expected search exclusions appended, got %v", profile.ExcludeKeywords)
	}

	cfg.Search.Phrase = "PS5 Slim"
	if got := resolveProfile(cfg).Name; got != "playstation-5" {
		t.Fatalf("expected built-in profile, got %s", got)
	}
}

func TestAttempts(t *testing.T) {
	t.Parallel()

	a := newTestApplication(t, testConfig(t, "http://127.0.0.1:1"))
	ctx := context.Background()

	for _, status := range []domain.SendStatus{domain.SendStatusFailed, domain.SendStatusSent} {
		if err := a.store.AppendAttempt(ctx, domain.SentMessageRecord{ListingID: "55", Status: status, Log: "Hallo"}); err != nil {
			t.Fatalf("AppendAttempt: %v", err)
		}
	}

	attempts, err := a.Attempts(ctx, "55")
	if err != nil {
		t.Fatalf("Attempts: %v", err)
	}
	if len(attempts) != 2 || attempts[0].Status != domain.SendStatusFailed || attempts[1].Status != domain.SendStatusSent {
		t.Fatalf("unexpected attempts %+v", attempts)
	}
	if none, err := a.Attempts(ctx, "56"); err != nil || len(none) != 0 {
		t.Fatalf("expected no attempts for 56, got %+v %v", none, err)
	}
}
