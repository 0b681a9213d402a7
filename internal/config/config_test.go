package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(configPathEnv, "")
	t.Setenv(classifierKeyEnv, "")
	t.Setenv(groqKeyEnv, "")
	t.Setenv(databaseDriverEnv, "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Search.Phrase != "PlayStation 5" || cfg.Search.MaxPrice != 400 {
		t.Fatalf("unexpected search defaults %+v", cfg.Search)
	}
	if cfg.Dispatch.DefaultMessage != defaultDefaultMessage {
		t.Fatalf("unexpected default message %q", cfg.Dispatch.DefaultMessage)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Fatalf("expected sqlite default, got %s", cfg.Database.Driver)
	}
	if cfg.Scheduler.Location() == nil {
		t.Fatal("expected bound location")
	}
}

func TestLoadYAMLMergesAndEnvOverrides(t *testing.T) {
	path := writeFile(t, "resellbot.yaml", `
search:
  phrase: Nintendo Switch OLED
  maxPrice: 250
  excludeKeywords: [lite, defekt]
classifier:
  batchSize: 20
dispatch:
  minDelaySeconds: 1.5
  maxDelaySeconds: 3
  retryFailed: true
profiles:
  - name: switch
    match: [switch]
    synonyms: [nintendo switch]
`)
	t.Setenv(groqKeyEnv, "groq-key")
	t.Setenv(classifierKeyEnv, "")
	t.Setenv(databaseDSNEnv, "postgres://bot@localhost/resell")
	t.Setenv(databaseDriverEnv, "postgres")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Search.Phrase != "Nintendo Switch OLED" || cfg.Search.MaxPrice != 250 || cfg.Search.MinPrice != 150 {
		t.Fatalf("unexpected merged search %+v", cfg.Search)
	}
	if cfg.Classifier.BatchSize != 20 || cfg.Classifier.DescriptionPrefix != 800 {
		t.Fatalf("unexpected classifier %+v", cfg.Classifier)
	}
	if cfg.Classifier.APIKey != "groq-key" {
		t.Fatalf("expected GROQ_API_KEY fallback, got %q", cfg.Classifier.APIKey)
	}
	if cfg.Database.Driver != "postgres" || cfg.Database.DSN != "postgres://bot@localhost/resell" {
		t.Fatalf("unexpected database %+v", cfg.Database)
	}
	if cfg.Dispatch.MinDelay() != 1500*time.Millisecond || !cfg.Dispatch.RetryFailed {
		t.Fatalf("unexpected dispatch %+v", cfg.Dispatch)
	}
	if len(cfg.Profiles) != 1 || cfg.Profiles[0].Name != "switch" {
		t.Fatalf("unexpected profiles %+v", cfg.Profiles)
	}
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "resellbot.toml", `
[search]
phrase = "Steam Deck"
max_price = 320

[logging]
level = "info"
format = "json"
`)
	t.Setenv(logLevelEnv, "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Search.Phrase != "Steam Deck" || cfg.Search.MaxPrice != 320 {
		t.Fatalf("unexpected search %+v", cfg.Search)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Fatalf("unexpected logging %+v", cfg.Logging)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	t.Setenv(databaseDriverEnv, "")

	cases := map[string]string{
		"missing file":     "",
		"price bounds":     "search:\n  minPrice: 500\n  maxPrice: 100\n",
		"delay bounds":     "dispatch:\n  minDelaySeconds: 5\n  maxDelaySeconds: 1\n",
		"driver":           "database:\n  driver: oracle\n",
		"nameless profile": "profiles:\n  - match: [x]\n",
	}
	for name, content := range cases {
		path := filepath.Join(t.TempDir(), "absent.yaml")
		if content != "" {
			path = writeFile(t, "cfg.yaml", content)
		}
		if _, err := Load(path); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
