package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone       = "Europe/Berlin"
	defaultDefaultMessage = "Hallo, ist Versand und PayPal möglich?"

	configPathEnv      = "RESELLBOT_CONFIG"
	databaseDSNEnv     = "DATABASE_DSN"
	databaseDriverEnv  = "DATABASE_DRIVER"
	classifierKeyEnv   = "CLASSIFIER_API_KEY"
	groqKeyEnv         = "GROQ_API_KEY"
	classifierModelEnv = "CLASSIFIER_MODEL"
	marketEmailEnv     = "MARKETPLACE_EMAIL"
	marketPasswordEnv  = "MARKETPLACE_PASSWORD"
	telegramTokenEnv   = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv  = "TELEGRAM_CHAT_ID"
	logLevelEnv        = "LOG_LEVEL"
)

// Config holds high-level settings required across the application.
type Config struct {
	Database      DatabaseConfig     `yaml:"database" toml:"database"`
	Search        SearchConfig       `yaml:"search" toml:"search"`
	Profiles      []ProfileConfig    `yaml:"profiles" toml:"profiles"`
	Classifier    ClassifierConfig   `yaml:"classifier" toml:"classifier"`
	Marketplace   MarketplaceConfig  `yaml:"marketplace" toml:"marketplace"`
	Dispatch      DispatchConfig     `yaml:"dispatch" toml:"dispatch"`
	Notifications NotificationConfig `yaml:"notifications" toml:"notifications"`
	Scheduler     SchedulerConfig    `yaml:"scheduler" toml:"scheduler"`
	Logging       LoggingConfig      `yaml:"logging" toml:"logging"`
	Lock          LockConfig         `yaml:"lock" toml:"lock"`
}

// DatabaseConfig selects the store. Driver is sqlite or postgres.
type DatabaseConfig struct {
	Driver string `yaml:"driver" toml:"driver"`
	DSN    string `yaml:"dsn" toml:"dsn"`
}

// SearchConfig is the product search. MaxPrice doubles as the price guard ceiling.
type SearchConfig struct {
	Phrase          string   `yaml:"phrase" toml:"phrase"`
	Synonyms        []string `yaml:"synonyms" toml:"synonyms"`
	ExcludeKeywords []string `yaml:"excludeKeywords" toml:"exclude_keywords"`
	MinPrice        int      `yaml:"minPrice" toml:"min_price"`
	MaxPrice        int      `yaml:"maxPrice" toml:"max_price"`
	Pages           int      `yaml:"pages" toml:"pages"`
}

// ProfileConfig declares product-specific triage rules in addition to the built-in ones.
type ProfileConfig struct {
	Name                 string   `yaml:"name" toml:"name"`
	Match                []string `yaml:"match" toml:"match"`
	Synonyms             []string `yaml:"synonyms" toml:"synonyms"`
	ExcludeKeywords      []string `yaml:"excludeKeywords" toml:"exclude_keywords"`
	FallbackKeywords     []string `yaml:"fallbackKeywords" toml:"fallback_keywords"`
	FallbackKeep         []string `yaml:"fallbackKeep" toml:"fallback_keep"`
	FallbackRejectAlways []string `yaml:"fallbackRejectAlways" toml:"fallback_reject_always"`
	InquiryMarkers       []string `yaml:"inquiryMarkers" toml:"inquiry_markers"`
	Subject              string   `yaml:"subject" toml:"subject"`
	TitleRules           []string `yaml:"titleRules" toml:"title_rules"`
	DescriptionPrompt    string   `yaml:"descriptionPrompt" toml:"description_prompt"`
	AffirmativeTokens    []string `yaml:"affirmativeTokens" toml:"affirmative_tokens"`
	DefectKeywords       []string `yaml:"defectKeywords" toml:"defect_keywords"`
	PickupKeywords       []string `yaml:"pickupKeywords" toml:"pickup_keywords"`
}

// ClassifierConfig defines how to contact the OpenAI-compatible classification API.
type ClassifierConfig struct {
	Endpoint          string `yaml:"endpoint" toml:"endpoint"`
	Model             string `yaml:"model" toml:"model"`
	APIKey            string `yaml:"apiKey" toml:"api_key"`
	BatchSize         int    `yaml:"batchSize" toml:"batch_size"`
	DescriptionPrefix int    `yaml:"descriptionPrefix" toml:"description_prefix"`
	TimeoutSeconds    int    `yaml:"timeoutSeconds" toml:"timeout_seconds"`
	MaxRetries        int    `yaml:"maxRetries" toml:"max_retries"`
}

// MarketplaceConfig wires the marketplace connector.
type MarketplaceConfig struct {
	BaseURL          string            `yaml:"baseUrl" toml:"base_url"`
	Email            string            `yaml:"email" toml:"email"`
	Password         string            `yaml:"password" toml:"password"`
	UserAgent        string            `yaml:"userAgent" toml:"user_agent"`
	TimeoutSeconds   int               `yaml:"timeoutSeconds" toml:"timeout_seconds"`
	PageDelaySeconds float64           `yaml:"pageDelaySeconds" toml:"page_delay_seconds"`
	Selectors        map[string]string `yaml:"selectors" toml:"selectors"`
}

// PageDelay is the pause between consecutive page loads.
func (m MarketplaceConfig) PageDelay() time.Duration {
	return seconds(m.PageDelaySeconds)
}

// DispatchConfig controls outreach pacing and retry policy.
type DispatchConfig struct {
	DefaultMessage  string  `yaml:"defaultMessage" toml:"default_message"`
	MinDelaySeconds float64 `yaml:"minDelaySeconds" toml:"min_delay_seconds"`
	MaxDelaySeconds float64 `yaml:"maxDelaySeconds" toml:"max_delay_seconds"`
	PauseSeconds    float64 `yaml:"pauseSeconds" toml:"pause_seconds"`
	RetryFailed     bool    `yaml:"retryFailed" toml:"retry_failed"`
}

// MinDelay is the lower pacing bound between sends.
func (d DispatchConfig) MinDelay() time.Duration { return seconds(d.MinDelaySeconds) }

// MaxDelay is the upper pacing bound between sends.
func (d DispatchConfig) MaxDelay() time.Duration { return seconds(d.MaxDelaySeconds) }

// Pause is the wait between scrape and send in full mode.
func (d DispatchConfig) Pause() time.Duration { return seconds(d.PauseSeconds) }

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram" toml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken" toml:"bot_token"`
	ChatID   string `yaml:"chatId" toml:"chat_id"`
	APIURL   string `yaml:"apiUrl" toml:"api_url"`
}

// SchedulerConfig defines how often watch mode runs the pipeline.
type SchedulerConfig struct {
	IntervalMinutes int            `yaml:"intervalMinutes" toml:"interval_minutes"`
	Timezone        string         `yaml:"timezone" toml:"timezone"`
	location        *time.Location `yaml:"-" toml:"-"`
}

// Interval returns the watch period.
func (s SchedulerConfig) Interval() time.Duration {
	return time.Duration(s.IntervalMinutes) * time.Minute
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, err := time.LoadLocation(defaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LoggingConfig selects slog level and output format (text, json, auto).
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// LockConfig points at the run lock file.
type LockConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// Load reads the config file (explicit path, else RESELLBOT_CONFIG), merges it over
// defaults and applies environment overrides. Without any file the defaults are used.
func Load(path string) (Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		fileCfg, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg = mergeConfig(cfg, fileCfg)
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var fileCfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(raw, &fileCfg)
	default:
		err = yaml.Unmarshal(raw, &fileCfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return fileCfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Search.Phrase) == "" {
		return fmt.Errorf("config: search.phrase is required")
	}
	if c.Search.MinPrice < 0 || c.Search.MaxPrice < 0 {
		return fmt.Errorf("config: price bounds must not be negative")
	}
	if c.Search.MaxPrice > 0 && c.Search.MinPrice > c.Search.MaxPrice {
		return fmt.Errorf("config: search.minPrice %d exceeds maxPrice %d", c.Search.MinPrice, c.Search.MaxPrice)
	}
	if c.Dispatch.MinDelaySeconds < 0 || c.Dispatch.MaxDelaySeconds < c.Dispatch.MinDelaySeconds {
		return fmt.Errorf("config: dispatch delay bounds are inconsistent (%v..%v)",
			c.Dispatch.MinDelaySeconds, c.Dispatch.MaxDelaySeconds)
	}
	switch strings.ToLower(c.Database.Driver) {
	case "sqlite", "sqlite3", "postgres", "postgresql", "pq":
	default:
		return fmt.Errorf("config: unsupported database driver %q", c.Database.Driver)
	}
	for i, p := range c.Profiles {
		if p.Name == "" || len(p.Match) == 0 {
			return fmt.Errorf("config: profile %d needs a name and match phrases", i)
		}
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(databaseDriverEnv); v != "" {
		c.Database.Driver = v
	}

	if v := os.Getenv(groqKeyEnv); v != "" {
		c.Classifier.APIKey = v
	}
	if v := os.Getenv(classifierKeyEnv); v != "" {
		c.Classifier.APIKey = v
	}
	if v := os.Getenv(classifierModelEnv); v != "" {
		c.Classifier.Model = v
	}

	if v := os.Getenv(marketEmailEnv); v != "" {
		c.Marketplace.Email = v
	}
	if v := os.Getenv(marketPasswordEnv); v != "" {
		c.Marketplace.Password = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Database.Driver != "" {
		base.Database.Driver = override.Database.Driver
	}
	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}

	if override.Search.Phrase != "" {
		base.Search.Phrase = override.Search.Phrase
	}
	if len(override.Search.Synonyms) > 0 {
		base.Search.Synonyms = override.Search.Synonyms
	}
	if len(override.Search.ExcludeKeywords) > 0 {
		base.Search.ExcludeKeywords = override.Search.ExcludeKeywords
	}
	if override.Search.MinPrice != 0 {
		base.Search.MinPrice = override.Search.MinPrice
	}
	if override.Search.MaxPrice != 0 {
		base.Search.MaxPrice = override.Search.MaxPrice
	}
	if override.Search.Pages > 0 {
		base.Search.Pages = override.Search.Pages
	}

	if len(override.Profiles) > 0 {
		base.Profiles = override.Profiles
	}

	if override.Classifier.Endpoint != "" {
		base.Classifier.Endpoint = override.Classifier.Endpoint
	}
	if override.Classifier.Model != "" {
		base.Classifier.Model = override.Classifier.Model
	}
	if override.Classifier.APIKey != "" {
		base.Classifier.APIKey = override.Classifier.APIKey
	}
	if override.Classifier.BatchSize > 0 {
		base.Classifier.BatchSize = override.Classifier.BatchSize
	}
	if override.Classifier.DescriptionPrefix > 0 {
		base.Classifier.DescriptionPrefix = override.Classifier.DescriptionPrefix
	}
	if override.Classifier.TimeoutSeconds > 0 {
		base.Classifier.TimeoutSeconds = override.Classifier.TimeoutSeconds
	}
	if override.Classifier.MaxRetries > 0 {
		base.Classifier.MaxRetries = override.Classifier.MaxRetries
	}

	if override.Marketplace.BaseURL != "" {
		base.Marketplace.BaseURL = override.Marketplace.BaseURL
	}
	if override.Marketplace.Email != "" {
		base.Marketplace.Email = override.Marketplace.Email
	}
	if override.Marketplace.Password != "" {
		base.Marketplace.Password = override.Marketplace.Password
	}
	if override.Marketplace.UserAgent != "" {
		base.Marketplace.UserAgent = override.Marketplace.UserAgent
	}
	if override.Marketplace.TimeoutSeconds > 0 {
		base.Marketplace.TimeoutSeconds = override.Marketplace.TimeoutSeconds
	}
	if override.Marketplace.PageDelaySeconds > 0 {
		base.Marketplace.PageDelaySeconds = override.Marketplace.PageDelaySeconds
	}
	if len(override.Marketplace.Selectors) > 0 {
		base.Marketplace.Selectors = override.Marketplace.Selectors
	}

	if override.Dispatch.DefaultMessage != "" {
		base.Dispatch.DefaultMessage = override.Dispatch.DefaultMessage
	}
	if override.Dispatch.MinDelaySeconds > 0 {
		base.Dispatch.MinDelaySeconds = override.Dispatch.MinDelaySeconds
	}
	if override.Dispatch.MaxDelaySeconds > 0 {
		base.Dispatch.MaxDelaySeconds = override.Dispatch.MaxDelaySeconds
	}
	if override.Dispatch.PauseSeconds > 0 {
		base.Dispatch.PauseSeconds = override.Dispatch.PauseSeconds
	}
	if override.Dispatch.RetryFailed {
		base.Dispatch.RetryFailed = true
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}
	if override.Notifications.Telegram.APIURL != "" {
		base.Notifications.Telegram.APIURL = override.Notifications.Telegram.APIURL
	}

	if override.Scheduler.IntervalMinutes > 0 {
		base.Scheduler.IntervalMinutes = override.Scheduler.IntervalMinutes
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Lock.Path != "" {
		base.Lock.Path = override.Lock.Path
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Database: DatabaseConfig{Driver: "sqlite", DSN: "data/resellbot.db"},
		Search: SearchConfig{
			Phrase:   "PlayStation 5",
			MinPrice: 150,
			MaxPrice: 400,
			Pages:    2,
		},
		Classifier: ClassifierConfig{
			Endpoint:          "https://api.groq.com/openai/v1/chat/completions",
			Model:             "llama-3.3-70b-versatile",
			BatchSize:         40,
			DescriptionPrefix: 800,
			TimeoutSeconds:    30,
			MaxRetries:        3,
		},
		Marketplace: MarketplaceConfig{
			BaseURL:          "https://www.kleinanzeigen.de",
			TimeoutSeconds:   30,
			PageDelaySeconds: 2,
		},
		Dispatch: DispatchConfig{
			DefaultMessage:  defaultDefaultMessage,
			MinDelaySeconds: 2,
			MaxDelaySeconds: 4,
			PauseSeconds:    5,
		},
		Notifications: NotificationConfig{
			Telegram: TelegramConfig{APIURL: "https://api.telegram.org"},
		},
		Scheduler: SchedulerConfig{IntervalMinutes: 30, Timezone: defaultTimezone},
		Logging:   LoggingConfig{Level: "debug", Format: "auto"},
		Lock:      LockConfig{Path: "data/resellbot.lock"},
	}
}

func seconds(v float64) time.Duration {
	if v <= 0 {
		return 0
	}
	return time.Duration(v * float64(time.Second))
}
