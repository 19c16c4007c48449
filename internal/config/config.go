// Package config loads process configuration from HALO_* environment
// variables and builds the collaborators selected by it.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/karanuppal/halo/internal/adapter"
	"github.com/karanuppal/halo/internal/intent"
	"github.com/karanuppal/halo/internal/lock"
)

// Extractor providers.
const (
	ProviderRules  = "rules"
	ProviderFake   = "fake" // alias for rules
	ProviderOpenAI = "openai"
)

// Adapter modes.
const (
	AdapterMock    = "mock"
	AdapterBrowser = "browser"
	AdapterResy    = "resy"
)

// Config is the process configuration.
type Config struct {
	DBPath     string `env:"HALO_DB_PATH"     envDefault:"halo.db"`
	ListenAddr string `env:"HALO_LISTEN_ADDR" envDefault:"127.0.0.1:8080"`

	LLMProvider   string `env:"HALO_LLM_PROVIDER"    envDefault:"rules"`
	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	LLMModel      string `env:"HALO_LLM_MODEL"       envDefault:"gpt-4o-mini"`
	OpenAIBaseURL string `env:"HALO_OPENAI_BASE_URL"`

	AmazonAdapter         string  `env:"HALO_AMAZON_ADAPTER"                envDefault:"mock"`
	BookingAdapter        string  `env:"HALO_BOOKING_ADAPTER"               envDefault:"mock"`
	AutomationURL         string  `env:"HALO_AUTOMATION_URL"                envDefault:"http://127.0.0.1:7310"`
	AmazonStorageStateDir string  `env:"HALO_AMAZON_STORAGE_STATE_DIR"      envDefault:".local/amazon_sessions"`
	ResyStorageStateDir   string  `env:"HALO_RESY_STORAGE_STATE_DIR"        envDefault:".local/resy_sessions"`
	AmazonDryRun          bool    `env:"HALO_AMAZON_DRY_RUN"                envDefault:"true"`
	AmazonMaxTotalDrift   float64 `env:"HALO_AMAZON_MAX_TOTAL_DRIFT_RATIO"  envDefault:"0.05"`
	AutomationRPS         float64 `env:"HALO_AUTOMATION_RPS"                envDefault:"2"`
	ConfidenceThreshold   float64 `env:"HALO_CONFIDENCE_THRESHOLD"          envDefault:"0.55"`
	TimeWindowCount       int     `env:"HALO_TIME_WINDOW_COUNT"             envDefault:"3"`

	RedisAddr     string `env:"HALO_REDIS_ADDR"`
	RedisPassword string `env:"HALO_REDIS_PASSWORD"`
	RedisDB       int    `env:"HALO_REDIS_DB"`

	OTLPEndpoint string `env:"HALO_OTLP_ENDPOINT"`
	LogLevel     string `env:"HALO_LOG_LEVEL"  envDefault:"info"`
	LogFormat    string `env:"HALO_LOG_FORMAT" envDefault:"text"`
}

// Load parses the process environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

// LoadFrom parses the given variables instead of the process environment.
func LoadFrom(vars map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	c.LLMProvider = strings.ToLower(strings.TrimSpace(c.LLMProvider))
	c.AmazonAdapter = strings.ToLower(strings.TrimSpace(c.AmazonAdapter))
	c.BookingAdapter = strings.ToLower(strings.TrimSpace(c.BookingAdapter))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	if c.LLMProvider == ProviderFake {
		c.LLMProvider = ProviderRules
	}
}

// Validate rejects unknown modes and out-of-range values.
func (c Config) Validate() error {
	var errs []error
	switch c.LLMProvider {
	case ProviderRules:
	case ProviderOpenAI:
		if strings.TrimSpace(c.OpenAIAPIKey) == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required when HALO_LLM_PROVIDER=openai"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown HALO_LLM_PROVIDER=%q: expected rules, fake or openai", c.LLMProvider))
	}
	if c.AmazonAdapter != AdapterMock && c.AmazonAdapter != AdapterBrowser {
		errs = append(errs, fmt.Errorf("unknown HALO_AMAZON_ADAPTER=%q: expected mock or browser", c.AmazonAdapter))
	}
	if c.BookingAdapter != AdapterMock && c.BookingAdapter != AdapterResy {
		errs = append(errs, fmt.Errorf("unknown HALO_BOOKING_ADAPTER=%q: expected mock or resy", c.BookingAdapter))
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("HALO_CONFIDENCE_THRESHOLD=%v: must be in [0,1]", c.ConfidenceThreshold))
	}
	if c.TimeWindowCount < 1 {
		errs = append(errs, fmt.Errorf("HALO_TIME_WINDOW_COUNT=%d: must be at least 1", c.TimeWindowCount))
	}
	if c.AmazonMaxTotalDrift < 0 {
		errs = append(errs, fmt.Errorf("HALO_AMAZON_MAX_TOTAL_DRIFT_RATIO=%v: must not be negative", c.AmazonMaxTotalDrift))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("unknown HALO_LOG_FORMAT=%q: expected text or json", c.LogFormat))
	}
	return errors.Join(errs...)
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("unknown HALO_LOG_LEVEL=%q", s)
	}
	return level, nil
}

// BuildLogger builds the process logger. verbose forces Debug.
func (c Config) BuildLogger(w io.Writer, verbose bool) *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// BuildExtractor builds the configured intent extractor.
func (c Config) BuildExtractor(logger *slog.Logger) (intent.Extractor, error) {
	if c.LLMProvider != ProviderOpenAI {
		return intent.NewRuleExtractor(), nil
	}
	ex, err := intent.NewOpenAIExtractor(intent.OpenAIConfig{
		APIKey:  c.OpenAIAPIKey,
		Model:   c.LLMModel,
		BaseURL: c.OpenAIBaseURL,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build extractor: %w", err)
	}
	return ex, nil
}

// BuildReorderAdapter builds the configured reorder adapter.
func (c Config) BuildReorderAdapter() adapter.ReorderAdapter {
	if c.AmazonAdapter == AdapterBrowser {
		return adapter.NewRemoteReorder(adapter.RemoteConfig{
			BaseURL:            c.AutomationURL,
			StorageStateDir:    c.AmazonStorageStateDir,
			DryRun:             c.AmazonDryRun,
			MaxTotalDriftRatio: c.AmazonMaxTotalDrift,
			RequestsPerSecond:  c.AutomationRPS,
		})
	}
	return adapter.NewMockReorder()
}

// BuildBookingAdapter builds the configured booking adapter.
func (c Config) BuildBookingAdapter() adapter.BookingAdapter {
	if c.BookingAdapter == AdapterResy {
		return adapter.NewRemoteBooking(adapter.RemoteConfig{
			BaseURL:           c.AutomationURL,
			StorageStateDir:   c.ResyStorageStateDir,
			RequestsPerSecond: c.AutomationRPS,
			WindowCount:       c.TimeWindowCount,
		})
	}
	return adapter.NewMockBooking(adapter.WithWindowCount(c.TimeWindowCount))
}

// BuildLocker builds the per-draft lock: Redis when HALO_REDIS_ADDR is set,
// otherwise in-process. The returned close function is never nil.
func (c Config) BuildLocker(logger *slog.Logger) (lock.Locker, func() error) {
	if c.RedisAddr == "" {
		return lock.NewLocal(), func() error { return nil }
	}
	l := lock.NewRedisLockerAddr(c.RedisAddr, c.RedisPassword, c.RedisDB,
		lock.WithReleaseHook(func(key string, err error) {
			if err != nil {
				logger.Warn("draft lock release failed", "key", key, "error", err)
			}
		}))
	return l, l.Close
}
