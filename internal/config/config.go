package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"

	"github.com/ykvlv/taskmate-bot/internal/domain"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	BotToken    string `envconfig:"BOT_TOKEN"`
	DBDriver    string `envconfig:"DB_DRIVER" default:"sqlite"` // sqlite|postgres
	DBPath      string `envconfig:"DB_PATH" default:"./data/taskmate.db"`
	DatabaseURL string `envconfig:"DATABASE_URL"`
	DefaultTZ   string `envconfig:"DEFAULT_TZ" default:"Europe/Moscow"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`  // debug|info|warn|error
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"` // json|console
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"` // healthz and sweep triggers
	SweepToken  string `envconfig:"SWEEP_TOKEN"`               // empty disables the check

	SchedulerInterval time.Duration `envconfig:"SCHEDULER_INTERVAL" default:"30s"`
	PreReminderWindow time.Duration `envconfig:"PRE_REMINDER_WINDOW" default:"15m"`
	DigestHour        int           `envconfig:"DIGEST_HOUR" default:"8"`
	MissingTimePolicy string        `envconfig:"MISSING_TIME_POLICY" default:"end_of_day"` // end_of_day|clarify

	TranscribeURL     string        `envconfig:"TRANSCRIBE_URL"`
	TranscribeAPIKey  string        `envconfig:"TRANSCRIBE_API_KEY"`
	TranscribeModel   string        `envconfig:"TRANSCRIBE_MODEL" default:"whisper-1"`
	TranscribeTimeout time.Duration `envconfig:"TRANSCRIBE_TIMEOUT" default:"60s"`
}

// Load reads .env (if present) and environment variables into Config and
// validates the result.
func Load() (Config, error) {
	_ = godotenv.Load(".env")

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks values envconfig cannot.
func (c Config) Validate() error {
	if _, err := domain.ValidateTZ(c.DefaultTZ); err != nil {
		return errors.Wrapf(err, "DEFAULT_TZ %q", c.DefaultTZ)
	}
	switch c.DBDriver {
	case DriverSQLite:
		if c.DBPath == "" {
			return errors.New("DB_PATH is required for sqlite")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for postgres")
		}
	default:
		return errors.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}
	if !c.Policy().Valid() {
		return errors.Errorf("unknown MISSING_TIME_POLICY %q", c.MissingTimePolicy)
	}
	if c.DigestHour < 0 || c.DigestHour > 23 {
		return errors.Errorf("DIGEST_HOUR must be within 0..23, got %d", c.DigestHour)
	}
	if c.SchedulerInterval <= 0 {
		return errors.New("SCHEDULER_INTERVAL must be positive")
	}
	if c.PreReminderWindow < 0 {
		return errors.New("PRE_REMINDER_WINDOW must not be negative")
	}
	return nil
}

// RequireBotToken fails when no Telegram token is configured. Commands that
// only touch the store skip it.
func (c Config) RequireBotToken() error {
	if strings.TrimSpace(c.BotToken) == "" {
		return errors.New("BOT_TOKEN is required")
	}
	return nil
}

// Policy returns the configured missing-time policy.
func (c Config) Policy() domain.MissingTimePolicy {
	return domain.MissingTimePolicy(strings.ToLower(strings.TrimSpace(c.MissingTimePolicy)))
}

// TranscribeEnabled reports whether voice messages can be transcribed.
func (c Config) TranscribeEnabled() bool {
	return c.TranscribeAPIKey != "" || c.TranscribeURL != ""
}
