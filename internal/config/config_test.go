package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ykvlv/taskmate-bot/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir()) // no .env here
	t.Setenv("BOT_TOKEN", "123:abc")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, DriverSQLite, cfg.DBDriver)
	require.Equal(t, "Europe/Moscow", cfg.DefaultTZ)
	require.Equal(t, 30*time.Second, cfg.SchedulerInterval)
	require.Equal(t, 15*time.Minute, cfg.PreReminderWindow)
	require.Equal(t, 8, cfg.DigestHour)
	require.Equal(t, domain.PolicyEndOfDay, cfg.Policy())
	require.False(t, cfg.TranscribeEnabled())
	require.NoError(t, cfg.RequireBotToken())
}

func TestLoad_Overrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/taskmate")
	t.Setenv("MISSING_TIME_POLICY", "clarify")
	t.Setenv("PRE_REMINDER_WINDOW", "5m")
	t.Setenv("TRANSCRIBE_API_KEY", "sk-test")
	t.Setenv("BOT_TOKEN", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, DriverPostgres, cfg.DBDriver)
	require.Equal(t, domain.PolicyClarify, cfg.Policy())
	require.Equal(t, 5*time.Minute, cfg.PreReminderWindow)
	require.True(t, cfg.TranscribeEnabled())
	require.Error(t, cfg.RequireBotToken())
}

func TestValidate(t *testing.T) {
	valid := Config{
		DBDriver:          DriverSQLite,
		DBPath:            "x.db",
		DefaultTZ:         "UTC",
		MissingTimePolicy: "end_of_day",
		DigestHour:        8,
		SchedulerInterval: time.Second,
	}
	require.NoError(t, valid.Validate())

	for name, mutate := range map[string]func(*Config){
		"bad tz":        func(c *Config) { c.DefaultTZ = "Mars/Base" },
		"bad driver":    func(c *Config) { c.DBDriver = "mysql" },
		"postgres dsn":  func(c *Config) { c.DBDriver = DriverPostgres },
		"bad policy":    func(c *Config) { c.MissingTimePolicy = "guess" },
		"digest hour":   func(c *Config) { c.DigestHour = 24 },
		"zero interval": func(c *Config) { c.SchedulerInterval = 0 },
	} {
		t.Run(name, func(t *testing.T) {
			c := valid
			mutate(&c)
			require.Error(t, c.Validate())
		})
	}
}
