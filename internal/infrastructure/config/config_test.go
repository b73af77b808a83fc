package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "clientsync", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 30*time.Second, cfg.Sync.PrimaryTimeout)
	assert.Equal(t, 60*time.Second, cfg.Sync.SpreadsheetTimeout)
	assert.Equal(t, 60*time.Second, cfg.Sync.TrackerTimeout)
	assert.Equal(t, 60*time.Second, cfg.Sync.DriftWindow)
	assert.Equal(t, 5*time.Minute, cfg.Sync.LockTTL)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CLIENTSYNC_DATABASE_HOST", "db.internal")
	t.Setenv("CLIENTSYNC_APP_PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "9090", cfg.App.Port)
}

func TestValidate_ConnectionPool(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.Database.MaxIdleConns = cfg.Database.MaxOpenConns + 1

	err := cfg.validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_idle_conns")
}

func TestValidate_NegativeDriftWindow(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.Sync.DriftWindow = -time.Second

	err := cfg.validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "drift_window")
}

func TestValidate_Production(t *testing.T) {
	newProdConfig := func() *Config {
		cfg := &Config{}
		applyDefaults(cfg)
		cfg.App.Env = "production"
		cfg.Database.Password = "secret"
		cfg.Database.SSLMode = "require"
		cfg.Spreadsheet.APIToken = "sheet-token"
		cfg.Spreadsheet.SheetID = "sheet-1"
		cfg.Tracker.APIToken = "tracker-token"
		cfg.Tracker.DatabaseID = "db-1"
		return cfg
	}

	t.Run("complete production config passes", func(t *testing.T) {
		assert.NoError(t, newProdConfig().validate())
	})

	t.Run("missing database password", func(t *testing.T) {
		cfg := newProdConfig()
		cfg.Database.Password = ""
		assert.Error(t, cfg.validate())
	})

	t.Run("sslmode disable rejected", func(t *testing.T) {
		cfg := newProdConfig()
		cfg.Database.SSLMode = "disable"
		assert.Error(t, cfg.validate())
	})

	t.Run("missing spreadsheet token", func(t *testing.T) {
		cfg := newProdConfig()
		cfg.Spreadsheet.APIToken = ""
		assert.Error(t, cfg.validate())
	})

	t.Run("missing tracker database", func(t *testing.T) {
		cfg := newProdConfig()
		cfg.Tracker.DatabaseID = ""
		assert.Error(t, cfg.validate())
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "p@ss/word",
		DBName:   "clientsync",
		SSLMode:  "disable",
	}

	dsn := d.DSN()
	assert.Contains(t, dsn, "postgres://")
	assert.Contains(t, dsn, "localhost:5432")
	assert.Contains(t, dsn, "sslmode=disable")
	// Special characters in the password survive escaping.
	assert.NotContains(t, dsn, "p@ss/word")
}

func TestRedisConfig_Addr(t *testing.T) {
	r := RedisConfig{Host: "cache.internal", Port: 6380}
	assert.Equal(t, "cache.internal:6380", r.Addr())
}
