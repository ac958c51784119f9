package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViper_Defaults(t *testing.T) {
	cfg, err := FromViper(NewViper())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, BackendSQLite, cfg.Backend)
	assert.Equal(t, "sqlite", cfg.SQLiteDriver)
	assert.Equal(t, 5*time.Second, cfg.QueryTimeout)
	assert.False(t, cfg.LLM.Enabled)
	assert.Equal(t, 8*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 12*time.Second, cfg.Live.RequestDelay)
	assert.Equal(t, 5, cfg.Live.PerMinute)
	assert.Equal(t, 25, cfg.Live.PerDay)
	assert.Equal(t, []string{"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA"}, cfg.Live.Universe)
	assert.Zero(t, cfg.Live.Timeout)
	assert.Equal(t, 5*(12*time.Second+5*time.Second), cfg.LiveTimeout())
	assert.True(t, filepath.IsAbs(cfg.DataDir))
	assert.Equal(t, filepath.Join(cfg.DataDir, "fundamentals.db"), cfg.SQLitePath())
}

func TestFromViper_Environment(t *testing.T) {
	t.Setenv("SCREENER_PORT", "9090")
	t.Setenv("SCREENER_BACKEND", "LIVE")
	t.Setenv("SCREENER_ALPHAVANTAGE_API_KEY", "demo")
	t.Setenv("SCREENER_LIVE_UNIVERSE", "ibm, msft,ibm")
	t.Setenv("SCREENER_LIVE_REQUEST_DELAY", "1s")
	t.Setenv("SCREENER_QUERY_TIMEOUT", "250ms")
	t.Setenv("SCREENER_LIVE_TIMEOUT", "90s")
	t.Setenv("SCREENER_LLM_ENABLED", "true")
	t.Setenv("SCREENER_DATA_DIR", t.TempDir())

	cfg, err := FromViper(NewViper())
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, BackendLive, cfg.Backend)
	assert.Equal(t, "demo", cfg.Live.APIKey)
	assert.Equal(t, []string{"IBM", "MSFT"}, cfg.Live.Universe)
	assert.Equal(t, time.Second, cfg.Live.RequestDelay)
	assert.Equal(t, 250*time.Millisecond, cfg.QueryTimeout)
	assert.Equal(t, 90*time.Second, cfg.LiveTimeout())
	assert.True(t, cfg.LLM.Enabled)
}

func TestLiveTimeout(t *testing.T) {
	tests := []struct {
		name     string
		live     LiveConfig
		expected time.Duration
	}{
		{"explicit", LiveConfig{Universe: []string{"IBM", "MSFT"}, RequestDelay: time.Second, Timeout: 3 * time.Second}, 3 * time.Second},
		{"derived per symbol", LiveConfig{Universe: []string{"IBM", "MSFT"}, RequestDelay: time.Second}, 2 * (time.Second + 2*time.Second)},
		{"derived without delay", LiveConfig{Universe: []string{"IBM"}}, 2 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{QueryTimeout: 2 * time.Second, Live: tt.live}
			assert.Equal(t, tt.expected, cfg.LiveTimeout())
		})
	}
}

func TestFromViper_Overrides(t *testing.T) {
	v := NewViper()
	v.Set("backend", "postgres")
	v.Set("postgres_dsn", "postgres://localhost/screener")

	cfg, err := FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, BackendPostgres, cfg.Backend)
	assert.Equal(t, "postgres://localhost/screener", cfg.PostgresDSN)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Backend:      BackendSQLite,
			SQLiteDriver: "sqlite",
			Port:         8080,
			QueryTimeout: time.Second,
			Live:         LiveConfig{APIKey: "k", Universe: []string{"IBM"}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"unknown backend", func(c *Config) { c.Backend = "mysql" }, "backend must be"},
		{"bad driver", func(c *Config) { c.SQLiteDriver = "sqlite4" }, "sqlite_driver"},
		{"postgres without dsn", func(c *Config) { c.Backend = BackendPostgres }, "postgres_dsn"},
		{"live without key", func(c *Config) { c.Backend = BackendLive; c.Live.APIKey = "" }, "alphavantage_api_key"},
		{"live without universe", func(c *Config) { c.Backend = BackendLive; c.Live.Universe = nil }, "live_universe"},
		{"negative live timeout", func(c *Config) { c.Backend = BackendLive; c.Live.Timeout = -time.Second }, "live_timeout"},
		{"bad port", func(c *Config) { c.Port = 0 }, "port"},
		{"zero timeout", func(c *Config) { c.QueryTimeout = 0 }, "query_timeout"},
		{"llm without model", func(c *Config) { c.LLM = LLMConfig{Enabled: true, BaseURL: "x", Timeout: time.Second} }, "llm_model"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEnsureDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	cfg := &Config{DataDir: dir}
	require.NoError(t, cfg.EnsureDataDir())
	assert.DirExists(t, dir)
}
