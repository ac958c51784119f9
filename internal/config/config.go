// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/aristath/screener/internal/utils"
)

// EnvPrefix namespaces every environment variable, e.g. SCREENER_BACKEND
const EnvPrefix = "SCREENER"

// Backend names
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendLive     = "live"
)

// Config holds application configuration
type Config struct {
	DataDir      string // Directory holding the SQLite database (always absolute)
	LogLevel     string
	Backend      string
	SQLiteDriver string // "sqlite" (modernc) or "sqlite3" (mattn, cgo)
	PostgresDSN  string
	CatalogFile  string // Optional YAML catalog replacing the built-in one
	QueryTimeout time.Duration
	Port         int
	DevMode      bool // Seeds the demo universe on startup, pretty logs
	LLM          LLMConfig
	Live         LiveConfig
}

// LLMConfig configures the model-backed parser
type LLMConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	Enabled bool
}

// LiveConfig configures the live provider backend
type LiveConfig struct {
	APIKey       string
	Universe     []string
	RequestDelay time.Duration
	Timeout      time.Duration // zero derives one from the universe size
	PerMinute    int
	PerDay       int
}

// SQLitePath returns the fundamentals database path
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "fundamentals.db")
}

// LiveTimeout returns the deadline for one live query. Without an explicit
// live_timeout every symbol in the universe gets its request delay plus one
// query_timeout for the provider round trip.
func (c *Config) LiveTimeout() time.Duration {
	if c.Live.Timeout > 0 {
		return c.Live.Timeout
	}
	return time.Duration(len(c.Live.Universe)) * (c.Live.RequestDelay + c.QueryTimeout)
}

// NewViper returns a viper instance with defaults and environment binding.
// Keys are lower case; SCREENER_QUERY_TIMEOUT maps to "query_timeout".
func NewViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("dev_mode", false)
	v.SetDefault("data_dir", "./data")
	v.SetDefault("backend", BackendSQLite)
	v.SetDefault("sqlite_driver", "sqlite")
	v.SetDefault("postgres_dsn", "")
	v.SetDefault("query_timeout", 5*time.Second)
	v.SetDefault("catalog_file", "")

	v.SetDefault("llm_enabled", false)
	v.SetDefault("llm_base_url", "https://api.openai.com/v1")
	v.SetDefault("llm_api_key", "")
	v.SetDefault("llm_model", "gpt-4o-mini")
	v.SetDefault("llm_timeout", 8*time.Second)

	v.SetDefault("alphavantage_api_key", "")
	v.SetDefault("live_universe", "AAPL,MSFT,GOOGL,AMZN,NVDA")
	v.SetDefault("live_request_delay", 12*time.Second)
	v.SetDefault("live_timeout", time.Duration(0))
	v.SetDefault("live_per_minute", 5)
	v.SetDefault("live_per_day", 25)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads configuration from .env and environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	return FromViper(NewViper())
}

// FromViper builds and validates a Config from a populated viper instance
func FromViper(v *viper.Viper) (*Config, error) {
	dataDir, err := filepath.Abs(v.GetString("data_dir"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	cfg := &Config{
		DataDir:      dataDir,
		LogLevel:     v.GetString("log_level"),
		Backend:      strings.ToLower(strings.TrimSpace(v.GetString("backend"))),
		SQLiteDriver: v.GetString("sqlite_driver"),
		PostgresDSN:  v.GetString("postgres_dsn"),
		CatalogFile:  v.GetString("catalog_file"),
		QueryTimeout: v.GetDuration("query_timeout"),
		Port:         v.GetInt("port"),
		DevMode:      v.GetBool("dev_mode"),
		LLM: LLMConfig{
			Enabled: v.GetBool("llm_enabled"),
			BaseURL: v.GetString("llm_base_url"),
			APIKey:  v.GetString("llm_api_key"),
			Model:   v.GetString("llm_model"),
			Timeout: v.GetDuration("llm_timeout"),
		},
		Live: LiveConfig{
			APIKey:       v.GetString("alphavantage_api_key"),
			Universe:     utils.ParseSymbols(v.GetString("live_universe")),
			RequestDelay: v.GetDuration("live_request_delay"),
			Timeout:      v.GetDuration("live_timeout"),
			PerMinute:    v.GetInt("live_per_minute"),
			PerDay:       v.GetInt("live_per_day"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// EnsureDataDir creates the data directory when the SQLite backend needs it
func (c *Config) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	return nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	var problems []string

	switch c.Backend {
	case BackendSQLite:
		if c.SQLiteDriver != "sqlite" && c.SQLiteDriver != "sqlite3" {
			problems = append(problems, fmt.Sprintf("sqlite_driver must be sqlite or sqlite3, got %q", c.SQLiteDriver))
		}
	case BackendPostgres:
		if c.PostgresDSN == "" {
			problems = append(problems, "postgres_dsn is required for the postgres backend")
		}
	case BackendLive:
		if c.Live.APIKey == "" {
			problems = append(problems, "alphavantage_api_key is required for the live backend")
		}
		if len(c.Live.Universe) == 0 {
			problems = append(problems, "live_universe must list at least one symbol")
		}
		if c.Live.RequestDelay < 0 {
			problems = append(problems, "live_request_delay must not be negative")
		}
		if c.Live.Timeout < 0 {
			problems = append(problems, "live_timeout must not be negative")
		}
		if c.Live.PerMinute < 0 || c.Live.PerDay < 0 {
			problems = append(problems, "live rate limits must not be negative")
		}
	default:
		problems = append(problems, fmt.Sprintf("backend must be sqlite, postgres or live, got %q", c.Backend))
	}

	if c.Port <= 0 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("port out of range: %d", c.Port))
	}
	if c.QueryTimeout <= 0 {
		problems = append(problems, "query_timeout must be positive")
	}
	if c.LLM.Enabled {
		if c.LLM.BaseURL == "" || c.LLM.Model == "" {
			problems = append(problems, "llm_base_url and llm_model are required when llm_enabled is set")
		}
		if c.LLM.Timeout <= 0 {
			problems = append(problems, "llm_timeout must be positive")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
