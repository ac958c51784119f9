package di

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/screener/internal/clients/alphavantage"
	"github.com/aristath/screener/internal/config"
	"github.com/aristath/screener/internal/database"
	"github.com/aristath/screener/internal/ratelimit"
	"github.com/aristath/screener/internal/store"
)

// InitializeStore opens the configured backend and populates the storage
// fields of the container
func InitializeStore(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	switch cfg.Backend {
	case config.BackendSQLite:
		return initializeSQLite(ctx, container, cfg, log)
	case config.BackendPostgres:
		return initializePostgres(ctx, container, cfg, log)
	case config.BackendLive:
		initializeLive(container, cfg, log)
		return nil
	default:
		return fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

func initializeSQLite(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	if err := cfg.EnsureDataDir(); err != nil {
		return err
	}

	db, err := database.New(database.Config{
		Path:    cfg.SQLitePath(),
		Profile: database.ProfileStandard,
		Name:    "fundamentals",
		Driver:  cfg.SQLiteDriver,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize fundamentals database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return fmt.Errorf("failed to migrate fundamentals database: %w", err)
	}

	// Dev mode always starts from the demo universe
	if cfg.DevMode {
		if err := database.SeedFundamentals(ctx, db, database.DemoFundamentals(), time.Now()); err != nil {
			db.Close()
			return fmt.Errorf("failed to seed fundamentals database: %w", err)
		}
		log.Info().Msg("Seeded demo fundamentals")
	}

	s := store.NewSQLStore(db, cfg.QueryTimeout, log)
	container.FundamentalsDB = db
	container.Store = s
	container.Health = s

	log.Info().Str("path", db.Path()).Str("driver", db.Driver()).Msg("SQLite backend ready")
	return nil
}

func initializePostgres(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	pg, err := store.NewPostgresStore(ctx, cfg.PostgresDSN, cfg.QueryTimeout, log)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return fmt.Errorf("failed to migrate postgres: %w", err)
	}

	container.Postgres = pg
	container.Store = pg
	container.Health = pg

	log.Info().Msg("Postgres backend ready")
	return nil
}

func initializeLive(container *Container, cfg *config.Config, log zerolog.Logger) {
	limiter := ratelimit.New(ratelimit.Config{
		PerMinute: cfg.Live.PerMinute,
		PerDay:    cfg.Live.PerDay,
	}, nil)
	client := alphavantage.NewClient(cfg.Live.APIKey, limiter, log)

	container.Limiter = limiter
	container.LiveClient = client
	container.Store = store.NewLiveStore(client, container.Catalog, store.LiveConfig{
		Universe: cfg.Live.Universe,
		Delay:    cfg.Live.RequestDelay,
		Timeout:  cfg.LiveTimeout(),
	}, log)

	log.Info().
		Int("universe", len(cfg.Live.Universe)).
		Dur("delay", cfg.Live.RequestDelay).
		Dur("timeout", cfg.LiveTimeout()).
		Msg("Live backend ready")
}
