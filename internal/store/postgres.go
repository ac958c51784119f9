package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/aristath/screener/internal/compiler"
	"github.com/aristath/screener/internal/database"
	"github.com/aristath/screener/internal/domain"
	"github.com/aristath/screener/internal/utils"
)

// pgQuerier is the subset of pgxpool.Pool the store needs
type pgQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresStore executes postgres-dialect queries through a connection pool
type PostgresStore struct {
	pool    *pgxpool.Pool
	querier pgQuerier
	timeout time.Duration
	log     zerolog.Logger
}

// NewPostgresStore connects to dsn and verifies the connection
func NewPostgresStore(ctx context.Context, dsn string, timeout time.Duration, log zerolog.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, domain.NewStorageError("postgres", "connect", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, domain.NewStorageError("postgres", "ping", err)
	}

	s := newPostgresStore(pool, timeout, log)
	s.pool = pool
	return s, nil
}

func newPostgresStore(q pgQuerier, timeout time.Duration, log zerolog.Logger) *PostgresStore {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &PostgresStore{
		querier: q,
		timeout: timeout,
		log:     log.With().Str("component", "postgres_store").Logger(),
	}
}

// Backend implements Executor
func (s *PostgresStore) Backend() string { return "postgres" }

// Migrate creates the fundamentals tables when missing
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if s.pool == nil {
		return fmt.Errorf("postgres store has no pool")
	}
	ddl, err := database.PostgresSchema("fundamentals")
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return domain.NewStorageError(s.Backend(), "migrate", err)
	}
	s.log.Info().Msg("Postgres schema applied")
	return nil
}

// Close releases the pool
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping checks the database is reachable
func (s *PostgresStore) Ping(ctx context.Context) error {
	if s.pool == nil {
		return nil
	}
	if err := s.pool.Ping(ctx); err != nil {
		return domain.NewStorageError(s.Backend(), "ping", err)
	}
	return nil
}

// Execute implements Executor
func (s *PostgresStore) Execute(ctx context.Context, q *compiler.CompiledQuery) ([]Row, error) {
	if err := checkDialect(q, compiler.DialectPostgres); err != nil {
		return nil, domain.NewStorageError(s.Backend(), "execute", err)
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	done := utils.MeasureQuery(s.Backend(), s.log)
	rows, err := s.querier.Query(ctx, q.Text, q.Params...)
	if err != nil {
		s.log.Error().Err(err).Msg("Query failed")
		return nil, domain.NewStorageError(s.Backend(), "query", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	result := make([]Row, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			s.log.Error().Err(err).Msg("Decoding row failed")
			return nil, domain.NewStorageError(s.Backend(), "scan", err)
		}
		row := make(Row, len(fields))
		for i, fd := range fields {
			if i < len(values) {
				row[fd.Name] = pgValue(values[i])
			}
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		s.log.Error().Err(err).Msg("Reading query results failed")
		return nil, domain.NewStorageError(s.Backend(), "scan", err)
	}

	done(len(result))
	return result, nil
}

// pgValue converts pgx-decoded values, NUMERIC in particular, to plain Go types
func pgValue(v any) any {
	switch val := v.(type) {
	case pgtype.Numeric:
		if !val.Valid {
			return nil
		}
		f, err := val.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case pgtype.Date:
		if !val.Valid {
			return nil
		}
		return normalizeValue(val.Time)
	default:
		return normalizeValue(v)
	}
}
