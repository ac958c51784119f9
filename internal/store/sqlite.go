package store

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/screener/internal/compiler"
	"github.com/aristath/screener/internal/database"
	"github.com/aristath/screener/internal/domain"
	"github.com/aristath/screener/internal/utils"
)

// SQLStore executes sqlite-dialect queries against the fundamentals database
type SQLStore struct {
	db      *database.DB
	timeout time.Duration
	log     zerolog.Logger
}

// NewSQLStore creates a SQLite-backed store. A zero timeout uses DefaultTimeout.
func NewSQLStore(db *database.DB, timeout time.Duration, log zerolog.Logger) *SQLStore {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &SQLStore{
		db:      db,
		timeout: timeout,
		log:     log.With().Str("component", "sqlite_store").Logger(),
	}
}

// Backend implements Executor
func (s *SQLStore) Backend() string { return "sqlite" }

// Execute implements Executor
func (s *SQLStore) Execute(ctx context.Context, q *compiler.CompiledQuery) ([]Row, error) {
	if err := checkDialect(q, compiler.DialectSQLite); err != nil {
		return nil, domain.NewStorageError(s.Backend(), "execute", err)
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	done := utils.MeasureQuery(s.Backend(), s.log)
	rows, err := s.db.QueryContext(ctx, q.Text, q.Params...)
	if err != nil {
		s.log.Error().Err(err).Str("db", s.db.Name()).Msg("Query failed")
		return nil, domain.NewStorageError(s.Backend(), "query", err)
	}
	defer rows.Close()

	result, err := scanRows(rows)
	if err != nil {
		s.log.Error().Err(err).Str("db", s.db.Name()).Msg("Reading query results failed")
		return nil, domain.NewStorageError(s.Backend(), "scan", err)
	}

	done(len(result))
	return result, nil
}

// Ping checks the database is reachable
func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.QuickCheck(ctx); err != nil {
		return domain.NewStorageError(s.Backend(), "ping", err)
	}
	return nil
}
