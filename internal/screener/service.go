// Package screener runs the query pipeline: parse, compile, execute.
package screener

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/screener/internal/compiler"
	"github.com/aristath/screener/internal/domain"
	"github.com/aristath/screener/internal/parser"
	"github.com/aristath/screener/internal/store"
)

// QueryParser turns query text into a filter set, reporting dropped clauses
type QueryParser interface {
	ParseDetailed(ctx context.Context, query string) (*parser.Parsed, error)
}

// Result is the outcome of one pipeline run
type Result struct {
	RunID          string                  `json:"runId"`
	FilterSet      domain.FilterSet        `json:"filterSet"`
	Query          *compiler.CompiledQuery `json:"query"`
	Rows           []store.Row             `json:"rows"`
	DroppedClauses []string                `json:"droppedClauses,omitempty"`
	Duration       time.Duration           `json:"-"`
	DurationMs     int64                   `json:"durationMs"`
}

// Service wires a parser, a compiler and a store together
type Service struct {
	parser   QueryParser
	compiler compiler.Compiler
	store    store.Executor
	newID    func() string
	log      zerolog.Logger
}

// NewService creates the pipeline service
func NewService(p QueryParser, c compiler.Compiler, s store.Executor, log zerolog.Logger) *Service {
	return &Service{
		parser:   p,
		compiler: c,
		store:    s,
		newID:    uuid.NewString,
		log:      log.With().Str("component", "screener").Logger(),
	}
}

// Dialect returns the dialect queries are compiled for
func (s *Service) Dialect() compiler.Dialect {
	return s.compiler.Dialect()
}

// Backend returns the name of the data store
func (s *Service) Backend() string {
	return s.store.Backend()
}

// Parse turns query text into a filter set
func (s *Service) Parse(ctx context.Context, query string) (*parser.Parsed, error) {
	return s.parser.ParseDetailed(ctx, query)
}

// Compile turns a filter set into a query for the configured dialect
func (s *Service) Compile(fs domain.FilterSet) (*compiler.CompiledQuery, error) {
	return s.compiler.Compile(fs)
}

// Execute runs a compiled query. Failures are always *domain.StorageError.
func (s *Service) Execute(ctx context.Context, q *compiler.CompiledQuery) ([]store.Row, error) {
	rows, err := s.store.Execute(ctx, q)
	if err != nil {
		if !domain.IsStorageError(err) {
			err = domain.NewStorageError(s.store.Backend(), "execute", err)
		}
		return nil, err
	}
	return rows, nil
}

// Run parses, compiles and executes a query
func (s *Service) Run(ctx context.Context, query string) (*Result, error) {
	runID := s.newID()
	log := s.log.With().Str("run_id", runID).Logger()
	start := time.Now()

	parsed, err := s.Parse(ctx, query)
	if err != nil {
		log.Info().Err(err).Msg("Query not understood")
		return nil, err
	}

	compiled, err := s.Compile(parsed.FilterSet)
	if err != nil {
		// Parser output that fails compilation is a bug, not user error
		log.Error().Err(err).Interface("filter_set", parsed.FilterSet).Msg("Compilation failed")
		return nil, err
	}

	rows, err := s.Execute(ctx, compiled)
	if err != nil {
		log.Error().Err(err).Str("backend", s.store.Backend()).Msg("Query execution failed")
		return nil, err
	}

	elapsed := time.Since(start)
	log.Info().
		Str("dialect", string(compiled.Dialect)).
		Int("filters", len(parsed.FilterSet.Filters())).
		Int("dropped", len(parsed.Dropped)).
		Int("rows", len(rows)).
		Dur("duration", elapsed).
		Msg("Screener run complete")

	return &Result{
		RunID:          runID,
		FilterSet:      parsed.FilterSet,
		Query:          compiled,
		Rows:           rows,
		DroppedClauses: parsed.Dropped,
		Duration:       elapsed,
		DurationMs:     elapsed.Milliseconds(),
	}, nil
}

// User-facing messages per error class
const (
	MessageCompilation = "could not process query"
	MessageStorage     = "search is temporarily unavailable"
	MessageInternal    = "something went wrong"
)

// UserMessage renders an error for end users without leaking internals.
// Parse errors carry guidance on the supported query shape.
func UserMessage(err error) string {
	var parseErr *domain.ParseError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &parseErr):
		return parseErr.Error()
	case domain.IsCompilationError(err):
		return MessageCompilation
	case domain.IsStorageError(err), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return MessageStorage
	default:
		return MessageInternal
	}
}
