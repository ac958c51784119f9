// Package compiler turns validated filter sets into executable queries.
//
// Every compiler re-checks the filter set against the catalog before emitting
// anything. Values never appear in query text; they travel only as parameters.
package compiler

import (
	"github.com/aristath/screener/internal/domain"
)

// Dialect identifies the backend a compiled query targets
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
	DialectLive     Dialect = "live"
)

// ParseDialect resolves a configured dialect name
func ParseDialect(name string) (Dialect, bool) {
	switch Dialect(name) {
	case DialectPostgres, DialectSQLite, DialectLive:
		return Dialect(name), true
	}
	return "", false
}

// CompiledQuery is the output of a compiler. SQL dialects fill Text and
// Params; the live dialect also carries the filter set as Predicate.
type CompiledQuery struct {
	Predicate *domain.FilterSet `json:"predicate,omitempty"`
	Dialect   Dialect           `json:"dialect"`
	Text      string            `json:"text"`
	Params    []any             `json:"params"`
	Limit     int               `json:"limit"`
}

// Compiler compiles a filter set for one dialect
type Compiler interface {
	Compile(fs domain.FilterSet) (*CompiledQuery, error)
	Dialect() Dialect
}
