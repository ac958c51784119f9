// Package store executes compiled queries against a backend and returns rows.
//
// Every failure leaves this package as a *domain.StorageError so callers can
// tell infrastructure problems apart from bad input.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/screener/internal/catalog"
	"github.com/aristath/screener/internal/compiler"
)

// DefaultTimeout bounds a single SQL execution
const DefaultTimeout = 5 * time.Second

// Row is one result row keyed by column name
type Row map[string]any

// Symbol returns the row's symbol column, or "" when absent
func (r Row) Symbol() string {
	s, _ := r["symbol"].(string)
	return s
}

// Executor runs a compiled query
type Executor interface {
	Execute(ctx context.Context, q *compiler.CompiledQuery) ([]Row, error)
	Backend() string
}

// checkDialect rejects queries compiled for another backend
func checkDialect(q *compiler.CompiledQuery, want compiler.Dialect) error {
	if q == nil {
		return fmt.Errorf("no compiled query")
	}
	if q.Dialect != want {
		return fmt.Errorf("query compiled for %s, store expects %s", q.Dialect, want)
	}
	return nil
}

// withTimeout applies the per-call timeout unless the caller's deadline is sooner
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// scanRows reads every row into a column-keyed map
func scanRows(rows *sql.Rows) ([]Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	result := make([]Row, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return result, nil
}

// normalizeValue maps driver types onto the JSON-friendly set every backend
// returns: string, float64, int64, bool and nil
func normalizeValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		return val.UTC().Format(catalog.DateLayout)
	case float32:
		return float64(val)
	case int:
		return int64(val)
	case int32:
		return int64(val)
	default:
		return v
	}
}
