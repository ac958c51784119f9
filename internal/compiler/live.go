package compiler

import (
	"strconv"
	"strings"

	"github.com/aristath/screener/internal/catalog"
	"github.com/aristath/screener/internal/domain"
)

// LiveCompiler targets the live provider backend. Instead of SQL it hands the
// validated filter set to the store as an in-memory predicate. Text is a
// placeholder rendering for display only.
type LiveCompiler struct {
	catalog *catalog.Catalog
}

// NewLiveCompiler creates a live-dialect compiler
func NewLiveCompiler(cat *catalog.Catalog) *LiveCompiler {
	return &LiveCompiler{catalog: cat}
}

// Dialect implements Compiler
func (c *LiveCompiler) Dialect() Dialect { return DialectLive }

// Compile implements Compiler. Every field must be available from the
// provider and quarter ranges are unsupported.
func (c *LiveCompiler) Compile(fs domain.FilterSet) (*CompiledQuery, error) {
	if err := Validate(c.catalog, fs); err != nil {
		return nil, err
	}
	if fs.QuarterRange() != nil {
		return nil, &domain.CompilationError{Reason: "quarter ranges are not available from the live provider"}
	}

	var conditions []string
	var params []any
	if fs.HasSector() {
		conditions = append(conditions, c.catalog.SectorColumn()+" = ?")
		params = append(params, fs.Sector())
	}
	for _, f := range fs.Filters() {
		field, _ := c.catalog.Field(f.Field())
		if field.ProviderKey == "" {
			return nil, &domain.CompilationError{Field: f.Field(), Reason: "field is not available from the live provider"}
		}
		conditions = append(conditions, field.Name+" "+sqlOperators[f.Operator()]+" ?")
		params = append(params, f.Value().Any())
	}

	limit := domain.ClampLimit(fs.Limit())
	text := "LIVE"
	if len(conditions) > 0 {
		text += " WHERE " + strings.Join(conditions, " AND ")
	}
	text += " LIMIT " + strconv.Itoa(limit)

	predicate := fs
	return &CompiledQuery{
		Predicate: &predicate,
		Dialect:   DialectLive,
		Text:      text,
		Params:    params,
		Limit:     limit,
	}, nil
}

// New returns the compiler for a dialect
func New(cat *catalog.Catalog, dialect Dialect, opts ...Option) (Compiler, error) {
	if dialect == DialectLive {
		return NewLiveCompiler(cat), nil
	}
	return NewSQLCompiler(cat, dialect, opts...)
}
