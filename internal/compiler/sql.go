package compiler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/screener/internal/catalog"
	"github.com/aristath/screener/internal/domain"
)

// Revenue history relation used by quarter-range conditions
const quarterlyRelation = "quarterly_financials"

// sqlOperators is the only source of operator text in emitted queries
var sqlOperators = map[domain.Operator]string{
	domain.OpLessThan:       "<",
	domain.OpLessOrEqual:    "<=",
	domain.OpGreaterThan:    ">",
	domain.OpGreaterOrEqual: ">=",
	domain.OpEqual:          "=",
	domain.OpNotEqual:       "<>",
}

// Option configures a SQLCompiler
type Option func(*SQLCompiler)

// WithClock sets the time source used for quarter-range cutoffs
func WithClock(now func() time.Time) Option {
	return func(c *SQLCompiler) {
		c.now = now
	}
}

// SQLCompiler emits parameterized SELECT statements. Postgres uses numbered
// placeholders ($1, $2) and SQLite positional ones (?).
type SQLCompiler struct {
	catalog *catalog.Catalog
	now     func() time.Time
	dialect Dialect
}

// NewSQLCompiler creates a compiler for the postgres or sqlite dialect
func NewSQLCompiler(cat *catalog.Catalog, dialect Dialect, opts ...Option) (*SQLCompiler, error) {
	if dialect != DialectPostgres && dialect != DialectSQLite {
		return nil, fmt.Errorf("dialect %q is not a SQL dialect", dialect)
	}
	c := &SQLCompiler{
		catalog: cat,
		now:     time.Now,
		dialect: dialect,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Dialect implements Compiler
func (c *SQLCompiler) Dialect() Dialect { return c.dialect }

// statement accumulates conditions and parameters in placeholder order
type statement struct {
	dialect    Dialect
	conditions []string
	params     []any
}

// bind appends a parameter and returns its placeholder
func (s *statement) bind(v any) string {
	s.params = append(s.params, v)
	if s.dialect == DialectPostgres {
		return "$" + strconv.Itoa(len(s.params))
	}
	return "?"
}

// Compile implements Compiler
func (c *SQLCompiler) Compile(fs domain.FilterSet) (*CompiledQuery, error) {
	if err := Validate(c.catalog, fs); err != nil {
		return nil, err
	}

	st := &statement{dialect: c.dialect}

	if fs.HasSector() {
		st.conditions = append(st.conditions, c.catalog.SectorColumn()+" = "+st.bind(fs.Sector()))
	}

	// Placeholder of the first filter when it is numeric, for ordering
	orderColumn, orderPlaceholder := "", ""
	var orderValue any
	for i, f := range fs.Filters() {
		column, _ := c.catalog.ColumnFor(f.Field())
		op, ok := sqlOperators[f.Operator()]
		if !ok {
			return nil, &domain.CompilationError{Field: f.Field(), Operator: string(f.Operator()), Reason: "operator is not allowed"}
		}
		placeholder := st.bind(c.param(f))
		st.conditions = append(st.conditions, column+" "+op+" "+placeholder)

		if i == 0 && f.Value().IsNumber() {
			orderColumn, orderPlaceholder, orderValue = column, placeholder, f.Value().Any()
		}
	}

	if qr := fs.QuarterRange(); qr != nil {
		st.conditions = append(st.conditions, c.quarterCondition(st, qr))
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(c.catalog.SelectColumns(), ", "))
	b.WriteString("\nFROM ")
	b.WriteString(c.catalog.Relation())
	if len(st.conditions) > 0 {
		b.WriteString("\nWHERE ")
		b.WriteString(strings.Join(st.conditions, " AND "))
	}

	significance := c.catalog.SignificanceColumn() + " DESC NULLS LAST"
	b.WriteString("\nORDER BY ")
	if orderColumn != "" {
		// Positional placeholders cannot be reused, so SQLite binds the value again
		if c.dialect == DialectSQLite {
			orderPlaceholder = st.bind(orderValue)
		}
		b.WriteString("ABS(" + orderColumn + " - " + orderPlaceholder + ") ASC, ")
	}
	b.WriteString(significance)

	limit := domain.ClampLimit(fs.Limit())
	b.WriteString("\nLIMIT ")
	b.WriteString(strconv.Itoa(limit))

	return &CompiledQuery{
		Dialect: c.dialect,
		Text:    b.String(),
		Params:  st.params,
		Limit:   limit,
	}, nil
}

// param converts a filter value into the parameter type the driver expects
func (c *SQLCompiler) param(f domain.Filter) any {
	field, _ := c.catalog.Field(f.Field())
	if field.Type == catalog.TypeDate && c.dialect == DialectPostgres {
		t, _ := time.Parse(catalog.DateLayout, f.Value().Text())
		return t
	}
	return f.Value().Any()
}

// quarterCondition keeps symbols with positive revenue in each of the most
// recent N quarters
func (c *SQLCompiler) quarterCondition(st *statement, qr *domain.QuarterRange) string {
	quarters := qr.Quarters()
	cutoff := c.now().UTC().AddDate(0, -3*quarters, 0)
	cutoff = time.Date(cutoff.Year(), cutoff.Month(), cutoff.Day(), 0, 0, 0, 0, time.UTC)

	var cutoffParam any = cutoff.Format(catalog.DateLayout)
	if c.dialect == DialectPostgres {
		cutoffParam = cutoff
	}

	return "symbol IN (SELECT symbol FROM " + quarterlyRelation +
		" WHERE quarter_end >= " + st.bind(cutoffParam) +
		" GROUP BY symbol HAVING COUNT(*) >= " + st.bind(int64(quarters)) +
		" AND MIN(revenue) > 0)"
}
