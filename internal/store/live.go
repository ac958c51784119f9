package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/screener/internal/catalog"
	"github.com/aristath/screener/internal/clients/alphavantage"
	"github.com/aristath/screener/internal/compiler"
	"github.com/aristath/screener/internal/domain"
)

// DefaultLiveDelay spaces provider requests to stay under 5 per minute
const DefaultLiveDelay = 12 * time.Second

// OverviewProvider fetches company fundamentals by symbol
type OverviewProvider interface {
	GetCompanyOverview(ctx context.Context, symbol string) (*alphavantage.CompanyOverview, error)
}

// Sleeper pauses between provider requests. It must return ctx.Err() when
// the context ends first.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// LiveConfig configures a LiveStore
type LiveConfig struct {
	Universe []string
	Delay    time.Duration
	Timeout  time.Duration // zero means no store-level deadline
	Sleep    Sleeper
}

// ErrFieldMissing reports that the provider returned no usable value for a field
type ErrFieldMissing struct {
	Field string
}

func (e ErrFieldMissing) Error() string {
	return fmt.Sprintf("field %s missing from provider data", e.Field)
}

// Record is one symbol's provider data coerced into catalog fields
type Record struct {
	Symbol string
	Name   string
	Sector string
	values map[string]any
}

// NewRecord coerces an overview into catalog units. Fields without a
// provider key, or with unparseable values, are left out.
func NewRecord(cat *catalog.Catalog, o *alphavantage.CompanyOverview) *Record {
	rec := &Record{
		Symbol: o.Symbol,
		Name:   o.Name,
		Sector: o.Sector,
		values: make(map[string]any),
	}
	for _, f := range cat.Fields() {
		if f.ProviderKey == "" {
			continue
		}
		switch f.Type {
		case catalog.TypeNumber:
			if v, ok := o.Number(f.ProviderKey); ok {
				rec.values[f.Name] = f.ScaleProviderValue(v)
			}
		case catalog.TypeText:
			if raw := strings.TrimSpace(o.Fields[f.ProviderKey]); raw != "" && !strings.EqualFold(raw, "none") {
				rec.values[f.Name] = raw
			}
		case catalog.TypeDate:
			raw := strings.TrimSpace(o.Fields[f.ProviderKey])
			if _, err := time.Parse(catalog.DateLayout, raw); err == nil {
				rec.values[f.Name] = raw
			}
		}
	}
	return rec
}

// Number returns a numeric field
func (r *Record) Number(field string) (float64, error) {
	v, ok := r.values[field].(float64)
	if !ok {
		return 0, ErrFieldMissing{Field: field}
	}
	return v, nil
}

// Text returns a text or date field
func (r *Record) Text(field string) (string, error) {
	v, ok := r.values[field].(string)
	if !ok {
		return "", ErrFieldMissing{Field: field}
	}
	return v, nil
}

// Row renders the record with the same columns a SQL backend selects. The
// provider's sector label is reported under the catalog's sector name.
func (r *Record) Row(cat *catalog.Catalog) Row {
	row := Row{
		"symbol":           r.Symbol,
		"name":             r.Name,
		cat.SectorColumn(): cat.SectorForProvider(r.Sector),
	}
	for _, f := range cat.Fields() {
		row[f.Column] = r.values[f.Name]
	}
	return row
}

// LiveStore evaluates live-dialect predicates against provider data, one
// symbol at a time. Requests are paced by a fixed delay; the provider client
// carries the process-wide rate limiter.
type LiveStore struct {
	provider OverviewProvider
	catalog  *catalog.Catalog
	universe []string
	delay    time.Duration
	timeout  time.Duration
	sleep    Sleeper
	log      zerolog.Logger
}

// NewLiveStore creates a live store over the given symbol universe
func NewLiveStore(provider OverviewProvider, cat *catalog.Catalog, cfg LiveConfig, log zerolog.Logger) *LiveStore {
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}

	universe := make([]string, 0, len(cfg.Universe))
	seen := make(map[string]bool)
	for _, s := range cfg.Universe {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		universe = append(universe, s)
	}

	return &LiveStore{
		provider: provider,
		catalog:  cat,
		universe: universe,
		delay:    cfg.Delay,
		timeout:  cfg.Timeout,
		sleep:    cfg.Sleep,
		log:      log.With().Str("component", "live_store").Logger(),
	}
}

// Backend implements Executor
func (s *LiveStore) Backend() string { return "live" }

// Universe returns the symbols scanned on every execution
func (s *LiveStore) Universe() []string {
	return append([]string(nil), s.universe...)
}

// Timeout returns the deadline applied to each execution, zero for none
func (s *LiveStore) Timeout() time.Duration { return s.timeout }

// Execute implements Executor. Unknown symbols are skipped; any other
// provider failure aborts the scan and discards what was collected.
func (s *LiveStore) Execute(ctx context.Context, q *compiler.CompiledQuery) ([]Row, error) {
	if err := checkDialect(q, compiler.DialectLive); err != nil {
		return nil, domain.NewStorageError(s.Backend(), "execute", err)
	}
	if q.Predicate == nil {
		return nil, domain.NewStorageError(s.Backend(), "execute", errors.New("live query has no predicate"))
	}
	fs := *q.Predicate

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	var matched []*Record
	for i, symbol := range s.universe {
		if i > 0 {
			if err := s.sleep(ctx, s.delay); err != nil {
				return nil, domain.NewStorageError(s.Backend(), "wait", err)
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, domain.NewStorageError(s.Backend(), "wait", err)
		}

		overview, err := s.provider.GetCompanyOverview(ctx, symbol)
		if err != nil {
			var notFound alphavantage.ErrSymbolNotFound
			if errors.As(err, &notFound) {
				s.log.Warn().Str("symbol", symbol).Msg("Symbol not found at provider, skipping")
				continue
			}
			s.log.Error().Err(err).Str("symbol", symbol).Msg("Provider request failed")
			return nil, domain.NewStorageError(s.Backend(), "fetch "+symbol, err)
		}
		if overview.Symbol == "" {
			overview.Symbol = symbol
		}

		rec := NewRecord(s.catalog, overview)
		if s.Matches(rec, fs) {
			matched = append(matched, rec)
		}
	}

	s.order(matched, fs)

	limit := q.Limit
	if limit <= 0 {
		limit = domain.ClampLimit(fs.Limit())
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}

	rows := make([]Row, 0, len(matched))
	for _, rec := range matched {
		rows = append(rows, rec.Row(s.catalog))
	}

	s.log.Info().
		Int("scanned", len(s.universe)).
		Int("rows", len(rows)).
		Dur("duration", time.Since(start)).
		Msg("Live scan complete")
	return rows, nil
}

// Matches reports whether a record satisfies the sector and every filter.
// A filter on a field the record lacks excludes the record.
func (s *LiveStore) Matches(rec *Record, fs domain.FilterSet) bool {
	if fs.HasSector() && !s.catalog.MatchProviderSector(fs.Sector(), rec.Sector) {
		return false
	}
	for _, f := range fs.Filters() {
		field, ok := s.catalog.Field(f.Field())
		if !ok {
			return false
		}
		if field.Type == catalog.TypeNumber {
			v, err := rec.Number(field.Name)
			if err != nil || !f.Value().IsNumber() {
				return false
			}
			if !f.Operator().Compare(v, f.Value().Float()) {
				return false
			}
			continue
		}
		v, err := rec.Text(field.Name)
		if err != nil || f.Value().IsNumber() {
			return false
		}
		if field.Type == catalog.TypeText {
			v = strings.ToLower(v)
			if !f.Operator().CompareText(v, strings.ToLower(f.Value().Text())) {
				return false
			}
			continue
		}
		if !f.Operator().CompareText(v, f.Value().Text()) {
			return false
		}
	}
	return true
}

// order sorts like the SQL backends: closeness to the first numeric
// threshold, then significance descending with missing values last
func (s *LiveStore) order(records []*Record, fs domain.FilterSet) {
	significance := ""
	for _, f := range s.catalog.Fields() {
		if f.Column == s.catalog.SignificanceColumn() {
			significance = f.Name
			break
		}
	}

	closeness := func(*Record) float64 { return 0 }
	if filters := fs.Filters(); len(filters) > 0 && filters[0].Value().IsNumber() {
		name, target := filters[0].Field(), filters[0].Value().Float()
		closeness = func(r *Record) float64 {
			v, err := r.Number(name)
			if err != nil {
				return math.Inf(1)
			}
			return math.Abs(v - target)
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		ci, cj := closeness(records[i]), closeness(records[j])
		if ci != cj {
			return ci < cj
		}
		si, errI := records[i].Number(significance)
		sj, errJ := records[j].Number(significance)
		switch {
		case errI != nil:
			return false
		case errJ != nil:
			return true
		default:
			return si > sj
		}
	})
}
