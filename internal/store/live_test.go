package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/screener/internal/catalog"
	"github.com/aristath/screener/internal/clients/alphavantage"
	"github.com/aristath/screener/internal/compiler"
	"github.com/aristath/screener/internal/domain"
)

type fakeProvider struct {
	mu        sync.Mutex
	overviews map[string]*alphavantage.CompanyOverview
	errs      map[string]error
	calls     []string
}

func (p *fakeProvider) GetCompanyOverview(_ context.Context, symbol string) (*alphavantage.CompanyOverview, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, symbol)
	if err, ok := p.errs[symbol]; ok {
		return nil, err
	}
	if o, ok := p.overviews[symbol]; ok {
		return o, nil
	}
	return nil, alphavantage.ErrSymbolNotFound{Symbol: symbol}
}

func overview(symbol, sector string, fields map[string]string) *alphavantage.CompanyOverview {
	all := map[string]string{"Symbol": symbol, "Name": symbol + " Corp", "Sector": sector}
	for k, v := range fields {
		all[k] = v
	}
	return &alphavantage.CompanyOverview{
		Fields: all,
		Symbol: symbol,
		Name:   symbol + " Corp",
		Sector: sector,
	}
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		overviews: map[string]*alphavantage.CompanyOverview{
			"IBM":  overview("IBM", "TECHNOLOGY", map[string]string{"PERatio": "4.5", "MarketCapitalization": "125000000000", "DividendYield": "0.0485"}),
			"MSFT": overview("MSFT", "TECHNOLOGY", map[string]string{"PERatio": "3.2", "MarketCapitalization": "3000000000000", "DividendYield": "0.0072"}),
			"ORCL": overview("ORCL", "TECHNOLOGY", map[string]string{"PERatio": "None", "MarketCapitalization": "300000000000"}),
			"XOM":  overview("XOM", "ENERGY & TRANSPORTATION", map[string]string{"PERatio": "2.1", "MarketCapitalization": "450000000000"}),
		},
		errs: map[string]error{},
	}
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func compileLive(t *testing.T, fs domain.FilterSet) *compiler.CompiledQuery {
	t.Helper()
	q, err := compiler.NewLiveCompiler(catalog.Default()).Compile(fs)
	require.NoError(t, err)
	return q
}

func newLiveStore(p OverviewProvider, rec *sleepRecorder, universe ...string) *LiveStore {
	return NewLiveStore(p, catalog.Default(), LiveConfig{
		Universe: universe,
		Delay:    12 * time.Second,
		Sleep:    rec.sleep,
	}, zerolog.Nop())
}

func itBelowFive() domain.FilterSet {
	return domain.NewFilterSet("IT", []domain.Filter{
		domain.NewFilter("pe_ratio", domain.OpLessThan, domain.NumberValue(5)),
	}, 0, nil)
}

func TestLiveStore_Scenario(t *testing.T) {
	provider := newFakeProvider()
	rec := &sleepRecorder{}
	s := newLiveStore(provider, rec, "IBM", "MSFT", "ORCL", "XOM")

	rows, err := s.Execute(context.Background(), compileLive(t, itBelowFive()))
	require.NoError(t, err)

	// ORCL has no P/E, XOM is not IT; IBM is closest to 5
	assert.Equal(t, []string{"IBM", "MSFT"}, symbols(rows))
	assert.Equal(t, 4.5, rows[0]["pe_ratio"])
	assert.Equal(t, "IT", rows[0]["sector"])
	assert.Contains(t, rows[0], "promoter_holding")
	assert.Nil(t, rows[0]["promoter_holding"])

	assert.Equal(t, []string{"IBM", "MSFT", "ORCL", "XOM"}, provider.calls)
	assert.Equal(t, []time.Duration{12 * time.Second, 12 * time.Second, 12 * time.Second}, rec.delays)
}

func TestLiveStore_ScalesPercentages(t *testing.T) {
	s := newLiveStore(newFakeProvider(), &sleepRecorder{}, "IBM", "MSFT")

	fs := domain.NewFilterSet("", []domain.Filter{
		domain.NewFilter("dividend_yield", domain.OpGreaterThan, domain.NumberValue(4)),
	}, 0, nil)
	rows, err := s.Execute(context.Background(), compileLive(t, fs))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "IBM", rows[0].Symbol())
	assert.InDelta(t, 4.85, rows[0]["dividend_yield"], 1e-9)
}

func TestLiveStore_UnknownSymbolSkipped(t *testing.T) {
	provider := newFakeProvider()
	s := newLiveStore(provider, &sleepRecorder{}, "IBM", "NOPE", "MSFT")

	rows, err := s.Execute(context.Background(), compileLive(t, itBelowFive()))
	require.NoError(t, err)
	assert.Equal(t, []string{"IBM", "MSFT"}, symbols(rows))
}

func TestLiveStore_ProviderFailureDiscardsPartialResults(t *testing.T) {
	for name, cause := range map[string]error{
		"rate limit": alphavantage.ErrRateLimitExceeded{Reason: "daily quota reached"},
		"auth":       alphavantage.ErrInvalidAPIKey{},
		"transport":  errors.New("HTTP request failed: connection reset"),
	} {
		t.Run(name, func(t *testing.T) {
			provider := newFakeProvider()
			provider.errs["MSFT"] = cause
			s := newLiveStore(provider, &sleepRecorder{}, "IBM", "MSFT", "XOM")

			rows, err := s.Execute(context.Background(), compileLive(t, itBelowFive()))
			require.Error(t, err)
			assert.Nil(t, rows)
			assert.True(t, domain.IsStorageError(err))
			assert.ErrorIs(t, err, cause)
			assert.Equal(t, []string{"IBM", "MSFT"}, provider.calls)
		})
	}
}

func TestLiveStore_CancelledDuringDelay(t *testing.T) {
	provider := newFakeProvider()
	ctx, cancel := context.WithCancel(context.Background())

	s := NewLiveStore(provider, catalog.Default(), LiveConfig{
		Universe: []string{"IBM", "MSFT"},
		Delay:    time.Hour,
		Sleep: func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		},
	}, zerolog.Nop())

	rows, err := s.Execute(ctx, compileLive(t, itBelowFive()))
	require.Error(t, err)
	assert.Nil(t, rows)
	assert.True(t, domain.IsStorageError(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"IBM"}, provider.calls)
}

func TestLiveStore_RealSleeperHonoursContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := sleepContext(ctx, time.Minute)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)

	assert.NoError(t, sleepContext(context.Background(), 0))
}

func TestLiveStore_Limit(t *testing.T) {
	s := newLiveStore(newFakeProvider(), &sleepRecorder{}, "IBM", "MSFT", "ORCL", "XOM")

	fs := domain.NewFilterSet("", nil, 2, nil)
	rows, err := s.Execute(context.Background(), compileLive(t, fs))
	require.NoError(t, err)

	// No numeric threshold: market cap descending
	assert.Equal(t, []string{"MSFT", "XOM"}, symbols(rows))
}

func TestLiveStore_RejectsForeignQueries(t *testing.T) {
	s := newLiveStore(newFakeProvider(), &sleepRecorder{}, "IBM")

	_, err := s.Execute(context.Background(), &compiler.CompiledQuery{Dialect: compiler.DialectSQLite, Text: "SELECT 1"})
	assert.True(t, domain.IsStorageError(err))

	_, err = s.Execute(context.Background(), &compiler.CompiledQuery{Dialect: compiler.DialectLive})
	assert.True(t, domain.IsStorageError(err))
}

func TestNewLiveStore_NormalizesUniverse(t *testing.T) {
	s := newLiveStore(newFakeProvider(), &sleepRecorder{}, " ibm", "MSFT", "", "IBM")
	assert.Equal(t, []string{"IBM", "MSFT"}, s.Universe())
	assert.Equal(t, "live", s.Backend())
}

func TestRecord(t *testing.T) {
	cat := catalog.Default()
	rec := NewRecord(cat, overview("IBM", "TECHNOLOGY", map[string]string{
		"PERatio":       "20.5",
		"ProfitMargin":  "None",
		"Industry":      "COMPUTER & OFFICE EQUIPMENT",
		"LatestQuarter": "2024-03-31",
	}))

	pe, err := rec.Number("pe_ratio")
	require.NoError(t, err)
	assert.Equal(t, 20.5, pe)

	_, err = rec.Number("profit_margin")
	var missing ErrFieldMissing
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "profit_margin", missing.Field)

	_, err = rec.Number("promoter_holding")
	assert.ErrorAs(t, err, &missing)

	industry, err := rec.Text("industry")
	require.NoError(t, err)
	assert.Equal(t, "COMPUTER & OFFICE EQUIPMENT", industry)

	quarter, err := rec.Text("updated_at")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-31", quarter)

	row := rec.Row(cat)
	assert.Equal(t, "IT", row[cat.SectorColumn()])
	assert.Equal(t, 20.5, row["pe_ratio"])

	other := NewRecord(cat, overview("XYZ", "REAL ESTATE", nil))
	assert.Equal(t, "REAL ESTATE", other.Row(cat)[cat.SectorColumn()])
}

func TestLiveStore_Matches(t *testing.T) {
	cat := catalog.Default()
	s := newLiveStore(newFakeProvider(), &sleepRecorder{}, "IBM")
	rec := NewRecord(cat, overview("IBM", "TECHNOLOGY", map[string]string{
		"PERatio":  "20.5",
		"Industry": "Computer & Office Equipment",
	}))

	tests := []struct {
		name string
		fs   domain.FilterSet
		want bool
	}{
		{"sector by provider name", domain.NewFilterSet("IT", nil, 0, nil), true},
		{"other sector", domain.NewFilterSet("Banking", nil, 0, nil), false},
		{"numeric pass", domain.NewFilterSet("", []domain.Filter{domain.NewFilter("pe_ratio", domain.OpLessOrEqual, domain.NumberValue(20.5))}, 0, nil), true},
		{"numeric fail", domain.NewFilterSet("", []domain.Filter{domain.NewFilter("pe_ratio", domain.OpLessThan, domain.NumberValue(20))}, 0, nil), false},
		{"missing field excludes", domain.NewFilterSet("", []domain.Filter{domain.NewFilter("beta", domain.OpGreaterThan, domain.NumberValue(0))}, 0, nil), false},
		{"missing field excludes not-equal too", domain.NewFilterSet("", []domain.Filter{domain.NewFilter("beta", domain.OpNotEqual, domain.NumberValue(1))}, 0, nil), false},
		{"text case-insensitive", domain.NewFilterSet("", []domain.Filter{domain.NewFilter("industry", domain.OpEqual, domain.TextValue("computer & office equipment"))}, 0, nil), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Matches(rec, tt.fs))
		})
	}
}
