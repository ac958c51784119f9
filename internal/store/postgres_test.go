package store

import (
	"context"
	"errors"
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/screener/internal/catalog"
	"github.com/aristath/screener/internal/compiler"
	"github.com/aristath/screener/internal/domain"
	testutil "github.com/aristath/screener/internal/testing"
)

type fakeRows struct {
	fields []pgconn.FieldDescription
	data   [][]any
	pos    int
	err    error
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return r.fields }
func (r *fakeRows) Scan(...any) error                            { return errors.New("scan not supported") }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Values() ([]any, error) {
	return r.data[r.pos-1], nil
}

type fakeQuerier struct {
	rows     *fakeRows
	err      error
	gotSQL   string
	gotArgs  []any
	deadline bool
}

func (q *fakeQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	q.gotSQL, q.gotArgs = sql, args
	_, q.deadline = ctx.Deadline()
	if q.err != nil {
		return nil, q.err
	}
	return q.rows, nil
}

func compilePostgres(t *testing.T, fs domain.FilterSet) *compiler.CompiledQuery {
	t.Helper()
	c, err := compiler.NewSQLCompiler(catalog.Default(), compiler.DialectPostgres, compiler.WithClock(testutil.FixedClock()))
	require.NoError(t, err)
	q, err := c.Compile(fs)
	require.NoError(t, err)
	return q
}

func TestPostgresStore_Execute(t *testing.T) {
	q := &fakeQuerier{rows: &fakeRows{
		fields: []pgconn.FieldDescription{{Name: "symbol"}, {Name: "pe_ratio"}, {Name: "updated_at"}, {Name: "beta"}},
		data: [][]any{
			{"INFY", pgtype.Numeric{Int: big.NewInt(45), Exp: -1, Valid: true}, time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC), nil},
			{"TCS", pgtype.Numeric{Int: big.NewInt(3), Valid: true}, pgtype.Date{}, pgtype.Numeric{}},
		},
	}}
	s := newPostgresStore(q, time.Second, zerolog.Nop())

	fs := domain.NewFilterSet("IT", []domain.Filter{
		domain.NewFilter("pe_ratio", domain.OpLessThan, domain.NumberValue(5)),
	}, 0, nil)
	compiled := compilePostgres(t, fs)

	rows, err := s.Execute(context.Background(), compiled)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, compiled.Text, q.gotSQL)
	assert.Equal(t, []any{"IT", 5.0}, q.gotArgs)
	assert.True(t, q.deadline)

	assert.Equal(t, "INFY", rows[0].Symbol())
	assert.InDelta(t, 4.5, rows[0]["pe_ratio"], 1e-9)
	assert.Equal(t, "2024-06-30", rows[0]["updated_at"])
	assert.Nil(t, rows[0]["beta"])

	assert.InDelta(t, 3.0, rows[1]["pe_ratio"], 1e-9)
	assert.Nil(t, rows[1]["updated_at"])
	assert.Nil(t, rows[1]["beta"])
}

func TestPostgresStore_Errors(t *testing.T) {
	ctx := context.Background()
	fs := domain.NewFilterSet("IT", nil, 0, nil)

	t.Run("query error", func(t *testing.T) {
		cause := errors.New("connection refused")
		s := newPostgresStore(&fakeQuerier{err: cause}, 0, zerolog.Nop())
		_, err := s.Execute(ctx, compilePostgres(t, fs))
		require.Error(t, err)
		assert.True(t, domain.IsStorageError(err))
		assert.ErrorIs(t, err, cause)
		assert.NotContains(t, err.Error(), "IT")
	})

	t.Run("row error", func(t *testing.T) {
		s := newPostgresStore(&fakeQuerier{rows: &fakeRows{err: errors.New("broken pipe")}}, 0, zerolog.Nop())
		_, err := s.Execute(ctx, compilePostgres(t, fs))
		assert.True(t, domain.IsStorageError(err))
	})

	t.Run("dialect mismatch", func(t *testing.T) {
		s := newPostgresStore(&fakeQuerier{}, 0, zerolog.Nop())
		_, err := s.Execute(ctx, compileSQLite(t, fs))
		assert.True(t, domain.IsStorageError(err))
	})

	t.Run("migrate without pool", func(t *testing.T) {
		s := newPostgresStore(&fakeQuerier{}, 0, zerolog.Nop())
		assert.Error(t, s.Migrate(ctx))
		assert.NoError(t, s.Ping(ctx))
	})
}

func TestPgValue(t *testing.T) {
	assert.Nil(t, pgValue(pgtype.Numeric{}))
	assert.Equal(t, 12.0, pgValue(pgtype.Numeric{Int: big.NewInt(12), Valid: true}))
	assert.Equal(t, "2024-03-31", pgValue(pgtype.Date{Time: time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), Valid: true}))
	assert.Equal(t, "x", pgValue([]byte("x")))
}

// TestPostgresStore_Integration runs against a real server when
// SCREENER_TEST_POSTGRES_DSN is set.
func TestPostgresStore_Integration(t *testing.T) {
	dsn := os.Getenv("SCREENER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SCREENER_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()

	s, err := NewPostgresStore(ctx, dsn, 0, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Migrate(ctx))

	_, err = s.pool.Exec(ctx, "DELETE FROM quarterly_financials")
	require.NoError(t, err)
	_, err = s.pool.Exec(ctx, "DELETE FROM fundamentals")
	require.NoError(t, err)
	for _, r := range []struct {
		symbol string
		pe     float64
		cap    float64
	}{{"INFY", 4, 6.1e12}, {"TCS", 3, 1.4e13}, {"WIPRO", 12, 2.4e12}} {
		_, err = s.pool.Exec(ctx,
			"INSERT INTO fundamentals (symbol, name, sector, pe_ratio, market_cap) VALUES ($1, $1, 'IT', $2, $3)",
			r.symbol, r.pe, r.cap)
		require.NoError(t, err)
	}

	fs := domain.NewFilterSet("IT", []domain.Filter{
		domain.NewFilter("pe_ratio", domain.OpLessThan, domain.NumberValue(5)),
	}, 0, nil)
	rows, err := s.Execute(ctx, compilePostgres(t, fs))
	require.NoError(t, err)
	assert.Equal(t, []string{"INFY", "TCS"}, symbols(rows))
}
