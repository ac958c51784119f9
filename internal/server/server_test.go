package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/screener/internal/catalog"
	"github.com/aristath/screener/internal/compiler"
	"github.com/aristath/screener/internal/parser"
	"github.com/aristath/screener/internal/screener"
	"github.com/aristath/screener/internal/store"
	testutil "github.com/aristath/screener/internal/testing"
)

type downStore struct{}

func (downStore) Execute(context.Context, *compiler.CompiledQuery) ([]store.Row, error) {
	return nil, errors.New("dial tcp 10.0.0.5:5432: connection refused")
}

func (downStore) Backend() string { return "postgres" }

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func newTestServer(t *testing.T, exec store.Executor, pinger Pinger) *Server {
	t.Helper()
	cat := catalog.Default()
	p := parser.NewLayeredParser(parser.NewRuleParser(cat, zerolog.Nop()), nil, 0, zerolog.Nop())
	c, err := compiler.NewSQLCompiler(cat, compiler.DialectSQLite, compiler.WithClock(testutil.FixedClock()))
	require.NoError(t, err)

	return New(Config{
		Log:     zerolog.Nop(),
		Service: screener.NewService(p, c, exec, zerolog.Nop()),
		Catalog: cat,
		Store:   pinger,
		Version: "test",
		DevMode: true,
	})
}

func newSeededServer(t *testing.T) *Server {
	t.Helper()
	db, cleanup := testutil.NewSeededDB(t)
	t.Cleanup(cleanup)
	s := store.NewSQLStore(db, 0, zerolog.Nop())
	return newTestServer(t, s, s)
}

func do(t *testing.T, srv *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())
	}
	return rec, decoded
}

func TestHandleQuery_Scenario(t *testing.T) {
	srv := newSeededServer(t)

	rec, body := do(t, srv, http.MethodPost, "/api/screener/query", `{"query":"Show IT stocks with PE below 5"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	assert.NotEmpty(t, body["runId"])
	fs := body["filterSet"].(map[string]interface{})
	assert.Equal(t, "IT", fs["sector"])
	assert.Equal(t, float64(50), fs["limit"])

	rows := body["rows"].([]interface{})
	require.Len(t, rows, 2)
	assert.Equal(t, "INFY", rows[0].(map[string]interface{})["symbol"])

	query := body["query"].(map[string]interface{})
	assert.Equal(t, []interface{}{"IT", 5.0, 5.0}, query["params"])
}

func TestHandleQuery_ParseError(t *testing.T) {
	srv := newSeededServer(t)

	rec, body := do(t, srv, http.MethodPost, "/api/screener/query", `{"query":"tell me a joke"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "could not understand query")
	assert.Contains(t, body["supportedFields"], "pe_ratio")
}

func TestHandleQuery_StorageErrorIsGeneric(t *testing.T) {
	srv := newTestServer(t, downStore{}, nil)

	rec, body := do(t, srv, http.MethodPost, "/api/screener/query", `{"query":"pe below 5"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, screener.MessageStorage, body["error"])
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
}

func TestHandleQuery_BadRequests(t *testing.T) {
	srv := newSeededServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"not json", `pe < 5`},
		{"missing query", `{}`},
		{"empty query", `{"query":""}`},
		{"too long", `{"query":"` + strings.Repeat("a", 501) + `"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := do(t, srv, http.MethodPost, "/api/screener/query", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestHandleParse(t *testing.T) {
	srv := newSeededServer(t)

	rec, body := do(t, srv, http.MethodPost, "/api/screener/parse", `{"query":"banks with pe below 20 and good vibes"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	fs := body["filterSet"].(map[string]interface{})
	assert.Equal(t, "Banking", fs["sector"])
	filters := fs["filters"].([]interface{})
	require.Len(t, filters, 1)
	assert.Equal(t, map[string]interface{}{"field": "pe_ratio", "operator": "<", "value": 20.0}, filters[0])
	assert.NotEmpty(t, body["droppedClauses"])
}

func TestHandleCompile(t *testing.T) {
	srv := newSeededServer(t)

	rec, body := do(t, srv, http.MethodPost, "/api/screener/compile",
		`{"filterSet":{"sector":"IT","filters":[{"field":"pe_ratio","operator":"<","value":5}],"limit":500}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "sqlite", body["dialect"])
	assert.Equal(t, float64(100), body["limit"])
	assert.Contains(t, body["text"], "sector = ? AND pe_ratio < ?")
}

func TestHandleCompile_Rejected(t *testing.T) {
	srv := newSeededServer(t)

	for name, payload := range map[string]string{
		"unknown field":    `{"filterSet":{"filters":[{"field":"password","operator":"=","value":"x"}]}}`,
		"unknown operator": `{"filterSet":{"filters":[{"field":"pe_ratio","operator":"LIKE","value":5}]}}`,
		"injection":        `{"filterSet":{"filters":[{"field":"pe_ratio; DROP TABLE fundamentals","operator":"<","value":5}]}}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec, body := do(t, srv, http.MethodPost, "/api/screener/compile", payload)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			assert.Equal(t, screener.MessageCompilation, body["error"])
		})
	}

	rec, _ := do(t, srv, http.MethodPost, "/api/screener/compile", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body := do(t, srv, http.MethodPost, "/api/screener/compile",
		`{"filterSet":{"filters":[{"field":"pe_ratio","operator":"<","value":null}]}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotContains(t, body, "params")
}

func TestHandleFields(t *testing.T) {
	srv := newSeededServer(t)

	rec, body := do(t, srv, http.MethodGet, "/api/screener/fields", "")
	require.Equal(t, http.StatusOK, rec.Code)

	fields := body["fields"].([]interface{})
	assert.Len(t, fields, len(catalog.Default().Fields()))
	first := fields[0].(map[string]interface{})
	assert.Equal(t, "pe_ratio", first["name"])
	assert.Equal(t, true, first["live"])
	assert.Len(t, body["operators"], 6)
	assert.Contains(t, body["sectors"], "IT")
	assert.Equal(t, "sqlite", body["dialect"])
}

func TestHandleHealth(t *testing.T) {
	rec, body := do(t, newSeededServer(t), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "test", body["version"])

	rec, body = do(t, newTestServer(t, downStore{}, downStore{}), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unhealthy", body["status"])
}

func TestHandleSystemStatus(t *testing.T) {
	rec, body := do(t, newSeededServer(t), http.MethodGet, "/api/system/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sqlite", body["backend"])
	assert.Equal(t, "sqlite", body["dialect"])
	assert.GreaterOrEqual(t, body["goroutines"], float64(1))
}

func TestCORSPreflight(t *testing.T) {
	srv := newSeededServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/screener/query", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
