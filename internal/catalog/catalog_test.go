package catalog

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/aristath/screener/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Membership(t *testing.T) {
	c := Default()

	tests := []struct {
		name    string
		allowed bool
	}{
		{"pe_ratio", true},
		{"market_cap", true},
		{"dividend_yield", true},
		{"updated_at", true},
		{"password_hash", false},
		{"pe", false}, // short names are not canonical
		{"", false},
		{"pe_ratio; DROP TABLE fundamentals", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, c.IsAllowedField(tt.name))
		})
	}
}

func TestDefault_Operators(t *testing.T) {
	c := Default()
	for _, op := range domain.AllOperators() {
		assert.True(t, c.IsAllowedOperator(op), string(op))
	}
	assert.False(t, c.IsAllowedOperator("LIKE"))
	assert.False(t, c.IsAllowedOperator("=="))
}

func TestColumnFor(t *testing.T) {
	c := Default()

	col, ok := c.ColumnFor("pe_ratio")
	assert.True(t, ok)
	assert.Equal(t, "pe_ratio", col)

	col, ok = c.ColumnFor("password_hash")
	assert.False(t, ok)
	assert.Empty(t, col)
}

func TestLookup_ShortNames(t *testing.T) {
	c := Default()

	for short, canonical := range map[string]string{
		"pe":            "pe_ratio",
		"PE":            "pe_ratio",
		"eps":           "eps",
		"marketcap":     "market_cap",
		"profitmargin":  "profit_margin",
		"dividendyield": "dividend_yield",
		"revenue":       "revenue",
		"roe":           "return_on_equity",
	} {
		f, ok := c.Lookup(short)
		require.True(t, ok, short)
		assert.Equal(t, canonical, f.Name, short)
	}

	_, ok := c.Lookup("salary")
	assert.False(t, ok)
}

func TestNames_SortedAndComplete(t *testing.T) {
	c := Default()
	names := c.Names()
	assert.Len(t, names, len(c.Fields()))
	assert.IsIncreasing(t, names)
	assert.Contains(t, names, "pe_ratio")
}

func TestSelectColumns(t *testing.T) {
	c := Default()
	cols := c.SelectColumns()
	assert.Equal(t, []string{"symbol", "name", "sector"}, cols[:3])
	assert.Contains(t, cols, "market_cap")
	assert.Equal(t, "fundamentals", c.Relation())
	assert.Equal(t, "market_cap", c.SignificanceColumn())
	assert.Equal(t, "sector", c.SectorColumn())
}

func TestFields_ReturnsCopy(t *testing.T) {
	c := Default()
	fields := c.Fields()
	fields[0].Column = "password_hash"

	col, _ := c.ColumnFor(fields[0].Name)
	assert.NotEqual(t, "password_hash", col)
}

func TestMatchProviderSector(t *testing.T) {
	c := Default()

	assert.True(t, c.MatchProviderSector("IT", "TECHNOLOGY"))
	assert.True(t, c.MatchProviderSector("IT", "technology"))
	assert.True(t, c.MatchProviderSector("IT", "IT"))
	assert.True(t, c.MatchProviderSector("Banking", "FINANCE"))
	assert.False(t, c.MatchProviderSector("IT", "FINANCE"))
	assert.False(t, c.MatchProviderSector("IT", ""))
	assert.True(t, c.MatchProviderSector("Retail", "retail"))
	assert.True(t, c.IsKnownSector("pharma"))
	assert.False(t, c.IsKnownSector("Retail"))
}

func TestSectorForProvider(t *testing.T) {
	c := Default()

	tests := map[string]string{
		"TECHNOLOGY":             "IT",
		"information technology": "IT",
		" FINANCE ":              "Banking",
		"it":                     "IT",
		"RETAIL":                 "RETAIL",
		"":                       "",
	}
	for provider, expected := range tests {
		t.Run(provider, func(t *testing.T) {
			assert.Equal(t, expected, c.SectorForProvider(provider))
		})
	}
}

func TestCatalog_ConcurrentReads(t *testing.T) {
	c := Default()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				assert.True(t, c.IsAllowedField("pe_ratio"))
				_, _ = c.Lookup("pe")
				_ = c.Names()
			}
		}()
	}
	wg.Wait()
}

func TestLoadYAML(t *testing.T) {
	c, err := LoadYAML(filepath.Join("testdata", "catalog.yaml"))
	require.NoError(t, err)

	assert.True(t, c.IsAllowedField("pe_ratio"))
	assert.True(t, c.IsAllowedField("exchange"))
	assert.False(t, c.IsAllowedField("eps"))

	f, ok := c.Lookup("pe")
	require.True(t, ok)
	assert.Equal(t, "pe_ratio", f.Column)
	assert.Equal(t, "PERatio", f.ProviderKey)

	ex, _ := c.Field("exchange")
	assert.Equal(t, TypeText, ex.Type)
	assert.Equal(t, "market_cap", c.SignificanceColumn())
	assert.Len(t, c.Sectors(), 1)
}

func TestLoadYAML_MissingFile(t *testing.T) {
	_, err := LoadYAML(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseYAML_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no fields", "relation: fundamentals\n"},
		{"bad column", "fields:\n  - name: pe\n    column: \"pe; DROP\"\n"},
		{"bad relation", "relation: \"x y\"\nfields:\n  - name: pe\n"},
		{"duplicate", "fields:\n  - name: pe\n  - name: pe\n"},
		{"unknown type", "fields:\n  - name: pe\n    type: blob\n"},
		{"missing name", "fields:\n  - column: pe\n"},
		{"not yaml", "fields: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseYAML([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestParseYAML_Defaults(t *testing.T) {
	c, err := ParseYAML([]byte("fields:\n  - name: beta\n"))
	require.NoError(t, err)

	f, ok := c.Field("beta")
	require.True(t, ok)
	assert.Equal(t, "beta", f.Column)
	assert.Equal(t, TypeNumber, f.Type)
	assert.Equal(t, DefaultRelation, c.Relation())
	assert.NotEmpty(t, c.Sectors())
}

func TestField_ScaleProviderValue(t *testing.T) {
	c := Default()

	dy, _ := c.Field("dividend_yield")
	assert.InDelta(t, 2.5, dy.ScaleProviderValue(0.025), 1e-9)

	pe, _ := c.Field("pe_ratio")
	assert.Equal(t, 18.0, pe.ScaleProviderValue(18))
}
