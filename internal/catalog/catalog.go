// Package catalog holds the whitelist of queryable fundamentals fields and
// comparison operators. A Catalog is built once at startup and only read
// afterwards, so it is safe for concurrent use without locking.
package catalog

import (
	"sort"
	"strings"

	"github.com/aristath/screener/internal/domain"
)

// ValueType is the declared type of a field's values
type ValueType string

const (
	TypeNumber ValueType = "number"
	TypeText   ValueType = "text"
	TypeDate   ValueType = "date"
)

// DateLayout is the only accepted format for date values
const DateLayout = "2006-01-02"

// Field describes one queryable attribute
type Field struct {
	Name        string    `yaml:"name" json:"name"`
	Column      string    `yaml:"column" json:"column"`
	Type        ValueType `yaml:"type" json:"type"`
	ProviderKey string    `yaml:"provider_key" json:"providerKey,omitempty"` // Alpha Vantage OVERVIEW attribute
	ShortNames  []string  `yaml:"short_names" json:"shortNames,omitempty"`
	// ProviderScale converts provider values into stored units (100 turns a
	// 0.24 ratio into 24 percent). Zero means 1.
	ProviderScale float64 `yaml:"provider_scale" json:"-"`
}

// ScaleProviderValue converts a raw provider number into catalog units
func (f Field) ScaleProviderValue(v float64) float64 {
	if f.ProviderScale == 0 {
		return v
	}
	return v * f.ProviderScale
}

// Sector maps query keywords and provider sector labels to one sector name
type Sector struct {
	Name          string   `yaml:"name" json:"name"`
	Keywords      []string `yaml:"keywords" json:"keywords"`
	ProviderNames []string `yaml:"provider_names" json:"providerNames,omitempty"`
}

// Catalog is the read-only field whitelist
type Catalog struct {
	byName             map[string]Field
	byShortName        map[string]string
	operators          map[domain.Operator]struct{}
	relation           string
	sectorColumn       string
	significanceColumn string
	fields             []Field
	sectors            []Sector
}

// Options configures the non-field parts of a catalog
type Options struct {
	Relation           string
	SectorColumn       string
	SignificanceColumn string
}

// New builds a catalog. Field and sector slices are copied.
func New(opts Options, fields []Field, sectors []Sector) *Catalog {
	c := &Catalog{
		byName:             make(map[string]Field, len(fields)),
		byShortName:        make(map[string]string),
		operators:          make(map[domain.Operator]struct{}),
		relation:           opts.Relation,
		sectorColumn:       opts.SectorColumn,
		significanceColumn: opts.SignificanceColumn,
	}
	for _, op := range domain.AllOperators() {
		c.operators[op] = struct{}{}
	}
	for _, f := range fields {
		f.ShortNames = append([]string(nil), f.ShortNames...)
		c.fields = append(c.fields, f)
		c.byName[f.Name] = f
		for _, short := range f.ShortNames {
			c.byShortName[strings.ToLower(short)] = f.Name
		}
	}
	for _, s := range sectors {
		s.Keywords = append([]string(nil), s.Keywords...)
		s.ProviderNames = append([]string(nil), s.ProviderNames...)
		c.sectors = append(c.sectors, s)
	}
	return c
}

// IsAllowedField reports whether name is a canonical catalog field
func (c *Catalog) IsAllowedField(name string) bool {
	_, ok := c.byName[name]
	return ok
}

// IsAllowedOperator reports whether op belongs to the closed operator set
func (c *Catalog) IsAllowedOperator(op domain.Operator) bool {
	_, ok := c.operators[op]
	return ok
}

// ColumnFor returns the storage column of a canonical field
func (c *Catalog) ColumnFor(name string) (string, bool) {
	f, ok := c.byName[name]
	if !ok {
		return "", false
	}
	return f.Column, true
}

// Field returns the definition of a canonical field
func (c *Catalog) Field(name string) (Field, bool) {
	f, ok := c.byName[name]
	return f, ok
}

// Lookup resolves a canonical name or a short name (e.g. "pe") to its field
func (c *Catalog) Lookup(name string) (Field, bool) {
	if f, ok := c.byName[name]; ok {
		return f, true
	}
	canonical, ok := c.byShortName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Field{}, false
	}
	return c.byName[canonical], true
}

// Fields returns all fields in declaration order
func (c *Catalog) Fields() []Field {
	return append([]Field(nil), c.fields...)
}

// Names returns the canonical field names, sorted
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.fields))
	for _, f := range c.fields {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}

// Operators returns the allowed operators
func (c *Catalog) Operators() []domain.Operator {
	return domain.AllOperators()
}

// Relation returns the source table
func (c *Catalog) Relation() string { return c.relation }

// SectorColumn returns the column compared against the requested sector
func (c *Catalog) SectorColumn() string { return c.sectorColumn }

// SignificanceColumn returns the column used for default ordering
func (c *Catalog) SignificanceColumn() string { return c.significanceColumn }

// SelectColumns returns the fixed projection: symbol, name, sector and every field column
func (c *Catalog) SelectColumns() []string {
	cols := []string{"symbol", "name", c.sectorColumn}
	for _, f := range c.fields {
		cols = append(cols, f.Column)
	}
	return cols
}

// Sectors returns the sector keyword table
func (c *Catalog) Sectors() []Sector {
	return append([]Sector(nil), c.sectors...)
}

// IsKnownSector reports whether name matches a configured sector
func (c *Catalog) IsKnownSector(name string) bool {
	for _, s := range c.sectors {
		if strings.EqualFold(s.Name, name) {
			return true
		}
	}
	return false
}

// MatchProviderSector reports whether a provider's sector label belongs to the
// named sector. Unknown sectors fall back to a case-insensitive comparison.
func (c *Catalog) MatchProviderSector(sectorName, providerValue string) bool {
	providerValue = strings.TrimSpace(providerValue)
	if providerValue == "" {
		return false
	}
	if strings.EqualFold(sectorName, providerValue) {
		return true
	}
	for _, s := range c.sectors {
		if !strings.EqualFold(s.Name, sectorName) {
			continue
		}
		for _, p := range s.ProviderNames {
			if strings.EqualFold(p, providerValue) {
				return true
			}
		}
	}
	return false
}

// SectorForProvider maps a provider's sector label to the configured sector
// name, so live rows carry "IT" rather than "TECHNOLOGY". Labels no sector
// claims are returned trimmed but otherwise unchanged.
func (c *Catalog) SectorForProvider(providerValue string) string {
	providerValue = strings.TrimSpace(providerValue)
	if providerValue == "" {
		return ""
	}
	for _, s := range c.sectors {
		if strings.EqualFold(s.Name, providerValue) {
			return s.Name
		}
		for _, p := range s.ProviderNames {
			if strings.EqualFold(p, providerValue) {
				return s.Name
			}
		}
	}
	return providerValue
}
