package catalog

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// fileSchema is the on-disk layout of a catalog override file
type fileSchema struct {
	Relation           string   `yaml:"relation"`
	SectorColumn       string   `yaml:"sector_column"`
	SignificanceColumn string   `yaml:"significance_column"`
	Fields             []Field  `yaml:"fields"`
	Sectors            []Sector `yaml:"sectors"`
}

// LoadYAML reads a catalog from a YAML file. Omitted relation, column and
// sector settings fall back to the defaults.
func LoadYAML(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return ParseYAML(data)
}

// ParseYAML builds a catalog from YAML content
func ParseYAML(data []byte) (*Catalog, error) {
	var schema fileSchema
	if err := yaml.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	if schema.Relation == "" {
		schema.Relation = DefaultRelation
	}
	if schema.SectorColumn == "" {
		schema.SectorColumn = DefaultSectorColumn
	}
	if schema.SignificanceColumn == "" {
		schema.SignificanceColumn = DefaultSignificanceColumn
	}
	if len(schema.Sectors) == 0 {
		schema.Sectors = defaultSectors()
	}
	if len(schema.Fields) == 0 {
		return nil, fmt.Errorf("catalog defines no fields")
	}

	// Identifiers end up in query text, so they must be plain SQL identifiers
	for _, ident := range []string{schema.Relation, schema.SectorColumn, schema.SignificanceColumn} {
		if !identifierPattern.MatchString(ident) {
			return nil, fmt.Errorf("invalid identifier %q", ident)
		}
	}

	seen := make(map[string]bool, len(schema.Fields))
	for i, f := range schema.Fields {
		if f.Name == "" {
			return nil, fmt.Errorf("field %d has no name", i)
		}
		if seen[f.Name] {
			return nil, fmt.Errorf("duplicate field %q", f.Name)
		}
		seen[f.Name] = true

		if f.Column == "" {
			schema.Fields[i].Column = f.Name
		}
		if !identifierPattern.MatchString(schema.Fields[i].Column) {
			return nil, fmt.Errorf("field %q: invalid column %q", f.Name, schema.Fields[i].Column)
		}
		switch f.Type {
		case TypeNumber, TypeText, TypeDate:
		case "":
			schema.Fields[i].Type = TypeNumber
		default:
			return nil, fmt.Errorf("field %q: unknown type %q", f.Name, f.Type)
		}
	}

	return New(Options{
		Relation:           schema.Relation,
		SectorColumn:       schema.SectorColumn,
		SignificanceColumn: schema.SignificanceColumn,
	}, schema.Fields, schema.Sectors), nil
}
