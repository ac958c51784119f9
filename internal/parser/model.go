package parser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aristath/screener/internal/catalog"
	"github.com/aristath/screener/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// Completer is a text-generation service
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// ErrNoJSON is returned when a model response contains no JSON object
var ErrNoJSON = errors.New("model response contains no JSON object")

// wireFilter is the filter shape requested from the model. "op" is accepted
// as an alias for "operator".
type wireFilter struct {
	Value    any    `json:"value"`
	Field    string `json:"field" validate:"required"`
	Operator string `json:"operator"`
	Op       string `json:"op"`
}

type wireQuarterRange struct {
	Unit  string `json:"unit" validate:"required,oneof=quarter quarters year years"`
	Value int    `json:"value" validate:"gte=1,lte=40"`
}

type wireFilterSet struct {
	Sector       *string           `json:"sector"`
	QuarterRange *wireQuarterRange `json:"quarterRange" validate:"omitempty"`
	Filters      []wireFilter      `json:"filters" validate:"dive"`
	Limit        int               `json:"limit" validate:"gte=0"`
}

// ModelParser asks a language model to produce the filter set. Its output is
// untrusted and checked against the catalog like any other input.
type ModelParser struct {
	completer Completer
	catalog   *catalog.Catalog
	validate  *validator.Validate
	log       zerolog.Logger
	system    string
}

// NewModelParser creates a model-backed parser
func NewModelParser(completer Completer, cat *catalog.Catalog, log zerolog.Logger) *ModelParser {
	return &ModelParser{
		completer: completer,
		catalog:   cat,
		validate:  validator.New(),
		log:       log.With().Str("component", "model_parser").Logger(),
		system:    SystemPrompt(cat),
	}
}

// SystemPrompt builds the fixed instruction sent with every query
func SystemPrompt(cat *catalog.Catalog) string {
	var b strings.Builder
	b.WriteString("You convert stock screening questions into JSON filters.\n")
	b.WriteString("Respond with a single JSON object and nothing else, shaped exactly like:\n")
	b.WriteString(`{"sector": "IT" or null, "filters": [{"field": "pe_ratio", "operator": "<", "value": 20}], "limit": 50, "quarterRange": {"value": 4, "unit": "quarter"} or null}`)
	b.WriteString("\n\nAllowed fields:\n")
	for _, f := range cat.Fields() {
		fmt.Fprintf(&b, "- %s (%s)\n", f.Name, f.Type)
	}
	b.WriteString("\nAllowed operators: ")
	ops := make([]string, 0, len(cat.Operators()))
	for _, op := range cat.Operators() {
		ops = append(ops, string(op))
	}
	b.WriteString(strings.Join(ops, " "))
	b.WriteString("\n\nKnown sectors: ")
	sectors := make([]string, 0, len(cat.Sectors()))
	for _, s := range cat.Sectors() {
		sectors = append(sectors, s.Name)
	}
	b.WriteString(strings.Join(sectors, ", "))
	b.WriteString("\n\nRules:\n")
	b.WriteString("- Use only the allowed fields and operators.\n")
	b.WriteString("- Numbers are plain JSON numbers: 2.5 billion is 2500000000, 15% is 15.\n")
	b.WriteString("- Omit anything you cannot map to an allowed field.\n")
	return b.String()
}

// Parse implements Parser
func (p *ModelParser) Parse(ctx context.Context, query string) (domain.FilterSet, error) {
	raw, err := p.completer.Complete(ctx, p.system, query)
	if err != nil {
		return domain.FilterSet{}, fmt.Errorf("model completion failed: %w", err)
	}

	fs, err := p.decode(raw)
	if err != nil {
		p.log.Debug().Err(err).Str("response", raw).Msg("Rejected model response")
		return domain.FilterSet{}, err
	}
	return fs, nil
}

func (p *ModelParser) decode(raw string) (domain.FilterSet, error) {
	body, err := ExtractJSON(raw)
	if err != nil {
		return domain.FilterSet{}, err
	}

	var wire wireFilterSet
	if err := json.Unmarshal([]byte(body), &wire); err != nil {
		return domain.FilterSet{}, fmt.Errorf("failed to decode model response: %w", err)
	}
	if err := p.validate.Struct(wire); err != nil {
		return domain.FilterSet{}, fmt.Errorf("invalid model response: %w", err)
	}

	filters := make([]domain.Filter, 0, len(wire.Filters))
	for _, wf := range wire.Filters {
		f, err := p.resolveFilter(wf)
		if err != nil {
			return domain.FilterSet{}, err
		}
		filters = append(filters, f)
	}

	sector := ""
	if wire.Sector != nil {
		sector = p.canonicalSector(*wire.Sector)
	}

	var qr *domain.QuarterRange
	if wire.QuarterRange != nil {
		unit := domain.UnitQuarter
		if strings.HasPrefix(wire.QuarterRange.Unit, "year") {
			unit = domain.UnitYear
		}
		qr = &domain.QuarterRange{Value: wire.QuarterRange.Value, Unit: unit}
	}

	fs := domain.NewFilterSet(sector, filters, wire.Limit, qr)
	if fs.IsEmpty() {
		return domain.FilterSet{}, fmt.Errorf("model response contains no filters")
	}
	return fs, nil
}

func (p *ModelParser) resolveFilter(wf wireFilter) (domain.Filter, error) {
	field, ok := p.catalog.Lookup(wf.Field)
	if !ok {
		return domain.Filter{}, fmt.Errorf("model returned unknown field %q", wf.Field)
	}

	opText := wf.Operator
	if opText == "" {
		opText = wf.Op
	}
	op, ok := domain.ParseOperator(opText)
	if !ok {
		return domain.Filter{}, fmt.Errorf("model returned unknown operator %q", opText)
	}

	switch v := wf.Value.(type) {
	case float64:
		if field.Type != catalog.TypeNumber {
			return domain.Filter{}, fmt.Errorf("field %s expects %s, got number", field.Name, field.Type)
		}
		return domain.NewFilter(field.Name, op, domain.NumberValue(v)), nil
	case string:
		if field.Type == catalog.TypeNumber {
			n, err := ParseNumber(v)
			if err != nil {
				return domain.Filter{}, fmt.Errorf("field %s: %w", field.Name, err)
			}
			return domain.NewFilter(field.Name, op, domain.NumberValue(n)), nil
		}
		return domain.NewFilter(field.Name, op, domain.TextValue(v)), nil
	default:
		return domain.Filter{}, fmt.Errorf("field %s: unsupported value %v", field.Name, wf.Value)
	}
}

// canonicalSector maps a model-provided sector onto the catalog's sector names
func (p *ModelParser) canonicalSector(s string) string {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	for _, sector := range p.catalog.Sectors() {
		if strings.EqualFold(sector.Name, s) {
			return sector.Name
		}
		for _, kw := range sector.Keywords {
			if kw == lower {
				return sector.Name
			}
		}
	}
	return s
}

// ExtractJSON pulls the JSON object out of a model response that may be
// wrapped in a fenced code block or surrounded by prose.
func ExtractJSON(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if start := strings.Index(text, "```"); start >= 0 {
		inner := text[start+3:]
		inner = strings.TrimPrefix(inner, "json")
		if end := strings.Index(inner, "```"); end >= 0 {
			text = strings.TrimSpace(inner[:end])
		}
	}

	first := strings.Index(text, "{")
	last := strings.LastIndex(text, "}")
	if first < 0 || last <= first {
		return "", ErrNoJSON
	}
	return text[first : last+1], nil
}
