// Package domain provides the screener's intermediate filter language (the DSL
// produced by the parser and consumed by the compiler) and its error taxonomy.
package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	// DefaultLimit is applied when a filter set carries no usable limit
	DefaultLimit = 50
	// MaxLimit is the upper bound every compiled query enforces
	MaxLimit = 100
)

// Operator is a comparison operator from the closed DSL set
type Operator string

const (
	OpLessThan       Operator = "<"
	OpLessOrEqual    Operator = "<="
	OpGreaterThan    Operator = ">"
	OpGreaterOrEqual Operator = ">="
	OpEqual          Operator = "="
	OpNotEqual       Operator = "!="
)

// AllOperators returns the supported operators in resolution order
func AllOperators() []Operator {
	return []Operator{OpLessOrEqual, OpGreaterOrEqual, OpNotEqual, OpLessThan, OpGreaterThan, OpEqual}
}

// ParseOperator resolves a symbolic operator, accepting "==" and "<>" as aliases.
func ParseOperator(s string) (Operator, bool) {
	switch strings.TrimSpace(s) {
	case "<":
		return OpLessThan, true
	case "<=":
		return OpLessOrEqual, true
	case ">":
		return OpGreaterThan, true
	case ">=":
		return OpGreaterOrEqual, true
	case "=", "==":
		return OpEqual, true
	case "!=", "<>":
		return OpNotEqual, true
	}
	return "", false
}

// Compare applies the operator to two numbers
func (o Operator) Compare(left, right float64) bool {
	switch o {
	case OpLessThan:
		return left < right
	case OpLessOrEqual:
		return left <= right
	case OpGreaterThan:
		return left > right
	case OpGreaterOrEqual:
		return left >= right
	case OpEqual:
		return left == right
	case OpNotEqual:
		return left != right
	}
	return false
}

// CompareText applies the operator to two strings using lexical order
func (o Operator) CompareText(left, right string) bool {
	return o.Compare(float64(strings.Compare(left, right)), 0)
}

// Value is a filter operand: either a number or a piece of text
type Value struct {
	text   string
	number float64
	isNum  bool
}

// NumberValue wraps a numeric operand
func NumberValue(n float64) Value {
	return Value{number: n, isNum: true}
}

// TextValue wraps a text operand
func TextValue(s string) Value {
	return Value{text: s}
}

// IsNumber reports whether the value is numeric
func (v Value) IsNumber() bool { return v.isNum }

// Float returns the numeric payload (zero for text values)
func (v Value) Float() float64 { return v.number }

// Text returns the text payload (empty for numeric values)
func (v Value) Text() string { return v.text }

// Any returns the payload as a query parameter (float64 or string)
func (v Value) Any() any {
	if v.isNum {
		return v.number
	}
	return v.text
}

func (v Value) String() string {
	if v.isNum {
		return fmt.Sprintf("%g", v.number)
	}
	return v.text
}

// MarshalJSON encodes numbers as JSON numbers and text as JSON strings
func (v Value) MarshalJSON() ([]byte, error) {
	if v.isNum {
		return json.Marshal(v.number)
	}
	return json.Marshal(v.text)
}

// UnmarshalJSON accepts a JSON number or a JSON string. null is rejected
// rather than decoded as zero.
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		return errors.New("value must not be null")
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*v = NumberValue(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("value must be a number or a string: %s", string(data))
	}
	*v = TextValue(s)
	return nil
}

// Filter is a single field/operator/value triple. It cannot be changed once built.
type Filter struct {
	field    string
	operator Operator
	value    Value
}

// NewFilter creates a filter
func NewFilter(field string, op Operator, value Value) Filter {
	return Filter{field: field, operator: op, value: value}
}

// Field returns the catalog field name
func (f Filter) Field() string { return f.field }

// Operator returns the comparison operator
func (f Filter) Operator() Operator { return f.operator }

// Value returns the operand
func (f Filter) Value() Value { return f.value }

func (f Filter) String() string {
	return fmt.Sprintf("%s %s %s", f.field, f.operator, f.value)
}

type filterJSON struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    Value    `json:"value"`
}

// MarshalJSON implements json.Marshaler
func (f Filter) MarshalJSON() ([]byte, error) {
	return json.Marshal(filterJSON{Field: f.field, Operator: f.operator, Value: f.value})
}

// UnmarshalJSON implements json.Unmarshaler. The operator is kept verbatim so
// an unsupported one reaches the compiler and is rejected there.
func (f *Filter) UnmarshalJSON(data []byte) error {
	var raw filterJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*f = NewFilter(raw.Field, raw.Operator, raw.Value)
	return nil
}

// Quarter range units
const (
	UnitQuarter = "quarter"
	UnitYear    = "year"
)

// QuarterRange restricts results to symbols with positive revenue reported in
// every one of the most recent N periods.
type QuarterRange struct {
	Unit  string `json:"unit"`
	Value int    `json:"value"`
}

// Quarters returns the range length expressed in quarters
func (q QuarterRange) Quarters() int {
	if q.Unit == UnitYear {
		return q.Value * 4
	}
	return q.Value
}

// FilterSet is the parsed representation of one screening request
type FilterSet struct {
	quarterRange *QuarterRange
	sector       string
	filters      []Filter
	limit        int
}

// ClampLimit maps any requested limit into [1, MaxLimit], using DefaultLimit
// when none was requested.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// NewFilterSet builds a filter set. The slice is copied and the limit clamped.
func NewFilterSet(sector string, filters []Filter, limit int, quarterRange *QuarterRange) FilterSet {
	fs := FilterSet{
		sector:  strings.TrimSpace(sector),
		filters: append([]Filter(nil), filters...),
		limit:   ClampLimit(limit),
	}
	if quarterRange != nil {
		qr := *quarterRange
		fs.quarterRange = &qr
	}
	return fs
}

// Sector returns the sector, or "" when none was requested
func (fs FilterSet) Sector() string { return fs.sector }

// HasSector reports whether a sector condition is present
func (fs FilterSet) HasSector() bool { return fs.sector != "" }

// Filters returns a copy of the ordered filters
func (fs FilterSet) Filters() []Filter {
	return append([]Filter(nil), fs.filters...)
}

// Limit returns the clamped limit
func (fs FilterSet) Limit() int {
	if fs.limit == 0 {
		return DefaultLimit
	}
	return fs.limit
}

// QuarterRange returns a copy of the quarter range, or nil
func (fs FilterSet) QuarterRange() *QuarterRange {
	if fs.quarterRange == nil {
		return nil
	}
	qr := *fs.quarterRange
	return &qr
}

// IsEmpty reports whether the set constrains nothing at all
func (fs FilterSet) IsEmpty() bool {
	return len(fs.filters) == 0 && fs.sector == "" && fs.quarterRange == nil
}

type filterSetJSON struct {
	Sector       *string       `json:"sector"`
	QuarterRange *QuarterRange `json:"quarterRange,omitempty"`
	Filters      []Filter      `json:"filters"`
	Limit        int           `json:"limit"`
}

// MarshalJSON implements json.Marshaler. A missing sector is encoded as null.
func (fs FilterSet) MarshalJSON() ([]byte, error) {
	out := filterSetJSON{
		Filters:      fs.Filters(),
		Limit:        fs.Limit(),
		QuarterRange: fs.QuarterRange(),
	}
	if out.Filters == nil {
		out.Filters = []Filter{}
	}
	if fs.sector != "" {
		s := fs.sector
		out.Sector = &s
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler and re-applies the limit clamp
func (fs *FilterSet) UnmarshalJSON(data []byte) error {
	var raw filterSetJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	sector := ""
	if raw.Sector != nil {
		sector = *raw.Sector
	}
	*fs = NewFilterSet(sector, raw.Filters, raw.Limit, raw.QuarterRange)
	return nil
}
