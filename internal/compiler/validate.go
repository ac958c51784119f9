package compiler

import (
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/aristath/screener/internal/catalog"
	"github.com/aristath/screener/internal/domain"
)

const (
	maxSectorLength = 64
	maxQuarters     = 40
)

// Validate checks a filter set against the catalog. The first offending
// filter is reported as a *domain.CompilationError naming its field.
func Validate(cat *catalog.Catalog, fs domain.FilterSet) error {
	for _, f := range fs.Filters() {
		if err := validateFilter(cat, f); err != nil {
			return err
		}
	}

	if fs.HasSector() {
		sector := fs.Sector()
		if len(sector) > maxSectorLength {
			return &domain.CompilationError{Field: cat.SectorColumn(), Reason: "sector name is too long"}
		}
		if strings.IndexFunc(sector, unicode.IsControl) >= 0 {
			return &domain.CompilationError{Field: cat.SectorColumn(), Reason: "sector name contains control characters"}
		}
	}

	if qr := fs.QuarterRange(); qr != nil {
		if qr.Unit != domain.UnitQuarter && qr.Unit != domain.UnitYear {
			return &domain.CompilationError{Reason: "quarter range unit must be quarter or year"}
		}
		if qr.Value < 1 || qr.Quarters() > maxQuarters {
			return &domain.CompilationError{Reason: "quarter range is out of bounds"}
		}
	}

	return nil
}

func validateFilter(cat *catalog.Catalog, f domain.Filter) error {
	field, ok := cat.Field(f.Field())
	if !ok {
		return &domain.CompilationError{Field: f.Field(), Reason: "field is not in the catalog"}
	}
	if !cat.IsAllowedOperator(f.Operator()) {
		return &domain.CompilationError{Field: f.Field(), Operator: string(f.Operator()), Reason: "operator is not allowed"}
	}

	v := f.Value()
	switch field.Type {
	case catalog.TypeNumber:
		if !v.IsNumber() {
			return &domain.CompilationError{Field: f.Field(), Reason: "numeric field requires a numeric value"}
		}
		if math.IsNaN(v.Float()) || math.IsInf(v.Float(), 0) {
			return &domain.CompilationError{Field: f.Field(), Reason: "value is not a finite number"}
		}
	case catalog.TypeText:
		if v.IsNumber() {
			return &domain.CompilationError{Field: f.Field(), Reason: "text field requires a text value"}
		}
	case catalog.TypeDate:
		if v.IsNumber() {
			return &domain.CompilationError{Field: f.Field(), Reason: "date field requires a date value"}
		}
		if _, err := time.Parse(catalog.DateLayout, v.Text()); err != nil {
			return &domain.CompilationError{Field: f.Field(), Reason: "date must use YYYY-MM-DD"}
		}
	}
	return nil
}
