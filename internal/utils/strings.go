package utils

import (
	"encoding/csv"
	"strings"
)

// ParseCSV splits a comma-separated string and returns trimmed non-empty values.
// Quoted entries may contain commas. Returns nil for empty input.
func ParseCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}

	reader := csv.NewReader(strings.NewReader(s))
	reader.TrimLeadingSpace = true
	fields, err := reader.Read()
	if err != nil {
		// Malformed quoting: fall back to a plain split
		fields = strings.Split(s, ",")
	}

	var result []string
	for _, v := range fields {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// ParseSymbols parses a ticker list such as "ibm, MSFT,ibm" into unique
// upper-case symbols, keeping first-seen order.
func ParseSymbols(s string) []string {
	var result []string
	seen := make(map[string]bool)
	for _, v := range ParseCSV(s) {
		symbol := strings.ToUpper(v)
		if seen[symbol] {
			continue
		}
		seen[symbol] = true
		result = append(result, symbol)
	}
	return result
}
