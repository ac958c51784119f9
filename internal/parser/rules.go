// Package parser turns free-text screening queries into domain filter sets.
//
// Two tiers are provided. RuleParser is deterministic and needs no network.
// ModelParser asks an external language model and is always wrapped by
// LayeredParser, which falls back to the rules on any model failure.
package parser

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/aristath/screener/internal/catalog"
	"github.com/aristath/screener/internal/domain"
	"github.com/rs/zerolog"
	"golang.org/x/text/unicode/norm"
)

var (
	whitespacePattern = regexp.MustCompile(`\s+`)
	thousandsPattern  = regexp.MustCompile(`(\d),(\d{3})`)
	segmentPattern    = regexp.MustCompile(`\band\b|,|&|;`)
	topPattern        = regexp.MustCompile(`\b(?:top|first|limit)\s+(\d{1,4})\b`)
	rangePattern      = regexp.MustCompile(`\b(?:last|past|previous|recent)\s+(\d{1,3})\s+(quarters?|years?)\b`)
	numberPattern     = regexp.MustCompile(`(-?(?:\d+(?:,\d{3})*(?:\.\d+)?|\.\d+)(?:e[+-]?\d+)?)\s*(billion|million|thousand|bn|mn|b|m|k|%)?`)

	// A bare "not" only negates when the number follows it directly
	notNumberPattern = regexp.MustCompile(`\bnot\s+-?\.?\d`)
)

// Parser is the contract shared by every parsing tier
type Parser interface {
	Parse(ctx context.Context, query string) (domain.FilterSet, error)
}

// Parsed is a filter set together with the clauses that did not resolve
type Parsed struct {
	FilterSet domain.FilterSet
	// Dropped holds normalized clauses that contributed nothing
	Dropped []string
}

type alias struct {
	phrase string
	field  string
}

type sectorKeyword struct {
	pattern *regexp.Regexp
	sector  string
}

// RuleParser is the deterministic keyword/regex parser
type RuleParser struct {
	catalog *catalog.Catalog
	log     zerolog.Logger
	aliases []alias
	sectors []sectorKeyword
	filler  *regexp.Regexp
}

// NewRuleParser creates a rule parser for the fields of the given catalog
func NewRuleParser(cat *catalog.Catalog, log zerolog.Logger) *RuleParser {
	p := &RuleParser{
		catalog: cat,
		log:     log.With().Str("component", "rule_parser").Logger(),
	}

	for field, phrases := range fieldAliases {
		if !cat.IsAllowedField(field) {
			continue
		}
		for _, phrase := range phrases {
			p.aliases = append(p.aliases, alias{phrase: phrase, field: field})
		}
	}
	// Fields loaded from a catalog file are addressable by their own name
	for _, f := range cat.Fields() {
		if f.Type != catalog.TypeNumber {
			continue
		}
		p.aliases = append(p.aliases, alias{phrase: strings.ReplaceAll(f.Name, "_", " "), field: f.Name})
		for _, short := range f.ShortNames {
			p.aliases = append(p.aliases, alias{phrase: strings.ToLower(short), field: f.Name})
		}
	}
	sort.SliceStable(p.aliases, func(i, j int) bool {
		if len(p.aliases[i].phrase) != len(p.aliases[j].phrase) {
			return len(p.aliases[i].phrase) > len(p.aliases[j].phrase)
		}
		return p.aliases[i].phrase < p.aliases[j].phrase
	})

	for _, s := range cat.Sectors() {
		for _, kw := range s.Keywords {
			p.sectors = append(p.sectors, sectorKeyword{
				pattern: regexp.MustCompile(`\b` + regexp.QuoteMeta(strings.ToLower(kw)) + `\b`),
				sector:  s.Name,
			})
		}
	}

	fillers := append([]string(nil), fillerPhrases...)
	sort.SliceStable(fillers, func(i, j int) bool { return len(fillers[i]) > len(fillers[j]) })
	quoted := make([]string, len(fillers))
	for i, f := range fillers {
		quoted[i] = regexp.QuoteMeta(f)
	}
	p.filler = regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)

	return p
}

// Parse implements Parser. It performs no I/O and ignores ctx.
func (p *RuleParser) Parse(_ context.Context, query string) (domain.FilterSet, error) {
	parsed, err := p.ParseDetailed(query)
	if err != nil {
		return domain.FilterSet{}, err
	}
	return parsed.FilterSet, nil
}

// ParseDetailed parses a query and reports which clauses were dropped.
// Clauses missing a field, operator or number are skipped, never guessed.
func (p *RuleParser) ParseDetailed(query string) (*Parsed, error) {
	if strings.TrimSpace(query) == "" {
		return nil, p.parseError(query, "query is empty")
	}

	text := p.normalize(query)

	limit := 0
	if m := topPattern.FindStringSubmatch(text); m != nil {
		limit, _ = strconv.Atoi(m[1])
		text = topPattern.ReplaceAllString(text, " ")
	}

	var quarterRange *domain.QuarterRange
	if m := rangePattern.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		unit := domain.UnitQuarter
		if strings.HasPrefix(m[2], "year") {
			unit = domain.UnitYear
		}
		if n > 0 {
			quarterRange = &domain.QuarterRange{Value: n, Unit: unit}
		}
		text = rangePattern.ReplaceAllString(text, " ")
	}

	sector := ""
	for _, kw := range p.sectors {
		if kw.pattern.MatchString(text) {
			sector = kw.sector
			break
		}
	}
	if sector != "" {
		for _, kw := range p.sectors {
			if kw.sector == sector {
				text = kw.pattern.ReplaceAllString(text, " ")
			}
		}
	}

	var filters []domain.Filter
	var dropped []string
	for _, segment := range segmentPattern.Split(text, -1) {
		segment = strings.TrimSpace(whitespacePattern.ReplaceAllString(segment, " "))
		if segment == "" {
			continue
		}
		resolved, unresolved := p.parseSegment(segment)
		filters = append(filters, resolved...)
		dropped = append(dropped, unresolved...)
	}

	if len(dropped) > 0 {
		p.log.Debug().
			Str("query", query).
			Strs("dropped", dropped).
			Int("resolved", len(filters)).
			Msg("Dropped unresolved clauses")
	}

	if len(filters) == 0 && sector == "" && quarterRange == nil {
		return nil, p.parseError(query, "no recognizable filter")
	}

	return &Parsed{
		FilterSet: domain.NewFilterSet(sector, filters, limit, quarterRange),
		Dropped:   dropped,
	}, nil
}

func (p *RuleParser) parseError(query, reason string) error {
	return &domain.ParseError{
		Query:           query,
		Reason:          reason,
		SupportedFields: p.catalog.Names(),
	}
}

// normalize applies NFKC, lowercases, strips filler phrases, joins thousands
// separators and collapses whitespace.
func (p *RuleParser) normalize(query string) string {
	text := strings.ToLower(norm.NFKC.String(query))
	text = p.filler.ReplaceAllString(text, " ")
	for thousandsPattern.MatchString(text) {
		text = thousandsPattern.ReplaceAllString(text, "$1$2")
	}
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
}

type fieldMatch struct {
	start, end int
	field      string
}

// parseSegment resolves one segment into filters. A segment naming several
// fields is split at each field so an operator or number never crosses over
// to a neighbouring field; every piece that does not resolve is dropped.
func (p *RuleParser) parseSegment(segment string) ([]domain.Filter, []string) {
	matches := p.findFields(segment)
	if len(matches) == 0 {
		return nil, []string{segment}
	}

	var filters []domain.Filter
	var dropped []string
	for i, m := range matches {
		// The first piece keeps its prefix: "below 20 pe" is still a pe clause
		from := m.start
		if i == 0 {
			from = 0
		}
		to := len(segment)
		if i+1 < len(matches) {
			to = matches[i+1].start
		}
		rest := segment[from:m.start] + " " + segment[m.end:to]

		f, ok := parseClause(m.field, rest)
		if !ok {
			dropped = append(dropped, strings.TrimSpace(segment[from:to]))
			continue
		}
		filters = append(filters, f)
	}
	return filters, dropped
}

// parseClause builds a filter from the text around one field mention. The
// alias itself is excluded, so digits inside "52 week high" never become the value.
func parseClause(field, rest string) (domain.Filter, bool) {
	op, ok := detectOperator(rest)
	if !ok {
		return domain.Filter{}, false
	}
	value, ok := ExtractNumber(rest)
	if !ok {
		return domain.Filter{}, false
	}
	return domain.NewFilter(field, op, domain.NumberValue(value)), true
}

// findFields returns every non-overlapping alias occurrence in segment,
// ordered by position. Longer aliases claim their text first.
func (p *RuleParser) findFields(segment string) []fieldMatch {
	var matches []fieldMatch
	claimed := make([]bool, len(segment))
	for _, a := range p.aliases {
		for _, idx := range indexWords(segment, a.phrase) {
			end := idx + len(a.phrase)
			free := true
			for i := idx; i < end; i++ {
				if claimed[i] {
					free = false
					break
				}
			}
			if !free {
				continue
			}
			for i := idx; i < end; i++ {
				claimed[i] = true
			}
			matches = append(matches, fieldMatch{start: idx, end: end, field: a.field})
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].start < matches[j].start })
	return matches
}

// detectOperator tests operator phrase groups in priority order
func detectOperator(segment string) (domain.Operator, bool) {
	for _, group := range operatorPhrases {
		for _, phrase := range group.phrases {
			if isSymbol(phrase) {
				if strings.Contains(segment, phrase) {
					return group.op, true
				}
				continue
			}
			if indexWord(segment, phrase) >= 0 {
				return group.op, true
			}
		}
		if group.op == domain.OpNotEqual && notNumberPattern.MatchString(segment) {
			return group.op, true
		}
	}
	return "", false
}

// ExtractNumber returns the first numeric literal in s, honouring thousands
// separators, decimals and the %, m/mn/million, b/bn/billion and k/thousand
// suffixes.
func ExtractNumber(s string) (float64, bool) {
	m := numberPattern.FindStringSubmatchIndex(s)
	if m == nil {
		return 0, false
	}
	raw := strings.ReplaceAll(s[m[2]:m[3]], ",", "")
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}

	suffix := ""
	if m[4] >= 0 {
		suffix = s[m[4]:m[5]]
		// "20 months" must not read as 20 million
		if suffix != "%" && m[5] < len(s) && isWordByte(s[m[5]]) {
			suffix = ""
		}
	}

	switch suffix {
	case "k", "thousand":
		value *= 1e3
	case "m", "mn", "million":
		value *= 1e6
	case "b", "bn", "billion":
		value *= 1e9
	}
	return value, true
}

// ParseNumber parses a standalone numeric literal such as "2.5b" or "1,200"
func ParseNumber(s string) (float64, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	v, ok := ExtractNumber(s)
	if !ok {
		return 0, fmt.Errorf("no number in %q", s)
	}
	return v, nil
}

// indexWord returns the index of phrase in s where it is not part of a larger word
func indexWord(s, phrase string) int {
	start := 0
	for {
		idx := strings.Index(s[start:], phrase)
		if idx < 0 {
			return -1
		}
		idx += start
		end := idx + len(phrase)
		before := idx == 0 || !isWordByte(s[idx-1])
		after := end == len(s) || !isWordByte(s[end])
		if before && after {
			return idx
		}
		start = idx + 1
	}
}

// indexWords returns every index of phrase in s on word boundaries
func indexWords(s, phrase string) []int {
	var out []int
	for start := 0; start < len(s); {
		idx := indexWord(s[start:], phrase)
		if idx < 0 {
			break
		}
		out = append(out, start+idx)
		start += idx + len(phrase)
	}
	return out
}

func isWordByte(b byte) bool {
	return b == '_' || unicode.IsLetter(rune(b)) || unicode.IsDigit(rune(b))
}

func isSymbol(phrase string) bool {
	for _, r := range phrase {
		if unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
