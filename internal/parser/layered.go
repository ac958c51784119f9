package parser

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/screener/internal/domain"
)

// DefaultModelTimeout bounds a single model call
const DefaultModelTimeout = 8 * time.Second

// LayeredParser tries the model tier first, when configured, and falls back to
// the rule tier on any model failure. Model errors never reach the caller.
type LayeredParser struct {
	rules   *RuleParser
	model   Parser
	timeout time.Duration
	log     zerolog.Logger
}

// NewLayeredParser creates a layered parser. model may be nil, in which case
// only the rules are used.
func NewLayeredParser(rules *RuleParser, model Parser, timeout time.Duration, log zerolog.Logger) *LayeredParser {
	if timeout <= 0 {
		timeout = DefaultModelTimeout
	}
	return &LayeredParser{
		rules:   rules,
		model:   model,
		timeout: timeout,
		log:     log.With().Str("component", "layered_parser").Logger(),
	}
}

// Parse implements Parser
func (p *LayeredParser) Parse(ctx context.Context, query string) (domain.FilterSet, error) {
	parsed, err := p.ParseDetailed(ctx, query)
	if err != nil {
		return domain.FilterSet{}, err
	}
	return parsed.FilterSet, nil
}

// ParseDetailed parses a query and reports which rule-tier clauses were dropped
func (p *LayeredParser) ParseDetailed(ctx context.Context, query string) (*Parsed, error) {
	if p.model != nil && strings.TrimSpace(query) != "" {
		modelCtx, cancel := context.WithTimeout(ctx, p.timeout)
		fs, err := p.model.Parse(modelCtx, query)
		cancel()
		if err == nil {
			p.log.Debug().Str("tier", "model").Msg("Query parsed")
			return &Parsed{FilterSet: fs}, nil
		}
		p.log.Warn().Err(err).Msg("Model parser failed, falling back to rules")
	}
	return p.rules.ParseDetailed(query)
}
