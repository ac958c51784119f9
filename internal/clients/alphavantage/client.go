// Package alphavantage provides a client for the Alpha Vantage market data API.
// Only the company overview endpoint is used; it carries the fundamentals the
// live screener evaluates.
package alphavantage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/screener/internal/ratelimit"
)

const defaultBaseURL = "https://www.alphavantage.co/query"

// CompanyOverview is the OVERVIEW response. Every attribute is kept verbatim
// in Fields; the identifying ones are also copied into typed fields.
type CompanyOverview struct {
	Fields   map[string]string
	Symbol   string
	Name     string
	Exchange string
	Sector   string
	Industry string
}

// Number returns the named attribute coerced to a number
func (o *CompanyOverview) Number(key string) (float64, bool) {
	raw, ok := o.Fields[key]
	if !ok {
		return 0, false
	}
	return ParseNumber(raw)
}

// Client is the Alpha Vantage API client
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	log        zerolog.Logger
}

// NewClient creates a new Alpha Vantage client. The limiter is shared by
// every caller in the process; nil disables local limiting.
func NewClient(apiKey string, limiter *ratelimit.Limiter, log zerolog.Logger) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: limiter,
		log:     log.With().Str("component", "alphavantage").Logger(),
	}
}

// GetRemainingRequests returns the requests left today, or -1 when unlimited
func (c *Client) GetRemainingRequests() int {
	if c.limiter == nil {
		return -1
	}
	_, day := c.limiter.Remaining()
	return day
}

// GetCompanyOverview fetches fundamentals for one symbol
func (c *Client) GetCompanyOverview(ctx context.Context, symbol string) (*CompanyOverview, error) {
	body, err := c.doRequest(ctx, "OVERVIEW", map[string]string{"symbol": symbol})
	if err != nil {
		return nil, err
	}

	overview, err := parseCompanyOverview(body)
	if err != nil {
		return nil, err
	}
	if overview.Symbol == "" {
		return nil, ErrSymbolNotFound{Symbol: symbol}
	}
	return overview, nil
}

// doRequest performs one rate-limited GET and screens the body for API errors
func (c *Client) doRequest(ctx context.Context, function string, params map[string]string) ([]byte, error) {
	if c.apiKey == "" {
		return nil, ErrInvalidAPIKey{}
	}

	if c.limiter != nil {
		// Blocks through a full minute window; a spent daily quota fails at once
		if err := c.limiter.Wait(ctx); err != nil {
			var limitErr *ratelimit.LimitError
			if errors.As(err, &limitErr) {
				return nil, ErrRateLimitExceeded{Reason: limitErr.Error()}
			}
			return nil, err
		}
	}

	query := url.Values{}
	query.Set("function", function)
	for k, v := range params {
		query.Set(k, v)
	}
	query.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.log.Debug().
		Str("function", function).
		Str("symbol", params["symbol"]).
		Msg("Making Alpha Vantage request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimitExceeded{Reason: "HTTP 429"}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("alpha vantage API error: status %d", resp.StatusCode)
	}

	if err := c.checkAPIError(body); err != nil {
		if errors.As(err, new(ErrRateLimitExceeded)) {
			c.log.Warn().Str("function", function).Msg("Alpha Vantage rate limit reached")
		}
		return nil, err
	}

	return body, nil
}

// checkAPIError detects error payloads that arrive with HTTP 200
func (c *Client) checkAPIError(body []byte) error {
	text := string(body)
	if strings.Contains(text, "Thank you for using Alpha Vantage") {
		return ErrRateLimitExceeded{Reason: "daily quota reached"}
	}

	var envelope map[string]any
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil
	}

	if note, ok := envelope["Note"].(string); ok {
		return ErrRateLimitExceeded{Reason: note}
	}
	if info, ok := envelope["Information"].(string); ok {
		lower := strings.ToLower(info)
		if strings.Contains(lower, "api key") && !strings.Contains(lower, "rate limit") {
			return ErrInvalidAPIKey{}
		}
		return ErrRateLimitExceeded{Reason: info}
	}
	if msg, ok := envelope["Error Message"].(string); ok {
		if strings.Contains(strings.ToLower(msg), "apikey") {
			return ErrInvalidAPIKey{}
		}
		return ErrAPI{Message: msg}
	}
	return nil
}

// parseCompanyOverview decodes an OVERVIEW body. An empty object means the
// symbol is unknown and yields an overview without a symbol.
func parseCompanyOverview(body []byte) (*CompanyOverview, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode overview: %w", err)
	}

	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			fields[k] = val
		case float64:
			fields[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case nil:
			fields[k] = "None"
		}
	}

	return &CompanyOverview{
		Fields:   fields,
		Symbol:   fields["Symbol"],
		Name:     fields["Name"],
		Exchange: fields["Exchange"],
		Sector:   fields["Sector"],
		Industry: fields["Industry"],
	}, nil
}

// ParseNumber coerces a provider string to a number. Percent signs, thousands
// separators, currency symbols and whitespace are stripped; "None", "null",
// "-" and "" mean the value is missing.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "none", "null", "-", "n/a", "nan":
		return 0, false
	}

	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '%', ',', '$', '€', '£', '¥', '₹', ' ':
			return -1
		}
		return r
	}, s)

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
