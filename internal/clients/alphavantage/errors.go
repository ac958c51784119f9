package alphavantage

import "fmt"

// ErrRateLimitExceeded is returned when the provider or the local limiter
// refuses a request.
type ErrRateLimitExceeded struct {
	Reason string
}

func (e ErrRateLimitExceeded) Error() string {
	if e.Reason != "" {
		return "alpha vantage rate limit exceeded: " + e.Reason
	}
	return "alpha vantage rate limit exceeded"
}

// ErrInvalidAPIKey is returned when the API key is missing or rejected
type ErrInvalidAPIKey struct{}

func (e ErrInvalidAPIKey) Error() string {
	return "alpha vantage API key is invalid or missing"
}

// ErrSymbolNotFound is returned when the provider has no data for a symbol
type ErrSymbolNotFound struct {
	Symbol string
}

func (e ErrSymbolNotFound) Error() string {
	return fmt.Sprintf("alpha vantage has no data for symbol %s", e.Symbol)
}

// ErrAPI carries any other error message returned in a response body
type ErrAPI struct {
	Message string
}

func (e ErrAPI) Error() string {
	return "alpha vantage error: " + e.Message
}
