package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind classifies a provider failure.
type ErrorKind string

// Provider failure kinds.
const (
	KindTimeout     ErrorKind = "timeout"
	KindRateLimited ErrorKind = "rate_limited"
	KindMalformed   ErrorKind = "malformed"
	KindUnavailable ErrorKind = "unavailable"
)

// ErrMalformed marks a response that could not be decoded or normalized.
var ErrMalformed = errors.New("malformed response")

// ProviderError is a recoverable failure of a single provider call.
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// StatusError is a non-2xx vendor response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Classify wraps err in a ProviderError for provider. A nil err yields nil
// and an existing ProviderError is returned unchanged.
func Classify(provider string, err error) *ProviderError {
	if err == nil {
		return nil
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}

	return &ProviderError{Provider: provider, Kind: kindOf(err), Err: err}
}

func kindOf(err error) ErrorKind {
	// A budget wait cut short by the deadline wraps both; no call was made.
	if errors.Is(err, ErrBudgetExhausted) || errors.Is(err, ErrDailyLimitReached) {
		return KindRateLimited
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	var se *StatusError
	if errors.As(err, &se) {
		switch se.StatusCode {
		case http.StatusTooManyRequests:
			return KindRateLimited
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return KindTimeout
		}
		return KindUnavailable
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.Is(err, ErrMalformed) || errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return KindMalformed
	}

	return KindUnavailable
}
