package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind categorizes why an upstream request failed.
type ErrorKind string

const (
	// KindTimeout indicates the upstream call exceeded its deadline.
	KindTimeout ErrorKind = "timeout"

	// KindRateLimit indicates upstream throttling (HTTP 429).
	KindRateLimit ErrorKind = "rate_limit"

	// KindAPIError covers all other upstream API failures.
	KindAPIError ErrorKind = "api_error"

	// KindConfigError indicates the gateway's own configuration was unusable
	// for the request, including an active-provider mismatch.
	KindConfigError ErrorKind = "config_error"
)

// ProviderError is a structured error from an upstream provider or from the
// configuration resolution preceding the call.
type ProviderError struct {
	Kind     ErrorKind
	Provider string
	Model    string
	Status   int
	Message  string
	Cause    error
}

func (e *ProviderError) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s]", e.Kind))
	if e.Provider != "" {
		parts = append(parts, e.Provider)
	}
	if e.Model != "" {
		parts = append(parts, "model="+e.Model)
	}
	if e.Status != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.Status))
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, " ")
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// WrapError classifies err into a ProviderError for the given provider/model.
// An existing ProviderError passes through with provider context filled in.
func WrapError(provider, model string, err error) *ProviderError {
	var pe *ProviderError
	if errors.As(err, &pe) {
		if pe.Provider == "" {
			pe.Provider = provider
		}
		if pe.Model == "" {
			pe.Model = model
		}
		return pe
	}
	return &ProviderError{
		Kind:     Classify(err),
		Provider: provider,
		Model:    model,
		Message:  err.Error(),
		Cause:    err,
	}
}

// Classify maps an error to an ErrorKind. Typed context errors are checked
// first; otherwise a lowercase substring match on the error text decides,
// since several SDKs do not distinguish timeout from rate-limit in the type
// system.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindAPIError
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "timeout"),
		strings.Contains(errStr, "deadline exceeded"),
		strings.Contains(errStr, "context deadline"):
		return KindTimeout
	case strings.Contains(errStr, "rate limit"),
		strings.Contains(errStr, "rate_limit"),
		strings.Contains(errStr, "too many requests"),
		strings.Contains(errStr, "429"):
		return KindRateLimit
	case strings.Contains(errStr, "configuration mismatch"),
		strings.Contains(errStr, "api key"),
		strings.Contains(errStr, "api_key"):
		return KindConfigError
	default:
		return KindAPIError
	}
}

// ClassifyStatus maps an HTTP status code to an ErrorKind.
func ClassifyStatus(status int) ErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return KindTimeout
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindConfigError
	default:
		return KindAPIError
	}
}

// AsProviderError extracts a ProviderError from an error chain.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
