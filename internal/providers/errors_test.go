package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"deadline exceeded", context.DeadlineExceeded, KindTimeout},
		{"wrapped deadline", fmt.Errorf("upstream: %w", context.DeadlineExceeded), KindTimeout},
		{"timeout text", errors.New("request timeout after 60s"), KindTimeout},
		{"rate limit text", errors.New("Rate limit exceeded"), KindRateLimit},
		{"429 text", errors.New("unexpected status 429"), KindRateLimit},
		{"too many requests", errors.New("Too Many Requests"), KindRateLimit},
		{"invalid key", errors.New("invalid API key provided"), KindConfigError},
		{"provider mismatch", errors.New("configuration mismatch: expected provider 'openai'"), KindConfigError},
		{"generic", errors.New("internal server error"), KindAPIError},
		{"nil", nil, KindAPIError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorKind
	}{
		{http.StatusTooManyRequests, KindRateLimit},
		{http.StatusRequestTimeout, KindTimeout},
		{http.StatusGatewayTimeout, KindTimeout},
		{http.StatusUnauthorized, KindConfigError},
		{http.StatusForbidden, KindConfigError},
		{http.StatusInternalServerError, KindAPIError},
		{http.StatusBadRequest, KindAPIError},
	}

	for _, tt := range tests {
		if got := ClassifyStatus(tt.status); got != tt.want {
			t.Errorf("ClassifyStatus(%d) = %s, want %s", tt.status, got, tt.want)
		}
	}
}

func TestWrapError_PassesThroughProviderError(t *testing.T) {
	original := &ProviderError{Kind: KindRateLimit, Message: "throttled"}
	wrapped := WrapError("openai", "gpt-4o", fmt.Errorf("call failed: %w", original))

	if wrapped.Kind != KindRateLimit {
		t.Errorf("kind = %s, want %s", wrapped.Kind, KindRateLimit)
	}
	if wrapped.Provider != "openai" || wrapped.Model != "gpt-4o" {
		t.Errorf("context not filled in: %+v", wrapped)
	}
}

func TestWrapError_ClassifiesPlainError(t *testing.T) {
	wrapped := WrapError("anthropic", "claude-3-5-sonnet-20241022", errors.New("rate limit hit"))
	if wrapped.Kind != KindRateLimit {
		t.Errorf("kind = %s, want %s", wrapped.Kind, KindRateLimit)
	}
	if !errors.Is(wrapped, wrapped.Cause) {
		t.Error("cause not reachable via errors.Is")
	}
}

func TestProviderError_ErrorString(t *testing.T) {
	err := &ProviderError{
		Kind:     KindTimeout,
		Provider: "gemini",
		Model:    "gemini-1.5-flash",
		Message:  "deadline exceeded",
	}
	got := err.Error()
	want := "[timeout] gemini model=gemini-1.5-flash deadline exceeded"
	if got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
