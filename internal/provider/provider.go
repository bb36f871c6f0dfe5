// Package provider normalizes heterogeneous completion providers behind a
// single Adapter interface. Adapters never let a failure escape as a raw
// error: everything comes back as a typed *Error so one bad call can be
// isolated to its own ModelResponse.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mrjcleaver/aicompare-for-discord-sub000/internal/model"
)

// ErrorKind classifies a provider failure.
type ErrorKind string

const (
	ErrAuth            ErrorKind = "auth"
	ErrRateLimit       ErrorKind = "rate_limit"
	ErrTimeout         ErrorKind = "timeout"
	ErrContentFiltered ErrorKind = "content_filtered"
	ErrUpstream        ErrorKind = "upstream_error"
	ErrUnknown         ErrorKind = "unknown"
)

// Error is the typed failure returned by every adapter.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider %s: %s", e.Kind, e.Message)
}

// Completion is the normalized successful result of one provider call.
type Completion struct {
	Content string
	Usage   model.TokenUsage
	// UsageExact is false when the provider did not report usage and the
	// counts are character-based estimates.
	UsageExact bool
}

// Adapter is the normalized client for one external completion provider.
// One adapter may serve several model identifiers.
type Adapter interface {
	// Name identifies the provider ("anthropic", "gemini", "openai").
	Name() string

	// SupportedModels lists the model identifiers this adapter serves.
	SupportedModels() []string

	// Invoke performs one completion call. The caller bounds the call
	// with a deadline on ctx; deadline expiry surfaces as *Error with
	// kind timeout. Invoke never returns a non-*Error error and never
	// panics past its boundary.
	Invoke(ctx context.Context, modelID, prompt string, params model.GenerationParams, credential string) (*Completion, *Error)

	// EstimateCost computes the estimated USD cost for a call.
	EstimateCost(modelID string, inputTokens, outputTokens int) float64

	// ValidateCredential performs a minimal real call to confirm the
	// credential is usable. It reports usability only; it never errors.
	ValidateCredential(ctx context.Context, credential string) bool
}

// classify maps an arbitrary error from a provider call to a typed Error.
// statusCode is the HTTP status when known, 0 otherwise.
func classify(err error, statusCode int) *Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: ErrTimeout, Message: "call deadline exceeded"}
	}
	if errors.Is(err, context.Canceled) {
		return &Error{Kind: ErrTimeout, Message: "call cancelled"}
	}

	switch {
	case statusCode == 401 || statusCode == 403:
		return &Error{Kind: ErrAuth, Message: err.Error()}
	case statusCode == 429:
		return &Error{Kind: ErrRateLimit, Message: err.Error()}
	case statusCode >= 500:
		return &Error{Kind: ErrUpstream, Message: err.Error()}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "deadline exceeded") || strings.Contains(msg, "timeout"):
		return &Error{Kind: ErrTimeout, Message: err.Error()}
	case strings.Contains(msg, "api key") || strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "authentication") || strings.Contains(msg, "permission"):
		return &Error{Kind: ErrAuth, Message: err.Error()}
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "429") ||
		strings.Contains(msg, "resource_exhausted") || strings.Contains(msg, "quota"):
		return &Error{Kind: ErrRateLimit, Message: err.Error()}
	case strings.Contains(msg, "content_filter") || strings.Contains(msg, "safety") ||
		strings.Contains(msg, "blocked"):
		return &Error{Kind: ErrContentFiltered, Message: err.Error()}
	case strings.Contains(msg, "overloaded") || strings.Contains(msg, "unavailable") ||
		strings.Contains(msg, "internal server"):
		return &Error{Kind: ErrUpstream, Message: err.Error()}
	}

	return &Error{Kind: ErrUnknown, Message: err.Error()}
}

// estimateTokens approximates token count from character length for
// providers that do not report usage. Roughly 4 characters per token.
func estimateTokens(s string) int {
	n := len(s) / 4
	if n == 0 && len(s) > 0 {
		n = 1
	}
	return n
}
