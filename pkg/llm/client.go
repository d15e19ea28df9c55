// Package llm abstracts the language-model vendor: a text-in/text-out
// call with a model id, a system prompt, and a user prompt. Status codes
// are classified so callers can retry transient failures and fall back
// between models on overload.
package llm

import (
	"context"
	"fmt"
)

// Request is a single completion call.
type Request struct {
	Model     string
	System    string
	Prompt    string
	MaxTokens int
}

// Client is the vendor contract consumed by the participant gateway and
// the fact-check referee.
type Client interface {
	// Complete returns the model's text response. Vendor-side failures
	// carry a *StatusError so callers can classify them.
	Complete(ctx context.Context, req Request) (string, error)
}

// StatusError is a non-2xx vendor response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llm: status %d: %s", e.StatusCode, truncate(e.Body, 200))
}

// Retryable reports whether the status warrants a retry on the same
// model.
func (e *StatusError) Retryable() bool {
	switch e.StatusCode {
	case 429, 500, 502, 503, 529:
		return true
	}
	return false
}

// Overloaded reports whether the status should trigger model fallback.
func (e *StatusError) Overloaded() bool {
	return e.StatusCode == 429 || e.StatusCode == 529
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
