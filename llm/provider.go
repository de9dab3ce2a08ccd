package llm

import (
	"context"
	"fmt"
	"net/http"

	"toolgate/tool"
)

// Request is everything a provider needs for one round of generation.
type Request struct {
	Model        string
	SystemPrompt string
	Messages     []Message
	Tools        []tool.Schema
	MaxTokens    int
	Temperature  *float64
}

// FinalResponse is a fully materialized (non-streaming) provider response.
type FinalResponse struct {
	Message      Message
	FinishReason FinishReason
	Usage        Usage
}

// Stream is an in-progress streaming response. Err must be checked both
// before and after iterating: a request that failed outright produces a
// stream that yields nothing.
type Stream interface {
	// Iter returns a function that can be used to iterate over the stream's
	// chunks. If the yield function returns false, iteration stops and the
	// rest of the response is discarded.
	Iter() func(yield func(Chunk) bool)
	// Err returns the error that occurred while reading the stream, if any.
	Err() error
	// FinishReason returns the completion-reason marker observed so far.
	FinishReason() FinishReason
	// Usage returns the token usage reported by the stream, if any.
	Usage() *Usage
}

// Provider is the completion provider collaborator. Implementations must be
// safe to call concurrently from multiple in-flight requests.
type Provider interface {
	Name() string
	// Complete performs one blocking round of generation.
	Complete(ctx context.Context, req Request) (*FinalResponse, error)
	// Stream performs one round of generation, delivered incrementally.
	Stream(ctx context.Context, req Request) Stream
}

// ProviderError is a failure reported by the provider itself. Unlike tool
// failures it cannot be recovered by continuing the tool loop.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider returned %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether the failure is worth retrying per the usual
// HTTP semantics (rate limiting or a server-side fault).
func (e *ProviderError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
