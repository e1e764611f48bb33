// Package llmclient abstracts chat-completion with a JSON-schema-constrained
// response (component A). The LLM extraction strategy (pkg/strategy) is the
// only caller; network mechanics, retries, and provider quirks live here so
// strategies stay free of transport concerns.
package llmclient

import (
	"context"
	"time"
)

// Message is one turn of a chat-completion conversation.
type Message struct {
	Role    string // "system", "user", or "assistant"
	Content string
}

// TokenUsage reports the token accounting for one completion, when the
// provider supplies it.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompleteRequest carries everything an LLMClient needs to perform one
// schema-constrained chat completion.
type CompleteRequest struct {
	Model       string
	Messages    []Message
	Schema      map[string]interface{} // JSON Schema the response must satisfy
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// CompleteResult is the raw JSON text returned by the provider plus whatever
// token accounting it reported.
type CompleteResult struct {
	JSON  string
	Usage TokenUsage
}

// LLMClient is the abstract boundary strategies call through. Concrete
// implementations (e.g. OpenAICompatibleClient) own the HTTP mechanics,
// retries, and provider-specific request shaping; callers only ever see
// apierr-wrapped failures.
type LLMClient interface {
	// Complete performs one chat completion constrained to req.Schema.
	// Errors are wrapped in *apierr.Error with Kind APIConnection or
	// APIResponse for transport and HTTP failures, Configuration for an
	// unknown provider or a request that cannot be built, and ContentParsing
	// for an unreadable response envelope (see pkg/apierr).
	Complete(ctx context.Context, provider string, req CompleteRequest) (CompleteResult, error)
}
