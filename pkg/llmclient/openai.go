package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/strataflow/extractengine/internal/httpclient"
	"github.com/strataflow/extractengine/pkg/apierr"
)

// ProviderConfig describes one OpenAI-Chat-Completions-compatible provider:
// its base URL and the API key to send as a bearer token.
type ProviderConfig struct {
	BaseURL string
	APIKey  string
}

// OpenAICompatibleClient implements LLMClient against any provider speaking
// the OpenAI Chat Completions wire format (OpenAI itself, OpenRouter, and
// self-hosted gateways that mimic it). Retry and backoff are delegated to
// internal/httpclient per SPEC_FULL.md §4.4.3.
type OpenAICompatibleClient struct {
	httpClient *httpclient.Client
	providers  map[string]ProviderConfig
}

// NewOpenAICompatibleClient builds a client over the given provider tag ->
// config map. Provider tags are the strings strategies pass to Complete
// ("openai", "openrouter", ...).
func NewOpenAICompatibleClient(providers map[string]ProviderConfig) *OpenAICompatibleClient {
	return &OpenAICompatibleClient{
		httpClient: httpclient.New(
			httpclient.WithHeaderParser(httpclient.ParseOpenAIStyleRateLimitHeaders),
		),
		providers: providers,
	}
}

type chatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type       string         `json:"type"`
	JSONSchema jsonSchemaSpec `json:"json_schema"`
}

type jsonSchemaSpec struct {
	Name   string                 `json:"name"`
	Strict bool                   `json:"strict"`
	Schema map[string]interface{} `json:"schema"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Complete implements LLMClient.
func (c *OpenAICompatibleClient) Complete(ctx context.Context, provider string, req CompleteRequest) (CompleteResult, error) {
	cfg, ok := c.providers[provider]
	if !ok {
		return CompleteResult{}, apierr.New(apierr.Configuration, fmt.Sprintf("unknown LLM provider %q", provider))
	}

	model := resolveModelID(provider, req.Model)

	messages := make([]chatMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = chatMessage{Role: m.Role, Content: m.Content}
	}

	body := chatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.Schema != nil {
		body.ResponseFormat = &responseFormat{
			Type: "json_schema",
			JSONSchema: jsonSchemaSpec{
				Name:   "extraction_result",
				Strict: true,
				Schema: req.Schema,
			},
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return CompleteResult{}, apierr.Wrap(apierr.Configuration, "marshal chat completion request", err)
	}

	url := strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return CompleteResult{}, apierr.Wrap(apierr.Configuration, "build chat completion request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return CompleteResult{}, apierr.Wrap(apierr.APIConnection, "LLM request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return CompleteResult{}, apierr.Wrap(apierr.APIConnection, "read LLM response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return CompleteResult{}, apierr.New(apierr.APIResponse,
			fmt.Sprintf("LLM provider %q returned HTTP %d: %s", provider, resp.StatusCode, string(respBody)))
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return CompleteResult{}, apierr.Wrap(apierr.ContentParsing, "decode LLM response envelope", err)
	}
	if len(parsed.Choices) == 0 {
		return CompleteResult{}, apierr.New(apierr.ContentParsing, "LLM response contained no choices")
	}

	return CompleteResult{
		JSON: parsed.Choices[0].Message.Content,
		Usage: TokenUsage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		},
	}, nil
}

// resolveModelID prefixes model with "openrouter/" for the openrouter
// provider tag, unless it is already so prefixed (SPEC_FULL.md §4.4.2).
func resolveModelID(provider, model string) string {
	if provider == "openrouter" && !strings.HasPrefix(model, "openrouter/") {
		return "openrouter/" + model
	}
	return model
}

var _ LLMClient = (*OpenAICompatibleClient)(nil)
