package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/strataflow/extractengine/pkg/apierr"
	"github.com/strataflow/extractengine/pkg/llmclient"
	"github.com/strataflow/extractengine/pkg/schema"
)

// LLMStrategyConfig is the constructor parameter shape for an LLMStrategy,
// also the source DeriveConfigSchema reflects over for its config_schema.
type LLMStrategyConfig struct {
	Provider       string                 `json:"provider" jsonschema:"required,description=LLM provider tag (openai, openrouter, ...)"`
	Model          string                 `json:"model" jsonschema:"required,description=Model identifier"`
	Instruction    string                 `json:"instruction" jsonschema:"required,description=Natural-language extraction instruction"`
	OutputSchema   map[string]interface{} `json:"output_schema" jsonschema:"required,description=JSON Schema the extracted record must satisfy"`
	Temperature    float64                `json:"temperature,omitempty" jsonschema:"default=0.2"`
	MaxTokens      int                    `json:"max_tokens,omitempty" jsonschema:"default=1024"`
	Timeout        int                    `json:"timeout_seconds,omitempty" jsonschema:"default=60,description=Per-call timeout in seconds"`
	MaxRetries     int                    `json:"max_retries,omitempty" jsonschema:"default=3"`
	MaxInputLength int                    `json:"max_input_length,omitempty" jsonschema:"default=8000,description=Maximum characters of content forwarded to the model"`
	APICategory    string                 `json:"category,omitempty" jsonschema:"description=Declared content-type affinity"`
}

const systemPromptPrefix = "You are an expert extractor. Return JSON matching the provided schema."

// LLMStrategy is the concrete extraction strategy (component E): it renders
// a prompt from an instruction and content, calls an LLMClient, and parses
// and validates the JSON response.
type LLMStrategy struct {
	name      string
	client    llmclient.LLMClient
	cfg       LLMStrategyConfig
	validator *schema.Validator
}

// NewLLMStrategy builds an LLMStrategy named name, bound to client.
func NewLLMStrategy(name string, client llmclient.LLMClient, cfg LLMStrategyConfig) (*LLMStrategy, error) {
	if cfg.Provider == "" || cfg.Model == "" || cfg.Instruction == "" {
		return nil, apierr.New(apierr.Configuration, "provider, model, and instruction are required")
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.2
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.MaxInputLength == 0 {
		cfg.MaxInputLength = 8000
	}

	var validator *schema.Validator
	if len(cfg.OutputSchema) > 0 {
		v, err := schema.Compile(cfg.OutputSchema)
		if err != nil {
			return nil, apierr.Wrap(apierr.Configuration, "compile output schema", err)
		}
		validator = v
	}

	return &LLMStrategy{name: name, client: client, cfg: cfg, validator: validator}, nil
}

func (s *LLMStrategy) Name() string     { return s.name }
func (s *LLMStrategy) Category() string { return s.cfg.APICategory }

// Extract implements Strategy. Retries on APIConnection/APIResponse are
// handled inside the LLMClient (internal/httpclient); this method owns
// prompt construction, response parsing, and schema validation per
// SPEC_FULL.md §4.4.
func (s *LLMStrategy) Extract(ctx context.Context, url, content string, opts Options) (Record, error) {
	ctx, cancel := effectiveDeadline(ctx, time.Duration(s.cfg.Timeout)*time.Second)
	defer cancel()

	truncated := truncateHead(content, s.cfg.MaxInputLength)

	result, err := s.client.Complete(ctx, s.cfg.Provider, llmclient.CompleteRequest{
		Model: s.cfg.Model,
		Messages: []llmclient.Message{
			{Role: "system", Content: systemPromptPrefix + " " + s.cfg.Instruction},
			{Role: "user", Content: truncated},
		},
		Schema:      s.cfg.OutputSchema,
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
		Timeout:     time.Duration(s.cfg.Timeout) * time.Second,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, apierr.Wrap(apierr.Timeout, fmt.Sprintf("strategy %q timed out", s.name), err)
		}
		return nil, err
	}

	parsed, err := parseJSONResponse(result.JSON)
	if err != nil {
		return nil, apierr.Wrap(apierr.ContentParsing, fmt.Sprintf("strategy %q could not parse LLM output", s.name), err)
	}

	if s.validator != nil {
		if verr := s.validator.Validate(parsed); verr != nil {
			return nil, apierr.Wrap(apierr.Validation, fmt.Sprintf("strategy %q output failed schema validation", s.name), verr)
		}
	}

	record := Record(parsed)
	record["_metadata"] = map[string]interface{}{
		"strategy":            s.name,
		"strategy_version":    1,
		"extraction_timestamp": time.Now().UTC().Format(time.RFC3339),
		"provider":            s.cfg.Provider,
		"model":               s.cfg.Model,
	}
	if result.Usage.TotalTokens > 0 {
		record["_metadata"].(map[string]interface{})["token_usage"] = map[string]interface{}{
			"prompt_tokens":     result.Usage.PromptTokens,
			"completion_tokens": result.Usage.CompletionTokens,
			"total_tokens":      result.Usage.TotalTokens,
		}
	}

	return record, nil
}

// truncateHead deterministically truncates content to at most maxLen
// characters, keeping the head (SPEC_FULL.md §4.4.1 default).
func truncateHead(content string, maxLen int) string {
	if maxLen <= 0 || len(content) <= maxLen {
		return content
	}
	return content[:maxLen]
}

// parseJSONResponse decodes raw as JSON, unwrapping a fenced code block
// first if present (SPEC_FULL.md §4.4.4).
func parseJSONResponse(raw string) (map[string]interface{}, error) {
	candidate := unwrapFencedCodeBlock(raw)

	var out map[string]interface{}
	if err := json.Unmarshal([]byte(candidate), &out); err != nil {
		return nil, fmt.Errorf("response is not valid JSON: %w", err)
	}
	return out, nil
}

func unwrapFencedCodeBlock(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return trimmed
	}
	// Drop the opening fence (optionally tagged, e.g. ```json) and the
	// trailing fence line if present.
	lines = lines[1:]
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

var _ Strategy = (*LLMStrategy)(nil)
