package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strataflow/extractengine/pkg/llmclient"
	"github.com/strataflow/extractengine/pkg/model"
	"github.com/strataflow/extractengine/pkg/ratelimit"
	"github.com/strataflow/extractengine/pkg/strategy"
)

// TestDispatcher_RealBuiltinRegistryProductLLM dispatches through the real
// strategy.RegisterBuiltins catalog instead of the hand-written fakeStrategy
// stand-ins the rest of this file's tests use. It pins down spec.md §8
// Scenario 2 ("URL mapping routes to the right strategy") against the
// actual CryptoLLM/ProductLLM/etc. constructors: a mapping naming a builtin
// extractor by name, with no llm_config of its own, must still dispatch
// successfully because RegisterBuiltins' defaults supply Provider/Model.
func TestDispatcher_RealBuiltinRegistryProductLLM(t *testing.T) {
	client := &llmclient.StubClient{
		Response: llmclient.CompleteResult{JSON: `{"title": "Widget", "price": 9.99}`},
	}

	reg := strategy.NewRegistry()
	strategy.RegisterBuiltins(reg, client, strategy.DefaultLLMConfig{Provider: "openai", Model: "gpt-4o-mini"})
	factory := strategy.NewFactory(reg)

	configs := &fakeConfigs{byID: map[string]model.URLConfiguration{
		"cfg-1": {ID: "cfg-1", Name: "Amazon", URL: "https://amazon.com/dp/1"},
	}}
	mappings := &fakeMappings{byURL: map[string]model.URLMapping{
		"https://amazon.com/dp/1": {
			ID: "map-1", URLConfigID: "cfg-1", URL: "https://amazon.com/dp/1",
			ExtractorIDs: model.JSONList{"ProductLLM"}, RateLimit: 60,
		},
	}}

	d := New(configs, mappings, factory, ratelimit.NewMemoryLimiter())
	result, err := d.Dispatch(context.Background(), "https://amazon.com/dp/1", "a page about a widget", Overrides{})
	require.NoError(t, err)

	assert.Equal(t, "Widget", result.Record["title"])
	assert.Len(t, client.Calls, 1)

	meta, ok := result.Record["_metadata"].(map[string]interface{})
	require.True(t, ok, "expected _metadata map, got %T", result.Record["_metadata"])
	assert.Equal(t, "map-1", meta["mapping_id"])
}
