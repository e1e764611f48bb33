package strategy

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/strataflow/extractengine/pkg/apierr"
	"github.com/strataflow/extractengine/pkg/llmclient"
	"github.com/strataflow/extractengine/pkg/model"
	"github.com/strataflow/extractengine/pkg/schema"
)

// builtinDescriptor is one self-registering strategy source: a name,
// category, instruction, and output schema baked into the binary at compile
// time. SPEC_FULL.md §4.2 grounds this on hector's builtin-provider
// pattern ("dynamic class discovery by filesystem scan" is redesigned as
// compile-time registration via an init hook rather than reflection).
type builtinDescriptor struct {
	Name         string
	Category     model.StrategyCategory
	Description  string
	Instruction  string
	OutputSchema map[string]interface{}
}

// builtinCatalog is populated by init() below. It is the "declared strategy
// source location" Registry.Reload scans per SPEC_FULL.md §4.2.
var builtinCatalog []builtinDescriptor

func registerBuiltin(d builtinDescriptor) {
	builtinCatalog = append(builtinCatalog, d)
}

func init() {
	registerBuiltin(builtinDescriptor{
		Name:        "CryptoLLM",
		Category:    model.CategoryCrypto,
		Description: "Extracts crypto/token/blockchain facts from a page.",
		Instruction: "Extract the headline, mentioned tokens, price figures, and any blockchain/project names from the content.",
		OutputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"headline": map[string]interface{}{"type": "string"},
				"tokens":   map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
			},
		},
	})
	registerBuiltin(builtinDescriptor{
		Name:        "NewsLLM",
		Category:    model.CategoryNews,
		Description: "Extracts headline, byline, and summary from news content.",
		Instruction: "Extract the headline, author, publication date, and a one-paragraph summary from the content.",
		OutputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"headline": map[string]interface{}{"type": "string"},
				"summary":  map[string]interface{}{"type": "string"},
			},
		},
	})
	registerBuiltin(builtinDescriptor{
		Name:        "SocialLLM",
		Category:    model.CategorySocial,
		Description: "Extracts engagement metrics and author handle from social content.",
		Instruction: "Extract the author handle, post text, and any follower/like/share counts from the content.",
		OutputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"author": map[string]interface{}{"type": "string"},
				"text":   map[string]interface{}{"type": "string"},
			},
		},
	})
	registerBuiltin(builtinDescriptor{
		Name:        "ProductLLM",
		Category:    model.CategoryProduct,
		Description: "Extracts product name, price, and availability from e-commerce content.",
		Instruction: "Extract the product title, price, currency, and in-stock status from the content.",
		OutputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"title": map[string]interface{}{"type": "string"},
				"price": map[string]interface{}{"type": "number"},
			},
		},
	})
	registerBuiltin(builtinDescriptor{
		Name:        "FinancialLLM",
		Category:    model.CategoryFinancial,
		Description: "Extracts ticker, price, and financial figures from market content.",
		Instruction: "Extract the ticker symbol, reported price, and any earnings or dividend figures from the content.",
		OutputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"ticker": map[string]interface{}{"type": "string"},
			},
		},
	})
	registerBuiltin(builtinDescriptor{
		Name:        "AcademicLLM",
		Category:    model.CategoryAcademic,
		Description: "Extracts title, authors, and abstract from academic content.",
		Instruction: "Extract the paper title, author list, abstract, and DOI if present from the content.",
		OutputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"title":    map[string]interface{}{"type": "string"},
				"abstract": map[string]interface{}{"type": "string"},
			},
		},
	})
	registerBuiltin(builtinDescriptor{
		Name:        "NFTLLM",
		Category:    model.CategoryNFT,
		Description: "Extracts collection name, floor price, and mint status from NFT content.",
		Instruction: "Extract the collection name, floor price, and mint/listing status from the content.",
		OutputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"collection": map[string]interface{}{"type": "string"},
			},
		},
	})
	registerBuiltin(builtinDescriptor{
		Name:        "GeneralLLM",
		Category:    model.CategoryGeneral,
		Description: "Generic fallback extractor for unclassified content.",
		Instruction: "Extract a title and a short summary from the content.",
		OutputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"title":   map[string]interface{}{"type": "string"},
				"summary": map[string]interface{}{"type": "string"},
			},
		},
	})
}

// DecodeLLMStrategyConfig decodes a factory config map into LLMStrategyConfig
// using mapstructure, grounded on hector's pkg/config.decodeConfig (same
// WeaklyTypedInput decoder shape, `json` tag name instead of `yaml`). The
// builtin constructors registered by RegisterBuiltins decode through it.
func DecodeLLMStrategyConfig(raw map[string]interface{}) (LLMStrategyConfig, error) {
	var cfg LLMStrategyConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return cfg, fmt.Errorf("strategy: build config decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return cfg, fmt.Errorf("strategy: decode config: %w", err)
	}
	return cfg, nil
}

// DefaultLLMConfig carries the provider/model a dispatch through a
// persisted URLMapping falls back to when neither the mapping nor its
// extractor's stored config names one explicitly. URLMapping (SPEC_FULL.md
// §3.1) has no provider/model field of its own — extractor_ids name a
// registered strategy by catalog name only — so RegisterBuiltins bakes this
// default into every builtin's constructor, the same way cmd/extractengine
// resolves one default per deployment from the environment.
type DefaultLLMConfig struct {
	Provider string
	Model    string
}

// RegisterBuiltins seeds reg with every compile-time-registered builtin
// strategy, bound to client for their LLM calls. It is the build function
// passed to Registry.Reload (SPEC_FULL.md §4.2: "rescans... and
// re-registers; partial failures log and continue"). defaults fills in
// Provider/Model for constructions that don't supply their own (the normal
// case when a strategy is resolved by name alone through a URLMapping's
// extractor_ids, rather than via an explicit {strategy, config} spec).
func RegisterBuiltins(reg *Registry, client llmclient.LLMClient, defaults DefaultLLMConfig) {
	reg.Reload(func(seed func(model.StrategyMetadata, Constructor) error) {
		for _, d := range builtinCatalog {
			d := d
			configSchema, err := schema.DeriveConfigSchema[LLMStrategyConfig]()
			if err != nil {
				configSchema = map[string]interface{}{}
			}

			metadata := model.StrategyMetadata{
				Name:         d.Name,
				Description:  d.Description,
				Category:     d.Category,
				OutputSchema: model.JSONMap(d.OutputSchema),
				ConfigSchema: model.JSONMap(configSchema),
			}

			constructor := func(raw map[string]interface{}) (Strategy, error) {
				cfg, err := DecodeLLMStrategyConfig(raw)
				if err != nil {
					return nil, apierr.Wrap(apierr.Configuration, "decode builtin strategy config", err)
				}
				if cfg.Instruction == "" {
					cfg.Instruction = d.Instruction
				}
				if len(cfg.OutputSchema) == 0 {
					cfg.OutputSchema = d.OutputSchema
				}
				if cfg.APICategory == "" {
					cfg.APICategory = string(d.Category)
				}
				if cfg.Provider == "" {
					cfg.Provider = defaults.Provider
				}
				if cfg.Model == "" {
					cfg.Model = defaults.Model
				}
				return NewLLMStrategy(d.Name, client, cfg)
			}

			_ = seed(metadata, constructor)
		}
	})
}
