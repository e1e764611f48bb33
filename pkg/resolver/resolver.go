// Package resolver implements the Resolver & Dispatcher (component J):
// given (url, content) it matches a persisted URLMapping, loads its owning
// URLConfiguration, enforces the mapping's rate budget, resolves its
// extractors through the Strategy Factory, executes them, and returns the
// record annotated with dispatch provenance (SPEC_FULL.md §4.8).
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/strataflow/extractengine/pkg/apierr"
	"github.com/strataflow/extractengine/pkg/model"
	"github.com/strataflow/extractengine/pkg/ratelimit"
	"github.com/strataflow/extractengine/pkg/strategy"
)

// ConfigReader is the subset of *store.ConfigStore the dispatcher needs,
// narrowed to ease testing with a fake.
type ConfigReader interface {
	Get(ctx context.Context, id string) (model.URLConfiguration, error)
}

// MappingReader is the subset of *store.MappingStore the dispatcher needs.
type MappingReader interface {
	MatchByURL(ctx context.Context, url string) (model.URLMapping, error)
}

// Recorder receives dispatch outcomes for metrics export. A nil Recorder on
// Dispatcher is a no-op, matching the limiter's own nil-safe default.
type Recorder interface {
	ObserveDispatch(mappingID string, success bool, durationMS float64)
	ObserveRateLimited(mappingID string)
	ObserveStrategyError(strategyName, kind string)
}

// Dispatcher is the Resolver & Dispatcher (component J).
type Dispatcher struct {
	configs  ConfigReader
	mappings MappingReader
	factory  *strategy.Factory
	limiter  ratelimit.Limiter
	metrics  Recorder
}

// New builds a Dispatcher over its collaborators.
func New(configs ConfigReader, mappings MappingReader, factory *strategy.Factory, limiter ratelimit.Limiter) *Dispatcher {
	if limiter == nil {
		limiter = ratelimit.NewMemoryLimiter()
	}
	return &Dispatcher{configs: configs, mappings: mappings, factory: factory, limiter: limiter}
}

// WithMetrics attaches a Recorder that observes every subsequent dispatch
// outcome. Returns d for chaining at construction time in cmd/extractengine.
func (d *Dispatcher) WithMetrics(m Recorder) *Dispatcher {
	d.metrics = m
	return d
}

func (d *Dispatcher) observeDispatch(mappingID string, success bool, duration time.Duration) {
	if d.metrics != nil {
		d.metrics.ObserveDispatch(mappingID, success, float64(duration.Milliseconds()))
	}
}

func (d *Dispatcher) observeRateLimited(mappingID string) {
	if d.metrics != nil {
		d.metrics.ObserveRateLimited(mappingID)
	}
}

// Overrides lets a caller steer dispatch beyond what the matched persisted
// mapping stores: MergeMode overrides the ensemble's merge strategy.
type Overrides struct {
	MergeMode strategy.MergeMode
}

// Result is what Dispatch returns to its caller: the merged record plus the
// mapping/config it resolved, for HTTP-layer logging and response shaping.
type Result struct {
	Record  strategy.Record
	Mapping model.URLMapping
	Config  model.URLConfiguration
}

// Dispatch implements SPEC_FULL.md §4.8 steps 1-7.
func (d *Dispatcher) Dispatch(ctx context.Context, url, content string, overrides Overrides) (Result, error) {
	start := time.Now()

	mapping, err := d.mappings.MatchByURL(ctx, url)
	if err != nil {
		return Result{}, err
	}

	cfg, err := d.configs.Get(ctx, mapping.URLConfigID)
	if err != nil {
		// An orphaned mapping (its configuration was deleted) surfaces as
		// NotFound, never a dangling reference (SPEC_FULL.md §8).
		return Result{}, apierr.Wrap(apierr.NotFound, fmt.Sprintf("url mapping %q references a deleted configuration", mapping.ID), err)
	}

	allowed, retryAfter, err := d.limiter.Allow(mapping.ID, int64(mapping.RateLimit))
	if err != nil {
		return Result{}, apierr.Wrap(apierr.Configuration, "rate limiter failure", err)
	}
	if !allowed {
		d.observeRateLimited(mapping.ID)
		return Result{}, apierr.New(apierr.RateLimitExceeded,
			fmt.Sprintf("mapping %q exceeded its rate limit of %d/min", mapping.ID, mapping.RateLimit)).
			WithRetryAfter(retryAfter)
	}

	exec, err := d.buildExecutor(mapping, overrides)
	if err != nil {
		return Result{}, err
	}

	record, extractErr := exec.Extract(ctx, url, content, strategy.Options{})
	duration := time.Since(start)

	slog.Info("dispatch",
		"mapping_id", mapping.ID, "url", url, "duration_ms", duration.Milliseconds(),
		"success", extractErr == nil, "strategies_used", mapping.ExtractorIDs)
	d.observeDispatch(mapping.ID, extractErr == nil, duration)

	if extractErr != nil {
		if d.metrics != nil {
			d.metrics.ObserveStrategyError(strings.Join(mapping.ExtractorIDs, ","), string(apierr.KindOf(extractErr)))
		}
		return Result{}, extractErr
	}

	if record == nil {
		record = strategy.Record{}
	}
	record["_metadata"] = mergeDispatchMetadata(record["_metadata"], map[string]interface{}{
		"mapping_id":      mapping.ID,
		"url_config_id":   cfg.ID,
		"matched_url":     mapping.URL,
		"extractors_used": []string(mapping.ExtractorIDs),
		"duration_ms":     duration.Milliseconds(),
	})

	return Result{Record: record, Mapping: mapping, Config: cfg}, nil
}

// buildExecutor resolves mapping.ExtractorIDs through the factory. A single
// extractor runs directly; multiple are wrapped in a Composite using the
// caller's Overrides.MergeMode or smart by default (SPEC_FULL.md §4.8
// step 5). Any construction failure aborts dispatch with Configuration.
func (d *Dispatcher) buildExecutor(mapping model.URLMapping, overrides Overrides) (strategy.Strategy, error) {
	if len(mapping.ExtractorIDs) == 0 {
		return nil, apierr.New(apierr.Configuration, fmt.Sprintf("mapping %q has no extractor_ids", mapping.ID))
	}

	strategies := make([]strategy.Strategy, 0, len(mapping.ExtractorIDs))
	for _, name := range mapping.ExtractorIDs {
		s, err := d.factory.Create(name, nil)
		if err != nil {
			return nil, err
		}
		strategies = append(strategies, s)
	}

	if len(strategies) == 1 {
		return strategies[0], nil
	}

	mergeMode := strategy.MergeSmart
	if overrides.MergeMode != "" {
		mergeMode = overrides.MergeMode
	}
	return strategy.NewComposite(strategies, mergeMode), nil
}

// mergeDispatchMetadata folds dispatch-level fields into whatever
// _metadata the executed strategy already produced, rather than
// overwriting it.
func mergeDispatchMetadata(existing interface{}, add map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{}
	if existingMap, ok := existing.(map[string]interface{}); ok {
		for k, v := range existingMap {
			out[k] = v
		}
	}
	for k, v := range add {
		out[k] = v
	}
	return out
}
