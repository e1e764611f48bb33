package strategy

import (
	"context"
	"fmt"
	"sync"

	"github.com/strataflow/extractengine/pkg/apierr"
	"github.com/strataflow/extractengine/pkg/classifier"
)

// DefaultMaxParallelSubstrategies bounds composite fan-out when a caller
// does not override it (SPEC_FULL.md §9 Open Question: "a configurable
// max_parallel_substrategies, suggested default 6"). It only applies when
// selection falls all the way back to every sub-strategy (no classifier,
// or classification qualified none of them) — a confidence-match or top-2
// selection runs uncapped, since narrowing already happened.
const DefaultMaxParallelSubstrategies = 6

// classificationThreshold is the minimum classifier confidence a
// sub-strategy's category must meet to be selected (SPEC_FULL.md §4.5.a).
const classificationThreshold = 0.2

// Composite runs N sub-strategies concurrently and merges their outputs
// (SPEC_FULL.md §4.5.a). Sub-strategy failures are isolated: one sibling's
// failure or timeout never cancels another, which is why this fans out with
// a plain WaitGroup and result channel instead of errgroup.WithContext —
// errgroup cancels the shared context on the first error, which would
// violate that isolation guarantee.
type Composite struct {
	subs        []Strategy
	mergeMode   MergeMode
	classifier  *classifier.Classifier
	priority    map[string]string // field name -> owning strategy name
	maxParallel int
	name        string
}

// NewComposite builds a Composite over subs with the given merge mode.
// Classification is optional; call WithClassifier to enable category-based
// sub-strategy selection.
func NewComposite(subs []Strategy, mergeMode MergeMode) *Composite {
	return &Composite{
		subs:        subs,
		mergeMode:   mergeMode,
		maxParallel: DefaultMaxParallelSubstrategies,
		name:        "Composite",
	}
}

// WithClassifier enables content-based sub-strategy selection.
func (c *Composite) WithClassifier(cl *classifier.Classifier) *Composite {
	c.classifier = cl
	return c
}

// WithPriority sets the per-field priority table used by smart-merge.
func (c *Composite) WithPriority(priority map[string]string) *Composite {
	c.priority = priority
	return c
}

// WithMaxParallel overrides the fan-out bound.
func (c *Composite) WithMaxParallel(n int) *Composite {
	if n > 0 {
		c.maxParallel = n
	}
	return c
}

func (c *Composite) Name() string     { return c.name }
func (c *Composite) Category() string { return string(categoryComposite) }

const categoryComposite = "composite"

type fanOutResult struct {
	sub    Strategy
	record Record
	err    error
}

// Extract implements Strategy.
func (c *Composite) Extract(ctx context.Context, url, content string, opts Options) (Record, error) {
	selected, confidences, contentTypes, isAllFallback := c.selectSubStrategies(content)
	if len(selected) == 0 {
		return nil, apierr.New(apierr.Configuration, "composite strategy has no sub-strategies to run")
	}

	// maxParallel only bounds the "fall back to all sub-strategies" path
	// (SPEC_FULL.md §9 Open Question 2); a normal confidence-match or
	// top-2 selection runs every qualifying sub-strategy uncapped.
	bounded := selected
	if isAllFallback && len(bounded) > c.maxParallel {
		bounded = bounded[:c.maxParallel]
	}

	results := c.runConcurrently(ctx, bounded, url, content, opts)

	var successes []subResult
	var errs []error
	for i, r := range results {
		if r.err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.sub.Name(), r.err))
			continue
		}
		successes = append(successes, subResult{
			strategy:   r.sub,
			order:      i,
			confidence: confidences[r.sub.Category()],
			record:     r.record,
		})
	}

	if len(successes) == 0 && len(errs) > 0 {
		return nil, apierr.Wrap(apierr.ContentParsing, "all composite sub-strategies failed", joinErrors(errs))
	}

	merged := c.merge(successes)

	usedNames := make([]string, len(bounded))
	for i, s := range bounded {
		usedNames[i] = s.Name()
	}
	merged["_metadata"] = map[string]interface{}{
		"strategies_used":       usedNames,
		"successful_strategies": len(successes),
		"failed_strategies":     len(errs),
		"content_types":         contentTypes,
		"confidence_scores":     confidences,
	}

	return merged, nil
}

// selectSubStrategies implements SPEC_FULL.md §4.5.a step 2: include
// strategies whose category meets the confidence threshold; fall back to
// the top-2 types' strategies; fall back to all sub-strategies. The final
// bool reports whether this last "fall back to all" branch was taken, the
// only path maxParallel bounds.
func (c *Composite) selectSubStrategies(content string) ([]Strategy, map[string]float64, []string, bool) {
	if c.classifier == nil {
		return c.subs, map[string]float64{}, nil, true
	}

	result := c.classifier.Classify(content)

	var qualifying []Strategy
	for _, s := range c.subs {
		if conf, ok := result.Confidences[s.Category()]; ok && conf >= classificationThreshold {
			qualifying = append(qualifying, s)
		}
	}
	if len(qualifying) > 0 {
		return qualifying, result.Confidences, result.RankedTypes, false
	}

	topTypes := result.RankedTypes
	if len(topTypes) > 2 {
		topTypes = topTypes[:2]
	}
	topSet := map[string]bool{}
	for _, t := range topTypes {
		topSet[t] = true
	}
	var fromTop []Strategy
	for _, s := range c.subs {
		if topSet[s.Category()] {
			fromTop = append(fromTop, s)
		}
	}
	if len(fromTop) > 0 {
		return fromTop, result.Confidences, result.RankedTypes, false
	}

	return c.subs, result.Confidences, result.RankedTypes, true
}

// runConcurrently launches every selected sub-strategy in its own goroutine.
// A sibling's failure or per-strategy timeout never cancels another: every
// goroutine receives the caller's ctx unchanged, runConcurrently never
// cancels it, and the parent only waits.
func (c *Composite) runConcurrently(ctx context.Context, subs []Strategy, url, content string, opts Options) []fanOutResult {
	results := make([]fanOutResult, len(subs))
	var wg sync.WaitGroup
	wg.Add(len(subs))

	for i, s := range subs {
		go func(i int, s Strategy) {
			defer wg.Done()
			record, err := s.Extract(ctx, url, content, opts)
			results[i] = fanOutResult{sub: s, record: record, err: err}
		}(i, s)
	}

	wg.Wait()
	return results
}

func (c *Composite) merge(successes []subResult) Record {
	switch c.mergeMode {
	case MergeUnion:
		return mergeUnion(successes)
	case MergeIntersection:
		return mergeIntersection(successes)
	default:
		return mergeSmart(successes, c.priority)
	}
}

func joinErrors(errs []error) error {
	msg := ""
	for i, e := range errs {
		if i > 0 {
			msg += "; "
		}
		msg += e.Error()
	}
	return fmt.Errorf("%s", msg)
}

var _ Strategy = (*Composite)(nil)
