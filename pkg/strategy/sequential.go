package strategy

import (
	"context"
	"fmt"

	"github.com/strataflow/extractengine/pkg/apierr"
)

// Sequential runs sub-strategies one after another, threading the
// accumulated record forward as previous_results (SPEC_FULL.md §4.5.b). A
// step failure is recorded and the step contributes an empty record, but
// the pipeline still runs every remaining step (SPEC_FULL.md §4.5.b, §5:
// "a failed step does not abort the next step").
type Sequential struct {
	steps []Strategy
	name  string
}

// NewSequential builds a Sequential pipeline over steps, executed in order.
func NewSequential(steps []Strategy) *Sequential {
	return &Sequential{steps: steps, name: "Sequential"}
}

func (s *Sequential) Name() string     { return s.name }
func (s *Sequential) Category() string { return "sequential" }

// Extract implements Strategy.
func (s *Sequential) Extract(ctx context.Context, url, content string, opts Options) (Record, error) {
	if len(s.steps) == 0 {
		return nil, apierr.New(apierr.Configuration, "sequential strategy has no steps to run")
	}

	accumulated := Record{}
	var stepLog []map[string]interface{}
	var errs []error

	for i, step := range s.steps {
		stepOpts := cloneOptions(opts)
		stepOpts[PreviousResultsKey] = cloneRecord(accumulated)

		record, err := step.Extract(ctx, url, content, stepOpts)
		if err != nil {
			errs = append(errs, fmt.Errorf("step %d (%s): %w", i, step.Name(), err))
			stepLog = append(stepLog, map[string]interface{}{
				"strategy":     step.Name(),
				"step_index":   i,
				"fields_added": []string{},
				"error":        err.Error(),
			})
			continue
		}

		fieldsAdded := mergeSequentialStep(accumulated, record)

		stepLog = append(stepLog, map[string]interface{}{
			"strategy":     step.Name(),
			"step_index":   i,
			"fields_added": fieldsAdded,
		})
	}

	if len(errs) == len(s.steps) {
		return nil, apierr.Wrap(apierr.ContentParsing, "all sequential steps failed", joinErrors(errs))
	}

	accumulated["_metadata"] = map[string]interface{}{
		"steps":       stepLog,
		"failed_steps": len(errs),
	}
	return accumulated, nil
}

// mergeSequentialStep folds record into accumulated in place: dicts merge
// key-wise, lists concatenate de-duplicated, and scalars are overwritten by
// the later step (SPEC_FULL.md §4.5.b: "later steps win on conflicting
// scalar fields"). Returns the keys record contributed or changed.
func mergeSequentialStep(accumulated, record Record) []string {
	var touched []string
	for k, v := range record {
		if k == "_metadata" {
			continue
		}
		existing, had := accumulated[k]
		if !had {
			accumulated[k] = v
			touched = append(touched, k)
			continue
		}

		switch newVal := v.(type) {
		case map[string]interface{}:
			if existingDict, ok := existing.(map[string]interface{}); ok {
				merged := map[string]interface{}{}
				for ek, ev := range existingDict {
					merged[ek] = ev
				}
				for nk, nv := range newVal {
					merged[nk] = nv
				}
				accumulated[k] = merged
				touched = append(touched, k)
				continue
			}
		case []interface{}:
			if existingList, ok := existing.([]interface{}); ok {
				seen := map[string]bool{}
				var merged []interface{}
				for _, item := range existingList {
					seen[toComparable(item)] = true
					merged = append(merged, item)
				}
				for _, item := range newVal {
					sig := toComparable(item)
					if seen[sig] {
						continue
					}
					seen[sig] = true
					merged = append(merged, item)
				}
				accumulated[k] = merged
				touched = append(touched, k)
				continue
			}
		}

		accumulated[k] = v
		touched = append(touched, k)
	}
	return touched
}

func cloneOptions(opts Options) Options {
	out := make(Options, len(opts)+1)
	for k, v := range opts {
		out[k] = v
	}
	return out
}

func cloneRecord(r Record) Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

var _ Strategy = (*Sequential)(nil)
