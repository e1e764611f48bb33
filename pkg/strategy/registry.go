package strategy

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/strataflow/extractengine/pkg/apierr"
	"github.com/strataflow/extractengine/pkg/model"
	"github.com/strataflow/extractengine/pkg/registry"
)

// Constructor builds a Strategy instance from a decoded config map.
// Registered alongside a strategy's metadata so the Factory can instantiate
// it without a type switch.
type Constructor func(config map[string]interface{}) (Strategy, error)

// entry is what the registry stores per strategy name: its metadata plus
// the constructor handle SPEC_FULL.md §3.1 calls `class_ref`.
type entry struct {
	Metadata    model.StrategyMetadata
	Constructor Constructor
}

// Registry is the in-memory strategy catalog (component C). Not
// concurrent-safe against a racing Reload; callers serialize reloads per
// SPEC_FULL.md §4.2.
type Registry struct {
	base *registry.BaseRegistry[entry]
	mu   sync.Mutex // serializes Reload against itself; lookups use base's own lock
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{base: registry.NewBaseRegistry[entry]()}
}

// Register binds name to metadata and constructor. A second registration
// under the same name overwrites the first; the earlier binding is logged
// as a warning (SPEC_FULL.md §4.2: "the later registration wins").
func (r *Registry) Register(metadata model.StrategyMetadata, constructor Constructor) error {
	if err := metadata.Validate(); err != nil {
		return apierr.Wrap(apierr.Configuration, "invalid strategy metadata", err)
	}
	if constructor == nil {
		return apierr.New(apierr.Configuration, fmt.Sprintf("strategy %q has no constructor", metadata.Name))
	}

	overwritten := r.base.Set(metadata.Name, entry{Metadata: metadata, Constructor: constructor})
	if overwritten {
		slog.Warn("strategy registration overwritten", "name", metadata.Name)
	}
	return nil
}

// Get returns the metadata and constructor registered under name.
func (r *Registry) Get(name string) (model.StrategyMetadata, Constructor, bool) {
	e, ok := r.base.Get(name)
	if !ok {
		return model.StrategyMetadata{}, nil, false
	}
	return e.Metadata, e.Constructor, true
}

// List returns every registered strategy's metadata.
func (r *Registry) List() []model.StrategyMetadata {
	entries := r.base.List()
	out := make([]model.StrategyMetadata, len(entries))
	for i, e := range entries {
		out[i] = e.Metadata
	}
	return out
}

// ByCategory returns metadata for every registered strategy in the given
// category.
func (r *Registry) ByCategory(category model.StrategyCategory) []model.StrategyMetadata {
	var out []model.StrategyMetadata
	for _, e := range r.base.List() {
		if e.Metadata.Category == category {
			out = append(out, e.Metadata)
		}
	}
	return out
}

// Names returns every registered strategy name.
func (r *Registry) Names() []string {
	return r.base.Names()
}

// Reload clears the registry and re-registers every entry built by build.
// build is expected to scan strategy source locations and call seed for
// each discovered strategy; a build failure for one strategy must log and
// continue rather than abort the whole reload (SPEC_FULL.md §4.2).
//
// Concurrent Reload calls are serialized by r.mu. Reload is not safe
// against concurrent lookups: a lookup during a reload can see a partly
// rebuilt catalog.
func (r *Registry) Reload(build func(seed func(model.StrategyMetadata, Constructor) error)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.base.Clear()
	build(func(metadata model.StrategyMetadata, constructor Constructor) error {
		if err := r.Register(metadata, constructor); err != nil {
			slog.Warn("skipping strategy during reload", "name", metadata.Name, "error", err)
			return err
		}
		return nil
	})
}
