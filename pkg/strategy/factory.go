package strategy

import (
	"fmt"

	"github.com/strataflow/extractengine/pkg/apierr"
)

// CompositeSpec is one sub-strategy entry in a create_composite call: either
// a bare registered name or a full {strategy, config} pair.
type CompositeSpec struct {
	Strategy string
	Config   map[string]interface{}
}

// Factory instantiates strategies from registry entries and configuration
// (component D).
type Factory struct {
	registry *Registry
}

// NewFactory builds a Factory over registry.
func NewFactory(registry *Registry) *Factory {
	return &Factory{registry: registry}
}

// Create looks up name in the registry and invokes its constructor with
// config. A missing name or constructor error is wrapped Configuration.
func (f *Factory) Create(name string, config map[string]interface{}) (Strategy, error) {
	_, constructor, ok := f.registry.Get(name)
	if !ok {
		return nil, apierr.New(apierr.Configuration, fmt.Sprintf("strategy %q is not registered", name))
	}

	s, err := constructor(config)
	if err != nil {
		return nil, apierr.Wrap(apierr.Configuration, fmt.Sprintf("failed to construct strategy %q", name), err)
	}
	return s, nil
}

// CreateFromConfig instantiates a single strategy from a {strategy, config}
// spec.
func (f *Factory) CreateFromConfig(spec CompositeSpec) (Strategy, error) {
	return f.Create(spec.Strategy, spec.Config)
}

// CreateComposite eagerly constructs one Strategy per spec and wraps them in
// a Composite. A failure to construct any sub-strategy aborts the whole call
// (SPEC_FULL.md §4.3).
func (f *Factory) CreateComposite(specs []CompositeSpec, mergeMode MergeMode) (*Composite, error) {
	subs := make([]Strategy, 0, len(specs))
	for _, spec := range specs {
		s, err := f.CreateFromConfig(spec)
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return NewComposite(subs, mergeMode), nil
}
