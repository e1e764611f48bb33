package httpapi

import (
	"context"

	"github.com/strataflow/extractengine/pkg/model"
	"github.com/strataflow/extractengine/pkg/store"
)

// ConfigStore is the subset of *store.ConfigStore the HTTP handlers need,
// narrowed the same way pkg/resolver narrows its own collaborators.
type ConfigStore interface {
	Create(ctx context.Context, cfg model.URLConfiguration) (model.URLConfiguration, error)
	Get(ctx context.Context, id string) (model.URLConfiguration, error)
	GetAll(ctx context.Context, activeOnly bool) ([]model.URLConfiguration, error)
	Search(ctx context.Context, query string) ([]model.URLConfiguration, error)
	Update(ctx context.Context, id string, diff map[string]interface{}) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	Stats(ctx context.Context) (store.ConfigStats, error)
}

// MappingStore is the subset of *store.MappingStore the HTTP handlers need.
type MappingStore interface {
	Create(ctx context.Context, m model.URLMapping) (model.URLMapping, error)
	Get(ctx context.Context, id string) (model.URLMapping, error)
	GetAll(ctx context.Context, activeOnly bool) ([]model.URLMapping, error)
	Search(ctx context.Context, query string) ([]model.URLMapping, error)
	ByURLConfigID(ctx context.Context, urlConfigID string) ([]model.URLMapping, error)
	ByExtractor(ctx context.Context, extractorID string) ([]model.URLMapping, error)
	Update(ctx context.Context, id string, diff map[string]interface{}) (bool, error)
	BulkSetActive(ctx context.Context, ids []string, isActive bool) (int, error)
	Delete(ctx context.Context, id string) (bool, error)
	DeleteByURLConfigID(ctx context.Context, urlConfigID string) (int, error)
	Stats(ctx context.Context) (store.MappingStats, error)
}

var (
	_ ConfigStore  = (*store.ConfigStore)(nil)
	_ MappingStore = (*store.MappingStore)(nil)
)
