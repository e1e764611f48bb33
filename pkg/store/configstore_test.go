package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strataflow/extractengine/pkg/apierr"
	"github.com/strataflow/extractengine/pkg/model"
)

func newTestConfigStore(t *testing.T) *ConfigStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "url_configurations.db")
	s, err := NewConfigStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleConfig() model.URLConfiguration {
	return model.URLConfiguration{
		Name:          "CoinDesk",
		URL:           "https://coindesk.com/x",
		ProfileType:   "Degen Gambler",
		Category:      "crypto",
		IsActive:      true,
		KeyDataPoints: model.JSONList{"price", "volume"},
		CostAnalysis:  model.JSONMap{"tier": "paid", "usd_per_month": float64(49)},
	}
}

func TestConfigStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestConfigStore(t)

	created, err := s.Create(ctx, sampleConfig())
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)

	got, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Name, got.Name)
	assert.Equal(t, created.URL, got.URL)
	assert.Equal(t, "paid", got.CostAnalysis["tier"])
	assert.Len(t, got.KeyDataPoints, 2)
}

func TestConfigStore_GetMissingIsNotFound(t *testing.T) {
	s := newTestConfigStore(t)
	_, err := s.Get(context.Background(), "does-not-exist")
	assert.True(t, apierr.Is(err, apierr.NotFound))
}

func TestConfigStore_UpdateBumpsUpdatedAtOnly(t *testing.T) {
	ctx := context.Background()
	s := newTestConfigStore(t)

	created, err := s.Create(ctx, sampleConfig())
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	ok, err := s.Update(ctx, created.ID, map[string]interface{}{})
	require.NoError(t, err)
	assert.True(t, ok)

	after, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, after.UpdatedAt.After(created.UpdatedAt))
	assert.Equal(t, created.Name, after.Name)
	assert.Equal(t, created.URL, after.URL)
}

func TestConfigStore_UpdatePriority(t *testing.T) {
	ctx := context.Background()
	s := newTestConfigStore(t)

	created, err := s.Create(ctx, sampleConfig())
	require.NoError(t, err)

	ok, err := s.Update(ctx, created.ID, map[string]interface{}{"business_priority": 10})
	require.NoError(t, err)
	assert.True(t, ok)

	after, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, after.BusinessPriority)
}

func TestConfigStore_DeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestConfigStore(t)

	created, err := s.Create(ctx, sampleConfig())
	require.NoError(t, err)

	ok, err := s.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConfigStore_GetAllNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestConfigStore(t)

	first, err := s.Create(ctx, sampleConfig())
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second := sampleConfig()
	second.Name = "CoinDesk Markets"
	second.URL = "https://coindesk.com/y"
	second, err = s.Create(ctx, second)
	require.NoError(t, err)

	all, err := s.GetAll(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)
	assert.Equal(t, first.ID, all[1].ID)
}

func TestConfigStore_Search(t *testing.T) {
	ctx := context.Background()
	s := newTestConfigStore(t)

	_, err := s.Create(ctx, sampleConfig())
	require.NoError(t, err)

	results, err := s.Search(ctx, "CoinDesk")
	require.NoError(t, err)
	assert.Len(t, results, 1)

	results, err = s.Search(ctx, "nonexistent-substring")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestConfigStore_Stats(t *testing.T) {
	ctx := context.Background()
	s := newTestConfigStore(t)

	_, err := s.Create(ctx, sampleConfig())
	require.NoError(t, err)
	inactive := sampleConfig()
	inactive.Name = "CoinDesk Archive"
	inactive.URL = "https://coindesk.com/z"
	inactive.IsActive = false
	_, err = s.Create(ctx, inactive)
	require.NoError(t, err)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Active)
	assert.Equal(t, 2, stats.ByCategory["crypto"])
}
