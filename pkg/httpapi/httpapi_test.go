package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strataflow/extractengine/pkg/apierr"
	"github.com/strataflow/extractengine/pkg/model"
	"github.com/strataflow/extractengine/pkg/store"
	"github.com/strataflow/extractengine/pkg/strategy"
)

// fakeConfigs and fakeMappings are in-memory stand-ins for *store.ConfigStore
// and *store.MappingStore, satisfying the narrow interfaces in deps.go the
// same way pkg/resolver's own tests fake its ConfigReader/MappingReader.

type fakeConfigs struct {
	byID map[string]model.URLConfiguration
}

func newFakeConfigs() *fakeConfigs { return &fakeConfigs{byID: map[string]model.URLConfiguration{}} }

func (f *fakeConfigs) Create(ctx context.Context, cfg model.URLConfiguration) (model.URLConfiguration, error) {
	if err := cfg.Validate(); err != nil {
		return model.URLConfiguration{}, apierr.Wrap(apierr.Validation, "invalid url configuration", err)
	}
	for _, existing := range f.byID {
		if existing.Name == cfg.Name {
			return model.URLConfiguration{}, apierr.New(apierr.Duplicate, "url configuration already exists")
		}
	}
	cfg.SetDefaults()
	cfg.ID = "cfg-" + cfg.Name
	f.byID[cfg.ID] = cfg
	return cfg, nil
}

func (f *fakeConfigs) Get(ctx context.Context, id string) (model.URLConfiguration, error) {
	cfg, ok := f.byID[id]
	if !ok {
		return model.URLConfiguration{}, apierr.New(apierr.NotFound, "url configuration "+id+" not found")
	}
	return cfg, nil
}

func (f *fakeConfigs) GetAll(ctx context.Context, activeOnly bool) ([]model.URLConfiguration, error) {
	out := []model.URLConfiguration{}
	for _, cfg := range f.byID {
		if activeOnly && !cfg.IsActive {
			continue
		}
		out = append(out, cfg)
	}
	return out, nil
}

func (f *fakeConfigs) Search(ctx context.Context, query string) ([]model.URLConfiguration, error) {
	return f.GetAll(ctx, false)
}

func (f *fakeConfigs) Update(ctx context.Context, id string, diff map[string]interface{}) (bool, error) {
	cfg, ok := f.byID[id]
	if !ok {
		return false, nil
	}
	if name, ok := diff["name"].(string); ok {
		cfg.Name = name
	}
	f.byID[id] = cfg
	return true, nil
}

func (f *fakeConfigs) Delete(ctx context.Context, id string) (bool, error) {
	if _, ok := f.byID[id]; !ok {
		return false, nil
	}
	delete(f.byID, id)
	return true, nil
}

func (f *fakeConfigs) Stats(ctx context.Context) (store.ConfigStats, error) {
	return store.ConfigStats{Total: len(f.byID)}, nil
}

type fakeMappings struct {
	byID map[string]model.URLMapping
}

func newFakeMappings() *fakeMappings { return &fakeMappings{byID: map[string]model.URLMapping{}} }

func (f *fakeMappings) Create(ctx context.Context, m model.URLMapping) (model.URLMapping, error) {
	m.SetDefaults()
	m.ID = "map-" + m.URLConfigID + "-" + m.URL
	f.byID[m.ID] = m
	return m, nil
}

func (f *fakeMappings) Get(ctx context.Context, id string) (model.URLMapping, error) {
	m, ok := f.byID[id]
	if !ok {
		return model.URLMapping{}, apierr.New(apierr.NotFound, "url mapping "+id+" not found")
	}
	return m, nil
}

func (f *fakeMappings) GetAll(ctx context.Context, activeOnly bool) ([]model.URLMapping, error) {
	out := []model.URLMapping{}
	for _, m := range f.byID {
		if activeOnly && !m.IsActive {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeMappings) Search(ctx context.Context, query string) ([]model.URLMapping, error) {
	return f.GetAll(ctx, false)
}

func (f *fakeMappings) ByURLConfigID(ctx context.Context, urlConfigID string) ([]model.URLMapping, error) {
	out := []model.URLMapping{}
	for _, m := range f.byID {
		if m.URLConfigID == urlConfigID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMappings) ByExtractor(ctx context.Context, extractorID string) ([]model.URLMapping, error) {
	out := []model.URLMapping{}
	for _, m := range f.byID {
		for _, id := range m.ExtractorIDs {
			if id == extractorID {
				out = append(out, m)
			}
		}
	}
	return out, nil
}

func (f *fakeMappings) Update(ctx context.Context, id string, diff map[string]interface{}) (bool, error) {
	m, ok := f.byID[id]
	if !ok {
		return false, nil
	}
	if active, ok := diff["is_active"].(bool); ok {
		m.IsActive = active
	}
	f.byID[id] = m
	return true, nil
}

func (f *fakeMappings) BulkSetActive(ctx context.Context, ids []string, isActive bool) (int, error) {
	n := 0
	for _, id := range ids {
		m, ok := f.byID[id]
		if !ok {
			continue
		}
		m.IsActive = isActive
		f.byID[id] = m
		n++
	}
	return n, nil
}

func (f *fakeMappings) Delete(ctx context.Context, id string) (bool, error) {
	if _, ok := f.byID[id]; !ok {
		return false, nil
	}
	delete(f.byID, id)
	return true, nil
}

func (f *fakeMappings) DeleteByURLConfigID(ctx context.Context, urlConfigID string) (int, error) {
	n := 0
	for id, m := range f.byID {
		if m.URLConfigID == urlConfigID {
			delete(f.byID, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeMappings) Stats(ctx context.Context) (store.MappingStats, error) {
	return store.MappingStats{ByCategory: map[string]int{}, ByExtractor: map[string]int{}}, nil
}

// fakeStrategy is a minimal strategy.Strategy used to seed the registry for
// /test-url coverage, mirroring pkg/resolver's own test fake.
type fakeStrategy struct {
	name string
}

func (s *fakeStrategy) Name() string     { return s.name }
func (s *fakeStrategy) Category() string { return "crypto" }
func (s *fakeStrategy) Extract(ctx context.Context, url, content string, opts strategy.Options) (strategy.Record, error) {
	return strategy.Record{"summary": content, "_metadata": map[string]interface{}{"strategy": s.name}}, nil
}

func newTestDeps(t *testing.T) (Dependencies, *fakeConfigs, *fakeMappings) {
	t.Helper()
	configs := newFakeConfigs()
	mappings := newFakeMappings()

	reg := strategy.NewRegistry()
	fs := &fakeStrategy{name: "crypto_llm"}
	err := reg.Register(model.StrategyMetadata{
		Name:         fs.name,
		Description:  "test strategy",
		Category:     model.CategoryCrypto,
		OutputSchema: model.JSONMap{"type": "object"},
		ConfigSchema: model.JSONMap{"type": "object"},
	}, func(config map[string]interface{}) (strategy.Strategy, error) {
		return fs, nil
	})
	require.NoError(t, err)
	factory := strategy.NewFactory(reg)

	return Dependencies{
		Configs:        configs,
		Mappings:       mappings,
		Registry:       reg,
		Factory:        factory,
		AllowedOrigins: []string{"*"},
	}, configs, mappings
}

func doRequest(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

func TestHealthHandler(t *testing.T) {
	deps, _, _ := newTestDeps(t)
	r := NewRouter(deps)

	rec := doRequest(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	decodeBody(t, rec, &body)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(1), body["extractors"])
}

func TestListAndGetExtractors(t *testing.T) {
	deps, _, _ := newTestDeps(t)
	r := NewRouter(deps)

	rec := doRequest(t, r, http.MethodGet, "/api/extractors", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []extractorView
	decodeBody(t, rec, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "crypto_llm", list[0].ID)

	rec = doRequest(t, r, http.MethodGet, "/api/extractors/crypto_llm", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view extractorView
	decodeBody(t, rec, &view)
	assert.Equal(t, "crypto_llm", view.Name)

	rec = doRequest(t, r, http.MethodGet, "/api/extractors/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var errBody errorBody
	decodeBody(t, rec, &errBody)
	assert.Equal(t, string(apierr.NotFound), errBody.ErrorCode)
	assert.NotZero(t, errBody.Timestamp)

	rec = doRequest(t, r, http.MethodGet, "/api/extractors/crypto_llm/config-schema", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var schema map[string]interface{}
	decodeBody(t, rec, &schema)
	assert.Equal(t, "object", schema["type"])
}

func TestTestURLHandler_WithExtractorID(t *testing.T) {
	deps, _, _ := newTestDeps(t)
	r := NewRouter(deps)

	rec := doRequest(t, r, http.MethodPost, "/api/test-url", testURLRequest{
		URL:         "https://example.com/a",
		Content:     "hello world",
		ExtractorID: "crypto_llm",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp testURLResponse
	decodeBody(t, rec, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, "crypto_llm", resp.ExtractorUsed)
	assert.Equal(t, "hello world", resp.ExtractionResult["summary"])
}

func TestTestURLHandler_MissingContentIsBadRequest(t *testing.T) {
	deps, _, _ := newTestDeps(t)
	r := NewRouter(deps)

	rec := doRequest(t, r, http.MethodPost, "/api/test-url", testURLRequest{
		URL:         "https://example.com/a",
		ExtractorID: "crypto_llm",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var errBody errorBody
	decodeBody(t, rec, &errBody)
	assert.Equal(t, "BadRequest", errBody.ErrorCode)
}

func TestTestURLHandler_UnknownExtractorIsConfigurationError(t *testing.T) {
	deps, _, _ := newTestDeps(t)
	r := NewRouter(deps)

	rec := doRequest(t, r, http.MethodPost, "/api/test-url", testURLRequest{
		URL:         "https://example.com/a",
		Content:     "hello",
		ExtractorID: "does-not-exist",
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var errBody errorBody
	decodeBody(t, rec, &errBody)
	assert.Equal(t, string(apierr.Configuration), errBody.ErrorCode)
}

func TestURLConfigurationCRUD(t *testing.T) {
	deps, _, _ := newTestDeps(t)
	r := NewRouter(deps)

	created := model.URLConfiguration{
		Name:             "CoinDesk",
		URL:              "https://coindesk.com",
		Category:         "crypto",
		BusinessPriority: 5,
		IsActive:         true,
	}
	rec := doRequest(t, r, http.MethodPost, "/api/url-configurations/", created)
	require.Equal(t, http.StatusCreated, rec.Code)
	var cfg model.URLConfiguration
	decodeBody(t, rec, &cfg)
	require.NotEmpty(t, cfg.ID)

	rec = doRequest(t, r, http.MethodGet, "/api/url-configurations/"+cfg.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, r, http.MethodPut, "/api/url-configurations/"+cfg.ID, map[string]interface{}{
		"name": "CoinDesk Markets",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var updated model.URLConfiguration
	decodeBody(t, rec, &updated)
	assert.Equal(t, "CoinDesk Markets", updated.Name)

	rec = doRequest(t, r, http.MethodPut, "/api/url-configurations/does-not-exist", map[string]interface{}{})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, r, http.MethodDelete, "/api/url-configurations/"+cfg.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, r, http.MethodDelete, "/api/url-configurations/"+cfg.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestURLConfigurationDuplicateNameIsConflict(t *testing.T) {
	deps, _, _ := newTestDeps(t)
	r := NewRouter(deps)

	cfg := model.URLConfiguration{Name: "CoinDesk", URL: "https://coindesk.com", BusinessPriority: 5}
	rec := doRequest(t, r, http.MethodPost, "/api/url-configurations/", cfg)
	require.Equal(t, http.StatusCreated, rec.Code)

	cfg.URL = "https://coindesk.com/other"
	rec = doRequest(t, r, http.MethodPost, "/api/url-configurations/", cfg)
	assert.Equal(t, http.StatusConflict, rec.Code)

	var errBody errorBody
	decodeBody(t, rec, &errBody)
	assert.Equal(t, string(apierr.Duplicate), errBody.ErrorCode)
}

func TestURLMappingCRUDAndBulkStatus(t *testing.T) {
	deps, configs, _ := newTestDeps(t)
	r := NewRouter(deps)

	cfg, err := configs.Create(context.Background(), model.URLConfiguration{
		Name: "CoinDesk", URL: "https://coindesk.com", BusinessPriority: 5,
	})
	require.NoError(t, err)

	mapping := model.URLMapping{
		URLConfigID:  cfg.ID,
		URL:          "https://coindesk.com",
		ExtractorIDs: model.JSONList{"crypto_llm"},
		IsActive:     true,
	}
	rec := doRequest(t, r, http.MethodPost, "/api/url-mappings/", mapping)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created model.URLMapping
	decodeBody(t, rec, &created)
	require.NotEmpty(t, created.ID)

	rec = doRequest(t, r, http.MethodGet, "/api/url-mappings/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, r, http.MethodGet, "/api/url-mappings/by-url-config/"+cfg.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var byConfig []model.URLMapping
	decodeBody(t, rec, &byConfig)
	assert.Len(t, byConfig, 1)

	rec = doRequest(t, r, http.MethodGet, "/api/url-mappings/by-extractor/crypto_llm", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var byExtractor []model.URLMapping
	decodeBody(t, rec, &byExtractor)
	assert.Len(t, byExtractor, 1)

	rec = doRequest(t, r, http.MethodPatch, "/api/url-mappings/bulk-status", bulkStatusRequest{
		MappingIDs: []string{created.ID},
		IsActive:   false,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var bulkResp map[string]interface{}
	decodeBody(t, rec, &bulkResp)
	assert.Equal(t, float64(1), bulkResp["updated"])

	tooMany := make([]string, bulkStatusMaxItems+1)
	for i := range tooMany {
		tooMany[i] = created.ID
	}
	rec = doRequest(t, r, http.MethodPatch, "/api/url-mappings/bulk-status", bulkStatusRequest{
		MappingIDs: tooMany,
		IsActive:   true,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, r, http.MethodDelete, "/api/url-mappings/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestURLMappingCreateRejectsUnknownURLConfigID(t *testing.T) {
	deps, _, _ := newTestDeps(t)
	r := NewRouter(deps)

	rec := doRequest(t, r, http.MethodPost, "/api/url-mappings/", model.URLMapping{
		URLConfigID:  "does-not-exist",
		URL:          "https://example.com",
		ExtractorIDs: model.JSONList{"crypto_llm"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var errBody errorBody
	decodeBody(t, rec, &errBody)
	assert.Equal(t, string(apierr.Validation), errBody.ErrorCode)
}

func TestListParamsValidation(t *testing.T) {
	deps, _, _ := newTestDeps(t)
	r := NewRouter(deps)

	rec := doRequest(t, r, http.MethodGet, "/api/url-configurations/?limit=0", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doRequest(t, r, http.MethodGet, "/api/url-configurations/?sort_order=sideways", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
