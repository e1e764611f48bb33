package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/strataflow/extractengine/pkg/apierr"
	"github.com/strataflow/extractengine/pkg/model"
)

const createConfigTableSQL = `
CREATE TABLE IF NOT EXISTS url_configurations (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    description TEXT,
    url TEXT NOT NULL,
    profile_type TEXT,
    category TEXT,
    business_priority INTEGER NOT NULL DEFAULT 5,
    is_active INTEGER NOT NULL DEFAULT 1,
    key_data_points TEXT,
    target_data TEXT,
    cost_analysis TEXT,
    metadata TEXT,
    scraping_difficulty TEXT,
    api_pricing TEXT,
    recommendation TEXT,
    rationale TEXT,
    business_value TEXT,
    compliance_notes TEXT,
    has_official_api INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_url_configurations_is_active ON url_configurations(is_active);
CREATE INDEX IF NOT EXISTS idx_url_configurations_category ON url_configurations(category);
CREATE INDEX IF NOT EXISTS idx_url_configurations_profile_type ON url_configurations(profile_type);
CREATE INDEX IF NOT EXISTS idx_url_configurations_priority ON url_configurations(business_priority DESC);
CREATE INDEX IF NOT EXISTS idx_url_configurations_url ON url_configurations(url);
`

// searchableConfigFields are the text columns ConfigStore.Search LIKE-matches,
// OR-combined, per SPEC_FULL.md §4.7.
var searchableConfigFields = []string{"name", "description", "url", "profile_type", "category", "rationale"}

// ConfigStore is the URL-Configuration Store (component H).
type ConfigStore struct {
	db *sql.DB
	mu sync.Mutex // single writer per SPEC_FULL.md §4.7
}

// NewConfigStore opens (creating if absent) the SQLite database at path and
// ensures its schema exists.
func NewConfigStore(path string) (*ConfigStore, error) {
	db, err := open(path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(createConfigTableSQL); err != nil {
		db.Close()
		return nil, apierr.Wrap(apierr.Database, "create url_configurations schema", err)
	}
	return &ConfigStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *ConfigStore) Close() error { return s.db.Close() }

// Create inserts cfg, assigning a new id and created_at/updated_at.
func (s *ConfigStore) Create(ctx context.Context, cfg model.URLConfiguration) (model.URLConfiguration, error) {
	if err := cfg.Validate(); err != nil {
		return model.URLConfiguration{}, apierr.Wrap(apierr.Validation, "invalid url configuration", err)
	}
	cfg.SetDefaults()

	s.mu.Lock()
	defer s.mu.Unlock()

	cfg.ID = uuid.NewString()
	now := nowFunc()
	cfg.CreatedAt = now
	cfg.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
INSERT INTO url_configurations (
    id, name, description, url, profile_type, category, business_priority, is_active,
    key_data_points, target_data, cost_analysis, metadata, scraping_difficulty, api_pricing,
    recommendation, rationale, business_value, compliance_notes, has_official_api,
    created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cfg.ID, cfg.Name, cfg.Description, cfg.URL, cfg.ProfileType, cfg.Category, cfg.BusinessPriority, cfg.IsActive,
		cfg.KeyDataPoints, cfg.TargetData, cfg.CostAnalysis, cfg.Metadata, cfg.ScrapingDifficulty, cfg.APIPricing,
		cfg.Recommendation, cfg.Rationale, cfg.BusinessValue, cfg.ComplianceNotes, cfg.HasOfficialAPI,
		cfg.CreatedAt, cfg.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.URLConfiguration{}, apierr.Wrap(apierr.Duplicate, "url configuration already exists", err)
		}
		return model.URLConfiguration{}, apierr.Wrap(apierr.Database, "insert url configuration", err)
	}
	return cfg, nil
}

// Get returns the configuration with id, or NotFound.
func (s *ConfigStore) Get(ctx context.Context, id string) (model.URLConfiguration, error) {
	row := s.db.QueryRowContext(ctx, selectConfigSQL+" WHERE id = ?", id)
	cfg, err := scanConfig(row)
	if err == sql.ErrNoRows {
		return model.URLConfiguration{}, apierr.New(apierr.NotFound, fmt.Sprintf("url configuration %q not found", id))
	}
	if err != nil {
		return model.URLConfiguration{}, apierr.Wrap(apierr.Database, "get url configuration", err)
	}
	return cfg, nil
}

// GetAll returns every configuration, newest first, optionally filtered to
// active-only.
func (s *ConfigStore) GetAll(ctx context.Context, activeOnly bool) ([]model.URLConfiguration, error) {
	query := selectConfigSQL
	var args []interface{}
	if activeOnly {
		query += " WHERE is_active = 1"
	}
	query += " ORDER BY updated_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apierr.Wrap(apierr.Database, "list url configurations", err)
	}
	defer rows.Close()
	return scanConfigs(rows)
}

// Search LIKE-matches query (case-insensitive) across searchableConfigFields,
// OR-combined.
func (s *ConfigStore) Search(ctx context.Context, query string) ([]model.URLConfiguration, error) {
	if query == "" {
		return s.GetAll(ctx, false)
	}
	clauses := make([]string, len(searchableConfigFields))
	args := make([]interface{}, len(searchableConfigFields))
	like := "%" + query + "%"
	for i, field := range searchableConfigFields {
		clauses[i] = fmt.Sprintf("%s LIKE ? COLLATE NOCASE", field)
		args[i] = like
	}
	sqlQuery := selectConfigSQL + " WHERE " + strings.Join(clauses, " OR ") + " ORDER BY updated_at DESC"

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, apierr.Wrap(apierr.Database, "search url configurations", err)
	}
	defer rows.Close()
	return scanConfigs(rows)
}

// configUpdatable lists the columns Update may assign, keyed by the JSON
// field name a partial-update diff map would carry.
var configUpdatable = map[string]string{
	"name":                 "name",
	"description":          "description",
	"url":                  "url",
	"profile_type":         "profile_type",
	"category":             "category",
	"business_priority":    "business_priority",
	"is_active":            "is_active",
	"key_data_points":      "key_data_points",
	"target_data":          "target_data",
	"cost_analysis":        "cost_analysis",
	"metadata":             "metadata",
	"scraping_difficulty":  "scraping_difficulty",
	"api_pricing":          "api_pricing",
	"recommendation":       "recommendation",
	"rationale":            "rationale",
	"business_value":       "business_value",
	"compliance_notes":     "compliance_notes",
	"has_official_api":     "has_official_api",
}

// Update applies a partial field diff to id, always bumping updated_at.
// An empty diff is a no-op except for updated_at (SPEC_FULL.md §8).
func (s *ConfigStore) Update(ctx context.Context, id string, diff map[string]interface{}) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	setClauses := []string{"updated_at = ?"}
	args := []interface{}{nowFunc()}
	for field, value := range diff {
		col, ok := configUpdatable[field]
		if !ok {
			continue
		}
		setClauses = append(setClauses, col+" = ?")
		args = append(args, normalizeJSONField(field, value))
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE url_configurations SET %s WHERE id = ?", strings.Join(setClauses, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return false, apierr.Wrap(apierr.Duplicate, "url configuration name already exists", err)
		}
		return false, apierr.Wrap(apierr.Database, "update url configuration", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apierr.Wrap(apierr.Database, "read rows affected", err)
	}
	return n > 0, nil
}

// Delete removes the configuration with id. A second call for the same id
// returns false without error (SPEC_FULL.md §8).
func (s *ConfigStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM url_configurations WHERE id = ?", id)
	if err != nil {
		return false, apierr.Wrap(apierr.Database, "delete url configuration", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apierr.Wrap(apierr.Database, "read rows affected", err)
	}
	return n > 0, nil
}

// ConfigStats summarizes the configuration table for GET stats (SPEC_FULL.md §4.7).
type ConfigStats struct {
	Total      int
	Active     int
	ByCategory map[string]int
	ByProfile  map[string]int
}

// Stats computes totals and group-bys across every configuration.
func (s *ConfigStore) Stats(ctx context.Context) (ConfigStats, error) {
	stats := ConfigStats{ByCategory: map[string]int{}, ByProfile: map[string]int{}}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM url_configurations").Scan(&stats.Total); err != nil {
		return stats, apierr.Wrap(apierr.Database, "count url configurations", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM url_configurations WHERE is_active = 1").Scan(&stats.Active); err != nil {
		return stats, apierr.Wrap(apierr.Database, "count active url configurations", err)
	}

	if err := groupByCount(ctx, s.db, "url_configurations", "category", stats.ByCategory); err != nil {
		return stats, err
	}
	if err := groupByCount(ctx, s.db, "url_configurations", "profile_type", stats.ByProfile); err != nil {
		return stats, err
	}
	return stats, nil
}

const selectConfigSQL = `SELECT
    id, name, description, url, profile_type, category, business_priority, is_active,
    key_data_points, target_data, cost_analysis, metadata, scraping_difficulty, api_pricing,
    recommendation, rationale, business_value, compliance_notes, has_official_api,
    created_at, updated_at
FROM url_configurations`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanConfig(row rowScanner) (model.URLConfiguration, error) {
	var cfg model.URLConfiguration
	err := row.Scan(
		&cfg.ID, &cfg.Name, &cfg.Description, &cfg.URL, &cfg.ProfileType, &cfg.Category, &cfg.BusinessPriority, &cfg.IsActive,
		&cfg.KeyDataPoints, &cfg.TargetData, &cfg.CostAnalysis, &cfg.Metadata, &cfg.ScrapingDifficulty, &cfg.APIPricing,
		&cfg.Recommendation, &cfg.Rationale, &cfg.BusinessValue, &cfg.ComplianceNotes, &cfg.HasOfficialAPI,
		&cfg.CreatedAt, &cfg.UpdatedAt,
	)
	return cfg, err
}

func scanConfigs(rows *sql.Rows) ([]model.URLConfiguration, error) {
	out := []model.URLConfiguration{}
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, apierr.Wrap(apierr.Database, "scan url configuration row", err)
		}
		out = append(out, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, apierr.Wrap(apierr.Database, "iterate url configuration rows", err)
	}
	return out, nil
}
