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

const createMappingTableSQL = `
CREATE TABLE IF NOT EXISTS url_mappings (
    id TEXT PRIMARY KEY,
    url_config_id TEXT NOT NULL,
    url TEXT NOT NULL,
    extractor_ids TEXT,
    rate_limit INTEGER NOT NULL DEFAULT 60,
    priority INTEGER NOT NULL DEFAULT 1,
    crawler_settings TEXT,
    validation_rules TEXT,
    metadata TEXT,
    is_active INTEGER NOT NULL DEFAULT 1,
    tags TEXT,
    notes TEXT,
    category TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_url_mappings_url_config_id ON url_mappings(url_config_id);
CREATE INDEX IF NOT EXISTS idx_url_mappings_extractor_ids ON url_mappings(extractor_ids);
CREATE INDEX IF NOT EXISTS idx_url_mappings_is_active ON url_mappings(is_active);
CREATE INDEX IF NOT EXISTS idx_url_mappings_url ON url_mappings(url);
`

var searchableMappingFields = []string{"url", "notes", "category"}

// MappingStore is the URL-Mapping Store (component I).
type MappingStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewMappingStore opens (creating if absent) the SQLite database at path and
// ensures its schema exists.
func NewMappingStore(path string) (*MappingStore, error) {
	db, err := open(path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(createMappingTableSQL); err != nil {
		db.Close()
		return nil, apierr.Wrap(apierr.Database, "create url_mappings schema", err)
	}
	return &MappingStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *MappingStore) Close() error { return s.db.Close() }

// Create inserts m, assigning a new id and created_at/updated_at. The
// caller is responsible for checking url_config_id references an existing
// URLConfiguration (SPEC_FULL.md §3.1: enforced at creation, not by the
// database, since the two entities live in separate SQLite files).
func (s *MappingStore) Create(ctx context.Context, m model.URLMapping) (model.URLMapping, error) {
	if err := m.Validate(); err != nil {
		return model.URLMapping{}, apierr.Wrap(apierr.Validation, "invalid url mapping", err)
	}
	m.SetDefaults()

	s.mu.Lock()
	defer s.mu.Unlock()

	m.ID = uuid.NewString()
	now := nowFunc()
	m.CreatedAt = now
	m.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
INSERT INTO url_mappings (
    id, url_config_id, url, extractor_ids, rate_limit, priority, crawler_settings,
    validation_rules, metadata, is_active, tags, notes, category, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.URLConfigID, m.URL, m.ExtractorIDs, m.RateLimit, m.Priority, m.CrawlerSettings,
		m.ValidationRules, m.Metadata, m.IsActive, m.Tags, m.Notes, m.Category, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.URLMapping{}, apierr.Wrap(apierr.Duplicate, "url mapping already exists", err)
		}
		return model.URLMapping{}, apierr.Wrap(apierr.Database, "insert url mapping", err)
	}
	return m, nil
}

// Get returns the mapping with id, or NotFound.
func (s *MappingStore) Get(ctx context.Context, id string) (model.URLMapping, error) {
	row := s.db.QueryRowContext(ctx, selectMappingSQL+" WHERE id = ?", id)
	m, err := scanMapping(row)
	if err == sql.ErrNoRows {
		return model.URLMapping{}, apierr.New(apierr.NotFound, fmt.Sprintf("url mapping %q not found", id))
	}
	if err != nil {
		return model.URLMapping{}, apierr.Wrap(apierr.Database, "get url mapping", err)
	}
	return m, nil
}

// GetAll returns every mapping, newest first, optionally filtered to
// active-only.
func (s *MappingStore) GetAll(ctx context.Context, activeOnly bool) ([]model.URLMapping, error) {
	query := selectMappingSQL
	if activeOnly {
		query += " WHERE is_active = 1"
	}
	query += " ORDER BY updated_at DESC"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, apierr.Wrap(apierr.Database, "list url mappings", err)
	}
	defer rows.Close()
	return scanMappings(rows)
}

// MatchByURL finds the mapping whose url matches target (case-insensitive
// exact equality, SPEC_FULL.md §4.8 step 1 / §9 Open Question 4), preferring
// higher priority then more recently created among ties. Only active
// mappings are eligible.
func (s *MappingStore) MatchByURL(ctx context.Context, target string) (model.URLMapping, error) {
	row := s.db.QueryRowContext(ctx,
		selectMappingSQL+" WHERE is_active = 1 AND url = ? COLLATE NOCASE ORDER BY priority DESC, created_at DESC LIMIT 1",
		target,
	)
	m, err := scanMapping(row)
	if err == sql.ErrNoRows {
		return model.URLMapping{}, apierr.New(apierr.NotFound, fmt.Sprintf("no url mapping matches %q", target))
	}
	if err != nil {
		return model.URLMapping{}, apierr.Wrap(apierr.Database, "match url mapping", err)
	}
	return m, nil
}

// ByURLConfigID returns every mapping bound to urlConfigID, newest first.
func (s *MappingStore) ByURLConfigID(ctx context.Context, urlConfigID string) ([]model.URLMapping, error) {
	rows, err := s.db.QueryContext(ctx, selectMappingSQL+" WHERE url_config_id = ? ORDER BY updated_at DESC", urlConfigID)
	if err != nil {
		return nil, apierr.Wrap(apierr.Database, "list url mappings by config", err)
	}
	defer rows.Close()
	return scanMappings(rows)
}

// ByExtractor returns every mapping whose extractor_ids JSON array contains
// extractorID. The index on extractor_ids is LIKE-based (an acceptable
// full scan per SPEC_FULL.md §4.7).
func (s *MappingStore) ByExtractor(ctx context.Context, extractorID string) ([]model.URLMapping, error) {
	like := "%\"" + extractorID + "\"%"
	rows, err := s.db.QueryContext(ctx, selectMappingSQL+" WHERE extractor_ids LIKE ? ORDER BY updated_at DESC", like)
	if err != nil {
		return nil, apierr.Wrap(apierr.Database, "list url mappings by extractor", err)
	}
	defer rows.Close()
	return scanMappings(rows)
}

// Search LIKE-matches query (case-insensitive) across searchableMappingFields.
func (s *MappingStore) Search(ctx context.Context, query string) ([]model.URLMapping, error) {
	if query == "" {
		return s.GetAll(ctx, false)
	}
	clauses := make([]string, len(searchableMappingFields))
	args := make([]interface{}, len(searchableMappingFields))
	like := "%" + query + "%"
	for i, field := range searchableMappingFields {
		clauses[i] = fmt.Sprintf("%s LIKE ? COLLATE NOCASE", field)
		args[i] = like
	}
	sqlQuery := selectMappingSQL + " WHERE " + strings.Join(clauses, " OR ") + " ORDER BY updated_at DESC"

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, apierr.Wrap(apierr.Database, "search url mappings", err)
	}
	defer rows.Close()
	return scanMappings(rows)
}

var mappingUpdatable = map[string]string{
	"url":              "url",
	"extractor_ids":    "extractor_ids",
	"rate_limit":       "rate_limit",
	"priority":         "priority",
	"crawler_settings": "crawler_settings",
	"validation_rules": "validation_rules",
	"metadata":         "metadata",
	"is_active":        "is_active",
	"tags":             "tags",
	"notes":            "notes",
	"category":         "category",
}

// Update applies a partial field diff to id, always bumping updated_at.
func (s *MappingStore) Update(ctx context.Context, id string, diff map[string]interface{}) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	setClauses := []string{"updated_at = ?"}
	args := []interface{}{nowFunc()}
	for field, value := range diff {
		col, ok := mappingUpdatable[field]
		if !ok {
			continue
		}
		setClauses = append(setClauses, col+" = ?")
		args = append(args, normalizeJSONField(field, value))
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE url_mappings SET %s WHERE id = ?", strings.Join(setClauses, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, apierr.Wrap(apierr.Database, "update url mapping", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apierr.Wrap(apierr.Database, "read rows affected", err)
	}
	return n > 0, nil
}

// BulkSetActive flips is_active for every id in ids, returning the count
// actually updated. SPEC_FULL.md §6.1 caps a single call at 100 ids; this
// method does not enforce that bound itself — the HTTP handler does.
func (s *MappingStore) BulkSetActive(ctx context.Context, ids []string, isActive bool) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	placeholders := make([]string, len(ids))
	args := make([]interface{}, 0, len(ids)+2)
	args = append(args, isActive, nowFunc())
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}
	query := fmt.Sprintf("UPDATE url_mappings SET is_active = ?, updated_at = ? WHERE id IN (%s)", strings.Join(placeholders, ","))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, apierr.Wrap(apierr.Database, "bulk update url mapping status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apierr.Wrap(apierr.Database, "read rows affected", err)
	}
	return int(n), nil
}

// Delete removes the mapping with id. A second call for the same id returns
// false without error.
func (s *MappingStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM url_mappings WHERE id = ?", id)
	if err != nil {
		return false, apierr.Wrap(apierr.Database, "delete url mapping", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apierr.Wrap(apierr.Database, "read rows affected", err)
	}
	return n > 0, nil
}

// DeleteByURLConfigID cascades a URLConfiguration delete: since configurations
// and mappings live in separate SQLite files (SPEC_FULL.md §6.2), there is no
// database-level foreign key to rely on, so the caller (pkg/httpapi) invokes
// this explicitly after deleting the owning configuration.
func (s *MappingStore) DeleteByURLConfigID(ctx context.Context, urlConfigID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM url_mappings WHERE url_config_id = ?", urlConfigID)
	if err != nil {
		return 0, apierr.Wrap(apierr.Database, "cascade delete url mappings", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apierr.Wrap(apierr.Database, "read rows affected", err)
	}
	return int(n), nil
}

// MappingStats summarizes the mapping table for GET stats.
type MappingStats struct {
	Total       int
	Active      int
	ByCategory  map[string]int
	ByExtractor map[string]int
}

// Stats computes totals, by-category, and by-extractor usage counts
// (SPEC_FULL.md §4.7 supplemented from original_source, see DESIGN.md).
func (s *MappingStore) Stats(ctx context.Context) (MappingStats, error) {
	stats := MappingStats{ByCategory: map[string]int{}, ByExtractor: map[string]int{}}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM url_mappings").Scan(&stats.Total); err != nil {
		return stats, apierr.Wrap(apierr.Database, "count url mappings", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM url_mappings WHERE is_active = 1").Scan(&stats.Active); err != nil {
		return stats, apierr.Wrap(apierr.Database, "count active url mappings", err)
	}
	if err := groupByCount(ctx, s.db, "url_mappings", "category", stats.ByCategory); err != nil {
		return stats, err
	}

	all, err := s.GetAll(ctx, false)
	if err != nil {
		return stats, err
	}
	for _, m := range all {
		for _, extractorID := range m.ExtractorIDs {
			stats.ByExtractor[extractorID]++
		}
	}
	return stats, nil
}

const selectMappingSQL = `SELECT
    id, url_config_id, url, extractor_ids, rate_limit, priority, crawler_settings,
    validation_rules, metadata, is_active, tags, notes, category, created_at, updated_at
FROM url_mappings`

func scanMapping(row rowScanner) (model.URLMapping, error) {
	var m model.URLMapping
	err := row.Scan(
		&m.ID, &m.URLConfigID, &m.URL, &m.ExtractorIDs, &m.RateLimit, &m.Priority, &m.CrawlerSettings,
		&m.ValidationRules, &m.Metadata, &m.IsActive, &m.Tags, &m.Notes, &m.Category, &m.CreatedAt, &m.UpdatedAt,
	)
	return m, err
}

func scanMappings(rows *sql.Rows) ([]model.URLMapping, error) {
	out := []model.URLMapping{}
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, apierr.Wrap(apierr.Database, "scan url mapping row", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apierr.Wrap(apierr.Database, "iterate url mapping rows", err)
	}
	return out, nil
}
