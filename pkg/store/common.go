package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// jsonBlobFields names the diff-map keys that must be JSON-marshaled before
// binding into a TEXT column, shared by ConfigStore.Update and
// MappingStore.Update.
var jsonBlobFields = map[string]bool{
	"key_data_points":  true,
	"target_data":      true,
	"cost_analysis":    true,
	"metadata":         true,
	"extractor_ids":    true,
	"crawler_settings": true,
	"validation_rules": true,
	"tags":             true,
}

// normalizeJSONField converts a partial-update diff value into the form the
// sqlite3 driver can bind: JSON-blob fields are re-encoded to their TEXT
// representation, everything else is passed through unchanged.
func normalizeJSONField(field string, value interface{}) interface{} {
	if !jsonBlobFields[field] {
		return value
	}
	b, err := json.Marshal(value)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint
// failure, the signal Create uses to return apierr.Duplicate.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// groupByCount runs `SELECT col, COUNT(*) FROM table GROUP BY col` and
// fills out with non-empty col values, shared by ConfigStats and
// MappingStats group-bys.
func groupByCount(ctx context.Context, db *sql.DB, table, column string, out map[string]int) error {
	query := fmt.Sprintf("SELECT %s, COUNT(*) FROM %s WHERE %s IS NOT NULL AND %s != '' GROUP BY %s", column, table, column, column, column)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("store: group by %s on %s: %w", column, table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("store: scan group-by row: %w", err)
		}
		out[key] = count
	}
	return rows.Err()
}
