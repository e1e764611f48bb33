package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/strataflow/extractengine/pkg/apierr"
)

// errorBody is the exact shape SPEC_FULL.md §6.1 requires for every non-2xx
// response: {detail, error_code, timestamp}.
type errorBody struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code"`
	Timestamp int64  `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("httpapi: encode response", "error", err)
	}
}

// writeError maps err through the shared apierr taxonomy to an HTTP status
// and the {detail, error_code, timestamp} envelope. A nil or non-*apierr.Error
// cause still produces a well-formed 500 body.
func writeError(w http.ResponseWriter, err error) {
	status := apierr.HTTPStatus(err)
	kind := apierr.KindOf(err)
	if kind == "" {
		kind = "Internal"
	}
	detail := "internal error"
	if err != nil {
		detail = err.Error()
	}
	writeJSON(w, status, errorBody{
		Detail:    detail,
		ErrorCode: string(kind),
		Timestamp: time.Now().Unix(),
	})
}

// badRequest writes a 400 envelope for a malformed request that never
// reached a component able to classify it as an *apierr.Error (bad JSON,
// missing required field, invalid query parameter).
func badRequest(w http.ResponseWriter, detail string) {
	writeJSON(w, http.StatusBadRequest, errorBody{
		Detail:    detail,
		ErrorCode: "BadRequest",
		Timestamp: time.Now().Unix(),
	})
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// listParams is the parsed, validated form of the limit/skip/sort_order
// query parameters shared by every list endpoint (SPEC_FULL.md §6.1: "limit
// ∈ [1,1000], skip ≥ 0, sort_order ∈ {asc,desc}").
type listParams struct {
	Limit     int
	Skip      int
	SortOrder string
	ActiveOnly bool
	Search    string
}

const (
	defaultLimit = 1000
	maxLimit     = 1000
)

func parseListParams(r *http.Request) (listParams, error) {
	p := listParams{Limit: defaultLimit, Skip: 0, SortOrder: "desc"}
	q := r.URL.Query()

	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxLimit {
			return p, apierr.New(apierr.Validation, "limit must be an integer in [1,1000]")
		}
		p.Limit = n
	}
	if raw := q.Get("skip"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return p, apierr.New(apierr.Validation, "skip must be a non-negative integer")
		}
		p.Skip = n
	}
	if raw := q.Get("sort_order"); raw != "" {
		if raw != "asc" && raw != "desc" {
			return p, apierr.New(apierr.Validation, "sort_order must be one of asc, desc")
		}
		p.SortOrder = raw
	}
	if raw := q.Get("active_only"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return p, apierr.New(apierr.Validation, "active_only must be a boolean")
		}
		p.ActiveOnly = b
	}
	p.Search = q.Get("q")
	return p, nil
}

// paginate applies skip/limit/sort_order (stores already return newest-first,
// i.e. desc) to a slice built by the caller, since neither store paginates
// at the SQL layer (SPEC_FULL.md §6.1 validation is enforced here instead).
func paginate[T any](items []T, p listParams) []T {
	if p.SortOrder == "asc" {
		reversed := make([]T, len(items))
		for i, it := range items {
			reversed[len(items)-1-i] = it
		}
		items = reversed
	}
	if p.Skip >= len(items) {
		return []T{}
	}
	items = items[p.Skip:]
	if p.Limit < len(items) {
		items = items[:p.Limit]
	}
	return items
}

func slogRequest(r *http.Request, status int, d time.Duration) {
	slog.Info("http request",
		"method", r.Method, "path", r.URL.Path, "status", status, "duration_ms", d.Milliseconds())
}
