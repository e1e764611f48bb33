package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/strataflow/extractengine/pkg/apierr"
	"github.com/strataflow/extractengine/pkg/model"
)

func listMappingsHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := parseListParams(r)
		if err != nil {
			writeError(w, err)
			return
		}

		var mappings []model.URLMapping
		if p.Search != "" {
			mappings, err = d.Mappings.Search(r.Context(), p.Search)
		} else {
			mappings, err = d.Mappings.GetAll(r.Context(), p.ActiveOnly)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, paginate(mappings, p))
	}
}

func getMappingHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := d.Mappings.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, m)
	}
}

func createMappingHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var m model.URLMapping
		if err := decodeJSON(r, &m); err != nil {
			badRequest(w, "malformed request body: "+err.Error())
			return
		}
		if _, err := d.Configs.Get(r.Context(), m.URLConfigID); err != nil {
			writeError(w, apierr.Wrap(apierr.Validation, "url_config_id does not reference an existing configuration", err))
			return
		}
		created, err := d.Mappings.Create(r.Context(), m)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func updateMappingHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var diff map[string]interface{}
		if err := decodeJSON(r, &diff); err != nil {
			badRequest(w, "malformed request body: "+err.Error())
			return
		}
		ok, err := d.Mappings.Update(r.Context(), id, diff)
		if err != nil {
			writeError(w, err)
			return
		}
		if !ok {
			writeError(w, apierr.New(apierr.NotFound, "url mapping "+id+" not found"))
			return
		}
		m, err := d.Mappings.Get(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, m)
	}
}

func deleteMappingHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		ok, err := d.Mappings.Delete(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		if !ok {
			writeError(w, apierr.New(apierr.NotFound, "url mapping "+id+" not found"))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func mappingsByExtractorHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		matches, err := d.Mappings.ByExtractor(r.Context(), chi.URLParam(r, "extractor_id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, matches)
	}
}

func mappingsByURLConfigHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		matches, err := d.Mappings.ByURLConfigID(r.Context(), chi.URLParam(r, "url_config_id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, matches)
	}
}

// bulkStatusRequest is the PATCH /url-mappings/bulk-status body
// (SPEC_FULL.md §6.1: "{mapping_ids:[…], is_active} — ≤100 items").
type bulkStatusRequest struct {
	MappingIDs []string `json:"mapping_ids"`
	IsActive   bool     `json:"is_active"`
}

const bulkStatusMaxItems = 100

func bulkSetMappingStatusHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req bulkStatusRequest
		if err := decodeJSON(r, &req); err != nil {
			badRequest(w, "malformed request body: "+err.Error())
			return
		}
		if len(req.MappingIDs) == 0 {
			badRequest(w, "mapping_ids cannot be empty")
			return
		}
		if len(req.MappingIDs) > bulkStatusMaxItems {
			badRequest(w, "mapping_ids cannot exceed 100 items")
			return
		}

		n, err := d.Mappings.BulkSetActive(r.Context(), req.MappingIDs, req.IsActive)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"updated": n})
	}
}
