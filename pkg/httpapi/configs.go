package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/strataflow/extractengine/pkg/apierr"
	"github.com/strataflow/extractengine/pkg/model"
)

func listConfigsHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := parseListParams(r)
		if err != nil {
			writeError(w, err)
			return
		}

		var configs []model.URLConfiguration
		if p.Search != "" {
			configs, err = d.Configs.Search(r.Context(), p.Search)
		} else {
			configs, err = d.Configs.GetAll(r.Context(), p.ActiveOnly)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, paginate(configs, p))
	}
}

func getConfigHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg, err := d.Configs.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	}
}

func createConfigHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cfg model.URLConfiguration
		if err := decodeJSON(r, &cfg); err != nil {
			badRequest(w, "malformed request body: "+err.Error())
			return
		}
		created, err := d.Configs.Create(r.Context(), cfg)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

// updateConfigHandler applies a partial field diff (any subset of
// URLConfiguration's updatable JSON fields), grounded on tokenhub's generic
// PATCH-via-map[string]any handler pattern.
func updateConfigHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var diff map[string]interface{}
		if err := decodeJSON(r, &diff); err != nil {
			badRequest(w, "malformed request body: "+err.Error())
			return
		}
		ok, err := d.Configs.Update(r.Context(), id, diff)
		if err != nil {
			writeError(w, err)
			return
		}
		if !ok {
			writeError(w, apierr.New(apierr.NotFound, "url configuration "+id+" not found"))
			return
		}
		cfg, err := d.Configs.Get(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	}
}

// deleteConfigHandler removes a configuration and cascades the delete to
// every mapping bound to it, since the two stores live in separate SQLite
// files with no foreign key of their own (SPEC_FULL.md §6.2).
func deleteConfigHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		ok, err := d.Configs.Delete(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		if !ok {
			writeError(w, apierr.New(apierr.NotFound, "url configuration "+id+" not found"))
			return
		}
		if _, err := d.Mappings.DeleteByURLConfigID(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
