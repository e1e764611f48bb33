package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/strataflow/extractengine/pkg/apierr"
)

// builtinFilePath is reported for every compile-time-registered strategy:
// they are all seeded from the same source location (pkg/strategy/builtins.go),
// SPEC_FULL.md §4.2's redesign of filesystem-scan discovery into an init hook.
const builtinFilePath = "pkg/strategy/builtins.go"

// extractorView is the {id,name,description,schema,file_path} shape
// SPEC_FULL.md §6.1 documents for GET /extractors[/{id}].
type extractorView struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Category    string                 `json:"category"`
	Schema      map[string]interface{} `json:"schema"`
	FilePath    string                 `json:"file_path"`
}

func listExtractorsHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metas := d.Registry.List()
		out := make([]extractorView, len(metas))
		for i, m := range metas {
			out[i] = extractorView{
				ID: m.Name, Name: m.Name, Description: m.Description,
				Category: string(m.Category), Schema: m.OutputSchema, FilePath: builtinFilePath,
			}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getExtractorHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		meta, _, ok := d.Registry.Get(id)
		if !ok {
			writeError(w, apierr.New(apierr.NotFound, "extractor "+id+" is not registered"))
			return
		}
		writeJSON(w, http.StatusOK, extractorView{
			ID: meta.Name, Name: meta.Name, Description: meta.Description,
			Category: string(meta.Category), Schema: meta.OutputSchema, FilePath: builtinFilePath,
		})
	}
}

// getExtractorConfigSchemaHandler is the expansion endpoint: it returns one
// strategy's derived config_schema, the natural companion to GET
// /extractors/{id} given SPEC_FULL.md §4.2.e's schema-derivation contract.
func getExtractorConfigSchemaHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		meta, _, ok := d.Registry.Get(id)
		if !ok {
			writeError(w, apierr.New(apierr.NotFound, "extractor "+id+" is not registered"))
			return
		}
		writeJSON(w, http.StatusOK, meta.ConfigSchema)
	}
}
