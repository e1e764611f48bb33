package httpapi

import (
	"net/http"
	"strings"

	"github.com/strataflow/extractengine/pkg/apierr"
	"github.com/strataflow/extractengine/pkg/resolver"
	"github.com/strataflow/extractengine/pkg/strategy"
)

// testURLRequest is the body POST /test-url accepts (SPEC_FULL.md §6.1):
// `{url, extractor_id?, llm_config?, instruction?, schema?}`. content is
// required since the core never fetches pages itself (spec.md §1's
// out-of-scope headless fetcher) — the spec's own worked example omits it
// only because its stub LLM ignores the prompt body entirely.
type testURLRequest struct {
	URL         string                 `json:"url"`
	Content     string                 `json:"content"`
	ExtractorID string                 `json:"extractor_id"`
	LLMConfig   map[string]interface{} `json:"llm_config"`
	Instruction string                 `json:"instruction"`
	Schema      map[string]interface{} `json:"schema"`
}

type testURLResponse struct {
	URL              string                 `json:"url"`
	ExtractorUsed    string                 `json:"extractor_used"`
	ExtractionResult strategy.Record        `json:"extraction_result"`
	Metadata         map[string]interface{} `json:"metadata"`
	Success          bool                   `json:"success"`
	ErrorMessage     string                 `json:"error_message,omitempty"`
}

// testURLHandler implements POST /test-url. With extractor_id set it builds
// and runs that one strategy directly (optionally overridden by llm_config /
// instruction / schema) without touching any persisted mapping — the quick
// "does this extractor work" check. Without extractor_id it runs the request
// through the same Resolver & Dispatcher (component J) a real dispatch
// would use, so operators can test "what happens for this URL" against
// whatever mapping is already configured.
func testURLHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req testURLRequest
		if err := decodeJSON(r, &req); err != nil {
			badRequest(w, "malformed request body: "+err.Error())
			return
		}
		if req.URL == "" {
			badRequest(w, "url is required")
			return
		}
		if req.Content == "" {
			badRequest(w, "content is required")
			return
		}

		if req.ExtractorID == "" {
			dispatchViaResolver(d, w, r, req)
			return
		}

		override := map[string]interface{}{}
		for k, v := range req.LLMConfig {
			override[k] = v
		}
		if req.Instruction != "" {
			override["instruction"] = req.Instruction
		}
		if req.Schema != nil {
			override["output_schema"] = req.Schema
		}

		s, err := d.Factory.Create(req.ExtractorID, override)
		if err != nil {
			writeError(w, err)
			return
		}

		record, err := s.Extract(r.Context(), req.URL, req.Content, strategy.Options{})
		if err != nil {
			writeError(w, err)
			return
		}

		meta, _ := record["_metadata"].(map[string]interface{})
		writeJSON(w, http.StatusOK, testURLResponse{
			URL: req.URL, ExtractorUsed: req.ExtractorID,
			ExtractionResult: record, Metadata: meta, Success: true,
		})
	}
}

func dispatchViaResolver(d Dependencies, w http.ResponseWriter, r *http.Request, req testURLRequest) {
	if d.Dispatcher == nil {
		writeError(w, apierr.New(apierr.Configuration, "no extractor_id given and no resolver is configured to look up a mapping"))
		return
	}

	result, err := d.Dispatcher.Dispatch(r.Context(), req.URL, req.Content, resolver.Overrides{})
	if err != nil {
		writeError(w, err)
		return
	}

	meta, _ := result.Record["_metadata"].(map[string]interface{})
	writeJSON(w, http.StatusOK, testURLResponse{
		URL:              req.URL,
		ExtractorUsed:    strings.Join(result.Mapping.ExtractorIDs, ","),
		ExtractionResult: result.Record,
		Metadata:         meta,
		Success:          true,
	})
}
