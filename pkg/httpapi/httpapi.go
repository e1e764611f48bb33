// Package httpapi implements the External API surface (component K): a
// chi-routed JSON HTTP service exposing strategy discovery, a one-shot
// test-url endpoint, CRUD over URL configurations and URL mappings, health,
// and (when enabled) Prometheus metrics. Grounded on jordanhubbard-tokenhub's
// internal/httpapi route-grouping/Dependencies pattern, adapted to this
// service's own error envelope and resources.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/strataflow/extractengine/internal/metrics"
	"github.com/strataflow/extractengine/pkg/llmclient"
	"github.com/strataflow/extractengine/pkg/resolver"
	"github.com/strataflow/extractengine/pkg/strategy"
)

// Dependencies bundles every collaborator the HTTP handlers need. It is
// assembled once in cmd/extractengine/main.go and passed to NewRouter.
type Dependencies struct {
	Configs    ConfigStore
	Mappings   MappingStore
	Registry   *strategy.Registry
	Factory    *strategy.Factory
	Dispatcher *resolver.Dispatcher
	Metrics    *metrics.Registry
	LLMClient  llmclient.LLMClient

	AllowedOrigins []string
	EnableMetrics  bool
}

// NewRouter builds the fully-mounted chi router: request-id/recover/logging
// middleware, CORS per AllowedOrigins, and every route from SPEC_FULL.md
// §6.1, grounded on jordanhubbard-tokenhub's internal/app/server.go wiring.
func NewRouter(d Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(d))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(90 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler(d))
	if d.EnableMetrics && d.Metrics != nil {
		r.Handle("/metrics", d.Metrics.Handler())
	}

	r.Route("/api", func(api chi.Router) {
		api.Get("/extractors", listExtractorsHandler(d))
		api.Get("/extractors/{id}", getExtractorHandler(d))
		api.Get("/extractors/{id}/config-schema", getExtractorConfigSchemaHandler(d))

		api.Post("/test-url", testURLHandler(d))

		api.Route("/url-configurations", func(cfg chi.Router) {
			cfg.Get("/", listConfigsHandler(d))
			cfg.Post("/", createConfigHandler(d))
			cfg.Get("/{id}", getConfigHandler(d))
			cfg.Put("/{id}", updateConfigHandler(d))
			cfg.Delete("/{id}", deleteConfigHandler(d))
		})

		api.Route("/url-mappings", func(m chi.Router) {
			m.Get("/", listMappingsHandler(d))
			m.Post("/", createMappingHandler(d))
			m.Patch("/bulk-status", bulkSetMappingStatusHandler(d))
			m.Get("/by-extractor/{extractor_id}", mappingsByExtractorHandler(d))
			m.Get("/by-url-config/{url_config_id}", mappingsByURLConfigHandler(d))
			m.Get("/{id}", getMappingHandler(d))
			m.Put("/{id}", updateMappingHandler(d))
			m.Delete("/{id}", deleteMappingHandler(d))
		})
	})

	return r
}

// requestLogger emits one structured log line per request, grounded on the
// teacher's slog-based request logging (pkg/server uses the same
// method/path/status/duration shape for its own HTTP surface), and records
// the same outcome to d.Metrics when metrics are enabled.
func requestLogger(d Dependencies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			slogRequest(r, ww.Status(), time.Since(start))

			if d.EnableMetrics && d.Metrics != nil {
				route := chi.RouteContext(r.Context()).RoutePattern()
				if route == "" {
					route = r.URL.Path
				}
				d.Metrics.ObserveHTTPRequest(route, ww.Status())
			}
		})
	}
}
