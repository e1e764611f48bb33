package httpapi

import (
	"net/http"
	"time"
)

// healthHandler reports liveness (SPEC_FULL.md §6.1: "200 {status:healthy,…}").
// It never checks downstream stores: a SQLite file being briefly locked is
// not a liveness failure, only a latency blip on the request that hit it.
func healthHandler(d Dependencies) http.HandlerFunc {
	started := time.Now()
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":     "healthy",
			"uptime_s":   int(time.Since(started).Seconds()),
			"extractors": len(d.Registry.Names()),
		})
	}
}
