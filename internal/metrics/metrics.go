// Package metrics exposes the Prometheus counters and histograms the
// resolver/dispatcher and HTTP API update on every request.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns the process's Prometheus registry and metric handles.
type Registry struct {
	reg *prometheus.Registry

	DispatchesTotal   *prometheus.CounterVec
	DispatchLatencyMS *prometheus.HistogramVec
	RateLimitedTotal  *prometheus.CounterVec
	StrategyErrors    *prometheus.CounterVec
	HTTPRequestsTotal *prometheus.CounterVec
}

// New builds a Registry with every metric registered.
func New() *Registry {
	reg := prometheus.NewRegistry()
	m := &Registry{
		reg: reg,
		DispatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "extractengine_dispatches_total",
			Help: "Total extraction dispatches by mapping and outcome",
		}, []string{"mapping_id", "success"}),
		DispatchLatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "extractengine_dispatch_latency_ms",
			Help:    "Dispatch latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10),
		}, []string{"mapping_id"}),
		RateLimitedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "extractengine_rate_limited_total",
			Help: "Total dispatches rejected by the rate limiter",
		}, []string{"mapping_id"}),
		StrategyErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "extractengine_strategy_errors_total",
			Help: "Total strategy extraction failures by kind",
		}, []string{"strategy", "kind"}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "extractengine_http_requests_total",
			Help: "Total HTTP requests by route and status",
		}, []string{"route", "status"}),
	}
	reg.MustRegister(
		m.DispatchesTotal,
		m.DispatchLatencyMS,
		m.RateLimitedTotal,
		m.StrategyErrors,
		m.HTTPRequestsTotal,
	)
	return m
}

// Handler serves the registry's metrics in the Prometheus exposition format.
func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// ObserveDispatch implements resolver.Recorder.
func (m *Registry) ObserveDispatch(mappingID string, success bool, durationMS float64) {
	m.DispatchesTotal.WithLabelValues(mappingID, strconv.FormatBool(success)).Inc()
	m.DispatchLatencyMS.WithLabelValues(mappingID).Observe(durationMS)
}

// ObserveRateLimited implements resolver.Recorder.
func (m *Registry) ObserveRateLimited(mappingID string) {
	m.RateLimitedTotal.WithLabelValues(mappingID).Inc()
}

// ObserveStrategyError implements resolver.Recorder.
func (m *Registry) ObserveStrategyError(strategyName, kind string) {
	m.StrategyErrors.WithLabelValues(strategyName, kind).Inc()
}

// ObserveHTTPRequest records one completed HTTP request by route and status,
// called from httpapi's request-logging middleware.
func (m *Registry) ObserveHTTPRequest(route string, status int) {
	m.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
}
