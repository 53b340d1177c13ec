package api

import (
	"log"
	"net/http"
	"net/http/pprof"
	"os"

	"idleforge/internal/sim"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics with bounded cardinality (labels come from fixed enums, never
// from request data)
var (
	// Simulation metrics
	stepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sim_steps_total",
		Help: "Total simulation steps executed",
	})

	telemetryErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_telemetry_errors_total",
		Help: "Fatal telemetry events by kind",
	}, []string{"kind"}) // kind is a fixed enum name

	telemetryWarnings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_telemetry_warnings_total",
		Help: "Warning telemetry events by kind",
	}, []string{"kind"})

	telemetryProgress = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_telemetry_progress_total",
		Help: "Progress telemetry events by kind",
	}, []string{"kind"})

	// DoS detection metrics - use ONLY bounded label values
	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Connections rejected by rate limiter or origin check",
	}, []string{"reason"}) // Bounded: "rate_limit", "origin", "ws_total_limit", "ws_ip_limit"

	// WebSocket metrics
	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})

	wsMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_messages_total",
		Help: "Total WebSocket messages sent",
	})
)

// PromSink forwards simulation telemetry to Prometheus counters.
// It also logs errors and warnings so operators see them without
// scraping. Safe for concurrent use.
type PromSink struct{}

var _ sim.TelemetrySink = PromSink{}

// RecordError counts a fatal event and logs it.
func (PromSink) RecordError(kind sim.EventKind, data map[string]any) {
	telemetryErrors.WithLabelValues(kind.String()).Inc()
	log.Printf("sim error [%s]: %v", kind, data)
}

// RecordWarning counts a recoverable event and logs it.
func (PromSink) RecordWarning(kind sim.EventKind, data map[string]any) {
	telemetryWarnings.WithLabelValues(kind.String()).Inc()
	log.Printf("sim warning [%s]: %v", kind, data)
}

// RecordProgress counts a progress event. Progress events are frequent,
// so they are not logged individually.
func (PromSink) RecordProgress(kind sim.EventKind, data map[string]any) {
	telemetryProgress.WithLabelValues(kind.String()).Inc()
}

// RecordTick counts one executed simulation step.
func (PromSink) RecordTick() {
	stepsTotal.Inc()
}

// ObservabilityConfig configures the debug server
type ObservabilityConfig struct {
	Enabled       bool
	ListenAddr    string // MUST be "127.0.0.1:6060" in production
	BasicAuthUser string // Optional basic auth
	BasicAuthPass string
}

// DefaultObservabilityConfig returns safe defaults
func DefaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060", // Localhost only - NEVER expose externally
	}
}

// StartDebugServer starts the internal observability server
// CRITICAL: This MUST bind to localhost only to prevent pprof-based DoS
func StartDebugServer(cfg ObservabilityConfig) error {
	if !cfg.Enabled {
		log.Println("Debug server disabled")
		return nil
	}

	// SECURITY: Validate address is localhost
	if cfg.ListenAddr != "127.0.0.1:6060" && cfg.ListenAddr != "localhost:6060" {
		// Only allow external binding if explicitly enabled via env
		if os.Getenv("ALLOW_DEBUG_EXTERNAL") != "true" {
			log.Println("Debug server forced to localhost for security")
			cfg.ListenAddr = "127.0.0.1:6060"
		}
	}

	mux := http.NewServeMux()

	// pprof endpoints for profiling
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Optional basic auth wrapper
	var handler http.Handler = mux
	if cfg.BasicAuthUser != "" {
		handler = basicAuthMiddleware(cfg.BasicAuthUser, cfg.BasicAuthPass, mux)
	}

	go func() {
		log.Printf("Debug server starting on %s", cfg.ListenAddr)
		log.Printf("  - pprof:   http://%s/debug/pprof/", cfg.ListenAddr)
		log.Printf("  - metrics: http://%s/metrics", cfg.ListenAddr)

		if err := http.ListenAndServe(cfg.ListenAddr, handler); err != nil {
			log.Printf("Debug server error: %v", err)
		}
	}()

	return nil
}

// basicAuthMiddleware adds basic authentication to the handler
func basicAuthMiddleware(user, pass string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != user || p != pass {
			w.Header().Set("WWW-Authenticate", `Basic realm="debug"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RecordConnectionRejected increments the rejection counter
// reason must be one of: "rate_limit", "origin", "ws_total_limit", "ws_ip_limit"
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// UpdateWSConnections updates WebSocket connection count
func UpdateWSConnections(count int) {
	wsConnectionsActive.Set(float64(count))
}

// IncrementWSMessages increments WebSocket message counter
func IncrementWSMessages() {
	wsMessagesTotal.Inc()
}
