// Package metrics exposes the Connection Registry's counters as Prometheus
// collectors and serves them over /metrics. Split out from the proxy
// package so both the handler and the pipe copier can report against it
// without an import cycle.
//
// Grounded on the teacher's promauto idiom and gaugeWrapper (active-
// connection tracking that keeps a locally queryable count alongside the
// exported gauge).
package metrics

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dpiproxy/internal/ui"
)

var (
	// TotalConnections counts every accepted connection that reached a
	// registered state (mirrors Registry.totalConnections).
	TotalConnections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dpiproxy_connections_total",
		Help: "Total accepted connections that reached a registered state",
	})

	// AllowedConnections counts connections forwarded unfragmented.
	AllowedConnections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dpiproxy_connections_allowed_total",
		Help: "Total connections forwarded unfragmented",
	})

	// BlockedConnections counts connections whose ClientHello was
	// fragmented, either because it matched the blacklist or because
	// no-blacklist mode is on.
	BlockedConnections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dpiproxy_connections_fragmented_total",
		Help: "Total connections whose ClientHello was fragmented",
	})

	// BytesTotal counts bytes transferred, labeled by direction
	// ("in"/"out").
	BytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dpiproxy_bytes_total",
		Help: "Total bytes transferred by direction",
	}, []string{"direction"})

	// ErrorsTotal counts handler failures (request parsing, origin dial,
	// initial write, registration), labeled by the proxyerr sentinel they
	// wrap. Mid-stream pipe errors are logged but not counted here.
	ErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dpiproxy_errors_total",
		Help: "Total per-connection errors by kind",
	}, []string{"kind"})

	// ConnectionDuration tracks how long each connection stays open.
	ConnectionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dpiproxy_connection_duration_seconds",
		Help:    "Connection duration in seconds",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})

	// ActiveConns tracks current live connections. Wrapped below so its
	// value can be read back without scraping /metrics.
	ActiveConns prometheus.Gauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dpiproxy_active_connections",
		Help: "Current live connections",
	})
)

var activeConnsMu sync.Mutex
var activeConnsCount int

func init() {
	orig := ActiveConns
	ActiveConns = &gaugeWrapper{Gauge: orig, count: &activeConnsCount, mu: &activeConnsMu}
}

// gaugeWrapper mirrors Inc/Dec into a plain int so GetActiveConns can be
// called from the supervisor's drain path without going through the HTTP
// exposition format.
type gaugeWrapper struct {
	prometheus.Gauge
	count *int
	mu    *sync.Mutex
}

func (g *gaugeWrapper) Inc() {
	g.mu.Lock()
	*g.count++
	g.mu.Unlock()
	g.Gauge.Inc()
}

func (g *gaugeWrapper) Dec() {
	g.mu.Lock()
	*g.count--
	g.mu.Unlock()
	g.Gauge.Dec()
}

// GetActiveConns returns the current active connection count.
func GetActiveConns() int {
	activeConnsMu.Lock()
	defer activeConnsMu.Unlock()
	return activeConnsCount
}

// Server wraps the HTTP server exposing /metrics.
type Server struct {
	server *http.Server
}

// NewServer creates a new metrics server bound to addr.
func NewServer(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start begins serving metrics in the background.
func (m *Server) Start() {
	go func() {
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			ui.LogStatus("error", "metrics server error: "+err.Error())
		}
	}()
}

// Shutdown gracefully stops the metrics server.
func (m *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return m.server.Shutdown(shutdownCtx)
}
