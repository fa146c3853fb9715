package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// DefaultMetricsAddr is the default bind address for the metrics server.
	DefaultMetricsAddr = ":9090"

	metricsReadHeaderTimeout = 10 * time.Second
	metricsWriteTimeout      = 10 * time.Second
	metricsIdleTimeout       = 60 * time.Second
)

// MetricsServer serves the Prometheus scrape endpoint on a dedicated
// port, keeping operational metrics off the public API listener.
type MetricsServer struct {
	httpServer *http.Server
	addr       string
	listener   net.Listener
}

// NewMetricsServer creates a metrics server bound to addr. The
// OpenTelemetry Prometheus exporter registers with the default
// registry, which promhttp exposes.
func NewMetricsServer(addr string) *MetricsServer {
	if addr == "" {
		addr = DefaultMetricsAddr
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &MetricsServer{
		addr: addr,
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: metricsReadHeaderTimeout,
			WriteTimeout:      metricsWriteTimeout,
			IdleTimeout:       metricsIdleTimeout,
		},
	}
}

// Start listens and serves until Shutdown. The ready channel (may be
// nil) is closed once the listener is bound, so callers can fail fast
// on port conflicts instead of racing the scrape endpoint.
func (s *MetricsServer) Start(ready chan<- struct{}) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.listener = listener

	slog.Info("metrics server listening", "addr", listener.Addr().String())
	if ready != nil {
		close(ready)
	}
	return s.httpServer.Serve(listener)
}

// listenerAddr returns the bound address once serving, which differs
// from the configured one when listening on port 0.
func (s *MetricsServer) listenerAddr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown gracefully stops the metrics server.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the configured bind address.
func (s *MetricsServer) Addr() string {
	return s.addr
}
