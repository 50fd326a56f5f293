package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pelageech/cachebust/auth"
	"github.com/pelageech/cachebust/metrics"
	"github.com/pelageech/cachebust/nocache"
)

const metricsPath = "/metrics"

// MetricsServer exposes the metrics on their own address,
// so that no path of the served directory is shadowed.
type MetricsServer struct {
	addr            string
	metrics         *metrics.Metrics
	guard           *auth.Guard
	logger          *log.Logger
	shutdownTimeout time.Duration
}

// NewMetricsServer is the constructor of the MetricsServer.
// A nil guard leaves the endpoint open.
func NewMetricsServer(addr string, m *metrics.Metrics, guard *auth.Guard, logger *log.Logger) *MetricsServer {
	return &MetricsServer{
		addr:            addr,
		metrics:         m,
		guard:           guard,
		logger:          logger,
		shutdownTimeout: defaultShutdownTimeout,
	}
}

// SetShutdownTimeout bounds the time in-flight scrapes get on shutdown.
func (s *MetricsServer) SetShutdownTimeout(d time.Duration) {
	s.shutdownTimeout = d
}

// Handler serves the metrics at /metrics.
func (s *MetricsServer) Handler() http.Handler {
	var h http.Handler = s.metrics.Handler()
	if s.guard != nil {
		h = s.guard.Handler(h)
	}

	mux := http.NewServeMux()
	mux.Handle(metricsPath, h)
	return nocache.Handler(mux)
}

// Listen binds the metrics address.
func (s *MetricsServer) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	return ln, nil
}

// Serve serves the metrics on ln until ctx is done.
func (s *MetricsServer) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:  s.Handler(),
		ErrorLog: s.logger.StandardLog(log.StandardLogOptions{ForceLevel: log.ErrorLevel}),
	}

	s.logger.Info("Metrics available", "url", fmt.Sprintf("http://%s%s", ln.Addr(), metricsPath))
	return serve(ctx, srv, ln, s.shutdownTimeout, s.logger)
}
