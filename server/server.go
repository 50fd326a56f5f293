// Package server serves a directory over HTTP with caching disabled
// on every response.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdlog "log"
	"net"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pelageech/cachebust/accesslog"
	"github.com/pelageech/cachebust/config"
	"github.com/pelageech/cachebust/metrics"
	"github.com/pelageech/cachebust/nocache"
	"github.com/pelageech/cachebust/timer"
)

const (
	defaultShutdownTimeout = 5 * time.Second
	indexPage              = "/index.html"
)

// Server is the cache-busting static file server.
type Server struct {
	config          *config.ServerConfig
	logger          *log.Logger
	accessLog       *accesslog.Logger
	metrics         *metrics.Metrics
	stdout          io.Writer
	shutdownTimeout time.Duration
}

// New is the constructor of the Server.
// Operational messages go to logger, one line per request goes to accessLog.
func New(cfg *config.ServerConfig, logger *log.Logger, accessLog *accesslog.Logger) *Server {
	return &Server{
		config:          cfg,
		logger:          logger,
		accessLog:       accessLog,
		stdout:          os.Stdout,
		shutdownTimeout: defaultShutdownTimeout,
	}
}

// Config returns the configuration the server was built with.
func (s *Server) Config() *config.ServerConfig {
	return s.config
}

// SetMetrics makes the server record every request in m.
func (s *Server) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// SetStdout sets where the startup banner is printed.
func (s *Server) SetStdout(w io.Writer) {
	s.stdout = w
}

// SetShutdownTimeout bounds the time in-flight requests get on shutdown.
func (s *Server) SetShutdownTimeout(d time.Duration) {
	s.shutdownTimeout = d
}

// Handler returns the full handler chain:
// access log, timing and metrics, header injection, file serving.
func (s *Server) Handler() http.Handler {
	var h http.Handler = nocache.Handler(newFileHandler(http.Dir(s.config.Root)))

	savers := []func(*http.Request, time.Duration){timer.LogSaver(s.logger)}
	if s.metrics != nil {
		h = s.metrics.Instrument(h)
		savers = append(savers, func(_ *http.Request, t time.Duration) {
			s.metrics.ObserveDuration(t)
		})
	}
	h = timer.MakeRequestTimeTracker(h, savers...)

	return s.accessLog.Handler(h)
}

// Listen binds the configured port on all IPv4 interfaces.
func (s *Server) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", s.config.Addr(), err)
	}
	return ln, nil
}

// Run listens and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve prints the banner and serves the connections accepted on ln.
// When ctx is done the server is shut down gracefully, ln is closed
// and Serve returns nil.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:  s.Handler(),
		ErrorLog: stdlog.New(s.accessLog, "", 0),
	}

	s.printBanner()
	s.logger.Debug("Accepting connections", "addr", ln.Addr().String())

	return serve(ctx, srv, ln, s.shutdownTimeout, s.logger)
}

func (s *Server) printBanner() {
	_, _ = fmt.Fprintf(s.stdout, "🚀 Cache-busting server running on port %d\n", s.config.Port)
	_, _ = fmt.Fprintf(s.stdout, "📂 Serving from: %s\n", s.config.Root)
	_, _ = fmt.Fprintf(s.stdout, "🌐 Access at: %s\n", s.config.URL())
}

// serve runs srv on ln until ctx is done, then shuts it down within grace.
// Connections still open after grace are closed; that isn't an error.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, grace time.Duration, logger *log.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Closing connections left after shutdown", "grace", grace, "err", err)
		_ = srv.Close()
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// fileHandler is http.FileServer, except that an explicit request
// for an index page is answered with the page instead of a redirect,
// and only GET and HEAD are served.
type fileHandler struct {
	root  http.FileSystem
	files http.Handler
}

func newFileHandler(root http.FileSystem) *fileHandler {
	return &fileHandler{
		root:  root,
		files: http.FileServer(root),
	}
}

func (h *fileHandler) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		http.Error(rw, "Unsupported method", http.StatusNotImplemented)
		return
	}
	if strings.HasSuffix(req.URL.Path, indexPage) && h.serveIndex(rw, req) {
		return
	}
	h.files.ServeHTTP(rw, req)
}

func (h *fileHandler) serveIndex(rw http.ResponseWriter, req *http.Request) bool {
	name := req.URL.Path
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}

	f, err := h.root.Open(path.Clean(name))
	if err != nil {
		return false
	}
	defer f.Close()

	d, err := f.Stat()
	if err != nil || d.IsDir() {
		return false
	}

	http.ServeContent(rw, req, d.Name(), d.ModTime(), f)
	return true
}
