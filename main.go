package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-playground/validator/v10"
	"github.com/pelageech/cachebust/accesslog"
	"github.com/pelageech/cachebust/auth"
	"github.com/pelageech/cachebust/config"
	"github.com/pelageech/cachebust/metrics"
	"github.com/pelageech/cachebust/server"
	"github.com/pelageech/cachebust/watcher"
)

const (
	usageFormat = "Usage: %s <port> [directory]\n"
	stopNotice  = "\n⏹️  Server stopped"

	metricsTokenTTL = 24 * time.Hour
)

var levels = map[string]log.Level{
	"debug": log.DebugLevel,
	"info":  log.InfoLevel,
	"warn":  log.WarnLevel,
	"error": log.ErrorLevel,
}

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "cachebust",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code, err := run(ctx, os.Args, os.Stdout, os.Stderr, logger)
	stop()
	if err != nil {
		logger.Fatal(err)
	}
	os.Exit(code)
}

// run starts the server described by args and blocks until ctx is done.
// It returns the exit code; a non-nil error is fatal.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, logger *log.Logger) (int, error) {
	v := validator.New()

	cfg, err := config.ParseArgs(args[1:], v)
	if errors.Is(err, config.ErrUsage) {
		_, _ = fmt.Fprintf(stdout, usageFormat, filepath.Base(args[0]))
		return 1, nil
	}
	if err != nil {
		return 1, err
	}

	settings, err := config.LoadSettings(v)
	if err != nil {
		return 1, err
	}
	if level, ok := levels[settings.LogLevel]; ok {
		logger.SetLevel(level)
	}

	srv := server.New(cfg, logger, accesslog.New(stderr))
	srv.SetStdout(stdout)
	srv.SetShutdownTimeout(settings.ShutdownGrace())

	ln, err := srv.Listen()
	if err != nil {
		return 1, err
	}

	var wg sync.WaitGroup
	defer wg.Wait()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if settings.MetricsAddr != "" {
		m := metrics.NewMetrics()
		srv.SetMetrics(m)

		ms, err := newMetricsServer(settings, m, logger)
		if err != nil {
			_ = ln.Close()
			return 1, err
		}
		mln, err := ms.Listen()
		if err != nil {
			_ = ln.Close()
			return 1, err
		}

		wg.Add(2)
		go func() {
			defer wg.Done()
			m.Observe(ctx)
		}()
		go func() {
			defer wg.Done()
			if err := ms.Serve(ctx, mln); err != nil {
				logger.Error("Metrics server stopped", "err", err)
			}
		}()
	}

	if settings.Watch {
		w, err := watcher.New(cfg.Root, logger, nil)
		if err != nil {
			_ = ln.Close()
			return 1, fmt.Errorf("watch %s: %w", cfg.Root, err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Run(ctx); err != nil {
				logger.Error("Watcher stopped", "err", err)
			}
		}()
	}

	if err := srv.Serve(ctx, ln); err != nil {
		return 1, err
	}

	_, _ = fmt.Fprintln(stdout, stopNotice)
	return 0, nil
}

func newMetricsServer(settings *config.Settings, m *metrics.Metrics, logger *log.Logger) (*server.MetricsServer, error) {
	var guard *auth.Guard
	if settings.MetricsSecret != "" {
		var err error
		guard, err = auth.New(settings.MetricsSecret, logger)
		if err != nil {
			return nil, err
		}
		token, err := guard.IssueToken("metrics", metricsTokenTTL)
		if err != nil {
			return nil, err
		}
		logger.Debug("Metrics bearer token", "token", token, "ttl", metricsTokenTTL)
	}

	ms := server.NewMetricsServer(settings.MetricsAddr, m, guard, logger)
	ms.SetShutdownTimeout(settings.ShutdownGrace())
	return ms, nil
}
