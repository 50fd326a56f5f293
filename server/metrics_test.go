package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pelageech/cachebust/auth"
	"github.com/pelageech/cachebust/metrics"
)

func TestMetricsServerHandler(t *testing.T) {
	logger := log.New(io.Discard)
	guard, err := auth.New("secret", logger)
	if err != nil {
		t.Fatal(err)
	}
	token, err := guard.IssueToken("prometheus", time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		guard  *auth.Guard
		path   string
		header string
		code   int
	}{
		{name: "open", path: "/metrics", code: http.StatusOK},
		{name: "other path", path: "/index.html", code: http.StatusNotFound},
		{name: "guarded without token", guard: guard, path: "/metrics", code: http.StatusUnauthorized},
		{name: "guarded with token", guard: guard, path: "/metrics", header: "Bearer " + token, code: http.StatusOK},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			s := NewMetricsServer("127.0.0.1:0", metrics.NewMetrics(), test.guard, logger)
			req := httptest.NewRequest(http.MethodGet, test.path, nil)
			if test.header != "" {
				req.Header.Set("Authorization", test.header)
			}
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)

			res := rec.Result()
			if res.StatusCode != test.code {
				t.Fatalf("expected %d, got %d", test.code, res.StatusCode)
			}
			assertNoCache(t, res.Header)
		})
	}
}

func TestMetricsServerServe(t *testing.T) {
	m := metrics.NewMetrics()
	m.Requests.WithLabelValues("200", "get").Inc()
	s := NewMetricsServer("127.0.0.1:0", m, nil, log.New(io.Discard))
	s.SetShutdownTimeout(time.Second)

	ln, err := s.Listen()
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	res, err := http.Get(fmt.Sprintf("http://%s/metrics", ln.Addr()))
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(res.Body)
	res.Body.Close()
	if !strings.Contains(string(body), "cachebust_requests_total") {
		t.Errorf("unexpected exposition %q", body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
}
