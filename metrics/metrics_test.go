package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInstrument(t *testing.T) {
	m := NewMetrics()
	handler := m.Instrument(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		if req.URL.Path == "/missing.txt" {
			http.NotFound(rw, req)
			return
		}
		_, _ = rw.Write([]byte("<html>hello</html>"))
	}))

	for _, path := range []string{"/", "/index.html", "/missing.txt"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	tests := []struct {
		code string
		want float64
	}{
		{code: "200", want: 2},
		{code: "404", want: 1},
	}
	for _, test := range tests {
		t.Run(test.code, func(t *testing.T) {
			got := testutil.ToFloat64(m.Requests.WithLabelValues(test.code, "get"))
			if got != test.want {
				t.Errorf("expected %v requests, got %v", test.want, got)
			}
		})
	}

	if got := testutil.ToFloat64(m.RequestsNow); got != 0 {
		t.Errorf("expected no requests in flight, got %v", got)
	}
}

func TestObserveDuration(t *testing.T) {
	m := NewMetrics()
	m.ObserveDuration(20 * time.Millisecond)

	if n := testutil.CollectAndCount(m.RequestDuration); n != 1 {
		t.Errorf("expected one histogram, got %d", n)
	}
}

func TestObserveStopsWithContext(t *testing.T) {
	m := NewMetrics()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Observe(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Observe did not return after cancellation")
	}
}

func TestHandler(t *testing.T) {
	m := NewMetrics()
	m.UpdateMemory()
	m.Requests.WithLabelValues("200", "get").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, err := io.ReadAll(rec.Result().Body)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"cachebust_requests_total", "cachebust_allocated_memory"} {
		if !strings.Contains(string(body), name) {
			t.Errorf("expected %s in the exposition", name)
		}
	}
}
