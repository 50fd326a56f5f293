package metrics

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/cpu"
)

const timeObserve = 1 * time.Second

// Metrics holds the collectors describing the served traffic and the process.
type Metrics struct {
	reg *prometheus.Registry

	CPU             prometheus.Gauge
	AllocatedMemory prometheus.Gauge
	RequestsNow     prometheus.Gauge
	Requests        *prometheus.CounterVec
	ResponseSize    *prometheus.HistogramVec
	RequestDuration prometheus.Histogram
}

// NewMetrics creates the collectors and registers them in a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,
		CPU: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cachebust_cpu_usage",
			Help: "CPU usage",
		}),
		AllocatedMemory: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cachebust_allocated_memory",
			Help: "Bytes of allocated heap objects",
		}),
		RequestsNow: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cachebust_requests_in_flight",
			Help: "How many requests are being processed",
		}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cachebust_requests_total",
			Help: "How many requests were served, by status code and method",
		}, []string{"code", "method"}),
		ResponseSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cachebust_response_size_bytes",
			Help:    "Size of the served responses",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8),
		}, []string{}),
		RequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cachebust_request_duration_seconds",
			Help:    "Time spent serving a request",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(
		m.CPU,
		m.AllocatedMemory,
		m.RequestsNow,
		m.Requests,
		m.ResponseSize,
		m.RequestDuration,
	)
	return m
}

// Registry returns the registry holding every collector of m.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// UpdateCPU samples the CPU usage since the previous call.
func (m *Metrics) UpdateCPU() {
	p, err := cpu.Percent(0, false)
	if err == nil && len(p) > 0 {
		m.CPU.Set(p[0])
	}
}

// UpdateMemory samples the allocated heap.
func (m *Metrics) UpdateMemory() {
	ms := runtime.MemStats{}
	runtime.ReadMemStats(&ms)
	m.AllocatedMemory.Set(float64(ms.Alloc))
}

// Observe samples the process gauges every second until ctx is done.
func (m *Metrics) Observe(ctx context.Context) {
	t := time.NewTicker(timeObserve)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.UpdateCPU()
			m.UpdateMemory()
		}
	}
}

// ObserveDuration records the time a request took.
func (m *Metrics) ObserveDuration(d time.Duration) {
	m.RequestDuration.Observe(d.Seconds())
}

// Instrument counts, sizes and times every request served by next.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return promhttp.InstrumentHandlerInFlight(m.RequestsNow,
		promhttp.InstrumentHandlerCounter(m.Requests,
			promhttp.InstrumentHandlerResponseSize(m.ResponseSize, next),
		),
	)
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
