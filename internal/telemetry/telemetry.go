// Package telemetry wires the ingestion/aggregation engine to Prometheus
// and to a periodic process resource sampler, per SPEC_FULL.md's domain
// stack section. Nothing in this package is load-bearing for correctness;
// every update happens after the state lock in internal/store is released.
package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/adred-codev/fleetmon/internal/model"
)

// Registry wraps the Prometheus collectors exported by the monitor.
type Registry struct {
	eventsTotal     *prometheus.CounterVec
	alertsTotal     *prometheus.CounterVec
	tokenTotal      prometheus.Gauge
	costTotalUSD    prometheus.Gauge
	sseSubscribers  prometheus.Gauge
	collectorCycle  prometheus.Histogram
	processCPUPct   prometheus.Gauge
	processRSSBytes prometheus.Gauge

	reg *prometheus.Registry
}

// NewRegistry builds and registers all collectors against a fresh
// Prometheus registry (not the global default, so tests can construct
// independent instances).
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	r := &Registry{
		eventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetmon_events_total",
			Help: "Total number of events appended to the pipeline, by status.",
		}, []string{"status"}),
		alertsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetmon_alerts_total",
			Help: "Total number of alerts derived from appended events, by severity.",
		}, []string{"severity"}),
		tokenTotal: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fleetmon_token_total",
			Help: "Cumulative token count across all agents.",
		}),
		costTotalUSD: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fleetmon_cost_total_usd",
			Help: "Cumulative cost total in USD across all agents.",
		}),
		sseSubscribers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fleetmon_sse_subscribers",
			Help: "Number of currently connected SSE subscribers.",
		}),
		collectorCycle: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fleetmon_collector_cycle_seconds",
			Help:    "Wall-clock duration of one collector loop iteration.",
			Buckets: prometheus.DefBuckets,
		}),
		processCPUPct: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fleetmon_process_cpu_percent",
			Help: "Process CPU usage percent, sampled periodically via gopsutil.",
		}),
		processRSSBytes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fleetmon_process_rss_bytes",
			Help: "Process resident set size in bytes, sampled periodically via gopsutil.",
		}),
		reg: reg,
	}
	return r
}

// ObserveEvent implements store.Metrics.
func (r *Registry) ObserveEvent(status model.Status) {
	r.eventsTotal.WithLabelValues(string(status)).Inc()
}

// ObserveAlert implements store.Metrics.
func (r *Registry) ObserveAlert(severity model.Status) {
	r.alertsTotal.WithLabelValues(string(severity)).Inc()
}

// SetTokenTotal implements store.Metrics.
func (r *Registry) SetTokenTotal(total uint64) {
	r.tokenTotal.Set(float64(total))
}

// SetCostTotal implements store.Metrics.
func (r *Registry) SetCostTotal(total float64) {
	r.costTotalUSD.Set(total)
}

// SubscriberConnected/Disconnected implement sse.Metrics.
func (r *Registry) SubscriberConnected()    { r.sseSubscribers.Inc() }
func (r *Registry) SubscriberDisconnected() { r.sseSubscribers.Dec() }

// ObserveCollectorCycle records the duration of one collector loop
// iteration.
func (r *Registry) ObserveCollectorCycle(d time.Duration) {
	r.collectorCycle.Observe(d.Seconds())
}

// Handler returns the Prometheus exposition HTTP handler for /metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// StartProcessSampler launches a goroutine that samples this process's CPU
// and RSS via gopsutil on the given interval until ctx is canceled.
func (r *Registry) StartProcessSampler(ctx context.Context, interval time.Duration) {
	proc, err := process.NewProcess(int32(currentPID()))
	if err != nil {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if pct, err := proc.CPUPercent(); err == nil {
					r.processCPUPct.Set(pct)
				}
				if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
					r.processRSSBytes.Set(float64(mem.RSS))
				}
			}
		}
	}()
}
