package metric

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "savekeep"

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Registry holds all application metrics.
type Registry struct {
	registry *prometheus.Registry

	SavesTotal      *prometheus.CounterVec
	SaveDuration    *prometheus.HistogramVec
	LastSaveSuccess *prometheus.GaugeVec
	CapturedRecords prometheus.Gauge

	LoadsTotal *prometheus.CounterVec

	RegistryRebuilds       prometheus.Counter
	RegistryRebuildSeconds prometheus.Histogram
	RegistryEntries        prometheus.Gauge
}

var (
	globalOnce sync.Once
	global     *Registry
)

// Global returns the process-wide registry.
func Global() *Registry {
	globalOnce.Do(func() { global = NewRegistry() })
	return global
}

// Handler serves the process-wide registry.
func Handler() http.Handler {
	return Global().Handler()
}

// NewRegistry creates a registry with Go runtime and process collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Registry{
		registry: reg,
		SavesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saves_total",
			Help:      "Saves attempted, by trigger, backend and result.",
		}, []string{"trigger", "backend", "result"}),
		SaveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "save_duration_seconds",
			Help:      "Time from capture to a completed write.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"trigger"}),
		LastSaveSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_save_success_timestamp_seconds",
			Help:      "Unix time of the last successful save, by trigger.",
		}, []string{"trigger"}),
		CapturedRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "captured_records",
			Help:      "Records in the most recently saved snapshot.",
		}),
		LoadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loads_total",
			Help:      "Loads attempted, by backend and result.",
		}, []string{"backend", "result"}),
		RegistryRebuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "rebuilds_total",
			Help:      "Property registry rebuilds.",
		}),
		RegistryRebuildSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "rebuild_duration_seconds",
			Help:      "Time spent re-deriving the property registry.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		RegistryEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "entries",
			Help:      "Types with durable fields after the last rebuild.",
		}),
	}

	reg.MustRegister(
		r.SavesTotal,
		r.SaveDuration,
		r.LastSaveSuccess,
		r.CapturedRecords,
		r.LoadsTotal,
		r.RegistryRebuilds,
		r.RegistryRebuildSeconds,
		r.RegistryEntries,
	)
	return r
}

// Registerer exposes the underlying registry for components that bring
// their own collectors.
func (r *Registry) Registerer() prometheus.Registerer {
	return r.registry
}

// Gatherer exposes the underlying registry for tests and pushers.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler returns the /metrics handler for this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// ObserveSave records one save attempt.
func (r *Registry) ObserveSave(trigger, backend string, took time.Duration, records int, err error) {
	r.SavesTotal.WithLabelValues(trigger, backend, result(err)).Inc()
	if err != nil {
		return
	}
	r.SaveDuration.WithLabelValues(trigger).Observe(took.Seconds())
	r.LastSaveSuccess.WithLabelValues(trigger).SetToCurrentTime()
	r.CapturedRecords.Set(float64(records))
}

// ObserveLoad records one load attempt.
func (r *Registry) ObserveLoad(backend string, err error) {
	r.LoadsTotal.WithLabelValues(backend, result(err)).Inc()
}

// ObserveRebuild records one property registry rebuild.
func (r *Registry) ObserveRebuild(entries int, took time.Duration) {
	r.RegistryRebuilds.Inc()
	r.RegistryRebuildSeconds.Observe(took.Seconds())
	r.RegistryEntries.Set(float64(entries))
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}
