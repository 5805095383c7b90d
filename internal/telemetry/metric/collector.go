package metric

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/savekeep-go/internal/persist/registry"
)

// EntrySource is the part of the property registry the collector reads.
type EntrySource interface {
	Entries() []registry.Entry
}

// Collector reports durable field counts per type at scrape time.
type Collector struct {
	src EntrySource

	fields *prometheus.Desc
	manual *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a collector over src.
func NewCollector(src EntrySource) *Collector {
	return &Collector{
		src: src,
		fields: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "registry", "durable_fields"),
			"Durable fields registered for a type.",
			[]string{"type"}, nil,
		),
		manual: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "registry", "manual_types"),
			"Types excluded from whole-world capture.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.fields
	ch <- c.manual
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	manual := 0
	for _, e := range c.src.Entries() {
		if e.Manual {
			manual++
		}
		ch <- prometheus.MustNewConstMetric(c.fields, prometheus.GaugeValue, float64(len(e.Fields)), e.Type)
	}
	ch <- prometheus.MustNewConstMetric(c.manual, prometheus.GaugeValue, float64(manual))
}
