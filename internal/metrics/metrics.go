// Package metrics exposes the figures of the loaded bandwidth model as
// Prometheus gauges.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pcie-bw/pkg/sweep"
)

const namespace = "pciebw"

// Exporter owns a private registry with the model gauges
type Exporter struct {
	registry *prometheus.Registry

	linkRaw     prometheus.Gauge
	linkTLP     prometheus.Gauge
	reference   prometheus.Gauge
	dllOverhead prometheus.Gauge
	throughput  *prometheus.GaugeVec
	reloads     prometheus.Counter
	requests    *prometheus.CounterVec
}

// NewExporter registers the model gauges and the Go runtime collectors
func NewExporter() *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		linkRaw: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "link_raw_gbps",
			Help:      "Raw encoded PCIe link bandwidth in Gb/s",
		}),
		linkTLP: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "link_tlp_gbps",
			Help:      "PCIe bandwidth left for TLP payload at MPS in Gb/s",
		}),
		reference: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "basis_reference_gbps",
			Help:      "Reference bandwidth all series are computed against in Gb/s",
		}),
		dllOverhead: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "link_dll_overhead_ratio",
			Help:      "Fraction of link time used by ACK, flow control and SKIP",
		}),
		throughput: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "throughput_gbps",
			Help:      "Modelled throughput by series and transfer size in Gb/s",
		}, []string{"series", "size"}),
		reloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profile_reloads_total",
			Help:      "Number of times the profile was loaded",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "RPC requests by method and status code",
		}, []string{"method", "code"}),
	}

	e.registry.MustRegister(
		e.linkRaw, e.linkTLP, e.reference, e.dllOverhead,
		e.throughput, e.reloads, e.requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return e
}

// Publish replaces every gauge with the figures of m and rows
func (e *Exporter) Publish(m sweep.Model, rows []sweep.Row) {
	e.linkRaw.Set(m.Link.RawBandwidth().Gbps())
	e.linkTLP.Set(m.Link.TLPBandwidth().Gbps())
	e.reference.Set(m.Basis.Reference().Gbps())
	e.dllOverhead.Set(m.Link.DataLinkOverhead())

	e.throughput.Reset()
	names := seriesLabels()
	for _, row := range rows {
		size := strconv.Itoa(row.Size)
		for i, v := range row.Series() {
			e.throughput.WithLabelValues(names[i], size).Set(v)
		}
	}
	e.reloads.Inc()
}

// ObserveRequest counts one RPC
func (e *Exporter) ObserveRequest(method, code string) {
	e.requests.WithLabelValues(method, code).Inc()
}

// Registry returns the registry backing Handler
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler serves the registry in the Prometheus exposition format
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// seriesLabels are stable label values in Row.Series order
func seriesLabels() []string {
	return []string{"pcie_write", "pcie_read", "pcie_read_write", "ethernet", "simple_nic", "modern_nic_kernel", "modern_nic_pmd"}
}
