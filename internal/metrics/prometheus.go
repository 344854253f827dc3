package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector adapts a Collector's atomics into the
// prometheus.Collector interface by reading them directly at scrape
// time, rather than needing a separate sync step.
type PrometheusCollector struct {
	c *Collector

	clientSessions   *prometheus.Desc
	upstreamSessions *prometheus.Desc
	framesIn         *prometheus.Desc
	framesOut        *prometheus.Desc
	bytesIn          *prometheus.Desc
	bytesOut         *prometheus.Desc
	loginsTotal      *prometheus.Desc
	statusProbesOK   *prometheus.Desc
	statusProbesBad  *prometheus.Desc
	errorsByCode     *prometheus.Desc
}

// NewPrometheusCollector builds a collector over c, namespaced as
// namespace_*.
func NewPrometheusCollector(namespace string, c *Collector) *PrometheusCollector {
	return &PrometheusCollector{
		c: c,
		clientSessions: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "client_sessions_active"),
			"Number of currently active client sessions", nil, nil),
		upstreamSessions: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "upstream_sessions_active"),
			"Number of currently active upstream sessions", nil, nil),
		framesIn: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "frames_in_total"),
			"Total inbound frames decoded", nil, nil),
		framesOut: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "frames_out_total"),
			"Total outbound frames encoded", nil, nil),
		bytesIn: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "bytes_in_total"),
			"Total bytes read from sockets", nil, nil),
		bytesOut: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "bytes_out_total"),
			"Total bytes written to sockets", nil, nil),
		loginsTotal: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "logins_total"),
			"Total completed login handoffs to an upstream session", nil, nil),
		statusProbesOK: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "status_probes_ok_total"),
			"Total status probes that completed successfully", nil, nil),
		statusProbesBad: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "status_probes_failed_total"),
			"Total status probes that failed", nil, nil),
		errorsByCode: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "errors_total"),
			"Total errors by AppError code", []string{"code"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (p *PrometheusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- p.clientSessions
	ch <- p.upstreamSessions
	ch <- p.framesIn
	ch <- p.framesOut
	ch <- p.bytesIn
	ch <- p.bytesOut
	ch <- p.loginsTotal
	ch <- p.statusProbesOK
	ch <- p.statusProbesBad
	ch <- p.errorsByCode
}

// Collect implements prometheus.Collector, reading every atomic
// directly so there is no separate sync step to forget.
func (p *PrometheusCollector) Collect(ch chan<- prometheus.Metric) {
	s := p.c.Snapshot()

	ch <- prometheus.MustNewConstMetric(p.clientSessions, prometheus.GaugeValue, float64(s.ClientSessionsActive))
	ch <- prometheus.MustNewConstMetric(p.upstreamSessions, prometheus.GaugeValue, float64(s.UpstreamSessionsActive))
	ch <- prometheus.MustNewConstMetric(p.framesIn, prometheus.CounterValue, float64(s.FramesIn))
	ch <- prometheus.MustNewConstMetric(p.framesOut, prometheus.CounterValue, float64(s.FramesOut))
	ch <- prometheus.MustNewConstMetric(p.bytesIn, prometheus.CounterValue, float64(s.BytesIn))
	ch <- prometheus.MustNewConstMetric(p.bytesOut, prometheus.CounterValue, float64(s.BytesOut))
	ch <- prometheus.MustNewConstMetric(p.loginsTotal, prometheus.CounterValue, float64(s.LoginsTotal))
	ch <- prometheus.MustNewConstMetric(p.statusProbesOK, prometheus.CounterValue, float64(s.StatusProbesOK))
	ch <- prometheus.MustNewConstMetric(p.statusProbesBad, prometheus.CounterValue, float64(s.StatusProbesFailed))

	ch <- prometheus.MustNewConstMetric(p.errorsByCode, prometheus.CounterValue, float64(s.ErrorsProtocol), "protocol")
	ch <- prometheus.MustNewConstMetric(p.errorsByCode, prometheus.CounterValue, float64(s.ErrorsIO), "io")
	ch <- prometheus.MustNewConstMetric(p.errorsByCode, prometheus.CounterValue, float64(s.ErrorsRouting), "routing")
	ch <- prometheus.MustNewConstMetric(p.errorsByCode, prometheus.CounterValue, float64(s.ErrorsCompression), "compression")
}

// MustRegister registers c's prometheus collector with the default
// registry, tolerating a collector that is already registered (useful
// under repeated test setup).
func MustRegister(namespace string, c *Collector) {
	pc := NewPrometheusCollector(namespace, c)
	if err := prometheus.Register(pc); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return
		}
		panic(err)
	}
}
