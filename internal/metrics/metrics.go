// Package metrics provides collection and reporting of proxy metrics
package metrics

import (
	"sync/atomic"
)

// Collector holds all proxy metrics as plain atomics, the way the ambient
// stack's own collector does; Prometheus collectors mirror these values
// rather than replacing them (see prometheus.go).
type Collector struct {
	ClientSessionsActive   atomic.Int64
	UpstreamSessionsActive atomic.Int64

	FramesIn  atomic.Uint64
	FramesOut atomic.Uint64
	BytesIn   atomic.Uint64
	BytesOut  atomic.Uint64

	LoginsTotal        atomic.Uint64
	StatusProbesOK     atomic.Uint64
	StatusProbesFailed atomic.Uint64
	ErrorsProtocol     atomic.Uint64
	ErrorsIO           atomic.Uint64
	ErrorsRouting      atomic.Uint64
	ErrorsCompression  atomic.Uint64
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{}
}

// IncrementClientSessions increments the active client-session count
func (m *Collector) IncrementClientSessions() {
	m.ClientSessionsActive.Add(1)
}

// DecrementClientSessions decrements the active client-session count
func (m *Collector) DecrementClientSessions() {
	m.ClientSessionsActive.Add(-1)
}

// IncrementUpstreamSessions increments the active upstream-session count
func (m *Collector) IncrementUpstreamSessions() {
	m.UpstreamSessionsActive.Add(1)
}

// DecrementUpstreamSessions decrements the active upstream-session count
func (m *Collector) DecrementUpstreamSessions() {
	m.UpstreamSessionsActive.Add(-1)
}

// RecordErrorCode increments the counter matching an AppError's Code.
// Unknown codes are silently ignored so a new error kind never panics
// the hot path.
func (m *Collector) RecordErrorCode(code string) {
	switch code {
	case "protocol":
		m.ErrorsProtocol.Add(1)
	case "io":
		m.ErrorsIO.Add(1)
	case "routing":
		m.ErrorsRouting.Add(1)
	case "compression":
		m.ErrorsCompression.Add(1)
	}
}

// Snapshot returns a point-in-time view of the metrics, suitable for
// the admin /status endpoint.
type Snapshot struct {
	ClientSessionsActive   int64  `json:"client_sessions_active"`
	UpstreamSessionsActive int64  `json:"upstream_sessions_active"`
	FramesIn               uint64 `json:"frames_in"`
	FramesOut              uint64 `json:"frames_out"`
	BytesIn                uint64 `json:"bytes_in"`
	BytesOut               uint64 `json:"bytes_out"`
	LoginsTotal            uint64 `json:"logins_total"`
	StatusProbesOK         uint64 `json:"status_probes_ok"`
	StatusProbesFailed     uint64 `json:"status_probes_failed"`
	ErrorsProtocol         uint64 `json:"errors_protocol"`
	ErrorsIO               uint64 `json:"errors_io"`
	ErrorsRouting          uint64 `json:"errors_routing"`
	ErrorsCompression      uint64 `json:"errors_compression"`
}

// Snapshot takes a consistent-enough point-in-time read of every counter.
func (m *Collector) Snapshot() Snapshot {
	return Snapshot{
		ClientSessionsActive:   m.ClientSessionsActive.Load(),
		UpstreamSessionsActive: m.UpstreamSessionsActive.Load(),
		FramesIn:               m.FramesIn.Load(),
		FramesOut:              m.FramesOut.Load(),
		BytesIn:                m.BytesIn.Load(),
		BytesOut:               m.BytesOut.Load(),
		LoginsTotal:            m.LoginsTotal.Load(),
		StatusProbesOK:         m.StatusProbesOK.Load(),
		StatusProbesFailed:     m.StatusProbesFailed.Load(),
		ErrorsProtocol:         m.ErrorsProtocol.Load(),
		ErrorsIO:               m.ErrorsIO.Load(),
		ErrorsRouting:          m.ErrorsRouting.Load(),
		ErrorsCompression:      m.ErrorsCompression.Load(),
	}
}
