// Package metrics exposes per-session counters in Prometheus form.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "blesensor"

// Metrics holds the session collectors. All methods are safe on a nil receiver.
type Metrics struct {
	connectAttempts *prometheus.CounterVec
	connectFailures *prometheus.CounterVec
	disconnects     *prometheus.CounterVec
	framesDecoded   *prometheus.CounterVec
	decodeFailures  *prometheus.CounterVec
	readFailures    *prometheus.CounterVec
	envelopes       *prometheus.CounterVec
	state           *prometheus.GaugeVec
}

// New creates unregistered collectors.
func New() *Metrics {
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, labels)
	}

	return &Metrics{
		connectAttempts: counter("ble_connect_attempts_total", "Dials issued to a matched peripheral.", "kind"),
		connectFailures: counter("ble_connect_failures_total", "Transport failures before streaming started.", "kind"),
		disconnects:     counter("ble_disconnects_total", "Links lost while streaming.", "kind"),
		framesDecoded:   counter("frames_decoded_total", "Characteristic values decoded into readings.", "kind"),
		decodeFailures:  counter("frame_decode_failures_total", "Characteristic values that failed to decode.", "kind"),
		readFailures:    counter("poll_read_failures_total", "Polling reads that returned an error.", "kind"),
		envelopes:       counter("envelopes_total", "Envelopes published on the result channel.", "kind", "type"),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "Current connection state (0 uninitialized, 1 initializing, 2 connected, 3 disconnected).",
		}, []string{"kind"}),
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) {
	reg.MustRegister(
		m.connectAttempts,
		m.connectFailures,
		m.disconnects,
		m.framesDecoded,
		m.decodeFailures,
		m.readFailures,
		m.envelopes,
		m.state,
	)
}

func (m *Metrics) ConnectAttempt(kind string) {
	if m != nil {
		m.connectAttempts.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) ConnectFailure(kind string) {
	if m != nil {
		m.connectFailures.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) Disconnect(kind string) {
	if m != nil {
		m.disconnects.WithLabelValues(kind).Inc()
	}
}

// Frame records one decoded value; ok is false when the codec rejected it.
func (m *Metrics) Frame(kind string, ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.framesDecoded.WithLabelValues(kind).Inc()
	} else {
		m.decodeFailures.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) ReadFailure(kind string) {
	if m != nil {
		m.readFailures.WithLabelValues(kind).Inc()
	}
}

// Envelope counts a published envelope of the given type (loading, success, error).
func (m *Metrics) Envelope(kind, typ string) {
	if m != nil {
		m.envelopes.WithLabelValues(kind, typ).Inc()
	}
}

func (m *Metrics) State(kind string, state int) {
	if m != nil {
		m.state.WithLabelValues(kind).Set(float64(state))
	}
}
