package transceiver

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes Prometheus instrumentation for an element (SPEC_FULL
// §4.7, grounded on ent0n29-samantha and skypro1111-tlv-audio-service,
// the two retrieved repos that register prometheus.Counter/Gauge from a
// long-running audio service). A nil *Metrics is always safe to call
// into, so callers that don't want Prometheus never have to special-case
// anything.
type Metrics struct {
	reconnectAttempts prometheus.Counter
	connectionUp      prometheus.Gauge
	queueLength       prometheus.Gauge
	queueDrops        prometheus.Counter
	framesSent        prometheus.Counter
	framesReceived    prometheus.Counter
	eosEmitted        prometheus.Counter
}

// NewMetrics registers the element's instrumentation on reg under the
// "voxstream" namespace and returns a handle the element accepts through
// New's metrics parameter.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		reconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxstream",
			Name:      "reconnect_attempts_total",
			Help:      "Number of reconnect attempts made by the WebSocket worker.",
		}),
		connectionUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voxstream",
			Name:      "connection_up",
			Help:      "1 if the WebSocket connection is currently established, else 0.",
		}),
		queueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voxstream",
			Name:      "receive_queue_length",
			Help:      "Current number of frames buffered in the receive queue.",
		}),
		queueDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxstream",
			Name:      "receive_queue_drops_total",
			Help:      "Number of frames evicted from the receive queue by drop-oldest overflow.",
		}),
		framesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxstream",
			Name:      "frames_sent_total",
			Help:      "Number of outbound binary frames sent over the WebSocket.",
		}),
		framesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxstream",
			Name:      "frames_received_total",
			Help:      "Number of inbound binary frames received over the WebSocket.",
		}),
		eosEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxstream",
			Name:      "eos_emitted_total",
			Help:      "Number of end-of-stream events emitted on the source port.",
		}),
	}
	reg.MustRegister(
		m.reconnectAttempts, m.connectionUp, m.queueLength,
		m.queueDrops, m.framesSent, m.framesReceived, m.eosEmitted,
	)
	return m
}

func (m *Metrics) incReconnectAttempts() {
	if m == nil {
		return
	}
	m.reconnectAttempts.Inc()
}

func (m *Metrics) setConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.connectionUp.Set(1)
	} else {
		m.connectionUp.Set(0)
	}
}

func (m *Metrics) setQueueLength(n int) {
	if m == nil {
		return
	}
	m.queueLength.Set(float64(n))
}

func (m *Metrics) incQueueDrops() {
	if m == nil {
		return
	}
	m.queueDrops.Inc()
}

func (m *Metrics) incFramesSent() {
	if m == nil {
		return
	}
	m.framesSent.Inc()
}

func (m *Metrics) incFramesReceived() {
	if m == nil {
		return
	}
	m.framesReceived.Inc()
}

func (m *Metrics) incEOSEmitted() {
	if m == nil {
		return
	}
	m.eosEmitted.Inc()
}
