package wsclient

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsSubsystem = "client"

// Metrics holds the prometheus collectors updated by a Client. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	StatusChanges   *prometheus.CounterVec
	FramesReceived  *prometheus.CounterVec
	Sends           *prometheus.CounterVec
	KeepAliveProbes *prometheus.CounterVec
	StaleEvents     prometheus.Counter
	Generation      prometheus.Gauge
}

// NewMetrics creates the client collectors and registers them against reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		StatusChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: metricsSubsystem,
			Name:      "status_changes_total",
			Help:      "Connection status notifications (status=connected/disconnected)",
		}, []string{"status"}),
		FramesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: metricsSubsystem,
			Name:      "frames_received_total",
			Help:      "Inbound frames read by the receive loop (kind=text/binary/unknown)",
		}, []string{"kind"}),
		Sends: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: metricsSubsystem,
			Name:      "sends_total",
			Help:      "Outbound text frames (result=ok/error/dropped)",
		}, []string{"result"}),
		KeepAliveProbes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: metricsSubsystem,
			Name:      "keepalive_probes_total",
			Help:      "Keepalive ping outcomes (result=ok/error)",
		}, []string{"result"}),
		StaleEvents: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: metricsSubsystem,
			Name:      "stale_events_total",
			Help:      "Transport completions discarded because their generation is no longer current",
		}),
		Generation: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: metricsSubsystem,
			Name:      "transport_generation",
			Help:      "Generation of the most recently opened transport",
		}),
	}
}

func (m *Metrics) statusChanged(s ConnectionStatus) {
	if m == nil {
		return
	}
	m.StatusChanges.WithLabelValues(s.String()).Inc()
}

func (m *Metrics) frameReceived(t MessageType) {
	if m == nil {
		return
	}
	m.FramesReceived.WithLabelValues(t.String()).Inc()
}

func (m *Metrics) sent(result string) {
	if m == nil {
		return
	}
	m.Sends.WithLabelValues(result).Inc()
}

func (m *Metrics) probed(result string) {
	if m == nil {
		return
	}
	m.KeepAliveProbes.WithLabelValues(result).Inc()
}

func (m *Metrics) staleEvent() {
	if m == nil {
		return
	}
	m.StaleEvents.Inc()
}

func (m *Metrics) generation(gen uint64) {
	if m == nil {
		return
	}
	m.Generation.Set(float64(gen))
}
