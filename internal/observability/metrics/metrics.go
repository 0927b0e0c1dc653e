package metrics

import "github.com/prometheus/client_golang/prometheus"

// PipelineMetrics exposes counters/histograms for the message pipeline.
// All methods are safe on a nil receiver so callers can skip wiring metrics
// in tests.
type PipelineMetrics struct {
	inboundTotal      *prometheus.CounterVec
	turnsTotal        *prometheus.CounterVec
	escalationsTotal  prometheus.Counter
	deliveryTotal     *prometheus.CounterVec
	generationLatency *prometheus.HistogramVec
}

func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "supportbot",
			Subsystem: "pipeline",
			Name:      "inbound_total",
			Help:      "Total inbound webhook requests",
		}, []string{"channel", "status"}),
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "supportbot",
			Subsystem: "pipeline",
			Name:      "turns_total",
			Help:      "Total completed pipeline turns",
		}, []string{"intent"}),
		escalationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "supportbot",
			Subsystem: "pipeline",
			Name:      "escalations_total",
			Help:      "Total turns that escalated to a human operator",
		}),
		deliveryTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "supportbot",
			Subsystem: "delivery",
			Name:      "outbound_total",
			Help:      "Total outbound delivery attempts",
		}, []string{"channel", "status"}),
		generationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "supportbot",
			Subsystem: "pipeline",
			Name:      "generation_latency_seconds",
			Help:      "Latency of generation calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.turnsTotal, m.escalationsTotal, m.deliveryTotal, m.generationLatency)
	return m
}

func (m *PipelineMetrics) ObserveInbound(channel, status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(channel, status).Inc()
}

func (m *PipelineMetrics) ObserveTurn(intent string, escalated bool) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(intent).Inc()
	if escalated {
		m.escalationsTotal.Inc()
	}
}

func (m *PipelineMetrics) ObserveDelivery(channel, status string) {
	if m == nil {
		return
	}
	m.deliveryTotal.WithLabelValues(channel, status).Inc()
}

func (m *PipelineMetrics) ObserveGenerationLatency(path string, seconds float64) {
	if m == nil {
		return
	}
	m.generationLatency.WithLabelValues(path).Observe(seconds)
}
