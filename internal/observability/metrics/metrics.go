package metrics

import "github.com/prometheus/client_golang/prometheus"

// IntakeMetrics exposes counters/histograms for the intake conversation flow.
type IntakeMetrics struct {
	inboundTotal         *prometheus.CounterVec
	sessionsEndedTotal   *prometheus.CounterVec
	dialogueLatency      *prometheus.HistogramVec
	transcriptionLatency *prometheus.HistogramVec
	diarizationTimeouts  prometheus.Counter
}

func NewIntakeMetrics(reg prometheus.Registerer) *IntakeMetrics {
	m := &IntakeMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mediswift",
			Subsystem: "intake",
			Name:      "inbound_total",
			Help:      "Total inbound messages by channel and engine outcome",
		}, []string{"channel", "outcome"}),
		sessionsEndedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mediswift",
			Subsystem: "intake",
			Name:      "sessions_ended_total",
			Help:      "Total ended sessions by summarization status",
		}, []string{"status"}),
		dialogueLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mediswift",
			Subsystem: "intake",
			Name:      "dialogue_latency_seconds",
			Help:      "Latency of dialogue service calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		transcriptionLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mediswift",
			Subsystem: "intake",
			Name:      "transcription_latency_seconds",
			Help:      "Latency of audio-to-text resolution",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"mode"}),
		diarizationTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mediswift",
			Subsystem: "intake",
			Name:      "diarization_timeouts_total",
			Help:      "Diarization callbacks that never arrived within the wait window",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.sessionsEndedTotal, m.dialogueLatency, m.transcriptionLatency, m.diarizationTimeouts)
	return m
}

func (m *IntakeMetrics) ObserveInbound(channel, outcome string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(channel, outcome).Inc()
}

func (m *IntakeMetrics) ObserveSessionEnded(status string) {
	if m == nil {
		return
	}
	m.sessionsEndedTotal.WithLabelValues(status).Inc()
}

func (m *IntakeMetrics) ObserveDialogueLatency(op string, seconds float64) {
	if m == nil {
		return
	}
	m.dialogueLatency.WithLabelValues(op).Observe(seconds)
}

func (m *IntakeMetrics) ObserveTranscriptionLatency(mode string, seconds float64) {
	if m == nil {
		return
	}
	m.transcriptionLatency.WithLabelValues(mode).Observe(seconds)
}

func (m *IntakeMetrics) ObserveDiarizationTimeout() {
	if m == nil {
		return
	}
	m.diarizationTimeouts.Inc()
}
