package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_sessions_active",
		Help: "Currently connected client sessions",
	})

	SessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_sessions_total",
		Help: "Total sessions accepted",
	})

	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_runs_total",
		Help: "Pipeline runs by terminal status",
	}, []string{"status"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "relay_stage_duration_seconds",
		Help:    "Per-stage engine latency",
		Buckets: []float64{0.05, 0.1, 0.2, 0.3, 0.5, 0.8, 1.0, 2.0, 5.0, 10.0},
	}, []string{"stage"})

	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_errors_total",
		Help: "Engine error counts by stage",
	}, []string{"stage", "error_type"})

	ProtocolErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_protocol_errors_total",
		Help: "Inbound envelopes rejected by the codec",
	})

	QueueRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_queue_rejected_total",
		Help: "Audio envelopes rejected because the session run queue was full",
	})

	ClipSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "relay_clip_seconds",
		Help:    "Duration of inbound audio clips that probed as valid WAV",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
	})
)
