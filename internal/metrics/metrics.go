package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tts_sessions_active",
		Help: "Currently active narration sessions",
	})

	SentencesSynthesized = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tts_sentences_synthesized_total",
		Help: "Total sentences synthesized",
	})

	SynthDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tts_synth_duration_seconds",
		Help:    "Per-sentence synthesis latency",
		Buckets: []float64{0.05, 0.1, 0.2, 0.3, 0.5, 0.8, 1.0, 2.0, 5.0},
	})

	PostprocessDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tts_postprocess_duration_seconds",
		Help:    "Per-sentence fade/silence/quantize latency",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.2},
	})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tts_queue_depth",
		Help: "Number of synthesized-but-not-yet-emitted sentences in the prefetch queue",
	})

	RecycleTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tts_recycle_total",
		Help: "Total session-recycle rebuild-and-swap events",
	})

	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tts_errors_total",
		Help: "Error counts by stage and error type",
	}, []string{"stage", "error_type"})
)
