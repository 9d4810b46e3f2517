package timeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reconstructionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kestrel_timeline_reconstructions_total",
		Help: "Number of timeline reconstruction runs.",
	})
	reconstructionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kestrel_timeline_reconstruction_duration_seconds",
		Help:    "Wall time of one reconstruction run, store query included.",
		Buckets: prometheus.DefBuckets,
	})
	patternsDetectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kestrel_timeline_patterns_detected_total",
		Help: "Detected correlation patterns by rule.",
	}, []string{"rule"})
	exportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kestrel_timeline_exports_total",
		Help: "Timeline exports by format.",
	}, []string{"format"})
)
