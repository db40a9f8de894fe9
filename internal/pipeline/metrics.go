package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seoforge_runs_started_total",
		Help: "Pipeline runs started.",
	})
	runsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seoforge_runs_finished_total",
		Help: "Pipeline runs finished, by terminal status.",
	}, []string{"status"})
	sourceOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seoforge_sources_total",
		Help: "Per-source pipeline outcomes.",
	}, []string{"outcome"})
	providerDegradations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seoforge_summaries_degraded_total",
		Help: "Summaries that fell back to extractive mode.",
	})
)
