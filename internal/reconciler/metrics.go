package reconciler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "liftme",
		Subsystem: "reconciler",
		Name:      "polls_total",
		Help:      "Active-order polls by result. Skipped means a poll was already in flight.",
	}, []string{"result"})

	phaseTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "liftme",
		Subsystem: "reconciler",
		Name:      "phase_transitions_total",
		Help:      "UI phase transitions by target phase.",
	}, []string{"role", "phase"})

	staleDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "liftme",
		Subsystem: "reconciler",
		Name:      "stale_responses_dropped_total",
		Help:      "Poll responses discarded because local state changed while they were in flight.",
	})

	ratingsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "liftme",
		Subsystem: "reconciler",
		Name:      "ratings_submitted_total",
		Help:      "Successfully submitted order ratings.",
	})
)
