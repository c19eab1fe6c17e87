package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Registrations counts attendance registration attempts by method and outcome.
	Registrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "asistencia_registrations_total",
		Help: "Attendance registration attempts by method and outcome.",
	}, []string{"method", "outcome"})

	// FinalizedEvents counts events flipped to finalized by the sweep.
	FinalizedEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "asistencia_finalized_events_total",
		Help: "Events automatically marked finalized.",
	})

	// SweepErrors counts failed finalization sweeps.
	SweepErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "asistencia_sweep_errors_total",
		Help: "Finalization sweep failures (logged and retried next tick).",
	})
)
