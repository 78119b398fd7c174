package supervisor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the supervisor's prometheus instrumentation.
type Metrics struct {
	Crashes     prometheus.Counter
	Restarts    prometheus.Counter
	Transitions *prometheus.CounterVec
	BackendUp   prometheus.Gauge
}

// NewMetrics registers supervisor metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Crashes: factory.NewCounter(prometheus.CounterOpts{
			Name: "warden_backend_crashes_total",
			Help: "Unexpected backend process exits observed by the supervisor.",
		}),
		Restarts: factory.NewCounter(prometheus.CounterOpts{
			Name: "warden_backend_restarts_total",
			Help: "Backend restart attempts after a crash.",
		}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_supervisor_transitions_total",
			Help: "Supervisor state transitions by target state.",
		}, []string{"state"}),
		BackendUp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "warden_backend_up",
			Help: "1 while the supervised backend is in the running state.",
		}),
	}
}

// observeTransition records a transition into the given state.
func (m *Metrics) observeTransition(to State) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(string(to)).Inc()
	if to == StateRunning {
		m.BackendUp.Set(1)
	} else {
		m.BackendUp.Set(0)
	}
	switch to {
	case StateCrashed:
		m.Crashes.Inc()
	case StateRestarting:
		m.Restarts.Inc()
	}
}
