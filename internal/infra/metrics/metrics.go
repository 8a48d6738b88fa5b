package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the engine's collectors. A nil *Metrics is valid and
// records nothing, so tests can leave it out.
type Metrics struct {
	transitions *prometheus.CounterVec
	failures    *prometheus.CounterVec
	movements   *prometheus.CounterVec
	units       *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "material_requests_transitions_total",
			Help: "Committed request state transitions.",
		}, []string{"from", "to"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "material_requests_failures_total",
			Help: "Failed engine operations by error kind.",
		}, []string{"operation", "kind"}),
		movements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stock_movements_total",
			Help: "Stock ledger movements.",
		}, []string{"kind"}),
		units: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stock_units_moved_total",
			Help: "Units moved by the stock ledger.",
		}, []string{"kind"}),
	}
	if reg != nil {
		reg.MustRegister(m.transitions, m.failures, m.movements, m.units)
	}
	return m
}

func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	if from == "" {
		from = "none"
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) Failure(operation, kind string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(operation, kind).Inc()
}

// Movement counts one ledger movement of qty units (always positive).
func (m *Metrics) Movement(kind string, qty int64) {
	if m == nil {
		return
	}
	if qty < 0 {
		qty = -qty
	}
	m.movements.WithLabelValues(kind).Inc()
	m.units.WithLabelValues(kind).Add(float64(qty))
}
