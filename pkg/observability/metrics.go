package observability

import (
	"context"

	"github.com/aretw0/docket/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for a Document.
type Metrics struct {
	Dispatches       *prometheus.CounterVec
	DispatchDuration *prometheus.HistogramVec
	Mutations        *prometheus.CounterVec
	MutationDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg registers with prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		Dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docket_dispatches_total",
				Help: "Total number of dispatched actions by type and outcome",
			},
			[]string{"action_type", "outcome"},
		),
		DispatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docket_dispatch_duration_seconds",
				Help:    "Duration of action handlers",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"action_type"},
		),
		Mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docket_mutations_total",
				Help: "Total number of state changes by store and outcome",
			},
			[]string{"store", "outcome"},
		),
		MutationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docket_mutation_duration_seconds",
				Help:    "Duration of state change mutators",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"store"},
		),
	}
	for _, c := range []prometheus.Collector{m.Dispatches, m.DispatchDuration, m.Mutations, m.MutationDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnDispatch: func(_ context.Context, e *domain.DispatchEvent) {
			m.Dispatches.WithLabelValues(e.ActionType, dispatchOutcome(e)).Inc()
			if e.Handled {
				m.DispatchDuration.WithLabelValues(e.ActionType).Observe(e.Duration.Seconds())
			}
		},
		OnMutation: func(_ context.Context, e *domain.MutationEvent) {
			m.Mutations.WithLabelValues(e.StoreKey, errOutcome(e.Err)).Inc()
			m.MutationDuration.WithLabelValues(e.StoreKey).Observe(e.Duration.Seconds())
		},
	}
}

func dispatchOutcome(e *domain.DispatchEvent) string {
	if !e.Handled {
		return "unhandled"
	}
	return errOutcome(e.Err)
}

func errOutcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
