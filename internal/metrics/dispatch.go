package metrics

import (
	"fmt"

	"github.com/AdguardTeam/golibs/container"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Dispatch is the Prometheus-based implementation of the [dispatch.Metrics]
// interface.
type Dispatch struct {
	// outcomes is a counter of dispatch selection outcomes, one per
	// selection branch of spec.md §4.2 step 5, plus the emergency fallback
	// and the favicon short-circuit.
	outcomes *prometheus.CounterVec

	// cacheHits and cacheMisses count lookups against the in-memory
	// fronting cache of spec.md §4.3.
	cacheHits, cacheMisses prometheus.Counter

	// clickFailures counts fire-and-forget click-recording failures.
	clickFailures prometheus.Counter
}

// NewDispatch registers the dispatch engine metrics in reg and returns a
// properly initialized *Dispatch.
func NewDispatch(namespace string, reg prometheus.Registerer) (m *Dispatch, err error) {
	const (
		outcomesTotal      = "outcomes_total"
		cacheLookupsTotal  = "cache_lookups_total"
		clickFailuresTotal = "click_failures_total"
	)

	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      outcomesTotal,
		Subsystem: subsystemDispatch,
		Namespace: namespace,
		Help: "Total number of dispatch outcomes. Label outcome is the " +
			"selection branch that produced the redirect.",
	}, []string{"outcome"})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      cacheLookupsTotal,
		Subsystem: subsystemDispatch,
		Namespace: namespace,
		Help: "Total number of fronting-cache lookups. Label hit is the " +
			"lookup result, either 1 for hit or 0 for miss.",
	}, []string{"hit"})

	m = &Dispatch{
		outcomes:      outcomes,
		cacheHits:     cacheLookups.WithLabelValues("1"),
		cacheMisses:   cacheLookups.WithLabelValues("0"),
		clickFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      clickFailuresTotal,
			Subsystem: subsystemDispatch,
			Namespace: namespace,
			Help:      "Total number of fire-and-forget click-recording failures.",
		}),
	}

	var errs []error
	collectors := container.KeyValues[string, prometheus.Collector]{{
		Key:   outcomesTotal,
		Value: outcomes,
	}, {
		Key:   cacheLookupsTotal,
		Value: cacheLookups,
	}, {
		Key:   clickFailuresTotal,
		Value: m.clickFailures,
	}}

	for _, c := range collectors {
		err = reg.Register(c.Value)
		if err != nil {
			errs = append(errs, fmt.Errorf("registering metrics %q: %w", c.Key, err))
		}
	}

	if err = errors.Join(errs...); err != nil {
		return nil, err
	}

	return m, nil
}

// ObserveOutcome implements the [dispatch.Metrics] interface for *Dispatch.
func (m *Dispatch) ObserveOutcome(outcome string) {
	m.outcomes.WithLabelValues(outcome).Inc()
}

// ObserveCacheResult implements the [dispatch.Metrics] interface for
// *Dispatch.
func (m *Dispatch) ObserveCacheResult(hit bool) {
	if hit {
		m.cacheHits.Inc()

		return
	}

	m.cacheMisses.Inc()
}

// IncClickFailure implements the [dispatch.Metrics] interface for
// *Dispatch.
func (m *Dispatch) IncClickFailure() {
	m.clickFailures.Inc()
}
