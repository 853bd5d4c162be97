package metrics

import (
	"fmt"

	"github.com/AdguardTeam/golibs/container"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Ranking is the Prometheus-based implementation of the [ranking.Metrics]
// interface.
type Ranking struct {
	// refreshDuration is a histogram with the duration of a single ranking
	// refresh run.
	refreshDuration prometheus.Histogram

	// refreshStatus is a gauge with the status of the last ranking refresh:
	// 1 on success, 0 on failure.
	refreshStatus prometheus.Gauge
}

// NewRanking registers the ranking refresher metrics in reg and returns a
// properly initialized *Ranking.
func NewRanking(namespace string, reg prometheus.Registerer) (m *Ranking, err error) {
	const (
		refreshDuration = "refresh_duration_seconds"
		refreshStatus   = "refresh_status"
	)

	m = &Ranking{
		refreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:      refreshDuration,
			Subsystem: subsystemRanking,
			Namespace: namespace,
			Help:      "Duration of a single ranking refresh run.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}),
		refreshStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:      refreshStatus,
			Subsystem: subsystemRanking,
			Namespace: namespace,
			Help:      "Status of the last ranking refresh, 1 for success and 0 for failure.",
		}),
	}

	var errs []error
	collectors := container.KeyValues[string, prometheus.Collector]{{
		Key:   refreshDuration,
		Value: m.refreshDuration,
	}, {
		Key:   refreshStatus,
		Value: m.refreshStatus,
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

// ObserveRefresh implements the [ranking.Metrics] interface for *Ranking.
func (m *Ranking) ObserveRefresh(seconds float64, err error) {
	m.refreshDuration.Observe(seconds)
	SetStatusGauge(m.refreshStatus, err)
}
