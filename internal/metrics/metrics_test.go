package metrics_test

import (
	"testing"

	"github.com/caionorder/redirectd/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	io_prometheus_client "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDispatch(t *testing.T) {
	reg := prometheus.NewRegistry()

	m, err := metrics.NewDispatch("redirectd", reg)
	require.NoError(t, err)
	require.NotNil(t, m)

	// Registering a second time against the same registry must fail: every
	// collector name is already taken.
	_, err = metrics.NewDispatch("redirectd", reg)
	assert.Error(t, err)

	assert.NotPanics(t, func() {
		m.ObserveOutcome("ranked")
		m.ObserveCacheResult(true)
		m.ObserveCacheResult(false)
		m.IncClickFailure()
	})
}

func TestNewRanking(t *testing.T) {
	reg := prometheus.NewRegistry()

	m, err := metrics.NewRanking("redirectd", reg)
	require.NoError(t, err)
	require.NotNil(t, m)

	_, err = metrics.NewRanking("redirectd", reg)
	assert.Error(t, err)

	assert.NotPanics(t, func() {
		m.ObserveRefresh(0.25, nil)
		m.ObserveRefresh(0.5, assert.AnError)
	})
}

func TestNewRedisKV(t *testing.T) {
	reg := prometheus.NewRegistry()

	m, err := metrics.NewRedisKV("redirectd", reg)
	require.NoError(t, err)
	require.NotNil(t, m)

	_, err = metrics.NewRedisKV("redirectd", reg)
	assert.Error(t, err)

	assert.NotPanics(t, func() {
		m.UpdateMetrics(nil, 3, true)
		m.UpdateMetrics(nil, 3, false)
	})
}

func TestSetStatusGauge(t *testing.T) {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_status"})

	metrics.SetStatusGauge(gauge, nil)
	assert.InDelta(t, float64(1), testutilGaugeValue(t, gauge), 0)

	metrics.SetStatusGauge(gauge, assert.AnError)
	assert.InDelta(t, float64(0), testutilGaugeValue(t, gauge), 0)
}

func TestBoolString(t *testing.T) {
	assert.Equal(t, "1", metrics.BoolString(true))
	assert.Equal(t, "0", metrics.BoolString(false))
}

// testutilGaugeValue extracts the current value of a gauge via the
// Prometheus metric-dumping protocol, avoiding a dependency on
// prometheus/client_golang/testutil for a single value read.
func testutilGaugeValue(t *testing.T, gauge prometheus.Gauge) (v float64) {
	t.Helper()

	var m io_prometheus_client.Metric
	require.NoError(t, gauge.Write(&m))

	return m.GetGauge().GetValue()
}
