package observability

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveLedgerAppendCounts(t *testing.T) {
	m := NewMetrics()

	m.ObserveLedgerAppend()
	m.ObserveLedgerAppend()

	require.Equal(t, 2.0, testutil.ToFloat64(m.ledgerAppendsTotal))
}

func TestObservePostingSplitsByOutcome(t *testing.T) {
	m := NewMetrics()

	m.ObservePosting("sale", nil)
	m.ObservePosting("sale", nil)
	m.ObservePosting("sale", errors.New("boom"))

	require.Equal(t, 2.0, testutil.ToFloat64(m.postingsTotal.WithLabelValues("sale", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.postingsTotal.WithLabelValues("sale", "error")))
}

func TestNilMetricsObserversAreNoOps(t *testing.T) {
	var m *Metrics

	// Handlers and workers run without a registry in tests.
	m.ObserveLedgerAppend()
	m.ObservePosting("purchase", nil)
	m.ObserveReconcileMismatch()
	require.NotNil(t, m.Handler())
}
