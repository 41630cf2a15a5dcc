package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Request("GET", "ok")
	m.Request("GET", "ok")
	m.Refresh("success")
	m.Drained("success", 2)
	m.Drained("failed", 0)
	m.Pending(5)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.refreshes.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.drained.WithLabelValues("success")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.drained.WithLabelValues("failed")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.pending))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.Request("GET", "ok")
	m.Refresh("failed")
	m.Drained("success", 1)
	m.Pending(1)
}
