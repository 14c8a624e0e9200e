package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewMetricsIsShared(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()
	assert.Same(t, a, b)
}

func TestExchangeCounter(t *testing.T) {
	m := NewMetrics()
	c := m.ExchangeTotal.WithLabelValues("query", "GET", Status(200))
	before := testutil.ToFloat64(c)
	c.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(c))
}

func TestStatus(t *testing.T) {
	assert.Equal(t, "error", Status(0))
	assert.Equal(t, "404", Status(404))
}
