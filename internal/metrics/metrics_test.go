package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewMetricsIsShared(t *testing.T) {
	first := NewMetrics()
	second := NewMetrics()
	assert.Same(t, first, second)

	before := testutil.ToFloat64(first.Responses.WithLabelValues("taken"))
	second.Responses.WithLabelValues("taken").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(first.Responses.WithLabelValues("taken")))
}
