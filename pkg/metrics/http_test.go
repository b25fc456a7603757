package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPMetricsLabelsByRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)
	m.Observe("POST", "/api/v1/material-requests/{id}/issue", 200, 500*time.Millisecond)
	m.Observe("GET", "", 404, 10*time.Millisecond)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	sum, err := fetchHistogramSum(mfs, "sitestock_http_request_duration_seconds",
		"method", "POST", "route", "/api/v1/material-requests/{id}/issue", "status", "200")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, sum, 1e-9)

	_, err = findMetric(mfs, "sitestock_http_request_duration_seconds", "route", "unmatched", "status", "404")
	require.NoError(t, err)
}

func TestHTTPMetricsNilIsNoop(t *testing.T) {
	var m *HTTPMetrics
	assert.Nil(t, NewHTTPMetrics(nil))
	assert.NotPanics(t, func() { m.Observe("GET", "/", 200, time.Millisecond) })
}
