package service

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceCounters(t *testing.T) {
	m := NewMetricsService()

	m.RecordTransition("PENDING_APPROVAL", "APPROVED")
	m.RecordTransition("PENDING_APPROVAL", "APPROVED")
	m.RecordSeatOperation("reserve", nil)
	m.RecordSeatOperation("reserve", errors.New("full"))
	m.RecordSuggestion("accepted")
	m.RecordScheduleConflict(ConflictDimensionRoom)
	m.ObserveQueueTask("enrollment.approve", nil, 3*time.Millisecond)
	m.SetQueueDepth(4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("PENDING_APPROVAL", "APPROVED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.seatOperations.WithLabelValues("reserve", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.seatOperations.WithLabelValues("reserve", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.suggestions.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.conflicts.WithLabelValues(ConflictDimensionRoom)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.queueTasks.WithLabelValues("enrollment.approve", "ok")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.queueDepth))
}

func TestMetricsServiceHandlerExposesRegistry(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest(http.MethodGet, "/api/v1/enrollments", http.StatusOK, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
	assert.Contains(t, rec.Body.String(), "goroutines_total")
}

func TestMetricsServiceNilIsNoop(t *testing.T) {
	var m *MetricsService
	assert.NotPanics(t, func() {
		m.RecordTransition("a", "b")
		m.RecordSeatOperation("release", nil)
		m.SetQueueDepth(1)
		m.RecordCacheOperation(true, time.Millisecond)
	})
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
