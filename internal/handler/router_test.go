package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-enrollment-engine/internal/models"
)

func TestRegisterRoutesMountsUnderPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	enrollments := &enrollmentServiceMock{detail: &models.EnrollmentDetail{Enrollment: models.Enrollment{ID: "E1"}}}
	schedules := &scheduleServiceMock{}

	r := gin.New()
	RegisterRoutes(r.Group("/api/v1"), Handlers{
		Enrollments: NewEnrollmentHandler(enrollments),
		Schedules:   NewScheduleHandler(schedules),
		Classes:     NewClassHandler(&rosterExporterMock{}),
	})

	routes := make(map[string]bool)
	for _, info := range r.Routes() {
		routes[info.Method+" "+info.Path] = true
	}
	for _, want := range []string{
		"POST /api/v1/enrollments",
		"POST /api/v1/enrollments/:id/drop-request",
		"POST /api/v1/enrollments/:id/auto-assign",
		"PUT /api/v1/enrollments/:id/class",
		"GET /api/v1/schedule-sessions/availability",
		"GET /api/v1/classes/:id/roster",
	} {
		assert.True(t, routes[want], want)
	}

	w, _ := serve(t, r, http.MethodPost, "/api/v1/enrollments/E1/reject", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "reject", enrollments.lastOp)
}
