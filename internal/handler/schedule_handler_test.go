package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-enrollment-engine/internal/dto"
	"github.com/noah-isme/sma-enrollment-engine/internal/models"
	appErrors "github.com/noah-isme/sma-enrollment-engine/pkg/errors"
)

type scheduleServiceMock struct {
	session      *models.ScheduleSession
	sessions     []models.ScheduleSession
	availability *dto.AvailabilityResult
	err          error
	lastReq      dto.ScheduleSessionRequest
	lastQuery    dto.AvailabilityQuery
	lastID       string
}

func (m *scheduleServiceMock) ListByClass(ctx context.Context, classID string) ([]models.ScheduleSession, error) {
	m.lastID = classID
	return m.sessions, m.err
}

func (m *scheduleServiceMock) Create(ctx context.Context, req dto.ScheduleSessionRequest) (*models.ScheduleSession, error) {
	m.lastReq = req
	return m.session, m.err
}

func (m *scheduleServiceMock) Update(ctx context.Context, id string, req dto.ScheduleSessionRequest) (*models.ScheduleSession, error) {
	m.lastID = id
	m.lastReq = req
	return m.session, m.err
}

func (m *scheduleServiceMock) Cancel(ctx context.Context, id string) (*models.ScheduleSession, error) {
	m.lastID = id
	return m.session, m.err
}

func (m *scheduleServiceMock) CheckAvailability(ctx context.Context, query dto.AvailabilityQuery) (*dto.AvailabilityResult, error) {
	m.lastQuery = query
	return m.availability, m.err
}

func scheduleRouter(mock *scheduleServiceMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewScheduleHandler(mock)
	r := gin.New()
	r.POST("/schedule-sessions", h.Create)
	r.PUT("/schedule-sessions/:id", h.Update)
	r.POST("/schedule-sessions/:id/cancel", h.Cancel)
	r.GET("/schedule-sessions/availability", h.Availability)
	r.GET("/classes/:id/schedule-sessions", h.ListByClass)
	return r
}

const sessionPayload = `{"classId":"C1","teacherId":"T1","roomId":"R1","date":"2026-03-02","startTime":"09:00","endTime":"10:00"}`

func TestScheduleHandlerCreate(t *testing.T) {
	mock := &scheduleServiceMock{session: &models.ScheduleSession{ID: "S1", Status: models.SessionStatusScheduled}}
	w, env := serve(t, scheduleRouter(mock), http.MethodPost, "/schedule-sessions", sessionPayload)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "R1", mock.lastReq.RoomID)
	assert.Equal(t, "09:00", mock.lastReq.StartTime)
	assert.Contains(t, string(env.Data), `"id":"S1"`)
}

func TestScheduleHandlerConflictCarriesSession(t *testing.T) {
	conflict := &models.ScheduleConflict{SessionID: "S0", RoomID: "R1", StartTime: "09:30", EndTime: "10:30", Dimension: "room"}
	appErr := appErrors.Wrap(&models.ScheduleConflictError{Type: "room", Message: "room already booked", Conflict: *conflict},
		appErrors.ErrScheduleConflict.Code, appErrors.ErrScheduleConflict.Status, "schedule conflict")
	appErr.Details = conflict

	w, _ := serve(t, scheduleRouter(&scheduleServiceMock{err: appErr}), http.MethodPost, "/schedule-sessions", sessionPayload)
	require.Equal(t, http.StatusConflict, w.Code)

	var body struct {
		Error struct {
			Code    string                  `json:"code"`
			Details models.ScheduleConflict `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "SCHEDULE_CONFLICT", body.Error.Code)
	assert.Equal(t, "S0", body.Error.Details.SessionID)
	assert.Equal(t, "room", body.Error.Details.Dimension)
}

func TestScheduleHandlerUpdateAndCancel(t *testing.T) {
	mock := &scheduleServiceMock{session: &models.ScheduleSession{ID: "S1"}}
	r := scheduleRouter(mock)

	w, _ := serve(t, r, http.MethodPut, "/schedule-sessions/S1", sessionPayload)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "S1", mock.lastID)

	w, _ = serve(t, r, http.MethodPost, "/schedule-sessions/S9/cancel", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "S9", mock.lastID)

	w, env := serve(t, r, http.MethodPut, "/schedule-sessions/S1", `[`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, appErrors.ErrValidation.Code, env.Error.Code)
}

func TestScheduleHandlerAvailability(t *testing.T) {
	mock := &scheduleServiceMock{availability: &dto.AvailabilityResult{RoomAvailable: false, TeacherAvailable: true}}
	w, env := serve(t, scheduleRouter(mock), http.MethodGet,
		"/schedule-sessions/availability?room_id=R1&date=2026-03-02&start_time=09:00&end_time=10:00&exclude_session_id=S1", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "R1", mock.lastQuery.RoomID)
	assert.Equal(t, "S1", mock.lastQuery.ExcludeSessionID)
	assert.Contains(t, string(env.Data), `"roomAvailable":false`)
}

func TestScheduleHandlerListByClass(t *testing.T) {
	mock := &scheduleServiceMock{sessions: []models.ScheduleSession{{ID: "S1"}, {ID: "S2"}}}
	w, env := serve(t, scheduleRouter(mock), http.MethodGet, "/classes/C1/schedule-sessions", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "C1", mock.lastID)
	var sessions []models.ScheduleSession
	require.NoError(t, json.Unmarshal(env.Data, &sessions))
	assert.Len(t, sessions, 2)
}
