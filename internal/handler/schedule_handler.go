package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-enrollment-engine/internal/dto"
	"github.com/noah-isme/sma-enrollment-engine/internal/models"
	appErrors "github.com/noah-isme/sma-enrollment-engine/pkg/errors"
	"github.com/noah-isme/sma-enrollment-engine/pkg/response"
)

type scheduleService interface {
	ListByClass(ctx context.Context, classID string) ([]models.ScheduleSession, error)
	Create(ctx context.Context, req dto.ScheduleSessionRequest) (*models.ScheduleSession, error)
	Update(ctx context.Context, id string, req dto.ScheduleSessionRequest) (*models.ScheduleSession, error)
	Cancel(ctx context.Context, id string) (*models.ScheduleSession, error)
	CheckAvailability(ctx context.Context, query dto.AvailabilityQuery) (*dto.AvailabilityResult, error)
}

// ScheduleHandler manages class session bookings.
type ScheduleHandler struct {
	service scheduleService
}

// NewScheduleHandler constructs handler.
func NewScheduleHandler(svc scheduleService) *ScheduleHandler {
	return &ScheduleHandler{service: svc}
}

// Create godoc
// @Summary Book a class session
// @Description Responds 409 SCHEDULE_CONFLICT with the colliding session in error.details.
// @Tags Schedule Sessions
// @Accept json
// @Produce json
// @Param payload body dto.ScheduleSessionRequest true "Session payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /schedule-sessions [post]
func (h *ScheduleHandler) Create(c *gin.Context) {
	var req dto.ScheduleSessionRequest
	if !bindJSON(c, &req) {
		return
	}
	session, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// Update godoc
// @Summary Move or edit a class session
// @Tags Schedule Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body dto.ScheduleSessionRequest true "Session payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /schedule-sessions/{id} [put]
func (h *ScheduleHandler) Update(c *gin.Context) {
	var req dto.ScheduleSessionRequest
	if !bindJSON(c, &req) {
		return
	}
	session, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, session)
}

// Cancel godoc
// @Summary Cancel a class session
// @Tags Schedule Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /schedule-sessions/{id}/cancel [post]
func (h *ScheduleHandler) Cancel(c *gin.Context) {
	session, err := h.service.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, session)
}

// Availability godoc
// @Summary Check room and teacher availability
// @Tags Schedule Sessions
// @Produce json
// @Param room_id query string false "Room"
// @Param teacher_id query string false "Teacher"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Param start_time query string true "Start (HH:MM)"
// @Param end_time query string true "End (HH:MM)"
// @Param exclude_session_id query string false "Session to ignore"
// @Success 200 {object} response.Envelope
// @Router /schedule-sessions/availability [get]
func (h *ScheduleHandler) Availability(c *gin.Context) {
	var query dto.AvailabilityQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	result, err := h.service.CheckAvailability(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// ListByClass godoc
// @Summary List sessions of a class
// @Tags Schedule Sessions
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/schedule-sessions [get]
func (h *ScheduleHandler) ListByClass(c *gin.Context) {
	sessions, err := h.service.ListByClass(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, sessions)
}
