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

type enrollmentService interface {
	List(ctx context.Context, query dto.ListEnrollmentsQuery) ([]models.EnrollmentDetail, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	Request(ctx context.Context, req dto.CreateEnrollmentRequest) (*models.EnrollmentDetail, error)
	Approve(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	Reject(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	RequestDrop(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	ApproveDrop(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	RejectDrop(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	Reassign(ctx context.Context, id string, req dto.ReassignEnrollmentRequest) (*models.EnrollmentDetail, error)
	AutoAssign(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	Complete(ctx context.Context, id string, req dto.CompleteEnrollmentRequest) (*models.EnrollmentDetail, error)
	Suggest(ctx context.Context, id string) (*models.AssignmentSuggestion, error)
}

// EnrollmentHandler exposes the enrollment lifecycle.
type EnrollmentHandler struct {
	enrollments enrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// List godoc
// @Summary List enrollments
// @Tags Enrollments
// @Produce json
// @Param student_id query string false "Filter by student"
// @Param course_id query string false "Filter by course"
// @Param class_id query string false "Filter by class"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Param sort_by query string false "Sort column"
// @Param sort_order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	var query dto.ListEnrollmentsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	enrollments, pagination, err := h.enrollments.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, pagination)
}

// Get godoc
// @Summary Get enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	enrollment, err := h.enrollments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, enrollment)
}

// Create godoc
// @Summary Request an enrollment
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body dto.CreateEnrollmentRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Create(c *gin.Context) {
	var req dto.CreateEnrollmentRequest
	if !bindJSON(c, &req) {
		return
	}
	enrollment, err := h.enrollments.Request(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// Approve godoc
// @Summary Approve a pending enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments/{id}/approve [post]
func (h *EnrollmentHandler) Approve(c *gin.Context) {
	h.respond(c, h.enrollments.Approve)
}

// Reject godoc
// @Summary Reject a pending enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments/{id}/reject [post]
func (h *EnrollmentHandler) Reject(c *gin.Context) {
	h.respond(c, h.enrollments.Reject)
}

// RequestDrop godoc
// @Summary Request to drop an approved enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments/{id}/drop-request [post]
func (h *EnrollmentHandler) RequestDrop(c *gin.Context) {
	h.respond(c, h.enrollments.RequestDrop)
}

// ApproveDrop godoc
// @Summary Approve a drop request and free the seat
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments/{id}/drop-approve [post]
func (h *EnrollmentHandler) ApproveDrop(c *gin.Context) {
	h.respond(c, h.enrollments.ApproveDrop)
}

// RejectDrop godoc
// @Summary Decline a drop request
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments/{id}/drop-reject [post]
func (h *EnrollmentHandler) RejectDrop(c *gin.Context) {
	h.respond(c, h.enrollments.RejectDrop)
}

// Reassign godoc
// @Summary Move an approved enrollment into a class
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body dto.ReassignEnrollmentRequest true "Target class"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments/{id}/class [put]
func (h *EnrollmentHandler) Reassign(c *gin.Context) {
	var req dto.ReassignEnrollmentRequest
	if !bindJSON(c, &req) {
		return
	}
	enrollment, err := h.enrollments.Reassign(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, enrollment)
}

// AutoAssign godoc
// @Summary Assign the ranker's suggested class
// @Description Responds 422 with the rejected suggestion in error.details when confidence is below the threshold.
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /enrollments/{id}/auto-assign [post]
func (h *EnrollmentHandler) AutoAssign(c *gin.Context) {
	h.respond(c, h.enrollments.AutoAssign)
}

// Complete godoc
// @Summary Complete a seated enrollment
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body dto.CompleteEnrollmentRequest false "Final results"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments/{id}/complete [post]
func (h *EnrollmentHandler) Complete(c *gin.Context) {
	var req dto.CompleteEnrollmentRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	enrollment, err := h.enrollments.Complete(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, enrollment)
}

// Suggestion godoc
// @Summary Preview the class suggestion for an approved enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/suggestion [get]
func (h *EnrollmentHandler) Suggestion(c *gin.Context) {
	suggestion, err := h.enrollments.Suggest(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, suggestion)
}

func (h *EnrollmentHandler) respond(c *gin.Context, op func(ctx context.Context, id string) (*models.EnrollmentDetail, error)) {
	enrollment, err := op(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, enrollment)
}

func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return false
	}
	return true
}
