package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-enrollment-engine/internal/service"
	"github.com/noah-isme/sma-enrollment-engine/pkg/response"
)

type rosterExporter interface {
	Export(ctx context.Context, classID, format string) (*service.RosterDocument, error)
}

// ClassHandler serves class-scoped documents.
type ClassHandler struct {
	roster rosterExporter
}

// NewClassHandler constructs a class handler.
func NewClassHandler(roster rosterExporter) *ClassHandler {
	return &ClassHandler{roster: roster}
}

// Roster godoc
// @Summary Download the roster of a class
// @Tags Classes
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Class ID"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /classes/{id}/roster [get]
func (h *ClassHandler) Roster(c *gin.Context) {
	doc, err := h.roster.Export(c.Request.Context(), c.Param("id"), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, doc.Filename, doc.ContentType, doc.Body)
}
