package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-enrollment-engine/internal/models"
	appErrors "github.com/noah-isme/sma-enrollment-engine/pkg/errors"
	"github.com/noah-isme/sma-enrollment-engine/pkg/export"
)

type rosterSource interface {
	ListRosterByClass(ctx context.Context, classID string) ([]models.ClassRosterEntry, error)
}

// RosterDocument is a rendered roster ready for download.
type RosterDocument struct {
	Filename    string
	ContentType string
	Body        []byte
}

// RosterService exports the seated students of a class.
type RosterService struct {
	classes classReader
	roster  rosterSource
	logger  *zap.Logger
}

// NewRosterService constructs RosterService.
func NewRosterService(classes classReader, roster rosterSource, logger *zap.Logger) *RosterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterService{classes: classes, roster: roster, logger: logger}
}

// Export renders the roster of classID as csv or pdf.
func (s *RosterService) Export(ctx context.Context, classID, format string) (*RosterDocument, error) {
	f, err := export.ParseFormat(strings.ToLower(format))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unsupported roster format")
	}
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	entries, err := s.roster.ListRosterByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}

	body, err := export.RendererFor(f).Render(rosterDataset(class, entries))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
	}
	if len(entries) != class.CurrentSeats {
		s.logger.Warn("roster size differs from seat count",
			zap.String("class_id", class.ID), zap.Int("roster", len(entries)), zap.Int("current_seats", class.CurrentSeats))
	}
	return &RosterDocument{
		Filename:    fmt.Sprintf("roster-%s.%s", class.ID, f),
		ContentType: f.ContentType(),
		Body:        body,
	}, nil
}

func rosterDataset(class *models.ClassSection, entries []models.ClassRosterEntry) export.Dataset {
	rows := make([][]string, 0, len(entries))
	for i, e := range entries {
		approved := ""
		if e.ApprovalDate != nil {
			approved = e.ApprovalDate.Format("2006-01-02")
		}
		grade := ""
		if e.Grade != nil {
			grade = strconv.FormatFloat(*e.Grade, 'f', 1, 64)
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			e.StudentName,
			string(e.Status),
			approved,
			grade,
			strconv.FormatFloat(e.AttendanceRate, 'f', 1, 64) + "%",
		})
	}
	return export.Dataset{
		Title:   "Roster " + class.Name,
		Headers: []string{"#", "Student", "Status", "Approved", "Grade", "Attendance"},
		Rows:    rows,
		Summary: []string{
			fmt.Sprintf("Seats: %d/%d (%d available)", class.CurrentSeats, class.MaxSeats, class.AvailableSeats()),
			fmt.Sprintf("Class status: %s", class.Status),
			fmt.Sprintf("Generated: %s", time.Now().UTC().Format(time.RFC3339)),
		},
	}
}
