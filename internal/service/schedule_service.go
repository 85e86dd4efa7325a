package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-enrollment-engine/internal/dto"
	"github.com/noah-isme/sma-enrollment-engine/internal/models"
	appErrors "github.com/noah-isme/sma-enrollment-engine/pkg/errors"
)

type scheduleRepository interface {
	FindByID(ctx context.Context, id string) (*models.ScheduleSession, error)
	ListByClass(ctx context.Context, classID string) ([]models.ScheduleSession, error)
	Create(ctx context.Context, session *models.ScheduleSession) error
	Update(ctx context.Context, session *models.ScheduleSession) error
}

type conflictFinder interface {
	FindRoomConflict(ctx context.Context, roomID string, date time.Time, start, end, excludeSessionID string) (*models.ScheduleSession, error)
	FindTeacherConflict(ctx context.Context, teacherID string, date time.Time, start, end, excludeSessionID string) (*models.ScheduleSession, error)
}

// ScheduleService writes class sessions after checking for room and teacher double-booking.
type ScheduleService struct {
	repo      scheduleRepository
	conflicts conflictFinder
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewScheduleService instantiates ScheduleService. The validator must have the
// clock and isodate tags registered; nil uses NewValidator.
func NewScheduleService(repo scheduleRepository, conflicts conflictFinder, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ScheduleService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{repo: repo, conflicts: conflicts, metrics: metrics, validator: validate, logger: logger}
}

// ListByClass returns sessions for a class.
func (s *ScheduleService) ListByClass(ctx context.Context, classID string) ([]models.ScheduleSession, error) {
	sessions, err := s.repo.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list class sessions")
	}
	return sessions, nil
}

// Create books a new session.
func (s *ScheduleService) Create(ctx context.Context, req dto.ScheduleSessionRequest) (*models.ScheduleSession, error) {
	session, err := s.build(req)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNoConflict(ctx, session, ""); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}
	return session, nil
}

// Update replaces a session's booking. The session's own slot never conflicts with itself.
func (s *ScheduleService) Update(ctx context.Context, id string, req dto.ScheduleSessionRequest) (*models.ScheduleSession, error) {
	existing, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	switch existing.Status {
	case models.SessionStatusCancelled:
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "cancelled sessions cannot be edited")
	case models.SessionStatusCompleted:
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "completed sessions cannot be edited")
	}
	session, err := s.build(req)
	if err != nil {
		return nil, err
	}
	session.ID = existing.ID
	session.CreatedAt = existing.CreatedAt
	if req.Status == "" {
		session.Status = existing.Status
	}
	if err := s.ensureNoConflict(ctx, session, existing.ID); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update session")
	}
	return session, nil
}

// Cancel frees the session's interval for other bookings.
func (s *ScheduleService) Cancel(ctx context.Context, id string) (*models.ScheduleSession, error) {
	session, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Status == models.SessionStatusCancelled {
		return session, nil
	}
	if session.Status == models.SessionStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "completed sessions cannot be cancelled")
	}
	session.Status = models.SessionStatusCancelled
	if err := s.repo.Update(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel session")
	}
	return session, nil
}

// CheckAvailability probes the requested room and/or teacher without writing anything.
func (s *ScheduleService) CheckAvailability(ctx context.Context, query dto.AvailabilityQuery) (*dto.AvailabilityResult, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability query")
	}
	date, err := time.Parse(isoDateLayout, query.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date")
	}
	if err := checkOrder(query.StartTime, query.EndTime); err != nil {
		return nil, err
	}

	result := &dto.AvailabilityResult{RoomAvailable: true, TeacherAvailable: true}
	if query.RoomID != "" {
		hit, err := s.conflicts.FindRoomConflict(ctx, query.RoomID, date, query.StartTime, query.EndTime, query.ExcludeSessionID)
		if err != nil {
			return nil, err
		}
		if hit != nil {
			result.RoomAvailable = false
			result.RoomConflict = describeConflict(*hit, ConflictDimensionRoom)
		}
	}
	if query.TeacherID != "" {
		hit, err := s.conflicts.FindTeacherConflict(ctx, query.TeacherID, date, query.StartTime, query.EndTime, query.ExcludeSessionID)
		if err != nil {
			return nil, err
		}
		if hit != nil {
			result.TeacherAvailable = false
			result.TeacherConflict = describeConflict(*hit, ConflictDimensionTeacher)
		}
	}
	return result, nil
}

func (s *ScheduleService) build(req dto.ScheduleSessionRequest) (*models.ScheduleSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	date, err := time.Parse(isoDateLayout, req.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date")
	}
	if err := checkOrder(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}
	status := models.SessionStatus(req.Status)
	if status == "" {
		status = models.SessionStatusScheduled
	}
	return &models.ScheduleSession{
		ClassID:     req.ClassID,
		TeacherID:   req.TeacherID,
		RoomID:      req.RoomID,
		SessionDate: date,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Status:      status,
	}, nil
}

func (s *ScheduleService) find(ctx context.Context, id string) (*models.ScheduleSession, error) {
	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return session, nil
}

func (s *ScheduleService) ensureNoConflict(ctx context.Context, session *models.ScheduleSession, excludeID string) error {
	room, err := s.conflicts.FindRoomConflict(ctx, session.RoomID, session.SessionDate, session.StartTime, session.EndTime, excludeID)
	if err != nil {
		return err
	}
	if room != nil {
		return s.wrapConflict(ConflictDimensionRoom, "room already booked for this time", *room)
	}
	teacher, err := s.conflicts.FindTeacherConflict(ctx, session.TeacherID, session.SessionDate, session.StartTime, session.EndTime, excludeID)
	if err != nil {
		return err
	}
	if teacher != nil {
		return s.wrapConflict(ConflictDimensionTeacher, "teacher already teaching at this time", *teacher)
	}
	return nil
}

func (s *ScheduleService) wrapConflict(dimension, message string, existing models.ScheduleSession) error {
	s.metrics.RecordScheduleConflict(dimension)
	conflict := describeConflict(existing, dimension)
	domainErr := &models.ScheduleConflictError{Type: dimension, Message: message, Conflict: *conflict}
	appErr := appErrors.Wrap(domainErr, appErrors.ErrScheduleConflict.Code, appErrors.ErrScheduleConflict.Status,
		fmt.Sprintf("schedule conflict: %s (%s-%s)", message, conflict.StartTime, conflict.EndTime))
	appErr.Details = conflict
	return appErr
}

func describeConflict(existing models.ScheduleSession, dimension string) *models.ScheduleConflict {
	return &models.ScheduleConflict{
		SessionID: existing.ID,
		ClassID:   existing.ClassID,
		TeacherID: existing.TeacherID,
		RoomID:    existing.RoomID,
		Date:      existing.SessionDate.Format(isoDateLayout),
		StartTime: trimSeconds(existing.StartTime),
		EndTime:   trimSeconds(existing.EndTime),
		Dimension: dimension,
	}
}

func checkOrder(start, end string) error {
	if _, _, err := parseInterval(start, end); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "end time must be after start time")
	}
	return nil
}
