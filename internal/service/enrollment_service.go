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
	"github.com/noah-isme/sma-enrollment-engine/pkg/jobs"
)

const (
	notificationKindEnrollment = "Enrollment"
	notifyTimeout              = 5 * time.Second
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	ExistsOpen(ctx context.Context, studentID, courseID string) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	Save(ctx context.Context, enrollment *models.Enrollment) error
}

type classReader interface {
	FindByID(ctx context.Context, id string) (*models.ClassSection, error)
}

type seatLedger interface {
	Reserve(ctx context.Context, classID string) error
	Release(ctx context.Context, classID string) error
	Transfer(ctx context.Context, from *string, to string) error
}

// mutationRunner serializes enrollment writes. The in-process MutationQueue is
// the only implementation; a distributed lock would slot in here.
type mutationRunner interface {
	Submit(ctx context.Context, name string, task jobs.Task) error
}

type enrollmentNotifier interface {
	Notify(ctx context.Context, userID, title, message, kind, relatedID string) error
}

// EnrollmentConfig tunes the lifecycle.
type EnrollmentConfig struct {
	ConfidenceThreshold float64
	MutationTimeout     time.Duration
}

// EnrollmentDeps groups the collaborators of EnrollmentService.
type EnrollmentDeps struct {
	Enrollments enrollmentRepository
	Classes     classReader
	Seats       seatLedger
	Runner      mutationRunner
	Ranker      AssignmentRanker
	Notifier    enrollmentNotifier
	Cache       *CacheService
	Metrics     *MetricsService
	Validator   *validator.Validate
	Logger      *zap.Logger
}

// EnrollmentService drives the enrollment state machine. Every write runs as a
// task on the mutation runner: the task reloads the enrollment, re-checks its
// status, moves seats through the ledger and persists.
type EnrollmentService struct {
	repo      enrollmentRepository
	classes   classReader
	seats     seatLedger
	runner    mutationRunner
	ranker    AssignmentRanker
	notifier  enrollmentNotifier
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       EnrollmentConfig
	now       func() time.Time
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(deps EnrollmentDeps, cfg EnrollmentConfig) *EnrollmentService {
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &EnrollmentService{
		repo:      deps.Enrollments,
		classes:   deps.Classes,
		seats:     deps.Seats,
		runner:    deps.Runner,
		ranker:    deps.Ranker,
		notifier:  deps.Notifier,
		cache:     deps.Cache,
		metrics:   deps.Metrics,
		validator: deps.Validator,
		logger:    deps.Logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, query dto.ListEnrollmentsQuery) ([]models.EnrollmentDetail, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment filter")
	}
	filter := models.EnrollmentFilter{
		StudentID: query.StudentID,
		CourseID:  query.CourseID,
		ClassID:   query.ClassID,
		Status:    models.EnrollmentStatus(query.Status),
		Page:      query.Page,
		PageSize:  query.PageSize,
		SortBy:    query.SortBy,
		SortOrder: query.SortOrder,
	}
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return enrollments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns an enrollment with resolved names.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return detail, nil
}

// Request opens a PENDING_APPROVAL enrollment. A student may hold only one
// open enrollment per course; the check and insert share one queued task.
func (s *EnrollmentService) Request(ctx context.Context, req dto.CreateEnrollmentRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	var created models.Enrollment
	err := s.submit(ctx, "enrollment.request", func(ctx context.Context) error {
		exists, err := s.repo.ExistsOpen(ctx, req.StudentID, req.CourseID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing enrollment")
		}
		if exists {
			return appErrors.Clone(appErrors.ErrConflict, "student already has an open enrollment for this course")
		}
		enrollment := &models.Enrollment{
			StudentID:        req.StudentID,
			CourseID:         req.CourseID,
			Status:           models.EnrollmentStatusPendingApproval,
			RegistrationDate: s.now(),
		}
		if err := s.repo.Create(ctx, enrollment); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
		}
		created = *enrollment
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordTransition("NONE", string(created.Status))
	s.notify(created, "Enrollment requested", "Your enrollment request was received and awaits approval.")
	return s.Get(ctx, created.ID)
}

// Approve accepts a pending enrollment. No class is assigned.
func (s *EnrollmentService) Approve(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	return s.transition(ctx, "approve", id, func(ctx context.Context, e *models.Enrollment) (undoFunc, error) {
		if err := requireStatus(e, "approve", models.EnrollmentStatusPendingApproval); err != nil {
			return nil, err
		}
		now := s.now()
		e.Status = models.EnrollmentStatusApproved
		e.ApprovalDate = &now
		return nil, nil
	}, "Enrollment approved", "Your enrollment was approved. A class will be assigned shortly.")
}

// Reject declines a pending enrollment.
func (s *EnrollmentService) Reject(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	return s.transition(ctx, "reject", id, func(ctx context.Context, e *models.Enrollment) (undoFunc, error) {
		if err := requireStatus(e, "reject", models.EnrollmentStatusPendingApproval); err != nil {
			return nil, err
		}
		e.Status = models.EnrollmentStatusRejected
		return nil, nil
	}, "Enrollment rejected", "Your enrollment request was rejected.")
}

// RequestDrop asks to leave an approved enrollment.
func (s *EnrollmentService) RequestDrop(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	return s.transition(ctx, "request drop for", id, func(ctx context.Context, e *models.Enrollment) (undoFunc, error) {
		if err := requireStatus(e, "request drop for", models.EnrollmentStatusApproved); err != nil {
			return nil, err
		}
		now := s.now()
		e.Status = models.EnrollmentStatusDropRequested
		e.DropRequestDate = &now
		return nil, nil
	}, "Drop requested", "Your request to drop this course is awaiting review.")
}

// ApproveDrop drops the enrollment and frees its seat.
func (s *EnrollmentService) ApproveDrop(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	return s.transition(ctx, "approve drop for", id, func(ctx context.Context, e *models.Enrollment) (undoFunc, error) {
		if err := requireStatus(e, "approve drop for", models.EnrollmentStatusDropRequested); err != nil {
			return nil, err
		}
		var undo undoFunc
		if e.ClassID != nil {
			classID := *e.ClassID
			if err := s.seats.Release(ctx, classID); err != nil {
				return nil, err
			}
			undo = func(ctx context.Context) error { return s.seats.Reserve(ctx, classID) }
		}
		e.Status = models.EnrollmentStatusDropped
		e.ClassID = nil
		e.DropRequestDate = nil
		return undo, nil
	}, "Drop approved", "You have been dropped from the course.")
}

// RejectDrop returns a drop-requested enrollment to APPROVED. The seat is kept.
func (s *EnrollmentService) RejectDrop(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	return s.transition(ctx, "reject drop for", id, func(ctx context.Context, e *models.Enrollment) (undoFunc, error) {
		if err := requireStatus(e, "reject drop for", models.EnrollmentStatusDropRequested); err != nil {
			return nil, err
		}
		e.Status = models.EnrollmentStatusApproved
		e.DropRequestDate = nil
		return nil, nil
	}, "Drop rejected", "Your drop request was declined; your enrollment remains active.")
}

// Reassign moves an approved enrollment into classID, taking a seat there
// before giving up the old one.
func (s *EnrollmentService) Reassign(ctx context.Context, id string, req dto.ReassignEnrollmentRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reassignment payload")
	}
	return s.transition(ctx, "reassign", id, func(ctx context.Context, e *models.Enrollment) (undoFunc, error) {
		return s.assign(ctx, "reassign", e, req.ClassID)
	}, "Class assigned", "You have been placed in a new class.")
}

// AutoAssign asks the ranker for a class and applies it only when the
// suggestion passes the acceptance policy. Otherwise the caller receives
// ASSIGNMENT_POLICY_REJECTED with the suggestion attached.
func (s *EnrollmentService) AutoAssign(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	enrollment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(enrollment, "auto-assign", models.EnrollmentStatusApproved); err != nil {
		return nil, err
	}
	suggestion, err := s.ranker.Suggest(ctx, enrollment)
	if err != nil {
		return nil, err
	}
	if !ShouldUseSuggestion(suggestion, s.cfg.ConfidenceThreshold) {
		outcome := "rejected"
		if suggestion == nil || suggestion.SuggestedClassID == nil {
			outcome = "empty"
		}
		s.metrics.RecordSuggestion(outcome)
		return nil, policyError(suggestion, s.cfg.ConfidenceThreshold)
	}

	target := *suggestion.SuggestedClassID
	detail, err := s.transition(ctx, "auto-assign", id, func(ctx context.Context, e *models.Enrollment) (undoFunc, error) {
		return s.assign(ctx, "auto-assign", e, target)
	}, "Class assigned", "You have been automatically placed in a class.")
	if err != nil {
		s.metrics.RecordSuggestion("failed")
		return nil, err
	}
	s.metrics.RecordSuggestion("accepted")
	return detail, nil
}

// Complete closes a seated enrollment with optional grade and attendance.
func (s *EnrollmentService) Complete(ctx context.Context, id string, req dto.CompleteEnrollmentRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid completion payload")
	}
	return s.transition(ctx, "complete", id, func(ctx context.Context, e *models.Enrollment) (undoFunc, error) {
		if err := requireStatus(e, "complete", models.EnrollmentStatusApproved); err != nil {
			return nil, err
		}
		if e.ClassID == nil {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "cannot complete an enrollment without a class")
		}
		e.Status = models.EnrollmentStatusCompleted
		if req.Grade != nil {
			grade := *req.Grade
			e.Grade = &grade
		}
		if req.AttendanceRate != nil {
			e.AttendanceRate = *req.AttendanceRate
		}
		return nil, nil
	}, "Course completed", "Your enrollment has been marked as completed.")
}

// Suggest previews the ranker's pick for an approved enrollment without applying it.
func (s *EnrollmentService) Suggest(ctx context.Context, id string) (*models.AssignmentSuggestion, error) {
	enrollment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(enrollment, "suggest a class for", models.EnrollmentStatusApproved); err != nil {
		return nil, err
	}
	key := fmt.Sprintf("suggestions:%s:%s", enrollment.CourseID, enrollment.ID)
	var cached models.AssignmentSuggestion
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}
	suggestion, err := s.ranker.Suggest(ctx, enrollment)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, key, suggestion)
	return suggestion, nil
}

// undoFunc compensates ledger changes when persisting the enrollment fails.
type undoFunc func(ctx context.Context) error

type mutation func(ctx context.Context, e *models.Enrollment) (undoFunc, error)

func (s *EnrollmentService) transition(ctx context.Context, op, id string, apply mutation, title, message string) (*models.EnrollmentDetail, error) {
	var from models.EnrollmentStatus
	var updated models.Enrollment
	err := s.submit(ctx, "enrollment."+op, func(ctx context.Context) error {
		enrollment, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		from = enrollment.Status
		undo, err := apply(ctx, enrollment)
		if err != nil {
			return err
		}
		if err := s.repo.Save(ctx, enrollment); err != nil {
			s.compensate(ctx, op, id, undo)
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save enrollment")
		}
		updated = *enrollment
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTransition(string(from), string(updated.Status))
	s.logger.Info("enrollment transitioned",
		zap.String("enrollment_id", id), zap.String("operation", op),
		zap.String("from", string(from)), zap.String("to", string(updated.Status)),
		zap.String("class_id", updated.AssignedClassID()))
	s.notify(updated, title, message)

	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		s.logger.Warn("reload enrollment detail failed", zap.String("enrollment_id", id), zap.Error(err))
		return &models.EnrollmentDetail{Enrollment: updated}, nil
	}
	return detail, nil
}

// assign places e into classID. Runs inside a queued task.
func (s *EnrollmentService) assign(ctx context.Context, op string, e *models.Enrollment, classID string) (undoFunc, error) {
	if err := requireStatus(e, op, models.EnrollmentStatusApproved); err != nil {
		return nil, err
	}
	if e.AssignedClassID() == classID {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "enrollment is already in the target class")
	}
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if class.CourseID != e.CourseID {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "class belongs to a different course")
	}
	if !class.Assignable() {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("class is %s and cannot take enrollments", class.Status))
	}
	if !class.HasSeat() {
		return nil, appErrors.Clone(appErrors.ErrCapacity, fmt.Sprintf("class %s is full (%d/%d)", class.ID, class.CurrentSeats, class.MaxSeats))
	}

	previous := e.ClassID
	if err := s.seats.Transfer(ctx, previous, classID); err != nil {
		return nil, err
	}
	now := s.now()
	e.ClassID = &classID
	e.ApprovalDate = &now

	undo := func(ctx context.Context) error {
		if previous == nil {
			return s.seats.Release(ctx, classID)
		}
		return s.seats.Transfer(ctx, &classID, *previous)
	}
	return undo, nil
}

func (s *EnrollmentService) compensate(ctx context.Context, op, id string, undo undoFunc) {
	if undo == nil {
		return
	}
	if err := undo(ctx); err != nil {
		s.logger.Error("seat compensation failed; class seat counts need reconciliation",
			zap.String("enrollment_id", id), zap.String("operation", op), zap.Error(err))
		return
	}
	s.logger.Warn("seat change rolled back after save failure", zap.String("enrollment_id", id), zap.String("operation", op))
}

// submit runs task on the mutation runner under the configured deadline and
// maps queue failures onto typed errors.
func (s *EnrollmentService) submit(ctx context.Context, name string, task jobs.Task) error {
	if s.cfg.MutationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.MutationTimeout)
		defer cancel()
	}
	err := s.runner.Submit(ctx, name, task)
	if err == nil {
		return nil
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled), errors.Is(err, jobs.ErrTaskSkipped):
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "enrollment update timed out waiting for the mutation queue")
	case errors.Is(err, jobs.ErrQueueStopped):
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "mutation queue is not running")
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "enrollment update failed")
	}
}

func (s *EnrollmentService) load(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

// notify dispatches in the background; failures are logged only.
func (s *EnrollmentService) notify(e models.Enrollment, title, message string) {
	if s.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := s.notifier.Notify(ctx, e.StudentID, title, message, notificationKindEnrollment, e.ID); err != nil {
			s.logger.Warn("enrollment notification failed", zap.String("enrollment_id", e.ID), zap.Error(err))
		}
	}()
}

func requireStatus(e *models.Enrollment, op string, allowed models.EnrollmentStatus) error {
	if e.Status == allowed {
		return nil
	}
	return appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot %s enrollment in status %s", op, e.Status))
}

func policyError(suggestion *models.AssignmentSuggestion, threshold float64) error {
	if suggestion == nil {
		suggestion = &models.AssignmentSuggestion{Reasoning: "ranker returned no suggestion"}
	}
	domainErr := &models.AssignmentPolicyError{Threshold: threshold, Suggestion: *suggestion}
	message := fmt.Sprintf("no confident class suggestion (confidence %.2f < threshold %.2f): %s", suggestion.Confidence, threshold, suggestion.Reasoning)
	if suggestion.SuggestedClassID == nil {
		message = "no suitable class found: " + suggestion.Reasoning
	}
	appErr := appErrors.Wrap(domainErr, appErrors.ErrPolicyRejected.Code, appErrors.ErrPolicyRejected.Status, message)
	appErr.Details = domainErr
	return appErr
}
