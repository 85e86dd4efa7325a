package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-enrollment-engine/internal/models"
)

const sessionColumns = `id, class_id, teacher_id, room_id, session_date, start_time, end_time, status, created_at, updated_at`

// ScheduleRepository provides persistence for schedule sessions.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository creates a new schedule repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// FindByID loads a session by id.
func (r *ScheduleRepository) FindByID(ctx context.Context, id string) (*models.ScheduleSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM schedule_sessions WHERE id = $1`
	var session models.ScheduleSession
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// ListActiveByRoomAndDate returns non-cancelled sessions booked in a room on a date.
func (r *ScheduleRepository) ListActiveByRoomAndDate(ctx context.Context, roomID string, date time.Time) ([]models.ScheduleSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM schedule_sessions WHERE room_id = $1 AND session_date = $2 AND status <> $3 ORDER BY start_time ASC`
	var sessions []models.ScheduleSession
	if err := r.db.SelectContext(ctx, &sessions, query, roomID, dateOnly(date), models.SessionStatusCancelled); err != nil {
		return nil, fmt.Errorf("list room sessions: %w", err)
	}
	return sessions, nil
}

// ListActiveByTeacherAndDate returns non-cancelled sessions taught by a teacher on a date.
func (r *ScheduleRepository) ListActiveByTeacherAndDate(ctx context.Context, teacherID string, date time.Time) ([]models.ScheduleSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM schedule_sessions WHERE teacher_id = $1 AND session_date = $2 AND status <> $3 ORDER BY start_time ASC`
	var sessions []models.ScheduleSession
	if err := r.db.SelectContext(ctx, &sessions, query, teacherID, dateOnly(date), models.SessionStatusCancelled); err != nil {
		return nil, fmt.Errorf("list teacher sessions: %w", err)
	}
	return sessions, nil
}

// ListByClass returns sessions for a class ordered by date and time.
func (r *ScheduleRepository) ListByClass(ctx context.Context, classID string) ([]models.ScheduleSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM schedule_sessions WHERE class_id = $1 ORDER BY session_date ASC, start_time ASC`
	var sessions []models.ScheduleSession
	if err := r.db.SelectContext(ctx, &sessions, query, classID); err != nil {
		return nil, fmt.Errorf("list sessions by class: %w", err)
	}
	return sessions, nil
}

// Create stores a new session record.
func (r *ScheduleRepository) Create(ctx context.Context, session *models.ScheduleSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now
	session.SessionDate = dateOnly(session.SessionDate)

	const query = `INSERT INTO schedule_sessions (id, class_id, teacher_id, room_id, session_date, start_time, end_time, status, created_at, updated_at)
        VALUES (:id, :class_id, :teacher_id, :room_id, :session_date, :start_time, :end_time, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create schedule session: %w", err)
	}
	return nil
}

// Update modifies a session record.
func (r *ScheduleRepository) Update(ctx context.Context, session *models.ScheduleSession) error {
	session.UpdatedAt = time.Now().UTC()
	session.SessionDate = dateOnly(session.SessionDate)
	const query = `UPDATE schedule_sessions SET class_id = :class_id, teacher_id = :teacher_id, room_id = :room_id, session_date = :session_date,
        start_time = :start_time, end_time = :end_time, status = :status, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("update schedule session: %w", err)
	}
	return nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
