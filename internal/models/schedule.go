package models

import "time"

// SessionStatus is the state of a scheduled class meeting.
type SessionStatus string

// Schedule session statuses.
const (
	SessionStatusScheduled  SessionStatus = "SCHEDULED"
	SessionStatusInProgress SessionStatus = "IN_PROGRESS"
	SessionStatusCompleted  SessionStatus = "COMPLETED"
	SessionStatusCancelled  SessionStatus = "CANCELLED"
)

// Valid reports whether the status is a known value.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusScheduled, SessionStatusInProgress, SessionStatusCompleted, SessionStatusCancelled:
		return true
	default:
		return false
	}
}

// ScheduleSession is a single meeting of a class in a room on a date.
// StartTime and EndTime are wall-clock "HH:MM" values.
type ScheduleSession struct {
	ID          string        `db:"id" json:"id"`
	ClassID     string        `db:"class_id" json:"class_id"`
	TeacherID   string        `db:"teacher_id" json:"teacher_id"`
	RoomID      string        `db:"room_id" json:"room_id"`
	SessionDate time.Time     `db:"session_date" json:"date"`
	StartTime   string        `db:"start_time" json:"start_time"`
	EndTime     string        `db:"end_time" json:"end_time"`
	Status      SessionStatus `db:"status" json:"status"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

// ScheduleConflict describes an existing session that collides with a requested one.
type ScheduleConflict struct {
	SessionID string `json:"session_id"`
	ClassID   string `json:"class_id"`
	TeacherID string `json:"teacher_id"`
	RoomID    string `json:"room_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Dimension string `json:"dimension"`
}

// ScheduleConflictError is returned when a session would double-book a room or teacher.
type ScheduleConflictError struct {
	Type     string           `json:"type"`
	Message  string           `json:"message"`
	Conflict ScheduleConflict `json:"conflict"`
}

// Error implements the error interface for conflict errors.
func (e *ScheduleConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}
