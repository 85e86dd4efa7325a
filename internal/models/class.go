package models

import "time"

// ClassStatus describes the lifecycle of a class section.
type ClassStatus string

// Class section statuses.
const (
	ClassStatusPending   ClassStatus = "PENDING"
	ClassStatusActive    ClassStatus = "ACTIVE"
	ClassStatusCompleted ClassStatus = "COMPLETED"
	ClassStatusCancelled ClassStatus = "CANCELLED"
)

// ClassSection is a concrete offering of a course taught by one teacher with a seat capacity.
type ClassSection struct {
	ID           string      `db:"id" json:"id"`
	CourseID     string      `db:"course_id" json:"course_id"`
	TeacherID    string      `db:"teacher_id" json:"teacher_id"`
	Name         string      `db:"name" json:"name"`
	MaxSeats     int         `db:"max_seats" json:"max_seats"`
	CurrentSeats int         `db:"current_seats" json:"current_seats"`
	StartDate    time.Time   `db:"start_date" json:"start_date"`
	EndDate      time.Time   `db:"end_date" json:"end_date"`
	Status       ClassStatus `db:"status" json:"status"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updated_at"`
}

// AvailableSeats returns the number of free seats, never negative.
func (c ClassSection) AvailableSeats() int {
	if c.CurrentSeats >= c.MaxSeats {
		return 0
	}
	return c.MaxSeats - c.CurrentSeats
}

// HasSeat reports whether one more seat can be reserved.
func (c ClassSection) HasSeat() bool {
	return c.CurrentSeats < c.MaxSeats
}

// Assignable reports whether enrollments may be placed into the class.
func (c ClassSection) Assignable() bool {
	return c.Status == ClassStatusActive || c.Status == ClassStatusPending
}

// ClassRosterEntry is a seated enrollment resolved for roster exports.
type ClassRosterEntry struct {
	EnrollmentID   string           `db:"enrollment_id" json:"enrollment_id"`
	StudentID      string           `db:"student_id" json:"student_id"`
	StudentName    string           `db:"student_name" json:"student_name"`
	Status         EnrollmentStatus `db:"status" json:"status"`
	ApprovalDate   *time.Time       `db:"approval_date" json:"approval_date,omitempty"`
	Grade          *float64         `db:"grade" json:"grade,omitempty"`
	AttendanceRate float64          `db:"attendance_rate" json:"attendance_rate"`
}
