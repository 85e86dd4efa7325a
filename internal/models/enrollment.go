package models

import "time"

// EnrollmentStatus represents the lifecycle of a course enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusPendingApproval EnrollmentStatus = "PENDING_APPROVAL"
	EnrollmentStatusApproved        EnrollmentStatus = "APPROVED"
	EnrollmentStatusDropRequested   EnrollmentStatus = "DROP_REQUESTED"
	EnrollmentStatusRejected        EnrollmentStatus = "REJECTED"
	EnrollmentStatusCompleted       EnrollmentStatus = "COMPLETED"
	EnrollmentStatusDropped         EnrollmentStatus = "DROPPED"
)

// OpenEnrollmentStatuses are the non-terminal statuses; at most one enrollment
// per student and course may be in one of them.
var OpenEnrollmentStatuses = []EnrollmentStatus{
	EnrollmentStatusPendingApproval,
	EnrollmentStatusApproved,
	EnrollmentStatusDropRequested,
}

// Valid reports whether the status is a known value.
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentStatusPendingApproval, EnrollmentStatusApproved, EnrollmentStatusDropRequested,
		EnrollmentStatusRejected, EnrollmentStatusCompleted, EnrollmentStatusDropped:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition is possible.
func (s EnrollmentStatus) Terminal() bool {
	return s == EnrollmentStatusRejected || s == EnrollmentStatusCompleted || s == EnrollmentStatusDropped
}

// Enrollment captures a student's request for a course and, once assigned, the class holding their seat.
type Enrollment struct {
	ID               string           `db:"id" json:"id"`
	StudentID        string           `db:"student_id" json:"student_id"`
	CourseID         string           `db:"course_id" json:"course_id"`
	ClassID          *string          `db:"class_id" json:"class_id"`
	Status           EnrollmentStatus `db:"status" json:"status"`
	RegistrationDate time.Time        `db:"registration_date" json:"registration_date"`
	ApprovalDate     *time.Time       `db:"approval_date" json:"approval_date,omitempty"`
	DropRequestDate  *time.Time       `db:"drop_request_date" json:"drop_request_date,omitempty"`
	Grade            *float64         `db:"grade" json:"grade,omitempty"`
	AttendanceRate   float64          `db:"attendance_rate" json:"attendance_rate"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`
}

// Seated reports whether the enrollment currently occupies a seat in its class.
func (e Enrollment) Seated() bool {
	if e.ClassID == nil {
		return false
	}
	switch e.Status {
	case EnrollmentStatusApproved, EnrollmentStatusDropRequested, EnrollmentStatusCompleted:
		return true
	default:
		return false
	}
}

// AssignedClassID returns the class id or an empty string.
func (e Enrollment) AssignedClassID() string {
	if e.ClassID == nil {
		return ""
	}
	return *e.ClassID
}

// EnrollmentDetail enriches Enrollment with resolved student, course and class info.
type EnrollmentDetail struct {
	Enrollment
	StudentName string  `db:"student_name" json:"student_name"`
	CourseName  string  `db:"course_name" json:"course_name"`
	ClassName   *string `db:"class_name" json:"class_name,omitempty"`
	TeacherID   *string `db:"teacher_id" json:"teacher_id,omitempty"`
	TeacherName *string `db:"teacher_name" json:"teacher_name,omitempty"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	CourseID  string
	ClassID   string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
