package dto

// CreateEnrollmentRequest registers a student's request to take a course.
type CreateEnrollmentRequest struct {
	StudentID string `json:"studentId" validate:"required"`
	CourseID  string `json:"courseId" validate:"required"`
}

// ReassignEnrollmentRequest moves an approved enrollment into a class.
type ReassignEnrollmentRequest struct {
	ClassID string `json:"classId" validate:"required"`
}

// CompleteEnrollmentRequest closes an enrollment with its final results.
type CompleteEnrollmentRequest struct {
	Grade          *float64 `json:"grade" validate:"omitempty,gte=0,lte=100"`
	AttendanceRate *float64 `json:"attendanceRate" validate:"omitempty,gte=0,lte=100"`
}

// ListEnrollmentsQuery binds list filters from the query string.
type ListEnrollmentsQuery struct {
	StudentID string `form:"student_id"`
	CourseID  string `form:"course_id"`
	ClassID   string `form:"class_id"`
	Status    string `form:"status" validate:"omitempty,oneof=PENDING_APPROVAL APPROVED DROP_REQUESTED REJECTED COMPLETED DROPPED"`
	Page      int    `form:"page" validate:"omitempty,min=1"`
	PageSize  int    `form:"page_size" validate:"omitempty,min=1,max=100"`
	SortBy    string `form:"sort_by"`
	SortOrder string `form:"sort_order" validate:"omitempty,oneof=asc desc ASC DESC"`
}
