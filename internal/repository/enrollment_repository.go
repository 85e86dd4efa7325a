package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-enrollment-engine/internal/models"
)

const enrollmentColumns = `id, student_id, course_id, class_id, status, registration_date, approval_date, drop_request_date, grade, attendance_rate, updated_at`

const enrollmentDetailSelect = `SELECT e.id, e.student_id, e.course_id, e.class_id, e.status, e.registration_date, e.approval_date, e.drop_request_date, e.grade, e.attendance_rate, e.updated_at,
        s.full_name AS student_name, co.name AS course_name, c.name AS class_name, c.teacher_id AS teacher_id, t.full_name AS teacher_name`

const enrollmentDetailJoins = `FROM enrollments e
LEFT JOIN users s ON s.id = e.student_id
LEFT JOIN courses co ON co.id = e.course_id
LEFT JOIN class_sections c ON c.id = e.class_id
LEFT JOIN users t ON t.id = c.teacher_id`

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("e.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("e.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"registration_date": "e.registration_date",
		"approval_date":     "e.approval_date",
		"student_name":      "s.full_name",
		"status":            "e.status",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "e.registration_date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("%s\n%s%s ORDER BY %s %s LIMIT %d OFFSET %d", enrollmentDetailSelect, enrollmentDetailJoins, clause, orderBy, order, size, offset)
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM enrollments e%s", clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment with resolved student, course and class info.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	query := enrollmentDetailSelect + "\n" + enrollmentDetailJoins + "\nWHERE e.id = $1"
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ExistsOpen checks whether the student already holds a non-terminal enrollment for the course.
func (r *EnrollmentRepository) ExistsOpen(ctx context.Context, studentID, courseID string) (bool, error) {
	statuses := make([]string, len(models.OpenEnrollmentStatuses))
	for i, status := range models.OpenEnrollmentStatuses {
		statuses[i] = string(status)
	}
	const query = `SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 AND status = ANY($3) LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, courseID, pq.Array(statuses)); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check open enrollment: %w", err)
	}
	return true, nil
}

// Create persists a new enrollment record.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.RegistrationDate.IsZero() {
		enrollment.RegistrationDate = now
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusPendingApproval
	}
	enrollment.UpdatedAt = now
	const query = `INSERT INTO enrollments (id, student_id, course_id, class_id, status, registration_date, approval_date, drop_request_date, grade, attendance_rate, updated_at)
        VALUES (:id, :student_id, :course_id, :class_id, :status, :registration_date, :approval_date, :drop_request_date, :grade, :attendance_rate, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// Save writes back every mutable field of an enrollment.
func (r *EnrollmentRepository) Save(ctx context.Context, enrollment *models.Enrollment) error {
	enrollment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE enrollments SET class_id = :class_id, status = :status, approval_date = :approval_date, drop_request_date = :drop_request_date,
        grade = :grade, attendance_rate = :attendance_rate, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, enrollment)
	if err != nil {
		return fmt.Errorf("save enrollment: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListRosterByClass returns the seated enrollments of a class ordered by student name.
func (r *EnrollmentRepository) ListRosterByClass(ctx context.Context, classID string) ([]models.ClassRosterEntry, error) {
	const query = `SELECT e.id AS enrollment_id, e.student_id, COALESCE(s.full_name, '') AS student_name, e.status, e.approval_date, e.grade, e.attendance_rate
        FROM enrollments e LEFT JOIN users s ON s.id = e.student_id
        WHERE e.class_id = $1 AND e.status = ANY($2) ORDER BY student_name ASC`
	seated := pq.Array([]string{
		string(models.EnrollmentStatusApproved),
		string(models.EnrollmentStatusDropRequested),
		string(models.EnrollmentStatusCompleted),
	})
	var roster []models.ClassRosterEntry
	if err := r.db.SelectContext(ctx, &roster, query, classID, seated); err != nil {
		return nil, fmt.Errorf("list class roster: %w", err)
	}
	return roster, nil
}
