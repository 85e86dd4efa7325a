package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-enrollment-engine/internal/models"
)

const classColumns = `id, course_id, teacher_id, name, max_seats, current_seats, start_date, end_date, status, updated_at`

// ClassRepository manages persistence for class sections.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a new class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// FindByID returns a class section by ID.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.ClassSection, error) {
	query := `SELECT ` + classColumns + ` FROM class_sections WHERE id = $1`
	var class models.ClassSection
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// ListOpenByCourse returns active sections of a course that still have a free seat.
func (r *ClassRepository) ListOpenByCourse(ctx context.Context, courseID string) ([]models.ClassSection, error) {
	query := `SELECT ` + classColumns + ` FROM class_sections WHERE course_id = $1 AND status = $2 AND current_seats < max_seats ORDER BY start_date ASC`
	var classes []models.ClassSection
	if err := r.db.SelectContext(ctx, &classes, query, courseID, models.ClassStatusActive); err != nil {
		return nil, fmt.Errorf("list open classes: %w", err)
	}
	return classes, nil
}

type teacherLoadRow struct {
	TeacherID string `db:"teacher_id"`
	Load      int    `db:"load"`
}

// TeacherLoads sums seated students across each teacher's active sections.
func (r *ClassRepository) TeacherLoads(ctx context.Context, teacherIDs []string) (map[string]int, error) {
	loads := make(map[string]int, len(teacherIDs))
	if len(teacherIDs) == 0 {
		return loads, nil
	}
	const query = `SELECT teacher_id, COALESCE(SUM(current_seats), 0) AS load FROM class_sections WHERE status = $1 AND teacher_id = ANY($2) GROUP BY teacher_id`
	var rows []teacherLoadRow
	if err := r.db.SelectContext(ctx, &rows, query, models.ClassStatusActive, pq.Array(teacherIDs)); err != nil {
		return nil, fmt.Errorf("teacher loads: %w", err)
	}
	for _, row := range rows {
		loads[row.TeacherID] = row.Load
	}
	return loads, nil
}

// UpdateSeats persists a new seat count. The write is refused by the database
// when it would break 0 <= current_seats <= max_seats.
func (r *ClassRepository) UpdateSeats(ctx context.Context, id string, seats int) error {
	const query = `UPDATE class_sections SET current_seats = $2, updated_at = $3 WHERE id = $1 AND $2 >= 0 AND $2 <= max_seats`
	res, err := r.db.ExecContext(ctx, query, id, seats, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update class seats: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update class seats: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update class seats %s to %d: %w", id, seats, sql.ErrNoRows)
	}
	return nil
}
