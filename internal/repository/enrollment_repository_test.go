package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-enrollment-engine/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

var enrollmentRowColumns = []string{"id", "student_id", "course_id", "class_id", "status", "registration_date", "approval_date", "drop_request_date", "grade", "attendance_rate", "updated_at"}

func TestEnrollmentRepositoryFindByID(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewEnrollmentRepository(db)
	now := time.Now()

	rows := sqlmock.NewRows(enrollmentRowColumns).
		AddRow("enr-1", "stu-1", "course-1", "class-1", "APPROVED", now, now, nil, nil, 0.0, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments WHERE id = $1")).
		WithArgs("enr-1").
		WillReturnRows(rows)

	enrollment, err := repo.FindByID(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusApproved, enrollment.Status)
	require.NotNil(t, enrollment.ClassID)
	assert.Equal(t, "class-1", *enrollment.ClassID)
	assert.Nil(t, enrollment.Grade)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryFindByIDNotFound(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestEnrollmentRepositoryListAppliesFiltersAndPaging(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewEnrollmentRepository(db)
	now := time.Now()

	columns := append(append([]string{}, enrollmentRowColumns...), "student_name", "course_name", "class_name", "teacher_id", "teacher_name")
	rows := sqlmock.NewRows(columns).
		AddRow("enr-1", "stu-1", "course-1", nil, "PENDING_APPROVAL", now, nil, nil, nil, 0.0, now, "Ana", "Algebra", nil, nil, nil)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.course_id = $1 AND e.status = $2 ORDER BY s.full_name ASC LIMIT 10 OFFSET 10")).
		WithArgs("course-1", models.EnrollmentStatusPendingApproval).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments e WHERE e.course_id = $1 AND e.status = $2")).
		WithArgs("course-1", models.EnrollmentStatusPendingApproval).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	list, total, err := repo.List(context.Background(), models.EnrollmentFilter{
		CourseID:  "course-1",
		Status:    models.EnrollmentStatusPendingApproval,
		Page:      2,
		PageSize:  10,
		SortBy:    "student_name",
		SortOrder: "asc",
	})
	require.NoError(t, err)
	assert.Equal(t, 11, total)
	require.Len(t, list, 1)
	assert.Equal(t, "Ana", list[0].StudentName)
	assert.Nil(t, list[0].ClassName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryExistsOpen(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 AND status = ANY($3)")).
		WithArgs("stu-1", "course-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollments")).
		WithArgs("stu-2", "course-1", sqlmock.AnyArg()).
		WillReturnError(sql.ErrNoRows)

	exists, err := repo.ExistsOpen(context.Background(), "stu-1", "course-1")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsOpen(context.Background(), "stu-2", "course-1")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateDefaults(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec("INSERT INTO enrollments").
		WithArgs(sqlmock.AnyArg(), "stu-1", "course-1", nil, models.EnrollmentStatusPendingApproval, sqlmock.AnyArg(), nil, nil, nil, 0.0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	enrollment := &models.Enrollment{StudentID: "stu-1", CourseID: "course-1"}
	require.NoError(t, repo.Create(context.Background(), enrollment))
	assert.NotEmpty(t, enrollment.ID)
	assert.False(t, enrollment.RegistrationDate.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositorySaveMissingRow(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec("UPDATE enrollments SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Save(context.Background(), &models.Enrollment{ID: "gone", Status: models.EnrollmentStatusApproved})
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestEnrollmentRepositoryListRosterByClass(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"enrollment_id", "student_id", "student_name", "status", "approval_date", "grade", "attendance_rate"}).
		AddRow("enr-1", "stu-1", "Ana", "APPROVED", time.Now(), nil, 92.5).
		AddRow("enr-2", "stu-2", "Budi", "COMPLETED", time.Now(), 88.0, 100.0)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.class_id = $1 AND e.status = ANY($2)")).
		WithArgs("class-1", sqlmock.AnyArg()).
		WillReturnRows(rows)

	roster, err := repo.ListRosterByClass(context.Background(), "class-1")
	require.NoError(t, err)
	require.Len(t, roster, 2)
	require.NotNil(t, roster[1].Grade)
	assert.Equal(t, 88.0, *roster[1].Grade)
	assert.NoError(t, mock.ExpectationsWereMet())
}
