package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-enrollment-engine/internal/models"
	appErrors "github.com/noah-isme/sma-enrollment-engine/pkg/errors"
)

type rosterStub struct {
	entries []models.ClassRosterEntry
	err     error
}

func (r rosterStub) ListRosterByClass(ctx context.Context, classID string) ([]models.ClassRosterEntry, error) {
	return r.entries, r.err
}

func newRosterFixture(roster rosterStub) *RosterService {
	store := newMemoryStore()
	store.addClass(models.ClassSection{ID: "C1", Name: "Algebra A", CourseID: "course-1", MaxSeats: 3, CurrentSeats: 2})
	return NewRosterService(store.classRepo(), roster, zap.NewNop())
}

func TestRosterServiceExportCSV(t *testing.T) {
	grade := 91.0
	svc := newRosterFixture(rosterStub{entries: []models.ClassRosterEntry{
		{EnrollmentID: "E1", StudentName: "Ani", Status: models.EnrollmentStatusApproved, AttendanceRate: 95},
		{EnrollmentID: "E2", StudentName: "Budi", Status: models.EnrollmentStatusCompleted, Grade: &grade, AttendanceRate: 88.5},
	}})

	doc, err := svc.Export(context.Background(), "C1", "CSV")
	require.NoError(t, err)
	assert.Equal(t, "roster-C1.csv", doc.Filename)
	assert.Contains(t, doc.ContentType, "text/csv")

	reader := csv.NewReader(bytes.NewReader(doc.Body))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(records), 3)
	assert.Equal(t, []string{"#", "Student", "Status", "Approved", "Grade", "Attendance"}, records[0])
	assert.Equal(t, []string{"2", "Budi", "COMPLETED", "", "91.0", "88.5%"}, records[2])
	assert.Contains(t, string(doc.Body), "Seats: 2/3 (1 available)")
}

func TestRosterServiceExportPDF(t *testing.T) {
	svc := newRosterFixture(rosterStub{})

	doc, err := svc.Export(context.Background(), "C1", "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.True(t, bytes.HasPrefix(doc.Body, []byte("%PDF")))
}

func TestRosterServiceExportErrors(t *testing.T) {
	ctx := context.Background()

	_, err := newRosterFixture(rosterStub{}).Export(ctx, "C1", "xlsx")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = newRosterFixture(rosterStub{}).Export(ctx, "missing", "csv")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	_, err = newRosterFixture(rosterStub{err: errors.New("db down")}).Export(ctx, "C1", "csv")
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
}
