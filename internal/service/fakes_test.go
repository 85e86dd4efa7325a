package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-enrollment-engine/internal/models"
	"github.com/noah-isme/sma-enrollment-engine/pkg/jobs"
)

// memoryStore backs enrollments and classes for lifecycle tests. The two
// views exist because both repositories expose FindByID.
type memoryStore struct {
	mu          sync.Mutex
	enrollments map[string]models.Enrollment
	classes     map[string]models.ClassSection
	saveErr     error
	seq         int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		enrollments: make(map[string]models.Enrollment),
		classes:     make(map[string]models.ClassSection),
	}
}

func (m *memoryStore) addClass(c models.ClassSection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.Status == "" {
		c.Status = models.ClassStatusActive
	}
	m.classes[c.ID] = c
}

func (m *memoryStore) addEnrollment(e models.Enrollment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enrollments[e.ID] = e
}

func (m *memoryStore) class(id string) models.ClassSection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.classes[id]
}

func (m *memoryStore) enrollment(id string) models.Enrollment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enrollments[id]
}

func (m *memoryStore) failSaves(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveErr = err
}

func (m *memoryStore) enrollmentRepo() *enrollmentView { return &enrollmentView{m} }
func (m *memoryStore) classRepo() *classView           { return &classView{m} }

type enrollmentView struct{ *memoryStore }

func (v *enrollmentView) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []models.EnrollmentDetail
	for _, e := range v.enrollments {
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		out = append(out, models.EnrollmentDetail{Enrollment: e})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (v *enrollmentView) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	e, ok := v.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &e, nil
}

func (v *enrollmentView) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	e, err := v.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.EnrollmentDetail{Enrollment: *e, StudentName: "Student " + e.StudentID}, nil
}

func (v *enrollmentView) ExistsOpen(ctx context.Context, studentID, courseID string) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, e := range v.enrollments {
		if e.StudentID == studentID && e.CourseID == courseID && !e.Status.Terminal() {
			return true, nil
		}
	}
	return false, nil
}

func (v *enrollmentView) Create(ctx context.Context, e *models.Enrollment) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.seq++
	e.ID = fmt.Sprintf("enr-%d", v.seq)
	v.enrollments[e.ID] = *e
	return nil
}

func (v *enrollmentView) Save(ctx context.Context, e *models.Enrollment) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.saveErr != nil {
		return v.saveErr
	}
	if _, ok := v.enrollments[e.ID]; !ok {
		return sql.ErrNoRows
	}
	v.enrollments[e.ID] = *e
	return nil
}

type classView struct{ *memoryStore }

func (v *classView) FindByID(ctx context.Context, id string) (*models.ClassSection, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	c, ok := v.classes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &c, nil
}

// UpdateSeats mirrors the SQL guard: writes outside [0, max] touch no row.
func (v *classView) UpdateSeats(ctx context.Context, id string, seats int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	c, ok := v.classes[id]
	if !ok || seats < 0 || seats > c.MaxSeats {
		return sql.ErrNoRows
	}
	c.CurrentSeats = seats
	v.classes[id] = c
	return nil
}

func (v *classView) ListOpenByCourse(ctx context.Context, courseID string) ([]models.ClassSection, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []models.ClassSection
	for _, c := range v.classes {
		if c.CourseID == courseID && c.Status == models.ClassStatusActive && c.HasSeat() {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (v *classView) TeacherLoads(ctx context.Context, teacherIDs []string) (map[string]int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	loads := make(map[string]int)
	for _, c := range v.classes {
		if c.Status == models.ClassStatusActive {
			loads[c.TeacherID] += c.CurrentSeats
		}
	}
	return loads, nil
}

type stubRanker struct {
	mu         sync.Mutex
	suggestion *models.AssignmentSuggestion
	err        error
	calls      int
}

func (r *stubRanker) Suggest(ctx context.Context, e *models.Enrollment) (*models.AssignmentSuggestion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	if r.suggestion == nil {
		return &models.AssignmentSuggestion{EnrollmentID: e.ID, Reasoning: "no candidates"}, nil
	}
	s := *r.suggestion
	s.EnrollmentID = e.ID
	return &s, nil
}

func suggestionFor(classID string, confidence float64) *models.AssignmentSuggestion {
	return &models.AssignmentSuggestion{
		SuggestedClassID: &classID,
		Confidence:       confidence,
		Reasoning:        fmt.Sprintf("class %s scored %.2f", classID, confidence),
	}
}

type sentNotification struct {
	UserID, Title, Kind, RelatedID string
}

type notifierStub struct {
	mu   sync.Mutex
	sent []sentNotification
	err  error
}

func (n *notifierStub) Notify(ctx context.Context, userID, title, message, kind, relatedID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{UserID: userID, Title: title, Kind: kind, RelatedID: relatedID})
	return n.err
}

func (n *notifierStub) titles() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, s.Title)
	}
	return out
}

func startQueue(t *testing.T) *jobs.MutationQueue {
	t.Helper()
	q := jobs.NewMutationQueue("test", jobs.QueueConfig{BufferSize: 32, Logger: zap.NewNop()})
	q.Start()
	t.Cleanup(q.Stop)
	return q
}

// runInTask executes fn as a queued task so the seat ledger accepts it.
func runInTask(t *testing.T, q *jobs.MutationQueue, fn func(ctx context.Context) error) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return q.Submit(ctx, "test", fn)
}

func strPtr(s string) *string { return &s }

func requireClassSeats(t *testing.T, store *memoryStore, classID string, want int) {
	t.Helper()
	require.Equal(t, want, store.class(classID).CurrentSeats, "seats for %s", classID)
}
