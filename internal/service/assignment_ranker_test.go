package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-enrollment-engine/internal/models"
)

var rankerToday = time.Date(2026, 8, 3, 10, 0, 0, 0, time.UTC)

func newTestRanker(store *memoryStore, scorer ScoringStrategy) *RuleBasedRanker {
	r := NewRuleBasedRanker(store.classRepo(), scorer, zap.NewNop())
	r.now = func() time.Time { return rankerToday }
	return r
}

func TestWeightedScorer(t *testing.T) {
	scorer := DefaultWeightedScorer()

	perfect := scorer.Score(CandidateFeatures{Headroom: 1, TeacherLoad: 0, DaysToStart: 0}, ScoreContext{})
	assert.InDelta(t, 1.0, perfect, 1e-9)

	mixed := scorer.Score(CandidateFeatures{Headroom: 0.5, TeacherLoad: 40, DaysToStart: 45}, ScoreContext{MaxTeacherLoad: 40})
	assert.InDelta(t, 0.35, mixed, 1e-9)

	far := scorer.Score(CandidateFeatures{Headroom: 0, TeacherLoad: 10, DaysToStart: -400}, ScoreContext{MaxTeacherLoad: 10})
	assert.InDelta(t, 0.0, far, 1e-9)
}

func TestWeightedScorerFallsBackOnInvalidWeights(t *testing.T) {
	scorer := WeightedScorer{}
	score := scorer.Score(CandidateFeatures{Headroom: 1}, ScoreContext{})
	assert.Greater(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
}

func TestRuleBasedRankerNoCandidates(t *testing.T) {
	store := newMemoryStore()
	store.addClass(models.ClassSection{ID: "c-full", CourseID: "course-1", TeacherID: "t1", MaxSeats: 1, CurrentSeats: 1})
	store.addClass(models.ClassSection{ID: "c-cancelled", CourseID: "course-1", TeacherID: "t1", MaxSeats: 5, Status: models.ClassStatusCancelled})

	s, err := newTestRanker(store, nil).Suggest(context.Background(), &models.Enrollment{ID: "e1", CourseID: "course-1"})
	require.NoError(t, err)
	assert.Nil(t, s.SuggestedClassID)
	assert.Zero(t, s.Confidence)
	assert.Contains(t, s.Reasoning, "course-1")
	assert.False(t, ShouldUseSuggestion(s, 0))
}

func TestRuleBasedRankerPrefersHeadroomAndLightTeacher(t *testing.T) {
	store := newMemoryStore()
	start := rankerToday.AddDate(0, 0, 7)
	store.addClass(models.ClassSection{ID: "c-busy", Name: "Busy", CourseID: "course-1", TeacherID: "t-busy", MaxSeats: 30, CurrentSeats: 27, StartDate: start})
	store.addClass(models.ClassSection{ID: "c-roomy", Name: "Roomy", CourseID: "course-1", TeacherID: "t-light", MaxSeats: 30, CurrentSeats: 3, StartDate: start})
	store.addClass(models.ClassSection{ID: "c-other", Name: "Other course", CourseID: "course-2", TeacherID: "t-light", MaxSeats: 30, StartDate: start})

	s, err := newTestRanker(store, nil).Suggest(context.Background(), &models.Enrollment{ID: "e1", CourseID: "course-1", Status: models.EnrollmentStatusApproved})
	require.NoError(t, err)
	require.NotNil(t, s.SuggestedClassID)
	assert.Equal(t, "c-roomy", *s.SuggestedClassID)
	require.Len(t, s.Candidates, 2)
	assert.GreaterOrEqual(t, s.Candidates[0].Score, s.Candidates[1].Score)
	assert.Equal(t, s.Candidates[0].Score, s.Confidence)
	assert.True(t, s.Confidence >= 0 && s.Confidence <= 1)
	assert.Contains(t, s.Reasoning, "Roomy")
	assert.Equal(t, 7, s.Candidates[0].DaysToStart)
}

func TestRuleBasedRankerSkipsCurrentClass(t *testing.T) {
	store := newMemoryStore()
	store.addClass(models.ClassSection{ID: "c-current", CourseID: "course-1", TeacherID: "t1", MaxSeats: 30, CurrentSeats: 1, StartDate: rankerToday})

	s, err := newTestRanker(store, nil).Suggest(context.Background(), &models.Enrollment{ID: "e1", CourseID: "course-1", ClassID: strPtr("c-current")})
	require.NoError(t, err)
	assert.Nil(t, s.SuggestedClassID)
}

type constantScorer float64

func (c constantScorer) Score(CandidateFeatures, ScoreContext) float64 { return float64(c) }

func TestRuleBasedRankerUsesPluggableStrategy(t *testing.T) {
	store := newMemoryStore()
	store.addClass(models.ClassSection{ID: "c-b", CourseID: "course-1", TeacherID: "t1", MaxSeats: 10, CurrentSeats: 5, StartDate: rankerToday})
	store.addClass(models.ClassSection{ID: "c-a", CourseID: "course-1", TeacherID: "t2", MaxSeats: 10, CurrentSeats: 5, StartDate: rankerToday})

	s, err := newTestRanker(store, constantScorer(0.42)).Suggest(context.Background(), &models.Enrollment{ID: "e1", CourseID: "course-1"})
	require.NoError(t, err)
	assert.InDelta(t, 0.42, s.Confidence, 1e-9)
	assert.Equal(t, "c-a", *s.SuggestedClassID, "ties break on class id")
}

func TestShouldUseSuggestion(t *testing.T) {
	assert.True(t, ShouldUseSuggestion(suggestionFor("c1", 0.8), 0.6))
	assert.True(t, ShouldUseSuggestion(suggestionFor("c1", 0.6), 0.6))
	assert.False(t, ShouldUseSuggestion(suggestionFor("c1", 0.8), 0.9))
	assert.False(t, ShouldUseSuggestion(&models.AssignmentSuggestion{Confidence: 1}, 0.1))
	assert.False(t, ShouldUseSuggestion(nil, 0))
}
