package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-enrollment-engine/internal/models"
	appErrors "github.com/noah-isme/sma-enrollment-engine/pkg/errors"
)

// AssignmentRanker proposes a class for an approved enrollment.
type AssignmentRanker interface {
	Suggest(ctx context.Context, enrollment *models.Enrollment) (*models.AssignmentSuggestion, error)
}

// CandidateFeatures is the feature vector extracted for one candidate class.
type CandidateFeatures struct {
	Headroom    float64
	TeacherLoad int
	DaysToStart int
}

// ScoreContext carries batch-level facts a strategy may normalise against.
type ScoreContext struct {
	MaxTeacherLoad int
}

// ScoringStrategy maps a candidate to a score in [0,1].
type ScoringStrategy interface {
	Score(features CandidateFeatures, batch ScoreContext) float64
}

// proximityHorizonDays is the distance at which start-date proximity scores zero.
const proximityHorizonDays = 90

// WeightedScorer is a linear blend of seat headroom, inverse teacher load and
// start-date proximity, normalised by the sum of weights.
type WeightedScorer struct {
	HeadroomWeight  float64
	LoadWeight      float64
	ProximityWeight float64
}

// DefaultWeightedScorer returns the stock weighting.
func DefaultWeightedScorer() WeightedScorer {
	return WeightedScorer{HeadroomWeight: 0.5, LoadWeight: 0.3, ProximityWeight: 0.2}
}

// Score implements ScoringStrategy.
func (w WeightedScorer) Score(f CandidateFeatures, batch ScoreContext) float64 {
	total := w.HeadroomWeight + w.LoadWeight + w.ProximityWeight
	if total <= 0 || w.HeadroomWeight < 0 || w.LoadWeight < 0 || w.ProximityWeight < 0 {
		w = DefaultWeightedScorer()
		total = 1
	}

	loadScore := 1.0
	if batch.MaxTeacherLoad > 0 {
		loadScore = 1 - float64(f.TeacherLoad)/float64(batch.MaxTeacherLoad)
	}
	days := f.DaysToStart
	if days < 0 {
		days = -days
	}
	proximity := 1 - math.Min(float64(days), proximityHorizonDays)/proximityHorizonDays

	score := (w.HeadroomWeight*clamp01(f.Headroom) + w.LoadWeight*clamp01(loadScore) + w.ProximityWeight*proximity) / total
	return clamp01(score)
}

type candidateSource interface {
	ListOpenByCourse(ctx context.Context, courseID string) ([]models.ClassSection, error)
	TeacherLoads(ctx context.Context, teacherIDs []string) (map[string]int, error)
}

// RuleBasedRanker scores every open class of the enrollment's course and
// suggests the best one.
type RuleBasedRanker struct {
	classes candidateSource
	scorer  ScoringStrategy
	now     func() time.Time
	logger  *zap.Logger
}

// NewRuleBasedRanker constructs the ranker. A nil scorer uses DefaultWeightedScorer.
func NewRuleBasedRanker(classes candidateSource, scorer ScoringStrategy, logger *zap.Logger) *RuleBasedRanker {
	if scorer == nil {
		scorer = DefaultWeightedScorer()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RuleBasedRanker{classes: classes, scorer: scorer, now: time.Now, logger: logger}
}

// Suggest implements AssignmentRanker. The enrollment's current class is never a candidate.
func (r *RuleBasedRanker) Suggest(ctx context.Context, enrollment *models.Enrollment) (*models.AssignmentSuggestion, error) {
	open, err := r.classes.ListOpenByCourse(ctx, enrollment.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load candidate classes")
	}

	current := enrollment.AssignedClassID()
	candidates := make([]models.ClassSection, 0, len(open))
	teacherSet := make(map[string]struct{})
	for _, class := range open {
		if class.ID == current || class.Status != models.ClassStatusActive || !class.HasSeat() {
			continue
		}
		candidates = append(candidates, class)
		teacherSet[class.TeacherID] = struct{}{}
	}

	suggestion := &models.AssignmentSuggestion{EnrollmentID: enrollment.ID, GeneratedAt: r.now().UTC()}
	if len(candidates) == 0 {
		suggestion.Reasoning = fmt.Sprintf("no active class of course %s has a free seat", enrollment.CourseID)
		return suggestion, nil
	}

	teacherIDs := make([]string, 0, len(teacherSet))
	for id := range teacherSet {
		teacherIDs = append(teacherIDs, id)
	}
	sort.Strings(teacherIDs)
	loads, err := r.classes.TeacherLoads(ctx, teacherIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher loads")
	}

	batch := ScoreContext{}
	for _, load := range loads {
		if load > batch.MaxTeacherLoad {
			batch.MaxTeacherLoad = load
		}
	}

	today := truncateDay(r.now())
	scored := make([]models.CandidateScore, 0, len(candidates))
	for _, class := range candidates {
		features := CandidateFeatures{
			Headroom:    float64(class.MaxSeats-class.CurrentSeats) / float64(class.MaxSeats),
			TeacherLoad: loads[class.TeacherID],
			DaysToStart: int(truncateDay(class.StartDate).Sub(today).Hours() / 24),
		}
		scored = append(scored, models.CandidateScore{
			ClassID:      class.ID,
			ClassName:    class.Name,
			TeacherID:    class.TeacherID,
			Headroom:     features.Headroom,
			TeacherLoad:  features.TeacherLoad,
			DaysToStart:  features.DaysToStart,
			StartDate:    class.StartDate,
			Score:        r.scorer.Score(features, batch),
			SeatsLeft:    class.AvailableSeats(),
			CurrentSeats: class.CurrentSeats,
		})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if scored[i].SeatsLeft != scored[j].SeatsLeft {
			return scored[i].SeatsLeft > scored[j].SeatsLeft
		}
		return scored[i].ClassID < scored[j].ClassID
	})

	best := scored[0]
	suggestion.SuggestedClassID = &best.ClassID
	suggestion.Confidence = best.Score
	suggestion.Candidates = scored
	suggestion.Reasoning = fmt.Sprintf("class %s has %d free seats (%.0f%% headroom), teacher load %d, starts in %d days; best of %d candidates with score %.2f",
		best.ClassName, best.SeatsLeft, best.Headroom*100, best.TeacherLoad, best.DaysToStart, len(scored), best.Score)

	r.logger.Debug("assignment suggestion computed",
		zap.String("enrollment_id", enrollment.ID), zap.String("class_id", best.ClassID),
		zap.Float64("confidence", best.Score), zap.Int("candidates", len(scored)))
	return suggestion, nil
}

// ShouldUseSuggestion is the acceptance policy: a class must be proposed and
// its confidence must reach threshold.
func ShouldUseSuggestion(s *models.AssignmentSuggestion, threshold float64) bool {
	return s != nil && s.SuggestedClassID != nil && s.Confidence >= threshold
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
