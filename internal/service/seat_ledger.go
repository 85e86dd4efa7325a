package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-enrollment-engine/internal/models"
	appErrors "github.com/noah-isme/sma-enrollment-engine/pkg/errors"
	"github.com/noah-isme/sma-enrollment-engine/pkg/jobs"
)

// suggestionKeyPattern matches every cached assignment suggestion. Any seat
// change can move headroom or teacher load for some candidate, so all of them go.
const suggestionKeyPattern = "suggestions:*"

type classSeatStore interface {
	FindByID(ctx context.Context, id string) (*models.ClassSection, error)
	UpdateSeats(ctx context.Context, id string, seats int) error
}

// SeatLedger is the only writer of ClassSection.CurrentSeats. Every call must
// come from inside a MutationQueue task.
type SeatLedger struct {
	classes classSeatStore
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
}

// NewSeatLedger constructs the ledger.
func NewSeatLedger(classes classSeatStore, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *SeatLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SeatLedger{classes: classes, cache: cache, metrics: metrics, logger: logger}
}

// Reserve takes one seat in classID, failing with CAPACITY_EXCEEDED when the class is full.
func (l *SeatLedger) Reserve(ctx context.Context, classID string) (err error) {
	defer func() { l.metrics.RecordSeatOperation("reserve", err) }()
	if err := l.guard(ctx, "reserve"); err != nil {
		return err
	}
	class, err := l.load(ctx, classID)
	if err != nil {
		return err
	}
	if !class.HasSeat() {
		return appErrors.Clone(appErrors.ErrCapacity, fmt.Sprintf("class %s is full (%d/%d)", class.ID, class.CurrentSeats, class.MaxSeats))
	}
	return l.write(ctx, class, class.CurrentSeats+1)
}

// Release frees one seat in classID. The count never drops below zero.
func (l *SeatLedger) Release(ctx context.Context, classID string) (err error) {
	defer func() { l.metrics.RecordSeatOperation("release", err) }()
	if err := l.guard(ctx, "release"); err != nil {
		return err
	}
	class, err := l.load(ctx, classID)
	if err != nil {
		return err
	}
	seats := class.CurrentSeats - 1
	if seats < 0 {
		l.logger.Warn("releasing seat from empty class", zap.String("class_id", class.ID))
		seats = 0
	}
	return l.write(ctx, class, seats)
}

// Transfer reserves a seat in to and then releases from. When either step
// fails the seat in to is given back, so nothing changes. A nil from is a
// plain reservation.
func (l *SeatLedger) Transfer(ctx context.Context, from *string, to string) (err error) {
	defer func() { l.metrics.RecordSeatOperation("transfer", err) }()
	if err := l.guard(ctx, "transfer"); err != nil {
		return err
	}
	if from != nil && *from == to {
		return nil
	}
	if err := l.Reserve(ctx, to); err != nil {
		return err
	}
	if from == nil {
		return nil
	}
	if err := l.Release(ctx, *from); err != nil {
		if undoErr := l.Release(ctx, to); undoErr != nil {
			l.logger.Error("seat transfer rollback failed",
				zap.String("from_class_id", *from), zap.String("to_class_id", to), zap.Error(undoErr))
		}
		return err
	}
	return nil
}

func (l *SeatLedger) guard(ctx context.Context, op string) error {
	if jobs.InTask(ctx) {
		return nil
	}
	l.logger.Error("seat ledger called outside mutation queue", zap.String("operation", op))
	return appErrors.Clone(appErrors.ErrInternal, fmt.Sprintf("seat %s must run inside the mutation queue", op))
}

func (l *SeatLedger) load(ctx context.Context, classID string) (*models.ClassSection, error) {
	class, err := l.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return class, nil
}

func (l *SeatLedger) write(ctx context.Context, class *models.ClassSection, seats int) error {
	if err := l.classes.UpdateSeats(ctx, class.ID, seats); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Wrap(err, appErrors.ErrCapacity.Code, appErrors.ErrCapacity.Status,
				fmt.Sprintf("class %s rejected seat count %d", class.ID, seats))
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class seats")
	}
	l.logger.Debug("class seats updated",
		zap.String("class_id", class.ID), zap.Int("from", class.CurrentSeats), zap.Int("to", seats), zap.Int("max", class.MaxSeats))
	_ = l.cache.Invalidate(ctx, suggestionKeyPattern)
	return nil
}
