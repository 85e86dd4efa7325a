package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/sma-enrollment-engine/internal/models"
	appErrors "github.com/noah-isme/sma-enrollment-engine/pkg/errors"
)

// Conflict dimensions.
const (
	ConflictDimensionRoom    = "ROOM"
	ConflictDimensionTeacher = "TEACHER"
)

type sessionLookup interface {
	ListActiveByRoomAndDate(ctx context.Context, roomID string, date time.Time) ([]models.ScheduleSession, error)
	ListActiveByTeacherAndDate(ctx context.Context, teacherID string, date time.Time) ([]models.ScheduleSession, error)
}

// ConflictChecker detects double-booked rooms and teachers. Sessions occupy
// the half-open interval [start, end), so back-to-back sessions do not collide.
type ConflictChecker struct {
	sessions sessionLookup
}

// NewConflictChecker constructs the checker.
func NewConflictChecker(sessions sessionLookup) *ConflictChecker {
	return &ConflictChecker{sessions: sessions}
}

// HasRoomConflict reports whether roomID is booked during [start, end) on date.
func (c *ConflictChecker) HasRoomConflict(ctx context.Context, roomID string, date time.Time, start, end, excludeSessionID string) (bool, error) {
	hit, err := c.FindRoomConflict(ctx, roomID, date, start, end, excludeSessionID)
	return hit != nil, err
}

// HasTeacherConflict reports whether teacherID teaches during [start, end) on date.
func (c *ConflictChecker) HasTeacherConflict(ctx context.Context, teacherID string, date time.Time, start, end, excludeSessionID string) (bool, error) {
	hit, err := c.FindTeacherConflict(ctx, teacherID, date, start, end, excludeSessionID)
	return hit != nil, err
}

// FindRoomConflict returns the first session in roomID overlapping [start, end), or nil.
func (c *ConflictChecker) FindRoomConflict(ctx context.Context, roomID string, date time.Time, start, end, excludeSessionID string) (*models.ScheduleSession, error) {
	sessions, err := c.sessions.ListActiveByRoomAndDate(ctx, roomID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room sessions")
	}
	return firstOverlap(sessions, start, end, excludeSessionID)
}

// FindTeacherConflict returns the first session of teacherID overlapping [start, end), or nil.
func (c *ConflictChecker) FindTeacherConflict(ctx context.Context, teacherID string, date time.Time, start, end, excludeSessionID string) (*models.ScheduleSession, error) {
	sessions, err := c.sessions.ListActiveByTeacherAndDate(ctx, teacherID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher sessions")
	}
	return firstOverlap(sessions, start, end, excludeSessionID)
}

func firstOverlap(sessions []models.ScheduleSession, start, end, excludeSessionID string) (*models.ScheduleSession, error) {
	s1, e1, err := parseInterval(start, end)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session interval")
	}
	for i := range sessions {
		existing := sessions[i]
		if existing.ID == excludeSessionID || existing.Status == models.SessionStatusCancelled {
			continue
		}
		s2, e2, err := parseInterval(trimSeconds(existing.StartTime), trimSeconds(existing.EndTime))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("stored session %s has an invalid interval", existing.ID))
		}
		if Overlaps(s1, e1, s2, e2) {
			return &existing, nil
		}
	}
	return nil, nil
}

// Overlaps reports whether [s1,e1) and [s2,e2) intersect.
func Overlaps(s1, e1, s2, e2 int) bool {
	return max(s1, s2) < min(e1, e2)
}

// ParseClock converts a 24h "HH:MM" value into minutes since midnight.
func ParseClock(value string) (int, error) {
	hh, mm, ok := strings.Cut(value, ":")
	if !ok || len(hh) != 2 || len(mm) != 2 {
		return 0, fmt.Errorf("time %q is not HH:MM", value)
	}
	hours, err := strconv.Atoi(hh)
	if err != nil || hours < 0 || hours > 23 {
		return 0, fmt.Errorf("time %q has invalid hour", value)
	}
	minutes, err := strconv.Atoi(mm)
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("time %q has invalid minute", value)
	}
	return hours*60 + minutes, nil
}

func parseInterval(start, end string) (int, int, error) {
	s, err := ParseClock(start)
	if err != nil {
		return 0, 0, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return 0, 0, err
	}
	if e <= s {
		return 0, 0, fmt.Errorf("end %s must be after start %s", end, start)
	}
	return s, e, nil
}

// trimSeconds drops the ":SS" suffix Postgres adds to TIME columns.
func trimSeconds(value string) string {
	if len(value) == len("15:04:05") {
		return value[:5]
	}
	return value
}
