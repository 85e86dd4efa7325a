package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-enrollment-engine/internal/models"
	appErrors "github.com/noah-isme/sma-enrollment-engine/pkg/errors"
)

type notificationStore interface {
	Create(ctx context.Context, notification *models.Notification) error
}

type notificationPublisher interface {
	Publish(ctx context.Context, channel string, value interface{}) error
}

// NotificationService stores in-app notifications and pushes them to
// subscribers on the Redis channel notifications:<userId>.
type NotificationService struct {
	store     notificationStore
	publisher notificationPublisher
	enabled   bool
	logger    *zap.Logger
}

// NewNotificationService constructs the service. publisher may be nil.
func NewNotificationService(store notificationStore, publisher notificationPublisher, enabled bool, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{store: store, publisher: publisher, enabled: enabled, logger: logger}
}

// Notify persists a notification for userID and publishes it. A publish
// failure is logged and does not fail the call once the row is stored.
func (s *NotificationService) Notify(ctx context.Context, userID, title, message, kind, relatedID string) error {
	if !s.enabled {
		return nil
	}
	n := &models.Notification{
		UserID:            userID,
		Title:             title,
		Message:           message,
		RelatedEntityKind: kind,
		RelatedEntityID:   relatedID,
	}
	if err := s.store.Create(ctx, n); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store notification")
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, "notifications:"+userID, n); err != nil {
			s.logger.Warn("notification publish failed", zap.String("user_id", userID), zap.String("notification_id", n.ID), zap.Error(err))
		}
	}
	return nil
}
