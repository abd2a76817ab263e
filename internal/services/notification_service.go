// File: internal/services/notification_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/trash2cash/chatsync/internal/domain"
	"github.com/trash2cash/chatsync/internal/messaging"
	"github.com/trash2cash/chatsync/internal/repository/notification"
)

var ErrNotificationNotFound = errors.New("notification not found")

// NotificationService backs the notification bell endpoints.
type NotificationService struct {
	repo      notification.NotificationRepository
	publisher EventPublisher
	logger    Logger
}

func NewNotificationService(repo notification.NotificationRepository, publisher EventPublisher, logger Logger) *NotificationService {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	return &NotificationService{repo: repo, publisher: publisher, logger: logger}
}

// Unread lists the user's unread notifications, newest first.
func (s *NotificationService) Unread(ctx context.Context, userID uint) ([]domain.Notification, error) {
	items, err := s.repo.ListUnread(ctx, userID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Notification{}
	}
	return items, nil
}

// Notify adds a notification for the user.
func (s *NotificationService) Notify(ctx context.Context, userID uint, text string) (*domain.Notification, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: notification message cannot be empty", ErrInvalidInput)
	}
	n := &domain.Notification{UserID: userID, Message: text}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}
	if s.publisher != nil {
		if err := s.publisher.PublishUserEvent(int64(userID), messaging.UserEvent{Type: messaging.EventNotification}); err != nil {
			s.logger.Warn("failed to publish notification event", "user_id", userID, "error", err)
		}
	}
	return n, nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	n, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.logger.Debug("notifications marked read", "user_id", userID, "count", n)
	return n, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, userID uint, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: notification id must be positive", ErrInvalidInput)
	}
	err := s.repo.MarkRead(ctx, userID, id)
	if errors.Is(err, notification.ErrNotificationNotFound) {
		return ErrNotificationNotFound
	}
	return err
}
