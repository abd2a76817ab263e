package notification

import (
	"context"
	"errors"
	"log"

	"gorm.io/gorm"

	"github.com/trash2cash/chatsync/internal/domain"
)

var ErrNotificationNotFound = errors.New("notification not found")

// NotificationRepository handles the user notification bell.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	ListUnread(ctx context.Context, userID uint) ([]domain.Notification, error)
	MarkAllRead(ctx context.Context, userID uint) (int64, error)
	MarkRead(ctx context.Context, userID uint, id int64) error
}

type gormNotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &gormNotificationRepository{db: db}
}

func (r *gormNotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	if n == nil || n.UserID == 0 || n.Message == "" {
		return errors.New("notification needs a user and a message")
	}
	if err := r.db.WithContext(ctx).Create(n).Error; err != nil {
		log.Printf("[NotificationRepository] Database error creating notification for user %d: %v", n.UserID, err)
		return errors.New("database error creating notification")
	}
	return nil
}

// ListUnread returns the user's unread notifications, newest first.
func (r *gormNotificationRepository) ListUnread(ctx context.Context, userID uint) ([]domain.Notification, error) {
	var items []domain.Notification
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_read = ?", userID, false).
		Order("created_at desc, id desc").
		Find(&items).Error
	if err != nil {
		log.Printf("[NotificationRepository] Database error listing notifications for user %d: %v", userID, err)
		return nil, errors.New("database error fetching notifications")
	}
	return items, nil
}

func (r *gormNotificationRepository) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	if result.Error != nil {
		log.Printf("[NotificationRepository] Database error marking notifications read for user %d: %v", userID, result.Error)
		return 0, errors.New("database error marking notifications read")
	}
	return result.RowsAffected, nil
}

// MarkRead marks one of the user's notifications read. Another user's
// notification is reported as not found.
func (r *gormNotificationRepository) MarkRead(ctx context.Context, userID uint, id int64) error {
	var n domain.Notification
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotificationNotFound
	}
	if err != nil {
		log.Printf("[NotificationRepository] Database query error: %v", err)
		return errors.New("database query failed")
	}
	if n.IsRead {
		return nil
	}
	if err := r.db.WithContext(ctx).Model(&n).Update("is_read", true).Error; err != nil {
		log.Printf("[NotificationRepository] Database error marking notification %d read: %v", id, err)
		return errors.New("database error marking notification read")
	}
	return nil
}
