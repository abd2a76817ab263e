package message

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/trash2cash/chatsync/internal/domain"
)

type gormMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &gormMessageRepository{db: db}
}

// Create stores a message and loads its sender for the API response.
func (r *gormMessageRepository) Create(ctx context.Context, message *domain.ChatMessage) (*domain.ChatMessage, error) {
	if err := r.validateMessageInput(message); err != nil {
		log.Printf("[MessageRepository] Validation failed: %v", err)
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if err := r.db.WithContext(ctx).Omit("Sender").Create(message).Error; err != nil {
		log.Printf("[MessageRepository] Database error during message creation for room ID %d: %v", message.RoomID, err)
		return nil, errors.New("database error creating message")
	}
	if err := r.db.WithContext(ctx).First(&message.Sender, message.SenderID).Error; err != nil {
		log.Printf("[MessageRepository] Could not load sender %d: %v", message.SenderID, err)
	}

	log.Printf("[MessageRepository] Message created successfully with ID: %d for room: %d", message.ID, message.RoomID)
	return message, nil
}

// FindByRoomID returns the room's messages oldest first.
func (r *gormMessageRepository) FindByRoomID(ctx context.Context, roomID uint) ([]domain.ChatMessage, error) {
	if roomID == 0 {
		return nil, errors.New("invalid room ID")
	}

	var messages []domain.ChatMessage
	err := r.db.WithContext(ctx).
		Preload("Sender").
		Where("room_id = ?", roomID).
		Order("created_at asc, id asc").
		Find(&messages).Error
	if err != nil {
		log.Printf("[MessageRepository] Database error finding messages for room ID %d: %v", roomID, err)
		return nil, errors.New("database error fetching messages")
	}
	return messages, nil
}

func (r *gormMessageRepository) LastByRoomIDs(ctx context.Context, roomIDs []uint) (map[uint]*domain.ChatMessage, error) {
	out := make(map[uint]*domain.ChatMessage, len(roomIDs))
	if len(roomIDs) == 0 {
		return out, nil
	}

	latest := r.db.Model(&domain.ChatMessage{}).
		Select("MAX(id)").
		Where("room_id IN ?", roomIDs).
		Group("room_id")

	var messages []domain.ChatMessage
	err := r.db.WithContext(ctx).
		Preload("Sender").
		Where("id IN (?)", latest).
		Find(&messages).Error
	if err != nil {
		log.Printf("[MessageRepository] Database error loading last messages: %v", err)
		return nil, errors.New("database error fetching last messages")
	}
	for i := range messages {
		out[messages[i].RoomID] = &messages[i]
	}
	return out, nil
}

func (r *gormMessageRepository) MarkRoomRead(ctx context.Context, roomID, readerID uint) (int64, error) {
	if roomID == 0 || readerID == 0 {
		return 0, errors.New("invalid room ID or reader ID")
	}

	result := r.db.WithContext(ctx).
		Model(&domain.ChatMessage{}).
		Where("room_id = ? AND sender_id <> ? AND is_read = ?", roomID, readerID, false).
		Update("is_read", true)
	if result.Error != nil {
		log.Printf("[MessageRepository] Database error marking room %d read: %v", roomID, result.Error)
		return 0, errors.New("database error marking messages read")
	}
	return result.RowsAffected, nil
}

func (r *gormMessageRepository) UnreadCounts(ctx context.Context, userID uint) (map[uint]int, error) {
	if userID == 0 {
		return nil, errors.New("invalid user ID")
	}

	var rows []struct {
		RoomID uint
		Unread int
	}
	memberOf := r.db.Table("room_participants").Select("room_id").Where("user_id = ?", userID)
	err := r.db.WithContext(ctx).
		Model(&domain.ChatMessage{}).
		Select("room_id, COUNT(*) AS unread").
		Where("is_read = ? AND sender_id <> ? AND room_id IN (?)", false, userID, memberOf).
		Group("room_id").
		Scan(&rows).Error
	if err != nil {
		log.Printf("[MessageRepository] Database error counting unread for user %d: %v", userID, err)
		return nil, errors.New("database error counting unread messages")
	}

	counts := make(map[uint]int, len(rows))
	for _, row := range rows {
		counts[row.RoomID] = row.Unread
	}
	return counts, nil
}

func (r *gormMessageRepository) validateMessageInput(message *domain.ChatMessage) error {
	if message == nil {
		return errors.New("message cannot be nil")
	}
	if message.RoomID == 0 || message.SenderID == 0 {
		return errors.New("room ID and sender ID are required")
	}
	content := strings.TrimSpace(message.Content)
	if content == "" {
		return errors.New("content cannot be empty")
	}
	if utf8.RuneCountInString(content) > domain.MaxMessageLength {
		return fmt.Errorf("content exceeds %d characters", domain.MaxMessageLength)
	}
	message.Content = content
	return nil
}
