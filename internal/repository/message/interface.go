package message

import (
	"context"

	"github.com/trash2cash/chatsync/internal/domain"
)

// MessageRepository handles chat message storage and read accounting.
type MessageRepository interface {
	Create(ctx context.Context, message *domain.ChatMessage) (*domain.ChatMessage, error)
	FindByRoomID(ctx context.Context, roomID uint) ([]domain.ChatMessage, error)
	// LastByRoomIDs returns the newest message of each room that has one.
	LastByRoomIDs(ctx context.Context, roomIDs []uint) (map[uint]*domain.ChatMessage, error)
	// MarkRoomRead marks every message in the room not sent by readerID as read.
	MarkRoomRead(ctx context.Context, roomID, readerID uint) (int64, error)
	// UnreadCounts counts unread messages from others per room the user is in.
	// Rooms with nothing unread are omitted.
	UnreadCounts(ctx context.Context, userID uint) (map[uint]int, error)
}
