package chat

import (
	"context"

	"github.com/trash2cash/chatsync/internal/domain"
)

// ChatRepository handles chatroom data operations.
type ChatRepository interface {
	FindByID(ctx context.Context, id uint) (*domain.Room, error)
	// FindByUserID returns the user's rooms with participants loaded.
	FindByUserID(ctx context.Context, userID uint) ([]domain.Room, error)
	IsParticipant(ctx context.Context, roomID, userID uint) (bool, error)
	// GetOrCreatePrivate returns the two-person room shared by a and b,
	// creating it when none exists.
	GetOrCreatePrivate(ctx context.Context, a, b uint) (*domain.Room, bool, error)
}
