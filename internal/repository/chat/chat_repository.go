package chat

import (
	"context"
	"errors"
	"log"

	"gorm.io/gorm"

	"github.com/trash2cash/chatsync/internal/domain"
)

var ErrRoomNotFound = errors.New("chatroom not found")

type gormChatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) ChatRepository {
	return &gormChatRepository{db: db}
}

func (r *gormChatRepository) FindByID(ctx context.Context, roomID uint) (*domain.Room, error) {
	if roomID == 0 {
		return nil, errors.New("invalid room ID")
	}

	var room domain.Room
	err := r.db.WithContext(ctx).Preload("Participants").First(&room, roomID).Error
	return r.handleFindError(err, &room, "FindByID")
}

func (r *gormChatRepository) FindByUserID(ctx context.Context, userID uint) ([]domain.Room, error) {
	if userID == 0 {
		return nil, errors.New("invalid user ID")
	}

	var rooms []domain.Room
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Where("id IN (?)", r.memberOf(userID)).
		Order("created_at desc, id desc").
		Find(&rooms).Error
	if err != nil {
		log.Printf("[ChatRepository] Database error finding rooms for user ID %d: %v", userID, err)
		return nil, errors.New("database error fetching chatrooms")
	}
	return rooms, nil
}

func (r *gormChatRepository) IsParticipant(ctx context.Context, roomID, userID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Table("room_participants").
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&n).Error
	if err != nil {
		log.Printf("[ChatRepository] Database error checking membership of room %d: %v", roomID, err)
		return false, errors.New("database error checking membership")
	}
	return n > 0, nil
}

func (r *gormChatRepository) GetOrCreatePrivate(ctx context.Context, a, b uint) (*domain.Room, bool, error) {
	if a == 0 || b == 0 || a == b {
		return nil, false, errors.New("two distinct user IDs are required")
	}

	var room *domain.Room
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var candidates []domain.Room
		err := tx.Preload("Participants").
			Where("id IN (?)", tx.Table("room_participants").Select("room_id").Where("user_id = ?", a)).
			Where("id IN (?)", tx.Table("room_participants").Select("room_id").Where("user_id = ?", b)).
			Order("id asc").
			Find(&candidates).Error
		if err != nil {
			return err
		}
		for i := range candidates {
			if len(candidates[i].Participants) == 2 {
				room = &candidates[i]
				return nil
			}
		}

		var users []domain.User
		if err := tx.Where("id IN ?", []uint{a, b}).Find(&users).Error; err != nil {
			return err
		}
		if len(users) != 2 {
			return ErrRoomNotFound
		}
		room = &domain.Room{Participants: users}
		created = true
		return tx.Create(room).Error
	})
	if errors.Is(err, ErrRoomNotFound) {
		return nil, false, err
	}
	if err != nil {
		log.Printf("[ChatRepository] Database error in get-or-create for users %d and %d: %v", a, b, err)
		return nil, false, errors.New("database error creating chatroom")
	}
	if created {
		log.Printf("[ChatRepository] Chatroom created successfully with ID: %d", room.ID)
	}
	return room, created, nil
}

func (r *gormChatRepository) memberOf(userID uint) *gorm.DB {
	return r.db.Table("room_participants").Select("room_id").Where("user_id = ?", userID)
}

func (r *gormChatRepository) handleFindError(err error, room *domain.Room, operation string) (*domain.Room, error) {
	if err == nil {
		return room, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoomNotFound
	}
	log.Printf("[ChatRepository] Database query error in %s: %v", operation, err)
	return nil, errors.New("database query failed")
}
