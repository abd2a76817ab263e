package session

import (
	"context"
	"errors"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/trash2cash/chatsync/internal/domain"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionRepository stores refresh-token sessions.
type SessionRepository interface {
	Create(ctx context.Context, s *domain.Session) error
	FindByID(ctx context.Context, id string) (*domain.Session, error)
	Revoke(ctx context.Context, id string, at time.Time) error
}

type gormSessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &gormSessionRepository{db: db}
}

func (r *gormSessionRepository) Create(ctx context.Context, s *domain.Session) error {
	if s == nil || s.ID == "" || s.UserID == 0 {
		return errors.New("session needs an ID and a user")
	}
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		log.Printf("[SessionRepository] Database error creating session for user %d: %v", s.UserID, err)
		return errors.New("database error creating session")
	}
	return nil
}

func (r *gormSessionRepository) FindByID(ctx context.Context, id string) (*domain.Session, error) {
	var s domain.Session
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		log.Printf("[SessionRepository] Database query error: %v", err)
		return nil, errors.New("database query failed")
	}
	return &s, nil
}

// Revoke ends a session. Revoking an already revoked session keeps the
// original time.
func (r *gormSessionRepository) Revoke(ctx context.Context, id string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&domain.Session{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Update("revoked_at", at)
	if result.Error != nil {
		log.Printf("[SessionRepository] Database error revoking session: %v", result.Error)
		return errors.New("database error revoking session")
	}
	if result.RowsAffected == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
