// Package credential persists the client's token pair in the local sqlite
// database, the CLI counterpart of browser storage.
package credential

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/trash2cash/chatsync/internal/domain"
)

// singletonID is the primary key of the only credential row.
const singletonID = 1

type GormCredentialRepository struct {
	db *gorm.DB
}

func NewGormCredentialRepository(db *gorm.DB) *GormCredentialRepository {
	return &GormCredentialRepository{db: db}
}

func (r *GormCredentialRepository) Load(ctx context.Context) (*domain.Credential, error) {
	var cred domain.Credential
	err := r.db.WithContext(ctx).First(&cred, singletonID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}
	return &cred, nil
}

func (r *GormCredentialRepository) Save(ctx context.Context, cred *domain.Credential) error {
	row := domain.Credential{ID: singletonID, AccessToken: cred.AccessToken, RefreshToken: cred.RefreshToken}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"access_token", "refresh_token", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

func (r *GormCredentialRepository) Clear(ctx context.Context) error {
	if err := r.db.WithContext(ctx).Delete(&domain.Credential{}, singletonID).Error; err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	return nil
}
