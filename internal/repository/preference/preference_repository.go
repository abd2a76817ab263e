package preference

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/trash2cash/chatsync/internal/domain"
)

// GormPreferenceRepository stores small user-preference flags.
type GormPreferenceRepository struct {
	db *gorm.DB
}

func NewGormPreferenceRepository(db *gorm.DB) *GormPreferenceRepository {
	return &GormPreferenceRepository{db: db}
}

func (r *GormPreferenceRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var pref domain.Preference
	err := r.db.WithContext(ctx).Where("name = ?", key).First(&pref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load preference %s: %w", key, err)
	}
	return pref.Value, true, nil
}

func (r *GormPreferenceRepository) Set(ctx context.Context, key, value string) error {
	pref := domain.Preference{Name: key, Value: value}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&pref).Error
	if err != nil {
		return fmt.Errorf("save preference %s: %w", key, err)
	}
	return nil
}

// GetBool reads a boolean flag, returning def when unset or unparsable.
func (r *GormPreferenceRepository) GetBool(ctx context.Context, key string, def bool) (bool, error) {
	v, ok, err := r.Get(ctx, key)
	if err != nil || !ok {
		return def, err
	}
	b, perr := strconv.ParseBool(v)
	if perr != nil {
		return def, nil
	}
	return b, nil
}

func (r *GormPreferenceRepository) SetBool(ctx context.Context, key string, value bool) error {
	return r.Set(ctx, key, strconv.FormatBool(value))
}
