package store

import (
	"context"

	"food_order/internal/model"

	"gorm.io/gorm/clause"
)

func (s *Store) AdminByUsername(ctx context.Context, username string) (*model.Admin, error) {
	var a model.Admin
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&a).Error; err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (s *Store) AdminByID(ctx context.Context, id uint) (*model.Admin, error) {
	var a model.Admin
	if err := s.db.WithContext(ctx).First(&a, id).Error; err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

// EnsureAdmin 按用户名插入，已存在时保持原样。
func (s *Store) EnsureAdmin(ctx context.Context, a *model.Admin) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}},
		DoNothing: true,
	}).Create(a).Error
	return translate(err)
}
