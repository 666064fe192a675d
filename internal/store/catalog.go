package store

import (
	"context"

	"food_order/internal/model"

	"gorm.io/gorm/clause"
)

// MenuItemsByIDs 返回在架（未软删除）的菜单快照；缺失的 id 不会出现在结果中。
func (s *Store) MenuItemsByIDs(ctx context.Context, ids []uint) ([]model.MenuItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []model.MenuItem
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, translate(err)
	}
	return items, nil
}

// UpsertCustomer 按 LINE user id 幂等建档：INSERT ... ON CONFLICT DO NOTHING 后回读。
// 并发首单只会留下一行顾客记录。
func (s *Store) UpsertCustomer(ctx context.Context, lineUserID, displayName string) (*model.Customer, error) {
	db := s.db.WithContext(ctx)
	c := model.Customer{LineUserID: lineUserID, DisplayName: displayName, IsSubscribed: true}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "line_user_id"}},
		DoNothing: true,
	}).Create(&c).Error
	if err != nil {
		return nil, translate(err)
	}

	var out model.Customer
	if err := db.Where("line_user_id = ?", lineUserID).First(&out).Error; err != nil {
		return nil, translate(err)
	}
	return &out, nil
}

// CustomerByID 读取顾客。
func (s *Store) CustomerByID(ctx context.Context, id uint) (*model.Customer, error) {
	var c model.Customer
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

// SetSubscribed 更新关注状态（follow / unfollow）。
func (s *Store) SetSubscribed(ctx context.Context, lineUserID string, subscribed bool) error {
	err := s.db.WithContext(ctx).
		Model(&model.Customer{}).
		Where("line_user_id = ?", lineUserID).
		Update("is_subscribed", subscribed).Error
	return translate(err)
}

// SubscribedLineIDs 返回仍在关注的 LINE 用户，用于菜单 / 营业状态广播。
func (s *Store) SubscribedLineIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&model.Customer{}).
		Where("is_subscribed = ?", true).
		Order("id ASC").
		Pluck("line_user_id", &ids).Error
	if err != nil {
		return nil, translate(err)
	}
	return ids, nil
}
