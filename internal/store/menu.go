package store

import (
	"context"
	"strings"

	"food_order/internal/model"

	"gorm.io/gorm"
)

// MenuFilter 后台菜单列表筛选。Search 匹配名称或描述，不区分大小写。
type MenuFilter struct {
	Search string
	Status model.MenuStatus
	Limit  int
	Offset int
}

// ListMenu 在架菜品，按分类与名称排序。
func (s *Store) ListMenu(ctx context.Context) ([]model.MenuItem, error) {
	var list []model.MenuItem
	err := s.db.WithContext(ctx).Order("category ASC, name ASC, id ASC").Find(&list).Error
	if err != nil {
		return nil, translate(err)
	}
	return list, nil
}

func (s *Store) MenuItemByID(ctx context.Context, id uint) (*model.MenuItem, error) {
	var m model.MenuItem
	if err := s.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (s *Store) CreateMenuItem(ctx context.Context, m *model.MenuItem) error {
	return translate(s.db.WithContext(ctx).Create(m).Error)
}

// UpdateMenuItem 只更新 fields 中给出的列。
func (s *Store) UpdateMenuItem(ctx context.Context, id uint, fields map[string]any) (*model.MenuItem, error) {
	res := s.db.WithContext(ctx).Model(&model.MenuItem{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return nil, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.MenuItemByID(ctx, id)
}

// DeleteMenuItem 软删除。
func (s *Store) DeleteMenuItem(ctx context.Context, id uint, adminID *uint) error {
	db := s.db.WithContext(ctx)
	if adminID != nil {
		if err := db.Model(&model.MenuItem{}).Where("id = ?", id).Update("updated_by", *adminID).Error; err != nil {
			return translate(err)
		}
	}
	res := db.Delete(&model.MenuItem{}, id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ActiveOrdersWithItem 统计仍在进行中、包含该菜品的订单数。
func (s *Store) ActiveOrdersWithItem(ctx context.Context, menuItemID uint) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Table("order_items AS oi").
		Joins("JOIN orders o ON o.id = oi.order_id").
		Where("oi.menu_item_id = ? AND o.status IN ?", menuItemID, model.ActiveStatuses).
		Distinct("oi.order_id").
		Count(&n).Error
	if err != nil {
		return 0, translate(err)
	}
	return n, nil
}

// AdminMenu 后台菜单分页，最近修改的在前；total 为筛选后的总数。
func (s *Store) AdminMenu(ctx context.Context, f MenuFilter) ([]model.MenuItem, int64, error) {
	q := s.db.WithContext(ctx).Model(&model.MenuItem{})
	if kw := strings.ToLower(strings.TrimSpace(f.Search)); kw != "" {
		like := "%" + kw + "%"
		q = q.Where("(LOWER(name) LIKE ? OR LOWER(description) LIKE ?)", like, like)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}
	var list []model.MenuItem
	err := q.Order("updated_at DESC, id DESC").Limit(f.Limit).Offset(f.Offset).Find(&list).Error
	if err != nil {
		return nil, 0, translate(err)
	}
	return list, total, nil
}

// SetMenuStatuses 批量改状态，返回修改前的在架菜品；一个都不存在时返回 ErrNotFound。
func (s *Store) SetMenuStatuses(ctx context.Context, ids []uint, status model.MenuStatus, adminID *uint) ([]model.MenuItem, error) {
	var before []model.MenuItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id IN ?", ids).Order("id ASC").Find(&before).Error; err != nil {
			return err
		}
		if len(before) == 0 {
			return ErrNotFound
		}
		found := make([]uint, len(before))
		for i, m := range before {
			found[i] = m.ID
		}
		fields := map[string]any{"status": status}
		if adminID != nil {
			fields["updated_by"] = *adminID
		}
		return tx.Model(&model.MenuItem{}).Where("id IN ?", found).Updates(fields).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	return before, nil
}
