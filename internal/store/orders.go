package store

import (
	"context"
	"fmt"
	"time"

	"food_order/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Transition 描述一次条件状态更新：仅当订单当前仍为 From 时才改为 To。
type Transition struct {
	OrderID       uint
	From          model.Status
	To            model.Status
	EstimatedTime *int
	AdminID       *uint
	Note          string
	At            time.Time
}

// ListFilter 后台订单列表筛选条件。零值字段不参与过滤。
type ListFilter struct {
	Status     model.Status
	Date       time.Time // 按自然日过滤（[Date, Date+24h)）
	CustomerID uint
	Limit      int
	Offset     int
}

// PopularItem 热销统计行。
type PopularItem struct {
	MenuItemID    uint            `json:"menu_item_id"`
	Name          string          `json:"name"`
	TotalQuantity int64           `json:"total_quantity"`
	OrderCount    int64           `json:"order_count"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
}

// CreateOrder 在一个事务内写入订单、全部明细与首条状态历史；任一步失败整体回滚。
func (s *Store) CreateOrder(ctx context.Context, o *model.Order, first model.OrderStatusHistory) error {
	items := o.Items
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(o).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].OrderID = o.ID
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}
		first.OrderID = o.ID
		if err := tx.Create(&first).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		o.ID = 0
		return translate(err)
	}
	o.Items = items
	o.History = []model.OrderStatusHistory{first}
	return nil
}

// ApplyTransition 条件更新状态并追加历史，两者同事务提交。
// 影响行数为 0 说明状态已被其他请求推进，返回 ErrStale，不写历史。
func (s *Store) ApplyTransition(ctx context.Context, t Transition) error {
	return translate(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"status":     t.To,
			"updated_at": t.At,
		}
		if t.EstimatedTime != nil {
			updates["estimated_time"] = *t.EstimatedTime
		}
		if t.To == model.StatusCompleted {
			updates["completed_at"] = t.At
		}

		res := tx.Model(&model.Order{}).
			Where("id = ? AND status = ?", t.OrderID, t.From).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStale
		}

		h := model.OrderStatusHistory{
			OrderID:   t.OrderID,
			OldStatus: t.From.Ptr(),
			NewStatus: t.To,
			ChangedBy: t.AdminID,
			Notes:     t.Note,
			ChangedAt: t.At,
		}
		return tx.Create(&h).Error
	}))
}

func (s *Store) orderQuery(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Preload("Customer").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("History", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") })
}

// OrderByID 读取权威订单（含顾客、明细、完整历史）。
func (s *Store) OrderByID(ctx context.Context, id uint) (*model.Order, error) {
	var o model.Order
	if err := s.orderQuery(ctx).First(&o, id).Error; err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

// OrderByNumber 按对外订单号读取。
func (s *Store) OrderByNumber(ctx context.Context, number string) (*model.Order, error) {
	var o model.Order
	if err := s.orderQuery(ctx).Where("order_number = ?", number).First(&o).Error; err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

// OrderStatus 只读当前状态，用于回填缓存后的复核。
func (s *Store) OrderStatus(ctx context.Context, id uint) (model.Status, error) {
	var o model.Order
	if err := s.db.WithContext(ctx).Select("id", "status").First(&o, id).Error; err != nil {
		return "", translate(err)
	}
	return o.Status, nil
}

// History 按提交顺序（最早在前）返回状态历史。自增 id 即提交顺序，不依赖各实例的时钟。
func (s *Store) History(ctx context.Context, orderID uint) ([]model.OrderStatusHistory, error) {
	var list []model.OrderStatusHistory
	err := s.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&list).Error
	if err != nil {
		return nil, translate(err)
	}
	return list, nil
}

// ListOrders 后台订单列表，最新在前。
func (s *Store) ListOrders(ctx context.Context, f ListFilter) ([]model.Order, error) {
	q := s.db.WithContext(ctx).
		Preload("Customer").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") })
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if !f.Date.IsZero() {
		start := f.Date.UTC().Truncate(24 * time.Hour)
		q = q.Where("created_at >= ? AND created_at < ?", start, start.Add(24*time.Hour))
	}
	if f.CustomerID > 0 {
		q = q.Where("customer_id = ?", f.CustomerID)
	}
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var list []model.Order
	err := q.Order("created_at DESC, id DESC").Limit(limit).Offset(f.Offset).Find(&list).Error
	if err != nil {
		return nil, translate(err)
	}
	return list, nil
}

// ActiveOrders 厨房视图：按 received→ready 排序，同状态先到先做。
func (s *Store) ActiveOrders(ctx context.Context) ([]model.Order, error) {
	var list []model.Order
	err := s.db.WithContext(ctx).
		Preload("Customer").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("status IN ?", model.ActiveStatuses).
		Order(fmt.Sprintf(
			"CASE status WHEN '%s' THEN 1 WHEN '%s' THEN 2 WHEN '%s' THEN 3 WHEN '%s' THEN 4 END, created_at ASC, id ASC",
			model.StatusReceived, model.StatusConfirmed, model.StatusPreparing, model.StatusReady,
		)).
		Find(&list).Error
	if err != nil {
		return nil, translate(err)
	}
	return list, nil
}

// OrdersSince 为统计读取时间窗内的订单行（不含明细）。
func (s *Store) OrdersSince(ctx context.Context, since time.Time) ([]model.Order, error) {
	var list []model.Order
	err := s.db.WithContext(ctx).
		Where("created_at >= ?", since.UTC()).
		Order("created_at ASC").
		Find(&list).Error
	if err != nil {
		return nil, translate(err)
	}
	return list, nil
}

// PopularItems 统计已完成订单中的热销菜品。
func (s *Store) PopularItems(ctx context.Context, since time.Time, limit int) ([]PopularItem, error) {
	var out []PopularItem
	err := s.db.WithContext(ctx).
		Table("order_items AS oi").
		Select("oi.menu_item_id, oi.item_name AS name, SUM(oi.quantity) AS total_quantity, "+
			"COUNT(DISTINCT oi.order_id) AS order_count, SUM(oi.total_price) AS total_revenue").
		Joins("JOIN orders o ON o.id = oi.order_id").
		Where("o.created_at >= ? AND o.status = ?", since.UTC(), model.StatusCompleted).
		Group("oi.menu_item_id, oi.item_name").
		Order("total_quantity DESC").
		Limit(limit).
		Scan(&out).Error
	if err != nil {
		return nil, translate(err)
	}
	return out, nil
}
