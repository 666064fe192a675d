package store

import (
	"context"
	"time"

	"food_order/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DayTotals 关店时汇总的当日营业额。
type DayTotals struct {
	TotalOrders int             `json:"total_orders"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// PeriodTotals daily_sales 在一段日期内的汇总。
type PeriodTotals struct {
	TotalDays       int             `json:"total_days"`
	TotalRevenue    decimal.Decimal `json:"total_revenue"`
	TotalOrders     int             `json:"total_orders"`
	AvgDailyRevenue decimal.Decimal `json:"avg_daily_revenue"`
	AvgDailyOrders  float64         `json:"avg_daily_orders"`
}

// CurrentStoreStatus 最新一行即当前营业状态；从未开过店返回 ErrNotFound。
func (s *Store) CurrentStoreStatus(ctx context.Context) (*model.StoreStatus, error) {
	var st model.StoreStatus
	err := s.db.WithContext(ctx).Order("created_at DESC, id DESC").First(&st).Error
	if err != nil {
		return nil, translate(err)
	}
	return &st, nil
}

// OpenStore 追加开店记录并登记当日营业日，同事务提交。
func (s *Store) OpenStore(ctx context.Context, date string, at time.Time, adminID *uint, notes string) (*model.StoreStatus, error) {
	st := model.StoreStatus{
		CreatedAt: at,
		IsOpen:    true,
		OpenedAt:  &at,
		OpenedBy:  adminID,
		Notes:     notes,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&st).Error; err != nil {
			return err
		}
		day := model.DailySales{
			Date:        date,
			OpenedAt:    &at,
			OpenedBy:    adminID,
			TotalAmount: decimal.Zero,
			Notes:       notes,
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{"opened_at", "opened_by", "notes", "updated_at"}),
		}).Create(&day).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	return &st, nil
}

// CloseStore 追加关店记录并把当日汇总写回 daily_sales。
func (s *Store) CloseStore(ctx context.Context, date string, at time.Time, adminID *uint, notes string, totals DayTotals) (*model.StoreStatus, error) {
	st := model.StoreStatus{
		CreatedAt: at,
		IsOpen:    false,
		ClosedAt:  &at,
		ClosedBy:  adminID,
		Notes:     notes,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&st).Error; err != nil {
			return err
		}
		return tx.Model(&model.DailySales{}).
			Where("date = ?", date).
			Updates(map[string]any{
				"closed_at":    at,
				"closed_by":    adminID,
				"total_amount": totals.TotalAmount,
				"total_orders": totals.TotalOrders,
				"notes":        notes,
				"updated_at":   at,
			}).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	return &st, nil
}

// DayTotals 统计 [from, to) 内已出餐或已完成的订单。
func (s *Store) DayTotals(ctx context.Context, from, to time.Time) (DayTotals, error) {
	var rows []model.Order
	err := s.db.WithContext(ctx).
		Select("id", "total_amount").
		Where("created_at >= ? AND created_at < ? AND status IN ?", from.UTC(), to.UTC(),
			[]model.Status{model.StatusReady, model.StatusCompleted}).
		Find(&rows).Error
	if err != nil {
		return DayTotals{}, translate(err)
	}
	out := DayTotals{TotalAmount: decimal.Zero}
	for _, o := range rows {
		out.TotalOrders++
		out.TotalAmount = out.TotalAmount.Add(o.TotalAmount)
	}
	return out, nil
}

// DailySales 最近的营业日记录，最新在前。
func (s *Store) DailySales(ctx context.Context, limit int) ([]model.DailySales, error) {
	if limit <= 0 || limit > 365 {
		limit = 30
	}
	var list []model.DailySales
	err := s.db.WithContext(ctx).Order("date DESC").Limit(limit).Find(&list).Error
	if err != nil {
		return nil, translate(err)
	}
	return list, nil
}

// SalesSince 汇总 date >= from（YYYY-MM-DD）的营业日。
func (s *Store) SalesSince(ctx context.Context, from string) (PeriodTotals, error) {
	var rows []model.DailySales
	err := s.db.WithContext(ctx).
		Select("id", "date", "total_amount", "total_orders").
		Where("date >= ?", from).
		Find(&rows).Error
	if err != nil {
		return PeriodTotals{}, translate(err)
	}
	out := PeriodTotals{TotalRevenue: decimal.Zero, AvgDailyRevenue: decimal.Zero}
	for _, d := range rows {
		out.TotalDays++
		out.TotalRevenue = out.TotalRevenue.Add(d.TotalAmount)
		out.TotalOrders += d.TotalOrders
	}
	if out.TotalDays > 0 {
		out.AvgDailyRevenue = out.TotalRevenue.Div(decimal.NewFromInt(int64(out.TotalDays))).Round(2)
		out.AvgDailyOrders = float64(out.TotalOrders) / float64(out.TotalDays)
	}
	return out, nil
}
