package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// StoreStatus 每次开/关店追加一行，最新一行即当前状态。
type StoreStatus struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	IsOpen   bool       `gorm:"not null" json:"is_open"`
	OpenedAt *time.Time `json:"opened_at,omitempty"`
	OpenedBy *uint      `json:"opened_by,omitempty"`
	ClosedAt *time.Time `json:"closed_at,omitempty"`
	ClosedBy *uint      `json:"closed_by,omitempty"`
	Notes    string     `gorm:"size:500" json:"notes"`
}

func (StoreStatus) TableName() string { return "store_statuses" }

// DailySales 按营业日汇总，关店时写入当日完成单数与营业额。
type DailySales struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Date        string          `gorm:"size:10;uniqueIndex;not null" json:"date"` // YYYY-MM-DD
	OpenedAt    *time.Time      `json:"opened_at,omitempty"`
	OpenedBy    *uint           `json:"opened_by,omitempty"`
	ClosedAt    *time.Time      `json:"closed_at,omitempty"`
	ClosedBy    *uint           `json:"closed_by,omitempty"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total_amount"`
	TotalOrders int             `gorm:"not null;default:0" json:"total_orders"`
	Notes       string          `gorm:"size:500" json:"notes"`
}

func (DailySales) TableName() string { return "daily_sales" }
