package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MenuItem 菜单项：名称、价格、供应状态、制作时长。
// 软删除（DeletedAt）即下架，查询默认只返回在架菜品。
type MenuItem struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name        string          `gorm:"size:128;not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Category    string          `gorm:"size:64;index" json:"category"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	Status      MenuStatus      `gorm:"size:16;not null;default:'available'" json:"status"`
	PrepTime    int             `gorm:"not null;default:10" json:"preparation_time"` // minutes
	UpdatedBy   *uint           `json:"updated_by,omitempty"`
}

func (MenuItem) TableName() string { return "menu_items" }

// Available 仅 available 状态可下单；unavailable / out_of_stock 都视为不可售。
func (m MenuItem) Available() bool { return m.Status == MenuAvailable }
