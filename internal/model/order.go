package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order 是一张顾客订单。金额与明细在创建时快照，之后只有状态、预计时间与完成时间会变化。
type Order struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	OrderNumber   string          `gorm:"size:32;uniqueIndex;not null" json:"order_number"`
	CustomerID    *uint           `gorm:"index" json:"customer_id"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"total_amount"`
	Status        Status          `gorm:"size:16;not null;index" json:"status"`
	EstimatedTime int             `gorm:"not null;default:0" json:"estimated_time"` // minutes
	CustomerNotes string          `gorm:"type:text" json:"customer_notes"`
	CompletedAt   *time.Time      `json:"actual_completion_time"`

	Customer *Customer            `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	Items    []OrderItem          `gorm:"foreignKey:OrderID" json:"items"`
	History  []OrderStatusHistory `gorm:"foreignKey:OrderID" json:"status_history,omitempty"`
}

func (Order) TableName() string { return "orders" }

// LineUserID 顾客的 LINE id；匿名订单返回空串。
func (o *Order) LineUserID() string {
	if o.Customer == nil {
		return ""
	}
	return o.Customer.LineUserID
}

// OrderItem 是订单明细。单价与小计在下单时固定，不随菜单改价变化。
type OrderItem struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	OrderID    uint            `gorm:"not null;index" json:"order_id"`
	MenuItemID uint            `gorm:"not null;index" json:"menu_item_id"`
	ItemName   string          `gorm:"size:128;not null" json:"item_name"`
	Quantity   int             `gorm:"not null" json:"quantity"`
	UnitPrice  decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"unit_price"`
	TotalPrice decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"total_price"`
}

func (OrderItem) TableName() string { return "order_items" }

// OrderStatusHistory 只追加：每次流转插入一行，从不更新。
type OrderStatusHistory struct {
	ID      uint `gorm:"primarykey" json:"id"`
	OrderID uint `gorm:"not null;index" json:"order_id"`

	OldStatus *Status   `gorm:"size:16" json:"old_status"` // nil for the creation row
	NewStatus Status    `gorm:"size:16;not null" json:"new_status"`
	ChangedBy *uint     `json:"changed_by"` // nil when not admin-initiated
	Notes     string    `gorm:"type:text" json:"notes"`
	ChangedAt time.Time `gorm:"not null;index" json:"changed_at"`
}

func (OrderStatusHistory) TableName() string { return "order_status_history" }
