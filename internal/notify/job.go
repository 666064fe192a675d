package notify

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Kind 通知类型（封闭枚举）。
type Kind string

const (
	KindOrderConfirmation Kind = "order_confirmation"
	KindOrderStatusUpdate Kind = "order_status_update"
	KindMenuUpdate        Kind = "menu_update"
	KindStoreStatus       Kind = "store_status"
)

// Payload 每种通知一个具体类型，Kind 由类型本身决定。
type Payload interface {
	Kind() Kind
}

// LineItem 通知里展示的一行菜品。
type LineItem struct {
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// OrderConfirmation 下单确认。
type OrderConfirmation struct {
	OrderNumber   string          `json:"order_number"`
	Items         []LineItem      `json:"items"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	EstimatedTime int             `json:"estimated_time"`
}

func (OrderConfirmation) Kind() Kind { return KindOrderConfirmation }

// StatusUpdate 订单状态变化。Urgent 为 true 时（ready）渲染端应按提醒消息处理。
type StatusUpdate struct {
	OrderNumber   string `json:"order_number"`
	Status        string `json:"status"`
	EstimatedTime int    `json:"estimated_time"`
	Note          string `json:"note,omitempty"`
	Urgent        bool   `json:"urgent"`
}

func (StatusUpdate) Kind() Kind { return KindOrderStatusUpdate }

// MenuUpdate 菜品供应状态变化。
type MenuUpdate struct {
	ItemName  string `json:"item_name"`
	Status    string `json:"status"`
	Available bool   `json:"is_available"`
	Reason    string `json:"reason,omitempty"`
}

func (MenuUpdate) Kind() Kind { return KindMenuUpdate }

// StoreStatus 开关店通知。
type StoreStatus struct {
	IsOpen bool      `json:"is_open"`
	Note   string    `json:"note,omitempty"`
	At     time.Time `json:"at"`
}

func (StoreStatus) Kind() Kind { return KindStoreStatus }

// Job 内存队列中的一条待投递通知，进程重启即丢失。
type Job struct {
	ID         string
	Kind       Kind
	To         string // LINE user id
	Payload    Payload
	Retries    int
	MaxRetries int
	EnqueuedAt time.Time
}

func (j Job) String() string {
	return fmt.Sprintf("%s(%s -> %s, retry %d/%d)", j.Kind, j.ID, j.To, j.Retries, j.MaxRetries)
}
