package realtime

import (
	"context"
	"fmt"

	"food_order/internal/model"
)

// Topic 推送房间。
type Topic string

const (
	TopicAdmin Topic = "admin"  // 后台看板
	TopicAll   Topic = "global" // 全员广播
)

// CustomerTopic 顾客私有房间。
func CustomerTopic(customerID uint) Topic {
	return Topic(fmt.Sprintf("customer:%d", customerID))
}

// Event 是封闭的出站事件集合，每个变体自带事件名与强类型负载。
type Event interface {
	EventName() string
}

// Publisher 把事件发往某个房间。实现可以是本地 Hub，也可以是跨实例的 Kafka。
type Publisher interface {
	Publish(ctx context.Context, topic Topic, ev Event) error
}

// NewOrder 新订单进入后台看板。
type NewOrder struct {
	Order   *model.Order `json:"order"`
	Message string       `json:"message"`
}

func (NewOrder) EventName() string { return "new_order" }

// StatusUpdated 全局订单状态变化。
type StatusUpdated struct {
	OrderID       uint         `json:"order_id"`
	OrderNumber   string       `json:"order_number"`
	OldStatus     model.Status `json:"old_status"`
	NewStatus     model.Status `json:"new_status"`
	EstimatedTime int          `json:"estimated_time"`
	Urgent        bool         `json:"urgent"`
	Message       string       `json:"message"`
}

func (StatusUpdated) EventName() string { return "order_status_updated" }

// CustomerOrderUpdate 推给下单顾客本人的状态变化。
type CustomerOrderUpdate struct {
	OrderID       uint         `json:"order_id"`
	Status        model.Status `json:"status"`
	EstimatedTime int          `json:"estimated_time"`
	Urgent        bool         `json:"urgent"`
	Message       string       `json:"message"`
}

func (CustomerOrderUpdate) EventName() string { return "order_update" }

// MenuAction 菜单变更类型。
type MenuAction string

const (
	MenuCreated       MenuAction = "created"
	MenuChanged       MenuAction = "updated"
	MenuStatusChanged MenuAction = "status_changed"
	MenuDeleted       MenuAction = "deleted"
)

// MenuUpdated 菜单变更。
type MenuUpdated struct {
	Action    MenuAction       `json:"action"`
	Item      model.MenuItem   `json:"item"`
	OldStatus model.MenuStatus `json:"old_status,omitempty"`
	Reason    string           `json:"reason,omitempty"`
}

func (MenuUpdated) EventName() string { return "menu_updated" }

// MenuBulkUpdated 批量改供应状态，全员可见。
type MenuBulkUpdated struct {
	ItemIDs   []uint           `json:"item_ids"`
	Items     []string         `json:"items"`
	NewStatus model.MenuStatus `json:"new_status"`
	Reason    string           `json:"reason,omitempty"`
	Message   string           `json:"message"`
}

func (MenuBulkUpdated) EventName() string { return "menu_bulk_updated" }

// StoreStatusChanged 开关店。
type StoreStatusChanged struct {
	IsOpen  bool               `json:"is_open"`
	Status  *model.StoreStatus `json:"data"`
	Message string             `json:"message"`
}

func (StoreStatusChanged) EventName() string { return "store_status_changed" }
