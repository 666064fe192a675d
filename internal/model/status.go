package model

// Status 描述订单状态机。
type Status string

const (
	StatusReceived  Status = "received"  // 已下单
	StatusConfirmed Status = "confirmed" // 已确认
	StatusPreparing Status = "preparing" // 制作中
	StatusReady     Status = "ready"     // 可取餐
	StatusCompleted Status = "completed" // 已完成（终态）
	StatusCancelled Status = "cancelled" // 已取消（终态）
)

// AllStatuses 按生命周期顺序列出全部状态。
var AllStatuses = []Status{
	StatusReceived,
	StatusConfirmed,
	StatusPreparing,
	StatusReady,
	StatusCompleted,
	StatusCancelled,
}

// ActiveStatuses 是厨房视图关心的“进行中”状态。
var ActiveStatuses = []Status{
	StatusReceived,
	StatusConfirmed,
	StatusPreparing,
	StatusReady,
}

// Valid 是否为已知状态。
func (s Status) Valid() bool {
	switch s {
	case StatusReceived, StatusConfirmed, StatusPreparing, StatusReady, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal 终态没有任何出边。
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Ptr 便于给可空列赋值。
func (s Status) Ptr() *Status { return &s }

// MenuStatus 是菜单项的供应状态。
type MenuStatus string

const (
	MenuAvailable   MenuStatus = "available"
	MenuUnavailable MenuStatus = "unavailable"
	MenuOutOfStock  MenuStatus = "out_of_stock"
)

func (s MenuStatus) Valid() bool {
	switch s {
	case MenuAvailable, MenuUnavailable, MenuOutOfStock:
		return true
	}
	return false
}
