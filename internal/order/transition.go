package order

import "food_order/internal/model"

// NextStatuses 返回 from 允许的下一状态。终态返回空。
func NextStatuses(from model.Status) []model.Status {
	switch from {
	case model.StatusReceived:
		return []model.Status{model.StatusConfirmed, model.StatusCancelled}
	case model.StatusConfirmed:
		return []model.Status{model.StatusPreparing, model.StatusCancelled}
	case model.StatusPreparing:
		return []model.Status{model.StatusReady, model.StatusCancelled}
	case model.StatusReady:
		return []model.Status{model.StatusCompleted, model.StatusCancelled}
	case model.StatusCompleted, model.StatusCancelled:
		return nil
	}
	return nil
}

// CanTransition 判断 from → to 是否合法。
func CanTransition(from, to model.Status) bool {
	for _, s := range NextStatuses(from) {
		if s == to {
			return true
		}
	}
	return false
}

// Cancellable 取消是受限的流转：出餐（ready）之后不再允许取消。
// 状态机本身允许 ready → cancelled（后台改状态仍可用），这里是业务规则。
func Cancellable(s model.Status) bool {
	switch s {
	case model.StatusReceived, model.StatusConfirmed, model.StatusPreparing:
		return true
	}
	return false
}

// statusMessage 推送用的简短描述。
func statusMessage(s model.Status) string {
	switch s {
	case model.StatusReceived:
		return "order received"
	case model.StatusConfirmed:
		return "order confirmed"
	case model.StatusPreparing:
		return "preparing your food"
	case model.StatusReady:
		return "food is ready"
	case model.StatusCompleted:
		return "served"
	case model.StatusCancelled:
		return "order cancelled"
	}
	return string(s)
}
