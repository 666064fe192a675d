package redis

import "fmt"

// OrderKey 进行中订单快照的键名。
func OrderKey(orderID uint) string {
	return fmt.Sprintf("order:%d", orderID)
}

// StoreStatusKey 当前营业状态。
const StoreStatusKey = "store:status"

// MenuAllKey 顾客端菜单列表缓存。
const MenuAllKey = "menu:all"

// MenuItemKey 单个菜品缓存。
func MenuItemKey(itemID uint) string {
	return fmt.Sprintf("menu:item:%d", itemID)
}

// RateLimitKey 下单限流键：优先按 LINE 用户，解析不到时按 IP。
func RateLimitKey(scope, id string) string {
	return fmt.Sprintf("rate_limit:orders:%s:%s", scope, id)
}
