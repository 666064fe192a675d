package router

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"food_order/internal/auth"
	"food_order/internal/menu"
	"food_order/internal/model"
	"food_order/internal/notify"
	"food_order/internal/order"
	"food_order/internal/realtime"
	"food_order/internal/storefront"

	"github.com/gin-gonic/gin"
)

// Followers LINE webhook 用到的顾客操作，由 store.Store 实现。
type Followers interface {
	UpsertCustomer(ctx context.Context, lineUserID, displayName string) (*model.Customer, error)
	SetSubscribed(ctx context.Context, lineUserID string, subscribed bool) error
}

// Deps 路由依赖，由 cmd/server 组装。
type Deps struct {
	Engine     *order.Engine
	Menu       *menu.Service
	Storefront *storefront.Service
	Auth       *auth.Service
	Followers  Followers
	Hub        *realtime.Hub
	Queue      interface{ Stats() notify.Stats }

	OrderLimiter gin.HandlerFunc // nil 时不限流
	LineSecret   string
	SSEKeepAlive time.Duration
	Log          *slog.Logger
}

// Setup 注册全部 HTTP 路由。
func Setup(r *gin.Engine, d Deps) {
	if d.SSEKeepAlive <= 0 {
		d.SSEKeepAlive = 25 * time.Second
	}
	log := d.Log

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": "pong"})
	})

	api := r.Group("/api")
	api.GET("/menu", listMenu(d.Menu, log))
	api.GET("/menu/:id", getMenuItem(d.Menu, log))
	api.GET("/store/status", storeStatus(d.Storefront, log))

	placeOrder := []gin.HandlerFunc{}
	if d.OrderLimiter != nil {
		placeOrder = append(placeOrder, d.OrderLimiter)
	}
	placeOrder = append(placeOrder, createOrder(d.Engine, log))
	api.POST("/orders", placeOrder...)
	api.GET("/orders/:id", getOrder(d.Engine, log))

	api.GET("/events", auth.Optional(d.Auth), d.Hub.ServeSSE(eventTopics, d.SSEKeepAlive))

	r.POST("/webhook/line", lineWebhook(d.Followers, d.LineSecret, log))

	api.POST("/admin/login", login(d.Auth, log))

	admin := api.Group("/admin", auth.Required(d.Auth))
	admin.GET("/profile", profile())
	admin.GET("/orders", listOrders(d.Engine, log))
	admin.GET("/orders/active", activeOrders(d.Engine, log))
	admin.GET("/orders/stats", orderStats(d.Engine, log))
	admin.PUT("/orders/:id/status", updateOrderStatus(d.Engine, log))
	admin.POST("/orders/:id/cancel", cancelOrder(d.Engine, log))

	admin.GET("/menu", adminMenu(d.Menu, log))
	admin.POST("/menu", createMenuItem(d.Menu, log))
	admin.PUT("/menu/bulk-update", bulkMenuStatus(d.Menu, log))
	admin.PUT("/menu/:id", updateMenuItem(d.Menu, log))
	admin.PUT("/menu/:id/status", setMenuStatus(d.Menu, log))
	admin.DELETE("/menu/:id", deleteMenuItem(d.Menu, log))

	admin.POST("/store/open", openStore(d.Storefront, log))
	admin.POST("/store/close", closeStore(d.Storefront, log))
	admin.GET("/store/daily-sales", dailySales(d.Storefront, log))
	admin.GET("/store/stats", storeStats(d.Storefront, log))

	admin.GET("/notifications/stats", notificationStats(d.Queue, d.Hub))
}

// eventTopics 管理员订阅后台房间；带 customer_id 的顾客订阅自己的房间。
func eventTopics(c *gin.Context) []realtime.Topic {
	var topics []realtime.Topic
	if _, ok := auth.FromContext(c); ok {
		topics = append(topics, realtime.TopicAdmin)
	}
	if id, ok := parseUintParam(c.Query("customer_id")); ok {
		topics = append(topics, realtime.CustomerTopic(id))
	}
	return topics
}

func parseUintParam(s string) (uint, bool) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}

func pathID(c *gin.Context) (uint, bool) {
	id, ok := parseUintParam(c.Param("id"))
	if !ok {
		badRequest(c, "invalid id")
	}
	return id, ok
}
