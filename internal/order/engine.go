package order

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"food_order/internal/model"
	"food_order/internal/notify"
	"food_order/internal/realtime"
	"food_order/internal/store"
)

// Store 是引擎依赖的持久化能力，由 store.Store 实现。
type Store interface {
	MenuItemsByIDs(ctx context.Context, ids []uint) ([]model.MenuItem, error)
	UpsertCustomer(ctx context.Context, lineUserID, displayName string) (*model.Customer, error)
	CustomerByID(ctx context.Context, id uint) (*model.Customer, error)
	CreateOrder(ctx context.Context, o *model.Order, first model.OrderStatusHistory) error
	ApplyTransition(ctx context.Context, t store.Transition) error
	OrderByID(ctx context.Context, id uint) (*model.Order, error)
	OrderByNumber(ctx context.Context, number string) (*model.Order, error)
	OrderStatus(ctx context.Context, id uint) (model.Status, error)
	History(ctx context.Context, orderID uint) ([]model.OrderStatusHistory, error)
	ListOrders(ctx context.Context, f store.ListFilter) ([]model.Order, error)
	ActiveOrders(ctx context.Context) ([]model.Order, error)
	OrdersSince(ctx context.Context, since time.Time) ([]model.Order, error)
	PopularItems(ctx context.Context, since time.Time, limit int) ([]store.PopularItem, error)
}

// Cache 订单快照缓存（cache.Orders）。
type Cache interface {
	Get(ctx context.Context, id uint) (*model.Order, bool, error)
	Set(ctx context.Context, o *model.Order, ttl time.Duration) error
	Invalidate(ctx context.Context, id uint) error
}

// Gate 营业开关。
type Gate interface {
	IsOpen(ctx context.Context) (bool, error)
}

// Notifier 通知投递队列（notify.Queue）。
type Notifier interface {
	Enqueue(to string, p notify.Payload) string
}

// Options 引擎可调参数。
type Options struct {
	CacheTTL       time.Duration
	NumberAttempts int
	Location       *time.Location // 统计按营业地时区分日、分小时
	Now            func() time.Time
	NewNumber      func(now time.Time) string
}

func DefaultOptions() Options {
	return Options{
		CacheTTL:       2 * time.Hour,
		NumberAttempts: 3,
		Location:       time.Local,
		Now:            func() time.Time { return time.Now().UTC() },
		NewNumber:      NewOrderNumber,
	}
}

// NewOrderNumber 生成 ORD<毫秒时间戳><3位随机数>；唯一性最终由唯一索引保证。
func NewOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD%d%03d", now.UnixMilli(), rand.IntN(1000))
}

// Engine 订单生命周期引擎：建单、状态流转、取消与查询。
// 每个操作只有一次原子写；缓存、推送与通知都在提交之后尽力而为，失败只记日志。
type Engine struct {
	store  Store
	cache  Cache
	gate   Gate
	pub    realtime.Publisher
	notify Notifier
	log    *slog.Logger
	opts   Options
}

func NewEngine(st Store, c Cache, g Gate, pub realtime.Publisher, n Notifier, log *slog.Logger, opts Options) *Engine {
	def := DefaultOptions()
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = def.CacheTTL
	}
	if opts.NumberAttempts <= 0 {
		opts.NumberAttempts = def.NumberAttempts
	}
	if opts.Location == nil {
		opts.Location = def.Location
	}
	if opts.Now == nil {
		opts.Now = def.Now
	}
	if opts.NewNumber == nil {
		opts.NewNumber = def.NewNumber
	}
	return &Engine{
		store:  st,
		cache:  c,
		gate:   g,
		pub:    pub,
		notify: n,
		log:    log.With("component", "order_engine"),
		opts:   opts,
	}
}

// snapshot 缓存与推送用的订单副本，不带历史。
func snapshot(o *model.Order) *model.Order {
	cp := *o
	cp.History = nil
	return &cp
}

func (e *Engine) cacheSet(ctx context.Context, o *model.Order) {
	if err := e.cache.Set(ctx, snapshot(o), e.opts.CacheTTL); err != nil {
		e.log.Warn("cache order", "order_id", o.ID, "error", err)
	}
}

func (e *Engine) cacheEvict(ctx context.Context, id uint) {
	if err := e.cache.Invalidate(ctx, id); err != nil {
		e.log.Warn("evict cached order", "order_id", id, "error", err)
	}
}

func (e *Engine) publish(ctx context.Context, topic realtime.Topic, ev realtime.Event) {
	if err := e.pub.Publish(ctx, topic, ev); err != nil {
		e.log.Warn("publish event", "topic", topic, "event", ev.EventName(), "error", err)
	}
}
