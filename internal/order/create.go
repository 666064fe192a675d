package order

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"food_order/internal/model"
	"food_order/internal/notify"
	"food_order/internal/realtime"
	"food_order/internal/store"

	"github.com/shopspring/decimal"
)

// ItemInput 一行下单请求。
type ItemInput struct {
	MenuItemID uint `json:"menu_item_id"`
	Quantity   int  `json:"quantity"`
}

// CreateInput 下单请求。CustomerID 与 LineUserID 都为空时按匿名订单处理。
type CreateInput struct {
	CustomerID  *uint
	LineUserID  string
	DisplayName string
	Items       []ItemInput
	Notes       string
}

// CreateResult 同步返回给调用方，不等待通知投递。
type CreateResult struct {
	OrderID       uint            `json:"order_id"`
	OrderNumber   string          `json:"order_number"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	EstimatedTime int             `json:"estimated_time"`
	Status        model.Status    `json:"status"`
	Order         *model.Order    `json:"-"`
}

func (in CreateInput) validate() error {
	if len(in.Items) == 0 {
		return invalid("items must not be empty")
	}
	for i, it := range in.Items {
		if it.MenuItemID == 0 {
			return invalid("items[%d].menu_item_id is required", i)
		}
		if it.Quantity < 1 {
			return invalid("items[%d].quantity must be >= 1", i)
		}
	}
	return nil
}

// CreateOrder 建单。前置检查依次为：营业中、菜品存在、菜品可售，首个失败即返回。
func (e *Engine) CreateOrder(ctx context.Context, in CreateInput) (*CreateResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	open, err := e.gate.IsOpen(ctx)
	if err != nil {
		return nil, persistence("read store status", err)
	}
	if !open {
		return nil, ErrStoreClosed
	}

	menu, err := e.menuSnapshot(ctx, in.Items)
	if err != nil {
		return nil, err
	}

	customer, lineUserID, err := e.resolveCustomer(ctx, in)
	if err != nil {
		return nil, err
	}

	o, err := e.insert(ctx, in, menu, customer)
	if err != nil {
		return nil, err
	}

	// 以下副作用在提交之后执行，失败不回滚订单。
	e.cacheSet(ctx, o)
	e.publish(ctx, realtime.TopicAdmin, realtime.NewOrder{
		Order:   snapshot(o),
		Message: fmt.Sprintf("New order #%s - %s THB", o.OrderNumber, o.TotalAmount.StringFixed(2)),
	})
	if lineUserID != "" {
		e.notify.Enqueue(lineUserID, confirmationPayload(o))
	}

	e.log.Info("order created", "order_id", o.ID, "order_number", o.OrderNumber,
		"total", o.TotalAmount.StringFixed(2), "items", len(o.Items))

	return &CreateResult{
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		TotalAmount:   o.TotalAmount,
		EstimatedTime: o.EstimatedTime,
		Status:        o.Status,
		Order:         o,
	}, nil
}

// menuSnapshot 一次性读取涉及的菜品；之后的计算都基于这份快照。
func (e *Engine) menuSnapshot(ctx context.Context, lines []ItemInput) (map[uint]model.MenuItem, error) {
	seen := make(map[uint]struct{}, len(lines))
	ids := make([]uint, 0, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.MenuItemID]; ok {
			continue
		}
		seen[l.MenuItemID] = struct{}{}
		ids = append(ids, l.MenuItemID)
	}

	items, err := e.store.MenuItemsByIDs(ctx, ids)
	if err != nil {
		return nil, persistence("load menu items", err)
	}
	menu := make(map[uint]model.MenuItem, len(items))
	for _, it := range items {
		menu[it.ID] = it
	}

	var missing []uint
	for _, id := range ids {
		if _, ok := menu[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
		return nil, &ItemNotFoundError{IDs: missing}
	}

	var unavailable []string
	for _, id := range ids {
		if it := menu[id]; !it.Available() {
			unavailable = append(unavailable, it.Name)
		}
	}
	if len(unavailable) > 0 {
		return nil, &ItemUnavailableError{Names: unavailable}
	}
	return menu, nil
}

// resolveCustomer 返回顾客与用于通知的 LINE id。LINE id 建档走幂等 upsert。
func (e *Engine) resolveCustomer(ctx context.Context, in CreateInput) (*model.Customer, string, error) {
	lineUserID := strings.TrimSpace(in.LineUserID)
	switch {
	case in.CustomerID != nil:
		c, err := e.store.CustomerByID(ctx, *in.CustomerID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, "", ErrUnknownCustomer
		}
		if err != nil {
			return nil, "", persistence("load customer", err)
		}
		if lineUserID == "" {
			lineUserID = c.LineUserID
		}
		return c, lineUserID, nil
	case lineUserID != "":
		c, err := e.store.UpsertCustomer(ctx, lineUserID, in.DisplayName)
		if err != nil {
			return nil, "", persistence("upsert customer", err)
		}
		return c, lineUserID, nil
	default:
		return nil, "", nil
	}
}

func buildOrder(in CreateInput, menu map[uint]model.MenuItem, customer *model.Customer) *model.Order {
	o := &model.Order{
		Status:        model.StatusReceived,
		CustomerNotes: strings.TrimSpace(in.Notes),
		TotalAmount:   decimal.Zero,
		Items:         make([]model.OrderItem, 0, len(in.Items)),
	}
	if customer != nil {
		id := customer.ID
		o.CustomerID = &id
	}
	for _, l := range in.Items {
		m := menu[l.MenuItemID]
		lineTotal := m.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
		o.Items = append(o.Items, model.OrderItem{
			MenuItemID: m.ID,
			ItemName:   m.Name,
			Quantity:   l.Quantity,
			UnitPrice:  m.Price,
			TotalPrice: lineTotal,
		})
		o.TotalAmount = o.TotalAmount.Add(lineTotal)
		if m.PrepTime > o.EstimatedTime {
			o.EstimatedTime = m.PrepTime
		}
	}
	return o
}

// insert 原子写入；订单号撞唯一索引时换号重试。
func (e *Engine) insert(ctx context.Context, in CreateInput, menu map[uint]model.MenuItem, customer *model.Customer) (*model.Order, error) {
	var lastErr error
	for attempt := 0; attempt < e.opts.NumberAttempts; attempt++ {
		now := e.opts.Now()
		o := buildOrder(in, menu, customer)
		o.OrderNumber = e.opts.NewNumber(now)
		o.CreatedAt = now
		o.UpdatedAt = now

		first := model.OrderStatusHistory{
			NewStatus: model.StatusReceived,
			Notes:     "Order created",
			ChangedAt: now,
		}
		err := e.store.CreateOrder(ctx, o, first)
		if err == nil {
			o.Customer = customer
			return o, nil
		}
		lastErr = err
		if !errors.Is(err, store.ErrDuplicate) {
			break
		}
		e.log.Warn("order number collision, retrying", "order_number", o.OrderNumber, "attempt", attempt+1)
	}
	return nil, persistence("create order", lastErr)
}

func confirmationPayload(o *model.Order) notify.OrderConfirmation {
	items := make([]notify.LineItem, len(o.Items))
	for i, it := range o.Items {
		items[i] = notify.LineItem{Name: it.ItemName, Quantity: it.Quantity, TotalPrice: it.TotalPrice}
	}
	return notify.OrderConfirmation{
		OrderNumber:   o.OrderNumber,
		Items:         items,
		TotalAmount:   o.TotalAmount,
		EstimatedTime: o.EstimatedTime,
	}
}
