package order

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"food_order/internal/model"
	"food_order/internal/store"
)

// GetOrder 按数字 id 或订单号查询。订单行与明细优先读缓存，历史始终读库。
func (e *Engine) GetOrder(ctx context.Context, identifier string) (*model.Order, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, ErrNotFound
	}

	id, numeric := parseID(identifier)
	if numeric {
		if o, ok := e.cached(ctx, id); ok {
			hist, err := e.store.History(ctx, o.ID)
			if err != nil {
				return nil, persistence("load history", err)
			}
			o.History = hist
			return o, nil
		}
	}

	var (
		o   *model.Order
		err error
	)
	if numeric {
		o, err = e.store.OrderByID(ctx, id)
	} else {
		o, err = e.store.OrderByNumber(ctx, identifier)
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, persistence("load order", err)
	}

	e.repopulate(ctx, o)
	return o, nil
}

// repopulate 回填缓存后再读一次库里的状态。流转的提交先于它的缓存刷新，
// 所以回填期间若有流转提交，这里一定能看到新状态，此时删掉刚写的旧快照。
func (e *Engine) repopulate(ctx context.Context, o *model.Order) {
	if err := e.cache.Set(ctx, snapshot(o), e.opts.CacheTTL); err != nil {
		e.log.Warn("cache order", "order_id", o.ID, "error", err)
		return
	}
	status, err := e.store.OrderStatus(ctx, o.ID)
	if err == nil && status == o.Status {
		return
	}
	if err != nil {
		e.log.Warn("recheck cached order", "order_id", o.ID, "error", err)
	}
	e.cacheEvict(ctx, o.ID)
}

func parseID(s string) (uint, bool) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}

// cached 读缓存；缓存故障只记日志并当作未命中。
func (e *Engine) cached(ctx context.Context, id uint) (*model.Order, bool) {
	o, ok, err := e.cache.Get(ctx, id)
	if err != nil {
		e.log.Warn("read cached order", "order_id", id, "error", err)
		return nil, false
	}
	return o, ok
}

// ListOrders 后台订单列表。
func (e *Engine) ListOrders(ctx context.Context, f store.ListFilter) ([]model.Order, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, invalid("unknown status %q", f.Status)
	}
	list, err := e.store.ListOrders(ctx, f)
	if err != nil {
		return nil, persistence("list orders", err)
	}
	return list, nil
}

// ActiveOrders 厨房视图。
func (e *Engine) ActiveOrders(ctx context.Context) ([]model.Order, error) {
	list, err := e.store.ActiveOrders(ctx)
	if err != nil {
		return nil, persistence("list active orders", err)
	}
	return list, nil
}
