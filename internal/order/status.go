package order

import (
	"context"
	"errors"
	"strings"

	"food_order/internal/model"
	"food_order/internal/notify"
	"food_order/internal/realtime"
	"food_order/internal/store"
)

// StatusInput 后台改状态请求。
type StatusInput struct {
	OrderID       uint
	Status        model.Status
	Note          string
	EstimatedTime *int // 非空时覆盖预计时间
	AdminID       *uint
}

// StatusResult 流转后的订单（不含历史）以及前后状态。
type StatusResult struct {
	Order     *model.Order `json:"order"`
	OldStatus model.Status `json:"old_status"`
	NewStatus model.Status `json:"new_status"`
}

// UpdateStatus 将订单推进到 in.Status。当前状态以数据库为准，从不读缓存。
func (e *Engine) UpdateStatus(ctx context.Context, in StatusInput) (*StatusResult, error) {
	if !in.Status.Valid() {
		return nil, invalid("unknown status %q", in.Status)
	}
	if in.EstimatedTime != nil && *in.EstimatedTime < 0 {
		return nil, invalid("estimated_time must be >= 0")
	}
	return e.transition(ctx, in, false, nil)
}

// CancelOrder 取消订单。只允许在出餐之前取消，且必须给出原因。
func (e *Engine) CancelOrder(ctx context.Context, orderID uint, reason string, adminID *uint) (*StatusResult, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}

	return e.transition(ctx, StatusInput{
		OrderID: orderID,
		Status:  model.StatusCancelled,
		Note:    reason,
		AdminID: adminID,
	}, true, func(from model.Status) error {
		if !Cancellable(from) {
			return &InvalidTransitionError{
				From:   from,
				To:     model.StatusCancelled,
				Reason: "order can no longer be cancelled",
			}
		}
		return nil
	})
}

func (e *Engine) load(ctx context.Context, id uint) (*model.Order, error) {
	o, err := e.store.OrderByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, persistence("load order", err)
	}
	return o, nil
}

// transition 读权威状态、校验、条件写入，然后做提交后的副作用。
// evict 为 true 时删除缓存而不是刷新（取消后订单不再被频繁读取）。
// check 与条件更新基于同一次读取，读到的状态就是 UPDATE 的 WHERE 条件。
func (e *Engine) transition(ctx context.Context, in StatusInput, evict bool, check func(from model.Status) error) (*StatusResult, error) {
	cur, err := e.load(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	from := cur.Status
	if check != nil {
		if err := check(from); err != nil {
			return nil, err
		}
	}
	if !CanTransition(from, in.Status) {
		return nil, &InvalidTransitionError{From: from, To: in.Status}
	}

	now := e.opts.Now()
	err = e.store.ApplyTransition(ctx, store.Transition{
		OrderID:       cur.ID,
		From:          from,
		To:            in.Status,
		EstimatedTime: in.EstimatedTime,
		AdminID:       in.AdminID,
		Note:          strings.TrimSpace(in.Note),
		At:            now,
	})
	if errors.Is(err, store.ErrStale) {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, persistence("apply transition", err)
	}

	// 用提交的值更新内存副本，不再回读数据库。
	o := snapshot(cur)
	o.Status = in.Status
	o.UpdatedAt = now
	if in.EstimatedTime != nil {
		o.EstimatedTime = *in.EstimatedTime
	}
	if in.Status == model.StatusCompleted {
		t := now
		o.CompletedAt = &t
	}

	e.afterTransition(ctx, o, from, in.Note, evict)

	e.log.Info("order status changed", "order_id", o.ID, "order_number", o.OrderNumber,
		"from", from, "to", o.Status)

	return &StatusResult{Order: o, OldStatus: from, NewStatus: o.Status}, nil
}

func (e *Engine) afterTransition(ctx context.Context, o *model.Order, from model.Status, note string, evict bool) {
	if evict {
		e.cacheEvict(ctx, o.ID)
	} else {
		e.refreshCache(ctx, o)
	}

	urgent := o.Status == model.StatusReady
	msg := statusMessage(o.Status)
	e.publish(ctx, realtime.TopicAll, realtime.StatusUpdated{
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		OldStatus:     from,
		NewStatus:     o.Status,
		EstimatedTime: o.EstimatedTime,
		Urgent:        urgent,
		Message:       msg,
	})
	if o.CustomerID != nil {
		e.publish(ctx, realtime.CustomerTopic(*o.CustomerID), realtime.CustomerOrderUpdate{
			OrderID:       o.ID,
			Status:        o.Status,
			EstimatedTime: o.EstimatedTime,
			Urgent:        urgent,
			Message:       msg,
		})
	}

	if to := o.LineUserID(); to != "" {
		e.notify.Enqueue(to, notify.StatusUpdate{
			OrderNumber:   o.OrderNumber,
			Status:        string(o.Status),
			EstimatedTime: o.EstimatedTime,
			Note:          strings.TrimSpace(note),
			Urgent:        urgent,
		})
	}
}

// refreshCache 缓存里有这条订单就覆盖，没有就确保删除，避免回填一份半成品。
func (e *Engine) refreshCache(ctx context.Context, o *model.Order) {
	_, ok, err := e.cache.Get(ctx, o.ID)
	if err != nil || !ok {
		e.cacheEvict(ctx, o.ID)
		return
	}
	e.cacheSet(ctx, o)
}
