package order

import (
	"errors"
	"fmt"
	"strings"

	"food_order/internal/model"
)

var (
	ErrStoreClosed     = errors.New("store is closed, orders are not accepted")
	ErrNotFound        = errors.New("order not found")
	ErrConflict        = errors.New("order status was changed concurrently")
	ErrPersistence     = errors.New("persistence failure")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnknownCustomer = errors.New("customer not found")
	ErrReasonRequired  = errors.New("cancellation reason is required")
)

// ItemNotFoundError 菜单中不存在（或已下架）的菜品 id。
type ItemNotFoundError struct {
	IDs []uint
}

func (e *ItemNotFoundError) Error() string {
	ids := make([]string, len(e.IDs))
	for i, id := range e.IDs {
		ids[i] = fmt.Sprint(id)
	}
	return "menu items not found: " + strings.Join(ids, ", ")
}

// ItemUnavailableError 已存在但当前不可售的菜品名称。
type ItemUnavailableError struct {
	Names []string
}

func (e *ItemUnavailableError) Error() string {
	return "items not available: " + strings.Join(e.Names, ", ")
}

// InvalidTransitionError 请求的目标状态不在当前状态的允许集合内。
type InvalidTransitionError struct {
	From   model.Status
	To     model.Status
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	msg := fmt.Sprintf("cannot change status from %s to %s", e.From, e.To)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func persistence(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrPersistence, op, err)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
