// Package menu 菜单维护与顾客端菜单缓存。
package menu

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"food_order/internal/cache"
	"food_order/internal/model"
	"food_order/internal/notify"
	"food_order/internal/realtime"
	"food_order/internal/store"
	rediskey "food_order/pkg/redis"

	"github.com/shopspring/decimal"
)

const listTTL = 30 * time.Minute

var (
	ErrNotFound     = errors.New("menu item not found")
	ErrInvalidInput = errors.New("invalid menu input")
	ErrSameStatus   = errors.New("menu item already has this status")
	ErrNoChanges    = errors.New("nothing to update")
	ErrInUse        = errors.New("menu item is part of an active order")
)

// Repo 菜单持久化，由 store.Store 实现。
type Repo interface {
	ListMenu(ctx context.Context) ([]model.MenuItem, error)
	MenuItemByID(ctx context.Context, id uint) (*model.MenuItem, error)
	CreateMenuItem(ctx context.Context, m *model.MenuItem) error
	UpdateMenuItem(ctx context.Context, id uint, fields map[string]any) (*model.MenuItem, error)
	DeleteMenuItem(ctx context.Context, id uint, adminID *uint) error
	ActiveOrdersWithItem(ctx context.Context, menuItemID uint) (int64, error)
	AdminMenu(ctx context.Context, f store.MenuFilter) ([]model.MenuItem, int64, error)
	SetMenuStatuses(ctx context.Context, ids []uint, status model.MenuStatus, adminID *uint) ([]model.MenuItem, error)
	SubscribedLineIDs(ctx context.Context) ([]string, error)
}

type Broadcaster interface {
	Broadcast(users []string, p notify.Payload) int
}

// Input 新建时 Name、Price 必填；更新时只处理非空字段。
type Input struct {
	Name        *string           `json:"name"`
	Description *string           `json:"description"`
	Category    *string           `json:"category"`
	Price       *decimal.Decimal  `json:"price"`
	PrepTime    *int              `json:"preparation_time"`
	Status      *model.MenuStatus `json:"status"`
}

// Page 后台菜单分页结果。
type Page struct {
	Items   []model.MenuItem `json:"items"`
	Total   int64            `json:"total"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
	HasMore bool             `json:"has_more"`
}

// BulkChange 批量改状态中的一项。
type BulkChange struct {
	ID        uint             `json:"id"`
	Name      string           `json:"name"`
	OldStatus model.MenuStatus `json:"old_status"`
}

type BulkResult struct {
	UpdatedCount int              `json:"updated_count"`
	Items        []BulkChange     `json:"items"`
	NewStatus    model.MenuStatus `json:"new_status"`
}

type Service struct {
	repo  Repo
	kv    cache.KV
	pub   realtime.Publisher
	bcast Broadcaster
	log   *slog.Logger
}

func New(repo Repo, kv cache.KV, pub realtime.Publisher, bcast Broadcaster, log *slog.Logger) *Service {
	return &Service{repo: repo, kv: kv, pub: pub, bcast: bcast, log: log.With("component", "menu")}
}

// List 顾客端菜单，缓存 30 分钟。
func (s *Service) List(ctx context.Context) ([]model.MenuItem, error) {
	var list []model.MenuItem
	ok, err := cache.GetJSON(ctx, s.kv, rediskey.MenuAllKey, &list)
	if err != nil {
		s.log.Warn("read cached menu", "error", err)
	}
	if ok {
		return list, nil
	}

	list, err = s.repo.ListMenu(ctx)
	if err != nil {
		return nil, fmt.Errorf("list menu: %w", err)
	}
	if list == nil {
		list = []model.MenuItem{}
	}
	if err := cache.SetJSON(ctx, s.kv, rediskey.MenuAllKey, list, listTTL); err != nil {
		s.log.Warn("cache menu", "error", err)
	}
	return list, nil
}

// AdminList 后台菜单，含全部供应状态，不走缓存。
func (s *Service) AdminList(ctx context.Context, f store.MenuFilter) (*Page, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, f.Status)
	}
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	items, total, err := s.repo.AdminMenu(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("admin menu: %w", err)
	}
	if items == nil {
		items = []model.MenuItem{}
	}
	return &Page{
		Items:   items,
		Total:   total,
		Limit:   f.Limit,
		Offset:  f.Offset,
		HasMore: int64(f.Offset+f.Limit) < total,
	}, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*model.MenuItem, error) {
	m, err := s.repo.MenuItemByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load menu item: %w", err)
	}
	return m, nil
}

func (s *Service) Create(ctx context.Context, in Input, adminID *uint) (*model.MenuItem, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if in.Price == nil {
		return nil, fmt.Errorf("%w: price is required", ErrInvalidInput)
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	m := &model.MenuItem{
		Name:      strings.TrimSpace(*in.Name),
		Price:     *in.Price,
		Status:    model.MenuAvailable,
		PrepTime:  10,
		UpdatedBy: adminID,
	}
	if in.Description != nil {
		m.Description = *in.Description
	}
	if in.Category != nil {
		m.Category = *in.Category
	}
	if in.PrepTime != nil {
		m.PrepTime = *in.PrepTime
	}
	if in.Status != nil {
		m.Status = *in.Status
	}
	if err := s.repo.CreateMenuItem(ctx, m); err != nil {
		return nil, fmt.Errorf("create menu item: %w", err)
	}

	s.changed(ctx, realtime.MenuUpdated{Action: realtime.MenuCreated, Item: *m})
	s.log.Info("menu item created", "menu_item_id", m.ID, "name", m.Name)
	return m, nil
}

func (s *Service) Update(ctx context.Context, id uint, in Input, adminID *uint) (*model.MenuItem, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	cur, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if in.Name != nil {
		fields["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		fields["description"] = *in.Description
	}
	if in.Category != nil {
		fields["category"] = *in.Category
	}
	if in.Price != nil {
		fields["price"] = *in.Price
	}
	if in.PrepTime != nil {
		fields["prep_time"] = *in.PrepTime
	}
	if in.Status != nil {
		fields["status"] = *in.Status
	}
	if len(fields) == 0 {
		return nil, ErrNoChanges
	}
	if adminID != nil {
		fields["updated_by"] = *adminID
	}

	m, err := s.repo.UpdateMenuItem(ctx, id, fields)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update menu item: %w", err)
	}

	s.changed(ctx, realtime.MenuUpdated{Action: realtime.MenuChanged, Item: *m, OldStatus: cur.Status})
	s.notifyUnavailable(ctx, cur.Status, *m, "")
	return m, nil
}

// SetStatus 改供应状态；与当前状态相同返回 ErrSameStatus。
func (s *Service) SetStatus(ctx context.Context, id uint, status model.MenuStatus, reason string, adminID *uint) (*model.MenuItem, model.MenuStatus, error) {
	if !status.Valid() {
		return nil, "", fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	cur, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if cur.Status == status {
		return nil, "", ErrSameStatus
	}

	fields := map[string]any{"status": status}
	if adminID != nil {
		fields["updated_by"] = *adminID
	}
	m, err := s.repo.UpdateMenuItem(ctx, id, fields)
	if err != nil {
		return nil, "", fmt.Errorf("update menu status: %w", err)
	}

	reason = strings.TrimSpace(reason)
	s.changed(ctx, realtime.MenuUpdated{
		Action:    realtime.MenuStatusChanged,
		Item:      *m,
		OldStatus: cur.Status,
		Reason:    reason,
	})
	s.notifyUnavailable(ctx, cur.Status, *m, reason)
	s.log.Info("menu status changed", "menu_item_id", id, "from", cur.Status, "to", status)
	return m, cur.Status, nil
}

// BulkSetStatus 一次修改多个菜品的供应状态。不存在的 id 被忽略，全部不存在返回 ErrNotFound。
func (s *Service) BulkSetStatus(ctx context.Context, ids []uint, status model.MenuStatus, reason string, adminID *uint) (*BulkResult, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: item_ids is required", ErrInvalidInput)
	}
	for _, id := range ids {
		if id == 0 {
			return nil, fmt.Errorf("%w: invalid item id", ErrInvalidInput)
		}
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	reason = strings.TrimSpace(reason)
	if len(reason) > 300 {
		return nil, fmt.Errorf("%w: reason too long", ErrInvalidInput)
	}

	before, err := s.repo.SetMenuStatuses(ctx, ids, status, adminID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("bulk update menu status: %w", err)
	}

	res := &BulkResult{UpdatedCount: len(before), NewStatus: status}
	ev := realtime.MenuBulkUpdated{NewStatus: status, Reason: reason}
	for _, m := range before {
		res.Items = append(res.Items, BulkChange{ID: m.ID, Name: m.Name, OldStatus: m.Status})
		ev.ItemIDs = append(ev.ItemIDs, m.ID)
		ev.Items = append(ev.Items, m.Name)
	}
	ev.Message = fmt.Sprintf("%d items set to %s", len(before), status)

	if err := s.kv.DeletePattern(ctx, "menu:*"); err != nil {
		s.log.Warn("invalidate menu cache", "error", err)
	}
	if err := s.pub.Publish(ctx, realtime.TopicAll, ev); err != nil {
		s.log.Warn("publish menu update", "error", err)
	}
	for _, m := range before {
		after := m
		after.Status = status
		s.notifyUnavailable(ctx, m.Status, after, reason)
	}
	s.log.Info("menu status bulk changed", "count", len(before), "to", status)
	return res, nil
}

// Delete 软删除；仍在进行中订单里的菜品不允许删除。
func (s *Service) Delete(ctx context.Context, id uint, adminID *uint) error {
	cur, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	n, err := s.repo.ActiveOrdersWithItem(ctx, id)
	if err != nil {
		return fmt.Errorf("check active orders: %w", err)
	}
	if n > 0 {
		return ErrInUse
	}
	if err := s.repo.DeleteMenuItem(ctx, id, adminID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete menu item: %w", err)
	}
	s.changed(ctx, realtime.MenuUpdated{Action: realtime.MenuDeleted, Item: *cur})
	s.log.Info("menu item deleted", "menu_item_id", id)
	return nil
}

func (in Input) validate() error {
	if in.Price != nil && in.Price.IsNegative() {
		return fmt.Errorf("%w: price must be >= 0", ErrInvalidInput)
	}
	if in.PrepTime != nil && *in.PrepTime < 0 {
		return fmt.Errorf("%w: preparation_time must be >= 0", ErrInvalidInput)
	}
	if in.Status != nil && !in.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *in.Status)
	}
	if in.Name != nil && len(*in.Name) > 128 {
		return fmt.Errorf("%w: name too long", ErrInvalidInput)
	}
	return nil
}

// changed 清菜单缓存并推送；状态变化对所有人可见，其他变更只推后台。
func (s *Service) changed(ctx context.Context, ev realtime.MenuUpdated) {
	if err := s.kv.DeletePattern(ctx, "menu:*"); err != nil {
		s.log.Warn("invalidate menu cache", "error", err)
	}
	topic := realtime.TopicAdmin
	if ev.Action == realtime.MenuStatusChanged {
		topic = realtime.TopicAll
	}
	if err := s.pub.Publish(ctx, topic, ev); err != nil {
		s.log.Warn("publish menu update", "error", err)
	}
}

// notifyUnavailable 菜品从可售变为不可售时通知关注用户。
func (s *Service) notifyUnavailable(ctx context.Context, from model.MenuStatus, m model.MenuItem, reason string) {
	if from != model.MenuAvailable || m.Available() {
		return
	}
	users, err := s.repo.SubscribedLineIDs(ctx)
	if err != nil {
		s.log.Warn("load subscribers", "error", err)
		return
	}
	s.bcast.Broadcast(users, notify.MenuUpdate{
		ItemName:  m.Name,
		Status:    string(m.Status),
		Available: false,
		Reason:    reason,
	})
}
