// Package storefront 管理营业开关：读路径走缓存，开/关店写库后刷新缓存并广播。
package storefront

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
)

var (
	ErrAlreadyOpen   = errors.New("store is already open")
	ErrAlreadyClosed = errors.New("store is already closed")
	ErrInvalidPeriod = errors.New("period must be between 0 and 365 days")
)

// Repo 营业状态的持久化，由 store.Store 实现。
type Repo interface {
	CurrentStoreStatus(ctx context.Context) (*model.StoreStatus, error)
	OpenStore(ctx context.Context, date string, at time.Time, adminID *uint, notes string) (*model.StoreStatus, error)
	CloseStore(ctx context.Context, date string, at time.Time, adminID *uint, notes string, totals store.DayTotals) (*model.StoreStatus, error)
	DayTotals(ctx context.Context, from, to time.Time) (store.DayTotals, error)
	DailySales(ctx context.Context, limit int) ([]model.DailySales, error)
	SalesSince(ctx context.Context, from string) (store.PeriodTotals, error)
	SubscribedLineIDs(ctx context.Context) ([]string, error)
}

// Broadcaster 向全部关注用户发通知（notify.Queue）。
type Broadcaster interface {
	Broadcast(users []string, p notify.Payload) int
}

// Status 对外的营业状态；Summary 仅在关店时附带。
type Status struct {
	model.StoreStatus
	Summary *store.DayTotals `json:"daily_summary,omitempty"`
}

// Stats 后台营业概览：最近 period 天的营业日汇总、今日实时营业额、当前状态。
type Stats struct {
	PeriodDays int                `json:"period_days"`
	Period     store.PeriodTotals `json:"period_stats"`
	Today      store.DayTotals    `json:"today_stats"`
	Current    *Status            `json:"current_status"`
}

type Service struct {
	repo  Repo
	kv    cache.KV
	pub   realtime.Publisher
	bcast Broadcaster
	log   *slog.Logger
	loc   *time.Location
	now   func() time.Time
}

func New(repo Repo, kv cache.KV, pub realtime.Publisher, bcast Broadcaster, log *slog.Logger, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		repo:  repo,
		kv:    kv,
		pub:   pub,
		bcast: bcast,
		log:   log.With("component", "storefront"),
		loc:   loc,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// IsOpen 下单前置检查用，每次下单都会调用。
func (s *Service) IsOpen(ctx context.Context) (bool, error) {
	st, err := s.Status(ctx)
	if err != nil {
		return false, err
	}
	return st.IsOpen, nil
}

// Status 优先读缓存；未命中时读库并回填。从未开店视为关店。
func (s *Service) Status(ctx context.Context) (*Status, error) {
	var st Status
	ok, err := cache.GetJSON(ctx, s.kv, rediskey.StoreStatusKey, &st)
	if err != nil {
		s.log.Warn("read cached store status", "error", err)
	}
	if ok {
		return &st, nil
	}

	cur, err := s.repo.CurrentStoreStatus(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		st = Status{}
	case err != nil:
		return nil, fmt.Errorf("load store status: %w", err)
	default:
		st = Status{StoreStatus: *cur}
	}
	s.cacheStatus(ctx, &st)
	return &st, nil
}

// Open 开店。重复开店返回 ErrAlreadyOpen。
func (s *Service) Open(ctx context.Context, adminID *uint, notes string) (*Status, error) {
	cur, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	if cur.IsOpen {
		return nil, ErrAlreadyOpen
	}

	now := s.now()
	notes = strings.TrimSpace(notes)
	row, err := s.repo.OpenStore(ctx, s.businessDate(now), now, adminID, notes)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	st := &Status{StoreStatus: *row}
	s.after(ctx, st, "store is now open")
	s.log.Info("store opened", "admin_id", adminID)
	return st, nil
}

// Close 关店，同时写入当日营业额。
func (s *Service) Close(ctx context.Context, adminID *uint, notes string) (*Status, error) {
	cur, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	if !cur.IsOpen {
		return nil, ErrAlreadyClosed
	}

	now := s.now()
	from, to := s.dayWindow(now)
	totals, err := s.repo.DayTotals(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("daily totals: %w", err)
	}

	notes = strings.TrimSpace(notes)
	row, err := s.repo.CloseStore(ctx, s.businessDate(now), now, adminID, notes, totals)
	if err != nil {
		return nil, fmt.Errorf("close store: %w", err)
	}
	st := &Status{StoreStatus: *row, Summary: &totals}
	s.after(ctx, st, fmt.Sprintf("store is now closed - today's sales: %s THB (%d orders)",
		totals.TotalAmount.StringFixed(2), totals.TotalOrders))
	s.log.Info("store closed", "admin_id", adminID,
		"total_orders", totals.TotalOrders, "total_amount", totals.TotalAmount.StringFixed(2))
	return st, nil
}

// DailySales 最近 limit 个营业日。
func (s *Service) DailySales(ctx context.Context, limit int) ([]model.DailySales, error) {
	list, err := s.repo.DailySales(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("daily sales: %w", err)
	}
	return list, nil
}

// Stats 汇总最近 periodDays 天（含今天）。今日数据实时从订单表统计，不等关店。
func (s *Service) Stats(ctx context.Context, periodDays int) (*Stats, error) {
	if periodDays < 0 || periodDays > 365 {
		return nil, ErrInvalidPeriod
	}
	now := s.now()
	period, err := s.repo.SalesSince(ctx, s.businessDate(now.AddDate(0, 0, -periodDays)))
	if err != nil {
		return nil, fmt.Errorf("period sales: %w", err)
	}
	from, to := s.dayWindow(now)
	today, err := s.repo.DayTotals(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("daily totals: %w", err)
	}
	cur, err := s.Status(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{PeriodDays: periodDays, Period: period, Today: today, Current: cur}, nil
}

// current 开关店的重复检查以数据库为准。
func (s *Service) current(ctx context.Context) (model.StoreStatus, error) {
	cur, err := s.repo.CurrentStoreStatus(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return model.StoreStatus{}, nil
	}
	if err != nil {
		return model.StoreStatus{}, fmt.Errorf("load store status: %w", err)
	}
	return *cur, nil
}

func (s *Service) after(ctx context.Context, st *Status, msg string) {
	s.cacheStatus(ctx, st)

	if err := s.pub.Publish(ctx, realtime.TopicAdmin, realtime.StoreStatusChanged{
		IsOpen:  st.IsOpen,
		Status:  &st.StoreStatus,
		Message: msg,
	}); err != nil {
		s.log.Warn("publish store status", "error", err)
	}

	users, err := s.repo.SubscribedLineIDs(ctx)
	if err != nil {
		s.log.Warn("load subscribers", "error", err)
		return
	}
	n := s.bcast.Broadcast(users, notify.StoreStatus{IsOpen: st.IsOpen, Note: st.Notes, At: st.CreatedAt})
	s.log.Debug("store status broadcast queued", "recipients", n)
}

func (s *Service) cacheStatus(ctx context.Context, st *Status) {
	// 营业状态不设过期，开/关店时覆盖。
	if err := cache.SetJSON(ctx, s.kv, rediskey.StoreStatusKey, st, 0); err != nil {
		s.log.Warn("cache store status", "error", err)
	}
}

func (s *Service) businessDate(t time.Time) string {
	return t.In(s.loc).Format(time.DateOnly)
}

func (s *Service) dayWindow(t time.Time) (time.Time, time.Time) {
	l := t.In(s.loc)
	from := time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, s.loc)
	return from, from.AddDate(0, 0, 1)
}
