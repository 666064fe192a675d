package order

import (
	"context"
	"time"

	"food_order/internal/model"
	"food_order/internal/store"

	"github.com/shopspring/decimal"
)

const popularItemsLimit = 10

// Summary 统计窗口内的汇总。
type Summary struct {
	TotalOrders       int             `json:"total_orders"`
	CompletedRevenue  decimal.Decimal `json:"completed_revenue"`
	CancelledOrders   int             `json:"cancelled_orders"`
	ActiveOrders      int             `json:"active_orders"`
	AvgCompletionTime float64         `json:"avg_completion_time"` // minutes
}

// HourlyStat 今日按小时的下单量与金额。
type HourlyStat struct {
	Hour    int             `json:"hour"`
	Orders  int             `json:"orders"`
	Revenue decimal.Decimal `json:"revenue"`
}

type Stats struct {
	PeriodDays   int                 `json:"period_days"`
	Since        time.Time           `json:"since"`
	Summary      Summary             `json:"summary"`
	PopularItems []store.PopularItem `json:"popular_items"`
	HourlyStats  []HourlyStat        `json:"hourly_stats"`
}

// Stats 统计从 periodDays 天前的当地零点至今的订单。
func (e *Engine) Stats(ctx context.Context, periodDays int) (*Stats, error) {
	if periodDays < 0 {
		return nil, invalid("period must be >= 0")
	}
	now := e.opts.Now().In(e.opts.Location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, e.opts.Location)
	since := today.AddDate(0, 0, -periodDays)

	orders, err := e.store.OrdersSince(ctx, since)
	if err != nil {
		return nil, persistence("load orders for stats", err)
	}
	popular, err := e.store.PopularItems(ctx, since, popularItemsLimit)
	if err != nil {
		return nil, persistence("load popular items", err)
	}
	if popular == nil {
		popular = []store.PopularItem{}
	}

	return &Stats{
		PeriodDays:   periodDays,
		Since:        since,
		Summary:      summarize(orders),
		PopularItems: popular,
		HourlyStats:  hourly(orders, today, e.opts.Location),
	}, nil
}

func summarize(orders []model.Order) Summary {
	s := Summary{CompletedRevenue: decimal.Zero}
	var minutes float64
	var timed int
	for _, o := range orders {
		s.TotalOrders++
		switch o.Status {
		case model.StatusCompleted:
			s.CompletedRevenue = s.CompletedRevenue.Add(o.TotalAmount)
			if o.CompletedAt != nil {
				minutes += o.CompletedAt.Sub(o.CreatedAt).Minutes()
				timed++
			}
		case model.StatusCancelled:
			s.CancelledOrders++
		default:
			s.ActiveOrders++
		}
	}
	if timed > 0 {
		s.AvgCompletionTime = minutes / float64(timed)
	}
	return s
}

// hourly 只统计 today 之后创建的订单，按当地钟点分桶，没有订单的小时不输出。
func hourly(orders []model.Order, today time.Time, loc *time.Location) []HourlyStat {
	var buckets [24]*HourlyStat
	for _, o := range orders {
		t := o.CreatedAt.In(loc)
		if t.Before(today) {
			continue
		}
		h := t.Hour()
		if buckets[h] == nil {
			buckets[h] = &HourlyStat{Hour: h, Revenue: decimal.Zero}
		}
		buckets[h].Orders++
		buckets[h].Revenue = buckets[h].Revenue.Add(o.TotalAmount)
	}
	out := make([]HourlyStat, 0, 24)
	for _, b := range buckets {
		if b != nil {
			out = append(out, *b)
		}
	}
	return out
}
