package store_test

import (
	"context"
	"testing"
	"time"

	"food_order/internal/model"
	"food_order/internal/store"
	"food_order/internal/store/storetest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrder(number string, item model.MenuItem, qty int, at time.Time) *model.Order {
	total := item.Price.Mul(decimal.NewFromInt(int64(qty)))
	return &model.Order{
		CreatedAt:   at,
		UpdatedAt:   at,
		OrderNumber: number,
		Status:      model.StatusReceived,
		TotalAmount: total,
		Items: []model.OrderItem{{
			MenuItemID: item.ID,
			ItemName:   item.Name,
			Quantity:   qty,
			UnitPrice:  item.Price,
			TotalPrice: total,
		}},
	}
}

func firstRow(at time.Time) model.OrderStatusHistory {
	return model.OrderStatusHistory{NewStatus: model.StatusReceived, Notes: "Order created", ChangedAt: at}
}

func TestCreateOrderAndDuplicateNumber(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()
	item := storetest.MenuItem(t, st, "Pad Thai", "45.00", 10, model.MenuAvailable)
	now := time.Now().UTC()

	o := newOrder("ORD1", item, 2, now)
	require.NoError(t, st.CreateOrder(ctx, o, firstRow(now)))
	assert.NotZero(t, o.ID)
	assert.Equal(t, o.ID, o.Items[0].OrderID)
	require.Len(t, o.History, 1)

	dup := newOrder("ORD1", item, 1, now)
	err := st.CreateOrder(ctx, dup, firstRow(now))
	assert.ErrorIs(t, err, store.ErrDuplicate)
	assert.Zero(t, dup.ID)

	var items int64
	require.NoError(t, st.DB().Model(&model.OrderItem{}).Count(&items).Error)
	assert.Equal(t, int64(1), items)
}

func TestHistoryFollowsCommitOrderDespiteClockSkew(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()
	item := storetest.MenuItem(t, st, "Pad Thai", "45.00", 10, model.MenuAvailable)
	now := time.Now().UTC()
	o := newOrder("ORD1", item, 1, now)
	require.NoError(t, st.CreateOrder(ctx, o, firstRow(now)))

	// 第二个实例的时钟慢了一分钟
	require.NoError(t, st.ApplyTransition(ctx, store.Transition{
		OrderID: o.ID, From: model.StatusReceived, To: model.StatusConfirmed, At: now.Add(time.Minute),
	}))
	require.NoError(t, st.ApplyTransition(ctx, store.Transition{
		OrderID: o.ID, From: model.StatusConfirmed, To: model.StatusPreparing, At: now.Add(-time.Minute),
	}))

	hist, err := st.History(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.Equal(t, []model.Status{model.StatusReceived, model.StatusConfirmed, model.StatusPreparing},
		[]model.Status{hist[0].NewStatus, hist[1].NewStatus, hist[2].NewStatus})

	full, err := st.OrderByID(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, full.History, 3)
	assert.Equal(t, model.StatusPreparing, full.History[2].NewStatus)

	status, err := st.OrderStatus(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPreparing, status)
	_, err = st.OrderStatus(ctx, 999)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestApplyTransitionIsConditional(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()
	item := storetest.MenuItem(t, st, "Pad Thai", "45.00", 10, model.MenuAvailable)
	now := time.Now().UTC()
	o := newOrder("ORD1", item, 1, now)
	require.NoError(t, st.CreateOrder(ctx, o, firstRow(now)))

	eta := 20
	admin := uint(3)
	require.NoError(t, st.ApplyTransition(ctx, store.Transition{
		OrderID: o.ID, From: model.StatusReceived, To: model.StatusConfirmed,
		EstimatedTime: &eta, AdminID: &admin, Note: "ok", At: now.Add(time.Second),
	}))

	err := st.ApplyTransition(ctx, store.Transition{
		OrderID: o.ID, From: model.StatusReceived, To: model.StatusCancelled, At: now.Add(2 * time.Second),
	})
	assert.ErrorIs(t, err, store.ErrStale)

	got, err := st.OrderByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, got.Status)
	assert.Equal(t, 20, got.EstimatedTime)
	require.Len(t, got.History, 2)
	assert.Equal(t, model.StatusReceived, *got.History[1].OldStatus)
	assert.Equal(t, admin, *got.History[1].ChangedBy)

	require.NoError(t, st.ApplyTransition(ctx, store.Transition{OrderID: o.ID, From: model.StatusConfirmed, To: model.StatusPreparing, At: now.Add(3 * time.Second)}))
	require.NoError(t, st.ApplyTransition(ctx, store.Transition{OrderID: o.ID, From: model.StatusPreparing, To: model.StatusReady, At: now.Add(4 * time.Second)}))
	done := now.Add(5 * time.Second)
	require.NoError(t, st.ApplyTransition(ctx, store.Transition{OrderID: o.ID, From: model.StatusReady, To: model.StatusCompleted, At: done}))

	got, err = st.OrderByNumber(ctx, "ORD1")
	require.NoError(t, err)
	require.NotNil(t, got.CompletedAt)
	assert.WithinDuration(t, done, *got.CompletedAt, time.Millisecond)

	_, err = st.OrderByID(ctx, 999)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpsertCustomerIsIdempotent(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()

	a, err := st.UpsertCustomer(ctx, "U1", "Alice")
	require.NoError(t, err)
	b, err := st.UpsertCustomer(ctx, "U1", "Alice Again")
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, "Alice", b.DisplayName)
	assert.True(t, b.IsSubscribed)

	_, err = st.UpsertCustomer(ctx, "U2", "")
	require.NoError(t, err)
	require.NoError(t, st.SetSubscribed(ctx, "U1", false))

	ids, err := st.SubscribedLineIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"U2"}, ids)

	_, err = st.CustomerByID(ctx, 404)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestActiveOrdersOrdering(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()
	item := storetest.MenuItem(t, st, "Pad Thai", "45.00", 10, model.MenuAvailable)
	base := time.Now().UTC().Add(-time.Hour)

	var ids []uint
	for i, n := range []string{"A", "B", "C"} {
		at := base.Add(time.Duration(i) * time.Minute)
		o := newOrder(n, item, 1, at)
		require.NoError(t, st.CreateOrder(ctx, o, firstRow(at)))
		ids = append(ids, o.ID)
	}
	// A 已确认，B、C 仍是 received
	require.NoError(t, st.ApplyTransition(ctx, store.Transition{OrderID: ids[0], From: model.StatusReceived, To: model.StatusConfirmed, At: base}))

	list, err := st.ActiveOrders(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []uint{ids[1], ids[2], ids[0]}, []uint{list[0].ID, list[1].ID, list[2].ID})

	n, err := st.ActiveOrdersWithItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	all, err := st.ListOrders(ctx, store.ListFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, ids[2], all[0].ID, "newest first")
}

func TestStorefrontRows(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()
	admin := uint(1)

	_, err := st.CurrentStoreStatus(ctx)
	assert.ErrorIs(t, err, store.ErrNotFound)

	openAt := time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC)
	_, err = st.OpenStore(ctx, "2026-03-10", openAt, &admin, "morning")
	require.NoError(t, err)
	cur, err := st.CurrentStoreStatus(ctx)
	require.NoError(t, err)
	assert.True(t, cur.IsOpen)

	closeAt := openAt.Add(10 * time.Hour)
	totals := store.DayTotals{TotalOrders: 4, TotalAmount: decimal.RequireFromString("321.50")}
	_, err = st.CloseStore(ctx, "2026-03-10", closeAt, &admin, "night", totals)
	require.NoError(t, err)
	cur, err = st.CurrentStoreStatus(ctx)
	require.NoError(t, err)
	assert.False(t, cur.IsOpen)

	// 同一营业日再次开店只更新开店信息
	_, err = st.OpenStore(ctx, "2026-03-10", closeAt.Add(time.Hour), &admin, "late")
	require.NoError(t, err)

	days, err := st.DailySales(ctx, 0)
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, 4, days[0].TotalOrders)
	assert.Equal(t, "321.50", days[0].TotalAmount.StringFixed(2))
	assert.Equal(t, "late", days[0].Notes)
}

func TestDayTotalsCountsServedOrders(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()
	item := storetest.MenuItem(t, st, "Pad Thai", "40.00", 10, model.MenuAvailable)
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	mk := func(n string, at time.Time, path ...model.Status) {
		o := newOrder(n, item, 1, at)
		require.NoError(t, st.CreateOrder(ctx, o, firstRow(at)))
		from := model.StatusReceived
		for _, to := range path {
			require.NoError(t, st.ApplyTransition(ctx, store.Transition{OrderID: o.ID, From: from, To: to, At: at}))
			from = to
		}
	}
	mk("A", day.Add(9*time.Hour), model.StatusConfirmed, model.StatusPreparing, model.StatusReady)
	mk("B", day.Add(10*time.Hour), model.StatusConfirmed, model.StatusPreparing, model.StatusReady, model.StatusCompleted)
	mk("C", day.Add(11*time.Hour), model.StatusCancelled)
	mk("D", day.Add(12*time.Hour))
	mk("E", day.Add(-time.Hour), model.StatusConfirmed, model.StatusPreparing, model.StatusReady)

	got, err := st.DayTotals(ctx, day, day.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, got.TotalOrders)
	assert.Equal(t, "80.00", got.TotalAmount.StringFixed(2))
}

func TestMenuRows(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()
	a := storetest.MenuItem(t, st, "B dish", "10.00", 5, model.MenuAvailable)
	storetest.MenuItem(t, st, "A dish", "12.00", 5, model.MenuOutOfStock)

	list, err := st.ListMenu(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "A dish", list[0].Name)

	upd, err := st.UpdateMenuItem(ctx, a.ID, map[string]any{"status": model.MenuUnavailable})
	require.NoError(t, err)
	assert.Equal(t, model.MenuUnavailable, upd.Status)

	_, err = st.UpdateMenuItem(ctx, 999, map[string]any{"name": "x"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	admin := uint(2)
	require.NoError(t, st.DeleteMenuItem(ctx, a.ID, &admin))
	_, err = st.MenuItemByID(ctx, a.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, st.DeleteMenuItem(ctx, a.ID, nil), store.ErrNotFound)

	items, err := st.MenuItemsByIDs(ctx, []uint{a.ID})
	require.NoError(t, err)
	assert.Empty(t, items)
}
