package router

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"food_order/internal/auth"
	"food_order/internal/cache"
	"food_order/internal/menu"
	"food_order/internal/model"
	"food_order/internal/notify"
	"food_order/internal/order"
	"food_order/internal/realtime"
	"food_order/internal/store"
	"food_order/internal/store/storetest"
	"food_order/internal/storefront"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopChannel struct{}

func (nopChannel) SendOrderConfirmation(context.Context, string, notify.OrderConfirmation) error {
	return nil
}
func (nopChannel) SendOrderStatusUpdate(context.Context, string, notify.StatusUpdate) error {
	return nil
}
func (nopChannel) SendMenuUpdate(context.Context, string, notify.MenuUpdate) error { return nil }
func (nopChannel) SendStoreStatus(context.Context, string, notify.StoreStatus) error {
	return nil
}

const lineSecret = "line-secret"

type app struct {
	t     *testing.T
	st    *store.Store
	r     *gin.Engine
	token string
}

func newApp(t *testing.T) *app {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := storetest.New(t)
	kv, err := cache.NewMemory(64)
	require.NoError(t, err)
	hub := realtime.NewHub(16)
	q := notify.NewQueue(nopChannel{}, log, notify.Options{Pause: time.Millisecond})
	t.Cleanup(q.Close)

	front := storefront.New(st, kv, hub, q, log, time.UTC)
	engine := order.NewEngine(st, cache.NewOrders(kv), front, hub, q, log, order.Options{Location: time.UTC})
	authSvc := auth.NewService(st, []byte("secret"), time.Hour)
	require.NoError(t, authSvc.Seed(context.Background(), "admin", "pw"))

	r := gin.New()
	Setup(r, Deps{
		Engine:     engine,
		Menu:       menu.New(st, kv, hub, q, log),
		Storefront: front,
		Auth:       authSvc,
		Followers:  st,
		Hub:        hub,
		Queue:      q,
		LineSecret: lineSecret,
		Log:        log,
	})
	return &app{t: t, st: st, r: r}
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (a *app) do(method, path string, body any, header map[string]string) (int, envelope) {
	a.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(a.t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	a.r.ServeHTTP(w, req)
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w.Code, env
}

func (a *app) admin(method, path string, body any) (int, envelope) {
	a.t.Helper()
	if a.token == "" {
		code, env := a.do(http.MethodPost, "/api/admin/login", gin.H{"username": "admin", "password": "pw"}, nil)
		require.Equal(a.t, http.StatusOK, code)
		var res struct {
			Token string `json:"token"`
		}
		require.NoError(a.t, json.Unmarshal(env.Data, &res))
		a.token = res.Token
	}
	return a.do(method, path, body, map[string]string{"Authorization": "Bearer " + a.token})
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestOrderFlowOverHTTP(t *testing.T) {
	a := newApp(t)

	code, env := a.admin(http.MethodPost, "/api/admin/menu", gin.H{"name": "Pad Thai", "price": "45.50", "preparation_time": 12})
	require.Equal(t, http.StatusCreated, code)
	item := decode[model.MenuItem](t, env.Data)

	orderBody := gin.H{"line_user_id": "U1", "items": []gin.H{{"menu_item_id": item.ID, "quantity": 2}}}
	code, env = a.do(http.MethodPost, "/api/orders", orderBody, nil)
	assert.Equal(t, http.StatusBadRequest, code, "store closed")
	assert.Contains(t, env.Msg, "closed")

	code, _ = a.admin(http.MethodPost, "/api/admin/store/open", nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = a.admin(http.MethodPost, "/api/admin/store/open", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = a.do(http.MethodPost, "/api/orders", orderBody, nil)
	require.Equal(t, http.StatusCreated, code)
	created := decode[order.CreateResult](t, env.Data)
	assert.Equal(t, "91.00", created.TotalAmount.StringFixed(2))
	assert.Equal(t, 12, created.EstimatedTime)

	code, env = a.do(http.MethodGet, "/api/orders/"+created.OrderNumber, nil, nil)
	require.Equal(t, http.StatusOK, code)
	got := decode[model.Order](t, env.Data)
	assert.Len(t, got.History, 1)

	statusPath := "/api/admin/orders/" + itoa(created.OrderID) + "/status"
	code, _ = a.admin(http.MethodPut, statusPath, gin.H{"status": "ready"})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = a.admin(http.MethodPut, statusPath, gin.H{"status": "confirmed", "notes": "on it"})
	require.Equal(t, http.StatusOK, code)

	cancelPath := "/api/admin/orders/" + itoa(created.OrderID) + "/cancel"
	code, _ = a.admin(http.MethodPost, cancelPath, gin.H{})
	assert.Equal(t, http.StatusBadRequest, code)
	code, env = a.admin(http.MethodPost, cancelPath, gin.H{"reason": "out of noodles"})
	require.Equal(t, http.StatusOK, code)
	res := decode[order.StatusResult](t, env.Data)
	assert.Equal(t, model.StatusConfirmed, res.OldStatus)
	assert.Equal(t, model.StatusCancelled, res.NewStatus)

	code, env = a.do(http.MethodGet, "/api/orders/"+itoa(created.OrderID), nil, nil)
	require.Equal(t, http.StatusOK, code)
	got = decode[model.Order](t, env.Data)
	require.Len(t, got.History, 3)
	assert.Equal(t, model.StatusCancelled, got.Status)

	code, _ = a.do(http.MethodGet, "/api/orders/999", nil, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env = a.admin(http.MethodGet, "/api/admin/orders/stats?period=0", nil)
	require.Equal(t, http.StatusOK, code)
	stats := decode[order.Stats](t, env.Data)
	assert.Equal(t, 1, stats.Summary.CancelledOrders)

	code, _ = a.admin(http.MethodGet, "/api/admin/orders/stats?period=400", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = a.admin(http.MethodGet, "/api/admin/orders?status=cancelled", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]model.Order](t, env.Data), 1)

	code, _ = a.admin(http.MethodPost, "/api/admin/store/close", gin.H{"notes": "done"})
	require.Equal(t, http.StatusOK, code)
	code, env = a.admin(http.MethodGet, "/api/admin/store/daily-sales", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]model.DailySales](t, env.Data), 1)
}

func TestOrderValidationOverHTTP(t *testing.T) {
	a := newApp(t)
	code, _ := a.admin(http.MethodPost, "/api/admin/store/open", nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = a.do(http.MethodPost, "/api/orders", gin.H{"items": []gin.H{}}, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env := a.do(http.MethodPost, "/api/orders", gin.H{"items": []gin.H{{"menu_item_id": 77, "quantity": 1}}}, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	missing := decode[struct {
		IDs []uint `json:"missing_ids"`
	}](t, env.Data)
	assert.Equal(t, []uint{77}, missing.IDs)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	a := newApp(t)
	for _, path := range []string{"/api/admin/orders", "/api/admin/orders/active", "/api/admin/profile", "/api/admin/notifications/stats"} {
		code, env := a.do(http.MethodGet, path, nil, nil)
		assert.Equal(t, http.StatusUnauthorized, code, path)
		assert.Equal(t, 401, env.Code)
	}

	code, _ := a.do(http.MethodPost, "/api/admin/login", gin.H{"username": "admin", "password": "bad"}, nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env := a.admin(http.MethodGet, "/api/admin/profile", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "admin", decode[auth.Principal](t, env.Data).Username)

	code, _ = a.admin(http.MethodGet, "/api/admin/notifications/stats", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestMenuStatusOverHTTP(t *testing.T) {
	a := newApp(t)
	code, env := a.admin(http.MethodPost, "/api/admin/menu", gin.H{"name": "Larb", "price": "60"})
	require.Equal(t, http.StatusCreated, code)
	item := decode[model.MenuItem](t, env.Data)
	path := "/api/admin/menu/" + itoa(item.ID)

	code, _ = a.admin(http.MethodPut, path+"/status", gin.H{"status": "available"})
	assert.Equal(t, http.StatusBadRequest, code, "same status")
	code, _ = a.admin(http.MethodPut, path+"/status", gin.H{"status": "out_of_stock", "reason": "sold out"})
	require.Equal(t, http.StatusOK, code)

	code, env = a.do(http.MethodGet, "/api/menu", nil, nil)
	require.Equal(t, http.StatusOK, code)
	list := decode[[]model.MenuItem](t, env.Data)
	require.Len(t, list, 1)
	assert.Equal(t, model.MenuOutOfStock, list[0].Status)

	code, _ = a.admin(http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = a.do(http.MethodGet, "/api/menu/"+itoa(item.ID), nil, nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = a.do(http.MethodGet, "/api/menu/abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestAdminMenuAndStoreStatsOverHTTP(t *testing.T) {
	a := newApp(t)
	var ids []uint
	for _, name := range []string{"Green Curry", "Red Curry", "Sticky Rice"} {
		code, env := a.admin(http.MethodPost, "/api/admin/menu", gin.H{"name": name, "price": "40"})
		require.Equal(t, http.StatusCreated, code)
		ids = append(ids, decode[model.MenuItem](t, env.Data).ID)
	}

	code, env := a.admin(http.MethodPut, "/api/admin/menu/bulk-update", gin.H{"item_ids": ids[:2], "status": "out_of_stock", "reason": "no paste"})
	require.Equal(t, http.StatusOK, code)
	bulk := decode[menu.BulkResult](t, env.Data)
	assert.Equal(t, 2, bulk.UpdatedCount)

	code, _ = a.admin(http.MethodPut, "/api/admin/menu/bulk-update", gin.H{"item_ids": []uint{}, "status": "available"})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = a.admin(http.MethodPut, "/api/admin/menu/bulk-update", gin.H{"item_ids": []uint{404}, "status": "available"})
	assert.Equal(t, http.StatusNotFound, code)

	code, env = a.admin(http.MethodGet, "/api/admin/menu?search=curry&status=out_of_stock&limit=1", nil)
	require.Equal(t, http.StatusOK, code)
	page := decode[menu.Page](t, env.Data)
	assert.Equal(t, int64(2), page.Total)
	assert.Len(t, page.Items, 1)
	assert.True(t, page.HasMore)

	code, _ = a.admin(http.MethodGet, "/api/admin/menu?status=lost", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = a.admin(http.MethodGet, "/api/admin/store/stats?period=30", nil)
	require.Equal(t, http.StatusOK, code)
	stats := decode[storefront.Stats](t, env.Data)
	assert.Equal(t, 30, stats.PeriodDays)
	require.NotNil(t, stats.Current)
	assert.False(t, stats.Current.IsOpen)

	code, _ = a.admin(http.MethodGet, "/api/admin/store/stats?period=-3", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(lineSecret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestLineWebhook(t *testing.T) {
	a := newApp(t)
	post := func(body []byte, sig string) int {
		req := httptest.NewRequest(http.MethodPost, "/webhook/line", bytes.NewReader(body))
		req.Header.Set("X-Line-Signature", sig)
		w := httptest.NewRecorder()
		a.r.ServeHTTP(w, req)
		return w.Code
	}

	follow := []byte(`{"events":[{"type":"follow","source":{"type":"user","userId":"U-new"}}]}`)
	assert.Equal(t, http.StatusUnauthorized, post(follow, "bogus"))
	require.Equal(t, http.StatusOK, post(follow, sign(follow)))

	ids, err := a.st.SubscribedLineIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"U-new"}, ids)

	unfollow := []byte(`{"events":[{"type":"unfollow","source":{"type":"user","userId":"U-new"}},{"type":"message","source":{"type":"user","userId":"U-new"}}]}`)
	require.Equal(t, http.StatusOK, post(unfollow, sign(unfollow)))
	ids, err = a.st.SubscribedLineIDs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
