package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lineServer(t *testing.T, status int) (*httptest.Server, *[]pushRequest) {
	t.Helper()
	var got []pushRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/bot/message/push", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		var req pushRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		got = append(got, req)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"message":"x"}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestLineChannelPush(t *testing.T) {
	srv, got := lineServer(t, http.StatusOK)
	c := NewLineChannel(srv.URL+"/", "tok")
	ctx := context.Background()

	err := c.SendOrderConfirmation(ctx, "U1", OrderConfirmation{
		OrderNumber:   "ORD1",
		Items:         []LineItem{{Name: "Pad Thai", Quantity: 2, TotalPrice: decimal.RequireFromString("91")}},
		TotalAmount:   decimal.RequireFromString("91"),
		EstimatedTime: 12,
	})
	require.NoError(t, err)
	require.NoError(t, c.SendOrderStatusUpdate(ctx, "U1", StatusUpdate{OrderNumber: "ORD1", Status: "ready", Urgent: true}))

	require.Len(t, *got, 2)
	first := (*got)[0]
	assert.Equal(t, "U1", first.To)
	require.Len(t, first.Messages, 1)
	assert.Equal(t, "text", first.Messages[0].Type)
	assert.Contains(t, first.Messages[0].Text, "Pad Thai x2  91.00")
	assert.Contains(t, first.Messages[0].Text, "Total: 91.00 THB")
	assert.Contains(t, (*got)[1].Messages[0].Text, "Please pick up your order.")
}

func TestLineChannelRejectsNon2xx(t *testing.T) {
	srv, _ := lineServer(t, http.StatusTooManyRequests)
	c := NewLineChannel(srv.URL, "tok")
	err := c.SendStoreStatus(context.Background(), "U1", StoreStatus{IsOpen: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"events":[]}`)
	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write(body)
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	assert.True(t, VerifySignature("secret", body, sig))
	assert.False(t, VerifySignature("other", body, sig))
	assert.False(t, VerifySignature("secret", []byte(`{}`), sig))
	assert.False(t, VerifySignature("secret", body, "not-base64!"))
	assert.False(t, VerifySignature("", body, sig))
}
