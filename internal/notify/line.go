package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultLineAPIBase = "https://api.line.me"

// LineChannel 通过 LINE Messaging API push 接口投递文本消息。
type LineChannel struct {
	Client  *http.Client
	BaseURL string
	Token   string
}

func NewLineChannel(baseURL, token string) *LineChannel {
	if baseURL == "" {
		baseURL = defaultLineAPIBase
	}
	return &LineChannel{
		Client:  &http.Client{Timeout: 10 * time.Second},
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
	}
}

type lineMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type pushRequest struct {
	To       string        `json:"to"`
	Messages []lineMessage `json:"messages"`
}

func (c *LineChannel) SendOrderConfirmation(ctx context.Context, to string, p OrderConfirmation) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Order #%s confirmed\n", p.OrderNumber)
	for _, it := range p.Items {
		fmt.Fprintf(&b, "- %s x%d  %s\n", it.Name, it.Quantity, it.TotalPrice.StringFixed(2))
	}
	fmt.Fprintf(&b, "Total: %s THB\nEstimated time: %d min", p.TotalAmount.StringFixed(2), p.EstimatedTime)
	return c.push(ctx, to, b.String())
}

func (c *LineChannel) SendOrderStatusUpdate(ctx context.Context, to string, p StatusUpdate) error {
	text := fmt.Sprintf("Order #%s: %s", p.OrderNumber, statusText(p.Status))
	if p.Urgent {
		text = "🔔 " + text + "\nPlease pick up your order."
	} else if p.EstimatedTime > 0 && p.Status != "completed" && p.Status != "cancelled" {
		text += fmt.Sprintf("\nEstimated time: %d min", p.EstimatedTime)
	}
	if p.Note != "" {
		text += "\nNote: " + p.Note
	}
	return c.push(ctx, to, text)
}

func (c *LineChannel) SendMenuUpdate(ctx context.Context, to string, p MenuUpdate) error {
	text := fmt.Sprintf("Menu update: %s is now %s", p.ItemName, strings.ReplaceAll(p.Status, "_", " "))
	if p.Reason != "" {
		text += " (" + p.Reason + ")"
	}
	return c.push(ctx, to, text)
}

func (c *LineChannel) SendStoreStatus(ctx context.Context, to string, p StoreStatus) error {
	text := "We are closed now. See you next time!"
	if p.IsOpen {
		text = "We are open! Orders are welcome."
	}
	if p.Note != "" {
		text += "\n" + p.Note
	}
	return c.push(ctx, to, text)
}

func (c *LineChannel) push(ctx context.Context, to, text string) error {
	body, err := json.Marshal(pushRequest{
		To:       to,
		Messages: []lineMessage{{Type: "text", Text: text}},
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v2/bot/message/push", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("line push: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func statusText(status string) string {
	switch status {
	case "confirmed":
		return "confirmed"
	case "preparing":
		return "being prepared"
	case "ready":
		return "ready to serve"
	case "completed":
		return "served, thank you!"
	case "cancelled":
		return "cancelled"
	default:
		return status
	}
}

// VerifySignature 校验 webhook 的 X-Line-Signature（HMAC-SHA256 + base64）。
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	decoded, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(decoded, mac.Sum(nil))
}
