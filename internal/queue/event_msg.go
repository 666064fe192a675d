package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventMessage 是写入 Kafka 的推送事件信封，各实例消费后转发给本地长连接。
type EventMessage struct {
	ID        string          `json:"id"`
	Origin    string          `json:"origin"` // 发布实例
	Topic     string          `json:"topic"`
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
	EmittedAt time.Time       `json:"emitted_at"`
}

// Validate 做最小字段校验，防止消费者处理脏消息。
func (m EventMessage) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("id is required")
	}
	if m.Topic == "" {
		return fmt.Errorf("topic is required")
	}
	if m.Event == "" {
		return fmt.Errorf("event is required")
	}
	if len(m.Data) == 0 || !json.Valid(m.Data) {
		return fmt.Errorf("data must be valid json")
	}
	return nil
}
