package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"food_order/internal/queue"

	"github.com/google/uuid"
)

// EventWriter 是 queue.Producer 的发布能力。
type EventWriter interface {
	Publish(ctx context.Context, msg queue.EventMessage) error
}

// KafkaPublisher 把事件写入 Kafka，由每个实例的 Relay 转发给本地 Hub。
// 写入失败时退化为仅本地投递，推送失败不影响业务结果。
type KafkaPublisher struct {
	w      EventWriter
	local  *Hub
	origin string
}

func NewKafkaPublisher(w EventWriter, local *Hub, origin string) *KafkaPublisher {
	return &KafkaPublisher{w: w, local: local, origin: origin}
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic Topic, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s: %w", ev.EventName(), err)
	}
	msg := queue.EventMessage{
		ID:        uuid.NewString(),
		Origin:    p.origin,
		Topic:     string(topic),
		Event:     ev.EventName(),
		Data:      data,
		EmittedAt: time.Now().UTC(),
	}
	if err := p.w.Publish(ctx, msg); err != nil {
		if p.local != nil {
			p.local.Deliver(Message{Topic: topic, Name: ev.EventName(), Data: ev})
		}
		return fmt.Errorf("kafka publish %s: %w", ev.EventName(), err)
	}
	return nil
}

// Relay 返回消费回调：把 Kafka 中的事件原样转发给本地订阅者。
func Relay(h *Hub) queue.Handler {
	return func(msg queue.EventMessage) {
		h.Deliver(Message{Topic: Topic(msg.Topic), Name: msg.Event, Data: msg.Data})
	}
}
