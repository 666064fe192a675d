package queue

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

// Handler 处理一条已校验的事件。
type Handler func(msg EventMessage)

// Reader 是 kafka.Reader 中 Consumer 用到的部分，便于测试替换。
type Reader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer 读取事件并交给 Handler。每个实例使用独立的消费组，保证每台机器都收到全量事件。
type Consumer struct {
	r      Reader
	handle Handler
	log    *slog.Logger
}

func NewConsumer(brokers []string, topic, groupID string, handle Handler, log *slog.Logger) *Consumer {
	return &Consumer{
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     brokers,
			Topic:       topic,
			GroupID:     groupID,
			MinBytes:    1,
			MaxBytes:    1e6,
			StartOffset: kafka.LastOffset,
		}),
		handle: handle,
		log:    log.With("component", "event_consumer"),
	}
}

func (c *Consumer) Close() error { return c.r.Close() }

// Run 阻塞读取直到 ctx 取消或连接断开。
func (c *Consumer) Run(ctx context.Context) error {
	for {
		m, err := c.r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		var msg EventMessage
		if err := json.Unmarshal(m.Value, &msg); err != nil {
			c.log.Warn("consumer unmarshal", "error", err)
			continue
		}
		if err := msg.Validate(); err != nil {
			// 脏消息直接跳过，不阻塞后续事件。
			c.log.Warn("consumer invalid message", "error", err)
			continue
		}
		c.handle(msg)
	}
}
