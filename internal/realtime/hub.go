package realtime

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

// Message 投递给订阅者的一条推送。Data 可以是事件结构体，也可以是已编码的 JSON。
type Message struct {
	Topic Topic
	Name  string
	Data  any
}

// Subscription 一个长连接的订阅。C 满时新消息会被丢弃，慢客户端不会拖住广播。
type Subscription struct {
	C      chan Message
	topics map[Topic]struct{}
}

func (s *Subscription) wants(t Topic) bool {
	if t == TopicAll {
		return true
	}
	_, ok := s.topics[t]
	return ok
}

// Hub 进程内按房间扇出。
type Hub struct {
	mu      sync.RWMutex
	subs    map[*Subscription]struct{}
	buffer  int
	dropped atomic.Int64
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 32
	}
	return &Hub{subs: make(map[*Subscription]struct{}), buffer: buffer}
}

// Subscribe 订阅若干房间；全员广播总会收到。
func (h *Hub) Subscribe(topics ...Topic) *Subscription {
	s := &Subscription{
		C:      make(chan Message, h.buffer),
		topics: make(map[Topic]struct{}, len(topics)),
	}
	for _, t := range topics {
		s.topics[t] = struct{}{}
	}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

func (h *Hub) Unsubscribe(s *Subscription) {
	h.mu.Lock()
	delete(h.subs, s)
	h.mu.Unlock()
}

// Publish 实现 Publisher。
func (h *Hub) Publish(_ context.Context, topic Topic, ev Event) error {
	h.Deliver(Message{Topic: topic, Name: ev.EventName(), Data: ev})
	return nil
}

// Deliver 非阻塞投递到所有匹配的订阅者。
func (h *Hub) Deliver(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		if !s.wants(msg.Topic) {
			continue
		}
		select {
		case s.C <- msg:
		default:
			h.dropped.Add(1)
		}
	}
}

// Subscribers 当前连接数。
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped 因订阅者缓冲已满而丢弃的消息数。
func (h *Hub) Dropped() int64 { return h.dropped.Load() }

// ServeSSE 以 Server-Sent Events 推送；topics 决定当前请求订阅哪些房间。
func (h *Hub) ServeSSE(topics func(c *gin.Context) []Topic, keepAlive time.Duration) gin.HandlerFunc {
	if keepAlive <= 0 {
		keepAlive = 25 * time.Second
	}
	return func(c *gin.Context) {
		sub := h.Subscribe(topics(c)...)
		defer h.Unsubscribe(sub)

		ticker := time.NewTicker(keepAlive)
		defer ticker.Stop()

		c.Header("Cache-Control", "no-cache")
		c.Header("X-Accel-Buffering", "no")
		c.Stream(func(w io.Writer) bool {
			select {
			case <-c.Request.Context().Done():
				return false
			case msg := <-sub.C:
				c.SSEvent(msg.Name, msg.Data)
				return true
			case <-ticker.C:
				c.SSEvent("ping", time.Now().Unix())
				return true
			}
		})
	}
}
