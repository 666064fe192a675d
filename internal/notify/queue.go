package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Channel 外部消息通道，每种通知一个调用。渲染由实现方负责。
type Channel interface {
	SendOrderConfirmation(ctx context.Context, to string, p OrderConfirmation) error
	SendOrderStatusUpdate(ctx context.Context, to string, p StatusUpdate) error
	SendMenuUpdate(ctx context.Context, to string, p MenuUpdate) error
	SendStoreStatus(ctx context.Context, to string, p StoreStatus) error
}

// Options 控制重试上限、投递间隔与单次投递超时。
type Options struct {
	MaxRetries  int
	Pause       time.Duration
	SendTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		MaxRetries:  3,
		Pause:       100 * time.Millisecond,
		SendTimeout: 10 * time.Second,
	}
}

// Stats 队列快照。
type Stats struct {
	QueueLength int       `json:"queue_length"`
	Processing  bool      `json:"is_processing"`
	Delivered   int64     `json:"delivered"`
	Dropped     int64     `json:"dropped"`
	Timestamp   time.Time `json:"timestamp"`
}

// errPermanent 表示重试也无济于事（负载类型错配等），直接丢弃。
var errPermanent = errors.New("permanent delivery failure")

// Queue 单消费者 FIFO 内存队列。
// 入队时若没有 drain 在运行就启动一个；任意时刻最多一个 drain，保证逐条、按序投递。
// 投递失败的任务回到队尾重试，超过 MaxRetries 后丢弃并记录日志，不会影响下单链路。
type Queue struct {
	ch   Channel
	log  *slog.Logger
	opts Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	jobs       []Job
	processing bool
	closed     bool

	delivered atomic.Int64
	dropped   atomic.Int64
}

func NewQueue(ch Channel, log *slog.Logger, opts Options) *Queue {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	def := DefaultOptions()
	if opts.Pause <= 0 {
		opts.Pause = def.Pause
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = def.SendTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		ch:     ch,
		log:    log.With("component", "notify_queue"),
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Enqueue 追加一条通知并在需要时唤醒 drain，立即返回任务 id。
func (q *Queue) Enqueue(to string, p Payload) string {
	job := Job{
		ID:         uuid.NewString(),
		Kind:       p.Kind(),
		To:         to,
		Payload:    p,
		MaxRetries: q.opts.MaxRetries,
		EnqueuedAt: time.Now(),
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.log.Warn("queue closed, notification discarded", "kind", job.Kind, "to", to)
		return ""
	}
	q.jobs = append(q.jobs, job)
	start := !q.processing
	if start {
		q.processing = true
		q.wg.Add(1)
	}
	q.mu.Unlock()

	q.log.Debug("queued notification", "job", job.ID, "kind", job.Kind, "to", to)
	if start {
		go q.drain()
	}
	return job.ID
}

// Broadcast 为每个用户各入队一条。
func (q *Queue) Broadcast(users []string, p Payload) int {
	for _, u := range users {
		q.Enqueue(u, p)
	}
	return len(users)
}

func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		QueueLength: len(q.jobs),
		Processing:  q.processing,
		Delivered:   q.delivered.Load(),
		Dropped:     q.dropped.Load(),
		Timestamp:   time.Now(),
	}
}

// Close 停止投递并等待当前 drain 退出；仍在队列中的任务随之丢失。
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cancel()
	q.wg.Wait()
}

func (q *Queue) drain() {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		if len(q.jobs) == 0 || q.closed {
			q.processing = false
			q.mu.Unlock()
			return
		}
		job := q.jobs[0]
		q.jobs[0] = Job{}
		q.jobs = q.jobs[1:]
		q.mu.Unlock()

		if err := q.deliver(job); err != nil {
			q.retryOrDrop(job, err)
		} else {
			q.delivered.Add(1)
			q.log.Debug("notification delivered", "job", job.ID, "kind", job.Kind)
		}

		// 限速：两次投递之间固定停顿。
		select {
		case <-q.ctx.Done():
		case <-time.After(q.opts.Pause):
		}
	}
}

func (q *Queue) retryOrDrop(job Job, err error) {
	if errors.Is(err, errPermanent) || job.Retries >= job.MaxRetries {
		q.dropped.Add(1)
		q.log.Error("notification failed permanently",
			"job", job.ID, "kind", job.Kind, "to", job.To, "retries", job.Retries, "error", err)
		return
	}

	job.Retries++
	q.mu.Lock()
	if !q.closed {
		q.jobs = append(q.jobs, job) // 回到队尾，而非队首
	}
	q.mu.Unlock()
	q.log.Warn("notification failed, retrying",
		"job", job.ID, "kind", job.Kind, "retry", job.Retries, "max", job.MaxRetries, "error", err)
}

func (q *Queue) deliver(job Job) error {
	ctx, cancel := context.WithTimeout(q.ctx, q.opts.SendTimeout)
	defer cancel()

	switch job.Kind {
	case KindOrderConfirmation:
		p, ok := job.Payload.(OrderConfirmation)
		if !ok {
			return badPayload(job)
		}
		return q.ch.SendOrderConfirmation(ctx, job.To, p)
	case KindOrderStatusUpdate:
		p, ok := job.Payload.(StatusUpdate)
		if !ok {
			return badPayload(job)
		}
		return q.ch.SendOrderStatusUpdate(ctx, job.To, p)
	case KindMenuUpdate:
		p, ok := job.Payload.(MenuUpdate)
		if !ok {
			return badPayload(job)
		}
		return q.ch.SendMenuUpdate(ctx, job.To, p)
	case KindStoreStatus:
		p, ok := job.Payload.(StoreStatus)
		if !ok {
			return badPayload(job)
		}
		return q.ch.SendStoreStatus(ctx, job.To, p)
	default:
		return fmt.Errorf("%w: unknown kind %q", errPermanent, job.Kind)
	}
}

func badPayload(job Job) error {
	return fmt.Errorf("%w: payload %T does not match kind %s", errPermanent, job.Payload, job.Kind)
}
