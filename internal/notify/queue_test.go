package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	to   string
	kind Kind
	at   time.Time
}

type fakeChannel struct {
	mu       sync.Mutex
	calls    []call
	failFor  map[string]bool
	delay    time.Duration
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (f *fakeChannel) record(to string, k Kind) error {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{to: to, kind: k, at: time.Now()})
	if f.failFor[to] {
		return errors.New("line unavailable")
	}
	return nil
}

func (f *fakeChannel) SendOrderConfirmation(_ context.Context, to string, _ OrderConfirmation) error {
	return f.record(to, KindOrderConfirmation)
}
func (f *fakeChannel) SendOrderStatusUpdate(_ context.Context, to string, _ StatusUpdate) error {
	return f.record(to, KindOrderStatusUpdate)
}
func (f *fakeChannel) SendMenuUpdate(_ context.Context, to string, _ MenuUpdate) error {
	return f.record(to, KindMenuUpdate)
}
func (f *fakeChannel) SendStoreStatus(_ context.Context, to string, _ StoreStatus) error {
	return f.record(to, KindStoreStatus)
}

func (f *fakeChannel) recipients() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.to
	}
	return out
}

func newTestQueue(ch Channel, maxRetries int) *Queue {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewQueue(ch, log, Options{MaxRetries: maxRetries, Pause: time.Millisecond})
}

// flakyChannel 前 failures 次调用失败，之后成功。
type flakyChannel struct {
	fakeChannel
	failures int32
	attempts atomic.Int32
}

func (f *flakyChannel) SendOrderStatusUpdate(_ context.Context, to string, _ StatusUpdate) error {
	if f.attempts.Add(1) <= f.failures {
		return errors.New("line unavailable")
	}
	return f.record(to, KindOrderStatusUpdate)
}

// hangingChannel 第一次调用一直阻塞到 ctx 结束，之后立即成功。
type hangingChannel struct {
	fakeChannel
	attempts atomic.Int32
}

func (h *hangingChannel) SendOrderConfirmation(ctx context.Context, to string, _ OrderConfirmation) error {
	if h.attempts.Add(1) == 1 {
		<-ctx.Done()
		return ctx.Err()
	}
	return h.record(to, KindOrderConfirmation)
}

func idle(q *Queue) func() bool {
	return func() bool {
		s := q.Stats()
		return !s.Processing && s.QueueLength == 0
	}
}

func TestQueueDeliversInOrder(t *testing.T) {
	ch := &fakeChannel{}
	q := newTestQueue(ch, 3)
	defer q.Close()

	for _, to := range []string{"U1", "U2", "U3", "U4"} {
		require.NotEmpty(t, q.Enqueue(to, StatusUpdate{OrderNumber: "ORD1", Status: "ready"}))
	}
	require.Eventually(t, idle(q), 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{"U1", "U2", "U3", "U4"}, ch.recipients())
	assert.Equal(t, int64(4), q.Stats().Delivered)
}

func TestQueueRetriesAtTailThenDrops(t *testing.T) {
	ch := &fakeChannel{failFor: map[string]bool{"U-bad": true}}
	q := newTestQueue(ch, 3)
	defer q.Close()

	q.Enqueue("U-bad", OrderConfirmation{OrderNumber: "ORD1"})
	q.Enqueue("U-a", OrderConfirmation{OrderNumber: "ORD2"})
	q.Enqueue("U-b", OrderConfirmation{OrderNumber: "ORD3"})
	require.Eventually(t, idle(q), 2*time.Second, 5*time.Millisecond)

	got := ch.recipients()
	// 失败重试排在已入队的其他任务之后
	assert.Equal(t, []string{"U-bad", "U-a", "U-b", "U-bad", "U-bad", "U-bad"}, got)

	s := q.Stats()
	assert.Equal(t, int64(2), s.Delivered)
	assert.Equal(t, int64(1), s.Dropped)
}

func TestQueueDeliversOnceAfterTransientFailures(t *testing.T) {
	ch := &flakyChannel{failures: 2}
	q := newTestQueue(ch, 3)
	defer q.Close()

	q.Enqueue("U-flaky", StatusUpdate{OrderNumber: "ORD1", Status: "ready"})
	require.Eventually(t, idle(q), 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, int32(3), ch.attempts.Load())
	assert.Equal(t, []string{"U-flaky"}, ch.recipients())
	s := q.Stats()
	assert.Equal(t, int64(1), s.Delivered)
	assert.Zero(t, s.Dropped)
}

func TestQueueSendTimeoutIsRetried(t *testing.T) {
	ch := &hangingChannel{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	q := NewQueue(ch, log, Options{MaxRetries: 1, Pause: time.Millisecond, SendTimeout: 50 * time.Millisecond})
	defer q.Close()

	start := time.Now()
	q.Enqueue("U-slow", OrderConfirmation{OrderNumber: "ORD1"})
	require.Eventually(t, idle(q), 2*time.Second, 5*time.Millisecond)

	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, int32(2), ch.attempts.Load())
	assert.Equal(t, []string{"U-slow"}, ch.recipients())
	assert.Equal(t, int64(1), q.Stats().Delivered)
}

func TestQueuePausesBetweenDeliveries(t *testing.T) {
	ch := &fakeChannel{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	q := NewQueue(ch, log, Options{Pause: 40 * time.Millisecond})
	defer q.Close()

	for _, to := range []string{"U1", "U2", "U3"} {
		q.Enqueue(to, StoreStatus{IsOpen: true})
	}
	require.Eventually(t, idle(q), 2*time.Second, 5*time.Millisecond)

	ch.mu.Lock()
	calls := append([]call(nil), ch.calls...)
	ch.mu.Unlock()
	require.Len(t, calls, 3)
	for i := 1; i < len(calls); i++ {
		assert.GreaterOrEqual(t, calls[i].at.Sub(calls[i-1].at), 35*time.Millisecond)
	}
}

func TestNewQueueDefaultsPause(t *testing.T) {
	q := NewQueue(&fakeChannel{}, slog.New(slog.NewTextHandler(io.Discard, nil)), Options{})
	defer q.Close()
	assert.Equal(t, DefaultOptions().Pause, q.opts.Pause)
	assert.Equal(t, DefaultOptions().SendTimeout, q.opts.SendTimeout)
}

func TestQueueZeroRetries(t *testing.T) {
	ch := &fakeChannel{failFor: map[string]bool{"U-bad": true}}
	q := newTestQueue(ch, 0)
	defer q.Close()

	q.Enqueue("U-bad", MenuUpdate{ItemName: "Larb", Status: "out_of_stock"})
	require.Eventually(t, idle(q), 2*time.Second, 5*time.Millisecond)
	assert.Len(t, ch.recipients(), 1)
	assert.Equal(t, int64(1), q.Stats().Dropped)
}

func TestQueueSingleDrain(t *testing.T) {
	ch := &fakeChannel{delay: 2 * time.Millisecond}
	q := newTestQueue(ch, 0)
	defer q.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Enqueue("U", StoreStatus{IsOpen: true})
		}()
	}
	wg.Wait()
	require.Eventually(t, idle(q), 5*time.Second, 5*time.Millisecond)

	assert.Len(t, ch.recipients(), 20)
	assert.Equal(t, int32(1), ch.maxSeen.Load())
}

func TestEnqueueDoesNotWaitForDelivery(t *testing.T) {
	ch := &fakeChannel{delay: 200 * time.Millisecond}
	q := newTestQueue(ch, 0)
	defer q.Close()

	start := time.Now()
	q.Enqueue("U1", StatusUpdate{OrderNumber: "ORD1"})
	q.Enqueue("U2", StatusUpdate{OrderNumber: "ORD1"})
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

type mislabeled struct{}

func (mislabeled) Kind() Kind { return KindMenuUpdate }

func TestQueueDropsMismatchedPayloadWithoutRetry(t *testing.T) {
	ch := &fakeChannel{}
	q := newTestQueue(ch, 3)
	defer q.Close()

	q.Enqueue("U1", mislabeled{})
	require.Eventually(t, idle(q), 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, ch.recipients())
	assert.Equal(t, int64(1), q.Stats().Dropped)
}

func TestBroadcastAndClose(t *testing.T) {
	ch := &fakeChannel{}
	q := newTestQueue(ch, 0)

	n := q.Broadcast([]string{"U1", "U2", "U3"}, StoreStatus{IsOpen: false})
	assert.Equal(t, 3, n)
	require.Eventually(t, idle(q), 2*time.Second, 5*time.Millisecond)
	assert.ElementsMatch(t, []string{"U1", "U2", "U3"}, ch.recipients())

	q.Close()
	assert.Empty(t, q.Enqueue("U4", StoreStatus{IsOpen: true}))
}
