package retry

import (
	"context"
	"sync"
	"time"

	"github.com/anyproto/any-sync/app"
	"github.com/anyproto/any-sync/app/logger"
	"go.uber.org/zap"
)

var log = logger.NewNamed(CName)

// NewMemoryQueue returns an in-process queue backed by timers.
// Jobs keep their callbacks but do not survive a restart.
func NewMemoryQueue() Queue {
	return new(memoryQueue)
}

type memoryQueue struct {
	mu       sync.Mutex
	handlers []Handler
	next     int
	timers   map[string]*time.Timer
	pending  []Job
	closed   bool
	wg       sync.WaitGroup

	runCtx       context.Context
	runCtxCancel context.CancelFunc
}

func (q *memoryQueue) Init(a *app.App) (err error) {
	q.timers = make(map[string]*time.Timer)
	q.runCtx, q.runCtxCancel = context.WithCancel(context.Background())
	return
}

func (q *memoryQueue) Name() (name string) {
	return CName
}

func (q *memoryQueue) Run(ctx context.Context) (err error) {
	return nil
}

func (q *memoryQueue) Schedule(ctx context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || q.timers == nil {
		return ErrQueueUnavailable
	}
	delay := time.Until(job.Due())
	if delay < 0 {
		delay = 0
	}
	q.timers[job.Id] = time.AfterFunc(delay, func() {
		q.fire(job)
	})
	return nil
}

func (q *memoryQueue) Consume(ctx context.Context, handle Handler) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueUnavailable
	}
	q.handlers = append(q.handlers, handle)
	pending := q.pending
	q.pending = nil
	q.mu.Unlock()
	for _, job := range pending {
		q.fire(job)
	}
	return nil
}

func (q *memoryQueue) fire(job Job) {
	q.mu.Lock()
	delete(q.timers, job.Id)
	if q.closed {
		q.mu.Unlock()
		return
	}
	if len(q.handlers) == 0 {
		q.pending = append(q.pending, job)
		q.mu.Unlock()
		return
	}
	handle := q.handlers[q.next%len(q.handlers)]
	q.next++
	q.wg.Add(1)
	q.mu.Unlock()

	defer q.wg.Done()
	if err := handle(q.runCtx, job); err != nil {
		log.Warn("retry job failed", zap.String("jobId", job.Id), zap.String("reason", job.Reason), zap.Error(err))
	}
}

func (q *memoryQueue) Close(ctx context.Context) (err error) {
	q.mu.Lock()
	q.closed = true
	for id, t := range q.timers {
		t.Stop()
		delete(q.timers, id)
	}
	q.mu.Unlock()
	if q.runCtxCancel != nil {
		q.runCtxCancel()
	}
	q.wg.Wait()
	return nil
}
