package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/anyproto/any-sync/app"
	"github.com/anyproto/any-sync/app/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/anyproto/gcm-dispatcher/redisprovider"
	"github.com/anyproto/gcm-dispatcher/retry"
)

const CName = retry.CName

var log = logger.NewNamed("gcm.queue")

// New returns a redis backed retry queue. Delayed jobs wait in a sorted set
// scored by due time and are promoted into an rmq queue once due.
func New() retry.Queue {
	return new(queue)
}

type configSource interface {
	GetRetryQueue() Config
}

type Config struct {
	Name           string `yaml:"name"`
	PollIntervalMs int    `yaml:"pollIntervalMs"`
	Prefetch       int64  `yaml:"prefetch"`
	PromoteBatch   int64  `yaml:"promoteBatch"`
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = retry.QueueName
	}
	if c.PollIntervalMs <= 0 {
		c.PollIntervalMs = 100
	}
	if c.Prefetch <= 0 {
		c.Prefetch = 10
	}
	if c.PromoteBatch <= 0 {
		c.PromoteBatch = 100
	}
	return c
}

const cleanEvery = 600

type queue struct {
	client       redis.UniversalClient
	conf         Config
	tag          string
	delayedKey   string
	rmqConn      rmq.Connection
	queue        rmq.Queue
	errCh        chan error
	runCtx       context.Context
	runCtxCancel context.CancelFunc
	wg           sync.WaitGroup
}

func (q *queue) Init(a *app.App) (err error) {
	q.client = a.MustComponent(redisprovider.CName).(redisprovider.RedisProvider).Redis()
	if cs, ok := a.Component("config").(configSource); ok {
		q.conf = cs.GetRetryQueue()
	}
	q.conf = q.conf.withDefaults()
	q.tag = "gcmpushd-" + uuid.NewString()
	q.delayedKey = "{" + q.conf.Name + "}:delayed"
	q.runCtx, q.runCtxCancel = context.WithCancel(context.Background())
	return
}

func (q *queue) Name() (name string) {
	return CName
}

func (q *queue) Run(ctx context.Context) (err error) {
	q.errCh = make(chan error, 10)
	switch client := q.client.(type) {
	case *redis.ClusterClient:
		q.rmqConn, err = rmq.OpenClusterConnection(q.tag, client, q.errCh)
	case *redis.Client:
		q.rmqConn, err = rmq.OpenConnectionWithRedisClient(q.tag, client, q.errCh)
	default:
		err = fmt.Errorf("unsupported redis client %T", q.client)
	}
	if err != nil {
		return err
	}
	go q.handleRmqErrs()
	if q.queue, err = q.rmqConn.OpenQueue(q.conf.Name); err != nil {
		return err
	}
	if err = q.queue.StartConsuming(q.conf.Prefetch, time.Duration(q.conf.PollIntervalMs)*time.Millisecond); err != nil {
		return err
	}
	q.wg.Add(1)
	go q.promoteLoop()
	return nil
}

func (q *queue) Schedule(ctx context.Context, job retry.Job) error {
	if q.queue == nil {
		return retry.ErrQueueUnavailable
	}
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if job.Delay <= 0 {
		if err = q.queue.Publish(string(data)); err != nil {
			return fmt.Errorf("%w: %w", retry.ErrQueueUnavailable, err)
		}
		return nil
	}
	if err = q.client.ZAdd(ctx, q.delayedKey, redis.Z{
		Score:  float64(job.NotBefore),
		Member: string(data),
	}).Err(); err != nil {
		return fmt.Errorf("%w: %w", retry.ErrQueueUnavailable, err)
	}
	return nil
}

func (q *queue) Consume(ctx context.Context, handle retry.Handler) error {
	if q.queue == nil {
		return retry.ErrQueueUnavailable
	}
	cons := func(delivery rmq.Delivery) {
		select {
		case <-q.runCtx.Done():
			_ = delivery.Reject()
			return
		case <-ctx.Done():
			_ = delivery.Reject()
			return
		default:
		}
		var job retry.Job
		if err := json.Unmarshal([]byte(delivery.Payload()), &job); err != nil {
			log.Warn("can't unmarshal retry job", zap.Error(err))
			_ = delivery.Reject()
			return
		}
		if err := handle(q.runCtx, job); err != nil {
			log.Warn("retry job failed", zap.String("jobId", job.Id), zap.String("reason", job.Reason), zap.Error(err))
			_ = delivery.Reject()
		} else {
			_ = delivery.Ack()
		}
	}
	_, err := q.queue.AddConsumerFunc(q.tag, cons)
	return err
}

func (q *queue) promoteLoop() {
	defer q.wg.Done()
	ticker := time.NewTicker(time.Duration(q.conf.PollIntervalMs) * time.Millisecond)
	defer ticker.Stop()
	cleaner := rmq.NewCleaner(q.rmqConn)
	var ticks int
	for {
		select {
		case <-q.runCtx.Done():
			return
		case <-ticker.C:
		}
		if _, err := q.promoteDue(q.runCtx, time.Now()); err != nil {
			log.Warn("promote delayed jobs error", zap.Error(err))
		}
		if ticks++; ticks%cleanEvery == 0 {
			if returned, err := cleaner.Clean(); err != nil {
				log.Warn("rmq clean error", zap.Error(err))
			} else if returned > 0 {
				log.Info("returned unacked jobs", zap.Int64("count", returned))
			}
		}
	}
}

// promoteDue moves jobs whose due time has passed into the rmq queue.
// Only the caller that removed a member publishes it, so concurrent promoters never duplicate a job.
func (q *queue) promoteDue(ctx context.Context, now time.Time) (n int, err error) {
	members, err := q.client.ZRangeByScore(ctx, q.delayedKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: q.conf.PromoteBatch,
	}).Result()
	if err != nil {
		return 0, err
	}
	for _, member := range members {
		removed, err := q.client.ZRem(ctx, q.delayedKey, member).Result()
		if err != nil {
			return n, err
		}
		if removed == 0 {
			continue
		}
		if err = q.queue.Publish(member); err != nil {
			// put it back, it will be promoted on the next tick
			_ = q.client.ZAdd(ctx, q.delayedKey, redis.Z{Score: float64(now.UnixMilli()), Member: member}).Err()
			return n, err
		}
		n++
	}
	return n, nil
}

func (q *queue) handleRmqErrs() {
	for {
		select {
		case <-q.runCtx.Done():
			return
		case err := <-q.errCh:
			log.Warn("rmq error", zap.Error(err))
		}
	}
}

func (q *queue) Close(ctx context.Context) (err error) {
	if q.runCtxCancel != nil {
		q.runCtxCancel()
	}
	q.wg.Wait()
	if q.queue != nil {
		done := q.queue.StopConsuming()
		<-done
	}
	return nil
}
