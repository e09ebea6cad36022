package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anyproto/any-sync/app"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anyproto/gcm-dispatcher/domain"
	"github.com/anyproto/gcm-dispatcher/gcmapi"
	"github.com/anyproto/gcm-dispatcher/redisprovider/testredisprovider"
	"github.com/anyproto/gcm-dispatcher/retry"
)

var ctx = context.Background()

func TestQueue_Consume(t *testing.T) {
	fx := newFixture(t)
	var toSend = []retry.Job{
		retry.NewJob(domain.Message{DeviceTokens: []string{"1"}, Notification: domain.Scalar("a")}, "401", 0),
		retry.NewJob(domain.Message{DeviceTokens: []string{"2"}, Notification: domain.Structured(map[string]any{"k": "v"}), RetryCount: 3}, "503", 0),
	}
	require.NoError(t, fx.Schedule(ctx, toSend[0]))
	var jobs = make(chan retry.Job)
	require.NoError(t, fx.Consume(ctx, func(ctx context.Context, job retry.Job) error {
		jobs <- job
		return nil
	}))

	require.NoError(t, fx.Schedule(ctx, toSend[1]))
	var result = make([]retry.Job, 2)
	for i := range result {
		select {
		case job := <-jobs:
			result[i] = job
		case <-time.After(time.Second):
			t.Fatal("timeout")
		}
	}
	for i := range toSend {
		assert.Equal(t, toSend[i].Id, result[i].Id)
		assert.Equal(t, toSend[i].Message.DeviceTokens, result[i].Message.DeviceTokens)
		assert.Equal(t, toSend[i].Message.RetryCount, result[i].Message.RetryCount)
		assert.Equal(t, toSend[i].Message.Notification.Data(), result[i].Message.Notification.Data())
	}
}

func TestQueue_KeepsPayload(t *testing.T) {
	fx := newFixture(t)
	msg := domain.Message{
		APIKey:       "key",
		DeviceTokens: []string{"t"},
		Notification: domain.Structured(map[string]any{"id": int64(9007199254740993), "ratio": 0.25}),
		TimeToLive:   domain.TTL(60),
	}
	before, err := gcmapi.Serialize(msg)
	require.NoError(t, err)

	var jobs = make(chan retry.Job, 1)
	require.NoError(t, fx.Consume(ctx, func(ctx context.Context, job retry.Job) error {
		jobs <- job
		return nil
	}))
	require.NoError(t, fx.Schedule(ctx, retry.NewJob(msg, "503", 0)))
	select {
	case job := <-jobs:
		after, err := gcmapi.Serialize(job.Message)
		require.NoError(t, err)
		assert.Equal(t, string(before), string(after))
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
}

func TestQueue_Reject(t *testing.T) {
	fx := newFixture(t)
	q := fx.Queue.(*queue)
	var (
		calls = make(chan retry.Job, 10)
		fail  atomic.Bool
	)
	fail.Store(true)
	require.NoError(t, fx.Consume(ctx, func(ctx context.Context, job retry.Job) error {
		calls <- job
		if fail.Load() {
			return errors.New("gateway rejected the payload")
		}
		return nil
	}))
	job := retry.NewJob(domain.Message{DeviceTokens: []string{"1"}, Notification: domain.Scalar("a")}, "503", 0)
	require.NoError(t, fx.Schedule(ctx, job))

	select {
	case got := <-calls:
		assert.Equal(t, job.Id, got.Id)
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
	select {
	case <-calls:
		t.Fatal("rejected job was redelivered")
	case <-time.After(500 * time.Millisecond):
	}

	fail.Store(false)
	returned, err := q.queue.ReturnRejected(10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), returned)
	select {
	case got := <-calls:
		assert.Equal(t, job.Id, got.Id)
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
}

func TestQueue_Delayed(t *testing.T) {
	fx := newFixture(t)
	var jobs = make(chan retry.Job, 1)
	require.NoError(t, fx.Consume(ctx, func(ctx context.Context, job retry.Job) error {
		jobs <- job
		return nil
	}))
	st := time.Now()
	job := retry.NewJob(domain.Message{DeviceTokens: []string{"1"}, Notification: domain.Scalar("a")}, "Unavailable", 300*time.Millisecond)
	require.NoError(t, fx.Schedule(ctx, job))

	select {
	case <-jobs:
		t.Fatal("job delivered before its delay")
	case <-time.After(150 * time.Millisecond):
	}
	select {
	case got := <-jobs:
		assert.Equal(t, job.Id, got.Id)
		assert.GreaterOrEqual(t, time.Since(st), 300*time.Millisecond)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout")
	}
}

func TestQueue_PromoteDue(t *testing.T) {
	fx := newFixture(t)
	q := fx.Queue.(*queue)
	now := time.Now()
	due := retry.NewJob(domain.Message{DeviceTokens: []string{"1"}}, "401", time.Minute)
	require.NoError(t, fx.Schedule(ctx, due))

	n, err := q.promoteDue(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = q.promoteDue(ctx, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = q.promoteDue(ctx, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestQueue_NotRunning(t *testing.T) {
	q := New()
	assert.ErrorIs(t, q.Schedule(ctx, retry.Job{}), retry.ErrQueueUnavailable)
}

type fixture struct {
	retry.Queue
	a *app.App
}

func newFixture(t *testing.T) *fixture {
	fx := &fixture{
		Queue: New(),
		a:     new(app.App),
	}
	fx.a.Register(testredisprovider.NewTestRedisProvider()).Register(fx.Queue)
	require.NoError(t, fx.a.Start(ctx))
	t.Cleanup(func() {
		require.NoError(t, fx.a.Close(ctx))
	})
	return fx
}
