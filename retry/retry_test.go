package retry

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/anyproto/any-sync/app"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anyproto/gcm-dispatcher/domain"
)

var ctx = context.Background()

func TestPolicy_Delay(t *testing.T) {
	var p Policy
	for n, want := range []time.Duration{10 * time.Second, 20 * time.Second, 40 * time.Second, 80 * time.Second} {
		assert.Equal(t, want, p.Delay(DefaultBaseDelay, n))
	}
	assert.Equal(t, 60*time.Second, p.Delay(30*time.Second, 1))

	t.Run("capped", func(t *testing.T) {
		p := Policy{MaxBackoff: time.Minute}
		assert.Equal(t, time.Minute, p.Delay(DefaultBaseDelay, 10))
	})
	t.Run("overflow", func(t *testing.T) {
		assert.Greater(t, p.Delay(DefaultBaseDelay, 200), time.Duration(0))
		assert.Equal(t, time.Hour, Policy{MaxBackoff: time.Hour}.Delay(DefaultBaseDelay, 200))
		assert.Equal(t, time.Duration(math.MaxInt64), p.Delay(time.Duration(math.MaxInt64), 3))
	})
	t.Run("negative base", func(t *testing.T) {
		assert.Equal(t, time.Duration(0), p.Delay(-time.Second, 2))
	})
}

func TestPolicy_Exhausted(t *testing.T) {
	assert.False(t, Policy{}.Exhausted(1000))
	p := Policy{MaxRetries: 3}
	assert.False(t, p.Exhausted(3))
	assert.True(t, p.Exhausted(4))
}

func TestNewJob(t *testing.T) {
	st := time.Now()
	job := NewJob(domain.Message{DeviceTokens: []string{"t"}}, "503", 30*time.Second)
	assert.NotEmpty(t, job.Id)
	assert.WithinDuration(t, st.Add(30*time.Second), job.Due(), time.Second)
}

func TestMemoryQueue(t *testing.T) {
	t.Run("delivers after delay", func(t *testing.T) {
		fx := newFixture(t)
		got := make(chan Job, 1)
		require.NoError(t, fx.Consume(ctx, func(ctx context.Context, job Job) error {
			got <- job
			return nil
		}))
		var invalid []string
		msg := domain.Message{
			DeviceTokens:   []string{"t"},
			OnTokenInvalid: func(token string) error { invalid = append(invalid, token); return nil },
		}
		st := time.Now()
		require.NoError(t, fx.Schedule(ctx, NewJob(msg, "401", 50*time.Millisecond)))
		select {
		case job := <-got:
			assert.GreaterOrEqual(t, time.Since(st), 40*time.Millisecond)
			require.NotNil(t, job.Message.OnTokenInvalid)
			require.NoError(t, job.Message.OnTokenInvalid("t"))
			assert.Equal(t, []string{"t"}, invalid)
		case <-time.After(time.Second):
			t.Fatal("timeout")
		}
	})
	t.Run("holds jobs until a consumer appears", func(t *testing.T) {
		fx := newFixture(t)
		require.NoError(t, fx.Schedule(ctx, NewJob(domain.Message{}, "503", 0)))
		time.Sleep(20 * time.Millisecond)
		got := make(chan Job, 1)
		require.NoError(t, fx.Consume(ctx, func(ctx context.Context, job Job) error {
			got <- job
			return errors.New("handler error is only logged")
		}))
		select {
		case <-got:
		case <-time.After(time.Second):
			t.Fatal("timeout")
		}
	})
	t.Run("closed", func(t *testing.T) {
		fx := newFixture(t)
		require.NoError(t, fx.Queue.Close(ctx))
		assert.ErrorIs(t, fx.Schedule(ctx, NewJob(domain.Message{}, "503", 0)), ErrQueueUnavailable)
	})
}

type fixture struct {
	Queue
	a *app.App
}

func newFixture(t *testing.T) *fixture {
	fx := &fixture{
		Queue: NewMemoryQueue(),
		a:     new(app.App),
	}
	fx.a.Register(fx.Queue)
	require.NoError(t, fx.a.Start(ctx))
	t.Cleanup(func() {
		require.NoError(t, fx.a.Close(ctx))
	})
	return fx
}
