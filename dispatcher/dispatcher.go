package dispatcher

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/anyproto/any-sync/app"
	"github.com/anyproto/any-sync/app/logger"
	"go.uber.org/zap"

	"github.com/anyproto/gcm-dispatcher/classifier"
	"github.com/anyproto/gcm-dispatcher/domain"
	"github.com/anyproto/gcm-dispatcher/gcmapi"
	"github.com/anyproto/gcm-dispatcher/metric"
	"github.com/anyproto/gcm-dispatcher/retry"
)

const CName = "gcm.dispatcher"

var log = logger.NewNamed(CName)

const scheduleTimeout = 10 * time.Second

var ErrClosed = errors.New("dispatcher is closed")

func New() Dispatcher {
	return new(dispatcher)
}

// NewWithTransport returns a dispatcher that posts through the given transport instead of net/http.
func NewWithTransport(t Transport) Dispatcher {
	return &dispatcher{transport: t}
}

type Dispatcher interface {
	// Send validates and posts the message without waiting for the gateway.
	Send(ctx context.Context, msg *domain.Message) (*Pending, error)
	// SendSync posts the message and waits for the classified outcome.
	SendSync(ctx context.Context, msg *domain.Message) (classifier.Outcome, error)
	// Retry runs a scheduled job. It is the handler the retry queue consumes with.
	Retry(ctx context.Context, job retry.Job) error
	// SetTokenHandler sets callbacks for messages that carry none, which is always the case
	// for jobs restored from a persistent queue.
	SetTokenHandler(h TokenHandler)
	app.ComponentRunnable
}

type TokenHandler interface {
	TokenUpdated(ctx context.Context, oldToken, newToken string) error
	TokenInvalid(ctx context.Context, token string) error
}

type dispatcher struct {
	conf       Config
	url        string
	transport  Transport
	queue      retry.Queue
	classifier *classifier.Classifier
	handler    TokenHandler
	metrics    metrics

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

func (d *dispatcher) Init(a *app.App) (err error) {
	d.conf = a.MustComponent("config").(configSource).GetGCM()
	d.url = d.conf.URL()
	d.queue = a.MustComponent(retry.CName).(retry.Queue)
	d.classifier = classifier.New(d.conf.Policy(), d.conf.FirstResultOnly)
	if d.transport == nil {
		d.transport = NewHTTPTransport(d.conf.Timeout())
	}
	d.metrics = newMetrics()
	if m, ok := a.Component(metric.CName).(metric.Metric); ok {
		d.metrics.register(m.Registry())
	}
	return
}

func (d *dispatcher) Name() (name string) {
	return CName
}

func (d *dispatcher) Run(ctx context.Context) (err error) {
	for range d.conf.workers() {
		if err = d.queue.Consume(ctx, d.Retry); err != nil {
			return
		}
	}
	log.Info("dispatcher started", zap.String("url", d.url), zap.Int("retryWorkers", d.conf.workers()))
	return
}

func (d *dispatcher) SetTokenHandler(h TokenHandler) {
	d.handler = h
}

func (d *dispatcher) Send(ctx context.Context, msg *domain.Message) (*Pending, error) {
	return d.send(ctx, msg, false)
}

func (d *dispatcher) SendSync(ctx context.Context, msg *domain.Message) (classifier.Outcome, error) {
	p, err := d.send(ctx, msg, false)
	if err != nil {
		return classifier.Outcome{}, err
	}
	return p.Wait(ctx)
}

func (d *dispatcher) Retry(ctx context.Context, job retry.Job) error {
	msg := job.Message
	p, err := d.send(ctx, &msg, true)
	if err != nil {
		log.Error("retry job dropped", zap.String("jobId", job.Id), zap.Error(err))
		return err
	}
	_, err = p.Wait(ctx)
	return err
}

func (d *dispatcher) send(ctx context.Context, msg *domain.Message, retrying bool) (*Pending, error) {
	if err := gcmapi.ValidateMessage(*msg); err != nil {
		log.Error("message must contain device tokens and notification", zap.Error(err))
		return nil, err
	}
	if retrying {
		msg.RetryCount++
	}
	body, err := gcmapi.Serialize(*msg)
	if err != nil {
		return nil, err
	}
	log.Debug("sending gcm message", zap.ByteString("body", body), zap.Int("retry", msg.RetryCount))

	header := make(http.Header)
	header.Set("Authorization", "key="+msg.APIKey)
	header.Set("Content-Type", "application/json")

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, ErrClosed
	}
	d.inflight.Add(1)
	d.mu.Unlock()

	snapshot := *msg
	p := newPending()
	st := time.Now()
	d.transport.Post(ctx, Request{URL: d.url, Header: header, Body: body}, func(reply classifier.Reply) {
		defer d.inflight.Done()
		p.resolve(d.complete(ctx, snapshot, reply, st))
	})
	return p, nil
}

func (d *dispatcher) complete(ctx context.Context, msg domain.Message, reply classifier.Reply, st time.Time) classifier.Outcome {
	ctx = context.WithoutCancel(ctx)
	out := d.classifier.Classify(d.bindHandler(ctx, msg), reply)
	if out.Kind == classifier.KindRetry {
		out = d.schedule(ctx, msg, out)
	}
	d.metrics.observe(out, len(msg.DeviceTokens), time.Since(st))
	if out.Kind == classifier.KindFatal {
		log.Warn("message dropped", zap.Error(out.Err), zap.Int("tokens", len(msg.DeviceTokens)), zap.Int("retry", msg.RetryCount))
	}
	return out
}

func (d *dispatcher) schedule(ctx context.Context, msg domain.Message, out classifier.Outcome) classifier.Outcome {
	if out.Tokens != nil {
		msg = msg.WithTokens(out.Tokens)
	}
	ctx, cancel := context.WithTimeout(ctx, scheduleTimeout)
	defer cancel()
	job := retry.NewJob(msg, out.Reason, out.Delay)
	if err := d.queue.Schedule(ctx, job); err != nil {
		log.Error("could not defer retry", zap.String("queue", retry.QueueName), zap.Error(err))
		return classifier.Outcome{
			Kind:    classifier.KindFatal,
			Err:     &gcmapi.FatalError{Kind: gcmapi.FatalRetryUnavailable, Code: out.Reason, Err: err},
			Updated: out.Updated,
			Evicted: out.Evicted,
		}
	}
	return out
}

func (d *dispatcher) bindHandler(ctx context.Context, msg domain.Message) domain.Message {
	h := d.handler
	if h == nil {
		return msg
	}
	if msg.OnTokenUpdate == nil {
		msg.OnTokenUpdate = func(oldToken, newToken string) error {
			return h.TokenUpdated(ctx, oldToken, newToken)
		}
	}
	if msg.OnTokenInvalid == nil {
		msg.OnTokenInvalid = func(token string) error {
			return h.TokenInvalid(ctx, token)
		}
	}
	return msg
}

// Close waits for attempts in flight so their retries still reach the queue.
func (d *dispatcher) Close(ctx context.Context) (err error) {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	done := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
