//go:generate mockgen -destination mock_retry/mock_retry.go github.com/anyproto/gcm-dispatcher/retry Queue

package retry

import (
	"context"
	"errors"

	"github.com/anyproto/any-sync/app"
)

// CName is shared by every Queue implementation so that exactly one of them is registered.
const CName = "gcm.retryqueue"

// QueueName identifies the retry queue in the delayed-execution substrate.
const QueueName = "gcm-retries"

var ErrQueueUnavailable = errors.New("retry queue unavailable")

type Handler func(ctx context.Context, job Job) error

// Queue runs jobs no earlier than their delay, at least once.
type Queue interface {
	Schedule(ctx context.Context, job Job) error
	Consume(ctx context.Context, handle Handler) error
	app.ComponentRunnable
}
