package dispatcher

import (
	"context"

	"github.com/anyproto/gcm-dispatcher/classifier"
)

// Pending is the handle of an attempt in flight.
type Pending struct {
	done    chan struct{}
	outcome classifier.Outcome
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func (p *Pending) resolve(out classifier.Outcome) {
	p.outcome = out
	close(p.done)
}

// Done is closed once the attempt is classified.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Outcome returns the outcome and whether it is already known.
func (p *Pending) Outcome() (classifier.Outcome, bool) {
	select {
	case <-p.done:
		return p.outcome, true
	default:
		return classifier.Outcome{}, false
	}
}

// Wait blocks until the attempt is classified. A fatal outcome is also returned as the error.
func (p *Pending) Wait(ctx context.Context) (classifier.Outcome, error) {
	select {
	case <-ctx.Done():
		return classifier.Outcome{}, ctx.Err()
	case <-p.done:
		return p.outcome, p.outcome.Error()
	}
}
