package retry

import (
	"math"
	"time"
)

// DefaultBaseDelay is used for 401, Unavailable and for 503 without a Retry-After header.
const DefaultBaseDelay = 10 * time.Second

// Policy computes backoff delays. Zero values mean no ceiling.
type Policy struct {
	MaxRetries int
	MaxBackoff time.Duration
}

// Delay returns base * 2^attempt, capped by MaxBackoff when set.
func (p Policy) Delay(base time.Duration, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if base < 0 {
		base = 0
	}
	d := time.Duration(math.MaxInt64)
	if attempt < 63 && base <= time.Duration(math.MaxInt64>>attempt) {
		d = base << attempt
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	return d
}

// Exhausted reports whether an attempt with the given retry count is over the limit.
func (p Policy) Exhausted(retryCount int) bool {
	return p.MaxRetries > 0 && retryCount > p.MaxRetries
}
