package classifier

import (
	"fmt"
	"time"

	"github.com/anyproto/gcm-dispatcher/gcmapi"
)

type Kind uint8

const (
	KindSuccess Kind = iota
	KindFatal
	KindRetry
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindFatal:
		return "fatal"
	case KindRetry:
		return "retry"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Outcome is the result of classifying a single attempt.
// Success and Fatal are terminal, Retry asks for another attempt after Delay.
type Outcome struct {
	Kind Kind
	// Err is set for KindFatal.
	Err *gcmapi.FatalError
	// Delay and Reason are set for KindRetry.
	Delay  time.Duration
	Reason string
	// Tokens narrows a retry to a subset of the message tokens. Nil means all of them.
	Tokens []string

	Updated int
	Evicted int
}

func (o Outcome) Error() error {
	if o.Kind == KindFatal && o.Err != nil {
		return o.Err
	}
	return nil
}

func (o Outcome) String() string {
	switch o.Kind {
	case KindFatal:
		return "fatal: " + o.Err.Error()
	case KindRetry:
		return fmt.Sprintf("retry in %s (%s)", o.Delay, o.Reason)
	}
	return o.Kind.String()
}

func success() Outcome {
	return Outcome{Kind: KindSuccess}
}

func fatal(err *gcmapi.FatalError) Outcome {
	return Outcome{Kind: KindFatal, Err: err}
}
