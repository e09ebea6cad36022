package gcmapi

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidMessage = errors.New("invalid message")
	ErrTransport      = errors.New("transport error")

	ErrBadRequest          = errors.New("gateway rejected the payload")
	ErrInternalServer      = errors.New("gateway internal server error")
	ErrUnexpectedStatus    = errors.New("unexpected gateway status")
	ErrMalformedResponse   = errors.New("malformed gateway response")
	ErrMissingRegistration = errors.New("message sent without registration ids")
	ErrPayloadTooLarge     = errors.New("payload exceeds 4096 bytes")
	ErrInvalidTimeToLive   = errors.New("time to live must be between 0 and 2419200 seconds")
	ErrReservedKeyUsed     = errors.New("payload data uses a reserved key")
	ErrUnknownGatewayError = errors.New("unknown gateway error")
	ErrRetryUnavailable    = errors.New("retry could not be scheduled")
	ErrRetriesExhausted    = errors.New("retry limit reached")
)

type FatalKind uint8

const (
	FatalBadRequest FatalKind = iota + 1
	FatalInternalServerError
	FatalUnexpectedStatus
	FatalMalformedResponse
	FatalTransportError
	FatalMissingRegistration
	FatalPayloadTooLarge
	FatalInvalidTimeToLive
	FatalReservedKeyUsed
	FatalUnknownGatewayError
	FatalRetryUnavailable
	FatalRetriesExhausted
)

var fatalKinds = map[FatalKind]struct {
	name string
	err  error
}{
	FatalBadRequest:          {"BadRequest", ErrBadRequest},
	FatalInternalServerError: {"InternalServerError", ErrInternalServer},
	FatalUnexpectedStatus:    {"UnexpectedStatus", ErrUnexpectedStatus},
	FatalMalformedResponse:   {"MalformedResponse", ErrMalformedResponse},
	FatalTransportError:      {"TransportError", ErrTransport},
	FatalMissingRegistration: {"MissingRegistration", ErrMissingRegistration},
	FatalPayloadTooLarge:     {"PayloadTooLarge", ErrPayloadTooLarge},
	FatalInvalidTimeToLive:   {"InvalidTimeToLive", ErrInvalidTimeToLive},
	FatalReservedKeyUsed:     {"ReservedKeyUsed", ErrReservedKeyUsed},
	FatalUnknownGatewayError: {"UnknownGatewayError", ErrUnknownGatewayError},
	FatalRetryUnavailable:    {"RetryUnavailable", ErrRetryUnavailable},
	FatalRetriesExhausted:    {"RetriesExhausted", ErrRetriesExhausted},
}

func (k FatalKind) String() string {
	if v, ok := fatalKinds[k]; ok {
		return v.name
	}
	return fmt.Sprintf("FatalKind(%d)", uint8(k))
}

// Sentinel returns the package level error matched by errors.Is for this kind.
func (k FatalKind) Sentinel() error {
	return fatalKinds[k].err
}

// FatalError is a terminal, never retried outcome of a dispatch attempt.
type FatalError struct {
	Kind FatalKind
	// Code is the gateway error string for result level errors.
	Code string
	// Token is the device token the result level error was reported for.
	Token string
	// Status is the HTTP status for status level errors.
	Status int
	Err    error
}

func (e *FatalError) Error() string {
	msg := "gcm: " + e.Kind.String()
	if e.Code != "" {
		msg += " (" + e.Code + ")"
	}
	if e.Status != 0 {
		msg += fmt.Sprintf(" status=%d", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FatalError) Is(target error) bool {
	return target != nil && target == e.Kind.Sentinel()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// SerializationError is returned when a message cannot be turned into a wire payload.
type SerializationError struct {
	Reason string
}

func (e *SerializationError) Error() string {
	return "gcm: serialize: " + e.Reason
}
