package domain

import (
	"bytes"
	"encoding/json"
	"errors"
)

type NotificationKind uint8

const (
	NotificationNone NotificationKind = iota
	NotificationStructured
	NotificationScalar
)

// Notification is either a mapping sent verbatim as the payload data fields
// or a single scalar value wrapped under the "data" key.
type Notification struct {
	kind   NotificationKind
	fields map[string]any
	value  any
}

func Structured(fields map[string]any) Notification {
	return Notification{kind: NotificationStructured, fields: fields}
}

func Scalar(value any) Notification {
	return Notification{kind: NotificationScalar, value: value}
}

func (n Notification) Kind() NotificationKind {
	return n.kind
}

// IsZero reports whether the notification is absent. A scalar nil counts as absent.
func (n Notification) IsZero() bool {
	return n.kind == NotificationNone || (n.kind == NotificationScalar && n.value == nil)
}

func (n Notification) Fields() map[string]any {
	return n.fields
}

func (n Notification) Value() any {
	return n.value
}

// Data returns the object that goes into the wire payload "data" field.
func (n Notification) Data() map[string]any {
	switch n.kind {
	case NotificationStructured:
		if n.fields == nil {
			return map[string]any{}
		}
		return n.fields
	case NotificationScalar:
		return map[string]any{"data": n.value}
	}
	return nil
}

type notificationJSON struct {
	Structured map[string]any `json:"structured,omitempty"`
	Scalar     *any           `json:"scalar,omitempty"`
}

var errUnknownNotification = errors.New("notification: neither structured nor scalar")

// MarshalJSON keeps the variant tag so a notification survives a trip through a persistent queue.
func (n Notification) MarshalJSON() ([]byte, error) {
	switch n.kind {
	case NotificationStructured:
		fields := n.fields
		if fields == nil {
			fields = map[string]any{}
		}
		return json.Marshal(notificationJSON{Structured: fields})
	case NotificationScalar:
		v := n.value
		return json.Marshal(notificationJSON{Scalar: &v})
	}
	return []byte("null"), nil
}

func (n *Notification) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*n = Notification{}
		return nil
	}
	// numbers stay json.Number so they re-marshal exactly as they were sent
	var raw notificationJSON
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	switch {
	case raw.Structured != nil:
		*n = Structured(raw.Structured)
	case raw.Scalar != nil:
		*n = Scalar(*raw.Scalar)
	default:
		return errUnknownNotification
	}
	return nil
}
