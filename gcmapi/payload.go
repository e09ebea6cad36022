package gcmapi

import (
	"encoding/json"

	"github.com/anyproto/gcm-dispatcher/domain"
)

// Payload is the JSON body posted to the gateway send endpoint.
// Absent optional fields are omitted, never sent as null.
type Payload struct {
	RegistrationIds []string       `json:"registration_ids"`
	Data            map[string]any `json:"data"`
	CollapseKey     string         `json:"collapse_key,omitempty"`
	DelayWhileIdle  bool           `json:"delay_while_idle,omitempty"`
	TimeToLive      *int           `json:"time_to_live,omitempty"`
}

func NewPayload(msg domain.Message) (Payload, error) {
	if len(msg.DeviceTokens) == 0 {
		return Payload{}, &SerializationError{Reason: "no device tokens"}
	}
	if msg.Notification.IsZero() {
		return Payload{}, &SerializationError{Reason: "no notification"}
	}
	return Payload{
		RegistrationIds: msg.DeviceTokens,
		Data:            msg.Notification.Data(),
		CollapseKey:     msg.CollapseKey,
		DelayWhileIdle:  msg.DelayWhileIdle,
		TimeToLive:      msg.TimeToLive,
	}, nil
}

func Serialize(msg domain.Message) ([]byte, error) {
	p, err := NewPayload(msg)
	if err != nil {
		return nil, err
	}
	return json.Marshal(p)
}

func ParsePayload(data []byte) (p Payload, err error) {
	err = json.Unmarshal(data, &p)
	return
}

// ValidateMessage checks everything that must hold before a message is handed to the transport.
func ValidateMessage(msg domain.Message) error {
	if len(msg.DeviceTokens) == 0 {
		return &invalidMessageError{reason: "device tokens are empty"}
	}
	if msg.Notification.IsZero() {
		return &invalidMessageError{reason: "notification is absent"}
	}
	if msg.TimeToLive != nil && (*msg.TimeToLive < 0 || *msg.TimeToLive > domain.MaxTimeToLive) {
		return &invalidMessageError{reason: "time to live is out of range"}
	}
	return nil
}

type invalidMessageError struct {
	reason string
}

func (e *invalidMessageError) Error() string {
	return "gcm: invalid message: " + e.reason
}

func (e *invalidMessageError) Unwrap() error {
	return ErrInvalidMessage
}
