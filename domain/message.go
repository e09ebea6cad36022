package domain

// MaxTimeToLive is the longest time to live the gateway accepts, 4 weeks in seconds.
const MaxTimeToLive = 2419200

// Message is a single dispatch unit addressed to one or more device tokens.
// The position of a token in DeviceTokens matches the position of its result in the gateway response.
type Message struct {
	APIKey         string       `json:"apiKey"`
	DeviceTokens   []string     `json:"deviceTokens"`
	Notification   Notification `json:"notification"`
	CollapseKey    string       `json:"collapseKey,omitempty"`
	DelayWhileIdle bool         `json:"delayWhileIdle,omitempty"`
	TimeToLive     *int         `json:"timeToLive,omitempty"`
	RetryCount     int          `json:"retryCount"`

	// OnTokenUpdate is called when the gateway reports a canonical id for oldToken.
	OnTokenUpdate func(oldToken, newToken string) error `json:"-"`
	// OnTokenInvalid is called when the gateway reports that the token will never be deliverable.
	OnTokenInvalid func(token string) error `json:"-"`
}

// WithTokens returns a copy of the message addressed to the given tokens.
// Callbacks are shared with m.
func (m Message) WithTokens(tokens []string) Message {
	m.DeviceTokens = append([]string(nil), tokens...)
	return m
}

// TTL is a helper for building messages with a time to live.
func TTL(seconds int) *int {
	return &seconds
}
