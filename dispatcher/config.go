package dispatcher

import (
	"time"

	"github.com/anyproto/gcm-dispatcher/retry"
)

const (
	SendURL      = "https://android.googleapis.com/gcm/send"
	DebugSendURL = "http://android.googleapis.com/gcm/send"
)

type configSource interface {
	GetGCM() Config
}

type Config struct {
	// Endpoint overrides the gateway url.
	Endpoint string `yaml:"endpoint"`
	// Debug switches to the plain http gateway url.
	Debug           bool `yaml:"debug"`
	TimeoutSec      int  `yaml:"timeoutSec"`
	MaxRetries      int  `yaml:"maxRetries"`
	MaxBackoffSec   int  `yaml:"maxBackoffSec"`
	FirstResultOnly bool `yaml:"firstResultOnly"`
	RetryWorkers    int  `yaml:"retryWorkers"`
}

func (c Config) URL() string {
	switch {
	case c.Endpoint != "":
		return c.Endpoint
	case c.Debug:
		return DebugSendURL
	}
	return SendURL
}

func (c Config) Timeout() time.Duration {
	if c.TimeoutSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSec) * time.Second
}

func (c Config) Policy() retry.Policy {
	return retry.Policy{
		MaxRetries: c.MaxRetries,
		MaxBackoff: time.Duration(c.MaxBackoffSec) * time.Second,
	}
}

func (c Config) workers() int {
	if c.RetryWorkers <= 0 {
		return 1
	}
	return c.RetryWorkers
}
