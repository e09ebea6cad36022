package retry

import (
	"time"

	"github.com/google/uuid"

	"github.com/anyproto/gcm-dispatcher/domain"
)

// Job is a message snapshot waiting for its next attempt.
type Job struct {
	Id      string         `json:"id"`
	Message domain.Message `json:"message"`
	// Reason is the gateway code or HTTP status that caused the retry.
	Reason    string        `json:"reason"`
	Delay     time.Duration `json:"delay"`
	NotBefore int64         `json:"notBefore"`
}

func NewJob(msg domain.Message, reason string, delay time.Duration) Job {
	return Job{
		Id:        uuid.NewString(),
		Message:   msg,
		Reason:    reason,
		Delay:     delay,
		NotBefore: time.Now().Add(delay).UnixMilli(),
	}
}

// Due returns the earliest time the job may run.
func (j Job) Due() time.Time {
	return time.UnixMilli(j.NotBefore)
}
