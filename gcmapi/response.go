package gcmapi

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type Result struct {
	MessageId      string `json:"message_id,omitempty"`
	RegistrationId string `json:"registration_id,omitempty"`
	Error          string `json:"error,omitempty"`
}

// IsCanonical reports whether the result carries a replacement token.
func (r Result) IsCanonical() bool {
	return r.MessageId != "" && r.RegistrationId != ""
}

// CanonicalIds is the count of replaced tokens. The gateway sends either a number or a list.
type CanonicalIds int

func (c *CanonicalIds) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*c = CanonicalIds(len(list))
		return nil
	}
	if string(data) == "null" {
		*c = 0
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*c = CanonicalIds(n)
	return nil
}

type Response struct {
	MulticastId  int64        `json:"multicast_id,omitempty"`
	Success      int          `json:"success"`
	Failure      int          `json:"failure"`
	CanonicalIds CanonicalIds `json:"canonical_ids"`
	Results      []Result     `json:"results,omitempty"`
}

// NeedsInspection reports whether the per token results must be walked.
func (r Response) NeedsInspection() bool {
	return r.Failure != 0 || r.CanonicalIds != 0
}

func ParseResponse(body []byte) (resp Response, err error) {
	err = json.Unmarshal(body, &resp)
	return
}

const maxRetryAfterSec = math.MaxInt64 / int64(time.Second)

// ParseRetryAfter reads a Retry-After header value given as delta seconds or as an HTTP date.
// Values too large for a time.Duration saturate.
func ParseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if sec, err := strconv.Atoi(value); err == nil {
		if sec < 0 {
			return 0, false
		}
		if int64(sec) > maxRetryAfterSec {
			return time.Duration(math.MaxInt64), true
		}
		return time.Duration(sec) * time.Second, true
	}
	if t, err := http.ParseTime(value); err == nil {
		d := t.Sub(now).Round(time.Second)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}
