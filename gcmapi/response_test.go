package gcmapi

import (
	"errors"
	"math"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResponse(t *testing.T) {
	t.Run("canonical ids as list", func(t *testing.T) {
		resp, err := ParseResponse([]byte(`{"results": [], "failure": 0, "canonical_ids": []}`))
		require.NoError(t, err)
		assert.False(t, resp.NeedsInspection())
	})
	t.Run("canonical ids as number", func(t *testing.T) {
		resp, err := ParseResponse([]byte(`{"multicast_id": 1, "success": 1, "failure": 0, "canonical_ids": 1,
			"results": [{"message_id": "m1", "registration_id": "new"}]}`))
		require.NoError(t, err)
		assert.True(t, resp.NeedsInspection())
		require.Len(t, resp.Results, 1)
		assert.True(t, resp.Results[0].IsCanonical())
	})
	t.Run("error result", func(t *testing.T) {
		resp, err := ParseResponse([]byte(`{"failure": 1, "canonical_ids": 0, "results": [{"error": "NotRegistered"}]}`))
		require.NoError(t, err)
		assert.True(t, resp.NeedsInspection())
		assert.Equal(t, CodeNotRegistered, resp.Results[0].Error)
		assert.False(t, resp.Results[0].IsCanonical())
	})
	t.Run("malformed", func(t *testing.T) {
		_, err := ParseResponse([]byte(`<html>`))
		require.Error(t, err)
	})
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d, ok := ParseRetryAfter("30", now)
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, d)

	d, ok = ParseRetryAfter(now.Add(2*time.Minute).Format(http.TimeFormat), now)
	require.True(t, ok)
	assert.Equal(t, 2*time.Minute, d)

	d, ok = ParseRetryAfter("9300000000", now)
	require.True(t, ok)
	assert.Equal(t, time.Duration(math.MaxInt64), d)

	for _, v := range []string{"", "-5", "soon"} {
		_, ok = ParseRetryAfter(v, now)
		assert.False(t, ok, v)
	}
}

func TestLookupError(t *testing.T) {
	assert.Equal(t, ActionEvict, LookupError(CodeNotRegistered).Action)
	assert.Equal(t, ActionEvict, LookupError(CodeMismatchSenderId).Action)
	assert.Equal(t, ActionRetry, LookupError(CodeUnavailable).Action)
	assert.Equal(t, ErrorAction{Action: ActionFatal, Kind: FatalReservedKeyUsed}, LookupError(CodeInvalidDataKey))
	assert.Equal(t, ErrorAction{Action: ActionFatal, Kind: FatalUnknownGatewayError}, LookupError("Whatever"))
}

func TestFatalError_Is(t *testing.T) {
	err := error(&FatalError{Kind: FatalPayloadTooLarge, Code: CodeMessageTooBig})
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
	assert.False(t, errors.Is(err, ErrBadRequest))
	assert.Contains(t, err.Error(), "PayloadTooLarge")

	wrapped := &FatalError{Kind: FatalTransportError, Err: errors.New("dial tcp: refused")}
	assert.ErrorIs(t, wrapped, ErrTransport)
	assert.Contains(t, wrapped.Error(), "refused")
}
