package classifier

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/anyproto/any-sync/app/logger"
	"go.uber.org/zap"

	"github.com/anyproto/gcm-dispatcher/domain"
	"github.com/anyproto/gcm-dispatcher/gcmapi"
	"github.com/anyproto/gcm-dispatcher/retry"
)

var log = logger.NewNamed("gcm.classifier")

// Reply is what the transport got back for one attempt.
// Err is set when no HTTP response was received at all.
type Reply struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Err        error
}

type Classifier struct {
	policy retry.Policy
	// firstResultOnly stops the results walk at the first update or error entry.
	firstResultOnly bool
	now             func() time.Time
}

func New(policy retry.Policy, firstResultOnly bool) *Classifier {
	return &Classifier{
		policy:          policy,
		firstResultOnly: firstResultOnly,
		now:             time.Now,
	}
}

// Classify turns a reply into an outcome and runs the token callbacks of msg for every
// rotation and eviction reported by the gateway.
func (c *Classifier) Classify(msg domain.Message, reply Reply) Outcome {
	if reply.Err != nil {
		log.Error("transport error", zap.Int("retry", msg.RetryCount), zap.Error(reply.Err))
		return fatal(&gcmapi.FatalError{Kind: gcmapi.FatalTransportError, Err: reply.Err})
	}

	switch code := reply.StatusCode; {
	case code == http.StatusOK:
		return c.classifyBody(msg, reply.Body)
	case code == http.StatusBadRequest:
		log.Error("invalid gcm json message", zap.ByteString("body", reply.Body))
		return fatal(&gcmapi.FatalError{Kind: gcmapi.FatalBadRequest, Status: code})
	case code == http.StatusUnauthorized:
		log.Error("error authenticating with gcm, might need to fix the api key", zap.Int("retry", msg.RetryCount))
		return c.retry(msg, retry.DefaultBaseDelay, strconv.Itoa(code), nil)
	case code == http.StatusServiceUnavailable:
		base := retry.DefaultBaseDelay
		if d, ok := gcmapi.ParseRetryAfter(reply.Header.Get("Retry-After"), c.now()); ok {
			base = d
		}
		log.Warn("gcm throttled", zap.Duration("retryAfter", base), zap.Int("retry", msg.RetryCount))
		return c.retry(msg, base, strconv.Itoa(code), nil)
	case code >= 500 && code < 600:
		log.Error("internal error in the gcm server", zap.Int("status", code))
		return fatal(&gcmapi.FatalError{Kind: gcmapi.FatalInternalServerError, Status: code})
	default:
		log.Error("unexpected gcm status", zap.Int("status", code))
		return fatal(&gcmapi.FatalError{Kind: gcmapi.FatalUnexpectedStatus, Status: code})
	}
}

func (c *Classifier) classifyBody(msg domain.Message, body []byte) Outcome {
	resp, err := gcmapi.ParseResponse(body)
	if err != nil {
		log.Error("can't parse gcm response", zap.ByteString("body", body), zap.Error(err))
		return fatal(&gcmapi.FatalError{Kind: gcmapi.FatalMalformedResponse, Status: http.StatusOK, Err: err})
	}
	if !resp.NeedsInspection() {
		return success()
	}
	if len(resp.Results) > len(msg.DeviceTokens) {
		log.Warn("gcm returned more results than tokens", zap.Int("results", len(resp.Results)), zap.Int("tokens", len(msg.DeviceTokens)))
	}

	var (
		fatalErr    *gcmapi.FatalError
		retryTokens []string
		out         Outcome
	)
	for i, res := range resp.Results {
		if i >= len(msg.DeviceTokens) {
			break
		}
		token := msg.DeviceTokens[i]
		switch {
		case res.IsCanonical():
			out.Updated++
			c.tokenUpdated(msg, token, res.RegistrationId)
		case res.Error != "":
			action := gcmapi.LookupError(res.Error)
			switch action.Action {
			case gcmapi.ActionEvict:
				if res.Error == gcmapi.CodeMismatchSenderId {
					log.Error("device token is tied to a different sender id", zap.String("token", token))
				}
				out.Evicted++
				c.tokenInvalid(msg, token, res.Error)
			case gcmapi.ActionRetry:
				retryTokens = append(retryTokens, token)
			default:
				log.Error("gcm result error", zap.String("code", res.Error), zap.String("token", token), zap.String("kind", action.Kind.String()))
				if fatalErr == nil {
					fatalErr = &gcmapi.FatalError{Kind: action.Kind, Code: res.Error, Token: token}
				}
			}
		default:
			continue
		}
		if c.firstResultOnly {
			break
		}
	}

	switch {
	case fatalErr != nil:
		out.Kind, out.Err = KindFatal, fatalErr
	case len(retryTokens) > 0:
		var tokens []string
		if !c.firstResultOnly {
			tokens = retryTokens
		}
		r := c.retry(msg, retry.DefaultBaseDelay, gcmapi.CodeUnavailable, tokens)
		r.Updated, r.Evicted = out.Updated, out.Evicted
		return r
	default:
		out.Kind = KindSuccess
	}
	return out
}

func (c *Classifier) retry(msg domain.Message, base time.Duration, reason string, tokens []string) Outcome {
	if c.policy.Exhausted(msg.RetryCount + 1) {
		log.Error("retry limit reached, dropping message", zap.Int("retry", msg.RetryCount), zap.String("reason", reason))
		return fatal(&gcmapi.FatalError{Kind: gcmapi.FatalRetriesExhausted, Code: reason})
	}
	delay := c.policy.Delay(base, msg.RetryCount)
	log.Info("requeue message", zap.Duration("delay", delay), zap.Int("retry", msg.RetryCount+1), zap.String("reason", reason))
	return Outcome{Kind: KindRetry, Delay: delay, Reason: reason, Tokens: tokens}
}

func (c *Classifier) tokenUpdated(msg domain.Message, oldToken, newToken string) {
	if msg.OnTokenUpdate == nil {
		log.Info("token updated, no handler", zap.String("token", oldToken))
		return
	}
	err := safeCall(func() error { return msg.OnTokenUpdate(oldToken, newToken) })
	if err != nil {
		log.Warn("error updating device token", zap.String("token", oldToken), zap.Error(err))
	}
}

func (c *Classifier) tokenInvalid(msg domain.Message, token, code string) {
	if msg.OnTokenInvalid == nil {
		log.Info("invalid token, no handler", zap.String("token", token), zap.String("code", code))
		return
	}
	if err := safeCall(func() error { return msg.OnTokenInvalid(token) }); err != nil {
		log.Warn("error removing device token", zap.String("token", token), zap.Error(err))
	}
}

func safeCall(f func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("callback panic: %v", r)
		}
	}()
	return f()
}
