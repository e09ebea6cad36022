package dispatcher

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/anyproto/gcm-dispatcher/classifier"
)

const maxResponseSize = 1 << 20

type Request struct {
	URL    string
	Header http.Header
	Body   []byte
}

// Transport posts a request without blocking and reports the reply through complete.
// complete is called exactly once, on any goroutine.
type Transport interface {
	Post(ctx context.Context, req Request, complete func(reply classifier.Reply))
}

// NewHTTPTransport returns a Transport backed by an http.Client with the given timeout.
func NewHTTPTransport(timeout time.Duration) Transport {
	return &httpTransport{client: &http.Client{Timeout: timeout}}
}

type httpTransport struct {
	client *http.Client
}

func (t *httpTransport) Post(ctx context.Context, req Request, complete func(reply classifier.Reply)) {
	go func() {
		complete(t.do(ctx, req))
	}()
}

func (t *httpTransport) do(ctx context.Context, req Request) classifier.Reply {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return classifier.Reply{Err: err}
	}
	httpReq.Header = req.Header.Clone()
	resp, err := t.client.Do(httpReq)
	if err != nil {
		return classifier.Reply{Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return classifier.Reply{Err: err}
	}
	return classifier.Reply{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}
}
