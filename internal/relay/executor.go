// Package relay forwards requests to upstream channels with per-attempt deadlines, retries and failover.
package relay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/mono-ai/aiproxy/internal/models"
	log "github.com/sirupsen/logrus"
)

// Outbound is a client request prepared for relaying. Body is re-sent in full on every attempt.
type Outbound struct {
	Method   string
	Path     string // Request path appended to the channel base URL, e.g. "/v1/chat/completions".
	RawQuery string
	Header   http.Header
	Body     []byte
}

// Response is a fully read upstream response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Executor sends an Outbound to one channel, retrying retryable failures.
type Executor struct {
	client  *http.Client
	backoff func(attempt int) time.Duration
}

// ExecutorOption configures Executor.
type ExecutorOption func(*Executor)

// WithHTTPClient sets the client used for upstream calls.
func WithHTTPClient(client *http.Client) ExecutorOption {
	return func(e *Executor) {
		if client != nil {
			e.client = client
		}
	}
}

// WithBackoff replaces the delay before retry number attempt+1.
func WithBackoff(backoff func(attempt int) time.Duration) ExecutorOption {
	return func(e *Executor) {
		if backoff != nil {
			e.backoff = backoff
		}
	}
}

// LinearBackoff waits attempt seconds after the attempt-th failure.
func LinearBackoff(attempt int) time.Duration {
	return time.Duration(attempt) * time.Second
}

// NewExecutor creates an executor. Deadlines come from Execute, so the default client has no timeout.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		client:  &http.Client{},
		backoff: LinearBackoff,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute relays out to ch. Network failures and 5xx responses are retried up to maxRetries
// more times; any status below 500 is returned immediately. The returned count is the number
// of attempts made. After the last attempt fails, the error is an *UpstreamError.
func (e *Executor) Execute(ctx context.Context, ch *models.Channel, out *Outbound, timeout time.Duration, maxRetries int) (*Response, int, error) {
	if ch == nil || out == nil {
		return nil, 0, fmt.Errorf("relay: nil channel or request")
	}
	if maxRetries < 0 {
		maxRetries = 0
	}

	var (
		lastResp *Response
		lastErr  error
		attempt  int
	)
	for attempt = 1; ; attempt++ {
		lastResp, lastErr = e.attempt(ctx, ch, out, timeout)
		if lastErr == nil && lastResp.StatusCode < http.StatusInternalServerError {
			return lastResp, attempt, nil
		}

		fields := log.Fields{"channel": ch.ID, "attempt": attempt, "max_retries": maxRetries}
		if lastErr != nil {
			log.WithError(lastErr).WithFields(fields).Warn("relay: attempt failed")
		} else {
			fields["status"] = lastResp.StatusCode
			log.WithFields(fields).Warn("relay: upstream returned server error")
		}

		if attempt > maxRetries || ctx.Err() != nil {
			break
		}
		if errWait := sleepContext(ctx, e.backoff(attempt)); errWait != nil {
			break
		}
	}
	return nil, attempt, newUpstreamError(ch.ID, attempt, lastResp, lastErr)
}

func (e *Executor) attempt(ctx context.Context, ch *models.Channel, out *Outbound, timeout time.Duration) (*Response, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, errReq := buildRequest(ctx, ch, out)
	if errReq != nil {
		return nil, errReq
	}

	resp, errDo := e.client.Do(req)
	if errDo != nil {
		return nil, errDo
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, errRead := io.ReadAll(resp.Body)
	if errRead != nil {
		return nil, fmt.Errorf("read upstream body: %w", errRead)
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header.Clone(), Body: body}, nil
}

func buildRequest(ctx context.Context, ch *models.Channel, out *Outbound) (*http.Request, error) {
	target := strings.TrimRight(ch.BaseURL, "/") + out.Path
	if out.RawQuery != "" {
		target += "?" + out.RawQuery
	}
	method := out.Method
	if method == "" {
		method = http.MethodPost
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(out.Body))
	if err != nil {
		return nil, fmt.Errorf("relay: build request: %w", err)
	}
	CopyHeaders(req.Header, out.Header)
	if ch.Key != "" {
		req.Header.Set("Authorization", "Bearer "+ch.Key)
	}
	if len(out.Body) > 0 && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func newUpstreamError(channelID uint64, attempts int, resp *Response, err error) *UpstreamError {
	ue := &UpstreamError{ChannelID: channelID, Attempts: attempts, Err: err}
	switch {
	case err == nil && resp != nil:
		ue.Kind = ErrUpstreamHTTP
		ue.StatusCode = resp.StatusCode
		ue.Body = resp.Body
	case isTimeout(err):
		ue.Kind = ErrUpstreamTimeout
	default:
		ue.Kind = ErrUpstreamIO
	}
	return ue
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
