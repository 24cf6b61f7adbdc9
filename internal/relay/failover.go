package relay

import (
	"context"
	"errors"
	"time"

	"github.com/mono-ai/aiproxy/internal/channel"
	"github.com/mono-ai/aiproxy/internal/models"
	log "github.com/sirupsen/logrus"
)

// Result is a relay that produced an upstream response.
type Result struct {
	Response    *Response
	Channel     *models.Channel
	ActualModel string // Model name sent upstream after mapping.
	Attempts    int    // Attempts across all channels tried.
}

// RetryTimes returns the number of attempts beyond the first.
func (r *Result) RetryTimes() int {
	if r == nil || r.Attempts <= 1 {
		return 0
	}
	return r.Attempts - 1
}

// Failover relays through candidates in order, moving to the next channel when one exhausts
// its retries with a retryable failure.
type Failover struct {
	executor *Executor
}

// NewFailover creates a Failover over executor.
func NewFailover(executor *Executor) *Failover {
	if executor == nil {
		executor = NewExecutor()
	}
	return &Failover{executor: executor}
}

// Relay sends out for model through candidates. A response with status below 500 ends the
// relay. When every candidate fails, the returned *UpstreamError describes the last attempt
// and counts attempts across all channels.
func (f *Failover) Relay(ctx context.Context, candidates []*models.Channel, model string, out *Outbound, timeout time.Duration, maxRetries int) (*Result, error) {
	if len(candidates) == 0 {
		return nil, ErrNoSuitableChannel
	}

	var (
		total   int
		lastErr error
	)
	remaining := candidates
	for len(remaining) > 0 {
		ch := remaining[0]
		actual := ch.MappedModel(model)
		attemptOut := *out
		if actual != model {
			body, errRewrite := RewriteModel(out.Body, actual)
			if errRewrite != nil {
				log.WithError(errRewrite).WithField("channel", ch.ID).Warn("relay: rewrite model failed")
			} else {
				attemptOut.Body = body
			}
		}

		resp, attempts, errExec := f.executor.Execute(ctx, ch, &attemptOut, timeout, maxRetries)
		total += attempts
		if errExec == nil {
			return &Result{Response: resp, Channel: ch, ActualModel: actual, Attempts: total}, nil
		}

		var upstreamErr *UpstreamError
		if !errors.As(errExec, &upstreamErr) {
			return nil, errExec
		}
		lastErr = errExec
		if ctx.Err() != nil {
			break
		}
		remaining = channel.Exclude(remaining, ch.ID)
		if len(remaining) > 0 {
			log.WithError(errExec).WithFields(log.Fields{
				"channel": ch.ID,
				"next":    remaining[0].ID,
				"model":   model,
			}).Warn("relay: failing over to next channel")
		}
	}

	var upstreamErr *UpstreamError
	if errors.As(lastErr, &upstreamErr) {
		upstreamErr.Attempts = total
	}
	return nil, lastErr
}
