package usage

import (
	"context"
	"errors"
	"time"

	"github.com/mono-ai/aiproxy/internal/balance"
	"github.com/mono-ai/aiproxy/internal/billing"
	"github.com/mono-ai/aiproxy/internal/models"
	log "github.com/sirupsen/logrus"
)

const defaultConsumeTimeout = 30 * time.Second

// ErrMissingInput is returned by Consume when metadata, usage or price is absent.
var ErrMissingInput = errors.New("usage: missing consumption input")

// ConsumeInput carries one settled relay into the recorder.
type ConsumeInput struct {
	Meta       *RequestMeta
	Usage      *models.Usage
	Price      *models.Price
	Consumer   balance.Consumer // Nil when billing is disabled.
	StatusCode int
	RetryTimes int
	Success    bool
	Content    string
}

// Recorder prices, charges and logs consumptions.
type Recorder struct {
	sink    LogSink
	pool    *Pool
	timeout time.Duration
}

// NewRecorder creates a recorder; pool may be nil when only Consume is used.
func NewRecorder(sink LogSink, pool *Pool) *Recorder {
	return &Recorder{sink: sink, pool: pool, timeout: defaultConsumeTimeout}
}

// Consume settles in synchronously and returns the amount recorded.
// A failed remote charge is logged and the computed amount is recorded instead; sink
// failures are logged and never returned.
func (r *Recorder) Consume(ctx context.Context, in ConsumeInput) (float64, error) {
	if in.Meta == nil || in.Usage == nil || in.Price == nil {
		log.WithFields(log.Fields{
			"meta":  in.Meta != nil,
			"usage": in.Usage != nil,
			"price": in.Price != nil,
		}).Error("usage: consume called with missing input")
		return 0, ErrMissingInput
	}

	amount := billing.CalculateAmount(in.StatusCode, *in.Usage, *in.Price)
	final := amount
	if amount > 0 && in.Consumer != nil {
		charged, errConsume := in.Consumer.PostConsume(ctx, in.Meta.TokenName(), amount)
		if errConsume != nil {
			log.WithError(errConsume).WithFields(log.Fields{
				"request_id": in.Meta.RequestID,
				"group":      in.Meta.GroupID(),
				"token":      in.Meta.TokenName(),
				"model":      in.Meta.Model,
				"amount":     amount,
			}).Error("usage: post consume failed")
		} else {
			final = charged
		}
	}

	if r.sink != nil {
		errRecord := r.sink.RecordConsumption(ctx, Consumption{
			Meta:       *in.Meta,
			Usage:      *in.Usage,
			Price:      *in.Price,
			Amount:     final,
			StatusCode: in.StatusCode,
			RetryTimes: in.RetryTimes,
			Success:    in.Success,
			Content:    in.Content,
		})
		if errRecord != nil {
			log.WithError(errRecord).WithFields(log.Fields{
				"request_id": in.Meta.RequestID,
				"group":      in.Meta.GroupID(),
				"model":      in.Meta.Model,
			}).Error("usage: record consumption failed")
		}
	}
	return final, nil
}

// ConsumeAsync schedules Consume on the worker pool and returns immediately.
func (r *Recorder) ConsumeAsync(in ConsumeInput) {
	task := func(ctx context.Context) {
		taskCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		_, _ = r.Consume(taskCtx, in)
	}
	if r.pool == nil {
		go task(context.Background())
		return
	}
	if errSubmit := r.pool.Submit(task); errSubmit != nil {
		log.WithError(errSubmit).WithFields(log.Fields{
			"request_id": requestID(in.Meta),
			"group":      in.Meta.GroupID(),
		}).Error("usage: consumption dropped")
	}
}

func requestID(meta *RequestMeta) string {
	if meta == nil {
		return ""
	}
	return meta.RequestID
}
