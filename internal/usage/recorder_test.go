package usage

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/mono-ai/aiproxy/internal/models"
)

type fakeConsumer struct {
	mu      sync.Mutex
	calls   []float64
	tokens  []string
	charged float64
	err     error
}

func (f *fakeConsumer) PostConsume(_ context.Context, tokenName string, amount float64) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, amount)
	f.tokens = append(f.tokens, tokenName)
	if f.err != nil {
		return 0, f.err
	}
	if f.charged != 0 {
		return f.charged, nil
	}
	return amount, nil
}

type fakeSink struct {
	mu      sync.Mutex
	records []Consumption
	err     error
	done    chan struct{}
}

func (f *fakeSink) RecordConsumption(_ context.Context, c Consumption) error {
	f.mu.Lock()
	f.records = append(f.records, c)
	f.mu.Unlock()
	if f.done != nil {
		f.done <- struct{}{}
	}
	return f.err
}

func testInput(consumer *fakeConsumer) ConsumeInput {
	return ConsumeInput{
		Meta: &RequestMeta{
			RequestID: "req-1",
			Group:     &models.Group{ID: "ns-a"},
			Token:     &models.Token{ID: 3, Name: "app"},
			Model:     "gpt-4",
		},
		Usage:      &models.Usage{InputTokens: 1000, OutputTokens: 500},
		Price:      &models.Price{InputPrice: 1, InputPriceUnit: 1000, OutputPrice: 2, OutputPriceUnit: 1000},
		Consumer:   consumer,
		StatusCode: http.StatusOK,
		RetryTimes: 1,
		Success:    true,
	}
}

func TestConsumeChargesAndRecords(t *testing.T) {
	consumer := &fakeConsumer{charged: 2.000001}
	sink := &fakeSink{}
	recorder := NewRecorder(sink, nil)

	amount, err := recorder.Consume(context.Background(), testInput(consumer))
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if amount != 2.000001 {
		t.Fatalf("amount = %v, want charged amount", amount)
	}
	if len(consumer.calls) != 1 || consumer.calls[0] != 2.0 || consumer.tokens[0] != "app" {
		t.Fatalf("post consume calls = %v tokens = %v", consumer.calls, consumer.tokens)
	}
	if len(sink.records) != 1 {
		t.Fatalf("records = %d", len(sink.records))
	}
	rec := sink.records[0]
	if rec.Amount != 2.000001 || rec.RetryTimes != 1 || !rec.Success || rec.Meta.RequestID != "req-1" {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestConsumeFallsBackToComputedAmount(t *testing.T) {
	consumer := &fakeConsumer{err: errors.New("charge failed")}
	sink := &fakeSink{}
	amount, err := NewRecorder(sink, nil).Consume(context.Background(), testInput(consumer))
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if amount != 2.0 || sink.records[0].Amount != 2.0 {
		t.Fatalf("amount = %v, recorded = %v, want computed 2.0", amount, sink.records[0].Amount)
	}
}

func TestConsumeZeroAmountSkipsLedger(t *testing.T) {
	consumer := &fakeConsumer{}
	sink := &fakeSink{}
	in := testInput(consumer)
	in.Usage = &models.Usage{}

	if _, err := NewRecorder(sink, nil).Consume(context.Background(), in); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if len(consumer.calls) != 0 {
		t.Fatalf("ledger called for zero amount")
	}
	if len(sink.records) != 1 {
		t.Fatalf("zero-amount consumption still needs a log record")
	}
}

func TestConsumeMissingInput(t *testing.T) {
	consumer := &fakeConsumer{}
	sink := &fakeSink{}
	in := testInput(consumer)
	in.Price = nil

	if _, err := NewRecorder(sink, nil).Consume(context.Background(), in); !errors.Is(err, ErrMissingInput) {
		t.Fatalf("expected ErrMissingInput, got %v", err)
	}
	if len(consumer.calls) != 0 || len(sink.records) != 0 {
		t.Fatalf("missing input must not reach ledger or sink")
	}
}

func TestConsumeSinkFailureSwallowed(t *testing.T) {
	sink := &fakeSink{err: errors.New("db down")}
	if _, err := NewRecorder(sink, nil).Consume(context.Background(), testInput(&fakeConsumer{})); err != nil {
		t.Fatalf("sink failure must not surface, got %v", err)
	}
}

func TestConsumeAsyncRunsOnPool(t *testing.T) {
	pool := NewPool(2, 4)
	sink := &fakeSink{done: make(chan struct{}, 1)}
	NewRecorder(sink, pool).ConsumeAsync(testInput(&fakeConsumer{}))

	select {
	case <-sink.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("async consumption did not run")
	}
	if err := pool.Drain(time.Second); err != nil {
		t.Fatalf("drain: %v", err)
	}
}
