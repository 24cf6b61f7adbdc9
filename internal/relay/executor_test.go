package relay

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mono-ai/aiproxy/internal/models"
)

func noBackoff(int) time.Duration { return 0 }

func newTestExecutor() *Executor {
	return NewExecutor(WithBackoff(noBackoff))
}

func TestExecuteRetriesServerErrorsUntilSuccess(t *testing.T) {
	var hits atomic.Int32
	var bodies []string
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(body))
		mu.Unlock()
		if hits.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	ch := &models.Channel{ID: 7, BaseURL: srv.URL, Key: "sk-upstream"}
	out := &Outbound{Method: http.MethodPost, Path: "/v1/chat/completions", Body: []byte(`{"model":"gpt-4"}`)}

	resp, attempts, err := newTestExecutor().Execute(context.Background(), ch, out, time.Second, 2)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if resp.StatusCode != http.StatusOK || string(resp.Body) != `{"ok":true}` {
		t.Fatalf("unexpected response %d %s", resp.StatusCode, resp.Body)
	}
	if attempts != 3 || hits.Load() != 3 {
		t.Fatalf("attempts = %d, hits = %d, want 3", attempts, hits.Load())
	}
	for i, body := range bodies {
		if body != `{"model":"gpt-4"}` {
			t.Fatalf("attempt %d body = %q", i+1, body)
		}
	}
}

func TestExecuteClientErrorNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"slow down"}`))
	}))
	defer srv.Close()

	resp, attempts, err := newTestExecutor().Execute(context.Background(), &models.Channel{ID: 1, BaseURL: srv.URL}, &Outbound{Path: "/v1/x"}, time.Second, 3)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if resp.StatusCode != http.StatusTooManyRequests || attempts != 1 || hits.Load() != 1 {
		t.Fatalf("status = %d, attempts = %d, hits = %d", resp.StatusCode, attempts, hits.Load())
	}
}

func TestExecuteServerErrorsExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("bad gateway"))
	}))
	defer srv.Close()

	_, attempts, err := newTestExecutor().Execute(context.Background(), &models.Channel{ID: 3, BaseURL: srv.URL}, &Outbound{Path: "/v1/x"}, time.Second, 1)
	if !errors.Is(err, ErrUpstreamHTTP) {
		t.Fatalf("expected ErrUpstreamHTTP, got %v", err)
	}
	var upstreamErr *UpstreamError
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("expected *UpstreamError, got %T", err)
	}
	if attempts != 2 || upstreamErr.Attempts != 2 || upstreamErr.StatusCode != http.StatusBadGateway || string(upstreamErr.Body) != "bad gateway" || upstreamErr.ChannelID != 3 {
		t.Fatalf("unexpected error %+v (attempts %d)", upstreamErr, attempts)
	}
}

func TestExecuteTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	_, attempts, err := newTestExecutor().Execute(context.Background(), &models.Channel{ID: 1, BaseURL: srv.URL}, &Outbound{Path: "/slow"}, 20*time.Millisecond, 1)
	if !errors.Is(err, ErrUpstreamTimeout) {
		t.Fatalf("expected ErrUpstreamTimeout, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d, want 2", attempts)
	}
}

func TestExecuteConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, _, err := newTestExecutor().Execute(context.Background(), &models.Channel{ID: 1, BaseURL: url}, &Outbound{Path: "/v1/x"}, time.Second, 0)
	if !errors.Is(err, ErrUpstreamIO) {
		t.Fatalf("expected ErrUpstreamIO, got %v", err)
	}
}

func TestExecuteForwardsHeaders(t *testing.T) {
	var got http.Header
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		gotQuery = r.URL.RawQuery
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	header := http.Header{}
	header.Set("Authorization", "Bearer sk-client")
	header.Set("X-Aiproxy-Request-Id", "internal")
	header.Set("OpenAI-Beta", "assistants=v2")
	header.Set("Connection", "keep-alive")

	ch := &models.Channel{ID: 1, BaseURL: srv.URL + "/", Key: "sk-upstream"}
	out := &Outbound{Method: http.MethodGet, Path: "/v1/models", RawQuery: "limit=1", Header: header}
	if _, _, err := newTestExecutor().Execute(context.Background(), ch, out, time.Second, 0); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if got.Get("Authorization") != "Bearer sk-upstream" {
		t.Fatalf("authorization = %q", got.Get("Authorization"))
	}
	if got.Get("X-Aiproxy-Request-Id") != "" {
		t.Fatalf("internal header forwarded")
	}
	if got.Get("OpenAI-Beta") != "assistants=v2" {
		t.Fatalf("client header dropped")
	}
	if gotQuery != "limit=1" {
		t.Fatalf("query = %q", gotQuery)
	}
}

func TestExecuteUsesLinearBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	var waits []int
	exec := NewExecutor(WithBackoff(func(attempt int) time.Duration {
		waits = append(waits, attempt)
		return 0
	}))
	_, _, _ = exec.Execute(context.Background(), &models.Channel{ID: 1, BaseURL: srv.URL}, &Outbound{Path: "/"}, time.Second, 3)
	if len(waits) != 3 || waits[0] != 1 || waits[1] != 2 || waits[2] != 3 {
		t.Fatalf("backoff calls = %v", waits)
	}
	if LinearBackoff(1) != time.Second || LinearBackoff(3) != 3*time.Second {
		t.Fatalf("linear backoff mismatch")
	}
}

func TestExecuteStopsWhenContextCanceled(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	exec := NewExecutor(WithBackoff(func(int) time.Duration {
		cancel()
		return time.Hour
	}))
	_, attempts, err := exec.Execute(ctx, &models.Channel{ID: 1, BaseURL: srv.URL}, &Outbound{Path: "/"}, time.Second, 5)
	if err == nil || attempts != 1 || hits.Load() != 1 {
		t.Fatalf("attempts = %d, hits = %d, err = %v", attempts, hits.Load(), err)
	}
}
