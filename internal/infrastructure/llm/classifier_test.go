package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"ResellBot/internal/config"
	"ResellBot/internal/domain"
)

func newTestClassifier(url string, opts ...Option) *ChatClassifier {
	cfg := config.ClassifierConfig{Endpoint: url, Model: "llama-3.1-8b-instant", APIKey: "key"}
	opts = append([]Option{WithSleeper(func(time.Duration) {})}, opts...)
	return NewChatClassifier(cfg, opts...)
}

func TestClassifyBatchSendsPromptAndLimits(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Errorf("unexpected auth header %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.MaxTokens != batchMaxTokens || req.Temperature != 0 {
			t.Errorf("unexpected limits %+v", req)
		}
		if len(req.Messages) != 1 || req.Messages[0].Content != "1. PS5 | 300.00" {
			t.Errorf("unexpected messages %+v", req.Messages)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" [1] "}}]}`))
	}))
	defer server.Close()

	reply, err := newTestClassifier(server.URL).ClassifyBatch(context.Background(), "1. PS5 | 300.00")
	if err != nil {
		t.Fatalf("ClassifyBatch: %v", err)
	}
	if reply != "[1]" {
		t.Fatalf("unexpected reply %q", reply)
	}
}

func TestClassifyYesNoRetriesOn429(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "2")
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"JA"}}]}`))
	}))
	defer server.Close()

	var slept []time.Duration
	client := newTestClassifier(server.URL, WithSleeper(func(d time.Duration) { slept = append(slept, d) }))
	reply, err := client.ClassifyYesNo(context.Background(), "Ist das eine PS5?")
	if err != nil {
		t.Fatalf("ClassifyYesNo: %v", err)
	}
	if reply != "JA" || calls.Load() != 2 {
		t.Fatalf("unexpected reply %q after %d calls", reply, calls.Load())
	}
	if len(slept) != 1 || slept[0] != 2*time.Second {
		t.Fatalf("expected Retry-After sleep of 2s, got %v", slept)
	}
}

func TestClassifierDoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := newTestClassifier(server.URL).ClassifyBatch(context.Background(), "x")
	if !errors.Is(err, domain.ErrClassification) {
		t.Fatalf("expected classification error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single call, got %d", calls.Load())
	}
}

func TestClassifierEmptyCompletionIsError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	if _, err := newTestClassifier(server.URL).ClassifyYesNo(context.Background(), "x"); !errors.Is(err, domain.ErrClassification) {
		t.Fatalf("expected classification error, got %v", err)
	}
}

func TestClassifierMisconfigured(t *testing.T) {
	t.Parallel()

	client := NewChatClassifier(config.ClassifierConfig{Endpoint: "http://localhost"})
	if _, err := client.ClassifyBatch(context.Background(), "x"); !errors.Is(err, domain.ErrClassification) {
		t.Fatalf("expected classification error, got %v", err)
	}
}

func TestBackoffIsCapped(t *testing.T) {
	t.Parallel()

	c := newTestClassifier("http://localhost", WithRetryBackoff(time.Second, 5*time.Second))
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for i, w := range want {
		if got := c.backoff(i + 1); got != w {
			t.Fatalf("backoff(%d) = %v, want %v", i+1, got, w)
		}
	}
}
