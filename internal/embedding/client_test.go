// Facet - Jewelry Retrieval and Personalized Combination Recommendations
// Copyright 2026 Prasham Shah (prashamshah115)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prashamshah115/jewelry-recommender

package embedding

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/prashamshah115/jewelry-recommender/internal/logging"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL:    srv.URL,
		Timeout:    time.Second,
		MaxRetries: 2,
	}, logging.NewTestLogger(os.Stderr))
}

func TestEmbedText(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed/text" {
			t.Errorf("path = %s, want /embed/text", r.URL.Path)
		}
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req["text"] != "vintage gold ring" {
			t.Errorf("text = %q", req["text"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{0.1, 0.2, 0.3}})
	})

	vec, err := c.EmbedText(context.Background(), "vintage gold ring")
	if err != nil {
		t.Fatalf("EmbedText failed: %v", err)
	}
	if len(vec) != 3 || vec[1] != 0.2 {
		t.Errorf("vec = %v", vec)
	}
}

func TestEmbedRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "overloaded", http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{1}})
	})

	vec, err := c.EmbedText(context.Background(), "q")
	if err != nil {
		t.Fatalf("expected success after retries: %v", err)
	}
	if len(vec) != 1 {
		t.Errorf("vec = %v", vec)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestEmbedDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	})

	if _, err := c.EmbedText(context.Background(), "q"); err == nil {
		t.Fatal("expected error")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1 (no retry on 4xx)", got)
	}
}

func TestEmbedEmptyVectorFails(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{}})
	})
	if _, err := c.EmbedText(context.Background(), "q"); err == nil {
		t.Fatal("expected error for empty vector")
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(Config{
		BaseURL:        srv.URL,
		Timeout:        time.Second,
		MaxRetries:     0,
		BreakerOpenFor: time.Minute,
	}, logging.NewTestLogger(os.Stderr))

	for i := 0; i < 5; i++ {
		if _, err := c.EmbedText(context.Background(), "q"); err == nil {
			t.Fatal("expected failure")
		}
	}

	srv.Close()
	_, err := c.EmbedText(context.Background(), "q")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable once the breaker is open, got %v", err)
	}
}

func TestEmbedContextCancellation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{1}})
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.EmbedText(ctx, "q"); err == nil {
		t.Fatal("expected error on cancelled context")
	}
}
