// Facet - Jewelry Retrieval and Personalized Combination Recommendations
// Copyright 2026 Prasham Shah (prashamshah115)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prashamshah115/jewelry-recommender

// Package embedding talks to the external CLIP embedding service that turns
// query text and product images into vectors in the catalog's embedding
// space.
package embedding

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/prashamshah115/jewelry-recommender/internal/metrics"
)

// Embedder produces embedding vectors for free text and image URLs.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedImage(ctx context.Context, imageURL string) ([]float32, error)
}

// ErrUnavailable is returned when the embedding service cannot be reached,
// including while the circuit breaker is open.
var ErrUnavailable = errors.New("embedding service unavailable")

// Config holds client settings.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	// BreakerOpenFor is how long the breaker stays open after tripping.
	BreakerOpenFor time.Duration
}

// Client is an HTTP Embedder with retry and a circuit breaker. Consecutive
// failures trip the breaker; while open, calls fail fast without touching
// the network.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	breaker    *gobreaker.CircuitBreaker[[]float32]
	logger     zerolog.Logger
}

// NewClient creates an embedding client.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BreakerOpenFor <= 0 {
		cfg.BreakerOpenFor = 30 * time.Second
	}
	log := logger.With().Str("component", "embedding").Logger()

	settings := gobreaker.Settings{
		Name:    "embedding-service",
		Timeout: cfg.BreakerOpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			log.Warn().Stringer("from", from).Stringer("to", to).Msg("embedding breaker state change")
			metrics.BreakerState.Set(breakerStateValue(to))
		},
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
		breaker:    gobreaker.NewCircuitBreaker[[]float32](settings),
		logger:     log,
	}
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}

// EmbedText embeds a text query.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return c.embed(ctx, "/embed/text", map[string]string{"text": text})
}

// EmbedImage embeds the image behind a URL.
func (c *Client) EmbedImage(ctx context.Context, imageURL string) ([]float32, error) {
	return c.embed(ctx, "/embed/image", map[string]string{"url": imageURL})
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (c *Client) embed(ctx context.Context, path string, payload map[string]string) ([]float32, error) {
	v, err := c.breaker.Execute(func() ([]float32, error) {
		return c.embedWithRetry(ctx, path, payload)
	})
	if err != nil {
		metrics.EmbedRequests.WithLabelValues("error").Inc()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit open", ErrUnavailable)
		}
		return nil, err
	}
	metrics.EmbedRequests.WithLabelValues("ok").Inc()
	return v, nil
}

// embedWithRetry retries transient failures with exponential backoff.
// Context cancellation and 4xx responses are not retried.
func (c *Client) embedWithRetry(ctx context.Context, path string, payload map[string]string) ([]float32, error) {
	var lastErr error
	backoff := 200 * time.Millisecond

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		vec, retryable, err := c.doRequest(ctx, path, payload)
		if err == nil {
			return vec, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
		c.logger.Warn().Err(err).Int("attempt", attempt+1).Str("path", path).Msg("embedding request failed, retrying")
	}
	return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func (c *Client) doRequest(ctx context.Context, path string, payload map[string]string) (vec []float32, retryable bool, err error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("embedding service returned %d: %s", resp.StatusCode, bytes.TrimSpace(data))
		// Server-side failures are worth retrying, client errors are not.
		return nil, resp.StatusCode >= 500, err
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, false, fmt.Errorf("decoding embedding response: %w", err)
	}
	if len(out.Embedding) == 0 {
		return nil, false, fmt.Errorf("embedding service returned an empty vector")
	}
	return out.Embedding, false, nil
}
