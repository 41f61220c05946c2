// Facet - Jewelry Retrieval and Personalized Combination Recommendations
// Copyright 2026 Prasham Shah (prashamshah115)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prashamshah115/jewelry-recommender

// Package metrics defines Prometheus metrics for the Facet service.
// All metrics are registered with the default registry via promauto and
// exposed on GET /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestDuration tracks request latency by route and status class.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "facet",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route, method and status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route", "method", "status"},
	)

	// SearchDuration tracks vector search latency by dataset and index kind.
	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "facet",
			Subsystem: "pool",
			Name:      "search_duration_seconds",
			Help:      "Vector search latency by dataset and index type.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"dataset", "index"},
	)

	// PoolItems reports the number of loaded items per dataset.
	PoolItems = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "facet",
			Subsystem: "pool",
			Name:      "items",
			Help:      "Number of items loaded in each dataset pool.",
		},
		[]string{"dataset"},
	)

	// RecommendDuration tracks end-to-end combination recommendation latency.
	RecommendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "facet",
			Subsystem: "recommend",
			Name:      "duration_seconds",
			Help:      "End-to-end combination recommendation latency.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	// CandidatePairs counts scored candidate pairs per recommendation call.
	CandidatePairs = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "facet",
			Subsystem: "recommend",
			Name:      "candidate_pairs",
			Help:      "Candidate pairs scored per recommendation request.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500},
		},
	)

	// PrunedPairs counts pairs rejected by the quick compatibility check.
	PrunedPairs = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "facet",
			Subsystem: "recommend",
			Name:      "pruned_pairs_total",
			Help:      "Pairs rejected by the quick compatibility pre-filter.",
		},
	)

	// SkippedLookups counts id-to-embedding lookups that failed during scoring.
	SkippedLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "facet",
			Subsystem: "recommend",
			Name:      "skipped_lookups_total",
			Help:      "Embedding lookups that failed and caused a pair to be skipped.",
		},
		[]string{"dataset"},
	)

	// CollaborativeFallbacks counts recommendations served via the
	// collaborative-filtering fallback for sparse users.
	CollaborativeFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "facet",
			Subsystem: "recommend",
			Name:      "collaborative_fallbacks_total",
			Help:      "Recommendations served through the collaborative fallback path.",
		},
	)

	// EmbedRequests counts calls to the external embedding service by outcome.
	EmbedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "facet",
			Subsystem: "embedding",
			Name:      "requests_total",
			Help:      "Embedding service requests by outcome.",
		},
		[]string{"outcome"},
	)

	// BreakerState reports the embedding circuit breaker state
	// (0 closed, 1 half-open, 2 open).
	BreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "facet",
			Subsystem: "embedding",
			Name:      "breaker_state",
			Help:      "Embedding circuit breaker state: 0 closed, 1 half-open, 2 open.",
		},
	)

	// ProfileUpdates counts profile mutations by kind.
	ProfileUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "facet",
			Subsystem: "profiles",
			Name:      "updates_total",
			Help:      "Profile mutations by kind (preferences, interaction).",
		},
		[]string{"kind"},
	)
)
