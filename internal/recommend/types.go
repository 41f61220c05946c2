// Facet - Jewelry Retrieval and Personalized Combination Recommendations
// Copyright 2026 Prasham Shah (prashamshah115)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prashamshah115/jewelry-recommender

package recommend

import (
	"github.com/prashamshah115/jewelry-recommender/internal/pool"
)

// QueryKind tells the scorer what produced the query vector. Text queries
// carry attribute intent, image queries carry visual intent, and the score
// weights shift accordingly.
type QueryKind string

const (
	QueryText  QueryKind = "text"
	QueryImage QueryKind = "image"
)

// Request asks for diamond+ring combination recommendations.
type Request struct {
	// Query is free text describing what the user wants. At least one of
	// Query and ImageURL must be set; when both are, their embeddings are
	// blended half and half.
	Query    string
	ImageURL string

	// UserID enables personalization when non-empty.
	UserID string

	// TopK is the number of combinations to return.
	TopK int

	// DiamondFilters and RingFilters restrict the candidate pools.
	DiamondFilters pool.Filters
	RingFilters    pool.Filters
}

// Kind reports the dominant query modality. Any image involvement shifts
// the weights toward visual similarity.
func (r Request) Kind() QueryKind {
	if r.ImageURL != "" {
		return QueryImage
	}
	return QueryText
}

// Breakdown exposes the score components of a combination, before weighting.
type Breakdown struct {
	Similarity    float64 `json:"similarity"`
	Attribute     float64 `json:"attribute"`
	Compatibility float64 `json:"compatibility"`
	User          float64 `json:"user"`
	Collaborative float64 `json:"collaborative"`
	Sequential    float64 `json:"sequential"`
}

// Combination is one scored diamond+ring pairing.
type Combination struct {
	Diamond    pool.Item `json:"diamond"`
	Ring       pool.Item `json:"ring"`
	TotalPrice float64   `json:"total_price"`
	Score      float64   `json:"score"`
	Breakdown  Breakdown `json:"breakdown"`

	// embedding is the pair's combined vector, used for diversity
	// reranking only.
	embedding []float32
}
