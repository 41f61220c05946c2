// Facet - Jewelry Retrieval and Personalized Combination Recommendations
// Copyright 2026 Prasham Shah (prashamshah115)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prashamshah115/jewelry-recommender

// Package reranking implements maximal marginal relevance (MMR) reranking:
// results are re-ordered to trade a little relevance for diversity so the
// final list is not five near-identical variations of the top hit.
package reranking

import (
	"github.com/prashamshah115/jewelry-recommender/internal/vec"
)

// Candidate is one rankable result.
type Candidate struct {
	ID        string
	Relevance float64
	Embedding []float32
}

// MMR reranks by maximal marginal relevance. Lambda in [0, 1] sets the
// diversity pressure: 0 reproduces the relevance ordering, higher values
// penalize similarity to already-selected results harder.
type MMR struct {
	Lambda float64
}

// NewMMR creates a reranker; lambda is clamped to [0, 1].
func NewMMR(lambda float64) *MMR {
	if lambda < 0 {
		lambda = 0
	}
	if lambda > 1 {
		lambda = 1
	}
	return &MMR{Lambda: lambda}
}

// Rerank selects up to k candidates. The most relevant candidate seeds the
// result; each following pick maximizes relevance minus lambda times the
// maximum similarity to anything already selected. Candidates sharing an ID
// with a selected result are suppressed. When the deduplicated input fits
// within k there is nothing to trade off and the input order is kept.
func (m *MMR) Rerank(cands []Candidate, k int) []Candidate {
	if k <= 0 || len(cands) == 0 {
		return nil
	}

	remaining := dedupe(cands)
	if len(remaining) <= k {
		return remaining
	}

	selected := make([]Candidate, 0, k)
	for len(selected) < k && len(remaining) > 0 {
		bestIdx := -1
		bestScore := 0.0
		for i, c := range remaining {
			score := c.Relevance
			if len(selected) > 0 {
				score -= m.Lambda * maxSimilarity(c, selected)
			}
			if bestIdx < 0 || score > bestScore {
				bestIdx = i
				bestScore = score
			}
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected
}

// dedupe keeps the first candidate per ID, preserving order.
func dedupe(cands []Candidate) []Candidate {
	seen := make(map[string]struct{}, len(cands))
	out := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}

func maxSimilarity(c Candidate, selected []Candidate) float64 {
	maxSim := 0.0
	for _, s := range selected {
		if len(c.Embedding) == 0 || len(s.Embedding) != len(c.Embedding) {
			continue
		}
		if sim := float64(vec.Cosine(c.Embedding, s.Embedding)); sim > maxSim {
			maxSim = sim
		}
	}
	return maxSim
}
