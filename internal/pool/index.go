// Facet - Jewelry Retrieval and Personalized Combination Recommendations
// Copyright 2026 Prasham Shah (prashamshah115)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prashamshah115/jewelry-recommender

package pool

import (
	"sort"

	"github.com/prashamshah115/jewelry-recommender/internal/vec"
)

// Hit is one search result: the row index into the pool and its inner
// product score. Embeddings are normalized at load time, so the score is
// cosine similarity.
type Hit struct {
	Index int
	Score float32
}

// Index answers top-k similarity queries over a fixed embedding matrix.
// allowed restricts the candidate set; a nil allowed admits every row.
type Index interface {
	Search(q []float32, k int, allowed func(int) bool) []Hit
	Kind() string
}

// flatIndex scores every admitted row exactly. It is the right choice for
// small pools where a graph index buys nothing.
type flatIndex struct {
	emb [][]float32
}

func newFlatIndex(emb [][]float32) *flatIndex {
	return &flatIndex{emb: emb}
}

func (f *flatIndex) Kind() string { return "flat" }

func (f *flatIndex) Search(q []float32, k int, allowed func(int) bool) []Hit {
	hits := make([]Hit, 0, k)
	for i, e := range f.emb {
		if allowed != nil && !allowed(i) {
			continue
		}
		hits = append(hits, Hit{Index: i, Score: vec.Dot(q, e)})
	}
	sortHits(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// sortHits orders by descending score; equal scores break ties on the lower
// row index so results are stable across runs.
func sortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Index < hits[j].Index
	})
}
