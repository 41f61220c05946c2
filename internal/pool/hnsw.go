// Facet - Jewelry Retrieval and Personalized Combination Recommendations
// Copyright 2026 Prasham Shah (prashamshah115)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prashamshah115/jewelry-recommender

package pool

import (
	"container/heap"
	"math"
	"math/rand"

	"github.com/prashamshah115/jewelry-recommender/internal/vec"
)

// hnswIndex is a hierarchical navigable small world graph over normalized
// embeddings, scored by inner product. Construction parameters follow the
// pools this service loads: m=32, efConstruction=200. The graph is built
// once at load time and is read-only afterwards.
type hnswIndex struct {
	emb      [][]float32
	m        int
	m0       int // layer-0 degree bound
	efSearch int
	levelMul float64

	// neighbors[node][layer] lists the node's links at that layer.
	neighbors [][][]int32
	maxLevel  int
	entry     int32

	rng *rand.Rand
}

const (
	hnswM              = 32
	hnswEFConstruction = 200
)

func newHNSWIndex(emb [][]float32, efSearch int) *hnswIndex {
	h := &hnswIndex{
		emb:      emb,
		m:        hnswM,
		m0:       2 * hnswM,
		efSearch: efSearch,
		levelMul: 1 / math.Log(float64(hnswM)),
		maxLevel: -1,
		entry:    -1,
		// Fixed seed keeps graph construction reproducible across restarts.
		rng: rand.New(rand.NewSource(42)),
	}
	for i := range emb {
		h.insert(int32(i))
	}
	return h
}

func (h *hnswIndex) Kind() string { return "hnsw" }

func (h *hnswIndex) sim(a int32, q []float32) float32 {
	return vec.Dot(h.emb[a], q)
}

func (h *hnswIndex) randomLevel() int {
	return int(-math.Log(h.rng.Float64()) * h.levelMul)
}

func (h *hnswIndex) insert(id int32) {
	level := h.randomLevel()
	links := make([][]int32, level+1)
	h.neighbors = append(h.neighbors, links)

	if h.entry < 0 {
		h.entry = id
		h.maxLevel = level
		return
	}

	q := h.emb[id]
	ep := h.entry

	// Greedy descent through layers above the insertion level.
	for l := h.maxLevel; l > level; l-- {
		ep = h.greedyClosest(q, ep, l)
	}

	// Build links from min(level, maxLevel) down to 0.
	top := level
	if top > h.maxLevel {
		top = h.maxLevel
	}
	for l := top; l >= 0; l-- {
		cands := h.searchLayer(q, ep, hnswEFConstruction, l, nil)
		bound := h.m
		if l == 0 {
			bound = h.m0
		}
		selected := h.selectNeighbors(cands, h.m)
		links[l] = selected
		for _, n := range selected {
			h.link(n, id, l, bound)
		}
		if len(cands) > 0 {
			ep = cands[0].id
		}
	}

	if level > h.maxLevel {
		h.maxLevel = level
		h.entry = id
	}
}

// link adds dst to src's layer-l neighbor list, pruning to bound by
// similarity to src when the list overflows.
func (h *hnswIndex) link(src, dst int32, l, bound int) {
	ns := append(h.neighbors[src][l], dst)
	if len(ns) > bound {
		base := h.emb[src]
		scored := make([]scoredNode, len(ns))
		for i, n := range ns {
			scored[i] = scoredNode{id: n, score: h.sim(n, base)}
		}
		sortScored(scored)
		ns = ns[:0]
		for _, s := range scored[:bound] {
			ns = append(ns, s.id)
		}
	}
	h.neighbors[src][l] = ns
}

func (h *hnswIndex) selectNeighbors(cands []scoredNode, m int) []int32 {
	if len(cands) > m {
		cands = cands[:m]
	}
	out := make([]int32, len(cands))
	for i, c := range cands {
		out[i] = c.id
	}
	return out
}

// greedyClosest walks layer l from ep toward q until no neighbor improves.
func (h *hnswIndex) greedyClosest(q []float32, ep int32, l int) int32 {
	best := ep
	bestSim := h.sim(ep, q)
	for {
		improved := false
		for _, n := range h.layerLinks(best, l) {
			if s := h.sim(n, q); s > bestSim {
				best, bestSim = n, s
				improved = true
			}
		}
		if !improved {
			return best
		}
	}
}

func (h *hnswIndex) layerLinks(id int32, l int) []int32 {
	ls := h.neighbors[id]
	if l >= len(ls) {
		return nil
	}
	return ls[l]
}

// searchLayer is the ef-bounded beam search. Results come back sorted by
// descending similarity. allowed filters which nodes may appear in the
// result set; traversal still crosses disallowed nodes so the graph stays
// connected under heavy filtering.
func (h *hnswIndex) searchLayer(q []float32, ep int32, ef, l int, allowed func(int) bool) []scoredNode {
	visited := map[int32]struct{}{ep: {}}

	cand := &maxHeap{{id: ep, score: h.sim(ep, q)}}
	heap.Init(cand)

	res := &minHeap{}
	heap.Init(res)
	if allowed == nil || allowed(int(ep)) {
		heap.Push(res, scoredNode{id: ep, score: h.sim(ep, q)})
	}

	worst := float32(math.Inf(-1))
	if res.Len() > 0 {
		worst = (*res)[0].score
	}

	for cand.Len() > 0 {
		c := heap.Pop(cand).(scoredNode)
		if res.Len() >= ef && c.score < worst {
			break
		}
		for _, n := range h.layerLinks(c.id, l) {
			if _, seen := visited[n]; seen {
				continue
			}
			visited[n] = struct{}{}
			s := h.sim(n, q)
			if res.Len() < ef || s > worst {
				heap.Push(cand, scoredNode{id: n, score: s})
				if allowed == nil || allowed(int(n)) {
					heap.Push(res, scoredNode{id: n, score: s})
					if res.Len() > ef {
						heap.Pop(res)
					}
				}
				if res.Len() > 0 {
					worst = (*res)[0].score
				}
			}
		}
	}

	out := make([]scoredNode, res.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(res).(scoredNode)
	}
	return out
}

func (h *hnswIndex) Search(q []float32, k int, allowed func(int) bool) []Hit {
	if h.entry < 0 {
		return nil
	}
	ep := h.entry
	for l := h.maxLevel; l > 0; l-- {
		ep = h.greedyClosest(q, ep, l)
	}
	ef := h.efSearch
	if ef < k {
		ef = k
	}
	found := h.searchLayer(q, ep, ef, 0, allowed)
	if len(found) > k {
		found = found[:k]
	}
	hits := make([]Hit, len(found))
	for i, f := range found {
		hits[i] = Hit{Index: int(f.id), Score: f.score}
	}
	return hits
}

type scoredNode struct {
	id    int32
	score float32
}

func sortScored(s []scoredNode) {
	// Insertion-friendly sizes only (degree bounds), a simple sort is fine.
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j].score > s[j-1].score; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

// maxHeap pops the highest-similarity node first (candidate frontier).
type maxHeap []scoredNode

func (h maxHeap) Len() int            { return len(h) }
func (h maxHeap) Less(i, j int) bool  { return h[i].score > h[j].score }
func (h maxHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x interface{}) { *h = append(*h, x.(scoredNode)) }
func (h *maxHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// minHeap keeps the worst result on top so it can be evicted cheaply.
type minHeap []scoredNode

func (h minHeap) Len() int            { return len(h) }
func (h minHeap) Less(i, j int) bool  { return h[i].score < h[j].score }
func (h minHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x interface{}) { *h = append(*h, x.(scoredNode)) }
func (h *minHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
