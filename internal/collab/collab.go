// Facet - Jewelry Retrieval and Personalized Combination Recommendations
// Copyright 2026 Prasham Shah (prashamshah115)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prashamshah115/jewelry-recommender

// Package collab implements the collaborative signal used when a user's own
// history is too thin to personalize on. It holds an in-memory user-item
// graph and answers neighbor queries over it, first from similar users'
// histories, then by walking item-item similarity. Users with no history at
// all are handed back to the caller for a content-based cold start.
package collab

import (
	"sort"
	"sync"

	"github.com/prashamshah115/jewelry-recommender/internal/vec"
)

// Scored pairs an id with a relevance score, higher first.
type Scored struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Model is the in-memory user-item interaction graph. Safe for concurrent
// use; Observe and queries may interleave.
type Model struct {
	mu        sync.RWMutex
	userItems map[string]map[string]float64
	itemUsers map[string]map[string]float64
}

// NewModel creates an empty model.
func NewModel() *Model {
	return &Model{
		userItems: make(map[string]map[string]float64),
		itemUsers: make(map[string]map[string]float64),
	}
}

// Observe records an interaction with the given weight. Repeated
// observations of the same pair accumulate.
func (m *Model) Observe(userID, itemID string, weight float64) {
	if userID == "" || itemID == "" || weight <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.userItems[userID] == nil {
		m.userItems[userID] = make(map[string]float64)
	}
	if m.itemUsers[itemID] == nil {
		m.itemUsers[itemID] = make(map[string]float64)
	}
	m.userItems[userID][itemID] += weight
	m.itemUsers[itemID][userID] += weight
}

// Users returns the number of users with at least one observation.
func (m *Model) Users() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.userItems)
}

// Items returns the number of items with at least one observation.
func (m *Model) Items() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.itemUsers)
}

// jaccard computes set overlap of the two maps' key sets.
func jaccard(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for k := range small {
		if _, ok := large[k]; ok {
			inter++
		}
	}
	if inter == 0 {
		return 0
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}

// sortScored orders by descending score with id as the tiebreak so results
// are deterministic.
func sortScored(s []Scored) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].Score != s[j].Score {
			return s[i].Score > s[j].Score
		}
		return s[i].ID < s[j].ID
	})
}

// SimilarUsers returns up to k users ranked by Jaccard overlap of item
// histories with the given user.
func (m *Model) SimilarUsers(userID string, k int) []Scored {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.similarUsersLocked(userID, k)
}

func (m *Model) similarUsersLocked(userID string, k int) []Scored {
	mine := m.userItems[userID]
	if len(mine) == 0 {
		return nil
	}
	var out []Scored
	for other, items := range m.userItems {
		if other == userID {
			continue
		}
		if sim := jaccard(mine, items); sim > 0 {
			out = append(out, Scored{ID: other, Score: sim})
		}
	}
	sortScored(out)
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// SimilarItems returns up to k items ranked by Jaccard overlap of user
// audiences with the given item.
func (m *Model) SimilarItems(itemID string, k int) []Scored {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.similarItemsLocked(itemID, k)
}

func (m *Model) similarItemsLocked(itemID string, k int) []Scored {
	mine := m.itemUsers[itemID]
	if len(mine) == 0 {
		return nil
	}
	var out []Scored
	for other, users := range m.itemUsers {
		if other == itemID {
			continue
		}
		if sim := jaccard(mine, users); sim > 0 {
			out = append(out, Scored{ID: other, Score: sim})
		}
	}
	sortScored(out)
	if len(out) > k {
		out = out[:k]
	}
	return out
}

const neighborhood = 10

// Recommend returns up to k items for the user, excluding anything the
// user has already interacted with. Level 1 aggregates similar users'
// histories; level 2 walks item-item similarity from the user's own items.
// Nil means the graph has nothing for this user and the caller should fall
// back to content similarity.
func (m *Model) Recommend(userID string, k int) []Scored {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := m.userItems[userID]

	if recs := m.userBasedLocked(userID, seen, k); len(recs) > 0 {
		return recs
	}
	return m.itemBasedLocked(seen, k)
}

// RecommendFromNeighbors aggregates the histories of an externally ranked
// neighbor set, typically neighbors by preference-vector similarity rather
// than by interaction overlap. Items the user already touched are excluded.
func (m *Model) RecommendFromNeighbors(userID string, neighbors []Scored, k int) []Scored {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := m.userItems[userID]
	scores := make(map[string]float64)
	for _, n := range neighbors {
		if n.ID == userID || n.Score <= 0 {
			continue
		}
		for item, w := range m.userItems[n.ID] {
			if _, had := seen[item]; had {
				continue
			}
			scores[item] += n.Score * w
		}
	}
	return topK(scores, k)
}

// Popular returns the k most heavily interacted items, excluding the user's
// own history. A last resort when neither neighbors nor content are usable.
func (m *Model) Popular(userID string, k int) []Scored {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.popularLocked(m.userItems[userID], k)
}

// SimilarUsersByVector ranks candidate users by inner product of unit
// preference vectors against self. Vectors of mismatched dimension are
// skipped.
func SimilarUsersByVector(self []float32, others map[string][]float32, k int) []Scored {
	if len(self) == 0 {
		return nil
	}
	var out []Scored
	for id, v := range others {
		if len(v) != len(self) {
			continue
		}
		if sim := float64(vec.Dot(self, v)); sim > 0 {
			out = append(out, Scored{ID: id, Score: sim})
		}
	}
	sortScored(out)
	if len(out) > k {
		out = out[:k]
	}
	return out
}

func (m *Model) userBasedLocked(userID string, seen map[string]float64, k int) []Scored {
	neighbors := m.similarUsersLocked(userID, neighborhood)
	if len(neighbors) == 0 {
		return nil
	}
	scores := make(map[string]float64)
	for _, n := range neighbors {
		for item, w := range m.userItems[n.ID] {
			if _, had := seen[item]; had {
				continue
			}
			scores[item] += n.Score * w
		}
	}
	return topK(scores, k)
}

func (m *Model) itemBasedLocked(seen map[string]float64, k int) []Scored {
	if len(seen) == 0 {
		return nil
	}
	scores := make(map[string]float64)
	for item, w := range seen {
		for _, sim := range m.similarItemsLocked(item, neighborhood) {
			if _, had := seen[sim.ID]; had {
				continue
			}
			scores[sim.ID] += sim.Score * w
		}
	}
	return topK(scores, k)
}

func (m *Model) popularLocked(seen map[string]float64, k int) []Scored {
	scores := make(map[string]float64)
	for item, users := range m.itemUsers {
		if _, had := seen[item]; had {
			continue
		}
		var total float64
		for _, w := range users {
			total += w
		}
		scores[item] = total
	}
	return topK(scores, k)
}

func topK(scores map[string]float64, k int) []Scored {
	if len(scores) == 0 {
		return nil
	}
	out := make([]Scored, 0, len(scores))
	for id, s := range scores {
		out = append(out, Scored{ID: id, Score: s})
	}
	sortScored(out)
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// ItemAffinity estimates how strongly the user's neighborhood endorses an
// item, in [0, 1]. Zero when the user or item is unknown. Used as the
// collaborative boost during combination scoring.
func (m *Model) ItemAffinity(userID, itemID string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	neighbors := m.similarUsersLocked(userID, neighborhood)
	if len(neighbors) == 0 {
		return 0
	}
	var endorsed, total float64
	for _, n := range neighbors {
		total += n.Score
		if _, ok := m.userItems[n.ID][itemID]; ok {
			endorsed += n.Score
		}
	}
	if total == 0 {
		return 0
	}
	return endorsed / total
}
