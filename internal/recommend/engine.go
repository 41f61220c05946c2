// Facet - Jewelry Retrieval and Personalized Combination Recommendations
// Copyright 2026 Prasham Shah (prashamshah115)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prashamshah115/jewelry-recommender

// Package recommend assembles diamond+ring combination recommendations:
// retrieval from both pools, rule-based pair scoring, personalization from
// the user's taste vector or collaborative neighborhood, and MMR diversity
// reranking.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/prashamshah115/jewelry-recommender/internal/collab"
	"github.com/prashamshah115/jewelry-recommender/internal/embedding"
	"github.com/prashamshah115/jewelry-recommender/internal/metrics"
	"github.com/prashamshah115/jewelry-recommender/internal/pool"
	"github.com/prashamshah115/jewelry-recommender/internal/profile"
	"github.com/prashamshah115/jewelry-recommender/internal/recommend/reranking"
	"github.com/prashamshah115/jewelry-recommender/internal/vec"
)

const (
	diamondDataset = "diamonds"
	ringDataset    = "rings"

	defaultTopK = 5
)

// ErrInvalidQuery is returned when a request carries neither a text query
// nor an image URL.
var ErrInvalidQuery = errors.New("request needs query text, an image url, or both")

// Engine runs the combination recommendation pipeline.
type Engine struct {
	pools    *pool.Registry
	embedder embedding.Embedder
	profiles *profile.Store
	collab   *collab.Model
	reranker *reranking.MMR
	cfg      Config
	logger   zerolog.Logger
}

// NewEngine wires the engine. profiles may be nil to disable
// personalization entirely.
func NewEngine(pools *pool.Registry, embedder embedding.Embedder, profiles *profile.Store, cf *collab.Model, cfg Config, logger zerolog.Logger) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		pools:    pools,
		embedder: embedder,
		profiles: profiles,
		collab:   cf,
		reranker: reranking.NewMMR(cfg.MMRLambda),
		cfg:      cfg,
		logger:   logger.With().Str("component", "recommend").Logger(),
	}
}

// queryVector embeds the request's query. A request carrying both a text
// query and an image blends the two embeddings half and half.
func (e *Engine) queryVector(ctx context.Context, req Request) ([]float32, error) {
	hasText := req.Query != ""
	hasImage := req.ImageURL != ""
	switch {
	case !hasText && !hasImage:
		return nil, ErrInvalidQuery
	case hasText && hasImage:
		tv, err := e.embedder.EmbedText(ctx, req.Query)
		if err != nil {
			return nil, err
		}
		iv, err := e.embedder.EmbedImage(ctx, req.ImageURL)
		if err != nil {
			return nil, err
		}
		if len(tv) != len(iv) {
			return nil, fmt.Errorf("text and image embeddings disagree on dimension: %d vs %d", len(tv), len(iv))
		}
		return vec.Normalize(vec.Blend(tv, 0.5, iv, 0.5)), nil
	case hasImage:
		return e.embedder.EmbedImage(ctx, req.ImageURL)
	default:
		return e.embedder.EmbedText(ctx, req.Query)
	}
}

// Search embeds the query and runs a filtered top-k search on one dataset.
func (e *Engine) Search(ctx context.Context, dataset string, req Request, k int, filters pool.Filters) ([]pool.Result, error) {
	q, err := e.queryVector(ctx, req)
	if err != nil {
		return nil, err
	}
	p, err := e.pools.Get(dataset)
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		k = defaultTopK
	}
	return p.Search(q, k, filters)
}

// personalization carries the per-request user signals.
type personalization struct {
	userID string
	taste  []float32
	// trajectory is the mean of the user's recent interaction embeddings,
	// nil when history is too short.
	trajectory []float32
	// sparse users get the collaborative fallback for the user component.
	sparse bool
}

func (e *Engine) loadPersonalization(userID string) personalization {
	ps := personalization{userID: userID}
	if userID == "" || e.profiles == nil {
		ps.sparse = true
		return ps
	}
	p, err := e.profiles.GetOrNew(userID)
	if err != nil {
		e.logger.Warn().Err(err).Str("user", userID).Msg("profile load failed, personalization disabled for request")
		ps.sparse = true
		return ps
	}
	now := time.Now()
	ps.sparse = p.IsSparse()
	ps.taste = p.TasteVector(now)
	if recent := p.RecentEmbeddings(sequentialWindow); len(recent) >= sequentialMinHistory {
		ps.trajectory = vec.Normalize(vec.Mean(recent))
	}
	return ps
}

// userScore computes the user component for a pair: taste vector alignment
// for users with enough history. Sparse users carry no user component;
// their signal arrives as the collaborative boost instead.
func (e *Engine) userScore(ps personalization, pairEmb []float32) float64 {
	if ps.sparse || ps.taste == nil || len(ps.taste) != len(pairEmb) {
		return 0
	}
	return clamp01(float64(vec.Cosine(ps.taste, pairEmb)))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

type candidatePair struct {
	diamond pool.Result
	ring    pool.Result
}

// RecommendCombinations runs the full pipeline and returns up to TopK
// scored diamond+ring combinations.
func (e *Engine) RecommendCombinations(ctx context.Context, req Request) ([]Combination, error) {
	start := time.Now()
	defer func() {
		metrics.RecommendDuration.Observe(time.Since(start).Seconds())
	}()

	topK := req.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	q, err := e.queryVector(ctx, req)
	if err != nil {
		return nil, err
	}

	// Hints come from the text regardless of an accompanying image.
	explicit := Hints{}
	if req.Query != "" {
		explicit = ExtractHints(req.Query)
	}

	diamondFilters := req.DiamondFilters
	if len(explicit.Shapes) > 0 {
		// An explicit shape ask is a hard constraint, not a soft boost.
		diamondFilters = append(append(pool.Filters{}, diamondFilters...),
			pool.Criterion{Field: "shape", Values: explicit.Shapes})
	}

	dPool, err := e.pools.Get(diamondDataset)
	if err != nil {
		return nil, err
	}
	rPool, err := e.pools.Get(ringDataset)
	if err != nil {
		return nil, err
	}

	dq := make([]float32, len(q))
	copy(dq, q)
	diamonds, err := dPool.Search(dq, e.cfg.RetrievalK, diamondFilters)
	if err != nil {
		return nil, fmt.Errorf("diamond retrieval: %w", err)
	}
	rings, err := rPool.Search(q, e.cfg.RetrievalK, req.RingFilters)
	if err != nil {
		return nil, fmt.Errorf("ring retrieval: %w", err)
	}
	if len(diamonds) == 0 || len(rings) == 0 {
		e.logger.Info().
			Int("diamonds", len(diamonds)).
			Int("rings", len(rings)).
			Str("kind", string(req.Kind())).
			Msg("no candidates matched the query and filters")
		return nil, nil
	}

	hints := RefineHints(explicit, diamonds, rings)
	pairs := e.buildPairs(diamonds, rings, explicit, topK)
	metrics.CandidatePairs.Observe(float64(len(pairs)))

	ps := e.loadPersonalization(req.UserID)
	weights := WeightsFor(req.Kind())

	cands := make([]reranking.Candidate, 0, len(pairs))
	byKey := make(map[string]Combination, len(pairs))
	for _, pair := range pairs {
		comb, ok := e.scorePair(dPool, rPool, pair, hints, weights, ps)
		if !ok {
			continue
		}
		key := comb.Diamond.ID + "+" + comb.Ring.ID
		byKey[key] = comb
		cands = append(cands, reranking.Candidate{
			ID:        key,
			Relevance: comb.Score,
			Embedding: comb.embedding,
		})
	}

	sort.SliceStable(cands, func(i, j int) bool { return cands[i].Relevance > cands[j].Relevance })

	picked := e.reranker.Rerank(cands, topK)
	out := make([]Combination, len(picked))
	for i, c := range picked {
		out[i] = byKey[c.ID]
	}

	e.logger.Debug().
		Int("diamonds", len(diamonds)).
		Int("rings", len(rings)).
		Int("pairs", len(pairs)).
		Int("returned", len(out)).
		Str("kind", string(req.Kind())).
		Dur("elapsed", time.Since(start)).
		Msg("combinations recommended")
	return out, nil
}

// buildPairs crosses the two candidate lists. Explicit metal and color
// hints keep only the matching pairs when any match; shape is already
// enforced at retrieval. The surviving set is then pruned with the quick
// compatibility check, unless pruning would leave fewer than topK pairs:
// a thin result set beats an empty one.
func (e *Engine) buildPairs(diamonds, rings []pool.Result, explicit Hints, topK int) []candidatePair {
	all := make([]candidatePair, 0, len(diamonds)*len(rings))
	for _, d := range diamonds {
		for _, r := range rings {
			all = append(all, candidatePair{diamond: d, ring: r})
		}
	}

	cands := all
	if len(explicit.Metals) > 0 || len(explicit.Colors) > 0 {
		matched := make([]candidatePair, 0, len(all))
		for _, pair := range all {
			if pairMatchesHints(pair.diamond.Item, pair.ring.Item, explicit) {
				matched = append(matched, pair)
			}
		}
		if len(matched) > 0 {
			cands = matched
		}
	}

	kept := make([]candidatePair, 0, len(cands))
	for _, pair := range cands {
		if QuickCheck(pair.diamond.Item, pair.ring.Item) {
			kept = append(kept, pair)
		}
	}
	if len(kept) < topK {
		return cands
	}
	metrics.PrunedPairs.Add(float64(len(cands) - len(kept)))
	return kept
}

// pairMatchesHints reports whether the pair satisfies every explicit metal
// and color hint present.
func pairMatchesHints(d, r pool.Item, h Hints) bool {
	if len(h.Metals) > 0 && !containsAnyFold(r.Metal, h.Metals...) {
		return false
	}
	if len(h.Colors) > 0 && !equalsAnyFold(d.Color, h.Colors...) {
		return false
	}
	return true
}

// scorePair computes the full breakdown for one pair. A failed embedding
// lookup skips the pair rather than failing the request.
func (e *Engine) scorePair(dPool, rPool *pool.Pool, pair candidatePair, hints Hints, weights Weights, ps personalization) (Combination, bool) {
	d, r := pair.diamond.Item, pair.ring.Item

	dEmb, err := dPool.Embedding(d.ID)
	if err != nil {
		metrics.SkippedLookups.WithLabelValues(diamondDataset).Inc()
		e.logger.Warn().Err(err).Str("item", d.ID).Msg("embedding lookup failed, skipping pair")
		return Combination{}, false
	}
	rEmb, err := rPool.Embedding(r.ID)
	if err != nil {
		metrics.SkippedLookups.WithLabelValues(ringDataset).Inc()
		e.logger.Warn().Err(err).Str("item", r.ID).Msg("embedding lookup failed, skipping pair")
		return Combination{}, false
	}
	pairEmb := vec.Normalize(vec.Blend(dEmb, 0.5, rEmb, 0.5))

	b := Breakdown{
		Similarity:    clamp01((float64(pair.diamond.Score) + float64(pair.ring.Score)) / 2),
		Attribute:     AttributeScore(d, r, hints),
		Compatibility: Compatibility(d, r),
	}
	b.User = e.userScore(ps, pairEmb)
	// The collaborative boost is the cold/sparse fallback only; dense
	// users already carry their signal in the user component.
	if ps.sparse && ps.userID != "" && e.collab != nil {
		aff := (e.collab.ItemAffinity(ps.userID, d.ID) + e.collab.ItemAffinity(ps.userID, r.ID)) / 2
		if aff > 0 {
			b.Collaborative = aff
			metrics.CollaborativeFallbacks.Inc()
		}
	}
	if ps.trajectory != nil && len(ps.trajectory) == len(pairEmb) {
		b.Sequential = clamp01(float64(vec.Cosine(ps.trajectory, pairEmb)))
	}

	return Combination{
		Diamond:    d,
		Ring:       r,
		TotalPrice: d.Price + r.Price,
		Score:      combined(weights, b),
		Breakdown:  b,
		embedding:  pairEmb,
	}, true
}

// LogInteraction records a user action: it captures the item's embedding
// for the profile history and feeds the collaborative model. A positive
// weight overrides the type's base strength; a zero at timestamps the
// event now.
func (e *Engine) LogInteraction(userID, dataset, itemID string, typ profile.InteractionType, weight float64, at time.Time) (*profile.Profile, error) {
	if e.profiles == nil {
		return nil, errors.New("profiles disabled")
	}
	p, err := e.pools.Get(dataset)
	if err != nil {
		return nil, err
	}
	emb, err := p.Embedding(itemID)
	if err != nil {
		return nil, err
	}
	stored := make([]float32, len(emb))
	copy(stored, emb)

	it := profile.Interaction{
		ItemID:    itemID,
		Dataset:   dataset,
		Type:      typ,
		Weight:    weight,
		At:        at.UTC(),
		Embedding: stored,
	}
	if at.IsZero() {
		it.At = time.Now().UTC()
	}
	prof, err := e.profiles.LogInteraction(userID, it)
	if err != nil {
		return nil, err
	}
	if e.collab != nil {
		if w, werr := it.EffectiveWeight(); werr == nil {
			e.collab.Observe(userID, itemID, w)
		}
	}
	return prof, nil
}

// userNeighborhood caps how many preference-vector neighbors feed a user
// recommendation.
const userNeighborhood = 10

// RecommendForUser returns up to k catalog items for a user outside any
// query context. Preference-vector neighbors are tried first, then the
// interaction graph, then a content cold start from the user's own taste
// vector, and finally global popularity.
func (e *Engine) RecommendForUser(userID string, k int) ([]collab.Scored, error) {
	if e.profiles == nil || e.collab == nil {
		return nil, errors.New("personalization disabled")
	}
	if k <= 0 {
		k = defaultTopK
	}
	p, err := e.profiles.GetOrNew(userID)
	if err != nil {
		return nil, err
	}

	if len(p.PreferenceVector) > 0 {
		others := make(map[string][]float32)
		err := e.profiles.AllProfiles(func(op *profile.Profile) error {
			if op.UserID != userID && len(op.PreferenceVector) > 0 {
				others[op.UserID] = op.PreferenceVector
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		neighbors := collab.SimilarUsersByVector(p.PreferenceVector, others, userNeighborhood)
		if recs := e.collab.RecommendFromNeighbors(userID, neighbors, k); len(recs) > 0 {
			return recs, nil
		}
	}

	if recs := e.collab.Recommend(userID, k); len(recs) > 0 {
		return recs, nil
	}

	if taste := p.TasteVector(time.Now()); taste != nil {
		if recs := e.contentRecommendations(taste, k); len(recs) > 0 {
			return recs, nil
		}
	}
	return e.collab.Popular(userID, k), nil
}

// contentRecommendations is the cold start: the nearest catalog items to
// the taste vector across every dataset.
func (e *Engine) contentRecommendations(taste []float32, k int) []collab.Scored {
	var out []collab.Scored
	for _, name := range e.pools.Datasets() {
		p, err := e.pools.Get(name)
		if err != nil {
			continue
		}
		q := make([]float32, len(taste))
		copy(q, taste)
		res, err := p.Search(q, k, nil)
		if err != nil {
			e.logger.Warn().Err(err).Str("dataset", name).Msg("content cold start search failed")
			continue
		}
		for _, r := range res {
			out = append(out, collab.Scored{ID: r.Item.ID, Score: float64(r.Score)})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// SetPreferences updates the user's declared preferences, embedding the
// rendered preference text through the engine's embedder.
func (e *Engine) SetPreferences(ctx context.Context, userID string, prefs profile.Preferences) (*profile.Profile, error) {
	if e.profiles == nil {
		return nil, errors.New("profiles disabled")
	}
	return e.profiles.SetPreferences(ctx, userID, prefs, e.embedder)
}
