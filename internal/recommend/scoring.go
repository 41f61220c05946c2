// Facet - Jewelry Retrieval and Personalized Combination Recommendations
// Copyright 2026 Prasham Shah (prashamshah115)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prashamshah115/jewelry-recommender

package recommend

import (
	"strings"

	"github.com/prashamshah115/jewelry-recommender/internal/pool"
)

func containsAnyFold(s string, terms ...string) bool {
	ls := strings.ToLower(s)
	for _, t := range terms {
		if strings.Contains(ls, t) {
			return true
		}
	}
	return false
}

func equalsAnyFold(s string, terms ...string) bool {
	for _, t := range terms {
		if strings.EqualFold(s, t) {
			return true
		}
	}
	return false
}

// priceRatio is the ring's share of the combined pair price. The second
// return is false when either price is unset.
func priceRatio(d, r pool.Item) (float64, bool) {
	if d.Price <= 0 || r.Price <= 0 {
		return 0, false
	}
	return r.Price / (d.Price + r.Price), true
}

// Compatibility scores how well a diamond and a ring pair up, in [0, 1].
// Credits accumulate from jeweler pairing rules and clip at 1.
//
// Color vs metal: colorless stones (D-F) look best against cool metals,
// near-colorless (G-I) go with anything, faint-color stones (J-L) hide
// their tint in warm metals.
func Compatibility(d, r pool.Item) float64 {
	score := 0.0

	switch {
	case equalsAnyFold(d.Color, "D", "E", "F"):
		if containsAnyFold(r.Metal, "platinum", "white gold") {
			score += 0.3
		}
	case equalsAnyFold(d.Color, "G", "H", "I"):
		score += 0.2
	case equalsAnyFold(d.Color, "J", "K", "L"):
		if containsAnyFold(r.Metal, "yellow gold", "rose gold") {
			score += 0.25
		}
	}

	// Shape vs setting style. Round cuts carry any setting; angular and
	// step cuts want vintage or classic settings.
	if containsAnyFold(d.Shape, "round") {
		score += 0.2
	} else if equalsAnyFold(d.Shape, "princess", "cushion", "emerald") &&
		containsAnyFold(r.Style, "vintage", "classic") {
		score += 0.25
	}

	// Price balance: the ring's share of the combined price should sit in
	// the band a jeweler would quote.
	if ratio, ok := priceRatio(d, r); ok {
		if ratio >= 0.2 && ratio <= 0.4 {
			score += 0.2
		} else if ratio >= 0.15 && ratio <= 0.5 {
			score += 0.1
		}
	}

	// Proportions: big stones need a sturdy band, small stones a slim one.
	if d.Carat > 2.0 && r.BandWidthMM >= 2.0 {
		score += 0.1
	}
	if d.Carat > 0 && d.Carat < 0.5 && (r.BandWidthMM == 0 || r.BandWidthMM <= 3.0) {
		score += 0.1
	}

	if score > 1 {
		score = 1
	}
	return score
}

// AttributeScore measures how well a pair matches the query hints, in
// [0, 1]: ring metal 0.4, diamond color 0.3, diamond shape 0.3. No hints
// means no attribute signal.
func AttributeScore(d, r pool.Item, h Hints) float64 {
	score := 0.0

	if len(h.Metals) > 0 && containsAnyFold(r.Metal, h.Metals...) {
		score += 0.4
	}
	if len(h.Colors) > 0 && equalsAnyFold(d.Color, h.Colors...) {
		score += 0.3
	}
	if len(h.Shapes) > 0 && containsAnyFold(d.Shape, h.Shapes...) {
		score += 0.3
	}

	if score > 1 {
		score = 1
	}
	return score
}

// QuickCheck is the cheap pre-filter applied to candidate pairs before full
// scoring. It rejects pairings no jeweler would assemble: a ring priced
// wildly out of proportion to the stone, or a heavy stone on a flimsy band.
func QuickCheck(d, r pool.Item) bool {
	if ratio, ok := priceRatio(d, r); ok && (ratio < 0.1 || ratio > 0.6) {
		return false
	}
	if d.Carat > 3.0 && r.BandWidthMM > 0 && r.BandWidthMM < 1.5 {
		return false
	}
	return true
}

// combined applies the weighted sum plus the personalization boosts.
func combined(w Weights, b Breakdown) float64 {
	score := w.Similarity*b.Similarity +
		w.Attribute*b.Attribute +
		w.Compatibility*b.Compatibility +
		w.User*b.User
	score += collaborativeBoostScale * b.Collaborative
	score += sequentialBoostScale * b.Sequential
	return score
}
