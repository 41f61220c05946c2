// Facet - Jewelry Retrieval and Personalized Combination Recommendations
// Copyright 2026 Prasham Shah (prashamshah115)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prashamshah115/jewelry-recommender

// Package profile tracks per-user preference state: declared preferences,
// their embedding, and a decayed interaction history. The two signals blend
// into a single hybrid taste vector used for personalization.
package profile

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/prashamshah115/jewelry-recommender/internal/vec"
)

const (
	// schemaVersion tags persisted profile records so future migrations can
	// tell what they are reading.
	schemaVersion = 1

	// maxInteractions caps the stored interaction log per user.
	maxInteractions = 100

	// sparseThreshold is the interaction count below which a user is
	// considered sparse and recommendation falls back to collaborative
	// signals.
	sparseThreshold = 3

	// decayHalfLifeDays halves an interaction's weight every 30 days.
	decayHalfLifeDays = 30

	// Hybrid blend: declared preferences dominate, behavior refines.
	prefWeight        = 0.6
	interactionWeight = 0.4
)

// InteractionType classifies a user action on an item.
type InteractionType string

const (
	InteractionClick    InteractionType = "click"
	InteractionLike     InteractionType = "like"
	InteractionPurchase InteractionType = "purchase"
)

// Weight returns the base signal strength of the interaction type.
func (t InteractionType) Weight() (float64, error) {
	switch t {
	case InteractionClick:
		return 1, nil
	case InteractionLike:
		return 2, nil
	case InteractionPurchase:
		return 5, nil
	default:
		return 0, fmt.Errorf("unknown interaction type %q", t)
	}
}

// Interaction is one recorded user action. The item's embedding is captured
// at log time so history survives catalog reloads.
type Interaction struct {
	ID      string          `json:"id"`
	ItemID  string          `json:"item_id"`
	Dataset string          `json:"dataset"`
	Type    InteractionType `json:"type"`
	// Weight overrides the type's base signal strength when positive.
	Weight    float64   `json:"weight,omitempty"`
	At        time.Time `json:"at"`
	Embedding []float32 `json:"embedding"`
}

// EffectiveWeight is the per-event override when set, otherwise the type's
// base weight.
func (it Interaction) EffectiveWeight() (float64, error) {
	if it.Weight > 0 {
		return it.Weight, nil
	}
	return it.Type.Weight()
}

// Preferences are the user's declared tastes.
type Preferences struct {
	Metals    []string `json:"metals,omitempty"`
	Styles    []string `json:"styles,omitempty"`
	Gemstones []string `json:"gemstones,omitempty"`
	Colors    []string `json:"colors,omitempty"`
	Shapes    []string `json:"shapes,omitempty"`
	PriceMin  *float64 `json:"price_min,omitempty"`
	PriceMax  *float64 `json:"price_max,omitempty"`
	FreeText  string   `json:"free_text,omitempty"`
}

// Empty reports whether no preference is set.
func (p Preferences) Empty() bool {
	return len(p.Metals) == 0 && len(p.Styles) == 0 && len(p.Gemstones) == 0 &&
		len(p.Colors) == 0 && len(p.Shapes) == 0 &&
		p.PriceMin == nil && p.PriceMax == nil && p.FreeText == ""
}

// RenderText flattens the preferences into the text that gets embedded as
// the preference vector.
func (p Preferences) RenderText() string {
	var parts []string
	add := func(label string, vals []string) {
		if len(vals) > 0 {
			parts = append(parts, label+": "+strings.Join(vals, ", "))
		}
	}
	add("metals", p.Metals)
	add("styles", p.Styles)
	add("gemstones", p.Gemstones)
	add("diamond colors", p.Colors)
	add("diamond shapes", p.Shapes)
	switch {
	case p.PriceMin != nil && p.PriceMax != nil:
		parts = append(parts, fmt.Sprintf("price range $%.0f to $%.0f", *p.PriceMin, *p.PriceMax))
	case p.PriceMin != nil:
		parts = append(parts, fmt.Sprintf("price from $%.0f", *p.PriceMin))
	case p.PriceMax != nil:
		parts = append(parts, fmt.Sprintf("price up to $%.0f", *p.PriceMax))
	}
	if p.FreeText != "" {
		parts = append(parts, p.FreeText)
	}
	return strings.Join(parts, "; ")
}

// Profile is one user's persisted state.
type Profile struct {
	Version          int           `json:"version"`
	UserID           string        `json:"user_id"`
	Preferences      Preferences   `json:"preferences"`
	PreferenceVector []float32     `json:"preference_vector,omitempty"`
	Interactions     []Interaction `json:"interactions,omitempty"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// New creates an empty profile for a user.
func New(userID string) *Profile {
	return &Profile{Version: schemaVersion, UserID: userID}
}

// IsSparse reports whether the user has too little history for
// interaction-driven personalization.
func (p *Profile) IsSparse() bool {
	return len(p.Interactions) < sparseThreshold
}

// Record appends an interaction, trimming the log to the most recent
// maxInteractions entries.
func (p *Profile) Record(it Interaction) {
	p.Interactions = append(p.Interactions, it)
	if len(p.Interactions) > maxInteractions {
		p.Interactions = p.Interactions[len(p.Interactions)-maxInteractions:]
	}
	p.UpdatedAt = it.At
}

// decayFactor returns the exponential decay multiplier for an interaction
// of the given age.
func decayFactor(age time.Duration) float64 {
	days := age.Hours() / 24
	if days < 0 {
		days = 0
	}
	return math.Exp2(-days / decayHalfLifeDays)
}

// InteractionVector is the decay-weighted average of the interaction
// embeddings as of now. Returns nil when no interaction carries an
// embedding.
func (p *Profile) InteractionVector(now time.Time) []float32 {
	var (
		sum       []float32
		weightSum float64
	)
	for _, it := range p.Interactions {
		if len(it.Embedding) == 0 {
			continue
		}
		base, err := it.EffectiveWeight()
		if err != nil {
			continue
		}
		w := base * decayFactor(now.Sub(it.At))
		if sum == nil {
			sum = make([]float32, len(it.Embedding))
		}
		for i, x := range it.Embedding {
			sum[i] += float32(w) * x
		}
		weightSum += w
	}
	if sum == nil || weightSum == 0 {
		return nil
	}
	inv := float32(1 / weightSum)
	for i := range sum {
		sum[i] *= inv
	}
	return vec.Normalize(sum)
}

// TasteVector blends the preference vector and the decayed interaction
// vector. When only one signal exists it is used alone; when neither
// exists the result is nil.
func (p *Profile) TasteVector(now time.Time) []float32 {
	iv := p.InteractionVector(now)
	pv := p.PreferenceVector

	switch {
	case pv == nil && iv == nil:
		return nil
	case pv == nil:
		return iv
	case iv == nil:
		out := make([]float32, len(pv))
		copy(out, pv)
		return vec.Normalize(out)
	default:
		return vec.Normalize(vec.Blend(pv, prefWeight, iv, interactionWeight))
	}
}

// RecentEmbeddings returns up to n most recent interaction embeddings,
// newest last. Used for the sequential-pattern boost, which needs at least
// two points to mean anything.
func (p *Profile) RecentEmbeddings(n int) [][]float32 {
	var out [][]float32
	for i := len(p.Interactions) - 1; i >= 0 && len(out) < n; i-- {
		if len(p.Interactions[i].Embedding) > 0 {
			out = append(out, p.Interactions[i].Embedding)
		}
	}
	// Reverse to chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
