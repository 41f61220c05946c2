// Facet - Jewelry Retrieval and Personalized Combination Recommendations
// Copyright 2026 Prasham Shah (prashamshah115)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prashamshah115/jewelry-recommender

package profile

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/prashamshah115/jewelry-recommender/internal/vec"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestInteractionTypeWeights(t *testing.T) {
	tests := []struct {
		typ     InteractionType
		want    float64
		wantErr bool
	}{
		{InteractionClick, 1, false},
		{InteractionLike, 2, false},
		{InteractionPurchase, 5, false},
		{InteractionType("hover"), 0, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			got, err := tt.typ.Weight()
			if tt.wantErr != (err != nil) {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Weight = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEffectiveWeightOverride(t *testing.T) {
	if w, err := (Interaction{Type: InteractionClick, Weight: 3}).EffectiveWeight(); err != nil || w != 3 {
		t.Errorf("EffectiveWeight = %v (%v), want the per-event override", w, err)
	}
	if w, err := (Interaction{Type: InteractionLike}).EffectiveWeight(); err != nil || w != 2 {
		t.Errorf("EffectiveWeight = %v (%v), want the type's base weight", w, err)
	}
	if _, err := (Interaction{Type: InteractionType("hover")}).EffectiveWeight(); err == nil {
		t.Error("unknown type without an override should fail")
	}

	// The override flows into the taste direction.
	now := time.Now()
	p := New("u1")
	p.Record(Interaction{ItemID: "a", Type: InteractionPurchase, At: now, Embedding: []float32{1, 0}})
	p.Record(Interaction{ItemID: "b", Type: InteractionClick, Weight: 20, At: now, Embedding: []float32{0, 1}})
	iv := p.InteractionVector(now)
	if iv == nil || iv[1] <= iv[0] {
		t.Errorf("weighted click should dominate the purchase: %v", iv)
	}
}

func TestDecayFactor(t *testing.T) {
	if got := decayFactor(0); !approx(got, 1) {
		t.Errorf("decay(0) = %v, want 1", got)
	}
	if got := decayFactor(30 * 24 * time.Hour); !approx(got, 0.5) {
		t.Errorf("decay(30d) = %v, want 0.5", got)
	}
	if got := decayFactor(60 * 24 * time.Hour); !approx(got, 0.25) {
		t.Errorf("decay(60d) = %v, want 0.25", got)
	}
	// Clock skew must not inflate future-dated interactions.
	if got := decayFactor(-time.Hour); !approx(got, 1) {
		t.Errorf("decay(future) = %v, want 1", got)
	}
}

func TestRecordCapsLog(t *testing.T) {
	p := New("u1")
	for i := 0; i < maxInteractions+25; i++ {
		p.Record(Interaction{
			ItemID: fmt.Sprintf("item-%d", i),
			Type:   InteractionClick,
			At:     time.Now(),
		})
	}
	if len(p.Interactions) != maxInteractions {
		t.Fatalf("log length = %d, want %d", len(p.Interactions), maxInteractions)
	}
	if p.Interactions[0].ItemID != "item-25" {
		t.Errorf("oldest kept = %s, want item-25", p.Interactions[0].ItemID)
	}
	if p.Interactions[maxInteractions-1].ItemID != fmt.Sprintf("item-%d", maxInteractions+24) {
		t.Errorf("newest = %s", p.Interactions[maxInteractions-1].ItemID)
	}
}

func TestIsSparse(t *testing.T) {
	p := New("u1")
	for i := 0; i < sparseThreshold; i++ {
		if !p.IsSparse() {
			t.Fatalf("profile with %d interactions should be sparse", i)
		}
		p.Record(Interaction{ItemID: fmt.Sprintf("i%d", i), Type: InteractionClick, At: time.Now()})
	}
	if p.IsSparse() {
		t.Errorf("profile with %d interactions should not be sparse", sparseThreshold)
	}
}

func TestInteractionVectorWeighting(t *testing.T) {
	now := time.Now()
	p := New("u1")
	// A fresh purchase (weight 5) against a 30-day-old click (weight 0.5):
	// the purchase direction must dominate.
	p.Record(Interaction{ItemID: "a", Type: InteractionClick, At: now.Add(-30 * 24 * time.Hour), Embedding: []float32{1, 0}})
	p.Record(Interaction{ItemID: "b", Type: InteractionPurchase, At: now, Embedding: []float32{0, 1}})

	iv := p.InteractionVector(now)
	if iv == nil {
		t.Fatal("expected a vector")
	}
	if iv[1] <= iv[0] {
		t.Errorf("purchase should dominate: %v", iv)
	}
	if math.Abs(float64(vec.Norm(iv))-1) > 1e-5 {
		t.Errorf("interaction vector should be normalized, norm = %v", vec.Norm(iv))
	}
}

func TestInteractionVectorSkipsBadEntries(t *testing.T) {
	now := time.Now()
	p := New("u1")
	p.Record(Interaction{ItemID: "a", Type: InteractionType("hover"), At: now, Embedding: []float32{1, 0}})
	p.Record(Interaction{ItemID: "b", Type: InteractionClick, At: now})

	if iv := p.InteractionVector(now); iv != nil {
		t.Errorf("no usable interactions should yield nil, got %v", iv)
	}
}

func TestTasteVector(t *testing.T) {
	now := time.Now()

	t.Run("absent when both signals absent", func(t *testing.T) {
		if tv := New("u1").TasteVector(now); tv != nil {
			t.Errorf("expected nil, got %v", tv)
		}
	})

	t.Run("preference only", func(t *testing.T) {
		p := New("u1")
		p.PreferenceVector = []float32{3, 4}
		tv := p.TasteVector(now)
		if tv == nil || math.Abs(float64(tv[0])-0.6) > 1e-5 {
			t.Errorf("tv = %v, want normalized preference vector", tv)
		}
		if p.PreferenceVector[0] != 3 {
			t.Error("stored preference vector must not be mutated")
		}
	})

	t.Run("interactions only", func(t *testing.T) {
		p := New("u1")
		p.Record(Interaction{ItemID: "a", Type: InteractionClick, At: now, Embedding: []float32{0, 1}})
		tv := p.TasteVector(now)
		if tv == nil || tv[1] < 0.99 {
			t.Errorf("tv = %v, want interaction direction", tv)
		}
	})

	t.Run("blend favors preferences", func(t *testing.T) {
		p := New("u1")
		p.PreferenceVector = []float32{1, 0}
		p.Record(Interaction{ItemID: "a", Type: InteractionClick, At: now, Embedding: []float32{0, 1}})
		tv := p.TasteVector(now)
		if tv[0] <= tv[1] {
			t.Errorf("preference axis should outweigh interaction axis (0.6 vs 0.4): %v", tv)
		}
	})
}

func TestRecentEmbeddings(t *testing.T) {
	now := time.Now()
	p := New("u1")
	for i := 0; i < 8; i++ {
		emb := []float32{float32(i)}
		if i == 4 {
			emb = nil // entries without embeddings are skipped
		}
		p.Record(Interaction{ItemID: fmt.Sprintf("i%d", i), Type: InteractionClick, At: now, Embedding: emb})
	}

	got := p.RecentEmbeddings(5)
	if len(got) != 5 {
		t.Fatalf("got %d embeddings, want 5", len(got))
	}
	// Chronological order, newest last, i4 skipped.
	want := []float32{2, 3, 5, 6, 7}
	for i, w := range want {
		if got[i][0] != w {
			t.Errorf("got[%d] = %v, want %v", i, got[i][0], w)
		}
	}
}

func TestPreferencesRenderText(t *testing.T) {
	min, max := 1500.0, 4000.0
	tests := []struct {
		name string
		p    Preferences
		want string
	}{
		{
			name: "categorical and free text",
			p: Preferences{
				Metals:   []string{"platinum", "white gold"},
				Styles:   []string{"vintage"},
				Shapes:   []string{"round"},
				FreeText: "something understated",
			},
			want: "metals: platinum, white gold; styles: vintage; diamond shapes: round; something understated",
		},
		{
			name: "full price range",
			p:    Preferences{Metals: []string{"platinum"}, PriceMin: &min, PriceMax: &max},
			want: "metals: platinum; price range $1500 to $4000",
		},
		{
			name: "open-ended minimum",
			p:    Preferences{PriceMin: &min},
			want: "price from $1500",
		},
		{
			name: "open-ended maximum",
			p:    Preferences{PriceMax: &max, FreeText: "minimalist"},
			want: "price up to $4000; minimalist",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.p.RenderText(); got != tc.want {
				t.Errorf("RenderText = %q, want %q", got, tc.want)
			}
		})
	}

	if (Preferences{}).RenderText() != "" {
		t.Error("empty preferences should render empty text")
	}
	if !(Preferences{}).Empty() {
		t.Error("zero preferences should be Empty")
	}
}
