// Facet - Jewelry Retrieval and Personalized Combination Recommendations
// Copyright 2026 Prasham Shah (prashamshah115)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prashamshah115/jewelry-recommender

package profile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/prashamshah115/jewelry-recommender/internal/logging"
)

type stubEmbedder struct {
	vec   []float32
	err   error
	calls int
	text  string
}

func (s *stubEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	s.calls++
	s.text = text
	return s.vec, s.err
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(StoreConfig{InMemory: true}, logging.NewTestLogger(os.Stderr))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreGetMissing(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get("nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	p, err := s.GetOrNew("nobody")
	if err != nil {
		t.Fatalf("GetOrNew failed: %v", err)
	}
	if p.UserID != "nobody" || len(p.Interactions) != 0 {
		t.Errorf("unexpected fresh profile: %+v", p)
	}
}

func TestSetPreferencesEmbedsRenderedText(t *testing.T) {
	s := newTestStore(t)
	emb := &stubEmbedder{vec: []float32{0.5, 0.5}}

	prefs := Preferences{Metals: []string{"platinum"}, Styles: []string{"classic"}}
	p, err := s.SetPreferences(context.Background(), "u1", prefs, emb)
	if err != nil {
		t.Fatalf("SetPreferences failed: %v", err)
	}
	if emb.calls != 1 {
		t.Errorf("embedder calls = %d, want 1", emb.calls)
	}
	if emb.text != prefs.RenderText() {
		t.Errorf("embedded text = %q, want rendered preferences", emb.text)
	}
	if len(p.PreferenceVector) != 2 {
		t.Errorf("preference vector = %v", p.PreferenceVector)
	}

	// Round-trip through storage.
	got, err := s.Get("u1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Version != schemaVersion {
		t.Errorf("version = %d, want %d", got.Version, schemaVersion)
	}
	if len(got.Preferences.Metals) != 1 || got.Preferences.Metals[0] != "platinum" {
		t.Errorf("persisted preferences = %+v", got.Preferences)
	}
}

func TestSetPreferencesEmptySkipsEmbedder(t *testing.T) {
	s := newTestStore(t)
	emb := &stubEmbedder{vec: []float32{1}}

	p, err := s.SetPreferences(context.Background(), "u1", Preferences{}, emb)
	if err != nil {
		t.Fatalf("SetPreferences failed: %v", err)
	}
	if emb.calls != 0 {
		t.Errorf("embedder should not be called for empty preferences, calls = %d", emb.calls)
	}
	if p.PreferenceVector != nil {
		t.Errorf("preference vector should be cleared, got %v", p.PreferenceVector)
	}
}

func TestSetPreferencesEmbedderFailureLeavesProfileUntouched(t *testing.T) {
	s := newTestStore(t)
	good := &stubEmbedder{vec: []float32{1}}
	if _, err := s.SetPreferences(context.Background(), "u1", Preferences{FreeText: "gold"}, good); err != nil {
		t.Fatal(err)
	}

	bad := &stubEmbedder{err: errors.New("service down")}
	if _, err := s.SetPreferences(context.Background(), "u1", Preferences{FreeText: "silver"}, bad); err == nil {
		t.Fatal("expected error")
	}

	got, err := s.Get("u1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Preferences.FreeText != "gold" {
		t.Errorf("failed update should not overwrite preferences, got %q", got.Preferences.FreeText)
	}
}

func TestLogInteraction(t *testing.T) {
	s := newTestStore(t)

	p, err := s.LogInteraction("u1", Interaction{
		ItemID:    "d1",
		Dataset:   "diamonds",
		Type:      InteractionLike,
		Embedding: []float32{1, 0},
	})
	if err != nil {
		t.Fatalf("LogInteraction failed: %v", err)
	}
	if len(p.Interactions) != 1 {
		t.Fatalf("interactions = %d, want 1", len(p.Interactions))
	}
	if p.Interactions[0].At.IsZero() {
		t.Error("timestamp should be filled in")
	}
	if p.Interactions[0].ID == "" {
		t.Error("interaction id should be generated")
	}

	if _, err := s.LogInteraction("u1", Interaction{ItemID: "d2", Type: InteractionType("hover")}); err == nil {
		t.Error("unknown interaction type should be rejected")
	}
	if _, err := s.LogInteraction("u1", Interaction{ItemID: "d2", Type: InteractionClick, Weight: -1}); err == nil {
		t.Error("negative weight should be rejected")
	}
}

func TestConcurrentLogInteractionLosesNothing(t *testing.T) {
	s := newTestStore(t)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.LogInteraction("u1", Interaction{
				ItemID: fmt.Sprintf("item-%d", i),
				Type:   InteractionClick,
				At:     time.Now(),
			})
			if err != nil {
				t.Errorf("LogInteraction: %v", err)
			}
		}(i)
	}
	wg.Wait()

	p, err := s.Get("u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Interactions) != n {
		t.Errorf("interactions = %d, want %d (lost updates)", len(p.Interactions), n)
	}
}

func TestAllProfiles(t *testing.T) {
	s := newTestStore(t)
	for _, u := range []string{"a", "b", "c"} {
		if _, err := s.LogInteraction(u, Interaction{ItemID: "d1", Type: InteractionClick}); err != nil {
			t.Fatal(err)
		}
	}

	seen := map[string]bool{}
	err := s.AllProfiles(func(p *Profile) error {
		seen[p.UserID] = true
		return nil
	})
	if err != nil {
		t.Fatalf("AllProfiles failed: %v", err)
	}
	if len(seen) != 3 || !seen["a"] || !seen["b"] || !seen["c"] {
		t.Errorf("seen = %v", seen)
	}
}
