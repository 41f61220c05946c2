// Facet - Jewelry Retrieval and Personalized Combination Recommendations
// Copyright 2026 Prasham Shah (prashamshah115)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prashamshah115/jewelry-recommender

package pool

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"

	"github.com/prashamshah115/jewelry-recommender/internal/logging"
)

func writeDataset(t *testing.T, dir, name string, emb [][]float32, items []Item) Source {
	t.Helper()
	embPath := filepath.Join(dir, name+"_embeddings.npy")
	metaPath := filepath.Join(dir, name+"_metadata.json")
	if err := os.WriteFile(embPath, buildNPY(emb, "<f4"), 0o600); err != nil {
		t.Fatal(err)
	}
	raw, err := json.Marshal(items)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(metaPath, raw, 0o600); err != nil {
		t.Fatal(err)
	}
	return Source{Embeddings: embPath, Metadata: metaPath}
}

// basisDiamonds builds n diamonds whose embeddings are standard basis
// vectors, so an identity query has an unambiguous nearest neighbor.
func basisDiamonds(n, dim int) ([][]float32, []Item) {
	emb := make([][]float32, n)
	items := make([]Item, n)
	for i := 0; i < n; i++ {
		v := make([]float32, dim)
		v[i%dim] = 1
		emb[i] = v
		items[i] = Item{
			ID:      fmt.Sprintf("d%d", i),
			Price:   1000 + float64(i)*100,
			Carat:   0.5 + float64(i)*0.1,
			Color:   string(rune('D' + i%7)),
			Shape:   "Round",
			Clarity: "VS1",
		}
	}
	return emb, items
}

func loadTestPool(t *testing.T, n, dim int) *Pool {
	t.Helper()
	emb, items := basisDiamonds(n, dim)
	src := writeDataset(t, t.TempDir(), "diamonds", emb, items)
	p, err := Load("diamonds", src.Embeddings, src.Metadata, Options{}, logging.NewTestLogger(os.Stderr))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return p
}

func TestLoadCountMismatchFails(t *testing.T) {
	emb, items := basisDiamonds(3, 4)
	src := writeDataset(t, t.TempDir(), "diamonds", emb, items[:2])

	_, err := Load("diamonds", src.Embeddings, src.Metadata, Options{}, logging.NewTestLogger(os.Stderr))
	if err == nil {
		t.Fatal("expected load error on count mismatch")
	}
	var le *LoadError
	if !errors.As(err, &le) {
		t.Fatalf("error should be a *LoadError, got %T", err)
	}
}

func TestLoadDuplicateIDFails(t *testing.T) {
	emb, items := basisDiamonds(2, 4)
	items[1].ID = items[0].ID
	src := writeDataset(t, t.TempDir(), "diamonds", emb, items)

	if _, err := Load("diamonds", src.Embeddings, src.Metadata, Options{}, logging.NewTestLogger(os.Stderr)); err == nil {
		t.Fatal("expected load error on duplicate id")
	}
}

func TestLoadUnknownDatasetSchema(t *testing.T) {
	emb, items := basisDiamonds(2, 4)
	src := writeDataset(t, t.TempDir(), "bracelets", emb, items)

	if _, err := Load("bracelets", src.Embeddings, src.Metadata, Options{}, logging.NewTestLogger(os.Stderr)); err == nil {
		t.Fatal("expected load error for dataset without a schema")
	}
}

func TestSearchIdentityQuery(t *testing.T) {
	// Production-width embeddings; still small enough for the flat index.
	p := loadTestPool(t, 10, 768)
	if p.IndexKind() != "flat" {
		t.Fatalf("small pool should use flat index, got %s", p.IndexKind())
	}

	// Query equal to item 3's basis vector must rank item 3 first.
	q := make([]float32, 768)
	q[3] = 1
	res, err := p.Search(q, 3, nil)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(res) != 3 {
		t.Fatalf("got %d results, want 3", len(res))
	}
	if res[0].Item.ID != "d3" {
		t.Errorf("top hit = %s, want d3", res[0].Item.ID)
	}
	if res[0].Score < 0.999 {
		t.Errorf("top score = %v, want ~1", res[0].Score)
	}
}

func TestSearchStableTies(t *testing.T) {
	p := loadTestPool(t, 6, 8)

	// A query orthogonal to everything scores every item 0; ranking must
	// fall back to row order.
	q := make([]float32, 8)
	q[7] = 1
	res, err := p.Search(q, 4, nil)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	for i, want := range []string{"d0", "d1", "d2", "d3"} {
		if res[i].Item.ID != want {
			t.Errorf("res[%d] = %s, want %s", i, res[i].Item.ID, want)
		}
	}
}

func TestSearchWithFilters(t *testing.T) {
	p := loadTestPool(t, 8, 8)

	q := make([]float32, 8)
	q[0] = 1
	res, err := p.Search(q, 8, Filters{
		{Field: "price", Range: &NumericRange{Min: fp(1500)}},
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	for _, r := range res {
		if r.Item.Price < 1500 {
			t.Errorf("item %s price %v leaked through the filter", r.Item.ID, r.Item.Price)
		}
	}
	// Items d0..d4 are priced below 1500; only d5..d7 remain.
	if len(res) != 3 {
		t.Errorf("got %d results, want 3", len(res))
	}
}

func TestSearchRejectsInvalidFilter(t *testing.T) {
	p := loadTestPool(t, 4, 8)
	q := make([]float32, 8)
	q[0] = 1

	_, err := p.Search(q, 4, Filters{{Field: "metal", Values: []string{"gold"}}})
	var fe *FilterError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FilterError, got %v", err)
	}
}

func TestSearchDimensionMismatch(t *testing.T) {
	p := loadTestPool(t, 4, 8)
	if _, err := p.Search(make([]float32, 5), 4, nil); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestEmbeddingLookup(t *testing.T) {
	p := loadTestPool(t, 4, 8)

	if _, err := p.Embedding("d2"); err != nil {
		t.Errorf("known id failed: %v", err)
	}
	if _, err := p.Embedding("ghost"); !errors.Is(err, ErrUnknownItem) {
		t.Errorf("expected ErrUnknownItem, got %v", err)
	}
}

func TestHNSWIndexSelectedAboveThreshold(t *testing.T) {
	emb, items := basisDiamonds(64, 16)
	src := writeDataset(t, t.TempDir(), "diamonds", emb, items)

	p, err := Load("diamonds", src.Embeddings, src.Metadata, Options{HNSWThreshold: 32}, logging.NewTestLogger(os.Stderr))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if p.IndexKind() != "hnsw" {
		t.Fatalf("pool above threshold should use hnsw, got %s", p.IndexKind())
	}

	// With basis vectors repeated every 16 rows, a basis query's top hit
	// must score ~1.
	q := make([]float32, 16)
	q[5] = 1
	res, err := p.Search(q, 4, nil)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(res) == 0 || res[0].Score < 0.999 {
		t.Fatalf("hnsw search missed an exact-match neighbor: %+v", res)
	}
}

func TestSearchFilteredOnHNSWPoolIsExhaustive(t *testing.T) {
	emb, items := basisDiamonds(64, 16)
	src := writeDataset(t, t.TempDir(), "diamonds", emb, items)

	p, err := Load("diamonds", src.Embeddings, src.Metadata, Options{HNSWThreshold: 32}, logging.NewTestLogger(os.Stderr))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if p.IndexKind() != "hnsw" {
		t.Fatalf("pool should use hnsw, got %s", p.IndexKind())
	}

	// Prices grow with the row index, so this filter leaves only the last
	// two rows eligible. A graph walk seeded elsewhere can fail to reach
	// them; the filtered path must still return both.
	q := make([]float32, 16)
	q[0] = 1
	res, err := p.Search(q, 8, Filters{
		{Field: "price", Range: &NumericRange{Min: fp(1000 + 62*100)}},
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("got %d results, want the 2 eligible rows", len(res))
	}
	seen := map[string]bool{}
	for _, r := range res {
		seen[r.Item.ID] = true
	}
	if !seen["d62"] || !seen["d63"] {
		t.Errorf("filtered search missed eligible rows: %+v", res)
	}
}

func TestLoadWrappedMetadata(t *testing.T) {
	dir := t.TempDir()
	emb, items := basisDiamonds(3, 4)
	embPath := filepath.Join(dir, "diamonds_embeddings.npy")
	if err := os.WriteFile(embPath, buildNPY(emb, "<f4"), 0o600); err != nil {
		t.Fatal(err)
	}

	// The export pipeline wraps the item list in an envelope.
	wrapped := struct {
		Data  []Item         `json:"data"`
		Stats map[string]int `json:"stats"`
	}{Data: items, Stats: map[string]int{"count": len(items)}}
	raw, err := json.Marshal(wrapped)
	if err != nil {
		t.Fatal(err)
	}
	metaPath := filepath.Join(dir, "diamonds_metadata.json")
	if err := os.WriteFile(metaPath, raw, 0o600); err != nil {
		t.Fatal(err)
	}

	p, err := Load("diamonds", embPath, metaPath, Options{}, logging.NewTestLogger(os.Stderr))
	if err != nil {
		t.Fatalf("Load failed on wrapped metadata: %v", err)
	}
	if p.Len() != 3 {
		t.Errorf("loaded %d items, want 3", p.Len())
	}

	if err := os.WriteFile(metaPath, []byte(`{"stats": {}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load("diamonds", embPath, metaPath, Options{}, logging.NewTestLogger(os.Stderr)); err == nil {
		t.Fatal("expected load error when the envelope has no data array")
	}
}

func TestCartierDatasetLoadsAndFilters(t *testing.T) {
	emb := [][]float32{{1, 0}, {0, 1}}
	items := []Item{
		{ID: "c1", Metal: "Platinum", Style: "Solitaire", Gemstones: []string{"diamond"}, Price: 3000},
		{ID: "c2", Metal: "Yellow Gold", Style: "Band", Price: 1800},
	}
	src := writeDataset(t, t.TempDir(), "cartier", emb, items)

	p, err := Load("cartier", src.Embeddings, src.Metadata, Options{}, logging.NewTestLogger(os.Stderr))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	res, err := p.Search([]float32{1, 0}, 2, Filters{{Field: "metal", Values: []string{"gold"}}})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(res) != 1 || res[0].Item.ID != "c2" {
		t.Errorf("metal filter on cartier: got %+v, want c2 only", res)
	}
}

func TestRegistryGet(t *testing.T) {
	emb, items := basisDiamonds(4, 8)
	src := writeDataset(t, t.TempDir(), "diamonds", emb, items)

	r := NewRegistry(map[string]Source{"diamonds": src}, Options{}, logging.NewTestLogger(os.Stderr))

	p1, err := r.Get("diamonds")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	p2, err := r.Get("diamonds")
	if err != nil {
		t.Fatalf("second Get failed: %v", err)
	}
	if p1 != p2 {
		t.Error("Get should return the same pool instance")
	}

	if _, err := r.Get("bracelets"); !errors.Is(err, ErrUnknownDataset) {
		t.Errorf("expected ErrUnknownDataset, got %v", err)
	}
}

func TestRegistryConcurrentGetSharesLoad(t *testing.T) {
	emb, items := basisDiamonds(4, 8)
	src := writeDataset(t, t.TempDir(), "diamonds", emb, items)
	r := NewRegistry(map[string]Source{"diamonds": src}, Options{}, logging.NewTestLogger(os.Stderr))

	const n = 8
	pools := make([]*Pool, n)
	errs := make([]error, n)
	done := make(chan int, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			pools[i], errs[i] = r.Get("diamonds")
			done <- i
		}(i)
	}
	for i := 0; i < n; i++ {
		<-done
	}
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("goroutine %d: %v", i, errs[i])
		}
		if pools[i] != pools[0] {
			t.Fatal("concurrent Gets returned different pool instances")
		}
	}
}
