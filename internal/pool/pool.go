// Facet - Jewelry Retrieval and Personalized Combination Recommendations
// Copyright 2026 Prasham Shah (prashamshah115)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prashamshah115/jewelry-recommender

// Package pool loads jewelry datasets (embedding matrix + metadata) and
// serves filtered top-k similarity queries over them.
package pool

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/prashamshah115/jewelry-recommender/internal/metrics"
	"github.com/prashamshah115/jewelry-recommender/internal/vec"
)

// hnswThresholdDefault is the item count at which a pool switches from the
// exact flat index to the HNSW graph.
const hnswThresholdDefault = 10000

// Options tune pool construction.
type Options struct {
	// HNSWThreshold is the minimum item count for building an HNSW index.
	// Zero means the default of 10000.
	HNSWThreshold int
	// EFSearch is the HNSW search beam width. Zero means 64.
	EFSearch int
}

func (o Options) withDefaults() Options {
	if o.HNSWThreshold <= 0 {
		o.HNSWThreshold = hnswThresholdDefault
	}
	if o.EFSearch <= 0 {
		o.EFSearch = 64
	}
	return o
}

// Pool is one dataset: items, their normalized embeddings, and a similarity
// index. Pools are immutable after Load and safe for concurrent use.
type Pool struct {
	name  string
	dim   int
	items []Item
	emb   [][]float32
	byID  map[string]int
	index Index
	// exact scores rows exhaustively. Filtered queries always take this
	// path: the graph index's beam can miss eligible rows when the filter
	// is selective.
	exact  *flatIndex
	schema Schema
	logger zerolog.Logger
}

// Load reads a dataset's embedding matrix (NPY) and metadata (JSON array)
// and builds its index. A count mismatch between the two artifacts fails
// the load outright.
func Load(name, embPath, metaPath string, opts Options, logger zerolog.Logger) (*Pool, error) {
	opts = opts.withDefaults()

	schema := SchemaFor(name)
	if schema == nil {
		return nil, &LoadError{Dataset: name, Err: fmt.Errorf("no schema for dataset")}
	}

	ef, err := os.Open(embPath)
	if err != nil {
		return nil, &LoadError{Dataset: name, Err: err}
	}
	defer ef.Close()
	emb, err := readNPY(ef)
	if err != nil {
		return nil, &LoadError{Dataset: name, Err: err}
	}

	raw, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, &LoadError{Dataset: name, Err: err}
	}
	items, err := decodeMetadata(raw)
	if err != nil {
		return nil, &LoadError{Dataset: name, Err: err}
	}

	if len(items) != len(emb) {
		return nil, &LoadError{
			Dataset: name,
			Err:     fmt.Errorf("embedding/metadata count mismatch: %d vectors, %d items", len(emb), len(items)),
		}
	}
	if len(items) == 0 {
		return nil, &LoadError{Dataset: name, Err: fmt.Errorf("empty dataset")}
	}

	byID := make(map[string]int, len(items))
	for i, it := range items {
		if it.ID == "" {
			return nil, &LoadError{Dataset: name, Err: fmt.Errorf("item at row %d has no id", i)}
		}
		if prev, dup := byID[it.ID]; dup {
			return nil, &LoadError{Dataset: name, Err: fmt.Errorf("duplicate item id %q at rows %d and %d", it.ID, prev, i)}
		}
		byID[it.ID] = i
	}

	for _, v := range emb {
		vec.Normalize(v)
	}

	p := &Pool{
		name:   name,
		dim:    len(emb[0]),
		items:  items,
		emb:    emb,
		byID:   byID,
		schema: schema,
		logger: logger.With().Str("component", "pool").Str("dataset", name).Logger(),
	}

	start := time.Now()
	p.exact = newFlatIndex(emb)
	if len(items) >= opts.HNSWThreshold {
		p.index = newHNSWIndex(emb, opts.EFSearch)
	} else {
		p.index = p.exact
	}
	p.logger.Info().
		Int("items", len(items)).
		Int("dim", p.dim).
		Str("index", p.index.Kind()).
		Dur("build", time.Since(start)).
		Msg("dataset loaded")
	metrics.PoolItems.WithLabelValues(name).Set(float64(len(items)))

	return p, nil
}

// decodeMetadata accepts the export pipeline's {"data": [...], "stats": ...}
// wrapper as well as a bare item array.
func decodeMetadata(raw []byte) ([]Item, error) {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []Item
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("parsing metadata: %w", err)
		}
		return items, nil
	}
	var wrapper struct {
		Data []Item `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return nil, fmt.Errorf("parsing metadata: %w", err)
	}
	if wrapper.Data == nil {
		return nil, fmt.Errorf("parsing metadata: no data array")
	}
	return wrapper.Data, nil
}

// Name returns the dataset name.
func (p *Pool) Name() string { return p.name }

// Len returns the number of items in the pool.
func (p *Pool) Len() int { return len(p.items) }

// Dim returns the embedding dimension.
func (p *Pool) Dim() int { return p.dim }

// IndexKind reports which index backs the pool ("flat" or "hnsw").
func (p *Pool) IndexKind() string { return p.index.Kind() }

// Schema returns the pool's filter schema.
func (p *Pool) Schema() Schema { return p.schema }

// Item returns the item with the given id.
func (p *Pool) Item(id string) (Item, error) {
	i, ok := p.byID[id]
	if !ok {
		return Item{}, fmt.Errorf("%w: %s/%s", ErrUnknownItem, p.name, id)
	}
	return p.items[i], nil
}

// Embedding returns the normalized embedding for the given id. Callers must
// handle the miss; a stale id skips the pair it belongs to, it never takes
// the request down.
func (p *Pool) Embedding(id string) ([]float32, error) {
	i, ok := p.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownItem, p.name, id)
	}
	return p.emb[i], nil
}

// Result pairs an item with its similarity score.
type Result struct {
	Item  Item
	Score float32
}

// Search returns the top-k items by cosine similarity to q, restricted to
// items passing the filters. The query is normalized in place.
func (p *Pool) Search(q []float32, k int, filters Filters) ([]Result, error) {
	if len(q) != p.dim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(q), p.dim)
	}
	if k <= 0 {
		return nil, nil
	}
	if err := filters.Validate(p.schema); err != nil {
		return nil, err
	}
	vec.Normalize(q)

	idx := p.index
	var allowed func(int) bool
	if len(filters) > 0 {
		pass := make([]bool, len(p.items))
		for i, it := range p.items {
			pass[i] = filters.Match(it, p.schema)
		}
		allowed = func(i int) bool { return pass[i] }
		idx = p.exact
	}

	start := time.Now()
	hits := idx.Search(q, k, allowed)
	metrics.SearchDuration.WithLabelValues(p.name, idx.Kind()).Observe(time.Since(start).Seconds())

	out := make([]Result, len(hits))
	for i, h := range hits {
		out[i] = Result{Item: p.items[h.Index], Score: h.Score}
	}
	return out, nil
}

// All returns the pool's items. The slice is shared; callers must not
// mutate it.
func (p *Pool) All() []Item { return p.items }
