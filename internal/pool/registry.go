// Facet - Jewelry Retrieval and Personalized Combination Recommendations
// Copyright 2026 Prasham Shah (prashamshah115)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prashamshah115/jewelry-recommender

package pool

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Source names the on-disk artifacts for one dataset.
type Source struct {
	Embeddings string
	Metadata   string
}

// Registry owns the loaded pools. Loading is lazy with single-flight
// semantics: concurrent Get calls for the same dataset share one load, and
// a failed load is retried on the next call rather than cached.
type Registry struct {
	mu      sync.Mutex
	sources map[string]Source
	opts    Options
	logger  zerolog.Logger
	pools   map[string]*Pool
	loading map[string]chan struct{}
}

// NewRegistry creates a registry over the configured dataset sources.
func NewRegistry(sources map[string]Source, opts Options, logger zerolog.Logger) *Registry {
	return &Registry{
		sources: sources,
		opts:    opts,
		logger:  logger,
		pools:   make(map[string]*Pool),
		loading: make(map[string]chan struct{}),
	}
}

// Get returns the pool for the dataset, loading it on first use.
func (r *Registry) Get(name string) (*Pool, error) {
	for {
		r.mu.Lock()
		if p, ok := r.pools[name]; ok {
			r.mu.Unlock()
			return p, nil
		}
		src, ok := r.sources[name]
		if !ok {
			r.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", ErrUnknownDataset, name)
		}
		if ch, inflight := r.loading[name]; inflight {
			r.mu.Unlock()
			<-ch
			continue
		}
		ch := make(chan struct{})
		r.loading[name] = ch
		r.mu.Unlock()

		p, err := Load(name, src.Embeddings, src.Metadata, r.opts, r.logger)

		r.mu.Lock()
		delete(r.loading, name)
		if err == nil {
			r.pools[name] = p
		}
		r.mu.Unlock()
		close(ch)
		return p, err
	}
}

// Preload eagerly loads every configured dataset. Any failure aborts.
func (r *Registry) Preload() error {
	for name := range r.sources {
		if _, err := r.Get(name); err != nil {
			return err
		}
	}
	return nil
}

// Datasets returns the configured dataset names.
func (r *Registry) Datasets() []string {
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	return names
}

// Loaded reports per-dataset stats for pools that have been loaded.
func (r *Registry) Loaded() map[string]Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]Stats, len(r.pools))
	for name, p := range r.pools {
		out[name] = Stats{Items: p.Len(), Dim: p.Dim(), Index: p.IndexKind()}
	}
	return out
}

// Stats summarizes one loaded pool.
type Stats struct {
	Items int    `json:"items"`
	Dim   int    `json:"dim"`
	Index string `json:"index"`
}
