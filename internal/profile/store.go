// Facet - Jewelry Retrieval and Personalized Combination Recommendations
// Copyright 2026 Prasham Shah (prashamshah115)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prashamshah115/jewelry-recommender

package profile

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prashamshah115/jewelry-recommender/internal/metrics"
)

// ErrNotFound is returned when a user has no stored profile.
var ErrNotFound = errors.New("profile not found")

const (
	keyPrefix   = "profile:"
	lockStripes = 64
)

// StoreConfig holds profile store settings.
type StoreConfig struct {
	Dir        string
	InMemory   bool
	GCInterval time.Duration
}

// Store persists profiles in Badger. Read-modify-write cycles for a user
// are serialized through striped per-user locks so concurrent interaction
// logging cannot lose updates.
type Store struct {
	db     *badger.DB
	locks  [lockStripes]sync.Mutex
	logger zerolog.Logger

	gcStop chan struct{}
	gcDone chan struct{}
}

// NewStore opens the profile database.
func NewStore(cfg StoreConfig, logger zerolog.Logger) (*Store, error) {
	log := logger.With().Str("component", "profiles").Logger()

	opts := badger.DefaultOptions(cfg.Dir).
		WithInMemory(cfg.InMemory).
		WithLogger(nil)
	if cfg.InMemory {
		opts = opts.WithDir("").WithValueDir("")
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening profile store: %w", err)
	}

	s := &Store{
		db:     db,
		logger: log,
		gcStop: make(chan struct{}),
		gcDone: make(chan struct{}),
	}

	interval := cfg.GCInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	go s.gcLoop(interval)

	return s, nil
}

// gcLoop runs Badger value-log GC until Close.
func (s *Store) gcLoop(interval time.Duration) {
	defer close(s.gcDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.gcStop:
			return
		case <-ticker.C:
			for {
				if err := s.db.RunValueLogGC(0.5); err != nil {
					break
				}
			}
		}
	}
}

// Close stops background work and closes the database.
func (s *Store) Close() error {
	close(s.gcStop)
	<-s.gcDone
	return s.db.Close()
}

func (s *Store) lock(userID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return &s.locks[h.Sum32()%lockStripes]
}

// Get returns the stored profile for a user, ErrNotFound if none exists.
func (s *Store) Get(userID string) (*Profile, error) {
	var p Profile
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + userID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &p)
		})
	})
	if err != nil {
		return nil, err
	}
	if p.Version != schemaVersion {
		return nil, fmt.Errorf("profile %s has unsupported schema version %d", userID, p.Version)
	}
	return &p, nil
}

// GetOrNew returns the stored profile or a fresh empty one.
func (s *Store) GetOrNew(userID string) (*Profile, error) {
	p, err := s.Get(userID)
	if errors.Is(err, ErrNotFound) {
		return New(userID), nil
	}
	return p, err
}

func (s *Store) put(p *Profile) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding profile: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+p.UserID), raw)
	})
}

// Mutate applies fn to the user's profile under the user's lock and
// persists the result. fn receives a fresh profile when none exists yet.
func (s *Store) Mutate(userID string, fn func(*Profile) error) (*Profile, error) {
	mu := s.lock(userID)
	mu.Lock()
	defer mu.Unlock()

	p, err := s.GetOrNew(userID)
	if err != nil {
		return nil, err
	}
	if err := fn(p); err != nil {
		return nil, err
	}
	if err := s.put(p); err != nil {
		return nil, err
	}
	return p, nil
}

// TextEmbedder is the slice of the embedding client the store needs.
type TextEmbedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// SetPreferences replaces the user's declared preferences and refreshes the
// preference vector by embedding the rendered preference text. Empty
// preferences clear the vector without calling the embedder.
func (s *Store) SetPreferences(ctx context.Context, userID string, prefs Preferences, emb TextEmbedder) (*Profile, error) {
	var pv []float32
	if !prefs.Empty() {
		var err error
		pv, err = emb.EmbedText(ctx, prefs.RenderText())
		if err != nil {
			return nil, fmt.Errorf("embedding preferences for %s: %w", userID, err)
		}
	}

	p, err := s.Mutate(userID, func(p *Profile) error {
		p.Preferences = prefs
		p.PreferenceVector = pv
		p.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.ProfileUpdates.WithLabelValues("preferences").Inc()
	s.logger.Debug().Str("user", userID).Msg("preferences updated")
	return p, nil
}

// LogInteraction appends an interaction to the user's history.
func (s *Store) LogInteraction(userID string, it Interaction) (*Profile, error) {
	if _, err := it.Type.Weight(); err != nil {
		return nil, err
	}
	if it.Weight < 0 {
		return nil, fmt.Errorf("negative interaction weight %v", it.Weight)
	}
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	if it.At.IsZero() {
		it.At = time.Now().UTC()
	}

	p, err := s.Mutate(userID, func(p *Profile) error {
		p.Record(it)
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.ProfileUpdates.WithLabelValues("interaction").Inc()
	s.logger.Debug().Str("user", userID).Str("item", it.ItemID).Str("type", string(it.Type)).Msg("interaction logged")
	return p, nil
}

// AllProfiles streams every stored profile. Used to seed the collaborative
// model at startup and on rebuilds.
func (s *Store) AllProfiles(fn func(*Profile) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var p Profile
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &p)
			})
			if err != nil {
				return err
			}
			if err := fn(&p); err != nil {
				return err
			}
		}
		return nil
	})
}
