// Facet - Jewelry Retrieval and Personalized Combination Recommendations
// Copyright 2026 Prasham Shah (prashamshah115)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prashamshah115/jewelry-recommender

// Command server runs the Facet recommendation service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prashamshah115/jewelry-recommender/internal/api"
	"github.com/prashamshah115/jewelry-recommender/internal/collab"
	"github.com/prashamshah115/jewelry-recommender/internal/config"
	"github.com/prashamshah115/jewelry-recommender/internal/embedding"
	"github.com/prashamshah115/jewelry-recommender/internal/logging"
	"github.com/prashamshah115/jewelry-recommender/internal/pool"
	"github.com/prashamshah115/jewelry-recommender/internal/profile"
	"github.com/prashamshah115/jewelry-recommender/internal/recommend"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (optional)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		logging.Fatal().Err(err).Msg("server exited")
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logger := logging.Logger()

	sources := make(map[string]pool.Source, len(cfg.Data.Datasets))
	for name, ds := range cfg.Data.Datasets {
		sources[name] = pool.Source{Embeddings: ds.Embeddings, Metadata: ds.Metadata}
	}
	registry := pool.NewRegistry(sources, pool.Options{
		HNSWThreshold: cfg.Recommend.HNSWThreshold,
		EFSearch:      cfg.Recommend.EFSearch,
	}, logger)
	if err := registry.Preload(); err != nil {
		return err
	}

	store, err := profile.NewStore(profile.StoreConfig{
		Dir:        cfg.Profiles.Dir,
		InMemory:   cfg.Profiles.InMemory,
		GCInterval: cfg.Profiles.GCInterval,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error().Err(cerr).Msg("closing profile store")
		}
	}()

	model := collab.NewModel()
	if err := seedCollab(store, model); err != nil {
		return fmt.Errorf("seeding collaborative model: %w", err)
	}
	logger.Info().Int("users", model.Users()).Int("items", model.Items()).Msg("collaborative model seeded")

	embedder := embedding.NewClient(embedding.Config{
		BaseURL:        cfg.Embedding.BaseURL,
		Timeout:        cfg.Embedding.Timeout,
		MaxRetries:     cfg.Embedding.MaxRetries,
		BreakerOpenFor: cfg.Embedding.BreakerOpenFor,
	}, logger)

	engine := recommend.NewEngine(registry, embedder, store, model, recommend.Config{
		RetrievalK: cfg.Recommend.RetrievalK,
		MMRLambda:  cfg.Recommend.MMRLambda,
	}, logger)

	server := api.NewServer(engine, registry, logger)
	handler := server.Router(api.Config{
		RateLimit:   cfg.Server.RateLimit,
		RateWindow:  cfg.Server.RateWindow,
		CORSOrigins: cfg.Server.CORSOrigins,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info().Stringer("signal", sig).Msg("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// seedCollab replays stored interaction histories into the in-memory
// collaborative model.
func seedCollab(store *profile.Store, model *collab.Model) error {
	return store.AllProfiles(func(p *profile.Profile) error {
		for _, it := range p.Interactions {
			w, err := it.Type.Weight()
			if err != nil {
				continue
			}
			model.Observe(p.UserID, it.ItemID, w)
		}
		return nil
	})
}
