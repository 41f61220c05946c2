// Facet - Jewelry Retrieval and Personalized Combination Recommendations
// Copyright 2026 Prasham Shah (prashamshah115)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prashamshah115/jewelry-recommender

// Package config loads layered configuration for Facet using koanf.
//
// Precedence, lowest to highest: struct defaults, optional YAML file,
// environment variables prefixed FACET_ with double underscore as the
// key separator (FACET_SERVER__PORT=9090 sets server.port).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "FACET_"

// Config is the root configuration for the Facet service.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Data      DataConfig      `koanf:"data"`
	Embedding EmbeddingConfig `koanf:"embedding"`
	Profiles  ProfilesConfig  `koanf:"profiles"`
	Recommend RecommendConfig `koanf:"recommend"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	RateLimit       int           `koanf:"rate_limit" validate:"min=0"`
	RateWindow      time.Duration `koanf:"rate_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// DatasetConfig points at one dataset's embedding matrix and metadata file.
type DatasetConfig struct {
	Embeddings string `koanf:"embeddings" validate:"required"`
	Metadata   string `koanf:"metadata" validate:"required"`
}

// DataConfig maps dataset names to their on-disk artifacts.
type DataConfig struct {
	Dir      string                   `koanf:"dir"`
	Datasets map[string]DatasetConfig `koanf:"datasets" validate:"required,dive"`
}

// EmbeddingConfig holds settings for the external embedding service.
type EmbeddingConfig struct {
	BaseURL        string        `koanf:"base_url" validate:"required,url"`
	Timeout        time.Duration `koanf:"timeout"`
	MaxRetries     int           `koanf:"max_retries" validate:"min=0,max=10"`
	BreakerOpenFor time.Duration `koanf:"breaker_open_for"`
}

// ProfilesConfig holds user profile persistence settings.
type ProfilesConfig struct {
	Dir        string        `koanf:"dir" validate:"required"`
	InMemory   bool          `koanf:"in_memory"`
	GCInterval time.Duration `koanf:"gc_interval"`
}

// RecommendConfig holds recommendation pipeline settings.
type RecommendConfig struct {
	RetrievalK    int     `koanf:"retrieval_k" validate:"min=1"`
	MMRLambda     float64 `koanf:"mmr_lambda" validate:"min=0,max=1"`
	HNSWThreshold int     `koanf:"hnsw_threshold" validate:"min=1"`
	EFSearch      int     `koanf:"ef_search" validate:"min=1"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimit:       100,
			RateWindow:      time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Data: DataConfig{
			Dir: "data",
			Datasets: map[string]DatasetConfig{
				"diamonds": {
					Embeddings: "data/diamonds_embeddings.npy",
					Metadata:   "data/diamonds_metadata.json",
				},
				"rings": {
					Embeddings: "data/rings_embeddings.npy",
					Metadata:   "data/rings_metadata.json",
				},
			},
		},
		Embedding: EmbeddingConfig{
			BaseURL:        "http://localhost:8500",
			Timeout:        10 * time.Second,
			MaxRetries:     3,
			BreakerOpenFor: 30 * time.Second,
		},
		Profiles: ProfilesConfig{
			Dir:        "data/profiles",
			GCInterval: 10 * time.Minute,
		},
		Recommend: RecommendConfig{
			RetrievalK:    50,
			MMRLambda:     0.1,
			HNSWThreshold: 10000,
			EFSearch:      64,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// environment variables. An empty path skips the file layer; a named file
// that does not exist is an error.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil); err != nil {
		return Config{}, fmt.Errorf("loading environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration against its struct tags.
func (c Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if len(c.Data.Datasets) == 0 {
		return fmt.Errorf("invalid configuration: no datasets configured")
	}
	return nil
}
