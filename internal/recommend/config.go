// Facet - Jewelry Retrieval and Personalized Combination Recommendations
// Copyright 2026 Prasham Shah (prashamshah115)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prashamshah115/jewelry-recommender

package recommend

import "fmt"

// Weights distribute the combination score across its components. They must
// sum to 1.
type Weights struct {
	Similarity    float64
	Attribute     float64
	Compatibility float64
	User          float64
}

// Validate checks the weights are non-negative and sum to 1.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"similarity":    w.Similarity,
		"attribute":     w.Attribute,
		"compatibility": w.Compatibility,
		"user":          w.User,
	} {
		if v < 0 {
			return fmt.Errorf("weight %s is negative", name)
		}
	}
	sum := w.Similarity + w.Attribute + w.Compatibility + w.User
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("weights sum to %v, want 1", sum)
	}
	return nil
}

// TextWeights favor declared attributes: text queries spell out what the
// user wants, so attribute matching outweighs raw similarity.
var TextWeights = Weights{
	Similarity:    0.3,
	Attribute:     0.4,
	Compatibility: 0.2,
	User:          0.1,
}

// ImageWeights favor visual similarity: an image query is the look itself.
var ImageWeights = Weights{
	Similarity:    0.5,
	Attribute:     0.3,
	Compatibility: 0.1,
	User:          0.1,
}

// WeightsFor returns the preset for a query kind.
func WeightsFor(kind QueryKind) Weights {
	if kind == QueryImage {
		return ImageWeights
	}
	return TextWeights
}

const (
	// collaborativeBoostScale scales the neighborhood endorsement added on
	// top of the weighted score.
	collaborativeBoostScale = 0.2

	// sequentialBoostScale scales the recent-trajectory alignment boost.
	sequentialBoostScale = 0.15

	// sequentialWindow is how many recent interactions feed the
	// trajectory; fewer than sequentialMinHistory disables the boost.
	sequentialWindow     = 5
	sequentialMinHistory = 2
)

// Config tunes the recommendation engine.
type Config struct {
	// RetrievalK is how many candidates to pull from each pool before
	// pairing. Zero means 50.
	RetrievalK int
	// MMRLambda is the diversity pressure for reranking; zero keeps the
	// default of 0.1.
	MMRLambda float64
}

func (c Config) withDefaults() Config {
	if c.RetrievalK <= 0 {
		c.RetrievalK = 50
	}
	if c.MMRLambda == 0 {
		c.MMRLambda = 0.1
	}
	return c
}
