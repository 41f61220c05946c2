// Facet - Jewelry Retrieval and Personalized Combination Recommendations
// Copyright 2026 Prasham Shah (prashamshah115)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prashamshah115/jewelry-recommender

package pool

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownDataset is returned when a dataset name has no registered pool.
	ErrUnknownDataset = errors.New("unknown dataset")

	// ErrUnknownItem is returned when an item id is not present in the pool.
	ErrUnknownItem = errors.New("unknown item")

	// ErrDimensionMismatch is returned when a query vector's dimension does
	// not match the pool's embeddings.
	ErrDimensionMismatch = errors.New("query dimension mismatch")
)

// FilterError reports an invalid filter criterion. It is a client error:
// the request named a field the dataset does not have, or used the wrong
// criterion kind for the field.
type FilterError struct {
	Field  string
	Reason string
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("invalid filter %q: %s", e.Field, e.Reason)
}

// LoadError reports a dataset that could not be loaded. Embedding and
// metadata artifacts that disagree on item count are a LoadError, never a
// silent truncation.
type LoadError struct {
	Dataset string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading dataset %q: %v", e.Dataset, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
