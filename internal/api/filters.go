// Facet - Jewelry Retrieval and Personalized Combination Recommendations
// Copyright 2026 Prasham Shah (prashamshah115)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prashamshah115/jewelry-recommender

package api

import (
	"sort"

	"github.com/goccy/go-json"

	"github.com/prashamshah115/jewelry-recommender/internal/pool"
)

// parseFilters converts the wire form of filters into criteria. Each key
// maps to either a range object {"min": ..., "max": ...}, a value list, or
// a single string. Which shape a field actually accepts is checked later
// against the dataset schema.
func parseFilters(raw map[string]json.RawMessage) (pool.Filters, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	// Deterministic criterion order keeps error messages stable.
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	filters := make(pool.Filters, 0, len(raw))
	for _, field := range keys {
		c, err := parseCriterion(field, raw[field])
		if err != nil {
			return nil, err
		}
		filters = append(filters, c)
	}
	return filters, nil
}

func parseCriterion(field string, raw json.RawMessage) (pool.Criterion, error) {
	if len(raw) == 0 {
		return pool.Criterion{}, &pool.FilterError{Field: field, Reason: "empty criterion"}
	}
	switch raw[0] {
	case '{':
		var r pool.NumericRange
		if err := json.Unmarshal(raw, &r); err != nil {
			return pool.Criterion{}, &pool.FilterError{Field: field, Reason: "malformed range: " + err.Error()}
		}
		return pool.Criterion{Field: field, Range: &r}, nil
	case '[':
		var vals []string
		if err := json.Unmarshal(raw, &vals); err != nil {
			return pool.Criterion{}, &pool.FilterError{Field: field, Reason: "malformed value list: " + err.Error()}
		}
		return pool.Criterion{Field: field, Values: vals}, nil
	case '"':
		var val string
		if err := json.Unmarshal(raw, &val); err != nil {
			return pool.Criterion{}, &pool.FilterError{Field: field, Reason: "malformed value: " + err.Error()}
		}
		return pool.Criterion{Field: field, Values: []string{val}}, nil
	default:
		return pool.Criterion{}, &pool.FilterError{Field: field, Reason: "criterion must be a range object, value list, or string"}
	}
}
