// Facet - Jewelry Retrieval and Personalized Combination Recommendations
// Copyright 2026 Prasham Shah (prashamshah115)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prashamshah115/jewelry-recommender

package pool

import "strings"

// NumericRange is an inclusive range criterion. Nil bounds are open.
type NumericRange struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// Contains reports whether v falls inside the range, bounds inclusive.
func (r NumericRange) Contains(v float64) bool {
	if r.Min != nil && v < *r.Min {
		return false
	}
	if r.Max != nil && v > *r.Max {
		return false
	}
	return true
}

// Criterion is one filter clause. Exactly one of Range or Values is set;
// which one must agree with the field's kind in the dataset schema.
type Criterion struct {
	Field  string
	Range  *NumericRange
	Values []string
}

// Filters is a conjunction of criteria. An item must satisfy every
// criterion to pass.
type Filters []Criterion

// Validate checks every criterion against the schema. Unknown fields and
// kind mismatches are rejected before any matching happens.
func (f Filters) Validate(s Schema) error {
	for _, c := range f {
		spec, ok := s[c.Field]
		if !ok {
			return &FilterError{Field: c.Field, Reason: "no such field in this dataset"}
		}
		switch spec.Kind {
		case FieldNumeric:
			if c.Range == nil {
				return &FilterError{Field: c.Field, Reason: "numeric field requires a range criterion"}
			}
			if c.Range.Min == nil && c.Range.Max == nil {
				return &FilterError{Field: c.Field, Reason: "range needs at least one bound"}
			}
			if c.Range.Min != nil && c.Range.Max != nil && *c.Range.Min > *c.Range.Max {
				return &FilterError{Field: c.Field, Reason: "range min exceeds max"}
			}
		case FieldExact, FieldSubstring:
			if c.Range != nil {
				return &FilterError{Field: c.Field, Reason: "categorical field does not accept a range"}
			}
			if len(c.Values) == 0 {
				return &FilterError{Field: c.Field, Reason: "categorical criterion needs at least one value"}
			}
		}
	}
	return nil
}

// Match reports whether the item satisfies all criteria. An item that does
// not carry a filtered field passes that criterion permissively; absence of
// an optional attribute never rejects.
func (f Filters) Match(it Item, s Schema) bool {
	for _, c := range f {
		spec := s[c.Field]
		switch spec.Kind {
		case FieldNumeric:
			v, ok := spec.Num(it)
			if ok && !c.Range.Contains(v) {
				return false
			}
		case FieldExact:
			if vals := spec.Str(it); len(vals) > 0 && !matchExact(vals, c.Values) {
				return false
			}
		case FieldSubstring:
			if vals := spec.Str(it); len(vals) > 0 && !matchSubstring(vals, c.Values) {
				return false
			}
		}
	}
	return true
}

// matchExact reports whether any item value equals any criterion value,
// case-insensitively.
func matchExact(itemVals, wanted []string) bool {
	for _, iv := range itemVals {
		for _, w := range wanted {
			if strings.EqualFold(iv, w) {
				return true
			}
		}
	}
	return false
}

// matchSubstring reports whether any criterion value occurs inside any item
// value, case-insensitively. "gold" matches both "yellow gold" and
// "white gold".
func matchSubstring(itemVals, wanted []string) bool {
	for _, iv := range itemVals {
		lower := strings.ToLower(iv)
		for _, w := range wanted {
			if strings.Contains(lower, strings.ToLower(w)) {
				return true
			}
		}
	}
	return false
}
