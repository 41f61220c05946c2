// Facet - Jewelry Retrieval and Personalized Combination Recommendations
// Copyright 2026 Prasham Shah (prashamshah115)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prashamshah115/jewelry-recommender

package pool

import "strings"

// Item is one catalog entry. A single struct covers both datasets; fields
// that do not apply to a dataset are left at their zero value and surface
// through that dataset's schema only.
type Item struct {
	ID          string  `json:"id"`
	Title       string  `json:"title,omitempty"`
	Description string  `json:"description,omitempty"`
	ImageURL    string  `json:"image_url,omitempty"`
	Price       float64 `json:"price"`

	// Diamond attributes.
	Shape   string  `json:"shape,omitempty"`
	Carat   float64 `json:"carat,omitempty"`
	Color   string  `json:"color,omitempty"`
	Clarity string  `json:"clarity,omitempty"`
	Cut     string  `json:"cut,omitempty"`
	Lab     string  `json:"lab,omitempty"`

	// Ring attributes.
	Metal       string   `json:"metal,omitempty"`
	Style       string   `json:"style,omitempty"`
	Gemstones   []string `json:"gemstones,omitempty"`
	BandWidthMM float64  `json:"band_width_mm,omitempty"`
}

// FieldKind determines how a filter criterion is evaluated against a field.
type FieldKind int

const (
	// FieldNumeric fields accept inclusive range criteria.
	FieldNumeric FieldKind = iota
	// FieldExact fields accept set criteria matched case-insensitively
	// on the whole value.
	FieldExact
	// FieldSubstring fields accept set criteria matched as
	// case-insensitive substrings of the value.
	FieldSubstring
)

// FieldSpec describes one filterable field of a dataset.
type FieldSpec struct {
	Kind FieldKind
	// Num extracts the numeric value; ok is false when the item does not
	// carry the field.
	Num func(Item) (v float64, ok bool)
	// Str extracts the string value(s). Multi-valued fields (gemstones)
	// return one entry per value.
	Str func(Item) []string
}

// Schema maps filter keys to field specs for one dataset.
type Schema map[string]FieldSpec

func one(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}

// DiamondSchema is the filterable surface of the diamonds dataset.
var DiamondSchema = Schema{
	"price": {Kind: FieldNumeric, Num: func(it Item) (float64, bool) { return it.Price, it.Price > 0 }},
	"carat": {Kind: FieldNumeric, Num: func(it Item) (float64, bool) { return it.Carat, it.Carat > 0 }},
	"shape": {Kind: FieldExact, Str: func(it Item) []string { return one(it.Shape) }},
	"color": {Kind: FieldExact, Str: func(it Item) []string { return one(it.Color) }},
	"clarity": {Kind: FieldExact, Str: func(it Item) []string { return one(it.Clarity) }},
	"cut":     {Kind: FieldExact, Str: func(it Item) []string { return one(it.Cut) }},
	"lab":     {Kind: FieldExact, Str: func(it Item) []string { return one(it.Lab) }},
}

// RingSchema is the filterable surface of the rings dataset.
var RingSchema = Schema{
	"price":         {Kind: FieldNumeric, Num: func(it Item) (float64, bool) { return it.Price, it.Price > 0 }},
	"band_width_mm": {Kind: FieldNumeric, Num: func(it Item) (float64, bool) { return it.BandWidthMM, it.BandWidthMM > 0 }},
	"metal":         {Kind: FieldSubstring, Str: func(it Item) []string { return one(it.Metal) }},
	"style":         {Kind: FieldSubstring, Str: func(it Item) []string { return one(it.Style) }},
	"gemstones":     {Kind: FieldSubstring, Str: func(it Item) []string { return it.Gemstones }},
}

// CartierSchema is the filterable surface of the cartier catalog. Cartier
// pieces are finished ring products, so the surface matches the rings
// dataset.
var CartierSchema = Schema{
	"price":     {Kind: FieldNumeric, Num: func(it Item) (float64, bool) { return it.Price, it.Price > 0 }},
	"metal":     {Kind: FieldSubstring, Str: func(it Item) []string { return one(it.Metal) }},
	"style":     {Kind: FieldSubstring, Str: func(it Item) []string { return one(it.Style) }},
	"gemstones": {Kind: FieldSubstring, Str: func(it Item) []string { return it.Gemstones }},
}

// SchemaFor returns the filter schema for a dataset name, nil if unknown.
func SchemaFor(dataset string) Schema {
	switch strings.ToLower(dataset) {
	case "diamonds":
		return DiamondSchema
	case "rings":
		return RingSchema
	case "cartier":
		return CartierSchema
	default:
		return nil
	}
}
