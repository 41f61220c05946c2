// Facet - Jewelry Retrieval and Personalized Combination Recommendations
// Copyright 2026 Prasham Shah (prashamshah115)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prashamshah115/jewelry-recommender

package recommend

import (
	"regexp"
	"strings"

	"github.com/prashamshah115/jewelry-recommender/internal/pool"
)

// Hints are the structured attributes mined from a free-text query. They
// drive attribute scoring and pair filtering; explicit shapes additionally
// hard-filter diamond retrieval.
type Hints struct {
	Metals []string
	Shapes []string
	Colors []string
}

// Empty reports whether no hint was extracted.
func (h Hints) Empty() bool {
	return len(h.Metals) == 0 && len(h.Shapes) == 0 && len(h.Colors) == 0
}

// Multi-word phrases come before their suffixes so "white gold" does not
// also register as "gold".
var metalLexicon = []string{
	"white gold",
	"yellow gold",
	"rose gold",
	"platinum",
	"silver",
	"gold",
}

var shapeLexicon = []string{
	"round",
	"princess",
	"cushion",
	"oval",
	"emerald",
	"pear",
	"marquise",
	"asscher",
	"radiant",
	"heart",
}

// colorRe matches grades D through L next to the word "color"/"colour",
// in either order.
var colorRe = regexp.MustCompile(`\b([d-l])[\s-]?colou?r\b|\bcolou?r[\s-]?([d-l])\b`)

// ExtractHints scans a query for known metals, diamond shapes and color
// grades. Matching is case-insensitive on word boundaries; longer phrases
// win over their substrings.
func ExtractHints(query string) Hints {
	q := " " + strings.ToLower(query) + " "

	var h Hints
	h.Metals, q = scanLexicon(q, metalLexicon)
	h.Shapes, _ = scanLexicon(q, shapeLexicon)

	for _, m := range colorRe.FindAllStringSubmatch(q, -1) {
		g := m[1]
		if g == "" {
			g = m[2]
		}
		h.Colors = appendUnique(h.Colors, strings.ToUpper(g))
	}
	return h
}

// scanLexicon finds lexicon phrases on word boundaries, blanking each match
// so shorter phrases cannot re-match inside a longer one.
func scanLexicon(q string, lexicon []string) ([]string, string) {
	var found []string
	for _, phrase := range lexicon {
		needle := boundaryRe(phrase)
		if needle.MatchString(q) {
			found = appendUnique(found, phrase)
			q = needle.ReplaceAllString(q, " ")
		}
	}
	return found, q
}

// boundaryCache is populated once at package init and read-only afterwards.
var boundaryCache = func() map[string]*regexp.Regexp {
	cache := make(map[string]*regexp.Regexp)
	for _, lexicon := range [][]string{metalLexicon, shapeLexicon} {
		for _, phrase := range lexicon {
			cache[phrase] = regexp.MustCompile(`\b` + regexp.QuoteMeta(phrase) + `\b`)
		}
	}
	return cache
}()

func boundaryRe(phrase string) *regexp.Regexp {
	return boundaryCache[phrase]
}

// inferWindow is how many top candidates vote when a hint category is
// absent from the query.
const inferWindow = 5

// RefineHints fills hint categories the query left empty by majority vote
// over the top retrieved candidates: metal from rings, shape and color
// from diamonds. Inferred hints only boost attribute scores; they never
// filter.
func RefineHints(h Hints, diamonds, rings []pool.Result) Hints {
	if len(h.Metals) == 0 {
		if m := majorityVote(rings, func(it pool.Item) string { return it.Metal }); m != "" {
			h.Metals = []string{m}
		}
	}
	if len(h.Shapes) == 0 {
		if s := majorityVote(diamonds, func(it pool.Item) string { return it.Shape }); s != "" {
			h.Shapes = []string{s}
		}
	}
	if len(h.Colors) == 0 {
		if c := majorityVote(diamonds, func(it pool.Item) string { return it.Color }); c != "" {
			h.Colors = []string{strings.ToUpper(c)}
		}
	}
	return h
}

func majorityVote(results []pool.Result, field func(pool.Item) string) string {
	n := len(results)
	if n > inferWindow {
		n = inferWindow
	}
	counts := make(map[string]int, n)
	best, bestN := "", 0
	for _, res := range results[:n] {
		v := strings.ToLower(strings.TrimSpace(field(res.Item)))
		if v == "" {
			continue
		}
		counts[v]++
		if counts[v] > bestN {
			best, bestN = v, counts[v]
		}
	}
	return best
}

func appendUnique(xs []string, x string) []string {
	for _, v := range xs {
		if v == x {
			return xs
		}
	}
	return append(xs, x)
}
