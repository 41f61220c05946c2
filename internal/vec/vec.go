// Facet - Jewelry Retrieval and Personalized Combination Recommendations
// Copyright 2026 Prasham Shah (prashamshah115)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prashamshah115/jewelry-recommender

// Package vec provides the small set of dense float32 vector operations the
// retrieval and scoring layers share.
package vec

import "math"

// Dot returns the inner product of a and b. Panics on length mismatch.
func Dot(a, b []float32) float32 {
	if len(a) != len(b) {
		panic("vec: dimension mismatch")
	}
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Norm returns the Euclidean norm of v.
func Norm(v []float32) float32 {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	return float32(math.Sqrt(float64(sum)))
}

// Normalize scales v to unit length in place and returns it.
// A zero vector is returned unchanged.
func Normalize(v []float32) []float32 {
	n := Norm(v)
	if n == 0 {
		return v
	}
	inv := 1 / n
	for i := range v {
		v[i] *= inv
	}
	return v
}

// Cosine returns the cosine similarity of a and b, 0 if either is zero.
func Cosine(a, b []float32) float32 {
	na, nb := Norm(a), Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return Dot(a, b) / (na * nb)
}

// Mean returns the element-wise mean of the given vectors. All vectors must
// share the same dimension. Returns nil for an empty input.
func Mean(vs [][]float32) []float32 {
	if len(vs) == 0 {
		return nil
	}
	out := make([]float32, len(vs[0]))
	for _, v := range vs {
		for i, x := range v {
			out[i] += x
		}
	}
	inv := 1 / float32(len(vs))
	for i := range out {
		out[i] *= inv
	}
	return out
}

// Blend returns wa*a + wb*b as a new vector. Panics on length mismatch.
func Blend(a []float32, wa float32, b []float32, wb float32) []float32 {
	if len(a) != len(b) {
		panic("vec: dimension mismatch")
	}
	out := make([]float32, len(a))
	for i := range a {
		out[i] = wa*a[i] + wb*b[i]
	}
	return out
}
