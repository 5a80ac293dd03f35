// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package lovo selects the active set of the Lowest Order-Value Optimization problem.
//
// Given residuals 𝒓 ∈ ℝᵐ and a trusted count p, the LOVO objective is
//
//	𝑺ₚ(θ) = ∑ 𝒓ᵢ(θ)²   for i ∈ 𝐈ₚ(θ)
//
// where 𝐈ₚ(θ) holds the indices of the p smallest squared residuals.
// Ordering uses the composite key (𝒓ᵢ², i), which is a strict total order,
// so equal residuals are broken by original index and the selection is reproducible.
//
// # Reference:
//
//   - Andreani, Martínez, Martínez, Yano. Low order-value optimization and applications. J Glob Optim 43 (2009).
package lovo

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// ErrInvalidCount reports a trusted count outside [0, m].
var ErrInvalidCount = errors.New("trusted count out of range")

// Select returns the indices of the p smallest 𝒓ᵢ² in ascending (𝒓ᵢ², i) order.
// NaN residuals rank as +Inf.
//
// idx is an optional buffer of length m reused to avoid allocation,
// the result aliases it when provided.
func Select(r []float64, p int, idx []int) ([]int, error) {
	m := len(r)
	if p < 0 || p > m {
		return nil, fmt.Errorf("%w: p = %d, m = %d", ErrInvalidCount, p, m)
	}
	if len(idx) != m {
		idx = make([]int, m)
	}
	for i := range idx {
		idx[i] = i
	}
	if p == 0 {
		return idx[:0], nil
	}

	less := func(a, b int) bool {
		ka, kb := square(r[a]), square(r[b])
		if ka != kb {
			return ka < kb
		}
		return a < b
	}

	if p < m {
		nthElement(idx, p-1, less)
	}
	active := idx[:p]
	slices.SortFunc(active, func(a, b int) int {
		switch {
		case a == b:
			return 0
		case less(a, b):
			return -1
		default:
			return 1
		}
	})
	return active, nil
}

func square(v float64) float64 {
	s := v * v
	if math.IsNaN(s) {
		return math.Inf(1)
	}
	return s
}

// nthElement partially orders idx so that idx[k] holds the element of rank k,
// every element before it ranks lower and every element after it ranks higher.
func nthElement(idx []int, k int, less func(a, b int) bool) {
	lo, hi := 0, len(idx)-1
	for lo < hi {
		// median of three moved to hi as pivot
		mid := lo + (hi-lo)/2
		if less(idx[mid], idx[lo]) {
			idx[mid], idx[lo] = idx[lo], idx[mid]
		}
		if less(idx[hi], idx[lo]) {
			idx[hi], idx[lo] = idx[lo], idx[hi]
		}
		if less(idx[hi], idx[mid]) {
			idx[hi], idx[mid] = idx[mid], idx[hi]
		}
		idx[mid], idx[hi] = idx[hi], idx[mid]
		pivot := idx[hi]

		store := lo
		for i := lo; i < hi; i++ {
			if less(idx[i], pivot) {
				idx[i], idx[store] = idx[store], idx[i]
				store++
			}
		}
		idx[store], idx[hi] = idx[hi], idx[store]

		switch {
		case k == store:
			return
		case k < store:
			hi = store - 1
		default:
			lo = store + 1
		}
	}
}

// Complement returns the indices in [0, m) that are not in active, in ascending order.
func Complement(m int, active []int) []int {
	in := make([]bool, m)
	for _, i := range active {
		in[i] = true
	}
	out := make([]int, 0, m-len(active))
	for i, ok := range in {
		if !ok {
			out = append(out, i)
		}
	}
	return out
}

// Value returns the LOVO objective ∑ 𝒓ᵢ² over the active set.
func Value(r []float64, active []int) (f float64) {
	for _, i := range active {
		f += r[i] * r[i]
	}
	return
}
