// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package raff

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// VoteTolerance controls how candidate solutions are grouped and ranked.
type VoteTolerance struct {
	// Two solutions are close when ‖θₐ - θ_b‖∞ ≤ Solution × 𝚖𝚊𝚡(1, ‖θₐ‖∞, ‖θ_b‖∞).
	Solution float64
	// Two objectives are tied when |fₐ - f_b| ≤ F × 𝚖𝚊𝚡(1, 𝚖𝚒𝚗(fₐ, f_b)).
	F float64
}

// Ballot summarizes a vote.
type Ballot struct {
	Clusters int // number of clusters
	Winner   int // members of the winning cluster
}

// Vote picks the consensus output among candidates.
//
// Candidates are grouped into the connected components of the closeness graph.
// The largest cluster wins, ties go to the cluster holding the smallest objective.
// Inside the winning cluster the smallest objective is chosen, where tied objectives
// prefer the larger trusted count, i.e. the same model explaining more observations.
func Vote(candidates []Output, tol VoteTolerance) (Output, Ballot) {
	n := len(candidates)
	if n == 0 {
		return Null(), Ballot{}
	}

	// union-find over the closeness graph
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	find := func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if near(candidates[i].Solution, candidates[j].Solution, tol.Solution) {
				if a, b := find(i), find(j); a != b {
					// keep the smaller index as root so cluster order follows input order
					parent[max(a, b)] = min(a, b)
				}
			}
		}
	}

	clusters := make(map[int][]int)
	var roots []int
	for i := range candidates {
		r := find(i)
		if _, ok := clusters[r]; !ok {
			roots = append(roots, r)
		}
		clusters[r] = append(clusters[r], i)
	}

	win := -1
	for _, r := range roots {
		if win < 0 {
			win = r
			continue
		}
		size, best := len(clusters[r]), len(clusters[win])
		switch {
		case size > best:
			win = r
		case size == best && minF(candidates, clusters[r]) < minF(candidates, clusters[win]):
			win = r
		}
	}

	members := clusters[win]
	fMin := minF(candidates, members)
	pick := -1
	for _, i := range members {
		c := candidates[i]
		if !tied(objective(c.F), fMin, tol.F) {
			continue
		}
		if pick < 0 || c.P > candidates[pick].P {
			pick = i
		}
	}

	return candidates[pick], Ballot{Clusters: len(roots), Winner: len(members)}
}

func near(a, b []float64, tol float64) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return true
	}
	dist := floats.Distance(a, b, math.Inf(1))
	scale := math.Max(one, math.Max(floats.Norm(a, math.Inf(1)), floats.Norm(b, math.Inf(1))))
	return dist <= tol*scale
}

// objective maps NaN to +Inf so failed runs rank last.
func objective(f float64) float64 {
	if math.IsNaN(f) {
		return math.Inf(1)
	}
	return f
}

func minF(candidates []Output, members []int) float64 {
	f := math.Inf(1)
	for _, i := range members {
		f = math.Min(f, objective(candidates[i].F))
	}
	return f
}

func tied(f, fMin, tol float64) bool {
	if math.IsInf(fMin, 1) {
		return math.IsInf(f, 1)
	}
	return f-fMin <= tol*math.Max(one, fMin)
}

const one = 1.0
