// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sample builds deterministic curve fitting problems with injected outliers for tests.
package sample

import (
	"math"
	"math/rand/v2"

	"github.com/curioloop/raff/model"
)

// Problem is a data set generated from a known parameter vector.
type Problem struct {
	Model    model.Model
	Theta    []float64 // parameters the inliers were generated with
	Data     *model.Data
	Outliers []int // indices of the injected outliers
}

// Linear is 𝒇(x, θ) = θ₁x + θ₂.
func Linear() model.Model {
	return model.Model{
		F: func(x, t []float64) float64 { return t[0]*x[0] + t[1] },
		G: func(g, x, t []float64) {
			g[0] = x[0]
			g[1] = 1
		},
	}
}

// Exponential is 𝒇(x, θ) = θ₁ + θ₂ exp(-θ₃x).
func Exponential() model.Model {
	return model.Model{
		F: func(x, t []float64) float64 { return t[0] + t[1]*math.Exp(-t[2]*x[0]) },
		G: func(g, x, t []float64) {
			e := math.Exp(-t[2] * x[0])
			g[0] = 1
			g[1] = e
			g[2] = -t[1] * x[0] * e
		},
	}
}

// Plane is 𝒇(x, θ) = θ₁x₁ + θ₂x₂ + θ₃ over a two dimensional domain.
func Plane() model.Model {
	return model.Model{
		F: func(x, t []float64) float64 { return t[0]*x[0] + t[1]*x[1] + t[2] },
	}
}

// Grid returns m equally spaced one dimensional points from lo to hi.
func Grid(lo, hi float64, m int) [][]float64 {
	xs := make([][]float64, m)
	for i := range xs {
		xs[i] = []float64{lo + (hi-lo)*float64(i)/float64(m-1)}
	}
	return xs
}

// Mesh returns the k × k points of a regular grid over [lo, hi]², x₂ varying fastest.
func Mesh(lo, hi float64, k int) [][]float64 {
	xs := make([][]float64, 0, k*k)
	for _, u := range Grid(lo, hi, k) {
		for _, v := range Grid(lo, hi, k) {
			xs = append(xs, []float64{u[0], v[0]})
		}
	}
	return xs
}

// Generate evaluates 𝒇(xᵢ, θ) exactly and adds shift[k] to the value of outliers[k].
func Generate(m model.Model, theta []float64, xs [][]float64, outliers []int, shift []float64) *Problem {
	rows := make([][]float64, len(xs))
	for i, x := range xs {
		row := append(append(make([]float64, 0, len(x)+1), x...), m.F(x, theta))
		rows[i] = row
	}
	for k, i := range outliers {
		row := rows[i]
		row[len(row)-1] += shift[k]
	}
	d, err := model.NewData(rows)
	if err != nil {
		panic(err)
	}
	return &Problem{Model: m, Theta: theta, Data: d, Outliers: outliers}
}

// Noisy is like Generate but perturbs every value by uniform noise in [-noise, noise]
// drawn from a fixed seed.
func Noisy(m model.Model, theta []float64, xs [][]float64, outliers []int, shift []float64, noise float64, seed uint64) *Problem {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	p := Generate(m, theta, xs, outliers, shift)
	rows := make([][]float64, p.Data.Len())
	t := p.Data.Table()
	for i := range rows {
		rows[i] = t.RawRowView(i)
		rows[i][len(rows[i])-1] += noise * (2*rng.Float64() - 1)
	}
	d, err := model.NewData(rows)
	if err != nil {
		panic(err)
	}
	p.Data = d
	return p
}

// Line is the 21 point problem 𝒇(x, θ) = 2x - 0.5 on [-1, 1] with outliers at 3, 10 and 17.
func Line() *Problem {
	return Generate(Linear(), []float64{2.0, -0.5}, Grid(-1, 1, 21), []int{3, 10, 17}, []float64{8, -7, 9})
}
