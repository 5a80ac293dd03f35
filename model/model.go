// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package model evaluates the residuals 𝒓ᵢ(θ) = 𝒇(xᵢ, θ) - yᵢ of a parametric model
// over a fixed observation set, together with their Jacobian rows ∇θ𝒓ᵢ.
package model

import (
	"errors"
	"fmt"
	"math"

	"github.com/curioloop/raff/numdiff"
)

// Func evaluates the model 𝒇(x, θ) at domain point x.
type Func func(x, theta []float64) float64

// Grad stores ∇θ𝒇(x, θ) into g.
type Grad func(g, x, theta []float64)

// Diff selects the finite difference scheme used when Model.G is absent.
// The zero value is forward differences with the automatic step h = √𝚎𝚙𝚜 × 𝚖𝚊𝚡(1, |θⱼ|).
// LOVO objectives are sensitive to noisy derivatives near active set switches,
// so callers who tune RelStep or AbsStep should report them with their results.
type Diff struct {
	Method  numdiff.Method
	RelStep float64
	AbsStep float64
}

// Model is the capability pair (𝒇, ∇θ𝒇). G may be nil.
type Model struct {
	F    Func
	G    Grad
	Diff Diff
}

// Validate checks the model is usable.
func (m Model) Validate() error {
	switch {
	case m.F == nil:
		return errors.New("model function is required")
	case m.Diff.Method != numdiff.Forward && m.Diff.Method != numdiff.Central:
		return errors.New("unknown finite difference method")
	case m.Diff.RelStep < 0 || math.IsNaN(m.Diff.RelStep):
		return errors.New("relative step must not less than 0")
	case math.IsNaN(m.Diff.AbsStep) || math.IsInf(m.Diff.AbsStep, 0):
		return errors.New("absolute step must be finite")
	}
	return nil
}

// Residual evaluates residuals and Jacobian rows of a model over a data set.
// It owns scratch buffers, so each goroutine needs its own Residual.
type Residual struct {
	model Model
	data  *Data
	n     int

	diff  numdiff.Spec
	rows  []int
	theta []float64
}

// NewResidual creates a residual evaluator for a parameter vector of dimension n.
func NewResidual(m Model, d *Data, n int) (*Residual, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	switch {
	case d == nil:
		return nil, errors.New("data is required")
	case n <= 0:
		return nil, fmt.Errorf("parameter dimension must greater than 0, got %d", n)
	}
	r := &Residual{
		model: m,
		data:  d,
		n:     n,
		theta: make([]float64, n),
	}
	r.diff = numdiff.Spec{
		N:       n,
		Method:  m.Diff.Method,
		RelStep: m.Diff.RelStep,
		AbsStep: m.Diff.AbsStep,
		Object:  r.subset,
	}
	return r, nil
}

// Eval stores 𝒓ᵢ(θ) for every observation into res.
func (r *Residual) Eval(theta, res []float64) {
	d := r.data
	if len(res) != d.Len() || len(theta) != r.n {
		panic("bound check error")
	}
	f := r.model.F
	for i := range res {
		res[i] = f(d.Point(i), theta) - d.Value(i)
	}
}

// subset evaluates the residuals of r.rows only, in that order.
func (r *Residual) subset(theta, res []float64) {
	d, f := r.data, r.model.F
	for k, i := range r.rows {
		res[k] = f(d.Point(i), theta) - d.Value(i)
	}
}

// Jacobian stores the row-major len(rows) × n matrix [∇θ𝒓ᵢ(θ)]ᵢ∈rows into jac.
func (r *Residual) Jacobian(theta []float64, rows []int, jac []float64) error {
	n, d := r.n, r.data
	if len(theta) != n || len(jac) != len(rows)*n {
		panic("bound check error")
	}
	if len(rows) == 0 {
		return nil
	}

	if g := r.model.G; g != nil {
		for k, i := range rows {
			g(jac[k*n:(k+1)*n], d.Point(i), theta)
		}
		return nil
	}

	copy(r.theta, theta)
	r.rows = rows
	r.diff.M = len(rows)
	err := r.diff.Jacobian(r.theta, jac)
	r.rows = nil
	return err
}
