// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package numdiff estimates Jacobian matrices of vector maps 𝒇 : ℝⁿ → ℝᵐ by finite differences.
//
// # Reference:
//
//   - https://en.wikipedia.org/wiki/Finite_difference
//   - https://github.com/scipy/scipy/blob/main/scipy/optimize/_numdiff.py
package numdiff

import (
	"errors"
	"math"
)

var sqrtEps = math.Sqrt(math.Nextafter(1, 2) - 1)
var cubeEps = math.Pow(math.Nextafter(1, 2)-1, float64(1)/3)

type Method int

const (
	// Forward use the first order accuracy forward difference.
	Forward Method = iota
	// Central use the second order accuracy central difference.
	Central
)

func (m Method) String() string {
	switch m {
	case Forward:
		return "forward"
	case Central:
		return "central"
	default:
		return "unknown"
	}
}

// Spec describes a finite difference approximation of the m × n Jacobian of 𝒇.
//
// The step rule for coordinate i is
//   - h = AbsStep when AbsStep is provided,
//   - h = RelStep × sign(xᵢ) × |xᵢ| when RelStep is provided,
//   - h = ε × sign(xᵢ) × 𝚖𝚊𝚡(1, |xᵢ|) otherwise, with ε = √𝚎𝚙𝚜 (Forward) or ∛𝚎𝚙𝚜 (Central).
//
// A step that vanishes in floating point falls back to the automatic rule.
// Spec keeps working buffers, so one Spec must not be shared by goroutines.
type Spec struct {
	N, M int
	// Function of which to estimate the derivatives.
	// The argument x passed to this function is an n-vector.
	// The result is store in an m-vector y.
	Object func(x, y []float64)
	// Finite difference method to use.
	Method Method
	// Relative step size used to compute absolute step size.
	RelStep float64
	// Absolute step size to use. For Central method the sign of AbsStep is ignored.
	AbsStep float64

	f0, f1, f2 []float64
	step       []float64
}

func (s *Spec) check(x0, jac []float64) error {
	switch {
	case s.N <= 0 || s.M <= 0:
		return errors.New("negative dimensions")
	case s.Method != Forward && s.Method != Central:
		return errors.New("unknown method")
	case s.Object == nil:
		return errors.New("object function is required")
	case s.N != len(x0):
		return errors.New("invalid x0 dimensions")
	case s.N*s.M != len(jac):
		return errors.New("invalid jacobian dimensions")
	case s.RelStep < 0 || math.IsNaN(s.RelStep) || math.IsNaN(s.AbsStep):
		return errors.New("invalid step size")
	}
	if len(s.f0) != s.M {
		s.f0 = make([]float64, s.M)
		s.f1 = make([]float64, s.M)
		s.f2 = make([]float64, s.M)
	}
	if len(s.step) != s.N {
		s.step = make([]float64, s.N)
	}
	return nil
}

// Jacobian stores the row-major m × n approximation of ∂𝒇ᵢ/∂xⱼ into jac.
// The coordinates of x0 are perturbed in place and restored before return.
func (s *Spec) Jacobian(x0, jac []float64) error {
	if err := s.check(x0, jac); err != nil {
		return err
	}
	s.absoluteStep(x0)
	if s.Method == Central {
		s.approxCentral(x0, jac)
	} else {
		s.approxForward(x0, jac)
	}
	return nil
}

// Steps returns the absolute step sizes used by the last Jacobian call.
func (s *Spec) Steps() []float64 {
	return s.step
}

func (s *Spec) absoluteStep(x0 []float64) {
	h := s.step
	if len(h) != len(x0) {
		panic("bound check error")
	}

	eps := sqrtEps
	if s.Method == Central {
		eps = cubeEps
	}

	auto := func(v float64) float64 {
		return math.Copysign(eps, v) * math.Max(1.0, math.Abs(v))
	}

	for i, v := range x0 {
		if s.AbsStep == 0 && s.RelStep == 0 {
			h[i] = auto(v)
			continue
		}
		d := s.AbsStep
		if d == 0 {
			d = math.Copysign(s.RelStep, v) * math.Abs(v)
		}
		if (v+d)-v == 0 {
			d = auto(v)
		}
		h[i] = d
	}

	if s.Method == Central {
		for i, v := range h {
			h[i] = math.Abs(v)
		}
	}
}

func (s *Spec) approxForward(x0, jac []float64) {
	f0, fx, h, n := s.f0, s.f1, s.step, s.N
	if len(h) != len(x0) || len(f0) != len(fx) {
		panic("bound check error")
	}

	fun := s.Object
	fun(x0, f0)
	for i, d := range h {
		t := x0[i]
		x0[i] = t + d
		fun(x0, fx)
		// use the realized step to cancel representation error of t + d
		r := 1.0 / (x0[i] - t)
		for j := range f0 {
			jac[i+j*n] = (fx[j] - f0[j]) * r
		}
		x0[i] = t
	}
}

func (s *Spec) approxCentral(x0, jac []float64) {
	f1, f2, h, n := s.f1, s.f2, s.step, s.N
	if len(h) != len(x0) || len(f1) != len(f2) {
		panic("bound check error")
	}

	fun := s.Object
	for i, d := range h {
		t := x0[i]
		x0[i] = t - d
		lo := x0[i]
		fun(x0, f1)
		x0[i] = t + d
		hi := x0[i]
		fun(x0, f2)
		r := 1.0 / (hi - lo)
		for j := range f1 {
			jac[i+j*n] = (f2[j] - f1[j]) * r
		}
		x0[i] = t
	}
}
