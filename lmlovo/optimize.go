// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package lmlovo solves the Lowest Order-Value Optimization least-squares problem
//
//	minimize 𝑺ₚ(θ) = ∑ 𝒓ᵢ(θ)²   for i ∈ 𝐈ₚ(θ)
//
// with a Levenberg-Marquardt iteration, where 𝐈ₚ(θ) is the set of the p smallest squared residuals.
//
// 𝑺ₚ is only piecewise smooth: the active set switches as θ moves.
// Each trial step (𝐉ᵀ𝐉 + λ𝐈)Δθ = -𝐉ᵀ𝒓 is built on 𝐈ₚ(θₖ) but judged by 𝑺ₚ(θₖ + Δθ)
// with the active set recomputed at the trial point, so accepted steps decrease the true objective.
//
// # Reference:
//
//   - Castelani, Lopes, Shirabayashi, Sobral. RAFF.jl: Robust Algebraic Fitting Function in Julia. JOSS 4(39) (2019).
//   - Andreani, Martínez, Martínez, Yano. Low order-value optimization and applications. J Glob Optim 43 (2009).
package lmlovo

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/curioloop/raff/lovo"
	"github.com/curioloop/raff/model"
	"gonum.org/v1/gonum/mat"
)

// Termination specifies the stopping criteria for the solver.
// Zero fields take the documented defaults.
type Termination struct {
	// The iteration will stop when ‖𝐉ᵀ𝒓‖₂ ≤ 𝚎𝚙𝚜𝚒𝚕𝚘𝚗 over the active set (default 1e-6).
	GradTolerance float64
	// The iteration stop when the number of accepted steps reaches limit (default 400).
	MaxIterations int
	// The iteration will stop when an accepted step satisfied ‖Δθ‖₂ ≤ 𝚡𝚝𝚘𝚕 × (‖θ‖₂ + 𝚡𝚝𝚘𝚕) (default 1e-12).
	StepTolerance float64
	// The iteration will stop when the objective change satisfied:
	//   |fₖ - fₖ₊₁|/𝚖𝚊𝚡(fₖ,fₖ₊₁,1) ≤ 𝚏𝚊𝚌𝚝𝚛 × 𝚎𝚙𝚜𝚖𝚌𝚑   (default 10)
	EpsAccuracyFactor float64
}

// Damping controls the Levenberg-Marquardt parameter λ.
// Zero fields take the documented defaults.
type Damping struct {
	Initial float64 // λ₀ (default 1)
	Up      float64 // λ ← λ × Up after a rejected step (default 2)
	Down    float64 // λ ← λ / Down after an accepted step (default 2)
	Min     float64 // lower bound of λ (default 1e-16)
	Max     float64 // the run stops with NoImprovement once λ exceeds Max (default 1e16)
	// The run stops with NoImprovement after more consecutive rejections than limit (default 60).
	MaxRejections int
}

// Problem specifies one LMLOVO problem family, p is chosen per run.
type Problem struct {
	N       int         // The parameter dimension
	Model   model.Model // Model 𝒇(x, θ) and optional gradient
	Data    *model.Data // Observations
	Stop    Termination // Stop condition
	Damping Damping     // Damping schedule
}

// New creates a new LMLOVO optimizer for given problem.
func (p *Problem) New(logger *Logger) (optimizer *Optimizer, err error) {

	stop, damp := p.Stop, p.Damping

	if stop.GradTolerance == zero {
		stop.GradTolerance = 1e-6
	}
	if stop.MaxIterations == 0 {
		stop.MaxIterations = 400
	}
	if stop.StepTolerance == zero {
		stop.StepTolerance = 1e-12
	}
	if stop.EpsAccuracyFactor == zero {
		stop.EpsAccuracyFactor = 10
	}
	if damp.Initial == zero {
		damp.Initial = one
	}
	if damp.Up == zero {
		damp.Up = 2
	}
	if damp.Down == zero {
		damp.Down = 2
	}
	if damp.Min == zero {
		damp.Min = 1e-16
	}
	if damp.Max == zero {
		damp.Max = 1e16
	}
	if damp.MaxRejections == 0 {
		damp.MaxRejections = 60
	}

	switch {
	case p.N <= 0:
		err = errors.New("problem dimension must greater than 0")
	case p.Data == nil:
		err = errors.New("data is required")
	case stop.GradTolerance < zero || math.IsNaN(stop.GradTolerance):
		err = errors.New("gradient tolerance must not less than 0")
	case stop.MaxIterations < 0:
		err = errors.New("max iteration must not less than 0")
	case stop.StepTolerance < zero || math.IsNaN(stop.StepTolerance):
		err = errors.New("step tolerance must not less than 0")
	case stop.EpsAccuracyFactor < zero || math.IsNaN(stop.EpsAccuracyFactor):
		err = errors.New("machine epsilon factor must not less than 0")
	case damp.Up <= one || damp.Down <= one:
		err = errors.New("damping factors must greater than 1")
	case damp.Min <= zero || damp.Max < damp.Min:
		err = errors.New("damping range error")
	case damp.Initial < damp.Min || damp.Initial > damp.Max:
		err = errors.New("initial damping out of range")
	case damp.MaxRejections < 0:
		err = errors.New("rejection limit must not less than 0")
	}
	if err == nil {
		// validates the model against the problem dimension
		_, err = model.NewResidual(p.Model, p.Data, p.N)
	}
	if err != nil {
		return
	}

	optimizer = &Optimizer{
		iterSpec{
			n:       p.N,
			m:       p.Data.Len(),
			epsilon: math.Nextafter(1, 2) - 1,
			model:   p.Model,
			data:    p.Data,
			stop:    stop,
			damping: damp,
			logger:  logger.Normalize(),
		},
	}
	return
}

type iterSpec struct {
	n, m    int
	epsilon float64
	model   model.Model
	data    *model.Data
	stop    Termination
	damping Damping
	logger  Logger
}

// Optimizer implemented using the LMLOVO algorithm.
type Optimizer struct {
	iterSpec
}

// Dim returns the parameter dimension n.
func (o *Optimizer) Dim() int { return o.n }

// Len returns the number of observations m.
func (o *Optimizer) Len() int { return o.m }

// Workspace contains the state and buffers of one run.
// Given problem dimension n and m observations,
// total work space is approximately float64[m×n + 3×m + 2×n² + 6×n] and int[2×m].
type Workspace struct {
	n, m int
	iterCtx
}

type iterCtx struct {
	res *model.Residual
	// residuals at the current and the trial location
	r, rt []float64 // m
	// index buffers owned by lovo.Select for the current and the trial location
	idx, idxt []int // m
	// active residuals and Jacobian rows
	ra  []float64 // p
	jac []float64 // p × n
	// gradient 𝐉ᵀ𝒓, right hand side -𝐉ᵀ𝒓, trial step Δθ and trial location
	g, b, d, xt []float64 // n
	// normal matrix 𝐉ᵀ𝐉 and its damped copy
	normal, damped *mat.SymDense // n × n
	chol           mat.Cholesky
	svd            mat.SVD

	lambda  float64
	gNorm   float64
	dNorm   float64
	fOld    float64
	iter    int
	reject  int
	pseudo  int
	numEval int
}

// Init allocate the workspace for the optimizer.
// To avoid race conditions, separate workspaces need to be created for each goroutine.
// But multiple workspaces could share one optimizer.
func (o *Optimizer) Init() *Workspace {
	res, err := model.NewResidual(o.model, o.data, o.n)
	if err != nil {
		panic(err) // validated by New
	}
	n, m := o.n, o.m
	w := &Workspace{n: n, m: m}
	w.iterCtx = iterCtx{
		res:    res,
		r:      make([]float64, m),
		rt:     make([]float64, m),
		idx:    make([]int, m),
		idxt:   make([]int, m),
		ra:     make([]float64, m),
		jac:    make([]float64, m*n),
		g:      make([]float64, n),
		b:      make([]float64, n),
		d:      make([]float64, n),
		xt:     make([]float64, n),
		normal: mat.NewSymDense(n, nil),
		damped: mat.NewSymDense(n, nil),
	}
	return w
}

// Result contains the final result of one LMLOVO run.
type Result struct {
	Status   Status    // Final status after optimization.
	X        []float64 // Final solution θ.
	Iter     int       // Number of accepted iterations.
	P        int       // Trusted count used.
	F        float64   // Final objective 𝑺ₚ(θ).
	Outliers []int     // Ascending indices outside the final active set.
}

// OK reports whether the run was converged.
func (r *Result) OK() bool { return r.Status.OK() }

// Fit runs LMLOVO with trusted count p from the initial guess x0 using workspace w.
// It returns ErrDimension or ErrInvalidTrusted when the call violates its preconditions.
func (o *Optimizer) Fit(x0 []float64, p int, w *Workspace) (*Result, error) {

	if len(x0) != o.n {
		return nil, fmt.Errorf("%w: initial guess has %d components, want %d", ErrDimension, len(x0), o.n)
	}
	if p < 0 || p > o.m {
		return nil, fmt.Errorf("%w: p = %d, m = %d", ErrInvalidTrusted, p, o.m)
	}
	if w.n != o.n || w.m != o.m {
		panic("workspace dimension not match spec")
	}

	if p == 0 {
		return &Result{
			Status:   Converged,
			X:        slices.Clone(x0),
			P:        0,
			Outliers: lovo.Complement(o.m, nil),
		}, nil
	}

	loc := iterLoc{x: slices.Clone(x0), p: p}
	driver := iterDriver{
		optimizer: o,
		workspace: w,
		location:  &loc,
	}

	status, err := driver.mainLoop()
	if err != nil {
		return nil, err
	}
	return &Result{
		Status:   status,
		X:        loc.x,
		Iter:     w.iter,
		P:        p,
		F:        loc.f,
		Outliers: lovo.Complement(o.m, loc.active),
	}, nil
}

// Solve runs LMLOVO with default settings: fit n parameters of m to data
// trusting the p best explained observations, starting from x0.
func Solve(m model.Model, x0 []float64, data *model.Data, n, p int) (*Result, error) {
	prob := Problem{N: n, Model: m, Data: data}
	o, err := prob.New(nil)
	if err != nil {
		return nil, err
	}
	return o.Fit(x0, p, o.Init())
}
