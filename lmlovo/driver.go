// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lmlovo

import (
	"fmt"
	"math"

	"github.com/curioloop/raff/lovo"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// iterLoc is the accepted location of a run.
type iterLoc struct {
	x      []float64 // θₖ
	f      float64   // 𝑺ₚ(θₖ)
	p      int       // trusted count
	active []int     // 𝐈ₚ(θₖ), aliases the workspace index buffer
}

// iterDriver is the main driver for iterations in a LMLOVO run,
// responsible for managing the flow of the optimization.
type iterDriver struct {
	optimizer *Optimizer
	workspace *Workspace
	location  *iterLoc
}

func (c *iterCtx) clear(lambda float64) {
	c.lambda = lambda
	c.gNorm = math.Inf(1)
	c.dNorm = zero
	c.fOld = math.Inf(1)
	c.iter = 0
	c.reject = 0
	c.pseudo = 0
	c.numEval = 0
}

// mainLoop runs the state machine Initializing → Iterating → final status.
// A panic raised by the model is reported as EvalFailure at the last accepted location.
func (d *iterDriver) mainLoop() (status Status, err error) {

	loc := d.location
	spec := &d.optimizer.iterSpec
	ctx := &d.workspace.iterCtx

	ctx.clear(spec.damping.Initial)
	loc.f = math.Inf(1)

	defer func() {
		if r := recover(); r != nil {
			status, err = EvalFailure, nil
			if log := spec.logger; log.Enable(LogLast) {
				log.Log("LMLOVO p=%d halted by model panic: %v\n", loc.p, r)
			}
		}
	}()

	d.locate()
	d.printInit()

	status = iterating
	for status == iterating {
		if err = d.linearize(); err != nil {
			return
		}
		if status = d.checkConvergence(); status != iterating {
			break
		}
		status = d.searchStep()
	}

	d.printExit(status)
	return
}

// locate evaluates the residuals, the active set and the objective at the initial location.
func (d *iterDriver) locate() {
	loc := d.location
	ctx := &d.workspace.iterCtx

	ctx.res.Eval(loc.x, ctx.r)
	ctx.numEval++
	active, err := lovo.Select(ctx.r, loc.p, ctx.idx)
	if err != nil {
		panic(err) // p validated by Fit
	}
	loc.active = active
	loc.f = lovo.Value(ctx.r, active)
}

// linearize forms 𝐉ᵀ𝐉 and 𝐉ᵀ𝒓 over the active rows at the current location.
func (d *iterDriver) linearize() error {
	loc := d.location
	n := d.optimizer.n
	ctx := &d.workspace.iterCtx

	p := loc.p
	ra, jac := ctx.ra[:p], ctx.jac[:p*n]
	for k, i := range loc.active {
		ra[k] = ctx.r[i]
	}
	if err := ctx.res.Jacobian(loc.x, loc.active, jac); err != nil {
		return fmt.Errorf("jacobian: %w", err)
	}

	J := mat.NewDense(p, n, jac)
	ctx.normal.SymOuterK(one, J.T())
	g := mat.NewVecDense(n, ctx.g)
	g.MulVec(J.T(), mat.NewVecDense(p, ra))
	ctx.gNorm = floats.Norm(ctx.g, 2)
	return nil
}

// checkConvergence checks the gradient norm and the iteration limit.
func (d *iterDriver) checkConvergence() Status {
	stop := d.optimizer.stop
	ctx := &d.workspace.iterCtx
	switch {
	case ctx.gNorm <= stop.GradTolerance:
		return Converged
	case ctx.iter >= stop.MaxIterations:
		return MaxIterationsExceeded
	}
	return iterating
}

// searchStep performs the accept/reject damping loop of one iteration.
// The trial objective uses the active set recomputed at the trial location.
// Only a strict decrease is accepted, so a stalled run ends with NoImprovement.
func (d *iterDriver) searchStep() Status {
	loc := d.location
	spec := &d.optimizer.iterSpec
	ctx := &d.workspace.iterCtx

	damp, stop := spec.damping, spec.stop
	tolEps := spec.epsilon * stop.EpsAccuracyFactor
	log := spec.logger

	for {
		if ctx.reject > damp.MaxRejections || ctx.lambda > damp.Max {
			return NoImprovement
		}

		if !d.solveDamped() {
			if log.Enable(LogTrace) {
				log.Log("  damped system unsolvable at lambda= %9.2e\n", ctx.lambda)
			}
			ctx.reject++
			ctx.lambda *= damp.Up
			continue
		}

		// θₖ + Δθ
		for i, x := range loc.x {
			ctx.xt[i] = x + ctx.d[i]
		}
		ctx.res.Eval(ctx.xt, ctx.rt)
		ctx.numEval++
		active, _ := lovo.Select(ctx.rt, loc.p, ctx.idxt)
		ft := lovo.Value(ctx.rt, active)

		if ft < loc.f {
			ctx.fOld = loc.f
			ctx.dNorm = floats.Norm(ctx.d, 2)

			copy(loc.x, ctx.xt)
			ctx.r, ctx.rt = ctx.rt, ctx.r
			ctx.idx, ctx.idxt = ctx.idxt, ctx.idx
			loc.active, loc.f = active, ft

			ctx.iter++
			ctx.reject = 0
			ctx.lambda = math.Max(ctx.lambda/damp.Down, damp.Min)
			d.printIter()

			xNorm := floats.Norm(loc.x, 2)
			switch {
			case ctx.dNorm <= stop.StepTolerance*(xNorm+stop.StepTolerance):
				return ConvergedStep
			case ctx.fOld-loc.f <= tolEps*math.Max(ctx.fOld, math.Max(loc.f, one)):
				return ConvergedStep
			}
			return iterating
		}

		if log.Enable(LogTrace) {
			log.Log("  reject step: f= %12.5e  trial f= %12.5e  lambda= %9.2e\n", loc.f, ft, ctx.lambda)
		}
		ctx.reject++
		ctx.lambda *= damp.Up
	}
}

// solveDamped solves (𝐉ᵀ𝐉 + λ𝐈)Δθ = -𝐉ᵀ𝒓 into ctx.d.
// Cholesky factorization is tried first, an ill-conditioned system falls back
// to the minimum norm pseudo-solution from the SVD.
func (d *iterDriver) solveDamped() bool {
	o := d.optimizer
	ctx := &d.workspace.iterCtx
	n := o.n

	ctx.damped.CopySym(ctx.normal)
	for i := 0; i < n; i++ {
		ctx.damped.SetSym(i, i, ctx.normal.At(i, i)+ctx.lambda)
	}
	for i, g := range ctx.g {
		ctx.b[i] = -g
	}

	b := mat.NewVecDense(n, ctx.b)
	dst := mat.NewVecDense(n, ctx.d)
	if ctx.chol.Factorize(ctx.damped) {
		if err := ctx.chol.SolveVecTo(dst, b); err == nil {
			return finite(ctx.d)
		}
	}

	if !ctx.svd.Factorize(ctx.damped, mat.SVDThin) {
		return false
	}
	rank := ctx.svd.Rank(o.epsilon * float64(n))
	if rank == 0 {
		return false
	}
	ctx.svd.SolveVecTo(dst, b, rank)
	ctx.pseudo++
	return finite(ctx.d)
}

func finite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// printInit logs the dimensions and the initial objective.
func (d *iterDriver) printInit() {
	loc := d.location
	spec := &d.optimizer.iterSpec

	log := spec.logger
	if !log.Enable(LogTrace) {
		return
	}
	log.Log("RUNNING THE LMLOVO CODE\n")
	log.Log("N = %d    M = %d    P = %d\n", spec.n, spec.m, loc.p)
	log.Log("At iterate %5d    f= %12.5e\n", 0, loc.f)
	if log.Enable(LogVerbose) {
		log.vector("X0", loc.x)
	}
}

// printIter logs the accepted step.
func (d *iterDriver) printIter() {
	loc := d.location
	spec := &d.optimizer.iterSpec
	ctx := &d.workspace.iterCtx

	log := spec.logger
	switch {
	case log.Enable(LogTrace):
		log.Log("ITERATION %5d    f= %12.5e    |g|= %12.5e    |d|= %12.5e    lambda= %9.2e\n",
			ctx.iter, loc.f, ctx.gNorm, ctx.dNorm, ctx.lambda)
		if log.Enable(LogVerbose) {
			log.vector("X", loc.x)
			log.vector("G", ctx.g)
		}
	case log.Enable(LogEval):
		if ctx.iter%int(log.Level) == 0 {
			log.Log("At iterate %5d    f= %12.5e    |g|= %12.5e\n", ctx.iter, loc.f, ctx.gNorm)
		}
	}
}

// printExit logs the final status of the run.
func (d *iterDriver) printExit(status Status) {
	loc := d.location
	spec := &d.optimizer.iterSpec
	ctx := &d.workspace.iterCtx

	log := spec.logger
	if !log.Enable(LogLast) {
		return
	}
	log.Log("LMLOVO p=%d status=%s iter=%d nf=%d pseudo=%d f=%12.5e |g|=%12.5e\n",
		loc.p, status, ctx.iter, ctx.numEval, ctx.pseudo, loc.f, ctx.gNorm)
	if log.Enable(LogVerbose) {
		log.vector("X", loc.x)
	}
}
