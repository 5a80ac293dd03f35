// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package raff implements the Robust Algebraic Fitting Function: a multistart, voting based
// driver of LMLOVO for when the number of outliers is unknown.
//
// Every trusted count p in the configured range is solved from several initial guesses.
// Counts close to the true number of inliers converge to nearly the same parameters,
// wrong counts scatter, so the largest cluster of solutions identifies the estimate.
//
// # Reference:
//
//   - Castelani, Lopes, Shirabayashi, Sobral. RAFF.jl: Robust Algebraic Fitting Function in Julia. JOSS 4(39) (2019).
package raff

import (
	"context"
	"math"
	"math/rand/v2"
	"runtime"
	"sync"
	"time"

	"github.com/curioloop/raff/lmlovo"
	"github.com/curioloop/raff/model"
	"golang.org/x/sync/errgroup"
)

// Sampler writes an initial guess derived from x0 into dst.
// rng is a stream owned by a single run.
type Sampler func(rng *rand.Rand, x0, dst []float64)

// Perturb is the default sampler: x0 plus a normal deviate of scale 𝚖𝚊𝚡(1, |x0ᵢ|) per coordinate.
func Perturb(rng *rand.Rand, x0, dst []float64) {
	for i, x := range x0 {
		dst[i] = x + rng.NormFloat64()*math.Max(1, math.Abs(x))
	}
}

// Observer receives run and vote events, e.g. for metrics.
// Implementations must be safe for concurrent use.
type Observer interface {
	ObserveRun(p int, status lmlovo.Status, iter int, elapsed time.Duration)
	ObserveVote(candidates, clusters, winner int)
}

// Problem specifies a RAFF fit.
type Problem struct {
	Model    model.Model    // Model 𝒇(x, θ) and optional gradient
	Data     *model.Data    // Observations
	N        int            // The parameter dimension
	Config   Config         // Multistart and voting options
	Damping  lmlovo.Damping // Optional damping schedule of each run
	Sampler  Sampler        // Optional initial guess sampler, Perturb when nil
	Observer Observer       // Optional observer
	Logger   *lmlovo.Logger // Optional logger shared with every run
}

// Fit runs RAFF with config cfg to estimate n parameters of m on data.
func Fit(ctx context.Context, m model.Model, data *model.Data, n int, cfg Config) Output {
	p := Problem{Model: m, Data: data, N: n, Config: cfg}
	return p.Solve(ctx)
}

// Solve runs every (p, initial guess) combination and votes on the results.
// It always returns a value: the null output signals an invalid configuration,
// a cancelled context or an empty candidate pool.
func (pb *Problem) Solve(ctx context.Context) Output {
	log := pb.Logger.Normalize()
	cfg := pb.Config.WithDefaults()

	if pb.Data == nil || pb.N <= 0 {
		if log.Enable(lmlovo.LogLast) {
			log.Log("RAFF invalid problem: data and a positive dimension are required\n")
		}
		return Null()
	}
	m := pb.Data.Len()

	ps, err := cfg.Counts(m)
	if err != nil {
		if log.Enable(lmlovo.LogLast) {
			log.Log("RAFF invalid configuration: %v\n", err)
		}
		return Null()
	}

	x0 := cfg.InitGuess
	if len(x0) == 0 {
		x0 = make([]float64, pb.N)
	}
	if len(x0) != pb.N {
		if log.Enable(lmlovo.LogLast) {
			log.Log("RAFF invalid configuration: initial guess has %d components, want %d\n", len(x0), pb.N)
		}
		return Null()
	}

	prob := lmlovo.Problem{
		N:     pb.N,
		Model: pb.Model,
		Data:  pb.Data,
		Stop: lmlovo.Termination{
			GradTolerance: cfg.Epsilon,
			MaxIterations: cfg.MaxIterations,
		},
		Damping: pb.Damping,
	}
	opt, err := prob.New(pb.Logger)
	if err != nil {
		if log.Enable(lmlovo.LogLast) {
			log.Log("RAFF invalid problem: %v\n", err)
		}
		return Null()
	}

	runs, err := pb.multistart(ctx, opt, cfg, ps, x0)
	if err != nil {
		if log.Enable(lmlovo.LogLast) {
			log.Log("RAFF interrupted: %v\n", err)
		}
		return Null()
	}

	pool := candidates(runs, len(ps), cfg.MaxMS)
	if log.Enable(lmlovo.LogEval) {
		for _, c := range pool {
			log.Log("RAFF p=%d status=%s iter=%d f=%12.5e\n", c.P, c.Status, c.Iter, c.F)
		}
	}

	out, ballot := Vote(pool, VoteTolerance{Solution: cfg.VoteTolerance, F: cfg.VoteFTol})
	if pb.Observer != nil && len(pool) > 0 {
		pb.Observer.ObserveVote(len(pool), ballot.Clusters, ballot.Winner)
	}
	if log.Enable(lmlovo.LogLast) {
		log.Log("RAFF vote: %d candidates, %d clusters, winner size %d, p=%d f=%12.5e\n",
			len(pool), ballot.Clusters, ballot.Winner, out.P, out.F)
	}
	return out
}

// multistart runs the task pool. Task t solves ps[t / maxMS] from its (t mod maxMS)-th guess.
// Results are stored by task index, so no locking is needed.
func (pb *Problem) multistart(ctx context.Context, opt *lmlovo.Optimizer, cfg Config, ps []int, x0 []float64) ([]*lmlovo.Result, error) {
	sampler := pb.Sampler
	if sampler == nil {
		sampler = Perturb
	}
	workers := cfg.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	workspaces := sync.Pool{New: func() any { return opt.Init() }}
	runs := make([]*lmlovo.Result, len(ps)*cfg.MaxMS)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for t := range runs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p, k := ps[t/cfg.MaxMS], t%cfg.MaxMS

			start := x0
			if k > 0 {
				// independent stream per task keeps results reproducible under any schedule
				rng := rand.New(rand.NewPCG(cfg.Seed, uint64(t)))
				start = make([]float64, len(x0))
				sampler(rng, x0, start)
			}

			w := workspaces.Get().(*lmlovo.Workspace)
			defer workspaces.Put(w)

			begin := time.Now()
			res, err := opt.Fit(start, p, w)
			if err != nil {
				return err
			}
			runs[t] = res
			if pb.Observer != nil {
				pb.Observer.ObserveRun(p, res.Status, res.Iter, time.Since(begin))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// candidates keeps one run per trusted count: the converged run with the smallest objective,
// or the failed run with the smallest objective when no start converged.
// Ties keep the earlier start.
func candidates(runs []*lmlovo.Result, np, maxMS int) []Output {
	pool := make([]Output, 0, np)
	for i := 0; i < np; i++ {
		var best *lmlovo.Result
		for _, r := range runs[i*maxMS : (i+1)*maxMS] {
			if r == nil {
				continue
			}
			if best == nil || better(r, best) {
				best = r
			}
		}
		if best != nil {
			pool = append(pool, outputOf(best))
		}
	}
	return pool
}

func better(a, b *lmlovo.Result) bool {
	if a.OK() != b.OK() {
		return a.OK()
	}
	return objective(a.F) < objective(b.F)
}
