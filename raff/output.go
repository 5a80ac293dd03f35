// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package raff

import (
	"fmt"
	"math"
	"slices"

	"github.com/curioloop/raff/lmlovo"
)

// Output is the consensus estimate returned by RAFF.
// It has the same fields as lmlovo.Result.
type Output struct {
	Status   lmlovo.Status // Status of the chosen run, Unsolved for the null output.
	Solution []float64     // Estimated parameters θ.
	Iter     int           // Iterations of the chosen run, -1 for the null output.
	P        int           // Trusted count of the chosen run.
	F        float64       // LOVO objective of the chosen run, +Inf for the null output.
	Outliers []int         // Ascending indices of the observations treated as outliers.
}

// Null returns the output that signals no valid solution was found.
func Null() Output {
	return NewOutput(0)
}

// NewOutput returns the null output carrying the trusted count p.
func NewOutput(p int) Output {
	return Output{
		Status:   lmlovo.Unsolved,
		Solution: []float64{},
		Iter:     -1,
		P:        p,
		F:        math.Inf(1),
		Outliers: []int{},
	}
}

func outputOf(r *lmlovo.Result) Output {
	return Output{
		Status:   r.Status,
		Solution: r.X,
		Iter:     r.Iter,
		P:        r.P,
		F:        r.F,
		Outliers: r.Outliers,
	}
}

// Equal reports whether every field of o and x are equal.
// Nil and empty slices are equal.
func (o Output) Equal(x Output) bool {
	return o.Status == x.Status &&
		o.Iter == x.Iter &&
		o.P == x.P &&
		(o.F == x.F || math.IsNaN(o.F) && math.IsNaN(x.F)) &&
		slices.Equal(o.Solution, x.Solution) &&
		slices.Equal(o.Outliers, x.Outliers)
}

// OK reports whether the output comes from a converged run.
func (o Output) OK() bool { return o.Status.OK() }

// IsNull reports whether the output is a null output.
func (o Output) IsNull() bool { return o.Equal(NewOutput(o.P)) }

func (o Output) String() string {
	return fmt.Sprintf("Output(status=%s, solution=%v, iter=%d, p=%d, f=%g, outliers=%v)",
		o.Status, o.Solution, o.Iter, o.P, o.F, o.Outliers)
}
