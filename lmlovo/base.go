// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lmlovo

import "errors"

const (
	zero = 0.0
	one  = 1.0
)

var (
	// ErrInvalidTrusted reports a trusted count p outside [0, m].
	ErrInvalidTrusted = errors.New("trusted count out of range")
	// ErrDimension reports an initial guess whose length differs from the problem dimension.
	ErrDimension = errors.New("dimension mismatch")
)

// Status is the final state of one LMLOVO run.
type Status int

const (
	// Unsolved is the zero value, no run produced it.
	Unsolved Status = iota
	// Converged the gradient norm ‖𝐉ᵀ𝒓‖₂ over the active set is below tolerance.
	Converged
	// ConvergedStep the accepted step or the relative objective reduction became negligible.
	ConvergedStep
	// MaxIterationsExceeded the iteration cap was reached.
	MaxIterationsExceeded
	// NoImprovement the damping budget was exhausted without an accepted decrease.
	NoImprovement
	// EvalFailure the model or its gradient panicked.
	EvalFailure
)

// OK reports whether the status is a successful termination.
func (s Status) OK() bool {
	return s == Converged || s == ConvergedStep
}

func (s Status) String() string {
	switch s {
	case Unsolved:
		return "unsolved"
	case Converged:
		return "converged"
	case ConvergedStep:
		return "converged_step"
	case MaxIterationsExceeded:
		return "max_iterations"
	case NoImprovement:
		return "no_improvement"
	case EvalFailure:
		return "eval_failure"
	default:
		return "unknown"
	}
}

// iterating marks the driver has not reached a final state yet.
const iterating Status = -1
