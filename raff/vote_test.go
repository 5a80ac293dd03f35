// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package raff

import (
	"math"
	"testing"

	"github.com/curioloop/raff/lmlovo"
	"github.com/stretchr/testify/assert"
)

func candidate(p int, f float64, x ...float64) Output {
	return Output{Status: lmlovo.Converged, Solution: x, Iter: 1, P: p, F: f, Outliers: []int{}}
}

func TestVoteEmpty(t *testing.T) {
	out, ballot := Vote(nil, VoteTolerance{Solution: 1e-3, F: 1e-8})
	assert.True(t, out.Equal(Null()))
	assert.Equal(t, Ballot{}, ballot)
}

func TestVoteLargestCluster(t *testing.T) {
	pool := []Output{
		candidate(10, 0.5, 7, 7),
		candidate(11, 1e-12, 2, -0.5),
		candidate(12, 1e-14, 2.0000001, -0.5),
		candidate(13, 2e-13, 1.9999999, -0.5000001),
		candidate(14, 0.1, 1, 3),
	}
	out, ballot := Vote(pool, VoteTolerance{Solution: 1e-3, F: 1e-8})
	assert.Equal(t, Ballot{Clusters: 3, Winner: 3}, ballot)
	// equal objectives within tolerance prefer the larger trusted count
	assert.Equal(t, 13, out.P)
}

func TestVoteSmallestObjectiveInCluster(t *testing.T) {
	pool := []Output{
		candidate(10, 1e-3, 1, 1),
		candidate(11, 2e-3, 1.0001, 1),
		candidate(12, 5e-3, 1.0002, 1),
	}
	out, ballot := Vote(pool, VoteTolerance{Solution: 1e-3, F: 1e-8})
	assert.Equal(t, Ballot{Clusters: 1, Winner: 3}, ballot)
	assert.Equal(t, 10, out.P)
}

func TestVoteClusterTie(t *testing.T) {
	pool := []Output{
		candidate(10, 0.3, 5, 5),
		candidate(11, 0.3, 5, 5),
		candidate(12, 0.1, -5, 1),
		candidate(13, 0.2, -5, 1),
	}
	out, ballot := Vote(pool, VoteTolerance{Solution: 1e-3, F: 1e-8})
	assert.Equal(t, Ballot{Clusters: 2, Winner: 2}, ballot)
	assert.Equal(t, 12, out.P)
}

func TestVoteChaining(t *testing.T) {
	// a and c are far apart but both close to b
	pool := []Output{
		candidate(10, 1, 1.0),
		candidate(11, 1, 1.0009),
		candidate(12, 1, 1.0018),
		candidate(13, 0, 9),
	}
	_, ballot := Vote(pool, VoteTolerance{Solution: 1e-3, F: 1e-8})
	assert.Equal(t, Ballot{Clusters: 2, Winner: 3}, ballot)
}

func TestVoteFailedRuns(t *testing.T) {
	failed := candidate(10, math.NaN(), 1, 1)
	failed.Status = lmlovo.EvalFailure
	pool := []Output{failed, candidate(11, 0.25, 1, 1)}

	out, ballot := Vote(pool, VoteTolerance{Solution: 1e-3, F: 1e-8})
	assert.Equal(t, Ballot{Clusters: 1, Winner: 2}, ballot)
	assert.Equal(t, 11, out.P)
	assert.True(t, out.OK())

	out, _ = Vote([]Output{failed}, VoteTolerance{Solution: 1e-3, F: 1e-8})
	assert.Equal(t, lmlovo.EvalFailure, out.Status)
}

func TestNear(t *testing.T) {
	assert.True(t, near(nil, nil, 0))
	assert.False(t, near([]float64{1}, []float64{1, 2}, 1))
	// absolute below unit scale
	assert.True(t, near([]float64{0.1}, []float64{0.1009}, 1e-3))
	assert.False(t, near([]float64{0.1}, []float64{0.1011}, 1e-3))
	// relative above unit scale
	assert.True(t, near([]float64{1000, 0}, []float64{1000.9, 0}, 1e-3))
	assert.False(t, near([]float64{1000, 0}, []float64{1000, 1.1}, 1e-3))
}
