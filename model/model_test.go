// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package model

import (
	"math"
	"testing"

	"github.com/curioloop/raff/numdiff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func gaussian() Model {
	return Model{
		F: func(x, t []float64) float64 {
			return t[0] * math.Exp(-(x[0]-t[1])*(x[0]-t[1])/t[2])
		},
		G: func(g, x, t []float64) {
			u := x[0] - t[1]
			e := math.Exp(-u * u / t[2])
			g[0] = e
			g[1] = t[0] * e * 2 * u / t[2]
			g[2] = t[0] * e * u * u / (t[2] * t[2])
		},
	}
}

func table() [][]float64 {
	return [][]float64{
		{-1.0, 0.2},
		{-0.5, 0.9},
		{0.0, 2.1},
		{0.5, 1.1},
		{1.0, 0.3},
	}
}

func TestNewData(t *testing.T) {
	d, err := NewData(table())
	require.NoError(t, err)
	assert.Equal(t, 5, d.Len())
	assert.Equal(t, 1, d.Dim())
	assert.Equal(t, []float64{0.5}, d.Point(3))
	assert.Equal(t, 1.1, d.Value(3))
	assert.True(t, mat.Equal(mat.NewDense(5, 2, []float64{
		-1.0, 0.2, -0.5, 0.9, 0.0, 2.1, 0.5, 1.1, 1.0, 0.3,
	}), d.Table()))

	_, err = NewData(nil)
	assert.Error(t, err)
	_, err = NewData([][]float64{{1}})
	assert.Error(t, err)
	_, err = NewData([][]float64{{1, 2}, {1, 2, 3}})
	assert.Error(t, err)
}

func TestFromDenseCopies(t *testing.T) {
	src := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	d, err := FromDense(src)
	require.NoError(t, err)
	src.Set(0, 0, 100)
	src.Set(0, 2, 100)
	assert.Equal(t, []float64{1, 2}, d.Point(0))
	assert.Equal(t, 3.0, d.Value(0))
	assert.Equal(t, 2, d.Dim())
}

func TestResidualEval(t *testing.T) {
	d, err := NewData(table())
	require.NoError(t, err)
	m := gaussian()
	r, err := NewResidual(m, d, 3)
	require.NoError(t, err)

	theta := []float64{2, 0, 0.5}
	res := make([]float64, d.Len())
	r.Eval(theta, res)
	for i := range res {
		assert.InDelta(t, m.F(d.Point(i), theta)-d.Value(i), res[i], 1e-15)
	}
}

func TestJacobianFiniteDiff(t *testing.T) {
	d, err := NewData(table())
	require.NoError(t, err)

	theta := []float64{2, 0.1, 0.5}
	rows := []int{4, 0, 2}

	exact, err := NewResidual(gaussian(), d, 3)
	require.NoError(t, err)
	want := make([]float64, len(rows)*3)
	require.NoError(t, exact.Jacobian(theta, rows, want))

	for _, diff := range []Diff{
		{},
		{Method: numdiff.Central},
		{Method: numdiff.Forward, AbsStep: 1e-7},
		{Method: numdiff.Central, RelStep: 1e-5},
	} {
		m := gaussian()
		m.G = nil
		m.Diff = diff
		approx, err := NewResidual(m, d, 3)
		require.NoError(t, err)
		got := make([]float64, len(rows)*3)
		before := append([]float64(nil), theta...)
		require.NoError(t, approx.Jacobian(theta, rows, got))
		assert.InDeltaSlice(t, want, got, 1e-6, "diff %+v", diff)
		assert.Equal(t, before, theta)
	}
}

func TestJacobianEmptyRows(t *testing.T) {
	d, err := NewData(table())
	require.NoError(t, err)
	m := gaussian()
	m.G = nil
	r, err := NewResidual(m, d, 3)
	require.NoError(t, err)
	assert.NoError(t, r.Jacobian([]float64{1, 1, 1}, nil, nil))
}

func TestNewResidualValidation(t *testing.T) {
	d, err := NewData(table())
	require.NoError(t, err)

	_, err = NewResidual(Model{}, d, 1)
	assert.Error(t, err)
	_, err = NewResidual(gaussian(), nil, 3)
	assert.Error(t, err)
	_, err = NewResidual(gaussian(), d, 0)
	assert.Error(t, err)
	_, err = NewResidual(Model{F: gaussian().F, Diff: Diff{RelStep: -1}}, d, 3)
	assert.Error(t, err)
	_, err = NewResidual(Model{F: gaussian().F, Diff: Diff{RelStep: math.NaN()}}, d, 3)
	assert.Error(t, err)
	_, err = NewResidual(Model{F: gaussian().F, Diff: Diff{AbsStep: math.NaN()}}, d, 3)
	assert.Error(t, err)
	_, err = NewResidual(Model{F: gaussian().F, Diff: Diff{AbsStep: math.Inf(-1)}}, d, 3)
	assert.Error(t, err)
	_, err = NewResidual(Model{F: gaussian().F, Diff: Diff{AbsStep: -1e-6}}, d, 3)
	assert.NoError(t, err)
}
