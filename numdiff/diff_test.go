// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package numdiff

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func objV2(x, y []float64) {
	y[0] = x[0] * math.Sin(x[1])
	y[1] = x[1] * math.Cos(x[0])
	y[2] = math.Pow(x[0], 3) * math.Pow(x[1], -0.5)
}

func jacV2(x []float64) []float64 {
	return []float64{
		math.Sin(x[1]), x[0] * math.Cos(x[1]),
		-x[1] * math.Sin(x[0]), math.Cos(x[0]),
		3 * math.Pow(x[0], 2) * math.Pow(x[1], -0.5), -0.5 * math.Pow(x[0], 3) * math.Pow(x[1], -1.5),
	}
}

func assertRelative(t *testing.T, want, got []float64, tol float64) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.InEpsilon(t, want[i], got[i], tol, "component %d", i)
	}
}

// Case Sources : https://github.com/scipy/scipy/blob/main/scipy/optimize/tests/test__numdiff.py (test_absolute_step_sign)
func TestAbsoluteStep(t *testing.T) {
	x0 := []float64{1e-5, 0, 1, 1e5}
	dummy := make([]float64, 4)
	obj := func(x, y []float64) { y[0] = x[0] }

	for method, eps := range map[Method]float64{Forward: sqrtEps, Central: cubeEps} {
		s := Spec{N: 4, M: 1, Method: method, Object: obj}
		require.NoError(t, s.Jacobian(x0, dummy))
		assertRelative(t, []float64{eps, eps, eps, eps * 1e5}, s.Steps(), 1e-12)
	}

	s := Spec{N: 4, M: 1, Method: Forward, Object: obj, RelStep: 0.1}
	neg := []float64{-1e-5, 0, -1, -1e5}
	require.NoError(t, s.Jacobian(neg, dummy))
	assertRelative(t, []float64{-1e-6, sqrtEps, -0.1, -1e4}, s.Steps(), 1e-12)

	s = Spec{N: 4, M: 1, Method: Central, Object: obj, AbsStep: -1e-3}
	require.NoError(t, s.Jacobian(x0, dummy))
	assertRelative(t, []float64{1e-3, 1e-3, 1e-3, 1e-3}, s.Steps(), 1e-12)
}

// Case Sources : https://github.com/scipy/scipy/blob/main/scipy/optimize/tests/test__numdiff.py
// (TestApproxDerivativesDense.test_scalar_scalar)
func TestScalar(t *testing.T) {
	x0 := []float64{1.0}
	obj := func(x, y []float64) {
		y[0] = math.Sinh(x[0])
	}
	want := []float64{math.Cosh(x0[0])}

	fwd, cen := []float64{0}, []float64{0}
	s := Spec{N: 1, M: 1, Method: Forward, Object: obj}
	require.NoError(t, s.Jacobian(x0, fwd))
	s = Spec{N: 1, M: 1, Method: Central, Object: obj}
	require.NoError(t, s.Jacobian(x0, cen))

	assertRelative(t, want, fwd, 1e-6)
	assertRelative(t, want, cen, 1e-9)
	assert.Equal(t, []float64{1.0}, x0, "x0 must be restored")
}

// Case Sources : https://github.com/scipy/scipy/blob/main/scipy/optimize/tests/test__numdiff.py
// (TestApproxDerivativesDense.test_scalar_vector)
func TestScalarVec(t *testing.T) {
	x0 := []float64{0.5}
	obj := func(x, y []float64) {
		y[0] = x[0] * x[0]
		y[1] = math.Tan(x[0])
		y[2] = math.Exp(x[0])
	}
	want := []float64{
		2 * x0[0],
		1 / (math.Cos(x0[0]) * math.Cos(x0[0])),
		math.Exp(x0[0]),
	}

	for method, tol := range map[Method]float64{Forward: 1e-6, Central: 1e-9} {
		got := make([]float64, 3)
		s := Spec{N: 1, M: 3, Method: method, Object: obj}
		require.NoError(t, s.Jacobian(x0, got))
		assertRelative(t, want, got, tol)
	}
}

// Case Sources : https://github.com/scipy/scipy/blob/main/scipy/optimize/tests/test__numdiff.py
// (TestApproxDerivativesDense.test_vector_vector)
func TestVector(t *testing.T) {
	x0 := []float64{-100.0, 0.2}
	want := jacV2(x0)

	for method, tol := range map[Method]float64{Forward: 1e-5, Central: 1e-6} {
		got := make([]float64, 6)
		s := Spec{N: 2, M: 3, Method: method, Object: objV2}
		require.NoError(t, s.Jacobian(x0, got))
		assertRelative(t, want, got, tol)
	}
}

func TestReuseAcrossDimensions(t *testing.T) {
	s := Spec{N: 2, M: 3, Object: objV2}
	x0 := []float64{1.5, 0.7}
	jac := make([]float64, 6)
	require.NoError(t, s.Jacobian(x0, jac))
	assertRelative(t, jacV2(x0), jac, 1e-6)

	s.M = 1
	s.Object = func(x, y []float64) { y[0] = x[0] * x[1] }
	jac = jac[:2]
	require.NoError(t, s.Jacobian(x0, jac))
	assertRelative(t, []float64{0.7, 1.5}, jac, 1e-6)
}

func TestInvalidSpec(t *testing.T) {
	x0 := []float64{1, 2}
	for name, s := range map[string]Spec{
		"dimension": {N: 0, M: 1, Object: objV2},
		"method":    {N: 2, M: 3, Method: Method(7), Object: objV2},
		"object":    {N: 2, M: 3},
		"step":      {N: 2, M: 3, Object: objV2, RelStep: -1},
	} {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, s.Jacobian(x0, make([]float64, 6)))
		})
	}

	s := Spec{N: 2, M: 3, Object: objV2}
	assert.Error(t, s.Jacobian([]float64{1}, make([]float64, 6)))
	assert.Error(t, s.Jacobian(x0, make([]float64, 5)))
}
