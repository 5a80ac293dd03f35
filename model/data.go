// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package model

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Data is an immutable set of m observations (xᵢ, yᵢ) with xᵢ ∈ ℝᵈ.
// Row order is fixed once built and decides tie-breaking between equal residuals.
type Data struct {
	x *mat.Dense // m × d
	y []float64  // m
}

// NewData builds the observation set from an m × (d+1) table
// whose last column holds the observed values.
func NewData(rows [][]float64) (*Data, error) {
	if len(rows) == 0 {
		return nil, errors.New("data must have at least one row")
	}
	c := len(rows[0])
	if c < 2 {
		return nil, errors.New("data must have at least two columns")
	}
	raw := make([]float64, 0, len(rows)*c)
	for i, row := range rows {
		if len(row) != c {
			return nil, fmt.Errorf("row %d has %d columns, want %d", i, len(row), c)
		}
		raw = append(raw, row...)
	}
	return FromDense(mat.NewDense(len(rows), c, raw))
}

// FromDense builds the observation set from an m × (d+1) matrix.
// The matrix is copied.
func FromDense(t mat.Matrix) (*Data, error) {
	m, c := t.Dims()
	if m == 0 || c < 2 {
		return nil, errors.New("data must have at least one row and two columns")
	}
	d := &Data{
		x: mat.NewDense(m, c-1, nil),
		y: make([]float64, m),
	}
	d.x.Copy(t)
	mat.Col(d.y, c-1, t)
	return d, nil
}

// Len returns the number of observations m.
func (d *Data) Len() int { return len(d.y) }

// Dim returns the domain dimension d.
func (d *Data) Dim() int {
	_, c := d.x.Dims()
	return c
}

// Point returns the domain point xᵢ. The slice must not be modified.
func (d *Data) Point(i int) []float64 { return d.x.RawRowView(i) }

// Value returns the observed value yᵢ.
func (d *Data) Value(i int) float64 { return d.y[i] }

// Table returns a copy of the observations as an m × (d+1) matrix.
func (d *Data) Table() *mat.Dense {
	m, c := d.x.Dims()
	t := mat.NewDense(m, c+1, nil)
	t.Slice(0, m, 0, c).(*mat.Dense).Copy(d.x)
	t.SetCol(c, d.y)
	return t
}
