package linalg

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Discretize converts the continuous pair (A, B) to its zero-order-hold
// equivalent at sample period dt. The block matrix [[A B] [0 0]]·dt is
// exponentiated and Ad, Bd are read from its top row.
func Discretize(a, b mat.Matrix, dt float64) (ad, bd *mat.Dense, err error) {
	if dt <= 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return nil, nil, fmt.Errorf("sample period must be positive and finite, got %v", dt)
	}
	n, nc := a.Dims()
	bn, m := b.Dims()
	if n != nc || bn != n {
		return nil, nil, fmt.Errorf("%w: A is %dx%d, B is %dx%d", ErrDimension, n, nc, bn, m)
	}

	aug := mat.NewDense(n+m, n+m, nil)
	aug.Slice(0, n, 0, n).(*mat.Dense).Scale(dt, a)
	aug.Slice(0, n, n, n+m).(*mat.Dense).Scale(dt, b)

	var phi mat.Dense
	phi.Exp(aug)
	if !IsFinite(&phi) {
		return nil, nil, ErrNotFinite
	}

	ad = mat.DenseCopyOf(phi.Slice(0, n, 0, n))
	bd = mat.DenseCopyOf(phi.Slice(0, n, n, n+m))
	return ad, bd, nil
}
