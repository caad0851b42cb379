package linalg

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	// maxDoublingIters bounds the doubling iteration. Each pass squares the
	// closed-loop transition, so 64 passes cover any stabilizable pair whose
	// slowest mode is representable in float64.
	maxDoublingIters = 64
	dareTolerance    = 1e-12
)

// SolveDARE returns the stabilizing solution P of the discrete algebraic
// Riccati equation
//
//	P = AᵀPA − AᵀPB (R + BᵀPB)⁻¹ BᵀPA + Q
//
// using the structure-preserving doubling algorithm. It fails with
// ErrNoConvergence when the iteration diverges, which is what happens for a
// pair (A, B) that is not stabilizable.
func SolveDARE(a, b, q, r mat.Matrix) (*mat.Dense, error) {
	n, nc := a.Dims()
	bn, m := b.Dims()
	qr, qc := q.Dims()
	rr, rc := r.Dims()
	if n != nc || bn != n || qr != n || qc != n || rr != m || rc != m {
		return nil, fmt.Errorf("%w: A %dx%d, B %dx%d, Q %dx%d, R %dx%d",
			ErrDimension, n, nc, bn, m, qr, qc, rr, rc)
	}

	var rinvBt mat.Dense
	if err := solve(&rinvBt, r, b.T()); err != nil {
		return nil, fmt.Errorf("input weight: %w", err)
	}

	g := mat.NewDense(n, n, nil)
	g.Mul(b, &rinvBt)
	ak := mat.DenseCopyOf(a)
	h := mat.DenseCopyOf(q)
	eye := Identity(n)

	for k := 0; k < maxDoublingIters; k++ {
		var w mat.Dense
		w.Mul(g, h)
		w.Add(&w, eye)

		var wa, wg mat.Dense
		if err := solve(&wa, &w, ak); err != nil {
			return nil, err
		}
		if err := solve(&wg, &w, g); err != nil {
			return nil, err
		}

		aNext := mat.NewDense(n, n, nil)
		aNext.Mul(ak, &wa)

		gNext := mat.NewDense(n, n, nil)
		gNext.Product(ak, &wg, ak.T())
		gNext.Add(gNext, g)
		symmetrize(gNext)

		hNext := mat.NewDense(n, n, nil)
		hNext.Product(ak.T(), h, &wa)
		hNext.Add(hNext, h)
		symmetrize(hNext)

		if !IsFinite(hNext) || !IsFinite(gNext) || !IsFinite(aNext) {
			return nil, ErrNotFinite
		}

		var diff mat.Dense
		diff.Sub(hNext, h)
		scale := math.Max(mat.Norm(hNext, 1), math.SmallestNonzeroFloat64)
		if mat.Norm(&diff, 1)/scale <= dareTolerance {
			return hNext, nil
		}

		ak, g, h = aNext, gNext, hNext
	}
	return nil, fmt.Errorf("%w after %d doubling steps", ErrNoConvergence, maxDoublingIters)
}

func symmetrize(m *mat.Dense) {
	n, _ := m.Dims()
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			v := 0.5 * (m.At(i, j) + m.At(j, i))
			m.Set(i, j, v)
			m.Set(j, i, v)
		}
	}
}
