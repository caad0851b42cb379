package control

import (
	"github.com/san-kum/drivegain/internal/dynamo"
	"github.com/san-kum/drivegain/internal/linalg"
	"gonum.org/v1/gonum/mat"
)

// velocityStates are the sub-states the feedforward acts on. Positions are
// not fed forward.
var velocityStates = []int{1, 3}

// maxVelocityCond is the largest condition number of the velocity block of
// Ad that still counts as invertible.
const maxVelocityCond = 1e12

// Feedforward is a one-step reference-tracking gain:
//
//	u_ff = Kff·(r[k+1] − Ad·r[k])
type Feedforward struct {
	// Kff is m×n with zero position columns.
	Kff *mat.Dense
	// Reduced is the m×2 gain on the velocity sub-states.
	Reduced *mat.Dense

	ad *mat.Dense
}

// DesignTwoStateFeedforward computes the closed-form feedforward on the
// velocity subsystem:
//
//	Kv = (BvᵀQvBv + R)⁻¹ BvᵀQv
func DesignTwoStateFeedforward(ad, bd *mat.Dense, w Weights, rule Rule) (*Feedforward, error) {
	n, _ := ad.Dims()
	_, m := bd.Dims()
	if len(w.Q) != n || len(w.R) != m {
		return nil, dynamo.Fail(dynamo.StageFeedforward, dynamo.ErrModel,
			"expected %d state and %d input weights, got %d and %d", n, m, len(w.Q), len(w.R))
	}

	av := linalg.Sub(ad, velocityStates, velocityStates)
	var lu mat.LU
	lu.Factorize(av)
	if c := lu.Cond(); c > maxVelocityCond {
		return nil, dynamo.Fail(dynamo.StageFeedforward, dynamo.ErrModel,
			"velocity block of Ad is singular (condition %.3g)", c)
	}

	qv := make([]float64, len(velocityStates))
	cols := make([]int, m)
	for i, v := range velocityStates {
		qv[i] = w.Q[v]
	}
	for j := range cols {
		cols[j] = j
	}
	q, err := rule.Cost(qv)
	if err != nil {
		return nil, dynamo.Fail(dynamo.StageFeedforward, dynamo.ErrModel, "state cost: %w", err)
	}
	r, err := rule.Cost(w.R)
	if err != nil {
		return nil, dynamo.Fail(dynamo.StageFeedforward, dynamo.ErrModel, "input cost: %w", err)
	}

	bv := linalg.Sub(bd, velocityStates, cols)
	var lhs, btq mat.Dense
	btq.Mul(bv.T(), q)
	lhs.Mul(&btq, bv)
	lhs.Add(&lhs, r)

	reduced := mat.NewDense(m, len(velocityStates), nil)
	if err := reduced.Solve(&lhs, &btq); err != nil {
		return nil, dynamo.Fail(dynamo.StageFeedforward, dynamo.ErrModel, "BvᵀQvBv + R: %w", linalg.ErrSingular)
	}

	kff := mat.NewDense(m, n, nil)
	for i := 0; i < m; i++ {
		for j, v := range velocityStates {
			kff.Set(i, v, reduced.At(i, j))
		}
	}
	return &Feedforward{Kff: kff, Reduced: reduced, ad: ad}, nil
}

// Compute returns Kff·(next − Ad·r).
func (f *Feedforward) Compute(r, next dynamo.State) dynamo.Control {
	var ar mat.VecDense
	ar.MulVec(f.ad, r.Vec())
	diff := next.Sub(dynamo.FromVec(&ar))
	var u mat.VecDense
	u.MulVec(f.Kff, diff.Vec())
	return dynamo.Control(dynamo.FromVec(&u))
}
