package control

import (
	"github.com/san-kum/drivegain/internal/dynamo"
	"github.com/san-kum/drivegain/internal/linalg"
	"gonum.org/v1/gonum/mat"
)

// LQR is a discrete state-feedback gain with the input bounds it was
// designed for. The bounds are not part of the linear law; Compute applies
// them the way the embedded loop would.
type LQR struct {
	K    *mat.Dense
	P    *mat.Dense
	Umin dynamo.Control
	Umax dynamo.Control
}

// DesignLQR solves the infinite-horizon discrete LQR problem for (ad, bd).
func DesignLQR(ad, bd *mat.Dense, w Weights, rule Rule, umin, umax dynamo.Control) (*LQR, error) {
	n, _ := ad.Dims()
	_, m := bd.Dims()
	if len(w.Q) != n || len(w.R) != m {
		return nil, dynamo.Fail(dynamo.StageLQR, dynamo.ErrSolver,
			"expected %d state and %d input weights, got %d and %d", n, m, len(w.Q), len(w.R))
	}
	q, err := rule.Cost(w.Q)
	if err != nil {
		return nil, dynamo.Fail(dynamo.StageLQR, dynamo.ErrSolver, "state cost: %w", err)
	}
	r, err := rule.Cost(w.R)
	if err != nil {
		return nil, dynamo.Fail(dynamo.StageLQR, dynamo.ErrSolver, "input cost: %w", err)
	}

	p, err := linalg.SolveDARE(ad, bd, q, r)
	if err != nil {
		return nil, dynamo.Fail(dynamo.StageLQR, dynamo.ErrSolver, "(Ad, Bd) not stabilizable for these weights: %w", err)
	}

	// K = (R + BᵀPB)⁻¹ BᵀPA
	var s, bpa mat.Dense
	s.Product(bd.T(), p, bd)
	s.Add(&s, r)
	bpa.Product(bd.T(), p, ad)
	k := mat.NewDense(m, n, nil)
	if err := k.Solve(&s, &bpa); err != nil {
		return nil, dynamo.Fail(dynamo.StageLQR, dynamo.ErrSolver, "R + BᵀPB: %w", linalg.ErrSingular)
	}
	if !linalg.IsFinite(k) {
		return nil, dynamo.Fail(dynamo.StageLQR, dynamo.ErrSolver, "gain: %w", linalg.ErrNotFinite)
	}

	rho, err := ClosedLoopRadius(ad, bd, k)
	if err != nil {
		return nil, dynamo.Fail(dynamo.StageLQR, dynamo.ErrSolver, "closed-loop poles: %w", err)
	}
	if rho >= 1 {
		return nil, dynamo.Fail(dynamo.StageLQR, dynamo.ErrSolver,
			"closed loop is not stable (spectral radius %.6f)", rho)
	}

	return &LQR{
		K:    k,
		P:    p,
		Umin: append(dynamo.Control(nil), umin...),
		Umax: append(dynamo.Control(nil), umax...),
	}, nil
}

// ClosedLoop returns Ad − Bd·K.
func ClosedLoop(ad, bd, k mat.Matrix) *mat.Dense {
	var bk mat.Dense
	bk.Mul(bd, k)
	cl := mat.DenseCopyOf(ad)
	cl.Sub(cl, &bk)
	return cl
}

func ClosedLoopRadius(ad, bd, k mat.Matrix) (float64, error) {
	return linalg.SpectralRadius(ClosedLoop(ad, bd, k))
}

// Unclamped returns K(r − x).
func (l *LQR) Unclamped(x, r dynamo.State) dynamo.Control {
	var u mat.VecDense
	u.MulVec(l.K, r.Sub(x).Vec())
	return dynamo.Control(dynamo.FromVec(&u))
}

// Compute returns K(r − x) clamped to [Umin, Umax].
func (l *LQR) Compute(x, r dynamo.State) dynamo.Control {
	return l.Unclamped(x, r).Clamp(l.Umin, l.Umax)
}
