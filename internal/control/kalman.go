package control

import (
	"github.com/san-kum/drivegain/internal/dynamo"
	"github.com/san-kum/drivegain/internal/linalg"
	"gonum.org/v1/gonum/mat"
)

// Kalman is a steady-state Kalman filter for a discrete plant.
type Kalman struct {
	// L is the n×p steady-state gain.
	L *mat.Dense
	// P is the steady-state prior error covariance.
	P *mat.Dense
	Q *mat.Dense
	R *mat.Dense

	ad, bd, c *mat.Dense
}

// DesignKalman solves the dual Riccati equation (Adᵀ, Cᵀ, Q, R) and returns
//
//	L = P Cᵀ (C P Cᵀ + R)⁻¹
func DesignKalman(ad, bd, c *mat.Dense, w Weights, rule Rule) (*Kalman, error) {
	n, _ := ad.Dims()
	p, _ := c.Dims()
	if len(w.Q) != n || len(w.R) != p {
		return nil, dynamo.Fail(dynamo.StageKalman, dynamo.ErrSolver,
			"expected %d process and %d measurement weights, got %d and %d", n, p, len(w.Q), len(w.R))
	}
	q, err := rule.Covariance(w.Q)
	if err != nil {
		return nil, dynamo.Fail(dynamo.StageKalman, dynamo.ErrSolver, "process noise: %w", err)
	}
	r, err := rule.Covariance(w.R)
	if err != nil {
		return nil, dynamo.Fail(dynamo.StageKalman, dynamo.ErrSolver, "measurement noise: %w", err)
	}

	cov, err := linalg.SolveDARE(ad.T(), c.T(), q, r)
	if err != nil {
		return nil, dynamo.Fail(dynamo.StageKalman, dynamo.ErrSolver, "(Ad, C) not detectable for these weights: %w", err)
	}

	// Lᵀ = S⁻¹ C P with S = C P Cᵀ + R, using symmetry of P and S.
	var s, cp mat.Dense
	cp.Mul(c, cov)
	s.Mul(&cp, c.T())
	s.Add(&s, r)
	var lt mat.Dense
	if err := lt.Solve(&s, &cp); err != nil {
		return nil, dynamo.Fail(dynamo.StageKalman, dynamo.ErrSolver, "C P Cᵀ + R: %w", linalg.ErrSingular)
	}
	l := mat.DenseCopyOf(lt.T())

	k := &Kalman{L: l, P: cov, Q: q, R: r, ad: ad, bd: bd, c: c}
	rho, err := linalg.SpectralRadius(k.ObserverMatrix())
	if err != nil {
		return nil, dynamo.Fail(dynamo.StageKalman, dynamo.ErrSolver, "observer poles: %w", err)
	}
	if rho >= 1 {
		return nil, dynamo.Fail(dynamo.StageKalman, dynamo.ErrSolver,
			"estimation error does not decay (spectral radius %.6f)", rho)
	}
	return k, nil
}

// ObserverMatrix returns Ad − Ad·L·C, the error dynamics of the filter.
func (k *Kalman) ObserverMatrix() *mat.Dense {
	var alc mat.Dense
	alc.Product(k.ad, k.L, k.c)
	o := mat.DenseCopyOf(k.ad)
	o.Sub(o, &alc)
	return o
}

// Predict advances the estimate through the plant model.
func (k *Kalman) Predict(xhat dynamo.State, u dynamo.Control) dynamo.State {
	var ax, bu mat.VecDense
	ax.MulVec(k.ad, xhat.Vec())
	bu.MulVec(k.bd, dynamo.State(u).Vec())
	ax.AddVec(&ax, &bu)
	return dynamo.FromVec(&ax)
}

// Correct folds measurement y into the predicted estimate.
func (k *Kalman) Correct(xhat dynamo.State, y []float64) dynamo.State {
	var cx mat.VecDense
	cx.MulVec(k.c, xhat.Vec())
	innov := dynamo.State(y).Sub(dynamo.FromVec(&cx))
	var corr mat.VecDense
	corr.MulVec(k.L, innov.Vec())
	return xhat.Add(dynamo.FromVec(&corr))
}

// Measure returns C·x.
func (k *Kalman) Measure(x dynamo.State) []float64 {
	var y mat.VecDense
	y.MulVec(k.c, x.Vec())
	return dynamo.FromVec(&y)
}
