package control

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/drivegain/internal/dynamo"
	"github.com/san-kum/drivegain/internal/linalg"
	"github.com/san-kum/drivegain/internal/physics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

const dt = 0.00505

var (
	umin = dynamo.Control{-12, -12}
	umax = dynamo.Control{12, 12}

	lqrWeights    = Weights{Q: []float64{0.12, 1.0, 0.12, 1.0}, R: []float64{12, 12}}
	ffWeights     = Weights{Q: []float64{0.005, 1.0, 0.005, 1.0}, R: []float64{12, 12}}
	kalmanWeights = Weights{Q: []float64{0.05, 1.0, 0.05, 1.0}, R: []float64{0.0001, 0.0001}}
)

func plant(t *testing.T) (ad, bd, c *mat.Dense) {
	t.Helper()
	d, err := physics.NewDrivetrain(physics.Params{
		Motor:       "cim",
		Motors:      2,
		Mass:        52,
		WheelRadius: 0.08255 / 2,
		RobotRadius: 0.59055 / 2,
		Inertia:     6.0,
		LeftRatio:   11.0 / 60.0,
		RightRatio:  11.0 / 60.0,
	})
	require.NoError(t, err)
	ad, bd, err = linalg.Discretize(d.A, d.B, dt)
	require.NoError(t, err)
	return ad, bd, d.C
}

func TestParseRule(t *testing.T) {
	r, err := ParseRule("")
	require.NoError(t, err)
	assert.Equal(t, RuleBryson, r)

	r, err = ParseRule("diagonal")
	require.NoError(t, err)
	assert.Equal(t, RuleDiagonal, r)

	_, err = ParseRule("lqg")
	assert.Error(t, err)
}

func TestRuleMatrices(t *testing.T) {
	cost, err := RuleBryson.Cost([]float64{0.5, 2})
	require.NoError(t, err)
	assert.InDelta(t, 4.0, cost.At(0, 0), 1e-15)
	assert.InDelta(t, 0.25, cost.At(1, 1), 1e-15)
	assert.Zero(t, cost.At(0, 1))

	cov, err := RuleBryson.Covariance([]float64{0.5, 2})
	require.NoError(t, err)
	assert.InDelta(t, 0.25, cov.At(0, 0), 1e-15)
	assert.InDelta(t, 4.0, cov.At(1, 1), 1e-15)

	diag, err := RuleDiagonal.Cost([]float64{0.5, 2})
	require.NoError(t, err)
	assert.Equal(t, 0.5, diag.At(0, 0))

	for _, w := range [][]float64{nil, {0, 1}, {-1}, {math.NaN()}, {math.Inf(1)}} {
		_, err := RuleBryson.Cost(w)
		assert.Error(t, err, "weights %v", w)
	}
}

func TestDesignLQR(t *testing.T) {
	ad, bd, _ := plant(t)

	t.Run("stabilizes the plant", func(t *testing.T) {
		l, err := DesignLQR(ad, bd, lqrWeights, RuleBryson, umin, umax)
		require.NoError(t, err)

		r, c := l.K.Dims()
		assert.Equal(t, 2, r)
		assert.Equal(t, 4, c)

		rho, err := ClosedLoopRadius(ad, bd, l.K)
		require.NoError(t, err)
		assert.Less(t, rho, 1.0)
	})

	t.Run("gain is diagonally dominant", func(t *testing.T) {
		l, err := DesignLQR(ad, bd, lqrWeights, RuleBryson, umin, umax)
		require.NoError(t, err)

		assert.Greater(t, math.Abs(l.K.At(0, 0)), math.Abs(l.K.At(0, 2)))
		assert.Greater(t, math.Abs(l.K.At(1, 2)), math.Abs(l.K.At(1, 0)))
		assert.InDelta(t, l.K.At(0, 0), l.K.At(1, 2), 1e-9*math.Abs(l.K.At(0, 0)))
	})

	t.Run("deterministic", func(t *testing.T) {
		a, err := DesignLQR(ad, bd, lqrWeights, RuleBryson, umin, umax)
		require.NoError(t, err)
		b, err := DesignLQR(ad, bd, lqrWeights, RuleBryson, umin, umax)
		require.NoError(t, err)
		assert.True(t, mat.Equal(a.K, b.K))
	})

	t.Run("zero input matrix is not stabilizable", func(t *testing.T) {
		zero := mat.NewDense(4, 2, nil)
		_, err := DesignLQR(ad, zero, lqrWeights, RuleBryson, umin, umax)
		require.Error(t, err)
		assert.True(t, errors.Is(err, dynamo.ErrSolver))
		stage, ok := dynamo.StageOf(err)
		assert.True(t, ok)
		assert.Equal(t, dynamo.StageLQR, stage)
	})

	t.Run("rejects bad weights", func(t *testing.T) {
		bad := Weights{Q: []float64{0.12, 0, 0.12, 1.0}, R: []float64{12, 12}}
		_, err := DesignLQR(ad, bd, bad, RuleBryson, umin, umax)
		assert.True(t, errors.Is(err, dynamo.ErrSolver))

		short := Weights{Q: []float64{1, 1}, R: []float64{12, 12}}
		_, err = DesignLQR(ad, bd, short, RuleBryson, umin, umax)
		assert.True(t, errors.Is(err, dynamo.ErrSolver))
	})
}

func TestLQRCompute(t *testing.T) {
	ad, bd, _ := plant(t)
	l, err := DesignLQR(ad, bd, lqrWeights, RuleBryson, umin, umax)
	require.NoError(t, err)

	x := dynamo.State{0, 0, 0, 0}
	r := dynamo.State{1.524, 0, 0, 0}

	raw := l.Unclamped(x, r)
	assert.Greater(t, raw[0], 12.0, "a 1.5 m step should ask for more than the battery has")

	u := l.Compute(x, r)
	assert.Equal(t, 12.0, u[0])
	assert.True(t, u.Saturated(l.Umin, l.Umax))

	small := dynamo.State{0.01, 0, 0, 0}
	u = l.Compute(x, small)
	assert.InDelta(t, l.K.At(0, 0)*0.01, u[0], 1e-12)
	assert.False(t, u.Saturated(l.Umin, l.Umax))
}

func TestDesignTwoStateFeedforward(t *testing.T) {
	ad, bd, _ := plant(t)

	ff, err := DesignTwoStateFeedforward(ad, bd, ffWeights, RuleBryson)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		assert.Zero(t, ff.Kff.At(i, 0), "position column 0, row %d", i)
		assert.Zero(t, ff.Kff.At(i, 2), "position column 2, row %d", i)
	}
	assert.Equal(t, ff.Reduced.At(0, 0), ff.Kff.At(0, 1))
	assert.Equal(t, ff.Reduced.At(1, 1), ff.Kff.At(1, 3))
	assert.Greater(t, ff.Reduced.At(0, 0), ff.Reduced.At(0, 1))

	t.Run("zero reference change gives zero input", func(t *testing.T) {
		r := dynamo.State{1, 0, 1, 0}
		u := ff.Compute(r, r)
		assert.InDelta(t, 0, u[0], 1e-12)
		assert.InDelta(t, 0, u[1], 1e-12)
	})

	t.Run("accelerating reference asks for voltage", func(t *testing.T) {
		u := ff.Compute(dynamo.State{0, 0, 0, 0}, dynamo.State{0, 0.1, 0, 0.1})
		assert.Greater(t, u[0], 0.0)
		assert.InDelta(t, u[0], u[1], 1e-12)
	})

	t.Run("singular velocity block", func(t *testing.T) {
		sing := mat.DenseCopyOf(ad)
		for _, i := range velocityStates {
			for _, j := range velocityStates {
				sing.Set(i, j, 0)
			}
		}
		_, err := DesignTwoStateFeedforward(sing, bd, ffWeights, RuleBryson)
		require.Error(t, err)
		assert.True(t, errors.Is(err, dynamo.ErrModel))
		stage, _ := dynamo.StageOf(err)
		assert.Equal(t, dynamo.StageFeedforward, stage)
	})
}

func TestDesignKalman(t *testing.T) {
	ad, bd, c := plant(t)

	k, err := DesignKalman(ad, bd, c, kalmanWeights, RuleBryson)
	require.NoError(t, err)

	r, cols := k.L.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 2, cols)

	rho, err := linalg.SpectralRadius(k.ObserverMatrix())
	require.NoError(t, err)
	assert.Less(t, rho, 1.0)

	// Precise encoders: the position estimate should follow the measurement.
	assert.InDelta(t, 1.0, k.L.At(0, 0), 1e-3)
	assert.InDelta(t, 1.0, k.L.At(2, 1), 1e-3)

	t.Run("correct pulls toward measurement", func(t *testing.T) {
		xhat := dynamo.State{0, 0, 0, 0}
		next := k.Correct(xhat, []float64{0.5, -0.5})
		assert.InDelta(t, 0.5, next[0], 1e-3)
		assert.InDelta(t, -0.5, next[2], 1e-3)
	})

	t.Run("predict matches plant", func(t *testing.T) {
		x := dynamo.State{0.1, 0.2, 0.3, 0.4}
		u := dynamo.Control{1, -1}
		got := k.Predict(x, u)
		for i := 0; i < 4; i++ {
			want := 0.0
			for j := 0; j < 4; j++ {
				want += ad.At(i, j) * x[j]
			}
			want += bd.At(i, 0)*u[0] + bd.At(i, 1)*u[1]
			assert.InDelta(t, want, got[i], 1e-14)
		}
	})

	t.Run("unobservable plant", func(t *testing.T) {
		zero := mat.NewDense(2, 4, nil)
		_, err := DesignKalman(ad, bd, zero, kalmanWeights, RuleBryson)
		require.Error(t, err)
		assert.True(t, errors.Is(err, dynamo.ErrSolver))
		stage, _ := dynamo.StageOf(err)
		assert.Equal(t, dynamo.StageKalman, stage)
	})
}
