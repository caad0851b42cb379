package integrators

import (
	"math"
	"testing"

	"github.com/san-kum/drivegain/internal/dynamo"
)

type oscillator struct{}

func (o *oscillator) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	return dynamo.State{x[1], -x[0]}
}

func (o *oscillator) StateDim() int   { return 2 }
func (o *oscillator) ControlDim() int { return 0 }

// forced is dx/dt = -x + u.
type forced struct{}

func (f *forced) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	return dynamo.State{-x[0] + u[0]}
}

func (f *forced) StateDim() int   { return 1 }
func (f *forced) ControlDim() int { return 1 }

func euler() *Explicit {
	return &Explicit{a: [][]float64{{}}, b: []float64{1}, c: []float64{0}}
}

func heun() *Explicit {
	return &Explicit{a: [][]float64{{}, {1}}, b: []float64{0.5, 0.5}, c: []float64{0, 1}}
}

func TestRK4Accuracy(t *testing.T) {
	dyn := &oscillator{}
	integ := NewRK4()

	x0 := dynamo.State{1.0, 0.0}
	u := dynamo.Control{}
	dt := 0.01
	steps := 100

	x := x0
	for i := 0; i < steps; i++ {
		x = integ.Step(dyn, x, u, float64(i)*dt, dt)
	}

	expectedX := math.Cos(float64(steps) * dt)
	expectedV := -math.Sin(float64(steps) * dt)

	if math.Abs(x[0]-expectedX) > 1e-8 {
		t.Errorf("position error too large: got %.10f, expected %.10f", x[0], expectedX)
	}

	if math.Abs(x[1]-expectedV) > 1e-8 {
		t.Errorf("velocity error too large: got %.10f, expected %.10f", x[1], expectedV)
	}
}

func TestOrderOfAccuracy(t *testing.T) {
	tests := []struct {
		name  string
		integ *Explicit
		order float64
	}{
		{"euler", euler(), 1},
		{"heun", heun(), 2},
		{"rk4", NewRK4(), 4},
	}

	exact := 1 - math.Exp(-1.0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errAt := func(n int) float64 {
				x := Hold(tt.integ, &forced{}, dynamo.State{0}, dynamo.Control{1}, 1.0, n)
				return math.Abs(x[0] - exact)
			}
			observed := math.Log2(errAt(20) / errAt(40))
			if math.Abs(observed-tt.order) > 0.25 {
				t.Errorf("expected order %.0f, observed %.2f", tt.order, observed)
			}
		})
	}
}

func TestHoldSubsteps(t *testing.T) {
	x := Hold(euler(), &forced{}, dynamo.State{0}, dynamo.Control{2}, 0.5, 0)
	if math.Abs(x[0]-1.0) > 1e-12 {
		t.Errorf("a single euler step of 0.5 should reach 1.0, got %v", x[0])
	}
}
