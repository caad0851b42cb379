package integrators

import "github.com/san-kum/drivegain/internal/dynamo"

// Explicit is an explicit Runge-Kutta method given by its Butcher tableau.
type Explicit struct {
	a [][]float64
	b []float64
	c []float64

	k []dynamo.State
}

// NewRK4 returns the classical fourth-order Runge-Kutta method.
func NewRK4() *Explicit {
	return &Explicit{
		a: [][]float64{{}, {0.5}, {0, 0.5}, {0, 0, 1}},
		b: []float64{1.0 / 6, 1.0 / 3, 1.0 / 3, 1.0 / 6},
		c: []float64{0, 0.5, 0.5, 1},
	}
}

func (e *Explicit) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t float64, dt float64) dynamo.State {
	if len(e.k) != len(e.b) {
		e.k = make([]dynamo.State, len(e.b))
	}

	for s := range e.b {
		stage := x.Clone()
		for j, aij := range e.a[s] {
			for i := range stage {
				stage[i] += dt * aij * e.k[j][i]
			}
		}
		e.k[s] = dyn.Derive(stage, u, t+e.c[s]*dt)
	}

	result := x.Clone()
	for s, bs := range e.b {
		for i := range result {
			result[i] += dt * bs * e.k[s][i]
		}
	}
	return result
}

// Hold integrates dyn over span with u held constant, using n equal substeps.
func Hold(integ dynamo.Integrator, dyn dynamo.System, x dynamo.State, u dynamo.Control, span float64, n int) dynamo.State {
	if n < 1 {
		n = 1
	}
	h := span / float64(n)
	for i := 0; i < n; i++ {
		x = integ.Step(dyn, x, u, float64(i)*h, h)
	}
	return x
}
