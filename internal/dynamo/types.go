package dynamo

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

func (s State) Add(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] + other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

func (s State) Scale(factor float64) State {
	result := make(State, len(s))
	for i := range s {
		result[i] = s[i] * factor
	}
	return result
}

func (s State) Sub(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] - other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

// Vec copies s into a column vector.
func (s State) Vec() *mat.VecDense {
	return mat.NewVecDense(len(s), s.Clone())
}

// FromVec copies a vector back into a State.
func FromVec(v mat.Vector) State {
	s := make(State, v.Len())
	for i := range s {
		s[i] = v.AtVec(i)
	}
	return s
}

type Control []float64

func (u Control) Add(other Control) Control {
	return Control(State(u).Add(State(other)))
}

// Clamp bounds each element of u into [lo[i], hi[i]].
func (u Control) Clamp(lo, hi Control) Control {
	out := make(Control, len(u))
	for i, v := range u {
		if i < len(lo) && v < lo[i] {
			v = lo[i]
		}
		if i < len(hi) && v > hi[i] {
			v = hi[i]
		}
		out[i] = v
	}
	return out
}

// Saturated reports whether any element of u sits on a bound.
func (u Control) Saturated(lo, hi Control) bool {
	for i, v := range u {
		if (i < len(lo) && v <= lo[i]) || (i < len(hi) && v >= hi[i]) {
			return true
		}
	}
	return false
}

// System is a continuous-time plant dX/dt = f(X, u, t).
type System interface {
	Derive(x State, u Control, t float64) State
	StateDim() int
	ControlDim() int
}

type Integrator interface {
	Step(dyn System, x State, u Control, t float64, dt float64) State
}

type Metric interface {
	Name() string
	Observe(x State, u Control, t float64)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(x State, u Control, t float64)
}
