package sim

import (
	"math"

	"github.com/san-kum/drivegain/internal/dynamo"
)

type Result struct {
	Times      []float64
	States     []dynamo.State
	Estimates  []dynamo.State
	Refs       []dynamo.State
	Controls   []dynamo.Control
	Metrics    map[string]float64
	StepsTaken int
}

// Overshoot returns how far state index travels past target in the
// direction of travel from its first sample, or 0 if it never does.
func (r *Result) Overshoot(index int, target float64) float64 {
	if len(r.States) == 0 {
		return 0
	}
	up := target >= r.States[0][index]
	worst := 0.0
	for _, x := range r.States {
		d := x[index] - target
		if !up {
			d = -d
		}
		worst = math.Max(worst, d)
	}
	return worst
}

// Column returns state index over time.
func (r *Result) Column(index int) []float64 {
	out := make([]float64, len(r.States))
	for k, x := range r.States {
		out[k] = x[index]
	}
	return out
}

// Input returns input index over time.
func (r *Result) Input(index int) []float64 {
	out := make([]float64, len(r.Controls))
	for k, u := range r.Controls {
		out[k] = u[index]
	}
	return out
}
