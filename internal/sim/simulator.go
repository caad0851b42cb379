package sim

import (
	"context"
	"iter"

	"github.com/san-kum/drivegain/internal/control"
	"github.com/san-kum/drivegain/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// Loop is a designed discrete loop. LQR is required; Feedforward and Kalman
// are optional. With Estimate set the controller acts on the Kalman estimate
// instead of the true state. The estimate starts at InitialEstimate, or at
// the true initial state when that is nil.
type Loop struct {
	Ad, Bd          *mat.Dense
	LQR             *control.LQR
	Feedforward     *control.Feedforward
	Kalman          *control.Kalman
	Estimate        bool
	InitialEstimate dynamo.State
}

// Step is one sample of a closed-loop trajectory: the state at time T, the
// reference it was steered toward and the input applied over [T, T+dt).
type Step struct {
	K        int
	T        float64
	X        dynamo.State
	XHat     dynamo.State
	R        dynamo.State
	U        dynamo.Control
	Feedback dynamo.Control
}

type Simulator struct {
	loop      Loop
	dt        float64
	metrics   []dynamo.Metric
	observers []dynamo.Observer
}

func New(loop Loop, dt float64) *Simulator {
	return &Simulator{
		loop:      loop,
		dt:        dt,
		metrics:   make([]dynamo.Metric, 0),
		observers: make([]dynamo.Observer, 0),
	}
}

func (s *Simulator) AddMetric(m dynamo.Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o dynamo.Observer) { s.observers = append(s.observers, o) }

// Trajectory lazily simulates x[k+1] = Ad·x[k] + Bd·u[k] against refs,
// yielding one Step per reference sample. Each call starts over from x0.
func (s *Simulator) Trajectory(x0 dynamo.State, refs []dynamo.State) iter.Seq2[int, Step] {
	return func(yield func(int, Step) bool) {
		l := s.loop
		x := x0.Clone()
		xhat := x0.Clone()
		if l.InitialEstimate != nil {
			xhat = l.InitialEstimate.Clone()
		}

		for k, r := range refs {
			next := r
			if k+1 < len(refs) {
				next = refs[k+1]
			}

			seen := x
			if l.Estimate && l.Kalman != nil {
				seen = xhat
			}
			fb := l.LQR.Unclamped(seen, r)
			u := fb
			if l.Feedforward != nil {
				u = fb.Add(l.Feedforward.Compute(r, next))
			}
			u = u.Clamp(l.LQR.Umin, l.LQR.Umax)

			step := Step{K: k, T: float64(k) * s.dt, X: x, XHat: xhat, R: r, U: u, Feedback: fb}
			if !yield(k, step) {
				return
			}

			x = propagate(l.Ad, l.Bd, x, u)
			if l.Kalman != nil {
				xhat = l.Kalman.Correct(l.Kalman.Predict(xhat, u), l.Kalman.Measure(x))
			}
		}
	}
}

func propagate(ad, bd *mat.Dense, x dynamo.State, u dynamo.Control) dynamo.State {
	var ax, bu mat.VecDense
	ax.MulVec(ad, x.Vec())
	bu.MulVec(bd, dynamo.State(u).Vec())
	ax.AddVec(&ax, &bu)
	return dynamo.FromVec(&ax)
}

// Run collects the trajectory, feeding metrics and observers on the way.
func (s *Simulator) Run(ctx context.Context, x0 dynamo.State, refs []dynamo.State) (*Result, error) {
	if err := s.validate(x0, refs); err != nil {
		return nil, err
	}

	result := &Result{
		Times:     make([]float64, 0, len(refs)),
		States:    make([]dynamo.State, 0, len(refs)),
		Estimates: make([]dynamo.State, 0, len(refs)),
		Refs:      make([]dynamo.State, 0, len(refs)),
		Controls:  make([]dynamo.Control, 0, len(refs)),
		Metrics:   make(map[string]float64),
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	for k, step := range s.Trajectory(x0, refs) {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		if !step.X.IsValid() {
			return result, dynamo.Fail(dynamo.StageSimulate, dynamo.ErrModel,
				"non-finite state at step %d (t=%.4f)", k, step.T)
		}

		for _, m := range s.metrics {
			m.Observe(step.X, step.U, step.T)
		}
		for _, obs := range s.observers {
			obs.OnStep(step.X, step.U, step.T)
		}

		result.Times = append(result.Times, step.T)
		result.States = append(result.States, step.X)
		result.Estimates = append(result.Estimates, step.XHat)
		result.Refs = append(result.Refs, step.R)
		result.Controls = append(result.Controls, step.U)
		result.StepsTaken++
	}

	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	return result, nil
}

func (s *Simulator) validate(x0 dynamo.State, refs []dynamo.State) error {
	l := s.loop
	if l.Ad == nil || l.Bd == nil || l.LQR == nil {
		return dynamo.Fail(dynamo.StageSimulate, dynamo.ErrConfiguration, "loop needs Ad, Bd and an LQR gain")
	}
	if s.dt <= 0 {
		return dynamo.Fail(dynamo.StageSimulate, dynamo.ErrConfiguration, "dt must be positive, got %f", s.dt)
	}
	n, _ := l.Ad.Dims()
	if len(x0) != n || !x0.IsValid() {
		return dynamo.Fail(dynamo.StageSimulate, dynamo.ErrConfiguration, "initial state must be %d finite values, got %v", n, x0)
	}
	if l.InitialEstimate != nil && (len(l.InitialEstimate) != n || !l.InitialEstimate.IsValid()) {
		return dynamo.Fail(dynamo.StageSimulate, dynamo.ErrConfiguration, "initial estimate must be %d finite values", n)
	}
	if len(refs) == 0 {
		return dynamo.Fail(dynamo.StageSimulate, dynamo.ErrConfiguration, "empty reference trajectory")
	}
	for k, r := range refs {
		if len(r) != n || !r.IsValid() {
			return dynamo.Fail(dynamo.StageSimulate, dynamo.ErrConfiguration, "reference %d must be %d finite values, got %v", k, n, r)
		}
	}
	return nil
}
