package physics

import (
	"math"

	"github.com/san-kum/drivegain/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

const (
	States  = 4
	Inputs  = 2
	Outputs = 2
)

// Params describes one side-symmetric differential drivetrain.
//
// Ratios are wheel revolutions per motor revolution, so 11/60 means a
// 60:11 reduction.
type Params struct {
	Motor       string
	Motors      float64 // per side
	Mass        float64 // kg
	WheelRadius float64 // m
	RobotRadius float64 // m
	Inertia     float64 // kg·m²
	LeftRatio   float64
	RightRatio  float64
}

// Drivetrain is the continuous-time linear model of a differential drive.
//
//	x = [left pos, left vel, right pos, right vel]
//	u = [left voltage, right voltage]
//	y = [left pos, right pos]
type Drivetrain struct {
	Params Params
	Motor  Motor

	A *mat.Dense
	B *mat.Dense
	C *mat.Dense
	D *mat.Dense
}

func NewDrivetrain(p Params) (*Drivetrain, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	base, err := LookupMotor(p.Motor)
	if err != nil {
		return nil, dynamo.Fail(dynamo.StageModel, dynamo.ErrConfiguration, "%v", err)
	}
	motor := base.Gearbox(p.Motors)

	r, kt, kv := motor.Resistance(), motor.Kt(), motor.Kv()
	gl := 1 / p.LeftRatio
	gr := 1 / p.RightRatio
	wr2 := p.WheelRadius * p.WheelRadius

	c1 := -gl * gl * kt / (kv * r * wr2)
	c2 := gl * kt / (r * p.WheelRadius)
	c3 := -gr * gr * kt / (kv * r * wr2)
	c4 := gr * kt / (r * p.WheelRadius)

	same := 1/p.Mass + p.RobotRadius*p.RobotRadius/p.Inertia
	cross := 1/p.Mass - p.RobotRadius*p.RobotRadius/p.Inertia

	a := mat.NewDense(States, States, []float64{
		0, 1, 0, 0,
		0, same * c1, 0, cross * c3,
		0, 0, 0, 1,
		0, cross * c1, 0, same * c3,
	})
	b := mat.NewDense(States, Inputs, []float64{
		0, 0,
		same * c2, cross * c4,
		0, 0,
		cross * c2, same * c4,
	})
	c := mat.NewDense(Outputs, States, []float64{
		1, 0, 0, 0,
		0, 0, 1, 0,
	})
	d := mat.NewDense(Outputs, Inputs, nil)

	return &Drivetrain{Params: p, Motor: motor, A: a, B: b, C: c, D: d}, nil
}

func (p Params) validate() error {
	checks := []struct {
		name  string
		value float64
	}{
		{"motors per side", p.Motors},
		{"mass", p.Mass},
		{"wheel radius", p.WheelRadius},
		{"robot radius", p.RobotRadius},
		{"moment of inertia", p.Inertia},
		{"left gear ratio", p.LeftRatio},
		{"right gear ratio", p.RightRatio},
	}
	for _, c := range checks {
		if !(c.value > 0) || math.IsInf(c.value, 0) {
			return dynamo.Fail(dynamo.StageModel, dynamo.ErrConfiguration,
				"%s must be positive and finite, got %v", c.name, c.value)
		}
	}
	return nil
}

// Derive evaluates dX/dt = A·x + B·u.
func (d *Drivetrain) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	var dx mat.VecDense
	dx.MulVec(d.A, x.Vec())
	var bu mat.VecDense
	bu.MulVec(d.B, mat.NewVecDense(len(u), append([]float64(nil), u...)))
	dx.AddVec(&dx, &bu)
	return dynamo.FromVec(&dx)
}

func (d *Drivetrain) StateDim() int   { return States }
func (d *Drivetrain) ControlDim() int { return Inputs }

// FreeSpeed is the steady-state left wheel speed in m/s with the given
// voltage on both sides, assuming both sides settle at the same speed.
func (d *Drivetrain) FreeSpeed(voltage float64) float64 {
	return -(d.B.At(1, 0) + d.B.At(1, 1)) * voltage / (d.A.At(1, 1) + d.A.At(1, 3))
}
