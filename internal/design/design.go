package design

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/san-kum/drivegain/internal/analysis"
	"github.com/san-kum/drivegain/internal/config"
	"github.com/san-kum/drivegain/internal/control"
	"github.com/san-kum/drivegain/internal/dynamo"
	"github.com/san-kum/drivegain/internal/export"
	"github.com/san-kum/drivegain/internal/integrators"
	"github.com/san-kum/drivegain/internal/linalg"
	"github.com/san-kum/drivegain/internal/metrics"
	"github.com/san-kum/drivegain/internal/physics"
	"github.com/san-kum/drivegain/internal/sim"
	"github.com/san-kum/drivegain/internal/viz"
	"gonum.org/v1/gonum/mat"
)

const (
	// maxResidual bounds the gap between one exact discrete step and a fine
	// RK4 integration of the continuous plant, relative to the step's size.
	maxResidual   = 1e-9
	residualSteps = 200
)

// Design is the immutable output of one run: the plant and every gain
// designed for it.
type Design struct {
	Config config.Config
	Rule   control.Rule

	Plant       *physics.Drivetrain
	Ad, Bd      *mat.Dense
	LQR         *control.LQR
	Feedforward *control.Feedforward
	Kalman      *control.Kalman
	Poles       *analysis.PoleSet

	// Residual is the largest relative discretization error seen by the RK4
	// check.
	Residual float64

	log *slog.Logger
}

// New runs model, discretize, lqr, feedforward and kalman in order and stops
// at the first failure. A nil logger uses slog.Default.
func New(cfg *config.Config, log *slog.Logger) (*Design, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rule, err := control.ParseRule(cfg.Rule)
	if err != nil {
		return nil, dynamo.Fail(dynamo.StageConfig, dynamo.ErrConfiguration, "%v", err)
	}
	d := &Design{Config: *cfg, Rule: rule, log: log}

	d.Plant, err = physics.NewDrivetrain(cfg.Params())
	if err != nil {
		return nil, err
	}
	log.Debug("model built", "motor", cfg.Drivetrain.Motor, "gear", cfg.Gear, "free_speed", d.Plant.FreeSpeed(cfg.Voltage))

	d.Ad, d.Bd, err = linalg.Discretize(d.Plant.A, d.Plant.B, cfg.Dt)
	if err != nil {
		return nil, dynamo.Fail(dynamo.StageDiscretize, dynamo.ErrConfiguration, "%w", err)
	}
	d.Residual = residual(d.Plant, d.Ad, d.Bd, cfg.Dt, residualProbes)
	if !(d.Residual <= maxResidual) {
		return nil, dynamo.Fail(dynamo.StageDiscretize, dynamo.ErrModel,
			"discrete step disagrees with integration by %.3g (relative)", d.Residual)
	}
	log.Debug("discretized", "dt", cfg.Dt, "residual", d.Residual)

	umin, umax := cfg.Bounds()
	lw := cfg.LQRWeights()
	d.LQR, err = control.DesignLQR(d.Ad, d.Bd, control.Weights{Q: lw.State(), R: lw.Inputs()}, rule, umin, umax)
	if err != nil {
		return nil, err
	}
	log.Debug("lqr designed", "k00", d.LQR.K.At(0, 0), "k02", d.LQR.K.At(0, 2))

	fw := cfg.Feedforward
	d.Feedforward, err = control.DesignTwoStateFeedforward(d.Ad, d.Bd, control.Weights{Q: fw.State(), R: fw.Inputs()}, rule)
	if err != nil {
		return nil, err
	}
	log.Debug("feedforward designed")

	kw := cfg.Kalman
	d.Kalman, err = control.DesignKalman(d.Ad, d.Bd, d.Plant.C, control.Weights{Q: kw.State(), R: kw.Outputs()}, rule)
	if err != nil {
		return nil, err
	}
	log.Debug("kalman designed", "l00", d.Kalman.L.At(0, 0))

	d.Poles, err = analysis.Poles(d.Ad, d.Bd, d.LQR.K, d.Kalman.ObserverMatrix())
	if err != nil {
		return nil, dynamo.Fail(dynamo.StageKalman, dynamo.ErrSolver, "poles: %w", err)
	}
	return d, nil
}

type probe struct {
	x dynamo.State
	u dynamo.Control
}

var residualProbes = []probe{
	{dynamo.State{0.1, 1.0, -0.2, 0.5}, dynamo.Control{6, -3}},
	{dynamo.State{0, 0, 0, 0}, dynamo.Control{12, 12}},
	{dynamo.State{1.5, -2, 1.5, 2}, dynamo.Control{0, 0}},
}

// residual compares Ad·x + Bd·u with RK4 of the continuous plant over one
// sample and returns the worst error relative to the size of the RK4 step
// result.
func residual(plant *physics.Drivetrain, ad, bd *mat.Dense, dt float64, probes []probe) float64 {
	rk4 := integrators.NewRK4()
	worst := 0.0
	for _, p := range probes {
		want := integrators.Hold(rk4, plant, p.x, p.u, dt, residualSteps)
		var ax, bu mat.VecDense
		ax.MulVec(ad, p.x.Vec())
		bu.MulVec(bd, dynamo.State(p.u).Vec())
		ax.AddVec(&ax, &bu)
		diff := dynamo.FromVec(&ax).Sub(want).Norm()
		if scale := want.Norm(); scale > 0 {
			diff /= scale
		}
		worst = math.Max(worst, diff)
	}
	return worst
}

// Coefficients collects everything the exporter can write.
func (d *Design) Coefficients() *export.Coefficients {
	umin, umax := d.Config.Bounds()
	return &export.Coefficients{
		Dt:          d.Config.Dt,
		Acontinuous: d.Plant.A,
		Bcontinuous: d.Plant.B,
		A:           d.Ad,
		B:           d.Bd,
		C:           d.Plant.C,
		D:           d.Plant.D,
		K:           d.LQR.K,
		Kff:         d.Feedforward.Kff,
		Umin:        umin,
		Umax:        umax,
		L:           d.Kalman.L,
		P:           d.Kalman.P,
		Q:           d.Kalman.Q,
		R:           d.Kalman.R,
	}
}

// ExportOptions maps the export settings of the run's configuration.
func (d *Design) ExportOptions() export.Options {
	e := d.Config.Export
	return export.Options{
		Dir:       e.Dir,
		Name:      e.Name,
		Lang:      export.Lang(e.Lang),
		Table:     e.Table,
		CreateDir: e.CreateDir,
	}
}

func (d *Design) Export() ([]string, error) {
	return export.Write(d.Coefficients(), d.ExportOptions())
}

// Loop returns the simulation loop for the design.
func (d *Design) Loop() sim.Loop {
	return sim.Loop{
		Ad:          d.Ad,
		Bd:          d.Bd,
		LQR:         d.LQR,
		Feedforward: d.Feedforward,
		Kalman:      d.Kalman,
		Estimate:    d.Config.Simulation.Estimator,
	}
}

// References samples the configured step profile.
func (d *Design) References() []dynamo.State {
	s := d.Config.Simulation.Step
	return sim.StepReference(physics.States, d.Config.Dt, d.Config.Simulation.Horizon, sim.Segment{
		Start: s.Start,
		End:   s.End,
		Value: dynamo.State{s.Distance, 0, 0, 0},
	})
}

// Simulate runs the closed loop from rest against References.
func (d *Design) Simulate(ctx context.Context) (*sim.Result, error) {
	loop := d.Loop()
	if !d.Config.Simulation.Feedforward {
		loop.Feedforward = nil
	}
	s := sim.New(loop, d.Config.Dt)
	umin, umax := d.Config.Bounds()
	s.AddMetric(metrics.NewControlEffort())
	s.AddMetric(metrics.NewSaturation(umin, umax))
	s.AddMetric(metrics.NewPeak(0, "left_position"))
	s.AddMetric(metrics.NewStability(1e3))
	s.AddObserver(newSaturationLog(d.log, umin, umax))
	return s.Run(ctx, make(dynamo.State, physics.States), d.References())
}

// Summary gathers the gains and headline numbers of the design for the
// report. res and files may be empty.
func (d *Design) Summary(res *sim.Result, files []string) viz.Summary {
	return viz.Summary{
		Title: fmt.Sprintf("%s (%s gear, %s)", d.Config.Export.Name, d.Config.Gear, d.Rule),
		Gains: []viz.Gain{
			{Name: "K", M: d.LQR.K},
			{Name: "Kff", M: d.Feedforward.Kff},
			{Name: "L", M: d.Kalman.L},
		},
		Figures:  d.figures(res),
		Position: position(res),
		Files:    files,
	}
}

func position(res *sim.Result) []float64 {
	if res == nil {
		return nil
	}
	return res.Column(0)
}

func (d *Design) figures(res *sim.Result) []viz.Figure {
	cl := analysis.Radius(d.Poles.ClosedLoop)
	obs := analysis.Radius(d.Poles.Observer)
	figs := []viz.Figure{
		{Label: "closed-loop spectral radius", Value: fmt.Sprintf("%.6f", cl), OK: cl < 1},
		{Label: "observer spectral radius", Value: fmt.Sprintf("%.6f", obs), OK: obs < 1},
		{Label: "discretization residual", Value: fmt.Sprintf("%.3g", d.Residual), OK: d.Residual <= maxResidual},
		{Label: "free speed", Value: fmt.Sprintf("%.3f m/s", d.Plant.FreeSpeed(d.Config.Voltage)), OK: true},
	}
	if res != nil {
		target := d.Config.Simulation.Step.Distance
		over := res.Overshoot(0, target)
		figs = append(figs,
			viz.Figure{Label: "overshoot", Value: fmt.Sprintf("%.4g m", over), OK: over <= 1e-3*math.Max(1, math.Abs(target))},
			viz.Figure{Label: "saturated samples", Value: fmt.Sprintf("%.1f%%", 100*res.Metrics["saturation"]), OK: true},
			viz.Figure{Label: "rms voltage", Value: fmt.Sprintf("%.3f V", res.Metrics["rms_voltage"]), OK: true},
		)
	}
	return figs
}
