package optim

import (
	"context"
	"maps"
	"math"

	"github.com/san-kum/drivegain/internal/config"
	"github.com/san-kum/drivegain/internal/design"
	"github.com/san-kum/drivegain/internal/dynamo"
	"github.com/san-kum/drivegain/internal/sim"
)

// Setter writes one searched value into a configuration.
type Setter func(cfg *config.Config, v float64)

// Weight setters for the gear the configuration selects.
var Setters = map[string]Setter{
	"lqr.pos":            func(c *config.Config, v float64) { gearWeights(c).Pos = v },
	"lqr.vel":            func(c *config.Config, v float64) { gearWeights(c).Vel = v },
	"lqr.input":          func(c *config.Config, v float64) { gearWeights(c).Input = v },
	"kalman.pos":         func(c *config.Config, v float64) { c.Kalman.Pos = v },
	"kalman.vel":         func(c *config.Config, v float64) { c.Kalman.Vel = v },
	"kalman.measurement": func(c *config.Config, v float64) { c.Kalman.Measurement = v },
}

func gearWeights(c *config.Config) *config.WeightConfig {
	if c.Gear == config.GearLow {
		return &c.LQR.Low
	}
	return &c.LQR.High
}

// GridSearch designs and simulates every point of a full factorial grid and
// keeps the one with the lowest metric. Points whose design or simulation
// fails, or whose step response overshoots by more than MaxOvershoot, are
// skipped.
type GridSearch struct {
	paramNames   []string
	ranges       [][]float64
	MaxOvershoot float64
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges, MaxOvershoot: 1e-3}
}

// Best is the winning grid point.
type Best struct {
	Params    map[string]float64
	Value     float64
	Design    *design.Design
	Evaluated int
	Rejected  int
}

func (g *GridSearch) Search(ctx context.Context, base *config.Config, metricName string) (*Best, error) {
	if len(g.paramNames) != len(g.ranges) {
		return nil, dynamo.Fail(dynamo.StageConfig, dynamo.ErrConfiguration,
			"%d parameters but %d ranges", len(g.paramNames), len(g.ranges))
	}
	for i, p := range g.paramNames {
		if _, ok := Setters[p]; !ok {
			return nil, dynamo.Fail(dynamo.StageConfig, dynamo.ErrConfiguration, "cannot search %q", p)
		}
		if len(g.ranges[i]) == 0 {
			return nil, dynamo.Fail(dynamo.StageConfig, dynamo.ErrConfiguration, "empty range for %q", p)
		}
	}

	best := &Best{Value: math.Inf(1)}
	g.searchRecursive(ctx, 0, map[string]float64{}, base, metricName, best)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if best.Params == nil {
		return best, dynamo.Fail(dynamo.StageSimulate, dynamo.ErrSolver,
			"none of %d grid points met the overshoot bound", best.Evaluated)
	}
	return best, nil
}

func (g *GridSearch) searchRecursive(ctx context.Context, depth int, current map[string]float64, base *config.Config, metricName string, best *Best) {
	if ctx.Err() != nil {
		return
	}
	if depth == len(g.paramNames) {
		best.Evaluated++
		d, res, ok := g.evaluate(ctx, current, base)
		if !ok {
			best.Rejected++
			return
		}
		val, found := res.Metrics[metricName]
		if !found || math.IsNaN(val) {
			best.Rejected++
			return
		}
		if val < best.Value {
			best.Value = val
			best.Params = maps.Clone(current)
			best.Design = d
		}
		return
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := maps.Clone(current)
		newParams[paramName] = val
		g.searchRecursive(ctx, depth+1, newParams, base, metricName, best)
	}
}

func (g *GridSearch) evaluate(ctx context.Context, params map[string]float64, base *config.Config) (*design.Design, *sim.Result, bool) {
	cfg := *base
	for name, v := range params {
		Setters[name](&cfg, v)
	}
	d, err := design.New(&cfg, nil)
	if err != nil {
		return nil, nil, false
	}
	res, err := d.Simulate(ctx)
	if err != nil {
		return nil, nil, false
	}
	if res.Overshoot(0, cfg.Simulation.Step.Distance) > g.MaxOvershoot {
		return nil, nil, false
	}
	return d, res, true
}

// Linspace returns n evenly spaced values from lo to hi inclusive.
func Linspace(lo, hi float64, n int) []float64 {
	if n <= 1 {
		return []float64{lo}
	}
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	return out
}
