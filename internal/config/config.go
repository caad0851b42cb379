package config

import (
	"bytes"
	"errors"
	"io"
	"math"
	"os"

	"github.com/san-kum/drivegain/internal/dynamo"
	"github.com/san-kum/drivegain/internal/physics"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDt      = 0.00505
	DefaultVoltage = 12.0
	DefaultHorizon = 10.2
	DefaultOutDir  = "Subsystems/"
	DefaultName    = "Drivetrain"
	DefaultLang    = "go"
	DefaultRule    = "bryson"
)

type Gear string

const (
	GearLow  Gear = "low"
	GearHigh Gear = "high"
)

type Config struct {
	Dt          float64          `yaml:"dt"`
	Gear        Gear             `yaml:"gear"`
	Rule        string           `yaml:"rule"`
	Voltage     float64          `yaml:"voltage"`
	Drivetrain  DrivetrainConfig `yaml:"drivetrain"`
	LQR         GearWeights      `yaml:"lqr"`
	Feedforward WeightConfig     `yaml:"feedforward"`
	Kalman      KalmanConfig     `yaml:"kalman"`
	Export      ExportConfig     `yaml:"export"`
	Simulation  SimulationConfig `yaml:"simulation"`
}

type DrivetrainConfig struct {
	Motor       string  `yaml:"motor"`
	Motors      float64 `yaml:"motors"`
	Mass        float64 `yaml:"mass"`
	WheelRadius float64 `yaml:"wheel_radius"`
	RobotRadius float64 `yaml:"robot_radius"`
	Inertia     float64 `yaml:"inertia"`
	LowRatio    float64 `yaml:"low_ratio"`
	HighRatio   float64 `yaml:"high_ratio"`
}

// WeightConfig is a symmetric weight set: the same position and velocity
// weight on both sides and one weight per input.
type WeightConfig struct {
	Pos   float64 `yaml:"pos"`
	Vel   float64 `yaml:"vel"`
	Input float64 `yaml:"input"`
}

// GearWeights selects LQR weights by gear.
type GearWeights struct {
	Low  WeightConfig `yaml:"low"`
	High WeightConfig `yaml:"high"`
}

// KalmanConfig holds standard deviations of the process and measurement
// noise. Voltage and EncoderUncertainty are accepted but unused by the
// four-state filter.
type KalmanConfig struct {
	Pos                float64 `yaml:"pos"`
	Vel                float64 `yaml:"vel"`
	Measurement        float64 `yaml:"measurement"`
	Voltage            float64 `yaml:"voltage,omitempty"`
	EncoderUncertainty float64 `yaml:"encoder_uncertainty,omitempty"`
}

type ExportConfig struct {
	Dir       string `yaml:"dir"`
	Name      string `yaml:"name"`
	Lang      string `yaml:"lang"`
	Table     bool   `yaml:"table"`
	CreateDir bool   `yaml:"create_dir"`
}

type SimulationConfig struct {
	Horizon float64    `yaml:"horizon"`
	Step    StepConfig `yaml:"step"`
	// Feedforward adds the feedforward input to the simulated loop.
	Feedforward bool `yaml:"feedforward"`
	// Estimator closes the loop on the Kalman estimate instead of the state.
	Estimator bool `yaml:"estimator"`
}

// StepConfig is a left-position step held on [Start, End).
type StepConfig struct {
	Start    float64 `yaml:"start"`
	End      float64 `yaml:"end"`
	Distance float64 `yaml:"distance"`
}

func DefaultConfig() *Config {
	return &Config{
		Dt:      DefaultDt,
		Gear:    GearHigh,
		Rule:    DefaultRule,
		Voltage: DefaultVoltage,
		Drivetrain: DrivetrainConfig{
			Motor:       "cim",
			Motors:      2,
			Mass:        52,
			WheelRadius: 0.08255 / 2,
			RobotRadius: 0.59055 / 2,
			Inertia:     6.0,
			LowRatio:    11.0 / 60.0,
			HighRatio:   11.0 / 60.0,
		},
		LQR: GearWeights{
			Low:  WeightConfig{Pos: 0.12, Vel: 1.0, Input: 12},
			High: WeightConfig{Pos: 0.14, Vel: 0.95, Input: 12},
		},
		Feedforward: WeightConfig{Pos: 0.005, Vel: 1.0, Input: 12},
		Kalman: KalmanConfig{
			Pos:                0.05,
			Vel:                1.0,
			Measurement:        0.0001,
			Voltage:            10.0,
			EncoderUncertainty: 2.0,
		},
		Export: ExportConfig{
			Dir:   DefaultOutDir,
			Name:  DefaultName,
			Lang:  DefaultLang,
			Table: true,
		},
		Simulation: SimulationConfig{
			Horizon: DefaultHorizon,
			Step:    StepConfig{Start: 0.1, End: 5.1, Distance: 1.524},
		},
	}
}

// Load reads a YAML file on top of the defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, dynamo.Fail(dynamo.StageConfig, dynamo.ErrConfiguration, "read %s: %w", path, err)
	}
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, dynamo.Fail(dynamo.StageConfig, dynamo.ErrConfiguration, "parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Ratio returns the gear ratio of the selected gear, applied to both sides.
func (c *Config) Ratio() float64 {
	if c.Gear == GearLow {
		return c.Drivetrain.LowRatio
	}
	return c.Drivetrain.HighRatio
}

// Params resolves the selected gear into a drivetrain model description.
func (c *Config) Params() physics.Params {
	g := c.Ratio()
	return physics.Params{
		Motor:       c.Drivetrain.Motor,
		Motors:      c.Drivetrain.Motors,
		Mass:        c.Drivetrain.Mass,
		WheelRadius: c.Drivetrain.WheelRadius,
		RobotRadius: c.Drivetrain.RobotRadius,
		Inertia:     c.Drivetrain.Inertia,
		LeftRatio:   g,
		RightRatio:  g,
	}
}

// LQRWeights returns the controller weights for the selected gear.
func (c *Config) LQRWeights() WeightConfig {
	if c.Gear == GearLow {
		return c.LQR.Low
	}
	return c.LQR.High
}

// State expands w into [pos, vel, pos, vel].
func (w WeightConfig) State() []float64 {
	return []float64{w.Pos, w.Vel, w.Pos, w.Vel}
}

// Inputs expands w into one weight per side.
func (w WeightConfig) Inputs() []float64 {
	return []float64{w.Input, w.Input}
}

func (k KalmanConfig) State() []float64 {
	return []float64{k.Pos, k.Vel, k.Pos, k.Vel}
}

func (k KalmanConfig) Outputs() []float64 {
	return []float64{k.Measurement, k.Measurement}
}

// Bounds returns the symmetric input limits.
func (c *Config) Bounds() (umin, umax dynamo.Control) {
	return dynamo.Control{-c.Voltage, -c.Voltage}, dynamo.Control{c.Voltage, c.Voltage}
}

// Validate checks every setting the pipeline consumes. It does not check the
// motor name or the export identifier; the model and exporter report those.
func (c *Config) Validate() error {
	positive := []struct {
		name  string
		value float64
	}{
		{"dt", c.Dt},
		{"voltage", c.Voltage},
		{"drivetrain.motors", c.Drivetrain.Motors},
		{"drivetrain.mass", c.Drivetrain.Mass},
		{"drivetrain.wheel_radius", c.Drivetrain.WheelRadius},
		{"drivetrain.robot_radius", c.Drivetrain.RobotRadius},
		{"drivetrain.inertia", c.Drivetrain.Inertia},
		{"drivetrain.low_ratio", c.Drivetrain.LowRatio},
		{"drivetrain.high_ratio", c.Drivetrain.HighRatio},
		{"lqr.low.pos", c.LQR.Low.Pos},
		{"lqr.low.vel", c.LQR.Low.Vel},
		{"lqr.low.input", c.LQR.Low.Input},
		{"lqr.high.pos", c.LQR.High.Pos},
		{"lqr.high.vel", c.LQR.High.Vel},
		{"lqr.high.input", c.LQR.High.Input},
		{"feedforward.pos", c.Feedforward.Pos},
		{"feedforward.vel", c.Feedforward.Vel},
		{"feedforward.input", c.Feedforward.Input},
		{"kalman.pos", c.Kalman.Pos},
		{"kalman.vel", c.Kalman.Vel},
		{"kalman.measurement", c.Kalman.Measurement},
		{"simulation.horizon", c.Simulation.Horizon},
	}
	for _, p := range positive {
		if !(p.value > 0) || math.IsInf(p.value, 0) {
			return dynamo.Fail(dynamo.StageConfig, dynamo.ErrConfiguration,
				"%s must be positive and finite, got %v", p.name, p.value)
		}
	}

	switch c.Gear {
	case GearLow, GearHigh:
	default:
		return dynamo.Fail(dynamo.StageConfig, dynamo.ErrConfiguration,
			"gear must be %q or %q, got %q", GearLow, GearHigh, c.Gear)
	}
	switch c.Rule {
	case "bryson", "diagonal":
	default:
		return dynamo.Fail(dynamo.StageConfig, dynamo.ErrConfiguration,
			"rule must be bryson or diagonal, got %q", c.Rule)
	}
	switch c.Export.Lang {
	case "go", "cpp":
	default:
		return dynamo.Fail(dynamo.StageConfig, dynamo.ErrConfiguration,
			"export.lang must be go or cpp, got %q", c.Export.Lang)
	}

	s := c.Simulation.Step
	if s.Start < 0 || s.End < s.Start || math.IsNaN(s.Distance) || math.IsInf(s.Distance, 0) {
		return dynamo.Fail(dynamo.StageConfig, dynamo.ErrConfiguration,
			"simulation.step must satisfy 0 <= start <= end with a finite distance, got %+v", s)
	}
	if c.Simulation.Horizon < c.Dt {
		return dynamo.Fail(dynamo.StageConfig, dynamo.ErrConfiguration,
			"simulation.horizon %v is shorter than one step", c.Simulation.Horizon)
	}
	return nil
}
