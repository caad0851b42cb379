package physics

import (
	"fmt"
	"math"
	"sort"
)

// Motor is a DC motor's electrical characteristic at its nominal voltage.
type Motor struct {
	Name           string
	NominalVoltage float64 // V
	StallTorque    float64 // N·m
	StallCurrent   float64 // A
	FreeCurrent    float64 // A
	FreeSpeed      float64 // rpm
}

var motors = map[string]Motor{
	"cim":     {Name: "cim", NominalVoltage: 12, StallTorque: 2.42, StallCurrent: 133, FreeCurrent: 2.7, FreeSpeed: 5310},
	"minicim": {Name: "minicim", NominalVoltage: 12, StallTorque: 1.41, StallCurrent: 89, FreeCurrent: 3, FreeSpeed: 5840},
	"775pro":  {Name: "775pro", NominalVoltage: 12, StallTorque: 0.71, StallCurrent: 134, FreeCurrent: 0.7, FreeSpeed: 18730},
	"neo":     {Name: "neo", NominalVoltage: 12, StallTorque: 2.6, StallCurrent: 105, FreeCurrent: 1.8, FreeSpeed: 5676},
}

// LookupMotor returns the named motor from the built-in table.
func LookupMotor(name string) (Motor, error) {
	m, ok := motors[name]
	if !ok {
		return Motor{}, fmt.Errorf("unknown motor %q (available: %v)", name, MotorNames())
	}
	return m, nil
}

func MotorNames() []string {
	names := make([]string, 0, len(motors))
	for name := range motors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Gearbox returns the equivalent single motor for n identical motors driving
// one shaft.
func (m Motor) Gearbox(n float64) Motor {
	g := m
	g.StallTorque *= n
	g.StallCurrent *= n
	g.FreeCurrent *= n
	return g
}

// Resistance is the winding resistance in ohms.
func (m Motor) Resistance() float64 {
	return m.NominalVoltage / m.StallCurrent
}

// Kv is the velocity constant in rad/s per volt.
func (m Motor) Kv() float64 {
	return m.FreeSpeed / 60 * 2 * math.Pi / (m.NominalVoltage - m.Resistance()*m.FreeCurrent)
}

// Kt is the torque constant in N·m per amp.
func (m Motor) Kt() float64 {
	return m.StallTorque / m.StallCurrent
}
