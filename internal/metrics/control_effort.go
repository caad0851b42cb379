package metrics

import (
	"math"

	"github.com/san-kum/drivegain/internal/dynamo"
)

// ControlEffort is the RMS input voltage over all inputs and samples.
type ControlEffort struct {
	sumSq float64
	count int
}

func NewControlEffort() *ControlEffort {
	return &ControlEffort{}
}

func (c *ControlEffort) Name() string { return "rms_voltage" }

func (c *ControlEffort) Observe(x dynamo.State, u dynamo.Control, t float64) {
	for _, v := range u {
		c.sumSq += v * v
		c.count++
	}
}

func (c *ControlEffort) Value() float64 {
	if c.count == 0 {
		return 0
	}
	return math.Sqrt(c.sumSq / float64(c.count))
}

func (c *ControlEffort) Reset() {
	c.sumSq = 0
	c.count = 0
}
