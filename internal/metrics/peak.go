package metrics

import (
	"fmt"
	"math"

	"github.com/san-kum/drivegain/internal/dynamo"
)

// Peak tracks the largest value one state element reaches.
type Peak struct {
	index int
	name  string
	max   float64
	seen  bool
}

func NewPeak(index int, label string) *Peak {
	return &Peak{index: index, name: fmt.Sprintf("peak_%s", label)}
}

func (p *Peak) Name() string { return p.name }

func (p *Peak) Observe(x dynamo.State, u dynamo.Control, t float64) {
	if p.index >= len(x) {
		return
	}
	if !p.seen || x[p.index] > p.max {
		p.max = x[p.index]
		p.seen = true
	}
}

func (p *Peak) Value() float64 {
	if !p.seen {
		return math.NaN()
	}
	return p.max
}

func (p *Peak) Reset() {
	p.max = 0
	p.seen = false
}
