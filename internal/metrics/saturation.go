package metrics

import "github.com/san-kum/drivegain/internal/dynamo"

// Saturation is the fraction of samples with at least one input on a bound.
type Saturation struct {
	lo, hi    dynamo.Control
	saturated int
	samples   int
}

func NewSaturation(lo, hi dynamo.Control) *Saturation {
	return &Saturation{lo: lo, hi: hi}
}

func (s *Saturation) Name() string { return "saturation" }

func (s *Saturation) Observe(x dynamo.State, u dynamo.Control, t float64) {
	s.samples++
	if u.Saturated(s.lo, s.hi) {
		s.saturated++
	}
}

func (s *Saturation) Value() float64 {
	if s.samples == 0 {
		return 0
	}
	return float64(s.saturated) / float64(s.samples)
}

func (s *Saturation) Reset() {
	s.saturated = 0
	s.samples = 0
}
