package design

import (
	"log/slog"

	"github.com/san-kum/drivegain/internal/dynamo"
)

// saturationLog logs each stretch of samples where an input sits on its
// voltage limit.
type saturationLog struct {
	log    *slog.Logger
	lo, hi dynamo.Control

	on    bool
	since float64
}

func newSaturationLog(log *slog.Logger, lo, hi dynamo.Control) *saturationLog {
	return &saturationLog{log: log, lo: lo, hi: hi}
}

func (s *saturationLog) OnStep(x dynamo.State, u dynamo.Control, t float64) {
	sat := u.Saturated(s.lo, s.hi)
	switch {
	case sat && !s.on:
		s.on, s.since = true, t
		s.log.Debug("saturation began", "t", t, "left", u[0], "right", u[1])
	case !sat && s.on:
		s.on = false
		s.log.Debug("saturation ended", "t", t, "duration", t-s.since)
	}
}
