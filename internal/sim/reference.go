package sim

import "github.com/san-kum/drivegain/internal/dynamo"

// Segment holds Value for Start <= t < End.
type Segment struct {
	Start, End float64
	Value      dynamo.State
}

// StepReference samples a piecewise-constant reference of dimension n at dt
// over [0, horizon). Outside every segment the reference is zero; later
// segments win where they overlap.
func StepReference(n int, dt, horizon float64, segments ...Segment) []dynamo.State {
	if dt <= 0 || horizon <= 0 {
		return nil
	}
	count := int(horizon / dt)
	refs := make([]dynamo.State, count)
	for k := range refs {
		t := float64(k) * dt
		r := make(dynamo.State, n)
		for _, seg := range segments {
			if t >= seg.Start && t < seg.End {
				copy(r, seg.Value)
			}
		}
		refs[k] = r
	}
	return refs
}
