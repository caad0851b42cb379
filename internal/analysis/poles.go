package analysis

import (
	"math/cmplx"
	"sort"

	"github.com/san-kum/drivegain/internal/control"
	"github.com/san-kum/drivegain/internal/linalg"
	"gonum.org/v1/gonum/mat"
)

// PoleSet holds the discrete poles of one design, each set sorted by
// descending magnitude.
type PoleSet struct {
	OpenLoop   []complex128
	ClosedLoop []complex128
	Observer   []complex128
}

// Poles returns the eigenvalues of Ad, Ad − Bd·K and, when observer is not
// nil, of the observer error matrix.
func Poles(ad, bd, k *mat.Dense, observer mat.Matrix) (*PoleSet, error) {
	open, err := linalg.Eigenvalues(ad)
	if err != nil {
		return nil, err
	}
	closed, err := linalg.Eigenvalues(control.ClosedLoop(ad, bd, k))
	if err != nil {
		return nil, err
	}
	p := &PoleSet{OpenLoop: byMagnitude(open), ClosedLoop: byMagnitude(closed)}
	if observer != nil {
		obs, err := linalg.Eigenvalues(observer)
		if err != nil {
			return nil, err
		}
		p.Observer = byMagnitude(obs)
	}
	return p, nil
}

// Radius returns the largest pole magnitude in poles.
func Radius(poles []complex128) float64 {
	rho := 0.0
	for _, z := range poles {
		if a := cmplx.Abs(z); a > rho {
			rho = a
		}
	}
	return rho
}

// Stable reports whether every closed-loop and observer pole lies strictly
// inside the unit circle.
func (p *PoleSet) Stable() bool {
	return Radius(p.ClosedLoop) < 1 && Radius(p.Observer) < 1
}

// Continuous maps discrete poles z to s = ln(z)/dt. A pole at the origin
// maps to -Inf.
func Continuous(poles []complex128, dt float64) []complex128 {
	out := make([]complex128, len(poles))
	for i, z := range poles {
		out[i] = cmplx.Log(z) / complex(dt, 0)
	}
	return out
}

func byMagnitude(z []complex128) []complex128 {
	sort.SliceStable(z, func(i, j int) bool {
		ai, aj := cmplx.Abs(z[i]), cmplx.Abs(z[j])
		if ai != aj {
			return ai > aj
		}
		return imag(z[i]) > imag(z[j])
	})
	return z
}
