package analysis

import (
	"math"
	"math/cmplx"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestPoles(t *testing.T) {
	// Discrete double integrator with a deadbeat-ish gain.
	ad := mat.NewDense(2, 2, []float64{1, 0.1, 0, 1})
	bd := mat.NewDense(2, 1, []float64{0.005, 0.1})
	k := mat.NewDense(1, 2, []float64{20, 6})

	p, err := Poles(ad, bd, k, nil)
	if err != nil {
		t.Fatalf("poles failed: %v", err)
	}

	if len(p.OpenLoop) != 2 || len(p.ClosedLoop) != 2 {
		t.Fatalf("expected 2 poles each, got %d and %d", len(p.OpenLoop), len(p.ClosedLoop))
	}
	for _, z := range p.OpenLoop {
		if cmplx.Abs(z-1) > 1e-6 {
			t.Errorf("double integrator pole should be 1, got %v", z)
		}
	}
	if r := Radius(p.ClosedLoop); r >= 1 {
		t.Errorf("closed loop radius %v", r)
	}
	if Radius(p.Observer) != 0 {
		t.Error("no observer should give no observer poles")
	}
	if !p.Stable() {
		t.Error("expected stable design")
	}
}

func TestPolesSorted(t *testing.T) {
	ad := mat.NewDense(3, 3, []float64{0.2, 0, 0, 0, 0.9, 0, 0, 0, -0.5})
	bd := mat.NewDense(3, 1, nil)
	k := mat.NewDense(1, 3, nil)

	p, err := Poles(ad, bd, k, ad)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{0.9, -0.5, 0.2}
	for i, z := range p.Observer {
		if math.Abs(real(z)-want[i]) > 1e-12 {
			t.Errorf("pole %d: expected %v, got %v", i, want[i], z)
		}
	}
}

func TestContinuous(t *testing.T) {
	dt := 0.01
	s := Continuous([]complex128{complex(math.Exp(-2*dt), 0)}, dt)
	if cmplx.Abs(s[0]-complex(-2, 0)) > 1e-9 {
		t.Errorf("expected -2, got %v", s[0])
	}
}
