package control

import (
	"fmt"
	"math"

	"github.com/san-kum/drivegain/internal/linalg"
	"gonum.org/v1/gonum/mat"
)

// Rule turns a weight vector into a diagonal cost or covariance matrix.
type Rule string

const (
	// RuleBryson treats weights as tolerances: costs are 1/w², covariances w².
	RuleBryson Rule = "bryson"
	// RuleDiagonal uses the weights as the diagonal directly.
	RuleDiagonal Rule = "diagonal"
)

func ParseRule(s string) (Rule, error) {
	switch Rule(s) {
	case RuleBryson, RuleDiagonal:
		return Rule(s), nil
	case "":
		return RuleBryson, nil
	}
	return "", fmt.Errorf("unknown weighting rule %q (want %q or %q)", s, RuleBryson, RuleDiagonal)
}

// Weights holds the state and input weight vectors of one designer.
type Weights struct {
	Q []float64
	R []float64
}

// Cost returns the LQR-style cost matrix for w.
func (r Rule) Cost(w []float64) (*mat.Dense, error) {
	if err := checkWeights(w); err != nil {
		return nil, err
	}
	d := make([]float64, len(w))
	for i, v := range w {
		if r == RuleDiagonal {
			d[i] = v
		} else {
			d[i] = 1 / (v * v)
		}
	}
	return linalg.Diag(d), nil
}

// Covariance returns the noise covariance matrix for w.
func (r Rule) Covariance(w []float64) (*mat.Dense, error) {
	if err := checkWeights(w); err != nil {
		return nil, err
	}
	d := make([]float64, len(w))
	for i, v := range w {
		if r == RuleDiagonal {
			d[i] = v
		} else {
			d[i] = v * v
		}
	}
	return linalg.Diag(d), nil
}

func checkWeights(w []float64) error {
	if len(w) == 0 {
		return fmt.Errorf("empty weight vector")
	}
	for i, v := range w {
		if !(v > 0) || math.IsInf(v, 0) {
			return fmt.Errorf("weight %d must be positive and finite, got %v", i, v)
		}
	}
	return nil
}
