package linalg

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrSingular      = errors.New("linalg: matrix is singular")
	ErrNoConvergence = errors.New("linalg: iteration did not converge")
	ErrNotFinite     = errors.New("linalg: result contains NaN or Inf")
	ErrDimension     = errors.New("linalg: dimension mismatch")
)

// Identity returns the n×n identity as a dense matrix.
func Identity(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// Diag returns a dense matrix with v on the diagonal.
func Diag(v []float64) *mat.Dense {
	m := mat.NewDense(len(v), len(v), nil)
	for i, x := range v {
		m.Set(i, i, x)
	}
	return m
}

// Sub copies the rows and cols of m selected by index into a new matrix.
func Sub(m mat.Matrix, rows, cols []int) *mat.Dense {
	out := mat.NewDense(len(rows), len(cols), nil)
	for i, r := range rows {
		for j, c := range cols {
			out.Set(i, j, m.At(r, c))
		}
	}
	return out
}

// IsFinite reports whether every element of m is a finite number.
func IsFinite(m mat.Matrix) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

// Rows returns the elements of m as row-major slices.
func Rows(m mat.Matrix) [][]float64 {
	r, c := m.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = make([]float64, c)
		for j := range out[i] {
			out[i][j] = m.At(i, j)
		}
	}
	return out
}

// Eigenvalues returns the eigenvalues of the square matrix a.
func Eigenvalues(a mat.Matrix) ([]complex128, error) {
	r, c := a.Dims()
	if r != c {
		return nil, fmt.Errorf("%w: eigenvalues of %dx%d matrix", ErrDimension, r, c)
	}
	var eig mat.Eigen
	if ok := eig.Factorize(a, mat.EigenNone); !ok {
		return nil, fmt.Errorf("%w: eigen decomposition", ErrNoConvergence)
	}
	return eig.Values(nil), nil
}

// SpectralRadius returns the largest eigenvalue magnitude of a.
func SpectralRadius(a mat.Matrix) (float64, error) {
	vals, err := Eigenvalues(a)
	if err != nil {
		return 0, err
	}
	rho := 0.0
	for _, v := range vals {
		rho = math.Max(rho, cmplx.Abs(v))
	}
	return rho, nil
}

func solve(dst *mat.Dense, a, b mat.Matrix) error {
	if err := dst.Solve(a, b); err != nil {
		return fmt.Errorf("%w: %v", ErrSingular, err)
	}
	return nil
}
