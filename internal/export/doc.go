// Package export writes designed gains as generated source.
//
// Go targets produce <dir>/<snake name>_coeffs.go with fixed-size array
// literals; C++ targets produce <Name>Coeffs.h and <Name>Coeffs.cpp with
// Eigen element assignments. Every literal is printed with %.16e so
// [ParseMatrix] reads back the exact float64.
package export
