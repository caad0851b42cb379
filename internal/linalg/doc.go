// Package linalg holds the control-theory numerics behind a design run:
// zero-order-hold discretization ([Discretize]), the discrete algebraic
// Riccati solver ([SolveDARE]) and eigenvalue helpers. It knows nothing
// about drivetrains; callers pass matrices in and get matrices out.
package linalg
