// Package physics builds continuous-time plant models from physical
// parameters.
//
//   - [Motor]: DC motor characteristic, with [Motor.Gearbox] for several
//     motors on one shaft
//   - [Drivetrain]: coupled left/right differential drive (A, B, C, D)
//
// [Drivetrain] implements [dynamo.System], so it can be integrated directly:
//
//	dt, _ := physics.NewDrivetrain(params)
//	x := integrators.NewRK4().Step(dt, x0, u, 0, 0.005)
package physics
