// Package dynamo provides the primitives shared by every stage of a design run.
//
//   - [State]: state vector [left pos, left vel, right pos, right vel]
//   - [Control]: input vector [left voltage, right voltage]
//   - [System]: continuous-time plant (dX/dt = f(X, u, t))
//   - [Integrator]: numerical integrator for a [System]
//   - [Metric], [Observer]: hooks driven by the simulator
//
// # Errors
//
// Failures carry a [Stage] and one of [ErrConfiguration], [ErrModel],
// [ErrSolver] or [ErrExport]:
//
//	if errors.Is(err, dynamo.ErrSolver) {
//	    stage, _ := dynamo.StageOf(err) // "lqr" or "kalman"
//	}
package dynamo
