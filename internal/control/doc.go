// Package control designs the gains of a drivetrain position loop.
//
//   - [DesignLQR]: discrete LQR state feedback with input bounds
//   - [DesignTwoStateFeedforward]: reference feedforward on the velocity states
//   - [DesignKalman]: steady-state Kalman filter gain
//
// Weight vectors become matrices through a [Rule]. [RuleBryson] reads them
// as tolerances; [RuleDiagonal] uses them as given.
//
// # Usage
//
//	lqr, err := control.DesignLQR(ad, bd, w, control.RuleBryson, umin, umax)
//	u := lqr.Compute(x, r) // K(r − x), clamped
package control
