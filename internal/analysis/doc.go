// Package analysis computes the pole sets of a designed drivetrain loop.
//
// [Poles] collects the discrete open-loop, closed-loop and observer
// eigenvalues that the pole-zero map plots:
//
//	p, err := analysis.Poles(ad, bd, k, observer)
//	if p.Stable() {
//	    // every closed-loop and observer pole is inside the unit circle
//	}
package analysis
