// Package viz renders a designed loop for people.
//
// A [Renderer] draws the closed-loop time response and the pole-zero map:
//
//   - [SVG]: writes <name>_response.svg and <name>_pzmaps.svg with gonum/plot
//   - [Terminal]: shows asciigraph panels in a Bubble Tea program and blocks
//     until the user quits
//
// [Report] formats the gains for the console.
//
// # Key Bindings
//
//	Tab       - Next panel
//	Shift+Tab - Previous panel
//	Q, Esc    - Quit
package viz
