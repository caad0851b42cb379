package viz

import (
	"github.com/san-kum/drivegain/internal/analysis"
	"github.com/san-kum/drivegain/internal/sim"
)

// Renderer draws the products of a design run. Implementations may defer
// output until RenderResponse.
type Renderer interface {
	RenderPoles(p *analysis.PoleSet) error
	RenderResponse(res *sim.Result) error
}

var (
	stateTitles = []string{"Left position", "Left velocity", "Right position", "Right velocity"}
	stateUnits  = []string{"m", "m/s", "m", "m/s"}
	inputTitles = []string{"Left voltage", "Right voltage"}
)
