package viz

import (
	"fmt"
	"image/color"
	"math"
	"math/cmplx"
	"os"
	"path/filepath"

	"github.com/san-kum/drivegain/internal/analysis"
	"github.com/san-kum/drivegain/internal/dynamo"
	"github.com/san-kum/drivegain/internal/sim"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgsvg"
)

var (
	stateColor = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	refColor   = color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}
	inputColor = color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff}
	gridColor  = color.Gray{Y: 0xdd}
)

// SVG writes figures into Dir as <Prefix>_response.svg and
// <Prefix>_pzmaps.svg.
type SVG struct {
	Dir    string
	Prefix string
}

func NewSVG(dir, prefix string) *SVG {
	return &SVG{Dir: dir, Prefix: prefix}
}

func (s *SVG) ResponsePath() string { return filepath.Join(s.Dir, s.Prefix+"_response.svg") }
func (s *SVG) PolesPath() string    { return filepath.Join(s.Dir, s.Prefix+"_pzmaps.svg") }

// RenderResponse draws each state against its reference and each input,
// one panel per signal.
func (s *SVG) RenderResponse(res *sim.Result) error {
	if res == nil || len(res.States) == 0 {
		return dynamo.Fail(dynamo.StageRender, dynamo.ErrConfiguration, "no response to render")
	}

	panels := make([][]*plot.Plot, 3)
	for row := range panels {
		panels[row] = make([]*plot.Plot, 2)
	}
	for i := range stateTitles {
		p, err := signalPlot(stateTitles[i], stateUnits[i], res.Times, res.Column(i), refColumn(res, i), stateColor)
		if err != nil {
			return dynamo.Fail(dynamo.StageRender, dynamo.ErrConfiguration, "%s: %w", stateTitles[i], err)
		}
		panels[i/2][i%2] = p
	}
	for i := range inputTitles {
		p, err := signalPlot(inputTitles[i], "V", res.Times, res.Input(i), nil, inputColor)
		if err != nil {
			return dynamo.Fail(dynamo.StageRender, dynamo.ErrConfiguration, "%s: %w", inputTitles[i], err)
		}
		panels[2][i] = p
	}

	const w, h = 11 * vg.Inch, 10 * vg.Inch
	img := vgsvg.New(w, h)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows: 3, Cols: 2,
		PadX: vg.Millimeter * 4, PadY: vg.Millimeter * 4,
		PadTop: vg.Millimeter * 2, PadBottom: vg.Millimeter * 2,
		PadLeft: vg.Millimeter * 2, PadRight: vg.Millimeter * 2,
	}
	canvases := plot.Align(panels, tiles, dc)
	for j := range panels {
		for i := range panels[j] {
			panels[j][i].Draw(canvases[j][i])
		}
	}

	return writeCanvas(s.ResponsePath(), img)
}

// RenderPoles draws open-loop, closed-loop and observer poles with the unit
// circle.
func (s *SVG) RenderPoles(ps *analysis.PoleSet) error {
	if ps == nil {
		return dynamo.Fail(dynamo.StageRender, dynamo.ErrConfiguration, "no poles to render")
	}

	p := plot.New()
	p.Title.Text = "Pole-zero map"
	p.X.Label.Text = "Real"
	p.Y.Label.Text = "Imaginary"
	p.X.Min, p.X.Max = -1.2, 1.2
	p.Y.Min, p.Y.Max = -1.2, 1.2
	p.Add(plotter.NewGrid())

	circle := make(plotter.XYs, 201)
	for i := range circle {
		a := 2 * math.Pi * float64(i) / float64(len(circle)-1)
		circle[i].X, circle[i].Y = math.Cos(a), math.Sin(a)
	}
	unit, err := plotter.NewLine(circle)
	if err != nil {
		return dynamo.Fail(dynamo.StageRender, dynamo.ErrConfiguration, "unit circle: %w", err)
	}
	unit.LineStyle.Color = color.Gray{Y: 0x80}
	unit.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
	p.Add(unit)

	sets := []struct {
		label string
		poles []complex128
		shape draw.GlyphDrawer
		color color.Color
	}{
		{"Open loop", ps.OpenLoop, draw.PlusGlyph{}, color.Gray{Y: 0x40}},
		{"Closed loop", ps.ClosedLoop, draw.CrossGlyph{}, stateColor},
		{"Observer", ps.Observer, draw.CircleGlyph{}, refColor},
	}
	for _, set := range sets {
		if len(set.poles) == 0 {
			continue
		}
		sc, err := plotter.NewScatter(complexXYs(set.poles))
		if err != nil {
			return dynamo.Fail(dynamo.StageRender, dynamo.ErrConfiguration, "%s poles: %w", set.label, err)
		}
		sc.GlyphStyle.Shape = set.shape
		sc.GlyphStyle.Color = set.color
		sc.GlyphStyle.Radius = vg.Points(4)
		p.Add(sc)
		p.Legend.Add(set.label, sc)
	}
	p.Legend.Top = true

	if err := ensureDir(s.Dir); err != nil {
		return err
	}
	if err := p.Save(7*vg.Inch, 7*vg.Inch, s.PolesPath()); err != nil {
		return dynamo.Fail(dynamo.StageRender, dynamo.ErrExport, "save %s: %w", s.PolesPath(), err)
	}
	return nil
}

func signalPlot(title, unit string, t, y, ref []float64, c color.Color) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = fmt.Sprintf("%s (%s)", title, unit)
	grid := plotter.NewGrid()
	grid.Horizontal.Color = gridColor
	grid.Vertical.Color = gridColor
	p.Add(grid)

	line, err := plotter.NewLine(xys(t, y))
	if err != nil {
		return nil, err
	}
	line.LineStyle.Color = c
	line.LineStyle.Width = vg.Points(1.5)
	p.Add(line)
	p.Legend.Add("State", line)

	if ref != nil {
		rl, err := plotter.NewLine(xys(t, ref))
		if err != nil {
			return nil, err
		}
		rl.LineStyle.Color = refColor
		rl.LineStyle.Dashes = []vg.Length{vg.Points(5), vg.Points(3)}
		p.Add(rl)
		p.Legend.Add("Reference", rl)
	} else {
		p.Legend.Add("Input", line)
	}
	p.Legend.Top = true
	return p, nil
}

func refColumn(res *sim.Result, index int) []float64 {
	if len(res.Refs) != len(res.States) {
		return nil
	}
	out := make([]float64, len(res.Refs))
	for k, r := range res.Refs {
		out[k] = r[index]
	}
	return out
}

func xys(x, y []float64) plotter.XYs {
	n := min(len(x), len(y))
	pts := make(plotter.XYs, n)
	for i := 0; i < n; i++ {
		pts[i].X, pts[i].Y = x[i], y[i]
	}
	return pts
}

func complexXYs(z []complex128) plotter.XYs {
	pts := make(plotter.XYs, 0, len(z))
	for _, v := range z {
		if cmplx.IsNaN(v) || cmplx.IsInf(v) {
			continue
		}
		pts = append(pts, plotter.XY{X: real(v), Y: imag(v)})
	}
	return pts
}

func ensureDir(dir string) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return dynamo.Fail(dynamo.StageRender, dynamo.ErrExport, "create %s: %w", dir, err)
	}
	return nil
}

func writeCanvas(path string, img *vgsvg.Canvas) error {
	if err := ensureDir(filepath.Dir(path)); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return dynamo.Fail(dynamo.StageRender, dynamo.ErrExport, "create %s: %w", path, err)
	}
	if _, err := img.WriteTo(f); err != nil {
		f.Close()
		return dynamo.Fail(dynamo.StageRender, dynamo.ErrExport, "write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return dynamo.Fail(dynamo.StageRender, dynamo.ErrExport, "close %s: %w", path, err)
	}
	return nil
}
