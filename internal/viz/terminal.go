package viz

import (
	"fmt"
	"io"
	"math/cmplx"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/drivegain/internal/analysis"
	"github.com/san-kum/drivegain/internal/dynamo"
	"github.com/san-kum/drivegain/internal/sim"
)

// Terminal shows the response in a full-screen viewer. RenderPoles only
// records the poles; RenderResponse runs the viewer until the user quits.
type Terminal struct {
	Title string
	In    io.Reader
	Out   io.Writer

	poles *analysis.PoleSet
}

func NewTerminal(title string) *Terminal {
	return &Terminal{Title: title}
}

func (t *Terminal) RenderPoles(p *analysis.PoleSet) error {
	t.poles = p
	return nil
}

func (t *Terminal) RenderResponse(res *sim.Result) error {
	if res == nil || len(res.States) == 0 {
		return dynamo.Fail(dynamo.StageRender, dynamo.ErrConfiguration, "no response to render")
	}
	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if t.In != nil {
		opts = append(opts, tea.WithInput(t.In))
	}
	if t.Out != nil {
		opts = append(opts, tea.WithOutput(t.Out))
	}
	if _, err := tea.NewProgram(newViewer(t.Title, res, t.poles), opts...).Run(); err != nil {
		return dynamo.Fail(dynamo.StageRender, dynamo.ErrConfiguration, "terminal viewer: %w", err)
	}
	return nil
}

type panel struct {
	title  string
	series [][]float64
	legend string
}

type viewer struct {
	title  string
	panels []panel
	poles  *analysis.PoleSet
	dt     float64
	active int
	width  int
	height int
}

func newViewer(title string, res *sim.Result, poles *analysis.PoleSet) viewer {
	v := viewer{title: title, poles: poles, width: 100, height: 30}
	if len(res.Times) > 1 {
		v.dt = res.Times[1] - res.Times[0]
	}
	for i := range stateTitles {
		p := panel{title: fmt.Sprintf("%s (%s)", stateTitles[i], stateUnits[i]), series: [][]float64{res.Column(i)}}
		if ref := refColumn(res, i); ref != nil {
			p.series = append(p.series, ref)
			p.legend = "state, reference"
		}
		v.panels = append(v.panels, p)
	}
	v.panels = append(v.panels, panel{
		title:  "Voltage (V)",
		series: [][]float64{res.Input(0), res.Input(1)},
		legend: "left, right",
	})
	return v
}

func (v viewer) Init() tea.Cmd { return nil }

func (v viewer) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return v, tea.Quit
		case "tab", "right", "l":
			v.active = (v.active + 1) % v.pages()
		case "shift+tab", "left", "h":
			v.active = (v.active + v.pages() - 1) % v.pages()
		}
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
	}
	return v, nil
}

// pages counts the plot panels plus the pole table when there is one.
func (v viewer) pages() int {
	if v.poles != nil {
		return len(v.panels) + 1
	}
	return len(v.panels)
}

func (v viewer) View() string {
	var sb strings.Builder
	sb.WriteString(Title.Render(v.title))
	sb.WriteString(Subtle.Render(fmt.Sprintf("  [%d/%d]", v.active+1, v.pages())))
	sb.WriteString("\n\n")

	if v.active < len(v.panels) {
		p := v.panels[v.active]
		graph := asciigraph.PlotMany(p.series,
			asciigraph.Height(max(v.height-8, 5)),
			asciigraph.Width(max(v.width-12, 20)),
			asciigraph.SeriesColors(asciigraph.Blue, asciigraph.Red),
			asciigraph.Caption(p.title),
		)
		sb.WriteString(graph)
		if p.legend != "" {
			sb.WriteString("\n" + Subtle.Render(p.legend))
		}
	} else {
		sb.WriteString(Panel.Render(poleTable(v.poles, v.dt)))
	}

	sb.WriteString("\n\n" + KeyHint.Render("tab next · shift+tab previous · q quit"))
	return sb.String()
}

// poleTable lists every pole with its magnitude and, when dt is known, its
// continuous-time equivalent.
func poleTable(p *analysis.PoleSet, dt float64) string {
	var sb strings.Builder
	rows := []struct {
		name  string
		poles []complex128
	}{
		{"open loop", p.OpenLoop},
		{"closed loop", p.ClosedLoop},
		{"observer", p.Observer},
	}
	for i, r := range rows {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(Title.Render(r.name))
		var sp []complex128
		if dt > 0 {
			sp = analysis.Continuous(r.poles, dt)
		}
		for k, z := range r.poles {
			style := StatusOK
			if cmplx.Abs(z) >= 1 {
				style = StatusWarn
			}
			sb.WriteString(fmt.Sprintf("\n  %s  |z| = %s", formatComplex(z), style.Render(fmt.Sprintf("%.6f", cmplx.Abs(z)))))
			if sp != nil {
				sb.WriteString(Subtle.Render("  s = " + formatComplex(sp[k])))
			}
		}
	}
	return sb.String()
}

func formatComplex(z complex128) string {
	if imag(z) == 0 {
		return fmt.Sprintf("%+.6f", real(z))
	}
	return fmt.Sprintf("%+.6f %+.6fi", real(z), imag(z))
}
