package viz

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gonum.org/v1/gonum/mat"
)

// Gain is one labeled matrix in a report.
type Gain struct {
	Name string
	M    mat.Matrix
}

// Figure is one labeled scalar in a report.
type Figure struct {
	Label string
	Value string
	OK    bool
}

type Summary struct {
	Title    string
	Gains    []Gain
	Figures  []Figure
	Position []float64
	Files    []string
}

// FormatMatrix lays out m with aligned columns.
func FormatMatrix(m mat.Matrix) string {
	r, c := m.Dims()
	cells := make([][]string, r)
	width := 0
	for i := 0; i < r; i++ {
		cells[i] = make([]string, c)
		for j := 0; j < c; j++ {
			cells[i][j] = fmt.Sprintf("%.6g", m.At(i, j))
			width = max(width, len(cells[i][j]))
		}
	}

	var sb strings.Builder
	for i, row := range cells {
		if i > 0 {
			sb.WriteByte('\n')
		}
		for j, cell := range row {
			if j > 0 {
				sb.WriteString("  ")
			}
			sb.WriteString(fmt.Sprintf("%*s", width, cell))
		}
	}
	return sb.String()
}

// Report renders s for the console.
func Report(s Summary) string {
	var sb strings.Builder
	sb.WriteString(HeaderStyle.Render(s.Title))
	sb.WriteString("\n\n")

	boxes := make([]string, 0, len(s.Gains))
	for _, g := range s.Gains {
		boxes = append(boxes, Panel.Render(Title.Render(g.Name)+"\n"+FormatMatrix(g.M)))
	}
	for i := 0; i < len(boxes); i += 2 {
		end := min(i+2, len(boxes))
		sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes[i:end]...))
		sb.WriteByte('\n')
	}

	if len(s.Figures) > 0 {
		sb.WriteByte('\n')
		for _, f := range s.Figures {
			status := StatusOK.Render("ok")
			if !f.OK {
				status = StatusFail.Render("!!")
			}
			sb.WriteString(fmt.Sprintf("  %s %s %s\n", status, MetricLabel.Render(f.Label+":"), MetricValue.Render(f.Value)))
		}
	}

	if len(s.Position) > 0 {
		sb.WriteString("\n  " + MetricLabel.Render("left position ") + Sparkline(s.Position, 60) + "\n")
	}

	if len(s.Files) > 0 {
		sb.WriteString("\n" + Separator(60) + "\n")
		for _, f := range s.Files {
			sb.WriteString("  " + Subtle.Render("wrote ") + f + "\n")
		}
	}
	return sb.String()
}
