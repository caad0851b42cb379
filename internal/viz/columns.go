package viz

import (
	"fmt"
	"slices"
	"strings"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/drivegain/internal/dynamo"
)

var columnColors = []asciigraph.AnsiColor{asciigraph.Blue, asciigraph.Red, asciigraph.Green, asciigraph.Yellow}

// PlotColumns draws the named columns of a saved trajectory on one graph.
func PlotColumns(header []string, rows [][]float64, names []string, width, height int) (string, error) {
	if len(rows) == 0 {
		return "", dynamo.Fail(dynamo.StageRender, dynamo.ErrConfiguration, "trajectory has no samples")
	}
	if len(names) == 0 || len(names) > len(columnColors) {
		return "", dynamo.Fail(dynamo.StageRender, dynamo.ErrConfiguration,
			"plot between 1 and %d columns, got %d", len(columnColors), len(names))
	}

	series := make([][]float64, len(names))
	for i, name := range names {
		j := slices.Index(header, name)
		if j < 0 {
			return "", dynamo.Fail(dynamo.StageRender, dynamo.ErrConfiguration,
				"no column %q (have %s)", name, strings.Join(header, ", "))
		}
		col := make([]float64, len(rows))
		for k, row := range rows {
			col[k] = row[j]
		}
		series[i] = col
	}

	graph := asciigraph.PlotMany(series,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.SeriesColors(columnColors[:len(names)]...),
		asciigraph.Caption(strings.Join(names, ", ")),
	)
	return graph + "\n" + Subtle.Render(fmt.Sprintf("%d samples", len(rows))), nil
}
