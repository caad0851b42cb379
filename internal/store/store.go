package store

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/san-kum/drivegain/internal/sim"
)

var (
	StateLabels = []string{"left_position", "left_velocity", "right_position", "right_velocity"}
	InputLabels = []string{"left_voltage", "right_voltage"}
)

// RunMetadata describes where a trajectory came from.
type RunMetadata struct {
	Name   string  `json:"name"`
	Preset string  `json:"preset,omitempty"`
	Gear   string  `json:"gear"`
	Dt     float64 `json:"dt"`
}

type trajectoryJSON struct {
	RunMetadata
	Steps     int                `json:"steps"`
	Times     []float64          `json:"times"`
	States    [][]float64        `json:"states"`
	Refs      [][]float64        `json:"references"`
	Estimates [][]float64        `json:"estimates,omitempty"`
	Controls  [][]float64        `json:"controls"`
	Metrics   map[string]float64 `json:"metrics"`
}

// Save writes result to path as CSV or JSON, chosen by extension.
func Save(path string, meta RunMetadata, result *sim.Result) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".csv" && ext != ".json" {
		return fmt.Errorf("trajectory file %s: want .csv or .json", path)
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if ext == ".json" {
		err = WriteJSON(file, meta, result)
	} else {
		err = WriteCSV(file, result)
	}
	if err != nil {
		return err
	}
	return file.Close()
}

func WriteJSON(w io.Writer, meta RunMetadata, result *sim.Result) error {
	data := trajectoryJSON{
		RunMetadata: meta,
		Steps:       len(result.Times),
		Times:       result.Times,
		States:      make([][]float64, len(result.States)),
		Refs:        make([][]float64, len(result.Refs)),
		Controls:    make([][]float64, len(result.Controls)),
		Metrics:     result.Metrics,
	}
	for i, s := range result.States {
		data.States[i] = s
	}
	for i, r := range result.Refs {
		data.Refs[i] = r
	}
	for i, c := range result.Controls {
		data.Controls[i] = c
	}
	if len(result.Estimates) > 0 {
		data.Estimates = make([][]float64, len(result.Estimates))
		for i, e := range result.Estimates {
			data.Estimates[i] = e
		}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// WriteCSV writes one row per sample: time, states, references, inputs.
func WriteCSV(w io.Writer, result *sim.Result) error {
	cw := csv.NewWriter(w)

	header := []string{"time"}
	header = append(header, StateLabels...)
	for _, l := range StateLabels {
		header = append(header, "ref_"+l)
	}
	header = append(header, InputLabels...)
	if err := cw.Write(header); err != nil {
		return err
	}

	for i := range result.States {
		row := make([]string, 0, len(header))
		row = append(row, format(result.Times[i]))
		row = appendValues(row, result.States[i], len(StateLabels))
		var ref []float64
		if i < len(result.Refs) {
			ref = result.Refs[i]
		}
		row = appendValues(row, ref, len(StateLabels))
		var u []float64
		if i < len(result.Controls) {
			u = result.Controls[i]
		}
		row = appendValues(row, u, len(InputLabels))
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func appendValues(row []string, vals []float64, n int) []string {
	for j := 0; j < n; j++ {
		if j < len(vals) {
			row = append(row, format(vals[j]))
		} else {
			row = append(row, "0")
		}
	}
	return row
}

func format(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ReadCSV reads back what WriteCSV wrote: the header and the numeric rows.
func ReadCSV(r io.Reader) ([]string, [][]float64, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("empty trajectory")
	}

	rows := make([][]float64, 0, len(records)-1)
	for i, record := range records[1:] {
		row := make([]float64, len(record))
		for j, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("row %d column %s: %w", i+1, records[0][j], err)
			}
			row[j] = v
		}
		rows = append(rows, row)
	}
	return records[0], rows, nil
}
