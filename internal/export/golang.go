package export

import (
	"bytes"
	"fmt"
	"go/format"
	"strings"
	"text/template"

	"github.com/san-kum/drivegain/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

var goTemplate = template.Must(template.New("go").Funcs(template.FuncMap{
	"lit":    literal,
	"matrix": goMatrix,
	"vector": goVector,
	"dims":   goDims,
}).Parse(`// Code generated by drivegain. DO NOT EDIT.

package {{.Package}}

// {{.Name}}Dt is the sample period in seconds the coefficients were designed for.
const {{.Name}}Dt = {{lit .C.Dt}}

// {{.Name}}K is the LQR gain: u = K(r − x).
{{matrix (print .Name "K") .C.K}}

// {{.Name}}Kff is the reference feedforward gain: u_ff = Kff(r[k+1] − A·r[k]).
{{matrix (print .Name "Kff") .C.Kff}}

{{vector (print .Name "Umin") .C.Umin}}

{{vector (print .Name "Umax") .C.Umax}}

// {{.Name}}L is the steady-state Kalman gain.
{{matrix (print .Name "L") .C.L}}
{{- if .Table}}

// Continuous plant.
{{matrix (print .Name "Acontinuous") .C.Acontinuous}}

{{matrix (print .Name "Bcontinuous") .C.Bcontinuous}}

// Discrete plant at {{.Name}}Dt.
{{matrix (print .Name "A") .C.A}}

{{matrix (print .Name "B") .C.B}}

{{matrix (print .Name "C") .C.C}}

{{matrix (print .Name "D") .C.D}}

// Process and measurement noise covariances and the steady-state error covariance.
{{matrix (print .Name "Q") .C.Q}}

{{matrix (print .Name "R") .C.R}}

{{matrix (print .Name "P") .C.P}}

type {{.Name}}PlantCoeffs struct {
	Acontinuous {{dims .C.Acontinuous}}
	Bcontinuous {{dims .C.Bcontinuous}}
	A {{dims .C.A}}
	B {{dims .C.B}}
	C {{dims .C.C}}
	D {{dims .C.D}}
}

type {{.Name}}ControllerCoeffs struct {
	K {{dims .C.K}}
	Kff {{dims .C.Kff}}
	Umin [{{len .C.Umin}}]float64
	Umax [{{len .C.Umax}}]float64
}

type {{.Name}}ObserverCoeffs struct {
	Q {{dims .C.Q}}
	R {{dims .C.R}}
	PSteadyState {{dims .C.P}}
	L {{dims .C.L}}
}

// {{.Name}}Loop bundles everything needed to run the loop at {{.Name}}Dt.
type {{.Name}}Loop struct {
	Dt float64
	Plant {{.Name}}PlantCoeffs
	Controller {{.Name}}ControllerCoeffs
	Observer {{.Name}}ObserverCoeffs
}

func Make{{.Name}}PlantCoeffs() {{.Name}}PlantCoeffs {
	return {{.Name}}PlantCoeffs{
		Acontinuous: {{.Name}}Acontinuous,
		Bcontinuous: {{.Name}}Bcontinuous,
		A: {{.Name}}A,
		B: {{.Name}}B,
		C: {{.Name}}C,
		D: {{.Name}}D,
	}
}

func Make{{.Name}}ControllerCoeffs() {{.Name}}ControllerCoeffs {
	return {{.Name}}ControllerCoeffs{
		K: {{.Name}}K,
		Kff: {{.Name}}Kff,
		Umin: {{.Name}}Umin,
		Umax: {{.Name}}Umax,
	}
}

func Make{{.Name}}ObserverCoeffs() {{.Name}}ObserverCoeffs {
	return {{.Name}}ObserverCoeffs{
		Q: {{.Name}}Q,
		R: {{.Name}}R,
		PSteadyState: {{.Name}}P,
		L: {{.Name}}L,
	}
}

func Make{{.Name}}Loop() {{.Name}}Loop {
	return {{.Name}}Loop{
		Dt: {{.Name}}Dt,
		Plant: Make{{.Name}}PlantCoeffs(),
		Controller: Make{{.Name}}ControllerCoeffs(),
		Observer: Make{{.Name}}ObserverCoeffs(),
	}
}
{{- end}}
`))

type goData struct {
	Package string
	Name    string
	Table   bool
	C       *Coefficients
}

func renderGo(c *Coefficients, opt Options) ([]byte, error) {
	var buf bytes.Buffer
	data := goData{Package: packageName(opt), Name: opt.Name, Table: opt.Table, C: c}
	if err := goTemplate.Execute(&buf, data); err != nil {
		return nil, dynamo.Fail(dynamo.StageExport, dynamo.ErrExport, "render %s: %w", opt.Name, err)
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, dynamo.Fail(dynamo.StageExport, dynamo.ErrExport, "format %s: %w", opt.Name, err)
	}
	return src, nil
}

func goDims(m *mat.Dense) string {
	r, c := m.Dims()
	return fmt.Sprintf("[%d][%d]float64", r, c)
}

func goMatrix(ident string, m *mat.Dense) string {
	r, c := m.Dims()
	var sb strings.Builder
	fmt.Fprintf(&sb, "var %s = %s{\n", ident, goDims(m))
	for i := 0; i < r; i++ {
		sb.WriteString("\t{")
		for j := 0; j < c; j++ {
			if j > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(literal(m.At(i, j)))
		}
		sb.WriteString("},\n")
	}
	sb.WriteString("}")
	return sb.String()
}

func goVector(ident string, v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = literal(x)
	}
	return fmt.Sprintf("var %s = [%d]float64{%s}", ident, len(v), strings.Join(parts, ", "))
}
