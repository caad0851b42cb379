package export

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/san-kum/drivegain/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

var cppFuncs = template.FuncMap{
	"matrix": cppMatrix,
	"vector": cppVector,
}

var headerTemplate = template.Must(template.New("h").Funcs(cppFuncs).Parse(`// Generated by drivegain. Do not edit.

#pragma once

#include <Eigen/Core>
{{- if .Table}}
#include <frc/controller/PeriodVariantKalmanFilterCoeffs.h>
#include <frc/controller/PeriodVariantLoop.h>
#include <frc/controller/PeriodVariantPlantCoeffs.h>
{{- end}}
#include <frc/controller/StateSpaceControllerCoeffs.h>

{{- if .Table}}

frc::PeriodVariantPlantCoeffs<{{.Dims}}> Make{{.Name}}PlantCoeffs();
{{- end}}
frc::StateSpaceControllerCoeffs<{{.Dims}}> Make{{.Name}}ControllerCoeffs();
Eigen::Matrix<double, {{.States}}, {{.Outputs}}> Make{{.Name}}KalmanGain();
{{- if .Table}}
frc::PeriodVariantKalmanFilterCoeffs<{{.Dims}}> Make{{.Name}}ObserverCoeffs();
frc::PeriodVariantLoop<{{.Dims}}> Make{{.Name}}Loop();
{{- end}}
`))

var sourceTemplate = template.Must(template.New("cpp").Funcs(cppFuncs).Parse(`// Generated by drivegain. Do not edit.

#include "{{.Include}}"

#include <Eigen/Core>
{{- if .Table}}

frc::PeriodVariantPlantCoeffs<{{.Dims}}> Make{{.Name}}PlantCoeffs() {
{{matrix "Acontinuous" .C.Acontinuous}}
{{matrix "Bcontinuous" .C.Bcontinuous}}
{{matrix "C" .C.C}}
{{matrix "D" .C.D}}
  return frc::PeriodVariantPlantCoeffs<{{.Dims}}>(Acontinuous, Bcontinuous, C, D);
}
{{- end}}

frc::StateSpaceControllerCoeffs<{{.Dims}}> Make{{.Name}}ControllerCoeffs() {
{{matrix "K" .C.K}}
{{matrix "Kff" .C.Kff}}
{{vector "Umin" .C.Umin}}
{{vector "Umax" .C.Umax}}
  return frc::StateSpaceControllerCoeffs<{{.Dims}}>(K, Kff, Umin, Umax);
}

Eigen::Matrix<double, {{.States}}, {{.Outputs}}> Make{{.Name}}KalmanGain() {
{{matrix "L" .C.L}}
  return L;
}
{{- if .Table}}

frc::PeriodVariantKalmanFilterCoeffs<{{.Dims}}> Make{{.Name}}ObserverCoeffs() {
{{matrix "Qcontinuous" .C.Q}}
{{matrix "Rcontinuous" .C.R}}
{{matrix "PsteadyState" .C.P}}
  return frc::PeriodVariantKalmanFilterCoeffs<{{.Dims}}>(Qcontinuous, Rcontinuous, PsteadyState);
}

frc::PeriodVariantLoop<{{.Dims}}> Make{{.Name}}Loop() {
  return frc::PeriodVariantLoop<{{.Dims}}>(Make{{.Name}}PlantCoeffs(),
                                           Make{{.Name}}ControllerCoeffs(),
                                           Make{{.Name}}ObserverCoeffs());
}
{{- end}}
`))

type cppData struct {
	Name    string
	Include string
	Table   bool
	States  int
	Outputs int
	Dims    string
	C       *Coefficients
}

func renderCpp(c *Coefficients, opt Options) (header, source []byte, err error) {
	_, n := c.K.Dims()
	m, _ := c.K.Dims()
	_, p := c.L.Dims()
	data := cppData{
		Name:    opt.Name,
		Include: filepath.ToSlash(filepath.Join(filepath.Base(filepath.Clean(opt.Dir)), opt.Name+"Coeffs.h")),
		Table:   opt.Table,
		States:  n,
		Outputs: p,
		Dims:    fmt.Sprintf("%d, %d, %d", n, m, p),
		C:       c,
	}

	var h, cpp bytes.Buffer
	if err := headerTemplate.Execute(&h, data); err != nil {
		return nil, nil, dynamo.Fail(dynamo.StageExport, dynamo.ErrExport, "render %sCoeffs.h: %w", opt.Name, err)
	}
	if err := sourceTemplate.Execute(&cpp, data); err != nil {
		return nil, nil, dynamo.Fail(dynamo.StageExport, dynamo.ErrExport, "render %sCoeffs.cpp: %w", opt.Name, err)
	}
	return h.Bytes(), cpp.Bytes(), nil
}

func cppMatrix(ident string, m *mat.Dense) string {
	r, c := m.Dims()
	var sb strings.Builder
	fmt.Fprintf(&sb, "  Eigen::Matrix<double, %d, %d> %s;", r, c, ident)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			fmt.Fprintf(&sb, "\n  %s(%d, %d) = %s;", ident, i, j, literal(m.At(i, j)))
		}
	}
	return sb.String()
}

func cppVector(ident string, v []float64) string {
	return cppMatrix(ident, mat.NewDense(len(v), 1, append([]float64(nil), v...)))
}
