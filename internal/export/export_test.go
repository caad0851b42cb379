package export

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/san-kum/drivegain/internal/dynamo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func sample() *Coefficients {
	seq := func(r, c int, scale float64) *mat.Dense {
		m := mat.NewDense(r, c, nil)
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				m.Set(i, j, scale*float64(i*c+j+1)/3)
			}
		}
		return m
	}
	return &Coefficients{
		Dt:          0.00505,
		Acontinuous: seq(4, 4, -1),
		Bcontinuous: seq(4, 2, 1),
		A:           seq(4, 4, 0.1),
		B:           seq(4, 2, 0.01),
		C:           mat.NewDense(2, 4, []float64{1, 0, 0, 0, 0, 0, 1, 0}),
		D:           mat.NewDense(2, 2, nil),
		K:           mat.NewDense(2, 4, []float64{80.65340293847561, 12.715912, -0.53331, -0.493152, -0.53331, -0.493152, 80.65340293847561, 12.715912}),
		Kff:         mat.NewDense(2, 4, []float64{0, 1.276, 0, 0.1715, 0, 0.1715, 0, 1.276}),
		Umin:        []float64{-12, -12},
		Umax:        []float64{12, 12},
		L:           seq(4, 2, 1e-3),
		P:           seq(4, 4, 1e-5),
		Q:           seq(4, 4, 2),
		R:           mat.NewDense(2, 2, []float64{1e-8, 0, 0, 1e-8}),
	}
}

func TestFiles(t *testing.T) {
	assert.Equal(t, []string{filepath.Join("Subsystems", "drivetrain_coeffs.go")},
		Files(Options{Dir: "Subsystems/", Name: "Drivetrain", Lang: LangGo}))
	assert.Equal(t, []string{
		filepath.Join("Subsystems", "DrivetrainCoeffs.h"),
		filepath.Join("Subsystems", "DrivetrainCoeffs.cpp"),
	}, Files(Options{Dir: "Subsystems/", Name: "Drivetrain", Lang: LangCpp}))
}

func TestSnake(t *testing.T) {
	cases := map[string]string{
		"Drivetrain":       "drivetrain",
		"SingleJointedArm": "single_jointed_arm",
		"HTTPDrive":        "http_drive",
		"left_side":        "left_side",
	}
	for in, want := range cases {
		assert.Equal(t, want, snake(in), in)
	}
}

func TestWriteGoRoundTrip(t *testing.T) {
	for _, table := range []bool{false, true} {
		dir := filepath.Join(t.TempDir(), "subsystems")
		require.NoError(t, os.Mkdir(dir, 0755))
		c := sample()

		paths, err := Write(c, Options{Dir: dir, Name: "Drivetrain", Lang: LangGo, Table: table})
		require.NoError(t, err)
		require.Len(t, paths, 1)

		src, err := os.ReadFile(paths[0])
		require.NoError(t, err)
		assert.Contains(t, string(src), "package subsystems")
		assert.Contains(t, string(src), "DO NOT EDIT")

		for name, want := range map[string]*mat.Dense{
			"DrivetrainK":    c.K,
			"DrivetrainKff":  c.Kff,
			"DrivetrainL":    c.L,
			"DrivetrainUmin": mat.NewDense(2, 1, c.Umin),
		} {
			got, err := ParseMatrix(src, name)
			require.NoError(t, err, name)
			assert.True(t, mat.Equal(want, got), "%s: want %v got %v", name, mat.Formatted(want), mat.Formatted(got))
		}

		_, err = ParseMatrix(src, "DrivetrainAcontinuous")
		if table {
			assert.NoError(t, err)
			assert.Contains(t, string(src), "func MakeDrivetrainLoop() DrivetrainLoop")
		} else {
			assert.Error(t, err)
			assert.NotContains(t, string(src), "DrivetrainLoop")
		}
	}
}

func TestWriteCppRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "Subsystems")
	require.NoError(t, os.Mkdir(dir, 0755))
	c := sample()

	paths, err := Write(c, Options{Dir: dir, Name: "Drivetrain", Lang: LangCpp, Table: true})
	require.NoError(t, err)
	require.Len(t, paths, 2)

	header, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Contains(t, string(header), "#pragma once")
	assert.Contains(t, string(header), "frc::PeriodVariantLoop<4, 2, 2> MakeDrivetrainLoop();")

	src, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.Contains(t, string(src), `#include "Subsystems/DrivetrainCoeffs.h"`)

	for name, want := range map[string]*mat.Dense{
		"K":            c.K,
		"Kff":          c.Kff,
		"L":            c.L,
		"Acontinuous":  c.Acontinuous,
		"PsteadyState": c.P,
		"Umax":         mat.NewDense(2, 1, c.Umax),
	} {
		got, err := ParseMatrix(src, name)
		require.NoError(t, err, name)
		assert.True(t, mat.Equal(want, got), name)
	}
}

func TestLiteralsRoundTrip(t *testing.T) {
	for _, v := range []float64{0, 1.0 / 3, -2.5e-300, 80.65340293847561, 1e21} {
		src := []byte("package p\n\n" + goMatrix("X", mat.NewDense(1, 1, []float64{v})) + "\n")
		got, err := ParseMatrix(src, "X")
		require.NoError(t, err)
		assert.Equal(t, v, got.At(0, 0))
	}
}

func TestWriteErrors(t *testing.T) {
	tmp := t.TempDir()
	file := filepath.Join(tmp, "plain.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	tests := []struct {
		name string
		opt  Options
		want string
	}{
		{"missing directory", Options{Dir: filepath.Join(tmp, "nope"), Name: "Drivetrain", Lang: LangGo}, "nope"},
		{"not a directory", Options{Dir: file, Name: "Drivetrain", Lang: LangGo}, "plain.txt"},
		{"bad identifier", Options{Dir: tmp, Name: "Drive train", Lang: LangGo}, "Drive train"},
		{"keyword identifier", Options{Dir: tmp, Name: "func", Lang: LangGo}, "func"},
		{"empty identifier", Options{Dir: tmp, Name: "", Lang: LangCpp}, `""`},
		{"unknown language", Options{Dir: tmp, Name: "Drivetrain", Lang: "rust"}, "rust"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Write(sample(), tt.opt)
			require.Error(t, err)
			assert.True(t, errors.Is(err, dynamo.ErrExport), "got %v", err)
			stage, _ := dynamo.StageOf(err)
			assert.Equal(t, dynamo.StageExport, stage)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestWriteCreatesDirectoryWhenAsked(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	paths, err := Write(sample(), Options{Dir: dir, Name: "Drivetrain", Lang: LangGo, CreateDir: true})
	require.NoError(t, err)
	_, err = os.Stat(paths[0])
	assert.NoError(t, err)
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	_, err := Write(sample(), Options{Dir: dir, Name: "Drivetrain", Lang: LangCpp, Table: true})
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), "."), "leftover %s", e.Name())
	}
	assert.Len(t, entries, 2)
}

func TestWriteCppIsAllOrNothing(t *testing.T) {
	dir := t.TempDir()
	// A directory where the source file belongs makes the second rename fail.
	require.NoError(t, os.Mkdir(filepath.Join(dir, "DrivetrainCoeffs.cpp"), 0755))

	files, err := Write(sample(), Options{Dir: dir, Name: "Drivetrain", Lang: LangCpp, Table: true})
	assert.True(t, errors.Is(err, dynamo.ErrExport), "err = %v", err)
	assert.Nil(t, files)

	_, statErr := os.Stat(filepath.Join(dir, "DrivetrainCoeffs.h"))
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "header left behind")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteCppFailureKeepsPreviousFiles(t *testing.T) {
	dir := t.TempDir()
	header := filepath.Join(dir, "DrivetrainCoeffs.h")
	require.NoError(t, os.WriteFile(header, []byte("// previous\n"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "DrivetrainCoeffs.cpp"), 0755))

	_, err := Write(sample(), Options{Dir: dir, Name: "Drivetrain", Lang: LangCpp, Table: true})
	require.Error(t, err)

	got, err := os.ReadFile(header)
	require.NoError(t, err)
	assert.Equal(t, "// previous\n", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), "."), "leftover %s", e.Name())
	}
}

func TestWriteReplacesExistingFiles(t *testing.T) {
	dir := t.TempDir()
	header := filepath.Join(dir, "DrivetrainCoeffs.h")
	require.NoError(t, os.WriteFile(header, []byte("// previous\n"), 0644))

	_, err := Write(sample(), Options{Dir: dir, Name: "Drivetrain", Lang: LangCpp, Table: true})
	require.NoError(t, err)

	got, err := os.ReadFile(header)
	require.NoError(t, err)
	assert.NotEqual(t, "// previous\n", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestWriteMissingCoefficients(t *testing.T) {
	c := sample()
	c.P = nil
	_, err := Write(c, Options{Dir: t.TempDir(), Name: "Drivetrain", Lang: LangGo, Table: true})
	assert.True(t, errors.Is(err, dynamo.ErrExport))

	_, err = Write(c, Options{Dir: t.TempDir(), Name: "Drivetrain", Lang: LangGo})
	assert.NoError(t, err, "P is only needed for the table")
}
