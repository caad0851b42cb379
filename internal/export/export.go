package export

import (
	"errors"
	"fmt"
	"go/token"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/san-kum/drivegain/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

type Lang string

const (
	LangGo  Lang = "go"
	LangCpp Lang = "cpp"
)

// Coefficients is everything a generated file can carry. K, Kff, Umin, Umax
// and L are always written; the rest only with Options.Table.
type Coefficients struct {
	Dt float64

	Acontinuous, Bcontinuous *mat.Dense
	A, B, C, D               *mat.Dense

	K, Kff     *mat.Dense
	Umin, Umax []float64

	L, P, Q, R *mat.Dense
}

type Options struct {
	Dir  string
	Name string
	Lang Lang
	// Table adds plant and observer coefficients plus a loop constructor.
	Table     bool
	CreateDir bool
	// Package overrides the Go package name derived from Dir.
	Package string
}

var cppIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Files returns the paths Write would produce for opt.
func Files(opt Options) []string {
	switch opt.Lang {
	case LangCpp:
		return []string{
			filepath.Join(opt.Dir, opt.Name+"Coeffs.h"),
			filepath.Join(opt.Dir, opt.Name+"Coeffs.cpp"),
		}
	default:
		return []string{filepath.Join(opt.Dir, snake(opt.Name)+"_coeffs.go")}
	}
}

// Write renders c into opt.Dir and returns the files written. Either every
// file is replaced or none is.
func Write(c *Coefficients, opt Options) ([]string, error) {
	if err := checkName(opt); err != nil {
		return nil, err
	}
	if err := checkCoefficients(c, opt.Table); err != nil {
		return nil, err
	}
	if err := prepareDir(opt); err != nil {
		return nil, err
	}

	paths := Files(opt)
	var contents [][]byte
	switch opt.Lang {
	case LangCpp:
		h, cpp, err := renderCpp(c, opt)
		if err != nil {
			return nil, err
		}
		contents = [][]byte{h, cpp}
	case LangGo, "":
		src, err := renderGo(c, opt)
		if err != nil {
			return nil, err
		}
		contents = [][]byte{src}
	default:
		return nil, dynamo.Fail(dynamo.StageExport, dynamo.ErrExport, "unknown target language %q", opt.Lang)
	}

	if err := commit(paths, contents); err != nil {
		return nil, err
	}
	return paths, nil
}

func checkName(opt Options) error {
	ok := token.IsIdentifier(opt.Name)
	if opt.Lang == LangCpp {
		ok = ok && cppIdent.MatchString(opt.Name)
	}
	if !ok {
		return dynamo.Fail(dynamo.StageExport, dynamo.ErrExport, "%q is not a valid identifier", opt.Name)
	}
	if opt.Package != "" && !token.IsIdentifier(opt.Package) {
		return dynamo.Fail(dynamo.StageExport, dynamo.ErrExport, "%q is not a valid package name", opt.Package)
	}
	return nil
}

func checkCoefficients(c *Coefficients, table bool) error {
	required := map[string]*mat.Dense{"K": c.K, "Kff": c.Kff, "L": c.L}
	if table {
		for name, m := range map[string]*mat.Dense{
			"A": c.A, "B": c.B, "C": c.C, "D": c.D,
			"Acontinuous": c.Acontinuous, "Bcontinuous": c.Bcontinuous,
			"P": c.P, "Q": c.Q, "R": c.R,
		} {
			required[name] = m
		}
	}
	for name, m := range required {
		if m == nil {
			return dynamo.Fail(dynamo.StageExport, dynamo.ErrExport, "missing coefficient %s", name)
		}
	}
	if len(c.Umin) == 0 || len(c.Umin) != len(c.Umax) {
		return dynamo.Fail(dynamo.StageExport, dynamo.ErrExport, "input bounds have lengths %d and %d", len(c.Umin), len(c.Umax))
	}
	return nil
}

func prepareDir(opt Options) error {
	info, err := os.Stat(opt.Dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if !opt.CreateDir {
			return dynamo.Fail(dynamo.StageExport, dynamo.ErrExport, "output directory %s does not exist", opt.Dir)
		}
		if err := os.MkdirAll(opt.Dir, 0755); err != nil {
			return dynamo.Fail(dynamo.StageExport, dynamo.ErrExport, "create %s: %w", opt.Dir, err)
		}
		return nil
	case err != nil:
		return dynamo.Fail(dynamo.StageExport, dynamo.ErrExport, "stat %s: %w", opt.Dir, err)
	case !info.IsDir():
		return dynamo.Fail(dynamo.StageExport, dynamo.ErrExport, "%s is not a directory", opt.Dir)
	}
	return nil
}

// commit stages every file as a temp next to its target, then renames them
// into place. A failed rename puts back whatever was there before.
func commit(paths []string, contents [][]byte) error {
	temps := make([]string, 0, len(paths))
	for i, path := range paths {
		tmp, err := writeTemp(path, contents[i])
		if err != nil {
			removeAll(temps)
			return err
		}
		temps = append(temps, tmp)
	}

	type replaced struct {
		path, backup string
	}
	var done []replaced
	rollback := func() {
		for k := len(done) - 1; k >= 0; k-- {
			os.Remove(done[k].path)
			if done[k].backup != "" {
				os.Rename(done[k].backup, done[k].path)
			}
		}
	}

	for i, path := range paths {
		backup := ""
		if info, err := os.Lstat(path); err == nil && info.Mode().IsRegular() {
			backup = temps[i] + ".bak"
			if err := os.Rename(path, backup); err != nil {
				rollback()
				removeAll(temps[i:])
				return dynamo.Fail(dynamo.StageExport, dynamo.ErrExport, "move aside %s: %w", path, err)
			}
		}
		if err := os.Rename(temps[i], path); err != nil {
			if backup != "" {
				os.Rename(backup, path)
			}
			rollback()
			removeAll(temps[i:])
			return dynamo.Fail(dynamo.StageExport, dynamo.ErrExport, "rename into %s: %w", path, err)
		}
		done = append(done, replaced{path, backup})
	}

	for _, r := range done {
		if r.backup != "" {
			os.Remove(r.backup)
		}
	}
	return nil
}

// writeTemp writes data to a hidden temp file beside path.
func writeTemp(path string, data []byte) (string, error) {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return "", dynamo.Fail(dynamo.StageExport, dynamo.ErrExport, "cannot write to %s: %w", dir, err)
	}
	tmp := f.Name()
	_, werr := f.Write(data)
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		os.Remove(tmp)
		return "", dynamo.Fail(dynamo.StageExport, dynamo.ErrExport, "write %s: %w", path, err)
	}
	if err := os.Chmod(tmp, 0644); err != nil {
		os.Remove(tmp)
		return "", dynamo.Fail(dynamo.StageExport, dynamo.ErrExport, "chmod %s: %w", tmp, err)
	}
	return tmp, nil
}

func removeAll(paths []string) {
	for _, p := range paths {
		os.Remove(p)
	}
}

// snake turns "SingleJointedArm" into "single_jointed_arm".
func snake(name string) string {
	var sb strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) && runes[i-1] != '_' {
				sb.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// packageName derives a Go package name from the output directory.
func packageName(opt Options) string {
	if opt.Package != "" {
		return opt.Package
	}
	base := strings.ToLower(filepath.Base(filepath.Clean(opt.Dir)))
	var sb strings.Builder
	for _, r := range base {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			sb.WriteRune(r)
		}
	}
	name := sb.String()
	if !token.IsIdentifier(name) {
		return "coeffs"
	}
	return name
}

func literal(v float64) string {
	return fmt.Sprintf("%.16e", v)
}
