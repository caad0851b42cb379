package export

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"regexp"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// ParseMatrix reads the coefficient ident back from generated source. Go
// sources are recognized by parsing; anything else is read as C++ element
// assignments. One-dimensional arrays come back as column vectors.
func ParseMatrix(src []byte, ident string) (*mat.Dense, error) {
	fset := token.NewFileSet()
	if f, err := parser.ParseFile(fset, "", src, 0); err == nil {
		return parseGo(f, ident)
	}
	return parseCpp(src, ident)
}

func parseGo(f *ast.File, ident string) (*mat.Dense, error) {
	for _, decl := range f.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.VAR {
			continue
		}
		for _, spec := range gen.Specs {
			vs := spec.(*ast.ValueSpec)
			for i, name := range vs.Names {
				if name.Name != ident || i >= len(vs.Values) {
					continue
				}
				lit, ok := vs.Values[i].(*ast.CompositeLit)
				if !ok {
					return nil, fmt.Errorf("%s is not a composite literal", ident)
				}
				return goLiteral(lit)
			}
		}
	}
	return nil, fmt.Errorf("%s not found", ident)
}

func goLiteral(lit *ast.CompositeLit) (*mat.Dense, error) {
	if len(lit.Elts) == 0 {
		return nil, fmt.Errorf("empty literal")
	}
	if _, nested := lit.Elts[0].(*ast.CompositeLit); !nested {
		col, err := goRow(lit)
		if err != nil {
			return nil, err
		}
		return mat.NewDense(len(col), 1, col), nil
	}

	var data []float64
	cols := -1
	for _, e := range lit.Elts {
		row, ok := e.(*ast.CompositeLit)
		if !ok {
			return nil, fmt.Errorf("mixed rows and scalars")
		}
		vals, err := goRow(row)
		if err != nil {
			return nil, err
		}
		if cols >= 0 && len(vals) != cols {
			return nil, fmt.Errorf("ragged rows: %d and %d", cols, len(vals))
		}
		cols = len(vals)
		data = append(data, vals...)
	}
	return mat.NewDense(len(lit.Elts), cols, data), nil
}

func goRow(lit *ast.CompositeLit) ([]float64, error) {
	out := make([]float64, len(lit.Elts))
	for i, e := range lit.Elts {
		sign := 1.0
		if u, ok := e.(*ast.UnaryExpr); ok && (u.Op == token.SUB || u.Op == token.ADD) {
			if u.Op == token.SUB {
				sign = -1
			}
			e = u.X
		}
		b, ok := e.(*ast.BasicLit)
		if !ok || (b.Kind != token.FLOAT && b.Kind != token.INT) {
			return nil, fmt.Errorf("element %d is not a number", i)
		}
		v, err := strconv.ParseFloat(b.Value, 64)
		if err != nil {
			return nil, err
		}
		out[i] = sign * v
	}
	return out, nil
}

func parseCpp(src []byte, ident string) (*mat.Dense, error) {
	q := regexp.QuoteMeta(ident)
	decl := regexp.MustCompile(`Eigen::Matrix<double,\s*(\d+),\s*(\d+)>\s+` + q + `\s*;`).FindSubmatch(src)
	if decl == nil {
		return nil, fmt.Errorf("%s not declared", ident)
	}
	r, _ := strconv.Atoi(string(decl[1]))
	c, _ := strconv.Atoi(string(decl[2]))
	if r == 0 || c == 0 {
		return nil, fmt.Errorf("%s has no elements", ident)
	}

	m := mat.NewDense(r, c, nil)
	set := make([]bool, r*c)
	elem := regexp.MustCompile(`(?m)^\s*` + q + `\((\d+),\s*(\d+)\)\s*=\s*([^;]+);`)
	for _, match := range elem.FindAllSubmatch(src, -1) {
		i, _ := strconv.Atoi(string(match[1]))
		j, _ := strconv.Atoi(string(match[2]))
		if i >= r || j >= c {
			return nil, fmt.Errorf("%s(%d, %d) outside %dx%d", ident, i, j, r, c)
		}
		v, err := strconv.ParseFloat(string(match[3]), 64)
		if err != nil {
			return nil, fmt.Errorf("%s(%d, %d): %w", ident, i, j, err)
		}
		m.Set(i, j, v)
		set[i*c+j] = true
	}
	for k, ok := range set {
		if !ok {
			return nil, fmt.Errorf("%s(%d, %d) never assigned", ident, k/c, k%c)
		}
	}
	return m, nil
}
