package grid

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Cell is a single grid entry: a finite value, or Missing.
type Cell struct {
	Value   float64
	Missing bool
}

// Value returns a present cell holding v.
func Value(v float64) Cell { return Cell{Value: v} }

// Missing returns a Missing cell.
func Missing() Cell { return Cell{Missing: true} }

// Grid is a rows×cols matrix of cells stored row-major.
// Indexing outside the grid panics, as with gonum's mat types.
type Grid struct {
	rows, cols int
	values     []float64
	valid      []bool
}

// New returns an all-Missing grid of the given shape.
func New(rows, cols int) (*Grid, error) {
	if rows < 1 || cols < 1 {
		return nil, fmt.Errorf("%w: %dx%d", ErrBadShape, rows, cols)
	}
	return &Grid{
		rows:   rows,
		cols:   cols,
		values: make([]float64, rows*cols),
		valid:  make([]bool, rows*cols),
	}, nil
}

// FromCells builds a grid from row slices, which must all have the same
// non-zero length.
func FromCells(cells [][]Cell) (*Grid, error) {
	if len(cells) == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrBadShape)
	}
	g, err := New(len(cells), len(cells[0]))
	if err != nil {
		return nil, err
	}
	for r, row := range cells {
		if len(row) != g.cols {
			return nil, fmt.Errorf("%w: row %d has %d cells, want %d", ErrBadShape, r, len(row), g.cols)
		}
		for c, cell := range row {
			if cell.Missing {
				continue
			}
			if err := g.Set(r, c, cell.Value); err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}

// Rows returns the number of rows.
func (g *Grid) Rows() int { return g.rows }

// Cols returns the number of columns.
func (g *Grid) Cols() int { return g.cols }

// Dims returns rows and columns.
func (g *Grid) Dims() (int, int) { return g.rows, g.cols }

func (g *Grid) index(r, c int) int {
	if r < 0 || r >= g.rows || c < 0 || c >= g.cols {
		panic(fmt.Sprintf("grid: index (%d,%d) out of range for %dx%d grid", r, c, g.rows, g.cols))
	}
	return r*g.cols + c
}

// At returns the cell at (r, c).
func (g *Grid) At(r, c int) Cell {
	i := g.index(r, c)
	if !g.valid[i] {
		return Missing()
	}
	return Value(g.values[i])
}

// Value returns the value at (r, c) and whether the cell is present.
func (g *Grid) Value(r, c int) (float64, bool) {
	i := g.index(r, c)
	return g.values[i], g.valid[i]
}

// IsMissing reports whether (r, c) is Missing.
func (g *Grid) IsMissing(r, c int) bool {
	return !g.valid[g.index(r, c)]
}

// Set stores a finite value at (r, c).
func (g *Grid) Set(r, c int, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w at (%d,%d): %v", ErrNonFinite, r, c, v)
	}
	i := g.index(r, c)
	g.values[i] = v
	g.valid[i] = true
	return nil
}

// SetMissing marks (r, c) as Missing.
func (g *Grid) SetMissing(r, c int) {
	i := g.index(r, c)
	g.values[i] = 0
	g.valid[i] = false
}

// MissingCount returns the number of Missing cells.
func (g *Grid) MissingCount() int {
	n := 0
	for _, ok := range g.valid {
		if !ok {
			n++
		}
	}
	return n
}

// ValidValues returns every present value in row-major order.
func (g *Grid) ValidValues() []float64 {
	out := make([]float64, 0, len(g.values))
	for i, v := range g.values {
		if g.valid[i] {
			out = append(out, v)
		}
	}
	return out
}

// Cells returns a copy of the grid as row slices.
func (g *Grid) Cells() [][]Cell {
	out := make([][]Cell, g.rows)
	for r := range out {
		out[r] = make([]Cell, g.cols)
		for c := range out[r] {
			out[r][c] = g.At(r, c)
		}
	}
	return out
}

// Clone returns an independent copy.
func (g *Grid) Clone() *Grid {
	cp := &Grid{
		rows:   g.rows,
		cols:   g.cols,
		values: make([]float64, len(g.values)),
		valid:  make([]bool, len(g.valid)),
	}
	copy(cp.values, g.values)
	copy(cp.valid, g.valid)
	return cp
}

// Equal reports whether both grids have the same shape, the same Missing
// cells and numerically equal values elsewhere.
func (g *Grid) Equal(other *Grid) bool {
	if g == nil || other == nil {
		return g == other
	}
	if g.rows != other.rows || g.cols != other.cols {
		return false
	}
	for i := range g.values {
		if g.valid[i] != other.valid[i] {
			return false
		}
		if g.valid[i] && g.values[i] != other.values[i] {
			return false
		}
	}
	return true
}

// Dense exports the values as a gonum matrix. Missing cells are NaN in
// the export only; the matrix does not alias the grid.
func (g *Grid) Dense() *mat.Dense {
	data := make([]float64, len(g.values))
	for i, v := range g.values {
		if g.valid[i] {
			data[i] = v
		} else {
			data[i] = math.NaN()
		}
	}
	return mat.NewDense(g.rows, g.cols, data)
}

// String renders the grid for debugging, with Missing cells shown as "·".
func (g *Grid) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Grid %dx%d\n", g.rows, g.cols)
	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			if c > 0 {
				b.WriteByte(' ')
			}
			if v, ok := g.Value(r, c); ok {
				fmt.Fprintf(&b, "%g", v)
			} else {
				b.WriteString("·")
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
