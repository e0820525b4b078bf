package interp

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/gridfill/internal/grid"
	"github.com/banshee-data/gridfill/internal/monitoring"
)

// AllMissingFallback is the global mean used when the input grid has no
// present value at all.
const AllMissingFallback = 0.0

// Stats summarises one interpolation pass.
type Stats struct {
	Rows           int
	Cols           int
	Valid          int
	Missing        int
	NeighborFilled int
	FallbackFilled int
	GlobalMean     float64
}

// offsets lists the non-diagonal neighbours: up, down, left, right.
var offsets = [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}

// Interpolate returns a new grid with every Missing cell of g resolved.
// Present cells are copied unchanged and g is not modified.
func Interpolate(g *grid.Grid) *grid.Grid {
	out, _ := InterpolateWithStats(g)
	return out
}

// InterpolateWithStats is Interpolate plus a summary of how each cell was
// resolved. A nil grid yields a nil result.
func InterpolateWithStats(g *grid.Grid) (*grid.Grid, Stats) {
	if g == nil {
		return nil, Stats{}
	}

	rows, cols := g.Dims()
	global := GlobalMean(g)
	stats := Stats{Rows: rows, Cols: cols, GlobalMean: global}

	out := g.Clone()
	var neighbours [4]float64
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if !g.IsMissing(r, c) {
				stats.Valid++
				continue
			}
			stats.Missing++

			valid := ValidNeighbors(g, r, c, neighbours[:0])
			v := global
			if len(valid) > 0 {
				v = mean(valid)
				stats.NeighborFilled++
			} else {
				stats.FallbackFilled++
			}
			if err := out.Set(r, c, v); err != nil {
				// Means of finite values are finite.
				panic(err)
			}
		}
	}

	monitoring.Logf("interpolated %dx%d grid: %d missing, %d from neighbours, %d from global mean %.6f",
		rows, cols, stats.Missing, stats.NeighborFilled, stats.FallbackFilled, global)
	return out, stats
}

// GlobalMean returns the mean of every present value in g, or
// AllMissingFallback when there is none.
func GlobalMean(g *grid.Grid) float64 {
	values := g.ValidValues()
	if len(values) == 0 {
		return AllMissingFallback
	}
	return mean(values)
}

// mean is stat.Mean, rescaled when the running sum of large finite values
// overflows to an infinity or, across partial sums, to NaN.
func mean(values []float64) float64 {
	m := stat.Mean(values, nil)
	if !math.IsInf(m, 0) && !math.IsNaN(m) {
		return m
	}
	n := float64(len(values))
	m = 0
	for _, v := range values {
		m += v / n
	}
	return m
}

// Neighbors returns the in-bounds non-diagonal neighbour cells of (r, c)
// in up, down, left, right order: 2 at a corner, 3 on an edge, 4 inside.
func Neighbors(g *grid.Grid, r, c int) []grid.Cell {
	rows, cols := g.Dims()
	out := make([]grid.Cell, 0, len(offsets))
	for _, o := range offsets {
		nr, nc := r+o[0], c+o[1]
		if nr < 0 || nr >= rows || nc < 0 || nc >= cols {
			continue
		}
		out = append(out, g.At(nr, nc))
	}
	return out
}

// ValidNeighbors appends the present non-diagonal neighbour values of
// (r, c) to dst and returns it.
func ValidNeighbors(g *grid.Grid, r, c int, dst []float64) []float64 {
	rows, cols := g.Dims()
	for _, o := range offsets {
		nr, nc := r+o[0], c+o[1]
		if nr < 0 || nr >= rows || nc < 0 || nc >= cols {
			continue
		}
		if v, ok := g.Value(nr, nc); ok {
			dst = append(dst, v)
		}
	}
	return dst
}
