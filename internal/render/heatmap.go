package render

import (
	"bytes"
	"fmt"
	"image/color"
	"math"
	"path/filepath"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/gridfill/internal/fsutil"
	"github.com/banshee-data/gridfill/internal/grid"
	"github.com/banshee-data/gridfill/internal/monitoring"
)

// Default plot size in inches.
const (
	DefaultWidthInches  = 8.0
	DefaultHeightInches = 6.0
)

// paletteSize is the number of colour steps in the heatmap.
const paletteSize = 64

// HeatmapOptions controls SaveHeatmap.
type HeatmapOptions struct {
	Title        string
	WidthInches  float64 // <= 0 uses DefaultWidthInches
	HeightInches float64 // <= 0 uses DefaultHeightInches
}

// gridXYZ adapts a grid export to plotter.GridXYZ with row 0 drawn at the
// top. Missing cells are NaN in the export.
type gridXYZ struct {
	m *mat.Dense
}

func (x gridXYZ) Dims() (c, r int) {
	r, c = x.m.Dims()
	return c, r
}

func (x gridXYZ) Z(c, r int) float64 {
	rows, _ := x.m.Dims()
	return x.m.At(rows-1-r, c)
}

func (x gridXYZ) X(c int) float64 { return float64(c) }
func (x gridXYZ) Y(r int) float64 { return float64(r) }

// valueRange returns the min and max valid values, widened so that
// max > min always holds.
func valueRange(g *grid.Grid) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range g.ValidValues() {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if math.IsInf(lo, 1) {
		return 0, 1
	}
	if hi <= lo {
		hi = lo + 1
	}
	return lo, hi
}

// filledPoints returns plot coordinates of cells missing in in but present in out.
func filledPoints(in, out *grid.Grid) plotter.XYs {
	var pts plotter.XYs
	for r := 0; r < in.Rows(); r++ {
		for c := 0; c < in.Cols(); c++ {
			if in.IsMissing(r, c) && !out.IsMissing(r, c) {
				pts = append(pts, plotter.XY{X: float64(c), Y: float64(in.Rows() - 1 - r)})
			}
		}
	}
	return pts
}

func checkPair(in, out *grid.Grid) error {
	if in == nil || out == nil {
		return fmt.Errorf("%w: nil grid", grid.ErrBadShape)
	}
	if in.Rows() != out.Rows() || in.Cols() != out.Cols() {
		return fmt.Errorf("%w: input %dx%d, output %dx%d",
			grid.ErrBadShape, in.Rows(), in.Cols(), out.Rows(), out.Cols())
	}
	return nil
}

// Heatmap builds the plot of out with the cells filled from in marked.
func Heatmap(in, out *grid.Grid, title string) (*plot.Plot, error) {
	if err := checkPair(in, out); err != nil {
		return nil, err
	}

	cm := moreland.SmoothBlueRed()
	cm.SetMax(1)
	cm.SetMin(0)

	hm := plotter.NewHeatMap(gridXYZ{out.Dense()}, cm.Palette(paletteSize))
	hm.Min, hm.Max = valueRange(out)
	hm.NaN = color.Transparent

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Column"
	p.Y.Label.Text = "Row (from bottom)"
	p.Add(hm)

	if pts := filledPoints(in, out); len(pts) > 0 {
		marks, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, fmt.Errorf("create filled-cell overlay: %w", err)
		}
		marks.GlyphStyle.Shape = draw.CrossGlyph{}
		marks.GlyphStyle.Color = color.Black
		marks.GlyphStyle.Radius = vg.Points(4)
		p.Add(marks)
		p.Legend.Add(fmt.Sprintf("filled (%d)", len(pts)), marks)
		p.Legend.Top = true
	}

	return p, nil
}

// SaveHeatmap renders the heatmap as PNG and writes it to path. The image is
// fully rendered before anything is written.
func SaveHeatmap(fsys fsutil.FileSystem, path string, in, out *grid.Grid, opts HeatmapOptions) error {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}

	title := opts.Title
	if title == "" {
		title = "Interpolated grid"
	}
	p, err := Heatmap(in, out, title)
	if err != nil {
		return err
	}

	w, h := opts.WidthInches, opts.HeightInches
	if w <= 0 {
		w = DefaultWidthInches
	}
	if h <= 0 {
		h = DefaultHeightInches
	}

	wt, err := p.WriterTo(vg.Length(w)*vg.Inch, vg.Length(h)*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("render heatmap: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return fmt.Errorf("render heatmap: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := fsys.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create plot directory: %w", err)
		}
	}
	if err := fsys.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("save heatmap %s: %w", path, err)
	}

	monitoring.Logf("wrote heatmap %s (%d bytes)", path, buf.Len())
	return nil
}
