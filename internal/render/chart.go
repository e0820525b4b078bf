package render

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"github.com/banshee-data/gridfill/internal/grid"
)

// DefaultChartTheme matches the dark theme used by the debug charts.
const DefaultChartTheme = "dark"

// KnownChartTheme reports whether theme is one of the echarts built-in
// themes ("light", "dark") or a go-echarts preset.
func KnownChartTheme(theme string) bool {
	return theme == "light" || theme == "dark" || types.PresetTheme(theme)
}

// visualMapColors is the viridis ramp shared by both heatmaps.
var visualMapColors = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// ChartOptions controls WriteChart.
type ChartOptions struct {
	Title string
	Theme string // empty uses DefaultChartTheme
}

// WriteChart writes an HTML page with two heatmaps: the input with its
// gaps left blank and the completed output.
func WriteChart(w io.Writer, in, out *grid.Grid, options ChartOptions) error {
	if err := checkPair(in, out); err != nil {
		return err
	}

	title := options.Title
	if title == "" {
		title = "Interpolated grid"
	}
	theme := options.Theme
	if theme == "" {
		theme = DefaultChartTheme
	}
	if !KnownChartTheme(theme) {
		return fmt.Errorf("render chart: unknown theme %q", theme)
	}

	lo, hi := valueRange(out)
	page := components.NewPage().SetPageTitle(title)
	page.AddCharts(
		heatmapChart(in, title, "input", fmt.Sprintf("%d missing cells", in.MissingCount()), theme, lo, hi),
		heatmapChart(out, title, "interpolated", fmt.Sprintf("%dx%d", out.Rows(), out.Cols()), theme, lo, hi),
	)

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

func heatmapChart(g *grid.Grid, title, series, subtitle, theme string, lo, hi float64) *charts.HeatMap {
	rows, cols := g.Rows(), g.Cols()

	xLabels := make([]string, cols)
	for c := range xLabels {
		xLabels[c] = strconv.Itoa(c)
	}
	// Category axes grow upwards, so list rows bottom first.
	yLabels := make([]string, rows)
	for r := range yLabels {
		yLabels[r] = strconv.Itoa(rows - 1 - r)
	}

	data := make([]opts.HeatMapData, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			var v interface{} = "-"
			if x, ok := g.Value(r, c); ok {
				v = x
			}
			data = append(data, opts.HeatMapData{Value: [3]interface{}{c, rows - 1 - r, v}})
		}
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Theme: theme, Width: "900px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: title + " (" + series + ")", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: xLabels, Name: "column"}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: yLabels, Name: "row"}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        toFloat32(lo),
			Max:        toFloat32(hi),
			InRange:    &opts.VisualMapInRange{Color: visualMapColors},
		}),
	)
	hm.AddSeries(series, data)
	return hm
}

// toFloat32 narrows v for the visual map, saturating at the float32 range
// so the options still marshal to JSON.
func toFloat32(v float64) float32 {
	return float32(math.Max(-math.MaxFloat32, math.Min(v, math.MaxFloat32)))
}
