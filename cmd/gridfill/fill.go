package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"

	"github.com/banshee-data/gridfill/internal/config"
	"github.com/banshee-data/gridfill/internal/db"
	"github.com/banshee-data/gridfill/internal/fsutil"
	"github.com/banshee-data/gridfill/internal/grid"
	"github.com/banshee-data/gridfill/internal/interp"
	"github.com/banshee-data/gridfill/internal/monitoring"
	"github.com/banshee-data/gridfill/internal/render"
	"github.com/banshee-data/gridfill/internal/security"
	"github.com/banshee-data/gridfill/internal/timeutil"
	"github.com/banshee-data/gridfill/internal/version"
)

// fillOptions is the resolved configuration of one fill run.
type fillOptions struct {
	InputPath  string
	OutputPath string
	PlotPath   string
	ChartPath  string
	XLSXPath   string
	DBPath     string
	Quiet      bool
	Config     *config.Config
}

// Injected by tests.
var (
	fillFS    fsutil.FileSystem = fsutil.OSFileSystem{}
	fillClock timeutil.Clock    = timeutil.RealClock{}
)

func runFill(args []string, stdout, stderr io.Writer) int {
	opts, code, done := parseFillArgs(args, stdout, stderr)
	if done {
		return code
	}

	progress := log.New(stdout, "", 0)
	if opts.Quiet {
		progress.SetOutput(io.Discard)
		restore := muteMonitoring()
		defer restore()
	} else {
		restore := routeMonitoring(stderr)
		defer restore()
	}

	if err := fill(opts, progress); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCode(err)
	}
	return exitOK
}

// parseFillArgs parses the command line. done reports that run should
// return code immediately (help, version or a usage error).
func parseFillArgs(args []string, stdout, stderr io.Writer) (opts fillOptions, code int, done bool) {
	fs := flag.NewFlagSet("gridfill", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = usageFunc(fs, "gridfill -input FILE [flags] [output.csv]\n       gridfill history [flags]")

	input := fs.String("input", "", "path to the input CSV grid (required)")
	output := fs.String("output", "", "path to the output CSV; overrides the positional output argument")
	configPath := fs.String("config", "", "path to a JSON or YAML config file")
	token := fs.String("token", config.DefaultMissingToken, "exact field text that marks a missing cell")
	precision := fs.Int("precision", config.DefaultPrecision, "digits after the decimal point in the output (-1 = shortest exact)")
	plotPath := fs.String("plot", "", "write a heatmap PNG of the result to this path")
	chartPath := fs.String("chart", "", "write an interactive HTML chart of the input and result to this path")
	xlsxPath := fs.String("xlsx", "", "write an .xlsx workbook with filled cells highlighted to this path")
	dbPath := fs.String("db", "", "record the run in this SQLite run-history database")
	quiet := fs.Bool("quiet", false, "suppress progress output")
	showVersion := fs.Bool("version", false, "print version and exit")

	positional, err := parseInterspersed(fs, args)
	if errors.Is(err, flag.ErrHelp) {
		return opts, exitOK, true
	}
	if err != nil {
		return opts, exitFailure, true
	}

	if *showVersion {
		fmt.Fprintln(stdout, version.String())
		return opts, exitOK, true
	}

	if *input == "" {
		fmt.Fprintln(stderr, "Error: -input is required")
		fs.Usage()
		return opts, exitFailure, true
	}
	if len(positional) > 1 {
		fmt.Fprintf(stderr, "Error: expected at most one output argument, got %d\n", len(positional))
		fs.Usage()
		return opts, exitFailure, true
	}

	cfg := config.EmptyConfig()
	if *configPath != "" {
		cfg, err = config.LoadConfigFS(fillFS, *configPath)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return opts, exitFailure, true
		}
	}

	// Explicit flags win over the config file.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "token":
			cfg.MissingToken = token
		case "precision":
			cfg.Precision = precision
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Error: invalid options: %v\n", err)
		return opts, exitFailure, true
	}

	var positionalOutput string
	if len(positional) == 1 {
		positionalOutput = positional[0]
	}

	outputPath := resolveOutputPath(*input, *output, positionalOutput, cfg.GetOutputSuffix())
	for _, target := range []string{outputPath, *plotPath, *chartPath, *xlsxPath} {
		if target == "" {
			continue
		}
		if err := security.ValidateOutputPath(*input, target); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return opts, exitFailure, true
		}
	}

	return fillOptions{
		InputPath:  *input,
		OutputPath: outputPath,
		PlotPath:   *plotPath,
		ChartPath:  *chartPath,
		XLSXPath:   *xlsxPath,
		DBPath:     *dbPath,
		Quiet:      *quiet,
		Config:     cfg,
	}, exitOK, false
}

// resolveOutputPath applies the output precedence: explicit flag, then
// positional argument, then a name derived from the input.
func resolveOutputPath(input, flagOutput, positional, suffix string) string {
	switch {
	case flagOutput != "":
		return flagOutput
	case positional != "":
		return positional
	default:
		return deriveOutputPath(input, suffix)
	}
}

// deriveOutputPath strips the input's extension and appends suffix + ".csv".
// A dot-file name such as ".grid" is treated as having no extension.
func deriveOutputPath(input, suffix string) string {
	ext := filepath.Ext(input)
	if ext == filepath.Base(input) {
		ext = ""
	}
	return strings.TrimSuffix(input, ext) + suffix + ".csv"
}

// fill runs load, interpolate, write and the optional extras.
func fill(opts fillOptions, progress *log.Logger) error {
	cfg := opts.Config
	sw := timeutil.NewStopwatch(fillClock)

	progress.Printf("Reading matrix from: %s", opts.InputPath)
	in, err := grid.Load(fillFS, opts.InputPath, grid.ParseOptions{MissingToken: cfg.GetMissingToken()})
	if err != nil {
		return err
	}
	progress.Printf("Input matrix read successfully.")
	sw.Lap("load")

	progress.Printf("Interpolating missing values...")
	out, stats := interp.InterpolateWithStats(in)
	progress.Printf("Interpolation complete.")
	sw.Lap("interpolate")

	progress.Printf("Writing interpolated matrix to: %s", opts.OutputPath)
	if err := grid.Save(fillFS, opts.OutputPath, out, grid.FormatOptions{Precision: cfg.GetPrecision()}); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	progress.Printf("Output matrix written successfully.")
	sw.Lap("write")

	if opts.PlotPath != "" {
		err := render.SaveHeatmap(fillFS, opts.PlotPath, in, out, render.HeatmapOptions{
			Title:        filepath.Base(opts.InputPath),
			WidthInches:  cfg.GetPlotWidthInches(),
			HeightInches: cfg.GetPlotHeightInches(),
		})
		if err != nil {
			return fmt.Errorf("failed to write plot: %w", err)
		}
		progress.Printf("Heatmap written to: %s", opts.PlotPath)
		sw.Lap("plot")
	}

	if opts.ChartPath != "" {
		if err := saveChart(opts.ChartPath, in, out, cfg); err != nil {
			return err
		}
		progress.Printf("Chart written to: %s", opts.ChartPath)
		sw.Lap("chart")
	}

	if opts.XLSXPath != "" {
		err := render.SaveWorkbook(fillFS, opts.XLSXPath, in, out, render.WorkbookOptions{Precision: cfg.GetPrecision()})
		if err != nil {
			return fmt.Errorf("failed to write workbook: %w", err)
		}
		progress.Printf("Workbook written to: %s", opts.XLSXPath)
		sw.Lap("workbook")
	}

	if opts.DBPath != "" {
		// The output already exists, so a history failure is only a warning.
		if err := recordRun(opts, stats); err != nil {
			progress.Printf("warning: run not recorded: %v", err)
		}
		sw.Lap("record")
	}

	for _, st := range sw.Stages() {
		monitoring.Logf("stage %-12s %v", st.Name, st.Duration)
	}
	monitoring.Logf("total %v", sw.Total())
	return nil
}

func saveChart(path string, in, out *grid.Grid, cfg *config.Config) error {
	var buf bytes.Buffer
	err := render.WriteChart(&buf, in, out, render.ChartOptions{
		Title: filepath.Base(path),
		Theme: cfg.GetChartTheme(),
	})
	if err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := fillFS.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create chart directory: %w", err)
		}
	}
	if err := fillFS.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write chart: %w", err)
	}
	return nil
}

func recordRun(opts fillOptions, stats interp.Stats) error {
	database, err := db.OpenDB(opts.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	run := &db.Run{
		InputPath:      opts.InputPath,
		OutputPath:     opts.OutputPath,
		Rows:           stats.Rows,
		Cols:           stats.Cols,
		MissingCells:   stats.Missing,
		NeighborFilled: stats.NeighborFilled,
		FallbackFilled: stats.FallbackFilled,
		GlobalMean:     stats.GlobalMean,
		MissingToken:   opts.Config.GetMissingToken(),
		Precision:      opts.Config.GetPrecision(),
	}
	if err := db.NewRunStore(database.DB, fillClock).RecordRun(run); err != nil {
		return err
	}
	monitoring.Logf("recorded run %s in %s", run.RunID, opts.DBPath)
	return nil
}

// routeMonitoring sends package logs to w with the standard log prefix.
func routeMonitoring(w io.Writer) (restore func()) {
	prev := monitoring.Logf
	monitoring.SetLogger(log.New(w, "", log.LstdFlags).Printf)
	return func() { monitoring.Logf = prev }
}

func muteMonitoring() (restore func()) {
	prev := monitoring.Logf
	monitoring.SetLogger(nil)
	return func() { monitoring.Logf = prev }
}
