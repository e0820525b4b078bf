package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gridfill/internal/db"
	"github.com/banshee-data/gridfill/internal/fsutil"
	"github.com/banshee-data/gridfill/internal/grid"
	"github.com/banshee-data/gridfill/internal/testutil"
)

// invoke runs the CLI and returns exit code, stdout and stderr.
func invoke(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func loadOutput(t *testing.T, path string) *grid.Grid {
	t.Helper()
	g, err := grid.Load(nil, path, grid.ParseOptions{})
	require.NoError(t, err)
	return g
}

func TestDeriveOutputPath(t *testing.T) {
	tests := []struct {
		input, suffix, want string
	}{
		{"grid.csv", "_interpolated", "grid_interpolated.csv"},
		{"data/grid.csv", "_interpolated", "data/grid_interpolated.csv"},
		{"grid", "_interpolated", "grid_interpolated.csv"},
		{"grid.txt", "_filled", "grid_filled.csv"},
		{"a.b.csv", "_interpolated", "a.b_interpolated.csv"},
		{"dir.v/grid", "_interpolated", "dir.v/grid_interpolated.csv"},
		{".grid", "_interpolated", ".grid_interpolated.csv"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, filepath.FromSlash(tt.want), deriveOutputPath(filepath.FromSlash(tt.input), tt.suffix))
		})
	}
}

func TestResolveOutputPath_Precedence(t *testing.T) {
	assert.Equal(t, "flag.csv", resolveOutputPath("in.csv", "flag.csv", "pos.csv", "_interpolated"))
	assert.Equal(t, "pos.csv", resolveOutputPath("in.csv", "", "pos.csv", "_interpolated"))
	assert.Equal(t, "in_interpolated.csv", resolveOutputPath("in.csv", "", "", "_interpolated"))
}

func TestExitCode(t *testing.T) {
	malformed := &grid.ParseError{Line: 2, Field: 1, Text: "abc", Err: grid.ErrNotNumeric}
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitOK},
		{"not found", fmt.Errorf("%w: %w", grid.ErrNotFound, os.ErrNotExist), exitNotFound},
		{"malformed", malformed, exitMalformed},
		{"wrapped malformed", fmt.Errorf("load: %w", malformed), exitMalformed},
		{"other", errors.New("disk full"), exitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestParseInterspersed(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	input := fs.String("input", "", "")
	quiet := fs.Bool("quiet", false, "")

	pos, err := parseInterspersed(fs, []string{"out.csv", "-input", "in.csv", "-quiet"})
	require.NoError(t, err)
	assert.Equal(t, []string{"out.csv"}, pos)
	assert.Equal(t, "in.csv", *input)
	assert.True(t, *quiet)
}

func TestRun_ReferenceGrid(t *testing.T) {
	dir := t.TempDir()
	input := testutil.WriteFixture(t, dir, "grid.csv", testutil.ReferenceCSV)

	code, stdout, stderr := invoke(t, "-input", input)
	require.Equal(t, exitOK, code, stderr)

	output := filepath.Join(dir, "grid_interpolated.csv")
	out := loadOutput(t, output)
	in := testutil.MustParse(t, testutil.ReferenceCSV)

	assert.Equal(t, 0, out.MissingCount())
	for r := 0; r < 5; r++ {
		for c := 0; c < 5; c++ {
			got, _ := out.Value(r, c)
			if want, ok := testutil.ReferenceFilled[[2]int{r, c}]; ok {
				assert.InDelta(t, want, got, 1e-9, "cell (%d,%d)", r, c)
				continue
			}
			want, _ := in.Value(r, c)
			assert.Equal(t, want, got, "cell (%d,%d) must be preserved", r, c)
		}
	}

	for _, line := range []string{
		"Reading matrix from: " + input,
		"Input matrix read successfully.",
		"Interpolating missing values...",
		"Interpolation complete.",
		"Writing interpolated matrix to: " + output,
		"Output matrix written successfully.",
	} {
		assert.Contains(t, stdout, line)
	}
}

func TestRun_OutputPrecedence(t *testing.T) {
	dir := t.TempDir()
	input := testutil.WriteFixture(t, dir, "grid.csv", "1,nan\n")
	positional := filepath.Join(dir, "positional.csv")
	explicit := filepath.Join(dir, "explicit.csv")

	code, _, stderr := invoke(t, "-input", input, positional)
	require.Equal(t, exitOK, code, stderr)
	assert.FileExists(t, positional)

	code, _, stderr = invoke(t, positional+".2", "-input", input, "-output", explicit)
	require.Equal(t, exitOK, code, stderr)
	assert.FileExists(t, explicit)
	assert.NoFileExists(t, positional+".2")
	assert.NoFileExists(t, filepath.Join(dir, "grid_interpolated.csv"))
}

func TestRun_NotFound(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "absent.csv")

	code, _, stderr := invoke(t, "-input", input)
	assert.Equal(t, exitNotFound, code)
	assert.Contains(t, stderr, "Error:")
	assert.Contains(t, stderr, "absent.csv")
	assert.NoFileExists(t, filepath.Join(dir, "absent_interpolated.csv"))
}

func TestRun_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"ragged", "1,2,3\n4,5\n", "line 2"},
		{"non numeric", "1,2\n3,abc\n", `"abc"`},
		{"empty", "\n\n", "no data rows"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			input := testutil.WriteFixture(t, dir, "bad.csv", tt.content)

			code, _, stderr := invoke(t, "-input", input)
			assert.Equal(t, exitMalformed, code)
			assert.Contains(t, stderr, tt.want)
			assert.NoFileExists(t, filepath.Join(dir, "bad_interpolated.csv"))
		})
	}
}

func TestRun_AllMissing(t *testing.T) {
	dir := t.TempDir()
	input := testutil.WriteFixture(t, dir, "empty.csv", testutil.AllMissingCSV(2, 3))

	code, _, stderr := invoke(t, "-input", input)
	require.Equal(t, exitOK, code, stderr)

	data, err := os.ReadFile(filepath.Join(dir, "empty_interpolated.csv"))
	require.NoError(t, err)
	assert.Equal(t, "0,0,0\n0,0,0\n", string(data))
}

func TestRun_Flags(t *testing.T) {
	t.Run("precision", func(t *testing.T) {
		dir := t.TempDir()
		input := testutil.WriteFixture(t, dir, "g.csv", "1.23456,nan\n")
		code, _, stderr := invoke(t, "-input", input, "-precision", "2")
		require.Equal(t, exitOK, code, stderr)

		data, err := os.ReadFile(filepath.Join(dir, "g_interpolated.csv"))
		require.NoError(t, err)
		assert.Equal(t, "1.23,1.23\n", string(data))
	})

	t.Run("custom token", func(t *testing.T) {
		dir := t.TempDir()
		input := testutil.WriteFixture(t, dir, "g.csv", "2,NA\n4,6\n")
		code, _, stderr := invoke(t, "-input", input, "-token", "NA")
		require.Equal(t, exitOK, code, stderr)

		data, err := os.ReadFile(filepath.Join(dir, "g_interpolated.csv"))
		require.NoError(t, err)
		assert.Equal(t, "2,4\n4,6\n", string(data))
	})

	t.Run("quiet", func(t *testing.T) {
		dir := t.TempDir()
		input := testutil.WriteFixture(t, dir, "g.csv", "1,nan\n")
		code, stdout, stderr := invoke(t, "-quiet", "-input", input)
		require.Equal(t, exitOK, code, stderr)
		assert.Empty(t, stdout)
		assert.Empty(t, stderr)
	})

	t.Run("version", func(t *testing.T) {
		code, stdout, _ := invoke(t, "-version")
		assert.Equal(t, exitOK, code)
		assert.Contains(t, stdout, "gridfill")
	})

	t.Run("missing input flag", func(t *testing.T) {
		code, _, stderr := invoke(t)
		assert.Equal(t, exitFailure, code)
		assert.Contains(t, stderr, "-input is required")
	})

	t.Run("unknown flag", func(t *testing.T) {
		code, _, _ := invoke(t, "-bogus")
		assert.Equal(t, exitFailure, code)
	})

	t.Run("too many outputs", func(t *testing.T) {
		code, _, _ := invoke(t, "-input", "x.csv", "a.csv", "b.csv")
		assert.Equal(t, exitFailure, code)
	})

	t.Run("invalid precision", func(t *testing.T) {
		code, _, stderr := invoke(t, "-input", "x.csv", "-precision", "40")
		assert.Equal(t, exitFailure, code)
		assert.Contains(t, stderr, "precision")
	})
}

func TestRun_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	input := testutil.WriteFixture(t, dir, "g.csv", "1,-,3\n")
	cfgPath := testutil.WriteFixture(t, dir, "cfg.json", `{"missing_token": "-", "output_suffix": "_filled", "precision": 1}`)

	code, _, stderr := invoke(t, "-input", input, "-config", cfgPath)
	require.Equal(t, exitOK, code, stderr)

	data, err := os.ReadFile(filepath.Join(dir, "g_filled.csv"))
	require.NoError(t, err)
	assert.Equal(t, "1.0,2.0,3.0\n", string(data))

	// -token overrides the config file.
	input2 := testutil.WriteFixture(t, dir, "h.csv", "1,x,3\n")
	code, _, stderr = invoke(t, "-input", input2, "-config", cfgPath, "-token", "x")
	require.Equal(t, exitOK, code, stderr)
	assert.FileExists(t, filepath.Join(dir, "h_filled.csv"))
}

func TestRun_RefusesToOverwriteInput(t *testing.T) {
	dir := t.TempDir()
	input := testutil.WriteFixture(t, dir, "grid.csv", "1,nan\n")

	code, _, stderr := invoke(t, "-input", input, "-output", input)
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr, "overwrite the input")

	data, err := os.ReadFile(input)
	require.NoError(t, err)
	assert.Equal(t, "1,nan\n", string(data))
}

func TestRun_BadConfig(t *testing.T) {
	dir := t.TempDir()
	input := testutil.WriteFixture(t, dir, "g.csv", "1,nan\n")
	cfgPath := testutil.WriteFixture(t, dir, "cfg.json", `{"precision": 99}`)

	code, _, stderr := invoke(t, "-input", input, "-config", cfgPath)
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr, "Error:")
	assert.NoFileExists(t, filepath.Join(dir, "g_interpolated.csv"))
}

func TestRun_PlotAndChart(t *testing.T) {
	dir := t.TempDir()
	input := testutil.WriteFixture(t, dir, "grid.csv", testutil.ReferenceCSV)
	plot := filepath.Join(dir, "out", "grid.png")
	chart := filepath.Join(dir, "out", "grid.html")
	xlsx := filepath.Join(dir, "out", "grid.xlsx")

	code, stdout, stderr := invoke(t, "-input", input, "-plot", plot, "-chart", chart, "-xlsx", xlsx)
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "Heatmap written to: "+plot)

	png, err := os.ReadFile(plot)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	html, err := os.ReadFile(chart)
	require.NoError(t, err)
	assert.Contains(t, string(html), "<title>grid.html</title>")

	workbook, err := os.ReadFile(xlsx)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(workbook, []byte("PK")), "xlsx is a zip archive")
}

func TestRun_HistoryRoundTrip(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "runs.db")
	first := testutil.WriteFixture(t, dir, "first.csv", "1,nan\n")
	second := testutil.WriteFixture(t, dir, "second.csv", testutil.ReferenceCSV)

	for _, input := range []string{first, second} {
		code, _, stderr := invoke(t, "-input", input, "-db", dbPath)
		require.Equal(t, exitOK, code, stderr)
	}

	code, stdout, stderr := invoke(t, "history", "-db", dbPath)
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "5x5")
	assert.Contains(t, stdout, "first.csv")
	assert.Less(t, strings.Index(stdout, "second.csv"), strings.Index(stdout, "first.csv"), "newest first")

	code, stdout, _ = invoke(t, "history", "-db", dbPath, "-limit", "1")
	require.Equal(t, exitOK, code)
	assert.NotContains(t, stdout, "first.csv")

	database, err := db.OpenDB(dbPath)
	require.NoError(t, err)
	runs, err := db.NewRunStore(database.DB, nil).RecentRuns(1)
	require.NoError(t, err)
	require.NoError(t, database.Close())
	require.Len(t, runs, 1)
	assert.Equal(t, 5, runs[0].MissingCells)
	assert.Equal(t, 5, runs[0].NeighborFilled)

	code, stdout, stderr = invoke(t, "history", "-db", dbPath, "-run", runs[0].RunID)
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, runs[0].RunID)
	assert.Contains(t, stdout, "5 from neighbours")

	code, _, stderr = invoke(t, "history", "-db", dbPath, "-run", "no-such-run")
	assert.Equal(t, exitNotFound, code)
	assert.Contains(t, stderr, "run not found")
}

func TestRun_HistoryMissingDB(t *testing.T) {
	code, _, stderr := invoke(t, "history", "-db", filepath.Join(t.TempDir(), "none.db"))
	assert.Equal(t, exitNotFound, code)
	assert.Contains(t, stderr, "no run history")
}

func TestRun_HistoryEmpty(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	database, err := db.OpenDB(dbPath)
	require.NoError(t, err)
	require.NoError(t, database.Close())

	code, stdout, _ := invoke(t, "history", "-db", dbPath)
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "No runs recorded.")
}

func TestRun_MemoryFileSystem(t *testing.T) {
	mem := fsutil.NewMemoryFileSystem()
	require.NoError(t, mem.WriteFile("in/grid.csv", []byte(testutil.ReferenceCSV), 0644))

	orig := fillFS
	fillFS = mem
	defer func() { fillFS = orig }()

	code, _, stderr := invoke(t, "-input", "in/grid.csv", "-output", "out/grid.csv", "-plot", "out/grid.png")
	require.Equal(t, exitOK, code, stderr)
	assert.Equal(t, []string{"in/grid.csv", "out/grid.csv", "out/grid.png"}, mem.Files())

	data, err := mem.ReadFile("out/grid.csv")
	require.NoError(t, err)
	assert.Equal(t, 5, strings.Count(string(data), "\n"))
	assert.NotContains(t, string(data), "nan")
}

func TestRun_MemoryFileSystemConfig(t *testing.T) {
	mem := fsutil.NewMemoryFileSystem()
	require.NoError(t, mem.WriteFile("in/grid.csv", []byte("1,-,3\n"), 0644))
	require.NoError(t, mem.WriteFile("in/run.yml", []byte("missing_token: \"-\"\nprecision: 1\n"), 0644))

	orig := fillFS
	fillFS = mem
	defer func() { fillFS = orig }()

	code, _, stderr := invoke(t, "-input", "in/grid.csv", "-output", "out/grid.csv", "-config", "in/run.yml")
	require.Equal(t, exitOK, code, stderr)

	data, err := mem.ReadFile("out/grid.csv")
	require.NoError(t, err)
	assert.Equal(t, "1.0,2.0,3.0\n", string(data))
}

func TestRun_UnknownChartTheme(t *testing.T) {
	dir := t.TempDir()
	input := testutil.WriteFixture(t, dir, "grid.csv", "1,nan,3\n")
	cfgPath := testutil.WriteFixture(t, dir, "cfg.json", `{"chart_theme": "drak"}`)

	code, _, stderr := invoke(t, "-input", input, "-config", cfgPath, "-chart", filepath.Join(dir, "grid.html"))
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr, "chart_theme")
	assert.NoFileExists(t, filepath.Join(dir, "grid.html"))
	assert.NoFileExists(t, filepath.Join(dir, "grid_interpolated.csv"))
}

func TestRun_HelpNamesConfigFormats(t *testing.T) {
	for _, args := range [][]string{{"-h"}, {"history", "-h"}} {
		code, _, stderr := invoke(t, args...)
		assert.Equal(t, exitOK, code)
		assert.Contains(t, stderr, "path to a JSON or YAML config file", "args %v", args)
	}
}
