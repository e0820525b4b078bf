package grid

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/banshee-data/gridfill/internal/fsutil"
	"github.com/banshee-data/gridfill/internal/monitoring"
)

// ShortestPrecision formats each value with the fewest digits that parse
// back to the identical float64.
const ShortestPrecision = -1

// FormatOptions controls how values are rendered.
type FormatOptions struct {
	// Precision is the number of digits after the decimal point, or
	// ShortestPrecision. Values are never written in exponent form.
	Precision int
}

// DefaultFormatOptions writes values that round-trip exactly.
func DefaultFormatOptions() FormatOptions {
	return FormatOptions{Precision: ShortestPrecision}
}

// FormatValue renders v in the output number format.
func FormatValue(v float64, precision int) string {
	if precision < 0 {
		precision = ShortestPrecision
	}
	return strconv.FormatFloat(v, 'f', precision, 64)
}

// Write serialises g as comma-separated rows without a header. It fails
// with ErrMissingInOutput if any cell is still Missing.
func Write(w io.Writer, g *Grid, opts FormatOptions) error {
	if g == nil {
		return fmt.Errorf("%w: nil grid", ErrBadShape)
	}

	cw := csv.NewWriter(w)
	record := make([]string, g.cols)
	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			v, ok := g.Value(r, c)
			if !ok {
				return fmt.Errorf("%w at row %d, col %d", ErrMissingInOutput, r, c)
			}
			record[c] = FormatValue(v, opts.Precision)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", r, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Save renders g completely before touching path, so a failed render
// leaves no partial file behind.
func Save(fsys fsutil.FileSystem, path string, g *Grid, opts FormatOptions) error {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}

	var buf bytes.Buffer
	if err := Write(&buf, g, opts); err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := fsys.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output dir: %w", err)
		}
	}
	if err := fsys.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	monitoring.Logf("wrote %s: %dx%d grid", path, g.rows, g.cols)
	return nil
}
