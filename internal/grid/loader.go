package grid

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/gridfill/internal/fsutil"
	"github.com/banshee-data/gridfill/internal/monitoring"
)

// DefaultMissingToken is the field text that marks a Missing cell.
const DefaultMissingToken = "nan"

// ParseOptions controls how delimited text is read into a Grid.
type ParseOptions struct {
	// MissingToken is matched exactly (case-sensitive) against the
	// whitespace-trimmed field. Empty means DefaultMissingToken.
	MissingToken string

	// Source names the input in error messages.
	Source string
}

func (o ParseOptions) token() string {
	if o.MissingToken == "" {
		return DefaultMissingToken
	}
	return o.MissingToken
}

// Load opens path on fsys and parses it. Any failure to open the input is
// reported as ErrNotFound; malformed content as a *ParseError.
func Load(fsys fsutil.FileSystem, path string, opts ParseOptions) (*Grid, error) {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}

	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	defer f.Close()

	if info, err := f.Stat(); err == nil && info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrNotFound, path)
	}

	if opts.Source == "" {
		opts.Source = path
	}
	g, err := Parse(f, opts)
	if err != nil {
		return nil, err
	}

	monitoring.Logf("loaded %s: %dx%d grid, %d missing", path, g.rows, g.cols, g.MissingCount())
	return g, nil
}

// Parse reads newline-separated rows of comma-separated fields. Blank
// lines are skipped. Every row must have as many fields as the first.
func Parse(r io.Reader, opts ParseOptions) (*Grid, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	token := opts.token()
	var (
		values []float64
		valid  []bool
		rows   int
		cols   int
	)

	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var csvErr *csv.ParseError
			if errors.As(err, &csvErr) {
				return nil, &ParseError{
					Source: opts.Source,
					Line:   csvErr.Line,
					Field:  0,
					Err:    fmt.Errorf("%w: %v", ErrBadQuoting, csvErr.Err),
				}
			}
			return nil, fmt.Errorf("read %s: %w", sourceName(opts.Source), err)
		}

		line, _ := cr.FieldPos(0)
		if isBlank(record) {
			continue
		}

		if rows == 0 {
			cols = len(record)
		} else if len(record) != cols {
			return nil, &ParseError{
				Source: opts.Source,
				Line:   line,
				Err:    fmt.Errorf("%w: expected %d fields, got %d", ErrRaggedRow, cols, len(record)),
			}
		}

		for i, raw := range record {
			text := strings.TrimSpace(raw)
			v, ok, err := parseField(text, token)
			if err != nil {
				fieldLine, _ := cr.FieldPos(i)
				return nil, &ParseError{
					Source: opts.Source,
					Line:   fieldLine,
					Field:  i + 1,
					Text:   text,
					Err:    err,
				}
			}
			values = append(values, v)
			valid = append(valid, ok)
		}
		rows++
	}

	if rows == 0 {
		return nil, &ParseError{Source: opts.Source, Err: ErrEmptyInput}
	}

	return &Grid{rows: rows, cols: cols, values: values, valid: valid}, nil
}

// parseField returns the value and whether it is present.
func parseField(text, token string) (float64, bool, error) {
	if text == token {
		return 0, false, nil
	}
	// strconv accepts hex floats and digit separators; the input format
	// is plain decimal only.
	if text == "" || strings.ContainsAny(text, "xXpP_") {
		return 0, false, ErrNotNumeric
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return 0, false, fmt.Errorf("%w: out of float64 range", ErrNonFinite)
		}
		return 0, false, ErrNotNumeric
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, ErrNonFinite
	}
	return v, true, nil
}

func isBlank(record []string) bool {
	return len(record) == 1 && strings.TrimSpace(record[0]) == ""
}

func sourceName(s string) string {
	if s == "" {
		return "<input>"
	}
	return s
}
