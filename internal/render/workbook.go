package render

import (
	"fmt"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/banshee-data/gridfill/internal/fsutil"
	"github.com/banshee-data/gridfill/internal/grid"
	"github.com/banshee-data/gridfill/internal/monitoring"
)

// Workbook sheet names.
const (
	SheetInterpolated = "interpolated"
	SheetInput        = "input"
)

// filledColor highlights cells that were missing in the input.
const filledColor = "#FFE699"

// WorkbookOptions controls SaveWorkbook.
type WorkbookOptions struct {
	// Precision as in grid.FormatOptions; -1 stores the shortest exact value.
	Precision int
}

// SaveWorkbook writes an .xlsx workbook with the completed grid on the
// first sheet, filled cells highlighted, and the raw input (gaps left
// empty) on the second.
func SaveWorkbook(fsys fsutil.FileSystem, path string, in, out *grid.Grid, opts WorkbookOptions) error {
	if err := checkPair(in, out); err != nil {
		return err
	}
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetInterpolated); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetInput); err != nil {
		return fmt.Errorf("create input sheet: %w", err)
	}
	filledStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{filledColor}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	for r := 0; r < out.Rows(); r++ {
		for c := 0; c < out.Cols(); c++ {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}

			v, _ := out.Value(r, c)
			if err := f.SetCellFloat(SheetInterpolated, cell, v, opts.Precision, 64); err != nil {
				return fmt.Errorf("set %s: %w", cell, err)
			}

			orig, ok := in.Value(r, c)
			if !ok {
				if err := f.SetCellStyle(SheetInterpolated, cell, cell, filledStyle); err != nil {
					return fmt.Errorf("style %s: %w", cell, err)
				}
				continue
			}
			if err := f.SetCellFloat(SheetInput, cell, orig, -1, 64); err != nil {
				return fmt.Errorf("set input %s: %w", cell, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return fmt.Errorf("render workbook: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := fsys.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create workbook directory: %w", err)
		}
	}
	if err := fsys.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}

	monitoring.Logf("wrote workbook %s (%d bytes)", path, buf.Len())
	return nil
}
