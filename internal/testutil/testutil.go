// Package testutil provides shared test helpers and fixtures.
//
// The reference fixture is a 5x5 grid of uniform samples with five Missing
// cells, used by the interpolator, CLI and render tests.
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/gridfill/internal/grid"
)

// ReferenceCSV is the 5x5 reference grid. Missing cells are at (0,4),
// (1,1), (2,2), (3,0) and (4,3).
const ReferenceCSV = `37.454012,95.071431,73.199394,59.865848,nan
15.599452,nan,86.617615,60.111501,70.807258
2.058449,96.990985,nan,21.233911,18.182497
nan,30.424224,52.475643,43.194502,29.122914
61.185289,13.949386,29.214465,nan,45.606998
`

// ReferenceFilled maps each Missing cell of ReferenceCSV to the mean of
// its present non-diagonal neighbours.
var ReferenceFilled = map[[2]int]float64{
	{0, 4}: (59.865848 + 70.807258) / 2,
	{1, 1}: (95.071431 + 96.990985 + 15.599452 + 86.617615) / 4,
	{2, 2}: (86.617615 + 52.475643 + 96.990985 + 21.233911) / 4,
	{3, 0}: (2.058449 + 61.185289 + 30.424224) / 3,
	{4, 3}: (43.194502 + 29.214465 + 45.606998) / 3,
}

// MustParse parses CSV text with the default missing token.
func MustParse(t *testing.T, csv string) *grid.Grid {
	t.Helper()
	g, err := grid.Parse(strings.NewReader(csv), grid.ParseOptions{})
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return g
}

// WriteFixture writes content to name under dir and returns the path.
func WriteFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write fixture %s: %v", path, err)
	}
	return path
}

// AllMissingCSV returns a rows×cols grid of missing tokens.
func AllMissingCSV(rows, cols int) string {
	row := strings.TrimSuffix(strings.Repeat(grid.DefaultMissingToken+",", cols), ",")
	return strings.Repeat(row+"\n", rows)
}
