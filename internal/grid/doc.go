// Package grid owns the rectangular numeric grid that gridfill reads,
// completes and writes back.
//
// Responsibilities: the Grid data model (a dense row-major value buffer
// with a parallel validity mask), the delimited-text loader, and the
// writer that serialises a completed grid in the same format.
// Key types: Grid, Cell, ParseError.
//
// A Missing cell is an explicit tag, never a NaN stored in the value
// buffer. The loader only produces Missing for the exact missing-value
// token ("nan" by default); every other field must be a finite decimal.
package grid
