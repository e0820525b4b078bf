// Package interp fills Missing grid cells from their non-diagonal
// neighbours.
//
// Resolution is a single pass over the original grid: a Missing cell
// takes the mean of its present up/down/left/right neighbours as they were
// in the input, never a value filled earlier in the same pass. A cell with
// no present neighbour takes the global mean of every present input value,
// and a grid with no present value at all resolves to AllMissingFallback.
package interp
