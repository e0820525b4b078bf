// Command gridfill fills the missing cells of a numeric CSV grid with the
// mean of their valid up/down/left/right neighbours.
//
// Usage:
//
//	gridfill -input data.csv [flags] [output.csv]
//	gridfill history [-db runs.db] [-limit N]
//
// The output path is taken from -output, then the positional argument,
// then derived from the input as <input without extension>_interpolated.csv.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/banshee-data/gridfill/internal/grid"
)

// Exit statuses.
const (
	exitOK        = 0
	exitFailure   = 1 // usage, config, write or render failures
	exitNotFound  = 2
	exitMalformed = 3
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one invocation and returns the process exit status.
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) > 0 && args[0] == "history" {
		return runHistory(args[1:], stdout, stderr)
	}
	return runFill(args, stdout, stderr)
}

// exitCode maps an error to the exit status reported to the shell.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, grid.ErrNotFound):
		return exitNotFound
	case errors.Is(err, grid.ErrMalformed):
		return exitMalformed
	default:
		return exitFailure
	}
}

// parseInterspersed parses flags that may appear before or after
// positional arguments and returns the positionals in order.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

func usageFunc(fs *flag.FlagSet, synopsis string) func() {
	return func() {
		out := fs.Output()
		fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", synopsis)
		fs.PrintDefaults()
	}
}
