package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/banshee-data/gridfill/internal/config"
	"github.com/banshee-data/gridfill/internal/db"
	"github.com/banshee-data/gridfill/internal/fsutil"
	"github.com/banshee-data/gridfill/internal/monitoring"
)

// defaultHistoryDB is the run-history database used when -db is omitted.
const defaultHistoryDB = "gridfill_runs.db"

func runHistory(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = usageFunc(fs, "gridfill history [-db runs.db] [-limit N] [-config FILE]")

	dbPath := fs.String("db", defaultHistoryDB, "run-history database")
	limit := fs.Int("limit", 0, "number of runs to list (0 = history_limit from config)")
	configPath := fs.String("config", "", "path to a JSON or YAML config file")
	runID := fs.String("run", "", "show a single run by ID")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitFailure
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "Error: unexpected argument %q\n", fs.Arg(0))
		fs.Usage()
		return exitFailure
	}

	cfg := config.EmptyConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadConfig(*configPath); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitFailure
		}
	}
	n := *limit
	if n <= 0 {
		n = cfg.GetHistoryLimit()
	}

	restore := muteMonitoring()
	defer restore()

	// SQLite always works on the real filesystem.
	if !(fsutil.OSFileSystem{}).Exists(*dbPath) {
		fmt.Fprintf(stderr, "Error: no run history at %s\n", *dbPath)
		return exitNotFound
	}

	database, err := db.OpenDB(*dbPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	defer database.Close()
	store := db.NewRunStore(database.DB, fillClock)

	if *runID != "" {
		run, err := store.GetRun(*runID)
		if errors.Is(err, db.ErrRunNotFound) {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitNotFound
		}
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitFailure
		}
		printRunDetail(stdout, run)
		return exitOK
	}

	runs, err := store.RecentRuns(n)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	monitoring.Logf("listed %d runs from %s", len(runs), *dbPath)

	if len(runs) == 0 {
		fmt.Fprintln(stdout, "No runs recorded.")
		return exitOK
	}
	fmt.Fprintf(stdout, "%-8s  %-16s  %-7s  %7s  %-15s  %s\n", "RUN", "CREATED", "SIZE", "MISSING", "FILLED(N/G)", "INPUT -> OUTPUT")
	for _, r := range runs {
		fmt.Fprintf(stdout, "%-8s  %-16s  %-7s  %7d  %-15s  %s -> %s\n",
			shortID(r.RunID),
			humanize.RelTime(r.CreatedAt, fillClock.Now(), "ago", "from now"),
			fmt.Sprintf("%dx%d", r.Rows, r.Cols),
			r.MissingCells,
			fmt.Sprintf("%d/%d", r.NeighborFilled, r.FallbackFilled),
			r.InputPath, r.OutputPath)
	}
	return exitOK
}

func printRunDetail(w io.Writer, r *db.Run) {
	fmt.Fprintf(w, "Run:          %s\n", r.RunID)
	fmt.Fprintf(w, "Created:      %s\n", r.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Input:        %s\n", r.InputPath)
	fmt.Fprintf(w, "Output:       %s\n", r.OutputPath)
	fmt.Fprintf(w, "Size:         %dx%d (%s cells)\n", r.Rows, r.Cols, humanize.Comma(int64(r.Rows*r.Cols)))
	fmt.Fprintf(w, "Missing:      %d (%d from neighbours, %d from global mean)\n", r.MissingCells, r.NeighborFilled, r.FallbackFilled)
	fmt.Fprintf(w, "Global mean:  %g\n", r.GlobalMean)
	fmt.Fprintf(w, "Token:        %q\n", r.MissingToken)
	fmt.Fprintf(w, "Precision:    %d\n", r.Precision)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
