package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/gridfill/internal/timeutil"
)

// ErrRunNotFound is returned by GetRun for an unknown run ID.
var ErrRunNotFound = errors.New("db: run not found")

// Run is one completed gridfill invocation.
type Run struct {
	RunID          string
	InputPath      string
	OutputPath     string
	Rows           int
	Cols           int
	MissingCells   int
	NeighborFilled int
	FallbackFilled int
	GlobalMean     float64
	MissingToken   string
	Precision      int
	CreatedAt      time.Time
}

// RunStore records and lists runs.
type RunStore struct {
	db    *sql.DB
	clock timeutil.Clock
}

// NewRunStore creates a RunStore. A nil clock uses the real clock.
func NewRunStore(db *sql.DB, clock timeutil.Clock) *RunStore {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &RunStore{db: db, clock: clock}
}

// RecordRun inserts run. An empty RunID is replaced with a new UUID and a
// zero CreatedAt with the store clock's time; both are written back.
func (s *RunStore) RecordRun(run *Run) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = s.clock.Now()
	}

	query := `
		INSERT INTO gridfill_runs (
			run_id, input_path, output_path, row_count, col_count,
			missing_cells, neighbor_filled, fallback_filled, global_mean,
			missing_token, output_precision, created_unix_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		run.RunID,
		run.InputPath,
		run.OutputPath,
		run.Rows,
		run.Cols,
		run.MissingCells,
		run.NeighborFilled,
		run.FallbackFilled,
		run.GlobalMean,
		run.MissingToken,
		run.Precision,
		run.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	return nil
}

const selectRun = `
	SELECT run_id, input_path, output_path, row_count, col_count,
	       missing_cells, neighbor_filled, fallback_filled, global_mean,
	       missing_token, output_precision, created_unix_ns
	FROM gridfill_runs
`

// GetRun retrieves a run by ID.
func (s *RunStore) GetRun(runID string) (*Run, error) {
	row := s.db.QueryRow(selectRun+` WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *RunStore) RecentRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.Query(selectRun+` ORDER BY created_unix_ns DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		run       Run
		createdNs int64
	)
	err := sc.Scan(
		&run.RunID,
		&run.InputPath,
		&run.OutputPath,
		&run.Rows,
		&run.Cols,
		&run.MissingCells,
		&run.NeighborFilled,
		&run.FallbackFilled,
		&run.GlobalMean,
		&run.MissingToken,
		&run.Precision,
		&createdNs,
	)
	if err != nil {
		return nil, err
	}
	run.CreatedAt = time.Unix(0, createdNs).UTC()
	return &run, nil
}
