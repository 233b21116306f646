package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/avelios/maestro/pkg/plan"
)

// ErrRunNotFound is returned when no archived run matches the given id
var ErrRunNotFound = errors.New("run not found")

// Run is one archived plan execution
type Run struct {
	RunID          string              `json:"runId"`
	PlanID         string              `json:"planId"`
	UserID         string              `json:"userId,omitempty"`
	Status         string              `json:"status"`
	CompletedSteps int                 `json:"completedSteps"`
	TotalSteps     int                 `json:"totalSteps"`
	Error          string              `json:"error,omitempty"`
	DurationMs     int64               `json:"durationMs"`
	StepResults    []plan.StepResult   `json:"stepResults,omitempty"`
	Plan           *plan.ExecutionPlan `json:"plan,omitempty"`
	RecordedAtMs   int64               `json:"recordedAtMs"`
}

// Filter narrows List results
type Filter struct {
	PlanID string
	UserID string
	Status string
	Limit  int
}

// Stats summarizes the archive
type Stats struct {
	TotalRuns int64            `json:"totalRuns"`
	ByStatus  map[string]int64 `json:"byStatus"`
}

// Config holds history store configuration
type Config struct {
	Path   string
	Logger zerolog.Logger
}

// Store archives finished plan executions in SQLite. The engine only ever
// writes to it; reads are for operators.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open opens (or creates) the archive database
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("database path is required")
	}

	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{
		db:     db,
		logger: cfg.Logger,
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s.logger.Info().Str("path", cfg.Path).Msg("History store opened")
	return s, nil
}

// initSchema creates database tables
func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			plan_id TEXT NOT NULL,
			user_id TEXT,
			status TEXT NOT NULL,
			completed_steps INTEGER NOT NULL,
			total_steps INTEGER NOT NULL,
			error TEXT,
			duration_ms INTEGER NOT NULL,
			step_results TEXT NOT NULL,
			plan_json TEXT NOT NULL,
			recorded_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_runs_plan ON runs(plan_id);
		CREATE INDEX IF NOT EXISTS idx_runs_user ON runs(user_id);
		CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
		CREATE INDEX IF NOT EXISTS idx_runs_recorded ON runs(recorded_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Record archives a finished execution and returns its run id
func (s *Store) Record(ctx context.Context, p *plan.ExecutionPlan, result *plan.ExecutionResult, userID string) (string, error) {
	if p == nil {
		return "", errors.New("plan is required")
	}
	if result == nil {
		return "", errors.New("result is required")
	}

	runID := uuid.New().String()

	stepResults, err := json.Marshal(result.StepResults)
	if err != nil {
		return "", fmt.Errorf("failed to marshal step results: %w", err)
	}

	planJSON, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to marshal plan: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, plan_id, user_id, status, completed_steps, total_steps, error, duration_ms, step_results, plan_json, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID, p.PlanID, userID, string(result.Status),
		result.CompletedSteps, result.TotalSteps, result.Error,
		result.Duration.Milliseconds(), string(stepResults), string(planJSON),
		time.Now().UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to record run: %w", err)
	}

	s.logger.Debug().
		Str("runId", runID).
		Str("planId", p.PlanID).
		Str("status", string(result.Status)).
		Msg("Run archived")

	return runID, nil
}

// Get returns a single archived run
func (s *Store) Get(runID string) (*Run, error) {
	row := s.db.QueryRow(`
		SELECT id, plan_id, user_id, status, completed_steps, total_steps, error, duration_ms, step_results, plan_json, recorded_at
		FROM runs
		WHERE id = ?
	`, runID)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// List returns archived runs matching the filter, newest first
func (s *Store) List(f Filter) ([]*Run, error) {
	query := `
		SELECT id, plan_id, user_id, status, completed_steps, total_steps, error, duration_ms, step_results, plan_json, recorded_at
		FROM runs
		WHERE 1=1
	`
	args := make([]interface{}, 0, 4)

	if f.PlanID != "" {
		query += " AND plan_id = ?"
		args = append(args, f.PlanID)
	}
	if f.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, f.UserID)
	}
	if f.Status != "" {
		query += " AND status = ?"
		args = append(args, f.Status)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " ORDER BY recorded_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// Stats summarizes the archive contents
func (s *Store) Stats() (Stats, error) {
	stats := Stats{ByStatus: make(map[string]int64)}

	rows, err := s.db.Query("SELECT status, COUNT(*) FROM runs GROUP BY status")
	if err != nil {
		return stats, err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return stats, err
		}
		stats.ByStatus[status] = count
		stats.TotalRuns += count
	}

	return stats, rows.Err()
}

// Close closes the archive database
func (s *Store) Close() error {
	s.logger.Info().Msg("Closing history store")
	return s.db.Close()
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scannable) (*Run, error) {
	var run Run
	var userID, errMsg sql.NullString
	var stepResults, planJSON string

	err := row.Scan(
		&run.RunID, &run.PlanID, &userID, &run.Status,
		&run.CompletedSteps, &run.TotalSteps, &errMsg,
		&run.DurationMs, &stepResults, &planJSON, &run.RecordedAtMs,
	)
	if err != nil {
		return nil, err
	}

	run.UserID = userID.String
	run.Error = errMsg.String

	if err := json.Unmarshal([]byte(stepResults), &run.StepResults); err != nil {
		return nil, fmt.Errorf("failed to unmarshal step results: %w", err)
	}
	if err := json.Unmarshal([]byte(planJSON), &run.Plan); err != nil {
		return nil, fmt.Errorf("failed to unmarshal plan: %w", err)
	}

	return &run, nil
}
