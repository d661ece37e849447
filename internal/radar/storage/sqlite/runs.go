package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/banshee-data/radarchain/internal/config"
	"github.com/google/uuid"
)

// ErrRunNotFound is returned for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// Run is one invocation of the frame loop.
type Run struct {
	RunID        string          `json:"run_id"`
	Description  string          `json:"description,omitempty"`
	ConfigJSON   json.RawMessage `json:"config"`
	StartedAtNs  int64           `json:"started_at_ns"`
	FinishedAtNs *int64          `json:"finished_at_ns,omitempty"`
	Frames       int             `json:"frames"`
	Aborted      int             `json:"aborted"`
}

// StartRun records a new run with a fresh UUID and a snapshot of cfg.
func (s *Store) StartRun(ctx context.Context, cfg *config.RadarConfig, description string) (*Run, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	run := &Run{
		RunID:       uuid.New().String(),
		Description: description,
		ConfigJSON:  raw,
		StartedAtNs: s.clock.Now().UnixNano(),
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO radar_runs (run_id, description, config_json, started_at_ns)
		VALUES (?, ?, ?, ?)
	`, run.RunID, nullString(description), string(raw), run.StartedAtNs)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// FinishRun stamps the end time and the frame counts.
func (s *Store) FinishRun(ctx context.Context, runID string, frames, aborted int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE radar_runs SET finished_at_ns = ?, frames = ?, aborted = ?
		WHERE run_id = ?
	`, s.clock.Now().UnixNano(), frames, aborted, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// GetRun loads one run.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	var run Run
	var description sql.NullString
	var finished sql.NullInt64
	var raw string
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, description, config_json, started_at_ns, finished_at_ns, frames, aborted
		FROM radar_runs WHERE run_id = ?
	`, runID).Scan(&run.RunID, &description, &raw, &run.StartedAtNs, &finished, &run.Frames, &run.Aborted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	run.Description = description.String
	run.ConfigJSON = json.RawMessage(raw)
	if finished.Valid {
		v := finished.Int64
		run.FinishedAtNs = &v
	}
	return &run, nil
}

// ListRuns returns runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, description, started_at_ns, finished_at_ns, frames, aborted
		FROM radar_runs ORDER BY started_at_ns DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var description sql.NullString
		var finished sql.NullInt64
		if err := rows.Scan(&run.RunID, &description, &run.StartedAtNs, &finished, &run.Frames, &run.Aborted); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Description = description.String
		if finished.Valid {
			v := finished.Int64
			run.FinishedAtNs = &v
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RunConfig decodes the configuration stored with a run.
func (r *Run) RunConfig() (*config.RadarConfig, error) {
	cfg := config.EmptyRadarConfig()
	if err := json.Unmarshal(r.ConfigJSON, cfg); err != nil {
		return nil, fmt.Errorf("decode run config: %w", err)
	}
	return cfg, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
