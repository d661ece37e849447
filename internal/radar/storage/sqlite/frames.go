package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	"github.com/banshee-data/radarchain/internal/radar/l6targets"
	"github.com/banshee-data/radarchain/internal/radar/pipeline"
)

// FrameRecord is the stored summary of one processed frame.
type FrameRecord struct {
	RunID        string  `json:"run_id"`
	FrameIndex   uint64  `json:"frame_index"`
	Peaks        int     `json:"peaks"`
	Targets      int     `json:"targets"`
	Ghosts       int     `json:"ghosts"`
	EgoSpeedMps  float64 `json:"ego_speed_mps"`
	EgoConfident bool    `json:"ego_confident"`
	Diagnostics  string  `json:"diagnostics,omitempty"`
	ElapsedNs    int64   `json:"elapsed_ns"`
}

// TargetRecord is one stored target. RCS is nil when it could not be
// estimated.
type TargetRecord struct {
	FrameIndex  uint64   `json:"frame_index"`
	TargetIndex int      `json:"target_index"`
	PeakIndex   int      `json:"peak_index"`
	RangeBin    int      `json:"range_bin"`
	DopplerBin  int      `json:"doppler_bin"`
	X           float64  `json:"x"`
	Y           float64  `json:"y"`
	Z           float64  `json:"z"`
	Range       float64  `json:"range_m"`
	Azimuth     float64  `json:"azimuth_rad"`
	Elevation   float64  `json:"elevation_rad"`
	Strength    float64  `json:"strength"`
	SpeedMps    float64  `json:"speed_mps"`
	RCS         *float64 `json:"rcs_m2,omitempty"`
	Ghost       bool     `json:"ghost"`
}

// PersistFrame writes the frame summary and every kept and ghost target in
// one transaction.
func (s *Store) PersistFrame(ctx context.Context, runID string, res *pipeline.FrameResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin frame %d: %w", res.FrameIndex, err)
	}
	defer tx.Rollback()

	diags := make([]string, len(res.Diagnostics))
	for i, d := range res.Diagnostics {
		diags[i] = d.Error()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO radar_frames (
			run_id, frame_index, peaks, targets, ghosts,
			ego_speed_mps, ego_confident, diagnostics, elapsed_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, int64(res.FrameIndex), len(res.Peaks), len(res.Filtered), len(res.Ghosts),
		res.Ego.Speed, res.Ego.Confident, nullString(strings.Join(diags, "; ")), res.Elapsed().Nanoseconds())
	if err != nil {
		return fmt.Errorf("insert frame %d: %w", res.FrameIndex, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO radar_targets (
			run_id, frame_index, target_index, peak_index, range_bin, doppler_bin,
			x_m, y_m, z_m, range_m, azimuth_rad, elevation_rad,
			strength, speed_mps, rcs_m2, is_ghost
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare targets: %w", err)
	}
	defer stmt.Close()

	idx := 0
	insert := func(t l6targets.Target, ghost bool) error {
		rcs := sql.NullFloat64{Float64: t.RCS, Valid: !math.IsNaN(t.RCS) && !math.IsInf(t.RCS, 0)}
		_, err := stmt.ExecContext(ctx, runID, int64(res.FrameIndex), idx, t.Peak, t.RangeBin, t.DopplerBin,
			t.X, t.Y, t.Z, t.Range, t.Azimuth, t.Elevation, t.Strength, t.RelativeSpeed, rcs, ghost)
		idx++
		return err
	}
	for _, t := range res.Filtered {
		if err := insert(t, false); err != nil {
			return fmt.Errorf("insert target: %w", err)
		}
	}
	for _, t := range res.Ghosts {
		if err := insert(t, true); err != nil {
			return fmt.Errorf("insert ghost: %w", err)
		}
	}
	return tx.Commit()
}

// ListFrames returns the frame summaries of a run in frame order.
func (s *Store) ListFrames(ctx context.Context, runID string) ([]FrameRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT frame_index, peaks, targets, ghosts, ego_speed_mps, ego_confident, diagnostics, elapsed_ns
		FROM radar_frames WHERE run_id = ? ORDER BY frame_index
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list frames: %w", err)
	}
	defer rows.Close()

	var out []FrameRecord
	for rows.Next() {
		fr := FrameRecord{RunID: runID}
		var idx int64
		var diags sql.NullString
		if err := rows.Scan(&idx, &fr.Peaks, &fr.Targets, &fr.Ghosts, &fr.EgoSpeedMps, &fr.EgoConfident, &diags, &fr.ElapsedNs); err != nil {
			return nil, fmt.Errorf("scan frame: %w", err)
		}
		fr.FrameIndex = uint64(idx)
		fr.Diagnostics = diags.String
		out = append(out, fr)
	}
	return out, rows.Err()
}

// ListTargets returns the targets of one frame, kept targets first, each
// group in pipeline order. includeGhosts selects whether ghosts are
// returned.
func (s *Store) ListTargets(ctx context.Context, runID string, frameIndex uint64, includeGhosts bool) ([]TargetRecord, error) {
	query := `
		SELECT frame_index, target_index, peak_index, range_bin, doppler_bin,
		       x_m, y_m, z_m, range_m, azimuth_rad, elevation_rad,
		       strength, speed_mps, rcs_m2, is_ghost
		FROM radar_targets
		WHERE run_id = ? AND frame_index = ?`
	if !includeGhosts {
		query += " AND is_ghost = 0"
	}
	query += " ORDER BY target_index"

	rows, err := s.db.QueryContext(ctx, query, runID, int64(frameIndex))
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	defer rows.Close()

	var out []TargetRecord
	for rows.Next() {
		var tr TargetRecord
		var idx int64
		var rcs sql.NullFloat64
		if err := rows.Scan(&idx, &tr.TargetIndex, &tr.PeakIndex, &tr.RangeBin, &tr.DopplerBin,
			&tr.X, &tr.Y, &tr.Z, &tr.Range, &tr.Azimuth, &tr.Elevation,
			&tr.Strength, &tr.SpeedMps, &rcs, &tr.Ghost); err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		tr.FrameIndex = uint64(idx)
		if rcs.Valid {
			v := rcs.Float64
			tr.RCS = &v
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}
