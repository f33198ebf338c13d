package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fabwork/pathtrace/pkg/validation"
)

// CreateRun inserts a new run row in RUNNING state.
func (s *PGStore) CreateRun(ctx context.Context, run *RunRecord) error {
	query := `
		INSERT INTO tb_runs (id, approach, method, fab, toolset_code, model_no, phase_no, status, started_at, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`

	tag, err := s.pool.Exec(ctx, query,
		run.ID, run.Approach, run.Method, run.Fab, run.ToolsetCode,
		run.ModelNo, run.PhaseNo, RunStatusRunning, run.StartedAt, run.Note,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("run %s: %w", run.ID, ErrRunExists)
	}
	return nil
}

// FinishRun sets the terminal status and final counters of a run.
func (s *PGStore) FinishRun(ctx context.Context, runID, status string, pathCount int, coverageRatio float64) error {
	query := `
		UPDATE tb_runs
		SET status = $2, finished_at = NOW(), path_count = $3, coverage_ratio = $4
		WHERE id = $1
	`

	tag, err := s.pool.Exec(ctx, query, runID, status, pathCount, coverageRatio)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	return nil
}

// Run returns one run row.
func (s *PGStore) Run(ctx context.Context, runID string) (*RunRecord, error) {
	query := `
		SELECT id, approach, method, fab, toolset_code, model_no, phase_no,
		       status, started_at, COALESCE(finished_at, started_at), path_count, coverage_ratio, note
		FROM tb_runs
		WHERE id = $1
	`

	run := &RunRecord{}
	err := s.pool.QueryRow(ctx, query, runID).Scan(
		&run.ID, &run.Approach, &run.Method, &run.Fab, &run.ToolsetCode,
		&run.ModelNo, &run.PhaseNo, &run.Status, &run.StartedAt, &run.FinishedAt,
		&run.PathCount, &run.CoverageRatio, &run.Note,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// SavePath atomically persists a path with its steps, node flags, and
// validation findings.
func (s *PGStore) SavePath(ctx context.Context, rec *PathRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var pathID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO nw_paths (run_id, path_no, start_node_id, end_node_id, endpoint, total_cost, group_no, subgroup_no)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`,
		rec.RunID, rec.Path.PathID, rec.Path.StartNodeID, rec.Path.EndNodeID,
		rec.Path.Endpoint.String(), rec.Path.TotalCost, rec.Group, rec.Subgroup,
	).Scan(&pathID)
	if err != nil {
		return fmt.Errorf("failed to insert path: %w", err)
	}

	for _, step := range rec.Path.Steps {
		_, err = tx.Exec(ctx, `
			INSERT INTO nw_path_links (path_id, seq, link_id, from_node_id, to_node_id, cost, reverse)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, pathID, step.Seq, step.LinkID, step.FromNodeID, step.ToNodeID, step.Cost, step.Reverse)
		if err != nil {
			return fmt.Errorf("failed to insert path link %d: %w", step.LinkID, err)
		}
	}

	for nodeID, flag := range rec.Flags {
		_, err = tx.Exec(ctx, `
			INSERT INTO nw_path_node_flags (path_id, node_id, flag)
			VALUES ($1, $2, $3)
		`, pathID, nodeID, string(flag))
		if err != nil {
			return fmt.Errorf("failed to insert node flag for %d: %w", nodeID, err)
		}
	}

	for _, f := range rec.Findings {
		if err := insertFinding(ctx, tx, pathID, f); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit path: %w", err)
	}
	return nil
}

func insertFinding(ctx context.Context, tx pgx.Tx, pathID int64, f validation.ValidationError) error {
	dataJSON, err := json.Marshal(f.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal finding data: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO tb_validation_errors (run_id, path_id, test_code, severity, scope, kind, object_type, object_id, message, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		f.RunID, pathID, f.TestCode, string(f.Severity), string(f.Scope),
		string(f.Kind), string(f.Object), f.ObjectID, f.Message, dataJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to insert finding %s: %w", f.TestCode, err)
	}
	return nil
}

// SaveFindings records validation findings outside a path transaction.
func (s *PGStore) SaveFindings(ctx context.Context, findings []validation.ValidationError) error {
	for _, f := range findings {
		dataJSON, err := json.Marshal(f.Data)
		if err != nil {
			return fmt.Errorf("failed to marshal finding data: %w", err)
		}
		_, err = s.pool.Exec(ctx, `
			INSERT INTO tb_validation_errors (run_id, path_id, test_code, severity, scope, kind, object_type, object_id, message, data)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`,
			f.RunID, f.PathID, f.TestCode, string(f.Severity), string(f.Scope),
			string(f.Kind), string(f.Object), f.ObjectID, f.Message, dataJSON,
		)
		if err != nil {
			return fmt.Errorf("failed to insert finding %s: %w", f.TestCode, err)
		}
	}
	return nil
}

// SaveReviewFlag records an anomaly for human review.
func (s *PGStore) SaveReviewFlag(ctx context.Context, flag *validation.ReviewFlag) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tb_review_flags (id, run_id, severity, reason, object_type, start_node_id, end_node_id, fab, utility_no, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		flag.ID, flag.RunID, string(flag.Severity), flag.Reason, string(flag.Object),
		flag.StartNodeID, flag.EndNodeID, flag.Fab, flag.UtilityNo, flag.Notes, flag.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert review flag: %w", err)
	}
	return nil
}

// SeedValidationTests upserts the built-in test catalog.
func (s *PGStore) SeedValidationTests(ctx context.Context) error {
	for _, def := range validation.Catalog {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO tb_validation_tests (code, name, scope, severity, is_active)
			VALUES ($1, $2, $3, $4, TRUE)
			ON CONFLICT (code) DO UPDATE SET name = $2, scope = $3, severity = $4
		`, def.Code, def.Name, string(def.Scope), string(def.Severity))
		if err != nil {
			return fmt.Errorf("failed to seed test %s: %w", def.Code, err)
		}
	}
	return nil
}
