package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/fabwork/pathtrace/pkg/logging"
	"github.com/fabwork/pathtrace/pkg/validation"
)

// SQLiteStore is the SQLite-backed store for single-host deployments and
// tests.
type SQLiteStore struct {
	db  *sql.DB
	log logging.Logger
}

// NewSQLiteStore opens (or creates) the database at dbPath and migrates the
// schema. WAL mode is enabled for concurrent readers.
func NewSQLiteStore(dbPath string, log logging.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if log == nil {
		log = logging.NewNopLogger()
	}
	s := &SQLiteStore{db: db, log: log}

	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}

	return s, nil
}

// Ping checks database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// migrate creates the necessary tables if they don't exist.
func (s *SQLiteStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS tb_toolsets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		code TEXT UNIQUE NOT NULL,
		fab TEXT NOT NULL,
		phase_no INTEGER NOT NULL DEFAULT 0,
		model_no INTEGER NOT NULL DEFAULT 0,
		is_active INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS nw_nodes (
		id INTEGER PRIMARY KEY,
		data_code INTEGER NOT NULL DEFAULT 0,
		utility_no INTEGER NOT NULL DEFAULT 0,
		toolset_id INTEGER NOT NULL DEFAULT 0,
		eq_poc_no TEXT NOT NULL DEFAULT '',
		kind INTEGER NOT NULL DEFAULT 0,
		material TEXT NOT NULL DEFAULT '',
		is_active INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS nw_links (
		id INTEGER PRIMARY KEY,
		guid TEXT NOT NULL DEFAULT '',
		start_node_id INTEGER NOT NULL,
		end_node_id INTEGER NOT NULL,
		bidirected INTEGER NOT NULL DEFAULT 0,
		cost REAL NOT NULL DEFAULT 1,
		obj_type INTEGER NOT NULL DEFAULT 0,
		material TEXT NOT NULL DEFAULT '',
		is_active INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS tb_equipments (
		id INTEGER PRIMARY KEY,
		guid TEXT NOT NULL DEFAULT '',
		node_id INTEGER NOT NULL DEFAULT 0,
		toolset_code TEXT NOT NULL,
		kind TEXT NOT NULL DEFAULT '',
		category_no INTEGER NOT NULL DEFAULT 0,
		name TEXT NOT NULL DEFAULT '',
		is_active INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS tb_equipment_pocs (
		id INTEGER PRIMARY KEY,
		equipment_id INTEGER NOT NULL,
		node_id INTEGER NOT NULL,
		is_used INTEGER NOT NULL DEFAULT 0,
		markers TEXT NOT NULL DEFAULT '',
		utility_no INTEGER NOT NULL DEFAULT 0,
		reference TEXT NOT NULL DEFAULT '',
		flow TEXT NOT NULL DEFAULT '',
		loopback INTEGER NOT NULL DEFAULT 0,
		is_active INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS tb_runs (
		id TEXT PRIMARY KEY,
		approach TEXT NOT NULL,
		method TEXT NOT NULL,
		fab TEXT NOT NULL DEFAULT '',
		toolset_code TEXT NOT NULL DEFAULT '',
		model_no INTEGER NOT NULL DEFAULT 0,
		phase_no INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		path_count INTEGER NOT NULL DEFAULT 0,
		coverage_ratio REAL NOT NULL DEFAULT 0,
		note TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS nw_paths (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES tb_runs(id),
		path_no INTEGER NOT NULL,
		start_node_id INTEGER NOT NULL,
		end_node_id INTEGER NOT NULL,
		endpoint TEXT NOT NULL,
		total_cost REAL NOT NULL,
		group_no INTEGER NOT NULL DEFAULT 0,
		subgroup_no INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS nw_path_links (
		path_id INTEGER NOT NULL REFERENCES nw_paths(id),
		seq INTEGER NOT NULL,
		link_id INTEGER NOT NULL,
		from_node_id INTEGER NOT NULL,
		to_node_id INTEGER NOT NULL,
		cost REAL NOT NULL,
		reverse INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (path_id, seq)
	);

	CREATE TABLE IF NOT EXISTS nw_path_node_flags (
		path_id INTEGER NOT NULL REFERENCES nw_paths(id),
		node_id INTEGER NOT NULL,
		flag TEXT NOT NULL,
		PRIMARY KEY (path_id, node_id)
	);

	CREATE TABLE IF NOT EXISTS tb_validation_tests (
		code TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		scope TEXT NOT NULL,
		severity TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS tb_validation_errors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		path_id INTEGER NOT NULL DEFAULT 0,
		test_code TEXT NOT NULL,
		severity TEXT NOT NULL,
		scope TEXT NOT NULL,
		kind TEXT NOT NULL,
		object_type TEXT NOT NULL,
		object_id INTEGER NOT NULL DEFAULT 0,
		message TEXT NOT NULL,
		data TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS tb_review_flags (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		severity TEXT NOT NULL,
		reason TEXT NOT NULL,
		object_type TEXT NOT NULL,
		start_node_id INTEGER NOT NULL DEFAULT 0,
		end_node_id INTEGER NOT NULL DEFAULT 0,
		fab TEXT NOT NULL DEFAULT '',
		utility_no INTEGER NOT NULL DEFAULT 0,
		notes TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_nw_links_start ON nw_links(start_node_id);
	CREATE INDEX IF NOT EXISTS idx_nw_links_end ON nw_links(end_node_id);
	CREATE INDEX IF NOT EXISTS idx_nw_nodes_toolset ON nw_nodes(toolset_id);
	CREATE INDEX IF NOT EXISTS idx_nw_paths_run ON nw_paths(run_id);
	CREATE INDEX IF NOT EXISTS idx_validation_errors_run ON tb_validation_errors(run_id);
	CREATE INDEX IF NOT EXISTS idx_equipments_toolset ON tb_equipments(toolset_code);
	CREATE INDEX IF NOT EXISTS idx_pocs_equipment ON tb_equipment_pocs(equipment_id);
	`

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// placeholders renders "?, ?, ?" for an id slice and the matching args.
func placeholders(ids []int64) (string, []any) {
	args := make([]any, len(ids))
	marks := make([]string, len(ids))
	for i, id := range ids {
		args[i] = id
		marks[i] = "?"
	}
	return strings.Join(marks, ", "), args
}

// CreateRun inserts a new run row in RUNNING state.
func (s *SQLiteStore) CreateRun(ctx context.Context, run *RunRecord) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO tb_runs (id, approach, method, fab, toolset_code, model_no, phase_no, status, started_at, note)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID, run.Approach, run.Method, run.Fab, run.ToolsetCode,
		run.ModelNo, run.PhaseNo, RunStatusRunning, run.StartedAt, run.Note,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %s: %w", run.ID, ErrRunExists)
	}
	return nil
}

// FinishRun sets the terminal status and final counters of a run.
func (s *SQLiteStore) FinishRun(ctx context.Context, runID, status string, pathCount int, coverageRatio float64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tb_runs
		SET status = ?, finished_at = CURRENT_TIMESTAMP, path_count = ?, coverage_ratio = ?
		WHERE id = ?
	`, status, pathCount, coverageRatio, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	return nil
}

// Run returns one run row.
func (s *SQLiteStore) Run(ctx context.Context, runID string) (*RunRecord, error) {
	query := `
		SELECT id, approach, method, fab, toolset_code, model_no, phase_no,
		       status, started_at, COALESCE(finished_at, started_at), path_count, coverage_ratio, note
		FROM tb_runs
		WHERE id = ?
	`

	run := &RunRecord{}
	err := s.db.QueryRowContext(ctx, query, runID).Scan(
		&run.ID, &run.Approach, &run.Method, &run.Fab, &run.ToolsetCode,
		&run.ModelNo, &run.PhaseNo, &run.Status, &run.StartedAt, &run.FinishedAt,
		&run.PathCount, &run.CoverageRatio, &run.Note,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// SavePath atomically persists a path with its steps, node flags, and
// validation findings.
func (s *SQLiteStore) SavePath(ctx context.Context, rec *PathRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO nw_paths (run_id, path_no, start_node_id, end_node_id, endpoint, total_cost, group_no, subgroup_no)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.RunID, rec.Path.PathID, rec.Path.StartNodeID, rec.Path.EndNodeID,
		rec.Path.Endpoint.String(), rec.Path.TotalCost, rec.Group, rec.Subgroup,
	)
	if err != nil {
		return fmt.Errorf("failed to insert path: %w", err)
	}
	pathID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read path id: %w", err)
	}

	for _, step := range rec.Path.Steps {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO nw_path_links (path_id, seq, link_id, from_node_id, to_node_id, cost, reverse)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, pathID, step.Seq, step.LinkID, step.FromNodeID, step.ToNodeID, step.Cost, step.Reverse)
		if err != nil {
			return fmt.Errorf("failed to insert path link %d: %w", step.LinkID, err)
		}
	}

	for nodeID, flag := range rec.Flags {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO nw_path_node_flags (path_id, node_id, flag)
			VALUES (?, ?, ?)
		`, pathID, nodeID, string(flag))
		if err != nil {
			return fmt.Errorf("failed to insert node flag for %d: %w", nodeID, err)
		}
	}

	for _, f := range rec.Findings {
		dataJSON, err := json.Marshal(f.Data)
		if err != nil {
			return fmt.Errorf("failed to marshal finding data: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO tb_validation_errors (run_id, path_id, test_code, severity, scope, kind, object_type, object_id, message, data)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			f.RunID, pathID, f.TestCode, string(f.Severity), string(f.Scope),
			string(f.Kind), string(f.Object), f.ObjectID, f.Message, string(dataJSON),
		)
		if err != nil {
			return fmt.Errorf("failed to insert finding %s: %w", f.TestCode, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit path: %w", err)
	}
	return nil
}

// SaveFindings records validation findings outside a path transaction.
func (s *SQLiteStore) SaveFindings(ctx context.Context, findings []validation.ValidationError) error {
	for _, f := range findings {
		dataJSON, err := json.Marshal(f.Data)
		if err != nil {
			return fmt.Errorf("failed to marshal finding data: %w", err)
		}
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO tb_validation_errors (run_id, path_id, test_code, severity, scope, kind, object_type, object_id, message, data)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			f.RunID, f.PathID, f.TestCode, string(f.Severity), string(f.Scope),
			string(f.Kind), string(f.Object), f.ObjectID, f.Message, string(dataJSON),
		)
		if err != nil {
			return fmt.Errorf("failed to insert finding %s: %w", f.TestCode, err)
		}
	}
	return nil
}

// SaveReviewFlag records an anomaly for human review.
func (s *SQLiteStore) SaveReviewFlag(ctx context.Context, flag *validation.ReviewFlag) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tb_review_flags (id, run_id, severity, reason, object_type, start_node_id, end_node_id, fab, utility_no, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
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
func (s *SQLiteStore) SeedValidationTests(ctx context.Context) error {
	for _, def := range validation.Catalog {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO tb_validation_tests (code, name, scope, severity, is_active)
			VALUES (?, ?, ?, ?, 1)
			ON CONFLICT (code) DO UPDATE SET name = excluded.name, scope = excluded.scope, severity = excluded.severity
		`, def.Code, def.Name, string(def.Scope), string(def.Severity))
		if err != nil {
			return fmt.Errorf("failed to seed test %s: %w", def.Code, err)
		}
	}
	return nil
}
