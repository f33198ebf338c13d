package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fabwork/pathtrace/pkg/logging"
)

// PGStore is the PostgreSQL-backed store.
type PGStore struct {
	pool *pgxpool.Pool
	log  logging.Logger
}

// NewPGStore opens a connection pool against databaseURL and migrates the
// schema if needed.
func NewPGStore(ctx context.Context, databaseURL string, log logging.Logger) (*PGStore, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Connection pooling configuration
	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	if log == nil {
		log = logging.NewNopLogger()
	}
	s := &PGStore{pool: pool, log: log}

	// Create tables if they don't exist
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	s.log.Info("postgres store ready")
	return s, nil
}

// Ping checks database connectivity
func (s *PGStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the database connection pool
func (s *PGStore) Close() error {
	s.pool.Close()
	return nil
}

// migrate creates the necessary database tables
func (s *PGStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS tb_toolsets (
		id BIGSERIAL PRIMARY KEY,
		code TEXT UNIQUE NOT NULL,
		fab TEXT NOT NULL,
		phase_no INTEGER NOT NULL DEFAULT 0,
		model_no INTEGER NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE TABLE IF NOT EXISTS nw_nodes (
		id BIGINT PRIMARY KEY,
		data_code INTEGER NOT NULL DEFAULT 0,
		utility_no INTEGER NOT NULL DEFAULT 0,
		toolset_id BIGINT NOT NULL DEFAULT 0,
		eq_poc_no TEXT NOT NULL DEFAULT '',
		kind INTEGER NOT NULL DEFAULT 0,
		material TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE TABLE IF NOT EXISTS nw_links (
		id BIGINT PRIMARY KEY,
		guid TEXT NOT NULL DEFAULT '',
		start_node_id BIGINT NOT NULL,
		end_node_id BIGINT NOT NULL,
		bidirected BOOLEAN NOT NULL DEFAULT FALSE,
		cost DOUBLE PRECISION NOT NULL DEFAULT 1,
		obj_type INTEGER NOT NULL DEFAULT 0,
		material TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE TABLE IF NOT EXISTS tb_equipments (
		id BIGINT PRIMARY KEY,
		guid TEXT NOT NULL DEFAULT '',
		node_id BIGINT NOT NULL DEFAULT 0,
		toolset_code TEXT NOT NULL,
		kind TEXT NOT NULL DEFAULT '',
		category_no INTEGER NOT NULL DEFAULT 0,
		name TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE TABLE IF NOT EXISTS tb_equipment_pocs (
		id BIGINT PRIMARY KEY,
		equipment_id BIGINT NOT NULL,
		node_id BIGINT NOT NULL,
		is_used BOOLEAN NOT NULL DEFAULT FALSE,
		markers TEXT NOT NULL DEFAULT '',
		utility_no INTEGER NOT NULL DEFAULT 0,
		reference TEXT NOT NULL DEFAULT '',
		flow TEXT NOT NULL DEFAULT '',
		loopback BOOLEAN NOT NULL DEFAULT FALSE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
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
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ,
		path_count INTEGER NOT NULL DEFAULT 0,
		coverage_ratio DOUBLE PRECISION NOT NULL DEFAULT 0,
		note TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS nw_paths (
		id BIGSERIAL PRIMARY KEY,
		run_id TEXT NOT NULL REFERENCES tb_runs(id),
		path_no INTEGER NOT NULL,
		start_node_id BIGINT NOT NULL,
		end_node_id BIGINT NOT NULL,
		endpoint TEXT NOT NULL,
		total_cost DOUBLE PRECISION NOT NULL,
		group_no INTEGER NOT NULL DEFAULT 0,
		subgroup_no INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS nw_path_links (
		path_id BIGINT NOT NULL REFERENCES nw_paths(id),
		seq INTEGER NOT NULL,
		link_id BIGINT NOT NULL,
		from_node_id BIGINT NOT NULL,
		to_node_id BIGINT NOT NULL,
		cost DOUBLE PRECISION NOT NULL,
		reverse BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (path_id, seq)
	);

	CREATE TABLE IF NOT EXISTS nw_path_node_flags (
		path_id BIGINT NOT NULL REFERENCES nw_paths(id),
		node_id BIGINT NOT NULL,
		flag TEXT NOT NULL,
		PRIMARY KEY (path_id, node_id)
	);

	CREATE TABLE IF NOT EXISTS tb_validation_tests (
		code TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		scope TEXT NOT NULL,
		severity TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE TABLE IF NOT EXISTS tb_validation_errors (
		id BIGSERIAL PRIMARY KEY,
		run_id TEXT NOT NULL,
		path_id BIGINT NOT NULL DEFAULT 0,
		test_code TEXT NOT NULL,
		severity TEXT NOT NULL,
		scope TEXT NOT NULL,
		kind TEXT NOT NULL,
		object_type TEXT NOT NULL,
		object_id BIGINT NOT NULL DEFAULT 0,
		message TEXT NOT NULL,
		data JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS tb_review_flags (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		severity TEXT NOT NULL,
		reason TEXT NOT NULL,
		object_type TEXT NOT NULL,
		start_node_id BIGINT NOT NULL DEFAULT 0,
		end_node_id BIGINT NOT NULL DEFAULT 0,
		fab TEXT NOT NULL DEFAULT '',
		utility_no INTEGER NOT NULL DEFAULT 0,
		notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_nw_links_start ON nw_links(start_node_id);
	CREATE INDEX IF NOT EXISTS idx_nw_links_end ON nw_links(end_node_id);
	CREATE INDEX IF NOT EXISTS idx_nw_nodes_toolset ON nw_nodes(toolset_id);
	CREATE INDEX IF NOT EXISTS idx_nw_paths_run ON nw_paths(run_id);
	CREATE INDEX IF NOT EXISTS idx_validation_errors_run ON tb_validation_errors(run_id);
	CREATE INDEX IF NOT EXISTS idx_equipments_toolset ON tb_equipments(toolset_code);
	CREATE INDEX IF NOT EXISTS idx_pocs_equipment ON tb_equipment_pocs(equipment_id);
	`

	_, err := s.pool.Exec(ctx, schema)
	return err
}
