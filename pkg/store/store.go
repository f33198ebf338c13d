// Package store persists the utility network, the equipment catalog, and
// per-run artifacts (paths, node flags, validation findings, review flags).
//
// Two backends are provided: PostgreSQL for production and SQLite for
// single-host and test deployments. Both satisfy the read surfaces the
// analysis packages define for themselves (netgraph.Source, coverage.Store,
// sampling.Catalog, validation.Inspector).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/fabwork/pathtrace/pkg/coverage"
	"github.com/fabwork/pathtrace/pkg/netgraph"
	"github.com/fabwork/pathtrace/pkg/pathfinder"
	"github.com/fabwork/pathtrace/pkg/sampling"
	"github.com/fabwork/pathtrace/pkg/validation"
)

var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrRunExists indicates a run record with the same id already exists.
	ErrRunExists = errors.New("store: run already exists")
)

// Run lifecycle states.
const (
	RunStatusRunning = "RUNNING"
	RunStatusDone    = "DONE"
	RunStatusFailed  = "FAILED"
)

// RunRecord is one analysis run's bookkeeping row.
type RunRecord struct {
	ID            string
	Approach      string
	Method        string
	Fab           string
	ToolsetCode   string
	ModelNo       int
	PhaseNo       int
	Status        string
	StartedAt     time.Time
	FinishedAt    time.Time
	PathCount     int
	CoverageRatio float64
	Note          string
}

// PathRecord bundles everything persisted for one discovered path. The
// write is atomic: the path row, its link steps, its node flags, and its
// validation findings land in a single transaction or not at all.
type PathRecord struct {
	RunID    string
	Path     *pathfinder.PathResult
	Group    int
	Subgroup int
	Flags    map[int64]rune // node id -> flag character
	Findings []validation.ValidationError
}

// Store is the full persistence surface. It embeds the narrow read
// interfaces the analysis packages consume.
type Store interface {
	netgraph.Source
	coverage.Store
	sampling.Catalog
	validation.Inspector

	// CreateRun inserts a new run row in RUNNING state.
	CreateRun(ctx context.Context, run *RunRecord) error
	// FinishRun sets the terminal status and final counters of a run.
	FinishRun(ctx context.Context, runID, status string, pathCount int, coverageRatio float64) error
	// Run returns one run row, or ErrNotFound.
	Run(ctx context.Context, runID string) (*RunRecord, error)

	// SavePath atomically persists a path record.
	SavePath(ctx context.Context, rec *PathRecord) error
	// SaveReviewFlag records an anomaly for human review.
	SaveReviewFlag(ctx context.Context, flag *validation.ReviewFlag) error
	// SaveFindings records validation findings that are not tied to a
	// persisted path (pre-path failures).
	SaveFindings(ctx context.Context, findings []validation.ValidationError) error

	// SeedValidationTests upserts the built-in test catalog.
	SeedValidationTests(ctx context.Context) error

	Ping(ctx context.Context) error
	Close() error
}
