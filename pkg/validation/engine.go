package validation

import (
	"context"
	"fmt"

	"github.com/fabwork/pathtrace/pkg/logging"
)

// LinkRef is the link shape the engine needs for continuity checks.
type LinkRef struct {
	ID          int64
	StartNodeID int64
	EndNodeID   int64
	Bidirected  bool
}

// PoCRef is the point-of-contact shape the engine needs for attribute,
// utility, and flow checks. Nil for nodes that are not PoCs.
type PoCRef struct {
	NodeID        int64
	EquipmentID   int64
	EquipmentGUID string
	EquipmentKind string
	UtilityNo     int
	Markers       string
	Reference     string
	Flow          string // "IN", "OUT", "BIDIRECTIONAL" or empty
	IsUsed        bool
}

// Inspector is the backing-store read surface the validation battery uses.
type Inspector interface {
	NodeExists(ctx context.Context, nodeID int64) (bool, error)
	LinkExists(ctx context.Context, linkID int64) (bool, error)
	LinkByID(ctx context.Context, linkID int64) (*LinkRef, error)
	LinkBetween(ctx context.Context, a, b int64) (*LinkRef, error)
	PoCByNode(ctx context.Context, nodeID int64) (*PoCRef, error)
	// Materials returns the distinct non-empty material codes across the
	// given nodes and links.
	Materials(ctx context.Context, nodeIDs, linkIDs []int64) ([]string, error)
}

// PathStep mirrors one hop of a discovered path.
type PathStep struct {
	LinkID     int64
	FromNodeID int64
	ToNodeID   int64
	Reverse    bool
}

// PathRecord is the engine's view of one candidate path.
type PathRecord struct {
	RunID   string
	PathID  int64
	NodeIDs []int64
	LinkIDs []int64
	Steps   []PathStep
}

// Config tunes the battery.
type Config struct {
	// MaxPathNodes is the node-count ceiling before a path is flagged as
	// suspiciously long.
	MaxPathNodes int
	// UtilityConversions maps a utility code to the codes it may legally
	// convert to at converting equipment.
	UtilityConversions map[int][]int
	// ConvertingKinds lists the equipment kinds allowed to convert
	// utilities.
	ConvertingKinds []string
}

// DefaultConfig returns the production battery configuration.
func DefaultConfig() Config {
	return Config{
		MaxPathNodes: 1000,
		UtilityConversions: map[int][]int{
			// Water systems
			1: {2, 3},
			2: {1, 3},
			3: {1, 2, 4},
			4: {1},
			// Gas systems
			10: {11, 12},
			11: {10, 12},
		},
		ConvertingKinds: []string{"PROCESSING", "SUPPLY", "TREATMENT"},
	}
}

// Engine runs the fixed validation battery against candidate paths.
// Tests are independent and side-effect-free; a failing test never stops
// the rest of the battery.
type Engine struct {
	inspector Inspector
	cfg       Config
	log       logging.Logger
}

// NewEngine creates a validation engine over an inspector.
func NewEngine(inspector Inspector, cfg Config, log logging.Logger) *Engine {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if cfg.MaxPathNodes == 0 {
		cfg.MaxPathNodes = DefaultConfig().MaxPathNodes
	}
	return &Engine{inspector: inspector, cfg: cfg, log: log}
}

type testFunc func(ctx context.Context, path *PathRecord) ([]ValidationError, error)

// Validate runs every battery test in catalog order and returns all
// findings. A test that errors or panics yields a synthetic finding tagged
// with that test's code and evaluation proceeds to the next test.
func (e *Engine) Validate(ctx context.Context, path *PathRecord) []ValidationError {
	battery := []struct {
		def TestDef
		fn  testFunc
	}{
		{Catalog[0], e.testElementsExist},
		{Catalog[1], e.testContinuity},
		{Catalog[2], e.testRequiredAttributes},
		{Catalog[3], e.testUtilityConsistency},
		{Catalog[4], e.testFlowDirection},
		{Catalog[5], e.testMaterialConsistency},
		{Catalog[6], e.testStructure},
		{Catalog[7], e.testLoops},
	}

	var findings []ValidationError
	for _, entry := range battery {
		result, err := e.runOne(ctx, entry.fn, path)
		if err != nil {
			e.log.Error("validation test failed",
				logging.String("test", entry.def.Code),
				logging.RunID(path.RunID),
				logging.Error(err),
			)
			findings = append(findings, ValidationError{
				RunID:    path.RunID,
				PathID:   path.PathID,
				TestCode: entry.def.Code,
				Severity: SeverityError,
				Scope:    entry.def.Scope,
				Kind:     KindTestFailure,
				Object:   ObjectPath,
				ObjectID: path.PathID,
				Message:  fmt.Sprintf("test %s execution failed: %v", entry.def.Code, err),
			})
			continue
		}
		findings = append(findings, result...)
	}
	return findings
}

// runOne executes a single test, converting panics into errors.
func (e *Engine) runOne(ctx context.Context, fn testFunc, path *PathRecord) (result []ValidationError, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, path)
}

// SummarizeBySeverity counts findings per severity.
func SummarizeBySeverity(findings []ValidationError) map[Severity]int {
	out := make(map[Severity]int)
	for _, f := range findings {
		out[f.Severity]++
	}
	return out
}
