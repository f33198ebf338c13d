// Package run orchestrates analysis runs: pair sampling, traversal,
// coverage accounting, validation, and persistence.
package run

import (
	"errors"

	"github.com/fabwork/pathtrace/pkg/sampling"
	"github.com/fabwork/pathtrace/pkg/validation"
)

var errScenarioStart = errors.New("scenario runs need a positive start node id")

// Approaches and traversal methods.
const (
	ApproachRandom   = "RANDOM"
	ApproachScenario = "SCENARIO"

	MethodDFS      = "DFS"
	MethodDijkstra = "DIJKSTRA"
)

// Config describes one analysis run.
type Config struct {
	// Approach selects random pair sampling or a fixed-start scenario.
	Approach string `yaml:"approach" validate:"required,oneof=RANDOM SCENARIO"`
	// Method is the traversal algorithm for scenario runs.
	Method string `yaml:"method" validate:"required,oneof=DFS DIJKSTRA"`

	// CoverageTarget stops a random run once the combined coverage ratio
	// reaches it. Must be in (0, 1].
	CoverageTarget float64 `yaml:"coverage_target" validate:"gt=0,lte=1"`

	// Scope filters.
	Fab         string `yaml:"fab"`
	ToolsetCode string `yaml:"toolset_code"`
	ModelNo     int    `yaml:"model_no" validate:"min=0"`
	PhaseNo     int    `yaml:"phase_no" validate:"min=0"`
	UtilityNo   int    `yaml:"utility_no" validate:"min=0"`

	// StartNodeID roots scenario traversals.
	StartNodeID int64 `yaml:"start_node_id"`

	// TargetCodes mark nodes classified as designated endpoints.
	TargetCodes []int `yaml:"target_codes"`
	// IgnoreNodeIDs are excised from the graph before traversal.
	IgnoreNodeIDs []int64 `yaml:"ignore_node_ids"`

	// MaxPairs bounds how many sampled pairs a random run will process.
	MaxPairs int `yaml:"max_pairs" validate:"min=0"`
	// MaxPaths and MaxFrames bound DFS enumeration. Zero means unbounded.
	MaxPaths  int `yaml:"max_paths" validate:"min=0"`
	MaxFrames int `yaml:"max_frames" validate:"min=0"`

	// Seed makes random runs reproducible. Zero seeds from the clock.
	Seed int64 `yaml:"seed"`

	// SnapshotPath, when set, persists coverage snapshots during the run.
	SnapshotPath string `yaml:"snapshot_path"`

	// Bias tunes the sampler. Zero value means defaults.
	Bias sampling.BiasConfig `yaml:"bias"`
}

// DefaultConfig returns a random run with standard bounds.
func DefaultConfig() Config {
	return Config{
		Approach:       ApproachRandom,
		Method:         MethodDijkstra,
		CoverageTarget: 0.8,
		MaxPairs:       1000,
		Bias:           sampling.DefaultBiasConfig(),
	}
}

// Validate checks the config for consistency.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}

	v := validation.NewConfigValidator("run.Config")
	v.OneOf("Approach", c.Approach, []string{ApproachRandom, ApproachScenario})
	v.OneOf("Method", c.Method, []string{MethodDFS, MethodDijkstra})
	v.OpenRangeFloat("CoverageTarget", c.CoverageTarget, 0, 1)
	v.When(c.Approach == ApproachScenario, func(v *validation.ConfigValidator) {
		v.Custom("StartNodeID", func() error {
			if c.StartNodeID <= 0 {
				return errScenarioStart
			}
			return nil
		})
	})
	v.When(c.Approach == ApproachRandom, func(v *validation.ConfigValidator) {
		v.Positive("MaxPairs", c.MaxPairs)
	})
	return v.Error()
}
