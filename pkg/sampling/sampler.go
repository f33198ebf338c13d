package sampling

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/fabwork/pathtrace/pkg/logging"
)

// Catalog is the equipment-hierarchy read surface the sampler needs from
// the backing store.
type Catalog interface {
	// Fabs returns the fab/building codes with active toolsets.
	Fabs(ctx context.Context) ([]string, error)
	// Toolsets returns the active toolsets in one fab, with equipment counts.
	Toolsets(ctx context.Context, fab string, modelNo, phaseNo int) ([]Toolset, error)
	// Equipment returns the active equipment of one toolset.
	Equipment(ctx context.Context, toolsetCode string) ([]Equipment, error)
	// PoCs returns the active points of contact of one equipment.
	PoCs(ctx context.Context, equipmentID int64) ([]PoC, error)
}

// ScopeFilter pins sampling to part of the network. Zero values mean
// "unconstrained".
type ScopeFilter struct {
	Fab     string
	Toolset string
	ModelNo int
	PhaseNo int
}

// Sampler draws equipment PoC pairs with bias mitigation. One instance per
// run; the caller supplies the random source so runs are reproducible when
// seeded.
type Sampler struct {
	catalog Catalog
	cfg     BiasConfig
	state   *BiasState
	rng     *rand.Rand
	log     logging.Logger
}

// NewSampler creates a sampler with fresh bias state.
func NewSampler(catalog Catalog, cfg BiasConfig, rng *rand.Rand, log logging.Logger) *Sampler {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Sampler{
		catalog: catalog,
		cfg:     cfg,
		state:   NewBiasState(cfg.RecencyCapacity),
		rng:     rng,
		log:     log,
	}
}

// State exposes the bias state for inspection.
func (s *Sampler) State() *BiasState {
	return s.state
}

// Sample draws one candidate pair within the scope filter. Returns
// (nil, nil) when no acceptable pair was found within the attempt budget;
// that is an expected outcome, not an error.
func (s *Sampler) Sample(ctx context.Context, scope ScopeFilter) (*Pair, error) {
	maxAttempts := s.cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultBiasConfig().MaxAttempts
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		pair, err := s.attempt(ctx, scope)
		if err != nil {
			return nil, err
		}
		if pair == nil {
			s.state.consecutiveFailures++
			continue
		}
		s.accept(pair)
		return pair, nil
	}

	s.log.Warn("no pair found within attempt budget",
		logging.Int("attempts", maxAttempts),
		logging.String("fab", scope.Fab),
	)
	return nil, nil
}

// attempt runs one hierarchical selection: fab, toolset, equipment pair,
// PoC per equipment, then the pair acceptance rules.
func (s *Sampler) attempt(ctx context.Context, scope ScopeFilter) (*Pair, error) {
	fab := scope.Fab
	if fab == "" {
		fabs, err := s.catalog.Fabs(ctx)
		if err != nil {
			return nil, fmt.Errorf("sample fab: %w", err)
		}
		if len(fabs) == 0 {
			return nil, nil
		}
		fab = fabs[s.rng.Intn(len(fabs))]
	}

	ts, err := s.pickToolset(ctx, fab, scope)
	if err != nil || ts == nil {
		return nil, err
	}

	equipment, err := s.catalog.Equipment(ctx, ts.Code)
	if err != nil {
		return nil, fmt.Errorf("sample equipment for toolset %s: %w", ts.Code, err)
	}
	eq1, eq2 := s.pickEquipmentPair(equipment)
	if eq1 == nil || eq2 == nil {
		s.state.toolsetAttempts[ts.Code]++
		return nil, nil
	}

	poc1, err := s.pickPoC(ctx, eq1.ID)
	if err != nil {
		return nil, err
	}
	poc2, err := s.pickPoC(ctx, eq2.ID)
	if err != nil {
		return nil, err
	}
	if poc1 == nil || poc2 == nil {
		s.state.toolsetAttempts[ts.Code]++
		s.state.equipmentAttempts[eq1.ID]++
		s.state.equipmentAttempts[eq2.ID]++
		return nil, nil
	}

	// Pair rejection rules do not count as toolset/equipment attempts.
	if !s.acceptable(eq1, eq2, poc1, poc2) {
		return nil, nil
	}

	return &Pair{
		Fab:         fab,
		ToolsetCode: ts.Code,
		FromEq:      *eq1,
		ToEq:        *eq2,
		FromPoC:     *poc1,
		ToPoC:       *poc2,
	}, nil
}

// pickToolset selects a toolset by weighted draw, excluding codes whose
// attempt counter hit the ceiling. An exhausted pool is partially relaxed
// and retried once.
func (s *Sampler) pickToolset(ctx context.Context, fab string, scope ScopeFilter) (*Toolset, error) {
	toolsets, err := s.catalog.Toolsets(ctx, fab, scope.ModelNo, scope.PhaseNo)
	if err != nil {
		return nil, fmt.Errorf("sample toolsets for fab %s: %w", fab, err)
	}

	// A pinned toolset bypasses bias mitigation.
	if scope.Toolset != "" && scope.Toolset != "ALL" {
		for i := range toolsets {
			if toolsets[i].Code == scope.Toolset {
				return &toolsets[i], nil
			}
		}
		return nil, nil
	}

	candidates := s.eligibleToolsets(toolsets)
	if len(candidates) == 0 {
		s.state.relaxToolsets()
		candidates = s.eligibleToolsets(toolsets)
		if len(candidates) == 0 {
			candidates = toolsets
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	// Weight by equipment count, damped by prior attempts.
	weights := make([]float64, len(candidates))
	var sum float64
	for i, ts := range candidates {
		w := float64(ts.EquipmentCount) / float64(1+s.state.toolsetAttempts[ts.Code])
		if w <= 0 {
			w = 0.1
		}
		weights[i] = w
		sum += w
	}
	r := s.rng.Float64() * sum
	for i, w := range weights {
		r -= w
		if r <= 0 {
			return &candidates[i], nil
		}
	}
	return &candidates[len(candidates)-1], nil
}

func (s *Sampler) eligibleToolsets(toolsets []Toolset) []Toolset {
	var out []Toolset
	for _, ts := range toolsets {
		if ts.EquipmentCount < 2 {
			continue
		}
		if s.state.toolsetAttempts[ts.Code] >= s.cfg.MaxAttemptsPerToolset {
			continue
		}
		out = append(out, ts)
	}
	return out
}

// pickEquipmentPair selects two distinct equipment, excluding ids whose
// attempt counter hit the ceiling; an exhausted pool is partially relaxed.
func (s *Sampler) pickEquipmentPair(equipment []Equipment) (*Equipment, *Equipment) {
	if len(equipment) < 2 {
		return nil, nil
	}
	eligible := s.eligibleEquipment(equipment)
	if len(eligible) < 2 {
		s.state.relaxEquipment()
		eligible = s.eligibleEquipment(equipment)
		if len(eligible) < 2 {
			eligible = equipment
		}
	}

	first := eligible[s.rng.Intn(len(eligible))]
	var rest []Equipment
	for _, eq := range eligible {
		if eq.ID != first.ID {
			rest = append(rest, eq)
		}
	}
	if len(rest) == 0 {
		return nil, nil
	}
	second := rest[s.rng.Intn(len(rest))]
	return &first, &second
}

func (s *Sampler) eligibleEquipment(equipment []Equipment) []Equipment {
	var out []Equipment
	for _, eq := range equipment {
		if s.state.equipmentAttempts[eq.ID] >= s.cfg.MaxAttemptsPerEquipment {
			continue
		}
		out = append(out, eq)
	}
	return out
}

// pickPoC selects a point of contact, preferring used PoCs (they already
// carry paths) and PoCs with a utility assignment.
func (s *Sampler) pickPoC(ctx context.Context, equipmentID int64) (*PoC, error) {
	pocs, err := s.catalog.PoCs(ctx, equipmentID)
	if err != nil {
		return nil, fmt.Errorf("sample pocs for equipment %d: %w", equipmentID, err)
	}
	if len(pocs) == 0 {
		return nil, nil
	}

	pool := filterPoCs(pocs, func(p PoC) bool { return p.IsUsed })
	if len(pool) == 0 {
		pool = pocs
	}
	withUtility := filterPoCs(pool, func(p PoC) bool { return p.UtilityNo != 0 })
	if len(withUtility) > 0 {
		pool = withUtility
	}

	poc := pool[s.rng.Intn(len(pool))]
	return &poc, nil
}

func filterPoCs(pocs []PoC, keep func(PoC) bool) []PoC {
	var out []PoC
	for _, p := range pocs {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

// acceptable applies the pair-level rejection rules: distinct PoCs, node
// separation, unordered-pair reuse, and diversity-weighted acceptance.
func (s *Sampler) acceptable(eqA, eqB *Equipment, a, b *PoC) bool {
	if a.ID == b.ID || a.NodeID == b.NodeID {
		return false
	}
	minDist := s.cfg.MinDistanceBetweenNodes
	if minDist > 0 {
		d := a.NodeID - b.NodeID
		if d < 0 {
			d = -d
		}
		if d < minDist {
			return false
		}
		if s.state.nearRecent(a.NodeID, minDist) || s.state.nearRecent(b.NodeID, minDist) {
			return false
		}
	}
	if s.state.PairUsed(a.NodeID, b.NodeID) {
		return false
	}

	// Diversity bias. A utility already drawn this run passes with
	// probability 1-weight; a novel utility always passes (favored).
	if a.UtilityNo != 0 && a.UtilityNo == b.UtilityNo && s.state.utilityUsage[a.UtilityNo] > 0 {
		if s.rng.Float64() >= 1.0-s.cfg.UtilityDiversityWeight {
			return false
		}
	}
	if eqA.CategoryNo != 0 && eqA.CategoryNo == eqB.CategoryNo && s.state.categoryUsage[eqA.CategoryNo] > 0 {
		if s.rng.Float64() >= 1.0-s.cfg.CategoryDiversityWeight {
			return false
		}
	}
	return true
}

// accept commits counters and recency for a chosen pair.
func (s *Sampler) accept(p *Pair) {
	s.state.toolsetAttempts[p.ToolsetCode]++
	s.state.equipmentAttempts[p.FromEq.ID]++
	s.state.equipmentAttempts[p.ToEq.ID]++
	s.state.utilityUsage[p.FromPoC.UtilityNo]++
	s.state.utilityUsage[p.ToPoC.UtilityNo]++
	s.state.categoryUsage[p.FromEq.CategoryNo]++
	s.state.categoryUsage[p.ToEq.CategoryNo]++
	s.state.recordPair(p.FromPoC.NodeID, p.ToPoC.NodeID)
	s.state.pushRecent(p.FromPoC.NodeID)
	s.state.pushRecent(p.ToPoC.NodeID)
	s.state.consecutiveFailures = 0
}
