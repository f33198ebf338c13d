package sampling

import (
	"context"
	"math/rand"
	"testing"
)

// fakeCatalog serves a small equipment hierarchy from memory.
type fakeCatalog struct {
	fabs      []string
	toolsets  map[string][]Toolset
	equipment map[string][]Equipment
	pocs      map[int64][]PoC
}

func (c *fakeCatalog) Fabs(_ context.Context) ([]string, error) {
	return c.fabs, nil
}

func (c *fakeCatalog) Toolsets(_ context.Context, fab string, _, _ int) ([]Toolset, error) {
	return c.toolsets[fab], nil
}

func (c *fakeCatalog) Equipment(_ context.Context, toolsetCode string) ([]Equipment, error) {
	return c.equipment[toolsetCode], nil
}

func (c *fakeCatalog) PoCs(_ context.Context, equipmentID int64) ([]PoC, error) {
	return c.pocs[equipmentID], nil
}

// twoToolCatalog has one fab, one toolset, two equipment with one PoC each.
// Node ids are far enough apart to clear the distance floor.
func twoToolCatalog() *fakeCatalog {
	return &fakeCatalog{
		fabs: []string{"M16"},
		toolsets: map[string][]Toolset{
			"M16": {{Code: "TS-01", Fab: "M16", EquipmentCount: 2}},
		},
		equipment: map[string][]Equipment{
			"TS-01": {
				{ID: 1, NodeID: 100, CategoryNo: 7, Name: "ETCH-01"},
				{ID: 2, NodeID: 200, CategoryNo: 8, Name: "ETCH-02"},
			},
		},
		pocs: map[int64][]PoC{
			1: {{ID: 11, NodeID: 100, IsUsed: true, UtilityNo: 13}},
			2: {{ID: 22, NodeID: 200, IsUsed: true, UtilityNo: 21}},
		},
	}
}

func newTestSampler(catalog Catalog, seed int64) *Sampler {
	return NewSampler(catalog, DefaultBiasConfig(), rand.New(rand.NewSource(seed)), nil)
}

func TestSampleReturnsValidPair(t *testing.T) {
	s := newTestSampler(twoToolCatalog(), 1)
	pair, err := s.Sample(context.Background(), ScopeFilter{})
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if pair == nil {
		t.Fatal("expected a pair")
	}
	if pair.Fab != "M16" || pair.ToolsetCode != "TS-01" {
		t.Errorf("pair scope = %s/%s, want M16/TS-01", pair.Fab, pair.ToolsetCode)
	}
	if pair.FromEq.ID == pair.ToEq.ID {
		t.Error("pair must use distinct equipment")
	}
	if pair.FromPoC.NodeID == pair.ToPoC.NodeID {
		t.Error("pair must use distinct nodes")
	}
}

func TestSamplePairNotReused(t *testing.T) {
	s := newTestSampler(twoToolCatalog(), 1)
	ctx := context.Background()

	first, err := s.Sample(ctx, ScopeFilter{})
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if first == nil {
		t.Fatal("expected a pair on the first draw")
	}
	if !s.State().PairUsed(first.FromPoC.NodeID, first.ToPoC.NodeID) {
		t.Error("accepted pair not recorded as used")
	}

	// Only one pair exists in this catalog, so the second draw exhausts
	// the budget without error.
	second, err := s.Sample(ctx, ScopeFilter{})
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if second != nil {
		t.Errorf("expected no second pair, got %+v", second)
	}
}

func TestSampleSeededReproducible(t *testing.T) {
	catalog := &fakeCatalog{
		fabs: []string{"M16"},
		toolsets: map[string][]Toolset{
			"M16": {
				{Code: "TS-01", Fab: "M16", EquipmentCount: 3},
				{Code: "TS-02", Fab: "M16", EquipmentCount: 3},
			},
		},
		equipment: map[string][]Equipment{
			"TS-01": {
				{ID: 1, NodeID: 100}, {ID: 2, NodeID: 200}, {ID: 3, NodeID: 300},
			},
			"TS-02": {
				{ID: 4, NodeID: 400}, {ID: 5, NodeID: 500}, {ID: 6, NodeID: 600},
			},
		},
		pocs: map[int64][]PoC{
			1: {{ID: 11, NodeID: 100, IsUsed: true, UtilityNo: 13}},
			2: {{ID: 22, NodeID: 200, IsUsed: true, UtilityNo: 13}},
			3: {{ID: 33, NodeID: 300, IsUsed: true, UtilityNo: 13}},
			4: {{ID: 44, NodeID: 400, IsUsed: true, UtilityNo: 21}},
			5: {{ID: 55, NodeID: 500, IsUsed: true, UtilityNo: 21}},
			6: {{ID: 66, NodeID: 600, IsUsed: true, UtilityNo: 21}},
		},
	}
	ctx := context.Background()

	a, err := newTestSampler(catalog, 42).Sample(ctx, ScopeFilter{})
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	b, err := newTestSampler(catalog, 42).Sample(ctx, ScopeFilter{})
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if a == nil || b == nil {
		t.Fatal("expected pairs from both samplers")
	}
	if a.FromPoC.ID != b.FromPoC.ID || a.ToPoC.ID != b.ToPoC.ID {
		t.Errorf("same seed drew different pairs: %+v vs %+v", a, b)
	}
}

func TestSamplePinnedToolset(t *testing.T) {
	catalog := twoToolCatalog()
	catalog.toolsets["M16"] = append(catalog.toolsets["M16"],
		Toolset{Code: "TS-99", Fab: "M16", EquipmentCount: 2})
	catalog.equipment["TS-99"] = []Equipment{
		{ID: 8, NodeID: 800}, {ID: 9, NodeID: 900},
	}
	catalog.pocs[8] = []PoC{{ID: 88, NodeID: 800, IsUsed: true, UtilityNo: 5}}
	catalog.pocs[9] = []PoC{{ID: 99, NodeID: 900, IsUsed: true, UtilityNo: 6}}

	s := newTestSampler(catalog, 1)
	pair, err := s.Sample(context.Background(), ScopeFilter{Fab: "M16", Toolset: "TS-99"})
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if pair == nil {
		t.Fatal("expected a pair")
	}
	if pair.ToolsetCode != "TS-99" {
		t.Errorf("toolset = %s, want pinned TS-99", pair.ToolsetCode)
	}
}

func TestSamplePinnedToolsetAbsent(t *testing.T) {
	s := newTestSampler(twoToolCatalog(), 1)
	pair, err := s.Sample(context.Background(), ScopeFilter{Fab: "M16", Toolset: "NOPE"})
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if pair != nil {
		t.Errorf("expected no pair for an unknown toolset, got %+v", pair)
	}
}

func TestSampleRejectsCloseNodes(t *testing.T) {
	catalog := twoToolCatalog()
	// Nodes 100 and 105 are inside the default distance floor of 10.
	catalog.equipment["TS-01"][1].NodeID = 105
	catalog.pocs[2] = []PoC{{ID: 22, NodeID: 105, IsUsed: true, UtilityNo: 21}}

	s := newTestSampler(catalog, 1)
	pair, err := s.Sample(context.Background(), ScopeFilter{})
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if pair != nil {
		t.Errorf("expected rejection of close node pair, got %+v", pair)
	}
}

func TestSampleEmptyCatalog(t *testing.T) {
	s := newTestSampler(&fakeCatalog{}, 1)
	pair, err := s.Sample(context.Background(), ScopeFilter{})
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if pair != nil {
		t.Errorf("expected no pair from an empty catalog, got %+v", pair)
	}
}

func TestPickPoCPrefersUsedWithUtility(t *testing.T) {
	catalog := &fakeCatalog{
		pocs: map[int64][]PoC{
			1: {
				{ID: 1, NodeID: 10, IsUsed: false, UtilityNo: 13},
				{ID: 2, NodeID: 20, IsUsed: true, UtilityNo: 0},
				{ID: 3, NodeID: 30, IsUsed: true, UtilityNo: 13},
			},
		},
	}
	s := newTestSampler(catalog, 1)
	for i := 0; i < 20; i++ {
		poc, err := s.pickPoC(context.Background(), 1)
		if err != nil {
			t.Fatalf("pickPoC: %v", err)
		}
		if poc == nil || poc.ID != 3 {
			t.Fatalf("pickPoC = %+v, want the used PoC with a utility", poc)
		}
	}
}

func TestEligibleToolsetsCeiling(t *testing.T) {
	s := newTestSampler(twoToolCatalog(), 1)
	toolsets := []Toolset{
		{Code: "A", EquipmentCount: 4},
		{Code: "B", EquipmentCount: 4},
		{Code: "C", EquipmentCount: 1}, // too small to pair
	}
	s.state.toolsetAttempts["A"] = s.cfg.MaxAttemptsPerToolset

	got := s.eligibleToolsets(toolsets)
	if len(got) != 1 || got[0].Code != "B" {
		t.Errorf("eligible = %+v, want only B", got)
	}
}
