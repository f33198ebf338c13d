package pathfinder

import "testing"

func TestAnalyzeNodeFlags(t *testing.T) {
	f := New(fabView(t), nil)
	paths, err := f.FindAllPathsDFS(fabTargets, Budget{})
	if err != nil {
		t.Fatalf("FindAllPathsDFS: %v", err)
	}

	flags := f.AnalyzeNodeFlags(paths, fabTargets)

	byPath := make(map[int]map[int64]rune)
	for key, flag := range flags {
		if byPath[key.PathID] == nil {
			byPath[key.PathID] = make(map[int64]rune)
		}
		byPath[key.PathID][key.NodeID] = flag
	}

	for _, p := range paths {
		pf := byPath[p.PathID]
		if pf[p.StartNodeID] != FlagStart {
			t.Errorf("path %d start flag = %c, want S", p.PathID, pf[p.StartNodeID])
		}

		var wantTerminal rune
		switch p.Endpoint {
		case EndpointLeaf:
			wantTerminal = FlagLeaf
		case EndpointTarget:
			wantTerminal = FlagTarget
		case EndpointBoundary:
			wantTerminal = FlagBoundary
		}
		if pf[p.EndNodeID] != wantTerminal {
			t.Errorf("path %d terminal flag = %c, want %c", p.PathID, pf[p.EndNodeID], wantTerminal)
		}
	}

	// Node 100 is an interior hop of three paths, so it must be marked as a
	// convergence point on each of them.
	converged := 0
	for key, flag := range flags {
		if key.NodeID == 100 && flag == FlagConvergence {
			converged++
		}
	}
	if converged != 3 {
		t.Errorf("node 100 convergence flags = %d, want 3", converged)
	}
}

func TestAnalyzeNodeFlagsIntermediate(t *testing.T) {
	f := New(fabView(t), nil)
	paths, err := f.FindAllPathsDFS(fabTargets, Budget{})
	if err != nil {
		t.Fatalf("FindAllPathsDFS: %v", err)
	}
	flags := f.AnalyzeNodeFlags(paths, fabTargets)

	// Node 101 is interior to exactly one path.
	found := false
	for key, flag := range flags {
		if key.NodeID != 101 {
			continue
		}
		found = true
		if flag != FlagIntermediate {
			t.Errorf("node 101 flag = %c, want I", flag)
		}
	}
	if !found {
		t.Error("node 101 missing from flag map")
	}
}

func TestAnalyzeNodeFlagsTargetInterior(t *testing.T) {
	// Node 200 carries a target data code. On the path that ends at 200 it is
	// the terminal; on the longer path through it (ending at 201) it sits in
	// the interior of two paths and is therefore a convergence node.
	f := New(fabView(t), nil)
	paths, err := f.FindAllPathsDFS(fabTargets, Budget{})
	if err != nil {
		t.Fatalf("FindAllPathsDFS: %v", err)
	}
	flags := f.AnalyzeNodeFlags(paths, fabTargets)

	var terminal, interior bool
	for _, p := range paths {
		flag := flags[FlagKey{PathID: p.PathID, NodeID: 200}]
		switch {
		case p.EndNodeID == 200:
			terminal = flag == FlagTarget
		case p.EndNodeID == 201:
			interior = flag == FlagConvergence
		}
	}
	if !terminal {
		t.Error("node 200 must be flagged E on the path terminating there")
	}
	if !interior {
		t.Error("node 200 must be flagged C on the path passing through it")
	}
}
