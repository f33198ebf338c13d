package validation

import (
	"context"
	"fmt"
	"strings"
)

// testElementsExist (CONN_001): every node and link referenced by the path
// must exist in the backing store.
func (e *Engine) testElementsExist(ctx context.Context, path *PathRecord) ([]ValidationError, error) {
	var findings []ValidationError
	for _, nodeID := range path.NodeIDs {
		ok, err := e.inspector.NodeExists(ctx, nodeID)
		if err != nil {
			return nil, fmt.Errorf("node lookup %d: %w", nodeID, err)
		}
		if !ok {
			findings = append(findings, e.finding(path, "CONN_001", SeverityCritical,
				ScopeConnectivity, KindMissingNode, ObjectNode, nodeID,
				fmt.Sprintf("node %d referenced by path does not exist", nodeID)))
		}
	}
	for _, linkID := range path.LinkIDs {
		ok, err := e.inspector.LinkExists(ctx, linkID)
		if err != nil {
			return nil, fmt.Errorf("link lookup %d: %w", linkID, err)
		}
		if !ok {
			findings = append(findings, e.finding(path, "CONN_001", SeverityCritical,
				ScopeConnectivity, KindMissingLink, ObjectLink, linkID,
				fmt.Sprintf("link %d referenced by path does not exist", linkID)))
		}
	}
	return findings, nil
}

// testContinuity (CONN_002): every consecutive node pair must be joined by
// a link whose direction permits the hop (forward always, reverse only when
// bidirected).
func (e *Engine) testContinuity(ctx context.Context, path *PathRecord) ([]ValidationError, error) {
	var findings []ValidationError

	if len(path.Steps) > 0 {
		for _, step := range path.Steps {
			link, err := e.inspector.LinkByID(ctx, step.LinkID)
			if err != nil {
				return nil, fmt.Errorf("link lookup %d: %w", step.LinkID, err)
			}
			if link == nil {
				// CONN_001 already reports missing links.
				continue
			}
			forward := link.StartNodeID == step.FromNodeID && link.EndNodeID == step.ToNodeID
			reverse := link.StartNodeID == step.ToNodeID && link.EndNodeID == step.FromNodeID
			switch {
			case forward:
			case reverse && link.Bidirected:
			case reverse:
				findings = append(findings, e.finding(path, "CONN_002", SeverityCritical,
					ScopeConnectivity, KindWrongDirection, ObjectLink, link.ID,
					fmt.Sprintf("link %d traversed %d->%d against its direction", link.ID, step.FromNodeID, step.ToNodeID)))
			default:
				findings = append(findings, e.finding(path, "CONN_002", SeverityCritical,
					ScopeConnectivity, KindConnectivityBreak, ObjectLink, link.ID,
					fmt.Sprintf("link %d does not join nodes %d and %d", link.ID, step.FromNodeID, step.ToNodeID)))
			}
		}
		return findings, nil
	}

	// Without step detail, fall back to pairwise link lookups.
	for i := 0; i+1 < len(path.NodeIDs); i++ {
		from, to := path.NodeIDs[i], path.NodeIDs[i+1]
		link, err := e.inspector.LinkBetween(ctx, from, to)
		if err != nil {
			return nil, fmt.Errorf("link between %d and %d: %w", from, to, err)
		}
		if link == nil {
			findings = append(findings, e.finding(path, "CONN_002", SeverityCritical,
				ScopeConnectivity, KindConnectivityBreak, ObjectNode, from,
				fmt.Sprintf("no link joins consecutive path nodes %d and %d", from, to)))
			continue
		}
		if link.StartNodeID == to && !link.Bidirected {
			findings = append(findings, e.finding(path, "CONN_002", SeverityCritical,
				ScopeConnectivity, KindWrongDirection, ObjectLink, link.ID,
				fmt.Sprintf("link %d only permits %d->%d", link.ID, link.StartNodeID, link.EndNodeID)))
		}
	}
	return findings, nil
}

// testRequiredAttributes (DATA_001): every PoC on the path must carry a
// utility code, markers, and a reference. Missing utility is HIGH; other
// missing fields are MEDIUM.
func (e *Engine) testRequiredAttributes(ctx context.Context, path *PathRecord) ([]ValidationError, error) {
	var findings []ValidationError
	for _, nodeID := range path.NodeIDs {
		poc, err := e.inspector.PoCByNode(ctx, nodeID)
		if err != nil {
			return nil, fmt.Errorf("poc lookup %d: %w", nodeID, err)
		}
		if poc == nil {
			continue
		}

		var missing []string
		if poc.UtilityNo == 0 {
			missing = append(missing, "utility_no")
		}
		if strings.TrimSpace(poc.Markers) == "" {
			missing = append(missing, "markers")
		}
		if strings.TrimSpace(poc.Reference) == "" {
			missing = append(missing, "reference")
		}
		if len(missing) == 0 {
			continue
		}

		severity := SeverityMedium
		for _, m := range missing {
			if m == "utility_no" {
				severity = SeverityHigh
			}
		}
		f := e.finding(path, "DATA_001", severity, ScopeConnectivity,
			KindMissingAttribute, ObjectPoC, poc.EquipmentID,
			fmt.Sprintf("PoC at node %d missing required attributes: %s", nodeID, strings.Join(missing, ", ")))
		f.Data = map[string]any{"node_id": nodeID, "missing": missing}
		findings = append(findings, f)
	}
	return findings, nil
}

// testUtilityConsistency (UTY_001): the utility code must not change along
// the path unless the transition happens at converting equipment and is in
// the configured allow-list.
func (e *Engine) testUtilityConsistency(ctx context.Context, path *PathRecord) ([]ValidationError, error) {
	if len(path.NodeIDs) < 2 {
		return nil, nil
	}

	var findings []ValidationError
	currentUtility := 0
	for _, nodeID := range path.NodeIDs {
		poc, err := e.inspector.PoCByNode(ctx, nodeID)
		if err != nil {
			return nil, fmt.Errorf("poc lookup %d: %w", nodeID, err)
		}
		if poc == nil || poc.UtilityNo == 0 {
			continue
		}
		if currentUtility == 0 {
			currentUtility = poc.UtilityNo
			continue
		}
		if poc.UtilityNo == currentUtility {
			continue
		}

		if !e.validTransition(currentUtility, poc.UtilityNo, poc.EquipmentKind) {
			f := e.finding(path, "UTY_001", SeverityHigh, ScopeFlow,
				KindUtilityMismatch, ObjectPoC, poc.EquipmentID,
				fmt.Sprintf("invalid utility transition %d -> %d at equipment %s",
					currentUtility, poc.UtilityNo, poc.EquipmentGUID))
			f.Data = map[string]any{
				"from_utility": currentUtility,
				"to_utility":   poc.UtilityNo,
				"node_id":      nodeID,
			}
			findings = append(findings, f)
		}
		currentUtility = poc.UtilityNo
	}
	return findings, nil
}

func (e *Engine) validTransition(from, to int, equipmentKind string) bool {
	converting := false
	for _, k := range e.cfg.ConvertingKinds {
		if k == equipmentKind {
			converting = true
			break
		}
	}
	if !converting {
		return false
	}
	for _, allowed := range e.cfg.UtilityConversions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// testFlowDirection (UTY_002): PoC flow tags along the path may not include
// more than one inbound or more than one outbound terminus. Informational
// only; findings are warnings.
func (e *Engine) testFlowDirection(ctx context.Context, path *PathRecord) ([]ValidationError, error) {
	if len(path.NodeIDs) < 2 {
		return nil, nil
	}

	var inNodes, outNodes []int64
	tagged := 0
	for _, nodeID := range path.NodeIDs {
		poc, err := e.inspector.PoCByNode(ctx, nodeID)
		if err != nil {
			return nil, fmt.Errorf("poc lookup %d: %w", nodeID, err)
		}
		if poc == nil || poc.Flow == "" {
			continue
		}
		tagged++
		switch poc.Flow {
		case "IN":
			inNodes = append(inNodes, nodeID)
		case "OUT":
			outNodes = append(outNodes, nodeID)
		}
	}

	var findings []ValidationError
	if len(inNodes) > 1 {
		f := e.finding(path, "UTY_002", SeverityWarning, ScopeFlow,
			KindFlowImbalance, ObjectPath, path.PathID,
			fmt.Sprintf("path has %d inbound flow termini", len(inNodes)))
		f.Data = map[string]any{"in_nodes": inNodes}
		findings = append(findings, f)
	}
	if len(outNodes) > 1 {
		f := e.finding(path, "UTY_002", SeverityWarning, ScopeFlow,
			KindFlowImbalance, ObjectPath, path.PathID,
			fmt.Sprintf("path has %d outbound flow termini", len(outNodes)))
		f.Data = map[string]any{"out_nodes": outNodes}
		findings = append(findings, f)
	}
	if tagged == 0 {
		findings = append(findings, e.finding(path, "UTY_002", SeverityWarning, ScopeFlow,
			KindMissingFlow, ObjectPath, path.PathID,
			"path has no flow direction tags"))
	}
	return findings, nil
}

// testMaterialConsistency (MAT_001): a path mixing more than one material
// is flagged for review.
func (e *Engine) testMaterialConsistency(ctx context.Context, path *PathRecord) ([]ValidationError, error) {
	materials, err := e.inspector.Materials(ctx, path.NodeIDs, path.LinkIDs)
	if err != nil {
		return nil, fmt.Errorf("material lookup: %w", err)
	}
	if len(materials) <= 1 {
		return nil, nil
	}
	f := e.finding(path, "MAT_001", SeverityWarning, ScopeMaterial,
		KindInvalidMaterial, ObjectPath, path.PathID,
		fmt.Sprintf("path mixes materials: %s", strings.Join(materials, ", ")))
	f.Data = map[string]any{"materials": materials}
	return []ValidationError{f}, nil
}

// testStructure (QA_001): a path needs at least 2 nodes and 1 link;
// excessively long paths are flagged.
func (e *Engine) testStructure(_ context.Context, path *PathRecord) ([]ValidationError, error) {
	var findings []ValidationError
	if len(path.NodeIDs) < 2 || len(path.LinkIDs) < 1 {
		f := e.finding(path, "QA_001", SeverityError, ScopeQA,
			KindPathLength, ObjectPath, path.PathID,
			fmt.Sprintf("path too short: %d nodes, %d links (needs at least 2 nodes and 1 link)",
				len(path.NodeIDs), len(path.LinkIDs)))
		f.Data = map[string]any{"node_count": len(path.NodeIDs), "link_count": len(path.LinkIDs)}
		findings = append(findings, f)
	}
	if e.cfg.MaxPathNodes > 0 && len(path.NodeIDs) > e.cfg.MaxPathNodes {
		f := e.finding(path, "QA_001", SeverityWarning, ScopeQA,
			KindPathLength, ObjectPath, path.PathID,
			fmt.Sprintf("path is very long: %d nodes (ceiling %d)", len(path.NodeIDs), e.cfg.MaxPathNodes))
		f.Data = map[string]any{"node_count": len(path.NodeIDs), "max_nodes": e.cfg.MaxPathNodes}
		findings = append(findings, f)
	}
	return findings, nil
}

// testLoops (QA_002): duplicate nodes in the sequence indicate a loop.
func (e *Engine) testLoops(_ context.Context, path *PathRecord) ([]ValidationError, error) {
	seen := make(map[int64]bool, len(path.NodeIDs))
	dupes := make(map[int64]bool)
	for _, nodeID := range path.NodeIDs {
		if seen[nodeID] {
			dupes[nodeID] = true
		}
		seen[nodeID] = true
	}
	if len(dupes) == 0 {
		return nil, nil
	}
	var ids []int64
	for id := range dupes {
		ids = append(ids, id)
	}
	f := e.finding(path, "QA_002", SeverityMedium, ScopeQA,
		KindPathLoops, ObjectPath, path.PathID,
		fmt.Sprintf("path revisits %d node(s)", len(ids)))
	f.Data = map[string]any{"duplicate_nodes": ids}
	return []ValidationError{f}, nil
}

func (e *Engine) finding(path *PathRecord, testCode string, severity Severity,
	scope Scope, kind ErrorKind, object ObjectType, objectID int64, msg string) ValidationError {
	return ValidationError{
		RunID:    path.RunID,
		PathID:   path.PathID,
		TestCode: testCode,
		Severity: severity,
		Scope:    scope,
		Kind:     kind,
		Object:   object,
		ObjectID: objectID,
		Message:  msg,
	}
}
