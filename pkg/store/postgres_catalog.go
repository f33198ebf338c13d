package store

import (
	"context"
	"fmt"

	"github.com/fabwork/pathtrace/pkg/coverage"
	"github.com/fabwork/pathtrace/pkg/sampling"
)

// scopedNodes selects the ids of active nodes inside a coverage scope.
// Zero-valued scope dimensions are unconstrained.
const scopedNodes = `
	SELECT n.id
	FROM nw_nodes n
	LEFT JOIN tb_toolsets t ON t.id = n.toolset_id
	WHERE n.is_active
	  AND ($1 = '' OR t.fab = $1)
	  AND ($2 = 0 OR t.model_no = $2)
	  AND ($3 = 0 OR t.phase_no = $3)
	  AND ($4 = 0 OR n.toolset_id = $4)
`

// scopedLinks selects the ids of active links with at least one endpoint
// inside the scope.
const scopedLinks = `
	SELECT l.id
	FROM nw_links l
	WHERE l.is_active
	  AND (l.start_node_id IN (` + scopedNodes + `) OR l.end_node_id IN (` + scopedNodes + `))
`

// Fabs returns the fab codes with active toolsets.
func (s *PGStore) Fabs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT fab FROM tb_toolsets WHERE is_active ORDER BY fab`)
	if err != nil {
		return nil, fmt.Errorf("failed to query fabs: %w", err)
	}
	defer rows.Close()

	var fabs []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, fmt.Errorf("failed to scan fab: %w", err)
		}
		fabs = append(fabs, f)
	}
	return fabs, rows.Err()
}

// Toolsets returns the active toolsets in one fab, with equipment counts.
func (s *PGStore) Toolsets(ctx context.Context, fab string, modelNo, phaseNo int) ([]sampling.Toolset, error) {
	query := `
		SELECT t.code, t.fab, t.phase_no, t.model_no,
		       (SELECT COUNT(*) FROM tb_equipments e WHERE e.toolset_code = t.code AND e.is_active)
		FROM tb_toolsets t
		WHERE t.is_active
		  AND t.fab = $1
		  AND ($2 = 0 OR t.model_no = $2)
		  AND ($3 = 0 OR t.phase_no = $3)
		ORDER BY t.code
	`

	rows, err := s.pool.Query(ctx, query, fab, modelNo, phaseNo)
	if err != nil {
		return nil, fmt.Errorf("failed to query toolsets: %w", err)
	}
	defer rows.Close()

	var toolsets []sampling.Toolset
	for rows.Next() {
		var t sampling.Toolset
		if err := rows.Scan(&t.Code, &t.Fab, &t.PhaseNo, &t.ModelNo, &t.EquipmentCount); err != nil {
			return nil, fmt.Errorf("failed to scan toolset: %w", err)
		}
		toolsets = append(toolsets, t)
	}
	return toolsets, rows.Err()
}

// Equipment returns the active equipment of one toolset.
func (s *PGStore) Equipment(ctx context.Context, toolsetCode string) ([]sampling.Equipment, error) {
	query := `
		SELECT id, guid, node_id, kind, category_no, name
		FROM tb_equipments
		WHERE toolset_code = $1 AND is_active
		ORDER BY id
	`

	rows, err := s.pool.Query(ctx, query, toolsetCode)
	if err != nil {
		return nil, fmt.Errorf("failed to query equipment: %w", err)
	}
	defer rows.Close()

	var eqs []sampling.Equipment
	for rows.Next() {
		var e sampling.Equipment
		if err := rows.Scan(&e.ID, &e.GUID, &e.NodeID, &e.Kind, &e.CategoryNo, &e.Name); err != nil {
			return nil, fmt.Errorf("failed to scan equipment: %w", err)
		}
		eqs = append(eqs, e)
	}
	return eqs, rows.Err()
}

// PoCs returns the active points of contact of one equipment.
func (s *PGStore) PoCs(ctx context.Context, equipmentID int64) ([]sampling.PoC, error) {
	query := `
		SELECT id, node_id, is_used, markers, utility_no, reference, flow, loopback
		FROM tb_equipment_pocs
		WHERE equipment_id = $1 AND is_active
		ORDER BY id
	`

	rows, err := s.pool.Query(ctx, query, equipmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pocs: %w", err)
	}
	defer rows.Close()

	var pocs []sampling.PoC
	for rows.Next() {
		var p sampling.PoC
		if err := rows.Scan(&p.ID, &p.NodeID, &p.IsUsed, &p.Markers, &p.UtilityNo, &p.Reference, &p.Flow, &p.Loopback); err != nil {
			return nil, fmt.Errorf("failed to scan poc: %w", err)
		}
		pocs = append(pocs, p)
	}
	return pocs, rows.Err()
}

// ScopeTotals returns the in-scope node and link counts.
func (s *PGStore) ScopeTotals(ctx context.Context, scope coverage.Scope) (int, int, error) {
	var nodes, links int
	args := []any{scope.Fab, scope.ModelNo, scope.PhaseNo, scope.ToolsetID}

	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM (`+scopedNodes+`) n`, args...).Scan(&nodes)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count scoped nodes: %w", err)
	}
	err = s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM (`+scopedLinks+`) l`, args...).Scan(&links)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count scoped links: %w", err)
	}
	return nodes, links, nil
}

// ScopeItemIDs returns all in-scope node or link ids.
func (s *PGStore) ScopeItemIDs(ctx context.Context, scope coverage.Scope, kind coverage.ItemKind) ([]int64, error) {
	query := scopedNodes
	if kind == coverage.KindLink {
		query = scopedLinks
	}

	rows, err := s.pool.Query(ctx, query, scope.Fab, scope.ModelNo, scope.PhaseNo, scope.ToolsetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query scoped items: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan item id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CoveredSets returns the union of node and link ids over every path
// persisted for the run.
func (s *PGStore) CoveredSets(ctx context.Context, runID string) ([]int64, []int64, error) {
	nodeQuery := `
		SELECT DISTINCT node_id FROM (
			SELECT pl.from_node_id AS node_id
			FROM nw_path_links pl JOIN nw_paths p ON p.id = pl.path_id
			WHERE p.run_id = $1
			UNION
			SELECT pl.to_node_id
			FROM nw_path_links pl JOIN nw_paths p ON p.id = pl.path_id
			WHERE p.run_id = $1
		) n
	`
	linkQuery := `
		SELECT DISTINCT pl.link_id
		FROM nw_path_links pl JOIN nw_paths p ON p.id = pl.path_id
		WHERE p.run_id = $1
	`

	nodes, err := s.queryIDs(ctx, nodeQuery, runID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query covered nodes: %w", err)
	}
	links, err := s.queryIDs(ctx, linkQuery, runID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query covered links: %w", err)
	}
	return nodes, links, nil
}

func (s *PGStore) queryIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
