package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fabwork/pathtrace/pkg/coverage"
	"github.com/fabwork/pathtrace/pkg/netgraph"
	"github.com/fabwork/pathtrace/pkg/sampling"
	"github.com/fabwork/pathtrace/pkg/validation"
)

// scopedNodesLite selects the ids of active nodes inside a coverage scope.
const scopedNodesLite = `
	SELECT n.id
	FROM nw_nodes n
	LEFT JOIN tb_toolsets t ON t.id = n.toolset_id
	WHERE n.is_active
	  AND (?1 = '' OR t.fab = ?1)
	  AND (?2 = 0 OR t.model_no = ?2)
	  AND (?3 = 0 OR t.phase_no = ?3)
	  AND (?4 = 0 OR n.toolset_id = ?4)
`

const scopedLinksLite = `
	SELECT l.id
	FROM nw_links l
	WHERE l.is_active
	  AND (l.start_node_id IN (` + scopedNodesLite + `) OR l.end_node_id IN (` + scopedNodesLite + `))
`

// NodeByID returns a single active node.
func (s *SQLiteStore) NodeByID(ctx context.Context, id int64) (*netgraph.Node, error) {
	n := &netgraph.Node{}
	var kind int
	err := s.db.QueryRowContext(ctx, `
		SELECT id, data_code, utility_no, toolset_id, eq_poc_no, kind
		FROM nw_nodes
		WHERE id = ? AND is_active
	`, id).Scan(&n.ID, &n.DataCode, &n.UtilityNo, &n.ToolsetID, &n.EqPoCNo, &kind)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("node %d: %w", id, netgraph.ErrNodeNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get node %d: %w", id, err)
	}
	n.Kind = netgraph.NodeKind(kind)
	return n, nil
}

// NodesMatching returns active nodes passing every set filter dimension,
// excluding the given ids.
func (s *SQLiteStore) NodesMatching(ctx context.Context, filter netgraph.PathFilter, exclude []int64) ([]netgraph.Node, error) {
	query := `
		SELECT id, data_code, utility_no, toolset_id, eq_poc_no, kind
		FROM nw_nodes
		WHERE is_active
		  AND (? = 0 OR utility_no = ?)
		  AND (? = 0 OR toolset_id = ?)
		  AND (? = '' OR eq_poc_no LIKE '%' || ? || '%')
	`
	args := []any{
		filter.UtilityNo, filter.UtilityNo,
		filter.ToolsetID, filter.ToolsetID,
		filter.EqPoCNo, filter.EqPoCNo,
	}
	if len(exclude) > 0 {
		marks, exArgs := placeholders(exclude)
		query += ` AND id NOT IN (` + marks + `)`
		args = append(args, exArgs...)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()
	return scanNodeRowsLite(rows)
}

// NodesByIDs returns the active nodes with the given ids; missing ids are
// skipped.
func (s *SQLiteStore) NodesByIDs(ctx context.Context, ids []int64) ([]netgraph.Node, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	marks, args := placeholders(ids)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, data_code, utility_no, toolset_id, eq_poc_no, kind
		FROM nw_nodes
		WHERE is_active AND id IN (`+marks+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()
	return scanNodeRowsLite(rows)
}

// LinksTouching returns every active link with at least one endpoint in ids,
// excluding links that touch any node in the exclude set.
func (s *SQLiteStore) LinksTouching(ctx context.Context, ids []int64, exclude []int64) ([]netgraph.Link, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	marks, args := placeholders(ids)
	query := `
		SELECT id, guid, start_node_id, end_node_id, bidirected, cost, obj_type
		FROM nw_links
		WHERE is_active
		  AND (start_node_id IN (` + marks + `) OR end_node_id IN (` + marks + `))
	`
	args = append(args, args[:len(ids)]...)
	if len(exclude) > 0 {
		exMarks, exArgs := placeholders(exclude)
		query += ` AND start_node_id NOT IN (` + exMarks + `) AND end_node_id NOT IN (` + exMarks + `)`
		args = append(args, exArgs...)
		args = append(args, exArgs...)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer rows.Close()

	var links []netgraph.Link
	for rows.Next() {
		var l netgraph.Link
		if err := rows.Scan(&l.ID, &l.GUID, &l.StartNodeID, &l.EndNodeID, &l.Bidirected, &l.Cost, &l.ObjType); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func scanNodeRowsLite(rows *sql.Rows) ([]netgraph.Node, error) {
	var nodes []netgraph.Node
	for rows.Next() {
		var n netgraph.Node
		var kind int
		if err := rows.Scan(&n.ID, &n.DataCode, &n.UtilityNo, &n.ToolsetID, &n.EqPoCNo, &kind); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		n.Kind = netgraph.NodeKind(kind)
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// NodeExists reports whether an active node with the given id exists.
func (s *SQLiteStore) NodeExists(ctx context.Context, nodeID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM nw_nodes WHERE id = ? AND is_active)`, nodeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check node %d: %w", nodeID, err)
	}
	return exists, nil
}

// LinkExists reports whether an active link with the given id exists.
func (s *SQLiteStore) LinkExists(ctx context.Context, linkID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM nw_links WHERE id = ? AND is_active)`, linkID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check link %d: %w", linkID, err)
	}
	return exists, nil
}

// LinkByID returns one active link, or nil when it does not exist.
func (s *SQLiteStore) LinkByID(ctx context.Context, linkID int64) (*validation.LinkRef, error) {
	ref := &validation.LinkRef{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, start_node_id, end_node_id, bidirected FROM nw_links WHERE id = ? AND is_active`,
		linkID).Scan(&ref.ID, &ref.StartNodeID, &ref.EndNodeID, &ref.Bidirected)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get link %d: %w", linkID, err)
	}
	return ref, nil
}

// LinkBetween returns an active link connecting a and b in either
// orientation, or nil when none exists.
func (s *SQLiteStore) LinkBetween(ctx context.Context, a, b int64) (*validation.LinkRef, error) {
	ref := &validation.LinkRef{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, start_node_id, end_node_id, bidirected
		FROM nw_links
		WHERE is_active
		  AND ((start_node_id = ?1 AND end_node_id = ?2) OR (start_node_id = ?2 AND end_node_id = ?1))
		LIMIT 1
	`, a, b).Scan(&ref.ID, &ref.StartNodeID, &ref.EndNodeID, &ref.Bidirected)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get link between %d and %d: %w", a, b, err)
	}
	return ref, nil
}

// PoCByNode returns the point of contact sitting on the given node, or nil
// when the node is not a PoC.
func (s *SQLiteStore) PoCByNode(ctx context.Context, nodeID int64) (*validation.PoCRef, error) {
	ref := &validation.PoCRef{}
	err := s.db.QueryRowContext(ctx, `
		SELECT p.node_id, p.equipment_id, e.guid, e.kind, p.utility_no, p.markers, p.reference, p.flow, p.is_used
		FROM tb_equipment_pocs p
		JOIN tb_equipments e ON e.id = p.equipment_id
		WHERE p.node_id = ? AND p.is_active
	`, nodeID).Scan(
		&ref.NodeID, &ref.EquipmentID, &ref.EquipmentGUID, &ref.EquipmentKind,
		&ref.UtilityNo, &ref.Markers, &ref.Reference, &ref.Flow, &ref.IsUsed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get poc for node %d: %w", nodeID, err)
	}
	return ref, nil
}

// Materials returns the distinct non-empty material codes across the given
// nodes and links.
func (s *SQLiteStore) Materials(ctx context.Context, nodeIDs, linkIDs []int64) ([]string, error) {
	nodeMarks, nodeArgs := placeholders(nodeIDs)
	linkMarks, linkArgs := placeholders(linkIDs)
	if nodeMarks == "" {
		nodeMarks = "NULL"
	}
	if linkMarks == "" {
		linkMarks = "NULL"
	}

	query := `
		SELECT DISTINCT material FROM (
			SELECT material FROM nw_nodes WHERE id IN (` + nodeMarks + `)
			UNION ALL
			SELECT material FROM nw_links WHERE id IN (` + linkMarks + `)
		)
		WHERE material <> ''
		ORDER BY material
	`
	args := append(nodeArgs, linkArgs...)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query materials: %w", err)
	}
	defer rows.Close()

	var materials []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("failed to scan material: %w", err)
		}
		materials = append(materials, m)
	}
	return materials, rows.Err()
}

// Fabs returns the fab codes with active toolsets.
func (s *SQLiteStore) Fabs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
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
func (s *SQLiteStore) Toolsets(ctx context.Context, fab string, modelNo, phaseNo int) ([]sampling.Toolset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.code, t.fab, t.phase_no, t.model_no,
		       (SELECT COUNT(*) FROM tb_equipments e WHERE e.toolset_code = t.code AND e.is_active)
		FROM tb_toolsets t
		WHERE t.is_active
		  AND t.fab = ?
		  AND (? = 0 OR t.model_no = ?)
		  AND (? = 0 OR t.phase_no = ?)
		ORDER BY t.code
	`, fab, modelNo, modelNo, phaseNo, phaseNo)
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
func (s *SQLiteStore) Equipment(ctx context.Context, toolsetCode string) ([]sampling.Equipment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, guid, node_id, kind, category_no, name
		FROM tb_equipments
		WHERE toolset_code = ? AND is_active
		ORDER BY id
	`, toolsetCode)
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
func (s *SQLiteStore) PoCs(ctx context.Context, equipmentID int64) ([]sampling.PoC, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, node_id, is_used, markers, utility_no, reference, flow, loopback
		FROM tb_equipment_pocs
		WHERE equipment_id = ? AND is_active
		ORDER BY id
	`, equipmentID)
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
func (s *SQLiteStore) ScopeTotals(ctx context.Context, scope coverage.Scope) (int, int, error) {
	var nodes, links int
	args := []any{scope.Fab, scope.ModelNo, scope.PhaseNo, scope.ToolsetID}

	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM (`+scopedNodesLite+`)`, args...).Scan(&nodes)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count scoped nodes: %w", err)
	}
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM (`+scopedLinksLite+`)`, args...).Scan(&links)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count scoped links: %w", err)
	}
	return nodes, links, nil
}

// ScopeItemIDs returns all in-scope node or link ids.
func (s *SQLiteStore) ScopeItemIDs(ctx context.Context, scope coverage.Scope, kind coverage.ItemKind) ([]int64, error) {
	query := scopedNodesLite
	if kind == coverage.KindLink {
		query = scopedLinksLite
	}
	return s.queryIDs(ctx, query, scope.Fab, scope.ModelNo, scope.PhaseNo, scope.ToolsetID)
}

// CoveredSets returns the union of node and link ids over every path
// persisted for the run.
func (s *SQLiteStore) CoveredSets(ctx context.Context, runID string) ([]int64, []int64, error) {
	nodes, err := s.queryIDs(ctx, `
		SELECT DISTINCT node_id FROM (
			SELECT pl.from_node_id AS node_id
			FROM nw_path_links pl JOIN nw_paths p ON p.id = pl.path_id
			WHERE p.run_id = ?1
			UNION
			SELECT pl.to_node_id
			FROM nw_path_links pl JOIN nw_paths p ON p.id = pl.path_id
			WHERE p.run_id = ?1
		)
	`, runID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query covered nodes: %w", err)
	}

	links, err := s.queryIDs(ctx, `
		SELECT DISTINCT pl.link_id
		FROM nw_path_links pl JOIN nw_paths p ON p.id = pl.path_id
		WHERE p.run_id = ?
	`, runID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query covered links: %w", err)
	}
	return nodes, links, nil
}

func (s *SQLiteStore) queryIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
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
