package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fabwork/pathtrace/pkg/netgraph"
	"github.com/fabwork/pathtrace/pkg/validation"
)

// NodeByID returns a single active node.
func (s *PGStore) NodeByID(ctx context.Context, id int64) (*netgraph.Node, error) {
	query := `
		SELECT id, data_code, utility_no, toolset_id, eq_poc_no, kind
		FROM nw_nodes
		WHERE id = $1 AND is_active
	`

	n := &netgraph.Node{}
	var kind int
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&n.ID, &n.DataCode, &n.UtilityNo, &n.ToolsetID, &n.EqPoCNo, &kind,
	)
	if errors.Is(err, pgx.ErrNoRows) {
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
func (s *PGStore) NodesMatching(ctx context.Context, filter netgraph.PathFilter, exclude []int64) ([]netgraph.Node, error) {
	query := `
		SELECT id, data_code, utility_no, toolset_id, eq_poc_no, kind
		FROM nw_nodes
		WHERE is_active
		  AND NOT (id = ANY($1))
		  AND ($2 = 0 OR utility_no = $2)
		  AND ($3 = 0 OR toolset_id = $3)
		  AND ($4 = '' OR eq_poc_no LIKE '%' || $4 || '%')
	`

	rows, err := s.pool.Query(ctx, query, exclude, filter.UtilityNo, filter.ToolsetID, filter.EqPoCNo)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()
	return scanNodeRows(rows)
}

// NodesByIDs returns the active nodes with the given ids; missing ids are
// skipped.
func (s *PGStore) NodesByIDs(ctx context.Context, ids []int64) ([]netgraph.Node, error) {
	query := `
		SELECT id, data_code, utility_no, toolset_id, eq_poc_no, kind
		FROM nw_nodes
		WHERE is_active AND id = ANY($1)
	`

	rows, err := s.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()
	return scanNodeRows(rows)
}

// LinksTouching returns every active link with at least one endpoint in ids,
// excluding links that touch any node in the exclude set.
func (s *PGStore) LinksTouching(ctx context.Context, ids []int64, exclude []int64) ([]netgraph.Link, error) {
	query := `
		SELECT id, guid, start_node_id, end_node_id, bidirected, cost, obj_type
		FROM nw_links
		WHERE is_active
		  AND (start_node_id = ANY($1) OR end_node_id = ANY($1))
		  AND NOT (start_node_id = ANY($2) OR end_node_id = ANY($2))
	`

	rows, err := s.pool.Query(ctx, query, ids, exclude)
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

func scanNodeRows(rows pgx.Rows) ([]netgraph.Node, error) {
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
func (s *PGStore) NodeExists(ctx context.Context, nodeID int64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM nw_nodes WHERE id = $1 AND is_active)`, nodeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check node %d: %w", nodeID, err)
	}
	return exists, nil
}

// LinkExists reports whether an active link with the given id exists.
func (s *PGStore) LinkExists(ctx context.Context, linkID int64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM nw_links WHERE id = $1 AND is_active)`, linkID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check link %d: %w", linkID, err)
	}
	return exists, nil
}

// LinkByID returns one active link, or nil when it does not exist.
func (s *PGStore) LinkByID(ctx context.Context, linkID int64) (*validation.LinkRef, error) {
	ref := &validation.LinkRef{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, start_node_id, end_node_id, bidirected FROM nw_links WHERE id = $1 AND is_active`,
		linkID).Scan(&ref.ID, &ref.StartNodeID, &ref.EndNodeID, &ref.Bidirected)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get link %d: %w", linkID, err)
	}
	return ref, nil
}

// LinkBetween returns an active link connecting a and b in either
// orientation, or nil when none exists.
func (s *PGStore) LinkBetween(ctx context.Context, a, b int64) (*validation.LinkRef, error) {
	query := `
		SELECT id, start_node_id, end_node_id, bidirected
		FROM nw_links
		WHERE is_active
		  AND ((start_node_id = $1 AND end_node_id = $2) OR (start_node_id = $2 AND end_node_id = $1))
		LIMIT 1
	`

	ref := &validation.LinkRef{}
	err := s.pool.QueryRow(ctx, query, a, b).Scan(&ref.ID, &ref.StartNodeID, &ref.EndNodeID, &ref.Bidirected)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get link between %d and %d: %w", a, b, err)
	}
	return ref, nil
}

// PoCByNode returns the point of contact sitting on the given node, or nil
// when the node is not a PoC.
func (s *PGStore) PoCByNode(ctx context.Context, nodeID int64) (*validation.PoCRef, error) {
	query := `
		SELECT p.node_id, p.equipment_id, e.guid, e.kind, p.utility_no, p.markers, p.reference, p.flow, p.is_used
		FROM tb_equipment_pocs p
		JOIN tb_equipments e ON e.id = p.equipment_id
		WHERE p.node_id = $1 AND p.is_active
	`

	ref := &validation.PoCRef{}
	err := s.pool.QueryRow(ctx, query, nodeID).Scan(
		&ref.NodeID, &ref.EquipmentID, &ref.EquipmentGUID, &ref.EquipmentKind,
		&ref.UtilityNo, &ref.Markers, &ref.Reference, &ref.Flow, &ref.IsUsed,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get poc for node %d: %w", nodeID, err)
	}
	return ref, nil
}

// Materials returns the distinct non-empty material codes across the given
// nodes and links.
func (s *PGStore) Materials(ctx context.Context, nodeIDs, linkIDs []int64) ([]string, error) {
	query := `
		SELECT DISTINCT material FROM (
			SELECT material FROM nw_nodes WHERE id = ANY($1)
			UNION ALL
			SELECT material FROM nw_links WHERE id = ANY($2)
		) m
		WHERE material <> ''
		ORDER BY material
	`

	rows, err := s.pool.Query(ctx, query, nodeIDs, linkIDs)
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
