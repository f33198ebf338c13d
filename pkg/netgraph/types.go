package netgraph

// NodeKind classifies what a network node represents.
type NodeKind int

const (
	KindUnknown NodeKind = 0
	KindLogical NodeKind = 1
	KindPoC     NodeKind = 2
	KindVirtual NodeKind = 3
)

// String returns the string representation of a node kind
func (k NodeKind) String() string {
	switch k {
	case KindLogical:
		return "LOGICAL"
	case KindPoC:
		return "POC"
	case KindVirtual:
		return "VIRTUAL"
	default:
		return "UNKNOWN"
	}
}

// Node is one equipment connection point (or logical/virtual junction)
// in the utility network. Immutable once loaded into a view.
type Node struct {
	ID        int64
	DataCode  int
	UtilityNo int
	ToolsetID int64
	EqPoCNo   string
	Kind      NodeKind
}

// Link is a physical connection between two nodes. A bidirected link is
// traversable both ways; otherwise only StartNodeID -> EndNodeID.
type Link struct {
	ID          int64
	GUID        string
	StartNodeID int64
	EndNodeID   int64
	Bidirected  bool
	Cost        float64
	ObjType     int
}

// Edge is one adjacency entry: the neighbor reached from a node, the link
// used, its cost, and whether the link is walked against its direction.
type Edge struct {
	NeighborID int64
	LinkID     int64
	Cost       float64
	Reverse    bool
}

// PathFilter restricts which nodes are traversable during a load.
// Zero values mean "no filter" for that dimension.
type PathFilter struct {
	UtilityNo int    // 0 = all utilities
	ToolsetID int64  // 0 = all toolsets
	EqPoCNo   string // "" = all PoC labels, otherwise substring match
}

// IsZero reports whether no filter dimension is set.
func (f PathFilter) IsZero() bool {
	return f.UtilityNo == 0 && f.ToolsetID == 0 && f.EqPoCNo == ""
}
