package sampling

// BiasConfig tunes the bias-mitigation heuristics.
type BiasConfig struct {
	MaxAttemptsPerToolset   int     // ceiling before a toolset is excluded from draws
	MaxAttemptsPerEquipment int     // ceiling before an equipment is excluded
	MinDistanceBetweenNodes int64   // node-id distance floor for a candidate pair
	UtilityDiversityWeight  float64 // in [0, 1); higher = stronger push to new utilities
	CategoryDiversityWeight float64 // in [0, 1); higher = stronger push to new categories
	MaxConsecutiveFailures  int     // failures before a toolset is cooled down
	MaxAttempts             int     // overall attempt budget for one Sample call
	RecencyCapacity         int     // bounded buffer of recently sampled node ids
}

// DefaultBiasConfig returns the production defaults.
func DefaultBiasConfig() BiasConfig {
	return BiasConfig{
		MaxAttemptsPerToolset:   5,
		MaxAttemptsPerEquipment: 3,
		MinDistanceBetweenNodes: 10,
		UtilityDiversityWeight:  0.3,
		CategoryDiversityWeight: 0.2,
		MaxConsecutiveFailures:  50,
		MaxAttempts:             100,
		RecencyCapacity:         64,
	}
}

// Toolset is a named equipment group within a fab and phase.
type Toolset struct {
	Code           string
	Fab            string
	PhaseNo        int
	ModelNo        int
	EquipmentCount int
}

// Equipment is one tool within a toolset.
type Equipment struct {
	ID         int64
	GUID       string
	NodeID     int64
	Kind       string
	CategoryNo int
	Name       string
}

// PoC is a point of contact on an equipment.
type PoC struct {
	ID        int64
	NodeID    int64
	IsUsed    bool
	Markers   string
	UtilityNo int
	Reference string
	Flow      string
	Loopback  bool
}

// Pair is an accepted sampling outcome: two PoCs on distinct equipment
// within one toolset, ready for a shortest-path call.
type Pair struct {
	Fab         string
	ToolsetCode string
	FromEq      Equipment
	ToEq        Equipment
	FromPoC     PoC
	ToPoC       PoC
}
