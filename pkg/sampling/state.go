package sampling

// nodePair is an unordered node id pair.
type nodePair struct {
	lo, hi int64
}

func makeNodePair(a, b int64) nodePair {
	if a > b {
		a, b = b, a
	}
	return nodePair{lo: a, hi: b}
}

// BiasState is the mutable heuristic state for one run. It lives exactly as
// long as the run and is constructed fresh per run so parallel runs never
// share it.
type BiasState struct {
	toolsetAttempts   map[string]int
	equipmentAttempts map[int64]int
	usedPairs         map[nodePair]bool
	utilityUsage      map[int]int
	categoryUsage     map[int]int

	recent         []int64 // ring buffer of recently sampled node ids
	recentHead     int
	recentCapacity int

	consecutiveFailures int
}

// NewBiasState creates empty state with the given recency capacity.
func NewBiasState(recencyCapacity int) *BiasState {
	if recencyCapacity <= 0 {
		recencyCapacity = DefaultBiasConfig().RecencyCapacity
	}
	return &BiasState{
		toolsetAttempts:   make(map[string]int),
		equipmentAttempts: make(map[int64]int),
		usedPairs:         make(map[nodePair]bool),
		utilityUsage:      make(map[int]int),
		categoryUsage:     make(map[int]int),
		recentCapacity:    recencyCapacity,
	}
}

// ToolsetAttempts returns the attempt counter for a toolset code.
func (s *BiasState) ToolsetAttempts(code string) int {
	return s.toolsetAttempts[code]
}

// EquipmentAttempts returns the attempt counter for an equipment id.
func (s *BiasState) EquipmentAttempts(id int64) int {
	return s.equipmentAttempts[id]
}

// PairUsed reports whether the unordered node pair was already attempted.
func (s *BiasState) PairUsed(a, b int64) bool {
	return s.usedPairs[makeNodePair(a, b)]
}

func (s *BiasState) recordPair(a, b int64) {
	s.usedPairs[makeNodePair(a, b)] = true
}

// pushRecent appends a node id to the recency buffer, evicting the oldest
// entry once the buffer is full.
func (s *BiasState) pushRecent(nodeID int64) {
	if len(s.recent) < s.recentCapacity {
		s.recent = append(s.recent, nodeID)
		return
	}
	s.recent[s.recentHead] = nodeID
	s.recentHead = (s.recentHead + 1) % s.recentCapacity
}

// nearRecent reports whether nodeID is within minDistance of any recently
// sampled node.
func (s *BiasState) nearRecent(nodeID, minDistance int64) bool {
	for _, r := range s.recent {
		d := nodeID - r
		if d < 0 {
			d = -d
		}
		if d < minDistance {
			return true
		}
	}
	return false
}

// relaxToolsets partially decrements toolset attempt counters instead of
// zeroing them, so exhausted pools reopen without losing all history.
func (s *BiasState) relaxToolsets() {
	for code, n := range s.toolsetAttempts {
		n -= 2
		if n < 0 {
			n = 0
		}
		s.toolsetAttempts[code] = n
	}
}

// relaxEquipment partially decrements equipment attempt counters.
func (s *BiasState) relaxEquipment() {
	for id, n := range s.equipmentAttempts {
		n -= 2
		if n < 0 {
			n = 0
		}
		s.equipmentAttempts[id] = n
	}
}
