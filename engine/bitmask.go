package engine

// mask256 is a fixed 256-bit set keyed by ComponentID. Entity metadata
// and compiled query predicates use it so membership checks are a few
// word operations instead of map lookups.
type mask256 [4]uint64

func (m *mask256) set(id ComponentID) {
	m[id>>6] |= 1 << (id & 63)
}

func (m *mask256) clear(id ComponentID) {
	m[id>>6] &^= 1 << (id & 63)
}

func (m *mask256) has(id ComponentID) bool {
	return m[id>>6]&(1<<(id&63)) != 0
}

// containsAll reports whether every bit of other is set in m
func (m *mask256) containsAll(other mask256) bool {
	return m[0]&other[0] == other[0] &&
		m[1]&other[1] == other[1] &&
		m[2]&other[2] == other[2] &&
		m[3]&other[3] == other[3]
}

// intersects reports whether m and other share at least one bit
func (m *mask256) intersects(other mask256) bool {
	return m[0]&other[0] != 0 ||
		m[1]&other[1] != 0 ||
		m[2]&other[2] != 0 ||
		m[3]&other[3] != 0
}

func (m *mask256) isZero() bool {
	return m[0] == 0 && m[1] == 0 && m[2] == 0 && m[3] == 0
}

func maskOf(ids []ComponentID) mask256 {
	var m mask256
	for _, id := range ids {
		m.set(id)
	}
	return m
}
