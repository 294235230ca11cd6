package vmman

// sanity.go implements the sanity predicate (spec.md §4.6): a pure,
// read-only check that every invariant in spec.md §3 holds. It is called
// on entry and exit of every public operation when m.sanity is true, and
// is exported for tests to call explicitly (IsSane).

// IsSane runs the full sanity predicate and returns whether every
// invariant holds. It never mutates state.
func (m *ManagedRange) IsSane() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isSaneLocked()
}

// SetSanity toggles whether public operations self-check on entry/exit.
func (m *ManagedRange) SetSanity(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sanity = enabled
}

// RegionCount returns the number of currently live regions.
func (m *ManagedRange) RegionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regionCount()
}

func (m *ManagedRange) isSaneLocked() bool {
	if m.magic != magicValue {
		return false
	}
	// base <= start <= brk <= map <= end
	if !(m.base <= m.start && m.start <= m.brk && m.brk <= m.mapFrontier && m.mapFrontier <= m.end) {
		return false
	}
	// brk is not checked for alignment: Brk and Sbrk accept any byte
	// address or increment.
	if !isAligned(m.start, m.pageSize) ||
		!isAligned(m.mapFrontier, m.pageSize) || !isAligned(m.end, m.pageSize) {
		return false
	}

	// map == head.addr (or end if empty).
	if m.headIdx == nilIdx {
		if m.mapFrontier != m.end {
			return false
		}
	} else if m.pool.get(m.headIdx).addr != m.mapFrontier {
		return false
	}

	// Region list: strictly address-ordered, gap-separated, page-aligned,
	// within [start, end), and every prev/next link is reciprocal.
	var prevIdx descIndex = nilIdx
	var prevEnd Addr
	count := 0
	for idx := m.headIdx; idx != nilIdx; {
		d := m.pool.get(idx)
		if d.state != descActive {
			return false
		}
		if !isAligned(d.addr, m.pageSize) || !isSizeAligned(d.size, m.pageSize) || d.size == 0 {
			return false
		}
		if d.addr < m.start || d.addr+Addr(d.size) > m.end {
			return false
		}
		if d.prev != prevIdx {
			return false
		}
		if prevIdx != nilIdx {
			if !(prevEnd < d.addr) { // strict: coalescing forbids touching regions
				return false
			}
			if m.pool.get(prevIdx).next != idx {
				return false
			}
		}
		prevIdx = idx
		prevEnd = d.addr + Addr(d.size)
		count++
		if count > m.pool.capacity() {
			return false // cycle guard: list longer than the pool can hold
		}
		idx = d.next
	}

	// Descriptor pool capacity bound: live region count cannot exceed the
	// page count the pool was sized for.
	if count > m.pool.capacity() {
		return false
	}

	// Every descriptor is in exactly one of: unused, free, active. Count
	// active descriptors via list walk above; verify the free list and
	// bump region are internally consistent and do not double-claim an
	// active slot.
	seen := make([]bool, m.pool.capacity())
	for idx := m.headIdx; idx != nilIdx; {
		if seen[idx] {
			return false
		}
		seen[idx] = true
		idx = m.pool.get(idx).next
	}
	freeCount := 0
	for idx := m.pool.freeHead; idx != nilIdx; {
		if seen[idx] {
			return false
		}
		if m.pool.get(idx).state != descFree {
			return false
		}
		seen[idx] = true
		freeCount++
		if freeCount > m.pool.capacity() {
			return false // cycle guard
		}
		idx = m.pool.get(idx).next
	}
	for i := int(m.pool.next); i < int(m.pool.end); i++ {
		if seen[i] {
			return false
		}
	}

	return true
}

func (m *ManagedRange) checkSanity(op string, addr Addr, size Size) *Error {
	if !m.sanity {
		return nil
	}
	if !m.isSaneLocked() {
		return newUnexpected(op, "sanity predicate failed", addr, size)
	}
	return nil
}

func (m *ManagedRange) mark(b branch) { m.coverage[b] = true }

// Covered reports whether the named internal branch has fired at least
// once since construction. It exists for tests only.
func (m *ManagedRange) Covered(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, ok := branchNames[name]
	if !ok {
		return false
	}
	return m.coverage[idx]
}

var branchNames = map[string]branch{
	"map.in_list":        branchMapInList,
	"map.top_gap":        branchMapTopGap,
	"map.coalesce_left":  branchMapCoalesceLeft,
	"map.coalesce_both":  branchMapCoalesceBoth,
	"map.extend_right":   branchMapExtendRight,
	"map.fresh":          branchMapFresh,
	"unmap.full":         branchUnmapFull,
	"unmap.prefix":       branchUnmapPrefix,
	"unmap.suffix":       branchUnmapSuffix,
	"unmap.middle":       branchUnmapMiddle,
	"remap.no_change":    branchRemapNoChange,
	"remap.shrink":       branchRemapShrink,
	"remap.grow_in_place": branchRemapGrowInPlace,
	"remap.grow_move":    branchRemapGrowMove,
}
