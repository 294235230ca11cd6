package vmman

// list.go holds the doubly-linked, strictly address-ordered region list
// operations. The list threads through descIndex handles into the
// manager's descPool; m.headIdx is the first live region in address
// order or nilIdx when empty.

// insertBetween links a new active descriptor idx into the list between
// left and right (either may be nilIdx for "list boundary") and fixes up
// m.headIdx and m.mapFrontier.
func (m *ManagedRange) insertBetween(left, right, idx descIndex) {
	d := m.pool.get(idx)
	d.prev = left
	d.next = right

	if left != nilIdx {
		m.pool.get(left).next = idx
	} else {
		m.headIdx = idx
	}
	if right != nilIdx {
		m.pool.get(right).prev = idx
	}
	m.resyncMapFrontier()
	m.gap.onInsert(m, idx)
}

// unlink removes idx from the list, leaving its descriptor state
// untouched (callers decide whether to scrub and release it).
func (m *ManagedRange) unlink(idx descIndex) {
	d := m.pool.get(idx)
	if d.prev != nilIdx {
		m.pool.get(d.prev).next = d.next
	} else {
		m.headIdx = d.next
	}
	if d.next != nilIdx {
		m.pool.get(d.next).prev = d.prev
	}
	m.gap.onRemove(m, idx)
	m.resyncMapFrontier()
}

// resyncMapFrontier restores the invariant map == head.addr (or end when
// the list is empty), per spec.md §3/§4.4.
func (m *ManagedRange) resyncMapFrontier() {
	if m.headIdx == nilIdx {
		m.mapFrontier = m.end
		return
	}
	m.mapFrontier = m.pool.get(m.headIdx).addr
}

// findContaining returns the index of the live region containing
// [addr, addr+size), or nilIdx if no single region covers it.
func (m *ManagedRange) findContaining(addr Addr, size Size) descIndex {
	for idx := m.headIdx; idx != nilIdx; {
		d := m.pool.get(idx)
		if addr >= d.addr && addr+Addr(size) <= d.addr+Addr(d.size) {
			return idx
		}
		if d.addr > addr {
			return nilIdx
		}
		idx = d.next
	}
	return nilIdx
}

// walk calls fn for every live region in address order; fn returns false
// to stop early.
func (m *ManagedRange) walk(fn func(idx descIndex, d *descriptor) bool) {
	for idx := m.headIdx; idx != nilIdx; {
		d := m.pool.get(idx)
		next := d.next
		if !fn(idx, d) {
			return
		}
		idx = next
	}
}

func (m *ManagedRange) regionCount() int {
	n := 0
	m.walk(func(descIndex, *descriptor) bool { n++; return true })
	return n
}
