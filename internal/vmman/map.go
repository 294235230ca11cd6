package vmman

// map.go implements region allocation (spec.md §4.3): validate
// protection/flags, round length to a page multiple, find a fit via
// in-list first-fit falling back to the top gap, then grow/extend/
// coalesce/create a descriptor as the chosen address dictates.

// Map allocates a fresh region of at least length bytes. addrHint must be
// zero (non-null hints are rejected by design); prot must include
// ProtRead|ProtWrite and must not include ProtExec; flags must include
// FlagAnonymous|FlagPrivate and must not include FlagShared|FlagFixed.
func (m *ManagedRange) Map(addrHint Addr, length Size, prot Prot, flags Flags) (Addr, error) {
	addr, size, err := m.mapGuarded(addrHint, length, prot, flags)
	if err != nil {
		m.traceOp(err.Op, err.Addr, err.Size, err)
		return 0, err
	}
	m.traceOp("map", addr, size, nil)
	return addr, nil
}

// mapGuarded holds m.mu for the full validate-allocate-verify sequence
// and returns without logging; Map traces the outcome only after this
// returns, so no I/O happens while the lock is held (spec.md §5).
func (m *ManagedRange) mapGuarded(addrHint Addr, length Size, prot Prot, flags Flags) (Addr, Size, *Error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkSanity("map", addrHint, length); err != nil {
		return 0, length, m.fail(err)
	}

	if addrHint != 0 {
		return 0, length, m.fail(newInvalidParameter("map", "address hints are not supported", addrHint, length))
	}
	if length == 0 {
		return 0, length, m.fail(newInvalidParameter("map", "length must be non-zero", addrHint, length))
	}
	if prot&(ProtRead|ProtWrite) != (ProtRead | ProtWrite) {
		return 0, length, m.fail(newInvalidParameter("map", "prot must include read and write", addrHint, length))
	}
	if prot&ProtExec != 0 {
		return 0, length, m.fail(newInvalidParameter("map", "prot must not include exec", addrHint, length))
	}
	if flags&(FlagAnonymous|FlagPrivate) != (FlagAnonymous | FlagPrivate) {
		return 0, length, m.fail(newInvalidParameter("map", "flags must include anonymous and private", addrHint, length))
	}
	if flags&(FlagShared|FlagFixed) != 0 {
		return 0, length, m.fail(newInvalidParameter("map", "flags must not include shared or fixed", addrHint, length))
	}

	aligned := alignUpSize(length, m.pageSize)

	addr, err := m.mapLocked(aligned)
	if err != nil {
		return 0, aligned, m.fail(err)
	}

	if err := m.checkSanity("map", addr, aligned); err != nil {
		return 0, aligned, m.fail(err)
	}
	m.stats.mapCount++
	m.succeed()
	return addr, aligned, nil
}

// mapLocked is the unlocked internal primitive spec.md §9 recommends so
// remap's grow-by-move case can call it directly while already holding
// m.mu, instead of requiring a recursive mutex.
func (m *ManagedRange) mapLocked(length Size) (Addr, *Error) {
	start, left, right, foundInList := m.gap.findGap(m, length)
	if foundInList {
		m.mark(branchMapInList)
	} else {
		m.mark(branchMapTopGap)
		// Add rather than subtract to avoid underflow when length
		// exceeds the current frontier span.
		if m.brk+Addr(length) > m.mapFrontier {
			return 0, newOutOfMemory("map", "no gap large enough for request", length)
		}
		start = m.mapFrontier - Addr(length)
		// The top gap sits directly below the current head (map ==
		// head.addr), so the new region's only possible neighbor is the
		// head; nothing ever precedes it.
		left, right = nilIdx, m.headIdx
	}

	leftAbuts := left != nilIdx && m.pool.get(left).addr+Addr(m.pool.get(left).size) == start
	rightAbuts := right != nilIdx && start+Addr(length) == m.pool.get(right).addr

	switch {
	case leftAbuts && rightAbuts:
		m.mark(branchMapCoalesceBoth)
		return m.coalesceBothOnMap(left, right, length, start)
	case leftAbuts:
		m.mark(branchMapCoalesceLeft)
		ld := m.pool.get(left)
		ld.size += length
		m.resyncMapFrontier()
		m.zeroRange(start, length)
		return start, nil
	case rightAbuts:
		m.mark(branchMapExtendRight)
		rd := m.pool.get(right)
		oldAddr := rd.addr
		rd.addr = start
		rd.size += length
		m.gap.onAddrChange(m, right, oldAddr)
		m.resyncMapFrontier()
		m.zeroRange(start, length)
		return start, nil
	default:
		m.mark(branchMapFresh)
		idx := m.pool.alloc()
		if idx == nilIdx {
			return 0, newOutOfMemory("map", "descriptor pool exhausted", length)
		}
		d := m.pool.get(idx)
		d.addr = start
		d.size = length
		d.prot = ProtRead | ProtWrite
		d.flags = FlagAnonymous | FlagPrivate
		m.insertBetween(left, right, idx)
		m.zeroRange(start, length)
		return start, nil
	}
}

// coalesceBothOnMap grows left by length and absorbs right, returning
// right's descriptor to the free list.
func (m *ManagedRange) coalesceBothOnMap(left, right descIndex, length Size, start Addr) (Addr, *Error) {
	rd := m.pool.get(right)
	absorbed := rd.size
	m.unlink(right)
	m.pool.release(right)

	ld := m.pool.get(left)
	ld.size += length + absorbed
	m.resyncMapFrontier()
	m.zeroRange(start, length)
	return start, nil
}
