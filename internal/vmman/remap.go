package vmman

// remap.go implements region resize (spec.md §4.5): no-change, shrink
// (with an optional right-excess split), grow-in-place (with optional
// coalesce into the right neighbor), and grow-by-move.

// Remap resizes the region at addr from oldSize to newSize. flags must
// equal MayMove exactly; it is the only accepted value, and its sole
// effect is permitting the grow-by-move case.
func (m *ManagedRange) Remap(addr Addr, oldSize, newSize Size, flags RemapFlags) (Addr, error) {
	result, size, err := m.remapGuarded(addr, oldSize, newSize, flags)
	if err != nil {
		m.traceOp(err.Op, err.Addr, err.Size, err)
		return 0, err
	}
	m.traceOp("remap", result, size, nil)
	return result, nil
}

// remapGuarded holds m.mu for the full sequence and returns without
// logging; Remap traces the outcome only after this returns, so no I/O
// happens while the lock is held (spec.md §5).
func (m *ManagedRange) remapGuarded(addr Addr, oldSize, newSize Size, flags RemapFlags) (Addr, Size, *Error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkSanity("remap", addr, oldSize); err != nil {
		return 0, oldSize, m.fail(err)
	}

	if oldSize == 0 || newSize == 0 {
		return 0, newSize, m.fail(newInvalidParameter("remap", "old and new size must be non-zero", addr, newSize))
	}
	if flags != MayMove {
		return 0, newSize, m.fail(newInvalidParameter("remap", "flags must equal MayMove", addr, newSize))
	}

	oldAligned := alignUpSize(oldSize, m.pageSize)
	newAligned := alignUpSize(newSize, m.pageSize)

	result, err := m.remapLocked(addr, oldAligned, newAligned)
	if err != nil {
		return 0, newAligned, m.fail(err)
	}

	if err := m.checkSanity("remap", result, newAligned); err != nil {
		return 0, newAligned, m.fail(err)
	}
	m.stats.remapCount++
	m.succeed()
	return result, newAligned, nil
}

func (m *ManagedRange) remapLocked(addr Addr, oldSize, newSize Size) (Addr, *Error) {
	idx := m.findContaining(addr, oldSize)
	if idx == nilIdx {
		return 0, newInvalidParameter("remap", "range does not fall within a single live region", addr, oldSize)
	}

	switch {
	case newSize == oldSize:
		m.mark(branchRemapNoChange)
		return addr, nil
	case newSize < oldSize:
		m.mark(branchRemapShrink)
		return m.remapShrink(idx, addr, oldSize, newSize)
	default:
		d := m.pool.get(idx)
		occupiesTail := addr+Addr(oldSize) == d.addr+Addr(d.size)
		delta := newSize - oldSize
		if occupiesTail && m.rightGap(idx) >= delta {
			m.mark(branchRemapGrowInPlace)
			return m.remapGrowInPlace(idx, addr, delta)
		}
		m.mark(branchRemapGrowMove)
		return m.remapGrowByMove(addr, oldSize, newSize)
	}
}

// remapShrink splits off any bytes beyond the logical [addr, addr+oldSize)
// range still attached to the same descriptor (possible if this region
// was coalesced with a neighboring allocation after this block was
// created), then shrinks the block itself to newSize, scrubbing the
// freed tail.
func (m *ManagedRange) remapShrink(idx descIndex, addr Addr, oldSize, newSize Size) (Addr, *Error) {
	d := m.pool.get(idx)
	rightExcessAddr := addr + Addr(oldSize)
	if rightExcessAddr < d.addr+Addr(d.size) {
		excessSize := d.size - Size(rightExcessAddr-d.addr)
		newIdx := m.pool.alloc()
		if newIdx == nilIdx {
			return 0, newFailure("remap", "descriptor pool exhausted for right-excess split", addr, newSize)
		}
		originalNext := d.next
		d.size = Size(rightExcessAddr - d.addr)

		rd := m.pool.get(newIdx)
		rd.addr = rightExcessAddr
		rd.size = excessSize
		rd.prot = d.prot
		rd.flags = d.flags
		m.insertBetween(idx, originalNext, newIdx)
		d = m.pool.get(idx)
	}

	freedAddr := addr + Addr(newSize)
	freedSize := oldSize - newSize
	m.scrubRange(freedAddr, freedSize)
	d.size = Size((addr + Addr(newSize)) - d.addr)
	m.resyncMapFrontier()
	return addr, nil
}

// rightGap returns the number of free bytes between idx's right edge and
// its right neighbor (or end if it has none).
func (m *ManagedRange) rightGap(idx descIndex) Size {
	d := m.pool.get(idx)
	var rightEdge Addr
	if d.next != nilIdx {
		rightEdge = m.pool.get(d.next).addr
	} else {
		rightEdge = m.end
	}
	return Size(rightEdge - (d.addr + Addr(d.size)))
}

// remapGrowInPlace extends idx by delta bytes, zeroes the new span, and
// coalesces with the right neighbor if growth makes them flush. The block
// stays at addr, which it returns.
func (m *ManagedRange) remapGrowInPlace(idx descIndex, addr Addr, delta Size) (Addr, *Error) {
	d := m.pool.get(idx)
	newBytesStart := d.addr + Addr(d.size)
	d.size += delta
	m.zeroRange(newBytesStart, delta)

	if d.next != nilIdx && d.addr+Addr(d.size) == m.pool.get(d.next).addr {
		right := d.next
		rd := m.pool.get(right)
		absorbed := rd.size
		m.unlink(right)
		m.pool.release(right)
		d = m.pool.get(idx)
		d.size += absorbed
	}
	m.resyncMapFrontier()
	return addr, nil
}

// remapGrowByMove maps a fresh newSize region, copies the live oldSize
// bytes across, and unmaps the original — all while still holding m.mu,
// which is why map/unmap have unlocked internal entry points instead of
// requiring a recursive mutex (spec.md §9).
func (m *ManagedRange) remapGrowByMove(addr Addr, oldSize, newSize Size) (Addr, *Error) {
	newAddr, err := m.mapLocked(newSize)
	if err != nil {
		return 0, err
	}
	m.copyRange(newAddr, addr, oldSize)
	if unmapErr := m.unmapLocked(addr, oldSize); unmapErr != nil {
		return 0, unmapErr
	}
	return newAddr, nil
}
