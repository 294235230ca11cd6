package vmman

// brk.go implements the linear-heap operations (spec.md §4.2). Neither
// operation touches the region list or zeroes memory.

// Sbrk returns the current brk and atomically advances it by increment
// bytes, which may be negative to shrink the heap. increment == 0
// queries without mutation. The returned value is always the brk
// *before* the change.
func (m *ManagedRange) Sbrk(increment int64) (Addr, error) {
	old, err := m.sbrkGuarded(increment)
	if err != nil {
		m.traceOp(err.Op, err.Addr, err.Size, err)
		return 0, err
	}
	m.traceOp("sbrk", old, 0, nil)
	return old, nil
}

// sbrkGuarded holds m.mu for the full sequence and returns without
// logging; Sbrk traces the outcome only after this returns, so no I/O
// happens while the lock is held (spec.md §5).
func (m *ManagedRange) sbrkGuarded(increment int64) (Addr, *Error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkSanity("sbrk", 0, 0); err != nil {
		return 0, m.fail(err)
	}

	old := m.brk
	if increment == 0 {
		m.succeed()
		return old, nil
	}

	// Widen to avoid wraparound when computing old + increment (spec.md
	// §9's signed-arithmetic note).
	next := int64(old) + increment
	if next < int64(m.start) {
		return 0, m.fail(newOutOfMemory("sbrk", "sbrk would move brk below start", 0))
	}
	if next > int64(m.mapFrontier) {
		return 0, m.fail(newOutOfMemory("sbrk", "sbrk would advance brk past map", 0))
	}

	m.brk = Addr(next)
	if err := m.checkSanity("sbrk", old, 0); err != nil {
		m.brk = old
		return 0, m.fail(err)
	}
	m.succeed()
	return old, nil
}

// Brk sets brk to addr unconditionally on success. It fails with
// InvalidParameter if addr < start or addr >= map (spec.md §9 resolves
// the addr == map ambiguity in favor of rejecting it).
func (m *ManagedRange) Brk(addr Addr) error {
	err := m.brkGuarded(addr)
	if err != nil {
		m.traceOp(err.Op, err.Addr, err.Size, err)
		return err
	}
	m.traceOp("brk", addr, 0, nil)
	return nil
}

// brkGuarded holds m.mu for the full sequence and returns without
// logging; Brk traces the outcome only after this returns, so no I/O
// happens while the lock is held (spec.md §5).
func (m *ManagedRange) brkGuarded(addr Addr) *Error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkSanity("brk", addr, 0); err != nil {
		return m.fail(err)
	}

	if addr < m.start || addr >= m.mapFrontier {
		return m.fail(newInvalidParameter("brk", "addr must satisfy start <= addr < map", addr, 0))
	}

	old := m.brk
	m.brk = addr
	if err := m.checkSanity("brk", addr, 0); err != nil {
		m.brk = old
		return m.fail(err)
	}
	m.succeed()
	return nil
}
