package vmman

// GapStrategy selects the algorithm Map uses to locate a fitting gap.
// Both strategies implement identical first-fit semantics (spec.md
// §4.7); they differ only in how the search is driven.
type GapStrategy int

const (
	// GapStrategyLinear walks the region list's prev/next links in
	// address order. This is what spec.md §4.7 requires and remains the
	// default: the expected live-region count is small, bounded by the
	// descriptor pool's capacity.
	GapStrategyLinear GapStrategy = iota
	// GapStrategyIndexed additionally mirrors the region set into a
	// google/btree index for faster neighbor lookups at large N. See
	// SPEC_FULL.md §2.1 for the honest characterization of its benefit.
	GapStrategyIndexed
)

func (s GapStrategy) String() string {
	switch s {
	case GapStrategyIndexed:
		return "indexed"
	default:
		return "linear"
	}
}

// gapSearcher is the internal interface both backends satisfy. onInsert
// and onRemove are called after every list mutation so an indexed
// backend can stay synchronized; the linear backend's implementations
// are no-ops since it reads the list directly.
type gapSearcher interface {
	findGap(m *ManagedRange, length Size) (start Addr, left, right descIndex, foundInList bool)
	onInsert(m *ManagedRange, idx descIndex)
	onRemove(m *ManagedRange, idx descIndex)
	// onAddrChange is called whenever a still-linked descriptor's addr
	// field is mutated in place (map's extend-right coalesce, unmap's
	// prefix release) rather than unlinked and reinserted. The linear
	// backend reads the list directly so this is a no-op; the indexed
	// backend must resync its address-keyed index or its ordering
	// invariant silently breaks.
	onAddrChange(m *ManagedRange, idx descIndex, oldAddr Addr)
}

type linearGapSearch struct{}

// findGap implements spec.md §4.3's in-list first-fit: walk the region
// list in address order, computing the gap to each region's right
// neighbor (or to end if it is last), and return the first gap that
// fits. There is no gap to search before the first region: the frontier
// invariant map == head.addr means nothing can sit between brk and the
// head. An empty list has no region to walk, so this always falls
// through to the caller's top-gap fallback. It does not apply that
// fallback itself; callers do that when foundInList is false.
func (linearGapSearch) findGap(m *ManagedRange, length Size) (Addr, descIndex, descIndex, bool) {
	for idx := m.headIdx; idx != nilIdx; {
		d := m.pool.get(idx)
		var gapEnd Addr
		if d.next != nilIdx {
			gapEnd = m.pool.get(d.next).addr
		} else {
			gapEnd = m.end
		}
		gapStart := d.addr + Addr(d.size)
		if Size(gapEnd-gapStart) >= length {
			return gapStart, idx, d.next, true
		}
		idx = d.next
	}
	return 0, nilIdx, nilIdx, false
}

func (linearGapSearch) onInsert(*ManagedRange, descIndex)             {}
func (linearGapSearch) onRemove(*ManagedRange, descIndex)             {}
func (linearGapSearch) onAddrChange(*ManagedRange, descIndex, Addr) {}
