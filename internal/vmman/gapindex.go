package vmman

import "github.com/google/btree"

// gapItem is the value stored in the indexed backend's btree, one per
// live region, ordered by start address.
type gapItem struct {
	addr Addr
	idx  descIndex
}

func gapItemLess(a, b gapItem) bool { return a.addr < b.addr }

// indexedGapSearch mirrors the region list into a google/btree index
// keyed by start address so first-fit search ascends the tree instead of
// chasing prev/next pool links. See SPEC_FULL.md §2.1 for why this is a
// different constant factor over the same first-fit order, not an
// asymptotic improvement: google/btree has no subtree-gap annotation.
type indexedGapSearch struct {
	tree *btree.BTreeG[gapItem]
}

func newIndexedGapSearch() *indexedGapSearch {
	return &indexedGapSearch{tree: btree.NewG[gapItem](32, gapItemLess)}
}

func (g *indexedGapSearch) findGap(m *ManagedRange, length Size) (Addr, descIndex, descIndex, bool) {
	var (
		found       bool
		start       Addr
		left, right descIndex = nilIdx, nilIdx
	)
	g.tree.Ascend(func(item gapItem) bool {
		d := m.pool.get(item.idx)
		var gapEnd Addr
		if d.next != nilIdx {
			gapEnd = m.pool.get(d.next).addr
		} else {
			gapEnd = m.end
		}
		gapStart := d.addr + Addr(d.size)
		if Size(gapEnd-gapStart) >= length {
			start, left, right, found = gapStart, item.idx, d.next, true
			return false
		}
		return true
	})
	return start, left, right, found
}

func (g *indexedGapSearch) onInsert(m *ManagedRange, idx descIndex) {
	d := m.pool.get(idx)
	g.tree.ReplaceOrInsert(gapItem{addr: d.addr, idx: idx})
}

func (g *indexedGapSearch) onRemove(m *ManagedRange, idx descIndex) {
	d := m.pool.get(idx)
	g.tree.Delete(gapItem{addr: d.addr})
}

// onAddrChange re-keys idx's entry: the btree orders nodes by the addr
// captured at insertion time, so a descriptor whose addr moves while
// still linked (rather than being unlinked and reinserted) must have its
// old key deleted and the new one inserted, or Ascend's ordering and the
// in-tree addr both go stale.
func (g *indexedGapSearch) onAddrChange(m *ManagedRange, idx descIndex, oldAddr Addr) {
	g.tree.Delete(gapItem{addr: oldAddr})
	g.tree.ReplaceOrInsert(gapItem{addr: m.pool.get(idx).addr, idx: idx})
}
