package vmman

// descIndex is a handle into the descriptor pool. The region list is
// doubly linked through these indices rather than through pointers, per
// the spec's design note: a fixed-capacity array is the natural handle
// for a pool-backed list in a systems rewrite, and indices cannot form a
// pointer cycle a GC would need to reason about.
type descIndex int32

const nilIdx descIndex = -1

type descState uint8

const (
	descUnused descState = iota // within the pool's [next, end), never issued
	descFree                    // previously issued, released, on the free list
	descActive                  // currently linking a live region
)

// descriptor is one region record: either a live region's addr/size/
// prot/flags plus its region-list links, or (when free) just a free-list
// link carried in next.
type descriptor struct {
	addr  Addr
	size  Size
	prot  Prot
	flags Flags
	prev  descIndex
	next  descIndex
	state descState
}

// descPool is the fixed-capacity array of region descriptors embedded at
// the low end of the managed range, sized to one descriptor per page of
// managed memory (spec.md §2.1). A bump pointer serves descriptors never
// previously used; a singly-linked free list (threaded through next)
// reuses descriptors released by unmap or coalescing.
type descPool struct {
	slots    []descriptor
	next     descIndex // bump allocator cursor
	end      descIndex // bump allocator bound, exclusive
	freeHead descIndex
}

func newDescPool(capacity int) *descPool {
	return &descPool{
		slots:    make([]descriptor, capacity),
		next:     0,
		end:      descIndex(capacity),
		freeHead: nilIdx,
	}
}

func (p *descPool) capacity() int { return len(p.slots) }

// alloc returns a descriptor from the free list if one exists,
// else bumps the pool cursor. It returns nilIdx if the pool is exhausted.
func (p *descPool) alloc() descIndex {
	if p.freeHead != nilIdx {
		idx := p.freeHead
		p.freeHead = p.slots[idx].next
		p.slots[idx] = descriptor{prev: nilIdx, next: nilIdx, state: descActive}
		return idx
	}
	if p.next >= p.end {
		return nilIdx
	}
	idx := p.next
	p.next++
	p.slots[idx] = descriptor{prev: nilIdx, next: nilIdx, state: descActive}
	return idx
}

// release returns idx to the free list. Callers must scrub any backing
// bytes before calling this, per spec.md §9's scrub-before-free ordering
// note: once linked onto the free list a descriptor may be reissued by
// the very next call.
func (p *descPool) release(idx descIndex) {
	p.slots[idx] = descriptor{next: p.freeHead, prev: nilIdx, state: descFree}
	p.freeHead = idx
}

func (p *descPool) get(idx descIndex) *descriptor { return &p.slots[idx] }
