package vmman

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const magicValue = 0x564d4d414e31 // "VMMAN1" packed into a sentinel int

// Config controls optional manager behavior. The zero value is not valid;
// use NewManagedRange's functional options or DefaultConfig().
type Config struct {
	PageSize    Size
	Scrub       bool
	Sanity      bool
	GapStrategy GapStrategy
	Trace       bool
	Logger      *logrus.Logger
	backing     []byte
}

// DefaultConfig mirrors the behavior spec.md describes when nothing is
// overridden: page size 4096, no scrub, sanity checking on (cheap enough
// relative to the O(N) work already being done), linear gap search.
func DefaultConfig() Config {
	return Config{
		PageSize:    DefaultPageSize,
		Scrub:       false,
		Sanity:      true,
		GapStrategy: GapStrategyLinear,
		Trace:       false,
	}
}

// Option customizes a Config passed to NewManagedRange.
type Option func(*Config)

func WithPageSize(n Size) Option     { return func(c *Config) { c.PageSize = n } }
func WithScrub(enabled bool) Option  { return func(c *Config) { c.Scrub = enabled } }
func WithSanity(enabled bool) Option { return func(c *Config) { c.Sanity = enabled } }
func WithGapStrategy(s GapStrategy) Option {
	return func(c *Config) { c.GapStrategy = s }
}
func WithTrace(enabled bool) Option { return func(c *Config) { c.Trace = enabled } }
func WithLogger(l *logrus.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithBacking attaches the real byte slab this manager's addresses refer
// to, so Map's zero-on-map guarantee and unmap/remap's scrub-before-free
// behavior operate on real bytes instead of being pure bookkeeping.
// backing[i] corresponds to absolute address base+i. It is optional: a
// manager constructed without one still enforces every layout invariant
// correctly, it simply has nothing to zero or scrub — spec.md's design
// notes treat addresses as opaque integers up to a thin FFI edge, and
// this option is that edge.
func WithBacking(backing []byte) Option {
	return func(c *Config) { c.backing = backing }
}

// branch identifiers for the coverage array, spec.md §3's
// "fixed-size boolean array recording which internal branches have
// fired; used only by tests".
type branch int

const (
	branchMapInList branch = iota
	branchMapTopGap
	branchMapCoalesceLeft
	branchMapCoalesceBoth
	branchMapExtendRight
	branchMapFresh
	branchUnmapFull
	branchUnmapPrefix
	branchUnmapSuffix
	branchUnmapMiddle
	branchRemapNoChange
	branchRemapShrink
	branchRemapGrowInPlace
	branchRemapGrowMove
	branchCount
)

// ManagedRange is one manager instance: a fixed, pre-reserved,
// page-aligned byte range partitioned into a descriptor pool, a live
// region list, and the two frontiers brk/map. It corresponds to
// spec.md §3's ManagedRange singleton-per-instance, deliberately not a
// process-wide singleton (spec.md §9 forbids that) — construct as many
// as needed.
type ManagedRange struct {
	mu sync.Mutex

	id uuid.UUID

	base, end   Addr
	start       Addr
	brk         Addr
	mapFrontier Addr

	headIdx descIndex
	pool    *descPool
	gap     gapSearcher

	pageSize Size
	scrub    bool
	sanity   bool
	magic    uint64

	coverage [branchCount]bool

	lastErr      string
	log          *logrus.Logger
	traceEnabled bool
	backing      []byte

	stats managerStats
}

type managerStats struct {
	mapCount, unmapCount, remapCount uint64
	sanityFailures                  uint64
}

// NewManagedRange is init (spec.md §4.1): it validates base/length,
// reserves the leading page_count descriptors as the descriptor pool,
// and leaves brk == start, map == end, region list empty.
func NewManagedRange(base Addr, length Size, opts ...Option) (*ManagedRange, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.PageSize == 0 {
		return nil, newInvalidParameter("init", "page size must be non-zero", base, length)
	}
	page := cfg.PageSize

	if length == 0 {
		return nil, newInvalidParameter("init", "length must be non-zero", base, length)
	}
	if !isAligned(base, page) {
		return nil, newInvalidParameter("init", "base must be page-aligned", base, length)
	}
	if !isSizeAligned(length, page) {
		return nil, newInvalidParameter("init", "length must be a page multiple", base, length)
	}
	// Open question resolved (spec.md §9): reject base+length wraparound.
	end := base + Addr(length)
	if end < base {
		return nil, newInvalidParameter("init", "base+length overflows the address space", base, length)
	}

	pageCount := int(length / page)
	if pageCount == 0 {
		return nil, newInvalidParameter("init", "range too small to hold a single page", base, length)
	}

	descBytes := Size(pageCount) * descriptorSize(page)
	start := alignUp(base+Addr(descBytes), page)
	if start >= end {
		return nil, newInvalidParameter("init", "range too small to hold its own descriptor pool", base, length)
	}

	m := &ManagedRange{
		id:          uuid.New(),
		base:        base,
		end:         end,
		start:       start,
		brk:         start,
		mapFrontier: end,
		headIdx:     nilIdx,
		pool:        newDescPool(pageCount),
		pageSize:    page,
		scrub:       cfg.Scrub,
		sanity:      cfg.Sanity,
		magic:       magicValue,
		log:         cfg.Logger,
		backing:     cfg.backing,
	}
	if m.backing != nil && Size(len(m.backing)) < length {
		return nil, newInvalidParameter("init", "backing slice shorter than length", base, length)
	}
	switch cfg.GapStrategy {
	case GapStrategyIndexed:
		m.gap = newIndexedGapSearch()
	default:
		m.gap = linearGapSearch{}
	}
	if m.log == nil && cfg.Trace {
		m.log = logrus.StandardLogger()
	}
	if cfg.Trace {
		m.traceEnabled = true
	}

	if m.sanity && !m.isSaneLocked() {
		return nil, newUnexpected("init", "freshly constructed manager failed sanity predicate", base, length)
	}
	return m, nil
}

// descriptorSize approximates "one descriptor per page" in bytes; the Go
// struct itself is far smaller than a page, but spec.md sizes the pool
// to the page count, not to bytes, so this is a fixed nominal size.
// NewManagedRange uses it to decide how many leading bytes of the range
// belong to bookkeeping overhead, which places start. The real pool lives
// in the Go heap (m.pool.slots), not inside the byte range itself, so the
// manager never writes those leading bytes of a backing slab.
func descriptorSize(page Size) Size {
	const nominalDescBytes = 64
	_ = page
	return nominalDescBytes
}

// ID returns the manager's unique instance id, used to tell concurrently
// running independent managers apart in logs and metrics.
func (m *ManagedRange) ID() uuid.UUID { return m.id }

// LastError returns the diagnostic string left by the most recent
// Map/Unmap/Remap/Sbrk/Brk call if that call failed, or "" if it
// succeeded (or no such call has been made yet).
func (m *ManagedRange) LastError() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// fail records the diagnostic state spec.md §6 requires. It does not log:
// every caller holds m.mu here, and spec.md §5 forbids I/O inside the
// lock, so tracing happens in the public method after it unlocks.
func (m *ManagedRange) fail(err *Error) *Error {
	m.lastErr = err.Error()
	if err.Kind == Unexpected {
		m.stats.sanityFailures++
	}
	return err
}

// succeed clears the diagnostic state on a successful call. Like fail,
// it does no logging while the lock is held.
func (m *ManagedRange) succeed() {
	m.lastErr = ""
}

// zeroRange fills [addr, addr+size) with zero bytes, satisfying
// property 6 (zero-on-map). No-op when no backing slab was attached.
func (m *ManagedRange) zeroRange(addr Addr, size Size) {
	if m.backing == nil {
		return
	}
	off := addr - m.base
	for i := Addr(0); i < Addr(size); i++ {
		m.backing[off+i] = 0
	}
}

// copyRange copies size bytes from src to dst within the backing slab,
// used by remap's grow-by-move case. No-op when no backing slab was
// attached.
func (m *ManagedRange) copyRange(dst, src Addr, size Size) {
	if m.backing == nil {
		return
	}
	dstOff := dst - m.base
	srcOff := src - m.base
	copy(m.backing[dstOff:dstOff+Addr(size)], m.backing[srcOff:srcOff+Addr(size)])
}

const scrubPattern = 0xDD

// scrubRange fills [addr, addr+size) with the fixed 0xDD pattern before
// the descriptor covering it is returned to the free list, per spec.md
// §9's scrub-before-free ordering note. No-op when scrubbing is disabled
// or no backing slab was attached.
func (m *ManagedRange) scrubRange(addr Addr, size Size) {
	if !m.scrub || m.backing == nil {
		return
	}
	off := addr - m.base
	for i := Addr(0); i < Addr(size); i++ {
		m.backing[off+i] = scrubPattern
	}
}

