// Package workload generates reproducible streams of vmman call requests
// for stress harnesses and property-based tests. It is adapted from this
// repo's internal/allocator size-class pools: instead of backing Go-heap
// allocations, the size classes now bucket map request lengths, and the
// sync.Pool below recycles Request objects rather than guest memory (all
// guest memory still comes from the manager being driven).
package workload

import (
	"math/rand"
	"sync"

	"github.com/orizon-lang/vmman/internal/vmman"
)

// SizeClass buckets request lengths in pages, mirroring the shape of
// internal/allocator's byte-oriented SizeClassTiny..SizeClassHuge ladder.
type SizeClass int

const (
	SizeClassTiny SizeClass = iota
	SizeClassSmall
	SizeClassMedium
	SizeClassLarge
	SizeClassHuge
)

// pagesPerClass gives the page-count ceiling for each class; a class is
// chosen uniformly, then a page count is drawn uniformly up to its ceiling.
var pagesPerClass = [...]int{
	SizeClassTiny:   1,
	SizeClassSmall:  4,
	SizeClassMedium: 16,
	SizeClassLarge:  64,
	SizeClassHuge:   256,
}

// Op identifies which vmman call a Request drives.
type Op int

const (
	OpMap Op = iota
	OpUnmap
	OpRemap
)

// Request is one generated call against a vmman.ManagedRange. Addr and
// Length describe the target for OpUnmap/OpRemap (the region the
// Generator already believes is live). For OpMap, Addr is zero and
// Length is the new region's requested size. NewSize is only
// meaningful for OpRemap.
type Request struct {
	Op      Op
	Addr    vmman.Addr
	Length  vmman.Size
	NewSize vmman.Size
}

var requestPool = sync.Pool{
	New: func() interface{} { return new(Request) },
}

// Generator produces a reproducible stream of Requests against a live set
// of addresses it tracks internally. It is not safe for concurrent use;
// callers driving multiple concurrent workers should construct one
// Generator per worker with a distinct seed.
type Generator struct {
	rng        *rand.Rand
	page       vmman.Size
	unmapBias  float64
	remapBias  float64
	live       []liveRegion
}

type liveRegion struct {
	addr vmman.Addr
	size vmman.Size
}

// Config controls a Generator's shape.
type Config struct {
	PageSize  vmman.Size
	Seed      int64
	UnmapBias float64 // probability of unmapping or remapping a live region instead of mapping
	RemapBias float64 // probability, among live regions picked for mutation, of remap over unmap
}

// DefaultConfig favors mapping over unmapping/remapping so a short run
// still produces a non-trivial number of live regions.
func DefaultConfig(seed int64) Config {
	return Config{
		PageSize:  vmman.DefaultPageSize,
		Seed:      seed,
		UnmapBias: 0.3,
		RemapBias: 0.3,
	}
}

// NewGenerator builds a Generator from cfg.
func NewGenerator(cfg Config) *Generator {
	return &Generator{
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		page:      cfg.PageSize,
		unmapBias: cfg.UnmapBias,
		remapBias: cfg.RemapBias,
	}
}

// Next produces the next Request. For OpUnmap/OpRemap the targeted
// region is removed from the Generator's live set immediately (it is no
// longer a valid future target regardless of whether the caller's remap
// moves it); callers that successfully apply an OpMap or OpRemap request
// must call Record with the resulting address/size so later requests can
// target it.
func (g *Generator) Next() *Request {
	req := requestPool.Get().(*Request)
	*req = Request{}

	if len(g.live) > 0 && g.rng.Float64() < g.unmapBias {
		idx := g.rng.Intn(len(g.live))
		target := g.live[idx]
		g.live[idx] = g.live[len(g.live)-1]
		g.live = g.live[:len(g.live)-1]

		req.Addr = target.addr
		req.Length = target.size
		if g.rng.Float64() < g.remapBias {
			req.Op = OpRemap
			req.NewSize = g.drawLength()
		} else {
			req.Op = OpUnmap
		}
		return req
	}

	req.Op = OpMap
	req.Length = g.drawLength()
	return req
}

// Release returns req to the internal pool once the caller is done with
// it (after applying it and calling Record).
func (g *Generator) Release(req *Request) {
	requestPool.Put(req)
}

// Record tells the Generator the outcome of applying a Map or Remap
// request, so future Unmap/Remap requests target a real, currently-live
// address.
func (g *Generator) Record(addr vmman.Addr, size vmman.Size) {
	g.live = append(g.live, liveRegion{addr: addr, size: size})
}

func (g *Generator) drawLength() vmman.Size {
	class := SizeClass(g.rng.Intn(len(pagesPerClass)))
	maxPages := pagesPerClass[class]
	pages := 1 + g.rng.Intn(maxPages)
	return vmman.Size(pages) * g.page
}

// LiveCount reports how many addresses the Generator currently believes
// are live, for summary reporting by callers.
func (g *Generator) LiveCount() int { return len(g.live) }
