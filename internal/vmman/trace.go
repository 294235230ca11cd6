package vmman

import "github.com/sirupsen/logrus"

// traceOp emits one logrus entry per public operation when tracing is
// enabled. Every public operation (Map, Unmap, Remap, Sbrk, Brk) runs
// its locked body in a *Guarded helper that returns after m.mu has
// already been unlocked, and only then calls traceOp — so logging never
// happens while the lock is held (spec.md §5's "no I/O inside the
// lock").
func (m *ManagedRange) traceOp(op string, addr Addr, size Size, err error) {
	if !m.traceEnabled || m.log == nil {
		return
	}
	entry := m.log.WithFields(logrus.Fields{
		"op":         op,
		"manager_id": m.id.String(),
		"addr":       addr.String(),
		"size":       uintptr(size),
	})
	if err != nil {
		entry.WithError(err).Warn("vmman operation failed")
		return
	}
	entry.Debug("vmman operation succeeded")
}
