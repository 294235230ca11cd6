package workload

import "github.com/orizon-lang/vmman/internal/vmman"

// Apply performs req against m using the fixed anonymous/private,
// read+write protection and flags the manager's ambient stack
// exercises elsewhere (spec.md's Non-goals exclude exec/shared/fixed
// mappings). On success it records the resulting address/size back into
// g's live set and returns true; on a failure that merely reflects the
// manager rejecting the request (e.g. out of memory), it returns false
// with the error so a driving loop can decide whether to continue.
func Apply(g *Generator, m *vmman.ManagedRange, req *Request) (bool, error) {
	switch req.Op {
	case OpMap:
		addr, err := m.Map(0, req.Length, vmman.ProtRead|vmman.ProtWrite, vmman.FlagAnonymous|vmman.FlagPrivate)
		if err != nil {
			return false, err
		}
		g.Record(addr, req.Length)
		return true, nil
	case OpUnmap:
		if err := m.Unmap(req.Addr, req.Length); err != nil {
			return false, err
		}
		return true, nil
	case OpRemap:
		addr, err := m.Remap(req.Addr, req.Length, req.NewSize, vmman.MayMove)
		if err != nil {
			return false, err
		}
		g.Record(addr, req.NewSize)
		return true, nil
	default:
		return false, nil
	}
}
