package vmman

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"

	stderrors "github.com/orizon-lang/vmman/internal/errors"
)

// ErrorKind enumerates the manager's four failure classes.
type ErrorKind int

const (
	// InvalidParameter: caller-supplied value violates a precondition.
	InvalidParameter ErrorKind = iota
	// OutOfMemory: no gap large enough, frontiers cannot advance.
	OutOfMemory
	// Failure: a secondary allocation (e.g. a middle-split descriptor)
	// could not be satisfied.
	Failure
	// Unexpected: a post-condition sanity check failed. Callers should
	// treat this as a bug, not a recoverable condition.
	Unexpected
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidParameter:
		return "InvalidParameter"
	case OutOfMemory:
		return "OutOfMemory"
	case Failure:
		return "Failure"
	case Unexpected:
		return "Unexpected"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is returned by every failing public operation. It carries the
// call's address and size; its Error() text is the diagnostic string
// LastError on *ManagedRange returns, kept in full (it is not truncated
// to a fixed capacity).
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Addr    Addr
	Size    Size
	cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("vmman: %s: %s (op=%s addr=%s size=%d)", e.Kind, e.Message, e.Op, e.Addr, e.Size)
}

// Unwrap exposes the stack-trace-carrying cause attached to Unexpected
// errors, so callers using errors.As/errors.Is can still reach it.
func (e *Error) Unwrap() error { return e.cause }

func newInvalidParameter(op, msg string, addr Addr, size Size) *Error {
	return &Error{Kind: InvalidParameter, Op: op, Message: msg, Addr: addr, Size: size}
}

func newOutOfMemory(op, msg string, size Size) *Error {
	return &Error{Kind: OutOfMemory, Op: op, Message: msg, Size: size}
}

func newFailure(op, msg string, addr Addr, size Size) *Error {
	return &Error{Kind: Failure, Op: op, Message: msg, Addr: addr, Size: size}
}

// newUnexpected builds an Unexpected-kind error for a failed sanity check
// or internal invariant violation. It routes the message through the
// repo's categorized StandardError helper for a consistent diagnostic
// shape, then wraps the result with a stack trace via pkg/errors so a
// test failure or crash report shows exactly which call path produced an
// inconsistent manager.
func newUnexpected(op, msg string, addr Addr, size Size) *Error {
	std := stderrors.NewStandardError(stderrors.CategoryMemory, "SANITY_VIOLATION", msg, map[string]interface{}{
		"op":   op,
		"addr": uintptr(addr),
		"size": uintptr(size),
	})
	return &Error{
		Kind:    Unexpected,
		Op:      op,
		Message: msg,
		Addr:    addr,
		Size:    size,
		cause:   pkgerrors.WithStack(std),
	}
}
