//go:build linux || darwin

package main

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// newBacking returns the byte slab the managed range's addresses refer
// to. With useMmap it is a real anonymous, private mmap region — the
// deployment context spec.md §1 describes, where a host hands the
// manager a pre-reserved slab it did not allocate with make(). Without
// it, a plain Go slice suffices and is more portable for quick runs.
func newBacking(size int, useMmap bool) (backing []byte, cleanup func(), err error) {
	if !useMmap {
		return make([]byte, size), func() {}, nil
	}
	b, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, fmt.Errorf("mmap %d bytes: %w", size, err)
	}
	return b, func() { _ = unix.Munmap(b) }, nil
}
