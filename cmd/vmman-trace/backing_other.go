//go:build !linux && !darwin

package main

import "fmt"

// newBacking falls back to a plain Go slice on platforms where
// golang.org/x/sys/unix's mmap wrapper isn't available.
func newBacking(size int, useMmap bool) (backing []byte, cleanup func(), err error) {
	if useMmap {
		return nil, nil, fmt.Errorf("-mmap is only supported on linux/darwin")
	}
	return make([]byte, size), func() {}, nil
}
