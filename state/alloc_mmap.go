//go:build linux || darwin || freebsd

package state

import "golang.org/x/sys/unix"

func allocateBlock(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
}

func releaseBlock(b []byte) error {
	return unix.Munmap(b)
}
