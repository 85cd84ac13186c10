//go:build darwin || dragonfly || freebsd || linux || netbsd || openbsd

package platform

import "golang.org/x/sys/unix"

func mmapCodeSegment(size int) ([]byte, error) {
	// Anonymous as this is not an actual file, but a memory,
	// Private as this is in-process memory region.
	return unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
}

func munmapCodeSegment(code []byte) error {
	return unix.Munmap(code)
}
