// Package platform includes runtime-specific code needed for mapping the
// memory where arm64 instruction words are emitted.
package platform

import "errors"

// MmapCodeSegment maps a new anonymous, private, read-write region of the
// given size.
func MmapCodeSegment(size int) ([]byte, error) {
	if size == 0 {
		panic(errors.New("BUG: MmapCodeSegment with zero length"))
	}
	return mmapCodeSegment(size)
}

// MunmapCodeSegment unmaps the given memory region.
func MunmapCodeSegment(code []byte) error {
	if len(code) == 0 {
		panic(errors.New("BUG: MunmapCodeSegment with zero length"))
	}
	return munmapCodeSegment(code)
}

// RemapCodeSegment reallocates the memory mapping of an existing code segment
// to increase its size. The previous code mapping is unmapped and must not be
// reused after the function returns.
//
// This is similar to mremap(2) on linux, and emulated on other platforms.
func RemapCodeSegment(code []byte, size int) ([]byte, error) {
	if size < len(code) {
		panic("BUG: RemapCodeSegment with size less than code")
	}
	b, err := MmapCodeSegment(size)
	if err != nil {
		return nil, err
	}
	if len(code) == 0 {
		return b, nil
	}
	copy(b, code)
	mustMunmapCodeSegment(code)
	return b, nil
}

// mustMunmapCodeSegment panics instead of returning an error, so that a
// failed remap never leaks the new block.
func mustMunmapCodeSegment(code []byte) {
	if err := munmapCodeSegment(code); err != nil {
		panic(err)
	}
}
