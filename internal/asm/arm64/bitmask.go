package arm64

import (
	"fmt"
	"math/bits"
)

// BitMaskImmediate is the N:immr:imms triple of a logical (bitmask) immediate operand.
//
// Such an immediate is a 32-bit or 64-bit pattern viewed as a vector of identical elements of size e = 2, 4, 8, 16, 32, or 64 bits.
// Each element contains the same sub-pattern: a single run of 1 to e-1 non-zero bits, rotated by 0 to e-1 bits.
//
// See https://developer.arm.com/documentation/dui0802/b/A64-General-Instructions/MOV--bitmask-immediate-
type BitMaskImmediate struct {
	// N is set only when the element spans the whole 64 bits.
	N byte
	// ImmS holds the element size in its upper bits and the length of the run minus one in its lower bits.
	ImmS byte
	// ImmR is the number of right rotations applied to the run within the element.
	ImmR byte
}

// TryEncodeBitMask returns the bitmask immediate encoding of value, or false if
// value cannot be expressed as one. On false the returned triple is zero.
//
// 32-bit operands must be replicated to 64 bits first (see ReplicateUint32).
func TryEncodeBitMask(value uint64) (imm BitMaskImmediate, ok bool) {
	// All zeros and ones are not "bitmask immediate" by definition.
	if value == 0 || value == ^uint64(0) {
		return
	}

	// Find the smallest element size the value is a replication of: halve the
	// window while its two halves are equal.
	size := uint(64)
	for size > 2 {
		half := size >> 1
		mask := uint64(1)<<half - 1
		if value&mask != (value>>half)&mask {
			break
		}
		size = half
	}

	mask := ^uint64(0) >> (64 - size)
	elem := value & mask

	var rotation, ones uint
	if isShiftedMask(elem) {
		// e.g. 0b0011_1000: the run doesn't wrap around.
		rotation = uint(bits.TrailingZeros64(elem))
		ones = uint(bits.TrailingZeros64(^(elem >> rotation)))
	} else {
		// e.g. 0b1000_0011: the run wraps around the top of the element. Set the
		// bits outside the element so that the zeros of the element form a
		// shifted mask in the complement.
		elem |= ^mask
		if !isShiftedMask(^elem) {
			return
		}
		leadingOnes := uint(bits.LeadingZeros64(^elem))
		rotation = 64 - leadingOnes
		ones = leadingOnes + uint(bits.TrailingZeros64(^elem)) - (64 - size)
	}

	if size == 64 {
		imm.N = 1
	}
	imm.ImmS = byte((^(size-1)<<1 | (ones - 1)) & 0b111111)
	imm.ImmR = byte((size - rotation) & (size - 1))
	return imm, true
}

// IsBitMaskImmediate determines if the value can be encoded as "bitmask immediate".
func IsBitMaskImmediate(value uint64) bool {
	_, ok := TryEncodeBitMask(value)
	return ok
}

// ReplicateUint32 copies v into both halves of a 64-bit value, which is how
// 32-bit operands are presented to TryEncodeBitMask.
func ReplicateUint32(v uint32) uint64 {
	return uint64(v)<<32 | uint64(v)
}

// DecodeBitMasks expands the triple back to the 64-bit value it represents.
// It returns false for the reserved encodings.
//
// See DecodeBitMasks in https://developer.arm.com/documentation/ddi0596/2021-12/Shared-Pseudocode/AArch64-Instrs?lang=en
func DecodeBitMasks(n, immS, immR byte) (uint64, bool) {
	// The element size is the position of the highest set bit of N:NOT(imms).
	l := bits.Len8(n&1<<6|^immS&0b111111) - 1
	if l < 1 {
		return 0, false
	}
	size := uint(1) << uint(l)
	levels := byte(size - 1)
	if immS&levels == levels {
		// A run of all ones within the element.
		return 0, false
	}

	s, r := uint(immS&levels), uint(immR&levels)
	elem := uint64(1)<<(s+1) - 1
	if r != 0 {
		elem = (elem>>r | elem<<(size-r)) & (^uint64(0) >> (64 - size))
	}
	for ; size < 64; size <<= 1 {
		elem |= elem << size
	}
	return elem, true
}

// ElementSize returns the size in bits of the repeating element.
func (imm BitMaskImmediate) ElementSize() uint {
	if imm.N == 1 {
		return 64
	}
	return 1 << uint(bits.Len8(^imm.ImmS&0b111111)-1)
}

// Bits returns the triple placed at its position in logical (immediate) instruction words.
func (imm BitMaskImmediate) Bits() uint32 {
	return uint32(imm.N&1)<<22 | uint32(imm.ImmR&0b111111)<<16 | uint32(imm.ImmS&0b111111)<<10
}

// String implements fmt.Stringer.
func (imm BitMaskImmediate) String() string {
	return fmt.Sprintf("N=%d immr=%d imms=0x%02x", imm.N, imm.ImmR, imm.ImmS)
}

// isShiftedMask returns true if x is a single non-empty run of set bits,
// possibly shifted left. For example: 0b1110 -> true, 0b1010 -> false
func isShiftedMask(x uint64) bool {
	if x == 0 {
		return false
	}
	y := x & (^x + 1) // lowest set bit of x.
	// If x is a sequence of set bit, this results in a power of two (or zero on overflow).
	y += x
	return y&(y-1) == 0
}
