package arm64

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tetratelabs/bitmaskimm/internal/testing/hammer"
)

func TestTryEncodeBitMask(t *testing.T) {
	for _, tc := range []struct {
		in  uint64
		exp BitMaskImmediate
	}{
		{in: 0x5555555555555555, exp: BitMaskImmediate{N: 0, ImmS: 0x3c, ImmR: 0}},
		{in: 0xaaaaaaaaaaaaaaaa, exp: BitMaskImmediate{N: 0, ImmS: 0x3c, ImmR: 1}},
		{in: 0x0000038000000380, exp: BitMaskImmediate{N: 0, ImmS: 0x02, ImmR: 25}},
		{in: 0x000000000ffff800, exp: BitMaskImmediate{N: 1, ImmS: 0x10, ImmR: 53}},
		{in: 0x1, exp: BitMaskImmediate{N: 1, ImmS: 0, ImmR: 0}},
		{in: 0x8000000000000000, exp: BitMaskImmediate{N: 1, ImmS: 0, ImmR: 1}},
		{in: 0x8000000000000001, exp: BitMaskImmediate{N: 1, ImmS: 1, ImmR: 1}},
		{in: 0x7fffffffffffffff, exp: BitMaskImmediate{N: 1, ImmS: 0x3e, ImmR: 0}},
		{in: 0xfffffffffffffffe, exp: BitMaskImmediate{N: 1, ImmS: 0x3e, ImmR: 63}},
		{in: 0x00000000ffffffff, exp: BitMaskImmediate{N: 1, ImmS: 0x1f, ImmR: 0}},
		{in: 0xffffffff00000000, exp: BitMaskImmediate{N: 1, ImmS: 0x1f, ImmR: 32}},
		{in: 0x0000ffffffff0000, exp: BitMaskImmediate{N: 1, ImmS: 0x1f, ImmR: 48}},
		{in: 0xfffffffefffffffe, exp: BitMaskImmediate{N: 0, ImmS: 0x1e, ImmR: 31}},
		{in: 0x3ffffffe3ffffffe, exp: BitMaskImmediate{N: 0, ImmS: 0x1c, ImmR: 31}},
		{in: 0x00ff00ff00ff00ff, exp: BitMaskImmediate{N: 0, ImmS: 0x27, ImmR: 0}},
		{in: 0x8001800180018001, exp: BitMaskImmediate{N: 0, ImmS: 0x21, ImmR: 1}},
		{in: 0x0f0f0f0f0f0f0f0f, exp: BitMaskImmediate{N: 0, ImmS: 0x33, ImmR: 0}},
		{in: 0xf0f0f0f0f0f0f0f0, exp: BitMaskImmediate{N: 0, ImmS: 0x33, ImmR: 4}},
		{in: 0x3333333333333333, exp: BitMaskImmediate{N: 0, ImmS: 0x39, ImmR: 0}},
		{in: 0x9999999999999999, exp: BitMaskImmediate{N: 0, ImmS: 0x39, ImmR: 1}},
		{in: 0x7777777777777777, exp: BitMaskImmediate{N: 0, ImmS: 0x3a, ImmR: 0}},
		{in: 0xeeeeeeeeeeeeeeee, exp: BitMaskImmediate{N: 0, ImmS: 0x3a, ImmR: 3}},
	} {
		tc := tc
		t.Run(fmt.Sprintf("0x%x", tc.in), func(t *testing.T) {
			actual, ok := TryEncodeBitMask(tc.in)
			require.True(t, ok)
			require.Equal(t, tc.exp, actual)
			require.True(t, IsBitMaskImmediate(tc.in))

			decoded, ok := DecodeBitMasks(actual.N, actual.ImmS, actual.ImmR)
			require.True(t, ok)
			require.Equal(t, tc.in, decoded)
		})
	}
}

func TestTryEncodeBitMask_notRepresentable(t *testing.T) {
	for _, in := range []uint64{
		0,
		0xffffffffffffffff,
		0x970977f35f848714,
		0x5a5a5a5a5a5a5a5a,
		0x0000000100000003,
		0x00000000ffff00ff,
		0x1234,
		0x8000000000000002,
		0x0101010101010102,
	} {
		in := in
		t.Run(fmt.Sprintf("0x%x", in), func(t *testing.T) {
			actual, ok := TryEncodeBitMask(in)
			require.False(t, ok)
			require.Equal(t, BitMaskImmediate{}, actual)
			require.False(t, IsBitMaskImmediate(in))
		})
	}
}

// allBitMaskImmediates enumerates every non-reserved triple whose rotation is canonical,
// keyed by the value it expands to.
func allBitMaskImmediates(t *testing.T) map[uint64]BitMaskImmediate {
	ret := map[uint64]BitMaskImmediate{}
	for n := byte(0); n <= 1; n++ {
		for imms := byte(0); imms < 64; imms++ {
			for immr := byte(0); immr < 64; immr++ {
				v, ok := DecodeBitMasks(n, imms, immr)
				if !ok {
					continue
				}
				imm := BitMaskImmediate{N: n, ImmS: imms, ImmR: immr}
				if uint(immr) >= imm.ElementSize() {
					// Only the low log2(e) bits of immr are significant.
					canonical, ok := DecodeBitMasks(n, imms, immr&byte(imm.ElementSize()-1))
					require.True(t, ok)
					require.Equal(t, canonical, v)
					continue
				}
				_, dup := ret[v]
				require.False(t, dup, "0x%x decoded twice", v)
				ret[v] = imm
			}
		}
	}
	return ret
}

func TestTryEncodeBitMask_roundTrip(t *testing.T) {
	all := allBitMaskImmediates(t)
	// There are 5334 distinct 64-bit logical immediates.
	require.Equal(t, 5334, len(all))

	for v, exp := range all {
		actual, ok := TryEncodeBitMask(v)
		require.True(t, ok, "0x%x", v)
		require.Equal(t, exp, actual, "0x%x", v)
	}
}

func TestTryEncodeBitMask_random(t *testing.T) {
	all := allBitMaskImmediates(t)
	r := rand.New(rand.NewSource(0))
	for i := 0; i < 100000; i++ {
		v := r.Uint64()
		switch i % 4 {
		case 1:
			// Bias towards values with structure.
			v &= v >> 1
		case 2:
			v = ReplicateUint32(uint32(v))
		case 3:
			v = uint64(1)<<(v%63+1) - 1<<(v>>8%32)
		}
		imm, ok := TryEncodeBitMask(v)
		exp, expOk := all[v]
		require.Equal(t, expOk, ok, "0x%x", v)
		require.Equal(t, exp, imm, "0x%x", v)
		if ok {
			decoded, ok := DecodeBitMasks(imm.N, imm.ImmS, imm.ImmR)
			require.True(t, ok)
			require.Equal(t, v, decoded)
		}
	}
}

func TestTryEncodeBitMask_minimalElementSize(t *testing.T) {
	for v := range allBitMaskImmediates(t) {
		imm, ok := TryEncodeBitMask(v)
		require.True(t, ok)

		period := uint(64)
		for p := uint(2); p < 64; p <<= 1 {
			if v == v>>p|v<<(64-p) {
				period = p
				break
			}
		}
		require.Equal(t, period, imm.ElementSize(), "0x%x", v)
	}
}

func TestTryEncodeBitMask_concurrent(t *testing.T) {
	values := []uint64{0x5555555555555555, 0x0000038000000380, 0x970977f35f848714, 0x000000000ffff800}
	expected := make([]BitMaskImmediate, len(values))
	for i, v := range values {
		expected[i], _ = TryEncodeBitMask(v)
	}

	P, N := 16, 1000
	if testing.Short() {
		P, N = 4, 100
	}
	hammer.NewHammer(t, P, N).Run(func(p, n int) {
		idx := (p + n) % len(values)
		actual, _ := TryEncodeBitMask(values[idx])
		require.Equal(t, expected[idx], actual)
	}, nil)
}

func TestDecodeBitMasks_reserved(t *testing.T) {
	for _, tc := range []struct {
		n, imms, immr byte
	}{
		// Element of all ones.
		{n: 1, imms: 0x3f},
		{n: 0, imms: 0x1f},
		{n: 0, imms: 0x2f},
		{n: 0, imms: 0x37},
		{n: 0, imms: 0x3b},
		{n: 0, imms: 0x3d},
		// No zero in N:NOT(imms) means there is no element size.
		{n: 0, imms: 0x3e},
		{n: 0, imms: 0x3f},
	} {
		_, ok := DecodeBitMasks(tc.n, tc.imms, tc.immr)
		require.False(t, ok, "N=%d imms=0x%x", tc.n, tc.imms)
	}
}

func TestDecodeBitMasks(t *testing.T) {
	for _, tc := range []struct {
		n, imms, immr byte
		exp           uint64
	}{
		{n: 1, imms: 0, immr: 0, exp: 0x1},
		{n: 1, imms: 0x10, immr: 53, exp: 0x000000000ffff800},
		{n: 0, imms: 0x02, immr: 25, exp: 0x0000038000000380},
		{n: 0, imms: 0x3c, immr: 1, exp: 0xaaaaaaaaaaaaaaaa},
		// Only the low bits of immr are used for small elements.
		{n: 0, imms: 0x3c, immr: 0b111111, exp: 0xaaaaaaaaaaaaaaaa},
		{n: 0, imms: 0x07, immr: 0, exp: 0x000000ff000000ff},
		{n: 1, imms: 0x1f, immr: 32, exp: 0xffffffff00000000},
	} {
		actual, ok := DecodeBitMasks(tc.n, tc.imms, tc.immr)
		require.True(t, ok)
		require.Equal(t, tc.exp, actual)
	}
}

func TestReplicateUint32(t *testing.T) {
	require.Equal(t, uint64(0), ReplicateUint32(0))
	require.Equal(t, uint64(0x000000ff000000ff), ReplicateUint32(0xff))
	require.Equal(t, uint64(0xfffffffefffffffe), ReplicateUint32(0xfffffffe))
	require.Equal(t, uint64(0xffffffffffffffff), ReplicateUint32(0xffffffff))

	// 32-bit values are never encoded with N=1.
	for _, v := range []uint32{1, 0xff, 0x7fffffff, 0x80000001, 0xfffffffe, 0xffff} {
		imm, ok := TryEncodeBitMask(ReplicateUint32(v))
		require.True(t, ok, "0x%x", v)
		require.Equal(t, byte(0), imm.N, "0x%x", v)
		require.True(t, imm.ImmR < 32, "0x%x", v)
	}
}

func TestBitMaskImmediate_ElementSize(t *testing.T) {
	for _, tc := range []struct {
		imm BitMaskImmediate
		exp uint
	}{
		{imm: BitMaskImmediate{N: 1, ImmS: 0x3e}, exp: 64},
		{imm: BitMaskImmediate{N: 0, ImmS: 0x1e}, exp: 32},
		{imm: BitMaskImmediate{N: 0, ImmS: 0x27}, exp: 16},
		{imm: BitMaskImmediate{N: 0, ImmS: 0x33}, exp: 8},
		{imm: BitMaskImmediate{N: 0, ImmS: 0x39}, exp: 4},
		{imm: BitMaskImmediate{N: 0, ImmS: 0x3c}, exp: 2},
	} {
		require.Equal(t, tc.exp, tc.imm.ElementSize(), tc.imm.String())
	}
}

func TestBitMaskImmediate_Bits(t *testing.T) {
	imm := BitMaskImmediate{N: 1, ImmS: 0x10, ImmR: 53}
	require.Equal(t, uint32(1<<22|53<<16|0x10<<10), imm.Bits())
	require.Equal(t, "N=1 immr=53 imms=0x10", imm.String())
}

func BenchmarkTryEncodeBitMask(b *testing.B) {
	values := []uint64{0x5555555555555555, 0x0000038000000380, 0x970977f35f848714, 0x8001800180018001}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		TryEncodeBitMask(values[i%len(values)])
	}
}
