package arm64debug

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/tetratelabs/bitmaskimm/internal/asm"
	asm_arm64 "github.com/tetratelabs/bitmaskimm/internal/asm/arm64"
)

// DebugAssembler ensures that asm_arm64.AssemblerImpl produces exactly the same binary as Go's
// official assembler. Every instruction is compiled by both, and Assemble fails on any difference.
type DebugAssembler struct {
	goasm *ReferenceAssembler
	a     *asm_arm64.AssemblerImpl
}

func NewDebugAssembler() (*DebugAssembler, error) {
	goasm, err := NewReferenceAssembler()
	if err != nil {
		return nil, err
	}
	return &DebugAssembler{goasm: goasm, a: asm_arm64.NewAssemblerImpl()}, nil
}

// debugNode implements asm.Node for the usage with DebugAssembler.
type debugNode struct {
	n     *asm_arm64.NodeImpl
	goasm asm.Node
}

// String implements fmt.Stringer.
func (dn *debugNode) String() string {
	return dn.n.String()
}

// AssignSourceConstant implements asm.Node.AssignSourceConstant.
func (dn *debugNode) AssignSourceConstant(value asm.ConstantValue) {
	dn.goasm.AssignSourceConstant(value)
	dn.n.AssignSourceConstant(value)
}

// OffsetInBinary implements asm.Node.OffsetInBinary.
func (dn *debugNode) OffsetInBinary() asm.NodeOffsetInBinary {
	return dn.n.OffsetInBinary()
}

// Assemble assembles the instructions with both assemblers into seg, and returns the written bytes.
func (da *DebugAssembler) Assemble(seg *asm.CodeSegment) ([]byte, error) {
	expected, err := da.goasm.Assemble()
	if err != nil {
		return nil, err
	}

	buf := seg.Next()
	if err = da.a.Assemble(buf); err != nil {
		return nil, err
	}

	actual := buf.Bytes()
	if expected, ok := TrimPadding(expected, len(actual)); !ok || !bytes.Equal(expected, actual) {
		e := hex.EncodeToString(expected)
		a := hex.EncodeToString(actual)
		return nil, fmt.Errorf("expected (len=%d): %s\nactual(len=%d): %s", len(e), e, len(a), a)
	}
	return actual, nil
}

// TrimPadding returns the first n bytes of code assembled by golang-asm, which pads its output
// with zero words up to 16 bytes. It returns code as is and false when the bytes past n are not
// all padding.
func TrimPadding(code []byte, n int) ([]byte, bool) {
	if len(code) < n || len(code)-n >= 16 {
		return code, false
	}
	for _, b := range code[n:] {
		if b != 0 {
			return code, false
		}
	}
	return code[:n], true
}

// CompileStandAlone implements the same method as documented on asm_arm64.AssemblerImpl.
func (da *DebugAssembler) CompileStandAlone(instruction asm.Instruction) asm.Node {
	return &debugNode{
		goasm: da.goasm.CompileStandAlone(instruction),
		n:     da.a.CompileStandAlone(instruction),
	}
}

// CompileRegisterAndConstToRegister implements the same method as documented on asm_arm64.AssemblerImpl.
func (da *DebugAssembler) CompileRegisterAndConstToRegister(
	instruction asm.Instruction,
	src asm.Register,
	srcConst asm.ConstantValue,
	dst asm.Register,
) asm.Node {
	return &debugNode{
		goasm: da.goasm.CompileRegisterAndConstToRegister(instruction, src, srcConst, dst),
		n:     da.a.CompileRegisterAndConstToRegister(instruction, src, srcConst, dst),
	}
}

// CompileRegisterAndConstToNone implements the same method as documented on asm_arm64.AssemblerImpl.
func (da *DebugAssembler) CompileRegisterAndConstToNone(
	instruction asm.Instruction,
	src asm.Register,
	srcConst asm.ConstantValue,
) asm.Node {
	return &debugNode{
		goasm: da.goasm.CompileRegisterAndConstToNone(instruction, src, srcConst),
		n:     da.a.CompileRegisterAndConstToNone(instruction, src, srcConst),
	}
}

// CompileConstToRegister implements the same method as documented on asm_arm64.AssemblerImpl.
func (da *DebugAssembler) CompileConstToRegister(
	instruction asm.Instruction,
	value asm.ConstantValue,
	dst asm.Register,
) asm.Node {
	return &debugNode{
		goasm: da.goasm.CompileConstToRegister(instruction, value, dst),
		n:     da.a.CompileConstToRegister(instruction, value, dst),
	}
}
