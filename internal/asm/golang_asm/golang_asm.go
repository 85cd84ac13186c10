package golang_asm

import (
	"fmt"

	goasm "github.com/twitchyliquid64/golang-asm"
	"github.com/twitchyliquid64/golang-asm/obj"

	"github.com/tetratelabs/bitmaskimm/internal/asm"
)

// GolangAsmNode implements Node for golang-asm library.
type GolangAsmNode struct {
	prog *obj.Prog
}

func NewGolangAsmNode(p *obj.Prog) asm.Node {
	return &GolangAsmNode{prog: p}
}

// String implements fmt.Stringer.
func (n *GolangAsmNode) String() string {
	return n.prog.String()
}

// OffsetInBinary implements Node.OffsetInBinary.
//
// Only valid after GolangAsmBaseAssembler.Assemble.
func (n *GolangAsmNode) OffsetInBinary() asm.NodeOffsetInBinary {
	return asm.NodeOffsetInBinary(n.prog.Pc)
}

// AssignSourceConstant implements Node.AssignSourceConstant.
func (n *GolangAsmNode) AssignSourceConstant(value asm.ConstantValue) {
	n.prog.From.Offset = value
}

// GolangAsmBaseAssembler holds the golang-asm builder shared by the architecture specific
// reference assemblers.
type GolangAsmBaseAssembler struct {
	b *goasm.Builder
}

func NewGolangAsmBaseAssembler(arch string) (*GolangAsmBaseAssembler, error) {
	b, err := goasm.NewBuilder(arch, 1024)
	if err != nil {
		return nil, fmt.Errorf("failed to create a new assembly builder: %w", err)
	}
	return &GolangAsmBaseAssembler{b: b}, nil
}

// Assemble returns the machine code of all the added instructions.
func (a *GolangAsmBaseAssembler) Assemble() ([]byte, error) {
	return a.b.Assemble(), nil
}

// AddInstruction is used in architecture specific assembler implementation for golang-asm.
func (a *GolangAsmBaseAssembler) AddInstruction(next *obj.Prog) {
	a.b.AddInstruction(next)
}

// NewProg is used in architecture specific assembler implementation for golang-asm.
func (a *GolangAsmBaseAssembler) NewProg() (prog *obj.Prog) {
	prog = a.b.NewProg()
	return
}
