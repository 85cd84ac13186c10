package arm64debug

import (
	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/arm64"

	"github.com/tetratelabs/bitmaskimm/internal/asm"
	asm_arm64 "github.com/tetratelabs/bitmaskimm/internal/asm/arm64"
	"github.com/tetratelabs/bitmaskimm/internal/asm/golang_asm"
)

// ReferenceAssembler emits the logical (immediate) instructions with Go's official arm64 assembler.
//
// Note: Go's assembler picks MOVZ/MOVN over ORR for MOVD/MOVW of constants which fit in
// a single 16-bit chunk, so the encodings only agree with asm_arm64.AssemblerImpl for
// constants that are not such move-wide constants.
type ReferenceAssembler struct {
	*golang_asm.GolangAsmBaseAssembler
}

func NewReferenceAssembler() (*ReferenceAssembler, error) {
	base, err := golang_asm.NewGolangAsmBaseAssembler("arm64")
	if err != nil {
		return nil, err
	}
	a := &ReferenceAssembler{GolangAsmBaseAssembler: base}
	// The first instruction is taken as the function entry by golang-asm and is not emitted.
	a.CompileStandAlone(asm_arm64.NOP)
	return a, nil
}

// CompileStandAlone implements the same method as documented on asm_arm64.AssemblerImpl.
func (a *ReferenceAssembler) CompileStandAlone(instruction asm.Instruction) asm.Node {
	prog := a.NewProg()
	prog.As = castAsGolangAsmInstruction[instruction]
	a.AddInstruction(prog)
	return golang_asm.NewGolangAsmNode(prog)
}

// CompileRegisterAndConstToRegister implements the same method as documented on asm_arm64.AssemblerImpl.
func (a *ReferenceAssembler) CompileRegisterAndConstToRegister(
	instruction asm.Instruction,
	src asm.Register,
	srcConst asm.ConstantValue,
	dst asm.Register,
) asm.Node {
	inst := a.NewProg()
	inst.As = castAsGolangAsmInstruction[instruction]
	inst.From.Type = obj.TYPE_CONST
	inst.From.Offset = srcConst
	inst.Reg = castAsGolangAsmRegister[src]
	inst.To.Type = obj.TYPE_REG
	inst.To.Reg = castAsGolangAsmRegister[dst]
	a.AddInstruction(inst)
	return golang_asm.NewGolangAsmNode(inst)
}

// CompileRegisterAndConstToNone implements the same method as documented on asm_arm64.AssemblerImpl.
func (a *ReferenceAssembler) CompileRegisterAndConstToNone(
	instruction asm.Instruction,
	src asm.Register,
	srcConst asm.ConstantValue,
) asm.Node {
	inst := a.NewProg()
	inst.As = castAsGolangAsmInstruction[instruction]
	// TYPE_NONE indicates that this instruction doesn't have a destination.
	inst.To.Type = obj.TYPE_NONE
	inst.From.Type = obj.TYPE_CONST
	inst.From.Offset = srcConst
	inst.Reg = castAsGolangAsmRegister[src]
	a.AddInstruction(inst)
	return golang_asm.NewGolangAsmNode(inst)
}

// CompileConstToRegister implements the same method as documented on asm_arm64.AssemblerImpl.
func (a *ReferenceAssembler) CompileConstToRegister(
	instruction asm.Instruction,
	value asm.ConstantValue,
	dst asm.Register,
) asm.Node {
	inst := a.NewProg()
	inst.As = castAsGolangAsmInstruction[instruction]
	inst.From.Type = obj.TYPE_CONST
	inst.From.Offset = value
	inst.To.Type = obj.TYPE_REG
	inst.To.Reg = castAsGolangAsmRegister[dst]
	a.AddInstruction(inst)
	return golang_asm.NewGolangAsmNode(inst)
}

// castAsGolangAsmRegister maps the registers to golang-asm specific register values.
var castAsGolangAsmRegister = [...]int16{
	asm_arm64.REG_R0:  arm64.REG_R0,
	asm_arm64.REG_R1:  arm64.REG_R1,
	asm_arm64.REG_R2:  arm64.REG_R2,
	asm_arm64.REG_R3:  arm64.REG_R3,
	asm_arm64.REG_R4:  arm64.REG_R4,
	asm_arm64.REG_R5:  arm64.REG_R5,
	asm_arm64.REG_R6:  arm64.REG_R6,
	asm_arm64.REG_R7:  arm64.REG_R7,
	asm_arm64.REG_R8:  arm64.REG_R8,
	asm_arm64.REG_R9:  arm64.REG_R9,
	asm_arm64.REG_R10: arm64.REG_R10,
	asm_arm64.REG_R11: arm64.REG_R11,
	asm_arm64.REG_R12: arm64.REG_R12,
	asm_arm64.REG_R13: arm64.REG_R13,
	asm_arm64.REG_R14: arm64.REG_R14,
	asm_arm64.REG_R15: arm64.REG_R15,
	asm_arm64.REG_R16: arm64.REG_R16,
	asm_arm64.REG_R17: arm64.REG_R17,
	asm_arm64.REG_R18: arm64.REG_R18,
	asm_arm64.REG_R19: arm64.REG_R19,
	asm_arm64.REG_R20: arm64.REG_R20,
	asm_arm64.REG_R21: arm64.REG_R21,
	asm_arm64.REG_R22: arm64.REG_R22,
	asm_arm64.REG_R23: arm64.REG_R23,
	asm_arm64.REG_R24: arm64.REG_R24,
	asm_arm64.REG_R25: arm64.REG_R25,
	asm_arm64.REG_R26: arm64.REG_R26,
	asm_arm64.REG_R27: arm64.REG_R27,
	asm_arm64.REG_R28: arm64.REG_R28,
	asm_arm64.REG_R29: arm64.REG_R29,
	asm_arm64.REG_R30: arm64.REG_R30,
	asm_arm64.REGZERO: arm64.REGZERO,
	asm_arm64.REGSP:   arm64.REGSP,
}

// castAsGolangAsmInstruction maps the instructions to golang-asm specific instructions values.
var castAsGolangAsmInstruction = [...]obj.As{
	asm_arm64.NOP:   obj.ANOP,
	asm_arm64.AND:   arm64.AAND,
	asm_arm64.ANDS:  arm64.AANDS,
	asm_arm64.ANDSW: arm64.AANDSW,
	asm_arm64.ANDW:  arm64.AANDW,
	asm_arm64.EOR:   arm64.AEOR,
	asm_arm64.EORW:  arm64.AEORW,
	asm_arm64.MOVD:  arm64.AMOVD,
	asm_arm64.MOVW:  arm64.AMOVW,
	asm_arm64.ORR:   arm64.AORR,
	asm_arm64.ORRW:  arm64.AORRW,
	asm_arm64.TST:   arm64.ATST,
	asm_arm64.TSTW:  arm64.ATSTW,
}
