package arm64

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tetratelabs/bitmaskimm/internal/asm"
)

// Arm64-specific registers.
// https://developer.arm.com/documentation/dui0801/a/Overview-of-AArch64-state/Predeclared-core-register-names-in-AArch64-state
// Note: naming convention is exactly the same as Go assembler: https://go.dev/doc/asm
const (
	// Integer registers.

	REG_R0 asm.Register = asm.NilRegister + 1 + iota
	REG_R1
	REG_R2
	REG_R3
	REG_R4
	REG_R5
	REG_R6
	REG_R7
	REG_R8
	REG_R9
	REG_R10
	REG_R11
	REG_R12
	REG_R13
	REG_R14
	REG_R15
	REG_R16
	REG_R17
	REG_R18
	REG_R19
	REG_R20
	REG_R21
	REG_R22
	REG_R23
	REG_R24
	REG_R25
	REG_R26
	REG_R27
	REG_R28
	REG_R29
	REG_R30
	// REGZERO is encoded as 31 where the operand means the zero register.
	REGZERO
	// REGSP is encoded as 31 where the operand means the stack pointer.
	REGSP
)

// RegisterName returns the name of the given register.
func RegisterName(r asm.Register) string {
	switch {
	case r == asm.NilRegister:
		return "nil"
	case r == REGZERO:
		return "ZR"
	case r == REGSP:
		return "RSP"
	case REG_R0 <= r && r <= REG_R30:
		return fmt.Sprintf("R%d", r-REG_R0)
	}
	return "UNKNOWN"
}

// RegisterByName is the inverse of RegisterName, case-insensitive.
// "XZR", "WZR", "SP" and the "X"/"W" prefixes are accepted as well.
func RegisterByName(name string) (asm.Register, bool) {
	name = strings.ToUpper(name)
	switch name {
	case "ZR", "XZR", "WZR":
		return REGZERO, true
	case "RSP", "SP":
		return REGSP, true
	}
	if len(name) < 2 || (name[0] != 'R' && name[0] != 'X' && name[0] != 'W') {
		return asm.NilRegister, false
	}
	num, err := strconv.Atoi(name[1:])
	if err != nil || strconv.Itoa(num) != name[1:] || num < 0 || num > 30 {
		return asm.NilRegister, false
	}
	return REG_R0 + asm.Register(num), true
}

// Arm64-specific instructions.
//
// Note: This only defines arm64 instructions which take a logical (bitmask) immediate operand.
// Note: naming convention is exactly the same as Go assembler: https://go.dev/doc/asm
const (
	NOP asm.Instruction = iota
	AND
	ANDS
	ANDSW
	ANDW
	EOR
	EORW
	MOVD
	MOVW
	ORR
	ORRW
	TST
	TSTW

	// instructionEnd is always placed at the bottom of this iota definition to be used in the test.
	instructionEnd
)

var instructionNames = [instructionEnd]string{
	NOP:   "NOP",
	AND:   "AND",
	ANDS:  "ANDS",
	ANDSW: "ANDSW",
	ANDW:  "ANDW",
	EOR:   "EOR",
	EORW:  "EORW",
	MOVD:  "MOVD",
	MOVW:  "MOVW",
	ORR:   "ORR",
	ORRW:  "ORRW",
	TST:   "TST",
	TSTW:  "TSTW",
}

// InstructionName returns the name of the given instruction
func InstructionName(i asm.Instruction) string {
	if i < instructionEnd {
		return instructionNames[i]
	}
	return "UNKNOWN"
}

// InstructionByName is the inverse of InstructionName, case-insensitive.
func InstructionByName(name string) (asm.Instruction, bool) {
	name = strings.ToUpper(name)
	for i, n := range instructionNames {
		if n == name {
			return asm.Instruction(i), true
		}
	}
	return NOP, false
}
