package arm64

import (
	"errors"
	"fmt"

	"github.com/tetratelabs/bitmaskimm/internal/asm"
)

// ErrNotBitMaskImmediate is wrapped by the errors returned when a constant operand
// cannot be encoded as a logical (bitmask) immediate. Callers are expected to
// materialize such constants differently, e.g. via MOVZ/MOVK into a register.
var ErrNotBitMaskImmediate = errors.New("not a bitmask immediate")

type NodeImpl struct {
	// NOTE: fields here are exported for testing with the arm64_debug package.

	Instruction asm.Instruction

	OffsetInBinaryField asm.NodeOffsetInBinary // Field suffix to dodge conflict with OffsetInBinary

	// Next holds the next node from this node in the assembled linked list.
	Next *NodeImpl

	Types          OperandTypes
	SrcReg, DstReg asm.Register
	SrcConst       asm.ConstantValue
}

// AssignSourceConstant implements the same method as documented on asm.Node.
func (n *NodeImpl) AssignSourceConstant(value asm.ConstantValue) {
	n.SrcConst = value
}

// OffsetInBinary implements the same method as documented on asm.Node.
func (n *NodeImpl) OffsetInBinary() asm.NodeOffsetInBinary {
	return n.OffsetInBinaryField
}

// String implements fmt.Stringer.
//
// This is for debugging purpose, and the format is similar to the AT&T assembly syntax,
// meaning that this should look like "INSTRUCTION ${from}, ${to}" where multiple operands
// are embraced by `()`.
func (n *NodeImpl) String() (ret string) {
	instName := InstructionName(n.Instruction)
	switch n.Types {
	case OperandTypesNoneToNone:
		ret = instName
	case OperandTypesRegisterAndConstToNone:
		ret = fmt.Sprintf("%s (%s, 0x%x)", instName, RegisterName(n.SrcReg), uint64(n.SrcConst))
	case OperandTypesRegisterAndConstToRegister:
		ret = fmt.Sprintf("%s (%s, 0x%x), %s", instName, RegisterName(n.SrcReg), uint64(n.SrcConst), RegisterName(n.DstReg))
	case OperandTypesConstToRegister:
		ret = fmt.Sprintf("%s 0x%x, %s", instName, uint64(n.SrcConst), RegisterName(n.DstReg))
	}
	return
}

// OperandType represents where an operand is placed for an instruction.
// Note: this is almost the same as obj.AddrType in GO assembler.
type OperandType byte

const (
	OperandTypeNone OperandType = iota
	OperandTypeRegister
	OperandTypeRegisterAndConst
	OperandTypeConst
)

// String implements fmt.Stringer.
func (o OperandType) String() (ret string) {
	switch o {
	case OperandTypeNone:
		ret = "none"
	case OperandTypeRegister:
		ret = "register"
	case OperandTypeRegisterAndConst:
		ret = "register-and-const"
	case OperandTypeConst:
		ret = "const"
	}
	return
}

// OperandTypes represents the only combinations of two OperandTypes used by the logical-immediate assembler.
type OperandTypes struct{ src, dst OperandType }

var (
	OperandTypesNoneToNone                 = OperandTypes{OperandTypeNone, OperandTypeNone}
	OperandTypesRegisterAndConstToNone     = OperandTypes{OperandTypeRegisterAndConst, OperandTypeNone}
	OperandTypesRegisterAndConstToRegister = OperandTypes{OperandTypeRegisterAndConst, OperandTypeRegister}
	OperandTypesConstToRegister            = OperandTypes{OperandTypeConst, OperandTypeRegister}
)

// String implements fmt.Stringer
func (o OperandTypes) String() string {
	return fmt.Sprintf("from:%s,to:%s", o.src, o.dst)
}

// AssemblerImpl emits logical (immediate) instructions.
//
// Instructions are added with the Compile* methods, and encoded in order by Assemble.
// AssemblerImpl is not safe for concurrent use.
type AssemblerImpl struct {
	Root, Current *NodeImpl
	Buf           asm.Buffer
	nodeCount     int
}

func NewAssemblerImpl() *AssemblerImpl {
	return &AssemblerImpl{}
}

// newNode creates a new Node and appends it into the linked list.
func (a *AssemblerImpl) newNode(instruction asm.Instruction, types OperandTypes) *NodeImpl {
	n := &NodeImpl{
		Instruction: instruction,
		Next:        nil,
		Types:       types,
	}

	a.addNode(n)
	return n
}

// addNode appends the new node into the linked list.
func (a *AssemblerImpl) addNode(node *NodeImpl) {
	a.nodeCount++

	if a.Root == nil {
		a.Root = node
		a.Current = node
	} else {
		parent := a.Current
		parent.Next = node
		a.Current = node
	}
}

// Assemble encodes all the added nodes in order into buf.
//
// On error, buf holds the words of the nodes preceding the failing one.
func (a *AssemblerImpl) Assemble(buf asm.Buffer) error {
	a.Buf = buf
	for n := a.Root; n != nil; n = n.Next {
		n.OffsetInBinaryField = uint64(buf.Len())
		if err := a.EncodeNode(n); err != nil {
			return err
		}
	}
	return nil
}

// EncodeNode encodes the given node into a.Buf.
func (a *AssemblerImpl) EncodeNode(n *NodeImpl) (err error) {
	switch n.Types {
	case OperandTypesNoneToNone:
		err = a.EncodeNoneToNone(n)
	case OperandTypesRegisterAndConstToNone:
		err = a.EncodeRegisterAndConstToNone(n)
	case OperandTypesRegisterAndConstToRegister:
		err = a.EncodeRegisterAndConstToRegister(n)
	case OperandTypesConstToRegister:
		err = a.EncodeConstToRegister(n)
	default:
		err = fmt.Errorf("encoder undefined for [%s] operand type", n.Types)
	}
	return
}

// CompileStandAlone adds an instruction to take no arguments.
func (a *AssemblerImpl) CompileStandAlone(instruction asm.Instruction) *NodeImpl {
	return a.newNode(instruction, OperandTypesNoneToNone)
}

// CompileRegisterAndConstToRegister adds an instruction where the source operands are the register `src` and
// the constant `srcConst` as logical immediate, and the destination is the register `dst`.
func (a *AssemblerImpl) CompileRegisterAndConstToRegister(
	instruction asm.Instruction,
	src asm.Register,
	srcConst asm.ConstantValue,
	dst asm.Register,
) *NodeImpl {
	n := a.newNode(instruction, OperandTypesRegisterAndConstToRegister)
	n.SrcReg = src
	n.SrcConst = srcConst
	n.DstReg = dst
	return n
}

// CompileRegisterAndConstToNone adds an instruction where the source operands are the register `src` and
// the constant `srcConst` as logical immediate, and the destination is unspecified (e.g. TST).
func (a *AssemblerImpl) CompileRegisterAndConstToNone(
	instruction asm.Instruction,
	src asm.Register,
	srcConst asm.ConstantValue,
) *NodeImpl {
	n := a.newNode(instruction, OperandTypesRegisterAndConstToNone)
	n.SrcReg = src
	n.SrcConst = srcConst
	return n
}

// CompileConstToRegister adds an instruction where the source operand is the constant `value` as logical immediate
// and the destination is the register `dst` (MOV alias of ORR).
func (a *AssemblerImpl) CompileConstToRegister(
	instruction asm.Instruction,
	value asm.ConstantValue,
	dst asm.Register,
) *NodeImpl {
	n := a.newNode(instruction, OperandTypesConstToRegister)
	n.SrcConst = value
	n.DstReg = dst
	return n
}

func errorEncodingUnsupported(n *NodeImpl) error {
	return fmt.Errorf("%s is unsupported for %s type", InstructionName(n.Instruction), n.Types)
}

// Exported for inter-op testing with golang-asm.
func (a *AssemblerImpl) EncodeNoneToNone(n *NodeImpl) (err error) {
	if n.Instruction != NOP {
		err = errorEncodingUnsupported(n)
	}
	return
}

// Exported for inter-op testing with golang-asm.
func (a *AssemblerImpl) EncodeRegisterAndConstToRegister(n *NodeImpl) (err error) {
	var opc byte
	var is64bit bool
	switch n.Instruction {
	case AND:
		opc, is64bit = 0b00, true
	case ANDW:
		opc = 0b00
	case ORR:
		opc, is64bit = 0b01, true
	case ORRW:
		opc = 0b01
	case EOR:
		opc, is64bit = 0b10, true
	case EORW:
		opc = 0b10
	case ANDS:
		opc, is64bit = 0b11, true
	case ANDSW:
		opc = 0b11
	default:
		return errorEncodingUnsupported(n)
	}

	srcRegBits, err := intRegisterBits(n.SrcReg)
	if err != nil {
		return err
	}

	var dstRegBits byte
	if opc == 0b11 {
		// Flag setting variants write to the zero register when Rd = 31.
		dstRegBits, err = intRegisterBits(n.DstReg)
	} else {
		// Otherwise, Rd = 31 is the stack pointer.
		dstRegBits, err = intRegisterOrSPBits(n.DstReg)
	}
	if err != nil {
		return err
	}
	return a.encodeLogicalImmediate(n, opc, is64bit, srcRegBits, dstRegBits)
}

// Exported for inter-op testing with golang-asm.
func (a *AssemblerImpl) EncodeRegisterAndConstToNone(n *NodeImpl) (err error) {
	var is64bit bool
	switch n.Instruction {
	case TST:
		is64bit = true
	case TSTW:
	default:
		return errorEncodingUnsupported(n)
	}

	srcRegBits, err := intRegisterBits(n.SrcReg)
	if err != nil {
		return err
	}
	// TST is the alias of ANDS with the zero register as the destination.
	return a.encodeLogicalImmediate(n, 0b11, is64bit, srcRegBits, zeroRegisterBits)
}

// Exported for inter-op testing with golang-asm.
func (a *AssemblerImpl) EncodeConstToRegister(n *NodeImpl) (err error) {
	var is64bit bool
	switch n.Instruction {
	case MOVD:
		is64bit = true
	case MOVW:
	default:
		return errorEncodingUnsupported(n)
	}

	dstRegBits, err := intRegisterOrSPBits(n.DstReg)
	if err != nil {
		return err
	}
	// MOV (bitmask immediate) is the alias of ORR with the zero register as the source.
	return a.encodeLogicalImmediate(n, 0b01, is64bit, zeroRegisterBits, dstRegBits)
}

// encodeLogicalImmediate encodes as Logical (immediate) in
// https://developer.arm.com/documentation/ddi0596/2021-12/Index-by-Encoding/Data-Processing----Immediate?lang=en
//
// 32-bit instructions only look at the lower 32 bits of the constant.
func (a *AssemblerImpl) encodeLogicalImmediate(n *NodeImpl, opc byte, is64bit bool, srcRegBits, dstRegBits byte) error {
	c := uint64(n.SrcConst)
	if !is64bit {
		c = ReplicateUint32(uint32(c))
	}

	imm, ok := TryEncodeBitMask(c)
	if !ok {
		return fmt.Errorf("%w: 0x%x for %s", ErrNotBitMaskImmediate, uint64(n.SrcConst), InstructionName(n.Instruction))
	}

	var sf uint32
	if is64bit {
		sf = 0b1
	}
	a.Buf.AppendUint32(sf<<31 | uint32(opc)<<29 | 0b100100<<23 | imm.Bits() | uint32(srcRegBits)<<5 | uint32(dstRegBits))
	return nil
}

const zeroRegisterBits byte = 0b11111

func isIntRegister(r asm.Register) bool {
	return REG_R0 <= r && r <= REGZERO
}

func intRegisterBits(r asm.Register) (ret byte, err error) {
	if !isIntRegister(r) {
		err = fmt.Errorf("%s is not integer", RegisterName(r))
	} else {
		ret = byte(r - REG_R0)
	}
	return
}

func intRegisterOrSPBits(r asm.Register) (ret byte, err error) {
	switch {
	case r == REGSP:
		ret = 0b11111
	case r == REGZERO:
		err = fmt.Errorf("%s cannot be the destination as 31 encodes RSP", RegisterName(r))
	default:
		ret, err = intRegisterBits(r)
	}
	return
}
