package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/xyproto/env/v2"

	"github.com/tetratelabs/bitmaskimm/internal/asm"
	"github.com/tetratelabs/bitmaskimm/internal/asm/arm64"
	arm64debug "github.com/tetratelabs/bitmaskimm/internal/asm/arm64_debug"
	"github.com/tetratelabs/bitmaskimm/internal/version"
)

const (
	// envWidth is the default of the -w flag of encode.
	envWidth = "BITMASKIMM_WIDTH"
	// envFormat is the default of the -format flag of encode.
	envFormat = "BITMASKIMM_FORMAT"
)

func main() {
	doMain(os.Stdout, os.Stderr, os.Exit)
}

// doMain is separated out for the purpose of unit testing.
func doMain(stdOut io.Writer, stdErr io.Writer, exit func(code int)) {
	flag.CommandLine.SetOutput(stdErr)

	var help bool
	flag.BoolVar(&help, "h", false, "print usage")

	flag.Parse()

	if help || flag.NArg() == 0 {
		printUsage(stdErr)
		exit(0)
	}

	subCmd := flag.Arg(0)
	switch subCmd {
	case "encode":
		doEncode(flag.Args()[1:], stdOut, stdErr, exit)
	case "decode":
		doDecode(flag.Args()[1:], stdOut, stdErr, exit)
	case "asm":
		doAsm(flag.Args()[1:], stdOut, stdErr, exit)
	case "version":
		fmt.Fprintln(stdOut, version.GetBitmaskimmVersion())
		exit(0)
	default:
		fmt.Fprintln(stdErr, "invalid command")
		printUsage(stdErr)
		exit(1)
	}
}

func doEncode(args []string, stdOut io.Writer, stdErr io.Writer, exit func(code int)) {
	flags := flag.NewFlagSet("encode", flag.ExitOnError)
	flags.SetOutput(stdErr)

	var help bool
	flags.BoolVar(&help, "h", false, "print usage")

	var width string
	flags.StringVar(&width, "w", env.Str(envWidth, "64"),
		"Width of the operand in bits: 32 or 64. 32-bit values are replicated to 64 bits before encoding. "+
			"Defaults to $"+envWidth+" when set.")

	var format string
	flags.StringVar(&format, "format", env.Str(envFormat, "text"),
		"Output format: text prints the N, immr and imms fields, "+
			"hex prints them placed in an instruction word. Defaults to $"+envFormat+" when set.")

	_ = flags.Parse(args)

	if help {
		printEncodeUsage(stdErr, flags)
		exit(0)
	}

	var bitSize int
	switch width {
	case "32":
		bitSize = 32
	case "64":
		bitSize = 64
	default:
		fmt.Fprintf(stdErr, "invalid width: %s\n", width)
		exit(1)
	}

	if format != "text" && format != "hex" {
		fmt.Fprintf(stdErr, "invalid format: %s\n", format)
		exit(1)
	}

	if flags.NArg() < 1 {
		fmt.Fprintln(stdErr, "missing value to encode")
		printEncodeUsage(stdErr, flags)
		exit(1)
	}

	var notRepresentable bool
	for _, arg := range flags.Args() {
		v, err := strconv.ParseUint(arg, 0, bitSize)
		if err != nil {
			fmt.Fprintf(stdErr, "invalid value: %v\n", err)
			exit(1)
		}

		operand := v
		if bitSize == 32 {
			operand = arm64.ReplicateUint32(uint32(v))
		}

		imm, ok := arm64.TryEncodeBitMask(operand)
		switch {
		case !ok:
			fmt.Fprintf(stdOut, "0x%x not representable\n", v)
			notRepresentable = true
		case format == "hex":
			fmt.Fprintf(stdOut, "0x%x 0x%08x\n", v, imm.Bits())
		default:
			fmt.Fprintf(stdOut, "0x%x %s\n", v, imm)
		}
	}

	if notRepresentable {
		exit(1)
	}
	exit(0)
}

func doDecode(args []string, stdOut io.Writer, stdErr io.Writer, exit func(code int)) {
	flags := flag.NewFlagSet("decode", flag.ExitOnError)
	flags.SetOutput(stdErr)

	var help bool
	flags.BoolVar(&help, "h", false, "print usage")

	_ = flags.Parse(args)

	if help {
		printDecodeUsage(stdErr, flags)
		exit(0)
	}

	if flags.NArg() != 3 {
		fmt.Fprintln(stdErr, "decode takes <N> <immr> <imms>")
		printDecodeUsage(stdErr, flags)
		exit(1)
	}

	fields := [3]byte{}
	for i, limit := range [3]uint64{1, 63, 63} {
		arg := flags.Arg(i)
		v, err := strconv.ParseUint(arg, 0, 8)
		if err != nil || v > limit {
			fmt.Fprintf(stdErr, "invalid %s: %s\n", [3]string{"N", "immr", "imms"}[i], arg)
			exit(1)
		}
		fields[i] = byte(v)
	}

	v, ok := arm64.DecodeBitMasks(fields[0], fields[2], fields[1])
	if !ok {
		fmt.Fprintln(stdErr, "reserved encoding")
		exit(1)
	}
	fmt.Fprintf(stdOut, "0x%x\n", v)
	exit(0)
}

func doAsm(args []string, stdOut io.Writer, stdErr io.Writer, exit func(code int)) {
	flags := flag.NewFlagSet("asm", flag.ExitOnError)
	flags.SetOutput(stdErr)

	var help bool
	flags.BoolVar(&help, "h", false, "print usage")

	var verify bool
	flags.BoolVar(&verify, "verify", false, "cross-check the instruction word with Go's assembler")

	_ = flags.Parse(args)

	if help {
		printAsmUsage(stdErr, flags)
		exit(0)
	}

	if flags.NArg() < 1 {
		fmt.Fprintln(stdErr, "missing instruction")
		printAsmUsage(stdErr, flags)
		exit(1)
	}

	n := parseInstruction(flags.Args(), stdErr, exit)

	code, err := assemble(n, verify)
	if err != nil {
		fmt.Fprintf(stdErr, "error assembling %s: %v\n", n, err)
		exit(1)
	}
	fmt.Fprintln(stdOut, hex.EncodeToString(code))
	exit(0)
}

// parseInstruction returns the node for `<inst> <operands...>`.
func parseInstruction(args []string, stdErr io.Writer, exit func(code int)) *arm64.NodeImpl {
	inst, ok := arm64.InstructionByName(args[0])
	if !ok || inst == arm64.NOP {
		fmt.Fprintf(stdErr, "invalid instruction: %s\n", args[0])
		exit(1)
	}

	n := &arm64.NodeImpl{Instruction: inst}
	operands := args[1:]
	switch inst {
	case arm64.TST, arm64.TSTW:
		if len(operands) != 2 {
			fmt.Fprintf(stdErr, "%s takes <rn> <imm>\n", arm64.InstructionName(inst))
			exit(1)
		}
		n.Types = arm64.OperandTypesRegisterAndConstToNone
		n.SrcReg = parseRegister(operands[0], stdErr, exit)
		n.SrcConst = parseConst(operands[1], stdErr, exit)
	case arm64.MOVD, arm64.MOVW:
		if len(operands) != 2 {
			fmt.Fprintf(stdErr, "%s takes <rd> <imm>\n", arm64.InstructionName(inst))
			exit(1)
		}
		n.Types = arm64.OperandTypesConstToRegister
		n.DstReg = parseRegister(operands[0], stdErr, exit)
		n.SrcConst = parseConst(operands[1], stdErr, exit)
	default:
		if len(operands) != 3 {
			fmt.Fprintf(stdErr, "%s takes <rd> <rn> <imm>\n", arm64.InstructionName(inst))
			exit(1)
		}
		n.Types = arm64.OperandTypesRegisterAndConstToRegister
		n.DstReg = parseRegister(operands[0], stdErr, exit)
		n.SrcReg = parseRegister(operands[1], stdErr, exit)
		n.SrcConst = parseConst(operands[2], stdErr, exit)
	}
	return n
}

func parseRegister(s string, stdErr io.Writer, exit func(code int)) asm.Register {
	r, ok := arm64.RegisterByName(s)
	if !ok {
		fmt.Fprintf(stdErr, "invalid register: %s\n", s)
		exit(1)
	}
	return r
}

// parseConst accepts both signed and unsigned 64-bit integer literals.
func parseConst(s string, stdErr io.Writer, exit func(code int)) asm.ConstantValue {
	var c int64
	var err error
	if strings.HasPrefix(s, "-") {
		c, err = strconv.ParseInt(s, 0, 64)
	} else {
		var u uint64
		u, err = strconv.ParseUint(s, 0, 64)
		c = int64(u)
	}
	if err != nil {
		fmt.Fprintf(stdErr, "invalid immediate: %v\n", err)
		exit(1)
	}
	return c
}

// assemble returns a copy of the machine code of n.
func assemble(n *arm64.NodeImpl, verify bool) (code []byte, err error) {
	seg := asm.NewCodeSegment(nil)
	defer func() {
		if unmapErr := seg.Unmap(); err == nil {
			err = unmapErr
		}
	}()

	if verify {
		var da *arm64debug.DebugAssembler
		if da, err = arm64debug.NewDebugAssembler(); err != nil {
			return
		}
		switch n.Types {
		case arm64.OperandTypesRegisterAndConstToNone:
			da.CompileRegisterAndConstToNone(n.Instruction, n.SrcReg, n.SrcConst)
		case arm64.OperandTypesConstToRegister:
			da.CompileConstToRegister(n.Instruction, n.SrcConst, n.DstReg)
		default:
			da.CompileRegisterAndConstToRegister(n.Instruction, n.SrcReg, n.SrcConst, n.DstReg)
		}
		if code, err = da.Assemble(seg); err != nil {
			return
		}
	} else {
		a := arm64.NewAssemblerImpl()
		a.Buf = seg.Next()
		if err = a.EncodeNode(n); err != nil {
			return
		}
		code = a.Buf.Bytes()
	}

	// The segment is unmapped on return.
	code = append([]byte(nil), code...)
	return
}

func printUsage(stdErr io.Writer) {
	fmt.Fprintln(stdErr, "bitmaskimm CLI")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Usage:\n  bitmaskimm <command>")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Commands:")
	fmt.Fprintln(stdErr, "  encode\tEncodes values as arm64 logical immediates")
	fmt.Fprintln(stdErr, "  decode\tDecodes an N:immr:imms triple")
	fmt.Fprintln(stdErr, "  asm\t\tAssembles a logical (immediate) instruction")
	fmt.Fprintln(stdErr, "  version\tDisplays the version of bitmaskimm CLI")
}

func printEncodeUsage(stdErr io.Writer, flags *flag.FlagSet) {
	fmt.Fprintln(stdErr, "bitmaskimm CLI")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Usage:\n  bitmaskimm encode <options> <value>...")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Options:")
	flags.PrintDefaults()
}

func printDecodeUsage(stdErr io.Writer, flags *flag.FlagSet) {
	fmt.Fprintln(stdErr, "bitmaskimm CLI")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Usage:\n  bitmaskimm decode <N> <immr> <imms>")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Options:")
	flags.PrintDefaults()
}

func printAsmUsage(stdErr io.Writer, flags *flag.FlagSet) {
	fmt.Fprintln(stdErr, "bitmaskimm CLI")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Usage:\n  bitmaskimm asm <options> <instruction> <operands...>")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Operands:")
	fmt.Fprintln(stdErr, "  AND, ANDW, ANDS, ANDSW, EOR, EORW, ORR, ORRW\t<rd> <rn> <imm>")
	fmt.Fprintln(stdErr, "  TST, TSTW\t\t\t\t\t<rn> <imm>")
	fmt.Fprintln(stdErr, "  MOVD, MOVW\t\t\t\t\t<rd> <imm>")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Options:")
	flags.PrintDefaults()
}
