package glulx

import (
	"fmt"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Opcode identifies a Glulx instruction or a pseudo instruction of the machine IR.
type Opcode uint16

// opFlags describes the properties of an opcode.
type opFlags uint16

// opInfo describes an opcode. Operand modes are listed in Glulx operand order: 'l' is a loaded operand, 's' a
// stored operand and 'b' a branch target. Opcodes with a repeating operand tail list the repeated modes in rest.
type opInfo struct {
	name  string
	modes string
	rest  string
	flags opFlags
}

// ---------------------
// ----- Constants -----
// ---------------------

const (
	OpInvalid Opcode = iota

	// Arithmetic and logic.
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNeg
	OpBitAnd
	OpBitOr
	OpBitXor
	OpBitNot
	OpShiftL
	OpSShiftR
	OpUShiftR
	OpSexs
	OpSexb

	// Branches.
	OpJump
	OpJz
	OpJnz
	OpJeq
	OpJne
	OpJlt
	OpJge
	OpJgt
	OpJle
	OpJltu
	OpJgeu
	OpJgtu
	OpJleu
	OpJfeq
	OpJfne
	OpJflt
	OpJfle
	OpJfgt
	OpJfge
	OpJisnan

	// Calls and exceptions.
	OpCall
	OpCallf
	OpCallfi
	OpCallfii
	OpCallfiii
	OpTailcall
	OpReturn
	OpCatch
	OpThrow

	// Data movement and memory.
	OpCopy
	OpAload
	OpAloads
	OpAloadb
	OpAstore
	OpAstores
	OpAstoreb
	OpMzero
	OpMcopy
	OpMalloc
	OpMfree

	// Floating point.
	OpNumToF
	OpFToNumZ
	OpFAdd
	OpFSub
	OpFMul
	OpFDiv
	OpFMod
	OpCeil
	OpFloor
	OpSqrt
	OpExp
	OpLog
	OpPow
	OpSin
	OpCos

	// Miscellaneous.
	OpQuit
	OpDebugtrap

	// Pseudo instructions.
	OpArgument    // Binds a register to a parameter: ARGUMENT reg index.
	OpImplicitDef // Defines a register with an unspecified value.
	OpPhi         // PHI reg value block value block ...
	OpMakeLFunc   // Function header declaring the number of locals.
	OpPush        // Pushes an argument onto the VM stack.

	numOpcodes
)

const (
	flagBranch     opFlags = 1 << iota // Has a branch target operand.
	flagTerminator                     // Control never falls through.
	flagCall                           // Calls a function.
	flagMayLoad                        // Reads memory.
	flagMayStore                       // Writes memory.
	flagSideEffects                    // Has effects not modelled by its operands.
	flagPseudo                         // Never printed as is.
)

// -------------------
// ----- Globals -----
// -------------------

var opcodes = [numOpcodes]opInfo{
	OpInvalid: {name: "invalid"},

	OpAdd:     {name: "add", modes: "lls"},
	OpSub:     {name: "sub", modes: "lls"},
	OpMul:     {name: "mul", modes: "lls"},
	OpDiv:     {name: "div", modes: "lls"},
	OpMod:     {name: "mod", modes: "lls"},
	OpNeg:     {name: "neg", modes: "ls"},
	OpBitAnd:  {name: "bitand", modes: "lls"},
	OpBitOr:   {name: "bitor", modes: "lls"},
	OpBitXor:  {name: "bitxor", modes: "lls"},
	OpBitNot:  {name: "bitnot", modes: "ls"},
	OpShiftL:  {name: "shiftl", modes: "lls"},
	OpSShiftR: {name: "sshiftr", modes: "lls"},
	OpUShiftR: {name: "ushiftr", modes: "lls"},
	OpSexs:    {name: "sexs", modes: "ls"},
	OpSexb:    {name: "sexb", modes: "ls"},

	OpJump:   {name: "jump", modes: "b", flags: flagBranch | flagTerminator},
	OpJz:     {name: "jz", modes: "lb", flags: flagBranch},
	OpJnz:    {name: "jnz", modes: "lb", flags: flagBranch},
	OpJeq:    {name: "jeq", modes: "llb", flags: flagBranch},
	OpJne:    {name: "jne", modes: "llb", flags: flagBranch},
	OpJlt:    {name: "jlt", modes: "llb", flags: flagBranch},
	OpJge:    {name: "jge", modes: "llb", flags: flagBranch},
	OpJgt:    {name: "jgt", modes: "llb", flags: flagBranch},
	OpJle:    {name: "jle", modes: "llb", flags: flagBranch},
	OpJltu:   {name: "jltu", modes: "llb", flags: flagBranch},
	OpJgeu:   {name: "jgeu", modes: "llb", flags: flagBranch},
	OpJgtu:   {name: "jgtu", modes: "llb", flags: flagBranch},
	OpJleu:   {name: "jleu", modes: "llb", flags: flagBranch},
	OpJfeq:   {name: "jfeq", modes: "lllb", flags: flagBranch},
	OpJfne:   {name: "jfne", modes: "lllb", flags: flagBranch},
	OpJflt:   {name: "jflt", modes: "llb", flags: flagBranch},
	OpJfle:   {name: "jfle", modes: "llb", flags: flagBranch},
	OpJfgt:   {name: "jfgt", modes: "llb", flags: flagBranch},
	OpJfge:   {name: "jfge", modes: "llb", flags: flagBranch},
	OpJisnan: {name: "jisnan", modes: "lb", flags: flagBranch},

	OpCall:     {name: "call", modes: "lls", flags: flagCall | flagSideEffects},
	OpCallf:    {name: "callf", modes: "ls", flags: flagCall | flagSideEffects},
	OpCallfi:   {name: "callfi", modes: "lls", flags: flagCall | flagSideEffects},
	OpCallfii:  {name: "callfii", modes: "llls", flags: flagCall | flagSideEffects},
	OpCallfiii: {name: "callfiii", modes: "lllls", flags: flagCall | flagSideEffects},
	OpTailcall: {name: "tailcall", modes: "ll", flags: flagCall | flagTerminator | flagSideEffects},
	OpReturn:   {name: "return", modes: "l", flags: flagTerminator},
	OpCatch:    {name: "catch", modes: "sb", flags: flagBranch | flagSideEffects},
	OpThrow:    {name: "throw", modes: "ll", flags: flagTerminator | flagSideEffects},

	OpCopy:    {name: "copy", modes: "ls"},
	OpAload:   {name: "aload", modes: "lls", flags: flagMayLoad},
	OpAloads:  {name: "aloads", modes: "lls", flags: flagMayLoad},
	OpAloadb:  {name: "aloadb", modes: "lls", flags: flagMayLoad},
	OpAstore:  {name: "astore", modes: "lll", flags: flagMayStore},
	OpAstores: {name: "astores", modes: "lll", flags: flagMayStore},
	OpAstoreb: {name: "astoreb", modes: "lll", flags: flagMayStore},
	OpMzero:   {name: "mzero", modes: "ll", flags: flagMayStore},
	OpMcopy:   {name: "mcopy", modes: "lll", flags: flagMayLoad | flagMayStore},
	OpMalloc:  {name: "malloc", modes: "ls", flags: flagSideEffects},
	OpMfree:   {name: "mfree", modes: "l", flags: flagSideEffects},

	OpNumToF:  {name: "numtof", modes: "ls"},
	OpFToNumZ: {name: "ftonumz", modes: "ls"},
	OpFAdd:    {name: "fadd", modes: "lls"},
	OpFSub:    {name: "fsub", modes: "lls"},
	OpFMul:    {name: "fmul", modes: "lls"},
	OpFDiv:    {name: "fdiv", modes: "lls"},
	OpFMod:    {name: "fmod", modes: "llss"},
	OpCeil:    {name: "ceil", modes: "ls"},
	OpFloor:   {name: "floor", modes: "ls"},
	OpSqrt:    {name: "sqrt", modes: "ls"},
	OpExp:     {name: "exp", modes: "ls"},
	OpLog:     {name: "log", modes: "ls"},
	OpPow:     {name: "pow", modes: "lls"},
	OpSin:     {name: "sin", modes: "ls"},
	OpCos:     {name: "cos", modes: "ls"},

	OpQuit:      {name: "quit", flags: flagTerminator | flagSideEffects},
	OpDebugtrap: {name: "debugtrap", modes: "l", flags: flagSideEffects},

	OpArgument:    {name: "ARGUMENT", modes: "sl", flags: flagPseudo},
	OpImplicitDef: {name: "IMPLICIT_DEF", modes: "s", flags: flagPseudo},
	OpPhi:         {name: "PHI", modes: "s", rest: "lb", flags: flagPseudo},
	OpMakeLFunc:   {name: "MAKE_LFUNC", modes: "l", flags: flagPseudo},
	OpPush:        {name: "PUSH", modes: "l", flags: flagPseudo | flagSideEffects},
}

// ---------------------
// ----- Functions -----
// ---------------------

func (op Opcode) String() string {
	if op < numOpcodes {
		return opcodes[op].name
	}
	return "invalid"
}

// mode returns the operand mode of operand n of opcode op.
func (op Opcode) mode(n int) byte {
	info := &opcodes[op]
	if n < len(info.modes) {
		return info.modes[n]
	}
	if len(info.rest) > 0 {
		return info.rest[(n-len(info.modes))%len(info.rest)]
	}
	panic(fmt.Sprintf("glulx: operand %d out of range for %s", n, info.name))
}

// IsBranch reports whether op may transfer control to a block operand.
func (op Opcode) IsBranch() bool {
	return opcodes[op].flags&flagBranch != 0
}

// IsTerminator reports whether control never falls through op.
func (op Opcode) IsTerminator() bool {
	return opcodes[op].flags&flagTerminator != 0
}

// IsCall reports whether op calls a function.
func (op Opcode) IsCall() bool {
	return opcodes[op].flags&flagCall != 0
}

// IsPseudo reports whether op is a pseudo instruction.
func (op Opcode) IsPseudo() bool {
	return opcodes[op].flags&flagPseudo != 0
}

// HasSideEffects reports whether op has effects beyond its operands and memory accesses.
func (op Opcode) HasSideEffects() bool {
	return opcodes[op].flags&flagSideEffects != 0
}

// MayLoad reports whether op reads memory through an address operand.
func (op Opcode) MayLoad() bool {
	return opcodes[op].flags&flagMayLoad != 0
}

// MayStore reports whether op writes memory through an address operand.
func (op Opcode) MayStore() bool {
	return opcodes[op].flags&flagMayStore != 0
}

// memScale returns the access size of the array load and store instructions, or 0 for all other opcodes.
func (op Opcode) memScale() int64 {
	switch op {
	case OpAload, OpAstore:
		return 4
	case OpAloads, OpAstores:
		return 2
	case OpAloadb, OpAstoreb:
		return 1
	}
	return 0
}

// loadOp returns the array load of the given access size.
func loadOp(size int) Opcode {
	switch size {
	case 1:
		return OpAloadb
	case 2:
		return OpAloads
	}
	return OpAload
}

// storeOp returns the array store of the given access size.
func storeOp(size int) Opcode {
	switch size {
	case 1:
		return OpAstoreb
	case 2:
		return OpAstores
	}
	return OpAstore
}

// callOp returns the call instruction passing n arguments in operands, or OpCall if the arguments must be pushed.
func callOp(n int) Opcode {
	switch n {
	case 0:
		return OpCallf
	case 1:
		return OpCallfi
	case 2:
		return OpCallfii
	case 3:
		return OpCallfiii
	}
	return OpCall
}
