// Package lir provides the light intermediate representation (LIR) consumed by the Glulx backend. LIR is a typed
// SSA representation: a Module holds globals and functions, a Function holds basic blocks and a Block holds
// instructions, the last of which is the block's terminator.
package lir

import (
	"glulxc/src/ir/lir/types"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Value defines an LIR operand. Instructions that produce a result, parameters, constants, globals and functions
// are all Values.
type Value interface {
	Type() types.Type // Data type of the value.
	Name() string     // Operand reference, such as %x, @g or 42.
	String() string   // Textual LIR representation of the value.
}

// Opcode identifies the operation of an Instruction.
type Opcode uint8

// IntPredicate is the condition of an integer comparison.
type IntPredicate uint8

// FloatPredicate is the condition of a floating point comparison. The encoding follows the usual four bit layout:
// bit 0 is "equal", bit 1 "greater", bit 2 "less" and bit 3 "unordered".
type FloatPredicate uint8

// TailKind marks call instructions in tail position.
type TailKind uint8

// ---------------------
// ----- Constants -----
// ---------------------

const (
	OpInvalid Opcode = iota

	// Binary arithmetic.
	OpAdd
	OpSub
	OpMul
	OpSDiv
	OpUDiv
	OpSRem
	OpURem
	OpAnd
	OpOr
	OpXor
	OpShl
	OpLShr
	OpAShr
	OpFAdd
	OpFSub
	OpFMul
	OpFDiv
	OpFRem

	// Unary arithmetic.
	OpFNeg

	// Comparison and selection.
	OpICmp
	OpFCmp
	OpSelect

	// Casts.
	OpTrunc
	OpZExt
	OpSExt
	OpFPToSI
	OpFPToUI
	OpSIToFP
	OpUIToFP
	OpBitcast
	OpPtrToInt
	OpIntToPtr

	// Memory.
	OpAlloca
	OpLoad
	OpStore
	OpGEP

	// Calls and variadic arguments.
	OpCall
	OpVAArg

	// SSA.
	OpPhi

	// Terminators.
	OpBr
	OpCondBr
	OpSwitch
	OpIndirectBr
	OpRet
	OpUnreachable
)

const (
	IntEQ IntPredicate = iota
	IntNE
	IntUGT
	IntUGE
	IntULT
	IntULE
	IntSGT
	IntSGE
	IntSLT
	IntSLE
)

const (
	FloatFalse FloatPredicate = iota
	FloatOEQ
	FloatOGT
	FloatOGE
	FloatOLT
	FloatOLE
	FloatONE
	FloatORD
	FloatUNO
	FloatUEQ
	FloatUGT
	FloatUGE
	FloatULT
	FloatULE
	FloatUNE
	FloatTrue
)

const (
	NoTail TailKind = iota
	Tail
	MustTail
)

// -------------------
// ----- Globals -----
// -------------------

// opNames provides the textual LIR mnemonics of every Opcode.
var opNames = [...]string{
	OpInvalid:     "invalid",
	OpAdd:         "add",
	OpSub:         "sub",
	OpMul:         "mul",
	OpSDiv:        "sdiv",
	OpUDiv:        "udiv",
	OpSRem:        "srem",
	OpURem:        "urem",
	OpAnd:         "and",
	OpOr:          "or",
	OpXor:         "xor",
	OpShl:         "shl",
	OpLShr:        "lshr",
	OpAShr:        "ashr",
	OpFAdd:        "fadd",
	OpFSub:        "fsub",
	OpFMul:        "fmul",
	OpFDiv:        "fdiv",
	OpFRem:        "frem",
	OpFNeg:        "fneg",
	OpICmp:        "icmp",
	OpFCmp:        "fcmp",
	OpSelect:      "select",
	OpTrunc:       "trunc",
	OpZExt:        "zext",
	OpSExt:        "sext",
	OpFPToSI:      "fptosi",
	OpFPToUI:      "fptoui",
	OpSIToFP:      "sitofp",
	OpUIToFP:      "uitofp",
	OpBitcast:     "bitcast",
	OpPtrToInt:    "ptrtoint",
	OpIntToPtr:    "inttoptr",
	OpAlloca:      "alloca",
	OpLoad:        "load",
	OpStore:       "store",
	OpGEP:         "gep",
	OpCall:        "call",
	OpVAArg:       "va_arg",
	OpPhi:         "phi",
	OpBr:          "br",
	OpCondBr:      "br",
	OpSwitch:      "switch",
	OpIndirectBr:  "indirectbr",
	OpRet:         "ret",
	OpUnreachable: "unreachable",
}

var intPredNames = [...]string{"eq", "ne", "ugt", "uge", "ult", "ule", "sgt", "sge", "slt", "sle"}

var floatPredNames = [...]string{
	"false", "oeq", "ogt", "oge", "olt", "ole", "one", "ord",
	"uno", "ueq", "ugt", "uge", "ult", "ule", "une", "true",
}

// ---------------------
// ----- Functions -----
// ---------------------

// String returns the LIR mnemonic of the opcode.
func (op Opcode) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return "invalid"
}

// IsBinary reports whether op is a two operand arithmetic or logic operation.
func (op Opcode) IsBinary() bool {
	return op >= OpAdd && op <= OpFRem
}

// IsCast reports whether op converts a value between types.
func (op Opcode) IsCast() bool {
	return op >= OpTrunc && op <= OpIntToPtr
}

// IsTerminator reports whether op ends a basic block.
func (op Opcode) IsTerminator() bool {
	return op >= OpBr && op <= OpUnreachable
}

// LookupOpcode returns the Opcode with the given mnemonic. The conditional branch shares its mnemonic with the
// unconditional branch and is resolved by the parser.
func LookupOpcode(s string) (Opcode, bool) {
	for i1, e1 := range opNames {
		if e1 == s && Opcode(i1) != OpInvalid {
			return Opcode(i1), true
		}
	}
	return OpInvalid, false
}

func (p IntPredicate) String() string {
	if int(p) < len(intPredNames) {
		return intPredNames[p]
	}
	return "invalid"
}

// IsSigned reports whether the comparison interprets its operands as signed integers.
func (p IntPredicate) IsSigned() bool {
	return p >= IntSGT
}

// LookupIntPredicate returns the integer predicate with the given name.
func LookupIntPredicate(s string) (IntPredicate, bool) {
	for i1, e1 := range intPredNames {
		if e1 == s {
			return IntPredicate(i1), true
		}
	}
	return 0, false
}

func (p FloatPredicate) String() string {
	if int(p) < len(floatPredNames) {
		return floatPredNames[p]
	}
	return "invalid"
}

// IsUnordered reports whether the predicate holds when either operand is NaN.
func (p FloatPredicate) IsUnordered() bool {
	return p&8 != 0
}

// Ordered returns the predicate with the "unordered" bit cleared.
func (p FloatPredicate) Ordered() FloatPredicate {
	return p & 7
}

// Inverse returns the predicate that holds exactly when p does not.
func (p FloatPredicate) Inverse() FloatPredicate {
	return p ^ 15
}

// LookupFloatPredicate returns the floating point predicate with the given name.
func LookupFloatPredicate(s string) (FloatPredicate, bool) {
	for i1, e1 := range floatPredNames {
		if e1 == s {
			return FloatPredicate(i1), true
		}
	}
	return 0, false
}
