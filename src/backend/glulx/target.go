// Package glulx lowers LIR modules to Glulx assembly as accepted by glasm. The Glulx VM has no registers, is big
// endian and only knows 32-bit values. Functions keep their values in numbered locals and allocate their frame on
// the heap.
//
// Compilation of a function runs these stages over an exclusively owned *Function:
//
//	selection        LIR to machine instructions, including custom lowering of calls and compare diamonds
//	phi elimination  PHI pseudos become copies at the end of the predecessors
//	frame lowering   heap allocation prologue and epilogue
//	store folding    copies into memory are folded into the instruction that computed the value
//	frame indices    frame slots become frame base plus offset accesses
//	local colouring  optional, lets registers with disjoint live ranges share a local
//	explicit locals  virtual registers become numbered locals
//
// Emission then prints all functions and globals through a section multiplexer.
package glulx

import (
	"glulxc/src/ir/lir"
	"glulxc/src/ir/lir/types"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Action tells the selector how an operation on a type is handled.
type Action uint8

// AddrMode is an addressing mode query: BaseGV + BaseOffs + BaseReg + Scale*IndexReg.
type AddrMode struct {
	BaseGV   lir.Value // Global base address, or nil.
	BaseOffs int64     // Constant displacement.
	HasBase  bool      // Set true if a base register is used.
	Scale    int64     // Scale of the index register; 0 if no index is used.
}

// ---------------------
// ----- Constants -----
// ---------------------

// DataLayout is the LLVM style data layout string of the Glulx target: big endian, ELF mangling, 32-bit pointers,
// byte alignment for all scalars, 32-bit native integers and a 32-bit natural stack alignment.
const DataLayout = "E-m:e-p:32:8-i32:8-n32-f32:8-S32"

const (
	WordSize   = 4 // Size of pointers and native integers in bytes.
	MinAlign   = 1 // Minimum alignment of any type.
	StackAlign = 4 // Natural stack alignment, used for variadic argument slots.
)

const (
	Legal   Action = iota // Selected by a pattern.
	Promote               // Computed in a 32-bit local and masked back to its width.
	Expand                // Replaced by a runtime library call.
	Custom                // Lowered by hand.
	Illegal               // Reported as a diagnostic.
)

// -------------------
// ----- Globals -----
// -------------------

// supportedCallConvs lists the calling conventions the backend accepts. All of them share the Glulx calling
// sequence.
var supportedCallConvs = map[lir.CallConv]bool{
	lir.CallConvC:            true,
	lir.CallConvFast:         true,
	lir.CallConvCold:         true,
	lir.CallConvPreserveMost: true,
	lir.CallConvPreserveAll:  true,
	lir.CallConvCxxFastTLS:   true,
}

// expanded maps the operations without Glulx instruction to their runtime library function.
var expanded = map[lir.Opcode]string{
	lir.OpUDiv:   "__udivsi3",
	lir.OpURem:   "__umodsi3",
	lir.OpUIToFP: "__floatunsisf",
	lir.OpFPToUI: "__fixunssfsi",
}

// ---------------------
// ----- Functions -----
// ---------------------

func (a Action) String() string {
	switch a {
	case Legal:
		return "legal"
	case Promote:
		return "promote"
	case Expand:
		return "expand"
	case Custom:
		return "custom"
	}
	return "illegal"
}

// CallConvSupported reports whether functions and calls of calling convention cc can be lowered.
func CallConvSupported(cc lir.CallConv) bool {
	return supportedCallConvs[cc]
}

// LibCall returns the runtime function replacing op, if op is expanded.
func LibCall(op lir.Opcode) (string, bool) {
	s, ok := expanded[op]
	return s, ok
}

// IsLegalType reports whether values of type t fit a Glulx local.
func IsLegalType(t types.Type) bool {
	switch x := t.(type) {
	case *types.IntType:
		return x.Bits <= 32
	case *types.FloatType:
		return x.Bits == 32
	case *types.PointerType:
		return true
	}
	return false
}

// OperationAction returns how operation op on operands of type t is handled.
func OperationAction(op lir.Opcode, t types.Type) Action {
	if !IsLegalType(t) {
		return Illegal
	}
	narrow := types.IsInt(t) && types.Bits(t) < 32
	switch op {
	case lir.OpFPToUI:
		return Expand
	case lir.OpUDiv, lir.OpURem, lir.OpUIToFP:
		if narrow {
			// Zero extended values are never negative.
			return Legal
		}
		return Expand
	case lir.OpSelect, lir.OpICmp, lir.OpFCmp, lir.OpCall, lir.OpVAArg, lir.OpSwitch, lir.OpFNeg, lir.OpPhi:
		return Custom
	case lir.OpIndirectBr:
		return Illegal
	case lir.OpAdd, lir.OpSub, lir.OpMul, lir.OpShl, lir.OpSDiv, lir.OpSRem, lir.OpAShr:
		if narrow {
			return Promote
		}
	}
	return Legal
}

// Alignment returns the preferred and the minimum alignment of type t in bytes. The data layout aligns every type
// to a single byte.
func Alignment(t types.Type) (pref, min int) {
	return MinAlign, MinAlign
}

// IsLegalAddressingMode reports whether am can be expressed by a single Glulx operand. Glulx operands address
// memory only through a constant address or a local holding an address.
func IsLegalAddressingMode(am AddrMode) bool {
	return am.BaseGV == nil && am.BaseOffs == 0 && am.Scale == 0
}

// VarargSlot returns the alignment of a variadic argument of type t in the caller's argument buffer.
func VarargSlot(t types.Type) int {
	if s := types.Size(t); s > StackAlign {
		return s
	}
	return StackAlign
}
