package ir

import (
	"glulxc/src/ir/lir"
	"glulxc/src/ir/lir/types"
	"glulxc/src/util"
	"log/slog"
	"sync/atomic"
)

// ---------------------
// ----- Constants -----
// ---------------------

// maxKnownBitsDepth limits the recursion of the sign bit analysis. Values deeper than this are assumed negative.
const maxKnownBitsDepth = 6

// ---------------------
// ----- Functions -----
// ---------------------

// Optimise applies the target independent rewrites to every function of Module m. With opt.NoOpt set no rewrite
// is applied.
func Optimise(opt util.Options, m *lir.Module) error {
	if opt.NoOpt {
		return nil
	}
	var total atomic.Int64
	err := forEachFunction(opt, definedFunctions(m), func(f *lir.Function) error {
		n := RewriteUnsignedDivision(f)
		if n > 0 {
			slog.Debug("rewrote unsigned division", "function", f.Name(), "count", n)
		}
		total.Add(int64(n))
		return nil
	})
	slog.Debug("optimisation done", "module", m.Name, "udiv_rewrites", total.Load())
	return err
}

// RewriteUnsignedDivision replaces udiv and urem instructions of Function f with sdiv and srem when the sign bit of
// both operands is known to be zero, in which case both forms compute the same result. It returns the number of
// rewritten instructions.
func RewriteUnsignedDivision(f *lir.Function) int {
	n := 0
	for _, e1 := range f.Blocks() {
		for _, e2 := range e1.Instructions() {
			if e2.Op != lir.OpUDiv && e2.Op != lir.OpURem {
				continue
			}
			if !SignBitZero(e2.Ops[0]) || !SignBitZero(e2.Ops[1]) {
				continue
			}
			if e2.Op == lir.OpUDiv {
				e2.Op = lir.OpSDiv
			} else {
				e2.Op = lir.OpSRem
			}
			n++
		}
	}
	return n
}

// SignBitZero reports whether the most significant bit of the integer value v is provably zero.
func SignBitZero(v lir.Value) bool {
	return signBitZero(v, 0)
}

// signBitZero implements SignBitZero. depth is the current recursion depth.
func signBitZero(v lir.Value, depth int) bool {
	if depth > maxKnownBitsDepth || !types.IsInt(v.Type()) {
		return false
	}
	switch x := v.(type) {
	case *lir.ConstInt:
		return x.ZExt()>>uint(x.Typ.Bits-1)&1 == 0
	case *lir.Instruction:
		return instSignBitZero(x, depth+1)
	}
	return false
}

// instSignBitZero reports whether the result of inst has a zero sign bit.
func instSignBitZero(inst *lir.Instruction, depth int) bool {
	bits := types.Bits(inst.Typ)
	switch inst.Op {
	case lir.OpZExt:
		// The top bit is filled with zero.
		return types.Bits(inst.Ops[0].Type()) < bits
	case lir.OpSExt, lir.OpAShr, lir.OpSRem:
		return signBitZero(inst.Ops[0], depth)
	case lir.OpSDiv:
		return signBitZero(inst.Ops[0], depth) && signBitZero(inst.Ops[1], depth)
	case lir.OpLShr:
		c, ok := inst.Ops[1].(*lir.ConstInt)
		return (ok && c.ZExt() >= 1 && c.ZExt() < uint64(bits)) || signBitZero(inst.Ops[0], depth)
	case lir.OpAnd:
		return signBitZero(inst.Ops[0], depth) || signBitZero(inst.Ops[1], depth)
	case lir.OpOr, lir.OpXor:
		return signBitZero(inst.Ops[0], depth) && signBitZero(inst.Ops[1], depth)
	case lir.OpURem:
		// The remainder is less than either operand.
		return signBitZero(inst.Ops[0], depth) || signBitZero(inst.Ops[1], depth)
	case lir.OpUDiv:
		if c, ok := inst.Ops[1].(*lir.ConstInt); ok && c.ZExt() >= 2 {
			return true
		}
		return signBitZero(inst.Ops[0], depth)
	case lir.OpSelect:
		return signBitZero(inst.Ops[1], depth) && signBitZero(inst.Ops[2], depth)
	case lir.OpPhi:
		for _, e1 := range inst.Ops {
			if e1 == lir.Value(inst) {
				continue
			}
			if !signBitZero(e1, depth) {
				return false
			}
		}
		return len(inst.Ops) > 0
	}
	return false
}
