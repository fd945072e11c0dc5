package lir

import (
	"fmt"
	"glulxc/src/ir/lir/types"
	"math"
	"strconv"
	"strings"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Constant is a Value that is known at compile time. Constants may be used as instruction operands and as global
// variable initialisers.
type Constant interface {
	Value
	isConstant()
}

// ConstInt is an integer constant. V holds the value sign extended from the bit width of Typ.
type ConstInt struct {
	Typ *types.IntType
	V   int64
}

// ConstFloat is a floating point constant.
type ConstFloat struct {
	Typ *types.FloatType
	V   float64
}

// ConstNull is the null pointer.
type ConstNull struct{}

// Undef is a value of unspecified bit pattern.
type Undef struct {
	Typ types.Type
}

// ConstZero is the all zero value of any type.
type ConstZero struct {
	Typ types.Type
}

// ConstString is a byte array initialiser.
type ConstString struct {
	Typ *types.ArrayType
	V   []byte
}

// ConstArray is an array initialiser.
type ConstArray struct {
	Typ   *types.ArrayType
	Elems []Constant
}

// ConstStruct is a struct initialiser.
type ConstStruct struct {
	Typ    *types.StructType
	Fields []Constant
}

// ConstSymbol is the address of a global or function displaced by a constant byte offset.
type ConstSymbol struct {
	Sym Value // *Global or *Function.
	Off int64
}

// BlockAddress is the address of a basic block, as used by computed goto.
type BlockAddress struct {
	Func  *Function
	Block *Block
}

// InlineAsm is an inline assembler fragment used as call target.
type InlineAsm struct {
	Asm         string
	Constraints string
}

// ---------------------
// ----- Functions -----
// ---------------------

// CreateConstInt creates an integer constant of type t. The value is truncated to the width of t and sign extended.
func CreateConstInt(t types.Type, v int64) *ConstInt {
	it, ok := t.(*types.IntType)
	if !ok {
		panic(fmt.Sprintf("cannot create integer constant of type %s", t))
	}
	if it.Bits < 64 {
		shift := uint(64 - it.Bits)
		v = (v << shift) >> shift
	}
	if it.Bits == 1 {
		// i1 true is stored as 1, not -1.
		v &= 1
	}
	return &ConstInt{Typ: it, V: v}
}

// CreateConstFloat creates a floating point constant of type t.
func CreateConstFloat(t types.Type, v float64) *ConstFloat {
	ft, ok := t.(*types.FloatType)
	if !ok {
		panic(fmt.Sprintf("cannot create floating point constant of type %s", t))
	}
	if ft.Bits == 32 {
		v = float64(float32(v))
	}
	return &ConstFloat{Typ: ft, V: v}
}

// ConstI32 returns the i32 constant v.
func ConstI32(v int64) *ConstInt {
	return CreateConstInt(types.I32, v)
}

// ConstF32 returns the f32 constant v.
func ConstF32(v float64) *ConstFloat {
	return CreateConstFloat(types.F32, v)
}

// ZExt returns the value of c zero extended from its bit width.
func (c *ConstInt) ZExt() uint64 {
	if c.Typ.Bits >= 64 {
		return uint64(c.V)
	}
	return uint64(c.V) & (1<<uint(c.Typ.Bits) - 1)
}

func (c *ConstInt) Type() types.Type { return c.Typ }
func (c *ConstInt) Name() string     { return strconv.FormatInt(c.V, 10) }
func (c *ConstInt) String() string   { return fmt.Sprintf("%s %d", c.Typ, c.V) }
func (c *ConstInt) isConstant()      {}

func (c *ConstFloat) Type() types.Type { return c.Typ }
func (c *ConstFloat) Name() string {
	switch {
	case math.IsNaN(c.V):
		return "nan"
	case math.IsInf(c.V, 1):
		return "inf"
	case math.IsInf(c.V, -1):
		return "-inf"
	}
	s := strconv.FormatFloat(c.V, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}
func (c *ConstFloat) String() string { return fmt.Sprintf("%s %s", c.Typ, c.Name()) }
func (c *ConstFloat) isConstant()    {}

func (c *ConstNull) Type() types.Type { return types.Ptr }
func (c *ConstNull) Name() string     { return "null" }
func (c *ConstNull) String() string   { return "ptr null" }
func (c *ConstNull) isConstant()      {}

func (c *Undef) Type() types.Type { return c.Typ }
func (c *Undef) Name() string     { return "undef" }
func (c *Undef) String() string   { return fmt.Sprintf("%s undef", c.Typ) }
func (c *Undef) isConstant()      {}

func (c *ConstZero) Type() types.Type { return c.Typ }
func (c *ConstZero) Name() string     { return "zeroinit" }
func (c *ConstZero) String() string   { return fmt.Sprintf("%s zeroinit", c.Typ) }
func (c *ConstZero) isConstant()      {}

func (c *ConstString) Type() types.Type { return c.Typ }
func (c *ConstString) Name() string {
	sb := strings.Builder{}
	sb.WriteRune('"')
	for _, e1 := range c.V {
		if e1 >= 0x20 && e1 < 0x7f && e1 != '"' && e1 != '\\' {
			sb.WriteByte(e1)
		} else {
			sb.WriteString(fmt.Sprintf("\\%02X", e1))
		}
	}
	sb.WriteRune('"')
	return sb.String()
}
func (c *ConstString) String() string { return fmt.Sprintf("%s %s", c.Typ, c.Name()) }
func (c *ConstString) isConstant()    {}

func (c *ConstArray) Type() types.Type { return c.Typ }
func (c *ConstArray) Name() string {
	sb := strings.Builder{}
	sb.WriteRune('[')
	for i1, e1 := range c.Elems {
		if i1 > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(e1.Name())
	}
	sb.WriteRune(']')
	return sb.String()
}
func (c *ConstArray) String() string { return fmt.Sprintf("%s %s", c.Typ, c.Name()) }
func (c *ConstArray) isConstant()    {}

func (c *ConstStruct) Type() types.Type { return c.Typ }
func (c *ConstStruct) Name() string {
	sb := strings.Builder{}
	sb.WriteRune('{')
	for i1, e1 := range c.Fields {
		if i1 > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(e1.Name())
	}
	sb.WriteRune('}')
	return sb.String()
}
func (c *ConstStruct) String() string { return fmt.Sprintf("%s %s", c.Typ, c.Name()) }
func (c *ConstStruct) isConstant()    {}

func (c *ConstSymbol) Type() types.Type { return types.Ptr }
func (c *ConstSymbol) Name() string {
	if c.Off != 0 {
		return fmt.Sprintf("%s+%d", c.Sym.Name(), c.Off)
	}
	return c.Sym.Name()
}
func (c *ConstSymbol) String() string { return "ptr " + c.Name() }
func (c *ConstSymbol) isConstant()    {}

func (c *BlockAddress) Type() types.Type { return types.Ptr }
func (c *BlockAddress) Name() string {
	return fmt.Sprintf("blockaddress(%s, %s)", c.Func.Name(), c.Block.Label())
}
func (c *BlockAddress) String() string { return "ptr " + c.Name() }
func (c *BlockAddress) isConstant()    {}

func (c *InlineAsm) Type() types.Type { return types.Ptr }
func (c *InlineAsm) Name() string     { return fmt.Sprintf("asm %q, %q", c.Asm, c.Constraints) }
func (c *InlineAsm) String() string   { return c.Name() }
func (c *InlineAsm) isConstant()      {}

// IsConstant reports whether v is known at compile time.
func IsConstant(v Value) bool {
	switch v.(type) {
	case Constant, *Global, *Function:
		return true
	}
	return false
}
