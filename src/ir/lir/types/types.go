// Package types defines LIR data types.
package types

import (
	"fmt"
	"strings"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Kind identifies the class of a Type.
type Kind uint8

// Type is an LIR data type.
type Type interface {
	Kind() Kind     // Class of type.
	String() string // Textual LIR representation.
}

// IntType is an integer type of a fixed bit width.
type IntType struct {
	Bits int
}

// FloatType is an IEEE binary floating point type, either 32 or 64 bits wide.
type FloatType struct {
	Bits int
}

// PointerType is an opaque pointer.
type PointerType struct{}

// VoidType is the empty type of instructions that produce no value.
type VoidType struct{}

// LabelType is the type of basic block references.
type LabelType struct{}

// ArrayType is a fixed length sequence of Elem.
type ArrayType struct {
	Elem Type
	Len  int
}

// StructType is an ordered sequence of fields. All LIR structs are packed.
type StructType struct {
	Fields []Type
}

// FuncType is the signature of a function.
type FuncType struct {
	Ret      Type
	Params   []Type
	Variadic bool
}

// ---------------------
// ----- Constants -----
// ---------------------

const (
	VoidKind Kind = iota
	IntKind
	FloatKind
	PointerKind
	ArrayKind
	StructKind
	FuncKind
	LabelKind
)

// -------------------
// ----- Globals -----
// -------------------

// Predefined primitive types. Primitive types are compared by identity, which is why the constructors
// return these singletons where possible.
var (
	Void  = &VoidType{}
	Label = &LabelType{}
	Ptr   = &PointerType{}
	I1    = &IntType{Bits: 1}
	I8    = &IntType{Bits: 8}
	I16   = &IntType{Bits: 16}
	I32   = &IntType{Bits: 32}
	I64   = &IntType{Bits: 64}
	F32   = &FloatType{Bits: 32}
	F64   = &FloatType{Bits: 64}
)

// ---------------------
// ----- Functions -----
// ---------------------

// Int returns the integer type of the given bit width.
func Int(bits int) *IntType {
	switch bits {
	case 1:
		return I1
	case 8:
		return I8
	case 16:
		return I16
	case 32:
		return I32
	case 64:
		return I64
	}
	return &IntType{Bits: bits}
}

// Float returns the floating point type of the given bit width.
func Float(bits int) *FloatType {
	if bits == 64 {
		return F64
	}
	return F32
}

func (t *IntType) Kind() Kind     { return IntKind }
func (t *FloatType) Kind() Kind   { return FloatKind }
func (t *PointerType) Kind() Kind { return PointerKind }
func (t *VoidType) Kind() Kind    { return VoidKind }
func (t *LabelType) Kind() Kind   { return LabelKind }
func (t *ArrayType) Kind() Kind   { return ArrayKind }
func (t *StructType) Kind() Kind  { return StructKind }
func (t *FuncType) Kind() Kind    { return FuncKind }

func (t *IntType) String() string { return fmt.Sprintf("i%d", t.Bits) }

func (t *FloatType) String() string { return fmt.Sprintf("f%d", t.Bits) }

func (t *PointerType) String() string { return "ptr" }

func (t *VoidType) String() string { return "void" }

func (t *LabelType) String() string { return "label" }

func (t *ArrayType) String() string { return fmt.Sprintf("[%d x %s]", t.Len, t.Elem.String()) }

func (t *StructType) String() string {
	sb := strings.Builder{}
	sb.WriteRune('{')
	for i1, e1 := range t.Fields {
		if i1 > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(e1.String())
	}
	sb.WriteRune('}')
	return sb.String()
}

func (t *FuncType) String() string {
	sb := strings.Builder{}
	sb.WriteRune('(')
	for i1, e1 := range t.Params {
		if i1 > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(e1.String())
	}
	if t.Variadic {
		if len(t.Params) > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("...")
	}
	sb.WriteString("): ")
	sb.WriteString(t.Ret.String())
	return sb.String()
}

// Equal reports whether a and b describe the same type.
func Equal(a, b Type) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.Kind() != b.Kind() {
		return false
	}
	switch x := a.(type) {
	case *IntType:
		return x.Bits == b.(*IntType).Bits
	case *FloatType:
		return x.Bits == b.(*FloatType).Bits
	case *ArrayType:
		y := b.(*ArrayType)
		return x.Len == y.Len && Equal(x.Elem, y.Elem)
	case *StructType:
		y := b.(*StructType)
		if len(x.Fields) != len(y.Fields) {
			return false
		}
		for i1 := range x.Fields {
			if !Equal(x.Fields[i1], y.Fields[i1]) {
				return false
			}
		}
		return true
	case *FuncType:
		y := b.(*FuncType)
		if x.Variadic != y.Variadic || len(x.Params) != len(y.Params) || !Equal(x.Ret, y.Ret) {
			return false
		}
		for i1 := range x.Params {
			if !Equal(x.Params[i1], y.Params[i1]) {
				return false
			}
		}
		return true
	}
	// Pointer, void and label types have a single instance each.
	return true
}

// IsInt reports whether t is an integer type.
func IsInt(t Type) bool {
	return t != nil && t.Kind() == IntKind
}

// IsFloat reports whether t is a floating point type.
func IsFloat(t Type) bool {
	return t != nil && t.Kind() == FloatKind
}

// IsAggregate reports whether t is an array or struct type.
func IsAggregate(t Type) bool {
	return t != nil && (t.Kind() == ArrayKind || t.Kind() == StructKind)
}

// Bits returns the bit width of integer and floating point types, 32 for pointers and 0 otherwise.
func Bits(t Type) int {
	switch x := t.(type) {
	case *IntType:
		return x.Bits
	case *FloatType:
		return x.Bits
	case *PointerType:
		return 32
	}
	return 0
}

// Size returns the storage size of t in bytes. Aggregates are packed: fields and elements follow each other without
// padding.
func Size(t Type) int {
	switch x := t.(type) {
	case *IntType:
		return (x.Bits + 7) / 8
	case *FloatType:
		return x.Bits / 8
	case *PointerType:
		return 4
	case *ArrayType:
		return x.Len * Size(x.Elem)
	case *StructType:
		n := 0
		for _, e1 := range x.Fields {
			n += Size(e1)
		}
		return n
	}
	return 0
}

// FieldOffset returns the byte offset of field n of struct type t.
func FieldOffset(t *StructType, n int) int {
	off := 0
	for i1 := 0; i1 < n; i1++ {
		off += Size(t.Fields[i1])
	}
	return off
}
