package lir

import (
	"fmt"
	"glulxc/src/ir/lir/types"
	"strings"
	"sync"

	"github.com/google/btree"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Linkage describes the visibility of a global symbol outside of its module.
type Linkage uint8

// Module defines a program that contains globals and functions.
type Module struct {
	Name       string                  // Name of module, usually the source file name.
	globals    []*Global               // Global variables in declaration order.
	functions  []*Function             // Functions in declaration order.
	symbols    *btree.BTreeG[*symbol] // Name lookup of globals and functions.
	sync.Mutex                         // Mutex for synchronising access to the module during parallel execution.
}

// Global is a module level variable. Using a Global as a Value yields its address.
type Global struct {
	m        *Module
	name     string
	Typ      types.Type // Type of the variable's storage.
	Init     Constant   // Initialiser. Nil for external declarations.
	Linkage  Linkage
	Align    int  // Explicit alignment in bytes; 0 if unspecified.
	Constant bool // Set true for read-only data.
}

// symbol is an entry of the module symbol table.
type symbol struct {
	name string
	val  Value
}

// ---------------------
// ----- Constants -----
// ---------------------

const (
	External Linkage = iota
	Internal
	Private
	ExternWeak
	Common
)

// symbolTableDegree is the branching factor of the symbol table B-tree.
const symbolTableDegree = 8

// -------------------
// ----- Globals -----
// -------------------

var linkageNames = [...]string{"", "internal", "private", "extern_weak", "common"}

// ---------------------
// ----- Functions -----
// ---------------------

// CreateModule creates a new empty module with the given optional name.
func CreateModule(name string) *Module {
	m := &Module{
		globals:   make([]*Global, 0, 16),
		functions: make([]*Function, 0, 16),
		symbols: btree.NewG[*symbol](symbolTableDegree, func(a, b *symbol) bool {
			return a.name < b.name
		}),
	}
	if len(name) > 0 {
		m.Name = name
	} else {
		m.Name = "LIR Module"
	}
	return m
}

func (l Linkage) String() string {
	if int(l) < len(linkageNames) {
		return linkageNames[l]
	}
	return "invalid"
}

// LookupLinkage returns the linkage with the given name.
func LookupLinkage(s string) (Linkage, bool) {
	for i1, e1 := range linkageNames {
		if i1 > 0 && e1 == s {
			return Linkage(i1), true
		}
	}
	if s == "external" {
		return External, true
	}
	return External, false
}

// String returns a textual representation of the module.
func (m *Module) String() string {
	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("; module %s\n", m.Name))
	for _, e1 := range m.globals {
		sb.WriteString(e1.Declaration())
		sb.WriteRune('\n')
	}
	for _, e1 := range m.functions {
		sb.WriteRune('\n')
		sb.WriteString(e1.String())
		sb.WriteRune('\n')
	}
	return sb.String()
}

// CreateGlobal creates a global variable of the given type. The initialiser init may be nil for external
// declarations.
func (m *Module) CreateGlobal(name string, typ types.Type, init Constant) *Global {
	if init != nil && !types.Equal(typ, init.Type()) {
		if _, ok := init.(*ConstZero); !ok {
			panic(fmt.Sprintf("global @%s: initialiser type %s does not match %s", name, init.Type(), typ))
		}
	}
	g := &Global{
		m:    m,
		name: name,
		Typ:  typ,
		Init: init,
	}
	m.Lock()
	defer m.Unlock()
	if len(g.name) == 0 {
		g.name = fmt.Sprintf("g%d", len(m.globals))
	}
	m.globals = append(m.globals, g)
	m.symbols.ReplaceOrInsert(&symbol{name: g.name, val: g})
	return g
}

// CreateFunction creates a new function with the given signature. The function is a declaration until its first
// basic block is created.
func (m *Module) CreateFunction(name string, sig *types.FuncType) *Function {
	f := &Function{
		m:      m,
		name:   name,
		Sig:    sig,
		params: make([]*Param, 0, len(sig.Params)),
		blocks: make([]*Block, 0, 8),
	}
	for i1, e1 := range sig.Params {
		f.params = append(f.params, &Param{
			f:     f,
			name:  fmt.Sprintf("%d", i1),
			typ:   e1,
			Index: i1,
		})
	}
	m.Lock()
	defer m.Unlock()
	if len(f.name) == 0 {
		f.name = fmt.Sprintf("func%d", len(m.functions))
	}
	m.functions = append(m.functions, f)
	m.symbols.ReplaceOrInsert(&symbol{name: f.name, val: f})
	return f
}

// Globals returns all global variables of Module m in declaration order.
func (m *Module) Globals() []*Global {
	return m.globals
}

// Functions returns all functions of Module m in declaration order.
func (m *Module) Functions() []*Function {
	return m.functions
}

// Lookup returns the global or function with the given name, or nil.
func (m *Module) Lookup(name string) Value {
	m.Lock()
	defer m.Unlock()
	if s, ok := m.symbols.Get(&symbol{name: name}); ok {
		return s.val
	}
	return nil
}

// GetGlobal returns a named global variable of Module m, if it exists.
func (m *Module) GetGlobal(name string) *Global {
	g, _ := m.Lookup(name).(*Global)
	return g
}

// GetFunction returns a named function of Module m, if it exists.
func (m *Module) GetFunction(name string) *Function {
	f, _ := m.Lookup(name).(*Function)
	return f
}

// Symbols returns the names of all module symbols in lexical order.
func (m *Module) Symbols() []string {
	m.Lock()
	defer m.Unlock()
	res := make([]string, 0, m.symbols.Len())
	m.symbols.Ascend(func(s *symbol) bool {
		res = append(res, s.name)
		return true
	})
	return res
}

// --------------------------
// ----- Global methods -----
// --------------------------

// Name returns the operand reference of Global g.
func (g *Global) Name() string {
	return "@" + g.name
}

// Symbol returns the bare symbol name of Global g.
func (g *Global) Symbol() string {
	return g.name
}

// Type returns the pointer type; a Global used as Value is its address.
func (g *Global) Type() types.Type {
	return types.Ptr
}

// IsDeclaration reports whether g is defined outside the module.
func (g *Global) IsDeclaration() bool {
	return g.Init == nil && g.Linkage != Common
}

// String returns the operand form of g.
func (g *Global) String() string {
	return "ptr " + g.Name()
}

// Declaration returns the textual LIR definition of g.
func (g *Global) Declaration() string {
	sb := strings.Builder{}
	if g.Constant {
		sb.WriteString("const ")
	} else {
		sb.WriteString("global ")
	}
	if g.Linkage != External {
		sb.WriteString(g.Linkage.String())
		sb.WriteRune(' ')
	}
	sb.WriteString(fmt.Sprintf("%s: %s", g.Name(), g.Typ))
	if g.Init != nil {
		sb.WriteString(" = ")
		sb.WriteString(g.Init.Name())
	}
	if g.Align > 0 {
		sb.WriteString(fmt.Sprintf(" align %d", g.Align))
	}
	return sb.String()
}
