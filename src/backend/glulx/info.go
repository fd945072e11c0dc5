package glulx

import (
	"fmt"
	"glulxc/src/ir/lir/types"
	"io"

	"gopkg.in/yaml.v3"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// FunctionInfo is the per-function record the stages fill in. The exported fields are dumped with -info.
type FunctionInfo struct {
	Name           string   `yaml:"name"`
	Params         []string `yaml:"params,flow"`
	Results        []string `yaml:"results,flow"`
	Locals         []string `yaml:"locals,flow"`
	FrameSize      int      `yaml:"frame-size"`
	FrameAlign     int      `yaml:"frame-align"`
	FrameBaseLocal int      `yaml:"frame-base-local"` // -1 if the function has no frame.
	FoldedStores   int      `yaml:"folded-stores"`
	Instructions   int      `yaml:"instructions"`

	FrameBase    Reg         `yaml:"-"` // Register holding the aligned frame address.
	StackBase    Reg         `yaml:"-"` // Register holding the address returned by malloc.
	VarargBuffer Reg         `yaml:"-"` // Register of the variadic argument buffer parameter.
	RegLocals    map[Reg]int `yaml:"-"` // Local of every register after numbering.

	frameAddrs map[frameAddr]Reg
}

// frameAddr keys the cached frame address registers of a block.
type frameAddr struct {
	off int64
	b   *Block
}

// infoFile is the document written by WriteInfo.
type infoFile struct {
	Module    string          `yaml:"module"`
	Functions []*FunctionInfo `yaml:"functions"`
}

// ---------------------
// ----- Functions -----
// ---------------------

// newFunctionInfo returns the empty record of function name.
func newFunctionInfo(name string) *FunctionInfo {
	return &FunctionInfo{
		Name:           name,
		Params:         []string{},
		Results:        []string{},
		Locals:         []string{},
		FrameBaseLocal: -1,
		FrameBase:      NoReg,
		StackBase:      NoReg,
		VarargBuffer:   NoReg,
		frameAddrs:     make(map[frameAddr]Reg, 4),
	}
}

// valueType returns the name of the Glulx value type holding LIR type t.
func valueType(t types.Type) string {
	if types.IsFloat(t) {
		return "f32"
	}
	return "i32"
}

// String returns a one line summary of info.
func (info *FunctionInfo) String() string {
	return fmt.Sprintf("%s: %d params, %d locals, %d bytes frame", info.Name, len(info.Params), len(info.Locals),
		info.FrameSize)
}

// WriteInfo writes the records of a module as a YAML document to w.
func WriteInfo(w io.Writer, module string, infos []*FunctionInfo) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(infoFile{Module: module, Functions: infos}); err != nil {
		return fmt.Errorf("encode function info: %w", err)
	}
	return enc.Close()
}
