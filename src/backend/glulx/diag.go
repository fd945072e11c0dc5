package glulx

import (
	"fmt"
	"glulxc/src/ir/lir"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Diagnostic reports LIR that the backend cannot lower. A diagnostic abandons the function it was reported for;
// compilation continues with the other functions so that all diagnostics are reported together.
type Diagnostic struct {
	File string // Source file of the module.
	Line int
	Col  int
	Func string // Assembly name of the function.
	Msg  string
}

// ---------------------
// ----- Functions -----
// ---------------------

// Error implements the error interface.
func (d *Diagnostic) Error() string {
	switch {
	case d.Line > 0:
		return fmt.Sprintf("%s:%d:%d: in function %s: %s", d.File, d.Line, d.Col, d.Func, d.Msg)
	case len(d.File) > 0:
		return fmt.Sprintf("%s: in function %s: %s", d.File, d.Func, d.Msg)
	}
	return fmt.Sprintf("in function %s: %s", d.Func, d.Msg)
}

// newDiagnostic returns a diagnostic located at pos in function fn.
func newDiagnostic(file, fn string, pos lir.Pos, format string, a ...any) *Diagnostic {
	return &Diagnostic{
		File: file,
		Line: pos.Line,
		Col:  pos.Col,
		Func: fn,
		Msg:  fmt.Sprintf(format, a...),
	}
}
