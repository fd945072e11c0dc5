// Package backend connects the compiler driver to the Glulx code generator.
package backend

import (
	"fmt"
	"glulxc/src/backend/glulx"
	"glulxc/src/ir/lir"
	"glulxc/src/util"
	"os"
)

// ---------------------
// ----- Functions -----
// ---------------------

// GenerateAssembler compiles Module m and writes the assembly to the output given by opt. If opt names an info
// file, the per-function info records are written to it. Nothing is written if any function fails to compile.
func GenerateAssembler(opt util.Options, m *lir.Module) error {
	text, infos, err := glulx.Compile(opt, m)
	if err != nil {
		return err
	}
	if len(opt.Info) > 0 {
		if err := writeInfo(opt.Info, m.Name, infos); err != nil {
			return err
		}
	}
	return util.WriteOutput(opt, text)
}

// writeInfo writes the info records of module name to the file at path.
func writeInfo(path, name string, infos []*glulx.FunctionInfo) error {
	f, err := os.OpenFile(path, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open info file: %w", err)
	}
	if err := glulx.WriteInfo(f, name, infos); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
