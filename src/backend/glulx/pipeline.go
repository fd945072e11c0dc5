package glulx

import (
	"errors"
	"fmt"
	"glulxc/src/ir/lir"
	"glulxc/src/ir/lir/types"
	"glulxc/src/util"
	"log/slog"
	"time"

	"github.com/docker/go-units"
	"golang.org/x/sync/errgroup"
)

// ---------------------
// ----- Functions -----
// ---------------------

// Compile generates the assembly of Module m. Function definitions are compiled independently by up to
// opt.Threads worker threads and printed in module order, so the output does not depend on the thread count.
// Diagnostics of all functions and globals are returned joined; no assembly is returned in that case. The info
// records of the compiled functions are returned in module order.
func Compile(opt util.Options, m *lir.Module) (string, []*FunctionInfo, error) {
	start := time.Now()
	defs := make([]*lir.Function, 0, len(m.Functions()))
	nums := make([]int, 0, len(m.Functions()))
	for i1, e1 := range m.Functions() {
		if !e1.IsDeclaration() {
			defs = append(defs, e1)
			nums = append(nums, i1)
		}
	}

	fns := make([]*Function, len(defs))
	pe := util.NewPerror(len(defs))
	bar := util.NewProgress(opt, len(defs), "compiling")

	g := errgroup.Group{}
	g.SetLimit(max(opt.Threads, 1))
	for i1, e1 := range defs {
		g.Go(func() error {
			defer bar.Add()
			f, err := CompileFunction(opt, m.Name, nums[i1], e1)
			if err != nil {
				// Diagnostics are collected rather than returned, so that the other functions keep going.
				pe.Append(i1, err)
				return nil
			}
			fns[i1] = f
			return nil
		})
	}
	_ = g.Wait()
	bar.Close()

	for i1, e1 := range m.Globals() {
		pe.Append(len(defs)+i1, checkGlobal(m.Name, e1))
	}
	if err := pe.Join(); err != nil {
		return "", nil, err
	}

	text := Emit(m, fns)
	infos := make([]*FunctionInfo, len(fns))
	n := 0
	for i1, e1 := range fns {
		infos[i1] = e1.Info
		n += e1.Info.Instructions
	}
	slog.Debug("module compiled",
		"module", m.Name,
		"functions", len(fns),
		"instructions", n,
		"output", units.HumanSize(float64(len(text))),
		"elapsed", time.Since(start))
	return text, infos, nil
}

// CompileFunction runs all stages on function src, number num of its module, and returns the lowered machine
// function.
func CompileFunction(opt util.Options, file string, num int, src *lir.Function) (*Function, error) {
	f, err := Select(file, num, src)
	if err != nil {
		return nil, err
	}
	EliminatePhis(f)
	removeFallthroughJumps(f)
	LowerFrame(f)
	if !opt.NoOpt {
		FoldStores(f)
	}
	EliminateFrameIndices(f)
	if opt.Color {
		ColorLocals(f)
	}
	ExplicitLocals(f)

	for _, e1 := range f.Blocks {
		for _, e2 := range e1.Instrs {
			if e2.Op != OpMakeLFunc {
				f.Info.Instructions++
			}
		}
	}
	slog.Debug("function compiled",
		"function", f.Name,
		"locals", len(f.Info.Locals),
		"frame", units.BytesSize(float64(f.Info.FrameSize)),
		"folded", f.Info.FoldedStores,
		"instructions", f.Info.Instructions)
	return f, nil
}

// checkGlobal diagnoses initialisers of Global g that have no data directive.
func checkGlobal(file string, g *lir.Global) error {
	if g.IsDeclaration() {
		return nil
	}
	if err := checkConstant(g.Init); err != nil {
		return fmt.Errorf("%s: global %s: %w", file, g.Symbol(), err)
	}
	return nil
}

// checkConstant reports an error if initialiser c cannot be emitted.
func checkConstant(c lir.Constant) error {
	switch x := c.(type) {
	case *lir.ConstInt:
		switch types.Size(x.Typ) {
		case 1, 2, 4, 8:
			return nil
		}
		return fmt.Errorf("integer initialiser of type %s not supported", x.Typ)
	case *lir.ConstArray:
		for _, e1 := range x.Elems {
			if err := checkConstant(e1); err != nil {
				return err
			}
		}
	case *lir.ConstStruct:
		for _, e1 := range x.Fields {
			if err := checkConstant(e1); err != nil {
				return err
			}
		}
	case *lir.BlockAddress:
		return errors.New("block address initialiser not supported")
	case *lir.InlineAsm:
		return errors.New("inline asm initialiser not supported")
	}
	return nil
}
