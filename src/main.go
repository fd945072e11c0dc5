package main

import (
	"fmt"
	"glulxc/src/backend"
	"glulxc/src/frontend"
	"glulxc/src/ir"
	"glulxc/src/ir/lir"
	"glulxc/src/ir/llvm"
	"glulxc/src/util"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ---------------------
// ----- Constants -----
// ---------------------

// settleDelay is how long watch mode waits for a burst of file events to end before recompiling.
const settleDelay = 50 * time.Millisecond

// ---------------------
// ----- Functions -----
// ---------------------

func main() {
	// Parse command line arguments.
	opt, err := util.ParseArgs()
	if err != nil {
		fmt.Printf("Command line argument error: %s\n", err)
		os.Exit(1)
	}
	util.SetupLogging(opt)

	if opt.Watch {
		if err := watch(opt); err != nil {
			fmt.Printf("Watch error: %s\n", err)
			os.Exit(1)
		}
		return
	}
	if err := run(opt); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// run compiles the source given by opt once.
func run(opt util.Options) error {
	start := time.Now()

	// Read source code.
	src, err := util.ReadSource(opt)
	if err != nil {
		return fmt.Errorf("could not read source code: %w", err)
	}

	// If -ts flag was passed: output token stream and exit.
	if opt.TokenStream {
		if err := frontend.TokenStream(src, os.Stdout); err != nil {
			return fmt.Errorf("syntax error: %w", err)
		}
		return nil
	}

	m, err := load(opt, src)
	if err != nil {
		return err
	}

	// If -emit-lir flag was passed: print the module and exit.
	if opt.EmitLIR {
		fmt.Print(m.String())
		return nil
	}

	if err := ir.Validate(opt, m); err != nil {
		return fmt.Errorf("invalid LIR:\n%w", err)
	}
	if err := ir.Optimise(opt, m); err != nil {
		return fmt.Errorf("optimisation error: %w", err)
	}
	if err := backend.GenerateAssembler(opt, m); err != nil {
		return fmt.Errorf("code generation error:\n%w", err)
	}
	slog.Info("compiled", "source", m.Name, "elapsed", time.Since(start))
	return nil
}

// load builds the LIR module from src: textual LIR by default, LLVM IR or bitcode with -ll.
func load(opt util.Options, src string) (*lir.Module, error) {
	name := filepath.Base(opt.Src)
	if len(opt.Src) == 0 || opt.Src == "-" {
		name = "stdin"
	}
	if opt.LLVM {
		m, err := llvm.Import(name, []byte(src))
		if err != nil {
			return nil, fmt.Errorf("LLVM import error: %w", err)
		}
		return m, nil
	}
	m, err := frontend.Parse(name, src)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return m, nil
}

// watch compiles the source file and recompiles it every time it changes. Compile errors are logged and do not
// end watch mode.
func watch(opt util.Options) error {
	if len(opt.Src) == 0 || opt.Src == "-" {
		return fmt.Errorf("watch mode needs a source file")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func(w *fsnotify.Watcher) {
		_ = w.Close()
	}(watcher)

	// Editors replace files on save, so the directory is watched rather than the file itself.
	if err := watcher.Add(filepath.Dir(opt.Src)); err != nil {
		return err
	}
	target := filepath.Clean(opt.Src)

	recompile := func() {
		if err := run(opt); err != nil {
			slog.Error("compilation failed", "source", opt.Src, "error", err)
		}
	}
	recompile()

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			// Drain the rest of the burst so a save triggers one compilation.
			for settled := false; !settled; {
				select {
				case <-watcher.Events:
				case <-time.After(settleDelay):
					settled = true
				}
			}
			recompile()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("watch", "error", err)
		}
	}
}
