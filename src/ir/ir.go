// Package ir provides the passes that run on LIR modules before instruction selection: the verifier and the
// target independent rewrites.
package ir

import (
	"glulxc/src/ir/lir"
	"glulxc/src/util"
	"sync"
)

// ---------------------
// ----- Functions -----
// ---------------------

// definedFunctions returns the functions of Module m that have a body, in module order.
func definedFunctions(m *lir.Module) []*lir.Function {
	res := make([]*lir.Function, 0, len(m.Functions()))
	for _, e1 := range m.Functions() {
		if !e1.IsDeclaration() {
			res = append(res, e1)
		}
	}
	return res
}

// forEachFunction applies fn to every function in fns. With more than one thread the functions are split evenly
// between opt.Threads worker threads. Errors are returned joined, ordered by function.
func forEachFunction(opt util.Options, fns []*lir.Function, fn func(f *lir.Function) error) error {
	pe := util.NewPerror(len(fns))
	if opt.Threads > 1 && len(fns) > 1 {
		// Parallel.
		wg := sync.WaitGroup{} // Used for synchronising worker threads with main thread.

		t := opt.Threads // Max number of threads to initiate.
		l := len(fns)    // Number of functions defined in module.
		if t > l {
			t = l // Cannot launch more threads than functions.
		}
		n := l / t   // Number of jobs per worker thread.
		res := l % t // Residual work for res first threads.

		// Launch t threads.
		for i1, i2 := 0, 0; i2 < t; i2++ {
			m := n
			if i2 < res {
				// Indicate that this worker thread should do one more job.
				m++
			}
			wg.Add(1) // Tell main thread to wait for new thread to finish.
			go func(i, j int) {
				defer wg.Done() // Alert main thread that this worker is done when returning.
				for i3 := i; i3 < i+j; i3++ {
					pe.Append(i3, fn(fns[i3]))
				}
			}(i1, m)
			i1 += m
		}

		// Wait for worker threads to finish.
		wg.Wait()
	} else {
		// Sequential.
		for i1, e1 := range fns {
			pe.Append(i1, fn(e1))
		}
	}
	return pe.Join()
}
