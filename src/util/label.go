// label.go provides deterministic assembly labels for basic blocks and private symbols.

package util

import (
	"fmt"
)

// ---------------------
// ----- Constants -----
// ---------------------

// Label prefixes.
const (
	LabelBlockPrefix   = "_LBB"
	LabelPrivatePrefix = "_L"
)

// ---------------------
// ----- Functions -----
// ---------------------

// BlockLabel returns the label of basic block blk of function number fn.
// Labels depend only on the numbering and are identical between sequential and parallel runs.
func BlockLabel(fn, blk int) string {
	return fmt.Sprintf("%s%d_%d", LabelBlockPrefix, fn, blk)
}

// PrivateLabel returns the assembly name of a module private symbol.
func PrivateLabel(name string) string {
	return LabelPrivatePrefix + name
}
