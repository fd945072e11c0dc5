package util

import (
	"errors"
	"sort"
	"sync"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Perror collects errors reported from parallel worker threads and provides means for retrieving them in a
// deterministic order when a parallel job has been completed.
type Perror struct {
	errors     []orderedError // Buffer of error messages.
	sync.Mutex                // For synchronising writes and reads.
}

// orderedError is an error tagged with the index of the job that reported it.
type orderedError struct {
	job int
	err error
}

// ----------------------
// ----- Constants ------
// ----------------------

// defaultBufferSize defines the fallback buffer size of the error array.
const defaultBufferSize = 16

// ---------------------
// ----- Functions -----
// ---------------------

// NewPerror returns a pointer to a Perror struct with n number of pre-allocated slots for errors in the buffer.
func NewPerror(n int) *Perror {
	if n < 1 {
		n = defaultBufferSize
	}
	return &Perror{
		errors: make([]orderedError, 0, n),
	}
}

// Append records the error err reported by job number job. <nil> errors are ignored.
func (pe *Perror) Append(job int, err error) {
	if err == nil {
		return
	}
	pe.Lock()
	defer pe.Unlock()
	pe.errors = append(pe.errors, orderedError{job: job, err: err})
}

// Flush empties the buffered error messages.
func (pe *Perror) Flush() {
	pe.Lock()
	defer pe.Unlock()
	pe.errors = make([]orderedError, 0, cap(pe.errors))
}

// Len returns the number of buffered errors.
func (pe *Perror) Len() int {
	pe.Lock()
	defer pe.Unlock()
	return len(pe.errors)
}

// Errors returns a buffered channel with all the reported errors ordered by job, effectively creating an iterator.
func (pe *Perror) Errors() <-chan error {
	pe.Lock()
	defer pe.Unlock()
	pe.sort()
	c := make(chan error, len(pe.errors))
	for _, e1 := range pe.errors {
		c <- e1.err
	}
	close(c)
	return c
}

// Join returns all reported errors ordered by job as a single error, or nil if no errors were reported.
func (pe *Perror) Join() error {
	pe.Lock()
	defer pe.Unlock()
	if len(pe.errors) == 0 {
		return nil
	}
	pe.sort()
	errs := make([]error, len(pe.errors))
	for i1, e1 := range pe.errors {
		errs[i1] = e1.err
	}
	return errors.Join(errs...)
}

// sort orders the buffered errors by job. Errors of the same job keep their reporting order.
func (pe *Perror) sort() {
	sort.SliceStable(pe.errors, func(i, j int) bool {
		return pe.errors[i].job < pe.errors[j].job
	})
}
