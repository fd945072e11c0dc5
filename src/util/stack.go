// stack.go provides a slice backed stack that holds data of type T.
// The bottom element is the first entry into the stack, while the top is
// the last entry to be added to the stack.

package util

import "sync"

// Stack is a thread safe last in, first out stack.
type Stack[T any] struct {
	elems []T        // Entries in insertion order.
	mx    sync.Mutex // For synchronising multiple worker threads to one stack.
}

// Push adds a new element to the top of the stack.
func (s *Stack[T]) Push(e T) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.elems = append(s.elems, e)
}

// Pop removes and returns the last inserted element on the stack.
// If the stack is empty the zero value and false is returned.
func (s *Stack[T]) Pop() (T, bool) {
	s.mx.Lock()
	defer s.mx.Unlock()
	var e T
	if len(s.elems) == 0 {
		return e, false
	}
	e = s.elems[len(s.elems)-1]
	s.elems = s.elems[:len(s.elems)-1]
	return e, true
}

// Peek works just like Pop, but it does not remove the element from the stack.
func (s *Stack[T]) Peek() (T, bool) {
	s.mx.Lock()
	defer s.mx.Unlock()
	var e T
	if len(s.elems) == 0 {
		return e, false
	}
	return s.elems[len(s.elems)-1], true
}

// Size returns the number of elements in the stack.
func (s *Stack[T]) Size() int {
	s.mx.Lock()
	defer s.mx.Unlock()
	return len(s.elems)
}

// Get returns the nth element from the stack, top down, not zero indexed.
// Get(1) returns the first element on stack, and is similar to Peek.
// Get(Stack.Size()) returns the bottom element. If the index n is out of range
// the zero value and false is returned. Get does not remove elements from the stack.
func (s *Stack[T]) Get(n int) (T, bool) {
	s.mx.Lock()
	defer s.mx.Unlock()
	var e T
	if n < 1 || n > len(s.elems) {
		return e, false
	}
	return s.elems[len(s.elems)-n], true
}
