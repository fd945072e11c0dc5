package regfile

import (
	"testing"
)

// TestGetNextExclude verifies that the lowest free slot is returned and the file grows on demand.
func TestGetNextExclude(t *testing.T) {
	rf := New(2)
	s0 := rf.Get(0)
	s1 := rf.Get(1)
	tests := []struct {
		exc []*Slot
		exp int
	}{
		{exc: nil, exp: 0},
		{exc: []*Slot{s0}, exp: 1},
		{exc: []*Slot{s1}, exp: 0},
		{exc: []*Slot{s0, s1}, exp: 2},
		{exc: []*Slot{s1, nil, s0}, exp: 2},
	}
	for i1, e1 := range tests {
		if s := rf.GetNextExclude(e1.exc); s.Id() != e1.exp {
			t.Errorf("test %d: expected slot %d, got %d", i1, e1.exp, s.Id())
		}
	}
	if rf.Len() != 3 {
		t.Errorf("expected 3 used slots, got %d", rf.Len())
	}
}

// TestGet verifies growth through Get and the used slot count.
func TestGet(t *testing.T) {
	rf := New(0)
	if rf.Len() != 0 {
		t.Fatalf("expected empty file, got %d", rf.Len())
	}
	s := rf.Get(4)
	if s.Id() != 4 || !s.Used() || s.String() != "$4" {
		t.Errorf("unexpected slot %s, used %t", s, s.Used())
	}
	if rf.Len() != 5 {
		t.Errorf("expected 5, got %d", rf.Len())
	}
	if rf.GetNextExclude([]*Slot{rf.Get(0)}).Id() != 1 {
		t.Errorf("expected slot 1 as next free slot")
	}
}
