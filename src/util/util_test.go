package util

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// TestParseArgs verifies flag parsing and argument validation.
func TestParseArgs(t *testing.T) {
	tests := []struct {
		args []string
		exp  Options
		err  string
	}{
		{args: []string{"in.lir"}, exp: Options{Src: "in.lir"}},
		{args: []string{"-o", "out.ga", "-t", "4", "-vb", "in.lir"}, exp: Options{Src: "in.lir", Out: "out.ga", Threads: 4, Verbose: true}},
		{args: []string{"-ll", "-color", "-O0", "-info", "f.yaml", "x.ll"}, exp: Options{Src: "x.ll", LLVM: true, Color: true, NoOpt: true, Info: "f.yaml"}},
		{args: []string{"-emit-lir", "-ts", "-watch", "-progress", "a"}, exp: Options{Src: "a", EmitLIR: true, TokenStream: true, Watch: true, Progress: true}},
		{args: []string{"-t", "0", "in.lir"}, err: "thread count must be integer"},
		{args: []string{"-t", "many", "in.lir"}, err: "expected integer thread count"},
		{args: []string{"-o", "-vb", "in.lir"}, err: "got new flag -vb"},
		{args: []string{"-bogus", "in.lir"}, err: "unexpected flag"},
		{args: []string{"-o"}, err: "got flag -o but no argument"},
	}
	for _, e1 := range tests {
		opt, err := parseArgs(e1.args)
		if len(e1.err) > 0 {
			if err == nil || !strings.Contains(err.Error(), e1.err) {
				t.Errorf("%v: expected error containing %q, got %v", e1.args, e1.err, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%v: unexpected error %s", e1.args, err)
			continue
		}
		if opt != e1.exp {
			t.Errorf("%v: expected %+v, got %+v", e1.args, e1.exp, opt)
		}
	}
}

// TestConfig verifies loading and merging of the YAML configuration file.
func TestConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "glulxc.yaml")
	if err := os.WriteFile(path, []byte("o: game.ga\nt: 8\ncolor: true\nO0: true\n"), 0644); err != nil {
		t.Fatal(err)
	}
	c, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	opt := c.Merge(Options{Out: "cli.ga", Verbose: true})
	exp := Options{Out: "cli.ga", Threads: 8, Verbose: true, Color: true, NoOpt: true}
	if opt != exp {
		t.Errorf("expected %+v, got %+v", exp, opt)
	}

	if err := os.WriteFile(path, []byte("t: 100\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected error for thread count out of range")
	}
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

// TestPerror verifies that errors reported from parallel workers are returned in job order.
func TestPerror(t *testing.T) {
	pe := NewPerror(0)
	wg := sync.WaitGroup{}
	for i1 := 9; i1 >= 0; i1-- {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%3 == 0 {
				pe.Append(i, errors.New(string(rune('a'+i))))
			}
			pe.Append(i, nil)
		}(i1)
	}
	wg.Wait()
	if pe.Len() != 4 {
		t.Fatalf("expected 4 errors, got %d", pe.Len())
	}
	sb := strings.Builder{}
	for e1 := range pe.Errors() {
		sb.WriteString(e1.Error())
	}
	if sb.String() != "adgj" {
		t.Errorf("expected errors in job order adgj, got %s", sb.String())
	}
	if err := pe.Join(); err == nil || err.Error() != "a\nd\ng\nj" {
		t.Errorf("unexpected joined error %v", err)
	}
	pe.Flush()
	if pe.Join() != nil {
		t.Error("expected no errors after flush")
	}
}

// TestStack verifies the stack operations.
func TestStack(t *testing.T) {
	s := Stack[int]{}
	if _, ok := s.Pop(); ok {
		t.Error("expected empty stack")
	}
	for i1 := 1; i1 <= 3; i1++ {
		s.Push(i1)
	}
	if v, _ := s.Peek(); v != 3 {
		t.Errorf("expected top 3, got %d", v)
	}
	if v, _ := s.Get(3); v != 1 {
		t.Errorf("expected bottom 1, got %d", v)
	}
	if _, ok := s.Get(4); ok {
		t.Error("expected out of range")
	}
	for i1 := 3; i1 >= 1; i1-- {
		if v, ok := s.Pop(); !ok || v != i1 {
			t.Errorf("expected %d, got %d", i1, v)
		}
	}
	if s.Size() != 0 {
		t.Error("expected empty stack")
	}
}

// TestLabels verifies label formatting.
func TestLabels(t *testing.T) {
	if l := BlockLabel(2, 14); l != "_LBB2_14" {
		t.Errorf("unexpected block label %s", l)
	}
	if l := PrivateLabel(".str"); l != "_L.str" {
		t.Errorf("unexpected private label %s", l)
	}
}
