package xtoa

import (
	"math"
	"strconv"
	"testing"
)

func TestItoA(t *testing.T) {
	for _, e1 := range []int64{0, 1, -1, 9, 10, -10, 255, 65535, math.MaxInt32, math.MinInt32, math.MaxInt64,
		math.MinInt64} {
		if s := ItoA(e1); s != strconv.FormatInt(e1, 10) {
			t.Errorf("ItoA(%d) = %q", e1, s)
		}
	}
}

func TestImm(t *testing.T) {
	tests := []struct {
		in  int64
		exp string
	}{
		{0, "0"},
		{-4, "-4"},
		{0xffffffff, "-1"},
		{0x80000000, "-2147483648"},
		{math.MaxInt32, "2147483647"},
	}
	for _, e1 := range tests {
		if s := Imm(e1.in); s != e1.exp {
			t.Errorf("Imm(%d) = %q, expected %q", e1.in, s, e1.exp)
		}
	}
	if s := FtoA(0.5); s != "1056964608" {
		t.Errorf("FtoA(0.5) = %q", s)
	}
	if s := FtoA(-1); s != "-1082130432" {
		t.Errorf("FtoA(-1) = %q", s)
	}
	if s := ByteList([]byte("hi\x00\xff")); s != "104,105,0,255" {
		t.Errorf("ByteList = %q", s)
	}
}
