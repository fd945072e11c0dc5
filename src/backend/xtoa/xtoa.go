// xtoa.go implements functions for converting integers, floating point bit patterns and byte strings into the
// string representations used by Glulx assembly operands and data directives.

package xtoa

import (
	"math"
	"strings"
)

// ItoA converts an integer to a string of ASCII digits.
func ItoA(i int64) string {
	if i == math.MinInt64 {
		return "-9223372036854775808"
	}
	res := make([]byte, 24) // Signed 64-bit int: at most 19 digits and a sign.
	var sign bool

	// Check for negative value.
	if i < 0 {
		sign = true
		i = -i
	}

	// Set start index to last index of buffer.
	i1 := len(res) - 1

	// Insert digits back-to-front.
	if i == 0 {
		res[i1] = '0'
		i1--
	}
	for ; i1 >= 0 && i != 0; i1-- {
		res[i1] = byte((i % 10) + '0')
		i /= 10
	}

	if sign {
		res[i1] = '-'
		i1--
	}

	return string(res[i1+1:])
}

// Imm converts a 32-bit immediate operand. Values are printed signed; the unsigned range is wrapped.
func Imm(i int64) string {
	return ItoA(int64(int32(i)))
}

// FloatBits converts the bit pattern of a single precision float to the signed integer glasm expects for float
// immediates.
func FloatBits(bits uint32) string {
	return ItoA(int64(int32(bits)))
}

// FtoA converts a float to the signed integer of its IEEE 754 single precision bit pattern.
func FtoA(f float32) string {
	return FloatBits(math.Float32bits(f))
}

// ByteList converts a byte string to a comma separated list of unsigned decimal values.
func ByteList(b []byte) string {
	sb := strings.Builder{}
	for i1, e1 := range b {
		if i1 > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(ItoA(int64(e1)))
	}
	return sb.String()
}
