package alu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdd_AllInputs(t *testing.T) {
	for a := 0; a < 256; a++ {
		for b := 0; b < 256; b++ {
			r := Add(byte(a), byte(b))
			if r.Value != byte((a+b)&0xFF) || r.Carry != (a+b > 255) || r.Zero != (r.Value == 0) {
				t.Fatalf("Add(%d, %d) = %+v", a, b, r)
			}
		}
	}
}

func TestSubCmp_AllInputs(t *testing.T) {
	for a := 0; a < 256; a++ {
		for b := 0; b < 256; b++ {
			s := Sub(byte(a), byte(b))
			if s.Carry != (a < b) || s.Value != byte((a-b)&0xFF) {
				t.Fatalf("Sub(%d, %d) = %+v", a, b, s)
			}
			c := Cmp(byte(a), byte(b))
			if c.Zero != s.Zero || c.Carry != s.Carry {
				t.Fatalf("Cmp(%d, %d) flags %+v differ from Sub %+v", a, b, c, s)
			}
		}
	}
}

func TestLogic(t *testing.T) {
	assert.Equal(t, Result{Value: 0x0F}, And(0xFF, 0x0F))
	assert.Equal(t, Result{Value: 0x00, Zero: true}, And(0xF0, 0x0F))
	assert.Equal(t, Result{Value: 0xFF}, Or(0xF0, 0x0F))
	assert.Equal(t, Result{Value: 0x00, Zero: true}, Xor(0xAA, 0xAA))
	assert.Equal(t, And(0x81, 0x01), Test(0x81, 0x01))

	for a := 0; a < 256; a++ {
		for b := 0; b < 256; b++ {
			require.False(t, And(byte(a), byte(b)).Carry)
			require.False(t, Or(byte(a), byte(b)).Carry)
			require.False(t, Xor(byte(a), byte(b)).Carry)
		}
	}
}

func TestIncDec(t *testing.T) {
	assert.Equal(t, Result{Value: 0x00, Zero: true}, Inc(0xFF))
	assert.Equal(t, Result{Value: 0x06}, Inc(0x05))
	assert.Equal(t, Result{Value: 0xFF}, Dec(0x00))
	assert.Equal(t, Result{Value: 0x00, Zero: true}, Dec(0x01))
}

func TestNot(t *testing.T) {
	assert.Equal(t, Result{Value: 0xFF}, Not(0x00))
	assert.Equal(t, Result{Value: 0x00, Zero: true}, Not(0xFF))
	assert.Equal(t, Result{Value: 0x5A}, Not(0xA5))
}

func TestShifts(t *testing.T) {
	tests := []struct {
		name string
		got  Result
		want Result
	}{
		{"shl zero count", Shl(0x81, 0), Result{Value: 0x81}},
		{"shl one", Shl(0x81, 1), Result{Value: 0x02, Carry: true}},
		{"shl two keeps last carry", Shl(0x81, 2), Result{Value: 0x04}},
		{"shl out", Shl(0x01, 8), Result{Value: 0x00, Zero: true, Carry: true}},
		{"shl past width", Shl(0x01, 9), Result{Value: 0x00, Zero: true}},
		{"shl last carry set", Shl(0x40, 2), Result{Value: 0x00, Zero: true, Carry: true}},
		{"shr one", Shr(0x81, 1), Result{Value: 0x40, Carry: true}},
		{"shr two keeps last carry", Shr(0x81, 2), Result{Value: 0x20}},
		{"shr last carry set", Shr(0x02, 2), Result{Value: 0x00, Zero: true, Carry: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestRotateThroughCarry(t *testing.T) {
	// 0x80 rotated left once: bit 7 goes to carry, old carry fills bit 0.
	assert.Equal(t, Result{Value: 0x01, Carry: true}, Rol(0x80, 1, true))
	assert.Equal(t, Result{Value: 0x00, Zero: true, Carry: true}, Rol(0x80, 1, false))
	// The carry re-enters on the second step.
	assert.Equal(t, Result{Value: 0x01}, Rol(0x80, 2, false))
	assert.Equal(t, Result{Value: 0x80, Carry: true}, Ror(0x01, 1, true))
	assert.Equal(t, Result{Value: 0x80}, Ror(0x01, 2, false))
}

func TestRolRorRoundTrip(t *testing.T) {
	for a := 0; a < 256; a++ {
		for count := byte(0); count <= 8; count++ {
			for _, carryIn := range []bool{false, true} {
				left := Rol(byte(a), count, carryIn)
				back := Ror(left.Value, count, left.Carry)
				if back.Value != byte(a) {
					t.Fatalf("Ror(Rol(0x%02X, %d, %t)) = 0x%02X", a, count, carryIn, back.Value)
				}
				if back.Carry != carryIn {
					t.Fatalf("carry not restored for 0x%02X count %d", a, count)
				}
			}
		}
	}
}
