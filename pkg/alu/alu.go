// Package alu implements the 8-bit arithmetic/logic unit. Every function is
// pure: callers apply the returned flags to the register file themselves.
package alu

// Result is the masked 8-bit output of an operation plus its flags.
type Result struct {
	Value byte
	Zero  bool
	Carry bool
}

func result(v int, carry bool) Result {
	masked := byte(v & 0xFF)
	return Result{Value: masked, Zero: masked == 0, Carry: carry}
}

func Add(a, b byte) Result {
	sum := int(a) + int(b)
	return result(sum, sum > 0xFF)
}

// Sub sets carry when a borrow occurred (a < b).
func Sub(a, b byte) Result {
	return result(int(a)-int(b), a < b)
}

// Cmp produces the same flags as Sub. The caller discards Value.
func Cmp(a, b byte) Result {
	return Sub(a, b)
}

func And(a, b byte) Result {
	return result(int(a&b), false)
}

func Or(a, b byte) Result {
	return result(int(a|b), false)
}

func Xor(a, b byte) Result {
	return result(int(a^b), false)
}

// Test produces the flags of And. The caller discards Value.
func Test(a, b byte) Result {
	return And(a, b)
}

func Inc(a byte) Result {
	return result(int(a)+1, false)
}

func Dec(a byte) Result {
	return result(int(a)-1, false)
}

func Not(a byte) Result {
	return result(int(^a), false)
}

// Shl shifts left count times. Carry is bit 7 before the last shift.
func Shl(v, count byte) Result {
	carry := false
	for i := byte(0); i < count; i++ {
		carry = v&0x80 != 0
		v <<= 1
	}
	return result(int(v), carry)
}

// Shr shifts right count times. Carry is bit 0 before the last shift.
func Shr(v, count byte) Result {
	carry := false
	for i := byte(0); i < count; i++ {
		carry = v&0x01 != 0
		v >>= 1
	}
	return result(int(v), carry)
}

// Rol rotates left through carry: the vacated bit 0 takes the previous carry.
func Rol(v, count byte, carryIn bool) Result {
	carry := carryIn
	for i := byte(0); i < count; i++ {
		out := v&0x80 != 0
		v <<= 1
		if carry {
			v |= 0x01
		}
		carry = out
	}
	return result(int(v), carry)
}

// Ror rotates right through carry: the vacated bit 7 takes the previous carry.
func Ror(v, count byte, carryIn bool) Result {
	carry := carryIn
	for i := byte(0); i < count; i++ {
		out := v&0x01 != 0
		v >>= 1
		if carry {
			v |= 0x80
		}
		carry = out
	}
	return result(int(v), carry)
}
