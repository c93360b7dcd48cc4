package cpu

import (
	"fmt"

	"gocpu8/pkg/isa"
)

// Flag bits in the flags register.
const (
	FlagCarry byte = 1 << 0
	FlagZero  byte = 1 << 1
)

// Registers is a core's register file. The 8-bit registers hold 0-255 and
// PC/SP wrap at 16 bits; Go's fixed width types enforce both.
type Registers struct {
	A     byte   `json:"a"`
	B     byte   `json:"b"`
	C     byte   `json:"c"`
	D     byte   `json:"d"`
	IR    byte   `json:"ir"`
	Flags byte   `json:"flags"`
	PC    uint16 `json:"pc"`
	SP    uint16 `json:"sp"`
}

// Get returns a general purpose register.
func (r *Registers) Get(reg isa.Register) byte {
	switch reg {
	case isa.RegA:
		return r.A
	case isa.RegB:
		return r.B
	case isa.RegC:
		return r.C
	case isa.RegD:
		return r.D
	}
	return 0
}

// Set writes a general purpose register, masking value to 8 bits.
func (r *Registers) Set(reg isa.Register, value int) {
	v := byte(value & 0xFF)
	switch reg {
	case isa.RegA:
		r.A = v
	case isa.RegB:
		r.B = v
	case isa.RegC:
		r.C = v
	case isa.RegD:
		r.D = v
	}
}

// Flag reports whether the given flag bit is set.
func (r *Registers) Flag(flag byte) bool {
	return r.Flags&flag != 0
}

// SetFlags rewrites the zero and carry bits, leaving the other bits alone.
func (r *Registers) SetFlags(zero, carry bool) {
	f := r.Flags &^ (FlagZero | FlagCarry)
	if zero {
		f |= FlagZero
	}
	if carry {
		f |= FlagCarry
	}
	r.Flags = f
}

// CD returns the 16-bit value held in C (low) and D (high).
func (r *Registers) CD() uint16 {
	return uint16(r.C) | uint16(r.D)<<8
}

func (r Registers) String() string {
	return fmt.Sprintf("A=%02X B=%02X C=%02X D=%02X IR=%02X F=%02X PC=%04X SP=%04X",
		r.A, r.B, r.C, r.D, r.IR, r.Flags, r.PC, r.SP)
}

// ByName reads a register by its debugger name: a, b, c, d, ir, flags, pc
// or sp.
func (r *Registers) ByName(name string) (uint16, bool) {
	switch name {
	case "a":
		return uint16(r.A), true
	case "b":
		return uint16(r.B), true
	case "c":
		return uint16(r.C), true
	case "d":
		return uint16(r.D), true
	case "ir":
		return uint16(r.IR), true
	case "flags":
		return uint16(r.Flags), true
	case "pc":
		return r.PC, true
	case "sp":
		return r.SP, true
	}
	return 0, false
}

// SetByName writes a register by debugger name, masking to its width.
func (r *Registers) SetByName(name string, value int) bool {
	switch name {
	case "a":
		r.A = byte(value)
	case "b":
		r.B = byte(value)
	case "c":
		r.C = byte(value)
	case "d":
		r.D = byte(value)
	case "ir":
		r.IR = byte(value)
	case "flags":
		r.Flags = byte(value)
	case "pc":
		r.PC = uint16(value)
	case "sp":
		r.SP = uint16(value)
	default:
		return false
	}
	return true
}
