package isa

import "fmt"

// Register identifies one of the four general purpose 8-bit registers.
type Register byte

const (
	RegA Register = 0
	RegB Register = 1
	RegC Register = 2
	RegD Register = 3
)

// Registers lists the general purpose registers in encoding order.
var Registers = [...]Register{RegA, RegB, RegC, RegD}

func (r Register) String() string {
	switch r {
	case RegA:
		return "A"
	case RegB:
		return "B"
	case RegC:
		return "C"
	case RegD:
		return "D"
	}
	return fmt.Sprintf("R%d", byte(r))
}

// Shape describes the operands that follow an opcode byte.
type Shape byte

const (
	ShapeNone Shape = iota
	ShapeReg
	ShapeRegReg
	ShapeRegImm8
	ShapeRegMem
	ShapeMemReg
	ShapeImm8
	ShapeImm16
)

var shapeNames = [...]string{"NONE", "REG", "REG_REG", "REG_IMM8", "REG_MEM", "MEM_REG", "IMM8", "IMM16"}

func (s Shape) String() string {
	if int(s) < len(shapeNames) {
		return shapeNames[s]
	}
	return fmt.Sprintf("Shape(%d)", byte(s))
}

// Length returns the full instruction length (opcode included) for the shape.
func (s Shape) Length() int {
	switch s {
	case ShapeRegImm8, ShapeImm8:
		return 2
	case ShapeRegMem, ShapeMemReg, ShapeImm16:
		return 3
	}
	return 1
}

// Kind is the operation an opcode performs, independent of its register operands.
type Kind byte

const (
	KindNOP Kind = iota
	KindHALT
	KindBREAKPOINT
	KindSYSCALL
	KindEI
	KindDI
	KindCALL
	KindRET
	KindIRET
	KindJMP
	KindJZ
	KindJNZ
	KindJC
	KindJNC
	KindPUSHF
	KindPOPF
	KindMOV
	KindMOVImm
	KindLoad
	KindStore
	KindPUSH
	KindPOP
	KindINC
	KindDEC
	KindNOT
	KindADD
	KindSUB
	KindAND
	KindOR
	KindXOR
	KindCMP
	KindTEST
	KindSHL
	KindSHR
	KindROL
	KindROR
	KindLoadSP
	KindCoreID
	KindCoreCount
	KindCoreStatus
	KindCoreStart
	KindCoreHalt
	KindCoreInit
	KindCPUID
	KindCPUCount
	KindCPUStatus
	KindCPUStart
	KindCPUHalt
	KindCPUInit
)

// Opcode values. The register-indexed groups are bases: add a register with R
// or a destination/source pair with RR to get the concrete opcode.
const (
	OpNOP        byte = 0x00
	OpHALT       byte = 0x01
	OpBREAKPOINT byte = 0x02
	OpSYSCALL    byte = 0x03
	OpEI         byte = 0x04
	OpDI         byte = 0x05
	OpCALL       byte = 0x06
	OpRET        byte = 0x07
	OpIRET       byte = 0x08
	OpJMP        byte = 0x09
	OpJZ         byte = 0x0A
	OpJNZ        byte = 0x0B
	OpJC         byte = 0x0C
	OpJNC        byte = 0x0D
	OpPUSHF      byte = 0x0E
	OpPOPF       byte = 0x0F

	OpMOV      byte = 0x10 // + RR(dst, src), dst != src
	OpMOVImm   byte = 0x20
	OpMOVLoad  byte = 0x24 // MOV_r_MEM
	OpMOVStore byte = 0x28 // MOV_MEM_r
	OpPUSH     byte = 0x2C
	OpPOP      byte = 0x30
	OpINC      byte = 0x34
	OpDEC      byte = 0x38
	OpNOT      byte = 0x3C

	OpADD byte = 0x40
	OpSUB byte = 0x50
	OpAND byte = 0x60
	OpOR  byte = 0x70
	OpXOR byte = 0x80
	OpCMP byte = 0x90

	OpADDImm  byte = 0xA0
	OpSUBImm  byte = 0xA4
	OpANDImm  byte = 0xA8
	OpORImm   byte = 0xAC
	OpXORImm  byte = 0xB0
	OpCMPImm  byte = 0xB4
	OpTESTImm byte = 0xB8
	OpSHLImm  byte = 0xBC
	OpSHRImm  byte = 0xC0
	OpROLImm  byte = 0xC4
	OpRORImm  byte = 0xC8

	OpMOVSPImm byte = 0xCC

	OpCOREID     byte = 0xD0
	OpCORECOUNT  byte = 0xD1
	OpCORESTATUS byte = 0xD2
	OpCORESTART  byte = 0xD3
	OpCOREHALT   byte = 0xD4
	OpCOREINIT   byte = 0xD5
	OpCPUID      byte = 0xD6
	OpCPUCOUNT   byte = 0xD7
	OpCPUSTATUS  byte = 0xD8
	OpCPUSTART   byte = 0xD9
	OpCPUHALT    byte = 0xDA
	OpCPUINIT    byte = 0xDB
)

// R returns the opcode of a single-register group for register r.
func R(base byte, r Register) byte {
	return base + byte(r&0x03)
}

// RR returns the opcode of a register-pair group for dst and src.
func RR(base byte, dst, src Register) byte {
	return base + byte(dst&0x03)<<2 + byte(src&0x03)
}
