package isa

import "fmt"

// Disassemble renders the instruction at addr. read supplies memory bytes.
// The returned length is the number of bytes consumed; unknown opcodes are
// rendered as a one byte DB directive.
func (s *InstructionSet) Disassemble(read func(uint16) byte, addr uint16) (string, int) {
	op := read(addr)
	in, ok := s.Lookup(op)
	if !ok {
		return fmt.Sprintf("DB 0x%02X", op), 1
	}

	switch in.Shape {
	case ShapeRegImm8, ShapeImm8:
		return fmt.Sprintf("%s 0x%02X", in.Mnemonic, read(addr+1)), in.Length
	case ShapeRegMem, ShapeMemReg:
		return fmt.Sprintf("%s [0x%04X]", in.Mnemonic, word(read, addr+1)), in.Length
	case ShapeImm16:
		return fmt.Sprintf("%s 0x%04X", in.Mnemonic, word(read, addr+1)), in.Length
	}
	return in.Mnemonic, in.Length
}

// DisassembleRange renders count instructions starting at addr.
func (s *InstructionSet) DisassembleRange(read func(uint16) byte, addr uint16, count int) []string {
	lines := make([]string, 0, count)
	for i := 0; i < count; i++ {
		text, n := s.Disassemble(read, addr)
		lines = append(lines, fmt.Sprintf("%04X  %s", addr, text))
		addr += uint16(n)
	}
	return lines
}

func word(read func(uint16) byte, addr uint16) uint16 {
	return uint16(read(addr)) | uint16(read(addr+1))<<8
}
