package isa

import "fmt"

// Instruction describes one opcode of the fixed instruction set.
type Instruction struct {
	Mnemonic string
	Opcode   byte
	Kind     Kind
	Shape    Shape
	Length   int
	Dst      Register // meaningful for REG, REG_REG, REG_IMM8, REG_MEM, MEM_REG
	Src      Register // meaningful for REG_REG
}

// InstructionSet is the immutable opcode table. It is built once and shared
// by every core; nothing mutates it after construction.
type InstructionSet struct {
	byOpcode   [256]*Instruction
	byMnemonic map[string]*Instruction
	count      int
}

var defaultSet = NewInstructionSet()

// Default returns the shared instruction set.
func Default() *InstructionSet {
	return defaultSet
}

type fixedEntry struct {
	name   string
	opcode byte
	kind   Kind
	shape  Shape
}

var fixed = []fixedEntry{
	{"NOP", OpNOP, KindNOP, ShapeNone},
	{"HALT", OpHALT, KindHALT, ShapeNone},
	{"BREAKPOINT", OpBREAKPOINT, KindBREAKPOINT, ShapeNone},
	{"SYSCALL", OpSYSCALL, KindSYSCALL, ShapeImm8},
	{"EI", OpEI, KindEI, ShapeNone},
	{"DI", OpDI, KindDI, ShapeNone},
	{"CALL", OpCALL, KindCALL, ShapeImm16},
	{"RET", OpRET, KindRET, ShapeNone},
	{"IRET", OpIRET, KindIRET, ShapeNone},
	{"JMP", OpJMP, KindJMP, ShapeImm16},
	{"JZ", OpJZ, KindJZ, ShapeImm16},
	{"JNZ", OpJNZ, KindJNZ, ShapeImm16},
	{"JC", OpJC, KindJC, ShapeImm16},
	{"JNC", OpJNC, KindJNC, ShapeImm16},
	{"PUSHF", OpPUSHF, KindPUSHF, ShapeNone},
	{"POPF", OpPOPF, KindPOPF, ShapeNone},
	{"MOV_SP_IMM", OpMOVSPImm, KindLoadSP, ShapeImm16},
	{"CORE_ID", OpCOREID, KindCoreID, ShapeNone},
	{"CORE_COUNT", OpCORECOUNT, KindCoreCount, ShapeNone},
	{"CORE_STATUS", OpCORESTATUS, KindCoreStatus, ShapeNone},
	{"CORE_START", OpCORESTART, KindCoreStart, ShapeNone},
	{"CORE_HALT", OpCOREHALT, KindCoreHalt, ShapeNone},
	{"CORE_INIT", OpCOREINIT, KindCoreInit, ShapeNone},
	{"CPU_ID", OpCPUID, KindCPUID, ShapeNone},
	{"CPU_COUNT", OpCPUCOUNT, KindCPUCount, ShapeNone},
	{"CPU_STATUS", OpCPUSTATUS, KindCPUStatus, ShapeNone},
	{"CPU_START", OpCPUSTART, KindCPUStart, ShapeNone},
	{"CPU_HALT", OpCPUHALT, KindCPUHalt, ShapeNone},
	{"CPU_INIT", OpCPUINIT, KindCPUInit, ShapeNone},
}

// registerGroup is a block of four opcodes, one per register.
type registerGroup struct {
	format string // mnemonic with %s for the register
	base   byte
	kind   Kind
	shape  Shape
}

var registerGroups = []registerGroup{
	{"MOV_%s_IMM", OpMOVImm, KindMOVImm, ShapeRegImm8},
	{"MOV_%s_MEM", OpMOVLoad, KindLoad, ShapeRegMem},
	{"MOV_MEM_%s", OpMOVStore, KindStore, ShapeMemReg},
	{"PUSH_%s", OpPUSH, KindPUSH, ShapeReg},
	{"POP_%s", OpPOP, KindPOP, ShapeReg},
	{"INC_%s", OpINC, KindINC, ShapeReg},
	{"DEC_%s", OpDEC, KindDEC, ShapeReg},
	{"NOT_%s", OpNOT, KindNOT, ShapeReg},
	{"ADD_%s_IMM", OpADDImm, KindADD, ShapeRegImm8},
	{"SUB_%s_IMM", OpSUBImm, KindSUB, ShapeRegImm8},
	{"AND_%s_IMM", OpANDImm, KindAND, ShapeRegImm8},
	{"OR_%s_IMM", OpORImm, KindOR, ShapeRegImm8},
	{"XOR_%s_IMM", OpXORImm, KindXOR, ShapeRegImm8},
	{"CMP_%s_IMM", OpCMPImm, KindCMP, ShapeRegImm8},
	{"TEST_%s_IMM", OpTESTImm, KindTEST, ShapeRegImm8},
	{"SHL_%s_IMM", OpSHLImm, KindSHL, ShapeRegImm8},
	{"SHR_%s_IMM", OpSHRImm, KindSHR, ShapeRegImm8},
	{"ROL_%s_IMM", OpROLImm, KindROL, ShapeRegImm8},
	{"ROR_%s_IMM", OpRORImm, KindROR, ShapeRegImm8},
}

// pairGroup is a block of sixteen opcodes indexed by dst*4+src.
type pairGroup struct {
	name string
	base byte
	kind Kind
}

var pairGroups = []pairGroup{
	{"MOV", OpMOV, KindMOV},
	{"ADD", OpADD, KindADD},
	{"SUB", OpSUB, KindSUB},
	{"AND", OpAND, KindAND},
	{"OR", OpOR, KindOR},
	{"XOR", OpXOR, KindXOR},
	{"CMP", OpCMP, KindCMP},
}

// NewInstructionSet builds the opcode table. It panics if two entries claim
// the same opcode or mnemonic, which can only happen through a programming error.
func NewInstructionSet() *InstructionSet {
	s := &InstructionSet{byMnemonic: make(map[string]*Instruction)}

	for _, f := range fixed {
		s.add(Instruction{Mnemonic: f.name, Opcode: f.opcode, Kind: f.kind, Shape: f.shape})
	}
	for _, g := range registerGroups {
		for _, r := range Registers {
			s.add(Instruction{
				Mnemonic: fmt.Sprintf(g.format, r),
				Opcode:   R(g.base, r),
				Kind:     g.kind,
				Shape:    g.shape,
				Dst:      r,
			})
		}
	}
	for _, g := range pairGroups {
		for _, dst := range Registers {
			for _, src := range Registers {
				if g.kind == KindMOV && dst == src {
					continue
				}
				s.add(Instruction{
					Mnemonic: fmt.Sprintf("%s_%s_%s", g.name, dst, src),
					Opcode:   RR(g.base, dst, src),
					Kind:     g.kind,
					Shape:    ShapeRegReg,
					Dst:      dst,
					Src:      src,
				})
			}
		}
	}
	return s
}

func (s *InstructionSet) add(in Instruction) {
	in.Length = in.Shape.Length()
	if s.byOpcode[in.Opcode] != nil {
		panic(fmt.Sprintf("isa: opcode 0x%02X assigned to both %s and %s", in.Opcode, s.byOpcode[in.Opcode].Mnemonic, in.Mnemonic))
	}
	if _, dup := s.byMnemonic[in.Mnemonic]; dup {
		panic(fmt.Sprintf("isa: duplicate mnemonic %s", in.Mnemonic))
	}
	entry := in
	s.byOpcode[in.Opcode] = &entry
	s.byMnemonic[in.Mnemonic] = &entry
	s.count++
}

// Lookup returns the instruction for an opcode byte.
func (s *InstructionSet) Lookup(opcode byte) (Instruction, bool) {
	in := s.byOpcode[opcode]
	if in == nil {
		return Instruction{}, false
	}
	return *in, true
}

// ByMnemonic returns the instruction with the given mnemonic, e.g. "MOV_A_IMM".
func (s *InstructionSet) ByMnemonic(name string) (Instruction, bool) {
	in, ok := s.byMnemonic[name]
	if !ok {
		return Instruction{}, false
	}
	return *in, true
}

// Opcode returns the opcode for a mnemonic and panics if it does not exist.
// It is meant for building fixed programs in tests and tools.
func (s *InstructionSet) Opcode(name string) byte {
	in, ok := s.byMnemonic[name]
	if !ok {
		panic("isa: unknown mnemonic " + name)
	}
	return in.Opcode
}

// Len returns the number of defined opcodes.
func (s *InstructionSet) Len() int {
	return s.count
}

// All returns a copy of every instruction ordered by opcode.
func (s *InstructionSet) All() []Instruction {
	out := make([]Instruction, 0, s.count)
	for _, in := range s.byOpcode {
		if in != nil {
			out = append(out, *in)
		}
	}
	return out
}
