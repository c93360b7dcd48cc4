package cpu

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"gocpu8/pkg/alu"
	"gocpu8/pkg/isa"
)

// handler executes one decoded instruction found at pc and returns the next
// PC. Control transfers return their target; everything else returns pc plus
// the instruction length.
type handler func(c *Core, pc uint16) (uint16, error)

// dispatchTable maps every opcode byte to its handler. Bytes the instruction
// set does not define map to unknownOpcode.
type dispatchTable [256]handler

func newDispatchTable(set *isa.InstructionSet) *dispatchTable {
	t := &dispatchTable{}
	for i := range t {
		t[i] = unknownOpcode
	}
	for _, in := range set.All() {
		t[in.Opcode] = bind(in)
	}
	return t
}

// bind produces the handler for one instruction, closing over its operands.
func bind(in isa.Instruction) handler {
	next := func(pc uint16) uint16 { return pc + uint16(in.Length) }
	dst, src := in.Dst, in.Src

	switch in.Kind {
	case isa.KindNOP:
		return func(c *Core, pc uint16) (uint16, error) { return next(pc), nil }
	case isa.KindHALT:
		return func(c *Core, pc uint16) (uint16, error) {
			c.halted = true
			return next(pc), nil
		}
	case isa.KindBREAKPOINT:
		return execBreakpoint
	case isa.KindSYSCALL:
		return execSyscall
	case isa.KindEI:
		return func(c *Core, pc uint16) (uint16, error) {
			c.interruptsEnabled = true
			return next(pc), nil
		}
	case isa.KindDI:
		return func(c *Core, pc uint16) (uint16, error) {
			c.interruptsEnabled = false
			return next(pc), nil
		}
	case isa.KindCALL:
		return func(c *Core, pc uint16) (uint16, error) {
			ret := next(pc)
			c.push(byte(ret >> 8))
			c.push(byte(ret))
			return c.word(pc + 1), nil
		}
	case isa.KindRET:
		return func(c *Core, pc uint16) (uint16, error) {
			lo := c.pop()
			hi := c.pop()
			return uint16(hi)<<8 | uint16(lo), nil
		}
	case isa.KindIRET:
		return func(c *Core, pc uint16) (uint16, error) {
			lo := c.pop()
			hi := c.pop()
			c.Flags = c.pop()
			c.interruptsEnabled = true
			c.inHandler = false
			return uint16(hi)<<8 | uint16(lo), nil
		}
	case isa.KindJMP, isa.KindJZ, isa.KindJNZ, isa.KindJC, isa.KindJNC:
		kind := in.Kind
		return func(c *Core, pc uint16) (uint16, error) {
			if c.jumpTaken(kind) {
				return c.word(pc + 1), nil
			}
			return next(pc), nil
		}
	case isa.KindPUSHF:
		return func(c *Core, pc uint16) (uint16, error) {
			c.push(c.Flags)
			return next(pc), nil
		}
	case isa.KindPOPF:
		return func(c *Core, pc uint16) (uint16, error) {
			c.Flags = c.pop()
			return next(pc), nil
		}

	case isa.KindMOV:
		return func(c *Core, pc uint16) (uint16, error) {
			c.Set(dst, int(c.Get(src)))
			return next(pc), nil
		}
	case isa.KindMOVImm:
		return func(c *Core, pc uint16) (uint16, error) {
			c.Set(dst, int(c.cpu.mem.Read(pc+1)))
			return next(pc), nil
		}
	case isa.KindLoad:
		return func(c *Core, pc uint16) (uint16, error) {
			c.Set(dst, int(c.cpu.mem.Read(c.word(pc+1))))
			return next(pc), nil
		}
	case isa.KindStore:
		return func(c *Core, pc uint16) (uint16, error) {
			c.cpu.mem.Write(c.word(pc+1), c.Get(dst))
			return next(pc), nil
		}
	case isa.KindPUSH:
		return func(c *Core, pc uint16) (uint16, error) {
			c.push(c.Get(dst))
			return next(pc), nil
		}
	case isa.KindPOP:
		return func(c *Core, pc uint16) (uint16, error) {
			c.Set(dst, int(c.pop()))
			return next(pc), nil
		}
	case isa.KindLoadSP:
		return func(c *Core, pc uint16) (uint16, error) {
			c.SP = c.word(pc + 1)
			return next(pc), nil
		}

	case isa.KindINC, isa.KindDEC, isa.KindNOT:
		op := unaryOps[in.Kind]
		return func(c *Core, pc uint16) (uint16, error) {
			c.store(dst, op(c.Get(dst)))
			return next(pc), nil
		}
	case isa.KindADD, isa.KindSUB, isa.KindAND, isa.KindOR, isa.KindXOR, isa.KindCMP, isa.KindTEST:
		op := binaryOps[in.Kind]
		discard := in.Kind == isa.KindCMP || in.Kind == isa.KindTEST
		operand := func(c *Core, pc uint16) byte { return c.Get(src) }
		if in.Shape == isa.ShapeRegImm8 {
			operand = func(c *Core, pc uint16) byte { return c.cpu.mem.Read(pc + 1) }
		}
		return func(c *Core, pc uint16) (uint16, error) {
			r := op(c.Get(dst), operand(c, pc))
			if discard {
				c.SetFlags(r.Zero, r.Carry)
			} else {
				c.store(dst, r)
			}
			return next(pc), nil
		}
	case isa.KindSHL, isa.KindSHR:
		shift := alu.Shl
		if in.Kind == isa.KindSHR {
			shift = alu.Shr
		}
		return func(c *Core, pc uint16) (uint16, error) {
			c.store(dst, shift(c.Get(dst), c.cpu.mem.Read(pc+1)))
			return next(pc), nil
		}
	case isa.KindROL, isa.KindROR:
		rotate := alu.Rol
		if in.Kind == isa.KindROR {
			rotate = alu.Ror
		}
		return func(c *Core, pc uint16) (uint16, error) {
			c.store(dst, rotate(c.Get(dst), c.cpu.mem.Read(pc+1), c.Flag(FlagCarry)))
			return next(pc), nil
		}

	case isa.KindCoreID, isa.KindCoreCount, isa.KindCoreStatus, isa.KindCoreStart, isa.KindCoreHalt, isa.KindCoreInit:
		return coreOps[in.Kind]
	case isa.KindCPUID, isa.KindCPUCount, isa.KindCPUStatus, isa.KindCPUStart, isa.KindCPUHalt, isa.KindCPUInit:
		return cpuOps[in.Kind]
	}
	panic(fmt.Sprintf("cpu: no handler for %s (kind %d)", in.Mnemonic, in.Kind))
}

var unaryOps = map[isa.Kind]func(byte) alu.Result{
	isa.KindINC: alu.Inc,
	isa.KindDEC: alu.Dec,
	isa.KindNOT: alu.Not,
}

var binaryOps = map[isa.Kind]func(a, b byte) alu.Result{
	isa.KindADD:  alu.Add,
	isa.KindSUB:  alu.Sub,
	isa.KindAND:  alu.And,
	isa.KindOR:   alu.Or,
	isa.KindXOR:  alu.Xor,
	isa.KindCMP:  alu.Cmp,
	isa.KindTEST: alu.Test,
}

// unknownOpcode commits PC+1 and then halts the core, so a core that is
// inspected or restarted afterwards sits past the bad byte.
func unknownOpcode(c *Core, pc uint16) (uint16, error) {
	c.halted = true
	c.log.WithFields(logrus.Fields{
		"pc":     fmt.Sprintf("0x%04X", pc),
		"opcode": fmt.Sprintf("0x%02X", c.IR),
	}).Error("unknown opcode, core halted")
	return pc + 1, nil
}

func execBreakpoint(c *Core, pc uint16) (uint16, error) {
	if c.hasBreakpoint && c.breakpoint == pc {
		c.hasBreakpoint = false
		return pc + 1, nil
	}
	c.stopAt(pc)
	return pc, nil
}

func execSyscall(c *Core, pc uint16) (uint16, error) {
	number := c.cpu.mem.Read(pc + 1)
	if number != 0 {
		if c.cpu.board == nil {
			c.log.WithField("syscall", number).Warn("no host for syscall")
			return pc + 2, nil
		}
		if err := c.cpu.board.Syscall(c, number); err != nil {
			return pc + 2, fmt.Errorf("syscall %d: %w", number, err)
		}
		return pc + 2, nil
	}

	if c.index != 0 {
		c.halted = true
		return pc + 2, nil
	}
	if c.cpu.board != nil {
		c.cpu.board.ClearProgram()
	} else if c.cpu.cache != nil {
		c.cpu.cache.Flush()
	}
	c.log.Debug("program exited")
	return isa.OSStart, nil
}

func (c *Core) jumpTaken(kind isa.Kind) bool {
	switch kind {
	case isa.KindJZ:
		return c.Flag(FlagZero)
	case isa.KindJNZ:
		return !c.Flag(FlagZero)
	case isa.KindJC:
		return c.Flag(FlagCarry)
	case isa.KindJNC:
		return !c.Flag(FlagCarry)
	}
	return true
}

// store writes an ALU result to a register and updates the flags.
func (c *Core) store(reg isa.Register, r alu.Result) {
	c.Set(reg, int(r.Value))
	c.SetFlags(r.Zero, r.Carry)
}

// word reads a little-endian 16-bit operand.
func (c *Core) word(addr uint16) uint16 {
	lo := c.cpu.mem.Read(addr)
	hi := c.cpu.mem.Read(addr + 1)
	return uint16(hi)<<8 | uint16(lo)
}

func (c *Core) push(v byte) {
	c.SP--
	c.cpu.mem.Write(c.SP, v)
}

func (c *Core) pop() byte {
	v := c.cpu.mem.Read(c.SP)
	c.SP++
	return v
}
