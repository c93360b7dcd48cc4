package cpu

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"gocpu8/pkg/isa"
)

// RunState is the externally visible state of a core.
type RunState int

const (
	Running RunState = iota
	Halted
	WaitingOnBreakpoint
	HandlingInterrupt
)

func (s RunState) String() string {
	switch s {
	case Running:
		return "running"
	case Halted:
		return "halted"
	case WaitingOnBreakpoint:
		return "breakpoint"
	case HandlingInterrupt:
		return "interrupt"
	}
	return fmt.Sprintf("RunState(%d)", int(s))
}

// Core is one fetch-decode-execute unit. Its register file is only ever
// touched by its own cycle, by sibling cores through the CPU, or by a
// debugger while the machine is stopped.
type Core struct {
	Registers

	index int
	cpu   *CPU

	interruptsEnabled bool
	inHandler         bool
	halted            bool

	// breakpoint is the PC the core last stopped at. It is one-shot: the
	// next cycle at that PC clears it and executes normally.
	breakpoint    uint16
	hasBreakpoint bool

	cycles uint64
	log    *logrus.Entry
}

func newCore(c *CPU, index int) *Core {
	core := &Core{
		index: index,
		cpu:   c,
		log:   c.log.WithField("core", index),
	}
	core.reset()
	return core
}

func (c *Core) reset() {
	c.Registers = Registers{PC: isa.ResetVector}
	c.interruptsEnabled = false
	c.inHandler = false
	c.halted = false
	c.breakpoint = 0
	c.hasBreakpoint = false
	c.cycles = 0
}

func (c *Core) Index() int {
	return c.index
}

func (c *Core) CPU() *CPU {
	return c.cpu
}

func (c *Core) Halted() bool {
	return c.halted
}

// Halt stops the core. It is idempotent.
func (c *Core) Halt() {
	c.halted = true
}

func (c *Core) Start() {
	c.halted = false
}

// InterruptsEnabled reports the core's global interrupt enable flag.
func (c *Core) InterruptsEnabled() bool {
	return c.interruptsEnabled
}

func (c *Core) SetInterruptsEnabled(on bool) {
	c.interruptsEnabled = on
}

// InHandler reports whether the core is running an interrupt handler.
func (c *Core) InHandler() bool {
	return c.inHandler
}

// Cycles is the number of instructions fetched so far.
func (c *Core) Cycles() uint64 {
	return c.cycles
}

// Breakpoint returns the PC the core is stopped at, if any.
func (c *Core) Breakpoint() (uint16, bool) {
	return c.breakpoint, c.hasBreakpoint
}

func (c *Core) RunState() RunState {
	switch {
	case c.halted:
		return Halted
	case c.hasBreakpoint && c.breakpoint == c.PC && c.cpu.paused:
		return WaitingOnBreakpoint
	case c.inHandler:
		return HandlingInterrupt
	}
	return Running
}

// Cycle performs one step of the core: nothing if halted, otherwise either
// a breakpoint stop, an interrupt entry or one complete instruction.
func (c *Core) Cycle() error {
	if c.halted {
		return nil
	}
	mem := c.cpu.mem
	if mem == nil {
		return ErrNoBus
	}

	pc := c.PC
	if board := c.cpu.board; board != nil && board.HasBreakpoint(pc) {
		if !c.hasBreakpoint || c.breakpoint != pc {
			if !c.cpu.paused {
				c.stopAt(pc)
				return nil
			}
		} else {
			c.hasBreakpoint = false
		}
	}

	if c.interruptsEnabled && !c.inHandler && c.cpu.irq != nil {
		if irq, ok := c.cpu.irq.Deliverable(c.cpu.index, c.index); ok {
			return c.enterInterrupt(irq)
		}
	}

	c.cycles++
	c.IR = mem.Read(pc)
	next, err := c.cpu.ops[c.IR](c, pc)
	if err != nil {
		return err
	}
	c.PC = next
	if c.log.Logger.IsLevelEnabled(logrus.TraceLevel) {
		c.log.WithField("pc", fmt.Sprintf("0x%04X", pc)).Trace(c.Registers.String())
	}
	return nil
}

// stopAt records pc as the current breakpoint and pauses the CPU.
func (c *Core) stopAt(pc uint16) {
	c.breakpoint = pc
	c.hasBreakpoint = true
	c.cpu.paused = true
	c.log.WithField("pc", fmt.Sprintf("0x%04X", pc)).Info("breakpoint")
	if c.cpu.board != nil {
		c.cpu.board.Paused(c.cpu.index, c.index, pc)
	}
}

// enterInterrupt saves FLAGS, PC high and PC low below SP, acknowledges the
// line and jumps to the handler.
func (c *Core) enterInterrupt(irq int) error {
	handler := c.cpu.irq.HandlerAddress()
	if handler == 0 {
		return fmt.Errorf("irq %d: %w", irq, ErrNoHandler)
	}
	c.interruptsEnabled = false
	c.inHandler = true

	mem := c.cpu.mem
	sp := c.SP
	mem.Write(sp-1, c.Flags)
	mem.Write(sp-2, byte(c.PC>>8))
	mem.Write(sp-3, byte(c.PC))
	c.SP = sp - 3

	c.cpu.irq.Acknowledge(irq)
	c.PC = handler
	c.log.WithFields(logrus.Fields{"irq": irq, "handler": fmt.Sprintf("0x%04X", handler)}).Debug("interrupt")
	return nil
}

// CoreState is a snapshot of one core.
type CoreState struct {
	Registers         Registers `json:"registers"`
	Halted            bool      `json:"halted"`
	InterruptsEnabled bool      `json:"interrupts_enabled"`
	InHandler         bool      `json:"in_handler"`
	Breakpoint        *uint16   `json:"breakpoint,omitempty"`
	Cycles            uint64    `json:"cycles"`
}

func (c *Core) State() CoreState {
	s := CoreState{
		Registers:         c.Registers,
		Halted:            c.halted,
		InterruptsEnabled: c.interruptsEnabled,
		InHandler:         c.inHandler,
		Cycles:            c.cycles,
	}
	if c.hasBreakpoint {
		bp := c.breakpoint
		s.Breakpoint = &bp
	}
	return s
}

func (c *Core) Restore(s CoreState) {
	c.Registers = s.Registers
	c.halted = s.Halted
	c.interruptsEnabled = s.InterruptsEnabled
	c.inHandler = s.InHandler
	c.cycles = s.Cycles
	c.hasBreakpoint = s.Breakpoint != nil
	c.breakpoint = 0
	if s.Breakpoint != nil {
		c.breakpoint = *s.Breakpoint
	}
}
