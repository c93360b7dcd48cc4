package cpu

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"gocpu8/pkg/bus"
	"gocpu8/pkg/isa"
)

var (
	// ErrNoBus is returned when a core is cycled without memory attached.
	ErrNoBus = errors.New("no memory bus attached")
	// ErrNoHandler is returned when an interrupt is delivered while the
	// controller's handler address is zero. There is no default vector.
	ErrNoHandler = errors.New("interrupt handler address is zero")
)

// Memory is a core's view of the address space.
type Memory interface {
	Read(addr uint16) byte
	Write(addr uint16, val byte)
}

// InterruptSource is the part of the interrupt controller a core uses.
type InterruptSource interface {
	Deliverable(cpu, core int) (int, bool)
	Acknowledge(irq int)
	HandlerAddress() uint16
}

// Board is the motherboard a CPU is installed in. It owns every CPU and
// mediates anything that crosses CPU boundaries.
type Board interface {
	HasBreakpoint(addr uint16) bool
	// Paused is called when a core stops on a breakpoint.
	Paused(cpu, core int, pc uint16)
	CPUCount() int
	CPU(index int) *CPU
	// ClearProgram wipes the program region and every CPU cache.
	ClearProgram()
	// Syscall handles every SYSCALL number except 0.
	Syscall(core *Core, number byte) error
}

// Options configures a CPU.
type Options struct {
	Index        int
	Cores        int
	Memory       Memory
	Cache        *bus.L1Cache
	Instructions *isa.InstructionSet
	Interrupts   InterruptSource
	Board        Board
	Logger       logrus.FieldLogger
}

// CPU groups one or more cores that share an L1 cache. It is halted and
// started as a unit and may be paused by a breakpoint.
type CPU struct {
	index  int
	cores  []*Core
	mem    Memory
	cache  *bus.L1Cache
	set    *isa.InstructionSet
	ops    *dispatchTable
	irq    InterruptSource
	board  Board
	halted bool
	paused bool
	log    *logrus.Entry
}

// New builds a CPU. Only CPU 0 starts running, and within a CPU only core 0;
// everything else waits for CPU_START or CORE_START.
func New(opts Options) *CPU {
	if opts.Cores <= 0 {
		opts.Cores = 1
	}
	if opts.Instructions == nil {
		opts.Instructions = isa.Default()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	c := &CPU{
		index:  opts.Index,
		mem:    opts.Memory,
		cache:  opts.Cache,
		set:    opts.Instructions,
		ops:    newDispatchTable(opts.Instructions),
		irq:    opts.Interrupts,
		board:  opts.Board,
		halted: opts.Index != 0,
		log:    opts.Logger.WithField("cpu", opts.Index),
	}
	for i := 0; i < opts.Cores; i++ {
		core := newCore(c, i)
		core.halted = i != 0
		c.cores = append(c.cores, core)
	}
	return c
}

func (c *CPU) Index() int {
	return c.index
}

// Core returns the core at index, or nil if there is none.
func (c *CPU) Core(index int) *Core {
	if index < 0 || index >= len(c.cores) {
		return nil
	}
	return c.cores[index]
}

func (c *CPU) Cores() []*Core {
	return c.cores
}

func (c *CPU) CoreCount() int {
	return len(c.cores)
}

func (c *CPU) Cache() *bus.L1Cache {
	return c.cache
}

func (c *CPU) Instructions() *isa.InstructionSet {
	return c.set
}

func (c *CPU) Halted() bool {
	return c.halted
}

func (c *CPU) Halt() {
	c.halted = true
}

func (c *CPU) Start() {
	c.halted = false
}

func (c *CPU) Paused() bool {
	return c.paused
}

func (c *CPU) Pause() {
	c.paused = true
}

func (c *CPU) Resume() {
	c.paused = false
}

// SetPC points every core at addr. It is only honoured while the CPU is
// halted.
func (c *CPU) SetPC(addr uint16) bool {
	if !c.halted {
		return false
	}
	for _, core := range c.cores {
		core.PC = addr
	}
	return true
}

// Cycle runs one core-cycle on each core in index order. A halted or paused
// CPU does nothing; a core that halts or pauses its own CPU stops the
// remaining cores for this cycle.
func (c *CPU) Cycle() error {
	for _, core := range c.cores {
		if c.halted || c.paused {
			return nil
		}
		if err := core.Cycle(); err != nil {
			return fmt.Errorf("cpu %d core %d: %w", c.index, core.index, err)
		}
	}
	return nil
}

// Reset returns every core to its power-on state and clears the cache.
func (c *CPU) Reset() {
	for i, core := range c.cores {
		core.reset()
		core.halted = i != 0
	}
	c.halted = c.index != 0
	c.paused = false
	if c.cache != nil {
		c.cache.Flush()
	}
}

// State is the run state of a CPU and its cores, for snapshots.
type State struct {
	Index  int         `json:"index"`
	Halted bool        `json:"halted"`
	Paused bool        `json:"paused"`
	Cores  []CoreState `json:"cores"`
}

func (c *CPU) State() State {
	s := State{Index: c.index, Halted: c.halted, Paused: c.paused}
	for _, core := range c.cores {
		s.Cores = append(s.Cores, core.State())
	}
	return s
}

// Restore loads a snapshot taken with State. The core count must match.
func (c *CPU) Restore(s State) error {
	if len(s.Cores) != len(c.cores) {
		return fmt.Errorf("cpu %d: snapshot has %d cores, machine has %d", c.index, len(s.Cores), len(c.cores))
	}
	c.halted = s.Halted
	c.paused = s.Paused
	for i, cs := range s.Cores {
		c.cores[i].Restore(cs)
	}
	if c.cache != nil {
		c.cache.Flush()
	}
	return nil
}
