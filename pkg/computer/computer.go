// Package computer is the motherboard: it owns the bus, the interrupt
// controller and every CPU, mediates cross-CPU control, and provides the
// host side of the machine (program loading, breakpoints, syscalls, events
// and snapshots).
package computer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"gocpu8/pkg/bus"
	"gocpu8/pkg/cpu"
	"gocpu8/pkg/interrupt"
	"gocpu8/pkg/isa"
)

// ErrNoSuchCore is returned by accessors given an out-of-range cpu or core.
var ErrNoSuchCore = errors.New("no such cpu or core")

// Computer is safe for use from several goroutines: a Clock ticks it while a
// debugger inspects it. Event subscribers run with the machine locked and
// must not call back into it.
type Computer struct {
	mu sync.Mutex

	cfg         Config
	set         *isa.InstructionSet
	bus         *bus.Bus
	irq         *interrupt.Controller
	cpus        []*cpu.CPU
	breakpoints map[uint16]struct{}
	syscalls    map[byte]SyscallFunc
	ticks       uint64

	events observers
	log    *logrus.Entry
}

// New builds a machine from cfg. Only CPU 0, core 0 is running afterwards
// and its PC is the reset vector.
func New(cfg Config) (*Computer, error) {
	if cfg.Logger == nil && cfg.LogLevel != "" {
		cfg.Logger = logrus.New()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.LogLevel != "" {
		level, _ := logrus.ParseLevel(cfg.LogLevel)
		cfg.Logger.SetLevel(level)
	}

	m := &Computer{
		cfg:         cfg,
		set:         isa.Default(),
		bus:         bus.New(cfg.Logger),
		irq:         interrupt.New(cfg.Logger),
		breakpoints: make(map[uint16]struct{}),
		syscalls:    make(map[byte]SyscallFunc),
		log:         cfg.Logger.WithField("component", "computer"),
	}
	for n, fn := range cfg.Syscalls {
		m.syscalls[n] = fn
	}
	for _, addr := range cfg.Breakpoints {
		m.breakpoints[addr] = struct{}{}
	}
	if err := m.bus.Mount(cfg.InterruptSlot, m.irq); err != nil {
		return nil, err
	}
	m.irq.OnChange(func(s interrupt.State) {
		m.events.emit(InterruptChange{State: s})
	})

	b := board{m}
	for i := 0; i < cfg.CPUs; i++ {
		cache, err := bus.NewL1Cache(cfg.CacheSize)
		if err != nil {
			return nil, err
		}
		m.cpus = append(m.cpus, cpu.New(cpu.Options{
			Index:        i,
			Cores:        cfg.CoresPerCPU,
			Memory:       m.bus.NewAccessor(cache),
			Cache:        cache,
			Instructions: m.set,
			Interrupts:   m.irq,
			Board:        b,
			Logger:       cfg.Logger,
		}))
	}
	m.log.WithFields(logrus.Fields{"cpus": cfg.CPUs, "cores": cfg.CoresPerCPU}).Debug("machine built")
	return m, nil
}

func (m *Computer) Config() Config {
	return m.cfg
}

// Bus exposes the shared bus. Callers must not use it while a Clock runs.
func (m *Computer) Bus() *bus.Bus {
	return m.bus
}

func (m *Computer) Interrupts() *interrupt.Controller {
	return m.irq
}

func (m *Computer) Instructions() *isa.InstructionSet {
	return m.set
}

func (m *Computer) CPUCount() int {
	return len(m.cpus)
}

// CPU returns the CPU at index, or nil.
func (m *Computer) CPU(index int) *cpu.CPU {
	if index < 0 || index >= len(m.cpus) {
		return nil
	}
	return m.cpus[index]
}

// Subscribe registers fn for every event and returns a function that
// removes it. With no subscribers no per-tick snapshots are built.
func (m *Computer) Subscribe(fn func(Event)) (unsubscribe func()) {
	return m.events.subscribe(fn)
}

// Mount places a device in an I/O slot. The interrupt controller's slot is
// reserved.
func (m *Computer) Mount(slot int, d bus.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if slot == m.cfg.InterruptSlot {
		return fmt.Errorf("slot %d holds the interrupt controller", slot)
	}
	return m.bus.Mount(slot, d)
}

// Tick advances devices once and then runs one cycle on every CPU in index
// order. The first engine error stops the tick and is returned.
func (m *Computer) Tick() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tick()
}

func (m *Computer) tick() error {
	m.bus.Tick()
	for _, c := range m.cpus {
		if err := c.Cycle(); err != nil {
			return err
		}
	}
	m.ticks++
	if m.events.active() {
		m.publishSnapshots()
	}
	return nil
}

func (m *Computer) publishSnapshots() {
	for _, c := range m.cpus {
		for _, core := range c.Cores() {
			m.events.emit(CoreSnapshot{
				CPU:       c.Index(),
				Core:      core.Index(),
				Registers: core.Registers,
				State:     core.RunState(),
				Cycles:    core.Cycles(),
			})
		}
	}
}

// Step runs n ticks, stopping early on error.
func (m *Computer) Step(n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < n; i++ {
		if err := m.tick(); err != nil {
			return err
		}
	}
	return nil
}

// Run ticks until ctx is done, a breakpoint pauses a CPU, every core is
// halted, or limit ticks have run (0 means no limit). It returns the number
// of ticks executed.
func (m *Computer) Run(ctx context.Context, limit uint64) (uint64, error) {
	var n uint64
	for limit == 0 || n < limit {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		m.mu.Lock()
		if m.paused() || m.idle() {
			m.mu.Unlock()
			return n, nil
		}
		err := m.tick()
		m.mu.Unlock()
		if err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (m *Computer) Ticks() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ticks
}

// Paused reports whether any CPU is stopped on a breakpoint.
func (m *Computer) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused()
}

func (m *Computer) paused() bool {
	for _, c := range m.cpus {
		if c.Paused() {
			return true
		}
	}
	return false
}

// Idle reports whether no core can make progress: every CPU is halted or
// has only halted cores.
func (m *Computer) Idle() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.idle()
}

func (m *Computer) idle() bool {
	for _, c := range m.cpus {
		if c.Halted() {
			continue
		}
		for _, core := range c.Cores() {
			if !core.Halted() {
				return false
			}
		}
	}
	return true
}

// Reset returns every CPU and device to its power-on state and clears the
// caches. Memory contents and breakpoints are kept.
func (m *Computer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bus.Reset()
	for _, c := range m.cpus {
		c.Reset()
	}
	m.ticks = 0
}

// AddBreakpoint stops any core whose PC reaches addr.
func (m *Computer) AddBreakpoint(addr uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.breakpoints[addr] = struct{}{}
}

func (m *Computer) RemoveBreakpoint(addr uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.breakpoints, addr)
}

// Breakpoints returns the breakpoint set in ascending order.
func (m *Computer) Breakpoints() []uint16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedBreakpoints()
}

func (m *Computer) sortedBreakpoints() []uint16 {
	out := make([]uint16, 0, len(m.breakpoints))
	for addr := range m.breakpoints {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Resume un-pauses every CPU. A core stopped on a breakpoint executes the
// instruction at that address on its next cycle.
func (m *Computer) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.cpus {
		c.Resume()
	}
}

// HandleSyscall installs fn for SYSCALL number n. Number 0 is the built-in
// exit and cannot be replaced.
func (m *Computer) HandleSyscall(n byte, fn SyscallFunc) error {
	if n == 0 {
		return errors.New("syscall 0 is reserved for program exit")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if fn == nil {
		delete(m.syscalls, n)
	} else {
		m.syscalls[n] = fn
	}
	return nil
}

// LoadROM replaces the ROM contents.
func (m *Computer) LoadROM(image []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bus.ROM().Load(image)
}

// LoadOS copies image to the start of the OS region.
func (m *Computer) LoadOS(image []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadRegion("os", isa.OSStart, isa.OSEnd, image)
}

// LoadProgram clears the program region, copies image to its start and
// points CPU 0, core 0 at it with a fresh stack. CPU 0 and its first core
// are started if they were halted.
func (m *Computer) LoadProgram(image []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := checkRegion("program", isa.ProgramStart, isa.ProgramEnd, image); err != nil {
		return err
	}
	m.bus.ClearRAM(isa.ProgramStart, isa.ProgramEnd)
	if err := m.loadRegion("program", isa.ProgramStart, isa.ProgramEnd, image); err != nil {
		return err
	}
	c := m.cpus[0]
	core := c.Core(0)
	core.PC = isa.ProgramStart
	core.SP = isa.StackTop
	c.Start()
	core.Start()
	m.log.WithField("bytes", len(image)).Info("program loaded")
	return nil
}

func checkRegion(name string, start, end uint16, image []byte) error {
	if len(image) > int(end-start)+1 {
		return fmt.Errorf("%s image: %d bytes > %d: %w", name, len(image), int(end-start)+1, bus.ErrImageTooLarge)
	}
	return nil
}

func (m *Computer) loadRegion(name string, start, end uint16, image []byte) error {
	if err := checkRegion(name, start, end, image); err != nil {
		return err
	}
	if err := m.bus.RAM().Load(start, image); err != nil {
		return err
	}
	m.bus.FlushCaches()
	return nil
}

// Peek reads addr straight from the bus, bypassing every cache. Reading a
// device port has whatever side effect the device gives it.
func (m *Computer) Peek(addr uint16) byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bus.Read(addr)
}

// Poke writes addr through the bus, so ROM stays read-only and cached
// copies are invalidated.
func (m *Computer) Poke(addr uint16, val byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bus.Write(addr, val)
}

// Disassemble renders the instruction at addr and returns its length.
func (m *Computer) Disassemble(addr uint16) (string, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.set.Disassemble(m.bus.Read, addr)
}

// DisassembleRange renders count instructions starting at addr, one
// "ADDR  TEXT" line each.
func (m *Computer) DisassembleRange(addr uint16, count int) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.set.DisassembleRange(m.bus.Read, addr, count)
}

// RequestInterrupt raises an IRQ line on the controller.
func (m *Computer) RequestInterrupt(irq int) {
	m.irq.Request(irq)
}

func (m *Computer) core(cpuIndex, coreIndex int) (*cpu.Core, error) {
	c := m.CPU(cpuIndex)
	if c == nil {
		return nil, fmt.Errorf("cpu %d: %w", cpuIndex, ErrNoSuchCore)
	}
	core := c.Core(coreIndex)
	if core == nil {
		return nil, fmt.Errorf("cpu %d core %d: %w", cpuIndex, coreIndex, ErrNoSuchCore)
	}
	return core, nil
}

// Registers returns a copy of one core's register file.
func (m *Computer) Registers(cpuIndex, coreIndex int) (cpu.Registers, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	core, err := m.core(cpuIndex, coreIndex)
	if err != nil {
		return cpu.Registers{}, err
	}
	return core.Registers, nil
}

// RunState reports whether one core is running, halted, stopped on a
// breakpoint or inside an interrupt handler.
func (m *Computer) RunState(cpuIndex, coreIndex int) (cpu.RunState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	core, err := m.core(cpuIndex, coreIndex)
	if err != nil {
		return 0, err
	}
	return core.RunState(), nil
}

// SetRegister writes one register by its debugger name.
func (m *Computer) SetRegister(cpuIndex, coreIndex int, name string, value int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	core, err := m.core(cpuIndex, coreIndex)
	if err != nil {
		return err
	}
	if !core.SetByName(name, value) {
		return fmt.Errorf("unknown register %q", name)
	}
	return nil
}

// Snapshot returns the current state of every core.
func (m *Computer) Snapshot() []CoreSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []CoreSnapshot
	for _, c := range m.cpus {
		for _, core := range c.Cores() {
			out = append(out, CoreSnapshot{
				CPU:       c.Index(),
				Core:      core.Index(),
				Registers: core.Registers,
				State:     core.RunState(),
				Cycles:    core.Cycles(),
			})
		}
	}
	return out
}

// board is the cpu.Board view of the machine. Its methods run inside a tick
// with the machine already locked.
type board struct {
	m *Computer
}

func (b board) HasBreakpoint(addr uint16) bool {
	_, ok := b.m.breakpoints[addr]
	return ok
}

func (b board) Paused(cpuIndex, coreIndex int, pc uint16) {
	b.m.events.emit(BreakpointHit{CPU: cpuIndex, Core: coreIndex, PC: pc})
}

func (b board) CPUCount() int {
	return len(b.m.cpus)
}

func (b board) CPU(index int) *cpu.CPU {
	return b.m.CPU(index)
}

func (b board) ClearProgram() {
	b.m.bus.ClearRAM(isa.ProgramStart, isa.ProgramEnd)
}

func (b board) Syscall(core *cpu.Core, number byte) error {
	fn, ok := b.m.syscalls[number]
	if !ok {
		b.m.log.WithFields(logrus.Fields{
			"syscall": number,
			"cpu":     core.CPU().Index(),
			"core":    core.Index(),
		}).Warn("unhandled syscall")
		return nil
	}
	return fn(core, b.m.bus)
}
