// Package monitor is a Lua-scriptable debugger for a computer.Computer.
//
// Scripts and interactive lines run in one Lua state that exposes the
// machine through a small set of globals:
//
//	step([n])                   run n ticks (default 1)
//	run([max])                  tick until halt, breakpoint or max ticks; returns ticks run
//	reg(cpu, core, name)        read a register (a b c d ir flags pc sp)
//	setreg(cpu, core, name, v)  write a register
//	regs([cpu, [core]])         register dump as a string
//	peek(addr) / poke(addr, v)  uncached bus access
//	brk(addr) / unbrk(addr)     add or remove a breakpoint
//	breakpoints()               table of breakpoint addresses
//	resume()                    continue after a breakpoint
//	halted(cpu, core)           true when the core is halted
//	paused()                    true when a CPU is stopped on a breakpoint
//	irq(line)                   raise an interrupt request
//	cycles()                    machine ticks so far
//	disasm(addr, [count])       disassembly, one instruction per line
//
// Addresses may be numbers or strings in any form ParseAddress accepts.
package monitor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"

	"gocpu8/pkg/computer"
	"gocpu8/pkg/cpu"
)

// Prompt is written before each interactive line.
const Prompt = "> "

// Monitor owns a Lua state bound to one machine. It is not safe for
// concurrent use.
type Monitor struct {
	m   *computer.Computer
	L   *lua.LState
	out io.Writer
	ctx context.Context
	log *logrus.Entry
}

// New builds a monitor for m. print and the monitor's own output go to out.
func New(m *computer.Computer, out io.Writer, log logrus.FieldLogger) *Monitor {
	if out == nil {
		out = io.Discard
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	mon := &Monitor{
		m:   m,
		L:   lua.NewState(),
		out: out,
		ctx: context.Background(),
		log: log.WithField("component", "monitor"),
	}
	mon.register()
	return mon
}

// Close releases the Lua state.
func (mon *Monitor) Close() {
	mon.L.Close()
}

func (mon *Monitor) register() {
	funcs := map[string]lua.LGFunction{
		"print":       mon.luaPrint,
		"step":        mon.luaStep,
		"run":         mon.luaRun,
		"reg":         mon.luaReg,
		"setreg":      mon.luaSetReg,
		"regs":        mon.luaRegs,
		"peek":        mon.luaPeek,
		"poke":        mon.luaPoke,
		"brk":         mon.luaBrk,
		"unbrk":       mon.luaUnbrk,
		"breakpoints": mon.luaBreakpoints,
		"resume":      mon.luaResume,
		"halted":      mon.luaHalted,
		"paused":      mon.luaPaused,
		"irq":         mon.luaIRQ,
		"cycles":      mon.luaCycles,
		"disasm":      mon.luaDisasm,
	}
	for name, fn := range funcs {
		mon.L.SetGlobal(name, mon.L.NewFunction(fn))
	}
}

// DoString runs a chunk of Lua. ctx bounds both the Lua code and any run()
// it performs.
func (mon *Monitor) DoString(ctx context.Context, src string) error {
	defer mon.bind(ctx)()
	return mon.L.DoString(src)
}

// DoFile runs a Lua script from disk.
func (mon *Monitor) DoFile(ctx context.Context, path string) error {
	defer mon.bind(ctx)()
	return mon.L.DoFile(path)
}

func (mon *Monitor) bind(ctx context.Context) func() {
	mon.ctx = ctx
	mon.L.SetContext(ctx)
	return func() {
		mon.L.RemoveContext()
		mon.ctx = context.Background()
	}
}

// REPL reads Lua lines from in until EOF, ctx is done, or the line "quit".
// Errors are reported on the output and do not end the session.
func (mon *Monitor) REPL(ctx context.Context, in io.Reader, prompt bool) error {
	scanner := bufio.NewScanner(in)
	for {
		if prompt {
			io.WriteString(mon.out, Prompt)
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "quit", "exit":
			return nil
		}
		if err := mon.DoString(ctx, line); err != nil {
			mon.log.WithError(err).Debug("monitor line failed")
			fmt.Fprintf(mon.out, "error: %v\n", err)
		}
	}
}

func (mon *Monitor) luaPrint(L *lua.LState) int {
	top := L.GetTop()
	parts := make([]string, 0, top)
	for i := 1; i <= top; i++ {
		parts = append(parts, L.ToStringMeta(L.Get(i)).String())
	}
	fmt.Fprintln(mon.out, strings.Join(parts, "\t"))
	return 0
}

func (mon *Monitor) luaStep(L *lua.LState) int {
	n := L.OptInt(1, 1)
	if err := mon.m.Step(n); err != nil {
		L.RaiseError("step: %v", err)
	}
	return 0
}

func (mon *Monitor) luaRun(L *lua.LState) int {
	limit := L.OptInt(1, 0)
	if limit < 0 {
		L.ArgError(1, "max must not be negative")
	}
	n, err := mon.m.Run(mon.ctx, uint64(limit))
	if err != nil {
		L.RaiseError("run: %v", err)
	}
	L.Push(lua.LNumber(n))
	return 1
}

func (mon *Monitor) luaReg(L *lua.LState) int {
	regs := mon.registers(L, 1, 2)
	name := strings.ToLower(L.CheckString(3))
	v, ok := regs.ByName(name)
	if !ok {
		L.ArgError(3, "unknown register "+name)
	}
	L.Push(lua.LNumber(v))
	return 1
}

func (mon *Monitor) luaSetReg(L *lua.LState) int {
	cpuIndex, coreIndex := L.CheckInt(1), L.CheckInt(2)
	name := strings.ToLower(L.CheckString(3))
	value := L.CheckInt(4)
	if err := mon.m.SetRegister(cpuIndex, coreIndex, name, value); err != nil {
		L.RaiseError("setreg: %v", err)
	}
	return 0
}

// luaRegs dumps every core, one CPU, or one core.
func (mon *Monitor) luaRegs(L *lua.LState) int {
	var b strings.Builder
	for _, s := range mon.m.Snapshot() {
		if L.GetTop() >= 1 && s.CPU != L.CheckInt(1) {
			continue
		}
		if L.GetTop() >= 2 && s.Core != L.CheckInt(2) {
			continue
		}
		fmt.Fprintf(&b, "cpu%d.core%d %-10s %s\n", s.CPU, s.Core, s.State, s.Registers)
	}
	L.Push(lua.LString(strings.TrimSuffix(b.String(), "\n")))
	return 1
}

func (mon *Monitor) luaPeek(L *lua.LState) int {
	L.Push(lua.LNumber(mon.m.Peek(checkAddress(L, 1))))
	return 1
}

func (mon *Monitor) luaPoke(L *lua.LState) int {
	addr := checkAddress(L, 1)
	mon.m.Poke(addr, byte(L.CheckInt(2)))
	return 0
}

func (mon *Monitor) luaBrk(L *lua.LState) int {
	mon.m.AddBreakpoint(checkAddress(L, 1))
	return 0
}

func (mon *Monitor) luaUnbrk(L *lua.LState) int {
	mon.m.RemoveBreakpoint(checkAddress(L, 1))
	return 0
}

func (mon *Monitor) luaBreakpoints(L *lua.LState) int {
	tbl := L.NewTable()
	for _, addr := range mon.m.Breakpoints() {
		tbl.Append(lua.LNumber(addr))
	}
	L.Push(tbl)
	return 1
}

func (mon *Monitor) luaResume(L *lua.LState) int {
	mon.m.Resume()
	return 0
}

func (mon *Monitor) luaHalted(L *lua.LState) int {
	state, err := mon.m.RunState(L.CheckInt(1), L.CheckInt(2))
	if err != nil {
		L.RaiseError("halted: %v", err)
	}
	L.Push(lua.LBool(state == cpu.Halted))
	return 1
}

func (mon *Monitor) luaPaused(L *lua.LState) int {
	L.Push(lua.LBool(mon.m.Paused()))
	return 1
}

func (mon *Monitor) luaIRQ(L *lua.LState) int {
	mon.m.RequestInterrupt(L.CheckInt(1))
	return 0
}

func (mon *Monitor) luaCycles(L *lua.LState) int {
	L.Push(lua.LNumber(mon.m.Ticks()))
	return 1
}

func (mon *Monitor) luaDisasm(L *lua.LState) int {
	addr := checkAddress(L, 1)
	count := L.OptInt(2, 1)
	if count < 0 {
		L.ArgError(2, "count must not be negative")
	}
	L.Push(lua.LString(strings.Join(mon.m.DisassembleRange(addr, count), "\n")))
	return 1
}

func (mon *Monitor) registers(L *lua.LState, cpuArg, coreArg int) cpu.Registers {
	regs, err := mon.m.Registers(L.CheckInt(cpuArg), L.CheckInt(coreArg))
	if err != nil {
		L.RaiseError("%v", err)
	}
	return regs
}
