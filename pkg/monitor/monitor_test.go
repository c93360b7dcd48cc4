package monitor

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gocpu8/pkg/computer"
	"gocpu8/pkg/isa"
)

func op(name string) byte {
	return isa.Default().Opcode(name)
}

func newTestMonitor(t *testing.T, program ...byte) (*Monitor, *computer.Computer, *bytes.Buffer) {
	t.Helper()
	l := logrus.New()
	l.SetOutput(io.Discard)
	cfg := computer.DefaultConfig()
	cfg.Logger = l
	m, err := computer.New(cfg)
	require.NoError(t, err)
	if len(program) > 0 {
		require.NoError(t, m.LoadProgram(program))
	}
	var out bytes.Buffer
	mon := New(m, &out, l)
	t.Cleanup(mon.Close)
	return mon, m, &out
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		input string
		want  uint16
		ok    bool
	}{
		{"$4000", 0x4000, true},
		{"0x4000", 0x4000, true},
		{"0XBEEF", 0xBEEF, true},
		{"ff", 0xFF, true},
		{"#4096", 4096, true},
		{" $10 ", 0x10, true},
		{"#70000", 0, false},
		{"10000", 0, false},
		{"zz", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseAddress(tt.input)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("ParseAddress(%q) = (%X, %v), want (%X, %v)", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

func TestStepAndReg(t *testing.T) {
	mon, _, out := newTestMonitor(t, op("MOV_A_IMM"), 0x21, op("INC_A"), op("HALT"))
	require.NoError(t, mon.DoString(context.Background(), `
step()
print(reg(0, 0, "a"))
step(1)
print(reg(0, 0, "A"), reg(0, 0, "pc"))
`))
	assert.Equal(t, "33\n34\t16387\n", out.String())
}

func TestRunUntilHalt(t *testing.T) {
	mon, _, out := newTestMonitor(t, op("NOP"), op("NOP"), op("HALT"))
	require.NoError(t, mon.DoString(context.Background(), `print(run(), halted(0, 0), cycles())`))
	assert.Equal(t, "3\ttrue\t3\n", out.String())
}

func TestBreakpointsAndResume(t *testing.T) {
	mon, m, out := newTestMonitor(t, op("NOP"), op("NOP"), op("NOP"), op("HALT"))
	require.NoError(t, mon.DoString(context.Background(), `
brk("$4002")
brk(0x4010)
unbrk(0x4010)
local bps = breakpoints()
print(#bps, bps[1])
print(run(), paused(), reg(0, 0, "pc"))
resume()
run()
print(paused(), halted(0, 0))
`))
	assert.Equal(t, "1\t16386\n3\ttrue\t16386\nfalse\ttrue\n", out.String())
	assert.Equal(t, []uint16{0x4002}, m.Breakpoints())
}

func TestPeekPokeSetReg(t *testing.T) {
	mon, m, out := newTestMonitor(t)
	require.NoError(t, mon.DoString(context.Background(), `
poke(0x5000, 0x1FF)
print(peek("0x5000"))
setreg(0, 0, "sp", 0xF100)
setreg(0, 0, "b", 7)
`))
	assert.Equal(t, "255\n", out.String())
	assert.Equal(t, byte(0xFF), m.Peek(0x5000))
	regs, err := m.Registers(0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint16(0xF100), regs.SP)
	assert.Equal(t, byte(7), regs.B)
}

func TestDisasmAndRegs(t *testing.T) {
	mon, _, out := newTestMonitor(t, op("MOV_A_IMM"), 0x05, op("JMP"), 0x00, 0x40)
	require.NoError(t, mon.DoString(context.Background(), `
print(disasm(0x4000, 2))
print(regs(0, 0))
`))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "4000  MOV_A_IMM 0x05", lines[0])
	assert.Equal(t, "4002  JMP 0x4000", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "cpu0.core0 running"), lines[2])
	assert.Contains(t, lines[2], "PC=4000")
}

func TestIRQ(t *testing.T) {
	mon, m, _ := newTestMonitor(t)
	require.NoError(t, mon.DoString(context.Background(), `irq(3)`))
	assert.Equal(t, byte(1<<3), m.Interrupts().State().Pending)
}

func TestErrors(t *testing.T) {
	mon, m, _ := newTestMonitor(t, op("EI"), op("NOP"))
	ctx := context.Background()

	assert.Error(t, mon.DoString(ctx, `reg(0, 0, "q")`))
	assert.Error(t, mon.DoString(ctx, `reg(4, 0, "a")`))
	assert.Error(t, mon.DoString(ctx, `setreg(0, 0, "zz", 1)`))
	assert.Error(t, mon.DoString(ctx, `halted(0, 9)`))
	assert.Error(t, mon.DoString(ctx, `peek("nowhere")`))
	assert.Error(t, mon.DoString(ctx, `peek(0x10000)`))
	assert.Error(t, mon.DoString(ctx, `peek({})`))
	assert.Error(t, mon.DoString(ctx, `run(-1)`))
	err := mon.DoString(ctx, `disasm(0x4000, -1)`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count must not be negative")

	// An interrupt with no handler address is fatal to the engine.
	m.Interrupts().Write(0, 0xFF)
	m.RequestInterrupt(0)
	err = mon.DoString(ctx, `step(2)`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler address is zero")
}

func TestRunHonoursContext(t *testing.T) {
	mon, _, _ := newTestMonitor(t, op("JMP"), 0x00, 0x40)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, mon.DoString(ctx, `run()`))

	// The monitor is usable again with a live context.
	require.NoError(t, mon.DoString(context.Background(), `run(10)`))
}

func TestDoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.lua")
	require.NoError(t, os.WriteFile(path, []byte(`step(1) print(reg(0, 0, "b"))`), 0644))

	mon, _, out := newTestMonitor(t, op("MOV_B_IMM"), 9)
	require.NoError(t, mon.DoFile(context.Background(), path))
	assert.Equal(t, "9\n", out.String())

	assert.Error(t, mon.DoFile(context.Background(), filepath.Join(t.TempDir(), "missing.lua")))
}

func TestREPL(t *testing.T) {
	mon, _, out := newTestMonitor(t)
	in := strings.NewReader("print(1 + 1)\n\nbogus(\nquit\nprint(3)\n")
	require.NoError(t, mon.REPL(context.Background(), in, true))

	text := out.String()
	assert.True(t, strings.HasPrefix(text, Prompt+"2\n"), text)
	assert.Contains(t, text, "error:")
	assert.NotContains(t, text, Prompt+"3\n")
}

func TestREPL_EOF(t *testing.T) {
	mon, _, out := newTestMonitor(t)
	require.NoError(t, mon.REPL(context.Background(), strings.NewReader("print('x')"), false))
	assert.Equal(t, "x\n", out.String())
}
