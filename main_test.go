package main

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

	"gocpu8/pkg/cpu"
	"gocpu8/pkg/isa"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

const twoCoreProgram = `
        MOV_A_IMM 1
        MOV_C_IMM 0x00
        MOV_D_IMM 0x41
        CORE_INIT           ; core 1 starts at worker
        CORE_START
wait:   MOV_A_IMM 1
        CORE_STATUS
        CMP_A_IMM 1
        JNZ wait            ; until core 1 halts
        MOV_A_MEM [0x5000]
        SYSCALL 2           ; print A in decimal
        HALT

        .ORG 0x4100
worker: MOV_A_IMM 42
        MOV_MEM_A [0x5000]
        HALT
`

func TestTwoCoresEndToEnd(t *testing.T) {
	dir := t.TempDir()
	prog := writeFile(t, dir, "two.asm", twoCoreProgram)

	var out bytes.Buffer
	m, _, err := buildMachine(options{program: prog, cores: 2}, quietLogger(), &out)
	require.NoError(t, err)

	ticks, err := runMachine(context.Background(), m, options{})
	require.NoError(t, err)
	assert.Greater(t, ticks, uint64(5))
	assert.Equal(t, "42", out.String())
	assert.True(t, m.Idle())

	regs, err := m.Registers(0, 1)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x4106), regs.PC)
}

func TestConsoleDeviceEndToEnd(t *testing.T) {
	dir := t.TempDir()
	prog := writeFile(t, dir, "hi.asm", `
        MOV_A_IMM 'h'
        MOV_MEM_A [0xFF10]
        MOV_A_IMM 'i'
        MOV_MEM_A [0xFF10]
        HALT
`)
	var out bytes.Buffer
	m, _, err := buildMachine(options{program: prog}, quietLogger(), &out)
	require.NoError(t, err)
	_, err = runMachine(context.Background(), m, options{})
	require.NoError(t, err)
	assert.Equal(t, "hi", out.String())
}

func TestConfigAndHibernateEndToEnd(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "count.asm", `
        MOV_B_IMM 5
loop:   DEC_B
        JNZ loop
        HALT
`)
	cfgPath := writeFile(t, dir, "machine.toml", `
cpus = 2
program = "count.asm"
`)
	snapshot := filepath.Join(dir, "machine.zip")

	m, _, err := buildMachine(options{configPath: cfgPath}, quietLogger(), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 2, m.CPUCount())
	_, err = runMachine(context.Background(), m, options{maxTicks: 4})
	require.NoError(t, err)
	require.NoError(t, m.HibernateToFile(snapshot))

	restored, _, err := buildMachine(options{configPath: cfgPath, restore: snapshot}, quietLogger(), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, m.Snapshot(), restored.Snapshot())

	_, err = runMachine(context.Background(), restored, options{})
	require.NoError(t, err)
	regs, _ := restored.Registers(0, 0)
	assert.Equal(t, byte(0), regs.B)
	state, _ := restored.RunState(0, 0)
	assert.Equal(t, cpu.Halted, state)
}

func TestRunMachine_TickLimitAndClock(t *testing.T) {
	dir := t.TempDir()
	loop := writeFile(t, dir, "loop.asm", "top: JMP top\n")
	m, _, err := buildMachine(options{program: loop, hz: 1000}, quietLogger(), io.Discard)
	require.NoError(t, err)
	n, err := runMachine(context.Background(), m, options{maxTicks: 25})
	require.NoError(t, err)
	assert.Equal(t, uint64(25), n)

	halt := writeFile(t, dir, "halt.asm", "NOP\nNOP\nHALT\n")
	m, _, err = buildMachine(options{program: halt, hz: 1000}, quietLogger(), io.Discard)
	require.NoError(t, err)
	n, err = runMachine(context.Background(), m, options{})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)
}

func TestPrintState(t *testing.T) {
	dir := t.TempDir()
	prog := writeFile(t, dir, "p.asm", "NOP\nNOP\nBREAKPOINT\nHALT\n")
	m, _, err := buildMachine(options{program: prog}, quietLogger(), io.Discard)
	require.NoError(t, err)
	ticks, err := runMachine(context.Background(), m, options{})
	require.NoError(t, err)

	var out bytes.Buffer
	printState(&out, m, ticks)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "ran 3 ticks (total 3), paused on breakpoint", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "cpu0 core0 breakpoint"), lines[1])
	assert.Contains(t, lines[1], "PC=4002")
}

func TestBuildMachine_Errors(t *testing.T) {
	dir := t.TempDir()
	_, _, err := buildMachine(options{configPath: filepath.Join(dir, "none.toml")}, quietLogger(), io.Discard)
	assert.Error(t, err)

	bad := writeFile(t, dir, "bad.asm", "FROB\n")
	_, _, err = buildMachine(options{program: bad}, quietLogger(), io.Discard)
	assert.ErrorContains(t, err, "unknown instruction")

	big := writeFile(t, dir, "big.bin", string(make([]byte, isa.ROMSize+1)))
	_, _, err = buildMachine(options{rom: big}, quietLogger(), io.Discard)
	assert.Error(t, err)
}

const diskProgram = `
        MOV_A_IMM 0x00      ; name at 0x4100
        MOV_MEM_A [0xFF30]
        MOV_A_IMM 0x41
        MOV_MEM_A [0xFF31]
        MOV_A_IMM 0x10      ; buffer at 0x4110
        MOV_MEM_A [0xFF32]
        MOV_A_IMM 0x41
        MOV_MEM_A [0xFF33]
        MOV_A_IMM 5
        MOV_MEM_A [0xFF34]
        MOV_A_IMM 0
        MOV_MEM_A [0xFF35]
        MOV_A_IMM 2         ; write
        MOV_MEM_A [0xFF36]
        MOV_A_MEM [0xFF37]
        SYSCALL 2
        HALT

        .ORG 0x4100
name:   .STRING "out.txt"
        .ORG 0x4110
data:   .STRING "hello"
`

func TestDiskEndToEnd(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "disk.asm", diskProgram)
	cfgPath := writeFile(t, dir, "machine.toml", "program = \"disk.asm\"\ndisk = \"files\"\n")

	var out bytes.Buffer
	m, devices, err := buildMachine(options{configPath: cfgPath}, quietLogger(), &out)
	require.NoError(t, err)
	_, err = runMachine(context.Background(), m, options{})
	require.NoError(t, err)
	assert.Equal(t, "0", out.String())

	require.NoError(t, devices.Sync())
	data, err := os.ReadFile(filepath.Join(dir, "files", "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	// A new machine sees the file through its store.
	_, devices, err = buildMachine(options{configPath: cfgPath}, quietLogger(), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, []string{"out.txt"}, devices.Disk.Store().List())
}
