package main

import (
	"fmt"
	"strings"
	"sync"

	"gocpu8/pkg/computer"
	"gocpu8/pkg/cpu"
	"gocpu8/pkg/grid"
)

// Text metrics of basicfont.Face7x13.
const (
	charWidth  = 7
	lineHeight = 13
	ascent     = 11
)

const (
	panelChars      = 24
	panelRows       = 5
	padding         = 8
	maxPanelColumns = 4
	outputRows      = 8
)

var (
	panelWidth  = panelChars*charWidth + 2*padding
	panelHeight = panelRows*lineHeight + 2*padding
)

// panelLines renders one core's register panel.
func panelLines(s computer.CoreSnapshot) []string {
	r := s.Registers
	flag := func(name string, set bool) string {
		if set {
			return name
		}
		return "-"
	}
	return []string{
		fmt.Sprintf("cpu%d core%d  %s", s.CPU, s.Core, s.State),
		fmt.Sprintf("A=%02X B=%02X C=%02X D=%02X", r.A, r.B, r.C, r.D),
		fmt.Sprintf("PC=%04X SP=%04X IR=%02X", r.PC, r.SP, r.IR),
		fmt.Sprintf("F=%02X %s%s", r.Flags, flag("Z", r.Flag(cpu.FlagZero)), flag("C", r.Flag(cpu.FlagCarry))),
		fmt.Sprintf("cycles %d", s.Cycles),
	}
}

// panelOrigin is the top-left corner of panel index.
func panelOrigin(index, cols int) (x, y int) {
	col, row := grid.GetGridCoords(index, cols)
	return col * panelWidth, row * panelHeight
}

// screenSize fits count panels plus the output area and status line.
func screenSize(count int) (w, h int, cols int) {
	cols = grid.Columns(count, maxPanelColumns)
	w = cols * panelWidth
	if minWidth := 60*charWidth + 2*padding; w < minWidth {
		w = minWidth
	}
	h = grid.Rows(count, cols)*panelHeight + (outputRows+1)*lineHeight + 2*padding
	return w, h, cols
}

func statusLine(running, paused, idle bool, ticks uint64, err error) string {
	state := "stopped"
	switch {
	case err != nil:
		state = "error: " + err.Error()
	case paused:
		state = "breakpoint"
	case idle:
		state = "halted"
	case running:
		state = "running"
	}
	return fmt.Sprintf("%s  ticks %d  [space] step  [r] run/stop  [c] continue", state, ticks)
}

// outputLog keeps the last few lines written by the console device and
// syscalls. It is written from the clock goroutine and read by Draw.
type outputLog struct {
	mu      sync.Mutex
	max     int
	lines   []string
	partial strings.Builder
}

func newOutputLog(max int) *outputLog {
	return &outputLog{max: max}
}

func (o *outputLog) Write(p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, b := range p {
		if b == '\n' {
			o.push(o.partial.String())
			o.partial.Reset()
			continue
		}
		o.partial.WriteByte(b)
	}
	return len(p), nil
}

func (o *outputLog) push(line string) {
	o.lines = append(o.lines, line)
	if len(o.lines) > o.max {
		o.lines = o.lines[len(o.lines)-o.max:]
	}
}

// Lines returns the complete lines followed by any unterminated one, at
// most max in total.
func (o *outputLog) Lines() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := append([]string(nil), o.lines...)
	if o.partial.Len() > 0 {
		out = append(out, o.partial.String())
	}
	if len(out) > o.max {
		out = out[len(out)-o.max:]
	}
	return out
}
