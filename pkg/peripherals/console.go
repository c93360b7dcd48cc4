// Package peripherals holds the small bus devices the front-ends mount
// next to the interrupt controller.
package peripherals

import (
	"io"
	"strconv"
	"sync"
)

// InterruptRequester raises an IRQ line. *interrupt.Controller satisfies it.
type InterruptRequester interface {
	Request(irq int)
}

// Console ports.
const (
	ConsolePortChar    byte = 0 // W: write one character
	ConsolePortDecimal byte = 1 // W: write the value in decimal
	ConsolePortInput   byte = 2 // R: next input byte, 0 when empty
	ConsolePortReady   byte = 3 // R: number of queued input bytes, capped at 255
)

// Console is a character terminal. Output goes to an io.Writer; input is
// queued by the host with PushInput and optionally raises an IRQ.
type Console struct {
	mu    sync.Mutex
	out   io.Writer
	input []byte

	irq     InterruptRequester
	irqLine int
}

func NewConsole(out io.Writer) *Console {
	if out == nil {
		out = io.Discard
	}
	return &Console{out: out, irqLine: -1}
}

// InterruptOnInput makes PushInput raise line on r.
func (c *Console) InterruptOnInput(r InterruptRequester, line int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.irq = r
	c.irqLine = line
}

// PushInput queues bytes for the program to read.
func (c *Console) PushInput(data ...byte) {
	c.mu.Lock()
	c.input = append(c.input, data...)
	r, line := c.irq, c.irqLine
	c.mu.Unlock()
	if r != nil && line >= 0 && len(data) > 0 {
		r.Request(line)
	}
}

func (c *Console) Read(port byte) byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch port {
	case ConsolePortInput:
		if len(c.input) == 0 {
			return 0
		}
		b := c.input[0]
		c.input = c.input[1:]
		return b
	case ConsolePortReady:
		if len(c.input) > 0xFF {
			return 0xFF
		}
		return byte(len(c.input))
	}
	return 0
}

func (c *Console) Write(port byte, value byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch port {
	case ConsolePortChar:
		c.out.Write([]byte{value})
	case ConsolePortDecimal:
		io.WriteString(c.out, strconv.Itoa(int(value)))
	}
}

// Reset drops queued input.
func (c *Console) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.input = nil
}

// SaveState returns the queued input.
func (c *Console) SaveState() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.input...)
}

func (c *Console) LoadState(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.input = append([]byte(nil), data...)
	return nil
}
