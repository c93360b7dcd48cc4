package peripherals

import (
	"encoding/binary"
	"fmt"
	"sync"
)

// Timer ports.
const (
	TimerPortReloadLow  byte = 0 // R/W
	TimerPortReloadHigh byte = 1 // R/W
	TimerPortControl    byte = 2 // R/W: bit 0 enable, bits 4-6 IRQ line
	TimerPortCountLow   byte = 3 // R
	TimerPortCountHigh  byte = 4 // R
	TimerPortFired      byte = 5 // R: expiries so far, wrapping
)

const (
	timerEnable   byte = 0x01
	timerIRQShift      = 4
	timerIRQMask  byte = 0x70
)

const timerStateSize = 6

// Timer counts machine ticks down from a reload value and raises its IRQ
// line every time the count reaches zero.
type Timer struct {
	mu      sync.Mutex
	irq     InterruptRequester
	reload  uint16
	count   uint16
	control byte
	fired   byte
}

func NewTimer(irq InterruptRequester) *Timer {
	return &Timer{irq: irq}
}

func (t *Timer) enabled() bool {
	return t.control&timerEnable != 0 && t.reload > 0
}

// Line returns the IRQ line selected by the control register.
func (t *Timer) Line() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return int(t.control&timerIRQMask) >> timerIRQShift
}

// Tick is called once per machine tick. An expired count is reloaded
// before it is decremented, so the first period is reload ticks even when
// the timer was enabled before the reload value was written.
func (t *Timer) Tick() {
	t.mu.Lock()
	if !t.enabled() {
		t.mu.Unlock()
		return
	}
	if t.count == 0 {
		t.count = t.reload
	}
	t.count--
	if t.count != 0 {
		t.mu.Unlock()
		return
	}
	t.count = t.reload
	t.fired++
	line := int(t.control&timerIRQMask) >> timerIRQShift
	irq := t.irq
	t.mu.Unlock()
	if irq != nil {
		irq.Request(line)
	}
}

func (t *Timer) Read(port byte) byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch port {
	case TimerPortReloadLow:
		return byte(t.reload)
	case TimerPortReloadHigh:
		return byte(t.reload >> 8)
	case TimerPortControl:
		return t.control
	case TimerPortCountLow:
		return byte(t.count)
	case TimerPortCountHigh:
		return byte(t.count >> 8)
	case TimerPortFired:
		return t.fired
	}
	return 0
}

func (t *Timer) Write(port byte, value byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch port {
	case TimerPortReloadLow:
		t.reload = t.reload&0xFF00 | uint16(value)
	case TimerPortReloadHigh:
		t.reload = t.reload&0x00FF | uint16(value)<<8
	case TimerPortControl:
		wasEnabled := t.control&timerEnable != 0
		t.control = value
		if !wasEnabled && value&timerEnable != 0 {
			t.count = t.reload
		}
	}
}

func (t *Timer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reload, t.count, t.control, t.fired = 0, 0, 0, 0
}

// SaveState serialises reload, count, control and fired as 6 bytes.
func (t *Timer) SaveState() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	buf := make([]byte, timerStateSize)
	binary.LittleEndian.PutUint16(buf[0:], t.reload)
	binary.LittleEndian.PutUint16(buf[2:], t.count)
	buf[4] = t.control
	buf[5] = t.fired
	return buf
}

func (t *Timer) LoadState(data []byte) error {
	if len(data) < timerStateSize {
		return fmt.Errorf("Timer.LoadState: need %d bytes, got %d", timerStateSize, len(data))
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reload = binary.LittleEndian.Uint16(data[0:])
	t.count = binary.LittleEndian.Uint16(data[2:])
	t.control = data[4]
	t.fired = data[5]
	return nil
}
