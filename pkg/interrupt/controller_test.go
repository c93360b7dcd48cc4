package interrupt

import (
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newController() *Controller {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return New(l)
}

func TestDeliverable_LowestUnmaskedBit(t *testing.T) {
	c := newController()
	c.Write(PortEnable, 0b00000011)
	c.Write(PortMask, 0b00000010)
	c.Request(0)
	c.Request(1)

	irq, ok := c.Deliverable(0, 0)
	require.True(t, ok)
	assert.Equal(t, 0, irq)

	c.Acknowledge(0)
	_, ok = c.Deliverable(0, 0)
	assert.False(t, ok, "IRQ 1 is masked and must never be delivered")
}

func TestDeliverable_Priority(t *testing.T) {
	c := newController()
	c.Write(PortEnable, 0xFF)
	c.Request(5)
	c.Request(2)
	irq, ok := c.Deliverable(0, 0)
	require.True(t, ok)
	assert.Equal(t, 2, irq)
}

func TestDeliverable_RequiresEnable(t *testing.T) {
	c := newController()
	c.Request(3)
	_, ok := c.Deliverable(0, 0)
	assert.False(t, ok)
	assert.Equal(t, byte(0), c.Read(PortPending))

	c.Write(PortEnable, 1<<3)
	assert.Equal(t, byte(1<<3), c.Read(PortPending))
}

func TestRouting_DefaultsToCPU0Core0(t *testing.T) {
	c := newController()
	c.Write(PortEnable, 0xFF)
	c.Request(4)

	_, ok := c.Deliverable(0, 1)
	assert.False(t, ok)
	irq, ok := c.Deliverable(0, 0)
	require.True(t, ok)
	assert.Equal(t, 4, irq)
	assert.Equal(t, Route{Assigned: true}, c.State().Routes[4])
}

func TestRouting_PortWrites(t *testing.T) {
	c := newController()
	c.Write(PortEnable, 0xFF)
	c.Request(2)
	c.Write(PortRouteCPU, 0x21)
	c.Write(PortRouteCore, 0x23)

	assert.Equal(t, Route{Assigned: true, CPU: 1, Core: 3}, c.State().Routes[2])
	_, ok := c.Deliverable(0, 0)
	assert.False(t, ok)
	irq, ok := c.Deliverable(1, 3)
	require.True(t, ok)
	assert.Equal(t, 2, irq)
}

func TestRouting_WithoutRequestIgnored(t *testing.T) {
	c := newController()
	c.Write(PortRouteCPU, 0x51)
	assert.False(t, c.State().Routes[5].Assigned)

	c.Write(PortRouteCore, 0x91) // line 9 does not exist
	assert.Equal(t, State{}, c.State())
}

func TestRouting_SkipsLineRoutedElsewhere(t *testing.T) {
	c := newController()
	c.Write(PortEnable, 0xFF)
	c.SetRoute(0, 1, 0)
	c.Request(0)
	c.Request(1)

	irq, ok := c.Deliverable(0, 0)
	require.True(t, ok)
	assert.Equal(t, 1, irq)
}

func TestRequest_InvalidLineIgnored(t *testing.T) {
	c := newController()
	c.Request(8)
	c.Request(-1)
	assert.Equal(t, State{}, c.State())
}

func TestAcknowledgePort(t *testing.T) {
	c := newController()
	c.Request(6)
	c.Write(PortAcknowledge, 0xF6) // only the low 3 bits select the line
	assert.Equal(t, byte(0), c.State().Pending)
}

func TestHandlerPorts(t *testing.T) {
	c := newController()
	c.Write(PortHandlerLow, 0x34)
	c.Write(PortHandlerHigh, 0x12)
	assert.Equal(t, uint16(0x1234), c.HandlerAddress())
	assert.Equal(t, byte(0x34), c.Read(PortHandlerLow))
	assert.Equal(t, byte(0x12), c.Read(PortHandlerHigh))
	assert.Equal(t, byte(0), c.Read(PortAcknowledge))
	assert.Equal(t, byte(0), c.Read(PortRouteCPU))
}

func TestOnChange(t *testing.T) {
	c := newController()
	var seen []State
	c.OnChange(func(s State) { seen = append(seen, s) })

	c.Write(PortMask, 0x80)
	c.Request(1)
	c.Acknowledge(1)
	c.Acknowledge(1) // nothing pending, no event

	require.Len(t, seen, 3)
	assert.Equal(t, byte(0x80), seen[0].Mask)
	assert.Equal(t, byte(0x02), seen[1].Pending)
	assert.Equal(t, byte(0x00), seen[2].Pending)
}

func TestResetAndRestore(t *testing.T) {
	c := newController()
	c.Write(PortEnable, 0x0F)
	c.Request(1)
	saved := c.State()

	c.Reset()
	assert.Equal(t, State{}, c.State())
	c.Restore(saved)
	assert.Equal(t, saved, c.State())
}

func TestConcurrentRequests(t *testing.T) {
	c := newController()
	c.Write(PortEnable, 0xFF)
	var wg sync.WaitGroup
	for irq := 0; irq < Lines; irq++ {
		wg.Add(1)
		go func(irq int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				c.Request(irq)
				c.Deliverable(0, 0)
			}
		}(irq)
	}
	wg.Wait()
	assert.Equal(t, byte(0xFF), c.State().Pending)
}
