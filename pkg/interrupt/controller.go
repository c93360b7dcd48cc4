// Package interrupt implements the interrupt controller: a bus device holding
// enable, pending and mask bits for eight IRQ lines, the handler address and
// per-line routing to a (cpu, core) pair.
package interrupt

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Lines is the number of IRQ lines. Line 0 has the highest priority.
const Lines = 8

// Port layout within the controller's slot.
const (
	PortEnable      byte = 0 // R/W
	PortPending     byte = 1 // R: pending & enabled & ^mask
	PortAcknowledge byte = 2 // W: low 3 bits select the IRQ
	PortMask        byte = 3 // R/W
	PortHandlerLow  byte = 4 // R/W
	PortHandlerHigh byte = 5 // R/W
	PortRouteCPU    byte = 6 // W: high nibble IRQ, low nibble CPU index
	PortRouteCore   byte = 7 // W: high nibble IRQ, low nibble core index
)

// Route assigns an IRQ line to one core.
type Route struct {
	Assigned bool `json:"assigned"`
	CPU      int  `json:"cpu"`
	Core     int  `json:"core"`
}

// State is a copy of the controller registers.
type State struct {
	Enabled byte         `json:"enabled"`
	Pending byte         `json:"pending"`
	Mask    byte         `json:"mask"`
	Handler uint16       `json:"handler"`
	Routes  [Lines]Route `json:"routes"`
}

// Controller is safe for concurrent use: devices may raise requests from
// their own goroutines while the CPU cycle loop consumes them.
type Controller struct {
	mu       sync.Mutex
	state    State
	onChange func(State)
	log      logrus.FieldLogger
}

func New(log logrus.FieldLogger) *Controller {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Controller{log: log.WithField("component", "interrupt")}
}

// OnChange registers fn to be called with a copy of the state after any
// change to enable, pending, mask, handler or routing. fn runs without the
// controller lock held.
func (c *Controller) OnChange(fn func(State)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// update runs mutate under the lock and notifies the observer if it
// reports a change.
func (c *Controller) update(mutate func(s *State) bool) {
	c.mu.Lock()
	changed := mutate(&c.state)
	snapshot := c.state
	fn := c.onChange
	c.mu.Unlock()
	if changed && fn != nil {
		fn(snapshot)
	}
}

// Request raises an IRQ line. The first request for a line assigns it to
// cpu 0, core 0 unless a route already exists.
func (c *Controller) Request(irq int) {
	if irq < 0 || irq >= Lines {
		c.log.WithField("irq", irq).Warn("interrupt request for invalid line ignored")
		return
	}
	c.update(func(s *State) bool {
		if !s.Routes[irq].Assigned {
			s.Routes[irq] = Route{Assigned: true}
		}
		s.Pending |= 1 << irq
		return true
	})
}

// Acknowledge clears a pending line.
func (c *Controller) Acknowledge(irq int) {
	if irq < 0 || irq >= Lines {
		return
	}
	c.update(func(s *State) bool {
		if s.Pending&(1<<irq) == 0 {
			return false
		}
		s.Pending &^= 1 << irq
		return true
	})
}

// Deliverable returns the highest priority IRQ that may be taken by the
// given core: pending, enabled, unmasked and either unrouted or routed to
// exactly this core.
func (c *Controller) Deliverable(cpu, core int) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ready := c.state.Pending & c.state.Enabled &^ c.state.Mask
	if ready == 0 {
		return 0, false
	}
	for irq := 0; irq < Lines; irq++ {
		if ready&(1<<irq) == 0 {
			continue
		}
		r := c.state.Routes[irq]
		if !r.Assigned || (r.CPU == cpu && r.Core == core) {
			return irq, true
		}
	}
	return 0, false
}

// HandlerAddress returns the configured handler entry point.
func (c *Controller) HandlerAddress() uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Handler
}

// SetRoute assigns an IRQ line to a core. Unlike the routing ports it does
// not require an earlier request.
func (c *Controller) SetRoute(irq, cpu, core int) {
	if irq < 0 || irq >= Lines {
		return
	}
	c.update(func(s *State) bool {
		s.Routes[irq] = Route{Assigned: true, CPU: cpu, Core: core}
		return true
	})
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Restore replaces the controller registers, e.g. when resuming a snapshot.
func (c *Controller) Restore(s State) {
	c.update(func(cur *State) bool {
		*cur = s
		return true
	})
}

// Reset clears every register and route.
func (c *Controller) Reset() {
	c.Restore(State{})
}

func (c *Controller) Read(port byte) byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch port {
	case PortEnable:
		return c.state.Enabled
	case PortPending:
		return c.state.Pending & c.state.Enabled &^ c.state.Mask
	case PortMask:
		return c.state.Mask
	case PortHandlerLow:
		return byte(c.state.Handler)
	case PortHandlerHigh:
		return byte(c.state.Handler >> 8)
	}
	return 0
}

func (c *Controller) Write(port byte, val byte) {
	switch port {
	case PortEnable:
		c.update(func(s *State) bool {
			s.Enabled = val
			return true
		})
	case PortAcknowledge:
		c.Acknowledge(int(val & 0x07))
	case PortMask:
		c.update(func(s *State) bool {
			s.Mask = val
			return true
		})
	case PortHandlerLow:
		c.update(func(s *State) bool {
			s.Handler = s.Handler&0xFF00 | uint16(val)
			return true
		})
	case PortHandlerHigh:
		c.update(func(s *State) bool {
			s.Handler = s.Handler&0x00FF | uint16(val)<<8
			return true
		})
	case PortRouteCPU, PortRouteCore:
		c.writeRoute(port, val)
	default:
		c.log.WithField("port", port).Debug("write to read-only or unused port ignored")
	}
}

func (c *Controller) writeRoute(port byte, val byte) {
	irq := int(val >> 4)
	index := int(val & 0x0F)
	if irq >= Lines {
		c.log.WithField("irq", irq).Warn("routing write for invalid line ignored")
		return
	}
	c.update(func(s *State) bool {
		r := &s.Routes[irq]
		if !r.Assigned {
			c.log.WithField("irq", irq).Warn("routing write for a line that was never requested ignored")
			return false
		}
		if port == PortRouteCPU {
			r.CPU = index
		} else {
			r.Core = index
		}
		return true
	})
}
