package computer

import (
	"sync"

	"gocpu8/pkg/cpu"
	"gocpu8/pkg/interrupt"
)

// Event is a state-change notification. Events are advisory: nothing a
// subscriber does with them feeds back into execution.
type Event interface {
	event()
}

// CoreSnapshot is published for every core after each tick.
type CoreSnapshot struct {
	CPU       int
	Core      int
	Registers cpu.Registers
	State     cpu.RunState
	Cycles    uint64
}

// InterruptChange carries the controller registers after any change.
type InterruptChange struct {
	interrupt.State
}

// BreakpointHit is published when a core stops on a breakpoint.
type BreakpointHit struct {
	CPU  int
	Core int
	PC   uint16
}

// ClockChange is published when a Clock starts or stops.
type ClockChange struct {
	Running bool
	Err     error
}

func (CoreSnapshot) event()    {}
func (InterruptChange) event() {}
func (BreakpointHit) event()   {}
func (ClockChange) event()     {}

// observers is a registry of event callbacks, called in subscription
// order. It has its own lock because interrupt changes can arrive from
// device goroutines outside a tick.
type observers struct {
	mu     sync.Mutex
	nextID int
	subs   []subscription
}

type subscription struct {
	id int
	fn func(Event)
}

func (o *observers) subscribe(fn func(Event)) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	id := o.nextID
	o.nextID++
	o.subs = append(o.subs, subscription{id: id, fn: fn})
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		for i, s := range o.subs {
			if s.id == id {
				o.subs = append(o.subs[:i:i], o.subs[i+1:]...)
				return
			}
		}
	}
}

func (o *observers) active() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.subs) > 0
}

func (o *observers) emit(ev Event) {
	o.mu.Lock()
	subs := o.subs
	o.mu.Unlock()
	for _, s := range subs {
		s.fn(ev)
	}
}
