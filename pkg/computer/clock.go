package computer

import (
	"context"
	"sync"
	"time"
)

// Clock ticks a Computer on its own goroutine, either at a fixed rate or as
// fast as possible. It stops by itself when a breakpoint pauses a CPU, when
// every core has halted, or on the first engine error.
type Clock struct {
	m  *Computer
	hz int

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// NewClock returns a stopped clock. hz <= 0 means free-running.
func NewClock(m *Computer, hz int) *Clock {
	return &Clock{m: m, hz: hz}
}

// Start launches the tick loop. It returns false if the clock is already
// running.
func (c *Clock) Start(ctx context.Context) bool {
	c.mu.Lock()
	if c.done != nil {
		c.mu.Unlock()
		return false
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.err = nil
	done := c.done
	c.mu.Unlock()

	c.m.events.emit(ClockChange{Running: true})
	go c.loop(ctx, done)
	return true
}

// Stop cancels the loop and waits for it to exit.
func (c *Clock) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Wait blocks until the loop exits and returns the engine error that
// stopped it, if any.
func (c *Clock) Wait() error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done != nil {
		<-done
	}
	return c.Err()
}

func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done != nil
}

// Err returns the engine error from the last run.
func (c *Clock) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Clock) loop(ctx context.Context, done chan struct{}) {
	var err error
	defer func() {
		c.mu.Lock()
		c.err = err
		c.cancel()
		c.cancel = nil
		c.done = nil
		c.mu.Unlock()
		c.m.events.emit(ClockChange{Running: false, Err: err})
		close(done)
	}()

	if c.hz <= 0 {
		for ctx.Err() == nil {
			var stop bool
			if stop, err = c.step(); stop {
				return
			}
		}
		return
	}

	period := time.Second / time.Duration(c.hz)
	if period <= 0 {
		period = time.Nanosecond
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var stop bool
			if stop, err = c.step(); stop {
				return
			}
		}
	}
}

// step runs one tick and reports whether the loop should end.
func (c *Clock) step() (bool, error) {
	m := c.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.paused() || m.idle() {
		return true, nil
	}
	if err := m.tick(); err != nil {
		m.log.WithError(err).Error("clock stopped")
		return true, err
	}
	return m.paused() || m.idle(), nil
}
