package sim

import (
	"sync"
	"time"
)

// Clock drives the simulation. While running it fires ticks at the base
// interval divided by the speed multiplier; each firing increments the
// tick counter by one and invokes the tick function synchronously, so
// tick N fully completes before tick N+1 can fire.
type Clock struct {
	base   time.Duration
	tickFn func(tick int64, mode Mode)

	mu       sync.Mutex
	tick     int64
	speed    float64
	mode     Mode
	running  bool
	stopCh   chan struct{}
	reconfig chan struct{}

	// tickMu serializes tick processing between the run loop and
	// manual stepping
	tickMu sync.Mutex
}

// NewClock creates a stopped clock
func NewClock(base time.Duration, speed float64, mode Mode, tickFn func(int64, Mode)) *Clock {
	return &Clock{
		base:   base,
		tickFn: tickFn,
		speed:  speed,
		mode:   mode,
	}
}

// Start begins firing ticks. Starting a running clock is a no-op.
func (c *Clock) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}
	c.running = true
	c.stopCh = make(chan struct{})
	c.reconfig = make(chan struct{}, 1)
	go c.run(c.stopCh, c.reconfig)
}

// Stop pauses the clock, preserving the tick counter
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Clock) stopLocked() {
	if !c.running {
		return
	}
	c.running = false
	close(c.stopCh)
	c.stopCh = nil
	c.reconfig = nil
}

// Reset stops the clock and zeroes the tick counter. Speed and mode are
// operator preference, not simulation state, and survive the reset.
func (c *Clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.tick = 0
}

// SetSpeed changes the speed multiplier; the current interval is
// interrupted so the new pace takes effect immediately.
func (c *Clock) SetSpeed(speed float64) bool {
	if !ValidSpeed(speed) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.speed = speed
	c.pokeLocked()
	return true
}

// SetMode changes the simulation mode; the current interval is
// interrupted so the change is picked up immediately.
func (c *Clock) SetMode(mode Mode) bool {
	if !mode.Valid() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = mode
	c.pokeLocked()
	return true
}

// Step advances exactly one tick synchronously, regardless of whether
// the clock is running.
func (c *Clock) Step() int64 {
	return c.advance()
}

// Tick returns the current tick number
func (c *Clock) Tick() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tick
}

// State returns the externally visible clock state
func (c *Clock) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		CurrentTick:     c.tick,
		SpeedMultiplier: c.speed,
		Mode:            c.mode,
		IsRunning:       c.running,
	}
}

func (c *Clock) run(stopCh, reconfig chan struct{}) {
	for {
		timer := time.NewTimer(c.interval())
		select {
		case <-stopCh:
			timer.Stop()
			return
		case <-reconfig:
			timer.Stop()
		case <-timer.C:
			c.advance()
		}
	}
}

func (c *Clock) advance() int64 {
	c.tickMu.Lock()
	defer c.tickMu.Unlock()

	c.mu.Lock()
	c.tick++
	tick := c.tick
	mode := c.mode
	c.mu.Unlock()

	c.tickFn(tick, mode)
	return tick
}

func (c *Clock) interval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Duration(float64(c.base) / c.speed)
}

func (c *Clock) pokeLocked() {
	if !c.running {
		return
	}
	select {
	case c.reconfig <- struct{}{}:
	default:
	}
}
