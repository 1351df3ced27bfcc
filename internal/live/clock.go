package live

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Countdown is the authoritative question timer for one session. It tracks
// remaining time in milliseconds against a wall clock deadline while running,
// and as a frozen duration while paused or stopped. It never goes negative.
//
// Countdown is not goroutine safe; the owning session serializes access.
type Countdown struct {
	clk clockwork.Clock

	defaultTotal time.Duration
	total        time.Duration
	deadline     time.Time     // valid while running
	frozen       time.Duration // remaining while not running
	running      bool
}

// NewCountdown creates a stopped countdown preloaded with the default
// duration for the current game part.
func NewCountdown(clk clockwork.Clock, defaultTotal time.Duration) *Countdown {
	return &Countdown{
		clk:          clk,
		defaultTotal: defaultTotal,
		total:        defaultTotal,
		frozen:       defaultTotal,
	}
}

// Reset installs a new default duration and stops the countdown. Used when
// the active question or game part changes.
func (c *Countdown) Reset(defaultTotal time.Duration) {
	c.defaultTotal = defaultTotal
	c.total = defaultTotal
	c.frozen = defaultTotal
	c.running = false
}

// Start begins (or resumes) counting down from the current remaining value.
func (c *Countdown) Start() {
	if c.running {
		return
	}
	c.deadline = c.clk.Now().Add(c.frozen)
	c.running = true
}

// Pause freezes the countdown at its current remaining value.
func (c *Countdown) Pause() {
	if !c.running {
		return
	}
	c.frozen = c.Remaining()
	c.running = false
}

// Stop halts the countdown and resets it to the part default.
func (c *Countdown) Stop() {
	c.running = false
	c.total = c.defaultTotal
	c.frozen = c.defaultTotal
}

// Add extends the total duration. Added time is additive to the remaining
// value, not a reset to a fresh duration.
func (c *Countdown) Add(d time.Duration) {
	c.total += d
	if c.running {
		c.deadline = c.deadline.Add(d)
	} else {
		c.frozen += d
	}
}

// Running reports whether the countdown is ticking.
func (c *Countdown) Running() bool {
	return c.running
}

// Total returns the current total duration including any added time.
func (c *Countdown) Total() time.Duration {
	return c.total
}

// Remaining returns the time left, floored at zero.
func (c *Countdown) Remaining() time.Duration {
	if !c.running {
		return c.frozen
	}
	rem := c.deadline.Sub(c.clk.Now())
	if rem < 0 {
		return 0
	}
	return rem
}

// RemainingSeconds returns whole seconds left, rounded up. This is the
// value shown as "seconds remaining" text.
func (c *Countdown) RemainingSeconds() int {
	rem := c.Remaining()
	secs := int(rem / time.Second)
	if rem%time.Second != 0 {
		secs++
	}
	return secs
}

// RemainingValue returns whole seconds left, rounded to nearest. This is
// the raw time value a ticking progress bar seeds from.
func (c *Countdown) RemainingValue() int {
	return int(c.Remaining().Round(time.Second) / time.Second)
}
