package playback

import (
	"math"
	"time"
)

// MaxTickDelta bounds how far one tick may advance the clock, so a loop that
// was suspended does not jump the playhead.
const MaxTickDelta = 100 * time.Millisecond

type State string

const (
	StateStopped State = "stopped"
	StatePlaying State = "playing"
)

// Clock is the virtual playhead. It is not safe for concurrent use; the
// Engine serializes access.
type Clock struct {
	state    State
	current  float64
	lastTick time.Time
	keepOnly bool
	resync   bool
}

func NewClock() *Clock {
	return &Clock{state: StateStopped}
}

func (c *Clock) State() State       { return c.state }
func (c *Clock) Current() float64   { return c.current }
func (c *Clock) Playing() bool      { return c.state == StatePlaying }
func (c *Clock) KeepOnly() bool     { return c.keepOnly }
func (c *Clock) SetKeepOnly(v bool) { c.keepOnly = v }

// Play starts the clock at now. A clock at or past the end restarts from 0.
func (c *Clock) Play(now time.Time, tl *Timeline) {
	if tl.Total() <= 0 {
		c.stop()
		return
	}
	if c.current >= tl.Total() {
		c.current = 0
	}
	c.state = StatePlaying
	c.lastTick = now
	if c.keepOnly {
		c.skip(tl)
	}
}

func (c *Clock) Pause() {
	c.state = StateStopped
	c.resync = true
}

func (c *Clock) Toggle(now time.Time, tl *Timeline) {
	if c.Playing() {
		c.Pause()
		return
	}
	c.Play(now, tl)
}

// Tick advances a playing clock by the elapsed time since the previous tick,
// capped at MaxTickDelta. It reports whether the clock moved.
func (c *Clock) Tick(now time.Time, tl *Timeline) bool {
	if c.state != StatePlaying {
		return false
	}
	delta := now.Sub(c.lastTick)
	if delta < 0 {
		delta = 0
	}
	if delta > MaxTickDelta {
		delta = MaxTickDelta
	}
	c.lastTick = now
	c.current += delta.Seconds()

	if c.keepOnly {
		c.skip(tl)
	}
	if c.current >= tl.Total() {
		c.stop()
	}
	return true
}

// Seek moves the playhead, clamped to [0, total], and forces a tight resync
// of every track on the next reconciliation.
func (c *Clock) Seek(t float64, tl *Timeline) {
	if math.IsNaN(t) {
		t = 0
	}
	c.current = math.Max(0, math.Min(t, tl.Total()))
	c.resync = true
}

// Clamp pulls the playhead back inside a timeline that shrank under it.
func (c *Clock) Clamp(tl *Timeline) {
	if c.current > tl.Total() {
		c.current = tl.Total()
		c.resync = true
	}
}

// ConsumeResync reports and clears a pending forced resync.
func (c *Clock) ConsumeResync() bool {
	r := c.resync
	c.resync = false
	return r
}

func (c *Clock) skip(tl *Timeline) {
	if next := tl.SkipRejected(c.current); next != c.current {
		c.current = next
		c.resync = true
	}
}

func (c *Clock) stop() {
	c.state = StateStopped
	c.current = 0
	c.resync = true
}
