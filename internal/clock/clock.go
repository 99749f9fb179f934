// Package clock turns raw frame timestamps into per-frame motion deltas.
package clock

// nanosPerSecond converts frame timestamps (nanoseconds) to seconds.
const nanosPerSecond = 1e9

// FrameClock derives elapsed seconds between consecutive frame timestamps.
//
// The first observed timestamp only primes the clock (delta 0), so the first
// frame after start or after Reset never moves anything. There is no upper
// bound on the returned delta: a pipeline stall shows up as one large step.
//
// Thread-safety: NOT safe for concurrent use. A FrameClock belongs to the
// render context that owns the driver calling Delta.
type FrameClock struct {
	previous  uint64
	valid     bool
	backwards uint64 // timestamps that went backwards (clamped to dt=0)
}

// Delta records timestamp and returns the seconds elapsed since the previous
// call.
//
// Semantics:
//   - first call (or first call after Reset): returns 0
//   - timestamp < previous: returns 0 and adopts timestamp as the new reference
//   - otherwise: (timestamp - previous) / 1e9
func (c *FrameClock) Delta(timestamp uint64) float64 {
	if !c.valid {
		c.previous = timestamp
		c.valid = true
		return 0
	}

	if timestamp < c.previous {
		c.backwards++
		c.previous = timestamp
		return 0
	}

	dt := float64(timestamp-c.previous) / nanosPerSecond
	c.previous = timestamp
	return dt
}

// Reset forgets the previous timestamp. The next Delta call returns 0.
func (c *FrameClock) Reset() {
	c.previous = 0
	c.valid = false
}

// Valid reports whether a reference timestamp has been observed.
func (c *FrameClock) Valid() bool { return c.valid }

// Backwards returns how many timestamps arrived earlier than their predecessor.
func (c *FrameClock) Backwards() uint64 { return c.backwards }
