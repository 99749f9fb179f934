// Package scroll implements the scrolling-text animation core: the
// per-message state machine (Entity) and the keyed collection that owns and
// prunes messages (Registry).
//
// Everything in this package runs on the render context. Nothing here locks.
package scroll

import (
	"errors"
	"fmt"
)

// DefaultFontSize is used when a spec leaves Size unset.
const DefaultFontSize = 35.0

// ErrInvalidScrollDuration is returned for specs whose scroll duration would
// make the velocity undefined.
var ErrInvalidScrollDuration = errors.New("scroll duration must be > 0")

// State is the lifecycle of an entity.
type State int

const (
	// Active entities move every advance.
	Active State = iota
	// Retiring entities reached their loop target. Terminal: the owning
	// registry removes them in the same pass.
	Retiring
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Retiring:
		return "retiring"
	default:
		return "unknown"
	}
}

// Spec describes a message to scroll.
type Spec struct {
	Key            string  // Unique within a registry, immutable
	Text           string  // Initial text
	Loops          int     // Wraparounds before retiring; <= 0 scrolls forever
	Size           float64 // Font size; <= 0 uses DefaultFontSize
	Y              float64 // Baseline vertical position
	ScrollDuration float64 // Seconds for one full traversal; must be > 0
}

// Validate checks the spec can produce a well-defined velocity.
func (s Spec) Validate() error {
	if s.ScrollDuration <= 0 {
		return fmt.Errorf("scroll: %w (got %v)", ErrInvalidScrollDuration, s.ScrollDuration)
	}
	return nil
}

// Entity is one scrolling message.
//
// x starts at the frame width (just off the right edge) and decreases. When
// the trailing edge leaves the left edge (x < -textWidth) the entity wraps back
// to the frame width and counts one completed loop.
type Entity struct {
	key  string
	text string
	size float64

	x, y          float64
	width, height float64

	duration float64
	loops    int // configured target (<= 0: forever)
	loop     int // completed wraparounds
	state    State
}

// NewEntity creates an entity for spec on a width×height frame.
// The spec must already be valid.
func NewEntity(spec Spec, width, height float64) *Entity {
	size := spec.Size
	if size <= 0 {
		size = DefaultFontSize
	}
	return &Entity{
		key:      spec.Key,
		text:     spec.Text,
		size:     size,
		x:        width,
		y:        spec.Y,
		width:    width,
		height:   height,
		duration: spec.ScrollDuration,
		loops:    spec.Loops,
	}
}

// Advance moves the entity by dt seconds.
//
//  1. measure the current text
//  2. v = (frameWidth + textWidth) / scrollDuration
//  3. x -= v * dt
//  4. on wraparound: x = frameWidth, loop++, retire when the target is reached
//
// Retiring entities do not move.
func (e *Entity) Advance(dt float64, m Measurer) {
	if e.state == Retiring {
		return
	}

	textWidth := m.TextWidth(e.text, e.size)
	velocity := (e.width + textWidth) / e.duration
	e.x -= velocity * dt

	if e.x < -textWidth {
		e.x = e.width
		e.loop++
		if e.loops > 0 && e.loop == e.loops {
			e.state = Retiring
		}
	}
}

// Resize replaces the frame bounds. With ResizeKeep x is untouched and may be
// out of step with the new width until the next wraparound.
func (e *Entity) Resize(width, height float64, policy ResizePolicy) {
	e.width = width
	e.height = height
	if policy == ResizeRestart {
		e.x = width
	}
}

// Render draws the entity with the drop-shadow convention. No state changes.
func (e *Entity) Render(c Canvas, style Style) {
	DrawShadowed(c, e.x, e.y, e.text, e.size, style)
}

// SetText replaces the displayed text. Position and loop count are kept.
func (e *Entity) SetText(text string) { e.text = text }

// Key returns the identifier the entity was registered under.
func (e *Entity) Key() string { return e.key }

// Text returns the string currently displayed.
func (e *Entity) Text() string { return e.text }

// Size returns the font size.
func (e *Entity) Size() float64 { return e.size }

// X returns the left edge of the text.
func (e *Entity) X() float64 { return e.x }

// Y returns the baseline.
func (e *Entity) Y() float64 { return e.y }

// Loop returns the number of completed traversals.
func (e *Entity) Loop() int { return e.loop }

// Loops returns the traversal target; zero or negative means forever.
func (e *Entity) Loops() int { return e.loops }

// State returns the lifecycle state.
func (e *Entity) State() State { return e.state }

// Retiring reports whether the entity reached its loop target.
func (e *Entity) Retiring() bool { return e.state == Retiring }

// Duration returns the seconds one traversal takes.
func (e *Entity) Duration() float64 { return e.duration }

// Bounds returns the frame size the entity last saw.
func (e *Entity) Bounds() (width, height float64) { return e.width, e.height }
