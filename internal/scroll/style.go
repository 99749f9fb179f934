package scroll

import (
	"encoding/hex"
	"fmt"
	"image/color"
	"strings"
)

// Measurer reports the rendered width of text at a font size, in the same
// units as entity positions. Supplied by the rasterizer.
type Measurer interface {
	TextWidth(text string, size float64) float64
}

// Canvas paints one pass of a glyph run with its baseline origin at (x, y).
// Supplied by the rasterizer; the engine never touches pixels itself.
type Canvas interface {
	DrawText(x, y float64, text string, size float64, c color.RGBA)
}

// Style is the fixed drop-shadow drawing convention.
type Style struct {
	Text         color.RGBA // Foreground pass
	Shadow       color.RGBA // Shadow pass (drawn first)
	ShadowOffset float64    // Shadow displacement on both axes
}

// DefaultStyle is yellow text over a black shadow offset by 3 pixels.
func DefaultStyle() Style {
	return Style{
		Text:         color.RGBA{R: 255, G: 255, A: 255},
		Shadow:       color.RGBA{A: 255},
		ShadowOffset: 3,
	}
}

// DrawShadowed paints text at (x, y) in two passes: the shadow copy first,
// then the foreground copy on top.
func DrawShadowed(c Canvas, x, y float64, text string, size float64, style Style) {
	c.DrawText(x+style.ShadowOffset, y+style.ShadowOffset, text, size, style.Shadow)
	c.DrawText(x, y, text, size, style.Text)
}

// ResizePolicy decides what happens to the horizontal position of an entity
// when the frame geometry changes.
type ResizePolicy int

const (
	// ResizeKeep leaves x untouched; a mid-scroll entity catches up with the
	// new width at its next wraparound.
	ResizeKeep ResizePolicy = iota
	// ResizeRestart moves x back to the new right edge.
	ResizeRestart
)

// String returns the config spelling of the policy.
func (p ResizePolicy) String() string {
	switch p {
	case ResizeKeep:
		return "keep"
	case ResizeRestart:
		return "restart"
	default:
		return "keep"
	}
}

// ParseResizePolicy maps "keep" / "restart" (or "") to a policy.
func ParseResizePolicy(s string) (ResizePolicy, bool) {
	switch s {
	case "", "keep":
		return ResizeKeep, true
	case "restart":
		return ResizeRestart, true
	default:
		return ResizeKeep, false
	}
}

// ParseColor parses "#rrggbb" or "#rrggbbaa". Alpha defaults to opaque.
func ParseColor(s string) (color.RGBA, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "#"))
	if err != nil || (len(raw) != 3 && len(raw) != 4) {
		return color.RGBA{}, fmt.Errorf("scroll: invalid colour %q (want #rrggbb or #rrggbbaa)", s)
	}
	c := color.RGBA{R: raw[0], G: raw[1], B: raw[2], A: 255}
	if len(raw) == 4 {
		c.A = raw[3]
	}
	return c, nil
}
