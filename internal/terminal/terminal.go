// Package terminal renders overlay text onto a tcell screen.
//
// Units are terminal cells: x is a column, y is a row, and text width is the
// runewidth display width. Font size has no meaning on a character grid and
// is ignored.
package terminal

import (
	"image/color"
	"math"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
)

// Screen draws text runs onto a tcell screen.
type Screen struct {
	screen tcell.Screen
}

// NewScreen wraps an initialised tcell screen.
func NewScreen(s tcell.Screen) *Screen {
	return &Screen{screen: s}
}

// TextWidth returns the display width of text in cells.
func (s *Screen) TextWidth(text string, size float64) float64 {
	return float64(runewidth.StringWidth(text))
}

// Size returns the screen size in cells.
func (s *Screen) Size() (width, height int) {
	return s.screen.Size()
}

// DrawText writes text on row y starting at column x. Cells outside the
// screen are skipped, so a run entering from the right edge or leaving on
// the left draws only its visible part. Fully transparent colours draw
// nothing.
func (s *Screen) DrawText(x, y float64, text string, size float64, c color.RGBA) {
	if c.A == 0 {
		return
	}
	width, height := s.screen.Size()
	row := int(math.Floor(y))
	if row < 0 || row >= height {
		return
	}

	style := tcell.StyleDefault.Foreground(tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B)))

	col := int(math.Floor(x))
	for _, r := range text {
		w := runewidth.RuneWidth(r)
		if w == 0 {
			continue
		}
		if col >= width {
			return
		}
		if col >= 0 && col+w <= width {
			s.screen.SetContent(col, row, r, nil, style)
		}
		col += w
	}
}

// Clear blanks the screen before a frame is drawn.
func (s *Screen) Clear() {
	s.screen.Clear()
}

// Show flushes the drawn frame to the terminal.
func (s *Screen) Show() {
	s.screen.Show()
}
