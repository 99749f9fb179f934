package videotextrelay

import (
	"errors"
	"image/color"

	"github.com/zhenyouluo/video-text-relay/internal/scroll"
)

// Measurer reports the rendered width of text, in the same units as
// positions. Supplied by the rasterizer.
type Measurer = scroll.Measurer

// Canvas paints one pass of a glyph run at a baseline origin.
type Canvas = scroll.Canvas

// Style is the two-pass drop-shadow convention used for every message.
type Style = scroll.Style

// ResizePolicy decides what happens to scrolling positions on geometry change.
type ResizePolicy = scroll.ResizePolicy

const (
	// ResizeKeep leaves positions untouched until the next wraparound.
	ResizeKeep = scroll.ResizeKeep
	// ResizeRestart sends every message back to the new right edge.
	ResizeRestart = scroll.ResizeRestart
)

// DefaultStyle is yellow text over a black shadow offset by 3 pixels.
func DefaultStyle() Style { return scroll.DefaultStyle() }

// ParseResizePolicy maps "keep" / "restart" to a policy.
func ParseResizePolicy(s string) (ResizePolicy, bool) { return scroll.ParseResizePolicy(s) }

const (
	// DefaultFontSize is the glyph size for messages that leave Size unset.
	DefaultFontSize = scroll.DefaultFontSize
	// DefaultScrollDuration is the seconds one traversal takes unless configured.
	DefaultScrollDuration = 12.0
	// DefaultTickerText is shown until the first text is submitted.
	DefaultTickerText = "Testing, one, two, three..."
	// DefaultTickerYRatio places the ticker baseline at two thirds of the height.
	DefaultTickerYRatio = 2.0 / 3.0
)

var (
	// ErrInvalidScrollDuration rejects messages whose scroll duration is <= 0.
	ErrInvalidScrollDuration = scroll.ErrInvalidScrollDuration
	// ErrEmptyKey rejects remove/update commands without a key.
	ErrEmptyKey = errors.New("message key is required")
	// ErrEmptyText rejects messages with nothing to draw.
	ErrEmptyText = errors.New("message text is required")
)

// MessageSpec describes a keyed multi-message entry.
type MessageSpec struct {
	// Key identifies the message. Empty keys get a generated UUID.
	Key string `json:"key,omitempty"`
	// Text is the string to scroll (required)
	Text string `json:"text"`
	// Loops is the number of traversals before the message retires.
	// Zero or negative scrolls forever.
	Loops int `json:"loops"`
	// Size is the font size; zero uses DefaultFontSize
	Size float64 `json:"size,omitempty"`
	// Y is the baseline position; nil uses the frame's vertical centre
	Y *float64 `json:"y,omitempty"`
	// ScrollDuration is seconds per traversal; zero uses the configured default
	ScrollDuration float64 `json:"scroll_duration,omitempty"`
}

// Placement is where and what the ticker draws on one frame.
type Placement struct {
	X    float64
	Y    float64
	Text string
	Size float64
}

// MessageInfo is a read-only view of one live message.
type MessageInfo struct {
	Key            string  `json:"key"`
	Text           string  `json:"text"`
	X              float64 `json:"x"`
	Y              float64 `json:"y"`
	Loop           int     `json:"loop"`
	Loops          int     `json:"loops"`
	ScrollDuration float64 `json:"scroll_duration"`
}

// QueueStats reports a control-to-render hand-off queue.
type QueueStats struct {
	Capacity int    `json:"capacity"`
	Depth    int    `json:"depth"`
	Pushed   uint64 `json:"pushed"`
	Popped   uint64 `json:"popped"`
	Dropped  uint64 `json:"dropped"`
}

// OverlayStats contains render-side telemetry.
type OverlayStats struct {
	// FramesRendered is the number of frames passed through Render
	FramesRendered uint64 `json:"frames_rendered"`
	// Width and Height are the current frame geometry (0 until known)
	Width  int `json:"width"`
	Height int `json:"height"`
	// ActiveMessages is the number of keyed messages currently scrolling
	ActiveMessages int `json:"active_messages"`
	// RetiredMessages counts messages removed after reaching their loop target
	RetiredMessages uint64 `json:"retired_messages"`
	// TickerText is the text currently shown by the ticker
	TickerText string `json:"ticker_text"`
	// TextQueue is the ticker's pending text inbox
	TextQueue QueueStats `json:"text_queue"`
	// CommandQueue is the multi-message command inbox
	CommandQueue QueueStats `json:"command_queue"`
	// FrameIntervalMeanMS, P95 and Max summarize recent frame-to-frame deltas
	FrameIntervalMeanMS float64 `json:"frame_interval_mean_ms"`
	FrameIntervalP95MS  float64 `json:"frame_interval_p95_ms"`
	FrameIntervalMaxMS  float64 `json:"frame_interval_max_ms"`
	// RenderMeanMS, P95 and Max summarize time spent drawing each frame
	RenderMeanMS float64 `json:"render_mean_ms"`
	RenderP95MS  float64 `json:"render_p95_ms"`
	RenderMaxMS  float64 `json:"render_max_ms"`
	// PacingStable is true while recent frame intervals are regular
	PacingStable bool `json:"pacing_stable"`
	// ClockJumps counts deltas above the stall threshold
	ClockJumps uint64 `json:"clock_jumps"`
	// ClockBackwards counts timestamps earlier than their predecessor
	ClockBackwards uint64 `json:"clock_backwards"`
}

// ParseColor parses "#rrggbb" or "#rrggbbaa" into an opaque-by-default colour.
func ParseColor(s string) (color.RGBA, error) {
	return scroll.ParseColor(s)
}
