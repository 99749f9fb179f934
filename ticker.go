package videotextrelay

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/zhenyouluo/video-text-relay/internal/clock"
	"github.com/zhenyouluo/video-text-relay/internal/inbox"
	"github.com/zhenyouluo/video-text-relay/internal/scroll"
)

// TickerConfig configures the single always-present overlay blurb.
type TickerConfig struct {
	// Text is shown until the first submission (DefaultTickerText if empty)
	Text string
	// YRatio places the baseline at YRatio*height (DefaultTickerYRatio if <= 0)
	YRatio float64
	// Size is the font size (DefaultFontSize if <= 0)
	Size float64
	// ScrollDuration is seconds per traversal (DefaultScrollDuration if 0)
	ScrollDuration float64
	// QueueCapacity bounds pending submissions (inbox.DefaultCapacity if <= 0)
	QueueCapacity int
}

// Ticker drives one scrolling blurb from frame timestamps and remote text
// submissions. It never retires.
//
// Threading:
//   - SubmitText, Text and QueueStats are safe from any goroutine
//   - OnGeometry and OnFrame belong to the render context
type Ticker struct {
	measurer Measurer
	yRatio   float64
	spec     scroll.Spec

	entity  *scroll.Entity
	clock   clock.FrameClock
	pending *inbox.Inbox[string]
	valid   bool

	// current mirrors the displayed text for readers outside the render context
	current atomic.Pointer[string]
}

// NewTicker creates a ticker. The first frame moves nothing until OnGeometry
// has been called.
func NewTicker(cfg TickerConfig, m Measurer) (*Ticker, error) {
	if m == nil {
		return nil, fmt.Errorf("overlay: ticker needs a text measurer")
	}

	text := cfg.Text
	if text == "" {
		text = DefaultTickerText
	}
	yRatio := cfg.YRatio
	if yRatio <= 0 {
		yRatio = DefaultTickerYRatio
	}
	duration := cfg.ScrollDuration
	if duration == 0 {
		duration = DefaultScrollDuration
	}

	spec := scroll.Spec{
		Key:            "ticker",
		Text:           text,
		Size:           cfg.Size,
		ScrollDuration: duration,
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("overlay: ticker: %w", err)
	}

	t := &Ticker{
		measurer: m,
		yRatio:   yRatio,
		spec:     spec,
		pending:  inbox.New[string](cfg.QueueCapacity),
	}
	t.current.Store(&text)
	return t, nil
}

// SubmitText queues text to replace the blurb on a later frame. Never blocks;
// when the queue is full the oldest pending text is discarded.
func (t *Ticker) SubmitText(text string) {
	if dropped := t.pending.Push(text); dropped {
		slog.Warn("overlay: ticker queue full, dropped oldest text",
			"capacity", t.pending.Stats().Capacity,
		)
	}
}

// OnGeometry applies new frame dimensions: the blurb restarts at the right
// edge and the clock is re-primed.
func (t *Ticker) OnGeometry(width, height int) {
	spec := t.spec
	spec.Text = t.Text()
	spec.Y = t.yRatio * float64(height)

	t.entity = scroll.NewEntity(spec, float64(width), float64(height))
	t.clock.Reset()
	t.valid = true

	slog.Debug("overlay: ticker geometry",
		"width", width,
		"height", height,
		"y", spec.Y,
	)
}

// OnFrame advances the blurb to timestamp (ns) and returns what to draw.
// Returns false until OnGeometry has been called.
//
// At most one pending text is consumed per call; the rest wait for later
// frames.
func (t *Ticker) OnFrame(timestamp uint64) (Placement, bool) {
	if !t.valid {
		return Placement{}, false
	}

	dt := t.clock.Delta(timestamp)

	if text, ok := t.pending.TryPop(); ok {
		t.entity.SetText(text)
		t.current.Store(&text)
	}

	t.entity.Advance(dt, t.measurer)

	return Placement{
		X:    t.entity.X(),
		Y:    t.entity.Y(),
		Text: t.entity.Text(),
		Size: t.entity.Size(),
	}, true
}

// Text returns the text currently displayed.
func (t *Ticker) Text() string { return *t.current.Load() }

// Pending returns how many submissions are waiting.
func (t *Ticker) Pending() int { return t.pending.Len() }

// QueueStats returns the pending-text inbox counters.
func (t *Ticker) QueueStats() QueueStats { return queueStats(t.pending.Stats()) }

func queueStats(s inbox.Stats) QueueStats {
	return QueueStats{
		Capacity: s.Capacity,
		Depth:    s.Depth,
		Pushed:   s.Pushed,
		Popped:   s.Popped,
		Dropped:  s.Dropped,
	}
}
