package videotextrelay

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/zhenyouluo/video-text-relay/internal/clock"
	"github.com/zhenyouluo/video-text-relay/internal/framestats"
	"github.com/zhenyouluo/video-text-relay/internal/scroll"
)

// DefaultStallThreshold is the frame delta above which a clock jump is logged.
const DefaultStallThreshold = 250 * time.Millisecond

// ErrTickerDisabled is returned by SubmitText when the overlay has no ticker.
var ErrTickerDisabled = errors.New("ticker disabled")

// OverlayConfig configures the overlay engine.
type OverlayConfig struct {
	// TickerEnabled turns on the single always-present blurb
	TickerEnabled bool
	// Ticker configures the blurb
	Ticker TickerConfig
	// Controller configures keyed messages
	Controller ControllerConfig
	// Style is the drop-shadow convention (DefaultStyle if zero)
	Style Style
	// StallThreshold is the delta above which a jump is logged (DefaultStallThreshold if 0)
	StallThreshold time.Duration
}

// Overlay is the per-frame engine: the ticker and the keyed messages share
// one render context and one canvas.
//
// Threading:
//   - OnGeometry and Render belong to the render context (the frame callback)
//   - SubmitText, AddMessage, RemoveMessage, UpdateMessage, Messages and
//     Stats are safe from any goroutine and never block the render context
type Overlay struct {
	ticker     *Ticker
	controller *Controller
	style      Style
	stall      time.Duration

	// telemetry clock, independent of the drivers' clocks
	clock clock.FrameClock

	frames    atomic.Uint64
	jumps     atomic.Uint64
	backwards atomic.Uint64
	width     atomic.Int64
	height    atomic.Int64

	// copy-on-write windows published for Stats readers
	intervals atomic.Pointer[framestats.LatencyWindow]
	renders   atomic.Pointer[framestats.LatencyWindow]
}

// NewOverlay creates an overlay drawing with m's measurements.
func NewOverlay(cfg OverlayConfig, m Measurer) (*Overlay, error) {
	controller, err := NewController(cfg.Controller, m)
	if err != nil {
		return nil, err
	}

	var ticker *Ticker
	if cfg.TickerEnabled {
		ticker, err = NewTicker(cfg.Ticker, m)
		if err != nil {
			return nil, err
		}
	}

	style := cfg.Style
	if style == (Style{}) {
		style = DefaultStyle()
	}
	stall := cfg.StallThreshold
	if stall <= 0 {
		stall = DefaultStallThreshold
	}

	o := &Overlay{
		ticker:     ticker,
		controller: controller,
		style:      style,
		stall:      stall,
	}
	o.intervals.Store(&framestats.LatencyWindow{})
	o.renders.Store(&framestats.LatencyWindow{})

	slog.Info("overlay: engine created",
		"ticker", cfg.TickerEnabled,
		"resize_policy", cfg.Controller.ResizePolicy.String(),
		"stall_threshold", stall,
	)

	return o, nil
}

// SubmitText queues new ticker text. Returns immediately.
func (o *Overlay) SubmitText(text string) error {
	if o.ticker == nil {
		return ErrTickerDisabled
	}
	o.ticker.SubmitText(text)
	return nil
}

// AddMessage queues a keyed message. See Controller.AddMessage.
func (o *Overlay) AddMessage(spec MessageSpec) (string, error) {
	return o.controller.AddMessage(spec)
}

// RemoveMessage queues removal of a keyed message.
func (o *Overlay) RemoveMessage(key string) error {
	return o.controller.RemoveMessage(key)
}

// UpdateMessage queues a text change for a keyed message.
func (o *Overlay) UpdateMessage(key, text string) error {
	return o.controller.UpdateMessage(key, text)
}

// Messages returns the live keyed messages as of the last frame.
func (o *Overlay) Messages() []MessageInfo { return o.controller.Messages() }

// OnGeometry applies a stream format change. Render context only.
func (o *Overlay) OnGeometry(width, height int) {
	o.width.Store(int64(width))
	o.height.Store(int64(height))
	o.clock.Reset()

	if o.ticker != nil {
		o.ticker.OnGeometry(width, height)
	}
	o.controller.OnGeometry(width, height)

	slog.Info("overlay: frame geometry", "width", width, "height", height)
}

// Render advances everything to timestamp (ns) and draws onto canvas.
// Render context only; never blocks and never fails.
func (o *Overlay) Render(timestamp uint64, canvas Canvas) {
	start := time.Now()
	o.observe(timestamp)

	if o.ticker != nil {
		if p, ok := o.ticker.OnFrame(timestamp); ok && canvas != nil {
			scroll.DrawShadowed(canvas, p.X, p.Y, p.Text, p.Size, o.style)
		}
	}
	o.controller.OnFrame(timestamp, canvas, o.style)

	o.frames.Add(1)
	addSample(&o.renders, float64(time.Since(start).Microseconds())/1000)
}

// observe feeds the telemetry clock and flags jumps.
func (o *Overlay) observe(timestamp uint64) {
	primed := o.clock.Valid()
	before := o.clock.Backwards()
	dt := o.clock.Delta(timestamp)

	if o.clock.Backwards() != before {
		o.backwards.Add(1)
		slog.Warn("overlay: frame timestamp went backwards, delta clamped to 0",
			"timestamp", timestamp,
		)
		return
	}
	if !primed {
		return
	}

	addSample(&o.intervals, dt*1000)

	if jump := time.Duration(dt * float64(time.Second)); jump > o.stall {
		o.jumps.Add(1)
		slog.Warn("overlay: clock jump, messages will skip ahead",
			"delta", jump,
			"threshold", o.stall,
		)
	}
}

func addSample(p *atomic.Pointer[framestats.LatencyWindow], v float64) {
	next := *p.Load()
	next.AddSample(v)
	p.Store(&next)
}

// Stats returns render-side telemetry.
func (o *Overlay) Stats() OverlayStats {
	intervals := o.intervals.Load()
	iMean, iP95, iMax := intervals.GetStats()
	rMean, rP95, rMax := o.renders.Load().GetStats()

	secs := intervals.Values()
	for i := range secs {
		secs[i] /= 1000
	}
	pacing := framestats.CalculatePacing(secs)

	s := OverlayStats{
		FramesRendered:      o.frames.Load(),
		Width:               int(o.width.Load()),
		Height:              int(o.height.Load()),
		ActiveMessages:      len(o.controller.Messages()),
		RetiredMessages:     o.controller.Retired(),
		CommandQueue:        o.controller.QueueStats(),
		FrameIntervalMeanMS: iMean,
		FrameIntervalP95MS:  iP95,
		FrameIntervalMaxMS:  iMax,
		RenderMeanMS:        rMean,
		RenderP95MS:         rP95,
		RenderMaxMS:         rMax,
		PacingStable:        pacing.IsStable,
		ClockJumps:          o.jumps.Load(),
		ClockBackwards:      o.backwards.Load(),
	}
	if o.ticker != nil {
		s.TickerText = o.ticker.Text()
		s.TextQueue = o.ticker.QueueStats()
	}
	return s
}

// Resolution returns the current geometry as "WxH", or "" before the first frame.
func (o *Overlay) Resolution() string {
	w, h := o.width.Load(), o.height.Load()
	if w == 0 || h == 0 {
		return ""
	}
	return fmt.Sprintf("%dx%d", w, h)
}
