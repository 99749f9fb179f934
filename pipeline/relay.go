// Package pipeline relays a video source through GStreamer, drawing the
// overlay engine onto every decoded frame, and serves the result as MPEG-TS
// over TCP.
//
// It is the only package of the module that needs the GStreamer development
// libraries; the overlay engine itself is pure Go.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
	videotextrelay "github.com/zhenyouluo/video-text-relay"
	"github.com/zhenyouluo/video-text-relay/internal/raster"
	"github.com/zhenyouluo/video-text-relay/internal/relay"
)

const (
	// DefaultSinkHost is the address tcpserversink binds when none is given.
	DefaultSinkHost = "127.0.0.1"
	// DefaultSinkPort is the TCP port clients connect to.
	DefaultSinkPort = 10000

	// defaultStopTimeout bounds how long Stop waits for the monitor goroutine.
	defaultStopTimeout = 3 * time.Second
)

var (
	// ErrAlreadyStarted is returned by Start on a running relay.
	ErrAlreadyStarted = errors.New("relay already started")
	// ErrEndOfStream is reported by Relay.Err once the source is exhausted.
	ErrEndOfStream = relay.ErrEndOfStream
)

// Config configures the video relay.
type Config struct {
	// SourceURI is any URI uridecodebin can open (file://, rtsp://, http://)
	SourceURI string
	// Audio relays the source's audio track as MP3
	Audio bool
	// SinkHost and SinkPort are where tcpserversink listens
	SinkHost string
	SinkPort int
	// BitrateKbps is the x264 target bitrate (0 keeps the encoder default)
	BitrateKbps int

	// Reconnection settings (0 uses defaults: 5 attempts, 1s initial, 30s max)
	MaxReconnectAttempts  int
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
}

// Rasterizer measures and draws overlay text in frame pixels.
type Rasterizer struct {
	r *raster.Renderer
}

// NewRasterizer returns a pixel rasterizer using the Go Bold font.
func NewRasterizer() (*Rasterizer, error) {
	r, err := raster.New()
	if err != nil {
		return nil, err
	}
	return &Rasterizer{r: r}, nil
}

// TextWidth returns the rendered width of text in pixels.
func (r *Rasterizer) TextWidth(text string, size float64) float64 {
	return r.r.TextWidth(text, size)
}

// Canvas wraps a width*height RGBA frame for drawing in place.
func (r *Rasterizer) Canvas(pix []byte, width, height int) videotextrelay.Canvas {
	return r.r.Frame(pix, width, height)
}

// Close releases cached font faces.
func (r *Rasterizer) Close() error { return r.r.Close() }

// frameRenderer connects the streaming thread to the overlay engine.
type frameRenderer struct {
	overlay *videotextrelay.Overlay
	raster  *Rasterizer
}

func (f frameRenderer) OnGeometry(width, height int) {
	f.overlay.OnGeometry(width, height)
}

func (f frameRenderer) RenderFrame(pix []byte, width, height int, timestamp uint64) {
	f.overlay.Render(timestamp, f.raster.Canvas(pix, width, height))
}

// Relay implements Provider: it decodes a source, draws the overlay on
// every frame and serves the result as MPEG-TS over TCP.
type Relay struct {
	cfg        Config
	overlay    *videotextrelay.Overlay
	rasterizer *Rasterizer
	sinkURL    string

	// Lifecycle
	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}
	err    error // guarded by mu
	start  time.Time

	stopTimeout time.Duration

	// Current pipeline generation (rebuilt on reconnect)
	pipeMu   sync.Mutex
	elements *relay.PipelineElements

	// Statistics (atomic for thread-safety)
	framesIn     uint64
	framesOut    uint64
	framesFailed uint64
	bytesOut     uint64
	running      atomic.Bool

	// Error telemetry (atomic for thread-safety)
	errorsNetwork uint64
	errorsCodec   uint64
	errorsAuth    uint64
	errorsUnknown uint64

	// Reconnection state
	reconnectState *relay.ReconnectState
	reconnectCfg   relay.ReconnectConfig
}

// NewRelay creates a relay with fail-fast validation
//
// Validates configuration at construction time:
//   - Source URI must not be empty
//   - Sink port must be 1-65535
//   - Bitrate must not be negative
//   - Overlay and rasterizer are required
//
// Returns an error if validation fails or GStreamer is not available.
func NewRelay(cfg Config, overlay *videotextrelay.Overlay, rasterizer *Rasterizer) (*Relay, error) {
	if cfg.SourceURI == "" {
		return nil, fmt.Errorf("relay: source URI is required")
	}
	if cfg.SinkHost == "" {
		cfg.SinkHost = DefaultSinkHost
	}
	if cfg.SinkPort == 0 {
		cfg.SinkPort = DefaultSinkPort
	}
	if cfg.SinkPort < 1 || cfg.SinkPort > 65535 {
		return nil, fmt.Errorf("relay: invalid sink port %d (must be 1-65535)", cfg.SinkPort)
	}
	if cfg.BitrateKbps < 0 {
		return nil, fmt.Errorf("relay: invalid bitrate %d kbps", cfg.BitrateKbps)
	}
	if overlay == nil {
		return nil, fmt.Errorf("relay: overlay is required")
	}
	if rasterizer == nil {
		return nil, fmt.Errorf("relay: rasterizer is required")
	}

	if err := checkGStreamerAvailable(); err != nil {
		return nil, fmt.Errorf("relay: GStreamer not available: %w", err)
	}

	reconnectCfg := relay.DefaultReconnectConfig()
	if cfg.MaxReconnectAttempts > 0 {
		reconnectCfg.MaxRetries = cfg.MaxReconnectAttempts
	}
	if cfg.ReconnectInitialDelay > 0 {
		reconnectCfg.RetryDelay = cfg.ReconnectInitialDelay
	}
	if cfg.ReconnectMaxDelay > 0 {
		reconnectCfg.MaxRetryDelay = cfg.ReconnectMaxDelay
	}

	r := &Relay{
		cfg:          cfg,
		overlay:      overlay,
		rasterizer:   rasterizer,
		sinkURL:      relay.SinkURL(cfg.SinkHost, cfg.SinkPort),
		done:         closedChan(),
		stopTimeout:  defaultStopTimeout,
		reconnectCfg: reconnectCfg,
		reconnectState: &relay.ReconnectState{
			Reconnects: new(uint32),
		},
	}

	slog.Info("relay: created",
		"uri", cfg.SourceURI,
		"sink", r.sinkURL,
		"audio", cfg.Audio,
		"bitrate_kbps", cfg.BitrateKbps,
	)

	return r, nil
}

// Start builds the first pipeline, sets it to PLAYING and returns. Bus
// monitoring and reconnection run in the background until Stop, ctx
// cancellation, end of stream or exhausted retries.
func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.start = time.Now()
	r.err = nil

	if err := r.build(); err != nil {
		cancel()
		return err
	}

	r.cancel = cancel
	r.done = make(chan struct{})
	r.running.Store(true)

	r.wg.Add(1)
	go r.run(runCtx, r.done)

	slog.Info("relay: started",
		"uri", r.cfg.SourceURI,
		"sink", r.sinkURL,
		"note", "clients can connect once the first frame is encoded",
	)
	return nil
}

// build creates one pipeline generation, wires its callbacks and sets it
// to PLAYING.
func (r *Relay) build() error {
	elements, err := relay.CreatePipeline(relay.PipelineConfig{
		SourceURI:   r.cfg.SourceURI,
		Audio:       r.cfg.Audio,
		Host:        r.cfg.SinkHost,
		Port:        r.cfg.SinkPort,
		BitrateKbps: r.cfg.BitrateKbps,
	})
	if err != nil {
		return fmt.Errorf("relay: failed to create pipeline: %w", err)
	}

	callbackCtx := &relay.CallbackContext{
		Renderer:     frameRenderer{overlay: r.overlay, raster: r.rasterizer},
		AppSrc:       elements.AppSrc,
		FramesIn:     &r.framesIn,
		FramesOut:    &r.framesOut,
		FramesFailed: &r.framesFailed,
		BytesOut:     &r.bytesOut,
		StartedAt:    r.start,
	}

	elements.AppSink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: func(sink *app.Sink) gst.FlowReturn {
			return relay.OnNewSample(sink, callbackCtx)
		},
		EOSFunc: func(sink *app.Sink) {
			relay.OnEOS(callbackCtx)
		},
	})

	targets := relay.PadTargets{Video: elements.VideoQueue, Audio: elements.AudioQueue}
	elements.Source.Connect("pad-added", func(self *gst.Element, srcPad *gst.Pad) {
		relay.OnPadAdded(srcPad, targets)
	})
	elements.Source.Connect("no-more-pads", func(self *gst.Element) {
		relay.OnNoMorePads(targets)
	})

	if err := elements.Pipeline.SetState(gst.StatePlaying); err != nil {
		relay.DestroyPipeline(elements)
		return fmt.Errorf("relay: failed to start pipeline: %w", err)
	}

	r.pipeMu.Lock()
	r.elements = elements
	r.pipeMu.Unlock()
	return nil
}

// teardown stops and releases the current pipeline generation.
func (r *Relay) teardown() {
	r.pipeMu.Lock()
	elements := r.elements
	r.elements = nil
	r.pipeMu.Unlock()

	if err := relay.DestroyPipeline(elements); err != nil {
		slog.Error("relay: failed to destroy pipeline", "error", err)
	}
}

func (r *Relay) pipeline() *gst.Pipeline {
	r.pipeMu.Lock()
	defer r.pipeMu.Unlock()
	if r.elements == nil {
		return nil
	}
	return r.elements.Pipeline
}

// run monitors the pipeline bus with reconnection
//
// This goroutine:
//  1. Monitors the current pipeline until it fails or ends
//  2. On error: tears it down and rebuilds with exponential backoff
//  3. On end of stream or exhausted retries: records the cause and closes done
func (r *Relay) run(ctx context.Context, done chan struct{}) {
	defer r.wg.Done()
	defer close(done)
	defer r.running.Store(false)
	// run owns the pipeline from here on, including the last teardown
	defer r.teardown()

	errorCounters := &relay.ErrorCounters{
		Network: &r.errorsNetwork,
		Codec:   &r.errorsCodec,
		Auth:    &r.errorsAuth,
		Unknown: &r.errorsUnknown,
	}
	metrics := &relay.MonitorMetrics{
		SourceURI: r.cfg.SourceURI,
		SinkURL:   r.sinkURL,
		FramesOut: &r.framesOut,
		StartedAt: r.start,
	}

	connectFn := func(ctx context.Context) error {
		pipeline := r.pipeline()
		if pipeline == nil {
			if err := r.build(); err != nil {
				return err
			}
			pipeline = r.pipeline()
		}

		err := relay.MonitorPipelineBus(ctx, pipeline, errorCounters, r.reconnectState, metrics)
		if err != nil {
			r.teardown()
		}
		return err
	}

	err := relay.RunWithReconnect(ctx, connectFn, r.reconnectCfg, r.reconnectState)
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	if err != nil && !errors.Is(err, relay.ErrEndOfStream) {
		slog.Error("relay: stopped after reconnection failure",
			"error", err,
			"uri", r.cfg.SourceURI,
			"uptime", time.Since(r.start),
			"frames_out", atomic.LoadUint64(&r.framesOut),
			"reconnects", atomic.LoadUint32(r.reconnectState.Reconnects),
		)
	}

	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

// Stop gracefully shuts down the relay
//
// Idempotent - safe to call multiple times.
func (r *Relay) Stop() error {
	r.mu.Lock()
	if r.cancel == nil {
		r.mu.Unlock()
		slog.Debug("relay: not started, nothing to stop")
		return nil
	}
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()

	slog.Info("relay: stopping")
	cancel()

	// run takes r.mu on exit, so wait without holding it
	waited := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(waited)
	}()

	// run releases the pipeline on exit; Stop never touches it
	select {
	case <-waited:
		slog.Debug("relay: goroutines stopped cleanly")
	case <-time.After(r.stopTimeout):
		slog.Warn("relay: stop timeout exceeded, pipeline will be released when the monitor exits",
			"timeout", r.stopTimeout,
		)
	}

	slog.Info("relay: stopped",
		"frames_in", atomic.LoadUint64(&r.framesIn),
		"frames_out", atomic.LoadUint64(&r.framesOut),
		"reconnects", atomic.LoadUint32(r.reconnectState.Reconnects),
		"uptime", time.Since(r.start),
	)
	return nil
}

// Done is closed when the relay stops. Before the first Start it is
// already closed.
func (r *Relay) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// Err returns why the relay stopped: ErrEndOfStream when the source ended,
// the last pipeline error when retries ran out, nil otherwise.
func (r *Relay) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// SinkURL is the address clients such as VLC open to watch the relay.
func (r *Relay) SinkURL() string { return r.sinkURL }

// Stats returns relay statistics
//
// Thread-safe - uses atomic operations for counters.
func (r *Relay) Stats() Stats {
	r.mu.Lock()
	started := r.start
	r.mu.Unlock()

	var uptime float64
	if !started.IsZero() {
		uptime = time.Since(started).Seconds()
	}

	return Stats{
		FramesIn:      atomic.LoadUint64(&r.framesIn),
		FramesOut:     atomic.LoadUint64(&r.framesOut),
		FramesFailed:  atomic.LoadUint64(&r.framesFailed),
		BytesOut:      atomic.LoadUint64(&r.bytesOut),
		Resolution:    r.overlay.Resolution(),
		Reconnects:    atomic.LoadUint32(r.reconnectState.Reconnects),
		IsRunning:     r.running.Load(),
		UptimeS:       uptime,
		ErrorsNetwork: atomic.LoadUint64(&r.errorsNetwork),
		ErrorsCodec:   atomic.LoadUint64(&r.errorsCodec),
		ErrorsAuth:    atomic.LoadUint64(&r.errorsAuth),
		ErrorsUnknown: atomic.LoadUint64(&r.errorsUnknown),
		Overlay:       r.overlay.Stats(),
	}
}

func closedChan() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}

// checkGStreamerAvailable checks if GStreamer is available
//
// This is a fail-fast validation that runs at construction time.
func checkGStreamerAvailable() error {
	gst.Init(nil)

	elem, err := gst.NewElement("fakesrc")
	if err != nil {
		return fmt.Errorf("GStreamer not available or not properly installed: %w", err)
	}
	elem.SetState(gst.StateNull)

	return nil
}
