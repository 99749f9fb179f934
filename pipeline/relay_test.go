package pipeline

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	videotextrelay "github.com/zhenyouluo/video-text-relay"
	"github.com/zhenyouluo/video-text-relay/internal/relay"
)

func newTestOverlay(t *testing.T, cfg videotextrelay.OverlayConfig, m videotextrelay.Measurer) *videotextrelay.Overlay {
	t.Helper()
	o, err := videotextrelay.NewOverlay(cfg, m)
	if err != nil {
		t.Fatalf("NewOverlay() error = %v", err)
	}
	return o
}

func newTestRasterizer(t *testing.T) *Rasterizer {
	t.Helper()
	r, err := NewRasterizer()
	if err != nil {
		t.Fatalf("NewRasterizer() error = %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestNewRelay_Validation(t *testing.T) {
	rasterizer := newTestRasterizer(t)
	overlay := newTestOverlay(t, videotextrelay.OverlayConfig{TickerEnabled: true}, rasterizer)

	tests := []struct {
		name    string
		cfg     Config
		overlay *videotextrelay.Overlay
		raster  *Rasterizer
		wantErr string
	}{
		{"missing uri", Config{}, overlay, rasterizer, "source URI is required"},
		{"port too high", Config{SourceURI: "file:///x.mp4", SinkPort: 70000}, overlay, rasterizer, "invalid sink port"},
		{"negative port", Config{SourceURI: "file:///x.mp4", SinkPort: -1}, overlay, rasterizer, "invalid sink port"},
		{"negative bitrate", Config{SourceURI: "file:///x.mp4", BitrateKbps: -5}, overlay, rasterizer, "invalid bitrate"},
		{"nil overlay", Config{SourceURI: "file:///x.mp4"}, nil, rasterizer, "overlay is required"},
		{"nil rasterizer", Config{SourceURI: "file:///x.mp4"}, overlay, nil, "rasterizer is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRelay(tt.cfg, tt.overlay, tt.raster)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("NewRelay() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

// TestRelay_Stop_Idempotent verifies that Stop() can be called multiple times safely
func TestRelay_Stop_Idempotent(t *testing.T) {
	rasterizer := newTestRasterizer(t)
	overlay := newTestOverlay(t, videotextrelay.OverlayConfig{TickerEnabled: true}, rasterizer)

	r, err := NewRelay(Config{SourceURI: "file:///nonexistent.mp4"}, overlay, rasterizer)
	if err != nil {
		t.Skipf("Skipping test: GStreamer not available: %v", err)
	}

	if err := r.Stop(); err != nil {
		t.Errorf("first Stop() on non-started relay failed: %v", err)
	}
	if err := r.Stop(); err != nil {
		t.Errorf("second Stop() on non-started relay failed: %v", err)
	}

	select {
	case <-r.Done():
	default:
		t.Error("Done() not closed before Start")
	}
	if r.SinkURL() != "tcp://127.0.0.1:10000" {
		t.Errorf("SinkURL() = %q", r.SinkURL())
	}

	t.Log("✅ Double Stop() on non-started relay successful (no panic)")
}

func TestRasterizer_DrawsIntoFrame(t *testing.T) {
	r := newTestRasterizer(t)
	o := newTestOverlay(t, videotextrelay.OverlayConfig{
		TickerEnabled: true,
		Ticker:        videotextrelay.TickerConfig{Text: "LIVE"},
	}, r)

	const w, h = 320, 240
	pix := make([]byte, w*h*4)
	o.OnGeometry(w, h)

	// Move the ticker into view, then draw
	o.Render(0, r.Canvas(pix, w, h))
	o.Render(uint64(6*time.Second), r.Canvas(pix, w, h))

	painted := false
	for i := 0; i+3 < len(pix); i += 4 {
		if pix[i] == 255 && pix[i+1] == 255 {
			painted = true
			break
		}
	}
	if !painted {
		t.Error("no yellow pixels after rendering the ticker on screen")
	}
}

// TestRelay_StopTimeoutLeavesPipelineToMonitor verifies that a Stop which
// gives up waiting does not release a pipeline the monitor may still use.
func TestRelay_StopTimeoutLeavesPipelineToMonitor(t *testing.T) {
	rasterizer := newTestRasterizer(t)
	elements := &relay.PipelineElements{}

	r := &Relay{
		overlay:        newTestOverlay(t, videotextrelay.OverlayConfig{}, rasterizer),
		rasterizer:     rasterizer,
		done:           make(chan struct{}),
		stopTimeout:    50 * time.Millisecond,
		elements:       elements,
		reconnectState: &relay.ReconnectState{Reconnects: new(uint32)},
	}

	cancelled := make(chan struct{})
	release := make(chan struct{})
	r.cancel = func() { close(cancelled) }

	// Stand-in for a monitor stuck in a rebuild
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		<-release
	}()

	start := time.Now()
	if err := r.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Stop() took %v, want about the stop timeout", elapsed)
	}

	select {
	case <-cancelled:
	default:
		t.Error("Stop() did not cancel the run context")
	}

	r.pipeMu.Lock()
	kept := r.elements == elements
	r.pipeMu.Unlock()
	if !kept {
		t.Error("Stop() released the pipeline while the monitor was still running")
	}

	close(release)
	r.wg.Wait()

	t.Log("✅ timed-out Stop() leaves the pipeline to the monitor goroutine")
}

// TestRelay_EndToEnd relays a local file for a few seconds.
//
// Requires GStreamer with x264 and a readable sample file in RELAY_TEST_URI.
func TestRelay_EndToEnd(t *testing.T) {
	uri := os.Getenv("RELAY_TEST_URI")
	if uri == "" {
		t.Skip("Skipping integration test (set RELAY_TEST_URI to a playable file:// URI)")
	}

	rasterizer := newTestRasterizer(t)
	overlay := newTestOverlay(t, videotextrelay.OverlayConfig{TickerEnabled: true}, rasterizer)

	r, err := NewRelay(Config{SourceURI: uri, SinkPort: 18080}, overlay, rasterizer)
	if err != nil {
		t.Fatalf("NewRelay() error = %v", err)
	}

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := r.Start(context.Background()); err != ErrAlreadyStarted {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}

	overlay.SubmitText("integration")
	time.Sleep(3 * time.Second)

	stats := r.Stats()
	if err := r.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}

	if stats.FramesIn == 0 {
		t.Errorf("no frames decoded: %+v", stats)
	}
	t.Logf("✅ relayed %d frames at %s", stats.FramesOut, stats.Resolution)
}
