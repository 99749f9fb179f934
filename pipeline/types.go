package pipeline

import (
	"context"

	videotextrelay "github.com/zhenyouluo/video-text-relay"
)

// Stats contains relay pipeline telemetry.
type Stats struct {
	// FramesIn is the number of decoded frames received from the source
	FramesIn uint64 `json:"frames_in"`
	// FramesOut is the number of overlaid frames pushed to the encoder
	FramesOut uint64 `json:"frames_out"`
	// FramesFailed counts frames that could not be mapped or pushed
	FramesFailed uint64 `json:"frames_failed"`
	// BytesOut is the total raw bytes pushed to the encoder
	BytesOut uint64 `json:"bytes_out"`
	// Resolution is the current frame geometry (e.g., "1280x720")
	Resolution string `json:"resolution"`
	// Reconnects is the number of reconnection attempts
	Reconnects uint32 `json:"reconnects"`
	// IsRunning indicates if the pipeline is currently up
	IsRunning bool `json:"is_running"`
	// Uptime is seconds since Start
	UptimeS float64 `json:"uptime_s"`
	// Error counters by category
	ErrorsNetwork uint64 `json:"errors_network"`
	ErrorsCodec   uint64 `json:"errors_codec"`
	ErrorsAuth    uint64 `json:"errors_auth"`
	ErrorsUnknown uint64 `json:"errors_unknown"`
	// Overlay is the render-side telemetry
	Overlay videotextrelay.OverlayStats `json:"overlay"`
}

// Provider defines the contract for the video relay service
//
// Implementations must guarantee:
//   - Start() returns once the first pipeline is built and set to PLAYING
//   - Stop() is idempotent (safe to call multiple times)
//   - Stats() is thread-safe (can be called from any goroutine)
//   - Done() is closed when the relay stops for good
type Provider interface {
	// Start builds the pipeline and starts relaying.
	//
	// Returns an error if:
	//   - The relay is already running (ErrAlreadyStarted)
	//   - Pipeline creation fails (missing GStreamer plugins)
	//   - The pipeline refuses to start
	//
	// After Start, pipeline failures are handled in the background with
	// exponential backoff. The end of the source ends the relay.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the relay.
	//
	// This method:
	//   1. Cancels the internal context to signal shutdown
	//   2. Waits up to 3 seconds for the monitor goroutine to finish
	//   3. Leaves the pipeline to the monitor, which sets it to NULL on exit
	//
	// Safe to call multiple times. Returns nil when not running.
	Stop() error

	// Stats returns relay and overlay telemetry.
	Stats() Stats

	// Done is closed when the relay stops: end of stream, retries exhausted,
	// Stop, or cancellation of the Start context.
	Done() <-chan struct{}

	// Err returns why the relay stopped, once Done is closed. It is nil after
	// Stop or cancellation.
	Err() error
}

// Compile-time interface check
var _ Provider = (*Relay)(nil)
