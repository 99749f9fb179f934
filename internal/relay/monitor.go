package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
)

// ErrorCounters holds atomic counters for different error categories
type ErrorCounters struct {
	Network *uint64 // Network-related errors (connection, timeout, DNS, bind)
	Codec   *uint64 // Codec/stream errors (decode failures, format issues)
	Auth    *uint64 // Authentication/authorization errors
	Unknown *uint64 // Unclassified errors
}

// Count increments the counter for category.
func (c *ErrorCounters) Count(category ErrorCategory) {
	switch category {
	case ErrCategoryNetwork:
		atomic.AddUint64(c.Network, 1)
	case ErrCategoryCodec:
		atomic.AddUint64(c.Codec, 1)
	case ErrCategoryAuth:
		atomic.AddUint64(c.Auth, 1)
	default:
		atomic.AddUint64(c.Unknown, 1)
	}
}

// MonitorMetrics holds relay metrics for monitoring logs
type MonitorMetrics struct {
	SourceURI string
	SinkURL   string
	FramesOut *uint64
	StartedAt time.Time
}

// MonitorPipelineBus monitors the GStreamer pipeline bus for messages
//
// This function:
//  1. Polls pipeline bus for messages (EOS, Error, StateChanged)
//  2. Classifies errors for telemetry
//  3. Updates error counters atomically
//  4. Resets reconnection state on PLAYING transition
//
// Returns an error if the pipeline encounters an error (triggers reconnection),
// ErrEndOfStream when the source is exhausted, and nil when ctx is cancelled.
func MonitorPipelineBus(
	ctx context.Context,
	pipeline *gst.Pipeline,
	errorCounters *ErrorCounters,
	reconnectState *ReconnectState,
	metrics *MonitorMetrics,
) error {
	if pipeline == nil {
		return fmt.Errorf("pipeline not initialized")
	}

	bus := pipeline.GetPipelineBus()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("relay: context cancelled, stopping pipeline monitor")
			return nil

		default:
			// Short timeout keeps shutdown responsive
			msg := bus.TimedPop(50 * time.Millisecond)
			if msg == nil {
				continue
			}

			switch msg.Type() {
			case gst.MessageEOS:
				slog.Info("relay: end of stream received",
					"uri", metrics.SourceURI,
					"uptime", time.Since(metrics.StartedAt),
					"frames_out", atomic.LoadUint64(metrics.FramesOut),
				)
				return ErrEndOfStream

			case gst.MessageError:
				gerr := msg.ParseError()
				category := ClassifyGStreamerError(gerr)
				errorCounters.Count(category)

				slog.Error("relay: pipeline error",
					"error", gerr.Error(),
					"debug", gerr.DebugString(),
					"category", category.String(),
					"uri", metrics.SourceURI,
					"sink", metrics.SinkURL,
					"uptime", time.Since(metrics.StartedAt),
					"frames_out", atomic.LoadUint64(metrics.FramesOut),
					"reconnects", atomic.LoadUint32(reconnectState.Reconnects),
				)
				return fmt.Errorf("pipeline error [%s]: %s", category.String(), gerr.Error())

			case gst.MessageWarning:
				gerr := msg.ParseWarning()
				slog.Warn("relay: pipeline warning",
					"warning", gerr.Error(),
					"debug", gerr.DebugString(),
				)

			case gst.MessageStateChanged:
				if msg.Source() == pipeline.GetName() {
					old, new := msg.ParseStateChanged()
					slog.Debug("relay: pipeline state changed",
						"from", old,
						"to", new,
					)

					if new == gst.StatePlaying {
						ResetReconnectState(reconnectState)
						slog.Info("relay: pipeline playing", "sink", metrics.SinkURL)
					}
				}
			}
		}
	}
}
