package relay

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// FrameRenderer draws the overlay into decoded frames. Both methods run on
// the GStreamer streaming thread (the render context).
type FrameRenderer interface {
	// OnGeometry is called before the first frame and on every size change.
	OnGeometry(width, height int)
	// RenderFrame draws into pix (RGBA, stride width*4) for a frame at
	// timestamp nanoseconds.
	RenderFrame(pix []byte, width, height int, timestamp uint64)
}

// CallbackContext holds state needed by GStreamer callbacks
type CallbackContext struct {
	Renderer     FrameRenderer
	AppSrc       *app.Source
	FramesIn     *uint64 // Atomic: decoded frames pulled from appsink
	FramesOut    *uint64 // Atomic: overlaid frames pushed into appsrc
	FramesFailed *uint64 // Atomic: frames skipped (empty buffer, bad caps, push failure)
	BytesOut     *uint64 // Atomic: raw bytes pushed into appsrc
	StartedAt    time.Time

	// render context only
	width, height int
}

// OnNewSample is called by GStreamer when a decoded frame is available.
//
// This callback:
//  1. Pulls the sample and reads the frame geometry from its caps
//  2. On geometry change: notifies the renderer and updates appsrc caps
//  3. Copies the pixels (the decoded buffer is read-only and reused)
//  4. Renders the overlay into the copy at the frame's PTS
//  5. Pushes the copy into appsrc with the original timing
//
// Returns gst.FlowOK to keep the stream going. A frame that cannot be
// processed is skipped rather than ending the stream.
func OnNewSample(sink *app.Sink, ctx *CallbackContext) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		slog.Warn("relay: failed to pull sample from appsink, skipping frame")
		return gst.FlowOK
	}
	atomic.AddUint64(ctx.FramesIn, 1)

	caps := sample.GetCaps()
	width, height, ok := frameGeometry(caps)
	if !ok {
		atomic.AddUint64(ctx.FramesFailed, 1)
		slog.Warn("relay: sample without frame geometry, skipping frame")
		return gst.FlowOK
	}
	if width != ctx.width || height != ctx.height {
		ctx.width, ctx.height = width, height
		ctx.AppSrc.SetCaps(caps)
		ctx.Renderer.OnGeometry(width, height)
		slog.Info("relay: frame geometry", "width", width, "height", height)
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		atomic.AddUint64(ctx.FramesFailed, 1)
		slog.Warn("relay: failed to get buffer from sample, skipping frame")
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) < width*height*4 {
		buffer.Unmap()
		atomic.AddUint64(ctx.FramesFailed, 1)
		slog.Warn("relay: short frame buffer",
			"size_bytes", len(data),
			"want_bytes", width*height*4,
		)
		return gst.FlowOK
	}

	frame := make([]byte, len(data))
	copy(frame, data)
	buffer.Unmap()

	pts := buffer.PresentationTimestamp()
	timestamp := FrameTimestamp(pts, time.Since(ctx.StartedAt))

	ctx.Renderer.RenderFrame(frame, width, height, timestamp)

	out := gst.NewBufferFromBytes(frame)
	out.SetPresentationTimestamp(time.Duration(timestamp))
	if d := buffer.Duration(); d > 0 {
		out.SetDuration(d)
	}

	if ret := ctx.AppSrc.PushBuffer(out); ret != gst.FlowOK {
		atomic.AddUint64(ctx.FramesFailed, 1)
		slog.Debug("relay: appsrc refused frame", "flow", ret)
		return ret
	}

	atomic.AddUint64(ctx.FramesOut, 1)
	atomic.AddUint64(ctx.BytesOut, uint64(len(frame)))
	return gst.FlowOK
}

// FrameTimestamp picks the frame clock source: the buffer PTS when the
// decoder set one, otherwise the wall time since start.
func FrameTimestamp(pts, sinceStart time.Duration) uint64 {
	if pts < 0 {
		if sinceStart < 0 {
			return 0
		}
		return uint64(sinceStart)
	}
	return uint64(pts)
}

// frameGeometry reads width and height from the first caps structure.
func frameGeometry(caps *gst.Caps) (width, height int, ok bool) {
	if caps == nil || caps.GetSize() == 0 {
		return 0, 0, false
	}
	structure := caps.GetStructureAt(0)
	if structure == nil {
		return 0, 0, false
	}

	w, err := structure.GetValue("width")
	if err != nil {
		return 0, 0, false
	}
	h, err := structure.GetValue("height")
	if err != nil {
		return 0, 0, false
	}

	width, wok := w.(int)
	height, hok := h.(int)
	if !wok || !hok || width <= 0 || height <= 0 {
		return 0, 0, false
	}
	return width, height, true
}

// PadTargets are the branch heads dynamic source pads may link to.
type PadTargets struct {
	Video *gst.Element
	Audio *gst.Element // nil when audio is not relayed
}

// OnPadAdded is called by GStreamer when uridecodebin exposes a decoded pad.
//
// Video pads link to the video branch and audio pads to the audio branch.
// Other pads, pads without a branch and branches already linked are ignored.
func OnPadAdded(srcPad *gst.Pad, targets PadTargets) {
	caps := srcPad.GetCurrentCaps()
	if caps == nil || caps.GetSize() == 0 {
		slog.Warn("relay: pad-added without caps", "pad", srcPad.GetName())
		return
	}
	name := caps.GetStructureAt(0).Name()
	kind := MediaKind(name)

	slog.Debug("relay: pad-added signal received",
		"pad", srcPad.GetName(),
		"caps", name,
		"media", kind.String(),
	)

	var target *gst.Element
	switch kind {
	case MediaVideo:
		target = targets.Video
	case MediaAudio:
		target = targets.Audio
	}
	if target == nil {
		slog.Debug("relay: no branch for pad, leaving unlinked",
			"pad", srcPad.GetName(),
			"media", kind.String(),
		)
		return
	}

	sinkPad := target.GetStaticPad("sink")
	if sinkPad == nil {
		slog.Error("relay: branch has no sink pad", "media", kind.String())
		return
	}
	if sinkPad.IsLinked() {
		slog.Debug("relay: branch already linked, ignoring extra pad",
			"pad", srcPad.GetName(),
			"media", kind.String(),
		)
		return
	}

	if ret := srcPad.Link(sinkPad); ret != gst.PadLinkOK {
		slog.Error("relay: failed to link pads",
			"src_pad", srcPad.GetName(),
			"sink_pad", sinkPad.GetName(),
			"ret", ret,
		)
		return
	}

	slog.Info("relay: source pad linked",
		"src_pad", srcPad.GetName(),
		"media", kind.String(),
	)
}

// OnNoMorePads finishes an audio branch the source never fed, so the muxer
// does not wait on it forever.
func OnNoMorePads(targets PadTargets) {
	if targets.Audio == nil {
		return
	}
	sinkPad := targets.Audio.GetStaticPad("sink")
	if sinkPad == nil || sinkPad.IsLinked() {
		return
	}

	slog.Warn("relay: source has no audio, closing audio branch")
	sinkPad.SendEvent(gst.NewEOSEvent())
}

// OnEOS forwards the end of the decoded stream to the encode half so the
// muxer can finish and the pipeline posts EOS on its bus.
func OnEOS(ctx *CallbackContext) {
	slog.Info("relay: source exhausted, ending encode branch",
		"frames_out", atomic.LoadUint64(ctx.FramesOut),
	)
	if ret := ctx.AppSrc.EndStream(); ret != gst.FlowOK {
		slog.Warn("relay: appsrc refused end of stream", "flow", ret)
	}
}
