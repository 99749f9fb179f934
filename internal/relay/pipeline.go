package relay

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// RawVideoCaps is the pixel format handed to the overlay: 4 bytes per pixel,
// R G B A in memory order.
const RawVideoCaps = "video/x-raw,format=RGBA"

// PipelineConfig contains configuration for GStreamer pipeline creation
type PipelineConfig struct {
	SourceURI   string
	Audio       bool // Relay the source's audio as MP3 in the transport stream
	Host        string
	Port        int
	BitrateKbps int
}

// PipelineElements holds references to GStreamer pipeline elements
// needed for linking, callbacks and cleanup.
type PipelineElements struct {
	Pipeline   *gst.Pipeline
	Source     *gst.Element // uridecodebin (dynamic pads)
	AppSink    *app.Sink    // decoded RGBA frames → overlay
	AppSrc     *app.Source  // overlaid frames → encoder
	VideoQueue *gst.Element // decode-side video branch head
	AudioQueue *gst.Element // audio branch head (nil when audio is off)
}

// CreatePipeline creates the relay pipeline. Two halves meet in Go:
//
//	uridecodebin ─video→ queue → videoconvert → capsfilter(RGBA) → appsink
//	             ─audio→ queue → audioconvert → audioresample → lamemp3enc ─┐
//	appsrc(RGBA) → queue → videoconvert → x264enc → mpegtsmux ←─────────────┘ → tcpserversink
//
// The pipeline is configured but NOT started (state remains NULL).
// uridecodebin pads are linked by OnPadAdded once the source exposes its streams.
func CreatePipeline(cfg PipelineConfig) (*PipelineElements, error) {
	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	source, err := gst.NewElement("uridecodebin")
	if err != nil {
		return nil, fmt.Errorf("failed to create uridecodebin: %w", err)
	}
	source.SetProperty("uri", cfg.SourceURI)

	// Decode half
	videoQueue, err := newElement("queue")
	if err != nil {
		return nil, err
	}
	decodeConvert, err := newElement("videoconvert")
	if err != nil {
		return nil, err
	}
	rgbaFilter, err := newElement("capsfilter")
	if err != nil {
		return nil, err
	}
	rgbaFilter.SetProperty("caps", gst.NewCapsFromString(RawVideoCaps))

	appsink, err := app.NewAppSink()
	if err != nil {
		return nil, fmt.Errorf("failed to create appsink: %w", err)
	}
	appsink.SetProperty("sync", true)     // Pace a file source at real time
	appsink.SetProperty("max-buffers", 2) // Bounded hand-off into the overlay

	// Encode half
	appsrc, err := app.NewAppSrc()
	if err != nil {
		return nil, fmt.Errorf("failed to create appsrc: %w", err)
	}
	appsrc.SetProperty("format", gst.FormatTime)
	appsrc.SetProperty("is-live", true)
	appsrc.SetProperty("do-timestamp", false) // PTS copied from the decoded frame

	encodeQueue, err := newElement("queue")
	if err != nil {
		return nil, err
	}
	encodeConvert, err := newElement("videoconvert")
	if err != nil {
		return nil, err
	}
	encoder, err := newElement("x264enc")
	if err != nil {
		return nil, err
	}
	if cfg.BitrateKbps > 0 {
		encoder.SetProperty("bitrate", uint(cfg.BitrateKbps))
	}

	mux, err := newElement("mpegtsmux")
	if err != nil {
		return nil, err
	}

	sink, err := newElement("tcpserversink")
	if err != nil {
		return nil, err
	}
	sink.SetProperty("host", cfg.Host)
	sink.SetProperty("port", cfg.Port)

	if err := pipeline.AddMany(
		source,
		videoQueue, decodeConvert, rgbaFilter, appsink.Element,
		appsrc.Element, encodeQueue, encodeConvert, encoder, mux, sink,
	); err != nil {
		return nil, fmt.Errorf("failed to add elements: %w", err)
	}

	if err := gst.ElementLinkMany(videoQueue, decodeConvert, rgbaFilter, appsink.Element); err != nil {
		return nil, fmt.Errorf("failed to link decode branch: %w", err)
	}
	if err := gst.ElementLinkMany(appsrc.Element, encodeQueue, encodeConvert, encoder, mux, sink); err != nil {
		return nil, fmt.Errorf("failed to link encode branch: %w", err)
	}

	elements := &PipelineElements{
		Pipeline:   pipeline,
		Source:     source,
		AppSink:    appsink,
		AppSrc:     appsrc,
		VideoQueue: videoQueue,
	}

	if cfg.Audio {
		audioQueue, err := buildAudioBranch(pipeline, mux)
		if err != nil {
			return nil, err
		}
		elements.AudioQueue = audioQueue
	}

	slog.Info("relay: pipeline created",
		"uri", cfg.SourceURI,
		"sink", fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port),
		"bitrate_kbps", cfg.BitrateKbps,
		"audio", cfg.Audio,
	)

	return elements, nil
}

// buildAudioBranch adds queue → audioconvert → audioresample → lamemp3enc
// feeding mux and returns the branch head.
func buildAudioBranch(pipeline *gst.Pipeline, mux *gst.Element) (*gst.Element, error) {
	queue, err := newElement("queue")
	if err != nil {
		return nil, err
	}
	convert, err := newElement("audioconvert")
	if err != nil {
		return nil, err
	}
	resample, err := newElement("audioresample")
	if err != nil {
		return nil, err
	}
	encoder, err := newElement("lamemp3enc")
	if err != nil {
		return nil, err
	}

	if err := pipeline.AddMany(queue, convert, resample, encoder); err != nil {
		return nil, fmt.Errorf("failed to add audio branch: %w", err)
	}
	if err := gst.ElementLinkMany(queue, convert, resample, encoder, mux); err != nil {
		return nil, fmt.Errorf("failed to link audio branch: %w", err)
	}
	return queue, nil
}

func newElement(factory string) (*gst.Element, error) {
	elem, err := gst.NewElement(factory)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", factory, err)
	}
	return elem, nil
}

// DestroyPipeline cleans up GStreamer pipeline resources
//
// Sets pipeline state to NULL and releases all resources.
// Safe to call even if pipeline is already destroyed.
func DestroyPipeline(elements *PipelineElements) error {
	if elements == nil || elements.Pipeline == nil {
		return nil
	}

	if err := elements.Pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("failed to set pipeline to NULL: %w", err)
	}

	return nil
}

// Media is the kind of stream a dynamic pad carries.
type Media int

const (
	MediaOther Media = iota
	MediaVideo
	MediaAudio
)

// String returns the media kind name.
func (m Media) String() string {
	switch m {
	case MediaVideo:
		return "video"
	case MediaAudio:
		return "audio"
	default:
		return "other"
	}
}

// MediaKind classifies a caps structure name ("video/x-raw", "audio/x-raw", ...).
func MediaKind(capsName string) Media {
	switch {
	case strings.HasPrefix(capsName, "video/"):
		return MediaVideo
	case strings.HasPrefix(capsName, "audio/"):
		return MediaAudio
	default:
		return MediaOther
	}
}

// SinkURL is the address clients such as VLC open to watch the relay.
func SinkURL(host string, port int) string {
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("tcp://%s:%d", host, port)
}
