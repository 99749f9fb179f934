package relay

import (
	"errors"
	"strings"

	"github.com/tinyzimmer/go-gst/gst"
)

// ErrEndOfStream is returned by the bus monitor when the source is exhausted.
// It ends the relay for good: reconnecting would replay a finished source.
var ErrEndOfStream = errors.New("relay: end of stream")

// ErrorCategory represents the classification of GStreamer errors for telemetry
type ErrorCategory int

const (
	// ErrCategoryNetwork indicates network-related failures (connection, timeout, DNS, bind)
	ErrCategoryNetwork ErrorCategory = iota
	// ErrCategoryCodec indicates codec/stream failures (decode errors, format issues)
	ErrCategoryCodec
	// ErrCategoryAuth indicates authentication/authorization failures
	ErrCategoryAuth
	// ErrCategoryUnknown indicates unclassified errors
	ErrCategoryUnknown
)

// String returns a human-readable string representation of the error category
func (e ErrorCategory) String() string {
	switch e {
	case ErrCategoryNetwork:
		return "network"
	case ErrCategoryCodec:
		return "codec"
	case ErrCategoryAuth:
		return "auth"
	default:
		return "unknown"
	}
}

// ClassifyGStreamerError categorizes a bus error for telemetry.
//
// go-gst's GError does not expose the error domain, so classification relies
// on message heuristics (see ClassifyMessage).
func ClassifyGStreamerError(gerr *gst.GError) ErrorCategory {
	if gerr == nil {
		return ErrCategoryUnknown
	}
	return ClassifyMessage(gerr.Error(), gerr.DebugString())
}

// ClassifyMessage categorizes an error from its message and debug strings.
//
// Priority: auth (most specific) → codec → network → unknown.
func ClassifyMessage(message, debug string) ErrorCategory {
	combined := strings.ToLower(message + " " + debug)

	switch {
	case containsAny(combined, authKeywords):
		return ErrCategoryAuth
	case containsAny(combined, codecKeywords):
		return ErrCategoryCodec
	case containsAny(combined, networkKeywords):
		return ErrCategoryNetwork
	default:
		return ErrCategoryUnknown
	}
}

var authKeywords = []string{
	"unauthorized",
	"401",
	"403",
	"forbidden",
	"authentication",
	"credentials",
	"password",
	"permission denied",
}

var codecKeywords = []string{
	"codec",
	"decode",
	"encode",
	"format",
	"negotiation",
	"not negotiated",
	"not-negotiated",
	"caps",
	"h264",
	"x264",
	"mp3",
	"no decoder",
	"missing plugin",
	"demux",
}

var networkKeywords = []string{
	"connection",
	"timeout",
	"unreachable",
	"network",
	"dns",
	"resolve",
	"socket",
	"tcp",
	"udp",
	"http",
	"rtsp",
	"bind",
	"address already in use",
	"not found",
	"could not open",
	"could not connect",
	"failed to connect",
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
