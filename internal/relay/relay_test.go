package relay

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestClassifyMessage(t *testing.T) {
	tests := []struct {
		name    string
		message string
		debug   string
		want    ErrorCategory
	}{
		{"auth wins over network", "Unauthorized", "http status 401 from server", ErrCategoryAuth},
		{"codec", "Internal data stream error.", "streaming stopped, reason not-negotiated", ErrCategoryCodec},
		{"missing plugin", "Your GStreamer installation is missing a plug-in.", "no decoder available", ErrCategoryCodec},
		{"bind", "Could not bind socket", "Address already in use", ErrCategoryNetwork},
		{"file not found", "Resource not found.", "gstfilesrc.c: No such file", ErrCategoryNetwork},
		{"unknown", "something odd", "", ErrCategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyMessage(tt.message, tt.debug); got != tt.want {
				t.Errorf("ClassifyMessage() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClassifyGStreamerError_Nil(t *testing.T) {
	if got := ClassifyGStreamerError(nil); got != ErrCategoryUnknown {
		t.Errorf("ClassifyGStreamerError(nil) = %s, want unknown", got)
	}
}

func TestErrorCounters_Count(t *testing.T) {
	var network, codec, auth, unknown uint64
	c := &ErrorCounters{Network: &network, Codec: &codec, Auth: &auth, Unknown: &unknown}

	c.Count(ErrCategoryNetwork)
	c.Count(ErrCategoryNetwork)
	c.Count(ErrCategoryCodec)
	c.Count(ErrCategoryAuth)
	c.Count(ErrCategoryUnknown)

	if network != 2 || codec != 1 || auth != 1 || unknown != 1 {
		t.Errorf("counters = net %d codec %d auth %d unknown %d", network, codec, auth, unknown)
	}
}

func TestCalculateBackoff(t *testing.T) {
	cfg := DefaultReconnectConfig()

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1 * time.Second},
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second},
		{70, 30 * time.Second},
	}

	for _, tt := range tests {
		if got := calculateBackoff(tt.attempt, cfg); got != tt.want {
			t.Errorf("calculateBackoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}

	t.Logf("✅ Backoff schedule: 1s, 2s, 4s, 8s, 16s, capped at 30s")
}

func fastReconnect(maxRetries int) ReconnectConfig {
	return ReconnectConfig{
		MaxRetries:    maxRetries,
		RetryDelay:    time.Millisecond,
		MaxRetryDelay: 5 * time.Millisecond,
	}
}

func TestRunWithReconnect(t *testing.T) {
	t.Run("RetriesUntilSuccess", func(t *testing.T) {
		var reconnects uint32
		state := &ReconnectState{Reconnects: &reconnects}

		calls := 0
		err := RunWithReconnect(context.Background(), func(ctx context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("pipeline error [network]: connection refused")
			}
			return nil
		}, fastReconnect(5), state)

		if err != nil {
			t.Fatalf("RunWithReconnect() error = %v", err)
		}
		if calls != 3 {
			t.Errorf("calls = %d, want 3", calls)
		}
		if atomic.LoadUint32(&reconnects) != 2 {
			t.Errorf("reconnects = %d, want 2", reconnects)
		}
		if state.CurrentRetries != 0 {
			t.Errorf("CurrentRetries = %d after success, want 0", state.CurrentRetries)
		}
	})

	t.Run("EndOfStreamIsTerminal", func(t *testing.T) {
		var reconnects uint32
		state := &ReconnectState{Reconnects: &reconnects}

		calls := 0
		err := RunWithReconnect(context.Background(), func(ctx context.Context) error {
			calls++
			return ErrEndOfStream
		}, fastReconnect(5), state)

		if !errors.Is(err, ErrEndOfStream) {
			t.Fatalf("RunWithReconnect() error = %v, want ErrEndOfStream", err)
		}
		if calls != 1 || reconnects != 0 {
			t.Errorf("calls = %d, reconnects = %d; want 1, 0", calls, reconnects)
		}
	})

	t.Run("MaxRetriesExceeded", func(t *testing.T) {
		var reconnects uint32
		state := &ReconnectState{Reconnects: &reconnects}
		cause := errors.New("pipeline error [codec]: not negotiated")

		calls := 0
		err := RunWithReconnect(context.Background(), func(ctx context.Context) error {
			calls++
			return cause
		}, fastReconnect(2), state)

		if !errors.Is(err, cause) {
			t.Fatalf("RunWithReconnect() error = %v, want wrapped cause", err)
		}
		if calls != 3 {
			t.Errorf("calls = %d, want 3 (initial + 2 retries)", calls)
		}
	})

	t.Run("CancelledDuringBackoff", func(t *testing.T) {
		var reconnects uint32
		state := &ReconnectState{Reconnects: &reconnects}
		ctx, cancel := context.WithCancel(context.Background())

		cfg := ReconnectConfig{MaxRetries: 5, RetryDelay: time.Hour, MaxRetryDelay: time.Hour}
		done := make(chan error, 1)
		go func() {
			done <- RunWithReconnect(ctx, func(ctx context.Context) error {
				return errors.New("boom")
			}, cfg, state)
		}()

		time.Sleep(20 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("RunWithReconnect() error = %v, want context.Canceled", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("RunWithReconnect did not return after cancel")
		}
	})
}

func TestResetReconnectState(t *testing.T) {
	var reconnects uint32 = 4
	state := &ReconnectState{CurrentRetries: 3, Reconnects: &reconnects}

	ResetReconnectState(state)

	if state.CurrentRetries != 0 {
		t.Errorf("CurrentRetries = %d, want 0", state.CurrentRetries)
	}
	if reconnects != 4 {
		t.Errorf("total reconnects changed to %d", reconnects)
	}
}

func TestMediaKind(t *testing.T) {
	tests := map[string]Media{
		"video/x-raw":     MediaVideo,
		"video/x-h264":    MediaVideo,
		"audio/x-raw":     MediaAudio,
		"audio/mpeg":      MediaAudio,
		"text/x-raw":      MediaOther,
		"application/x-1": MediaOther,
		"":                MediaOther,
	}
	for caps, want := range tests {
		if got := MediaKind(caps); got != want {
			t.Errorf("MediaKind(%q) = %s, want %s", caps, got, want)
		}
	}
}

func TestSinkURL(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"", 8888, "tcp://127.0.0.1:8888"},
		{"0.0.0.0", 8888, "tcp://127.0.0.1:8888"},
		{"192.168.1.20", 9000, "tcp://192.168.1.20:9000"},
	}
	for _, tt := range tests {
		if got := SinkURL(tt.host, tt.port); got != tt.want {
			t.Errorf("SinkURL(%q, %d) = %q, want %q", tt.host, tt.port, got, tt.want)
		}
	}
}

func TestFrameTimestamp(t *testing.T) {
	if got := FrameTimestamp(40*time.Millisecond, 5*time.Second); got != uint64(40*time.Millisecond) {
		t.Errorf("FrameTimestamp with PTS = %d", got)
	}
	if got := FrameTimestamp(-1, 5*time.Second); got != uint64(5*time.Second) {
		t.Errorf("FrameTimestamp without PTS = %d, want wall time", got)
	}
	if got := FrameTimestamp(-1, -time.Second); got != 0 {
		t.Errorf("FrameTimestamp with negative wall time = %d, want 0", got)
	}
}
