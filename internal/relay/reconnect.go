package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// ReconnectConfig contains configuration for exponential backoff reconnection
type ReconnectConfig struct {
	MaxRetries    int           // Maximum number of reconnection attempts (default: 5)
	RetryDelay    time.Duration // Initial retry delay (default: 1 second)
	MaxRetryDelay time.Duration // Maximum retry delay cap (default: 30 seconds)
}

// DefaultReconnectConfig returns default reconnection configuration
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		MaxRetries:    5,
		RetryDelay:    1 * time.Second,
		MaxRetryDelay: 30 * time.Second,
	}
}

// ReconnectState tracks the current state of reconnection attempts
type ReconnectState struct {
	CurrentRetries int
	Reconnects     *uint32 // Atomic counter for total reconnection attempts
}

// ConnectFunc builds and runs one pipeline generation. It blocks until the
// pipeline fails (error), ends (ErrEndOfStream) or ctx is cancelled (nil).
type ConnectFunc func(ctx context.Context) error

// RunWithReconnect runs connectFn, rebuilding after failures with exponential
// backoff.
//
// Backoff schedule with defaults: 1s, 2s, 4s, 8s, 16s, then stop.
//
// Returns nil when connectFn returns nil, ErrEndOfStream (wrapped) when the
// source ended, ctx.Err() when cancelled, or an error once retries are
// exhausted.
func RunWithReconnect(
	ctx context.Context,
	connectFn ConnectFunc,
	cfg ReconnectConfig,
	state *ReconnectState,
) error {
	for {
		select {
		case <-ctx.Done():
			slog.Info("relay: context cancelled, stopping reconnection")
			return ctx.Err()
		default:
		}

		err := connectFn(ctx)
		if err == nil {
			state.CurrentRetries = 0
			return nil
		}
		if errors.Is(err, ErrEndOfStream) {
			return err
		}

		slog.Error("relay: pipeline failed", "error", err)

		state.CurrentRetries++
		atomic.AddUint32(state.Reconnects, 1)

		if state.CurrentRetries > cfg.MaxRetries {
			return fmt.Errorf("relay: max retries exceeded (%d attempts): %w", cfg.MaxRetries, err)
		}

		delay := calculateBackoff(state.CurrentRetries, cfg)

		slog.Warn("relay: rebuilding pipeline",
			"attempt", state.CurrentRetries,
			"max_retries", cfg.MaxRetries,
			"delay", delay,
		)

		select {
		case <-time.After(delay):
			continue
		case <-ctx.Done():
			slog.Info("relay: context cancelled during backoff")
			return ctx.Err()
		}
	}
}

// calculateBackoff returns retryDelay * 2^(attempt-1), capped at maxRetryDelay.
func calculateBackoff(attempt int, cfg ReconnectConfig) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := cfg.RetryDelay * time.Duration(1<<uint(attempt-1))

	if delay > cfg.MaxRetryDelay || delay <= 0 {
		delay = cfg.MaxRetryDelay
	}

	return delay
}

// ResetReconnectState resets the retry counter once a pipeline is playing.
func ResetReconnectState(state *ReconnectState) {
	state.CurrentRetries = 0
	slog.Debug("relay: reconnect state reset")
}
