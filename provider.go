package videotextrelay

// OverlayProvider is the control surface of the overlay engine. Every method
// is safe from any goroutine and returns without waiting for a frame.
type OverlayProvider interface {
	// SubmitText replaces the ticker text on a later frame.
	// Returns ErrTickerDisabled when the overlay has no ticker.
	SubmitText(text string) error

	// AddMessage queues a keyed message and returns its key (generated when
	// spec.Key is empty). Adding a key that is already live is ignored.
	AddMessage(spec MessageSpec) (string, error)

	// RemoveMessage queues removal of a keyed message. Unknown keys are
	// ignored when the command is applied.
	RemoveMessage(key string) error

	// UpdateMessage queues a text change for a keyed message without
	// resetting its position or loop count.
	UpdateMessage(key, text string) error

	// Messages returns a snapshot of the live keyed messages as of the last
	// rendered frame.
	Messages() []MessageInfo

	// Stats returns render-side telemetry.
	Stats() OverlayStats
}

// Compile-time interface check
var _ OverlayProvider = (*Overlay)(nil)
