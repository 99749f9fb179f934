package videotextrelay

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/zhenyouluo/video-text-relay/internal/clock"
	"github.com/zhenyouluo/video-text-relay/internal/inbox"
	"github.com/zhenyouluo/video-text-relay/internal/scroll"
)

// ControllerConfig configures the keyed multi-message overlay.
type ControllerConfig struct {
	// ScrollDuration applies to messages that leave it unset (DefaultScrollDuration if 0)
	ScrollDuration float64
	// Size applies to messages that leave it unset (DefaultFontSize if <= 0)
	Size float64
	// ResizePolicy decides what geometry changes do to scrolling positions
	ResizePolicy ResizePolicy
	// QueueCapacity bounds pending remote commands (inbox.DefaultCapacity if <= 0)
	QueueCapacity int
}

type commandKind int

const (
	commandAdd commandKind = iota
	commandRemove
	commandUpdate
)

func (k commandKind) String() string {
	switch k {
	case commandAdd:
		return "add"
	case commandRemove:
		return "remove"
	case commandUpdate:
		return "update"
	default:
		return "unknown"
	}
}

// command is a registry mutation requested from the control context.
type command struct {
	kind commandKind
	spec MessageSpec // add
	key  string      // remove, update
	text string      // update
}

// Controller owns the keyed set of scrolling messages.
//
// The registry lives on the render context. Remote callers never touch it:
// AddMessage, RemoveMessage and UpdateMessage enqueue commands that OnFrame
// applies, at most one per frame. Add, Remove and Update mutate the registry
// directly and must only be called from the render context.
type Controller struct {
	measurer Measurer
	cfg      ControllerConfig

	registry *scroll.Registry
	clock    clock.FrameClock
	commands *inbox.Inbox[command]

	width, height float64
	valid         bool

	retired  atomic.Uint64
	snapshot atomic.Pointer[[]MessageInfo]
}

// NewController creates an empty controller.
func NewController(cfg ControllerConfig, m Measurer) (*Controller, error) {
	if m == nil {
		return nil, fmt.Errorf("overlay: controller needs a text measurer")
	}
	if cfg.ScrollDuration == 0 {
		cfg.ScrollDuration = DefaultScrollDuration
	}
	if cfg.ScrollDuration < 0 {
		return nil, fmt.Errorf("overlay: default %w (got %v)", ErrInvalidScrollDuration, cfg.ScrollDuration)
	}
	if cfg.Size <= 0 {
		cfg.Size = DefaultFontSize
	}

	c := &Controller{
		measurer: m,
		cfg:      cfg,
		registry: scroll.NewRegistry(),
		commands: inbox.New[command](cfg.QueueCapacity),
	}
	c.snapshot.Store(&[]MessageInfo{})
	return c, nil
}

// AddMessage queues a new message. Safe from any goroutine.
//
// Returns the message key (generated when spec.Key is empty). A key that is
// already live is ignored when the command is applied.
func (c *Controller) AddMessage(spec MessageSpec) (string, error) {
	if spec.Text == "" {
		return "", ErrEmptyText
	}
	if spec.ScrollDuration < 0 {
		return "", fmt.Errorf("overlay: %w (got %v)", ErrInvalidScrollDuration, spec.ScrollDuration)
	}
	if spec.Key == "" {
		spec.Key = uuid.NewString()
	}
	if spec.Y != nil {
		// the render context reads it later
		y := *spec.Y
		spec.Y = &y
	}

	c.enqueue(command{kind: commandAdd, spec: spec, key: spec.Key})
	return spec.Key, nil
}

// RemoveMessage queues removal of key. Removing an absent key is not an error.
func (c *Controller) RemoveMessage(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	c.enqueue(command{kind: commandRemove, key: key})
	return nil
}

// UpdateMessage queues a text replacement for key.
func (c *Controller) UpdateMessage(key, text string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if text == "" {
		return ErrEmptyText
	}
	c.enqueue(command{kind: commandUpdate, key: key, text: text})
	return nil
}

func (c *Controller) enqueue(cmd command) {
	if dropped := c.commands.Push(cmd); dropped {
		slog.Warn("overlay: command queue full, dropped oldest command",
			"capacity", c.commands.Stats().Capacity,
			"queued", cmd.kind.String(),
			"key", cmd.key,
		)
	}
}

// Add registers a message immediately. Render context only.
//
// Returns false without error when the key is already live.
func (c *Controller) Add(spec MessageSpec) (bool, error) {
	if spec.Key == "" {
		return false, ErrEmptyKey
	}

	s := c.resolve(spec)
	added, err := c.registry.Add(s, c.width, c.height)
	if err != nil {
		return false, fmt.Errorf("overlay: add %q: %w", spec.Key, err)
	}

	if added {
		slog.Info("overlay: message added",
			"key", s.Key,
			"loops", s.Loops,
			"y", s.Y,
			"scroll_duration", s.ScrollDuration,
		)
	} else {
		slog.Debug("overlay: message key already live, add ignored", "key", s.Key)
	}
	return added, nil
}

// Remove deletes a message immediately. Render context only.
func (c *Controller) Remove(key string) bool {
	removed := c.registry.Remove(key)
	if removed {
		slog.Info("overlay: message removed", "key", key)
	}
	return removed
}

// Update replaces a live message's text immediately. Render context only.
func (c *Controller) Update(key, text string) bool {
	e, ok := c.registry.Get(key)
	if !ok {
		slog.Debug("overlay: update for unknown message ignored", "key", key)
		return false
	}
	e.SetText(text)
	return true
}

// resolve fills unset fields from the controller defaults and frame geometry.
func (c *Controller) resolve(spec MessageSpec) scroll.Spec {
	s := scroll.Spec{
		Key:            spec.Key,
		Text:           spec.Text,
		Loops:          spec.Loops,
		Size:           spec.Size,
		Y:              c.height / 2,
		ScrollDuration: spec.ScrollDuration,
	}
	if spec.Y != nil {
		s.Y = *spec.Y
	}
	if s.Size <= 0 {
		s.Size = c.cfg.Size
	}
	if s.ScrollDuration == 0 {
		s.ScrollDuration = c.cfg.ScrollDuration
	}
	return s
}

// OnGeometry applies new frame dimensions to every message and re-primes the
// clock. The first geometry always starts messages at the right edge.
func (c *Controller) OnGeometry(width, height int) {
	policy := c.cfg.ResizePolicy
	if !c.valid {
		policy = ResizeRestart
	}

	c.width, c.height = float64(width), float64(height)
	c.registry.ResizeAll(c.width, c.height, policy)
	c.clock.Reset()
	c.valid = true

	slog.Debug("overlay: controller geometry",
		"width", width,
		"height", height,
		"policy", policy.String(),
		"messages", c.registry.Len(),
	)
}

// OnFrame advances every message to timestamp (ns), prunes the ones that
// finished their loops and draws the rest on canvas (nil skips drawing).
// Does nothing until OnGeometry has been called.
func (c *Controller) OnFrame(timestamp uint64, canvas Canvas, style Style) {
	if !c.valid {
		return
	}

	dt := c.clock.Delta(timestamp)

	if cmd, ok := c.commands.TryPop(); ok {
		c.apply(cmd)
	}

	for _, key := range c.registry.AdvanceAll(dt, c.measurer) {
		c.retired.Add(1)
		slog.Info("overlay: message retired", "key", key)
	}

	if canvas != nil {
		c.registry.RenderAll(canvas, style)
	}

	c.publish()
}

func (c *Controller) apply(cmd command) {
	switch cmd.kind {
	case commandAdd:
		if _, err := c.Add(cmd.spec); err != nil {
			slog.Warn("overlay: queued add rejected", "key", cmd.key, "error", err)
		}
	case commandRemove:
		c.Remove(cmd.key)
	case commandUpdate:
		c.Update(cmd.key, cmd.text)
	}
}

func (c *Controller) publish() {
	infos := make([]MessageInfo, 0, c.registry.Len())
	c.registry.Each(func(e *scroll.Entity) {
		infos = append(infos, MessageInfo{
			Key:            e.Key(),
			Text:           e.Text(),
			X:              e.X(),
			Y:              e.Y(),
			Loop:           e.Loop(),
			Loops:          e.Loops(),
			ScrollDuration: e.Duration(),
		})
	})
	c.snapshot.Store(&infos)
}

// Messages returns the live messages as of the last rendered frame.
// Safe from any goroutine.
func (c *Controller) Messages() []MessageInfo {
	infos := *c.snapshot.Load()
	out := make([]MessageInfo, len(infos))
	copy(out, infos)
	return out
}

// Has reports whether key is live. Render context only.
func (c *Controller) Has(key string) bool { return c.registry.Has(key) }

// Len returns the number of live messages. Render context only.
func (c *Controller) Len() int { return c.registry.Len() }

// Retired returns how many messages finished their loops.
func (c *Controller) Retired() uint64 { return c.retired.Load() }

// QueueStats returns the command inbox counters.
func (c *Controller) QueueStats() QueueStats { return queueStats(c.commands.Stats()) }
