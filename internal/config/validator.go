package config

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	videotextrelay "github.com/zhenyouluo/video-text-relay"
)

const (
	// DefaultSinkHost is the address the relay listens on unless configured.
	DefaultSinkHost = "127.0.0.1"
	// DefaultSinkPort is the port MPEG-TS clients connect to.
	DefaultSinkPort = 10000
)

var instanceIDPattern = regexp.MustCompile(`^[a-z0-9\-]+$`)

// Validate checks if the configuration is valid and fills in defaults
func Validate(cfg *Config) error {
	// Validate instance_id
	if cfg.InstanceID == "" {
		cfg.InstanceID = "relay-" + uuid.NewString()[:8]
	}
	if !instanceIDPattern.MatchString(cfg.InstanceID) {
		return fmt.Errorf("instance_id must match pattern [a-z0-9-]+")
	}

	if cfg.ShutdownTimeoutS <= 0 {
		cfg.ShutdownTimeoutS = 5
	}

	// Validate sink
	if cfg.Sink.Host == "" {
		cfg.Sink.Host = DefaultSinkHost
	}
	if cfg.Sink.Port == 0 {
		cfg.Sink.Port = DefaultSinkPort
	}
	if cfg.Sink.Port < 1 || cfg.Sink.Port > 65535 {
		return fmt.Errorf("sink.port must be 1-65535, got %d", cfg.Sink.Port)
	}
	if cfg.Sink.BitrateKbps < 0 {
		return fmt.Errorf("sink.bitrate_kbps must be >= 0")
	}

	if err := validateOverlay(&cfg.Overlay); err != nil {
		return fmt.Errorf("overlay: %w", err)
	}

	// Set default topics if not provided
	if cfg.Control.MQTT.Broker != "" {
		if cfg.Control.MQTT.ClientID == "" {
			cfg.Control.MQTT.ClientID = cfg.InstanceID
		}
		if cfg.Control.MQTT.Topics.Control == "" {
			cfg.Control.MQTT.Topics.Control = fmt.Sprintf("relay/control/%s", cfg.InstanceID)
		}
		if cfg.Control.MQTT.Topics.Status == "" {
			cfg.Control.MQTT.Topics.Status = fmt.Sprintf("relay/status/%s", cfg.InstanceID)
		}
		if cfg.Control.MQTT.QoS > 2 {
			return fmt.Errorf("control.mqtt.qos must be 0, 1 or 2")
		}
	}

	// Reconnect defaults
	if cfg.Reconnect.MaxRetries <= 0 {
		cfg.Reconnect.MaxRetries = 5
	}
	if cfg.Reconnect.InitialDelayMS <= 0 {
		cfg.Reconnect.InitialDelayMS = 1000
	}
	if cfg.Reconnect.MaxDelayMS <= 0 {
		cfg.Reconnect.MaxDelayMS = 30000
	}
	if cfg.Reconnect.MaxDelayMS < cfg.Reconnect.InitialDelayMS {
		return fmt.Errorf("reconnect.max_delay_ms must be >= initial_delay_ms")
	}

	return nil
}

func validateOverlay(o *OverlayConfig) error {
	if o.FontSize < 0 {
		return fmt.Errorf("font_size must be >= 0")
	}
	if o.FontSize == 0 {
		o.FontSize = videotextrelay.DefaultFontSize
	}

	if o.ScrollDurationS < 0 {
		return fmt.Errorf("%w (got %v)", videotextrelay.ErrInvalidScrollDuration, o.ScrollDurationS)
	}
	if o.ScrollDurationS == 0 {
		o.ScrollDurationS = videotextrelay.DefaultScrollDuration
	}

	if o.ShadowOffset == nil {
		offset := videotextrelay.DefaultStyle().ShadowOffset
		o.ShadowOffset = &offset
	}
	if o.TextColor == "" {
		o.TextColor = "#ffff00"
	}
	if o.ShadowColor == "" {
		o.ShadowColor = "#000000"
	}
	if _, err := videotextrelay.ParseColor(o.TextColor); err != nil {
		return fmt.Errorf("text_color: %w", err)
	}
	if _, err := videotextrelay.ParseColor(o.ShadowColor); err != nil {
		return fmt.Errorf("shadow_color: %w", err)
	}

	if o.QueueCapacity < 0 {
		return fmt.Errorf("queue_capacity must be >= 0")
	}

	if o.ResizePolicy == "" {
		o.ResizePolicy = "keep"
	}
	if _, ok := videotextrelay.ParseResizePolicy(o.ResizePolicy); !ok {
		return fmt.Errorf("resize_policy must be 'keep' or 'restart', got %q", o.ResizePolicy)
	}

	if o.StallThresholdMS < 0 {
		return fmt.Errorf("stall_threshold_ms must be >= 0")
	}
	if o.StallThresholdMS == 0 {
		o.StallThresholdMS = int(videotextrelay.DefaultStallThreshold / time.Millisecond)
	}

	if o.Ticker.Enabled == nil {
		enabled := true
		o.Ticker.Enabled = &enabled
	}
	if o.Ticker.Text == "" {
		o.Ticker.Text = videotextrelay.DefaultTickerText
	}
	if o.Ticker.YRatio < 0 || o.Ticker.YRatio > 1 {
		return fmt.Errorf("ticker.y_ratio must be within [0, 1], got %v", o.Ticker.YRatio)
	}
	if o.Ticker.YRatio == 0 {
		o.Ticker.YRatio = videotextrelay.DefaultTickerYRatio
	}

	return nil
}

// OverlayEngineConfig converts the overlay section into engine settings.
// Call after Validate.
func (c *Config) OverlayEngineConfig() (videotextrelay.OverlayConfig, error) {
	o := c.Overlay

	text, err := videotextrelay.ParseColor(o.TextColor)
	if err != nil {
		return videotextrelay.OverlayConfig{}, err
	}
	shadow, err := videotextrelay.ParseColor(o.ShadowColor)
	if err != nil {
		return videotextrelay.OverlayConfig{}, err
	}
	policy, _ := videotextrelay.ParseResizePolicy(o.ResizePolicy)

	return videotextrelay.OverlayConfig{
		TickerEnabled: o.Ticker.Enabled == nil || *o.Ticker.Enabled,
		Ticker: videotextrelay.TickerConfig{
			Text:           o.Ticker.Text,
			YRatio:         o.Ticker.YRatio,
			Size:           o.FontSize,
			ScrollDuration: o.ScrollDurationS,
			QueueCapacity:  o.QueueCapacity,
		},
		Controller: videotextrelay.ControllerConfig{
			ScrollDuration: o.ScrollDurationS,
			Size:           o.FontSize,
			ResizePolicy:   policy,
			QueueCapacity:  o.QueueCapacity,
		},
		Style: videotextrelay.Style{
			Text:         text,
			Shadow:       shadow,
			ShadowOffset: shadowOffset(o.ShadowOffset),
		},
		StallThreshold: time.Duration(o.StallThresholdMS) * time.Millisecond,
	}, nil
}

func shadowOffset(p *float64) float64 {
	if p == nil {
		return videotextrelay.DefaultStyle().ShadowOffset
	}
	return *p
}
