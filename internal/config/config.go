package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config represents the complete relay configuration
type Config struct {
	InstanceID       string          `yaml:"instance_id" toml:"instance_id"`
	ShutdownTimeoutS int             `yaml:"shutdown_timeout_s" toml:"shutdown_timeout_s"` // Graceful shutdown timeout in seconds (default: 5)
	Source           SourceConfig    `yaml:"source" toml:"source"`
	Sink             SinkConfig      `yaml:"sink" toml:"sink"`
	Overlay          OverlayConfig   `yaml:"overlay" toml:"overlay"`
	Control          ControlConfig   `yaml:"control" toml:"control"`
	Reconnect        ReconnectConfig `yaml:"reconnect" toml:"reconnect"`
}

// SourceConfig describes the input stream
type SourceConfig struct {
	URI   string `yaml:"uri" toml:"uri"`     // file://, rtsp://, http:// (anything uridecodebin opens)
	Audio bool   `yaml:"audio" toml:"audio"` // relay the audio track (MP3 in the transport stream)
}

// SinkConfig describes the TCP output
type SinkConfig struct {
	Host        string `yaml:"host" toml:"host"`                 // default: 127.0.0.1
	Port        int    `yaml:"port" toml:"port"`                 // default: 10000
	BitrateKbps int    `yaml:"bitrate_kbps" toml:"bitrate_kbps"` // 0 keeps the encoder default
}

// OverlayConfig contains text rendering settings
type OverlayConfig struct {
	FontSize         float64      `yaml:"font_size" toml:"font_size"`                   // default: 35
	ScrollDurationS  float64      `yaml:"scroll_duration_s" toml:"scroll_duration_s"`   // seconds per traversal (default: 12)
	ShadowOffset     *float64     `yaml:"shadow_offset" toml:"shadow_offset"`           // default: 3, 0 draws no visible shadow
	TextColor        string       `yaml:"text_color" toml:"text_color"`                 // #rrggbb[aa] (default: #ffff00)
	ShadowColor      string       `yaml:"shadow_color" toml:"shadow_color"`             // #rrggbb[aa] (default: #000000)
	QueueCapacity    int          `yaml:"queue_capacity" toml:"queue_capacity"`         // default: 64
	ResizePolicy     string       `yaml:"resize_policy" toml:"resize_policy"`           // keep, restart
	StallThresholdMS int          `yaml:"stall_threshold_ms" toml:"stall_threshold_ms"` // default: 250
	Ticker           TickerConfig `yaml:"ticker" toml:"ticker"`
}

// TickerConfig contains the single-blurb settings
type TickerConfig struct {
	Enabled *bool   `yaml:"enabled" toml:"enabled"` // default: true
	Text    string  `yaml:"text" toml:"text"`       // initial text
	YRatio  float64 `yaml:"y_ratio" toml:"y_ratio"` // baseline as a fraction of the height (default: 2/3)
}

// ControlConfig contains the remote control surfaces
type ControlConfig struct {
	HTTPAddr string     `yaml:"http_addr" toml:"http_addr"` // empty disables the JSON-RPC server
	MQTT     MQTTConfig `yaml:"mqtt" toml:"mqtt"`
}

// MQTTConfig contains MQTT broker settings (empty broker disables MQTT)
type MQTTConfig struct {
	Broker   string     `yaml:"broker" toml:"broker"`
	ClientID string     `yaml:"client_id" toml:"client_id"`
	Topics   MQTTTopics `yaml:"topics" toml:"topics"`
	QoS      byte       `yaml:"qos" toml:"qos"`
}

// MQTTTopics contains topic names
type MQTTTopics struct {
	Control string `yaml:"control" toml:"control"`
	Status  string `yaml:"status" toml:"status"`
}

// ReconnectConfig contains pipeline rebuild settings
type ReconnectConfig struct {
	MaxRetries     int `yaml:"max_retries" toml:"max_retries"`           // default: 5
	InitialDelayMS int `yaml:"initial_delay_ms" toml:"initial_delay_ms"` // default: 1000
	MaxDelayMS     int `yaml:"max_delay_ms" toml:"max_delay_ms"`         // default: 30000
}

// Load reads and parses a YAML or TOML configuration file, chosen by
// extension (.yaml, .yml, .toml).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Parse decodes data in the format named by ext without validating it.
func Parse(data []byte, ext string) (*Config, error) {
	var cfg Config

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q (want .yaml, .yml or .toml)", ext)
	}

	return &cfg, nil
}

// Default returns a validated configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	if err := Validate(cfg); err != nil {
		panic(fmt.Sprintf("config: defaults do not validate: %v", err))
	}
	return cfg
}
