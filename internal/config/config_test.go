package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	videotextrelay "github.com/zhenyouluo/video-text-relay"
)

const sampleYAML = `
instance_id: lobby-screen
source:
  uri: file:///media/loop.mp4
  audio: true
sink:
  port: 9000
overlay:
  font_size: 48
  scroll_duration_s: 8
  text_color: "#ff0000"
  resize_policy: restart
  ticker:
    text: "Welcome"
control:
  http_addr: ":8080"
  mqtt:
    broker: tcp://localhost:1883
reconnect:
  max_retries: 3
`

const sampleTOML = `
instance_id = "lobby-screen"

[source]
uri = "file:///media/loop.mp4"

[sink]
host = "0.0.0.0"
port = 9000

[overlay]
font_size = 48.0
queue_capacity = 16

[overlay.ticker]
enabled = false
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_YAML(t *testing.T) {
	cfg, err := Load(writeConfig(t, "relay.yaml", sampleYAML))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.InstanceID != "lobby-screen" || cfg.Source.URI != "file:///media/loop.mp4" || !cfg.Source.Audio {
		t.Errorf("unexpected identity/source: %+v", cfg)
	}
	if cfg.Sink.Host != "127.0.0.1" || cfg.Sink.Port != 9000 {
		t.Errorf("sink = %+v", cfg.Sink)
	}
	if cfg.Control.MQTT.Topics.Control != "relay/control/lobby-screen" {
		t.Errorf("control topic = %q", cfg.Control.MQTT.Topics.Control)
	}
	if cfg.Control.MQTT.Topics.Status != "relay/status/lobby-screen" {
		t.Errorf("status topic = %q", cfg.Control.MQTT.Topics.Status)
	}
	if cfg.Control.MQTT.ClientID != "lobby-screen" {
		t.Errorf("client id = %q", cfg.Control.MQTT.ClientID)
	}
	if cfg.Reconnect.MaxRetries != 3 || cfg.Reconnect.InitialDelayMS != 1000 {
		t.Errorf("reconnect = %+v", cfg.Reconnect)
	}

	oc, err := cfg.OverlayEngineConfig()
	if err != nil {
		t.Fatalf("OverlayEngineConfig() error = %v", err)
	}
	if !oc.TickerEnabled || oc.Ticker.Text != "Welcome" {
		t.Errorf("ticker = enabled %v text %q", oc.TickerEnabled, oc.Ticker.Text)
	}
	if oc.Controller.ResizePolicy != videotextrelay.ResizeRestart {
		t.Errorf("resize policy = %v", oc.Controller.ResizePolicy)
	}
	if oc.Controller.ScrollDuration != 8 || oc.Controller.Size != 48 {
		t.Errorf("controller = %+v", oc.Controller)
	}
	if oc.Style.Text.R != 255 || oc.Style.Text.G != 0 || oc.Style.ShadowOffset != 3 {
		t.Errorf("style = %+v", oc.Style)
	}

	if cfg.Reconnect.MaxDelayMS != 30000 {
		t.Errorf("reconnect max delay = %d", cfg.Reconnect.MaxDelayMS)
	}

	t.Logf("✅ YAML config loaded with defaults applied")
}

func TestLoad_TOML(t *testing.T) {
	cfg, err := Load(writeConfig(t, "relay.toml", sampleTOML))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Sink.Host != "0.0.0.0" || cfg.Overlay.QueueCapacity != 16 {
		t.Errorf("parsed = %+v", cfg)
	}
	if cfg.Overlay.ScrollDurationS != videotextrelay.DefaultScrollDuration {
		t.Errorf("scroll duration = %v, want default", cfg.Overlay.ScrollDurationS)
	}

	oc, err := cfg.OverlayEngineConfig()
	if err != nil {
		t.Fatal(err)
	}
	if oc.TickerEnabled {
		t.Error("ticker enabled despite enabled = false")
	}
	if cfg.Control.MQTT.Topics.Control != "" {
		t.Errorf("MQTT topics defaulted without a broker: %+v", cfg.Control.MQTT.Topics)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Run("MissingFile", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Error("Load() of missing file succeeded")
		}
	})

	t.Run("UnknownExtension", func(t *testing.T) {
		_, err := Load(writeConfig(t, "relay.json", "{}"))
		if err == nil || !strings.Contains(err.Error(), "unsupported config format") {
			t.Errorf("Load() error = %v", err)
		}
	})

	t.Run("Malformed", func(t *testing.T) {
		if _, err := Load(writeConfig(t, "relay.yaml", "source: [unclosed")); err == nil {
			t.Error("Load() of malformed YAML succeeded")
		}
	})
}

func TestLoad_ShadowOffset(t *testing.T) {
	t.Run("ExplicitZeroKept", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, "relay.yaml", "overlay:\n  shadow_offset: 0\n"))
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		oc, err := cfg.OverlayEngineConfig()
		if err != nil {
			t.Fatal(err)
		}
		if oc.Style.ShadowOffset != 0 {
			t.Errorf("ShadowOffset = %v, want explicit 0 kept", oc.Style.ShadowOffset)
		}
	})

	t.Run("OmittedDefaults", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, "relay.yaml", "overlay:\n  font_size: 20\n"))
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		oc, err := cfg.OverlayEngineConfig()
		if err != nil {
			t.Fatal(err)
		}
		if want := videotextrelay.DefaultStyle().ShadowOffset; oc.Style.ShadowOffset != want {
			t.Errorf("ShadowOffset = %v, want default %v", oc.Style.ShadowOffset, want)
		}
	})

	t.Log("✅ shadow_offset: 0 disables the offset, omission keeps the default")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad instance id", func(c *Config) { c.InstanceID = "Lobby Screen" }, "instance_id"},
		{"port out of range", func(c *Config) { c.Sink.Port = 70000 }, "sink.port"},
		{"negative bitrate", func(c *Config) { c.Sink.BitrateKbps = -1 }, "bitrate"},
		{"negative font", func(c *Config) { c.Overlay.FontSize = -2 }, "font_size"},
		{"bad colour", func(c *Config) { c.Overlay.TextColor = "yellow" }, "text_color"},
		{"bad policy", func(c *Config) { c.Overlay.ResizePolicy = "stretch" }, "resize_policy"},
		{"y ratio", func(c *Config) { c.Overlay.Ticker.YRatio = 1.5 }, "y_ratio"},
		{"qos", func(c *Config) { c.Control.MQTT.Broker = "tcp://x:1883"; c.Control.MQTT.QoS = 3 }, "qos"},
		{"delays", func(c *Config) { c.Reconnect.InitialDelayMS = 5000; c.Reconnect.MaxDelayMS = 100 }, "max_delay_ms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{InstanceID: "test"}
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}

	t.Run("NegativeScrollDuration", func(t *testing.T) {
		cfg := &Config{Overlay: OverlayConfig{ScrollDurationS: -1}}
		if err := Validate(cfg); !errors.Is(err, videotextrelay.ErrInvalidScrollDuration) {
			t.Errorf("Validate() error = %v, want ErrInvalidScrollDuration", err)
		}
	})
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if !strings.HasPrefix(cfg.InstanceID, "relay-") {
		t.Errorf("InstanceID = %q", cfg.InstanceID)
	}
	if cfg.Sink.Port != DefaultSinkPort || cfg.ShutdownTimeoutS != 5 {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.Overlay.Ticker.Text != videotextrelay.DefaultTickerText {
		t.Errorf("ticker text = %q", cfg.Overlay.Ticker.Text)
	}
	if cfg.Overlay.StallThresholdMS != 250 {
		t.Errorf("stall threshold = %d", cfg.Overlay.StallThresholdMS)
	}
}
