package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	videotextrelay "github.com/zhenyouluo/video-text-relay"
	"github.com/zhenyouluo/video-text-relay/internal/config"
	"github.com/zhenyouluo/video-text-relay/internal/control"
	"github.com/zhenyouluo/video-text-relay/pipeline"
)

// service owns the relay and its control surfaces.
type service struct {
	cfg        *config.Config
	rasterizer *pipeline.Rasterizer
	overlay    *videotextrelay.Overlay
	relay      *pipeline.Relay

	httpServer *control.Server
	mqttClient mqtt.Client
	mqtt       *control.Handler
}

func newService(cfg *config.Config) (*service, error) {
	overlayCfg, err := cfg.OverlayEngineConfig()
	if err != nil {
		return nil, fmt.Errorf("overlay config: %w", err)
	}

	rasterizer, err := pipeline.NewRasterizer()
	if err != nil {
		return nil, fmt.Errorf("rasterizer: %w", err)
	}

	overlay, err := videotextrelay.NewOverlay(overlayCfg, rasterizer)
	if err != nil {
		rasterizer.Close()
		return nil, err
	}

	relay, err := pipeline.NewRelay(relayConfig(cfg), overlay, rasterizer)
	if err != nil {
		rasterizer.Close()
		return nil, err
	}

	return &service{
		cfg:        cfg,
		rasterizer: rasterizer,
		overlay:    overlay,
		relay:      relay,
	}, nil
}

// relayConfig converts the source, sink and reconnect sections.
func relayConfig(c *config.Config) pipeline.Config {
	return pipeline.Config{
		SourceURI:             c.Source.URI,
		Audio:                 c.Source.Audio,
		SinkHost:              c.Sink.Host,
		SinkPort:              c.Sink.Port,
		BitrateKbps:           c.Sink.BitrateKbps,
		MaxReconnectAttempts:  c.Reconnect.MaxRetries,
		ReconnectInitialDelay: time.Duration(c.Reconnect.InitialDelayMS) * time.Millisecond,
		ReconnectMaxDelay:     time.Duration(c.Reconnect.MaxDelayMS) * time.Millisecond,
	}
}

func (s *service) callbacks() control.CommandCallbacks {
	cb := control.OverlayCallbacks(s.overlay)
	cb.OnGetStatus = s.status
	return cb
}

// status flattens relay stats into the get_status result.
func (s *service) status() map[string]interface{} {
	out := map[string]interface{}{}
	data, err := json.Marshal(s.relay.Stats())
	if err == nil {
		json.Unmarshal(data, &out)
	}
	out["instance_id"] = s.cfg.InstanceID
	out["sink_url"] = s.relay.SinkURL()
	return out
}

func (s *service) health() control.HealthStatus {
	h := control.HealthStatus{
		RelayRunning:  s.relay.Stats().IsRunning,
		MQTTConnected: s.mqttClient != nil && s.mqttClient.IsConnected(),
	}

	select {
	case <-s.relay.Done():
		h.Status = "unhealthy"
	default:
		if h.RelayRunning {
			h.Status = "healthy"
		} else {
			// between pipeline rebuilds
			h.Status = "degraded"
		}
	}
	return h
}

// Start brings up the control surfaces, then the relay.
func (s *service) Start(ctx context.Context) error {
	if broker := s.cfg.Control.MQTT.Broker; broker != "" {
		mqttCfg := control.MQTTConfig{
			Broker:       broker,
			ClientID:     s.cfg.Control.MQTT.ClientID,
			ControlTopic: s.cfg.Control.MQTT.Topics.Control,
			StatusTopic:  s.cfg.Control.MQTT.Topics.Status,
			QoS:          s.cfg.Control.MQTT.QoS,
		}
		client, err := control.Connect(mqttCfg)
		if err != nil {
			// The relay is still useful without remote control
			slog.Warn("mqtt control plane unavailable", "error", err, "broker", broker)
		} else {
			s.mqttClient = client
			s.mqtt = control.NewHandler(mqttCfg, client, s.callbacks())
			if err := s.mqtt.Start(ctx); err != nil {
				return fmt.Errorf("mqtt control plane: %w", err)
			}
		}
	}

	if s.cfg.Control.HTTPAddr != "" {
		s.httpServer = control.NewServer(control.ServerConfig{
			Addr:      s.cfg.Control.HTTPAddr,
			Callbacks: s.callbacks(),
			Health:    s.health,
		})
		if err := s.httpServer.Start(); err != nil {
			return fmt.Errorf("control http server: %w", err)
		}
	}

	if err := s.relay.Start(ctx); err != nil {
		return err
	}

	slog.Info("relay is serving",
		"instance_id", s.cfg.InstanceID,
		"uri", s.cfg.Source.URI,
		"watch", s.relay.SinkURL(),
	)
	return nil
}

// Done is closed when the relay stops on its own or after Shutdown.
func (s *service) Done() <-chan struct{} { return s.relay.Done() }

// Err reports why the relay stopped. End of stream is a normal exit.
func (s *service) Err() error {
	err := s.relay.Err()
	if errors.Is(err, pipeline.ErrEndOfStream) {
		return nil
	}
	return err
}

func (s *service) ShutdownTimeout() time.Duration {
	return time.Duration(s.cfg.ShutdownTimeoutS) * time.Second
}

// Shutdown stops the relay, then the control surfaces.
func (s *service) Shutdown(ctx context.Context) error {
	var errs []error

	if err := s.relay.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("relay: %w", err))
	}

	if s.mqtt != nil {
		s.mqtt.Stop()
	}
	if s.mqttClient != nil {
		s.mqttClient.Disconnect(250)
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("control http server: %w", err))
		}
	}

	s.rasterizer.Close()

	stats := s.relay.Stats()
	slog.Info("final relay stats",
		"frames_in", stats.FramesIn,
		"frames_out", stats.FramesOut,
		"frames_failed", stats.FramesFailed,
		"reconnects", stats.Reconnects,
		"messages_retired", stats.Overlay.RetiredMessages,
	)

	return errors.Join(errs...)
}
