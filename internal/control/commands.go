// Package control exposes the overlay commands over MQTT and HTTP JSON-RPC.
package control

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	videotextrelay "github.com/zhenyouluo/video-text-relay"
)

// Command names shared by every control surface.
const (
	CmdSubmitText    = "submit_text"
	CmdAddMessage    = "add_message"
	CmdRemoveMessage = "remove_message"
	CmdUpdateMessage = "update_message"
	CmdGetStatus     = "get_status"
)

var (
	// ErrUnknownCommand is returned for command names Dispatch does not know.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrInvalidParams is returned when params do not decode into the command's shape.
	ErrInvalidParams = errors.New("invalid params")
	// ErrNotImplemented is returned when the command's callback is not set.
	ErrNotImplemented = errors.New("not implemented")
)

// Command represents a control plane command
type Command struct {
	Command   string          `json:"command"`
	RequestID string          `json:"request_id,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
}

// Response represents a command response
type Response struct {
	CommandAck string                 `json:"command_ack"`
	RequestID  string                 `json:"request_id,omitempty"`
	Status     string                 `json:"status"` // "success" or "error"
	Data       map[string]interface{} `json:"data,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Timestamp  string                 `json:"timestamp"`
}

// CommandCallbacks contains callback functions for commands
type CommandCallbacks struct {
	OnSubmitText    func(text string) error
	OnAddMessage    func(spec videotextrelay.MessageSpec) (string, error)
	OnRemoveMessage func(key string) error
	OnUpdateMessage func(key, text string) error
	OnGetStatus     func() map[string]interface{}
}

// OverlayCallbacks binds the message commands to an overlay. OnGetStatus is
// left for the caller, which knows what else to report.
func OverlayCallbacks(o videotextrelay.OverlayProvider) CommandCallbacks {
	return CommandCallbacks{
		OnSubmitText:    o.SubmitText,
		OnAddMessage:    o.AddMessage,
		OnRemoveMessage: o.RemoveMessage,
		OnUpdateMessage: o.UpdateMessage,
	}
}

type textParams struct {
	Text string `json:"text"`
}

type keyParams struct {
	Key string `json:"key"`
}

type updateParams struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// Dispatch executes one command and returns its result data.
//
// Validation errors from the overlay (empty text, missing key, bad scroll
// duration) are returned unchanged so callers can map them with errors.Is.
func Dispatch(cb CommandCallbacks, command string, params json.RawMessage) (map[string]interface{}, error) {
	switch command {
	case CmdSubmitText:
		if cb.OnSubmitText == nil {
			return nil, fmt.Errorf("%s: %w", command, ErrNotImplemented)
		}
		var p textParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		if p.Text == "" {
			return nil, videotextrelay.ErrEmptyText
		}
		if err := cb.OnSubmitText(p.Text); err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"text":    p.Text,
			"message": "ticker text queued",
		}, nil

	case CmdAddMessage:
		if cb.OnAddMessage == nil {
			return nil, fmt.Errorf("%s: %w", command, ErrNotImplemented)
		}
		var spec videotextrelay.MessageSpec
		if err := decodeParams(params, &spec); err != nil {
			return nil, err
		}
		key, err := cb.OnAddMessage(spec)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"key":     key,
			"message": "message queued",
		}, nil

	case CmdRemoveMessage:
		if cb.OnRemoveMessage == nil {
			return nil, fmt.Errorf("%s: %w", command, ErrNotImplemented)
		}
		var p keyParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		if err := cb.OnRemoveMessage(p.Key); err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"key":     p.Key,
			"message": "removal queued",
		}, nil

	case CmdUpdateMessage:
		if cb.OnUpdateMessage == nil {
			return nil, fmt.Errorf("%s: %w", command, ErrNotImplemented)
		}
		var p updateParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		if err := cb.OnUpdateMessage(p.Key, p.Text); err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"key":     p.Key,
			"text":    p.Text,
			"message": "update queued",
		}, nil

	case CmdGetStatus:
		if cb.OnGetStatus == nil {
			return nil, fmt.Errorf("%s: %w", command, ErrNotImplemented)
		}
		return cb.OnGetStatus(), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, command)
	}
}

// IsInvalidParams reports whether err means the caller sent bad arguments.
func IsInvalidParams(err error) bool {
	return errors.Is(err, ErrInvalidParams) ||
		errors.Is(err, videotextrelay.ErrEmptyText) ||
		errors.Is(err, videotextrelay.ErrEmptyKey) ||
		errors.Is(err, videotextrelay.ErrInvalidScrollDuration)
}

// decodeParams unmarshals params into v. Absent params decode as {}.
func decodeParams(params json.RawMessage, v interface{}) error {
	trimmed := bytes.TrimSpace(params)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(trimmed, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return nil
}

// Execute runs cmd and builds its response.
func Execute(cb CommandCallbacks, cmd Command) Response {
	resp := Response{
		CommandAck: cmd.Command,
		RequestID:  cmd.RequestID,
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
	}

	data, err := Dispatch(cb, cmd.Command, cmd.Params)
	if err != nil {
		resp.Status = "error"
		resp.Error = err.Error()
		return resp
	}

	resp.Status = "success"
	resp.Data = data
	return resp
}
