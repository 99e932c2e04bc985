// Package protocol defines the JSON control messages exchanged over the
// interpretation WebSocket. Audio travels in binary frames: PCM16LE mono,
// 16 kHz from the client and 24 kHz from the server.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ClientMessageType is the "type" of a client message.
type ClientMessageType string

const (
	ClientSessionCreate   ClientMessageType = "session.create"
	ClientInputAudioStart ClientMessageType = "input_audio.start"
	ClientInputAudioStop  ClientMessageType = "input_audio.stop"
	ClientSessionClose    ClientMessageType = "session.close"
)

// ErrUnknownType is wrapped by ParseClientMessage for unrecognized types.
var ErrUnknownType = errors.New("unknown message type")

// ClientMessage is implemented by every client message.
type ClientMessage interface {
	MessageType() ClientMessageType
}

// BaseClientMessage carries the discriminator.
type BaseClientMessage struct {
	Type ClientMessageType `json:"type"`
}

func (m BaseClientMessage) MessageType() ClientMessageType { return m.Type }

// SessionCreate configures the session. Omitted fields keep their defaults.
type SessionCreate struct {
	BaseClientMessage
	SourceLang string `json:"source_lang,omitempty"`
	TargetLang string `json:"target_lang,omitempty"`
	Voice      string `json:"voice,omitempty"`
	Denoise    *bool  `json:"denoise,omitempty"`
}

// DenoiseOr returns Denoise, or def when the client left it out.
func (m *SessionCreate) DenoiseOr(def bool) bool {
	if m.Denoise == nil {
		return def
	}
	return *m.Denoise
}

// InputAudioStart enters push-to-talk capture.
type InputAudioStart struct {
	BaseClientMessage
}

// InputAudioStop ends capture and submits the captured audio.
type InputAudioStop struct {
	BaseClientMessage
}

// SessionClose asks the server to close the connection.
type SessionClose struct {
	BaseClientMessage
}

// ParseClientMessage decodes a text frame.
func ParseClientMessage(data []byte) (ClientMessage, error) {
	var base BaseClientMessage
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("failed to parse message type: %w", err)
	}

	var msg ClientMessage
	var err error

	switch base.Type {
	case ClientSessionCreate:
		var m SessionCreate
		err = json.Unmarshal(data, &m)
		msg = &m

	case ClientInputAudioStart:
		msg = &InputAudioStart{BaseClientMessage: base}

	case ClientInputAudioStop:
		msg = &InputAudioStop{BaseClientMessage: base}

	case ClientSessionClose:
		msg = &SessionClose{BaseClientMessage: base}

	case "":
		return nil, errors.New("missing message type")

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, base.Type)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to parse %s message: %w", base.Type, err)
	}
	return msg, nil
}
