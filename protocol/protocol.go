package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrInvalidFrame = errors.New("invalid frame format")
	ErrUnknownEvent = errors.New("unknown event")
)

// DecodeError reports a frame whose event name is known but whose
// payload could not be decoded.
type DecodeError struct {
	Event string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Event, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Frame is the envelope of every WebSocket text message:
// {"event": "<name>", "data": <payload>}.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ParseFrame splits a raw text message into its event name and payload.
func ParseFrame(raw []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	if f.Event == "" {
		return nil, ErrInvalidFrame
	}
	return &f, nil
}

// FormatFrame builds the envelope for an event. A nil payload is omitted.
func FormatFrame(name string, payload any) ([]byte, error) {
	f := Frame{Event: name}
	if payload != nil {
		data, err := marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", name, err)
		}
		f.Data = data
	}
	return marshal(f)
}

// marshal encodes without HTML escaping so message text survives verbatim.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
