// Package wire is the JSON envelope spoken over a client connection: {"type": "...", "data": {...}}.
package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/astromechza/collab-canvas/pkg/canvas"
)

var (
	ErrMalformed   = errors.New("wire: malformed message")
	ErrUnknownType = errors.New("wire: unknown message type")
)

type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Into decodes the envelope payload into v.
func (e Envelope) Into(v any) error {
	if len(e.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, e.Type, err)
	}
	return nil
}

// Inbound is a decoded client message. Only the fields relevant to Type are set.
type Inbound struct {
	Type     string
	Join     canvas.JoinRequest
	Cursor   canvas.Point
	Stroke   canvas.StrokeCandidate
	StrokeID string
}

// strokePayload accepts the stroke id as either "strokeId" or "id".
type strokePayload struct {
	StrokeID string            `json:"strokeId"`
	ID       string            `json:"id,omitempty"`
	Type     canvas.StrokeType `json:"type"`
	Color    string            `json:"color"`
	Width    float64           `json:"width"`
	Points   []canvas.Point    `json:"points"`
}

func (p strokePayload) candidate() canvas.StrokeCandidate {
	id := p.StrokeID
	if id == "" {
		id = p.ID
	}
	return canvas.StrokeCandidate{ID: id, Type: p.Type, Color: p.Color, Width: p.Width, Points: p.Points}
}

// Decode parses one client message. Payloads whose fields have the wrong JSON types (a numeric
// color, a string coordinate) fail here with ErrMalformed.
func Decode(raw []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(bytes.TrimSpace(raw), &env); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	in := Inbound{Type: env.Type}
	switch env.Type {
	case canvas.KindJoin:
		if err := env.Into(&in.Join); err != nil {
			return in, err
		}
	case canvas.KindCursorMove:
		if err := env.Into(&in.Cursor); err != nil {
			return in, err
		}
	case canvas.KindStrokeLive, canvas.KindStrokeEnd:
		var p strokePayload
		if err := env.Into(&p); err != nil {
			return in, err
		}
		in.Stroke = p.candidate()
	case canvas.KindStrokeLiveEnd:
		var p struct {
			StrokeID string `json:"strokeId"`
		}
		if err := env.Into(&p); err != nil {
			return in, err
		}
		in.StrokeID = p.StrokeID
		if in.StrokeID == "" {
			in.StrokeID = canvas.AllStrokes
		}
	case canvas.KindLeave, canvas.KindUndo, canvas.KindRedo, canvas.KindClearMine:
	default:
		return in, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	return in, nil
}

// Dispatch hands a decoded message to the engine on behalf of connID.
func Dispatch(e *canvas.Engine, connID string, in Inbound) []canvas.Delivery {
	switch in.Type {
	case canvas.KindJoin:
		return e.Join(connID, in.Join)
	case canvas.KindLeave:
		return e.Leave(connID)
	case canvas.KindCursorMove:
		return e.CursorMove(connID, in.Cursor)
	case canvas.KindStrokeLive:
		return e.StrokeLive(connID, in.Stroke)
	case canvas.KindStrokeEnd:
		return e.StrokeEnd(connID, in.Stroke)
	case canvas.KindStrokeLiveEnd:
		return e.EndLive(connID, in.StrokeID)
	case canvas.KindUndo:
		return e.Undo(connID)
	case canvas.KindRedo:
		return e.Redo(connID)
	case canvas.KindClearMine:
		return e.ClearMine(connID)
	}
	e.Reject(in.Type, canvas.ReasonUnknown)
	return nil
}

// Encode wraps an outbound event in an envelope.
func Encode(ev canvas.Event) ([]byte, error) {
	return Message(ev.Kind(), ev)
}

// Message builds an envelope of any kind, used by clients to send requests.
func Message(kind string, data any) ([]byte, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", kind, err)
		}
		raw = b
	}
	b, err := json.Marshal(Envelope{Type: kind, Data: raw})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", kind, err)
	}
	return b, nil
}

// StrokeMessage builds a stroke-live or stroke-end request.
func StrokeMessage(kind string, c canvas.StrokeCandidate) ([]byte, error) {
	return Message(kind, strokePayload{StrokeID: c.ID, Type: c.Type, Color: c.Color, Width: c.Width, Points: c.Points})
}

// DecodeEnvelope parses an outbound message on the client side.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return env, nil
}
