package main

import (
	"encoding/json"
	"fmt"
)

// ============================================================================
// Events - inputs to the daemon loop
// ============================================================================
// Events come from evdev devices (ButtonEvent) and from IPC clients
// (ButtonEvent or ActionRequest). The daemon loop handles them one at a time.
// ============================================================================

// Event is a marker interface for everything the daemon loop consumes.
type Event interface {
	eventMarker()
}

// ButtonPhase is the edge of a pointer/touch button transition.
type ButtonPhase int

const (
	PhasePress ButtonPhase = iota
	PhaseRelease
)

func (p ButtonPhase) String() string {
	if p == PhaseRelease {
		return "release"
	}
	return "press"
}

func parseButtonPhase(s string) (ButtonPhase, error) {
	switch s {
	case "", "press":
		return PhasePress, nil
	case "release":
		return PhaseRelease, nil
	default:
		return PhasePress, fmt.Errorf("unknown button phase %q", s)
	}
}

// ButtonEvent is a button transition at a screen position.
type ButtonEvent struct {
	X      float64
	Y      float64
	Source SourceKind
	Phase  ButtonPhase
	Device string // input device path, empty for IPC
}

func (ButtonEvent) eventMarker() {}

// Press returns the positional part used by the resolver.
func (e ButtonEvent) Press() PressEvent {
	return PressEvent{X: e.X, Y: e.Y, Source: e.Source}
}

// ActionRequest asks for an action to be dispatched without hit-testing.
type ActionRequest struct {
	Action RemoteAction
}

func (ActionRequest) eventMarker() {}

// Request is what travels on the daemon channel. Reply, if set, receives the
// outcome once the event has been handled; it must be buffered.
type Request struct {
	Event Event
	Reply chan<- Outcome
}

// ============================================================================
// JSON Encoding/Decoding Support
// ============================================================================

// EventEnvelope wraps an event with a type discriminator for JSON marshaling
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type buttonEventJSON struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Source string  `json:"source,omitempty"`
	Phase  string  `json:"phase,omitempty"`
}

type actionRequestJSON struct {
	Action string `json:"action"`
}

// UnmarshalEvent deserializes a JSON event envelope into a concrete Event
func UnmarshalEvent(data []byte) (Event, error) {
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case "button":
		var b buttonEventJSON
		if err := json.Unmarshal(env.Data, &b); err != nil {
			return nil, fmt.Errorf("unmarshal ButtonEvent: %w", err)
		}
		src, err := ParseSourceKind(b.Source)
		if err != nil {
			return nil, err
		}
		phase, err := parseButtonPhase(b.Phase)
		if err != nil {
			return nil, err
		}
		return ButtonEvent{X: b.X, Y: b.Y, Source: src, Phase: phase}, nil

	case "action":
		var a actionRequestJSON
		if err := json.Unmarshal(env.Data, &a); err != nil {
			return nil, fmt.Errorf("unmarshal ActionRequest: %w", err)
		}
		action, err := ParseRemoteAction(a.Action)
		if err != nil {
			return nil, err
		}
		return ActionRequest{Action: action}, nil

	default:
		return nil, fmt.Errorf("unknown event type: %q", env.Type)
	}
}

// MarshalEvent serializes an Event into a JSON envelope with type discriminator
func MarshalEvent(e Event) ([]byte, error) {
	var env EventEnvelope

	switch e := e.(type) {
	case ButtonEvent:
		env.Type = "button"
		data, err := json.Marshal(buttonEventJSON{
			X:      e.X,
			Y:      e.Y,
			Source: e.Source.String(),
			Phase:  e.Phase.String(),
		})
		if err != nil {
			return nil, fmt.Errorf("marshal ButtonEvent: %w", err)
		}
		env.Data = data

	case ActionRequest:
		env.Type = "action"
		data, err := json.Marshal(actionRequestJSON{Action: e.Action.String()})
		if err != nil {
			return nil, fmt.Errorf("marshal ActionRequest: %w", err)
		}
		env.Data = data

	default:
		return nil, fmt.Errorf("unsupported event type: %T", e)
	}

	return json.Marshal(env)
}
