package main

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// RemoteAction is a named remote-control command a button resolves to.
type RemoteAction int

const (
	ActionUnknown RemoteAction = iota
	ActionVolumeUp
	ActionVolumeDown
	ActionRewind
	ActionFastForward
	ActionPlayPause
	ActionCloseOverlay
)

var actionNames = map[RemoteAction]string{
	ActionUnknown:      "unknown",
	ActionVolumeUp:     "volume_up",
	ActionVolumeDown:   "volume_down",
	ActionRewind:       "rewind",
	ActionFastForward:  "fast_forward",
	ActionPlayPause:    "play_pause",
	ActionCloseOverlay: "close_overlay",
}

func (a RemoteAction) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("RemoteAction(%d)", int(a))
}

// ParseRemoteAction maps a config/wire name back to a RemoteAction.
// "unknown" is accepted so it can be used explicitly over IPC.
func ParseRemoteAction(s string) (RemoteAction, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for a, n := range actionNames {
		if n == name {
			return a, nil
		}
	}
	return ActionUnknown, fmt.Errorf("unknown remote action %q", s)
}

// SourceKind classifies where a button event came from.
type SourceKind int

const (
	SourceOther SourceKind = iota
	SourcePointer
	SourceTouch
)

func (s SourceKind) String() string {
	switch s {
	case SourcePointer:
		return "pointer"
	case SourceTouch:
		return "touch"
	default:
		return "other"
	}
}

// ParseSourceKind accepts the names produced by SourceKind.String.
// An empty string means pointer, which is what IPC clients send by default.
func ParseSourceKind(s string) (SourceKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pointer", "mouse":
		return SourcePointer, nil
	case "touch":
		return SourceTouch, nil
	case "other":
		return SourceOther, nil
	default:
		return SourceOther, fmt.Errorf("unknown source kind %q", s)
	}
}

// PressEvent is a button press at a screen position.
type PressEvent struct {
	X      float64
	Y      float64
	Source SourceKind
}

// ToleranceWindow is the per-axis slack allowed around a button's reference point.
type ToleranceWindow float64

// Contains reports whether both deltas are strictly inside the window.
func (t ToleranceWindow) Contains(dx, dy float64) bool {
	r := float64(t)
	return math.Abs(dx) < r && math.Abs(dy) < r
}

// Button is one entry of the skin's button table.
type Button struct {
	ID     string
	Action RemoteAction
	X      float64
	Y      float64
}

// ButtonLayout is the ordered, read-only button table.
// Order is priority: when tolerance windows overlap the earlier button wins.
type ButtonLayout struct {
	buttons []Button
}

// NewButtonLayout validates and copies the given buttons.
func NewButtonLayout(buttons []Button) (ButtonLayout, error) {
	seen := make(map[string]struct{}, len(buttons))
	out := make([]Button, 0, len(buttons))

	for i, b := range buttons {
		if b.ID == "" {
			return ButtonLayout{}, fmt.Errorf("button[%d]: id must not be empty", i)
		}
		if _, dup := seen[b.ID]; dup {
			return ButtonLayout{}, fmt.Errorf("button[%d]: duplicate id %q", i, b.ID)
		}
		seen[b.ID] = struct{}{}

		if b.Action == ActionUnknown {
			return ButtonLayout{}, fmt.Errorf("button %q: action must not be unknown", b.ID)
		}
		if _, ok := actionNames[b.Action]; !ok {
			return ButtonLayout{}, fmt.Errorf("button %q: invalid action %d", b.ID, int(b.Action))
		}
		if !isFinite(b.X) || !isFinite(b.Y) {
			return ButtonLayout{}, fmt.Errorf("button %q: coordinates must be finite", b.ID)
		}
		out = append(out, b)
	}

	return ButtonLayout{buttons: out}, nil
}

// DefaultButtonLayout is the layout of the stock remote skin.
func DefaultButtonLayout() ButtonLayout {
	layout, err := NewButtonLayout(defaultButtons())
	if err != nil {
		panic(err)
	}
	return layout
}

func defaultButtons() []Button {
	return []Button{
		{ID: "up", Action: ActionVolumeUp, X: 180, Y: 600},
		{ID: "down", Action: ActionVolumeDown, X: 180, Y: 251},
		{ID: "left", Action: ActionRewind, X: 120, Y: 840},
		{ID: "right", Action: ActionFastForward, X: 1673, Y: 840},
		{ID: "ok", Action: ActionPlayPause, X: 480, Y: 56},
		{ID: "camera", Action: ActionCloseOverlay, X: 510, Y: 836},
	}
}

// Buttons returns a copy of the table in priority order.
func (l ButtonLayout) Buttons() []Button {
	out := make([]Button, len(l.buttons))
	copy(out, l.buttons)
	return out
}

func (l ButtonLayout) Len() int { return len(l.buttons) }

// Match returns the first button whose window contains (x, y).
func (l ButtonLayout) Match(x, y float64, tolerance ToleranceWindow) (Button, bool) {
	for _, b := range l.buttons {
		if tolerance.Contains(x-b.X, y-b.Y) {
			return b, true
		}
	}
	return Button{}, false
}

// Resolve maps a press to the action of the first matching button, or ActionUnknown.
func Resolve(ev PressEvent, layout ButtonLayout, tolerance ToleranceWindow) RemoteAction {
	b, ok := layout.Match(ev.X, ev.Y, tolerance)
	if !ok {
		return ActionUnknown
	}
	return b.Action
}

var errNonPositiveTolerance = errors.New("tolerance must be > 0")

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
