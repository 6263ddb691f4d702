package main

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"os"
)

// inputEvent represents a Linux input event structure
// struct input_event { struct timeval time; __u16 type; __u16 code; __s32 value; };
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

// deviceEvent tags an input event with the device it was read from.
type deviceEvent struct {
	Device string
	inputEvent
}

// readInputEvents reads input events from a file descriptor and sends them to a channel
// This runs in a dedicated goroutine and blocks on read operations
func readInputEvents(f *os.File, events chan<- deviceEvent, readErr chan<- error) {
	evSize := binary.Size(inputEvent{})
	buf := make([]byte, evSize)
	reader := bytes.NewReader(buf) // Reusable reader, reset on each iteration

	for {
		if _, err := io.ReadFull(f, buf); err != nil {
			readErr <- err
			return
		}

		reader.Reset(buf)
		var ev inputEvent
		if err := binary.Read(reader, binary.LittleEndian, &ev); err != nil {
			// Skip malformed events
			continue
		}

		events <- deviceEvent{Device: f.Name(), inputEvent: ev}
	}
}

// ============================================================================
// Pointer tracking
// ============================================================================
// A pointer device reports motion and buttons as separate events grouped into
// frames terminated by SYN_REPORT. The tracker keeps the cursor position and
// turns button edges into ButtonEvents once the frame is complete, so a click
// always carries the position reported in the same frame.
// ============================================================================

// axisRange is the min/max reported by EVIOCGABS for an absolute axis.
type axisRange struct {
	Min, Max int32
}

func (r axisRange) valid() bool { return r.Max > r.Min }

type pendingButton struct {
	source SourceKind
	phase  ButtonPhase
}

type pointerTracker struct {
	device string

	width, height float64
	absX, absY    axisRange

	x, y    float64
	pending []pendingButton
}

func newPointerTracker(device string, width, height int, absX, absY axisRange) *pointerTracker {
	return &pointerTracker{
		device: device,
		width:  float64(width),
		height: float64(height),
		absX:   absX,
		absY:   absY,
	}
}

// Feed consumes one raw event and returns the button events completed by it.
func (p *pointerTracker) Feed(ev inputEvent) []ButtonEvent {
	switch ev.Type {
	case EV_ABS:
		switch ev.Code {
		case ABS_X:
			p.x = scaleAxis(ev.Value, p.absX, p.width)
		case ABS_Y:
			p.y = scaleAxis(ev.Value, p.absY, p.height)
		}

	case EV_REL:
		// Raw deltas from (0,0). No acceleration, so this drifts from the
		// compositor's cursor; absolute devices are preferred.
		switch ev.Code {
		case REL_X:
			p.x = clamp(p.x+float64(ev.Value), 0, p.width-1)
		case REL_Y:
			p.y = clamp(p.y+float64(ev.Value), 0, p.height-1)
		}

	case EV_KEY:
		src, ok := buttonSource(ev.Code)
		if !ok {
			return nil
		}
		switch ev.Value {
		case evValuePress:
			p.pending = append(p.pending, pendingButton{source: src, phase: PhasePress})
		case evValueRelease:
			p.pending = append(p.pending, pendingButton{source: src, phase: PhaseRelease})
		}

	case EV_SYN:
		if ev.Code != SYN_REPORT || len(p.pending) == 0 {
			return nil
		}
		out := make([]ButtonEvent, 0, len(p.pending))
		for _, b := range p.pending {
			out = append(out, ButtonEvent{
				X:      p.x,
				Y:      p.y,
				Source: b.source,
				Phase:  b.phase,
				Device: p.device,
			})
		}
		p.pending = p.pending[:0]
		return out
	}

	return nil
}

func buttonSource(code uint16) (SourceKind, bool) {
	switch code {
	case BTN_LEFT, BTN_RIGHT, BTN_MIDDLE:
		return SourcePointer, true
	case BTN_TOUCH:
		return SourceTouch, true
	default:
		return SourceOther, false
	}
}

// scaleAxis maps a raw absolute value onto [0, size). Without a usable
// range (or screen size) the raw value is taken as a screen coordinate.
func scaleAxis(v int32, r axisRange, size float64) float64 {
	if !r.valid() || size <= 0 {
		return float64(v)
	}
	norm := float64(v-r.Min) / float64(r.Max-r.Min)
	return clamp(norm*size, 0, size-1)
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
