package main

import "log/slog"

// Outcome is what the engine reports back for one event.
//
//   - Consumed: the event was accepted (all button events are)
//   - Resolved: hit-testing ran (pointer presses) or the action was named directly
type Outcome struct {
	Event    Event
	Consumed bool
	Resolved bool
	ButtonID string
	Action   RemoteAction
	Result   DispatchResult
}

// Engine ties the button layout to the dispatcher.
//
// It keeps no state between events: a pointer press is resolved and dispatched,
// a pointer release is consumed, and anything not coming from a pointer is
// consumed without being resolved.
type Engine struct {
	layout     ButtonLayout
	tolerance  ToleranceWindow
	dispatcher *Dispatcher
	logger     *slog.Logger
}

func NewEngine(layout ButtonLayout, tolerance ToleranceWindow, dispatcher *Dispatcher, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		layout:     layout,
		tolerance:  tolerance,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// HandleButton runs one button transition through the press/release triage.
func (e *Engine) HandleButton(ev ButtonEvent) Outcome {
	out := Outcome{Event: ev, Consumed: true, Result: resultNoAction()}

	if ev.Source != SourcePointer {
		e.logger.Debug("non-pointer button event consumed",
			"source", ev.Source.String(), "phase", ev.Phase.String(), "x", ev.X, "y", ev.Y)
		return out
	}

	if ev.Phase == PhaseRelease {
		e.logger.Debug("button release detected")
		return out
	}

	e.logger.Debug("primary button press detected", "x", ev.X, "y", ev.Y, "device", ev.Device)

	out.Resolved = true
	press := ev.Press()
	out.Action = Resolve(press, e.layout, e.tolerance)
	if out.Action == ActionUnknown {
		e.logger.Warn("button press coordinates not mapped", "x", ev.X, "y", ev.Y)
		return out
	}
	// Button id for feedback only.
	if b, ok := e.layout.Match(press.X, press.Y, e.tolerance); ok {
		out.ButtonID = b.ID
	}

	e.logger.Info("action recognized", "action", out.Action.String(), "button", out.ButtonID)
	out.Result = e.dispatcher.Dispatch(out.Action)
	return out
}

// Perform dispatches a named action directly.
func (e *Engine) Perform(action RemoteAction) Outcome {
	return Outcome{
		Event:    ActionRequest{Action: action},
		Consumed: true,
		Resolved: true,
		Action:   action,
		Result:   e.dispatcher.Dispatch(action),
	}
}

// Handle routes any daemon event to the matching engine operation.
func (e *Engine) Handle(ev Event) Outcome {
	switch v := ev.(type) {
	case ButtonEvent:
		return e.HandleButton(v)
	case ActionRequest:
		return e.Perform(v.Action)
	default:
		e.logger.Warn("unknown event type", "event", ev)
		return Outcome{Event: ev, Result: resultNoAction()}
	}
}
