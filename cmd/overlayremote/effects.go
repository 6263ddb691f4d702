package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
)

// ============================================================================
// Action Dispatcher
// ============================================================================
// The dispatcher is the only place that executes side effects for a resolved
// RemoteAction. Sinks are injected so the daemon can run against CamillaDSP and
// uinput while tests run against fakes.
//
// Rules:
//   - Every call returns a DispatchResult; errors never escape as panics.
//   - Nothing is retried or queued. A failed attempt is reported and dropped.
//   - ActionUnknown touches no sink.
//   - Only volume failures are classified as PermissionDenied. Media key
//     failures of any kind are DispatchFailed.
// ============================================================================

// ErrPermissionDenied marks a sink failure caused by missing authorization.
var ErrPermissionDenied = errors.New("permission denied")

// VolumeDirection is the sign of a volume adjustment.
type VolumeDirection int

const (
	VolumeLower VolumeDirection = -1
	VolumeRaise VolumeDirection = 1
)

func (d VolumeDirection) String() string {
	if d < 0 {
		return "lower"
	}
	return "raise"
}

// VolumeControl adjusts the output volume by one step.
type VolumeControl interface {
	AdjustVolume(direction VolumeDirection, showUI bool) error
}

// MediaKeySink emits a press-then-release pair for a media key code.
type MediaKeySink interface {
	SendKeyPair(code uint16) error
}

// OverlayLifecycle asks the host to tear the overlay down.
type OverlayLifecycle interface {
	RequestStop()
}

// ResultKind classifies a dispatch attempt.
type ResultKind int

const (
	ResultNoAction ResultKind = iota
	ResultSuccess
	ResultPermissionDenied
	ResultDispatchFailed
)

func (k ResultKind) String() string {
	switch k {
	case ResultSuccess:
		return "success"
	case ResultPermissionDenied:
		return "permission_denied"
	case ResultDispatchFailed:
		return "dispatch_failed"
	default:
		return "no_action"
	}
}

// DispatchResult is the outcome of one Dispatch call.
// Reason is set for PermissionDenied and DispatchFailed.
type DispatchResult struct {
	Kind   ResultKind
	Reason string
}

func (r DispatchResult) OK() bool { return r.Kind == ResultSuccess }

func (r DispatchResult) String() string {
	if r.Reason == "" {
		return r.Kind.String()
	}
	return fmt.Sprintf("%s(%s)", r.Kind, r.Reason)
}

func resultSuccess() DispatchResult  { return DispatchResult{Kind: ResultSuccess} }
func resultNoAction() DispatchResult { return DispatchResult{Kind: ResultNoAction} }

func resultFailed(err error) DispatchResult {
	return DispatchResult{Kind: ResultDispatchFailed, Reason: err.Error()}
}

// Dispatcher executes RemoteActions against the injected sinks.
type Dispatcher struct {
	volume    VolumeControl
	keys      MediaKeySink
	lifecycle OverlayLifecycle
	logger    *slog.Logger
}

func NewDispatcher(volume VolumeControl, keys MediaKeySink, lifecycle OverlayLifecycle, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		volume:    volume,
		keys:      keys,
		lifecycle: lifecycle,
		logger:    logger,
	}
}

// Dispatch runs the side effect for action and reports how it went.
func (d *Dispatcher) Dispatch(action RemoteAction) DispatchResult {
	switch action {
	case ActionVolumeUp:
		return d.adjustVolume(VolumeRaise)
	case ActionVolumeDown:
		return d.adjustVolume(VolumeLower)
	case ActionRewind:
		return d.mediaKey(KEY_REWIND)
	case ActionFastForward:
		return d.mediaKey(KEY_FASTFORWARD)
	case ActionPlayPause:
		return d.mediaKey(KEY_PLAYPAUSE)
	case ActionCloseOverlay:
		return d.closeOverlay()
	case ActionUnknown:
		d.logger.Warn("attempted to perform unknown action")
		return resultNoAction()
	default:
		d.logger.Warn("unsupported action", "action", action.String())
		return resultNoAction()
	}
}

func (d *Dispatcher) adjustVolume(dir VolumeDirection) DispatchResult {
	d.logger.Debug("adjusting volume", "direction", dir.String())
	if d.volume == nil {
		return resultFailed(errors.New("volume sink not configured"))
	}

	err := d.volume.AdjustVolume(dir, true)
	switch {
	case err == nil:
		return resultSuccess()
	case isPermissionError(err):
		d.logger.Error("permission denied adjusting volume", "direction", dir.String(), "error", err)
		return DispatchResult{Kind: ResultPermissionDenied, Reason: err.Error()}
	default:
		d.logger.Error("error adjusting volume", "direction", dir.String(), "error", err)
		return resultFailed(err)
	}
}

func (d *Dispatcher) mediaKey(code uint16) DispatchResult {
	d.logger.Debug("dispatching media key", "code", code)
	if d.keys == nil {
		return resultFailed(errors.New("media key sink not configured"))
	}
	if err := d.keys.SendKeyPair(code); err != nil {
		d.logger.Error("error dispatching media key", "code", code, "error", err)
		return resultFailed(err)
	}
	d.logger.Debug("media key dispatched", "code", code)
	return resultSuccess()
}

// closeOverlay always succeeds. Without a lifecycle there is nothing to stop.
func (d *Dispatcher) closeOverlay() DispatchResult {
	d.logger.Info("closing overlay by remote command")
	if d.lifecycle != nil {
		d.lifecycle.RequestStop()
	}
	return resultSuccess()
}

func isPermissionError(err error) bool {
	return errors.Is(err, ErrPermissionDenied) || errors.Is(err, fs.ErrPermission)
}
