package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeVolume records AdjustVolume calls.
type fakeVolume struct {
	mu    sync.Mutex
	calls []VolumeDirection
	ui    []bool
	err   error
}

func (f *fakeVolume) AdjustVolume(dir VolumeDirection, showUI bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, dir)
	f.ui = append(f.ui, showUI)
	return f.err
}

// fakeKeys records SendKeyPair calls.
type fakeKeys struct {
	mu    sync.Mutex
	codes []uint16
	err   error
}

func (f *fakeKeys) SendKeyPair(code uint16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes = append(f.codes, code)
	return f.err
}

// fakeLifecycle counts stop requests.
type fakeLifecycle struct {
	mu    sync.Mutex
	stops int
}

func (f *fakeLifecycle) RequestStop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type dispatchFixture struct {
	volume    *fakeVolume
	keys      *fakeKeys
	lifecycle *fakeLifecycle
	d         *Dispatcher
}

func newDispatchFixture() *dispatchFixture {
	f := &dispatchFixture{
		volume:    &fakeVolume{},
		keys:      &fakeKeys{},
		lifecycle: &fakeLifecycle{},
	}
	f.d = NewDispatcher(f.volume, f.keys, f.lifecycle, quietLogger())
	return f
}

func TestDispatch_VolumeUpAndDown(t *testing.T) {
	f := newDispatchFixture()

	assert.Equal(t, ResultSuccess, f.d.Dispatch(ActionVolumeUp).Kind)
	assert.Equal(t, ResultSuccess, f.d.Dispatch(ActionVolumeDown).Kind)

	assert.Equal(t, []VolumeDirection{VolumeRaise, VolumeLower}, f.volume.calls)
	// The on-screen volume indicator is always requested.
	assert.Equal(t, []bool{true, true}, f.volume.ui)
	assert.Empty(t, f.keys.codes)
	assert.Zero(t, f.lifecycle.stops)
}

func TestDispatch_MediaKeys(t *testing.T) {
	cases := []struct {
		action RemoteAction
		code   uint16
	}{
		{ActionRewind, KEY_REWIND},
		{ActionFastForward, KEY_FASTFORWARD},
		{ActionPlayPause, KEY_PLAYPAUSE},
	}

	for _, tc := range cases {
		t.Run(tc.action.String(), func(t *testing.T) {
			f := newDispatchFixture()
			res := f.d.Dispatch(tc.action)

			assert.True(t, res.OK())
			assert.Equal(t, []uint16{tc.code}, f.keys.codes)
			assert.Empty(t, f.volume.calls)
		})
	}
}

func TestDispatch_CloseOverlay(t *testing.T) {
	f := newDispatchFixture()

	res := f.d.Dispatch(ActionCloseOverlay)
	assert.Equal(t, ResultSuccess, res.Kind)
	assert.Equal(t, 1, f.lifecycle.stops)
	assert.Empty(t, f.volume.calls)
	assert.Empty(t, f.keys.codes)
}

func TestDispatch_UnknownTouchesNoSink(t *testing.T) {
	f := newDispatchFixture()

	res := f.d.Dispatch(ActionUnknown)
	assert.Equal(t, ResultNoAction, res.Kind)
	assert.Empty(t, f.volume.calls)
	assert.Empty(t, f.keys.codes)
	assert.Zero(t, f.lifecycle.stops)

	res = f.d.Dispatch(RemoteAction(42))
	assert.Equal(t, ResultNoAction, res.Kind)
}

func TestDispatch_VolumePermissionDenied(t *testing.T) {
	f := newDispatchFixture()
	f.volume.err = fmt.Errorf("camilladsp handshake: 403 Forbidden: %w", ErrPermissionDenied)

	res := f.d.Dispatch(ActionVolumeUp)
	assert.Equal(t, ResultPermissionDenied, res.Kind)
	assert.Contains(t, res.Reason, "403")
	assert.False(t, res.OK())

	// Attempted exactly once, not retried, and no other sink touched.
	assert.Len(t, f.volume.calls, 1)
	assert.Empty(t, f.keys.codes)
	assert.Zero(t, f.lifecycle.stops)
}

func TestDispatch_VolumeFsPermissionMapsToDenied(t *testing.T) {
	f := newDispatchFixture()
	f.volume.err = &fs.PathError{Op: "dial", Path: "/run/camilladsp.sock", Err: fs.ErrPermission}

	res := f.d.Dispatch(ActionVolumeDown)
	assert.Equal(t, ResultPermissionDenied, res.Kind)
}

func TestDispatch_MediaKeyPermissionErrorIsDispatchFailed(t *testing.T) {
	for _, a := range []RemoteAction{ActionRewind, ActionFastForward, ActionPlayPause} {
		f := newDispatchFixture()
		f.keys.err = &fs.PathError{Op: "write", Path: "/dev/uinput", Err: fs.ErrPermission}

		res := f.d.Dispatch(a)
		assert.Equal(t, ResultDispatchFailed, res.Kind, a.String())
		assert.Contains(t, res.Reason, "permission denied")
		assert.Empty(t, f.volume.calls)
		assert.Zero(t, f.lifecycle.stops)
	}

	f := newDispatchFixture()
	f.keys.err = fmt.Errorf("create virtual keyboard: %w", ErrPermissionDenied)
	assert.Equal(t, ResultDispatchFailed, f.d.Dispatch(ActionRewind).Kind)
}

func TestDispatch_OtherFailures(t *testing.T) {
	f := newDispatchFixture()
	f.volume.err = errors.New("connection refused")
	f.keys.err = errors.New("short write")

	res := f.d.Dispatch(ActionVolumeDown)
	assert.Equal(t, ResultDispatchFailed, res.Kind)
	assert.Equal(t, "connection refused", res.Reason)

	res = f.d.Dispatch(ActionRewind)
	assert.Equal(t, ResultDispatchFailed, res.Kind)
	assert.Equal(t, "short write", res.Reason)

	assert.Len(t, f.volume.calls, 1)
	assert.Len(t, f.keys.codes, 1)
}

func TestDispatch_MissingSinks(t *testing.T) {
	d := NewDispatcher(nil, nil, nil, quietLogger())

	for _, a := range []RemoteAction{ActionVolumeUp, ActionRewind} {
		res := d.Dispatch(a)
		assert.Equal(t, ResultDispatchFailed, res.Kind, a.String())
		assert.Contains(t, res.Reason, "not configured")
	}

	// Closing always reports success, even with nothing to stop.
	assert.Equal(t, ResultSuccess, d.Dispatch(ActionCloseOverlay).Kind)
}

func TestDispatchResult_String(t *testing.T) {
	assert.Equal(t, "success", DispatchResult{Kind: ResultSuccess}.String())
	assert.Equal(t, "dispatch_failed(boom)", DispatchResult{Kind: ResultDispatchFailed, Reason: "boom"}.String())
	assert.Equal(t, "permission_denied", ResultPermissionDenied.String())
	assert.Equal(t, "no_action", ResultNoAction.String())
}

func TestDispatch_ConcurrentCallsAreSafe(t *testing.T) {
	f := newDispatchFixture()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.d.Dispatch(ActionPlayPause)
		}()
	}
	wg.Wait()

	require.Len(t, f.keys.codes, 20)
}
