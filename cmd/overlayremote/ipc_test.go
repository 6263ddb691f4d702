package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitAndWait_QueueFull(t *testing.T) {
	requests := make(chan Request) // nobody reading, no buffer

	resp := submitAndWait(context.Background(), requests, ActionRequest{Action: ActionRewind}, time.Second)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "event queue full", resp.Error)
}

func TestSubmitAndWait_Timeout(t *testing.T) {
	requests := make(chan Request, 1) // accepted but never handled

	resp := submitAndWait(context.Background(), requests, ActionRequest{Action: ActionRewind}, 20*time.Millisecond)
	assert.Equal(t, "error", resp.Status)
	assert.Contains(t, resp.Error, "timed out")
}

func TestSubmitAndWait_Shutdown(t *testing.T) {
	requests := make(chan Request, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp := submitAndWait(ctx, requests, ActionRequest{Action: ActionRewind}, time.Second)
	assert.Equal(t, "error", resp.Status)
}

func TestIPCResponseFromOutcome(t *testing.T) {
	resp := ipcResponseFromOutcome(Outcome{
		Resolved: true,
		ButtonID: "down",
		Action:   ActionVolumeDown,
		Result:   DispatchResult{Kind: ResultDispatchFailed, Reason: "connection refused"},
	})
	assert.Equal(t, IPCResponse{
		Status: "ok",
		Action: "volume_down",
		Button: "down",
		Result: "dispatch_failed",
		Reason: "connection refused",
	}, resp)

	// Unresolved events report no action.
	resp = ipcResponseFromOutcome(Outcome{Consumed: true, Result: resultNoAction()})
	assert.Equal(t, IPCResponse{Status: "ok", Result: "no_action"}, resp)
}

func TestIPCServer_RoundTrip(t *testing.T) {
	h := startDaemon(t)

	socket := filepath.Join(t.TempDir(), "overlayremote.sock")
	ctx, cancel := context.WithCancel(context.Background())
	serverDone := make(chan error, 1)
	go func() { serverDone <- runIPCServer(ctx, socket, h.requests, quietLogger()) }()
	defer func() {
		cancel()
		select {
		case err := <-serverDone:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Error("IPC server did not stop")
		}
	}()

	var (
		resp IPCResponse
		err  error
	)
	// The listener comes up asynchronously.
	waitUntil(t, time.Second, func() bool {
		resp, err = SendIPCEvent(socket, ButtonEvent{X: 185, Y: 605, Source: SourcePointer})
		return err == nil
	}, "IPC server not reachable")

	assert.Equal(t, "volume_up", resp.Action)
	assert.Equal(t, "up", resp.Button)
	assert.Equal(t, "success", resp.Result)

	resp, err = SendIPCEvent(socket, ActionRequest{Action: ActionCloseOverlay})
	require.NoError(t, err)
	assert.Equal(t, "close_overlay", resp.Action)

	h.fix.lifecycle.mu.Lock()
	defer h.fix.lifecycle.mu.Unlock()
	assert.Equal(t, 1, h.fix.lifecycle.stops)
}
