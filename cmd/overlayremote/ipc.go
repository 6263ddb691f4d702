package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"
)

// ============================================================================
// IPC Server - Unix Domain Socket Interface
// ============================================================================
// Lets other processes inject button events or named actions, e.g. a skin
// renderer that already knows where the pointer clicked, or a shell script.
//
// Protocol: Line-delimited JSON
//   - Client sends: {"type": "button"|"action", "data": {...}}
//   - Server responds once the daemon handled the event:
//     {"status": "ok", "action": "...", "result": "..."} or
//     {"status": "error", "error": "msg"}
// ============================================================================

// IPCResponse represents the response sent back to IPC clients
type IPCResponse struct {
	Status string `json:"status"`           // "ok" or "error"
	Error  string `json:"error,omitempty"`  // error message if status == "error"
	Action string `json:"action,omitempty"` // resolved action, if any
	Button string `json:"button,omitempty"` // matched button id, if any
	Result string `json:"result,omitempty"` // dispatch result kind
	Reason string `json:"reason,omitempty"` // dispatch failure reason
}

func ipcResponseFromOutcome(out Outcome) IPCResponse {
	resp := IPCResponse{Status: "ok", Result: out.Result.Kind.String(), Reason: out.Result.Reason}
	if out.Resolved {
		resp.Action = out.Action.String()
		resp.Button = out.ButtonID
	}
	return resp
}

// runIPCServer starts the Unix domain socket server.
// It runs until ctx is canceled, at which point it closes the listener and exits.
func runIPCServer(ctx context.Context, socketPath string, requests chan<- Request, logger *slog.Logger) error {
	if err := os.RemoveAll(socketPath); err != nil {
		return fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	defer listener.Close()
	defer os.Remove(socketPath)

	if err := os.Chmod(socketPath, 0660); err != nil {
		return fmt.Errorf("chmod socket: %w", err)
	}

	logger.Info("IPC listening", "socket", socketPath)

	// Close the listener on shutdown. This unblocks Accept().
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				logger.Debug("IPC listener closed")
				return nil
			}
			logger.Error("IPC accept error", "error", err)
			continue
		}

		go handleIPCConnection(ctx, conn, requests, logger)
	}
}

// handleIPCConnection handles a single IPC connection
func handleIPCConnection(ctx context.Context, conn net.Conn, requests chan<- Request, logger *slog.Logger) {
	defer conn.Close()

	logger.Debug("IPC connection", "remote_addr", conn.RemoteAddr())

	scanner := bufio.NewScanner(conn)
	encoder := json.NewEncoder(conn)

	respond := func(resp IPCResponse) {
		if err := encoder.Encode(resp); err != nil {
			logger.Error("IPC failed to send response", "error", err)
		}
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		logger.Debug("IPC received", "line", line)

		ev, err := UnmarshalEvent([]byte(line))
		if err != nil {
			respond(IPCResponse{Status: "error", Error: fmt.Sprintf("parse event: %v", err)})
			continue
		}

		respond(submitAndWait(ctx, requests, ev, ipcReplyTimeoutMS*time.Millisecond))
	}

	logger.Debug("IPC connection closed")
}

// submitAndWait queues ev for the daemon and waits for its outcome.
func submitAndWait(ctx context.Context, requests chan<- Request, ev Event, timeout time.Duration) IPCResponse {
	reply := make(chan Outcome, 1)

	select {
	case requests <- Request{Event: ev, Reply: reply}:
	default:
		return IPCResponse{Status: "error", Error: "event queue full"}
	}

	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case out := <-reply:
		return ipcResponseFromOutcome(out)
	case <-t.C:
		return IPCResponse{Status: "error", Error: "timed out waiting for daemon"}
	case <-ctx.Done():
		return IPCResponse{Status: "error", Error: "daemon shutting down"}
	}
}

// ============================================================================
// IPC Client Utility Functions
// ============================================================================

// SendIPCEvent sends an event to the daemon via IPC and returns the response
func SendIPCEvent(socketPath string, ev Event) (IPCResponse, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return IPCResponse{}, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	data, err := MarshalEvent(ev)
	if err != nil {
		return IPCResponse{}, fmt.Errorf("marshal event: %w", err)
	}

	if _, err := fmt.Fprintf(conn, "%s\n", data); err != nil {
		return IPCResponse{}, fmt.Errorf("send event: %w", err)
	}

	var resp IPCResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return IPCResponse{}, fmt.Errorf("decode response: %w", err)
	}

	if resp.Status != "ok" {
		return resp, fmt.Errorf("ipc error: %s", resp.Error)
	}

	return resp, nil
}
