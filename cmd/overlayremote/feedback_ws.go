package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ============================================================================
// Feedback WebSocket: hub + per-client pumps + broadcaster
// ============================================================================
//
// The daemon has no display surface of its own. User-facing feedback is
// published here so a skin renderer or any other client can present it.
//
//   - Messages are JSON text frames with an envelope: {type, ts, data}.
//   - Slow clients are disconnected when their send buffer fills.
//   - volume_changed is coalesced (latest wins) to at most one per window.
//
// ============================================================================

// Broadcast is a feedback item produced by the daemon or a sink.
type Broadcast interface {
	broadcastMarker()
}

// BroadcastActionResult reports the outcome of a resolved action.
type BroadcastActionResult struct {
	Outcome Outcome
	At      time.Time
}

func (BroadcastActionResult) broadcastMarker() {}

// BroadcastVolumeChanged is emitted by the volume sink when showUI is set.
type BroadcastVolumeChanged struct {
	VolumeDB float64
	At       time.Time
}

func (BroadcastVolumeChanged) broadcastMarker() {}

// BroadcastOverlayClosed is emitted once when the overlay is asked to stop.
type BroadcastOverlayClosed struct {
	At time.Time
}

func (BroadcastOverlayClosed) broadcastMarker() {}

// wsActionResultData is the JSON `data` payload for "action_result".
type wsActionResultData struct {
	Action string   `json:"action"`
	Button string   `json:"button,omitempty"`
	Result string   `json:"result"`
	Reason string   `json:"reason,omitempty"`
	X      *float64 `json:"x,omitempty"`
	Y      *float64 `json:"y,omitempty"`
}

// wsVolumeChangedData is the JSON `data` payload for "volume_changed".
type wsVolumeChangedData struct {
	VolumeDB float64 `json:"volume_db"`
}

// wsOutboundEvent is a pre-typed, externally-consumable feedback event.
type wsOutboundEvent struct {
	Type string
	Data any
	At   time.Time
}

// envelope is the wire format envelope for WS messages.
type envelope struct {
	Type string     `json:"type"`
	Ts   *time.Time `json:"ts,omitempty"`
	Data any        `json:"data,omitempty"`
}

// ============================================================================
// Hub
// ============================================================================

type Hub struct {
	logger *slog.Logger

	// Buffered broadcast channel for already-serialized JSON frames.
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.Mutex
	clients map[*Client]struct{}

	sendBuf int
}

type HubConfig struct {
	// SendBuf is the per-client outbound queue size (default 32).
	SendBuf int
	// BroadcastBuf is the hub inbound broadcast queue size (default 128).
	BroadcastBuf int
}

// NewHub constructs a hub. Call Run(ctx) to start it.
func NewHub(logger *slog.Logger, cfg HubConfig) *Hub {
	sendBuf := cfg.SendBuf
	if sendBuf <= 0 {
		sendBuf = 32
	}
	bcastBuf := cfg.BroadcastBuf
	if bcastBuf <= 0 {
		bcastBuf = 128
	}

	return &Hub{
		logger:     logger,
		broadcast:  make(chan []byte, bcastBuf),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		clients:    make(map[*Client]struct{}),
		sendBuf:    sendBuf,
	}
}

// Run processes hub events until ctx is canceled.
// It disconnects all clients on shutdown.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Debug("ws hub starting")

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("ws hub stopping (context canceled)")
			h.closeAllClients()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws client registered", "remote_addr", c.remoteAddr, "clients", n)

		case c := <-h.unregister:
			h.removeClient(c, "unregister")

		case msg := <-h.broadcast:
			// Collect slow clients first, then remove them after we unlock.
			var slow []*Client

			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.Unlock()

			for _, c := range slow {
				h.removeClient(c, "slow_client")
			}
		}
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		safeCloseChan(c.send)
		delete(h.clients, c)
	}
}

func (h *Hub) removeClient(c *Client, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		// Closing send signals writePump to exit.
		safeCloseChan(c.send)

		h.logger.Info("ws client disconnected", "remote_addr", c.remoteAddr, "reason", reason, "clients", n)
	}
}

func safeCloseChan(ch chan []byte) {
	defer func() {
		_ = recover() // ignore "close of closed channel"
	}()
	close(ch)
}

// BroadcastBytes enqueues a pre-serialized JSON WS frame for broadcast.
// It never blocks; if the hub queue is full it drops the message.
func (h *Hub) BroadcastBytes(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("ws hub broadcast queue full, dropping message", "bytes", len(msg))
	}
}

// ============================================================================
// Client
// ============================================================================

type Client struct {
	hub *Hub

	conn *websocket.Conn
	send chan []byte

	remoteAddr string
	logger     *slog.Logger
}

// NewClient creates a client with a buffered send channel.
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string, logger *slog.Logger) *Client {
	sendBuf := 32
	if hub != nil && hub.sendBuf > 0 {
		sendBuf = hub.sendBuf
	}
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBuf),
		remoteAddr: remoteAddr,
		logger:     logger,
	}
}

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second
)

// wsVolumeCoalesceWindow bounds how often volume_changed is sent while a user
// taps volume repeatedly.
const wsVolumeCoalesceWindow = 50 * time.Millisecond

// closeStatus extracts a human-readable websocket close code / text when possible.
func closeStatus(err error) (code int, text string, ok bool) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text, true
	}
	return 0, "", false
}

func (c *Client) logExit(pump string, err error) {
	if errors.Is(err, websocket.ErrCloseSent) {
		return
	}
	if code, text, ok := closeStatus(err); ok {
		c.logger.Info("ws "+pump+" exiting (close)", "remote_addr", c.remoteAddr, "code", code, "reason", text)
		return
	}
	c.logger.Info("ws "+pump+" exiting", "remote_addr", c.remoteAddr, "error", err)
}

// writePump writes messages from the send queue to the websocket.
// It exits on write error or when send is closed.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Channel closed: hub is disconnecting us.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logExit("writePump", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logExit("writePump", err)
				return
			}
		}
	}
}

// readPump reads and discards incoming messages to detect disconnects.
// It exits on read error, then unregisters the client.
func (c *Client) readPump() {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.logExit("readPump", err)
			if c.hub != nil {
				c.hub.unregister <- c
			}
			return
		}
	}
}

// ============================================================================
// HTTP Handler
// ============================================================================

type FeedbackServer struct {
	logger *slog.Logger
	hub    *Hub
}

func NewFeedbackServer(logger *slog.Logger, cfg HubConfig) *FeedbackServer {
	return &FeedbackServer{logger: logger, hub: NewHub(logger, cfg)}
}

func (s *FeedbackServer) Hub() *Hub { return s.hub }

// Register registers the WS handler on the provided mux.
func (s *FeedbackServer) Register(mux *http.ServeMux, path string) {
	if mux == nil {
		return
	}
	mux.HandleFunc(path, s.handleFeedbackWS)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *FeedbackServer) handleFeedbackWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "error", err)
		return
	}

	client := NewClient(s.hub, conn, r.RemoteAddr, s.logger)
	s.hub.register <- client

	// Pumps outlive the handler; the hub and socket errors end them.
	go client.writePump()
	go client.readPump()
}

// ============================================================================
// Broadcaster
// ============================================================================

// RunBroadcaster reads feedback items, marshals them, and broadcasts them to
// all hub clients. Intended to run as a single goroutine.
func RunBroadcaster(ctx context.Context, hub *Hub, src <-chan Broadcast, logger *slog.Logger) {
	if hub == nil || src == nil {
		return
	}

	var pendingVol *wsOutboundEvent
	var volTimer *time.Timer
	var volTimerCh <-chan time.Time

	send := func(ev wsOutboundEvent) {
		ts := ev.At
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		msg, err := json.Marshal(envelope{Type: ev.Type, Ts: &ts, Data: ev.Data})
		if err != nil {
			logger.Warn("ws broadcaster marshal failed", "error", err, "type", ev.Type)
			return
		}
		hub.BroadcastBytes(msg)
	}

	flushPendingVol := func() {
		if pendingVol == nil {
			return
		}
		send(*pendingVol)
		pendingVol = nil
	}

	stopVolTimer := func() {
		if volTimer != nil && !volTimer.Stop() {
			select {
			case <-volTimer.C:
			default:
			}
		}
		volTimer = nil
		volTimerCh = nil
	}

	for {
		select {
		case <-ctx.Done():
			flushPendingVol()
			stopVolTimer()
			return

		case <-volTimerCh:
			flushPendingVol()
			stopVolTimer()

		case b, ok := <-src:
			if !ok {
				flushPendingVol()
				stopVolTimer()
				logger.Debug("ws broadcaster stopping (source ended)")
				return
			}

			ev, ok := convertBroadcast(b)
			if !ok {
				continue
			}

			// Latest wins; the timer is not reset by further updates.
			if ev.Type == "volume_changed" {
				copyEv := ev
				pendingVol = &copyEv
				if volTimer == nil {
					volTimer = time.NewTimer(wsVolumeCoalesceWindow)
					volTimerCh = volTimer.C
				}
				continue
			}

			// action_result frames pass the pending volume so bursts of presses
			// still merge. overlay_closed is the last frame and flushes it first.
			if ev.Type == "overlay_closed" {
				flushPendingVol()
				stopVolTimer()
			}
			send(ev)
		}
	}
}

func convertBroadcast(b Broadcast) (wsOutboundEvent, bool) {
	switch ev := b.(type) {
	case BroadcastActionResult:
		data := wsActionResultData{
			Action: ev.Outcome.Action.String(),
			Button: ev.Outcome.ButtonID,
			Result: ev.Outcome.Result.Kind.String(),
			Reason: ev.Outcome.Result.Reason,
		}
		if be, ok := ev.Outcome.Event.(ButtonEvent); ok {
			x, y := be.X, be.Y
			data.X, data.Y = &x, &y
		}
		return wsOutboundEvent{Type: "action_result", Data: data, At: ev.At}, true

	case BroadcastVolumeChanged:
		return wsOutboundEvent{
			Type: "volume_changed",
			Data: wsVolumeChangedData{VolumeDB: ev.VolumeDB},
			At:   ev.At,
		}, true

	case BroadcastOverlayClosed:
		return wsOutboundEvent{Type: "overlay_closed", At: ev.At}, true

	default:
		return wsOutboundEvent{}, false
	}
}
