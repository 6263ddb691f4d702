package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// CamillaDSPClient manages WebSocket communication with CamillaDSP and
// implements VolumeControl on top of the Main fader.
type CamillaDSPClient struct {
	mu          sync.Mutex
	conn        *websocket.Conn
	url         string
	logger      *slog.Logger
	readTimeout time.Duration

	stepDB float64
	minDB  float64
	maxDB  float64

	// onVolume is called with the new volume after a UI-visible adjustment.
	onVolume func(volumeDB float64)

	retryAttempts int
	retryDelay    time.Duration
}

// CamillaDSPOptions configures the volume behaviour of the client.
type CamillaDSPOptions struct {
	ReadTimeout time.Duration
	StepDB      float64
	MinDB       float64
	MaxDB       float64
	OnVolume    func(volumeDB float64)
}

// NewCamillaDSPClient validates the URL and prepares a client. Call Connect to
// establish the initial connection; requests reconnect lazily.
func NewCamillaDSPClient(wsURL string, logger *slog.Logger, opts CamillaDSPOptions) (*CamillaDSPClient, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("invalid websocket URL %q: scheme must be ws or wss", wsURL)
	}

	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeoutMS * time.Millisecond
	}
	step := opts.StepDB
	if step <= 0 {
		step = defaultVolumeStepDB
	}

	return &CamillaDSPClient{
		url:           wsURL,
		logger:        logger,
		readTimeout:   readTimeout,
		stepDB:        step,
		minDB:         opts.MinDB,
		maxDB:         opts.MaxDB,
		onVolume:      opts.OnVolume,
		retryAttempts: 10,
		retryDelay:    500 * time.Millisecond,
	}, nil
}

// connect establishes a WebSocket connection to CamillaDSP
func (c *CamillaDSPClient) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	d := websocket.Dialer{
		HandshakeTimeout: 2 * time.Second,
	}

	conn, resp, err := d.Dial(c.url, nil)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return fmt.Errorf("camilladsp handshake: %s: %w", resp.Status, ErrPermissionDenied)
		}
		return err
	}

	c.conn = conn
	return nil
}

// Connect attempts the initial connection, retrying a bounded number of times.
// Permission failures are returned immediately.
func (c *CamillaDSPClient) Connect() error {
	var lastErr error
	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		err := c.connect()
		if err == nil {
			c.logger.Info("connected to CamillaDSP", "url", c.url)
			return nil
		}
		if errors.Is(err, ErrPermissionDenied) {
			return err
		}
		lastErr = err
		c.logger.Warn("connection failed; retrying...", "error", err, "attempt", attempt+1)
		time.Sleep(c.retryDelay)
	}
	return fmt.Errorf("failed to connect after %d attempts: %w", c.retryAttempts, lastErr)
}

// ensureConnected makes a single reconnect attempt if the connection was lost.
// Requests are never retried beyond that.
func (c *CamillaDSPClient) ensureConnected() error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	c.logger.Warn("connection lost; reconnecting...")
	return c.connect()
}

// sendAndRead sends a message and waits for a response
func (c *CamillaDSPClient) sendAndRead(v any) ([]byte, error) {
	if err := c.ensureConnected(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, fmt.Errorf("no websocket connection")
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal command: %w", err)
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.conn.Close()
		c.conn = nil // Mark connection as broken
		return nil, err
	}

	c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	defer func() {
		if c.conn != nil {
			c.conn.SetReadDeadline(time.Time{})
		}
	}()

	_, message, err := c.conn.ReadMessage()
	if err != nil {
		c.conn.Close()
		c.conn = nil
		return nil, err
	}

	return message, nil
}

// Close closes the WebSocket connection
func (c *CamillaDSPClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	return nil
}

// SetVolume sends a SetVolume command to CamillaDSP and returns the target volume
func (c *CamillaDSPClient) SetVolume(targetDB float64) (float64, error) {
	response, err := c.sendAndRead(map[string]any{"SetVolume": targetDB})
	if err != nil {
		return 0, fmt.Errorf("set volume: %w", err)
	}

	var setResp struct {
		SetVolume struct {
			Result string `json:"result"`
		} `json:"SetVolume"`
	}

	if err := json.Unmarshal(response, &setResp); err != nil {
		c.logger.Warn("failed to parse SetVolume response", "error", err)
		return targetDB, nil // Assume success
	}
	if setResp.SetVolume.Result != "" && setResp.SetVolume.Result != "Ok" {
		return 0, fmt.Errorf("set volume: camilladsp result %q", setResp.SetVolume.Result)
	}

	c.logger.Debug("SetVolume", "target_db", targetDB, "result", setResp.SetVolume.Result)

	return targetDB, nil
}

// GetVolume queries CamillaDSP for the current volume
func (c *CamillaDSPClient) GetVolume() (float64, error) {
	response, err := c.sendAndRead("GetVolume")
	if err != nil {
		return 0, fmt.Errorf("get volume: %w", err)
	}

	var volResp struct {
		GetVolume struct {
			Result string  `json:"result"`
			Value  float64 `json:"value"`
		} `json:"GetVolume"`
	}

	if err := json.Unmarshal(response, &volResp); err != nil {
		return 0, fmt.Errorf("parse GetVolume response: %w", err)
	}
	if volResp.GetVolume.Result != "" && volResp.GetVolume.Result != "Ok" {
		return 0, fmt.Errorf("get volume: camilladsp result %q", volResp.GetVolume.Result)
	}

	c.logger.Debug("GetVolume", "volume_db", volResp.GetVolume.Value)

	return volResp.GetVolume.Value, nil
}

// AdjustVolume moves the Main fader one step in dir, clamped to [minDB, maxDB].
func (c *CamillaDSPClient) AdjustVolume(dir VolumeDirection, showUI bool) error {
	current, err := c.GetVolume()
	if err != nil {
		return fmt.Errorf("adjust volume: %w", err)
	}

	target := clamp(current+float64(dir)*c.stepDB, c.minDB, c.maxDB)
	vol, err := c.SetVolume(target)
	if err != nil {
		return fmt.Errorf("adjust volume: %w", err)
	}

	c.logger.Debug("volume adjusted", "direction", dir.String(), "from_db", current, "to_db", vol)
	if showUI && c.onVolume != nil {
		c.onVolume(vol)
	}
	return nil
}
