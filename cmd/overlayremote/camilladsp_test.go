package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCamillaDSP is a minimal websocket server speaking the GetVolume/SetVolume
// subset of the CamillaDSP API.
type fakeCamillaDSP struct {
	mu        sync.Mutex
	volume    float64
	setCalls  []float64
	setResult string
}

func (f *fakeCamillaDSP) handler(t *testing.T) http.HandlerFunc {
	up := websocket.Upgrader{}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, f.reply(t, msg)); err != nil {
				return
			}
		}
	}
}

func (f *fakeCamillaDSP) reply(t *testing.T, msg []byte) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()

	var name string
	if json.Unmarshal(msg, &name) == nil && name == "GetVolume" {
		b, _ := json.Marshal(map[string]any{"GetVolume": map[string]any{"result": "Ok", "value": f.volume}})
		return b
	}

	var set struct {
		SetVolume *float64 `json:"SetVolume"`
	}
	if json.Unmarshal(msg, &set) == nil && set.SetVolume != nil {
		result := f.setResult
		if result == "" {
			result = "Ok"
		}
		f.setCalls = append(f.setCalls, *set.SetVolume)
		if result == "Ok" {
			f.volume = *set.SetVolume
		}
		b, _ := json.Marshal(map[string]any{"SetVolume": map[string]any{"result": result}})
		return b
	}

	t.Errorf("unexpected command %s", msg)
	return []byte(`{}`)
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newTestCamillaClient(t *testing.T, url string, opts CamillaDSPOptions) *CamillaDSPClient {
	t.Helper()
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = time.Second
	}
	if opts.MinDB == 0 && opts.MaxDB == 0 {
		opts.MinDB, opts.MaxDB = defaultMinDB, defaultMaxDB
	}
	c, err := NewCamillaDSPClient(url, quietLogger(), opts)
	require.NoError(t, err)
	c.retryAttempts = 2
	c.retryDelay = 10 * time.Millisecond
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNewCamillaDSPClient_RejectsNonWebsocketURL(t *testing.T) {
	_, err := NewCamillaDSPClient("http://127.0.0.1:1234", quietLogger(), CamillaDSPOptions{})
	assert.Error(t, err)

	_, err = NewCamillaDSPClient("::not a url", quietLogger(), CamillaDSPOptions{})
	assert.Error(t, err)
}

func TestCamillaDSP_AdjustVolumeSteps(t *testing.T) {
	fake := &fakeCamillaDSP{volume: -20}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	var shown []float64
	c := newTestCamillaClient(t, wsURL(srv), CamillaDSPOptions{
		StepDB:   2,
		OnVolume: func(db float64) { shown = append(shown, db) },
	})
	require.NoError(t, c.Connect())

	require.NoError(t, c.AdjustVolume(VolumeRaise, true))
	require.NoError(t, c.AdjustVolume(VolumeLower, true))
	require.NoError(t, c.AdjustVolume(VolumeLower, false))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, []float64{-18, -20, -22}, fake.setCalls)
	// Only UI-visible adjustments are reported.
	assert.Equal(t, []float64{-18, -20}, shown)
}

func TestCamillaDSP_AdjustVolumeClamps(t *testing.T) {
	fake := &fakeCamillaDSP{volume: -0.5}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	c := newTestCamillaClient(t, wsURL(srv), CamillaDSPOptions{StepDB: 1, MinDB: -10, MaxDB: 0})

	require.NoError(t, c.AdjustVolume(VolumeRaise, false))
	v, err := c.GetVolume()
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)

	fake.mu.Lock()
	fake.volume = -9.8
	fake.mu.Unlock()

	require.NoError(t, c.AdjustVolume(VolumeLower, false))
	v, err = c.GetVolume()
	require.NoError(t, err)
	assert.Equal(t, -10.0, v)
}

func TestCamillaDSP_SetVolumeErrorResult(t *testing.T) {
	fake := &fakeCamillaDSP{volume: -20, setResult: "Error"}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	c := newTestCamillaClient(t, wsURL(srv), CamillaDSPOptions{})

	err := c.AdjustVolume(VolumeRaise, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Error")
}

func TestCamillaDSP_ForbiddenHandshakeIsPermissionDenied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	c := newTestCamillaClient(t, wsURL(srv), CamillaDSPOptions{})

	err := c.Connect()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPermissionDenied), "got %v", err)

	err = c.AdjustVolume(VolumeRaise, true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPermissionDenied), "got %v", err)

	// Through the dispatcher this surfaces as permission_denied.
	d := NewDispatcher(c, nil, nil, quietLogger())
	assert.Equal(t, ResultPermissionDenied, d.Dispatch(ActionVolumeUp).Kind)
}

func TestCamillaDSP_ConnectGivesUpAfterRetries(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(srv)
	srv.Close()

	c := newTestCamillaClient(t, url, CamillaDSPOptions{})
	err := c.Connect()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
}

func TestCamillaDSP_ReconnectsAfterDrop(t *testing.T) {
	fake := &fakeCamillaDSP{volume: -30}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	c := newTestCamillaClient(t, wsURL(srv), CamillaDSPOptions{})
	require.NoError(t, c.Connect())

	// Simulate a lost connection; the next request dials again.
	require.NoError(t, c.Close())

	v, err := c.GetVolume()
	require.NoError(t, err)
	assert.Equal(t, -30.0, v)
}
