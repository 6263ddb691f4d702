package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// envelope mirrors the daemon's feedback frame.
type envelope struct {
	Type string          `json:"type"`
	Ts   *time.Time      `json:"ts,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type actionResult struct {
	Action string   `json:"action"`
	Button string   `json:"button,omitempty"`
	Result string   `json:"result"`
	Reason string   `json:"reason,omitempty"`
	X      *float64 `json:"x,omitempty"`
	Y      *float64 `json:"y,omitempty"`
}

type volumeChanged struct {
	VolumeDB float64 `json:"volume_db"`
}

func main() {
	var (
		wsURL       = flag.String("ws", "ws://127.0.0.1:3002/ws", "overlayremote feedback websocket URL")
		raw         = flag.Bool("raw", false, "Print frames as received instead of formatting them")
		exitOnClose = flag.Bool("exit-on-close", false, "Exit after the overlay_closed frame")
	)
	flag.Parse()

	u, err := url.Parse(*wsURL)
	if err != nil {
		log.Fatalf("invalid websocket URL: %v", err)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	d := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	log.Printf("connecting to %s...", u.String())
	conn, _, err := d.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("connected! (press Ctrl+C to exit)")

	// Mutex to protect concurrent writes to websocket
	var writeMu sync.Mutex

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	go func() {
		for range pingTicker.C {
			writeMu.Lock()
			err := conn.WriteMessage(websocket.PingMessage, nil)
			writeMu.Unlock()
			if err != nil {
				log.Printf("ping failed: %v", err)
				return
			}
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("websocket error: %v", err)
				}
				return
			}
			// Any traffic proves the daemon is alive.
			conn.SetReadDeadline(time.Now().Add(60 * time.Second))

			if messageType != websocket.TextMessage {
				fmt.Printf("[BINARY] %d bytes\n", len(message))
				continue
			}
			if *raw {
				fmt.Println(string(message))
				continue
			}
			if closed := printFrame(message); closed && *exitOnClose {
				return
			}
		}
	}()

	select {
	case <-sigc:
		log.Printf("shutting down...")
		writeMu.Lock()
		err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		writeMu.Unlock()
		if err != nil {
			log.Printf("error closing connection: %v", err)
		}
	case <-done:
		log.Printf("connection closed")
	}
}

// printFrame formats one feedback frame and reports whether it was overlay_closed.
func printFrame(message []byte) bool {
	var env envelope
	if err := json.Unmarshal(message, &env); err != nil {
		fmt.Printf("[TEXT] %s\n", string(message))
		return false
	}

	ts := ""
	if env.Ts != nil {
		ts = env.Ts.Local().Format("15:04:05.000") + " "
	}

	switch env.Type {
	case "action_result":
		var ar actionResult
		if err := json.Unmarshal(env.Data, &ar); err != nil {
			fmt.Printf("%s[ACTION] malformed: %v\n", ts, err)
			return false
		}
		where := ""
		if ar.X != nil && ar.Y != nil {
			where = fmt.Sprintf(" at (%.0f, %.0f)", *ar.X, *ar.Y)
		}
		reason := ""
		if ar.Reason != "" {
			reason = " - " + ar.Reason
		}
		fmt.Printf("%s[ACTION] %s button=%s%s -> %s%s\n", ts, ar.Action, ar.Button, where, ar.Result, reason)

	case "volume_changed":
		var vc volumeChanged
		if err := json.Unmarshal(env.Data, &vc); err != nil {
			fmt.Printf("%s[VOLUME] malformed: %v\n", ts, err)
			return false
		}
		fmt.Printf("%s[VOLUME] %.2f dB\n", ts, vc.VolumeDB)

	case "overlay_closed":
		fmt.Printf("%s[CLOSED] overlay closed\n", ts)
		return true

	default:
		pretty, _ := json.MarshalIndent(env, "", "  ")
		fmt.Printf("%s[%s]\n%s\n", ts, env.Type, string(pretty))
	}
	return false
}
