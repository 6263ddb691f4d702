package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli"
)

// ============================================================================
// overlayremote-ctl - Command-line IPC Client
// ============================================================================
// Sends button presses or named actions to the overlayremote daemon and
// prints what the daemon did with them.
//
// Usage:
//   overlayremote-ctl press 185 605
//   overlayremote-ctl press --source touch 185 605
//   overlayremote-ctl action play_pause
//   overlayremote-ctl --socket /run/overlayremote.sock action close_overlay
// ============================================================================

// Wire types (duplicated from the daemon package for a standalone binary)

// EventEnvelope wraps events for JSON
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type buttonData struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Source string  `json:"source,omitempty"`
	Phase  string  `json:"phase,omitempty"`
}

type actionData struct {
	Action string `json:"action"`
}

// IPCResponse represents the daemon's response
type IPCResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Action string `json:"action,omitempty"`
	Button string `json:"button,omitempty"`
	Result string `json:"result,omitempty"`
	Reason string `json:"reason,omitempty"`
}

var knownActions = []string{
	"volume_up",
	"volume_down",
	"rewind",
	"fast_forward",
	"play_pause",
	"close_overlay",
}

const dialTimeout = 3 * time.Second

func main() {
	app := cli.NewApp()
	app.Name = "overlayremote-ctl"
	app.Usage = "send button presses and actions to the overlayremote daemon"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "socket",
			Usage:  "Unix domain socket path of the daemon",
			Value:  "/tmp/overlayremote.sock",
			EnvVar: "OVERLAYREMOTE_SOCKET",
		},
		cli.BoolFlag{
			Name:  "json",
			Usage: "Print the raw daemon response as JSON",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:      "press",
			Usage:     "inject a press at screen coordinates",
			ArgsUsage: "X Y",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "source",
					Usage: "input source: pointer, touch or other",
					Value: "pointer",
				},
				cli.BoolFlag{
					Name:  "release",
					Usage: "send a release instead of a press",
				},
			},
			Action: runPress,
		},
		{
			Name:      "action",
			Usage:     "perform a named action directly",
			ArgsUsage: "NAME",
			Action:    runAction,
		},
		{
			Name:  "actions",
			Usage: "list the action names the daemon understands",
			Action: func(c *cli.Context) error {
				for _, a := range knownActions {
					fmt.Println(a)
				}
				return nil
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("overlayremote-ctl failed", "error", err)
		os.Exit(1)
	}
}

func runPress(c *cli.Context) error {
	if c.NArg() != 2 {
		cli.ShowCommandHelp(c, "press")
		return errors.New("press requires X and Y")
	}
	x, err := strconv.ParseFloat(c.Args().Get(0), 64)
	if err != nil {
		return fmt.Errorf("invalid X %q: %w", c.Args().Get(0), err)
	}
	y, err := strconv.ParseFloat(c.Args().Get(1), 64)
	if err != nil {
		return fmt.Errorf("invalid Y %q: %w", c.Args().Get(1), err)
	}

	phase := "press"
	if c.Bool("release") {
		phase = "release"
	}

	data, err := json.Marshal(buttonData{X: x, Y: y, Source: c.String("source"), Phase: phase})
	if err != nil {
		return err
	}
	return send(c, EventEnvelope{Type: "button", Data: data})
}

func runAction(c *cli.Context) error {
	if c.NArg() != 1 {
		cli.ShowCommandHelp(c, "action")
		return errors.New("action requires a NAME")
	}
	name := strings.ToLower(c.Args().First())

	data, err := json.Marshal(actionData{Action: name})
	if err != nil {
		return err
	}
	return send(c, EventEnvelope{Type: "action", Data: data})
}

func send(c *cli.Context, env EventEnvelope) error {
	resp, err := sendIPCEnvelope(c.GlobalString("socket"), env)
	if err != nil {
		return err
	}

	if c.GlobalBool("json") {
		out, _ := json.Marshal(resp)
		fmt.Println(string(out))
	} else {
		printResponse(resp)
	}

	if resp.Status != "ok" {
		return fmt.Errorf("daemon error: %s", resp.Error)
	}
	return nil
}

func printResponse(resp IPCResponse) {
	if resp.Status != "ok" {
		return
	}
	if resp.Action == "" {
		fmt.Printf("no button hit (%s)\n", resp.Result)
		return
	}
	line := resp.Action
	if resp.Button != "" {
		line += fmt.Sprintf(" [%s]", resp.Button)
	}
	line += ": " + resp.Result
	if resp.Reason != "" {
		line += " (" + resp.Reason + ")"
	}
	fmt.Println(line)
}

// sendIPCEnvelope sends one line-delimited JSON envelope and reads the reply.
func sendIPCEnvelope(socketPath string, env EventEnvelope) (IPCResponse, error) {
	conn, err := net.DialTimeout("unix", socketPath, dialTimeout)
	if err != nil {
		return IPCResponse{}, fmt.Errorf("connect to daemon at %s: %w", socketPath, err)
	}
	defer conn.Close()

	payload, err := json.Marshal(env)
	if err != nil {
		return IPCResponse{}, fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(conn, "%s\n", payload); err != nil {
		return IPCResponse{}, fmt.Errorf("send event: %w", err)
	}

	var resp IPCResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return IPCResponse{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}
