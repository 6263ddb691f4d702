package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

const version = "1.0.0"

// feedbackDrain is how long the feedback server keeps running after the
// overlay stopped, so the final overlay_closed frame reaches listeners.
const feedbackDrain = 250 * time.Millisecond

func printVersion() {
	fmt.Printf("overlayremote v%s\n", version)
	fmt.Println("On-screen remote control overlay daemon")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  overlayremote [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Watches pointer presses on an on-screen remote image, maps them to")
	fmt.Println("  buttons by position and performs the button's action: CamillaDSP")
	fmt.Println("  volume steps, media keys through a virtual keyboard, or closing the")
	fmt.Println("  overlay.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        Path to YAML config file (defaults are used when omitted)")
	fmt.Println()
	fmt.Println("  -input-device string")
	fmt.Println("        Pointer input event device (overrides input.devices)")
	fmt.Println()
	fmt.Println("  -tolerance-px float")
	fmt.Printf("        Per-axis tolerance around button centers in pixels (default %.1f)\n", defaultTolerancePx)
	fmt.Println()
	fmt.Println("  -camilladsp-ws-url string")
	fmt.Println("        CamillaDSP websocket URL (default \"ws://127.0.0.1:1234\")")
	fmt.Println()
	fmt.Println("  -camilladsp-step-db float")
	fmt.Printf("        Volume change per press in dB (default %.1f)\n", defaultVolumeStepDB)
	fmt.Println()
	fmt.Println("  -uinput-path string")
	fmt.Println("        uinput device used for media keys (default \"/dev/uinput\")")
	fmt.Println()
	fmt.Println("  -ipc-socket string")
	fmt.Println("        Unix domain socket path for IPC (default \"/tmp/overlayremote.sock\")")
	fmt.Println()
	fmt.Println("  -http-port int")
	fmt.Println("        Feedback websocket/health HTTP port, 0 disables (default 3002)")
	fmt.Println()
	fmt.Println("  -start-delay-ms int")
	fmt.Printf("        Delay before the overlay becomes active (default %d)\n", defaultStartDelayMS)
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println()
	fmt.Println("  -log-format string")
	fmt.Println("        Log format: text, json (default \"text\")")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("  -help")
	fmt.Println("        Print this help message")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Start with a config file")
	fmt.Println("  overlayremote -config /etc/overlayremote.yaml")
	fmt.Println()
	fmt.Println("  # Skip the start delay and debug a specific touchpad")
	fmt.Println("  overlayremote -input-device /dev/input/event3 -start-delay-ms 0 -log-level debug")
	fmt.Println()
	fmt.Println("NOTES:")
	fmt.Println("  - Requires read access to the input device (root or 'input' group)")
	fmt.Println("  - Requires write access to /dev/uinput for media keys")
	fmt.Println("  - CamillaDSP must be running with websocket enabled (-pPORT)")
	fmt.Println()
}

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML config file")

		inputDevice  = flag.String("input-device", "", "Pointer input event device")
		tolerancePx  = flag.Float64("tolerance-px", defaultTolerancePx, "Per-axis tolerance around button centers in pixels")
		camillaWsURL = flag.String("camilladsp-ws-url", "ws://127.0.0.1:1234", "CamillaDSP websocket URL")
		camillaStep  = flag.Float64("camilladsp-step-db", defaultVolumeStepDB, "Volume change per press in dB")
		uinputPath   = flag.String("uinput-path", "/dev/uinput", "uinput device used for media keys")
		ipcSocket    = flag.String("ipc-socket", "/tmp/overlayremote.sock", "Unix domain socket path for IPC")
		httpPort     = flag.Int("http-port", 3002, "Feedback HTTP port (0 disables)")
		startDelayMS = flag.Int("start-delay-ms", defaultStartDelayMS, "Delay before the overlay becomes active in ms")
		logLevelStr  = flag.String("log-level", "info", "Log level: error, warn, info, debug")
		logFormatStr = flag.String("log-format", "text", "Log format: text, json")

		showVersion = flag.Bool("version", false, "Print version and exit")
		showHelp    = flag.Bool("help", false, "Print help message")
	)

	flag.Usage = printUsage
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}
	if *showVersion {
		printVersion()
		return
	}

	cfg := DefaultConfig()
	if *configPath != "" {
		loaded, err := LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Only flags the user actually passed override the file.
	var overrides FlagOverrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "input-device":
			overrides.InputDevice = inputDevice
		case "tolerance-px":
			overrides.TolerancePx = tolerancePx
		case "camilladsp-ws-url":
			overrides.CamillaWsURL = camillaWsURL
		case "camilladsp-step-db":
			overrides.CamillaStep = camillaStep
		case "uinput-path":
			overrides.UinputPath = uinputPath
		case "ipc-socket":
			overrides.IPCSocketPath = ipcSocket
		case "http-port":
			overrides.HTTPPort = httpPort
		case "start-delay-ms":
			overrides.StartDelayMS = startDelayMS
		case "log-level":
			overrides.LogLevel = logLevelStr
		case "log-format":
			overrides.LogFormat = logFormatStr
		}
	})
	overrides.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	// Validate already checked both.
	logLevel, _ := parseLogLevel(cfg.Logging.Level)
	logFormat, _ := parseLogFormat(cfg.Logging.Format)
	logger := setupLogger(os.Stdout, logLevel, logFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("overlayremote stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("overlayremote stopped")
}

// run starts every component and blocks until the overlay closes, a signal
// arrives or a component fails.
func run(ctx context.Context, cfg Config, logger *slog.Logger) error {
	layout, err := cfg.ToButtonLayout()
	if err != nil {
		return fmt.Errorf("layout: %w", err)
	}

	logger.Debug("starting overlayremote", "version", version)
	logger.Debug("configuration",
		"devices", cfg.Input.Devices,
		"screen_width", cfg.Input.ScreenWidth,
		"screen_height", cfg.Input.ScreenHeight,
		"tolerance_px", cfg.Layout.TolerancePx,
		"buttons", layout.Len(),
		"camilladsp_enabled", cfg.CamillaDSP.Enabled,
		"camilladsp_ws_url", cfg.CamillaDSP.WsURL,
		"media_keys_enabled", cfg.MediaKeys.Enabled,
		"ipc_socket", cfg.IPC.SocketPath,
		"http_port", cfg.HTTP.Port,
		"start_delay_ms", cfg.Startup.DelayMS)

	if err := waitStartDelay(ctx, cfg.StartDelay(), logger); err != nil {
		return nil // interrupted before the overlay came up
	}

	files, err := openInputDevices(cfg.Input, logger)
	if err != nil {
		return err
	}
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()
	trackers := newTrackers(files, cfg.Input, logger)

	// The feedback side outlives the overlay by feedbackDrain.
	feedbackCtx, cancelFeedback := context.WithCancel(context.Background())
	defer cancelFeedback()

	overlayCtx, cancelOverlay := context.WithCancel(ctx)
	defer cancelOverlay()

	feedback := make(chan Broadcast, 64)

	var volume VolumeControl
	if cfg.CamillaDSP.Enabled {
		client, err := NewCamillaDSPClient(cfg.CamillaDSP.WsURL, logger, CamillaDSPOptions{
			ReadTimeout: time.Duration(cfg.CamillaDSP.TimeoutMS) * time.Millisecond,
			StepDB:      cfg.CamillaDSP.StepDB,
			MinDB:       cfg.CamillaDSP.MinDB,
			MaxDB:       cfg.CamillaDSP.MaxDB,
			OnVolume: func(db float64) {
				publish(feedback, BroadcastVolumeChanged{VolumeDB: db, At: time.Now()}, logger)
			},
		})
		if err != nil {
			return fmt.Errorf("camilladsp: %w", err)
		}
		defer client.Close()

		// Not fatal: each volume press retries the connection.
		if err := client.Connect(); err != nil {
			logger.Warn("CamillaDSP not reachable yet", "url", cfg.CamillaDSP.WsURL, "error", err)
		}
		volume = client
	}

	var keys MediaKeySink
	if cfg.MediaKeys.Enabled {
		kb, err := openVirtualKeyboard(cfg.MediaKeys.UinputPath, cfg.MediaKeys.DeviceName, logger)
		if err != nil {
			logger.Warn("media keys unavailable", "path", cfg.MediaKeys.UinputPath, "error", err,
				"tip", "run as root or grant write access to uinput")
		} else {
			defer kb.Close()
			keys = kb
		}
	}

	lifecycle := newOverlayLifecycle(cancelOverlay, func() {
		publish(feedback, BroadcastOverlayClosed{At: time.Now()}, logger)
	}, logger)

	dispatcher := NewDispatcher(volume, keys, lifecycle, logger)
	engine := NewEngine(layout, cfg.Tolerance(), dispatcher, logger)

	requests := make(chan Request, 64)

	var feedbackServer *FeedbackServer
	fg, fctx := errgroup.WithContext(feedbackCtx)
	if cfg.HTTP.Port > 0 {
		feedbackServer = NewFeedbackServer(logger, HubConfig{})
		hub := feedbackServer.Hub()
		fg.Go(func() error {
			hub.Run(fctx)
			return nil
		})
		fg.Go(func() error {
			RunBroadcaster(fctx, hub, feedback, logger)
			return nil
		})
		fg.Go(func() error {
			return runHTTPServer(fctx, cfg.HTTP.Port, newHTTPMux(feedbackServer), logger)
		})
	} else {
		// Nothing listens; keep the queue from filling up.
		fg.Go(func() error {
			for {
				select {
				case <-fctx.Done():
					return nil
				case <-feedback:
				}
			}
		})
	}

	g, gctx := errgroup.WithContext(overlayCtx)
	g.Go(func() error {
		runDaemon(gctx, requests, engine, feedback, logger)
		return nil
	})
	g.Go(func() error {
		return runIPCServer(gctx, cfg.IPC.SocketPath, requests, logger)
	})
	g.Go(func() error {
		return pumpInput(gctx, files, trackers, requests, logger)
	})

	logger.Info("overlay active",
		"devices", cfg.Input.Devices,
		"ipc", cfg.IPC.SocketPath,
		"http_port", cfg.HTTP.Port)

	err = g.Wait()

	// Give the broadcaster a moment to push overlay_closed before the
	// feedback server goes away.
	select {
	case <-time.After(feedbackDrain):
	case <-fctx.Done():
	}
	cancelFeedback()
	if ferr := fg.Wait(); ferr != nil && err == nil {
		err = ferr
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func openInputDevices(in InputConfig, logger *slog.Logger) ([]*os.File, error) {
	files := make([]*os.File, 0, len(in.Devices))
	for _, path := range in.Devices {
		f, err := os.Open(path)
		if err != nil {
			for _, opened := range files {
				_ = opened.Close()
			}
			logger.Error("failed to open input device", "device", path, "error", err,
				"tip", "run as root or add user to 'input' group")
			return nil, fmt.Errorf("open input device %s: %w", path, err)
		}
		files = append(files, f)
	}
	return files, nil
}

// newTrackers builds one pointerTracker per device, keyed by device path.
func newTrackers(files []*os.File, in InputConfig, logger *slog.Logger) map[string]*pointerTracker {
	trackers := make(map[string]*pointerTracker, len(files))
	for _, f := range files {
		var absX, absY axisRange
		if in.ScaleAbs {
			var err error
			if absX, err = queryAbsRange(f, ABS_X); err != nil {
				logger.Debug("no absolute X axis", "device", f.Name(), "error", err)
			}
			if absY, err = queryAbsRange(f, ABS_Y); err != nil {
				logger.Debug("no absolute Y axis", "device", f.Name(), "error", err)
			}
		}
		trackers[f.Name()] = newPointerTracker(f.Name(), in.ScreenWidth, in.ScreenHeight, absX, absY)
	}
	return trackers
}

// pumpInput turns raw device events into button requests for the daemon.
// The reader goroutine is not tied to ctx; it ends when the files are closed.
func pumpInput(
	ctx context.Context,
	files []*os.File,
	trackers map[string]*pointerTracker,
	requests chan<- Request,
	logger *slog.Logger,
) error {
	events := make(chan deviceEvent, 64)
	readErr := make(chan error, 1)
	go readDevices(files, events, readErr)

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-readErr:
			logger.Error("input reader stopped", "error", err)
			return fmt.Errorf("input reader: %w", err)

		case ev := <-events:
			tr, ok := trackers[ev.Device]
			if !ok {
				continue
			}
			for _, be := range tr.Feed(ev.inputEvent) {
				logger.Debug("button event", "device", be.Device, "x", be.X, "y", be.Y,
					"source", be.Source.String(), "phase", be.Phase.String())
				select {
				case requests <- Request{Event: be}:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}
