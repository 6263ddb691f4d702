package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration for the overlayremote daemon.
//
// Defaults and validation live here so the rest of the code can assume a
// well-formed config.
type Config struct {
	Input      InputConfig      `yaml:"input"`
	Layout     LayoutConfig     `yaml:"layout"`
	CamillaDSP CamillaDSPConfig `yaml:"camilladsp"`
	MediaKeys  MediaKeysConfig  `yaml:"media_keys"`
	IPC        IPCConfig        `yaml:"ipc"`
	HTTP       HTTPConfig       `yaml:"http"`
	Startup    StartupConfig    `yaml:"startup"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type InputConfig struct {
	Devices []string `yaml:"devices"` // evdev nodes of the pointing device(s)

	// Screen size in the layout's coordinate space. Relative motion is clamped
	// to it and absolute axes are rescaled onto it when ScaleAbs is set.
	ScreenWidth  int  `yaml:"screen_width"`
	ScreenHeight int  `yaml:"screen_height"`
	ScaleAbs     bool `yaml:"scale_abs"`
}

type LayoutConfig struct {
	TolerancePx float64        `yaml:"tolerance_px"`
	Buttons     []ButtonConfig `yaml:"buttons"`
}

// ButtonConfig is one row of the button table. Order in the file is priority.
type ButtonConfig struct {
	ID     string  `yaml:"id"`
	Action string  `yaml:"action"`
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
}

type CamillaDSPConfig struct {
	Enabled   bool    `yaml:"enabled"`
	WsURL     string  `yaml:"ws_url"`
	TimeoutMS int     `yaml:"timeout_ms"`
	StepDB    float64 `yaml:"step_db"`
	MinDB     float64 `yaml:"min_db"`
	MaxDB     float64 `yaml:"max_db"`
}

type MediaKeysConfig struct {
	Enabled    bool   `yaml:"enabled"`
	UinputPath string `yaml:"uinput_path"`
	DeviceName string `yaml:"device_name"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type HTTPConfig struct {
	Port int `yaml:"port"` // 0 disables the feedback server
}

type StartupConfig struct {
	DelayMS int `yaml:"delay_ms"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text|json
}

// DefaultConfig returns a fully-populated Config with defaults.
func DefaultConfig() Config {
	buttons := defaultButtons()
	rows := make([]ButtonConfig, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, ButtonConfig{ID: b.ID, Action: b.Action.String(), X: b.X, Y: b.Y})
	}

	return Config{
		Input: InputConfig{
			Devices:      []string{"/dev/input/event0"},
			ScreenWidth:  defaultScreenWidth,
			ScreenHeight: defaultScreenHeight,
		},
		Layout: LayoutConfig{
			TolerancePx: defaultTolerancePx,
			Buttons:     rows,
		},
		CamillaDSP: CamillaDSPConfig{
			Enabled:   true,
			WsURL:     "ws://127.0.0.1:1234",
			TimeoutMS: defaultReadTimeoutMS,
			StepDB:    defaultVolumeStepDB,
			MinDB:     defaultMinDB,
			MaxDB:     defaultMaxDB,
		},
		MediaKeys: MediaKeysConfig{
			Enabled:    true,
			UinputPath: "/dev/uinput",
			DeviceName: "overlayremote media keys",
		},
		IPC: IPCConfig{
			SocketPath: "/tmp/overlayremote.sock",
		},
		HTTP: HTTPConfig{
			Port: 3002,
		},
		Startup: StartupConfig{
			DelayMS: defaultStartDelayMS,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfigFile reads and parses a YAML config file on top of the defaults.
//
// Unknown fields are rejected (helps catch typos). A buttons list in the file
// replaces the default table entirely.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return parseConfig(b)
}

func parseConfig(b []byte) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return cfg, nil // empty file
		}
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace/comments are allowed after the document.
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides holds command-line overrides. Each non-nil pointer is applied
// on top of the loaded config, even if it holds a zero value.
type FlagOverrides struct {
	InputDevice *string
	TolerancePx *float64

	CamillaWsURL *string
	CamillaStep  *float64

	UinputPath *string

	IPCSocketPath *string
	HTTPPort      *int
	StartDelayMS  *int

	LogLevel  *string
	LogFormat *string
}

// Apply merges the overrides into cfg.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.InputDevice != nil {
		cfg.Input.Devices = []string{*o.InputDevice}
	}
	if o.TolerancePx != nil {
		cfg.Layout.TolerancePx = *o.TolerancePx
	}
	if o.CamillaWsURL != nil {
		cfg.CamillaDSP.WsURL = *o.CamillaWsURL
	}
	if o.CamillaStep != nil {
		cfg.CamillaDSP.StepDB = *o.CamillaStep
	}
	if o.UinputPath != nil {
		cfg.MediaKeys.UinputPath = *o.UinputPath
	}
	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.HTTPPort != nil {
		cfg.HTTP.Port = *o.HTTPPort
	}
	if o.StartDelayMS != nil {
		cfg.Startup.DelayMS = *o.StartDelayMS
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
	if o.LogFormat != nil {
		cfg.Logging.Format = *o.LogFormat
	}
}

// Validate checks config invariants and returns a user-friendly error.
// This is intended to be called after defaults + file + overrides are applied.
func (c *Config) Validate() error {
	if len(c.Input.Devices) == 0 {
		return errors.New("input.devices must not be empty")
	}
	for i, dev := range c.Input.Devices {
		if dev == "" {
			return fmt.Errorf("input.devices[%d] is empty", i)
		}
	}
	if c.Input.ScreenWidth <= 0 || c.Input.ScreenHeight <= 0 {
		return errors.New("input.screen_width and input.screen_height must be > 0")
	}

	if c.Layout.TolerancePx <= 0 {
		return fmt.Errorf("layout.tolerance_px: %w", errNonPositiveTolerance)
	}
	if len(c.Layout.Buttons) == 0 {
		return errors.New("layout.buttons must not be empty")
	}
	if _, err := c.ToButtonLayout(); err != nil {
		return fmt.Errorf("layout.buttons: %w", err)
	}

	if c.CamillaDSP.Enabled {
		if c.CamillaDSP.WsURL == "" {
			return errors.New("camilladsp.ws_url must not be empty")
		}
		if c.CamillaDSP.TimeoutMS <= 0 {
			return errors.New("camilladsp.timeout_ms must be > 0")
		}
		if c.CamillaDSP.StepDB <= 0 {
			return errors.New("camilladsp.step_db must be > 0")
		}
		if c.CamillaDSP.MinDB > c.CamillaDSP.MaxDB {
			return errors.New("camilladsp.min_db must be <= camilladsp.max_db")
		}
	}

	if c.MediaKeys.Enabled && c.MediaKeys.UinputPath == "" {
		return errors.New("media_keys.uinput_path must not be empty")
	}

	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return errors.New("http.port must be between 0 and 65535")
	}
	if c.Startup.DelayMS < 0 {
		return errors.New("startup.delay_ms must be >= 0")
	}

	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if _, err := parseLogFormat(c.Logging.Format); err != nil {
		return fmt.Errorf("logging.format: %w", err)
	}

	return nil
}

// ToButtonLayout converts the configured button rows into the resolver's table.
func (c *Config) ToButtonLayout() (ButtonLayout, error) {
	buttons := make([]Button, 0, len(c.Layout.Buttons))
	for i, row := range c.Layout.Buttons {
		action, err := ParseRemoteAction(row.Action)
		if err != nil {
			return ButtonLayout{}, fmt.Errorf("button[%d]: %w", i, err)
		}
		buttons = append(buttons, Button{ID: row.ID, Action: action, X: row.X, Y: row.Y})
	}
	return NewButtonLayout(buttons)
}

func (c *Config) Tolerance() ToleranceWindow { return ToleranceWindow(c.Layout.TolerancePx) }

func (c *Config) StartDelay() time.Duration {
	return time.Duration(c.Startup.DelayMS) * time.Millisecond
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" || p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
