package main

// Linux input event types and codes (from <linux/input-event-codes.h>)
const (
	EV_SYN = 0x00
	EV_KEY = 0x01
	EV_REL = 0x02
	EV_ABS = 0x03

	SYN_REPORT = 0x00

	REL_X = 0x00
	REL_Y = 0x01

	ABS_X = 0x00
	ABS_Y = 0x01

	BTN_LEFT   = 0x110
	BTN_RIGHT  = 0x111
	BTN_MIDDLE = 0x112
	BTN_TOUCH  = 0x14a

	KEY_VOLUMEDOWN  = 114
	KEY_VOLUMEUP    = 115
	KEY_PLAYPAUSE   = 164
	KEY_REWIND      = 168
	KEY_FASTFORWARD = 208
)

// Input event value constants
const (
	evValueRelease = 0
	evValuePress   = 1
	evValueRepeat  = 2
)

const (
	defaultTolerancePx   = 30.0  // Per-axis hit slack in screen pixels
	defaultStartDelayMS  = 10000 // Deferred start before devices are opened (ms)
	defaultReadTimeoutMS = 500   // Default timeout for reading websocket responses (ms)
	defaultVolumeStepDB  = 1.0   // One volume_up/volume_down press (dB)
	defaultMinDB         = -65.0
	defaultMaxDB         = 0.0
	defaultScreenWidth   = 1920
	defaultScreenHeight  = 1080

	// IPC callers wait at most this long for the daemon to hand back an outcome.
	ipcReplyTimeoutMS = 2000
)
