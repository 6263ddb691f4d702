package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// mediaKeyCodes are the keys the virtual keyboard registers.
var mediaKeyCodes = []uint16{KEY_REWIND, KEY_FASTFORWARD, KEY_PLAYPAUSE}

// virtualKeyboard writes media key pairs to a uinput device (or any writer in tests).
type virtualKeyboard struct {
	mu     sync.Mutex
	w      io.WriteCloser
	logger *slog.Logger
}

func newVirtualKeyboard(w io.WriteCloser, logger *slog.Logger) *virtualKeyboard {
	return &virtualKeyboard{w: w, logger: logger}
}

// SendKeyPair emits press, SYN, release, SYN for code. Nothing else is written
// in between: the mutex keeps pairs from interleaving.
func (k *virtualKeyboard) SendKeyPair(code uint16) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.w == nil {
		return fmt.Errorf("virtual keyboard closed")
	}

	if err := writeKeyFrame(k.w, code, evValuePress); err != nil {
		return fmt.Errorf("key %d press: %w", code, err)
	}
	if err := writeKeyFrame(k.w, code, evValueRelease); err != nil {
		return fmt.Errorf("key %d release: %w", code, err)
	}

	k.logger.Debug("media key pair sent", "code", code)
	return nil
}

func (k *virtualKeyboard) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.w == nil {
		return nil
	}
	err := k.w.Close()
	k.w = nil
	return err
}

// writeKeyFrame writes one EV_KEY event followed by SYN_REPORT as a single write.
func writeKeyFrame(w io.Writer, code uint16, value int32) error {
	var buf bytes.Buffer
	frame := []inputEvent{
		{Type: EV_KEY, Code: code, Value: value},
		{Type: EV_SYN, Code: SYN_REPORT, Value: 0},
	}
	if err := binary.Write(&buf, binary.LittleEndian, frame); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}
