//go:build !linux

package main

import (
	"errors"
	"log/slog"
)

func openVirtualKeyboard(string, string, *slog.Logger) (*virtualKeyboard, error) {
	return nil, errors.New("uinput media keys are only available on linux")
}
