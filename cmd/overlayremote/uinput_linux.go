//go:build linux

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	uinputMaxNameSize = 80
	busVirtual        = 0x06
)

// uinputSetup mirrors struct uinput_setup.
type uinputSetup struct {
	BusType      uint16
	Vendor       uint16
	Product      uint16
	Version      uint16
	Name         [uinputMaxNameSize]byte
	FFEffectsMax uint32
}

var (
	uiSetEvBit   = ioc(iocWrite, 'U', 100, uint32(unsafe.Sizeof(int32(0))))
	uiSetKeyBit  = ioc(iocWrite, 'U', 101, uint32(unsafe.Sizeof(int32(0))))
	uiDevSetup   = ioc(iocWrite, 'U', 3, uint32(unsafe.Sizeof(uinputSetup{})))
	uiDevCreate  = ioc(0, 'U', 1, 0)
	uiDevDestroy = ioc(0, 'U', 2, 0)
)

// uinputDevice owns the /dev/uinput handle and destroys the device on Close.
type uinputDevice struct {
	f *os.File
}

func (d *uinputDevice) Write(p []byte) (int, error) { return d.f.Write(p) }

func (d *uinputDevice) Close() error {
	_ = ioctlNoArg(d.f, uiDevDestroy)
	return d.f.Close()
}

// openVirtualKeyboard creates a uinput keyboard that can emit the media keys.
func openVirtualKeyboard(path, name string, logger *slog.Logger) (*virtualKeyboard, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("open %s: %w: %w", path, ErrPermissionDenied, err)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	if err := setupUinput(f, name); err != nil {
		f.Close()
		return nil, err
	}

	logger.Info("virtual keyboard created", "path", path, "name", name)
	return newVirtualKeyboard(&uinputDevice{f: f}, logger), nil
}

func setupUinput(f *os.File, name string) error {
	if err := ioctlInt(f, uiSetEvBit, EV_KEY); err != nil {
		return fmt.Errorf("UI_SET_EVBIT: %w", err)
	}
	for _, code := range mediaKeyCodes {
		if err := ioctlInt(f, uiSetKeyBit, int(code)); err != nil {
			return fmt.Errorf("UI_SET_KEYBIT %d: %w", code, err)
		}
	}

	setup := uinputSetup{BusType: busVirtual, Vendor: 0x1, Product: 0x1, Version: 1}
	copy(setup.Name[:uinputMaxNameSize-1], name)
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), uiDevSetup, uintptr(unsafe.Pointer(&setup)))
	if errno != 0 {
		return fmt.Errorf("UI_DEV_SETUP: %w", errno)
	}

	if err := ioctlNoArg(f, uiDevCreate); err != nil {
		return fmt.Errorf("UI_DEV_CREATE: %w", err)
	}
	return nil
}

func ioctlInt(f *os.File, req uintptr, v int) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), req, uintptr(v))
	if errno != 0 {
		return errno
	}
	return nil
}

func ioctlNoArg(f *os.File, req uintptr) error {
	return ioctlInt(f, req, 0)
}
