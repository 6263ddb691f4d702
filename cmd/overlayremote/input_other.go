//go:build !linux

package main

import (
	"errors"
	"fmt"
	"os"
)

// readDevices starts one reader goroutine per device.
func readDevices(files []*os.File, events chan<- deviceEvent, readErr chan<- error) {
	if len(files) == 0 {
		readErr <- fmt.Errorf("no input devices provided")
		return
	}
	for _, f := range files {
		go readInputEvents(f, events, readErr)
	}
}

func queryAbsRange(*os.File, int) (axisRange, error) {
	return axisRange{}, errors.New("EVIOCGABS is only available on linux")
}
