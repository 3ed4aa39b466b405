// Package serialport opens the serial line a pwmproto server or
// console listens on.
package serialport

import (
	"errors"
	"io"
	"runtime"

	"github.com/tarm/serial"
)

const DefaultBaud = 115200

// Open opens dev at the given baud rate, 0 meaning DefaultBaud. An
// empty dev tries the usual devices of the platform.
func Open(dev string, baud int) (io.ReadWriteCloser, error) {
	if baud == 0 {
		baud = DefaultBaud
	}
	devices := candidates(dev, runtime.GOOS)
	if len(devices) == 0 {
		return nil, errors.New("serialport: no device specified")
	}
	var firstErr error
	for _, dev := range devices {
		c := &serial.Config{Name: dev, Baud: baud}
		s, err := serial.OpenPort(c)
		if err == nil {
			return s, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

func candidates(dev, goos string) []string {
	if dev != "" {
		return []string{dev}
	}
	switch goos {
	case "windows":
		return []string{"COM3"}
	case "linux":
		// The primary UART alias first, then the PL011 and USB adapters.
		return []string{"/dev/serial0", "/dev/ttyAMA0", "/dev/ttyUSB0"}
	}
	return nil
}
