// Package input writes HID reports to the host through a USB gadget and
// reports the host's side of the conversation (LED output reports).
package input

import (
	"errors"

	"hidject/internal/inject"
)

var (
	// ErrBusy means the previous report has not been consumed by the host yet.
	ErrBusy = errors.New("input: HID endpoint busy")
	// ErrUnsupported is returned on platforms without a HID gadget.
	ErrUnsupported = errors.New("input: USB HID gadget not supported on this platform")
)

// Config names the gadget device nodes.
type Config struct {
	KeyboardDevice string
	MouseDevice    string
	// WatchLEDs reads LED output reports from the keyboard device.
	WatchLEDs bool
}

// LED bits of the keyboard output report.
const (
	LEDNumLock    byte = 0x01
	LEDCapsLock   byte = 0x02
	LEDScrollLock byte = 0x04
)

// EventFunc receives gadget events. It is called from the writing goroutine
// and from the LED reader, so it must hand the event off without blocking.
type EventFunc func(ev inject.USBEvent)
