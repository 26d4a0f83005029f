// Package task defines the scripted actions the injection processor
// executes and the queue it pulls them from.
package task

import (
	"encoding/hex"
	"fmt"
	"time"
)

// Kind identifies the task variant.
type Kind string

const (
	KindDelay     Kind = "delay"
	KindPress     Kind = "press"
	KindString    Kind = "string"
	KindAltString Kind = "altstring"
	KindMouse     Kind = "mouse"
)

// Task is one scripted action. The set of implementations is closed.
type Task interface {
	Kind() Kind
	String() string
	isTask()
}

// Delay pauses the script.
type Delay struct {
	Duration time.Duration
}

// PressKeys presses a key combination once, e.g. "CTRL ALT DELETE".
type PressKeys struct {
	Combo string
}

// TypeString types text using a keyboard layout. An empty Layout means
// the configured default.
type TypeString struct {
	Text   string
	Layout string
}

// TypeAltString types text using ALT + numpad codes, independent of layout.
type TypeAltString struct {
	Text string
}

// MouseReport replays a captured mouse frame Count times.
type MouseReport struct {
	Capture []byte
	Count   uint32
}

func (Delay) Kind() Kind         { return KindDelay }
func (PressKeys) Kind() Kind     { return KindPress }
func (TypeString) Kind() Kind    { return KindString }
func (TypeAltString) Kind() Kind { return KindAltString }
func (MouseReport) Kind() Kind   { return KindMouse }

func (Delay) isTask()         {}
func (PressKeys) isTask()     {}
func (TypeString) isTask()    {}
func (TypeAltString) isTask() {}
func (MouseReport) isTask()   {}

func (d Delay) String() string     { return fmt.Sprintf("delay %s", d.Duration) }
func (p PressKeys) String() string { return fmt.Sprintf("press %q", p.Combo) }

func (s TypeString) String() string {
	if s.Layout == "" {
		return fmt.Sprintf("string %q", s.Text)
	}
	return fmt.Sprintf("string[%s] %q", s.Layout, s.Text)
}

func (a TypeAltString) String() string { return fmt.Sprintf("altstring %q", a.Text) }

func (m MouseReport) String() string {
	return fmt.Sprintf("mouse %s x%d", hex.EncodeToString(m.Capture), m.Count)
}
