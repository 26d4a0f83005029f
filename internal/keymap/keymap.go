// Package keymap translates characters and key names into HID keyboard
// usages for a given keyboard layout.
package keymap

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUnmappable = errors.New("keymap: character has no key in layout")
	ErrUnknownKey = errors.New("keymap: unknown key name")
	ErrTooMany    = errors.New("keymap: more than 6 keys in combo")
)

// Modifier bits, identical to the HID report modifier byte.
const (
	ModCtrl   byte = 0x01
	ModShift  byte = 0x02
	ModAlt    byte = 0x04
	ModGUI    byte = 0x08
	ModRCtrl  byte = 0x10
	ModRShift byte = 0x20
	ModRAlt   byte = 0x40
	ModRGUI   byte = 0x80
)

// HID usage IDs (keyboard/keypad page) referenced by name.
const (
	KeyEnter       byte = 0x28
	KeyEscape      byte = 0x29
	KeyBackspace   byte = 0x2A
	KeyTab         byte = 0x2B
	KeySpace       byte = 0x2C
	KeyCapsLock    byte = 0x39
	KeyF1          byte = 0x3A
	KeyPrintScreen byte = 0x46
	KeyScrollLock  byte = 0x47
	KeyPause       byte = 0x48
	KeyInsert      byte = 0x49
	KeyHome        byte = 0x4A
	KeyPageUp      byte = 0x4B
	KeyDelete      byte = 0x4C
	KeyEnd         byte = 0x4D
	KeyPageDown    byte = 0x4E
	KeyRight       byte = 0x4F
	KeyLeft        byte = 0x50
	KeyDown        byte = 0x51
	KeyUp          byte = 0x52
	KeyNumLock     byte = 0x53
	KeyKP1         byte = 0x59
	KeyKP0         byte = 0x62
	KeyMenu        byte = 0x65
)

// Stroke is a single key press: a usage plus the modifiers it needs.
type Stroke struct {
	Modifiers byte
	Key       byte
}

// Layout maps runes to strokes.
type Layout interface {
	Name() string
	Lookup(r rune) (Stroke, bool)
}

type table struct {
	name    string
	strokes map[rune]Stroke
}

func (t *table) Name() string { return t.name }

func (t *table) Lookup(r rune) (Stroke, bool) {
	s, ok := t.strokes[r]
	return s, ok
}

var layouts = map[string]Layout{}

func register(l *table) {
	layouts[l.name] = l
}

// Get returns a registered layout by (case-insensitive) name.
func Get(name string) (Layout, error) {
	l, ok := layouts[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("keymap: unknown layout %q (have %s)", name, strings.Join(Names(), ", "))
	}
	return l, nil
}

// Names lists the registered layouts.
func Names() []string {
	names := make([]string, 0, len(layouts))
	for name := range layouts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Strokes translates text into one stroke per rune.
func Strokes(l Layout, text string) ([]Stroke, error) {
	strokes := make([]Stroke, 0, len(text))
	for _, r := range text {
		s, ok := l.Lookup(r)
		if !ok {
			return nil, fmt.Errorf("%w: %q in layout %s", ErrUnmappable, r, l.Name())
		}
		strokes = append(strokes, s)
	}
	return strokes, nil
}

// KeypadDigit returns the numpad usage for a decimal digit.
func KeypadDigit(d int) byte {
	if d == 0 {
		return KeyKP0
	}
	return KeyKP1 + byte(d-1)
}
