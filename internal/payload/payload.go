// Package payload turns a task into the sequence of frames that injects it.
package payload

import (
	"errors"
	"fmt"

	"hidject/internal/keymap"
	"hidject/internal/protocol"
	"hidject/internal/task"
)

// ErrExhausted marks the end of a provider's frame sequence. It is a task
// boundary, not a failure.
var ErrExhausted = errors.New("payload: provider exhausted")

// Provider produces the frames of one task. Next returns ErrExhausted after
// the last frame; Reset rewinds the cursor.
type Provider interface {
	Next() (protocol.Frame, error)
	Reset()
}

// Target describes where frames go: the USB gadget or a radio receiver of
// the given family.
type Target struct {
	USB     bool
	Variant protocol.Variant
	Pipe    uint8
}

func (t Target) String() string {
	if t.USB {
		return "usb"
	}
	return fmt.Sprintf("radio/%s", t.Variant)
}

func (t Target) keyboard(r protocol.KeyboardReport) (protocol.Frame, error) {
	if t.USB {
		return protocol.Frame{Data: protocol.EncodeUSBKeyboard(r)}, nil
	}
	data, err := protocol.EncodeKeyboard(t.Variant, r)
	if err != nil {
		return protocol.Frame{}, err
	}
	return protocol.Frame{Data: data, Pipe: t.Pipe}, nil
}

func (t Target) mouse(a protocol.MouseAction) (protocol.Frame, error) {
	if t.USB {
		return protocol.Frame{Data: protocol.EncodeUSBMouse(a)}, nil
	}
	data, err := protocol.EncodeMouse(t.Variant, a)
	if err != nil {
		return protocol.Frame{}, err
	}
	return protocol.Frame{Data: data, Pipe: t.Pipe}, nil
}

// ForTask builds the provider for t. Delay tasks have no provider and
// return (nil, nil). On error the provider is a nil interface. defaultLayout applies to strings and combos that
// don't name a layout.
func ForTask(t task.Task, target Target, defaultLayout string) (Provider, error) {
	switch v := t.(type) {
	case task.Delay:
		return nil, nil
	case task.PressKeys:
		layout, err := keymap.Get(defaultLayout)
		if err != nil {
			return nil, err
		}
		p, err := NewPress(target, layout, v.Combo)
		if err != nil {
			return nil, err
		}
		return p, nil
	case task.TypeString:
		name := v.Layout
		if name == "" {
			name = defaultLayout
		}
		layout, err := keymap.Get(name)
		if err != nil {
			return nil, err
		}
		p, err := NewString(target, layout, v.Text)
		if err != nil {
			return nil, err
		}
		return p, nil
	case task.TypeAltString:
		p, err := NewAltString(target, v.Text)
		if err != nil {
			return nil, err
		}
		return p, nil
	case task.MouseReport:
		action, err := protocol.DecodeMouse(target.Variant, v.Capture)
		if err != nil {
			return nil, err
		}
		p, err := NewMouse(target, action, v.Count)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("payload: no provider for %T", t)
	}
}
