package task

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrUnknownKind = errors.New("task: unknown kind")

// envelope is the JSON form of a task, shared by the store, the HTTP API
// and the CLI.
type envelope struct {
	Kind     Kind   `json:"kind"`
	Duration string `json:"duration,omitempty"`
	Combo    string `json:"combo,omitempty"`
	Text     string `json:"text,omitempty"`
	Layout   string `json:"layout,omitempty"`
	Capture  string `json:"capture,omitempty"`
	Count    uint32 `json:"count,omitempty"`
}

// Marshal encodes a task as JSON.
func Marshal(t Task) ([]byte, error) {
	var e envelope
	switch v := t.(type) {
	case Delay:
		e = envelope{Kind: KindDelay, Duration: v.Duration.String()}
	case PressKeys:
		e = envelope{Kind: KindPress, Combo: v.Combo}
	case TypeString:
		e = envelope{Kind: KindString, Text: v.Text, Layout: v.Layout}
	case TypeAltString:
		e = envelope{Kind: KindAltString, Text: v.Text}
	case MouseReport:
		e = envelope{Kind: KindMouse, Capture: hex.EncodeToString(v.Capture), Count: v.Count}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownKind, t)
	}
	return json.Marshal(e)
}

// Unmarshal decodes a task from its JSON form.
func Unmarshal(data []byte) (Task, error) {
	var e envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("task: decode: %w", err)
	}

	switch e.Kind {
	case KindDelay:
		d, err := time.ParseDuration(e.Duration)
		if err != nil {
			return nil, fmt.Errorf("task: delay: %w", err)
		}
		if d < 0 {
			return nil, fmt.Errorf("task: negative delay %s", d)
		}
		return Delay{Duration: d}, nil
	case KindPress:
		return PressKeys{Combo: e.Combo}, nil
	case KindString:
		return TypeString{Text: e.Text, Layout: e.Layout}, nil
	case KindAltString:
		return TypeAltString{Text: e.Text}, nil
	case KindMouse:
		capture, err := hex.DecodeString(e.Capture)
		if err != nil {
			return nil, fmt.Errorf("task: mouse capture: %w", err)
		}
		return MouseReport{Capture: capture, Count: e.Count}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, e.Kind)
	}
}
