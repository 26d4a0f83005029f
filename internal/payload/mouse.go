package payload

import "hidject/internal/protocol"

// Mouse sends one mouse action followed by a release frame.
//
// count gates the action: once it reaches zero the provider is exhausted.
// A repetition is consumed when its release frame goes out.
type Mouse struct {
	action  protocol.Frame
	release protocol.Frame
	count   uint32

	appendRelease bool
	actionSent    bool
	releaseSent   bool
}

// NewMouse builds a provider for action, repeated count times.
func NewMouse(target Target, action protocol.MouseAction, count uint32) (*Mouse, error) {
	a, err := target.mouse(action)
	if err != nil {
		return nil, err
	}
	r, err := target.mouse(protocol.MouseAction{})
	if err != nil {
		return nil, err
	}
	return &Mouse{action: a, release: r, count: count, appendRelease: true}, nil
}

func (m *Mouse) Next() (protocol.Frame, error) {
	if m.count == 0 {
		return protocol.Frame{}, ErrExhausted
	}
	if !m.actionSent {
		m.actionSent = true
		if !m.appendRelease {
			m.count--
		}
		return m.action.Clone(), nil
	}
	if m.appendRelease && !m.releaseSent {
		m.releaseSent = true
		m.count--
		return m.release.Clone(), nil
	}
	return protocol.Frame{}, ErrExhausted
}

// Reset zeroes the repeat count. A reset mouse task is not replayed.
func (m *Mouse) Reset() { m.count = 0 }
