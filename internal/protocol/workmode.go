package protocol

import (
	"fmt"
	"strings"
)

// WorkMode is the configured receiver family the tool operates against.
type WorkMode string

const (
	WorkModeUnifying   WorkMode = "unifying"
	WorkModeLightspeed WorkMode = "lightspeed"
	WorkModeG700       WorkMode = "g700"
	WorkModeG305       WorkMode = "g305"
	WorkModeAll        WorkMode = "all"
)

// ParseWorkMode validates a work mode string.
func ParseWorkMode(s string) (WorkMode, error) {
	m := WorkMode(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case WorkModeUnifying, WorkModeLightspeed, WorkModeG700, WorkModeG305, WorkModeAll:
		return m, nil
	case "":
		return WorkModeUnifying, nil
	}
	return "", fmt.Errorf("protocol: unknown work mode %q", s)
}

// Variant maps the work mode to its frame family. Only plain Unifying
// receivers use the classic layout.
func (m WorkMode) Variant() Variant {
	if m == WorkModeUnifying {
		return Classic
	}
	return FastPolling
}
