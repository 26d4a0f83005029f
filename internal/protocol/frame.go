// Package protocol implements the wire formats spoken to Logitech-style
// receivers: mouse and keyboard frames for the classic (Unifying) and
// fast-polling (Lightspeed) families, USB boot reports, the radio bridge
// datagrams and the WebSocket status messages.
package protocol

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Variant selects one of the two incompatible receiver wire formats.
type Variant int

const (
	// Classic is the 10-byte Unifying frame family.
	Classic Variant = iota
	// FastPolling is the 9-byte Lightspeed frame family.
	FastPolling
)

var ErrUnknownVariant = errors.New("protocol: unknown variant")

func (v Variant) String() string {
	switch v {
	case Classic:
		return "classic"
	case FastPolling:
		return "fast"
	}
	return fmt.Sprintf("variant(%d)", int(v))
}

// ParseVariant accepts "classic"/"unifying" and "fast"/"lightspeed".
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "classic", "unifying":
		return Classic, nil
	case "fast", "fast-polling", "lightspeed":
		return FastPolling, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownVariant, s)
}

// Frame is one transmission unit handed to a transport.
type Frame struct {
	Data []byte
	Pipe uint8
}

// Clone returns a deep copy so the caller may mutate the result.
func (f Frame) Clone() Frame {
	data := make([]byte, len(f.Data))
	copy(data, f.Data)
	return Frame{Data: data, Pipe: f.Pipe}
}

// IsZero reports whether no frame is staged.
func (f Frame) IsZero() bool {
	return len(f.Data) == 0
}

func (f Frame) String() string {
	return fmt.Sprintf("pipe=%d % x", f.Pipe, f.Data)
}

// AddressLen is the length of an ESB RF address.
const AddressLen = 5

// Address is a 5-byte RF address. The all-zero address selects USB injection.
type Address [AddressLen]byte

// ParseAddress parses "aa:bb:cc:dd:ee" (colons optional). An empty string
// yields the zero address.
func ParseAddress(s string) (Address, error) {
	var a Address
	clean := strings.ReplaceAll(strings.TrimSpace(s), ":", "")
	if clean == "" {
		return a, nil
	}
	raw, err := hex.DecodeString(clean)
	if err != nil {
		return a, fmt.Errorf("protocol: invalid address %q: %w", s, err)
	}
	if len(raw) != AddressLen {
		return a, fmt.Errorf("protocol: address %q must be %d bytes, got %d", s, AddressLen, len(raw))
	}
	copy(a[:], raw)
	return a, nil
}

// IsZero reports whether the address is all zeros.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Base returns the 4-byte base address (first four bytes, as written).
func (a Address) Base() [4]byte {
	var b [4]byte
	copy(b[:], a[:4])
	return b
}

// Prefix returns the pipe prefix byte (last byte of the address).
func (a Address) Prefix() byte {
	return a[AddressLen-1]
}

func (a Address) String() string {
	parts := make([]string, AddressLen)
	for i, b := range a {
		parts[i] = fmt.Sprintf("%02x", b)
	}
	return strings.Join(parts, ":")
}
