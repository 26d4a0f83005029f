package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Frame and capture sizes per variant.
const (
	ClassicFrameLen   = 10
	FastFrameLen      = 9
	ClassicCaptureLen = 10
	FastCaptureLen    = 11
)

// Velocity bounds above which the encoder substitutes bound-value.
const (
	ClassicVelocityBound int16 = 1000
	FastVelocityBound    int16 = 16383
)

const (
	classicMouseMarker = 0xC2
	fastMouseMarker    = 0x02
)

var ErrShortCapture = errors.New("protocol: mouse capture too short")

// MouseAction is the canonical mouse report shared by all encoders.
type MouseAction struct {
	XVelocity        int16 `json:"x"`
	YVelocity        int16 `json:"y"`
	ScrollVertical   int8  `json:"scroll_v"`
	ScrollHorizontal int8  `json:"scroll_h"`
	LeftDown         bool  `json:"left"`
	RightDown        bool  `json:"right"`
}

// Buttons returns the click bitmap: 0 none, 1 left, 2 right, 3 both.
func (a MouseAction) Buttons() byte {
	var b byte
	if a.LeftDown {
		b |= 0x01
	}
	if a.RightDown {
		b |= 0x02
	}
	return b
}

func (a MouseAction) String() string {
	return fmt.Sprintf("x=%d y=%d scroll=%d/%d left=%v right=%v",
		a.XVelocity, a.YVelocity, a.ScrollVertical, a.ScrollHorizontal, a.LeftDown, a.RightDown)
}

// VelocityBound returns the variant's overflow bound.
func (v Variant) VelocityBound() int16 {
	if v == FastPolling {
		return FastVelocityBound
	}
	return ClassicVelocityBound
}

// wrapVelocity replaces values above bound with bound-value. Values at or
// below the bound pass through untouched; this is not a modulo wrap.
func wrapVelocity(value, bound int16) int16 {
	if value > bound {
		return bound - value
	}
	return value
}

// EncodeClassicMouse builds a 10-byte Unifying mouse frame. Velocities are
// packed as two 12-bit two's-complement values into a 24-bit little-endian
// field at bytes 4..6, x in the low 12 bits.
func EncodeClassicMouse(a MouseAction) []byte {
	buf := make([]byte, ClassicFrameLen)
	buf[1] = classicMouseMarker
	buf[2] = a.Buttons()

	x := wrapVelocity(a.XVelocity, ClassicVelocityBound)
	y := wrapVelocity(a.YVelocity, ClassicVelocityBound)
	packed := uint32(uint16(y)&0xFFF)<<12 | uint32(uint16(x)&0xFFF)
	buf[4] = byte(packed)
	buf[5] = byte(packed >> 8)
	buf[6] = byte(packed >> 16)

	buf[7] = byte(a.ScrollVertical)
	buf[8] = byte(a.ScrollHorizontal)
	return buf
}

// EncodeFastMouse builds a 9-byte Lightspeed mouse frame with big-endian
// 16-bit velocities.
func EncodeFastMouse(a MouseAction) []byte {
	buf := make([]byte, FastFrameLen)
	buf[0] = fastMouseMarker
	buf[1] = a.Buttons()

	x := wrapVelocity(a.XVelocity, FastVelocityBound)
	y := wrapVelocity(a.YVelocity, FastVelocityBound)
	binary.BigEndian.PutUint16(buf[3:5], uint16(x))
	binary.BigEndian.PutUint16(buf[5:7], uint16(y))

	buf[7] = byte(a.ScrollVertical)
	return buf
}

// EncodeMouse dispatches on the variant.
func EncodeMouse(v Variant, a MouseAction) ([]byte, error) {
	switch v {
	case Classic:
		return EncodeClassicMouse(a), nil
	case FastPolling:
		return EncodeFastMouse(a), nil
	}
	return nil, ErrUnknownVariant
}

// MouseEncoder returns the encoder for a variant.
func MouseEncoder(v Variant) (func(MouseAction) []byte, error) {
	switch v {
	case Classic:
		return EncodeClassicMouse, nil
	case FastPolling:
		return EncodeFastMouse, nil
	}
	return nil, ErrUnknownVariant
}

// EncodeUSBMouse builds a 4-byte boot protocol mouse report. Velocities and
// scroll are clamped to the int8 range the boot report can carry.
func EncodeUSBMouse(a MouseAction) []byte {
	return []byte{
		a.Buttons(),
		byte(clampInt8(int(a.XVelocity))),
		byte(clampInt8(int(a.YVelocity))),
		byte(a.ScrollVertical),
	}
}

func clampInt8(v int) int8 {
	switch {
	case v > 127:
		return 127
	case v < -128:
		return -128
	}
	return int8(v)
}

// CaptureLen returns the expected capture length for a variant.
func (v Variant) CaptureLen() int {
	if v == FastPolling {
		return FastCaptureLen
	}
	return ClassicCaptureLen
}

// DecodeMouse turns captured radio bytes into a MouseAction. Fast-polling
// captures carry a leading protocol prefix byte that is ignored. Horizontal
// scroll is never recovered.
func DecodeMouse(v Variant, capture []byte) (MouseAction, error) {
	var a MouseAction
	if v != Classic && v != FastPolling {
		return a, ErrUnknownVariant
	}
	if len(capture) < v.CaptureLen() {
		return a, fmt.Errorf("%w: %s needs %d bytes, got %d", ErrShortCapture, v, v.CaptureLen(), len(capture))
	}

	switch capture[2] {
	case 1:
		a.LeftDown = true
	case 2:
		a.RightDown = true
	case 3:
		a.LeftDown = true
		a.RightDown = true
	}

	if v == Classic {
		a.XVelocity = int16(binary.BigEndian.Uint16(capture[6:8]))
		a.YVelocity = int16(binary.BigEndian.Uint16(capture[4:6]))
	} else {
		a.XVelocity = int16(binary.BigEndian.Uint16(capture[4:6]))
		a.YVelocity = int16(binary.BigEndian.Uint16(capture[6:8]))
	}
	a.ScrollVertical = int8(capture[8])
	return a, nil
}

// EncodeCapture is the inverse of DecodeMouse: it lays an action out the way
// a sniffed frame of the given variant would look.
func EncodeCapture(v Variant, a MouseAction) ([]byte, error) {
	switch v {
	case Classic:
		buf := make([]byte, ClassicCaptureLen)
		buf[1] = classicMouseMarker
		buf[2] = a.Buttons()
		binary.BigEndian.PutUint16(buf[4:6], uint16(a.YVelocity))
		binary.BigEndian.PutUint16(buf[6:8], uint16(a.XVelocity))
		buf[8] = byte(a.ScrollVertical)
		return buf, nil
	case FastPolling:
		buf := make([]byte, FastCaptureLen)
		buf[1] = fastMouseMarker
		buf[2] = a.Buttons()
		binary.BigEndian.PutUint16(buf[4:6], uint16(a.XVelocity))
		binary.BigEndian.PutUint16(buf[6:8], uint16(a.YVelocity))
		buf[8] = byte(a.ScrollVertical)
		return buf, nil
	}
	return nil, ErrUnknownVariant
}
