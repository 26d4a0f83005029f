package protocol

const (
	classicKeyboardMarker = 0xC1
	fastKeyboardMarker    = 0x01

	// MaxKeys is the number of simultaneous non-modifier keys in a report.
	MaxKeys = 6

	// USBKeyboardReportLen is the boot protocol keyboard report length.
	USBKeyboardReportLen = 8
)

// Modifier bits of a HID keyboard report.
const (
	ModLeftCtrl   byte = 0x01
	ModLeftShift  byte = 0x02
	ModLeftAlt    byte = 0x04
	ModLeftGUI    byte = 0x08
	ModRightCtrl  byte = 0x10
	ModRightShift byte = 0x20
	ModRightAlt   byte = 0x40
	ModRightGUI   byte = 0x80
)

// KeyboardReport is one keyboard state: modifiers plus up to six usages.
// The zero value is the all-keys-released report.
type KeyboardReport struct {
	Modifiers byte
	Keys      [MaxKeys]byte
}

// IsRelease reports whether no key or modifier is held.
func (r KeyboardReport) IsRelease() bool {
	return r == KeyboardReport{}
}

// EncodeClassicKeyboard builds a 10-byte Unifying keyboard frame:
// [0x00, 0xC1, mods, k1..k6, checksum].
func EncodeClassicKeyboard(r KeyboardReport) []byte {
	buf := make([]byte, ClassicFrameLen)
	buf[1] = classicKeyboardMarker
	buf[2] = r.Modifiers
	copy(buf[3:3+MaxKeys], r.Keys[:])
	return buf
}

// EncodeFastKeyboard builds a 9-byte Lightspeed keyboard frame:
// [0x01, mods, k1..k6, checksum].
func EncodeFastKeyboard(r KeyboardReport) []byte {
	buf := make([]byte, FastFrameLen)
	buf[0] = fastKeyboardMarker
	buf[1] = r.Modifiers
	copy(buf[2:2+MaxKeys], r.Keys[:])
	return buf
}

// EncodeKeyboard dispatches on the variant.
func EncodeKeyboard(v Variant, r KeyboardReport) ([]byte, error) {
	switch v {
	case Classic:
		return EncodeClassicKeyboard(r), nil
	case FastPolling:
		return EncodeFastKeyboard(r), nil
	}
	return nil, ErrUnknownVariant
}

// EncodeUSBKeyboard builds an 8-byte boot protocol keyboard report.
func EncodeUSBKeyboard(r KeyboardReport) []byte {
	buf := make([]byte, USBKeyboardReportLen)
	buf[0] = r.Modifiers
	copy(buf[2:], r.Keys[:])
	return buf
}
