package protocol

// Checksum returns the Logitech frame checksum of data: the two's complement
// of the byte sum, so that the whole frame including the checksum sums to 0.
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return -sum
}

// Finalize writes the checksum of all preceding bytes into the trailing byte.
// It is only applied to radio frames, never to USB reports.
func Finalize(frame []byte) {
	if len(frame) < 2 {
		return
	}
	frame[len(frame)-1] = Checksum(frame[:len(frame)-1])
}

// ValidChecksum reports whether the trailing byte matches the checksum.
func ValidChecksum(frame []byte) bool {
	if len(frame) < 2 {
		return false
	}
	return frame[len(frame)-1] == Checksum(frame[:len(frame)-1])
}

// FrameType classifies a sniffed classic-family frame.
type FrameType int

const (
	FrameUnknown FrameType = iota
	FrameNotLogitech
	FrameInvalidChecksum
	FrameKeyboard
	FrameKeyboardEncrypted
	FrameMouse
	FrameMedia
	FrameSystemControl
	FrameLED
	FrameKeepAlive
	FrameSetKeepAlive
)

func (t FrameType) String() string {
	switch t {
	case FrameNotLogitech:
		return "not logitech"
	case FrameInvalidChecksum:
		return "invalid checksum"
	case FrameKeyboard:
		return "keyboard"
	case FrameKeyboardEncrypted:
		return "encrypted keyboard"
	case FrameMouse:
		return "mouse"
	case FrameMedia:
		return "media"
	case FrameSystemControl:
		return "system control"
	case FrameLED:
		return "led"
	case FrameKeepAlive:
		return "keep-alive"
	case FrameSetKeepAlive:
		return "set keep-alive"
	}
	return "unknown"
}

// Classify inspects the report type byte of a 5, 10 or 22 byte frame.
func Classify(frame []byte) FrameType {
	l := len(frame)
	if l != 5 && l != 10 && l != 22 {
		return FrameNotLogitech
	}
	if !ValidChecksum(frame) {
		return FrameInvalidChecksum
	}

	rfType := frame[1]
	switch {
	case rfType == 0x40 && l == 5:
		return FrameKeepAlive
	case rfType == 0x4f && l == 10:
		return FrameSetKeepAlive
	case rfType&0x1f == 0x0e:
		return FrameLED
	case rfType&0x1f == 0x13 && l == 22:
		return FrameKeyboardEncrypted
	case rfType&0x1f == 0x01:
		return FrameKeyboard
	case rfType&0x1f == 0x02:
		return FrameMouse
	case rfType&0x1f == 0x03:
		return FrameMedia
	case rfType&0x1f == 0x04:
		return FrameSystemControl
	}
	return FrameUnknown
}
