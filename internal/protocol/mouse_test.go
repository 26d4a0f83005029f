package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeClassicMouseLayout(t *testing.T) {
	frame := EncodeClassicMouse(MouseAction{XVelocity: 5, YVelocity: -3, LeftDown: true})

	require.Len(t, frame, ClassicFrameLen)
	assert.Equal(t, byte(0x00), frame[0])
	assert.Equal(t, byte(0xC2), frame[1])
	assert.Equal(t, byte(0x01), frame[2])

	packed := uint32(frame[4]) | uint32(frame[5])<<8 | uint32(frame[6])<<16
	assert.Equal(t, uint32(5), packed&0xFFF, "x lives in the low 12 bits")
	assert.Equal(t, uint32(0xFFD), packed>>12, "y is the 12-bit two's complement of -3")
	assert.Equal(t, []byte{0x05, 0xD0, 0xFF}, frame[4:7])
}

func TestEncodeClassicMouseScrollAndButtons(t *testing.T) {
	frame := EncodeClassicMouse(MouseAction{ScrollVertical: -1, ScrollHorizontal: 2, LeftDown: true, RightDown: true})

	assert.Equal(t, byte(0x03), frame[2])
	assert.Equal(t, byte(0xFF), frame[7])
	assert.Equal(t, byte(0x02), frame[8])
	assert.Equal(t, byte(0x00), frame[9], "checksum byte is left for the transport")
}

func TestEncodeFastMouseLayout(t *testing.T) {
	frame := EncodeFastMouse(MouseAction{XVelocity: 300, YVelocity: -2, ScrollVertical: 4, RightDown: true})

	require.Len(t, frame, FastFrameLen)
	assert.Equal(t, []byte{0x02, 0x02, 0x00, 0x01, 0x2C, 0xFF, 0xFE, 0x04, 0x00}, frame)
}

func TestFastMouseClickCodes(t *testing.T) {
	cases := map[byte]MouseAction{
		0: {},
		1: {LeftDown: true},
		2: {RightDown: true},
		3: {LeftDown: true, RightDown: true},
	}
	for code, action := range cases {
		assert.Equal(t, code, EncodeFastMouse(action)[1], "action %s", action)
	}
}

func TestVelocityBoundClassic(t *testing.T) {
	atBound := EncodeClassicMouse(MouseAction{XVelocity: 1000})
	assert.Equal(t, []byte{0xE8, 0x03, 0x00}, atBound[4:7], "1000 is encoded unmodified")

	above := EncodeClassicMouse(MouseAction{XVelocity: 1001})
	assert.Equal(t, []byte{0xFF, 0x0F, 0x00}, above[4:7], "1001 becomes 1000-1001 = -1")

	aboveY := EncodeClassicMouse(MouseAction{YVelocity: 1010})
	packed := uint32(aboveY[4]) | uint32(aboveY[5])<<8 | uint32(aboveY[6])<<16
	negTen := int16(-10)
	assert.Equal(t, uint32(uint16(negTen)&0xFFF), packed>>12)
}

func TestVelocityBoundFast(t *testing.T) {
	atBound := EncodeFastMouse(MouseAction{XVelocity: 16383, YVelocity: 16383})
	assert.Equal(t, []byte{0x3F, 0xFF, 0x3F, 0xFF}, atBound[3:7])

	above := EncodeFastMouse(MouseAction{XVelocity: 16384, YVelocity: 20000})
	assert.Equal(t, []byte{0xFF, 0xFF}, above[3:5], "16384 becomes -1")
	assert.Equal(t, int16(16383-20000), int16(uint16(above[5])<<8|uint16(above[6])))
}

func TestWrapVelocityIsNotModulo(t *testing.T) {
	assert.Equal(t, int16(-1000), wrapVelocity(-1000, ClassicVelocityBound))
	assert.Equal(t, int16(-31767), wrapVelocity(32767, ClassicVelocityBound))
	assert.Equal(t, int16(0), wrapVelocity(0, FastVelocityBound))
}

func TestDecodeMouseRoundTrip(t *testing.T) {
	velocities := [][2]int16{{0, 0}, {5, -3}, {-1000, 1000}, {127, -128}}

	for _, v := range []Variant{Classic, FastPolling} {
		bound := v.VelocityBound()
		velocities := append(velocities, [2]int16{bound, -bound})
		for _, vel := range velocities {
			for _, buttons := range []MouseAction{{}, {LeftDown: true}, {RightDown: true}, {LeftDown: true, RightDown: true}} {
				want := buttons
				want.XVelocity = vel[0]
				want.YVelocity = vel[1]
				want.ScrollVertical = -2

				capture, err := EncodeCapture(v, want)
				require.NoError(t, err)
				require.Len(t, capture, v.CaptureLen())

				got, err := DecodeMouse(v, capture)
				require.NoError(t, err)
				assert.Equal(t, want, got, "%s %s", v, want)
			}
		}
	}
}

func TestDecodeClassicCapture(t *testing.T) {
	capture := []byte{0x00, 0xC2, 0x01, 0x00, 0xFF, 0xFD, 0x00, 0x05, 0x01, 0x00}

	got, err := DecodeMouse(Classic, capture)
	require.NoError(t, err)
	assert.Equal(t, MouseAction{XVelocity: 5, YVelocity: -3, ScrollVertical: 1, LeftDown: true}, got)
}

func TestDecodeFastCaptureIgnoresPrefix(t *testing.T) {
	capture := []byte{0xAA, 0x02, 0x02, 0x00, 0x00, 0x0A, 0xFF, 0xF6, 0x00, 0x00, 0x00}

	got, err := DecodeMouse(FastPolling, capture)
	require.NoError(t, err)
	assert.Equal(t, MouseAction{XVelocity: 10, YVelocity: -10, RightDown: true}, got)
}

func TestDecodeUnknownClickByte(t *testing.T) {
	capture := make([]byte, ClassicCaptureLen)
	capture[2] = 0x07

	got, err := DecodeMouse(Classic, capture)
	require.NoError(t, err)
	assert.False(t, got.LeftDown)
	assert.False(t, got.RightDown)
}

func TestDecodeShortCapture(t *testing.T) {
	_, err := DecodeMouse(FastPolling, make([]byte, ClassicCaptureLen))
	assert.ErrorIs(t, err, ErrShortCapture)

	_, err = DecodeMouse(Variant(9), make([]byte, 16))
	assert.ErrorIs(t, err, ErrUnknownVariant)
}

func TestDecodeReturnsFreshValues(t *testing.T) {
	capture, err := EncodeCapture(Classic, MouseAction{XVelocity: 1, LeftDown: true})
	require.NoError(t, err)

	first, err := DecodeMouse(Classic, capture)
	require.NoError(t, err)
	first.XVelocity = 99

	second, err := DecodeMouse(Classic, capture)
	require.NoError(t, err)
	assert.Equal(t, int16(1), second.XVelocity)
}

func TestEncodeUSBMouseClamps(t *testing.T) {
	report := EncodeUSBMouse(MouseAction{XVelocity: 500, YVelocity: -500, ScrollVertical: 3, LeftDown: true})
	assert.Equal(t, []byte{0x01, 0x7F, 0x80, 0x03}, report)
}

func TestEncodeMouseDispatch(t *testing.T) {
	frame, err := EncodeMouse(FastPolling, MouseAction{})
	require.NoError(t, err)
	assert.Len(t, frame, FastFrameLen)

	_, err = EncodeMouse(Variant(7), MouseAction{})
	assert.ErrorIs(t, err, ErrUnknownVariant)
}
