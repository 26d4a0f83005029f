package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeKeyboardFrames(t *testing.T) {
	report := KeyboardReport{Modifiers: ModLeftShift, Keys: [MaxKeys]byte{0x0B}}

	classic, err := EncodeKeyboard(Classic, report)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0xC1, 0x02, 0x0B, 0, 0, 0, 0, 0, 0}, classic)

	fast, err := EncodeKeyboard(FastPolling, report)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0x0B, 0, 0, 0, 0, 0, 0}, fast)

	assert.Equal(t, []byte{0x02, 0x00, 0x0B, 0, 0, 0, 0, 0}, EncodeUSBKeyboard(report))
}

func TestKeyboardReportIsRelease(t *testing.T) {
	assert.True(t, KeyboardReport{}.IsRelease())
	assert.False(t, KeyboardReport{Modifiers: ModLeftAlt}.IsRelease())
}

func TestChecksum(t *testing.T) {
	frame := EncodeClassicKeyboard(KeyboardReport{Keys: [MaxKeys]byte{0x04}})
	Finalize(frame)

	assert.Equal(t, byte(0x3B), frame[9])
	assert.True(t, ValidChecksum(frame))

	var sum byte
	for _, b := range frame {
		sum += b
	}
	assert.Zero(t, sum)

	frame[3] = 0x05
	assert.False(t, ValidChecksum(frame))
}

func TestClassify(t *testing.T) {
	mouse := EncodeClassicMouse(MouseAction{XVelocity: 1})
	Finalize(mouse)
	assert.Equal(t, FrameMouse, Classify(mouse))

	keyboard := EncodeClassicKeyboard(KeyboardReport{})
	Finalize(keyboard)
	assert.Equal(t, FrameKeyboard, Classify(keyboard))

	keyboard[2] = 0x01
	assert.Equal(t, FrameInvalidChecksum, Classify(keyboard))

	assert.Equal(t, FrameNotLogitech, Classify(EncodeFastMouse(MouseAction{})))
}

func TestParseAddress(t *testing.T) {
	addr, err := ParseAddress("de:ad:be:ef:01")
	require.NoError(t, err)
	assert.Equal(t, Address{0xde, 0xad, 0xbe, 0xef, 0x01}, addr)
	assert.Equal(t, "de:ad:be:ef:01", addr.String())
	assert.Equal(t, byte(0x01), addr.Prefix())
	assert.Equal(t, [4]byte{0xde, 0xad, 0xbe, 0xef}, addr.Base())
	assert.False(t, addr.IsZero())

	zero, err := ParseAddress("")
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	_, err = ParseAddress("de:ad:be")
	assert.Error(t, err)
	_, err = ParseAddress("zz:ad:be:ef:01")
	assert.Error(t, err)
}

func TestWorkModeVariant(t *testing.T) {
	for _, m := range []WorkMode{WorkModeLightspeed, WorkModeG700, WorkModeG305, WorkModeAll} {
		assert.Equal(t, FastPolling, m.Variant(), string(m))
	}
	assert.Equal(t, Classic, WorkModeUnifying.Variant())

	m, err := ParseWorkMode("G305")
	require.NoError(t, err)
	assert.Equal(t, WorkModeG305, m)

	_, err = ParseWorkMode("bluetooth")
	assert.Error(t, err)
}

func TestParseVariant(t *testing.T) {
	v, err := ParseVariant("lightspeed")
	require.NoError(t, err)
	assert.Equal(t, FastPolling, v)

	_, err = ParseVariant("nope")
	assert.ErrorIs(t, err, ErrUnknownVariant)
}
