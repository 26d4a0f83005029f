package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueueCursor(t *testing.T) {
	q := NewMemoryQueue(Delay{Duration: time.Second}, PressKeys{Combo: "GUI r"})

	first, ok, err := q.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, KindDelay, first.Kind())

	second, ok, _ := q.Next()
	require.True(t, ok)
	assert.Equal(t, PressKeys{Combo: "GUI r"}, second)

	_, ok, err = q.Next()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, q.Rewind())
	again, ok, _ := q.Next()
	require.True(t, ok)
	assert.Equal(t, first, again)
}

func TestMemoryQueueFlush(t *testing.T) {
	q := NewMemoryQueue(TypeString{Text: "x"})
	q.Append(TypeAltString{Text: "y"})
	assert.Equal(t, 2, q.Len())

	require.NoError(t, q.Flush())
	assert.Zero(t, q.Len())
	_, ok, _ := q.Next()
	assert.False(t, ok)
}

func TestCodecRoundTrip(t *testing.T) {
	tasks := []Task{
		Delay{Duration: 250 * time.Millisecond},
		Delay{},
		PressKeys{Combo: "CTRL ALT DELETE"},
		TypeString{Text: "hello\n", Layout: "de"},
		TypeAltString{Text: "ä"},
		MouseReport{Capture: []byte{0x00, 0xC2, 0x01}, Count: 3},
	}
	for _, want := range tasks {
		data, err := Marshal(want)
		require.NoError(t, err)
		got, err := Unmarshal(data)
		require.NoError(t, err, string(data))
		assert.Equal(t, want, got)
	}
}

func TestUnmarshalErrors(t *testing.T) {
	_, err := Unmarshal([]byte(`{"kind":"teleport"}`))
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = Unmarshal([]byte(`{"kind":"delay","duration":"-1s"}`))
	assert.Error(t, err)

	_, err = Unmarshal([]byte(`{"kind":"mouse","capture":"zz"}`))
	assert.Error(t, err)

	_, err = Unmarshal([]byte(`not json`))
	assert.Error(t, err)
}

func TestTaskString(t *testing.T) {
	assert.Equal(t, `string[de] "hi"`, TypeString{Text: "hi", Layout: "de"}.String())
	assert.Equal(t, "mouse 00c2 x2", MouseReport{Capture: []byte{0x00, 0xC2}, Count: 2}.String())
}
