package inject

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hidject/internal/protocol"
	"hidject/internal/task"
)

func TestRunnerDrivesScript(t *testing.T) {
	radio := &fakeRadio{}
	rec := &recorder{}
	queue := task.NewMemoryQueue(
		task.TypeString{Text: "ok"},
		task.Delay{Duration: 5 * time.Millisecond},
		task.PressKeys{Combo: "ENTER"},
	)

	var r *Runner
	radio.onSend = func() { go r.RadioEvent(TxSuccess) }
	r = NewRunner(Options{Address: target, WorkMode: protocol.WorkModeLightspeed}, Deps{
		Radio:    radio,
		Queue:    queue,
		Observer: rec,
	})
	defer r.Close()

	require.NoError(t, r.Init())
	assert.Equal(t, "idle", r.Status().State)
	assert.Equal(t, "radio", r.Status().Transport)

	runID, err := r.Start()
	require.NoError(t, err)
	assert.NotEmpty(t, runID)

	require.Eventually(t, func() bool {
		st := r.Status()
		return st.State == "idle" && st.FramesSent == 6
	}, 2*time.Second, 5*time.Millisecond)
	assert.True(t, rec.sawTransition("idle->script_succeeded"))

	assert.Len(t, radio.sent(), 6)
	st := r.Status()
	assert.Equal(t, "idle", st.State)
	assert.Equal(t, runID, st.RunID)
	assert.Equal(t, uint64(6), st.FramesSent)
	assert.False(t, st.Executing)
}

func TestRunnerStopAndDeinit(t *testing.T) {
	queue := task.NewMemoryQueue(task.Delay{Duration: time.Hour})
	r := NewRunner(Options{}, Deps{USB: &fakeUSB{}, Queue: queue})
	defer r.Close()

	_, err := r.Start()
	assert.ErrorIs(t, err, ErrNotInitialized)

	require.NoError(t, r.Init())
	assert.Equal(t, "usb", r.Status().Transport)

	_, err = r.Start()
	require.NoError(t, err)
	assert.Equal(t, "working", r.Status().State)
	assert.Contains(t, r.Status().Task, "delay")

	require.NoError(t, r.Stop())
	assert.Equal(t, "idle", r.Status().State)

	require.NoError(t, r.Deinit())
	assert.Equal(t, "not_initialized", r.Status().State)
}

func TestRunnerClosed(t *testing.T) {
	r := NewRunner(Options{}, Deps{USB: &fakeUSB{}, Queue: task.NewMemoryQueue()})
	r.Close()
	r.Close()

	assert.ErrorIs(t, r.Init(), ErrRunnerClosed)
	r.USBEvent(InReportDone)
}

func TestLoopTimerDropsStaleTicks(t *testing.T) {
	rec := &recorder{}
	queue := task.NewMemoryQueue(task.Delay{Duration: 20 * time.Millisecond})
	r := NewRunner(Options{}, Deps{USB: &fakeUSB{}, Queue: queue, Observer: rec})
	defer r.Close()

	require.NoError(t, r.Init())
	_, err := r.Start()
	require.NoError(t, err)
	require.NoError(t, r.Stop())

	time.Sleep(60 * time.Millisecond)
	assert.False(t, rec.sawTransition("working->task_succeeded"))
}

func TestRunnerKeepsEventOrderUnderBurst(t *testing.T) {
	r := NewRunner(Options{}, Deps{USB: &fakeUSB{}, Queue: task.NewMemoryQueue()})
	defer r.Close()

	var got []int
	// Posting from the loop itself must neither block nor reorder.
	require.NoError(t, r.call(func() error {
		for i := 0; i < 1000; i++ {
			i := i
			r.post(func() { got = append(got, i) })
		}
		return nil
	}))
	require.NoError(t, r.call(func() error { return nil }))

	require.Len(t, got, 1000)
	for i, v := range got {
		if v != i {
			t.Fatalf("event %d ran at position %d", v, i)
		}
	}
}
