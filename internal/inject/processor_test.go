package inject

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hidject/internal/keymap"
	"hidject/internal/protocol"
	"hidject/internal/task"
)

func TestInitConfiguresRadio(t *testing.T) {
	h := newHarness(t, Options{Address: target, WorkMode: protocol.WorkModeG305})

	assert.Equal(t, Idle, h.p.State())
	assert.Equal(t, target, h.radio.setupAddr)
	assert.Equal(t, protocol.FastPolling, h.radio.setupVar)
	assert.False(t, h.p.USB())
	assert.True(t, h.rec.sawTransition("not_initialized->idle"))
}

func TestStartBeforeInit(t *testing.T) {
	p := NewProcessor(Options{}, Deps{Timer: &fakeTimer{}, Queue: task.NewMemoryQueue()})
	assert.ErrorIs(t, p.StartExecution(true), ErrNotInitialized)
}

func TestTypeStringThenZeroDelay(t *testing.T) {
	h := newHarness(t, Options{Address: target, WorkMode: protocol.WorkModeUnifying},
		task.TypeString{Text: "Hi"},
		task.Delay{},
	)

	require.NoError(t, h.p.StartExecution(true))
	assert.Equal(t, Working, h.p.State())
	assert.Equal(t, ClassicTxDelay, h.timer.last)

	h.ackAll(t, 20)

	frames := h.radio.sent()
	require.Len(t, frames, 4, "down and release for H and i")
	assert.Equal(t, []byte{0x00, 0xC1, keymap.ModShift, 0x0B}, frames[0].Data[:4])
	assert.Equal(t, byte(0x00), frames[1].Data[2])
	assert.Equal(t, byte(0x0C), frames[2].Data[3])
	for _, f := range frames {
		assert.True(t, protocol.ValidChecksum(f.Data), "radio frames carry the checksum")
	}

	assert.Equal(t, Idle, h.p.State())
	assert.False(t, h.p.Executing())
	assert.Equal(t, []Outcome{OutcomeSucceeded, OutcomeSucceeded}, h.rec.outcomes)
	assert.True(t, h.rec.sawTransition("idle->script_succeeded"))
	assert.Zero(t, h.queue.Len(), "script success flushes the queue")
}

func TestZeroDelayGoesThroughWorking(t *testing.T) {
	h := newHarness(t, Options{Address: target}, task.Delay{})

	require.NoError(t, h.p.StartExecution(true))
	assert.Equal(t, Working, h.p.State())
	assert.Equal(t, time.Duration(0), h.timer.last)

	h.fire(t)
	assert.Equal(t, Idle, h.p.State())
	assert.Equal(t, []Outcome{OutcomeSucceeded}, h.rec.outcomes)
}

func TestRunNextTaskLeavesIdle(t *testing.T) {
	tasks := []task.Task{
		task.TypeString{Text: "x"},
		task.TypeAltString{Text: "x"},
		task.PressKeys{Combo: "ENTER"},
		task.Delay{Duration: time.Second},
		task.MouseReport{Capture: make([]byte, protocol.ClassicCaptureLen), Count: 1},
	}
	for _, tk := range tasks {
		h := newHarness(t, Options{Address: target}, tk)
		require.NoError(t, h.p.StartExecution(true))
		assert.Equal(t, Working, h.p.State(), tk.String())
	}

	bad := []task.Task{
		task.TypeString{Text: "€"},
		task.TypeAltString{Text: ""},
		task.PressKeys{Combo: "NOPE"},
		task.MouseReport{Capture: []byte{1}, Count: 1},
		task.MouseReport{Capture: make([]byte, protocol.ClassicCaptureLen), Count: 0},
	}
	for _, tk := range bad {
		h := newHarness(t, Options{Address: target}, tk)
		require.NoError(t, h.p.StartExecution(true))
		assert.True(t, h.rec.sawTransition("idle->failed"), tk.String())
		assert.Equal(t, Idle, h.p.State())
		assert.False(t, h.p.Executing())
	}
}

func TestPrimingFailureRunsFailAction(t *testing.T) {
	h := newHarness(t, Options{Address: target, OnFail: ActionActiveEnum},
		task.PressKeys{Combo: "ENTER"},
		task.TypeString{Text: "€"},
	)
	require.NoError(t, h.p.StartExecution(true))
	h.ackAll(t, 10)

	assert.Equal(t, []string{"active_enum de:ad:be:ef:01"}, h.modes.calls)
	assert.Equal(t, []Outcome{OutcomeSucceeded, OutcomeFailed}, h.rec.outcomes)

	first, ok, err := h.queue.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, task.PressKeys{Combo: "ENTER"}, first, "failure rewinds the queue")
}

func TestRetransmitCeiling(t *testing.T) {
	h := newHarness(t, Options{Address: target, OnFail: ActionDiscover}, task.TypeString{Text: "abcdefghij"})
	require.NoError(t, h.p.StartExecution(true))
	h.fire(t)

	for i := 0; i < 9; i++ {
		h.p.HandleRadioEvent(TxFailed)
		require.Equal(t, Working, h.p.State(), "after %d failures", i+1)
		h.fire(t)
	}
	assert.Equal(t, 9, h.p.Retransmits())
	assert.Empty(t, h.modes.calls)

	h.p.HandleRadioEvent(TxFailed)
	assert.Equal(t, Idle, h.p.State())
	assert.True(t, h.rec.sawTransition("working->failed"))
	assert.Zero(t, h.p.Retransmits())
	assert.Equal(t, []string{"discover"}, h.modes.calls)
	assert.False(t, h.timer.armed)
}

func TestSuccessResetsRetransmits(t *testing.T) {
	h := newHarness(t, Options{Address: target}, task.TypeString{Text: "abcdefghijkl"})
	require.NoError(t, h.p.StartExecution(true))
	h.fire(t)

	for i := 0; i < 9; i++ {
		h.p.HandleRadioEvent(TxFailed)
		h.fire(t)
	}
	h.p.HandleRadioEvent(TxSuccessAck)
	assert.Zero(t, h.p.Retransmits())
	assert.Equal(t, 1, h.radio.flushes, "ack payloads are flushed unread")

	for i := 0; i < 9; i++ {
		h.p.HandleRadioEvent(TxFailed)
		h.fire(t)
	}
	assert.Equal(t, Working, h.p.State())
}

func TestSendErrorIsNotFatal(t *testing.T) {
	h := newHarness(t, Options{Address: target}, task.PressKeys{Combo: "TAB"})
	h.radio.sendErr = errors.New("bridge down")
	require.NoError(t, h.p.StartExecution(true))

	h.fire(t)
	assert.Equal(t, Working, h.p.State())
	assert.Equal(t, 1, h.rec.frameErrs)
	assert.Zero(t, h.p.FramesSent())
}

func TestInboundPayloadIsIgnored(t *testing.T) {
	h := newHarness(t, Options{Address: target}, task.PressKeys{Combo: "TAB"})
	require.NoError(t, h.p.StartExecution(true))
	h.fire(t)

	h.p.HandleRadioEvent(RxReceived)
	assert.Equal(t, Working, h.p.State())
	assert.False(t, h.timer.armed)
}

func TestEventsDuringDelayAreIgnored(t *testing.T) {
	h := newHarness(t, Options{Address: target}, task.Delay{Duration: time.Second}, task.PressKeys{Combo: "TAB"})
	require.NoError(t, h.p.StartExecution(true))

	h.p.HandleRadioEvent(TxSuccess)
	h.p.HandleRadioEvent(TxFailed)
	assert.Equal(t, Working, h.p.State())
	assert.True(t, h.p.Executing())
	assert.Zero(t, h.p.Retransmits())

	h.fire(t)
	assert.Equal(t, task.KindPress, h.p.CurrentTask().Kind())
}

func TestStopAbandonsTask(t *testing.T) {
	h := newHarness(t, Options{Address: target}, task.TypeString{Text: "abc"})
	require.NoError(t, h.p.StartExecution(true))
	assert.ErrorIs(t, h.p.StartExecution(true), ErrNotIdle)

	require.NoError(t, h.p.StartExecution(false))
	assert.Equal(t, Idle, h.p.State())
	assert.False(t, h.timer.armed)

	h.p.HandleTimer()
	assert.Empty(t, h.radio.sent())
}

func TestDeinitKeepsQueue(t *testing.T) {
	h := newHarness(t, Options{Address: target}, task.TypeString{Text: "abc"})
	require.NoError(t, h.p.StartExecution(true))

	h.p.Deinit()
	assert.Equal(t, NotInitialized, h.p.State())
	assert.Equal(t, 1, h.radio.resets)
	assert.False(t, h.timer.armed)
	assert.False(t, h.p.Executing())
	assert.Equal(t, 1, h.queue.Len())
}

func TestScriptSuccessAction(t *testing.T) {
	h := newHarness(t, Options{Address: target, OnSuccess: ActionPassiveEnum}, task.PressKeys{Combo: "ESC"})
	require.NoError(t, h.p.StartExecution(true))
	h.ackAll(t, 10)

	assert.Equal(t, []string{"passive_enum de:ad:be:ef:01"}, h.modes.calls)
}

func TestEmptyScriptSucceedsImmediately(t *testing.T) {
	h := newHarness(t, Options{Address: target})
	require.NoError(t, h.p.StartExecution(true))

	assert.Equal(t, Idle, h.p.State())
	assert.True(t, h.rec.sawTransition("script_succeeded->idle"))
}

func TestUSBInjection(t *testing.T) {
	h := newHarness(t, Options{}, task.PressKeys{Combo: "GUI r"})
	assert.True(t, h.p.USB())

	require.NoError(t, h.p.StartExecution(true))
	assert.Equal(t, USBTxDelay, h.timer.last)

	h.fire(t)
	require.Len(t, h.usb.keyboard, 1)
	assert.Equal(t, []byte{keymap.ModGUI, 0, 0x15, 0, 0, 0, 0, 0}, h.usb.keyboard[0], "USB reports carry no checksum")

	// The release goes out as soon as the host consumed the first report.
	h.p.HandleUSBEvent(InReportDone)
	require.Len(t, h.usb.keyboard, 2)
	assert.Equal(t, make([]byte, 8), h.usb.keyboard[1])

	h.p.HandleUSBEvent(InReportDone)
	assert.Equal(t, Idle, h.p.State())
	assert.Equal(t, []Outcome{OutcomeSucceeded}, h.rec.outcomes)
	assert.Empty(t, h.radio.sent())
}

func TestUSBMouse(t *testing.T) {
	capture, err := protocol.EncodeCapture(protocol.Classic, protocol.MouseAction{XVelocity: 3, LeftDown: true})
	require.NoError(t, err)
	h := newHarness(t, Options{}, task.MouseReport{Capture: capture, Count: 1})

	require.NoError(t, h.p.StartExecution(true))
	h.fire(t)
	h.p.HandleUSBEvent(InReportDone)
	h.p.HandleUSBEvent(InReportDone)

	assert.Equal(t, [][]byte{{0x01, 0x03, 0x00, 0x00}, {0, 0, 0, 0}}, h.usb.mouse)
	assert.Empty(t, h.usb.keyboard)
}

func TestUSBBusyRetries(t *testing.T) {
	h := newHarness(t, Options{}, task.PressKeys{Combo: "ENTER"})
	h.usb.errs = []error{errors.New("busy"), errors.New("busy")}

	require.NoError(t, h.p.StartExecution(true))
	h.fire(t)
	assert.Equal(t, 1, h.p.Retransmits())
	h.fire(t)
	assert.Equal(t, 2, h.p.Retransmits())
	h.fire(t)
	require.Len(t, h.usb.keyboard, 1)

	h.p.HandleUSBEvent(InReportDone)
	assert.Zero(t, h.p.Retransmits())
}

func TestUSBBusyCeiling(t *testing.T) {
	h := newHarness(t, Options{RetransmitCeiling: 3}, task.PressKeys{Combo: "ENTER"})
	h.usb.errs = []error{errors.New("busy"), errors.New("busy"), errors.New("busy")}

	require.NoError(t, h.p.StartExecution(true))
	h.fire(t)
	h.fire(t)
	h.fire(t)
	assert.True(t, h.rec.sawTransition("working->failed"))
	assert.Equal(t, Idle, h.p.State())
}

func TestUSBLEDTrigger(t *testing.T) {
	h := newHarness(t, Options{USBTrigger: TriggerLEDUpdate, TriggerDelay: 500 * time.Millisecond},
		task.PressKeys{Combo: "ENTER"},
		task.PressKeys{Combo: "TAB"},
	)
	require.NoError(t, h.p.StartExecution(true))

	h.fire(t)
	assert.Empty(t, h.usb.keyboard, "held until the host writes LEDs")
	assert.False(t, h.timer.armed)

	h.p.HandleUSBEvent(OutReportReady)
	assert.True(t, h.timer.armed)
	assert.Equal(t, 500*time.Millisecond, h.timer.last)

	h.fire(t)
	require.Len(t, h.usb.keyboard, 1)

	h.p.HandleUSBEvent(InReportDone)
	h.p.HandleUSBEvent(InReportDone)
	assert.Equal(t, task.PressKeys{Combo: "TAB"}, h.p.CurrentTask())
	h.fire(t)
	assert.Len(t, h.usb.keyboard, 3, "trigger stays latched for the run")
}

func TestFastPollingPacing(t *testing.T) {
	h := newHarness(t, Options{Address: target, WorkMode: protocol.WorkModeLightspeed}, task.TypeString{Text: "a"})
	require.NoError(t, h.p.StartExecution(true))
	assert.Equal(t, FastTxDelay, h.timer.last)

	h.fire(t)
	frames := h.radio.sent()
	require.Len(t, frames, 1)
	assert.Len(t, frames[0].Data, 9)
	assert.Equal(t, byte(0x01), frames[0].Data[0])
}
