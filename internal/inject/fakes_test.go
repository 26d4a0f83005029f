package inject

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"hidject/internal/protocol"
	"hidject/internal/task"
)

var target = protocol.Address{0xde, 0xad, 0xbe, 0xef, 0x01}

type fakeTimer struct {
	armed  bool
	last   time.Duration
	starts int
}

func (t *fakeTimer) Start(d time.Duration) {
	t.armed = true
	t.last = d
	t.starts++
}

func (t *fakeTimer) Stop() { t.armed = false }

type fakeRadio struct {
	mu        sync.Mutex
	frames    []protocol.Frame
	setupAddr protocol.Address
	setupVar  protocol.Variant
	resets    int
	flushes   int
	sendErr   error

	// onSend, when set, is called after each successful send.
	onSend func()
}

func (r *fakeRadio) Setup(addr protocol.Address, v protocol.Variant) error {
	r.setupAddr = addr
	r.setupVar = v
	return nil
}

func (r *fakeRadio) Reset() error {
	r.resets++
	return nil
}

func (r *fakeRadio) Send(f protocol.Frame) error {
	if r.sendErr != nil {
		return r.sendErr
	}
	r.mu.Lock()
	r.frames = append(r.frames, f)
	r.mu.Unlock()
	if r.onSend != nil {
		r.onSend()
	}
	return nil
}

func (r *fakeRadio) Finalize(f *protocol.Frame) { protocol.Finalize(f.Data) }

func (r *fakeRadio) AddressForPipe(uint8) (protocol.Address, bool) { return r.setupAddr, true }

func (r *fakeRadio) FlushRx() { r.flushes++ }

func (r *fakeRadio) sent() []protocol.Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]protocol.Frame(nil), r.frames...)
}

type fakeUSB struct {
	keyboard [][]byte
	mouse    [][]byte
	errs     []error
}

func (u *fakeUSB) nextErr() error {
	if len(u.errs) == 0 {
		return nil
	}
	err := u.errs[0]
	u.errs = u.errs[1:]
	return err
}

func (u *fakeUSB) WriteKeyboardReport(report []byte) error {
	if err := u.nextErr(); err != nil {
		return err
	}
	u.keyboard = append(u.keyboard, report)
	return nil
}

func (u *fakeUSB) WriteMouseReport(report []byte) error {
	if err := u.nextErr(); err != nil {
		return err
	}
	u.mouse = append(u.mouse, report)
	return nil
}

type fakeModes struct {
	calls []string
}

func (m *fakeModes) EnterDiscovery() { m.calls = append(m.calls, "discover") }

func (m *fakeModes) EnterActiveEnum(addr protocol.Address) {
	m.calls = append(m.calls, "active_enum "+addr.String())
}

func (m *fakeModes) EnterPassiveEnum(addr protocol.Address) {
	m.calls = append(m.calls, "passive_enum "+addr.String())
}

type recorder struct {
	mu          sync.Mutex
	transitions []string
	outcomes    []Outcome
	frames      int
	frameErrs   int
}

func (r *recorder) StateChanged(from, to State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, fmt.Sprintf("%s->%s", from, to))
}

func (r *recorder) FrameSent(_ protocol.Frame, _ bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames++
	if err != nil {
		r.frameErrs++
	}
}

func (r *recorder) TaskFinished(_ task.Task, outcome Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *recorder) sawTransition(s string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tr := range r.transitions {
		if tr == s {
			return true
		}
	}
	return false
}

type harness struct {
	p     *Processor
	timer *fakeTimer
	radio *fakeRadio
	usb   *fakeUSB
	queue *task.MemoryQueue
	modes *fakeModes
	rec   *recorder
}

func newHarness(t *testing.T, opts Options, tasks ...task.Task) *harness {
	t.Helper()
	h := &harness{
		timer: &fakeTimer{},
		radio: &fakeRadio{},
		usb:   &fakeUSB{},
		queue: task.NewMemoryQueue(tasks...),
		modes: &fakeModes{},
		rec:   &recorder{},
	}
	h.p = NewProcessor(opts, Deps{
		Timer:    h.timer,
		Radio:    h.radio,
		USB:      h.usb,
		Queue:    h.queue,
		Modes:    h.modes,
		Observer: h.rec,
	})
	require.NoError(t, h.p.Init())
	return h
}

// fire expires the armed timer.
func (h *harness) fire(t *testing.T) {
	t.Helper()
	require.True(t, h.timer.armed, "timer not armed in state %s", h.p.State())
	h.timer.armed = false
	h.p.HandleTimer()
}

// ackAll fires and acknowledges radio frames until the processor leaves
// Working or max rounds pass.
func (h *harness) ackAll(t *testing.T, max int) {
	t.Helper()
	for i := 0; i < max && h.p.State() == Working; i++ {
		sending := h.p.provider != nil
		h.fire(t)
		if sending && h.p.State() == Working {
			h.p.HandleRadioEvent(TxSuccess)
		}
	}
}
