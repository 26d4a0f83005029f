package inject

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

var ErrRunnerClosed = errors.New("inject: runner closed")

// Status is a snapshot of the processor, safe to read from any goroutine.
type Status struct {
	State       string `json:"state"`
	Executing   bool   `json:"executing"`
	Transport   string `json:"transport"`
	Address     string `json:"address,omitempty"`
	WorkMode    string `json:"workmode"`
	Task        string `json:"task,omitempty"`
	Retransmits int    `json:"retransmits"`
	FramesSent  uint64 `json:"frames_sent"`
	RunID       string `json:"run_id,omitempty"`
}

// Runner owns a Processor and feeds it every event from a single
// goroutine: timer expiries, transport completions and control commands.
type Runner struct {
	proc *Processor
	done chan struct{}
	once sync.Once

	// Events run in arrival order. post never blocks because transports
	// report completions from inside a Send issued by the loop itself.
	qmu     sync.Mutex
	pending []func()
	wake    chan struct{}

	mu     sync.RWMutex
	status Status
	runID  string
}

// NewRunner creates a processor with a runner-owned timer and starts the
// event loop. deps.Timer is ignored.
func NewRunner(opts Options, deps Deps) *Runner {
	r := &Runner{
		done: make(chan struct{}),
		wake: make(chan struct{}, 1),
	}
	deps.Timer = &loopTimer{runner: r}
	r.proc = NewProcessor(opts, deps)
	r.snapshot()
	go r.loop()
	return r
}

func (r *Runner) loop() {
	for {
		select {
		case <-r.wake:
			for _, fn := range r.drain() {
				select {
				case <-r.done:
					return
				default:
				}
				fn()
				r.snapshot()
			}
		case <-r.done:
			return
		}
	}
}

// Close stops the event loop. Pending events are dropped.
func (r *Runner) Close() {
	r.once.Do(func() { close(r.done) })
}

// post appends fn to the loop's queue without blocking the caller.
func (r *Runner) post(fn func()) bool {
	select {
	case <-r.done:
		return false
	default:
	}
	r.qmu.Lock()
	r.pending = append(r.pending, fn)
	r.qmu.Unlock()
	select {
	case r.wake <- struct{}{}:
	default:
	}
	return true
}

func (r *Runner) drain() []func() {
	r.qmu.Lock()
	defer r.qmu.Unlock()
	fns := r.pending
	r.pending = nil
	return fns
}

// call runs fn on the loop and waits for its result.
func (r *Runner) call(fn func() error) error {
	reply := make(chan error, 1)
	wrapped := func() {
		err := fn()
		r.snapshot()
		reply <- err
	}
	if !r.post(wrapped) {
		return ErrRunnerClosed
	}
	select {
	case err := <-reply:
		return err
	case <-r.done:
		return ErrRunnerClosed
	}
}

// Init initializes the processor for its configured target.
func (r *Runner) Init() error {
	return r.call(r.proc.Init)
}

// Deinit releases the transport.
func (r *Runner) Deinit() error {
	return r.call(func() error {
		r.proc.Deinit()
		return nil
	})
}

// Start begins executing the queued script and returns its run ID.
func (r *Runner) Start() (string, error) {
	id := uuid.New().String()
	err := r.call(func() error {
		prev := r.runID
		r.runID = id
		if err := r.proc.StartExecution(true); err != nil {
			r.runID = prev
			return err
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	log.Infof("Inject: run %s started", id)
	return id, nil
}

// Stop abandons the current task and pauses execution.
func (r *Runner) Stop() error {
	return r.call(func() error {
		return r.proc.StartExecution(false)
	})
}

// RadioEvent delivers a radio completion.
func (r *Runner) RadioEvent(ev RadioEvent) {
	r.post(func() { r.proc.HandleRadioEvent(ev) })
}

// USBEvent delivers a USB gadget event.
func (r *Runner) USBEvent(ev USBEvent) {
	r.post(func() { r.proc.HandleUSBEvent(ev) })
}

// Status returns the latest snapshot.
func (r *Runner) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

func (r *Runner) snapshot() {
	p := r.proc
	s := Status{
		State:       p.State().String(),
		Executing:   p.Executing(),
		Transport:   "radio",
		WorkMode:    string(p.opts.WorkMode),
		Retransmits: p.Retransmits(),
		FramesSent:  p.FramesSent(),
		RunID:       r.runID,
	}
	if p.opts.Address.IsZero() {
		s.Transport = "usb"
	} else {
		s.Address = p.opts.Address.String()
	}
	if t := p.CurrentTask(); t != nil {
		s.Task = t.String()
	}

	r.mu.Lock()
	r.status = s
	r.mu.Unlock()
}

// loopTimer delivers expiries through the runner. Each Start bumps the
// generation so a stopped or re-armed timer never delivers a stale tick.
type loopTimer struct {
	runner *Runner

	mu    sync.Mutex
	gen   uint64
	timer *time.Timer
}

func (t *loopTimer) Start(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.timer = time.AfterFunc(d, func() {
		t.runner.post(func() {
			if t.current(gen) {
				t.runner.proc.HandleTimer()
			}
		})
	})
}

func (t *loopTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (t *loopTimer) current(gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gen == gen
}
