package inject

import (
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"hidject/internal/payload"
	"hidject/internal/protocol"
	"hidject/internal/task"
)

// Processor is the injection state machine. It is not safe for concurrent
// use: every entry point must be called from one goroutine (see Runner).
type Processor struct {
	opts Options
	deps Deps

	state   State
	execute bool

	usb     bool
	target  payload.Target
	txDelay time.Duration

	current  task.Task
	provider payload.Provider
	staged   protocol.Frame

	retransmits int
	framesSent  uint64

	// LED trigger latch for USB injection.
	triggered       bool
	awaitingTrigger bool
}

type nopObserver struct{}

func (nopObserver) StateChanged(State, State)             {}
func (nopObserver) FrameSent(protocol.Frame, bool, error) {}
func (nopObserver) TaskFinished(task.Task, Outcome)       {}

// NewProcessor creates a processor in NotInitialized.
func NewProcessor(opts Options, deps Deps) *Processor {
	opts.applyDefaults()
	if deps.Observer == nil {
		deps.Observer = nopObserver{}
	}
	return &Processor{opts: opts, deps: deps, state: NotInitialized}
}

// State returns the current state.
func (p *Processor) State() State { return p.state }

// Executing reports whether tasks are pulled automatically.
func (p *Processor) Executing() bool { return p.execute }

// Retransmits returns the failed transmissions of the current task.
func (p *Processor) Retransmits() int { return p.retransmits }

// FramesSent returns the number of frames handed to a transport.
func (p *Processor) FramesSent() uint64 { return p.framesSent }

// CurrentTask returns the task being (or last) executed.
func (p *Processor) CurrentTask() task.Task { return p.current }

// USB reports whether frames go to the USB gadget.
func (p *Processor) USB() bool { return p.usb }

// Options returns the effective options.
func (p *Processor) Options() Options { return p.opts }

// Init configures the transport for the target and enters Idle.
func (p *Processor) Init() error {
	variant := p.opts.WorkMode.Variant()
	p.usb = p.opts.Address.IsZero()
	p.target = payload.Target{USB: p.usb, Variant: variant}
	p.txDelay = TxDelay(p.usb, variant)

	if p.usb {
		if p.deps.USB == nil {
			return errors.New("inject: USB injection without a USB transport")
		}
		log.Infof("Inject: initializing USB injection (trigger %s)", p.opts.USBTrigger)
	} else {
		if p.deps.Radio == nil {
			return errors.New("inject: radio injection without a radio transport")
		}
		if err := p.deps.Radio.Setup(p.opts.Address, variant); err != nil {
			return err
		}
		log.Infof("Inject: initializing injection for %s (%s, %s frames, %s pacing)",
			p.opts.Address, p.opts.WorkMode, variant, p.txDelay)
	}

	p.staged = protocol.Frame{}
	p.retransmits = 0
	p.triggered = false
	p.awaitingTrigger = false
	p.transferState(Idle)
	return nil
}

// Deinit stops injection and releases the transport. Queued tasks are kept.
func (p *Processor) Deinit() {
	log.Info("Inject: stopping injection mode")
	p.deps.Timer.Stop()
	if !p.usb && p.deps.Radio != nil {
		if err := p.deps.Radio.Reset(); err != nil {
			log.Warnf("Inject: radio reset failed: %v", err)
		}
	}
	p.staged = protocol.Frame{}
	p.transferState(NotInitialized)
}

// StartExecution enables or disables automatic task execution. Enabling
// starts the next queued task immediately.
func (p *Processor) StartExecution(enabled bool) error {
	if p.state == NotInitialized {
		return ErrNotInitialized
	}
	if !enabled {
		p.Stop()
		return nil
	}
	if p.state != Idle {
		return ErrNotIdle
	}
	p.execute = true
	p.runNextTask()
	return nil
}

// Stop abandons the current task and pauses execution.
func (p *Processor) Stop() {
	p.execute = false
	if p.state != NotInitialized {
		p.transferState(Idle)
	}
}

// HandleTimer is the timer expiry entry point.
func (p *Processor) HandleTimer() {
	if p.state != Working || !p.execute {
		return
	}

	if p.usb && p.opts.USBTrigger == TriggerLEDUpdate && !p.triggered {
		if !p.awaitingTrigger {
			log.Info("Inject: waiting for LED output report before injecting")
		}
		p.awaitingTrigger = true
		return
	}

	if p.provider == nil {
		log.Info("Inject: delay end reached")
		p.transferState(TaskSucceeded)
		return
	}

	p.sendStaged()
}

func (p *Processor) sendStaged() {
	frame := p.staged.Clone()
	if p.usb {
		var err error
		if p.current.Kind() == task.KindMouse {
			err = p.deps.USB.WriteMouseReport(frame.Data)
		} else {
			err = p.deps.USB.WriteKeyboardReport(frame.Data)
		}
		p.deps.Observer.FrameSent(frame, true, err)
		if err != nil {
			p.retransmits++
			log.Warnf("Inject: failed to write USB report (%d/%d): %v", p.retransmits, p.opts.RetransmitCeiling, err)
			if p.retransmits >= p.opts.RetransmitCeiling {
				p.transferState(Failed)
				return
			}
			p.deps.Timer.Start(p.txDelay)
			return
		}
		p.framesSent++
		if p.opts.Debug {
			log.Debugf("Inject: USB report % x", frame.Data)
		}
		return
	}

	p.deps.Radio.Finalize(&frame)
	err := p.deps.Radio.Send(frame)
	p.deps.Observer.FrameSent(frame, false, err)
	if err != nil {
		log.Warnf("Inject: error writing payload: %v", err)
		return
	}
	p.framesSent++
	if p.opts.Debug {
		addr, _ := p.deps.Radio.AddressForPipe(frame.Pipe)
		log.Debugf("Inject: TX'ed %s to %s", frame, addr)
	}
}

// HandleRadioEvent is the radio completion entry point.
func (p *Processor) HandleRadioEvent(ev RadioEvent) {
	if p.retransmits >= p.opts.RetransmitCeiling {
		log.Warn("Inject: too many retransmissions")
		p.transferState(Failed)
		return
	}

	switch ev {
	case RxReceived:
		log.Error("Inject: unexpected inbound payload while injecting")
		return
	case TxSuccessAck:
		if p.deps.Radio != nil {
			p.deps.Radio.FlushRx()
		}
	}

	if !p.stepping(ev.String()) {
		return
	}

	switch ev {
	case TxFailed:
		p.retransmits++
		log.Warnf("Inject: TX failed (%d/%d)", p.retransmits, p.opts.RetransmitCeiling)
		if p.retransmits >= p.opts.RetransmitCeiling {
			p.transferState(Failed)
			return
		}
	case TxSuccess, TxSuccessAck:
		p.retransmits = 0
	}

	p.advance(func() { p.deps.Timer.Start(p.txDelay) })
}

// HandleUSBEvent is the USB gadget entry point.
func (p *Processor) HandleUSBEvent(ev USBEvent) {
	switch ev {
	case OutReportReady:
		p.handleLEDReport()
		return
	case BootProtocolSet, ReportProtocolSet:
		log.Infof("Inject: USB host selected %s", ev)
		return
	}

	if p.retransmits >= p.opts.RetransmitCeiling {
		log.Warn("Inject: too many retransmissions")
		p.transferState(Failed)
		return
	}
	if !p.stepping(ev.String()) {
		return
	}

	p.retransmits = 0
	// USB frames go out as soon as the previous report is consumed.
	p.advance(p.sendStaged)
}

func (p *Processor) handleLEDReport() {
	if !p.usb || p.opts.USBTrigger != TriggerLEDUpdate || p.triggered {
		return
	}
	p.triggered = true
	log.Infof("Inject: LED output report received, injecting in %s", p.opts.TriggerDelay)
	if p.state == Working && p.awaitingTrigger {
		p.awaitingTrigger = false
		p.deps.Timer.Start(p.opts.TriggerDelay)
	}
}

// stepping reports whether a transport completion belongs to a frame of
// the current task.
func (p *Processor) stepping(event string) bool {
	if p.state != Working {
		if p.opts.Debug {
			log.Debugf("Inject: ignoring %s in state %s", event, p.state)
		}
		return false
	}
	if p.provider == nil {
		log.Debugf("Inject: ignoring %s during delay", event)
		return false
	}
	return true
}

// advance stages the next frame and schedules it, or finishes the task.
func (p *Processor) advance(schedule func()) {
	frame, err := p.provider.Next()
	if errors.Is(err, payload.ErrExhausted) {
		p.transferState(TaskSucceeded)
		return
	}
	if err != nil {
		log.Warnf("Inject: payload provider failed: %v", err)
		p.transferState(Failed)
		return
	}
	p.staged = frame
	schedule()
}

func (p *Processor) runNextTask() {
	if p.state != Idle {
		log.Info("Inject: current task not finished")
		return
	}

	t, ok, err := p.deps.Queue.Next()
	if err != nil {
		log.Warnf("Inject: failed to read next task: %v", err)
		p.transferState(Failed)
		return
	}
	if !ok {
		log.Info("Inject: no more tasks scheduled")
		if err := p.deps.Queue.Rewind(); err != nil {
			log.Warnf("Inject: failed to rewind tasks: %v", err)
		}
		p.execute = false
		p.transferState(ScriptSucceeded)
		return
	}

	p.current = t
	p.staged = protocol.Frame{}
	log.WithField("kind", t.Kind()).Infof("Inject: process %s", t)

	provider, err := payload.ForTask(t, p.target, p.opts.Language)
	if err != nil {
		p.provider = nil
		log.Warnf("Inject: cannot build payload for %s: %v", t, err)
		p.transferState(Failed)
		return
	}
	p.provider = provider

	if d, isDelay := t.(task.Delay); isDelay {
		p.transferState(Working)
		p.deps.Timer.Start(d.Duration)
		return
	}

	frame, err := provider.Next()
	if err != nil {
		log.Warnf("Inject: failed to fetch initial report from payload provider: %v", err)
		p.transferState(Failed)
		return
	}
	p.staged = frame
	p.transferState(Working)
	p.deps.Timer.Start(p.txDelay)
}

// transferState moves to requested, settles, and applies the effects.
func (p *Processor) transferState(requested State) {
	from := p.state
	next, effects := Transition(from, requested, p.execute)
	if requested == from {
		return
	}

	p.state = requested
	p.deps.Observer.StateChanged(from, requested)
	switch requested {
	case TaskSucceeded:
		log.Info("Inject: task succeeded")
		p.deps.Observer.TaskFinished(p.current, OutcomeSucceeded)
	case Failed:
		log.WithFields(log.Fields{"task": p.current, "retransmits": p.retransmits}).Warn("Inject: task failed")
		if p.current != nil {
			p.deps.Observer.TaskFinished(p.current, OutcomeFailed)
		}
	case ScriptSucceeded:
		log.Info("Inject: script execution succeeded")
	}
	if next != requested {
		p.state = next
		p.deps.Observer.StateChanged(requested, next)
	}

	for _, e := range effects {
		p.apply(e)
	}
}

func (p *Processor) apply(e Effect) {
	switch e {
	case StopTimer:
		p.deps.Timer.Stop()
		p.awaitingTrigger = false
	case ResetRetransmit:
		p.retransmits = 0
	case ResetProvider:
		if p.provider != nil {
			p.provider.Reset()
		}
	case PauseExecution:
		p.execute = false
	case RunNextTask:
		if p.execute {
			p.runNextTask()
		}
	case RewindQueue:
		if err := p.deps.Queue.Rewind(); err != nil {
			log.Warnf("Inject: failed to rewind tasks: %v", err)
		}
	case FlushQueue:
		if err := p.deps.Queue.Flush(); err != nil {
			log.Warnf("Inject: failed to flush tasks: %v", err)
		}
	case SuccessAction:
		p.postAction(p.opts.OnSuccess)
	case FailureAction:
		p.postAction(p.opts.OnFail)
	}
}

func (p *Processor) postAction(a Action) {
	if a == ActionContinue {
		return
	}
	if p.deps.Modes == nil {
		log.Warnf("Inject: no mode switcher for action %s", a)
		return
	}
	switch a {
	case ActionDiscover:
		p.deps.Modes.EnterDiscovery()
	case ActionActiveEnum:
		p.deps.Modes.EnterActiveEnum(p.opts.Address)
	case ActionPassiveEnum:
		p.deps.Modes.EnterPassiveEnum(p.opts.Address)
	}
}
