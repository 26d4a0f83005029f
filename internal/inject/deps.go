package inject

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"hidject/internal/protocol"
	"hidject/internal/task"
)

var (
	ErrNotIdle        = errors.New("inject: processor is not idle")
	ErrNotInitialized = errors.New("inject: processor is not initialized")
)

// Timer is a one-shot timer whose expiry calls Processor.HandleTimer.
// Start replaces any pending expiry.
type Timer interface {
	Start(d time.Duration)
	Stop()
}

// Radio is the RF transport. Completion of each Send is reported later
// through Processor.HandleRadioEvent.
type Radio interface {
	Setup(addr protocol.Address, v protocol.Variant) error
	Reset() error
	Send(f protocol.Frame) error
	Finalize(f *protocol.Frame)
	AddressForPipe(pipe uint8) (protocol.Address, bool)
	FlushRx()
}

// USB is the HID gadget transport. Completion is reported through
// Processor.HandleUSBEvent.
type USB interface {
	WriteKeyboardReport(report []byte) error
	WriteMouseReport(report []byte) error
}

// ModeSwitcher moves the whole system to another operating mode after a
// script succeeds or fails.
type ModeSwitcher interface {
	EnterDiscovery()
	EnterActiveEnum(addr protocol.Address)
	EnterPassiveEnum(addr protocol.Address)
}

// RadioEvent is a transmission completion reported by the radio.
type RadioEvent int

const (
	TxSuccess RadioEvent = iota
	TxSuccessAck
	TxFailed
	RxReceived
)

func (e RadioEvent) String() string {
	switch e {
	case TxSuccess:
		return "tx_success"
	case TxSuccessAck:
		return "tx_success_ack"
	case TxFailed:
		return "tx_failed"
	case RxReceived:
		return "rx_received"
	}
	return fmt.Sprintf("radio_event(%d)", int(e))
}

// USBEvent is a HID class event reported by the USB gadget.
type USBEvent int

const (
	OutReportReady USBEvent = iota
	InReportDone
	BootProtocolSet
	ReportProtocolSet
)

func (e USBEvent) String() string {
	switch e {
	case OutReportReady:
		return "out_report_ready"
	case InReportDone:
		return "in_report_done"
	case BootProtocolSet:
		return "boot_protocol_set"
	case ReportProtocolSet:
		return "report_protocol_set"
	}
	return fmt.Sprintf("usb_event(%d)", int(e))
}

// Action runs after a script succeeds or a task fails.
type Action string

const (
	ActionContinue    Action = "continue"
	ActionDiscover    Action = "discover"
	ActionActiveEnum  Action = "active_enum"
	ActionPassiveEnum Action = "passive_enum"
)

// ParseAction parses an action name. Empty means continue.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case "":
		return ActionContinue, nil
	case ActionContinue, ActionDiscover, ActionActiveEnum, ActionPassiveEnum:
		return a, nil
	}
	return "", fmt.Errorf("inject: unknown action %q", s)
}

// Trigger controls when USB injection starts.
type Trigger string

const (
	TriggerImmediate Trigger = "immediate"
	// TriggerLEDUpdate holds the first frame until the host writes a LED
	// output report, which happens once the gadget is enumerated.
	TriggerLEDUpdate Trigger = "led_update"
)

// ParseTrigger parses a trigger name. Empty means immediate.
func ParseTrigger(s string) (Trigger, error) {
	switch t := Trigger(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return TriggerImmediate, nil
	case TriggerImmediate, TriggerLEDUpdate:
		return t, nil
	}
	return "", fmt.Errorf("inject: unknown usb trigger %q", s)
}

// Outcome of a finished task.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// Observer is told about everything the processor does. Calls happen on
// the processor's goroutine and must not block.
type Observer interface {
	StateChanged(from, to State)
	FrameSent(f protocol.Frame, usb bool, err error)
	TaskFinished(t task.Task, outcome Outcome)
}

// Observers fans out to several observers.
type Observers []Observer

func (o Observers) StateChanged(from, to State) {
	for _, obs := range o {
		obs.StateChanged(from, to)
	}
}

func (o Observers) FrameSent(f protocol.Frame, usb bool, err error) {
	for _, obs := range o {
		obs.FrameSent(f, usb, err)
	}
}

func (o Observers) TaskFinished(t task.Task, outcome Outcome) {
	for _, obs := range o {
		obs.TaskFinished(t, outcome)
	}
}

// Options configure a processor.
type Options struct {
	// Address of the target receiver. The zero address selects USB injection.
	Address  protocol.Address
	WorkMode protocol.WorkMode

	OnSuccess Action
	OnFail    Action

	USBTrigger   Trigger
	TriggerDelay time.Duration

	// Language is the keyboard layout for tasks that don't name one.
	Language string

	RetransmitCeiling int
	Debug             bool
}

func (o *Options) applyDefaults() {
	if o.WorkMode == "" {
		o.WorkMode = protocol.WorkModeUnifying
	}
	if o.OnSuccess == "" {
		o.OnSuccess = ActionContinue
	}
	if o.OnFail == "" {
		o.OnFail = ActionContinue
	}
	if o.USBTrigger == "" {
		o.USBTrigger = TriggerImmediate
	}
	if o.TriggerDelay <= 0 {
		o.TriggerDelay = DefaultTriggerDelay
	}
	if o.Language == "" {
		o.Language = "us"
	}
	if o.RetransmitCeiling <= 0 {
		o.RetransmitCeiling = DefaultRetransmitCeiling
	}
}

// Deps are the collaborators a processor drives. Radio may be nil for USB
// injection and USB may be nil for radio injection.
type Deps struct {
	Timer    Timer
	Radio    Radio
	USB      USB
	Queue    task.Queue
	Modes    ModeSwitcher
	Observer Observer
}
