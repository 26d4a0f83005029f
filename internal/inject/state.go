// Package inject drives scripted HID injection: it pulls tasks from a
// queue, turns them into frames through payload providers and paces the
// frames over a radio or USB transport.
package inject

import "fmt"

// State of the injection processor.
type State int

const (
	NotInitialized State = iota
	Idle
	Working
	TaskSucceeded
	ScriptSucceeded
	Failed
)

var stateNames = map[State]string{
	NotInitialized:  "not_initialized",
	Idle:            "idle",
	Working:         "working",
	TaskSucceeded:   "task_succeeded",
	ScriptSucceeded: "script_succeeded",
	Failed:          "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Effect is a side effect the processor performs after a state change.
type Effect int

const (
	StopTimer Effect = iota
	ResetRetransmit
	ResetProvider
	PauseExecution
	RunNextTask
	RewindQueue
	FlushQueue
	SuccessAction
	FailureAction
)

var effectNames = [...]string{
	"stop_timer", "reset_retransmit", "reset_provider", "pause_execution",
	"run_next_task", "rewind_queue", "flush_queue", "success_action", "failure_action",
}

func (e Effect) String() string {
	if int(e) < len(effectNames) {
		return effectNames[e]
	}
	return fmt.Sprintf("effect(%d)", int(e))
}

// Transition computes the state the processor settles in when asked to
// enter requested, and the effects to apply in order once it is there.
// TaskSucceeded, ScriptSucceeded and Failed are momentary and settle in Idle.
// Requesting the current state is a no-op.
func Transition(current, requested State, executing bool) (State, []Effect) {
	if requested == current {
		return current, nil
	}

	switch requested {
	case Idle:
		return Idle, []Effect{StopTimer, ResetRetransmit, ResetProvider, PauseExecution}
	case TaskSucceeded:
		effects := []Effect{StopTimer, ResetRetransmit, ResetProvider}
		if executing {
			effects = append(effects, RunNextTask)
		}
		return Idle, effects
	case Failed:
		return Idle, []Effect{StopTimer, ResetRetransmit, ResetProvider, RewindQueue, PauseExecution, FailureAction}
	case ScriptSucceeded:
		return Idle, []Effect{StopTimer, ResetRetransmit, FlushQueue, SuccessAction}
	case NotInitialized:
		return NotInitialized, []Effect{StopTimer, ResetRetransmit, PauseExecution}
	default:
		return requested, nil
	}
}
