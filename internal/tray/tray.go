// Package tray is the optional system tray front end of the daemon.
package tray

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"hidject/internal/inject"
	"hidject/internal/protocol"
	"hidject/internal/task"
)

type action struct {
	title string
	fn    func()
}

// Tray shows the injection state in the system tray and offers menu
// actions. It implements inject.Observer.
type Tray struct {
	tooltip string
	actions []*action // nil entries are separators
	quitCh  chan struct{}

	mu       sync.Mutex
	status   *systray.MenuItem
	state    inject.State
	lastTask string
	ready    bool
}

func New(tooltip string) *Tray {
	return &Tray{tooltip: tooltip, quitCh: make(chan struct{})}
}

// AddMenuItem appends an action. Call before Run.
func (t *Tray) AddMenuItem(title string, fn func()) {
	t.actions = append(t.actions, &action{title: title, fn: fn})
}

// AddSeparator appends a separator. Call before Run.
func (t *Tray) AddSeparator() {
	t.actions = append(t.actions, nil)
}

// Run blocks in the systray event loop until Stop.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() { close(t.quitCh) })
}

// Stop ends the event loop.
func (t *Tray) Stop() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("hidject")
	systray.SetTooltip(t.tooltip)
	systray.SetIcon(iconFor(inject.NotInitialized))

	status := systray.AddMenuItem("", "Injection state")
	status.Disable()
	systray.AddSeparator()

	for _, a := range t.actions {
		if a == nil {
			systray.AddSeparator()
			continue
		}
		go t.dispatch(systray.AddMenuItem(a.title, ""), a.fn)
	}

	t.mu.Lock()
	t.status = status
	t.ready = true
	t.mu.Unlock()
	t.refresh()
}

func (t *Tray) dispatch(item *systray.MenuItem, fn func()) {
	for {
		select {
		case <-item.ClickedCh:
			fn()
		case <-t.quitCh:
			return
		}
	}
}

// statusLabel renders the status line of the menu.
func statusLabel(state inject.State, lastTask string) string {
	label := "State: " + state.String()
	if lastTask != "" {
		label += fmt.Sprintf(" (last: %s)", lastTask)
	}
	return label
}

func (t *Tray) refresh() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.ready {
		return
	}
	t.status.SetTitle(statusLabel(t.state, t.lastTask))
	systray.SetIcon(iconFor(t.state))
}

// StateChanged updates the icon and status line.
func (t *Tray) StateChanged(_, to inject.State) {
	t.mu.Lock()
	t.state = to
	t.mu.Unlock()
	t.refresh()
}

// FrameSent is ignored by the tray.
func (t *Tray) FrameSent(protocol.Frame, bool, error) {}

// TaskFinished records the last task outcome for the status line.
func (t *Tray) TaskFinished(tk task.Task, outcome inject.Outcome) {
	if tk == nil {
		return
	}
	t.mu.Lock()
	t.lastTask = fmt.Sprintf("%s %s", tk.Kind(), outcome)
	t.mu.Unlock()
	t.refresh()
}

// stateColor maps a state to the icon's BGRA fill.
func stateColor(s inject.State) [4]byte {
	switch s {
	case inject.Idle, inject.ScriptSucceeded:
		return [4]byte{0x50, 0xAF, 0x4C, 0xFF} // green
	case inject.Working, inject.TaskSucceeded:
		return [4]byte{0x00, 0x98, 0xFF, 0xFF} // orange
	case inject.Failed:
		return [4]byte{0x36, 0x43, 0xF4, 0xFF} // red
	default:
		return [4]byte{0x9E, 0x9E, 0x9E, 0xFF} // grey
	}
}

// iconFor returns a 16x16 32-bit ICO filled with the state's colour.
func iconFor(s inject.State) []byte {
	const (
		size      = 16
		pixels    = size * size * 4
		maskBytes = size * 4
		header    = 40
		offset    = 22
	)
	icon := make([]byte, offset+header+pixels+maskBytes)
	binary.LittleEndian.PutUint16(icon[2:], 1) // type: icon
	binary.LittleEndian.PutUint16(icon[4:], 1) // one image
	icon[6], icon[7] = size, size
	binary.LittleEndian.PutUint16(icon[10:], 1)  // planes
	binary.LittleEndian.PutUint16(icon[12:], 32) // bpp
	binary.LittleEndian.PutUint32(icon[14:], header+pixels+maskBytes)
	binary.LittleEndian.PutUint32(icon[18:], offset)
	dib := icon[offset:]
	binary.LittleEndian.PutUint32(dib[0:], header)
	binary.LittleEndian.PutUint32(dib[4:], size)
	binary.LittleEndian.PutUint32(dib[8:], size*2) // height includes the mask
	binary.LittleEndian.PutUint16(dib[12:], 1)
	binary.LittleEndian.PutUint16(dib[14:], 32)
	binary.LittleEndian.PutUint32(dib[20:], pixels)

	c := stateColor(s)
	px := dib[header : header+pixels]
	for i := 0; i < len(px); i += 4 {
		copy(px[i:i+4], c[:])
	}
	// The AND mask stays zero so every pixel is opaque
	return icon
}
