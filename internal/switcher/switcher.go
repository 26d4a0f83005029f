// Package switcher tracks the operating mode the system is in and moves it
// to another mode when an injection script finishes.
package switcher

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"hidject/internal/protocol"
)

// Mode is an operating mode of the system.
type Mode string

const (
	// ModeInject runs injection scripts.
	ModeInject Mode = "inject"
	// ModeDiscovery scans for receivers and devices.
	ModeDiscovery Mode = "discovery"
	// ModeActiveEnum actively enumerates the target receiver.
	ModeActiveEnum Mode = "active_enum"
	// ModePassiveEnum sniffs traffic of the target receiver.
	ModePassiveEnum Mode = "passive_enum"
)

// Resetter drops the radio configuration before the mode changes.
type Resetter interface {
	Reset() error
}

// Switcher coordinates operating mode changes
type Switcher struct {
	mu      sync.Mutex
	mode    Mode
	address protocol.Address
	radio   Resetter

	// Callback for UI notifications
	onSwitch []func(mode Mode, addr protocol.Address)
}

// New creates a new Switcher in inject mode. radio may be nil.
func New(radio Resetter) *Switcher {
	return &Switcher{mode: ModeInject, radio: radio}
}

// OnSwitch adds a callback for mode changes. Callbacks run on the goroutine
// that requested the change and must not block.
func (s *Switcher) OnSwitch(callback func(mode Mode, addr protocol.Address)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSwitch = append(s.onSwitch, callback)
}

// EnterDiscovery switches to discovery mode.
func (s *Switcher) EnterDiscovery() {
	s.switchTo(ModeDiscovery, protocol.Address{})
}

// EnterActiveEnum switches to active enumeration of addr.
func (s *Switcher) EnterActiveEnum(addr protocol.Address) {
	s.switchTo(ModeActiveEnum, addr)
}

// EnterPassiveEnum switches to passive enumeration of addr.
func (s *Switcher) EnterPassiveEnum(addr protocol.Address) {
	s.switchTo(ModePassiveEnum, addr)
}

// EnterInject returns to inject mode.
func (s *Switcher) EnterInject() {
	s.switchTo(ModeInject, protocol.Address{})
}

func (s *Switcher) switchTo(mode Mode, addr protocol.Address) {
	s.mu.Lock()
	if s.mode == mode && s.address == addr {
		s.mu.Unlock()
		return
	}
	if mode != ModeInject && s.radio != nil {
		if err := s.radio.Reset(); err != nil {
			log.Warnf("Switcher: radio reset failed: %v", err)
		}
	}
	s.mode = mode
	s.address = addr
	callbacks := append([]func(Mode, protocol.Address){}, s.onSwitch...)
	s.mu.Unlock()

	if addr.IsZero() {
		log.Infof("Switcher: Entered %s mode", mode)
	} else {
		log.Infof("Switcher: Entered %s mode for %s", mode, addr)
	}
	for _, cb := range callbacks {
		cb(mode, addr)
	}
}

// Mode returns the current mode and its target address.
func (s *Switcher) Mode() (Mode, protocol.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode, s.address
}
