//go:build !linux

package input

// Stub implementation for platforms without configfs HID gadgets

// Gadget represents a stub gadget
type Gadget struct {
	OnEvent EventFunc
}

// NewGadget creates a new stub gadget
func NewGadget(cfg Config) *Gadget {
	return &Gadget{}
}

// Open always fails (stub)
func (g *Gadget) Open() error {
	return ErrUnsupported
}

// WriteKeyboardReport (stub)
func (g *Gadget) WriteKeyboardReport(report []byte) error {
	return ErrUnsupported
}

// WriteMouseReport (stub)
func (g *Gadget) WriteMouseReport(report []byte) error {
	return ErrUnsupported
}

// LEDs (stub)
func (g *Gadget) LEDs() byte {
	return 0
}

// Close (stub)
func (g *Gadget) Close() error {
	return nil
}
