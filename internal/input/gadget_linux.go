//go:build linux

package input

import (
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"hidject/internal/inject"
)

// Gadget writes boot keyboard and mouse reports to /dev/hidgN nodes of a
// configfs HID gadget.
type Gadget struct {
	cfg     Config
	kbFd    int
	mouseFd int
	done    chan struct{}
	wg      sync.WaitGroup

	// OnEvent receives InReportDone after each accepted report and
	// OutReportReady for each LED report.
	OnEvent EventFunc

	mu   sync.Mutex
	leds byte
}

// NewGadget creates a gadget writer; Open opens the devices.
func NewGadget(cfg Config) *Gadget {
	return &Gadget{cfg: cfg, kbFd: -1, mouseFd: -1, done: make(chan struct{})}
}

func openDevice(path string) (int, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("input: open %s: %w", path, err)
	}
	return fd, nil
}

// Open opens the configured device nodes and starts the LED reader.
func (g *Gadget) Open() error {
	if g.cfg.KeyboardDevice != "" {
		fd, err := openDevice(g.cfg.KeyboardDevice)
		if err != nil {
			return err
		}
		g.kbFd = fd
	}
	if g.cfg.MouseDevice != "" {
		fd, err := openDevice(g.cfg.MouseDevice)
		if err != nil {
			g.Close()
			return err
		}
		g.mouseFd = fd
	}
	log.Infof("USB gadget: keyboard=%s mouse=%s", g.cfg.KeyboardDevice, g.cfg.MouseDevice)

	if g.cfg.WatchLEDs && g.kbFd >= 0 {
		g.wg.Add(1)
		go g.ledLoop()
	}
	return nil
}

// WriteKeyboardReport writes an 8-byte boot keyboard report.
func (g *Gadget) WriteKeyboardReport(report []byte) error {
	return g.write(g.kbFd, report)
}

// WriteMouseReport writes a 4-byte boot mouse report.
func (g *Gadget) WriteMouseReport(report []byte) error {
	return g.write(g.mouseFd, report)
}

func (g *Gadget) write(fd int, report []byte) error {
	if fd < 0 {
		return errors.New("input: device not open")
	}
	n, err := unix.Write(fd, report)
	if errors.Is(err, unix.EAGAIN) {
		return ErrBusy
	}
	if err != nil {
		return fmt.Errorf("input: write report: %w", err)
	}
	if n != len(report) {
		return fmt.Errorf("input: short write %d/%d", n, len(report))
	}
	g.emit(inject.InReportDone)
	return nil
}

func (g *Gadget) emit(ev inject.USBEvent) {
	if g.OnEvent != nil {
		g.OnEvent(ev)
	}
}

// ledLoop waits for LED output reports from the host.
func (g *Gadget) ledLoop() {
	defer g.wg.Done()
	fds := []unix.PollFd{{Fd: int32(g.kbFd), Events: unix.POLLIN}}
	buf := make([]byte, 8)
	for {
		select {
		case <-g.done:
			return
		default:
		}

		n, err := unix.Poll(fds, 200)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			log.Warnf("USB gadget: poll failed: %v", err)
			return
		}
		if n == 0 || fds[0].Revents&unix.POLLIN == 0 {
			continue
		}

		r, err := unix.Read(g.kbFd, buf)
		if err != nil || r == 0 {
			continue
		}
		g.mu.Lock()
		g.leds = buf[r-1]
		g.mu.Unlock()
		g.emit(inject.OutReportReady)
	}
}

// LEDs returns the last LED state written by the host.
func (g *Gadget) LEDs() byte {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.leds
}

// Close stops the LED reader and closes the devices.
func (g *Gadget) Close() error {
	select {
	case <-g.done:
	default:
		close(g.done)
	}
	g.wg.Wait()
	for _, fd := range []*int{&g.kbFd, &g.mouseFd} {
		if *fd >= 0 {
			unix.Close(*fd)
			*fd = -1
		}
	}
	return nil
}
