// Package network connects the injection engine to the outside world: the
// UDP radio bridge that owns the RF dongle, and the WebSocket status feed.
package network

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"hidject/internal/inject"
	"hidject/internal/protocol"
)

var ErrNotConnected = errors.New("bridge: not connected")

// Bridge is the radio transport. Frames go to a bridge daemon over UDP and
// the daemon reports every transmission outcome back.
type Bridge struct {
	bridgeAddr string
	conn       *net.UDPConn
	seq        uint32 // atomic
	done       chan struct{}
	stopOnce   sync.Once

	// OnEvent is called from the read loop for each transmission outcome.
	OnEvent func(ev inject.RadioEvent)

	mu       sync.Mutex
	address  protocol.Address
	variant  protocol.Variant
	pending  [][]byte
	lastSeen time.Time

	dedup seqDedup
}

// seqDedup tracks recently seen sequence numbers to discard duplicated replies.
type seqDedup struct {
	ring [256]uint32
	pos  int
	seen map[uint32]struct{}
}

func newSeqDedup() seqDedup {
	return seqDedup{seen: make(map[uint32]struct{}, 256)}
}

func (d *seqDedup) isDuplicate(seq uint32) bool {
	if _, ok := d.seen[seq]; ok {
		return true
	}
	old := d.ring[d.pos]
	if old != 0 {
		delete(d.seen, old)
	}
	d.ring[d.pos] = seq
	d.seen[seq] = struct{}{}
	d.pos = (d.pos + 1) % len(d.ring)
	return false
}

// NewBridge creates a bridge client for the daemon at "host:port".
func NewBridge(bridgeAddr string) *Bridge {
	return &Bridge{
		bridgeAddr: bridgeAddr,
		done:       make(chan struct{}),
		dedup:      newSeqDedup(),
	}
}

// Start opens the socket and begins receiving replies.
func (b *Bridge) Start() error {
	raddr, err := net.ResolveUDPAddr("udp", b.bridgeAddr)
	if err != nil {
		return err
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return err
	}
	b.conn = conn
	conn.SetReadBuffer(1 << 16)

	log.Infof("Radio bridge: Connected to %s from %s", b.bridgeAddr, conn.LocalAddr())

	b.sendControl(protocol.BridgeHeartbeat)
	go b.heartbeatLoop()
	go b.readLoop()
	return nil
}

func (b *Bridge) heartbeatLoop() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.sendControl(protocol.BridgeHeartbeat)
		case <-b.done:
			return
		}
	}
}

func (b *Bridge) sendControl(typ uint8) error {
	return b.write(&protocol.Datagram{Type: typ})
}

func (b *Bridge) write(d *protocol.Datagram) error {
	if b.conn == nil {
		return ErrNotConnected
	}
	d.Seq = atomic.AddUint32(&b.seq, 1)
	d.Timestamp = time.Now().UnixMilli()
	_, err := b.conn.Write(protocol.EncodeDatagram(d))
	return err
}

func (b *Bridge) readLoop() {
	buf := make([]byte, 128)
	for {
		n, err := b.conn.Read(buf)
		if err != nil {
			select {
			case <-b.done:
				return
			default:
				continue
			}
		}

		d, err := protocol.DecodeDatagram(buf[:n])
		if err != nil {
			log.Warnf("Radio bridge: dropping datagram: %v", err)
			continue
		}

		b.mu.Lock()
		b.lastSeen = time.Now()
		b.mu.Unlock()

		if d.Type == protocol.BridgeHeartbeat {
			continue
		}
		if b.dedup.isDuplicate(d.Seq) {
			continue
		}
		b.dispatch(d)
	}
}

func (b *Bridge) dispatch(d *protocol.Datagram) {
	var ev inject.RadioEvent
	switch d.Type {
	case protocol.BridgeTxSuccess:
		ev = inject.TxSuccess
	case protocol.BridgeTxSuccessAck:
		b.queuePayload(d.Payload)
		ev = inject.TxSuccessAck
	case protocol.BridgeTxFailed:
		ev = inject.TxFailed
	case protocol.BridgeRxReceived:
		b.queuePayload(d.Payload)
		ev = inject.RxReceived
	default:
		return
	}
	if b.OnEvent != nil {
		b.OnEvent(ev)
	}
}

func (b *Bridge) queuePayload(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pending) < 32 {
		b.pending = append(b.pending, p)
	}
}

// Setup switches the dongle to transmit mode on addr using the frame family's
// channel table.
func (b *Bridge) Setup(addr protocol.Address, v protocol.Variant) error {
	b.mu.Lock()
	b.address = addr
	b.variant = v
	b.pending = nil
	b.mu.Unlock()
	log.Infof("Radio bridge: setup %s (%s)", addr, v)
	return b.write(&protocol.Datagram{Type: protocol.BridgeSetup, Address: addr, Variant: v})
}

// Reset returns the dongle to idle and forgets the address.
func (b *Bridge) Reset() error {
	b.mu.Lock()
	b.address = protocol.Address{}
	b.pending = nil
	b.mu.Unlock()
	return b.sendControl(protocol.BridgeReset)
}

// Send transmits one frame.
func (b *Bridge) Send(f protocol.Frame) error {
	if len(f.Data) > protocol.MaxPayload {
		return errors.New("bridge: frame too long")
	}
	return b.write(&protocol.Datagram{Type: protocol.BridgeFrame, Pipe: f.Pipe, Payload: f.Data})
}

// Finalize writes the Logitech checksum into the last byte.
func (b *Bridge) Finalize(f *protocol.Frame) {
	protocol.Finalize(f.Data)
}

// AddressForPipe returns the RF address behind a pipe. Only pipe 0 is used.
func (b *Bridge) AddressForPipe(pipe uint8) (protocol.Address, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if pipe != 0 || b.address.IsZero() {
		return protocol.Address{}, false
	}
	return b.address, true
}

// FlushRx discards inbound payloads received so far.
func (b *Bridge) FlushRx() {
	b.mu.Lock()
	b.pending = nil
	b.mu.Unlock()
}

// Pending returns the number of unread inbound payloads.
func (b *Bridge) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Alive reports whether the daemon answered within the last 15 seconds.
func (b *Bridge) Alive() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.lastSeen.IsZero() && time.Since(b.lastSeen) < 15*time.Second
}

// Stop closes the bridge connection.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		if b.conn != nil {
			b.conn.Close()
		}
	})
}
