package network

import (
	"math/rand"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"hidject/internal/protocol"
)

// SimBridge is an in-process bridge daemon without a radio. It acknowledges
// every frame (or fails a configurable share of them) so scripts can be
// dry-run and the bridge protocol tested end to end.
type SimBridge struct {
	conn *net.UDPConn
	done chan struct{}

	// FailRate is the probability of answering TxFailed instead of TxSuccess.
	FailRate float64
	// AckPayload, when set, is piggy-backed on every success.
	AckPayload []byte
	Debug      bool

	mu      sync.Mutex
	frames  []protocol.Frame
	address protocol.Address
	variant protocol.Variant
	clients map[string]time.Time
}

// NewSimBridge creates a simulator; Start binds it.
func NewSimBridge() *SimBridge {
	return &SimBridge{
		done:    make(chan struct{}),
		clients: make(map[string]time.Time),
	}
}

// Start listens on addr ("127.0.0.1:0" picks a free port).
func (s *SimBridge) Start(addr string) error {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return err
	}
	s.conn = conn
	log.Infof("Sim bridge: Listening on %s", conn.LocalAddr())
	go s.readLoop()
	return nil
}

// Addr returns the bound address.
func (s *SimBridge) Addr() string {
	return s.conn.LocalAddr().String()
}

func (s *SimBridge) readLoop() {
	buf := make([]byte, 128)
	for {
		n, remote, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				continue
			}
		}

		d, err := protocol.DecodeDatagram(buf[:n])
		if err != nil {
			continue
		}

		s.mu.Lock()
		if _, ok := s.clients[remote.String()]; !ok {
			log.Infof("Sim bridge: client %s connected", remote)
		}
		s.clients[remote.String()] = time.Now()
		s.mu.Unlock()

		switch d.Type {
		case protocol.BridgeHeartbeat:
			s.reply(remote, &protocol.Datagram{Type: protocol.BridgeHeartbeat, Seq: d.Seq})
		case protocol.BridgeSetup:
			s.mu.Lock()
			s.address = d.Address
			s.variant = d.Variant
			s.mu.Unlock()
			log.Infof("Sim bridge: PTX on %s (%s)", d.Address, d.Variant)
		case protocol.BridgeReset:
			s.mu.Lock()
			s.address = protocol.Address{}
			s.mu.Unlock()
		case protocol.BridgeFrame:
			s.handleFrame(remote, d)
		}
	}
}

func (s *SimBridge) handleFrame(remote *net.UDPAddr, d *protocol.Datagram) {
	frame := protocol.Frame{Data: d.Payload, Pipe: d.Pipe}
	s.mu.Lock()
	s.frames = append(s.frames, frame)
	s.mu.Unlock()

	if s.Debug {
		log.Debugf("Sim bridge: %s frame %s", protocol.Classify(frame.Data), frame)
	}

	if s.FailRate > 0 && rand.Float64() < s.FailRate {
		s.reply(remote, &protocol.Datagram{Type: protocol.BridgeTxFailed, Seq: d.Seq})
		return
	}
	if len(s.AckPayload) > 0 {
		s.reply(remote, &protocol.Datagram{Type: protocol.BridgeTxSuccessAck, Seq: d.Seq, Payload: s.AckPayload})
		return
	}
	s.reply(remote, &protocol.Datagram{Type: protocol.BridgeTxSuccess, Seq: d.Seq})
}

func (s *SimBridge) reply(to *net.UDPAddr, d *protocol.Datagram) {
	d.Timestamp = time.Now().UnixMilli()
	s.conn.WriteToUDP(protocol.EncodeDatagram(d), to)
}

// Frames returns the frames received so far.
func (s *SimBridge) Frames() []protocol.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.Frame(nil), s.frames...)
}

// Target returns the address and family the client configured.
func (s *SimBridge) Target() (protocol.Address, protocol.Variant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.address, s.variant
}

// Stop shuts the simulator down.
func (s *SimBridge) Stop() {
	close(s.done)
	if s.conn != nil {
		s.conn.Close()
	}
}
