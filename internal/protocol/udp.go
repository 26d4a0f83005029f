package protocol

import (
	"encoding/binary"
	"errors"
)

// Radio bridge datagram types
const (
	BridgeHeartbeat    uint8 = 0x11
	BridgeFrame        uint8 = 0x20 // Host -> Bridge: transmit a frame
	BridgeTxSuccess    uint8 = 0x21 // Bridge -> Host: frame acknowledged
	BridgeTxSuccessAck uint8 = 0x22 // Bridge -> Host: acknowledged with ack payload
	BridgeTxFailed     uint8 = 0x23 // Bridge -> Host: retransmits exhausted
	BridgeRxReceived   uint8 = 0x24 // Bridge -> Host: unsolicited inbound payload
	BridgeSetup        uint8 = 0x30 // Host -> Bridge: PTX mode on address/family
	BridgeReset        uint8 = 0x31 // Host -> Bridge: back to idle
)

// Header: [type(1)] [seq(4)] [timestamp(8)] = 13 bytes
const BridgeHeaderSize = 13

// MaxPayload bounds frame and ack payloads (ESB maximum).
const MaxPayload = 32

// Datagram is one message exchanged with the radio bridge daemon.
//
// Wire format per type:
//
//	Frame        (0x20): header + pipe(uint8) + len(uint8) + data
//	TxSuccessAck (0x22): header + len(uint8) + payload
//	RxReceived   (0x24): header + len(uint8) + payload
//	Setup        (0x30): header + address(5) + variant(uint8)
//	TxSuccess, TxFailed, Reset, Heartbeat: header only
type Datagram struct {
	Type      uint8
	Seq       uint32
	Timestamp int64
	Pipe      uint8
	Address   Address
	Variant   Variant
	Payload   []byte
}

// EncodeDatagram serializes a Datagram to wire format.
func EncodeDatagram(d *Datagram) []byte {
	size := BridgeHeaderSize
	switch d.Type {
	case BridgeFrame:
		size += 2 + len(d.Payload)
	case BridgeTxSuccessAck, BridgeRxReceived:
		size += 1 + len(d.Payload)
	case BridgeSetup:
		size += AddressLen + 1
	}

	buf := make([]byte, size)
	buf[0] = d.Type
	binary.BigEndian.PutUint32(buf[1:5], d.Seq)
	binary.BigEndian.PutUint64(buf[5:13], uint64(d.Timestamp))

	body := buf[BridgeHeaderSize:]
	switch d.Type {
	case BridgeFrame:
		body[0] = d.Pipe
		body[1] = uint8(len(d.Payload))
		copy(body[2:], d.Payload)
	case BridgeTxSuccessAck, BridgeRxReceived:
		body[0] = uint8(len(d.Payload))
		copy(body[1:], d.Payload)
	case BridgeSetup:
		copy(body[0:AddressLen], d.Address[:])
		body[AddressLen] = uint8(d.Variant)
	}

	return buf
}

// DecodeDatagram deserializes wire bytes into a Datagram.
func DecodeDatagram(data []byte) (*Datagram, error) {
	if len(data) < BridgeHeaderSize {
		return nil, errors.New("bridge: datagram too short")
	}

	d := &Datagram{
		Type:      data[0],
		Seq:       binary.BigEndian.Uint32(data[1:5]),
		Timestamp: int64(binary.BigEndian.Uint64(data[5:13])),
	}

	body := data[BridgeHeaderSize:]
	switch d.Type {
	case BridgeFrame:
		if len(body) < 2 || len(body) < 2+int(body[1]) {
			return nil, errors.New("bridge: frame payload too short")
		}
		d.Pipe = body[0]
		d.Payload = append([]byte(nil), body[2:2+int(body[1])]...)
	case BridgeTxSuccessAck, BridgeRxReceived:
		if len(body) < 1 || len(body) < 1+int(body[0]) {
			return nil, errors.New("bridge: payload too short")
		}
		d.Payload = append([]byte(nil), body[1:1+int(body[0])]...)
	case BridgeSetup:
		if len(body) < AddressLen+1 {
			return nil, errors.New("bridge: setup payload too short")
		}
		copy(d.Address[:], body[0:AddressLen])
		d.Variant = Variant(body[AddressLen])
	case BridgeTxSuccess, BridgeTxFailed, BridgeReset, BridgeHeartbeat:
		// no payload
	default:
		return nil, errors.New("bridge: unknown datagram type")
	}

	return d, nil
}
