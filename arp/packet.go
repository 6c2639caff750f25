package arp

import (
	"encoding/binary"
	"net"
)

// packetSize is the length in bytes of an ARP-over-Ethernet message: 2 (hrd)
// + 2 (pro) + 1 (hln) + 1 (pln) + 2 (op) + 6 (sha) + 4 (spa) + 6 (tha) + 4
// (tpa).
const packetSize = 2 + 2 + 1 + 1 + 2 + 6 + 4 + 6 + 4

const (
	hardwareTypeEthernet uint16 = 1
	protocolTypeIPv4     uint16 = 0x0800
	hardwareAddrLen             = 6
	protocolAddrLen             = 4
)

// An Operation is an ARP operation, such as request or reply.
type Operation uint16

// The two ARP operations defined by RFC 826.
const (
	OperationRequest Operation = 1
	OperationReply   Operation = 2
)

// String implements fmt.Stringer.
func (op Operation) String() string {
	switch op {
	case OperationRequest:
		return "request"
	case OperationReply:
		return "reply"
	default:
		return "unknown"
	}
}

// A Packet is a decoded ARP-over-Ethernet message restricted to the
// Ethernet/IPv4 combination: HardwareType is always 1 and ProtocolType is
// always the IPv4 EtherType, so those fields are not exposed as struct
// fields the way a fully general ARP packet would expose them.
type Packet struct {
	// Operation specifies the ARP operation being performed, such as
	// request or reply.
	Operation Operation

	// SenderHardwareAddr specifies the hardware address of the sender of
	// this Packet.
	SenderHardwareAddr net.HardwareAddr

	// SenderIP specifies the IPv4 address of the sender of this Packet.
	SenderIP net.IP

	// TargetHardwareAddr specifies the hardware address of the target of
	// this Packet. It is the all-zero address in a request whose target
	// hardware address is not yet known.
	TargetHardwareAddr net.HardwareAddr

	// TargetIP specifies the IPv4 address of the target of this Packet.
	TargetIP net.IP
}

// NewPacket creates a new Packet from an Operation and hardware/IPv4
// address values for both a sender and a target.
//
// If either hardware address is not 6 bytes, or the two differ in length,
// ErrInvalidHardwareAddr is returned. If either IP address is not an IPv4
// address, ErrInvalidIP is returned.
func NewPacket(op Operation, srcHW net.HardwareAddr, srcIP net.IP, dstHW net.HardwareAddr, dstIP net.IP) (*Packet, error) {
	if len(srcHW) != hardwareAddrLen || len(dstHW) != hardwareAddrLen {
		return nil, ErrInvalidHardwareAddr
	}

	srcIP4 := srcIP.To4()
	if srcIP4 == nil {
		return nil, ErrInvalidIP
	}
	dstIP4 := dstIP.To4()
	if dstIP4 == nil {
		return nil, ErrInvalidIP
	}

	return &Packet{
		Operation:          op,
		SenderHardwareAddr: srcHW,
		SenderIP:           srcIP4,
		TargetHardwareAddr: dstHW,
		TargetIP:           dstIP4,
	}, nil
}

// MarshalBinary allocates a byte slice containing the 28-octet wire form of
// p. MarshalBinary never returns an error. An address field that is nil or
// shorter than its wire field leaves the remaining octets zero, as does an
// IP address that is not IPv4.
func (p *Packet) MarshalBinary() ([]byte, error) {
	b := make([]byte, packetSize)

	binary.BigEndian.PutUint16(b[0:2], hardwareTypeEthernet)
	binary.BigEndian.PutUint16(b[2:4], protocolTypeIPv4)
	b[4] = hardwareAddrLen
	b[5] = protocolAddrLen
	binary.BigEndian.PutUint16(b[6:8], uint16(p.Operation))

	n := 8
	copy(b[n:n+hardwareAddrLen], p.SenderHardwareAddr)
	n += hardwareAddrLen
	copy(b[n:n+protocolAddrLen], p.SenderIP.To4())
	n += protocolAddrLen
	copy(b[n:n+hardwareAddrLen], p.TargetHardwareAddr)
	n += hardwareAddrLen
	copy(b[n:n+protocolAddrLen], p.TargetIP.To4())

	return b, nil
}

// UnmarshalBinary unmarshals a raw ARP payload into p.
//
// It returns ErrMalformedFrame if b is shorter than 28 octets, or if the
// hrd, pro, hln or pln fields do not describe Ethernet-over-IPv4 ARP.
// Octets beyond the 28th are ignored, so b may be a larger buffer (for
// example, an Ethernet frame payload with trailing padding).
func (p *Packet) UnmarshalBinary(b []byte) error {
	if len(b) < packetSize {
		return ErrMalformedFrame
	}

	hrd := binary.BigEndian.Uint16(b[0:2])
	pro := binary.BigEndian.Uint16(b[2:4])
	hln := b[4]
	pln := b[5]
	if hrd != hardwareTypeEthernet || pro != protocolTypeIPv4 || hln != hardwareAddrLen || pln != protocolAddrLen {
		return ErrMalformedFrame
	}

	p.Operation = Operation(binary.BigEndian.Uint16(b[6:8]))

	n := 8
	sha := make(net.HardwareAddr, hardwareAddrLen)
	copy(sha, b[n:n+hardwareAddrLen])
	p.SenderHardwareAddr = sha
	n += hardwareAddrLen

	spa := make(net.IP, protocolAddrLen)
	copy(spa, b[n:n+protocolAddrLen])
	p.SenderIP = spa
	n += protocolAddrLen

	tha := make(net.HardwareAddr, hardwareAddrLen)
	copy(tha, b[n:n+hardwareAddrLen])
	p.TargetHardwareAddr = tha
	n += hardwareAddrLen

	tpa := make(net.IP, protocolAddrLen)
	copy(tpa, b[n:n+protocolAddrLen])
	p.TargetIP = tpa

	return nil
}
