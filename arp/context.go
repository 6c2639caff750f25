package arp

import (
	"net"

	"github.com/relaynet/netstack/header"
)

// Device is the minimal egress capability the resolver requires from a
// network device driver: a hardware address to stamp outgoing packets with,
// and the ability to transmit a frame of a given EtherType to a destination
// hardware address. A netdev.Device structurally satisfies this interface
// without netdev needing to import arp.
type Device interface {
	// HardwareAddr returns the device's own link address.
	HardwareAddr() net.HardwareAddr

	// Transmit sends payload as the body of a frame of the given
	// EtherType, addressed to dst. It returns the number of bytes
	// written, or a negative count and an error on failure.
	Transmit(etherType header.EtherType, payload []byte, dst net.HardwareAddr) (int, error)
}

// NetIf is an IPv4 attachment point: the pairing of a Device with a local
// unicast protocol address that the resolver answers ARP requests for.
type NetIf interface {
	// Device returns the Device this NetIf is attached to.
	Device() Device

	// Unicast returns the IPv4 address this NetIf answers for.
	Unicast() net.IP
}

// Fabric is the dispatch fabric's interface toward the resolver: given a
// device and the address family an inbound frame implies, return the
// device's attached NetIf, if any. A netdev.Router implements Fabric.
type Fabric interface {
	NetIfByFamily(dev Device, family header.Family) (NetIf, bool)
}

// A Context is an ARP resolver bound to a single cache and dispatch fabric.
// Unlike the global arp_table/arp_init of a single-process C daemon, a
// Context carries no package-level state: the protocol registry holds a
// closure over a *Context (see Context.Receive), so multiple independent
// resolvers can coexist in one process if ever needed.
type Context struct {
	table  *Table
	fabric Fabric
}

// NewContext creates a Context backed by a fresh, empty cache and the given
// dispatch fabric. It is the Go equivalent of arp_init: the caller is still
// responsible for registering Context.Receive with the fabric under
// header.EtherTypeARP.
func NewContext(fabric Fabric) *Context {
	return &Context{
		table:  NewTable(),
		fabric: fabric,
	}
}

// Table returns the Context's underlying cache, for callers that need
// direct access (tests, diagnostics, an explicit periodic Sweep).
func (c *Context) Table() *Table {
	return c.table
}
