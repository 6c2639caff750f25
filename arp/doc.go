// Package arp implements an ARP resolver, as described in RFC 826: it
// parses and generates ARP-over-Ethernet frames, maintains a fixed-capacity
// cache of protocol-address-to-hardware-address bindings with time-based
// expiry, and arbitrates between concurrent callers that are all waiting on
// the same in-flight resolution.
//
// The resolver does not perform any I/O itself. It is driven by a Fabric
// (typically a *netdev.Router) that demultiplexes inbound Ethernet frames by
// EtherType and hands ARP payloads to Context.Receive, and it drives egress
// through the small Device/NetIf interfaces a Fabric implementation
// satisfies. See the netdev package for a concrete dispatch fabric and a
// packet-socket device backend.
package arp
