// Package header holds the small set of wire constants shared between the
// arp and netdev packages, so that neither has to import the other just to
// agree on an EtherType.
package header

// EtherType identifies the payload protocol carried by an Ethernet frame.
type EtherType uint16

// The EtherType values used throughout the stack.
const (
	EtherTypeARP  EtherType = 0x0806
	EtherTypeIPv4 EtherType = 0x0800
)

// Family identifies the address family of a NetIf attachment.
type Family uint8

// The address families a NetIf may be attached for.
const (
	FamilyIPv4 Family = 0x02
)
