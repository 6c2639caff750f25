package arp

import "errors"

// Sentinel errors used across the arp package. Some (ErrInvalidHardwareAddr,
// ErrInvalidIP, ErrMalformedFrame, ErrTableFull) are returned directly by an
// exported or package-internal method and should be compared against with
// errors.Is rather than matching on error strings. The rest name error
// conditions that Resolve reports only through its Result return, never as
// a Go error; see each one's comment.
var (
	// ErrInvalidHardwareAddr is returned when a hardware address supplied
	// to NewPacket is not 6 bytes, or when a pair of hardware addresses
	// passed together differ in length.
	ErrInvalidHardwareAddr = errors.New("arp: invalid hardware address")

	// ErrInvalidIP is returned when an IP address supplied to NewPacket is
	// not a 4-byte IPv4 address.
	ErrInvalidIP = errors.New("arp: invalid IPv4 address")

	// ErrMalformedFrame is returned by Packet.UnmarshalBinary when the
	// input is too short, or its hrd/pro/hln/pln fields do not describe
	// Ethernet-over-IPv4 ARP.
	ErrMalformedFrame = errors.New("arp: malformed frame")

	// ErrTableFull is returned by Table.insert when the cache has no free
	// slot for a new entry. Resolve's own table-full path never sees this
	// value (it calls allocateFree directly), so it logs ErrTableFull
	// itself rather than propagating it; see resolve.go.
	ErrTableFull = errors.New("arp: table full")

	// ErrTimeout classifies a Resolve query-in-flight wait that exceeded
	// its deadline without a reply. Resolve reports this as ResultError,
	// not as a Go error; it is only named here so the condition has a
	// stable identity in logs.
	ErrTimeout = errors.New("arp: resolve timed out")

	// ErrAllocationFailed classifies a Resolve call that could not buffer
	// a pending payload onto a newly allocated entry. Resolve reports
	// this as ResultError, not as a Go error; it is only named here so
	// the condition has a stable identity in logs.
	ErrAllocationFailed = errors.New("arp: could not buffer pending payload")

	// ErrTxFailed classifies a transmit failure from a Device. It is
	// wrapped around the device's own error for diagnostics; neither
	// Resolve nor Receive mutate cache state on this error, matching the
	// source's arp_send_request/arp_send_reply, which never inspect
	// tx()'s return value to decide whether to roll anything back.
	ErrTxFailed = errors.New("arp: transmit failed")
)
