package arp

import (
	"time"

	"github.com/golang/glog"

	"github.com/relaynet/netstack/header"
)

// A Result reports the outcome of a Resolve call. The integer encoding is
// part of the contract upward callers rely on: FOUND=1, QUERY=0, ERROR=-1.
type Result int

// The three outcomes Resolve can report.
const (
	ResultQuery Result = 0
	ResultFound Result = 1
	ResultError Result = -1
)

// String implements fmt.Stringer.
func (r Result) String() string {
	switch r {
	case ResultQuery:
		return "QUERY"
	case ResultFound:
		return "FOUND"
	case ResultError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Resolve maps pa to a hardware address, coordinating with any other
// caller currently waiting on the same address.
//
//   - FOUND: out is filled in; use it now.
//   - QUERY: payload (if non-nil) has been buffered in the cache and will
//     be transmitted by the receive path once a reply arrives; the caller
//     must drop it from its own transmit pipeline. out is left untouched.
//   - ERROR: no resolution is possible (table full, allocation failure, or
//     a query-in-flight wait timed out); the caller retains ownership of
//     payload and must dispose of it itself.
//
// payload, when non-nil, is copied; Resolve does not retain the caller's
// slice.
func (c *Context) Resolve(nif NetIf, pa PA, out *HA, payload []byte) Result {
	t := c.table

	t.mu.Lock()
	deadline := time.Now().Add(resolveTimeout)

	if e := t.find(pa); e != nil {
		if !e.ha.IsZero() {
			*out = e.ha
			t.mu.Unlock()
			return ResultFound
		}

		// Query already in flight. Resend the request to cover the
		// case where the original was lost, then wait for a reply or
		// the deadline, tolerating spurious wakeups. sendRequest runs
		// unlocked, so the slot e pointed to could be cleared and
		// reallocated to an unrelated pa by another goroutine in the
		// meantime; e must be re-found under the lock on every pass,
		// never reused across the unlock, or a waiter could hand back
		// a different pa's hardware address under its own out.
		t.mu.Unlock()
		c.sendRequest(nif, pa)
		t.mu.Lock()

		for {
			e := t.find(pa)
			if e == nil || !e.used {
				t.mu.Unlock()
				return ResultError
			}
			if !e.ha.IsZero() {
				*out = e.ha
				t.mu.Unlock()
				return ResultFound
			}
			if !time.Now().Before(deadline) {
				t.clear(e)
				t.mu.Unlock()
				glog.V(1).Infof("arp: %v: %s", ErrTimeout, pa)
				return ResultError
			}
			t.wait(e, deadline)
		}
	}

	e := t.allocateFree()
	if e == nil {
		t.mu.Unlock()
		glog.V(1).Infof("arp: %v: %s", ErrTableFull, pa)
		return ResultError
	}

	e.used = true
	e.pa = pa
	e.ha = HAZero
	e.timestamp = time.Now()
	e.netif = nif
	e.payload = nil

	if payload != nil {
		buf, err := bufferPayload(payload)
		if err != nil {
			t.clear(e)
			t.mu.Unlock()
			glog.V(1).Infof("arp: %v: %s: %v", ErrAllocationFailed, pa, err)
			return ResultError
		}
		e.payload = buf
	}
	if e.cond == nil {
		e.cond = make(chan struct{})
	}
	t.mu.Unlock()

	c.sendRequest(nif, pa)
	return ResultQuery
}

// bufferPayload copies payload into a freshly allocated buffer. In Go this
// cannot realistically fail short of the runtime being out of memory (in
// which case make panics rather than returning an error), but the
// allocate-then-check shape is kept to preserve the source's control flow,
// and to give a single place an allocator with real failure modes could be
// substituted.
func bufferPayload(payload []byte) ([]byte, error) {
	buf := make([]byte, len(payload))
	copy(buf, payload)
	return buf, nil
}

// sendRequest transmits a broadcast ARP REQUEST for pa on nif's device. A
// transmit failure is logged and otherwise ignored: the source never
// inspects its tx() return value here either, relying on the 1-second
// retry (from a waiting Resolve call) or a subsequent caller's retry to
// paper over a dropped request.
func (c *Context) sendRequest(nif NetIf, pa PA) {
	dev := nif.Device()
	pkt, err := NewPacket(OperationRequest, dev.HardwareAddr(), nif.Unicast(), HAZero.HardwareAddr(), pa.IP())
	if err != nil {
		glog.Warningf("arp: building request for %s: %v", pa, err)
		return
	}
	b, err := pkt.MarshalBinary()
	if err != nil {
		glog.Warningf("arp: marshaling request for %s: %v", pa, err)
		return
	}
	if _, err := dev.Transmit(header.EtherTypeARP, b, HABroadcast.HardwareAddr()); err != nil {
		glog.V(1).Infof("arp: transmitting request for %s: %v: %v", pa, ErrTxFailed, err)
	}
}
