package arp

import (
	"time"

	"github.com/golang/glog"

	"github.com/relaynet/netstack/header"
)

// Receive is the protocol handler the dispatch fabric invokes for every
// inbound frame of EtherType 0x0806 on dev. It is the method a Fabric's
// protocol registry should hold a closure over (see RegisterProtocol in
// the netdev package), which is how this Context avoids any package-level
// state: arp_init's global arp_table becomes c.table, captured by the
// closure instead of reached through a singleton.
//
// Receive never blocks except to acquire the cache lock, and never calls
// back into Resolve.
func (c *Context) Receive(payload []byte, dev Device) {
	pkt := new(Packet)
	if err := pkt.UnmarshalBinary(payload); err != nil {
		// MalformedFrame: dropped silently, per spec.
		return
	}

	spa, ok := PAFromIP(pkt.SenderIP)
	if !ok {
		return
	}
	tpa, ok := PAFromIP(pkt.TargetIP)
	if !ok {
		return
	}
	sha, ok := HAFromHardwareAddr(pkt.SenderHardwareAddr)
	if !ok {
		return
	}

	glog.V(2).Infof("arp: rx %s who-has %s tell %s (%s) on %s", pkt.Operation, pkt.TargetIP, pkt.SenderIP, sha, dev.HardwareAddr())

	t := c.table
	t.mu.Lock()
	now := time.Now()
	if now.Sub(t.lastSweep) > SweepInterval {
		t.lastSweep = now
		t.sweep(now)
	}
	merged := t.update(spa, sha, dev)
	t.mu.Unlock()

	nif, ok := c.fabric.NetIfByFamily(dev, header.FamilyIPv4)
	if !ok || !tpa.IP().Equal(nif.Unicast()) {
		return
	}

	if !merged {
		t.mu.Lock()
		// Re-check for an entry under this second acquisition: between
		// releasing the lock above and reaching here, another goroutine
		// handling a concurrent frame for the same spa may have already
		// inserted one (the spec's "update-before-insert race window"
		// design note; the source itself doesn't guard this, but a
		// single lock acquisition window isn't available here since the
		// fabric lookup in between must run unlocked).
		if t.find(spa) == nil {
			if err := t.insert(spa, sha); err != nil {
				// TableFull: dropped silently. The merge step above
				// already succeeded or was a no-op; only the fresh
				// binding is lost, matching the source, which ignores
				// arp_table_insert's -1 return on this exact path.
				glog.V(1).Infof("arp: dropping binding %s -> %s: %v", spa, sha, err)
			}
		} else {
			t.update(spa, sha, dev)
		}
		t.mu.Unlock()
	}

	if pkt.Operation == OperationRequest {
		c.sendReply(nif, dev, sha, spa)
	}
}

// sendReply answers an ARP REQUEST whose target protocol address matched a
// local unicast address. The reply's tha/tpa echo the requester's sha/spa
// (not, despite an easy misreading of the informal description, the
// requester's spa twice over); the Ethernet destination is the requester's
// hardware address, making this a unicast reply.
func (c *Context) sendReply(nif NetIf, dev Device, requestSHA HA, requestSPA PA) {
	pkt, err := NewPacket(OperationReply, dev.HardwareAddr(), nif.Unicast(), requestSHA.HardwareAddr(), requestSPA.IP())
	if err != nil {
		glog.Warningf("arp: building reply to %s: %v", requestSPA, err)
		return
	}
	b, err := pkt.MarshalBinary()
	if err != nil {
		glog.Warningf("arp: marshaling reply to %s: %v", requestSPA, err)
		return
	}
	if _, err := dev.Transmit(header.EtherTypeARP, b, requestSHA.HardwareAddr()); err != nil {
		glog.V(1).Infof("arp: transmitting reply to %s: %v: %v", requestSPA, ErrTxFailed, err)
	}
}
