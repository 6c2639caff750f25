package arp

import (
	"net"
	"sync"

	"github.com/relaynet/netstack/header"
)

// sentFrame records one frame handed to a fakeDevice's Transmit.
type sentFrame struct {
	etherType header.EtherType
	payload   []byte
	dst       net.HardwareAddr
}

// fakeDevice is a Device double that records every transmitted frame
// instead of touching a socket.
type fakeDevice struct {
	name string
	addr net.HardwareAddr

	mu     sync.Mutex
	sent   []sentFrame
	failTx bool
}

func newFakeDevice(name string, addr net.HardwareAddr) *fakeDevice {
	return &fakeDevice{name: name, addr: addr}
}

func (d *fakeDevice) HardwareAddr() net.HardwareAddr { return d.addr }

func (d *fakeDevice) Transmit(etherType header.EtherType, payload []byte, dst net.HardwareAddr) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failTx {
		return -1, errTestTx
	}
	buf := make([]byte, len(payload))
	copy(buf, payload)
	d.sent = append(d.sent, sentFrame{etherType: etherType, payload: buf, dst: dst})
	return len(payload), nil
}

func (d *fakeDevice) framesSent() []sentFrame {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]sentFrame, len(d.sent))
	copy(out, d.sent)
	return out
}

// fakeNetIf is a NetIf double pairing a fakeDevice with a unicast address.
type fakeNetIf struct {
	dev     *fakeDevice
	unicast net.IP
}

func (n *fakeNetIf) Device() Device  { return n.dev }
func (n *fakeNetIf) Unicast() net.IP { return n.unicast }

// fakeFabric is a Fabric double with one NetIf per Device, keyed by the
// Device's identity.
type fakeFabric struct {
	mu   sync.Mutex
	nifs map[Device]NetIf
}

func newFakeFabric() *fakeFabric {
	return &fakeFabric{nifs: make(map[Device]NetIf)}
}

func (f *fakeFabric) attach(dev Device, nif NetIf) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nifs[dev] = nif
}

func (f *fakeFabric) NetIfByFamily(dev Device, family header.Family) (NetIf, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if family != header.FamilyIPv4 {
		return nil, false
	}
	nif, ok := f.nifs[dev]
	return nif, ok
}

var errTestTx = errTx{}

type errTx struct{}

func (errTx) Error() string { return "fake transmit failure" }
