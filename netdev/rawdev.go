package netdev

import (
	"fmt"
	"net"
	"syscall"

	"github.com/golang/glog"
	"github.com/mdlayher/ethernet"
	"github.com/mdlayher/raw"
	"golang.org/x/net/bpf"

	"github.com/relaynet/netstack/header"
)

// rawPriv is the driver-private data a raw-socket Device carries in its
// priv slot: the open packet socket and the net.Interface it's bound to.
type rawPriv struct {
	conn *raw.Conn
	ifi  *net.Interface
}

func init() {
	RegisterDriver(DriverDef{
		Type:      DriverTypeEthernet,
		Flags:     FlagBroadcast,
		HeaderLen: 14,
		AddrLen:   6,
		Ops: &Ops{
			Close: rawClose,
			Tx:    rawTx,
		},
	})
}

// NewRawDevice opens a packet socket on the named interface and wraps it
// in a Device, the concrete, testable instance of the spec's "out of
// scope" raw-socket device driver. The socket listens for every EtherType
// (not just ARP) since Dispatch, not the socket filter, is what decides
// which protocol module a frame goes to; callers that want to narrow that
// at the kernel level can do so afterward with Device.SetFilter.
func NewRawDevice(name string) (*Device, error) {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return nil, fmt.Errorf("netdev: %s: %w", name, err)
	}

	conn, err := raw.ListenPacket(ifi, syscall.ETH_P_ALL, nil)
	if err != nil {
		return nil, fmt.Errorf("netdev: %s: listen: %w", name, err)
	}

	dev, err := NewDevice(DriverTypeEthernet)
	if err != nil {
		conn.Close()
		return nil, err
	}
	dev.Name = name
	dev.MTU = uint16(ifi.MTU)
	dev.Addr = ifi.HardwareAddr
	dev.Broadcast = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	dev.priv = &rawPriv{conn: conn, ifi: ifi}

	return dev, nil
}

// Serve runs dev's receive loop until the socket is closed or ctx-less
// dev.Close is called, demultiplexing every inbound frame to Dispatch. It
// is not registered as the raw-socket driver's Run operation (Device.Run
// does nothing for a raw device); the caller that opened the device calls
// Serve explicitly (there is no implicit background
// goroutine started by NewRawDevice itself, matching the rest of this
// package's policy of never spawning goroutines the caller didn't ask
// for).
func (dev *Device) Serve() error {
	p, ok := dev.priv.(*rawPriv)
	if !ok {
		return fmt.Errorf("netdev: %s: not a raw device", dev.Name)
	}

	buf := make([]byte, p.ifi.MTU+int(dev.HeaderLen))
	for {
		n, _, err := p.conn.ReadFrom(buf)
		if err != nil {
			return fmt.Errorf("netdev: %s: read: %w", dev.Name, err)
		}

		var f ethernet.Frame
		if err := f.UnmarshalBinary(buf[:n]); err != nil {
			glog.V(2).Infof("netdev: %s: dropping unparseable frame: %v", dev.Name, err)
			continue
		}

		glog.V(2).Infof("netdev: %s: rx %#04x from %s, %d bytes", dev.Name, f.EtherType, f.Source, len(f.Payload))
		Dispatch(dev, header.EtherType(f.EtherType), f.Payload)
	}
}

// SetFilter installs a classic BPF filter ahead of the protocol demux.
// raw.Conn implements bpf.Setter; this is a thin passthrough so callers
// holding only a *Device (not the raw.Conn underneath it) can still use
// it.
func (dev *Device) SetFilter(filter []bpf.RawInstruction) error {
	p, ok := dev.priv.(*rawPriv)
	if !ok {
		return fmt.Errorf("netdev: %s: not a raw device", dev.Name)
	}
	return p.conn.SetBPF(filter)
}

func rawClose(dev *Device) error {
	p, ok := dev.priv.(*rawPriv)
	if !ok {
		return nil
	}
	return p.conn.Close()
}

func rawTx(dev *Device, etherType header.EtherType, payload []byte, dst net.HardwareAddr) (int, error) {
	p, ok := dev.priv.(*rawPriv)
	if !ok {
		return -1, fmt.Errorf("netdev: %s: not a raw device", dev.Name)
	}

	f := &ethernet.Frame{
		Destination: dst,
		Source:      dev.Addr,
		EtherType:   ethernet.EtherType(etherType),
		Payload:     payload,
	}
	fb, err := f.MarshalBinary()
	if err != nil {
		return -1, fmt.Errorf("netdev: %s: marshal frame: %w", dev.Name, err)
	}

	n, err := p.conn.WriteTo(fb, &raw.Addr{HardwareAddr: dst})
	if err != nil {
		return -1, fmt.Errorf("netdev: %s: write: %w", dev.Name, err)
	}
	return n, nil
}
