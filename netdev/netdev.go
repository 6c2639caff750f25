package netdev

import (
	"fmt"
	"net"
	"sync"

	"github.com/relaynet/netstack/header"
)

// Flag bits for a DriverDef/Device, mirroring NETDEV_FLAG_* in the C
// original's net.h.
const (
	FlagBroadcast uint16 = 0x0001
)

// The device type codes a DriverDef registers under, mirroring
// NETDEV_TYPE_* in net.h. All drivers in this module speak Ethernet framing,
// so there is currently only one.
const (
	DriverTypeEthernet uint16 = 0x0001
)

// Ops is a device driver's operations vtable. Every field is optional;
// Device.Transmit calls Tx directly and panics with a clear message if a
// driver was registered without one, but Open/Close/Run/Stop are only
// invoked by a caller that knows to call them and are nil-checked there.
// This mirrors struct netdev_ops's nullable function pointers.
type Ops struct {
	Open  func(dev *Device) error
	Close func(dev *Device) error
	Run   func(dev *Device) error
	Stop  func(dev *Device) error
	Tx    func(dev *Device, etherType header.EtherType, payload []byte, dst net.HardwareAddr) (int, error)
}

// DriverDef is a device driver definition: the fixed parameters and vtable
// shared by every Device allocated from it. It corresponds to struct
// netdev_def.
type DriverDef struct {
	Type      uint16
	MTU       uint16
	Flags     uint16
	HeaderLen uint16
	AddrLen   uint16
	Ops       *Ops
}

// ProtocolHandler is the inbound handler a protocol module registers for an
// EtherType. dev is the Device the frame arrived on.
type ProtocolHandler func(payload []byte, dev *Device)

var (
	driverMu  sync.Mutex
	drivers   = make(map[uint16]DriverDef)
	protoMu   sync.Mutex
	protocols = make(map[header.EtherType]ProtocolHandler)
)

// RegisterDriver adds a driver definition to the process-wide registry
// under def.Type. It is meant to be called once per driver, typically from
// that driver's init(), and is never consulted again after startup except
// by NewDevice — matching the spec's "populated at initialization;
// read-only thereafter" for the driver registry. Registering the same type
// twice overwrites the previous definition rather than erroring, since
// re-registration only happens in tests that want a fake driver in place
// of a real one.
func RegisterDriver(def DriverDef) {
	driverMu.Lock()
	defer driverMu.Unlock()
	drivers[def.Type] = def
}

// RegisterProtocol adds an inbound handler to the process-wide protocol
// registry under etherType. Each protocol module (arp, an eventual ip)
// calls this once from its own init or setup path. Dispatch takes protoMu
// briefly for each lookup, so registration that races with dispatch (as in
// test setup) is safe.
func RegisterProtocol(etherType header.EtherType, handler ProtocolHandler) {
	protoMu.Lock()
	defer protoMu.Unlock()
	protocols[etherType] = handler
}

// NetIf is the attachment of an IPv4 (or, in principle, another family's)
// protocol identity to a Device: the device-side half of the spec's
// "netif" concept. It corresponds to struct netif / struct netif_ip.
type NetIf struct {
	Family  header.Family
	Dev     *Device
	Unicast net.IP
}

// Device is a mutable device record cloned from a DriverDef by NewDevice.
// It corresponds to struct netdev: a name, link address, MTU, flags, the
// operations vtable, a list of attached NetIfs, and a driver-private data
// slot.
type Device struct {
	Name      string
	Type      uint16
	MTU       uint16
	Flags     uint16
	HeaderLen uint16
	AddrLen   uint16
	Addr      net.HardwareAddr
	Broadcast net.HardwareAddr

	ops    *Ops
	priv   interface{}
	mu     sync.Mutex
	netifs []*NetIf
}

// deviceID hands out the dev0, dev1, ... default names NewDevice uses
// when the caller doesn't rename the device afterward.
var (
	deviceIDMu sync.Mutex
	deviceID   int
)

// NewDevice allocates a Device from the DriverDef registered under
// typeCode, cloning its parameters the way netdev_alloc clones a
// netdev_def into a fresh struct netdev. It returns an error if no driver
// is registered under typeCode.
func NewDevice(typeCode uint16) (*Device, error) {
	driverMu.Lock()
	def, ok := drivers[typeCode]
	driverMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("netdev: no driver registered for type %#x", typeCode)
	}

	deviceIDMu.Lock()
	id := deviceID
	deviceID++
	deviceIDMu.Unlock()

	return &Device{
		Name:      fmt.Sprintf("dev%d", id),
		Type:      def.Type,
		MTU:       def.MTU,
		Flags:     def.Flags,
		HeaderLen: def.HeaderLen,
		AddrLen:   def.AddrLen,
		ops:       def.Ops,
	}, nil
}

// AddNetif attaches nif to dev, appending it to the device's netif list
// (netdev_add_netif). nif.Dev is set to dev regardless of its prior value.
func (dev *Device) AddNetif(nif *NetIf) {
	nif.Dev = dev
	dev.mu.Lock()
	defer dev.mu.Unlock()
	dev.netifs = append(dev.netifs, nif)
}

// Netif returns dev's attached NetIf for family, or nil if none is
// attached (netdev_get_netif). GetNetif is the free-function form used by
// callers that only have a netdev.Device value through the Fabric
// interface's arp.Device parameter.
func (dev *Device) Netif(family header.Family) *NetIf {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	for _, nif := range dev.netifs {
		if nif.Family == family {
			return nif
		}
	}
	return nil
}

// GetNetif returns dev's attached NetIf for family, or ok=false if none is
// attached. It is the package-level spelling of Device.Netif, named after
// the original's netdev_get_netif.
func GetNetif(dev *Device, family header.Family) (*NetIf, bool) {
	nif := dev.Netif(family)
	return nif, nif != nil
}

// HardwareAddr returns dev's own link address. Together with Transmit,
// this is what lets a *Device be passed anywhere an arp.Device is expected
// without netdev importing arp.
func (dev *Device) HardwareAddr() net.HardwareAddr {
	return dev.Addr
}

// Transmit sends payload as the body of a frame of the given EtherType,
// addressed to dst, through dev's driver-specific Tx implementation. It
// panics if dev was allocated from a DriverDef with no Tx set, since that
// is a driver registration bug, not a runtime condition a caller can
// recover from.
func (dev *Device) Transmit(etherType header.EtherType, payload []byte, dst net.HardwareAddr) (int, error) {
	if dev.ops == nil || dev.ops.Tx == nil {
		panic(fmt.Sprintf("netdev: %s: driver registered no Tx operation", dev.Name))
	}
	return dev.ops.Tx(dev, etherType, payload, dst)
}

// Open, Close, Run and Stop invoke the corresponding optional vtable entry,
// reporting nil if the driver didn't define one.
func (dev *Device) Open() error {
	if dev.ops == nil || dev.ops.Open == nil {
		return nil
	}
	return dev.ops.Open(dev)
}

func (dev *Device) Close() error {
	if dev.ops == nil || dev.ops.Close == nil {
		return nil
	}
	return dev.ops.Close(dev)
}

func (dev *Device) Run() error {
	if dev.ops == nil || dev.ops.Run == nil {
		return nil
	}
	return dev.ops.Run(dev)
}

func (dev *Device) Stop() error {
	if dev.ops == nil || dev.ops.Stop == nil {
		return nil
	}
	return dev.ops.Stop(dev)
}

// Dispatch is the inbound demux entry point: a driver's RX loop calls it
// after stripping the Ethernet header, and Dispatch looks up the
// registered ProtocolHandler for etherType and invokes it synchronously.
// An unregistered EtherType is dropped silently, mirroring the Ethernet
// demux step in spec §2's data flow diagram ("device driver -> Ethernet
// demux (by EtherType) -> ARP receive handler").
func Dispatch(dev *Device, etherType header.EtherType, payload []byte) {
	protoMu.Lock()
	handler, ok := protocols[etherType]
	protoMu.Unlock()
	if !ok {
		return
	}
	handler(payload, dev)
}
