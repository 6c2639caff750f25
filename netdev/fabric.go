package netdev

import (
	"net"

	"github.com/relaynet/netstack/arp"
	"github.com/relaynet/netstack/header"
)

// Router is the Fabric the arp package's Context consumes: given a device
// and an address family, it returns the device's attached NetIf. A single
// Router is shared by every *arp.Context running against this fabric;
// Router itself holds no state beyond the Device records it's asked
// about, since the netif list already lives on the Device.
//
// Router is the only file in this package that imports arp. Device and
// NetIf deliberately don't: they satisfy arp.Device and arp.NetIf
// structurally, and Router's job is just to hand the arp package a value
// whose static type is declared in terms of arp's own interfaces, which
// Go requires an explicit import for even though no cycle results (arp
// never imports netdev).
type Router struct{}

// NewRouter creates a Router. There is nothing to initialize; it exists as
// a named type so arp.Fabric has a concrete implementation to construct
// and pass to arp.NewContext.
func NewRouter() *Router {
	return &Router{}
}

// NetIfByFamily implements arp.Fabric.
func (r *Router) NetIfByFamily(dev arp.Device, family header.Family) (arp.NetIf, bool) {
	d, ok := dev.(*Device)
	if !ok {
		return nil, false
	}
	nif, ok := GetNetif(d, family)
	if !ok {
		return nil, false
	}
	return netifAdapter{nif}, true
}

// netifAdapter adapts a *NetIf to arp.NetIf. It exists only because Go
// interface satisfaction requires Device() to return the interface type
// arp.NetIf declares (arp.Device), not the concrete *Device that NetIf.Dev
// actually holds, even though *Device already satisfies arp.Device on its
// own.
type netifAdapter struct {
	nif *NetIf
}

func (a netifAdapter) Device() arp.Device { return a.nif.Dev }
func (a netifAdapter) Unicast() net.IP    { return a.nif.Unicast }
