// Package netdev is the dispatch fabric that sits between device drivers
// and the protocol modules (arp, and eventually an IP layer) that consume
// their frames. It mirrors the registration API of the C original's net.h:
// a process-wide driver registry (netdev_driver_register/netdev_alloc) and
// a process-wide protocol registry (netdev_proto_register), both populated
// once at startup and guarded by a mutex that each lookup holds only for
// the map read, plus a per-Device
// list of attached NetIfs (netdev_add_netif/netdev_get_netif).
//
// netdev does not import the arp package for its core types: Device and
// NetIf satisfy arp.Device and arp.NetIf structurally, with no dependency
// in either direction. The one place netdev does import arp is Router, the
// concrete arp.Fabric this package provides to a *arp.Context.
package netdev
