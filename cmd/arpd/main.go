// Command arpd is a small CLI harness around the arp and netdev packages:
// it opens a raw-socket device on a named interface, attaches an IPv4
// netif with a static unicast address, serves inbound ARP traffic, and
// optionally resolves one address on startup to exercise the resolver
// end-to-end. It is the Go-native stand-in for the spec's "command-line
// test scaffolding" collaborator, grounded on the teacher's
// cmd/proxyarpd/main.go.
package main

import (
	"flag"
	"net"
	"os"
	"time"

	"github.com/golang/glog"

	"github.com/relaynet/netstack/arp"
	"github.com/relaynet/netstack/header"
	"github.com/relaynet/netstack/netdev"
)

var (
	ifaceFlag   = flag.String("i", "eth0", "network interface to use for ARP traffic")
	ipFlag      = flag.String("ip", "", "IPv4 address this host answers ARP requests for (required)")
	resolveFlag = flag.String("resolve", "", "if set, resolve this IPv4 address on startup and log the result")
)

func main() {
	flag.Parse()
	defer glog.Flush()

	ip := net.ParseIP(*ipFlag).To4()
	if ip == nil {
		glog.Exitf("arpd: invalid or missing -ip %q", *ipFlag)
	}

	dev, err := netdev.NewRawDevice(*ifaceFlag)
	if err != nil {
		glog.Exitf("arpd: %v", err)
	}
	defer dev.Close()

	nif := &netdev.NetIf{Family: header.FamilyIPv4, Unicast: ip}
	dev.AddNetif(nif)

	router := netdev.NewRouter()
	ctx := arp.NewContext(router)
	netdev.RegisterProtocol(header.EtherTypeARP, func(payload []byte, d *netdev.Device) {
		ctx.Receive(payload, d)
	})

	glog.Infof("arpd: serving ARP on %s (%s), answering for %s", dev.Name, dev.HardwareAddr(), ip)

	go func() {
		if err := dev.Serve(); err != nil {
			glog.Errorf("arpd: %s: %v", dev.Name, err)
			os.Exit(1)
		}
	}()

	if *resolveFlag != "" {
		go resolveOnce(ctx, router, dev, *resolveFlag)
	}

	select {}
}

// resolveOnce waits briefly for the device's receive loop to come up, then
// issues a single Resolve call against target and logs the outcome. A real
// caller would instead route a held packet through the resolver from its
// own IP output path; this exists purely to give the harness something
// observable to do.
func resolveOnce(ctx *arp.Context, router *netdev.Router, dev *netdev.Device, target string) {
	time.Sleep(100 * time.Millisecond)

	pa, ok := arp.PAFromIP(net.ParseIP(target))
	if !ok {
		glog.Errorf("arpd: -resolve %q is not a valid IPv4 address", target)
		return
	}
	nif, ok := router.NetIfByFamily(dev, header.FamilyIPv4)
	if !ok {
		glog.Errorf("arpd: %s has no attached IPv4 netif", dev.Name)
		return
	}

	var ha arp.HA
	switch result := ctx.Resolve(nif, pa, &ha, nil); result {
	case arp.ResultFound:
		glog.Infof("arpd: %s is-at %s", target, ha)
	case arp.ResultQuery:
		glog.Infof("arpd: %s: query sent, resolving...", target)
		// Give the reply a moment to arrive, then report what the cache
		// ended up with; Resolve itself already retried and waited once
		// for any caller blocked on this exact call, but this caller
		// issued the original miss and returned immediately on QUERY.
		time.Sleep(1200 * time.Millisecond)
		if got, ok := ctx.Table().Lookup(pa); ok {
			glog.Infof("arpd: %s is-at %s", target, got)
		} else {
			glog.Infof("arpd: %s did not resolve", target)
		}
	case arp.ResultError:
		glog.Errorf("arpd: resolving %s failed", target)
	}
}
