package arp

import (
	"bytes"
	"net"
	"testing"
	"time"
)

func newTestContext() (*Context, *fakeFabric, *fakeNetIf) {
	fabric := newFakeFabric()
	c := NewContext(fabric)

	dev := newFakeDevice("eth0", net.HardwareAddr{0x02, 0, 0, 0, 0, 1})
	nif := &fakeNetIf{dev: dev, unicast: net.IPv4(10, 0, 0, 1)}
	fabric.attach(dev, nif)

	return c, fabric, nif
}

func TestResolveMissWithoutPayloadReturnsQuery(t *testing.T) {
	c, _, nif := newTestContext()
	pa := mustPA(t, "10.0.0.2")

	var out HA
	result := c.Resolve(nif, pa, &out, nil)
	if result != ResultQuery {
		t.Fatalf("unexpected result: %v", result)
	}

	got, ok := c.table.Lookup(pa)
	if ok {
		t.Fatalf("query-in-flight entry should not resolve yet, got %v", got)
	}

	sent := nif.dev.framesSent()
	if len(sent) != 1 {
		t.Fatalf("expected one broadcast request, got %d", len(sent))
	}
	if !bytes.Equal(sent[0].dst, HABroadcast.HardwareAddr()) {
		t.Fatalf("request should be broadcast, got dst %v", sent[0].dst)
	}
}

func TestResolveColdWithPayloadThenReplyDelivers(t *testing.T) {
	c, _, nif := newTestContext()
	pa := mustPA(t, "10.0.0.2")
	payload := []byte{0xde, 0xad}

	var out HA
	if result := c.Resolve(nif, pa, &out, payload); result != ResultQuery {
		t.Fatalf("unexpected result: %v", result)
	}

	// Simulate the reply arriving on the same device.
	replySHA := net.HardwareAddr{0x02, 0, 0, 0, 0, 2}
	pkt, err := NewPacket(OperationReply, replySHA, net.IPv4(10, 0, 0, 2), nif.dev.HardwareAddr(), nif.unicast)
	if err != nil {
		t.Fatalf("NewPacket: %v", err)
	}
	b, err := pkt.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	c.Receive(b, nif.dev)

	ha, ok := c.table.Lookup(pa)
	if !ok {
		t.Fatal("expected entry to resolve after reply")
	}
	if !bytes.Equal(ha.HardwareAddr(), replySHA) {
		t.Fatalf("unexpected resolved address: %v", ha)
	}

	sent := nif.dev.framesSent()
	if len(sent) != 2 {
		t.Fatalf("expected request + drained payload, got %d frames", len(sent))
	}
	last := sent[len(sent)-1]
	if string(last.payload) != string(payload) {
		t.Fatalf("unexpected drained payload: %v", last.payload)
	}
	if last.etherType != 0x0800 {
		t.Fatalf("drained payload should be EtherType IPv4, got %#x", last.etherType)
	}
	if !bytes.Equal(last.dst, replySHA) {
		t.Fatalf("drained payload sent to wrong address: %v", last.dst)
	}
}

func TestResolveHotHit(t *testing.T) {
	c, _, nif := newTestContext()
	pa := mustPA(t, "10.0.0.2")
	ha := mustHA(t, 0x02, 0, 0, 0, 0, 2)

	c.table.mu.Lock()
	if err := c.table.insert(pa, ha); err != nil {
		t.Fatalf("insert: %v", err)
	}
	c.table.mu.Unlock()

	var out HA
	result := c.Resolve(nif, pa, &out, nil)
	if result != ResultFound {
		t.Fatalf("unexpected result: %v", result)
	}
	if out != ha {
		t.Fatalf("unexpected resolved address: %v", out)
	}
	if len(nif.dev.framesSent()) != 0 {
		t.Fatal("a hot hit should not transmit any frames")
	}
}

func TestResolveTimeoutClearsEntry(t *testing.T) {
	c, _, nif := newTestContext()
	pa := mustPA(t, "10.0.0.99")

	var out1 HA
	if result := c.Resolve(nif, pa, &out1, nil); result != ResultQuery {
		t.Fatalf("unexpected first result: %v", result)
	}

	start := time.Now()
	var out2 HA
	result := c.Resolve(nif, pa, &out2, nil)
	elapsed := time.Since(start)

	if result != ResultError {
		t.Fatalf("unexpected result: %v", result)
	}
	if elapsed > 2*time.Second {
		t.Fatalf("timeout took too long: %v", elapsed)
	}

	if _, ok := c.table.Lookup(pa); ok {
		t.Fatal("entry should be cleared after a timed-out wait")
	}

	var out3 HA
	if result := c.Resolve(nif, pa, &out3, nil); result != ResultQuery {
		t.Fatalf("resolving again after timeout should query again: %v", result)
	}
}

func TestResolveConcurrentWaitersBothSeeReply(t *testing.T) {
	c, _, nif := newTestContext()
	pa := mustPA(t, "10.0.0.50")

	var out1 HA
	if result := c.Resolve(nif, pa, &out1, nil); result != ResultQuery {
		t.Fatalf("unexpected first result: %v", result)
	}

	type waitResult struct {
		result Result
		ha     HA
	}
	results := make(chan waitResult, 2)

	for i := 0; i < 2; i++ {
		go func() {
			var out HA
			r := c.Resolve(nif, pa, &out, nil)
			results <- waitResult{r, out}
		}()
	}

	// Give both goroutines a chance to reach the wait.
	time.Sleep(50 * time.Millisecond)

	replySHA := net.HardwareAddr{0x02, 0, 0, 0, 0, 50}
	pkt, _ := NewPacket(OperationReply, replySHA, net.IPv4(10, 0, 0, 50), nif.dev.HardwareAddr(), nif.unicast)
	b, _ := pkt.MarshalBinary()
	c.Receive(b, nif.dev)

	for i := 0; i < 2; i++ {
		select {
		case r := <-results:
			if r.result != ResultFound {
				t.Fatalf("waiter got unexpected result: %v", r.result)
			}
			if !bytes.Equal(r.ha.HardwareAddr(), replySHA) {
				t.Fatalf("waiter got unexpected address: %v", r.ha)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("waiter did not observe reply in time")
		}
	}
}

func TestResolveQueryInFlightSurvivesFailedTransmit(t *testing.T) {
	c, _, nif := newTestContext()
	pa := mustPA(t, "10.0.0.77")

	nif.dev.failTx = true

	var out1 HA
	if result := c.Resolve(nif, pa, &out1, nil); result != ResultQuery {
		t.Fatalf("unexpected first result: %v", result)
	}

	// sendRequest's transmit failed, but Resolve never inspects its
	// return value: the entry must still exist, unresolved and
	// retryable, exactly as if the broadcast had gone out.
	c.table.mu.Lock()
	e := c.table.find(pa)
	stillPending := e != nil && e.used && e.ha.IsZero()
	c.table.mu.Unlock()
	if !stillPending {
		t.Fatal("entry should survive a failed transmit, pending resolution")
	}
	if len(nif.dev.framesSent()) != 0 {
		t.Fatal("a failing device should not have recorded a sent frame")
	}

	nif.dev.failTx = false

	replySHA := net.HardwareAddr{0x02, 0, 0, 0, 0, 77}
	pkt, err := NewPacket(OperationReply, replySHA, net.IPv4(10, 0, 0, 77), nif.dev.HardwareAddr(), nif.unicast)
	if err != nil {
		t.Fatalf("NewPacket: %v", err)
	}
	b, err := pkt.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	c.Receive(b, nif.dev)

	var out2 HA
	result := c.Resolve(nif, pa, &out2, nil)
	if result != ResultFound {
		t.Fatalf("retry after a failed transmit should still resolve once a reply arrives: %v", result)
	}
	if !bytes.Equal(out2.HardwareAddr(), replySHA) {
		t.Fatalf("unexpected resolved address: %v", out2)
	}
}

func TestResolveTableFullReturnsError(t *testing.T) {
	c, _, nif := newTestContext()

	c.table.mu.Lock()
	for i := 0; i < TableSize; i++ {
		var pa PA
		pa[0], pa[1], pa[2], pa[3] = 172, 16, byte(i>>8), byte(i)
		if err := c.table.insert(pa, HABroadcast); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	c.table.mu.Unlock()

	var out HA
	result := c.Resolve(nif, mustPA(t, "192.168.100.1"), &out, nil)
	if result != ResultError {
		t.Fatalf("unexpected result on full table: %v", result)
	}
}
