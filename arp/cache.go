package arp

import (
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/relaynet/netstack/header"
)

// TableSize is the fixed number of entries the cache holds. There is no LRU
// eviction: once all TableSize slots are used, allocateFree returns nil
// until the expiry sweep or a resolver timeout frees one.
const TableSize = 4096

// TTL is the maximum age of a cache entry before the expiry sweep clears
// it.
const TTL = 300 * time.Second

// SweepInterval is the minimum time between two expiry sweeps run by
// Context.Receive's throttle check (see receive.go), so under a receive
// storm it still runs at most once per SweepInterval; with no inbound
// traffic and no explicit Table.Sweep call, expiry is deferred until the
// next packet arrives. Table.Sweep is not throttled.
const SweepInterval = 10 * time.Second

// resolveTimeout is the absolute-deadline budget Resolve gives a
// query-in-flight wait before giving up.
const resolveTimeout = 1 * time.Second

// entry is one cache slot. All fields are only meaningful while used is
// true; see Table's comment for the full invariant set.
type entry struct {
	used      bool
	pa        PA
	ha        HA
	timestamp time.Time
	payload   []byte
	netif     NetIf
	cond      chan struct{}
}

// signal closes the entry's current rendezvous channel, waking every
// goroutine currently blocked in Table.wait on it, then installs a fresh
// channel for the next round of waiters. Must be called with the owning
// Table's lock held.
func (e *entry) signal() {
	if e.cond != nil {
		close(e.cond)
	}
	e.cond = make(chan struct{})
}

// Table is a fixed-capacity, linearly-scanned cache mapping protocol
// addresses to hardware addresses. A single mutex protects every entry and
// the sweep throttle timestamp; there is no per-entry locking.
//
// Invariants, maintained by every method below:
//   - at most one entry has used == true for a given pa;
//   - a used entry's payload is non-nil only while a resolution it is
//     waiting on is still in flight;
//   - an entry with used == false has no payload and no netif;
//   - Insert and Update always stamp timestamp to the current time.
type Table struct {
	mu        sync.Mutex
	entries   [TableSize]entry
	lastSweep time.Time
}

// NewTable creates an empty cache.
func NewTable() *Table {
	return &Table{}
}

// find returns the used entry whose pa matches, or nil. Callers must hold
// t.mu.
func (t *Table) find(pa PA) *entry {
	for i := range t.entries {
		if e := &t.entries[i]; e.used && e.pa == pa {
			return e
		}
	}
	return nil
}

// allocateFree returns the first unused slot, or nil if the table is full.
// Callers must hold t.mu.
func (t *Table) allocateFree() *entry {
	for i := range t.entries {
		if e := &t.entries[i]; !e.used {
			return e
		}
	}
	return nil
}

// insert allocates a free slot for pa/ha and signals it. It returns
// ErrTableFull if no slot is free. Callers must hold t.mu.
func (t *Table) insert(pa PA, ha HA) error {
	e := t.allocateFree()
	if e == nil {
		return ErrTableFull
	}
	e.used = true
	e.pa = pa
	e.ha = ha
	e.timestamp = time.Now()
	e.signal()
	return nil
}

// update looks up pa and, if found, copies ha into the entry, refreshes its
// timestamp, drains any pending payload by transmitting it to the
// newly-learned address, and signals waiters. It reports whether an entry
// was found ("merged" in spec terms); if not, it has no side effects.
// Callers must hold t.mu.
func (t *Table) update(pa PA, ha HA, observed Device) bool {
	e := t.find(pa)
	if e == nil {
		return false
	}

	e.ha = ha
	e.timestamp = time.Now()

	if e.payload != nil {
		txDev := observed
		if e.netif != nil {
			if d := e.netif.Device(); d != nil && d != observed {
				onDeviceMismatch(pa, d, observed)
				txDev = d
			}
		}
		if txDev != nil {
			// Best-effort: a failed transmit does not mutate cache
			// state, matching the source, which never inspects its
			// tx() return value on this path either.
			if _, err := txDev.Transmit(header.EtherTypeIPv4, e.payload, ha.HardwareAddr()); err != nil {
				glog.Warningf("arp: draining pending payload for %s: %v: %v", pa, ErrTxFailed, err)
			}
		}
		e.payload = nil
	}

	e.signal()
	return true
}

// clear empties a used entry, releasing its pending payload and netif
// reference, and signals waiters so a timed wait observes the eviction
// promptly. Callers must hold t.mu.
func (t *Table) clear(e *entry) {
	e.used = false
	e.pa = PA{}
	e.ha = HA{}
	e.timestamp = time.Time{}
	e.payload = nil
	e.netif = nil
	e.signal()
}

// sweep clears every used entry whose timestamp is older than TTL. Callers
// must hold t.mu.
func (t *Table) sweep(now time.Time) {
	for i := range t.entries {
		e := &t.entries[i]
		if e.used && now.Sub(e.timestamp) > TTL {
			t.clear(e)
		}
	}
}

// Lookup reports the hardware address currently cached for pa, without
// triggering resolution. It is a read-only convenience for diagnostics and
// tests; production lookups should go through Context.Resolve so that a
// miss can kick off a query.
func (t *Table) Lookup(pa PA) (ha HA, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.find(pa)
	if e == nil || e.ha.IsZero() {
		return HA{}, false
	}
	return e.ha, true
}

// Sweep runs one expiry pass immediately, bypassing the SweepInterval
// throttle that Context.Receive otherwise applies. Most callers should not
// need this; it exists for tests and for callers that want time-based
// eviction independent of inbound traffic.
func (t *Table) Sweep() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sweep(time.Now())
}

// wait blocks until e's rendezvous channel is signaled or deadline passes,
// releasing t.mu for the duration and reacquiring it before returning. The
// caller must hold t.mu on entry and must re-examine e's state after wait
// returns: a signal may mean resolution, clear, or eviction, and the wait
// may also have simply timed out.
func (t *Table) wait(e *entry, deadline time.Time) {
	if e.cond == nil {
		e.cond = make(chan struct{})
	}
	ch := e.cond

	t.mu.Unlock()
	defer t.mu.Lock()

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	select {
	case <-ch:
	case <-timer.C:
	}
}

// onDeviceMismatch logs the warning the spec's pending-payload draining
// policy calls for: a reply for a pending payload arrived on a device
// other than the one the payload was originally queued against. The
// payload is still sent via its originating device, not retargeted.
func onDeviceMismatch(pa PA, want, got Device) {
	glog.Warningf("arp: reply for %s arrived on unexpected device (got %s, pending payload queued on %s); transmitting via originating device", pa, got.HardwareAddr(), want.HardwareAddr())
}
