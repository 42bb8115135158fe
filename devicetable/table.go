// Package devicetable maintains the live set of discovered UPnP devices:
// the TTL-tracked table itself (this file) and the scanner that feeds it
// from SSDP events and device-description fetches (scanner.go). Table
// wraps a pointer to its shared state so it can be passed around by value
// while every copy still sees the same devices.
package devicetable

import (
	"sort"
	"sync"
	"time"

	"upnpcp/upnp"
)

// EventType distinguishes a device's arrival from its departure.
type EventType int

const (
	Discovered EventType = iota
	Disappeared
)

// Event is emitted once per discovery or departure. The send does not
// block: an event is dropped when the events channel is full.
type Event struct {
	Type   EventType
	Device upnp.Device
}

type entry struct {
	device    upnp.Device
	expiresAt time.Time
}

// TableImpl is the shared state behind Table; never referenced directly by
// callers outside this package.
type TableImpl struct {
	mu      sync.RWMutex
	devices map[string]*entry // UDN -> entry
	events  chan<- Event
}

// Table is a thread-safe UDN-keyed device table. Copying a Table shares the
// same underlying state through the embedded *TableImpl, so it can be
// passed around by value like a handle.
type Table struct {
	*TableImpl
}

// NewTable builds an empty table that publishes Discovered/Disappeared to
// events. events may be nil if the caller doesn't want notifications.
func NewTable(events chan<- Event) Table {
	return Table{
		TableImpl: &TableImpl{
			devices: make(map[string]*entry),
			events:  events,
		},
	}
}

func (t Table) emit(ev Event) {
	if t.events == nil {
		return
	}
	select {
	case t.events <- ev:
	default:
	}
}

// Get returns a cloned snapshot of the device with udn, if known and not
// expired for lookup purposes.
func (t Table) Get(udn string) (upnp.Device, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.devices[udn]
	if !ok || time.Now().After(e.expiresAt) {
		return upnp.Device{}, false
	}
	return e.device, true
}

// Snapshot returns a cloned list of every live device, sorted by UDN for a
// stable caller-facing order.
func (t Table) Snapshot() []upnp.Device {
	t.mu.RLock()
	defer t.mu.RUnlock()
	now := time.Now()
	out := make([]upnp.Device, 0, len(t.devices))
	for _, e := range t.devices {
		if now.After(e.expiresAt) {
			continue
		}
		out = append(out, e.device)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UDN < out[j].UDN })
	return out
}

// applyNew records a never-before-seen device and emits Discovered.
func (t Table) applyNew(d upnp.Device, ttl time.Duration) {
	t.mu.Lock()
	t.devices[d.UDN] = &entry{device: d, expiresAt: time.Now().Add(ttl)}
	t.mu.Unlock()
	t.emit(Event{Type: Discovered, Device: d})
}

// extendTTL advances expires_at for a known, location-unchanged device
// without re-emitting Discovered.
func (t Table) extendTTL(udn string, ttl time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.devices[udn]
	if !ok {
		return
	}
	e.expiresAt = time.Now().Add(ttl)
}

// swap atomically replaces a known device's contents after a
// re-description triggered by a location change. Never emits Discovered.
func (t Table) swap(d upnp.Device, ttl time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.devices[d.UDN]
	if !ok {
		return
	}
	e.device = d
	e.expiresAt = time.Now().Add(ttl)
}

// locationOf returns the known device's current base URL, used to detect a
// location change on a subsequent alive notice.
func (t Table) locationOf(udn string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.devices[udn]
	if !ok {
		return "", false
	}
	return e.device.BaseURL, true
}

// remove deletes udn and emits Disappeared exactly once, if it was present.
func (t Table) remove(udn string) {
	t.mu.Lock()
	e, ok := t.devices[udn]
	if ok {
		delete(t.devices, udn)
	}
	t.mu.Unlock()
	if ok {
		t.emit(Event{Type: Disappeared, Device: e.device})
	}
}

// sweepExpired removes every device whose TTL has elapsed, emitting
// Disappeared for each.
func (t Table) sweepExpired(now time.Time) {
	t.mu.Lock()
	var expired []upnp.Device
	for udn, e := range t.devices {
		if now.After(e.expiresAt) {
			expired = append(expired, e.device)
			delete(t.devices, udn)
		}
	}
	t.mu.Unlock()

	for _, d := range expired {
		t.emit(Event{Type: Disappeared, Device: d})
	}
}
