package model

import (
	"sync"
	"time"
)

// DefaultDeviceTimeout is how long a remote device may go unheard from
// before Graph.Prune evicts it and its dangling neighbor links.
const DefaultDeviceTimeout = 3 * time.Minute

// Graph is the process-wide AL network graph: the set of known devices
// plus the neighbor relationships between their interfaces. It is
// safe for concurrent use; the engine's single event-loop goroutine is
// the only writer in practice, but the SNMP agent and TUI read it from
// other goroutines via Snapshot.
type Graph struct {
	mu       sync.RWMutex
	devices  map[MAC]*Device
	local    MAC // AL MAC of the local_device singleton
	timeout  time.Duration
}

// NewGraph constructs an empty Graph with the local device already
// present, matching the invariant that local_device is always present.
func NewGraph(localALMAC MAC, deviceTimeout time.Duration) *Graph {
	if deviceTimeout <= 0 {
		deviceTimeout = DefaultDeviceTimeout
	}
	g := &Graph{
		devices: make(map[MAC]*Device),
		local:   localALMAC,
		timeout: deviceTimeout,
	}
	g.devices[localALMAC] = NewDevice(localALMAC)
	return g
}

// Local returns the local_device singleton.
func (g *Graph) Local() *Device {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.devices[g.local]
}

// Touch records that alMAC was heard from at t, creating the device entry
// if this is its first sighting.
func (g *Graph) Touch(alMAC MAC, t time.Time) *Device {
	g.mu.Lock()
	defer g.mu.Unlock()
	d, ok := g.devices[alMAC]
	if !ok {
		d = NewDevice(alMAC)
		g.devices[alMAC] = d
	}
	d.LastSeen = t
	return d
}

// Get returns the device for alMAC, or nil if unknown.
func (g *Graph) Get(alMAC MAC) *Device {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.devices[alMAC]
}

// LinkNeighbors records a symmetric neighbor relationship between two
// interfaces, creating mutual pointers on both sides. It is idempotent.
func (g *Graph) LinkNeighbors(a, b *Interface) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if a.Neighbors == nil {
		a.Neighbors = make(map[MAC]*Interface)
	}
	if b.Neighbors == nil {
		b.Neighbors = make(map[MAC]*Interface)
	}
	a.Neighbors[b.MAC] = b
	b.Neighbors[a.MAC] = a
}

// UnlinkNeighbors removes the symmetric relationship, if present.
func (g *Graph) UnlinkNeighbors(a, b *Interface) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(a.Neighbors, b.MAC)
	delete(b.Neighbors, a.MAC)
}

// Prune expires remote devices whose LastSeen is older than the configured
// device timeout and garbage-collects any neighbor interface records left
// dangling on a still-alive peer's side. local_device is never pruned.
func (g *Graph) Prune(now time.Time) (expired []MAC) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var dead []MAC
	for mac, d := range g.devices {
		if mac == g.local {
			continue
		}
		if now.Sub(d.LastSeen) > g.timeout {
			dead = append(dead, mac)
		}
	}

	deadIfaces := make(map[MAC]bool)
	for _, mac := range dead {
		d := g.devices[mac]
		for ifaceMAC := range d.Interfaces {
			deadIfaces[ifaceMAC] = true
		}
		delete(g.devices, mac)
	}

	// Garbage-collect dangling neighbor pointers left on surviving devices.
	for _, d := range g.devices {
		for _, iface := range d.Interfaces {
			for nMAC := range iface.Neighbors {
				if deadIfaces[nMAC] {
					delete(iface.Neighbors, nMAC)
				}
			}
		}
	}

	return dead
}

// BSSSnapshot is a read-only copy of one BSS's SSID/security/role state.
type BSSSnapshot struct {
	SSID    string
	BSSID   MAC
	Band    Band
	Channel uint8
	Role    WiFiRole
	Roles   MultiAPRole
}

// RadioSnapshot is a read-only copy of one radio and the BSSes it carries.
type RadioSnapshot struct {
	UID   MAC
	Bands []Band
	BSSes []BSSSnapshot
}

// DeviceSnapshot is a read-only copy of one device's state, safe to hand
// to a caller outside the Graph's lock.
type DeviceSnapshot struct {
	ALMAC               MAC
	IsMultiAPController bool
	IsMultiAPAgent      bool
	LastSeen            time.Time
	InterfaceCount      int
	RadioCount          int
	Radios              []RadioSnapshot
}

// Snapshot returns a consistent, lock-protected read of the whole graph,
// used by the interactive TUI and the SNMP agent's MIB walk.
func (g *Graph) Snapshot() []DeviceSnapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]DeviceSnapshot, 0, len(g.devices))
	for _, d := range g.devices {
		snap := DeviceSnapshot{
			ALMAC:               d.ALMAC,
			IsMultiAPController: d.IsMultiAPController,
			IsMultiAPAgent:      d.IsMultiAPAgent,
			LastSeen:            d.LastSeen,
			InterfaceCount:      len(d.Interfaces),
			RadioCount:          len(d.Radios),
		}
		for _, r := range d.Radios {
			rs := RadioSnapshot{UID: r.UID, Bands: append([]Band(nil), r.Bands...)}
			for _, bss := range r.BSSes {
				rs.BSSes = append(rs.BSSes, BSSSnapshot{
					SSID: bss.SSID, BSSID: bss.BSSID, Band: bss.Band,
					Channel: bss.Channel, Role: bss.Role, Roles: bss.Roles,
				})
			}
			snap.Radios = append(snap.Radios, rs)
		}
		out = append(out, snap)
	}
	return out
}

// All returns the live *Device pointers for every known device. Unlike
// Snapshot, this does not copy out; it is for the engine's own
// single-writer goroutine (policy checks, topology response building),
// never for a reader on another goroutine, since the returned pointers
// alias mutable state with no lock held after All returns.
func (g *Graph) All() []*Device {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Device, 0, len(g.devices))
	for _, d := range g.devices {
		out = append(out, d)
	}
	return out
}

// Count returns the number of known devices, including local_device.
func (g *Graph) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.devices)
}
