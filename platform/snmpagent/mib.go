package snmpagent

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/gosnmp/gosnmp"
)

// OIDValue is one MIB leaf. Dynamic, when set, is called on every access
// instead of reading Value/Type directly, the same split the teacher's
// pkg/snmp.MIB uses for sysUpTime.
type OIDValue struct {
	Type    gosnmp.Asn1BER
	Value   interface{}
	Dynamic func() *OIDValue
}

// MIB is a sorted OID -> value table supporting GET/GET-NEXT/GET-BULK walks.
type MIB struct {
	mu      sync.RWMutex
	entries map[string]*OIDValue
	sorted  []string
	dirty   bool
}

// NewMIB creates an empty MIB.
func NewMIB() *MIB {
	return &MIB{entries: make(map[string]*OIDValue)}
}

// Set installs a static OID value.
func (m *MIB) Set(oid string, value *OIDValue) {
	m.mu.Lock()
	defer m.mu.Unlock()
	oid = strings.TrimPrefix(oid, ".")
	m.entries[oid] = value
	m.dirty = true
}

// SetDynamic installs an OID whose value is recomputed on every access.
func (m *MIB) SetDynamic(oid string, fn func() *OIDValue) {
	m.mu.Lock()
	defer m.mu.Unlock()
	oid = strings.TrimPrefix(oid, ".")
	m.entries[oid] = &OIDValue{Dynamic: fn}
	m.dirty = true
}

// Reset clears every entry under prefix, used before repopulating a table
// subtree (the enterprise topology subtree) on each request so the walk reflects the
// graph's current state rather than a stale snapshot.
func (m *MIB) Reset(prefix string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix = strings.TrimPrefix(prefix, ".")
	for oid := range m.entries {
		if strings.HasPrefix(oid, prefix) {
			delete(m.entries, oid)
		}
	}
	m.dirty = true
}

// Get retrieves a single OID's current value.
func (m *MIB) Get(oid string) *OIDValue {
	m.mu.RLock()
	defer m.mu.RUnlock()
	oid = strings.TrimPrefix(oid, ".")
	v, ok := m.entries[oid]
	if !ok {
		return nil
	}
	if v.Dynamic != nil {
		return v.Dynamic()
	}
	return v
}

// GetNext returns the lexicographically next OID after oid.
func (m *MIB) GetNext(oid string) (string, *OIDValue) {
	oid = strings.TrimPrefix(oid, ".")
	m.mu.RLock()
	dirty := m.dirty
	m.mu.RUnlock()
	if dirty {
		m.mu.Lock()
		m.updateSortedList()
		m.mu.Unlock()
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, next := range m.sorted {
		if compareOIDs(next, oid) > 0 {
			v := m.entries[next]
			if v.Dynamic != nil {
				return next, v.Dynamic()
			}
			return next, v
		}
	}
	return "", nil
}

func (m *MIB) updateSortedList() {
	m.sorted = make([]string, 0, len(m.entries))
	for oid := range m.entries {
		m.sorted = append(m.sorted, oid)
	}
	sort.Slice(m.sorted, func(i, j int) bool { return compareOIDs(m.sorted[i], m.sorted[j]) < 0 })
	m.dirty = false
}

func compareOIDs(a, b string) int {
	pa, pb := parseOIDParts(a), parseOIDParts(b)
	n := len(pa)
	if len(pb) < n {
		n = len(pb)
	}
	for i := 0; i < n; i++ {
		if pa[i] != pb[i] {
			if pa[i] < pb[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(pa) < len(pb):
		return -1
	case len(pa) > len(pb):
		return 1
	default:
		return 0
	}
}

func parseOIDParts(oid string) []int {
	parts := strings.Split(oid, ".")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		var n int
		if _, err := fmt.Sscanf(p, "%d", &n); err == nil {
			out = append(out, n)
		}
	}
	return out
}
