package cmdu

import (
	"crypto/rand"
	"encoding/binary"
	"sync"
)

// IDAllocator hands out message ids for locally originated CMDUs. It wraps
// modulo 2^16 and is seeded from crypto/rand at construction so that two
// AL instances restarted back to back don't replay the same sequence.
type IDAllocator struct {
	mu   sync.Mutex
	next uint16
}

// NewIDAllocator returns an allocator seeded from crypto/rand.
func NewIDAllocator() *IDAllocator {
	var seed [2]byte
	_, _ = rand.Read(seed[:])
	return &IDAllocator{next: binary.BigEndian.Uint16(seed[:])}
}

// Next returns the next message id and advances the counter.
func (a *IDAllocator) Next() uint16 {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.next
	a.next++
	return id
}
