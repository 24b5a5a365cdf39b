package cmdu

import "container/list"

// DedupCapacity bounds the duplicate-suppression window: the number of
// distinct (source AL MAC, message id, message type) fingerprints retained
// before the oldest is evicted.
const DedupCapacity = 4096

type dedupKey struct {
	sourceAL  [6]byte
	messageID uint16
	msgType   MessageType
}

// Dedup is a bounded LRU of recently seen CMDU fingerprints. The AL relays
// CMDUs across interfaces, and a given message can legitimately arrive more
// than once on different links; Dedup lets the engine process the first
// arrival and silently drop the rest.
type Dedup struct {
	capacity int
	ll       *list.List
	index    map[dedupKey]*list.Element
}

// NewDedup constructs a Dedup with the given capacity. A non-positive
// capacity falls back to DedupCapacity.
func NewDedup(capacity int) *Dedup {
	if capacity <= 0 {
		capacity = DedupCapacity
	}
	return &Dedup{
		capacity: capacity,
		ll:       list.New(),
		index:    make(map[dedupKey]*list.Element),
	}
}

// Seen reports whether (sourceAL, messageID, msgType) has already passed
// through Seen, and records it for future calls. The first call for a given
// fingerprint returns false; subsequent calls return true until the entry
// ages out of the LRU.
func (d *Dedup) Seen(sourceAL [6]byte, messageID uint16, msgType MessageType) bool {
	key := dedupKey{sourceAL: sourceAL, messageID: messageID, msgType: msgType}
	if el, ok := d.index[key]; ok {
		d.ll.MoveToFront(el)
		return true
	}
	el := d.ll.PushFront(key)
	d.index[key] = el
	if d.ll.Len() > d.capacity {
		oldest := d.ll.Back()
		if oldest != nil {
			d.ll.Remove(oldest)
			delete(d.index, oldest.Value.(dedupKey))
		}
	}
	return false
}

// Len reports the number of fingerprints currently held.
func (d *Dedup) Len() int {
	return d.ll.Len()
}
