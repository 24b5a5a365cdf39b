package cmdu

import (
	"fmt"
	"time"

	"github.com/krisarmstrong/hmeshd/pkg/errs"
	"github.com/krisarmstrong/hmeshd/pkg/tlv"
)

// ReassemblyTimeout bounds how long a partial fragment set is held before
// being discarded, guarding against a peer that never sends its last
// fragment.
const ReassemblyTimeout = 10 * time.Second

type reassemblyKey struct {
	sourceAL  [6]byte
	messageID uint16
}

type partial struct {
	fragments map[uint8][]byte // fragmentID -> TLV payload (EOM stripped)
	lastSeen  *uint8           // fragmentID that carried FlagLastFragment, if seen
	touched   time.Time
	relay     bool
	msgType   MessageType
}

// Reassembler holds in-flight fragment sets keyed by (source AL MAC,
// message id) and assembles them into complete CMDUs as fragments arrive.
// It is not safe for concurrent use; callers run it from a single goroutine,
// matching the AL's single-threaded event loop.
type Reassembler struct {
	pending map[reassemblyKey]*partial
	now     func() time.Time
}

// NewReassembler constructs an empty Reassembler. now defaults to
// time.Now but may be overridden in tests.
func NewReassembler(now func() time.Time) *Reassembler {
	if now == nil {
		now = time.Now
	}
	return &Reassembler{pending: make(map[reassemblyKey]*partial), now: now}
}

// Feed ingests one on-the-wire fragment from sourceAL. It returns a non-nil
// CMDU once every fragment up to and including the one flagged last has
// arrived; otherwise it returns (nil, nil) while reassembly continues.
func (re *Reassembler) Feed(sourceAL [6]byte, data []byte) (*CMDU, error) {
	h, rest, err := parseHeader(data)
	if err != nil {
		return nil, err
	}

	// Strip the trailing End-of-message TLV carried by every fragment; only
	// the reassembled whole gets a single EOM appended back before parsing.
	body, err := stripTrailingEOM(rest)
	if err != nil {
		return nil, err
	}

	key := reassemblyKey{sourceAL: sourceAL, messageID: h.messageID}
	p, ok := re.pending[key]
	if !ok {
		p = &partial{fragments: make(map[uint8][]byte), relay: h.relay(), msgType: h.messageType}
		re.pending[key] = p
	}
	p.touched = re.now()
	if _, dup := p.fragments[h.fragmentID]; dup {
		// A retransmitted fragment within the same reassembly window; keep
		// the first copy and ignore the retransmission.
		return nil, nil
	}
	p.fragments[h.fragmentID] = body
	if h.last() {
		id := h.fragmentID
		p.lastSeen = &id
	}

	if p.lastSeen == nil || len(p.fragments) != int(*p.lastSeen)+1 {
		return nil, nil
	}

	var full []byte
	for i := 0; i <= int(*p.lastSeen); i++ {
		frag, ok := p.fragments[uint8(i)]
		if !ok {
			return nil, nil // a gap remains; keep waiting
		}
		full = append(full, frag...)
	}
	delete(re.pending, key)

	tlvs, err := tlv.ParseAll(full)
	if err != nil {
		return nil, err
	}
	return &CMDU{
		MessageType: p.msgType,
		MessageID:   key.messageID,
		Relay:       p.relay,
		TLVs:        tlvs,
	}, nil
}

// GC discards any reassembly in flight for longer than ReassemblyTimeout.
// The event loop calls this on its timer tick.
func (re *Reassembler) GC() {
	now := re.now()
	for k, p := range re.pending {
		if now.Sub(p.touched) > ReassemblyTimeout {
			delete(re.pending, k)
		}
	}
}

// Pending reports how many message ids currently have a reassembly in
// flight, for diagnostics and resource-exhaustion checks.
func (re *Reassembler) Pending() int {
	return len(re.pending)
}

func stripTrailingEOM(body []byte) ([]byte, error) {
	// Locate and remove exactly the trailing End-of-message TLV (tag 0x00,
	// length 0) without parsing the TLVs before it, so intermediate
	// fragments that are not yet reassemblable don't need to fully decode.
	off := 0
	lastEOM := -1
	for off < len(body) {
		if off+3 > len(body) {
			return nil, errs.Malformed("cmdu.stripTrailingEOM", fmt.Errorf("truncated TLV header at offset %d", off))
		}
		tag := body[off]
		length := int(body[off+1])<<8 | int(body[off+2])
		if off+3+length > len(body) {
			return nil, errs.Malformed("cmdu.stripTrailingEOM", fmt.Errorf("TLV length overrun at offset %d", off))
		}
		if tag == uint8(tlv.TypeEndOfMessage) && length == 0 {
			lastEOM = off
		}
		off += 3 + length
	}
	if lastEOM < 0 {
		return nil, errs.Malformed("cmdu.stripTrailingEOM", fmt.Errorf("fragment missing End-of-message TLV"))
	}
	return body[:lastEOM], nil
}
