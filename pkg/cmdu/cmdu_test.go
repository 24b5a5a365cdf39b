package cmdu

import (
	"testing"

	"github.com/krisarmstrong/hmeshd/pkg/tlv"
)

func mac(b byte) [6]byte {
	return [6]byte{0x00, 0x4f, 0x21, 0x03, 0xab, b}
}

// TestEncodeDecodeSingleFragment covers the common case: a CMDU small
// enough to fit in one Ethernet frame round-trips through Encode/Decode
// unchanged.
func TestEncodeDecodeSingleFragment(t *testing.T) {
	c := &CMDU{
		MessageType: MsgTopologyQuery,
		MessageID:   7,
		TLVs: []tlv.TLV{
			&tlv.ALMACAddress{MAC: tlv.MAC(mac(0x01))},
		},
	}
	fragments, err := Encode(c, false)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(fragments) != 1 {
		t.Fatalf("expected 1 fragment, got %d", len(fragments))
	}

	got, err := Decode(fragments[0])
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.MessageType != c.MessageType || got.MessageID != c.MessageID {
		t.Fatalf("header mismatch: got %+v", got)
	}
	if len(got.TLVs) != 1 {
		t.Fatalf("expected 1 TLV, got %d", len(got.TLVs))
	}
}

// TestFragmentationRoundTrip forces a CMDU past the single-fragment budget
// and checks the Reassembler recovers the original header, relay flag and
// TLV count, the fragmentation/reassembly round trip.
func TestFragmentationRoundTrip(t *testing.T) {
	var tlvs []tlv.TLV
	for i := 0; i < 120; i++ {
		tlvs = append(tlvs, &tlv.DeviceIdentification{
			FriendlyName: "device-with-a-reasonably-long-name",
			ManufName:    "Acme Networking Corp",
			ModelName:    "AL-Gateway-9000-Pro",
		})
	}
	c := &CMDU{MessageType: MsgTopologyResponse, MessageID: 99, TLVs: tlvs}

	fragments, err := Encode(c, true)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(fragments) < 2 {
		t.Fatalf("expected fragmentation across multiple frames, got %d fragment(s)", len(fragments))
	}

	re := NewReassembler(nil)
	src := mac(0x10)
	var result *CMDU
	for i, frag := range fragments {
		out, err := re.Feed(src, frag)
		if err != nil {
			t.Fatalf("Feed fragment %d: %v", i, err)
		}
		if i < len(fragments)-1 {
			if out != nil {
				t.Fatalf("expected nil before last fragment, got non-nil at index %d", i)
			}
		} else {
			if out == nil {
				t.Fatal("expected a reassembled CMDU on the last fragment")
			}
			result = out
		}
	}
	if result.MessageID != c.MessageID || result.MessageType != c.MessageType {
		t.Fatalf("reassembled header mismatch: %+v", result)
	}
	if !result.Relay {
		t.Fatal("expected relay flag preserved through reassembly")
	}
	if len(result.TLVs) != len(tlvs) {
		t.Fatalf("expected %d TLVs after reassembly, got %d", len(tlvs), len(result.TLVs))
	}
	if re.Pending() != 0 {
		t.Fatalf("expected no pending reassemblies after completion, got %d", re.Pending())
	}
}

// TestFragmentationOutOfOrder checks the Reassembler tolerates fragments
// arriving with the last-flagged fragment first.
func TestFragmentationOutOfOrder(t *testing.T) {
	var tlvs []tlv.TLV
	for i := 0; i < 120; i++ {
		tlvs = append(tlvs, &tlv.DeviceIdentification{
			FriendlyName: "device-with-a-reasonably-long-name",
			ManufName:    "Acme Networking Corp",
			ModelName:    "AL-Gateway-9000-Pro",
		})
	}
	c := &CMDU{MessageType: MsgTopologyResponse, MessageID: 100, TLVs: tlvs}
	fragments, err := Encode(c, false)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(fragments) < 2 {
		t.Fatal("expected multiple fragments for this test to be meaningful")
	}

	re := NewReassembler(nil)
	src := mac(0x11)
	// Feed in reverse order.
	var result *CMDU
	for i := len(fragments) - 1; i >= 0; i-- {
		out, err := re.Feed(src, fragments[i])
		if err != nil {
			t.Fatalf("Feed fragment %d: %v", i, err)
		}
		if out != nil {
			result = out
		}
	}
	if result == nil {
		t.Fatal("expected reassembly to complete once all fragments arrived")
	}
	if len(result.TLVs) != len(tlvs) {
		t.Fatalf("expected %d TLVs, got %d", len(tlvs), len(result.TLVs))
	}
}

func TestDedupSuppressesRepeats(t *testing.T) {
	d := NewDedup(0)
	src := mac(0x20)
	if d.Seen(src, 1, MsgTopologyDiscovery) {
		t.Fatal("first sighting should not be reported as a duplicate")
	}
	if !d.Seen(src, 1, MsgTopologyDiscovery) {
		t.Fatal("second sighting of the same fingerprint should be a duplicate")
	}
	// A different message id from the same source is not a duplicate.
	if d.Seen(src, 2, MsgTopologyDiscovery) {
		t.Fatal("distinct message id should not be reported as a duplicate")
	}
}

func TestDedupEvictsOldestBeyondCapacity(t *testing.T) {
	d := NewDedup(2)
	src := mac(0x21)
	d.Seen(src, 1, MsgTopologyDiscovery)
	d.Seen(src, 2, MsgTopologyDiscovery)
	d.Seen(src, 3, MsgTopologyDiscovery) // evicts message id 1
	if d.Len() != 2 {
		t.Fatalf("expected capacity to cap length at 2, got %d", d.Len())
	}
	if d.Seen(src, 1, MsgTopologyDiscovery) {
		t.Fatal("message id 1 should have been evicted and treated as new again")
	}
}

func TestIDAllocatorMonotonicWithinRun(t *testing.T) {
	a := NewIDAllocator()
	first := a.Next()
	second := a.Next()
	if second != first+1 {
		t.Fatalf("expected sequential ids, got %d then %d", first, second)
	}
}

func TestDecodeRejectsShortHeader(t *testing.T) {
	_, err := Decode([]byte{0x00, 0x00, 0x00})
	if err == nil {
		t.Fatal("expected an error decoding a truncated header")
	}
}

func TestMessageTypeString(t *testing.T) {
	if got := MsgTopologyDiscovery.String(); got != "TopologyDiscovery" {
		t.Fatalf("unexpected String(): %q", got)
	}
	if got := MessageType(0xfeed).String(); got == "" {
		t.Fatal("unknown message type should still stringify")
	}
}
