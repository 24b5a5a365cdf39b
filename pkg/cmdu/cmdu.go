// Package cmdu implements the 1905.1 Control Message Data Unit: header
// framing, TLV-boundary fragmentation/reassembly, duplicate suppression,
// and the message-id allocator.
package cmdu

import (
	"fmt"

	"github.com/krisarmstrong/hmeshd/pkg/errs"
	"github.com/krisarmstrong/hmeshd/pkg/tlv"
	"github.com/krisarmstrong/hmeshd/pkg/wire"
)

// MessageType is the 1905.1 CMDU message type carried in the header.
type MessageType uint16

const (
	MsgTopologyDiscovery           MessageType = 0x0000
	MsgTopologyNotification        MessageType = 0x0001
	MsgTopologyQuery               MessageType = 0x0002
	MsgTopologyResponse            MessageType = 0x0003
	MsgVendorSpecific              MessageType = 0x0004
	MsgLinkMetricQuery             MessageType = 0x0005
	MsgLinkMetricResponse          MessageType = 0x0006
	MsgAPAutoconfigurationSearch   MessageType = 0x0007
	MsgAPAutoconfigurationResponse MessageType = 0x0008
	MsgAPAutoconfigurationWSC      MessageType = 0x0009
	MsgAPAutoconfigurationRenew    MessageType = 0x000A
	MsgPushButtonEventNotification MessageType = 0x000B
	MsgPushButtonJoinNotification  MessageType = 0x000C
	MsgHigherLayerQuery            MessageType = 0x000D
	MsgHigherLayerResponse         MessageType = 0x000E
)

var messageTypeNames = map[MessageType]string{
	MsgTopologyDiscovery:           "TopologyDiscovery",
	MsgTopologyNotification:        "TopologyNotification",
	MsgTopologyQuery:               "TopologyQuery",
	MsgTopologyResponse:            "TopologyResponse",
	MsgVendorSpecific:              "VendorSpecific",
	MsgLinkMetricQuery:             "LinkMetricQuery",
	MsgLinkMetricResponse:          "LinkMetricResponse",
	MsgAPAutoconfigurationSearch:   "APAutoconfigurationSearch",
	MsgAPAutoconfigurationResponse: "APAutoconfigurationResponse",
	MsgAPAutoconfigurationWSC:      "APAutoconfigurationWSC",
	MsgAPAutoconfigurationRenew:    "APAutoconfigurationRenew",
	MsgPushButtonEventNotification: "PushButtonEventNotification",
	MsgPushButtonJoinNotification:  "PushButtonJoinNotification",
	MsgHigherLayerQuery:            "HigherLayerQuery",
	MsgHigherLayerResponse:         "HigherLayerResponse",
}

func (m MessageType) String() string {
	if n, ok := messageTypeNames[m]; ok {
		return n
	}
	return fmt.Sprintf("unknown(0x%04x)", uint16(m))
}

// Header flag bits.
const (
	FlagLastFragment uint8 = 1 << 7
	FlagRelay        uint8 = 1 << 6
)

const (
	headerSize          = 6
	MessageVersion      = 0x00
	MaxFragments        = 255
	// EthernetMTU is the conventional Ethernet payload size a CMDU
	// fragment must fit within once the 14-byte Ethernet header and the
	// 4-byte FCS are subtracted from the 1518-byte maximum frame size.
	EthernetMTU           = 1500
	MaxNetworkSegmentSize = 1500
)

// CMDU is one parsed (and possibly reassembled) 1905.1 message.
type CMDU struct {
	MessageType MessageType
	MessageID   uint16
	Relay       bool
	TLVs        []tlv.TLV
}

// fragment is one on-the-wire CMDU frame before reassembly.
type fragment struct {
	header  header
	payload []byte // TLV bytes, not including the header or trailing EOM
}

type header struct {
	messageType  MessageType
	messageID    uint16
	fragmentID   uint8
	flags        uint8
}

func (h header) last() bool  { return h.flags&FlagLastFragment != 0 }
func (h header) relay() bool { return h.flags&FlagRelay != 0 }

func parseHeader(data []byte) (header, []byte, error) {
	if len(data) < headerSize {
		return header{}, nil, errs.Malformed("cmdu.parseHeader", fmt.Errorf("short header: %d bytes", len(data)))
	}
	r := wire.NewReader(data)
	version, _ := r.U8()
	if version != MessageVersion {
		return header{}, nil, errs.Malformed("cmdu.parseHeader", fmt.Errorf("unsupported message_version 0x%02x", version))
	}
	_, _ = r.U8() // reserved
	mt, _ := r.U16()
	mid, _ := r.U16()
	fid, _ := r.U8()
	flags, _ := r.U8()
	return header{
		messageType: MessageType(mt),
		messageID:   mid,
		fragmentID:  fid,
		flags:       flags,
	}, r.Bytes(), nil
}

func forgeHeader(w *wire.Writer, h header) {
	w.U8(MessageVersion)
	w.U8(0x00)
	w.U16(uint16(h.messageType))
	w.U16(h.messageID)
	w.U8(h.fragmentID)
	w.U8(h.flags)
}

// ParseFragment parses one on-the-wire CMDU frame (header + TLVs, including
// its trailing End-of-message TLV) without attempting reassembly.
func ParseFragment(data []byte) (fragment, error) {
	h, rest, err := parseHeader(data)
	if err != nil {
		return fragment{}, err
	}
	return fragment{header: h, payload: rest}, nil
}

// Decode parses a single, already-reassembled CMDU: a header followed by a
// complete TLV sequence terminated by End-of-message.
func Decode(data []byte) (*CMDU, error) {
	h, rest, err := parseHeader(data)
	if err != nil {
		return nil, err
	}
	tlvs, err := tlv.ParseAll(rest)
	if err != nil {
		return nil, err
	}
	return &CMDU{
		MessageType: h.messageType,
		MessageID:   h.messageID,
		Relay:       h.relay(),
		TLVs:        tlvs,
	}, nil
}

// Encode forges a CMDU into one or more Ethernet-sized fragments, splitting
// on TLV boundaries when the forged length would exceed
// MaxNetworkSegmentSize. Every fragment carries its own End-of-message TLV
// and the last fragment has FlagLastFragment set.
func Encode(c *CMDU, relay bool) ([][]byte, error) {
	// Forge each TLV independently so we can pack them into fragments
	// without re-forging.
	forged := make([][]byte, len(c.TLVs))
	for i, v := range c.TLVs {
		w := wire.NewWriter(0)
		tlv.Forge(w, v)
		forged[i] = w.Bytes()
	}

	eomW := wire.NewWriter(0)
	tlv.Forge(eomW, &tlv.EndOfMessage{})
	eom := eomW.Bytes()

	var fragments [][]byte
	var cur []byte
	flushFragment := func(last bool) {
		flags := uint8(0)
		if relay {
			flags |= FlagRelay
		}
		if last {
			flags |= FlagLastFragment
		}
		h := header{
			messageType: c.MessageType,
			messageID:   c.MessageID,
			fragmentID:  uint8(len(fragments)),
			flags:       flags,
		}
		w := wire.NewWriter(headerSize + len(cur) + len(eom))
		forgeHeader(w, h)
		w.Raw(cur)
		w.Raw(eom)
		fragments = append(fragments, w.Bytes())
		cur = nil
	}

	budget := MaxNetworkSegmentSize - headerSize - len(eom)
	for _, tb := range forged {
		if len(cur)+len(tb) > budget && len(cur) > 0 {
			if len(fragments) >= MaxFragments-1 {
				return nil, errs.ResourceExhausted("cmdu.Encode", fmt.Errorf("exceeded %d fragments", MaxFragments))
			}
			flushFragment(false)
		}
		if len(tb) > budget {
			return nil, errs.Malformed("cmdu.Encode", fmt.Errorf("single TLV of %d bytes exceeds fragment budget %d", len(tb), budget))
		}
		cur = append(cur, tb...)
	}
	flushFragment(true)

	if len(fragments) > MaxFragments {
		return nil, errs.ResourceExhausted("cmdu.Encode", fmt.Errorf("exceeded %d fragments", MaxFragments))
	}
	return fragments, nil
}
