// Package wsc implements the Wi-Fi Simple Configuration M1/M2 exchange
// used by AP-Autoconfiguration: the attribute codec, RFC 3526 1536-bit
// MODP Diffie-Hellman arithmetic, the key derivation function, M1/M2
// construction and validation, the Multi-AP vendor sub-element, and the
// enrollee radio state machine.
//
// This core adopts the Multi-AP-aware variant: M1's MAC attribute carries
// the AL MAC (not the radio MAC), and M2 always carries the Multi-AP
// vendor sub-element byte (fronthaul/backhaul-BSS/backhaul-STA/teardown).
package wsc

import (
	"encoding/binary"
	"fmt"

	"github.com/krisarmstrong/hmeshd/pkg/model"
)

// AttrType is a WSC attribute's 16-bit type tag.
type AttrType uint16

const (
	AttrVersion         AttrType = 0x104a
	AttrMsgType         AttrType = 0x1022
	AttrUUIDE           AttrType = 0x1047
	AttrUUIDR           AttrType = 0x1048
	AttrMACAddr         AttrType = 0x1020
	AttrEnrolleeNonce   AttrType = 0x101a
	AttrRegistrarNonce  AttrType = 0x1039
	AttrPublicKey       AttrType = 0x1032
	AttrAuthTypeFlags   AttrType = 0x1004
	AttrEncrTypeFlags   AttrType = 0x1010
	AttrConnTypeFlags   AttrType = 0x100d
	AttrConfigMethods   AttrType = 0x1008
	AttrWPSState        AttrType = 0x1044
	AttrManufacturer    AttrType = 0x1021
	AttrModelName       AttrType = 0x1023
	AttrModelNumber     AttrType = 0x1024
	AttrSerialNumber    AttrType = 0x1042
	AttrPrimaryDevType  AttrType = 0x1054
	AttrDevName         AttrType = 0x1011
	AttrRFBands         AttrType = 0x103c
	AttrAssocState      AttrType = 0x1002
	AttrDevPasswordID   AttrType = 0x1012
	AttrConfigError     AttrType = 0x1009
	AttrOSVersion       AttrType = 0x102d
	AttrVendorExtension AttrType = 0x1049
	AttrSSID            AttrType = 0x1045
	AttrAuthType        AttrType = 0x1003
	AttrEncrType         AttrType = 0x100f
	AttrNetworkKey       AttrType = 0x1027
	AttrKeyWrapAuth      AttrType = 0x101e
	AttrEncrSettings     AttrType = 0x1018
	AttrAuthenticator    AttrType = 0x1005
)

// WPS message type byte values carried in AttrMsgType.
const (
	MsgTypeM1 uint8 = 0x04
	MsgTypeM2 uint8 = 0x05
)

// Authentication type flag bits (AttrAuthTypeFlags).
const (
	AuthOpen    uint16 = 0x0001
	AuthWPAPSK  uint16 = 0x0002
	AuthWPA     uint16 = 0x0008
	AuthWPA2    uint16 = 0x0010
	AuthWPA2PSK uint16 = 0x0020
)

// Encryption type flag bits (AttrEncrTypeFlags).
const (
	EncrNone uint16 = 0x0001
	EncrTKIP uint16 = 0x0004
	EncrAES  uint16 = 0x0008
)

// WPS constants used verbatim from the original protocol definition.
const (
	ConnTypeESS             uint8  = 0x01
	ConfigPhyPushbutton     uint16 = 0x0080
	ConfigVirtPushbutton    uint16 = 0x0280
	WPSStateNotConfigured   uint8  = 0x01
	WPSStateConfigured      uint8  = 0x02
	WPSVersion              uint8  = 0x10
)

// Primary device type: category "network infrastructure", WSC's fixed OUI,
// sub-category "router". A 1905 AL entity always reports itself this way.
var primaryDevTypeOUI = [4]byte{0x00, 0x50, 0xf2, 0x00}

const (
	wpsDevNetworkInfra       uint16 = 6
	wpsDevNetworkInfraRouter uint16 = 2
)

// RF Bands attribute bitmap (AttrRFBands), one bit per band.
const (
	RFBand24GHz uint8 = 0x01
	RFBand5GHz  uint8 = 0x02
	RFBand60GHz uint8 = 0x04
)

// rfBandsBitmap ORs together the RF band bits for every band in bands.
func rfBandsBitmap(bands []model.Band) uint8 {
	var b uint8
	for _, band := range bands {
		switch band {
		case model.Band24GHz:
			b |= RFBand24GHz
		case model.Band5GHz:
			b |= RFBand5GHz
		case model.Band60GHz:
			b |= RFBand60GHz
		}
	}
	return b
}

const (
	assocStateNotAssociated uint16 = 0
	devPasswordIDPushButton uint16 = 0x0004
	configErrorNone         uint16 = 0
)

// defaultOSVersion sets the WSC-mandated top bit with a placeholder build
// number in the low 31 bits.
const defaultOSVersion uint32 = 0x80000001

// attr is one decoded (type, length, value) WSC attribute. WSC attributes
// use a 2-byte type and 2-byte length with no padding or terminator,
// unlike 1905.1 TLVs.
type attr struct {
	Type  AttrType
	Value []byte
}

func encodeAttr(buf []byte, t AttrType, value []byte) []byte {
	var hdr [4]byte
	binary.BigEndian.PutUint16(hdr[0:2], uint16(t))
	binary.BigEndian.PutUint16(hdr[2:4], uint16(len(value)))
	buf = append(buf, hdr[:]...)
	buf = append(buf, value...)
	return buf
}

func encodeAttrU8(buf []byte, t AttrType, v uint8) []byte {
	return encodeAttr(buf, t, []byte{v})
}

func encodeAttrU16(buf []byte, t AttrType, v uint16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return encodeAttr(buf, t, b[:])
}

func encodeAttrU32(buf []byte, t AttrType, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return encodeAttr(buf, t, b[:])
}

// decodeAttrs parses a flat run of WSC attributes, stopping only when the
// buffer is exhausted (WSC attribute sequences have no terminator).
func decodeAttrs(data []byte) ([]attr, error) {
	var out []attr
	off := 0
	for off < len(data) {
		if off+4 > len(data) {
			return nil, fmt.Errorf("wsc: truncated attribute header at offset %d", off)
		}
		t := AttrType(binary.BigEndian.Uint16(data[off : off+2]))
		length := int(binary.BigEndian.Uint16(data[off+2 : off+4]))
		off += 4
		if off+length > len(data) {
			return nil, fmt.Errorf("wsc: attribute 0x%04x length %d overruns buffer at offset %d", t, length, off)
		}
		out = append(out, attr{Type: t, Value: data[off : off+length]})
		off += length
	}
	return out, nil
}

func findAttr(attrs []attr, t AttrType) ([]byte, bool) {
	for _, a := range attrs {
		if a.Type == t {
			return a.Value, true
		}
	}
	return nil, false
}

// MessageType extracts the WPS message type byte (MsgTypeM1/MsgTypeM2) from
// a raw WSC attribute stream, so a caller holding only the TLV payload can
// tell M1 and M2 apart before deciding which of ParseM1/ValidateM2 to call.
func MessageType(payload []byte) (uint8, error) {
	attrs, err := decodeAttrs(payload)
	if err != nil {
		return 0, fmt.Errorf("wsc: parse message type: %w", err)
	}
	v, ok := findAttr(attrs, AttrMsgType)
	if !ok || len(v) != 1 {
		return 0, fmt.Errorf("wsc: missing or malformed message type attribute")
	}
	return v[0], nil
}
