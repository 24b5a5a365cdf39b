package wsc

import "fmt"

// wfaVendorID is the Wi-Fi Alliance vendor extension OUI carried in every
// WSC AttrVendorExtension attribute.
var wfaVendorID = [3]byte{0x00, 0x37, 0x2a}

// multiAPSubelementType is the WFA vendor extension subelement id this
// core uses to carry the Multi-AP role/teardown bitmap inside M2.
// wfaSubelementVersion2 is the WFA vendor extension subelement carrying
// the WSC version byte every M1/M2 vendor extension must start with.
const (
	wfaSubelementVersion2 uint8 = 0x00
	multiAPSubelementType uint8 = 0x06
)

// Multi-AP vendor sub-element bitmap bits, matching model.MultiAPRole
// plus a teardown bit not part of the steady-state role set.
const (
	MultiAPBitFronthaul    uint8 = 1 << 5
	MultiAPBitBackhaulBSS  uint8 = 1 << 4
	MultiAPBitBackhaulSTA  uint8 = 1 << 3
	MultiAPBitBackhaulOnly uint8 = 1 << 2
	MultiAPBitTeardown     uint8 = 1 << 1
)

// encodeVersion2VendorExtension builds the vendor extension M1 carries: the
// WFA OUI and a Version2 sub-element alone.
func encodeVersion2VendorExtension(buf []byte) []byte {
	sub := []byte{wfaVendorID[0], wfaVendorID[1], wfaVendorID[2], wfaSubelementVersion2, 1, WPSVersion}
	return encodeAttr(buf, AttrVendorExtension, sub)
}

// encodeMultiAPVendorExtension builds M2's vendor extension: the Version2
// sub-element followed by the Multi-AP role/teardown bitmap sub-element.
func encodeMultiAPVendorExtension(buf []byte, bitmap uint8) []byte {
	sub := []byte{
		wfaVendorID[0], wfaVendorID[1], wfaVendorID[2],
		wfaSubelementVersion2, 1, WPSVersion,
		multiAPSubelementType, 1, bitmap,
	}
	return encodeAttr(buf, AttrVendorExtension, sub)
}

// decodeMultiAPVendorExtension extracts the Multi-AP role bitmap from a
// raw AttrVendorExtension value, returning ok=false if it does not carry
// the WFA OUI and Multi-AP subelement this core looks for.
func decodeMultiAPVendorExtension(value []byte) (bitmap uint8, ok bool, err error) {
	if len(value) < 3 {
		return 0, false, fmt.Errorf("wsc: vendor extension attribute too short")
	}
	if value[0] != wfaVendorID[0] || value[1] != wfaVendorID[1] || value[2] != wfaVendorID[2] {
		return 0, false, nil
	}
	off := 3
	for off+2 <= len(value) {
		subType := value[off]
		subLen := int(value[off+1])
		off += 2
		if off+subLen > len(value) {
			return 0, false, fmt.Errorf("wsc: vendor sub-element length overrun")
		}
		if subType == multiAPSubelementType && subLen == 1 {
			return value[off], true, nil
		}
		off += subLen
	}
	return 0, false, nil
}
