package wsc

import (
	"encoding/binary"
	"fmt"

	"github.com/krisarmstrong/hmeshd/pkg/model"
	"github.com/krisarmstrong/hmeshd/platform/crypto"
)

// DeviceInfo is the static device metadata embedded in both M1 and M2.
type DeviceInfo struct {
	Manufacturer string
	ModelName    string
	ModelNumber  string
	SerialNumber string
}

// M1 is the enrollee's decoded first message: its AL MAC (the Multi-AP-
// aware variant carries the AL MAC here, not a radio MAC), nonce, and
// Diffie-Hellman public key, plus everything needed to validate M2 and
// derive the session keys once it arrives.
type M1 struct {
	Raw           []byte
	EnrolleeALMAC model.MAC
	Nonce         [16]byte
	PublicKey     []byte
	AuthTypes     uint16
	EncrTypes     uint16
	Bands         []model.Band
	Device        DeviceInfo
}

// BuildM1 constructs an M1 message for alMAC, generating a fresh nonce and
// DH keypair. bands are the enrollee radio's supported RF bands, carried in
// the RF Bands attribute. The returned DHKeyPair must be retained by the
// caller (in model.Radio.WSC) to process the corresponding M2.
func BuildM1(alMAC model.MAC, authTypes, encrTypes uint16, bands []model.Band, dev DeviceInfo) ([]byte, crypto.DHKeyPair, [16]byte, error) {
	nonce, err := crypto.RandomBytes(16)
	if err != nil {
		return nil, crypto.DHKeyPair{}, [16]byte{}, fmt.Errorf("wsc: generate enrollee nonce: %w", err)
	}
	var nonceArr [16]byte
	copy(nonceArr[:], nonce)

	keys, err := crypto.GenerateDHKeyPair()
	if err != nil {
		return nil, crypto.DHKeyPair{}, [16]byte{}, fmt.Errorf("wsc: generate DH keypair: %w", err)
	}
	pub := crypto.DHPublicKeyBytes(keys.Public)

	var buf []byte
	buf = encodeAttrU16(buf, AttrVersion, 0x0010)
	buf = encodeAttrU8(buf, AttrMsgType, MsgTypeM1)
	buf = encodeAttr(buf, AttrUUIDE, make([]byte, 16))
	buf = encodeAttr(buf, AttrMACAddr, alMAC[:])
	buf = encodeAttr(buf, AttrEnrolleeNonce, nonceArr[:])
	buf = encodeAttr(buf, AttrPublicKey, pub)
	buf = encodeAttrU16(buf, AttrAuthTypeFlags, authTypes)
	buf = encodeAttrU16(buf, AttrEncrTypeFlags, encrTypes)
	buf = encodeAttrU8(buf, AttrConnTypeFlags, ConnTypeESS)
	buf = encodeAttrU16(buf, AttrConfigMethods, ConfigPhyPushbutton|ConfigVirtPushbutton)
	buf = encodeAttrU8(buf, AttrWPSState, WPSStateNotConfigured)
	buf = encodeAttr(buf, AttrManufacturer, []byte(dev.Manufacturer))
	buf = encodeAttr(buf, AttrModelName, []byte(dev.ModelName))
	buf = encodeAttr(buf, AttrModelNumber, []byte(dev.ModelNumber))
	buf = encodeAttr(buf, AttrSerialNumber, []byte(dev.SerialNumber))

	var devType [8]byte
	binary.BigEndian.PutUint16(devType[0:2], wpsDevNetworkInfra)
	copy(devType[2:6], primaryDevTypeOUI[:])
	binary.BigEndian.PutUint16(devType[6:8], wpsDevNetworkInfraRouter)
	buf = encodeAttr(buf, AttrPrimaryDevType, devType[:])

	buf = encodeAttr(buf, AttrDevName, []byte(dev.ModelName))
	buf = encodeAttrU8(buf, AttrRFBands, rfBandsBitmap(bands))
	buf = encodeAttrU16(buf, AttrAssocState, assocStateNotAssociated)
	buf = encodeAttrU16(buf, AttrDevPasswordID, devPasswordIDPushButton)
	buf = encodeAttrU16(buf, AttrConfigError, configErrorNone)
	buf = encodeAttrU32(buf, AttrOSVersion, defaultOSVersion)
	buf = encodeVersion2VendorExtension(buf)

	return buf, keys, nonceArr, nil
}

// ParseM1 decodes a peer's M1 message, validating that every required
// attribute is present.
func ParseM1(data []byte) (*M1, error) {
	attrs, err := decodeAttrs(data)
	if err != nil {
		return nil, fmt.Errorf("wsc: parse M1: %w", err)
	}

	mac, ok := findAttr(attrs, AttrMACAddr)
	if !ok || len(mac) != 6 {
		return nil, fmt.Errorf("wsc: M1 missing or malformed MAC address attribute")
	}
	nonce, ok := findAttr(attrs, AttrEnrolleeNonce)
	if !ok || len(nonce) != 16 {
		return nil, fmt.Errorf("wsc: M1 missing or malformed enrollee nonce attribute")
	}
	pub, ok := findAttr(attrs, AttrPublicKey)
	if !ok {
		return nil, fmt.Errorf("wsc: M1 missing public key attribute")
	}

	m1 := &M1{Raw: data, PublicKey: append([]byte(nil), pub...)}
	copy(m1.EnrolleeALMAC[:], mac)
	copy(m1.Nonce[:], nonce)

	if v, ok := findAttr(attrs, AttrAuthTypeFlags); ok && len(v) == 2 {
		m1.AuthTypes = uint16(v[0])<<8 | uint16(v[1])
	}
	if v, ok := findAttr(attrs, AttrEncrTypeFlags); ok && len(v) == 2 {
		m1.EncrTypes = uint16(v[0])<<8 | uint16(v[1])
	}
	if v, ok := findAttr(attrs, AttrManufacturer); ok {
		m1.Device.Manufacturer = string(v)
	}
	if v, ok := findAttr(attrs, AttrModelName); ok {
		m1.Device.ModelName = string(v)
	}
	if v, ok := findAttr(attrs, AttrModelNumber); ok {
		m1.Device.ModelNumber = string(v)
	}
	if v, ok := findAttr(attrs, AttrSerialNumber); ok {
		m1.Device.SerialNumber = string(v)
	}
	if v, ok := findAttr(attrs, AttrRFBands); ok && len(v) == 1 {
		m1.Bands = bandsFromBitmap(v[0])
	}
	return m1, nil
}

// bandsFromBitmap decodes an RF Bands attribute bitmap back into the bands
// it names.
func bandsFromBitmap(bitmap uint8) []model.Band {
	var bands []model.Band
	if bitmap&RFBand24GHz != 0 {
		bands = append(bands, model.Band24GHz)
	}
	if bitmap&RFBand5GHz != 0 {
		bands = append(bands, model.Band5GHz)
	}
	if bitmap&RFBand60GHz != 0 {
		bands = append(bands, model.Band60GHz)
	}
	return bands
}
