package wsc

import (
	"crypto/hmac"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/krisarmstrong/hmeshd/pkg/model"
	"github.com/krisarmstrong/hmeshd/platform/crypto"
)

// BuildM2Result is everything BuildM2 produces: the wire bytes and the
// registrar's own DH keypair (not needed again by the registrar, kept for
// symmetry and tests).
type BuildM2Result struct {
	Bytes []byte
	Keys  crypto.DHKeyPair
}

// BuildM2 constructs a registrar's M2 response to a parsed M1, carrying
// bss in the encrypted settings and role/teardown in the Multi-AP vendor
// sub-element. bands are the registrar's own RF bands for this BSS. dev is
// the registrar's own device metadata.
func BuildM2(m1 *M1, bss model.BSSInfo, role model.MultiAPRole, teardown bool, bands []model.Band, dev DeviceInfo) (*BuildM2Result, error) {
	registrarNonce, err := crypto.RandomBytes(16)
	if err != nil {
		return nil, fmt.Errorf("wsc: generate registrar nonce: %w", err)
	}
	keys, err := crypto.GenerateDHKeyPair()
	if err != nil {
		return nil, fmt.Errorf("wsc: generate DH keypair: %w", err)
	}

	peerPub := new(big.Int).SetBytes(m1.PublicKey)
	shared := crypto.DHSharedSecret(keys.Private, peerPub)
	dhKey := crypto.SHA256(shared)
	kdk := crypto.HMACSHA256(dhKey, m1.Nonce[:], m1.EnrolleeALMAC[:], registrarNonce)
	dk := deriveKeys(kdk)

	var buf []byte
	buf = encodeAttrU16(buf, AttrVersion, 0x0010)
	buf = encodeAttrU8(buf, AttrMsgType, MsgTypeM2)
	buf = encodeAttr(buf, AttrEnrolleeNonce, m1.Nonce[:])
	buf = encodeAttr(buf, AttrRegistrarNonce, registrarNonce)
	buf = encodeAttr(buf, AttrUUIDR, make([]byte, 16))
	buf = encodeAttr(buf, AttrPublicKey, crypto.DHPublicKeyBytes(keys.Public))
	buf = encodeAttrU16(buf, AttrAuthTypeFlags, m1.AuthTypes)
	buf = encodeAttrU16(buf, AttrEncrTypeFlags, m1.EncrTypes)
	buf = encodeAttrU8(buf, AttrConnTypeFlags, ConnTypeESS)
	buf = encodeAttrU16(buf, AttrConfigMethods, ConfigPhyPushbutton|ConfigVirtPushbutton)
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

	bitmap := multiAPBitmap(role, teardown)
	buf = encodeMultiAPVendorExtension(buf, bitmap)

	encrSettings, err := buildEncryptedSettings(dk, bss)
	if err != nil {
		return nil, err
	}
	buf = encodeAttr(buf, AttrEncrSettings, encrSettings)

	authenticator := crypto.HMACSHA256(dk.AuthKey, m1.Raw, buf)[:8]
	buf = encodeAttr(buf, AttrAuthenticator, authenticator)

	return &BuildM2Result{Bytes: buf, Keys: keys}, nil
}

func multiAPBitmap(role model.MultiAPRole, teardown bool) uint8 {
	var b uint8
	if role&model.MultiAPFronthaul != 0 {
		b |= MultiAPBitFronthaul
	}
	if role&model.MultiAPBackhaulBSS != 0 {
		b |= MultiAPBitBackhaulBSS
	}
	if role&model.MultiAPBackhaulSTA != 0 {
		b |= MultiAPBitBackhaulSTA
	}
	if role&model.MultiAPBackhaulOnly != 0 {
		b |= MultiAPBitBackhaulOnly
	}
	if teardown {
		b |= MultiAPBitTeardown
	}
	return b
}

// buildEncryptedSettings forges the plaintext credential attribute block
// (SSID, auth type, encryption type, network key, BSSID), appends an
// 8-byte key-wrap HMAC, PKCS#5-pads it, and AES-128-CBC encrypts it under
// a random IV with dk.KeyWrapKey. The wire value is IV || ciphertext.
func buildEncryptedSettings(dk derivedKeys, bss model.BSSInfo) ([]byte, error) {
	var plain []byte
	plain = encodeAttr(plain, AttrSSID, []byte(bss.SSID))
	plain = encodeAttrU16(plain, AttrAuthType, bss.AuthMode)
	plain = encodeAttrU16(plain, AttrEncrType, bss.EncMode)
	plain = encodeAttr(plain, AttrNetworkKey, []byte(bss.NetKey))
	plain = encodeAttr(plain, AttrMACAddr, bss.BSSID[:])

	hash := crypto.HMACSHA256(dk.AuthKey, plain)
	plain = encodeAttr(plain, AttrKeyWrapAuth, hash[:8])

	padded := crypto.PKCS5Pad(plain, 16)
	iv, err := crypto.RandomBytes(16)
	if err != nil {
		return nil, fmt.Errorf("wsc: generate encrypted-settings IV: %w", err)
	}
	ct, err := crypto.AESCBCEncrypt(dk.KeyWrapKey, iv, padded)
	if err != nil {
		return nil, fmt.Errorf("wsc: encrypt settings: %w", err)
	}
	return append(iv, ct...), nil
}

// M2Result is the validated outcome of processing a peer's M2: the BSS
// credentials to apply to the enrollee's Wi-Fi interface, the Multi-AP
// role bitmap, and whether teardown was signaled.
type M2Result struct {
	BSS      model.BSSInfo
	Role     model.MultiAPRole
	Teardown bool
}

// ValidateM2 checks M2's authenticator and key-wrap HMAC against keys
// derived from m1Private and M2's own public key, decrypts the settings
// blob, and returns the applied BSS configuration. m1 is the enrollee's
// own M1 (needed to recompute the authenticator over M1||M2).
func ValidateM2(m1 *M1, m1Private *big.Int, m2Data []byte) (*M2Result, error) {
	attrs, err := decodeAttrs(m2Data)
	if err != nil {
		return nil, fmt.Errorf("wsc: parse M2: %w", err)
	}

	regNonce, ok := findAttr(attrs, AttrRegistrarNonce)
	if !ok || len(regNonce) != 16 {
		return nil, fmt.Errorf("wsc: M2 missing or malformed registrar nonce")
	}
	peerPubBytes, ok := findAttr(attrs, AttrPublicKey)
	if !ok {
		return nil, fmt.Errorf("wsc: M2 missing public key attribute")
	}
	authenticator, ok := findAttr(attrs, AttrAuthenticator)
	if !ok || len(authenticator) != 8 {
		return nil, fmt.Errorf("wsc: M2 missing or malformed authenticator attribute")
	}
	encrSettings, ok := findAttr(attrs, AttrEncrSettings)
	if !ok || len(encrSettings) < 16 {
		return nil, fmt.Errorf("wsc: M2 missing or malformed encrypted settings attribute")
	}

	// Recompute the authenticator over M1 || (M2 up to but excluding the
	// authenticator attribute itself).
	m2WithoutAuth := m2Data[:len(m2Data)-len(authenticator)-4]

	peerPub := new(big.Int).SetBytes(peerPubBytes)
	shared := crypto.DHSharedSecret(m1Private, peerPub)
	dhKey := crypto.SHA256(shared)
	kdk := crypto.HMACSHA256(dhKey, m1.Nonce[:], m1.EnrolleeALMAC[:], regNonce)
	dk := deriveKeys(kdk)

	expectedAuth := crypto.HMACSHA256(dk.AuthKey, m1.Raw, m2WithoutAuth)[:8]
	if !hmac.Equal(expectedAuth, authenticator) {
		return nil, fmt.Errorf("wsc: M2 authenticator mismatch")
	}

	bss, err := decryptSettings(dk, encrSettings)
	if err != nil {
		return nil, err
	}

	var role model.MultiAPRole
	var teardown bool
	if v, ok := findAttr(attrs, AttrVendorExtension); ok {
		if bitmap, matched, err := decodeMultiAPVendorExtension(v); err == nil && matched {
			role, teardown = roleFromBitmap(bitmap)
		}
	}

	return &M2Result{BSS: bss, Role: role, Teardown: teardown}, nil
}

func roleFromBitmap(bitmap uint8) (model.MultiAPRole, bool) {
	var role model.MultiAPRole
	if bitmap&MultiAPBitFronthaul != 0 {
		role |= model.MultiAPFronthaul
	}
	if bitmap&MultiAPBitBackhaulBSS != 0 {
		role |= model.MultiAPBackhaulBSS
	}
	if bitmap&MultiAPBitBackhaulSTA != 0 {
		role |= model.MultiAPBackhaulSTA
	}
	if bitmap&MultiAPBitBackhaulOnly != 0 {
		role |= model.MultiAPBackhaulOnly
	}
	return role, bitmap&MultiAPBitTeardown != 0
}

func decryptSettings(dk derivedKeys, encrSettings []byte) (model.BSSInfo, error) {
	iv := encrSettings[:16]
	ciphertext := encrSettings[16:]
	padded, err := crypto.AESCBCDecrypt(dk.KeyWrapKey, iv, ciphertext)
	if err != nil {
		return model.BSSInfo{}, fmt.Errorf("wsc: decrypt settings: %w", err)
	}
	plain, err := crypto.PKCS5Unpad(padded)
	if err != nil {
		return model.BSSInfo{}, fmt.Errorf("wsc: unpad settings: %w", err)
	}

	keyWrapAuth, ok := findAttr(mustDecodeAttrs(plain), AttrKeyWrapAuth)
	if !ok || len(keyWrapAuth) != 8 {
		return model.BSSInfo{}, fmt.Errorf("wsc: settings missing key-wrap HMAC")
	}
	withoutAuth := plain[:len(plain)-8-4]
	expected := crypto.HMACSHA256(dk.AuthKey, withoutAuth)[:8]
	if !hmac.Equal(expected, keyWrapAuth) {
		return model.BSSInfo{}, fmt.Errorf("wsc: settings key-wrap HMAC mismatch")
	}

	attrs := mustDecodeAttrs(withoutAuth)
	var bss model.BSSInfo
	if v, ok := findAttr(attrs, AttrSSID); ok {
		bss.SSID = string(v)
	}
	if v, ok := findAttr(attrs, AttrAuthType); ok && len(v) == 2 {
		bss.AuthMode = uint16(v[0])<<8 | uint16(v[1])
	}
	if v, ok := findAttr(attrs, AttrEncrType); ok && len(v) == 2 {
		bss.EncMode = uint16(v[0])<<8 | uint16(v[1])
	}
	if v, ok := findAttr(attrs, AttrNetworkKey); ok {
		bss.NetKey = string(v)
	}
	if v, ok := findAttr(attrs, AttrMACAddr); ok && len(v) == 6 {
		copy(bss.BSSID[:], v)
	}
	return bss, nil
}

// mustDecodeAttrs decodes a buffer this package itself just produced (or
// already validated); a decode failure here indicates an internal bug, so
// it returns nil rather than silently losing attributes. Callers check
// for the specific attribute they need and treat its absence as an error.
func mustDecodeAttrs(data []byte) []attr {
	attrs, err := decodeAttrs(data)
	if err != nil {
		return nil
	}
	return attrs
}
