package wsc

import (
	"encoding/binary"

	"github.com/krisarmstrong/hmeshd/platform/crypto"
)

// kdfPersonalizationString is the fixed label the WSC key derivation
// function hashes into every iteration.
const kdfPersonalizationString = "Wi-Fi Easy and Secure Key Derivation"

const (
	authKeyLen    = 32
	keyWrapKeyLen = 16
	emskLen       = 32
	derivedKeysLen = authKeyLen + keyWrapKeyLen + emskLen // 80
)

// derivedKeys holds the three keys the KDF splits out of the DHKey: the
// authenticator key (HMAC over M1||M2 and over the settings blob), the
// key-wrap key (AES-128-CBC key for the encrypted-settings attribute),
// and the EMSK (unused by this core but derived for completeness/parity
// with the reference derivation).
type derivedKeys struct {
	AuthKey    []byte
	KeyWrapKey []byte
	EMSK       []byte
}

// deriveKeys runs the WSC key derivation function over dhKey (the "kdk":
// HMAC-SHA-256 keyed by the SHA-256 digest of the Diffie-Hellman shared
// secret, over enrollee nonce || enrollee MAC || registrar nonce) and
// splits the 80-byte output into AuthKey, KeyWrapKey, and EMSK.
func deriveKeys(dhKey []byte) derivedKeys {
	out := wpsKDF(dhKey, kdfPersonalizationString, derivedKeysLen)
	return derivedKeys{
		AuthKey:    out[0:authKeyLen],
		KeyWrapKey: out[authKeyLen : authKeyLen+keyWrapKeyLen],
		EMSK:       out[authKeyLen+keyWrapKeyLen:],
	}
}

// wpsKDF is the WSC key derivation function: HMAC-SHA-256 in counter
// mode over (counter || label || key_bits), where key_bits is the
// requested output length in bits as a big-endian uint32.
func wpsKDF(key []byte, label string, outLen int) []byte {
	var keyBits [4]byte
	binary.BigEndian.PutUint32(keyBits[:], uint32(outLen*8))

	out := make([]byte, 0, outLen)
	iterations := (outLen + 31) / 32 // ceil(outLen / SHA256 size)
	for i := 1; i <= iterations; i++ {
		var counter [4]byte
		binary.BigEndian.PutUint32(counter[:], uint32(i))
		block := crypto.HMACSHA256(key, counter[:], []byte(label), keyBits[:])
		out = append(out, block...)
	}
	return out[:outLen]
}
