// Package crypto wraps the standard library's crypto primitives behind
// the platform trait surface the WSC core calls: secure random bytes,
// Diffie-Hellman keypair generation and shared-secret computation over
// the RFC 3526 1536-bit MODP group, HMAC-SHA-256, and AES-128-CBC.
//
// No third-party cryptography library appears anywhere in the example
// corpus; this package exists because the WSC exchange has no other home
// for these primitives, not because the standard library is a default
// choice here.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"math/big"
)

// RandomBytes fills and returns n cryptographically secure random bytes.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("crypto: read random bytes: %w", err)
	}
	return b, nil
}

// DHKeyPair is one party's Diffie-Hellman private/public key pair over
// the 1536-bit MODP group.
type DHKeyPair struct {
	Private *big.Int
	Public  *big.Int
}

// GenerateDHKeyPair produces a fresh private exponent and its
// corresponding public value g^x mod p over the RFC 3526 1536-bit group.
func GenerateDHKeyPair() (DHKeyPair, error) {
	privBytes, err := RandomBytes(192) // 1536 bits
	if err != nil {
		return DHKeyPair{}, err
	}
	priv := new(big.Int).SetBytes(privBytes)
	priv.Mod(priv, new(big.Int).Sub(dhGroup.p, big.NewInt(2)))
	priv.Add(priv, big.NewInt(2)) // keep private exponent in [2, p-2]
	pub := new(big.Int).Exp(dhGroup.g, priv, dhGroup.p)
	return DHKeyPair{Private: priv, Public: pub}, nil
}

// DHSharedSecret computes the shared secret peerPublic^ownPrivate mod p,
// returned as a fixed-width big-endian byte slice (zero-padded to the
// group's modulus size) so it can feed directly into the KDF.
func DHSharedSecret(ownPrivate, peerPublic *big.Int) []byte {
	shared := new(big.Int).Exp(peerPublic, ownPrivate, dhGroup.p)
	out := make([]byte, (dhGroup.p.BitLen()+7)/8)
	b := shared.Bytes()
	copy(out[len(out)-len(b):], b)
	return out
}

// DHPublicKeyBytes renders a public value as a fixed-width big-endian
// byte slice matching the group's modulus size, the wire form carried in
// the WSC public-key attribute.
func DHPublicKeyBytes(pub *big.Int) []byte {
	out := make([]byte, (dhGroup.p.BitLen()+7)/8)
	b := pub.Bytes()
	copy(out[len(out)-len(b):], b)
	return out
}

// HMACSHA256 computes HMAC-SHA-256 over the concatenation of parts using
// key, mirroring PLATFORM_HMAC_SHA256's multi-part "addr"/"len" argument
// list.
func HMACSHA256(key []byte, parts ...[]byte) []byte {
	mac := hmac.New(sha256.New, key)
	for _, p := range parts {
		mac.Write(p)
	}
	return mac.Sum(nil)
}

// SHA256 hashes data with SHA-256.
func SHA256(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// AESCBCEncrypt encrypts plaintext (which must already be a multiple of
// the AES block size; callers apply PKCS#5 padding first) under key and
// iv, AES-128-CBC, and returns the ciphertext in a new slice.
func AESCBCEncrypt(key, iv, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: new AES cipher: %w", err)
	}
	if len(plaintext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("crypto: plaintext length %d is not a multiple of the block size", len(plaintext))
	}
	out := make([]byte, len(plaintext))
	cbc := cipher.NewCBCEncrypter(block, iv)
	cbc.CryptBlocks(out, plaintext)
	return out, nil
}

// AESCBCDecrypt reverses AESCBCEncrypt. The caller is responsible for
// stripping PKCS#5 padding from the result.
func AESCBCDecrypt(key, iv, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: new AES cipher: %w", err)
	}
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("crypto: ciphertext length %d is not a multiple of the block size", len(ciphertext))
	}
	out := make([]byte, len(ciphertext))
	cbc := cipher.NewCBCDecrypter(block, iv)
	cbc.CryptBlocks(out, ciphertext)
	return out, nil
}

// PKCS5Pad pads data to a multiple of blockSize per PKCS#5: every added
// byte's value equals the number of bytes added.
func PKCS5Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - (len(data) % blockSize)
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

// PKCS5Unpad strips PKCS#5 padding, validating that the trailer is
// well-formed (non-zero, within range, and every padding byte matches).
func PKCS5Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("crypto: cannot unpad empty data")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > len(data) || padLen > aes.BlockSize {
		return nil, fmt.Errorf("crypto: invalid PKCS#5 padding length %d", padLen)
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, fmt.Errorf("crypto: malformed PKCS#5 padding")
		}
	}
	return data[:len(data)-padLen], nil
}
