package wsc

import (
	"math/big"
	"testing"

	"github.com/krisarmstrong/hmeshd/pkg/model"
	"github.com/krisarmstrong/hmeshd/platform/crypto"
)

func testMAC(b byte) model.MAC {
	return model.MAC{0x00, 0x4f, 0x21, 0x03, 0xab, b}
}

func testDevice() DeviceInfo {
	return DeviceInfo{Manufacturer: "Acme", ModelName: "AP-3000", ModelNumber: "3000", SerialNumber: "SN123"}
}

func testBands() []model.Band {
	return []model.Band{model.Band5GHz}
}

// TestM1M2AuthenticationSucceeds runs a full enrollee/registrar exchange
// and checks the enrollee recovers the exact BSS credentials the
// registrar sent, the WSC authentication property from scenario C.
func TestM1M2AuthenticationSucceeds(t *testing.T) {
	enrolleeALMAC := testMAC(0x01)
	raw, keys, _, err := BuildM1(enrolleeALMAC, AuthWPA2PSK, EncrAES, testBands(), testDevice())
	if err != nil {
		t.Fatalf("BuildM1: %v", err)
	}

	m1, err := ParseM1(raw)
	if err != nil {
		t.Fatalf("ParseM1: %v", err)
	}
	if m1.EnrolleeALMAC != enrolleeALMAC {
		t.Fatalf("expected AL MAC %v in M1, got %v (Multi-AP variant requires AL MAC, not radio MAC)", enrolleeALMAC, m1.EnrolleeALMAC)
	}

	bss := model.BSSInfo{
		SSID:     "HomeMesh",
		BSSID:    testMAC(0x02),
		AuthMode: AuthWPA2PSK,
		EncMode:  EncrAES,
		NetKey:   "correct horse battery staple",
	}
	result, err := BuildM2(m1, bss, model.MultiAPFronthaul, false, testBands(), testDevice())
	if err != nil {
		t.Fatalf("BuildM2: %v", err)
	}

	m2Result, err := ValidateM2(m1, keys.Private, result.Bytes)
	if err != nil {
		t.Fatalf("ValidateM2: %v", err)
	}
	if m2Result.BSS.SSID != bss.SSID || m2Result.BSS.NetKey != bss.NetKey || m2Result.BSS.BSSID != bss.BSSID {
		t.Fatalf("recovered BSS info mismatch: got %+v want %+v", m2Result.BSS, bss)
	}
	if m2Result.Role&model.MultiAPFronthaul == 0 {
		t.Fatal("expected fronthaul role bit to survive the Multi-AP vendor sub-element round trip")
	}
	if m2Result.Teardown {
		t.Fatal("did not expect teardown on a normal M2")
	}
}

// TestM2TeardownSignaled checks the Multi-AP teardown bit is recovered
// from the vendor sub-element, scenario from spec property 5.
func TestM2TeardownSignaled(t *testing.T) {
	enrolleeALMAC := testMAC(0x03)
	raw, keys, _, err := BuildM1(enrolleeALMAC, AuthWPA2PSK, EncrAES, testBands(), testDevice())
	if err != nil {
		t.Fatalf("BuildM1: %v", err)
	}
	m1, err := ParseM1(raw)
	if err != nil {
		t.Fatalf("ParseM1: %v", err)
	}

	bss := model.BSSInfo{SSID: "Teardown", BSSID: testMAC(0x04), AuthMode: AuthWPA2PSK, EncMode: EncrAES, NetKey: "x"}
	result, err := BuildM2(m1, bss, model.MultiAPBackhaulBSS, true, testBands(), testDevice())
	if err != nil {
		t.Fatalf("BuildM2: %v", err)
	}

	m2Result, err := ValidateM2(m1, keys.Private, result.Bytes)
	if err != nil {
		t.Fatalf("ValidateM2: %v", err)
	}
	if !m2Result.Teardown {
		t.Fatal("expected teardown bit to be signaled")
	}
}

// TestValidateM2RejectsTamperedAuthenticator ensures a bit-flip in the
// final byte of M2 (the authenticator value) is caught.
func TestValidateM2RejectsTamperedAuthenticator(t *testing.T) {
	raw, keys, _, _ := BuildM1(testMAC(0x05), AuthWPA2PSK, EncrAES, testBands(), testDevice())
	m1, _ := ParseM1(raw)
	bss := model.BSSInfo{SSID: "X", BSSID: testMAC(0x06), AuthMode: AuthWPA2PSK, EncMode: EncrAES, NetKey: "y"}
	result, err := BuildM2(m1, bss, model.MultiAPFronthaul, false, testBands(), testDevice())
	if err != nil {
		t.Fatalf("BuildM2: %v", err)
	}

	tampered := append([]byte(nil), result.Bytes...)
	tampered[len(tampered)-1] ^= 0xff // flip a bit in the authenticator value

	if _, err := ValidateM2(m1, keys.Private, tampered); err == nil {
		t.Fatal("expected a tampered authenticator to be rejected")
	}
}

// TestParseM1RecoversRFBands checks the RF Bands attribute survives the
// encode/decode round trip with the bands BuildM1 was given.
func TestParseM1RecoversRFBands(t *testing.T) {
	raw, _, _, err := BuildM1(testMAC(0x20), AuthWPA2PSK, EncrAES, []model.Band{model.Band24GHz, model.Band5GHz}, testDevice())
	if err != nil {
		t.Fatalf("BuildM1: %v", err)
	}
	m1, err := ParseM1(raw)
	if err != nil {
		t.Fatalf("ParseM1: %v", err)
	}
	if len(m1.Bands) != 2 || m1.Bands[0] != model.Band24GHz || m1.Bands[1] != model.Band5GHz {
		t.Fatalf("Bands = %v, want [Band24GHz Band5GHz]", m1.Bands)
	}
}

// TestBuildM2AuthenticatorUsesKDK recomputes BuildM2's authenticator from
// scratch using the KDK formula (HMAC-SHA-256 of the DH key over enrollee
// nonce || enrollee MAC || registrar nonce, then the WPS KDF), rather than
// deriveKeys fed the raw DH key directly. If BuildM2 skipped the KDK step
// this independently computed authenticator would not match.
func TestBuildM2AuthenticatorUsesKDK(t *testing.T) {
	enrolleeALMAC := testMAC(0x21)
	raw, _, _, err := BuildM1(enrolleeALMAC, AuthWPA2PSK, EncrAES, testBands(), testDevice())
	if err != nil {
		t.Fatalf("BuildM1: %v", err)
	}
	m1, err := ParseM1(raw)
	if err != nil {
		t.Fatalf("ParseM1: %v", err)
	}
	bss := model.BSSInfo{SSID: "Mesh", BSSID: testMAC(0x22), AuthMode: AuthWPA2PSK, EncMode: EncrAES, NetKey: "z"}

	result, err := BuildM2(m1, bss, model.MultiAPFronthaul, false, testBands(), testDevice())
	if err != nil {
		t.Fatalf("BuildM2: %v", err)
	}

	attrs, err := decodeAttrs(result.Bytes)
	if err != nil {
		t.Fatalf("decodeAttrs: %v", err)
	}
	regNonce, ok := findAttr(attrs, AttrRegistrarNonce)
	if !ok {
		t.Fatal("M2 missing registrar nonce attribute")
	}
	authenticator, ok := findAttr(attrs, AttrAuthenticator)
	if !ok {
		t.Fatal("M2 missing authenticator attribute")
	}
	m2WithoutAuth := result.Bytes[:len(result.Bytes)-len(authenticator)-4]

	peerPub := new(big.Int).SetBytes(m1.PublicKey)
	shared := crypto.DHSharedSecret(result.Keys.Private, peerPub)
	dhKey := crypto.SHA256(shared)
	kdk := crypto.HMACSHA256(dhKey, m1.Nonce[:], m1.EnrolleeALMAC[:], regNonce)
	dk := deriveKeys(kdk)
	expected := crypto.HMACSHA256(dk.AuthKey, m1.Raw, m2WithoutAuth)[:8]

	if string(expected) != string(authenticator) {
		t.Fatal("M2 authenticator does not match one derived via the KDK formula (dhkey, then HMAC over enrollee nonce||MAC||registrar nonce, then the WPS KDF)")
	}
}

func TestEnrolleeStateMachineHappyPath(t *testing.T) {
	r := NewEnrolleeRadio(testMAC(0x10))
	if r.State() != StateIdle {
		t.Fatalf("expected initial state %q, got %q", StateIdle, r.State())
	}

	m1Bytes, err := r.BeginSearch(AuthWPA2PSK, EncrAES, []model.Band{model.Band24GHz}, DefaultDeviceInfo())
	if err != nil {
		t.Fatalf("BeginSearch: %v", err)
	}
	if r.State() != StateSearching {
		t.Fatalf("expected %q after BeginSearch, got %q", StateSearching, r.State())
	}

	if err := r.AwaitM2(); err != nil {
		t.Fatalf("AwaitM2: %v", err)
	}
	if r.State() != StateAwaitingM2 {
		t.Fatalf("expected %q after AwaitM2, got %q", StateAwaitingM2, r.State())
	}

	m1, err := ParseM1(m1Bytes)
	if err != nil {
		t.Fatalf("ParseM1: %v", err)
	}
	bss := model.BSSInfo{SSID: "Mesh", BSSID: testMAC(0x11), AuthMode: AuthWPA2PSK, EncMode: EncrAES, NetKey: "z"}
	m2, err := BuildM2(m1, bss, model.MultiAPFronthaul, false, testBands(), DefaultDeviceInfo())
	if err != nil {
		t.Fatalf("BuildM2: %v", err)
	}

	result, err := r.ReceiveM2(m2.Bytes)
	if err != nil {
		t.Fatalf("ReceiveM2: %v", err)
	}
	if result.BSS.SSID != bss.SSID {
		t.Fatalf("unexpected BSS in result: %+v", result.BSS)
	}
	if r.State() != StateConfigured {
		t.Fatalf("expected %q after successful ReceiveM2, got %q", StateConfigured, r.State())
	}
}

func TestEnrolleeStateMachineTimeoutResetsToIdle(t *testing.T) {
	r := NewEnrolleeRadio(testMAC(0x12))
	if _, err := r.BeginSearch(AuthWPA2PSK, EncrAES, []model.Band{model.Band24GHz}, DefaultDeviceInfo()); err != nil {
		t.Fatalf("BeginSearch: %v", err)
	}
	r.Timeout()
	if r.State() != StateIdle {
		t.Fatalf("expected timeout to reset to %q, got %q", StateIdle, r.State())
	}
	// A fresh BeginSearch must now succeed since the prior exchange was cleared.
	if _, err := r.BeginSearch(AuthWPA2PSK, EncrAES, []model.Band{model.Band24GHz}, DefaultDeviceInfo()); err != nil {
		t.Fatalf("BeginSearch after timeout: %v", err)
	}
}

func TestEnrolleeStateMachineRejectsOutOfOrderCalls(t *testing.T) {
	r := NewEnrolleeRadio(testMAC(0x13))
	if err := r.AwaitM2(); err == nil {
		t.Fatal("expected AwaitM2 to fail before BeginSearch")
	}
	if _, err := r.ReceiveM2(nil); err == nil {
		t.Fatal("expected ReceiveM2 to fail before AwaitM2")
	}
}
