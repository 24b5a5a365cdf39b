package tlv

import (
	"testing"

	"github.com/krisarmstrong/hmeshd/pkg/wire"
)

// FuzzALMACAddressRoundTrip generates random 6-byte MACs and checks that
// forge(parse(x)) == x holds, the property-based variant of the TLV
// round-trip test required alongside the fixed-vector cases.
func FuzzALMACAddressRoundTrip(f *testing.F) {
	f.Add([]byte{0x00, 0x4f, 0x21, 0x03, 0xab, 0x0c})
	f.Add([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff})
	f.Add([]byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00})

	f.Fuzz(func(t *testing.T, raw []byte) {
		if len(raw) != 6 {
			return
		}
		var m MAC
		copy(m[:], raw)
		roundTrip(t, &ALMACAddress{MAC: m})
	})
}

// FuzzControlURLRoundTrip fuzzes the variable-length, NUL-terminated
// ControlURL TLV body.
func FuzzControlURLRoundTrip(f *testing.F) {
	f.Add("http://192.168.1.1/al")
	f.Add("")
	f.Add("https://[fe80::1]:8888/management")

	f.Fuzz(func(t *testing.T, url string) {
		defer func() {
			if r := recover(); r != nil {
				t.Errorf("ControlURL round trip panicked on %q: %v", url, r)
			}
		}()
		if containsNUL(url) {
			return // a NUL inside the URL would be ambiguous with the terminator
		}
		roundTrip(t, &ControlURL{URL: url})
	})
}

func containsNUL(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == 0 {
			return true
		}
	}
	return false
}

// FuzzParseDoesNotPanic feeds arbitrary bytes through the top-level Parse
// dispatcher: malformed input must produce an error, never a panic.
func FuzzParseDoesNotPanic(f *testing.F) {
	w := wire.NewWriter(0)
	Forge(w, &ALMACAddress{MAC: MAC{1, 2, 3, 4, 5, 6}})
	f.Add(w.Bytes())
	f.Add([]byte{})
	f.Add([]byte{0x11, 0xff, 0xff})
	f.Add([]byte{0x0B, 0x00, 0x01, 0xaa})

	f.Fuzz(func(t *testing.T, data []byte) {
		defer func() {
			if r := recover(); r != nil {
				t.Errorf("Parse panicked on % x: %v", data, r)
			}
		}()
		_, _, _ = Parse(data)
	})
}
