package model

import "testing"

func TestVendorRegistryDispatch(t *testing.T) {
	r := NewVendorRegistry()
	oui := [3]byte{0x00, 0x37, 0x2a}
	var gotSrc MAC
	var gotPayload []byte
	r.Register(oui, func(src MAC, payload []byte) error {
		gotSrc = src
		gotPayload = payload
		return nil
	})

	src := testMAC(0x05)
	payload := []byte{0xde, 0xad}
	handled, err := r.Dispatch(oui, src, payload)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !handled {
		t.Fatal("expected the registered OUI to be handled")
	}
	if gotSrc != src {
		t.Fatalf("unexpected src passed to handler: %v", gotSrc)
	}
	if string(gotPayload) != string(payload) {
		t.Fatalf("unexpected payload passed to handler: % x", gotPayload)
	}
}

func TestVendorRegistryUnregisteredOUIIsNotHandled(t *testing.T) {
	r := NewVendorRegistry()
	handled, err := r.Dispatch([3]byte{0xff, 0xff, 0xff}, testMAC(0x01), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if handled {
		t.Fatal("expected an unregistered OUI to report unhandled, not an error")
	}
}
