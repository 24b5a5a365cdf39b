package wire

import (
	"bytes"
	"testing"
)

func TestReaderWriterRoundTrip(t *testing.T) {
	w := NewWriter(0)
	w.U8(0x01)
	w.U16(0x0203)
	w.U32(0x04050607)
	w.Raw([]byte{0xaa, 0xbb, 0xcc})
	w.MAC([6]byte{0, 1, 2, 3, 4, 5})

	r := NewReader(w.Bytes())
	u8, err := r.U8()
	if err != nil || u8 != 0x01 {
		t.Fatalf("U8 = %v, %v", u8, err)
	}
	u16, err := r.U16()
	if err != nil || u16 != 0x0203 {
		t.Fatalf("U16 = %v, %v", u16, err)
	}
	u32, err := r.U32()
	if err != nil || u32 != 0x04050607 {
		t.Fatalf("U32 = %v, %v", u32, err)
	}
	raw, err := r.Raw(3)
	if err != nil || !bytes.Equal(raw, []byte{0xaa, 0xbb, 0xcc}) {
		t.Fatalf("Raw = %v, %v", raw, err)
	}
	mac, err := r.MAC()
	if err != nil || mac != [6]byte{0, 1, 2, 3, 4, 5} {
		t.Fatalf("MAC = %v, %v", mac, err)
	}
	if r.Remaining() != 0 {
		t.Fatalf("expected 0 remaining, got %d", r.Remaining())
	}
}

func TestReaderUnderflowLeavesCursorUnchanged(t *testing.T) {
	r := NewReader([]byte{0x01})
	if _, err := r.U16(); err == nil {
		t.Fatal("expected underflow error")
	}
	if r.Offset() != 0 {
		t.Fatalf("cursor moved on failed read: offset=%d", r.Offset())
	}
	if r.Remaining() != 1 {
		t.Fatalf("remaining changed on failed read: %d", r.Remaining())
	}
}

func TestReaderRawUnderflow(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02})
	if _, err := r.Raw(5); err == nil {
		t.Fatal("expected underflow error")
	}
	if r.Offset() != 0 {
		t.Fatalf("cursor moved on failed raw read: offset=%d", r.Offset())
	}
}
