package tlv

import (
	"fmt"

	"github.com/krisarmstrong/hmeshd/pkg/errs"
	"github.com/krisarmstrong/hmeshd/pkg/wire"
)

// TLV is implemented by every parsed TLV value. Len reports the body length
// (excluding the 3-byte type+length header) so that Len() always matches
// what Forge would emit for the same value — the round-trip invariant the
// test suite checks.
type TLV interface {
	Type() Type
	Len() uint16
	Forge(w *wire.Writer)
}

// Unknown wraps a TLV tag the codec does not recognize; its body is kept
// verbatim so forge(parse(x)) == x still holds for unknown-but-ignored TLVs.
type Unknown struct {
	Tag  Type
	Body []byte
}

func (u *Unknown) Type() Type    { return u.Tag }
func (u *Unknown) Len() uint16   { return uint16(len(u.Body)) }
func (u *Unknown) Forge(w *wire.Writer) { w.Raw(u.Body) }

type parseFunc func(body []byte) (TLV, error)

var registry = map[Type]parseFunc{}

func register(t Type, fn parseFunc) {
	registry[t] = fn
}

// Parse reads one TLV starting at data[0] (the type byte). It returns the
// decoded value and the number of bytes consumed (3 + body length), or a
// *errs.Error wrapping errs.KindMalformed on truncation/overrun.
func Parse(data []byte) (TLV, int, error) {
	r := wire.NewReader(data)
	tagByte, err := r.U8()
	if err != nil {
		return nil, 0, errs.Malformed("tlv.Parse", err)
	}
	length, err := r.U16()
	if err != nil {
		return nil, 0, errs.Malformed("tlv.Parse", err)
	}
	if r.Remaining() < int(length) {
		return nil, 0, errs.Malformed("tlv.Parse", fmt.Errorf("tlv %s: declared length %d exceeds remaining %d", Type(tagByte), length, r.Remaining()))
	}
	body, _ := r.Raw(int(length))
	tag := Type(tagByte)

	fn, ok := registry[tag]
	if !ok {
		// Unknown tag: skip the exact length, report "ignored" rather than
		// fail the whole CMDU.
		return &Unknown{Tag: tag, Body: body}, 3 + int(length), errs.Ignored("tlv.Parse", fmt.Errorf("unknown tlv tag 0x%02x", tagByte))
	}

	v, err := fn(body)
	if err != nil {
		return nil, 0, err
	}
	return v, 3 + int(length), nil
}

// Forge serializes v as a complete TLV (header + body) into w.
func Forge(w *wire.Writer, v TLV) {
	w.U8(uint8(v.Type()))
	w.U16(v.Len())
	v.Forge(w)
}

// ForgeAll serializes a TLV list followed by an End-of-message TLV.
func ForgeAll(w *wire.Writer, tlvs []TLV) {
	for _, v := range tlvs {
		Forge(w, v)
	}
	Forge(w, &EndOfMessage{})
}

// ParseAll parses a sequence of back-to-back TLVs from data, stopping at
// (and including) the first End-of-message TLV or at data's end. Ignored
// (unknown-tag) TLVs are dropped from the returned slice but do not abort
// parsing of the rest of the sequence.
func ParseAll(data []byte) ([]TLV, error) {
	var out []TLV
	off := 0
	for off < len(data) {
		v, n, err := Parse(data[off:])
		if err != nil {
			if kind, ok := errs.KindOf(err); ok && kind == errs.KindIgnored {
				off += n
				continue
			}
			return nil, err
		}
		off += n
		if v.Type() == TypeEndOfMessage {
			break
		}
		out = append(out, v)
	}
	return out, nil
}
