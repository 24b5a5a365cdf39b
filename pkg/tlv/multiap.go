package tlv

import (
	"fmt"

	"github.com/krisarmstrong/hmeshd/pkg/errs"
	"github.com/krisarmstrong/hmeshd/pkg/wire"
)

func init() {
	register(TypeSupportedService, parseSupportedService)
	register(TypeSearchedService, parseSearchedService)
	register(TypeAPRadioIdentifier, parseAPRadioIdentifier)
	register(TypeAPOperationalBSS, parseAPOperationalBSS)
	register(TypeAPRadioBasicCapabilities, parseAPRadioBasicCapabilities)
	register(TypeBackhaulSTARadioCapabilities, parseBackhaulSTARadioCapabilities)
	register(TypeMultiAPProfile, parseMultiAPProfile)
}

// Multi-AP service identifiers.
const (
	ServiceMultiAPController uint8 = 0x00
	ServiceMultiAPAgent      uint8 = 0x01
)

// SupportedService announces the Multi-AP roles the sender implements.
type SupportedService struct {
	Services []uint8
}

func (t *SupportedService) Type() Type  { return TypeSupportedService }
func (t *SupportedService) Len() uint16 { return uint16(1 + len(t.Services)) }
func (t *SupportedService) Forge(w *wire.Writer) {
	w.U8(uint8(len(t.Services)))
	for _, s := range t.Services {
		w.U8(s)
	}
}

func parseSupportedService(body []byte) (TLV, error) {
	r := wire.NewReader(body)
	n, err := r.U8()
	if err != nil {
		return nil, errs.Malformed("tlv.SupportedService", err)
	}
	out := &SupportedService{}
	for i := 0; i < int(n); i++ {
		s, err := r.U8()
		if err != nil {
			return nil, errs.Malformed("tlv.SupportedService", err)
		}
		out.Services = append(out.Services, s)
	}
	return out, nil
}

// SearchedService is carried in APAutoconfigurationSearch to request that
// the responding registrar also run the Multi-AP controller role.
type SearchedService struct {
	Services []uint8
}

func (t *SearchedService) Type() Type  { return TypeSearchedService }
func (t *SearchedService) Len() uint16 { return uint16(1 + len(t.Services)) }
func (t *SearchedService) Forge(w *wire.Writer) {
	w.U8(uint8(len(t.Services)))
	for _, s := range t.Services {
		w.U8(s)
	}
}

func parseSearchedService(body []byte) (TLV, error) {
	r := wire.NewReader(body)
	n, err := r.U8()
	if err != nil {
		return nil, errs.Malformed("tlv.SearchedService", err)
	}
	out := &SearchedService{}
	for i := 0; i < int(n); i++ {
		s, err := r.U8()
		if err != nil {
			return nil, errs.Malformed("tlv.SearchedService", err)
		}
		out.Services = append(out.Services, s)
	}
	return out, nil
}

// APRadioIdentifier names the radio (by UID) a subsequent Multi-AP TLV in
// the same CMDU refers to.
type APRadioIdentifier struct {
	RadioUID MAC
}

func (t *APRadioIdentifier) Type() Type  { return TypeAPRadioIdentifier }
func (t *APRadioIdentifier) Len() uint16 { return 6 }
func (t *APRadioIdentifier) Forge(w *wire.Writer) { w.MAC(t.RadioUID) }

func parseAPRadioIdentifier(body []byte) (TLV, error) {
	mac, err := fixedMAC("tlv.APRadioIdentifier", body)
	if err != nil {
		return nil, err
	}
	return &APRadioIdentifier{RadioUID: mac}, nil
}

// Multi-AP BSS role flags.
const (
	BSSFlagFronthaul     uint8 = 1 << 5
	BSSFlagBackhaulBSS   uint8 = 1 << 4
	BSSFlagBackhaulSTA   uint8 = 1 << 3
	BSSFlagBackhaulOnly  uint8 = 1 << 2
)

// APOperationalBSSRadio is one radio's BSS list in an APOperationalBSS TLV.
type APOperationalBSSRadio struct {
	RadioUID MAC
	BSSes    []APOperationalBSSEntry
}

type APOperationalBSSEntry struct {
	BSSID MAC
	SSID  string
	Flags uint8
}

// APOperationalBSS reports the currently configured BSSes per radio.
type APOperationalBSS struct {
	Radios []APOperationalBSSRadio
}

func (t *APOperationalBSS) Type() Type { return TypeAPOperationalBSS }
func (t *APOperationalBSS) Len() uint16 {
	n := 1
	for _, r := range t.Radios {
		n += 6 + 1
		for _, b := range r.BSSes {
			n += 6 + 1 + len(b.SSID) + 1
		}
	}
	return uint16(n)
}
func (t *APOperationalBSS) Forge(w *wire.Writer) {
	w.U8(uint8(len(t.Radios)))
	for _, r := range t.Radios {
		w.MAC(r.RadioUID)
		w.U8(uint8(len(r.BSSes)))
		for _, b := range r.BSSes {
			w.MAC(b.BSSID)
			w.U8(uint8(len(b.SSID)))
			w.Raw([]byte(b.SSID))
			w.U8(b.Flags)
		}
	}
}

func parseAPOperationalBSS(body []byte) (TLV, error) {
	r := wire.NewReader(body)
	n, err := r.U8()
	if err != nil {
		return nil, errs.Malformed("tlv.APOperationalBSS", err)
	}
	out := &APOperationalBSS{}
	for i := 0; i < int(n); i++ {
		uid, err := r.MAC()
		if err != nil {
			return nil, errs.Malformed("tlv.APOperationalBSS", err)
		}
		m, err := r.U8()
		if err != nil {
			return nil, errs.Malformed("tlv.APOperationalBSS", err)
		}
		radio := APOperationalBSSRadio{RadioUID: MAC(uid)}
		for j := 0; j < int(m); j++ {
			bssid, err := r.MAC()
			if err != nil {
				return nil, errs.Malformed("tlv.APOperationalBSS", err)
			}
			ssidLen, err := r.U8()
			if err != nil {
				return nil, errs.Malformed("tlv.APOperationalBSS", err)
			}
			ssid, err := r.Raw(int(ssidLen))
			if err != nil {
				return nil, errs.Malformed("tlv.APOperationalBSS", err)
			}
			flags, err := r.U8()
			if err != nil {
				return nil, errs.Malformed("tlv.APOperationalBSS", err)
			}
			radio.BSSes = append(radio.BSSes, APOperationalBSSEntry{
				BSSID: MAC(bssid), SSID: string(ssid), Flags: flags,
			})
		}
		out.Radios = append(out.Radios, radio)
	}
	return out, nil
}

// APRadioBasicCapabilities describes one radio's band, max BSS count, and
// supported operating classes/channels.
type APRadioBasicCapabilities struct {
	RadioUID      MAC
	MaxBSS        uint8
	OperatingClasses []OperatingClass
}

type OperatingClass struct {
	Class          uint8
	MaxTxPowerDBm  int8
	NonOperable    []uint8
}

func (t *APRadioBasicCapabilities) Type() Type { return TypeAPRadioBasicCapabilities }
func (t *APRadioBasicCapabilities) Len() uint16 {
	n := 6 + 1 + 1
	for _, c := range t.OperatingClasses {
		n += 1 + 1 + 1 + len(c.NonOperable)
	}
	return uint16(n)
}
func (t *APRadioBasicCapabilities) Forge(w *wire.Writer) {
	w.MAC(t.RadioUID)
	w.U8(t.MaxBSS)
	w.U8(uint8(len(t.OperatingClasses)))
	for _, c := range t.OperatingClasses {
		w.U8(c.Class)
		w.U8(uint8(c.MaxTxPowerDBm))
		w.U8(uint8(len(c.NonOperable)))
		w.Raw(c.NonOperable)
	}
}

func parseAPRadioBasicCapabilities(body []byte) (TLV, error) {
	r := wire.NewReader(body)
	uid, err := r.MAC()
	if err != nil {
		return nil, errs.Malformed("tlv.APRadioBasicCapabilities", err)
	}
	maxBSS, err := r.U8()
	if err != nil {
		return nil, errs.Malformed("tlv.APRadioBasicCapabilities", err)
	}
	n, err := r.U8()
	if err != nil {
		return nil, errs.Malformed("tlv.APRadioBasicCapabilities", err)
	}
	out := &APRadioBasicCapabilities{RadioUID: MAC(uid), MaxBSS: maxBSS}
	for i := 0; i < int(n); i++ {
		class, err := r.U8()
		if err != nil {
			return nil, errs.Malformed("tlv.APRadioBasicCapabilities", err)
		}
		pwr, err := r.U8()
		if err != nil {
			return nil, errs.Malformed("tlv.APRadioBasicCapabilities", err)
		}
		m, err := r.U8()
		if err != nil {
			return nil, errs.Malformed("tlv.APRadioBasicCapabilities", err)
		}
		nonOp, err := r.Raw(int(m))
		if err != nil {
			return nil, errs.Malformed("tlv.APRadioBasicCapabilities", err)
		}
		out.OperatingClasses = append(out.OperatingClasses, OperatingClass{
			Class: class, MaxTxPowerDBm: int8(pwr), NonOperable: nonOp,
		})
	}
	return out, nil
}

// BackhaulSTARadioCapabilities reports whether a radio can run a backhaul
// STA and, if fixed, which MAC it would use.
type BackhaulSTARadioCapabilities struct {
	RadioUID     MAC
	MACIncluded  bool
	MAC          MAC
}

func (t *BackhaulSTARadioCapabilities) Type() Type { return TypeBackhaulSTARadioCapabilities }
func (t *BackhaulSTARadioCapabilities) Len() uint16 { return 6 + 1 + 6 }
func (t *BackhaulSTARadioCapabilities) Forge(w *wire.Writer) {
	w.MAC(t.RadioUID)
	if t.MACIncluded {
		w.U8(0x80)
	} else {
		w.U8(0x00)
	}
	w.MAC(t.MAC)
}

func parseBackhaulSTARadioCapabilities(body []byte) (TLV, error) {
	if len(body) != 13 {
		return nil, errs.Malformed("tlv.BackhaulSTARadioCapabilities", fmt.Errorf("expected 13 bytes, got %d", len(body)))
	}
	r := wire.NewReader(body)
	uid, _ := r.MAC()
	flags, _ := r.U8()
	mac, _ := r.MAC()
	return &BackhaulSTARadioCapabilities{
		RadioUID: MAC(uid), MACIncluded: flags&0x80 != 0, MAC: MAC(mac),
	}, nil
}

// MultiAPProfile names the Multi-AP protocol profile level the sender
// implements (1 = R1, 2 = R2, 3 = R3).
type MultiAPProfile struct {
	Profile uint8
}

func (t *MultiAPProfile) Type() Type  { return TypeMultiAPProfile }
func (t *MultiAPProfile) Len() uint16 { return 1 }
func (t *MultiAPProfile) Forge(w *wire.Writer) { w.U8(t.Profile) }

func parseMultiAPProfile(body []byte) (TLV, error) {
	if len(body) != 1 {
		return nil, errs.Malformed("tlv.MultiAPProfile", fmt.Errorf("expected 1 byte, got %d", len(body)))
	}
	return &MultiAPProfile{Profile: body[0]}, nil
}
