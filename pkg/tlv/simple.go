package tlv

import (
	"fmt"

	"github.com/krisarmstrong/hmeshd/pkg/errs"
	"github.com/krisarmstrong/hmeshd/pkg/wire"
)

func init() {
	register(TypeEndOfMessage, parseEndOfMessage)
	register(TypeALMACAddress, parseALMACAddress)
	register(TypeMACAddress, parseMACAddress)
	register(TypeSearchedRole, parseSearchedRole)
	register(TypeAutoconfigFreqBand, parseAutoconfigFreqBand)
	register(TypeSupportedRole, parseSupportedRole)
	register(TypeSupportedFreqBand, parseSupportedFreqBand)
	register(TypeLinkMetricResultCode, parseLinkMetricResultCode)
	register(Type1905ProfileVersion, parseProfileVersion)
	register(TypePowerOffInterface, parsePowerOffInterface)
	register(TypeControlURL, parseControlURL)
	register(TypeDeviceIdentification, parseDeviceIdentification)
	register(TypePushButtonEventNotification, parsePushButtonEventNotification)
	register(TypePushButtonJoinNotification, parsePushButtonJoinNotification)
	register(TypeVendorSpecific, parseVendorSpecific)
	register(TypeWSC, parseWSCPayload)
	register(TypeIPv4, parseIPv4)
	register(TypeIPv6, parseIPv6)
	register(TypeInterfacePowerChangeInfo, parseInterfacePowerChangeInfo)
	register(TypeInterfacePowerChangeStatus, parseInterfacePowerChangeStatus)
}

// EndOfMessage marks the end of a CMDU's TLV list. It carries no body.
type EndOfMessage struct{}

func (*EndOfMessage) Type() Type        { return TypeEndOfMessage }
func (*EndOfMessage) Len() uint16       { return 0 }
func (*EndOfMessage) Forge(*wire.Writer) {}

func parseEndOfMessage(body []byte) (TLV, error) {
	if len(body) != 0 {
		return nil, errs.Malformed("tlv.EndOfMessage", fmt.Errorf("expected empty body, got %d bytes", len(body)))
	}
	return &EndOfMessage{}, nil
}

// ALMACAddress carries the AL MAC address of the sending device.
type ALMACAddress struct {
	MAC MAC
}

func (*ALMACAddress) Type() Type  { return TypeALMACAddress }
func (*ALMACAddress) Len() uint16 { return 6 }
func (t *ALMACAddress) Forge(w *wire.Writer) { w.MAC(t.MAC) }

func parseALMACAddress(body []byte) (TLV, error) {
	mac, err := fixedMAC("tlv.ALMACAddress", body)
	if err != nil {
		return nil, err
	}
	return &ALMACAddress{MAC: mac}, nil
}

// MACAddress carries the MAC address of the interface a CMDU was sent on.
type MACAddress struct {
	MAC MAC
}

func (*MACAddress) Type() Type  { return TypeMACAddress }
func (*MACAddress) Len() uint16 { return 6 }
func (t *MACAddress) Forge(w *wire.Writer) { w.MAC(t.MAC) }

func parseMACAddress(body []byte) (TLV, error) {
	mac, err := fixedMAC("tlv.MACAddress", body)
	if err != nil {
		return nil, err
	}
	return &MACAddress{MAC: mac}, nil
}

func fixedMAC(op string, body []byte) (MAC, error) {
	var mac MAC
	if len(body) != 6 {
		return mac, errs.Malformed(op, fmt.Errorf("expected 6-byte body, got %d", len(body)))
	}
	copy(mac[:], body)
	return mac, nil
}

// SearchedRole is always Registrar in this implementation (the only role
// 1905.1 defines for the field).
type SearchedRole struct {
	Role uint8
}

const RoleRegistrar uint8 = 0x00

func (*SearchedRole) Type() Type  { return TypeSearchedRole }
func (*SearchedRole) Len() uint16 { return 1 }
func (t *SearchedRole) Forge(w *wire.Writer) { w.U8(t.Role) }

func parseSearchedRole(body []byte) (TLV, error) {
	if len(body) != 1 {
		return nil, errs.Malformed("tlv.SearchedRole", fmt.Errorf("expected 1 byte, got %d", len(body)))
	}
	return &SearchedRole{Role: body[0]}, nil
}

// Frequency band identifiers shared by AutoconfigFreqBand/SupportedFreqBand.
const (
	FreqBand24 uint8 = 0x00
	FreqBand5  uint8 = 0x01
	FreqBand60 uint8 = 0x02
)

// AutoconfigFreqBand is carried in a Search by the enrollee, naming the band
// it wants a registrar for.
type AutoconfigFreqBand struct {
	Band uint8
}

func (*AutoconfigFreqBand) Type() Type  { return TypeAutoconfigFreqBand }
func (*AutoconfigFreqBand) Len() uint16 { return 1 }
func (t *AutoconfigFreqBand) Forge(w *wire.Writer) { w.U8(t.Band) }

func parseAutoconfigFreqBand(body []byte) (TLV, error) {
	if len(body) != 1 {
		return nil, errs.Malformed("tlv.AutoconfigFreqBand", fmt.Errorf("expected 1 byte, got %d", len(body)))
	}
	return &AutoconfigFreqBand{Band: body[0]}, nil
}

// SupportedRole echoes SearchedRole in a registrar's Response.
type SupportedRole struct {
	Role uint8
}

func (*SupportedRole) Type() Type  { return TypeSupportedRole }
func (*SupportedRole) Len() uint16 { return 1 }
func (t *SupportedRole) Forge(w *wire.Writer) { w.U8(t.Role) }

func parseSupportedRole(body []byte) (TLV, error) {
	if len(body) != 1 {
		return nil, errs.Malformed("tlv.SupportedRole", fmt.Errorf("expected 1 byte, got %d", len(body)))
	}
	return &SupportedRole{Role: body[0]}, nil
}

// SupportedFreqBand names the band a registrar's Response is offered for.
type SupportedFreqBand struct {
	Band uint8
}

func (*SupportedFreqBand) Type() Type  { return TypeSupportedFreqBand }
func (*SupportedFreqBand) Len() uint16 { return 1 }
func (t *SupportedFreqBand) Forge(w *wire.Writer) { w.U8(t.Band) }

func parseSupportedFreqBand(body []byte) (TLV, error) {
	if len(body) != 1 {
		return nil, errs.Malformed("tlv.SupportedFreqBand", fmt.Errorf("expected 1 byte, got %d", len(body)))
	}
	return &SupportedFreqBand{Band: body[0]}, nil
}

// Link metric result codes.
const LinkMetricResultInvalidNeighbor uint8 = 0x00

// LinkMetricResultCode is returned instead of metric TLVs when a
// LinkMetricQuery names an AL MAC that is not a known neighbor.
type LinkMetricResultCode struct {
	Code uint8
}

func (*LinkMetricResultCode) Type() Type  { return TypeLinkMetricResultCode }
func (*LinkMetricResultCode) Len() uint16 { return 1 }
func (t *LinkMetricResultCode) Forge(w *wire.Writer) { w.U8(t.Code) }

func parseLinkMetricResultCode(body []byte) (TLV, error) {
	if len(body) != 1 {
		return nil, errs.Malformed("tlv.LinkMetricResultCode", fmt.Errorf("expected 1 byte, got %d", len(body)))
	}
	return &LinkMetricResultCode{Code: body[0]}, nil
}

// ProfileVersion names the 1905.1 profile the sender implements.
type ProfileVersion struct {
	Version uint8
}

const Profile1905_1 uint8 = 0x00
const Profile1905_1a uint8 = 0x01

func (*ProfileVersion) Type() Type  { return Type1905ProfileVersion }
func (*ProfileVersion) Len() uint16 { return 1 }
func (t *ProfileVersion) Forge(w *wire.Writer) { w.U8(t.Version) }

func parseProfileVersion(body []byte) (TLV, error) {
	if len(body) != 1 {
		return nil, errs.Malformed("tlv.ProfileVersion", fmt.Errorf("expected 1 byte, got %d", len(body)))
	}
	return &ProfileVersion{Version: body[0]}, nil
}

// PowerOffInterface lists interfaces the sender is about to power down.
type PowerOffInterface struct {
	Interfaces []PowerOffInterfaceEntry
}

type PowerOffInterfaceEntry struct {
	MAC       MAC
	MediaType MediaType
}

func (t *PowerOffInterface) Type() Type { return TypePowerOffInterface }
func (t *PowerOffInterface) Len() uint16 {
	return uint16(1 + 8*len(t.Interfaces))
}
func (t *PowerOffInterface) Forge(w *wire.Writer) {
	w.U8(uint8(len(t.Interfaces)))
	for _, e := range t.Interfaces {
		w.MAC(e.MAC)
		w.U16(uint16(e.MediaType))
	}
}

func parsePowerOffInterface(body []byte) (TLV, error) {
	r := wire.NewReader(body)
	n, err := r.U8()
	if err != nil {
		return nil, errs.Malformed("tlv.PowerOffInterface", err)
	}
	out := &PowerOffInterface{}
	for i := 0; i < int(n); i++ {
		mac, err := r.MAC()
		if err != nil {
			return nil, errs.Malformed("tlv.PowerOffInterface", err)
		}
		mt, err := r.U16()
		if err != nil {
			return nil, errs.Malformed("tlv.PowerOffInterface", err)
		}
		out.Interfaces = append(out.Interfaces, PowerOffInterfaceEntry{MAC: MAC(mac), MediaType: MediaType(mt)})
	}
	return out, nil
}

// Interface power states.
const (
	PowerStateOn   uint8 = 0x00
	PowerStateSave uint8 = 0x01
	PowerStateOff  uint8 = 0x02
)

// InterfacePowerChangeInfo requests a power-state change on named interfaces.
type InterfacePowerChangeInfo struct {
	Entries []PowerChangeInfoEntry
}

type PowerChangeInfoEntry struct {
	MAC         MAC
	RequestedState uint8
}

func (t *InterfacePowerChangeInfo) Type() Type { return TypeInterfacePowerChangeInfo }
func (t *InterfacePowerChangeInfo) Len() uint16 {
	return uint16(1 + 7*len(t.Entries))
}
func (t *InterfacePowerChangeInfo) Forge(w *wire.Writer) {
	w.U8(uint8(len(t.Entries)))
	for _, e := range t.Entries {
		w.MAC(e.MAC)
		w.U8(e.RequestedState)
	}
}

func parseInterfacePowerChangeInfo(body []byte) (TLV, error) {
	r := wire.NewReader(body)
	n, err := r.U8()
	if err != nil {
		return nil, errs.Malformed("tlv.InterfacePowerChangeInfo", err)
	}
	out := &InterfacePowerChangeInfo{}
	for i := 0; i < int(n); i++ {
		mac, err := r.MAC()
		if err != nil {
			return nil, errs.Malformed("tlv.InterfacePowerChangeInfo", err)
		}
		st, err := r.U8()
		if err != nil {
			return nil, errs.Malformed("tlv.InterfacePowerChangeInfo", err)
		}
		out.Entries = append(out.Entries, PowerChangeInfoEntry{MAC: MAC(mac), RequestedState: st})
	}
	return out, nil
}

// Power change result codes.
const (
	PowerChangeOK      uint8 = 0x00
	PowerChangeRejected uint8 = 0x01
)

// InterfacePowerChangeStatus answers an InterfacePowerChangeInfo request.
type InterfacePowerChangeStatus struct {
	Entries []PowerChangeStatusEntry
}

type PowerChangeStatusEntry struct {
	MAC    MAC
	Result uint8
}

func (t *InterfacePowerChangeStatus) Type() Type { return TypeInterfacePowerChangeStatus }
func (t *InterfacePowerChangeStatus) Len() uint16 {
	return uint16(1 + 7*len(t.Entries))
}
func (t *InterfacePowerChangeStatus) Forge(w *wire.Writer) {
	w.U8(uint8(len(t.Entries)))
	for _, e := range t.Entries {
		w.MAC(e.MAC)
		w.U8(e.Result)
	}
}

func parseInterfacePowerChangeStatus(body []byte) (TLV, error) {
	r := wire.NewReader(body)
	n, err := r.U8()
	if err != nil {
		return nil, errs.Malformed("tlv.InterfacePowerChangeStatus", err)
	}
	out := &InterfacePowerChangeStatus{}
	for i := 0; i < int(n); i++ {
		mac, err := r.MAC()
		if err != nil {
			return nil, errs.Malformed("tlv.InterfacePowerChangeStatus", err)
		}
		res, err := r.U8()
		if err != nil {
			return nil, errs.Malformed("tlv.InterfacePowerChangeStatus", err)
		}
		out.Entries = append(out.Entries, PowerChangeStatusEntry{MAC: MAC(mac), Result: res})
	}
	return out, nil
}

// ControlURL carries a management control URL, NUL-terminated on the wire.
type ControlURL struct {
	URL string
}

func (t *ControlURL) Type() Type  { return TypeControlURL }
func (t *ControlURL) Len() uint16 { return uint16(len(t.URL) + 1) }
func (t *ControlURL) Forge(w *wire.Writer) {
	w.Raw([]byte(t.URL))
	w.U8(0)
}

func parseControlURL(body []byte) (TLV, error) {
	if len(body) == 0 || body[len(body)-1] != 0 {
		return nil, errs.Malformed("tlv.ControlURL", fmt.Errorf("missing NUL terminator"))
	}
	return &ControlURL{URL: string(body[:len(body)-1])}, nil
}

// DeviceIdentification carries friendly name, manufacturer and model.
type DeviceIdentification struct {
	FriendlyName string // 64 bytes, NUL-padded on the wire
	ManufName    string // 64 bytes
	ModelName    string // 64 bytes
}

const deviceIDFieldLen = 64

func (t *DeviceIdentification) Type() Type  { return TypeDeviceIdentification }
func (t *DeviceIdentification) Len() uint16 { return deviceIDFieldLen * 3 }
func (t *DeviceIdentification) Forge(w *wire.Writer) {
	writePadded(w, t.FriendlyName, deviceIDFieldLen)
	writePadded(w, t.ManufName, deviceIDFieldLen)
	writePadded(w, t.ModelName, deviceIDFieldLen)
}

func writePadded(w *wire.Writer, s string, n int) {
	buf := make([]byte, n)
	copy(buf, s)
	w.Raw(buf)
}

func readPadded(r *wire.Reader, n int) (string, error) {
	raw, err := r.Raw(n)
	if err != nil {
		return "", err
	}
	end := len(raw)
	for end > 0 && raw[end-1] == 0 {
		end--
	}
	return string(raw[:end]), nil
}

func parseDeviceIdentification(body []byte) (TLV, error) {
	if len(body) != deviceIDFieldLen*3 {
		return nil, errs.Malformed("tlv.DeviceIdentification", fmt.Errorf("expected %d bytes, got %d", deviceIDFieldLen*3, len(body)))
	}
	r := wire.NewReader(body)
	friendly, _ := readPadded(r, deviceIDFieldLen)
	manuf, _ := readPadded(r, deviceIDFieldLen)
	model, _ := readPadded(r, deviceIDFieldLen)
	return &DeviceIdentification{FriendlyName: friendly, ManufName: manuf, ModelName: model}, nil
}

// PushButtonEventNotification announces a local push-button press and the
// media types it is offered on.
type PushButtonEventNotification struct {
	MediaTypes []MediaType
}

func (t *PushButtonEventNotification) Type() Type { return TypePushButtonEventNotification }
func (t *PushButtonEventNotification) Len() uint16 {
	return uint16(1 + 2*len(t.MediaTypes))
}
func (t *PushButtonEventNotification) Forge(w *wire.Writer) {
	w.U8(uint8(len(t.MediaTypes)))
	for _, m := range t.MediaTypes {
		w.U16(uint16(m))
	}
}

func parsePushButtonEventNotification(body []byte) (TLV, error) {
	r := wire.NewReader(body)
	n, err := r.U8()
	if err != nil {
		return nil, errs.Malformed("tlv.PushButtonEventNotification", err)
	}
	out := &PushButtonEventNotification{}
	for i := 0; i < int(n); i++ {
		mt, err := r.U16()
		if err != nil {
			return nil, errs.Malformed("tlv.PushButtonEventNotification", err)
		}
		out.MediaTypes = append(out.MediaTypes, MediaType(mt))
	}
	return out, nil
}

// PushButtonJoinNotification identifies the initiator of a completed
// push-button pairing.
type PushButtonJoinNotification struct {
	InitiatorAL    MAC
	MessageID      uint16
	InitiatorIface MAC
	NewIface       MAC
}

func (t *PushButtonJoinNotification) Type() Type  { return TypePushButtonJoinNotification }
func (t *PushButtonJoinNotification) Len() uint16 { return 6 + 2 + 6 + 6 }
func (t *PushButtonJoinNotification) Forge(w *wire.Writer) {
	w.MAC(t.InitiatorAL)
	w.U16(t.MessageID)
	w.MAC(t.InitiatorIface)
	w.MAC(t.NewIface)
}

func parsePushButtonJoinNotification(body []byte) (TLV, error) {
	if len(body) != 20 {
		return nil, errs.Malformed("tlv.PushButtonJoinNotification", fmt.Errorf("expected 20 bytes, got %d", len(body)))
	}
	r := wire.NewReader(body)
	al, _ := r.MAC()
	mid, _ := r.U16()
	initIface, _ := r.MAC()
	newIface, _ := r.MAC()
	return &PushButtonJoinNotification{
		InitiatorAL:    MAC(al),
		MessageID:      mid,
		InitiatorIface: MAC(initIface),
		NewIface:       MAC(newIface),
	}, nil
}

// VendorSpecific carries an opaque vendor payload keyed by a 3-byte OUI.
type VendorSpecific struct {
	OUI     [3]byte
	Payload []byte
}

func (t *VendorSpecific) Type() Type  { return TypeVendorSpecific }
func (t *VendorSpecific) Len() uint16 { return uint16(3 + len(t.Payload)) }
func (t *VendorSpecific) Forge(w *wire.Writer) {
	w.Raw(t.OUI[:])
	w.Raw(t.Payload)
}

func parseVendorSpecific(body []byte) (TLV, error) {
	if len(body) < 3 {
		return nil, errs.Malformed("tlv.VendorSpecific", fmt.Errorf("body too short for OUI: %d bytes", len(body)))
	}
	v := &VendorSpecific{Payload: append([]byte(nil), body[3:]...)}
	copy(v.OUI[:], body[:3])
	return v, nil
}

// WSC carries an opaque WSC (M1/M2) attribute stream; pkg/wsc parses it
// further once the CMDU layer has handed it over.
type WSC struct {
	Payload []byte
}

func (t *WSC) Type() Type  { return TypeWSC }
func (t *WSC) Len() uint16 { return uint16(len(t.Payload)) }
func (t *WSC) Forge(w *wire.Writer) { w.Raw(t.Payload) }

func parseWSCPayload(body []byte) (TLV, error) {
	return &WSC{Payload: append([]byte(nil), body...)}, nil
}

// IPv4AddressType tags how an address was assigned.
const (
	IPv4TypeUnknown uint8 = 0x00
	IPv4TypeDHCP    uint8 = 0x01
	IPv4TypeStatic  uint8 = 0x02
	IPv4TypeAutoIP  uint8 = 0x03
)

// IPv4 lists IPv4 addresses configured on the sender's interfaces.
type IPv4 struct {
	Interfaces []IPv4Interface
}

type IPv4Interface struct {
	MAC       MAC
	Addresses []IPv4Address
}

type IPv4Address struct {
	AddrType  uint8
	Address   [4]byte
	DHCPServer [4]byte
}

func (t *IPv4) Type() Type { return TypeIPv4 }
func (t *IPv4) Len() uint16 {
	n := 1
	for _, iface := range t.Interfaces {
		n += 6 + 1 + len(iface.Addresses)*9
	}
	return uint16(n)
}
func (t *IPv4) Forge(w *wire.Writer) {
	w.U8(uint8(len(t.Interfaces)))
	for _, iface := range t.Interfaces {
		w.MAC(iface.MAC)
		w.U8(uint8(len(iface.Addresses)))
		for _, a := range iface.Addresses {
			w.U8(a.AddrType)
			w.Raw(a.Address[:])
			w.Raw(a.DHCPServer[:])
		}
	}
}

func parseIPv4(body []byte) (TLV, error) {
	r := wire.NewReader(body)
	n, err := r.U8()
	if err != nil {
		return nil, errs.Malformed("tlv.IPv4", err)
	}
	out := &IPv4{}
	for i := 0; i < int(n); i++ {
		mac, err := r.MAC()
		if err != nil {
			return nil, errs.Malformed("tlv.IPv4", err)
		}
		m, err := r.U8()
		if err != nil {
			return nil, errs.Malformed("tlv.IPv4", err)
		}
		iface := IPv4Interface{MAC: MAC(mac)}
		for j := 0; j < int(m); j++ {
			at, err := r.U8()
			if err != nil {
				return nil, errs.Malformed("tlv.IPv4", err)
			}
			addr, err := r.Raw(4)
			if err != nil {
				return nil, errs.Malformed("tlv.IPv4", err)
			}
			dhcp, err := r.Raw(4)
			if err != nil {
				return nil, errs.Malformed("tlv.IPv4", err)
			}
			var a IPv4Address
			a.AddrType = at
			copy(a.Address[:], addr)
			copy(a.DHCPServer[:], dhcp)
			iface.Addresses = append(iface.Addresses, a)
		}
		out.Interfaces = append(out.Interfaces, iface)
	}
	return out, nil
}

// IPv6AddressType tags how an address was assigned.
const (
	IPv6TypeUnknown uint8 = 0x00
	IPv6TypeDHCP    uint8 = 0x01
	IPv6TypeStatic  uint8 = 0x02
	IPv6TypeSLAAC   uint8 = 0x03
)

// IPv6 lists IPv6 addresses configured on the sender's interfaces.
type IPv6 struct {
	Interfaces []IPv6Interface
}

type IPv6Interface struct {
	MAC            MAC
	LinkLocal      [16]byte
	Addresses      []IPv6Address
}

type IPv6Address struct {
	AddrType uint8
	Address  [16]byte
	Origin   [16]byte
}

func (t *IPv6) Type() Type { return TypeIPv6 }
func (t *IPv6) Len() uint16 {
	n := 1
	for _, iface := range t.Interfaces {
		n += 6 + 16 + 1 + len(iface.Addresses)*33
	}
	return uint16(n)
}
func (t *IPv6) Forge(w *wire.Writer) {
	w.U8(uint8(len(t.Interfaces)))
	for _, iface := range t.Interfaces {
		w.MAC(iface.MAC)
		w.Raw(iface.LinkLocal[:])
		w.U8(uint8(len(iface.Addresses)))
		for _, a := range iface.Addresses {
			w.U8(a.AddrType)
			w.Raw(a.Address[:])
			w.Raw(a.Origin[:])
		}
	}
}

func parseIPv6(body []byte) (TLV, error) {
	r := wire.NewReader(body)
	n, err := r.U8()
	if err != nil {
		return nil, errs.Malformed("tlv.IPv6", err)
	}
	out := &IPv6{}
	for i := 0; i < int(n); i++ {
		mac, err := r.MAC()
		if err != nil {
			return nil, errs.Malformed("tlv.IPv6", err)
		}
		ll, err := r.Raw(16)
		if err != nil {
			return nil, errs.Malformed("tlv.IPv6", err)
		}
		m, err := r.U8()
		if err != nil {
			return nil, errs.Malformed("tlv.IPv6", err)
		}
		iface := IPv6Interface{MAC: MAC(mac)}
		copy(iface.LinkLocal[:], ll)
		for j := 0; j < int(m); j++ {
			at, err := r.U8()
			if err != nil {
				return nil, errs.Malformed("tlv.IPv6", err)
			}
			addr, err := r.Raw(16)
			if err != nil {
				return nil, errs.Malformed("tlv.IPv6", err)
			}
			origin, err := r.Raw(16)
			if err != nil {
				return nil, errs.Malformed("tlv.IPv6", err)
			}
			var a IPv6Address
			a.AddrType = at
			copy(a.Address[:], addr)
			copy(a.Origin[:], origin)
			iface.Addresses = append(iface.Addresses, a)
		}
		out.Interfaces = append(out.Interfaces, iface)
	}
	return out, nil
}
