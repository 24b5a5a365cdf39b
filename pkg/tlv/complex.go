package tlv

import (
	"fmt"

	"github.com/krisarmstrong/hmeshd/pkg/errs"
	"github.com/krisarmstrong/hmeshd/pkg/wire"
)

func init() {
	register(TypeDeviceInformation, parseDeviceInformation)
	register(TypeDeviceBridgingCapability, parseDeviceBridgingCapability)
	register(TypeNon1905NeighborDeviceList, parseNon1905NeighborDeviceList)
	register(Type1905NeighborDeviceList, parse1905NeighborDeviceList)
	register(TypeLinkMetricQuery, parseLinkMetricQuery)
	register(TypeTransmitterLinkMetric, parseTransmitterLinkMetric)
	register(TypeReceiverLinkMetric, parseReceiverLinkMetric)
	register(TypeGenericPhyDeviceInfo, parseGenericPhyDeviceInfo)
	register(TypeGenericPhyEventNotification, parseGenericPhyEventNotification)
	register(TypeL2NeighborDevice, parseL2NeighborDevice)
}

// DeviceInformationEntry describes one local interface for the
// DeviceInformation TLV.
type DeviceInformationEntry struct {
	MAC       MAC
	MediaType MediaType
	// SpecificInfo is present only for MediaGenericPhy interfaces: a
	// length-prefixed OUI + variant + URL blob, opaque to this codec.
	SpecificInfo []byte
}

// DeviceInformation carries the sending AL's MAC and its interface list.
type DeviceInformation struct {
	ALMAC      MAC
	Interfaces []DeviceInformationEntry
}

func (t *DeviceInformation) Type() Type { return TypeDeviceInformation }
func (t *DeviceInformation) Len() uint16 {
	n := 6 + 1
	for _, e := range t.Interfaces {
		n += 6 + 2 + 1 + len(e.SpecificInfo)
	}
	return uint16(n)
}
func (t *DeviceInformation) Forge(w *wire.Writer) {
	w.MAC(t.ALMAC)
	w.U8(uint8(len(t.Interfaces)))
	for _, e := range t.Interfaces {
		w.MAC(e.MAC)
		w.U16(uint16(e.MediaType))
		w.U8(uint8(len(e.SpecificInfo)))
		w.Raw(e.SpecificInfo)
	}
}

func parseDeviceInformation(body []byte) (TLV, error) {
	r := wire.NewReader(body)
	almac, err := r.MAC()
	if err != nil {
		return nil, errs.Malformed("tlv.DeviceInformation", err)
	}
	n, err := r.U8()
	if err != nil {
		return nil, errs.Malformed("tlv.DeviceInformation", err)
	}
	out := &DeviceInformation{ALMAC: MAC(almac)}
	for i := 0; i < int(n); i++ {
		mac, err := r.MAC()
		if err != nil {
			return nil, errs.Malformed("tlv.DeviceInformation", err)
		}
		mt, err := r.U16()
		if err != nil {
			return nil, errs.Malformed("tlv.DeviceInformation", err)
		}
		infoLen, err := r.U8()
		if err != nil {
			return nil, errs.Malformed("tlv.DeviceInformation", err)
		}
		info, err := r.Raw(int(infoLen))
		if err != nil {
			return nil, errs.Malformed("tlv.DeviceInformation", err)
		}
		out.Interfaces = append(out.Interfaces, DeviceInformationEntry{
			MAC: MAC(mac), MediaType: MediaType(mt), SpecificInfo: info,
		})
	}
	return out, nil
}

// DeviceBridgingCapability lists the sets of local interfaces that are
// bridged together.
type DeviceBridgingCapability struct {
	Groups [][]MAC
}

func (t *DeviceBridgingCapability) Type() Type { return TypeDeviceBridgingCapability }
func (t *DeviceBridgingCapability) Len() uint16 {
	n := 1
	for _, g := range t.Groups {
		n += 1 + 6*len(g)
	}
	return uint16(n)
}
func (t *DeviceBridgingCapability) Forge(w *wire.Writer) {
	w.U8(uint8(len(t.Groups)))
	for _, g := range t.Groups {
		w.U8(uint8(len(g)))
		for _, mac := range g {
			w.MAC(mac)
		}
	}
}

func parseDeviceBridgingCapability(body []byte) (TLV, error) {
	r := wire.NewReader(body)
	n, err := r.U8()
	if err != nil {
		return nil, errs.Malformed("tlv.DeviceBridgingCapability", err)
	}
	out := &DeviceBridgingCapability{}
	for i := 0; i < int(n); i++ {
		m, err := r.U8()
		if err != nil {
			return nil, errs.Malformed("tlv.DeviceBridgingCapability", err)
		}
		var group []MAC
		for j := 0; j < int(m); j++ {
			mac, err := r.MAC()
			if err != nil {
				return nil, errs.Malformed("tlv.DeviceBridgingCapability", err)
			}
			group = append(group, MAC(mac))
		}
		out.Groups = append(out.Groups, group)
	}
	return out, nil
}

// Non1905NeighborDeviceList lists MACs seen on an interface that do not
// speak 1905 (no CMDU response to discovery).
type Non1905NeighborDeviceList struct {
	LocalMAC  MAC
	Neighbors []MAC
}

func (t *Non1905NeighborDeviceList) Type() Type { return TypeNon1905NeighborDeviceList }
func (t *Non1905NeighborDeviceList) Len() uint16 {
	return uint16(6 + 6*len(t.Neighbors))
}
func (t *Non1905NeighborDeviceList) Forge(w *wire.Writer) {
	w.MAC(t.LocalMAC)
	for _, n := range t.Neighbors {
		w.MAC(n)
	}
}

func parseNon1905NeighborDeviceList(body []byte) (TLV, error) {
	if len(body) < 6 || (len(body)-6)%6 != 0 {
		return nil, errs.Malformed("tlv.Non1905NeighborDeviceList", fmt.Errorf("malformed body length %d", len(body)))
	}
	r := wire.NewReader(body)
	local, _ := r.MAC()
	out := &Non1905NeighborDeviceList{LocalMAC: MAC(local)}
	for r.Remaining() > 0 {
		mac, _ := r.MAC()
		out.Neighbors = append(out.Neighbors, MAC(mac))
	}
	return out, nil
}

// NeighborEntry is one neighbor in a 1905NeighborDeviceList TLV.
type NeighborEntry struct {
	ALMAC     MAC
	IsBridged bool
}

// Type1905NeighborDeviceList lists 1905 AL neighbors discovered on one
// local interface.
type NeighborDeviceList struct {
	LocalMAC  MAC
	Neighbors []NeighborEntry
}

func (t *NeighborDeviceList) Type() Type { return Type1905NeighborDeviceList }
func (t *NeighborDeviceList) Len() uint16 {
	return uint16(6 + 7*len(t.Neighbors))
}
func (t *NeighborDeviceList) Forge(w *wire.Writer) {
	w.MAC(t.LocalMAC)
	for _, n := range t.Neighbors {
		w.MAC(n.ALMAC)
		if n.IsBridged {
			w.U8(0x80)
		} else {
			w.U8(0x00)
		}
	}
}

func parse1905NeighborDeviceList(body []byte) (TLV, error) {
	if len(body) < 6 || (len(body)-6)%7 != 0 {
		return nil, errs.Malformed("tlv.1905NeighborDeviceList", fmt.Errorf("malformed body length %d", len(body)))
	}
	r := wire.NewReader(body)
	local, _ := r.MAC()
	out := &NeighborDeviceList{LocalMAC: MAC(local)}
	for r.Remaining() > 0 {
		mac, _ := r.MAC()
		flags, _ := r.U8()
		out.Neighbors = append(out.Neighbors, NeighborEntry{ALMAC: MAC(mac), IsBridged: flags&0x80 != 0})
	}
	return out, nil
}

// Link metric query scope/type.
const (
	LinkMetricScopeAllNeighbors   uint8 = 0x00
	LinkMetricScopeSpecificNeighbor uint8 = 0x01

	LinkMetricTypeTx   uint8 = 0x00
	LinkMetricTypeRx   uint8 = 0x01
	LinkMetricTypeBoth uint8 = 0x02
)

// LinkMetricQuery requests transmitter and/or receiver metrics for all
// neighbors or a specific one.
type LinkMetricQuery struct {
	Scope           uint8
	NeighborALMAC   MAC // only meaningful if Scope == LinkMetricScopeSpecificNeighbor
	MetricType      uint8
}

func (t *LinkMetricQuery) Type() Type { return TypeLinkMetricQuery }
func (t *LinkMetricQuery) Len() uint16 {
	if t.Scope == LinkMetricScopeSpecificNeighbor {
		return 1 + 6 + 1
	}
	return 1 + 1
}
func (t *LinkMetricQuery) Forge(w *wire.Writer) {
	w.U8(t.Scope)
	if t.Scope == LinkMetricScopeSpecificNeighbor {
		w.MAC(t.NeighborALMAC)
	}
	w.U8(t.MetricType)
}

func parseLinkMetricQuery(body []byte) (TLV, error) {
	r := wire.NewReader(body)
	scope, err := r.U8()
	if err != nil {
		return nil, errs.Malformed("tlv.LinkMetricQuery", err)
	}
	out := &LinkMetricQuery{Scope: scope}
	if scope == LinkMetricScopeSpecificNeighbor {
		mac, err := r.MAC()
		if err != nil {
			return nil, errs.Malformed("tlv.LinkMetricQuery", err)
		}
		out.NeighborALMAC = MAC(mac)
	}
	mt, err := r.U8()
	if err != nil {
		return nil, errs.Malformed("tlv.LinkMetricQuery", err)
	}
	out.MetricType = mt
	return out, nil
}

// TxLinkMetricEntry is one per-interface-pair record of the transmitter
// link metric TLV.
type TxLinkMetricEntry struct {
	LocalMAC      MAC
	NeighborMAC   MAC
	MediaType     MediaType
	Bridge        bool
	PacketErrors  uint32
	PacketsSent   uint32
	MACThroughput uint16 // Mb/s
	LinkAvailability uint16 // percent
	PHYRate       uint16 // Mb/s
}

// TransmitterLinkMetric answers the tx half of a LinkMetricQuery.
type TransmitterLinkMetric struct {
	LocalALMAC    MAC
	NeighborALMAC MAC
	Entries       []TxLinkMetricEntry
}

func (t *TransmitterLinkMetric) Type() Type { return TypeTransmitterLinkMetric }
func (t *TransmitterLinkMetric) Len() uint16 {
	return uint16(12 + 29*len(t.Entries))
}
func (t *TransmitterLinkMetric) Forge(w *wire.Writer) {
	w.MAC(t.LocalALMAC)
	w.MAC(t.NeighborALMAC)
	for _, e := range t.Entries {
		w.MAC(e.LocalMAC)
		w.MAC(e.NeighborMAC)
		w.U16(uint16(e.MediaType))
		if e.Bridge {
			w.U8(1)
		} else {
			w.U8(0)
		}
		w.U32(e.PacketErrors)
		w.U32(e.PacketsSent)
		w.U16(e.MACThroughput)
		w.U16(e.LinkAvailability)
		w.U16(e.PHYRate)
	}
}

func parseTransmitterLinkMetric(body []byte) (TLV, error) {
	if len(body) < 12 || (len(body)-12)%29 != 0 {
		return nil, errs.Malformed("tlv.TransmitterLinkMetric", fmt.Errorf("malformed body length %d", len(body)))
	}
	r := wire.NewReader(body)
	local, _ := r.MAC()
	neigh, _ := r.MAC()
	out := &TransmitterLinkMetric{LocalALMAC: MAC(local), NeighborALMAC: MAC(neigh)}
	for r.Remaining() > 0 {
		e, err := parseTxEntry(r)
		if err != nil {
			return nil, err
		}
		out.Entries = append(out.Entries, e)
	}
	return out, nil
}

func parseTxEntry(r *wire.Reader) (TxLinkMetricEntry, error) {
	var e TxLinkMetricEntry
	localMAC, err := r.MAC()
	if err != nil {
		return e, errs.Malformed("tlv.TransmitterLinkMetric", err)
	}
	neighMAC, err := r.MAC()
	if err != nil {
		return e, errs.Malformed("tlv.TransmitterLinkMetric", err)
	}
	mt, err := r.U16()
	if err != nil {
		return e, errs.Malformed("tlv.TransmitterLinkMetric", err)
	}
	bridge, err := r.U8()
	if err != nil {
		return e, errs.Malformed("tlv.TransmitterLinkMetric", err)
	}
	errCount, err := r.U32()
	if err != nil {
		return e, errs.Malformed("tlv.TransmitterLinkMetric", err)
	}
	sent, err := r.U32()
	if err != nil {
		return e, errs.Malformed("tlv.TransmitterLinkMetric", err)
	}
	throughput, err := r.U16()
	if err != nil {
		return e, errs.Malformed("tlv.TransmitterLinkMetric", err)
	}
	avail, err := r.U16()
	if err != nil {
		return e, errs.Malformed("tlv.TransmitterLinkMetric", err)
	}
	phy, err := r.U16()
	if err != nil {
		return e, errs.Malformed("tlv.TransmitterLinkMetric", err)
	}
	e.LocalMAC = MAC(localMAC)
	e.NeighborMAC = MAC(neighMAC)
	e.MediaType = MediaType(mt)
	e.Bridge = bridge != 0
	e.PacketErrors = errCount
	e.PacketsSent = sent
	e.MACThroughput = throughput
	e.LinkAvailability = avail
	e.PHYRate = phy
	return e, nil
}

// RxLinkMetricEntry is one neighbor's receive-side metric record.
type RxLinkMetricEntry struct {
	LocalMAC     MAC
	NeighborMAC  MAC
	MediaType    MediaType
	PacketErrors uint32
	PacketsReceived uint32
	RSSI         uint8
}

// ReceiverLinkMetric answers the rx half of a LinkMetricQuery.
type ReceiverLinkMetric struct {
	LocalALMAC    MAC
	NeighborALMAC MAC
	Entries       []RxLinkMetricEntry
}

func (t *ReceiverLinkMetric) Type() Type { return TypeReceiverLinkMetric }
func (t *ReceiverLinkMetric) Len() uint16 {
	return uint16(12 + 23*len(t.Entries))
}
func (t *ReceiverLinkMetric) Forge(w *wire.Writer) {
	w.MAC(t.LocalALMAC)
	w.MAC(t.NeighborALMAC)
	for _, e := range t.Entries {
		w.MAC(e.LocalMAC)
		w.MAC(e.NeighborMAC)
		w.U16(uint16(e.MediaType))
		w.U32(e.PacketErrors)
		w.U32(e.PacketsReceived)
		w.U8(e.RSSI)
	}
}

func parseReceiverLinkMetric(body []byte) (TLV, error) {
	if len(body) < 12 || (len(body)-12)%23 != 0 {
		return nil, errs.Malformed("tlv.ReceiverLinkMetric", fmt.Errorf("malformed body length %d", len(body)))
	}
	r := wire.NewReader(body)
	local, _ := r.MAC()
	neigh, _ := r.MAC()
	out := &ReceiverLinkMetric{LocalALMAC: MAC(local), NeighborALMAC: MAC(neigh)}
	for r.Remaining() > 0 {
		localMAC, _ := r.MAC()
		neighMAC, _ := r.MAC()
		mt, _ := r.U16()
		errCount, _ := r.U32()
		recv, _ := r.U32()
		rssi, err := r.U8()
		if err != nil {
			return nil, errs.Malformed("tlv.ReceiverLinkMetric", err)
		}
		out.Entries = append(out.Entries, RxLinkMetricEntry{
			LocalMAC: MAC(localMAC), NeighborMAC: MAC(neighMAC), MediaType: MediaType(mt),
			PacketErrors: errCount, PacketsReceived: recv, RSSI: rssi,
		})
	}
	return out, nil
}

// GenericPhyDeviceInfo carries vendor OUI + variant index + URL strings for
// an interface whose media type is MediaGenericPhy.
type GenericPhyDeviceInfo struct {
	ALMAC      MAC
	Interfaces []GenericPhyInterface
}

type GenericPhyInterface struct {
	MAC         MAC
	OUI         [3]byte
	VariantIdx  uint8
	VariantName string // 32 bytes, NUL padded
	URL         string
	MediaSpecific []byte
}

const genericPhyVariantNameLen = 32

func (t *GenericPhyDeviceInfo) Type() Type { return TypeGenericPhyDeviceInfo }
func (t *GenericPhyDeviceInfo) Len() uint16 {
	n := 6 + 1
	for _, e := range t.Interfaces {
		n += 6 + 3 + 1 + genericPhyVariantNameLen + 1 + len(e.URL) + 1 + 1 + len(e.MediaSpecific)
	}
	return uint16(n)
}
func (t *GenericPhyDeviceInfo) Forge(w *wire.Writer) {
	w.MAC(t.ALMAC)
	w.U8(uint8(len(t.Interfaces)))
	for _, e := range t.Interfaces {
		w.MAC(e.MAC)
		w.Raw(e.OUI[:])
		w.U8(e.VariantIdx)
		writePadded(w, e.VariantName, genericPhyVariantNameLen)
		w.U8(uint8(len(e.URL) + 1))
		w.Raw([]byte(e.URL))
		w.U8(0)
		w.U8(uint8(len(e.MediaSpecific)))
		w.Raw(e.MediaSpecific)
	}
}

func parseGenericPhyDeviceInfo(body []byte) (TLV, error) {
	r := wire.NewReader(body)
	almac, err := r.MAC()
	if err != nil {
		return nil, errs.Malformed("tlv.GenericPhyDeviceInfo", err)
	}
	n, err := r.U8()
	if err != nil {
		return nil, errs.Malformed("tlv.GenericPhyDeviceInfo", err)
	}
	out := &GenericPhyDeviceInfo{ALMAC: MAC(almac)}
	for i := 0; i < int(n); i++ {
		mac, err := r.MAC()
		if err != nil {
			return nil, errs.Malformed("tlv.GenericPhyDeviceInfo", err)
		}
		oui, err := r.Raw(3)
		if err != nil {
			return nil, errs.Malformed("tlv.GenericPhyDeviceInfo", err)
		}
		variant, err := r.U8()
		if err != nil {
			return nil, errs.Malformed("tlv.GenericPhyDeviceInfo", err)
		}
		name, err := readPadded(r, genericPhyVariantNameLen)
		if err != nil {
			return nil, errs.Malformed("tlv.GenericPhyDeviceInfo", err)
		}
		urlLen, err := r.U8()
		if err != nil {
			return nil, errs.Malformed("tlv.GenericPhyDeviceInfo", err)
		}
		urlRaw, err := r.Raw(int(urlLen))
		if err != nil {
			return nil, errs.Malformed("tlv.GenericPhyDeviceInfo", err)
		}
		msLen, err := r.U8()
		if err != nil {
			return nil, errs.Malformed("tlv.GenericPhyDeviceInfo", err)
		}
		ms, err := r.Raw(int(msLen))
		if err != nil {
			return nil, errs.Malformed("tlv.GenericPhyDeviceInfo", err)
		}
		url := ""
		if len(urlRaw) > 0 {
			url = string(urlRaw[:len(urlRaw)-1])
		}
		var entry GenericPhyInterface
		entry.MAC = MAC(mac)
		copy(entry.OUI[:], oui)
		entry.VariantIdx = variant
		entry.VariantName = name
		entry.URL = url
		entry.MediaSpecific = ms
		out.Interfaces = append(out.Interfaces, entry)
	}
	return out, nil
}

// GenericPhyEventNotification is emitted in push-button flows for generic
// PHY media, naming the interfaces a press occurred on.
type GenericPhyEventNotification struct {
	Interfaces []GenericPhyEventEntry
}

type GenericPhyEventEntry struct {
	MAC MAC
	OUI [3]byte
	VariantIdx uint8
}

func (t *GenericPhyEventNotification) Type() Type { return TypeGenericPhyEventNotification }
func (t *GenericPhyEventNotification) Len() uint16 {
	return uint16(1 + 10*len(t.Interfaces))
}
func (t *GenericPhyEventNotification) Forge(w *wire.Writer) {
	w.U8(uint8(len(t.Interfaces)))
	for _, e := range t.Interfaces {
		w.MAC(e.MAC)
		w.Raw(e.OUI[:])
		w.U8(e.VariantIdx)
	}
}

func parseGenericPhyEventNotification(body []byte) (TLV, error) {
	r := wire.NewReader(body)
	n, err := r.U8()
	if err != nil {
		return nil, errs.Malformed("tlv.GenericPhyEventNotification", err)
	}
	out := &GenericPhyEventNotification{}
	for i := 0; i < int(n); i++ {
		mac, err := r.MAC()
		if err != nil {
			return nil, errs.Malformed("tlv.GenericPhyEventNotification", err)
		}
		oui, err := r.Raw(3)
		if err != nil {
			return nil, errs.Malformed("tlv.GenericPhyEventNotification", err)
		}
		variant, err := r.U8()
		if err != nil {
			return nil, errs.Malformed("tlv.GenericPhyEventNotification", err)
		}
		var e GenericPhyEventEntry
		e.MAC = MAC(mac)
		copy(e.OUI[:], oui)
		e.VariantIdx = variant
		out.Interfaces = append(out.Interfaces, e)
	}
	return out, nil
}

// L2NeighborDevice lists, per local interface, the L2 devices discovered by
// inspecting observed frames' source addresses (not full 1905 neighbors).
type L2NeighborDevice struct {
	Interfaces []L2NeighborInterface
}

type L2NeighborInterface struct {
	MAC       MAC
	Neighbors []L2Neighbor
}

type L2Neighbor struct {
	MAC             MAC
	BehindMACs      []MAC
}

func (t *L2NeighborDevice) Type() Type { return TypeL2NeighborDevice }
func (t *L2NeighborDevice) Len() uint16 {
	n := 1
	for _, iface := range t.Interfaces {
		n += 6 + 2
		for _, nb := range iface.Neighbors {
			n += 6 + 2 + 6*len(nb.BehindMACs)
		}
	}
	return uint16(n)
}
func (t *L2NeighborDevice) Forge(w *wire.Writer) {
	w.U8(uint8(len(t.Interfaces)))
	for _, iface := range t.Interfaces {
		w.MAC(iface.MAC)
		w.U16(uint16(len(iface.Neighbors)))
		for _, nb := range iface.Neighbors {
			w.MAC(nb.MAC)
			w.U16(uint16(len(nb.BehindMACs)))
			for _, b := range nb.BehindMACs {
				w.MAC(b)
			}
		}
	}
}

func parseL2NeighborDevice(body []byte) (TLV, error) {
	r := wire.NewReader(body)
	n, err := r.U8()
	if err != nil {
		return nil, errs.Malformed("tlv.L2NeighborDevice", err)
	}
	out := &L2NeighborDevice{}
	for i := 0; i < int(n); i++ {
		mac, err := r.MAC()
		if err != nil {
			return nil, errs.Malformed("tlv.L2NeighborDevice", err)
		}
		m, err := r.U16()
		if err != nil {
			return nil, errs.Malformed("tlv.L2NeighborDevice", err)
		}
		iface := L2NeighborInterface{MAC: MAC(mac)}
		for j := 0; j < int(m); j++ {
			nbMAC, err := r.MAC()
			if err != nil {
				return nil, errs.Malformed("tlv.L2NeighborDevice", err)
			}
			k, err := r.U16()
			if err != nil {
				return nil, errs.Malformed("tlv.L2NeighborDevice", err)
			}
			var nb L2Neighbor
			nb.MAC = MAC(nbMAC)
			for x := 0; x < int(k); x++ {
				behind, err := r.MAC()
				if err != nil {
					return nil, errs.Malformed("tlv.L2NeighborDevice", err)
				}
				nb.BehindMACs = append(nb.BehindMACs, MAC(behind))
			}
			iface.Neighbors = append(iface.Neighbors, nb)
		}
		out.Interfaces = append(out.Interfaces, iface)
	}
	return out, nil
}
