package engine

import (
	"fmt"
	"time"

	"github.com/krisarmstrong/hmeshd/pkg/errs"
	"github.com/krisarmstrong/hmeshd/pkg/model"
)

// LLDP TLV types this core emits and understands, per IEEE 802.1AB. Unlike
// a 1905.1 TLV (1-byte type, 2-byte length) an LLDP TLV packs a 7-bit type
// and 9-bit length into one 16-bit header field.
const (
	lldpTLVEnd       uint8 = 0
	lldpTLVChassisID uint8 = 1
	lldpTLVPortID    uint8 = 2
	lldpTLVTTL       uint8 = 3
)

const lldpChassisIDSubtypeMAC uint8 = 4
const lldpPortIDSubtypeMAC uint8 = 3

// lldpTTL mirrors the teacher's 4x-advertise-interval convention.
const lldpAdvertiseInterval = 30 * time.Second
const lldpTTL uint16 = 120

// handleLLDPFrame extracts the neighbor's chassis MAC (by 1905.1
// convention, its AL MAC) and port MAC from an LLDP frame and records the
// symmetric neighbor link between the receiving local interface and the
// remote one, per spec section 3's neighbor-link invariant.
func (l *Loop) handleLLDPFrame(f RawFrame) error {
	chassisMAC, portMAC, err := parseLLDPNeighbor(f.Payload)
	if err != nil {
		l.Stats.inc(&l.Stats.MalformedDropped)
		return errs.Malformed("engine.handleLLDPFrame", err)
	}

	remoteDev := l.graph.Touch(chassisMAC, time.Now())
	remoteIface := l.ensureInterface(remoteDev, portMAC)

	local := l.graph.Local()
	localIface := l.ensureInterface(local, f.IfaceMAC)

	l.graph.LinkNeighbors(localIface, remoteIface)
	return nil
}

// parseLLDPNeighbor walks an LLDP PDU's mandatory-first-three-TLV prefix
// (Chassis ID, Port ID, TTL) and returns the chassis and port MACs. Only
// the MAC-address subtype is understood; any other subtype is rejected as
// malformed since this core only speaks the 1905.1 AL-MAC-as-chassis-ID
// convention.
func parseLLDPNeighbor(payload []byte) (chassisMAC, portMAC model.MAC, err error) {
	off := 0
	var gotChassis, gotPort bool

	for off+2 <= len(payload) {
		header := uint16(payload[off])<<8 | uint16(payload[off+1])
		tlvType := uint8(header >> 9)
		tlvLen := int(header & 0x01ff)
		off += 2
		if tlvType == lldpTLVEnd {
			break
		}
		if off+tlvLen > len(payload) {
			return chassisMAC, portMAC, fmt.Errorf("lldp: TLV length overrun at offset %d", off)
		}
		value := payload[off : off+tlvLen]
		off += tlvLen

		switch tlvType {
		case lldpTLVChassisID:
			if len(value) != 7 || value[0] != lldpChassisIDSubtypeMAC {
				return chassisMAC, portMAC, fmt.Errorf("lldp: unsupported chassis id subtype")
			}
			copy(chassisMAC[:], value[1:])
			gotChassis = true
		case lldpTLVPortID:
			if len(value) != 7 || value[0] != lldpPortIDSubtypeMAC {
				return chassisMAC, portMAC, fmt.Errorf("lldp: unsupported port id subtype")
			}
			copy(portMAC[:], value[1:])
			gotPort = true
		}
	}

	if !gotChassis || !gotPort {
		return chassisMAC, portMAC, fmt.Errorf("lldp: missing chassis id or port id TLV")
	}
	return chassisMAC, portMAC, nil
}

// forgeLLDPAdvertisement builds a minimal LLDP PDU: chassis ID (our AL
// MAC), port ID (the advertising interface's MAC), TTL, and End-of-LLDPDU.
func forgeLLDPAdvertisement(alMAC, ifaceMAC model.MAC) []byte {
	var buf []byte
	buf = appendLLDPTLV(buf, lldpTLVChassisID, append([]byte{lldpChassisIDSubtypeMAC}, alMAC[:]...))
	buf = appendLLDPTLV(buf, lldpTLVPortID, append([]byte{lldpPortIDSubtypeMAC}, ifaceMAC[:]...))
	buf = appendLLDPTLV(buf, lldpTLVTTL, []byte{byte(lldpTTL >> 8), byte(lldpTTL)})
	buf = appendLLDPTLV(buf, lldpTLVEnd, nil)
	return buf
}

func appendLLDPTLV(buf []byte, tlvType uint8, value []byte) []byte {
	header := uint16(tlvType)<<9 | uint16(len(value))
	buf = append(buf, byte(header>>8), byte(header))
	return append(buf, value...)
}

// advertiseLLDP periodically sends an LLDP frame out every local interface,
// matching the teacher's LLDPHandler advertise ticker.
func (l *Loop) advertiseLLDP() {
	defer l.wg.Done()
	t := time.NewTicker(lldpAdvertiseInterval)
	defer t.Stop()
	l.sendLLDPAdvertisements()
	for {
		select {
		case <-l.stopCh:
			return
		case <-t.C:
			l.sendLLDPAdvertisements()
		}
	}
}

func (l *Loop) sendLLDPAdvertisements() {
	for _, iface := range l.backend.Interfaces() {
		frame := forgeLLDPAdvertisement(l.localALMAC, iface.MAC)
		_ = l.backend.Send(iface.MAC, LLDPNearestBridgeMAC, EtherTypeLLDP, frame)
	}
}
