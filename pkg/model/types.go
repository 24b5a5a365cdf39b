// Package model implements the AL network graph: devices, interfaces,
// radios, neighbor links, BSS info, registrar configuration, and the
// vendor OUI extension table, plus the Prune/Snapshot operations the
// engine and ALME query handlers run against it.
package model

import (
	"fmt"
)

// MAC is a 6-byte hardware address, used throughout the model instead of
// net.HardwareAddr so values are comparable and usable as map keys.
type MAC [6]byte

func (m MAC) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", m[0], m[1], m[2], m[3], m[4], m[5])
}

// ParseMAC parses a colon- or hyphen-separated hex MAC string, the plain
// textual form configuration files and CLI flags carry interface/BSSID
// identifiers in.
func ParseMAC(s string) (MAC, error) {
	var m MAC
	var b [6]int
	n, err := fmt.Sscanf(s, "%02x:%02x:%02x:%02x:%02x:%02x", &b[0], &b[1], &b[2], &b[3], &b[4], &b[5])
	if err != nil || n != 6 {
		n, err = fmt.Sscanf(s, "%02x-%02x-%02x-%02x-%02x-%02x", &b[0], &b[1], &b[2], &b[3], &b[4], &b[5])
	}
	if err != nil || n != 6 {
		return m, fmt.Errorf("model: invalid MAC address %q", s)
	}
	for i, v := range b {
		m[i] = byte(v)
	}
	return m, nil
}

// InterfaceType is the closed set of media types an Interface can report,
// mirroring the tlv.MediaType enumeration one layer down.
type InterfaceType uint16

const (
	IfaceEthernetFast     InterfaceType = iota
	IfaceEthernetGigabit
	IfaceWiFi80211b24
	IfaceWiFi80211g24
	IfaceWiFi80211n24
	IfaceWiFi80211n5
	IfaceWiFi80211ac5
	IfaceWiFi80211ax
	IfaceWavelet1901
	IfaceFFT1901
	IfaceMoCA11
	IfaceGenericPhy
)

// PowerState is an interface's current power mode.
type PowerState uint8

const (
	PowerOn PowerState = iota
	PowerSave
	PowerOff
)

// IPv4AddrType and IPv6AddrType classify how an address was assigned.
type IPv4AddrType uint8

const (
	IPv4Unknown IPv4AddrType = iota
	IPv4DHCP
	IPv4Static
	IPv4AutoIP
)

type IPv6AddrType uint8

const (
	IPv6Unknown IPv6AddrType = iota
	IPv6DHCP
	IPv6Static
	IPv6SLAAC
)

// WiFiRole is a Wi-Fi interface's operating role.
type WiFiRole uint8

const (
	RoleAP WiFiRole = iota
	RoleNonAPSTA
	RoleP2PClient
	RoleP2PGO
	RoleADPCP
)

// MultiAPRole tags a BSS with its role in a Multi-AP network. A BSS can
// carry more than one of these simultaneously (e.g. fronthaul + backhaul
// is invalid, but backhaul-BSS + backhaul-only is not).
type MultiAPRole uint8

const (
	MultiAPFronthaul MultiAPRole = 1 << iota
	MultiAPBackhaulBSS
	MultiAPBackhaulSTA
	MultiAPBackhaulOnly
)

// Band identifies a Wi-Fi radio frequency band.
type Band uint8

const (
	Band24GHz Band = iota
	Band5GHz
	Band60GHz
)

func (b Band) String() string {
	switch b {
	case Band24GHz:
		return "2.4GHz"
	case Band5GHz:
		return "5GHz"
	case Band60GHz:
		return "60GHz"
	default:
		return "unknown"
	}
}
