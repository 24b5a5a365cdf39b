package model

import "time"

// IPv4Address is one tagged IPv4 address carried by an Interface.
type IPv4Address struct {
	Type       IPv4AddrType
	Address    [4]byte
	DHCPServer [4]byte
}

// IPv6Address is one tagged IPv6 address carried by an Interface.
type IPv6Address struct {
	Type    IPv6AddrType
	Address [16]byte
	Origin  [16]byte
}

// BSSInfo is a value-typed SSID/security/role tuple. It is embedded in a
// RegistrarConfig and copied into a WiFiInterface when applied by WSC.
type BSSInfo struct {
	SSID     string
	BSSID    MAC
	AuthMode uint16
	EncMode  uint16
	NetKey   string
	Roles    MultiAPRole
}

// WSCState is a radio's in-flight WSC exchange. It exists only between M1
// being sent/received and M2 being processed/sent; any other code path
// (success, timeout, teardown) clears it.
type WSCState struct {
	M1             []byte
	EnrolleeNonce  []byte
	EnrolleeMAC    MAC
	DHPrivateKey   []byte
	StartedAt      time.Time
}

// Radio is a physical Wi-Fi transceiver, identified by its UID (a MAC-form
// identifier distinct from any single BSS's BSSID).
type Radio struct {
	UID            MAC
	Bands          []Band
	Channels       map[Band][]uint8
	BSSes          []*WiFiInterface // owning
	WSC            *WSCState        // nil unless an exchange is in flight
}

// Interface is a MAC-addressable communication endpoint owned by a Device.
type Interface struct {
	MAC         MAC
	Type        InterfaceType
	Power       PowerState
	Bridged     bool
	Neighbors   map[MAC]*Interface // symmetric: populated on both sides
	IPv4        []IPv4Address
	IPv6        []IPv6Address
	VendorBlobs [][]byte
}

// WiFiInterface specializes Interface with BSS/role/security attributes.
// Radio is a non-owning back-reference; the Radio owns the BSS list.
type WiFiInterface struct {
	Interface
	BSSInfo
	Role    WiFiRole
	Band    Band
	Channel uint8
	Radio   *Radio
}

// Device is a node in the 1905 network, keyed by its AL MAC.
type Device struct {
	ALMAC              MAC
	IsMultiAPController bool
	IsMultiAPAgent      bool
	Interfaces          map[MAC]*Interface
	Radios              map[MAC]*Radio
	LastSeen            time.Time
}

func NewDevice(alMAC MAC) *Device {
	return &Device{
		ALMAC:      alMAC,
		Interfaces: make(map[MAC]*Interface),
		Radios:     make(map[MAC]*Radio),
		LastSeen:   time.Now(),
	}
}

// RegistrarConfig is the process-wide, per-band BSS configuration a local
// registrar hands out in M2. Populated once at startup from configuration
// input and immutable thereafter.
type RegistrarConfig struct {
	ByBand map[Band]BSSInfo
}

// Fingerprint is the (source AL MAC, message id, message type) tuple used
// to suppress duplicate CMDUs and correlate replies. MessageType is kept
// as a bare uint16 here (rather than importing pkg/cmdu) to avoid a
// dependency cycle; callers cast cmdu.MessageType to it.
type Fingerprint struct {
	SourceALMAC MAC
	MessageID   uint16
	MessageType uint16
}
