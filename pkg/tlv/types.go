// Package tlv implements the 1905.1/Multi-AP TLV codec: parse, forge, and
// length for every TLV type a CMDU can carry. Each type is a Go struct with
// a Type() tag and Forge/Len methods; Parse dispatches on the wire tag byte.
package tlv

// Type is the one-byte TLV type tag.
type Type uint8

// Core 1905.1 TLV types.
const (
	TypeEndOfMessage               Type = 0x00
	TypeALMACAddress                Type = 0x01
	TypeMACAddress                  Type = 0x02
	TypeDeviceInformation           Type = 0x03
	TypeDeviceBridgingCapability    Type = 0x04
	TypeNon1905NeighborDeviceList   Type = 0x06
	Type1905NeighborDeviceList      Type = 0x07
	TypeLinkMetricQuery             Type = 0x08
	TypeTransmitterLinkMetric       Type = 0x09
	TypeReceiverLinkMetric          Type = 0x0A
	TypeVendorSpecific              Type = 0x0B
	TypeLinkMetricResultCode        Type = 0x0C
	TypeSearchedRole                Type = 0x0D
	TypeAutoconfigFreqBand          Type = 0x0E
	TypeSupportedRole               Type = 0x0F
	TypeSupportedFreqBand           Type = 0x10
	TypeWSC                         Type = 0x11
	TypePushButtonEventNotification Type = 0x12
	TypePushButtonJoinNotification  Type = 0x13
	TypeGenericPhyDeviceInfo        Type = 0x14
	TypeDeviceIdentification        Type = 0x15
	TypeControlURL                  Type = 0x16
	TypeIPv4                        Type = 0x17
	TypeIPv6                        Type = 0x18
	TypeGenericPhyEventNotification Type = 0x19
	Type1905ProfileVersion          Type = 0x1A
	TypePowerOffInterface           Type = 0x1B
	TypeInterfacePowerChangeInfo    Type = 0x1C
	TypeInterfacePowerChangeStatus  Type = 0x1D
	TypeL2NeighborDevice            Type = 0x1E
)

// Multi-AP (Wi-Fi EasyMesh) extension TLV types, allocated in the vendor
// range reserved by the Multi-AP specification above the core 1905 set.
const (
	TypeSupportedService              Type = 0x80
	TypeSearchedService                Type = 0x81
	TypeAPRadioIdentifier              Type = 0x82
	TypeAPOperationalBSS               Type = 0x83
	TypeAPRadioBasicCapabilities        Type = 0x85
	TypeBackhaulSTARadioCapabilities    Type = 0x93
	TypeMultiAPProfile                  Type = 0xBF
)

// typeNames gives the human-readable name used in log/print output.
var typeNames = map[Type]string{
	TypeEndOfMessage:                 "eom",
	TypeALMACAddress:                 "al-mac-address",
	TypeMACAddress:                   "mac-address",
	TypeDeviceInformation:            "device-information",
	TypeDeviceBridgingCapability:     "device-bridging-capability",
	TypeNon1905NeighborDeviceList:    "non-1905-neighbor-device-list",
	Type1905NeighborDeviceList:       "1905-neighbor-device-list",
	TypeLinkMetricQuery:              "link-metric-query",
	TypeTransmitterLinkMetric:        "transmitter-link-metric",
	TypeReceiverLinkMetric:           "receiver-link-metric",
	TypeVendorSpecific:               "vendor-specific",
	TypeLinkMetricResultCode:         "link-metric-result-code",
	TypeSearchedRole:                 "searched-role",
	TypeAutoconfigFreqBand:           "autoconfig-freq-band",
	TypeSupportedRole:                "supported-role",
	TypeSupportedFreqBand:            "supported-freq-band",
	TypeWSC:                          "wsc",
	TypePushButtonEventNotification:  "push-button-event-notification",
	TypePushButtonJoinNotification:   "push-button-join-notification",
	TypeGenericPhyDeviceInfo:         "generic-phy-device-information",
	TypeDeviceIdentification:         "device-identification",
	TypeControlURL:                   "control-url",
	TypeIPv4:                         "ipv4",
	TypeIPv6:                         "ipv6",
	TypeGenericPhyEventNotification:  "generic-phy-event-notification",
	Type1905ProfileVersion:           "1905-profile-version",
	TypePowerOffInterface:            "power-off-interface",
	TypeInterfacePowerChangeInfo:     "interface-power-change-information",
	TypeInterfacePowerChangeStatus:   "interface-power-change-status",
	TypeL2NeighborDevice:             "l2-neighbor-device",
	TypeSupportedService:             "multi-ap-supported-service",
	TypeSearchedService:              "multi-ap-searched-service",
	TypeAPRadioIdentifier:            "multi-ap-ap-radio-identifier",
	TypeAPOperationalBSS:             "multi-ap-ap-operational-bss",
	TypeAPRadioBasicCapabilities:     "multi-ap-ap-radio-basic-capabilities",
	TypeBackhaulSTARadioCapabilities: "multi-ap-backhaul-sta-radio-capabilities",
	TypeMultiAPProfile:               "multi-ap-profile",
}

// String implements fmt.Stringer for debug logging.
func (t Type) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return "unknown"
}

// MediaType is the closed enumeration of interface type tags carried in
// Device Information and 1905 Neighbor Device TLVs.
type MediaType uint16

const (
	MediaEthernetFast      MediaType = 0x0000
	MediaEthernetGigabit   MediaType = 0x0001
	MediaWiFi80211b24      MediaType = 0x0100
	MediaWiFi80211g24      MediaType = 0x0101
	MediaWiFi80211a5       MediaType = 0x0102
	MediaWiFi80211n24      MediaType = 0x0103
	MediaWiFi80211n5       MediaType = 0x0104
	MediaWiFi80211ac5      MediaType = 0x0105
	Media1901Wavelet       MediaType = 0x0200
	Media1901FFT           MediaType = 0x0201
	MediaMoCA11            MediaType = 0x0300
	MediaGenericPhy        MediaType = 0xFFFF
)

// MAC is a 6-byte hardware address, used throughout TLVs in place of
// net.HardwareAddr to keep forge/parse allocation-free and comparable.
type MAC [6]byte
