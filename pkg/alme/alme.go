// Package alme implements the ALME (Abstraction Layer Management Entity)
// debug/management wire protocol: a closed request/response type
// enumeration, a bit-exact byte codec, and the one-request-per-connection
// TCP server described by spec section 6.
//
// This core implements the interface-list, power-state, link-metric, and
// custom network-dump request types; the forwarding-rule family
// (SET/GET/MODIFY/REMOVE-FWD-RULE) has no corresponding concept in the
// data model (no forwarding table is modeled) and has no type tag here:
// Decode rejects such a request as an unknown type, and the server closes
// the connection without sending a reply.
package alme

import "fmt"

// Type is the first byte of every ALME request or response.
type Type uint8

const (
	TypeGetIntfListRequest      Type = 0x01
	TypeGetIntfListResponse     Type = 0x02
	TypeSetIntfPwrStateRequest  Type = 0x03
	TypeSetIntfPwrStateConfirm  Type = 0x04
	TypeGetIntfPwrStateRequest  Type = 0x05
	TypeGetIntfPwrStateResponse Type = 0x06
	TypeGetMetricRequest        Type = 0x0f
	TypeGetMetricResponse       Type = 0x10
	TypeCustomCommandRequest    Type = 0xf0
	TypeCustomCommandResponse   Type = 0xf1
)

func (t Type) String() string {
	switch t {
	case TypeGetIntfListRequest:
		return "GET-INTF-LIST.request"
	case TypeGetIntfListResponse:
		return "GET-INTF-LIST.response"
	case TypeSetIntfPwrStateRequest:
		return "SET-INTF-PWR-STATE.request"
	case TypeSetIntfPwrStateConfirm:
		return "SET-INTF-PWR-STATE.confirm"
	case TypeGetIntfPwrStateRequest:
		return "GET-INTF-PWR-STATE.request"
	case TypeGetIntfPwrStateResponse:
		return "GET-INTF-PWR-STATE.response"
	case TypeGetMetricRequest:
		return "GET-METRIC.request"
	case TypeGetMetricResponse:
		return "GET-METRIC.response"
	case TypeCustomCommandRequest:
		return "CUSTOM-COMMAND.request"
	case TypeCustomCommandResponse:
		return "CUSTOM-COMMAND.response"
	default:
		return fmt.Sprintf("Type(0x%02x)", uint8(t))
	}
}

// ReasonCode is the closed set of outcome codes carried in confirm/response
// messages that report success/failure rather than returning data.
type ReasonCode uint8

const (
	ReasonSuccess       ReasonCode = 0x00
	ReasonUnmatchedMAC  ReasonCode = 0x01
	ReasonNotSupported  ReasonCode = 0x02
)

// PowerState mirrors model.PowerState's wire encoding for ALME purposes,
// kept distinct so this package has no dependency on pkg/model's internal
// iota assignment.
type PowerState uint8

const (
	PowerOn   PowerState = 0x00
	PowerSave PowerState = 0x01
	PowerOff  PowerState = 0x02
)

// CustomCommand enumerates the vendor-private CUSTOM-COMMAND request
// subtypes this core understands.
type CustomCommand uint8

const DumpNetworkDevices CustomCommand = 0x01
