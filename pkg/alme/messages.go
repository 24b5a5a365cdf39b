package alme

import (
	"fmt"

	"github.com/krisarmstrong/hmeshd/pkg/model"
	"github.com/krisarmstrong/hmeshd/pkg/tlv"
	"github.com/krisarmstrong/hmeshd/pkg/wire"
)

// Message is anything that can be forged onto the wire as a complete ALME
// PDU, its own type tag included.
type Message interface {
	Forge() []byte
}

// Decode reads the one-byte type tag and dispatches to the matching parse
// function, returning the decoded Message and consumed type.
func Decode(data []byte) (Type, Message, error) {
	if len(data) == 0 {
		return 0, nil, fmt.Errorf("alme: empty request")
	}
	t := Type(data[0])
	r := wire.NewReader(data[1:])
	switch t {
	case TypeGetIntfListRequest:
		return t, &GetIntfListRequest{}, nil
	case TypeGetIntfListResponse:
		m, err := parseGetIntfListResponse(r)
		return t, m, err
	case TypeSetIntfPwrStateRequest:
		m, err := parseSetIntfPwrStateRequest(r)
		return t, m, err
	case TypeSetIntfPwrStateConfirm:
		m, err := parseSetIntfPwrStateConfirm(r)
		return t, m, err
	case TypeGetIntfPwrStateRequest:
		m, err := parseGetIntfPwrStateRequest(r)
		return t, m, err
	case TypeGetIntfPwrStateResponse:
		m, err := parseGetIntfPwrStateResponse(r)
		return t, m, err
	case TypeGetMetricRequest:
		m, err := parseGetMetricRequest(r)
		return t, m, err
	case TypeGetMetricResponse:
		m, err := parseGetMetricResponse(r)
		return t, m, err
	case TypeCustomCommandRequest:
		m, err := parseCustomCommandRequest(r)
		return t, m, err
	case TypeCustomCommandResponse:
		m, err := parseCustomCommandResponse(r)
		return t, m, err
	default:
		return t, nil, fmt.Errorf("alme: unknown request type 0x%02x", uint8(t))
	}
}

// GetIntfListRequest carries no body.
type GetIntfListRequest struct{}

func (r *GetIntfListRequest) Forge() []byte { return []byte{byte(TypeGetIntfListRequest)} }

// IntfDescriptor is one entry of a GetIntfListResponse.
type IntfDescriptor struct {
	MAC        model.MAC
	MediaType  tlv.MediaType
	BridgeFlag bool
}

type GetIntfListResponse struct {
	Interfaces []IntfDescriptor
}

func (r *GetIntfListResponse) Forge() []byte {
	w := wire.NewWriter(2 + 9*len(r.Interfaces))
	w.U8(byte(TypeGetIntfListResponse))
	w.U8(uint8(len(r.Interfaces)))
	for _, d := range r.Interfaces {
		w.MAC(d.MAC)
		w.U16(uint16(d.MediaType))
		w.U8(boolByte(d.BridgeFlag))
	}
	return w.Bytes()
}

func parseGetIntfListResponse(r *wire.Reader) (*GetIntfListResponse, error) {
	n, err := r.U8()
	if err != nil {
		return nil, fmt.Errorf("alme: GetIntfListResponse count: %w", err)
	}
	out := &GetIntfListResponse{}
	for i := 0; i < int(n); i++ {
		mac, err := r.MAC()
		if err != nil {
			return nil, fmt.Errorf("alme: GetIntfListResponse entry %d mac: %w", i, err)
		}
		mt, err := r.U16()
		if err != nil {
			return nil, fmt.Errorf("alme: GetIntfListResponse entry %d media type: %w", i, err)
		}
		bridge, err := r.U8()
		if err != nil {
			return nil, fmt.Errorf("alme: GetIntfListResponse entry %d bridge flag: %w", i, err)
		}
		out.Interfaces = append(out.Interfaces, IntfDescriptor{
			MAC: model.MAC(mac), MediaType: tlv.MediaType(mt), BridgeFlag: bridge != 0,
		})
	}
	return out, nil
}

type SetIntfPwrStateRequest struct {
	MAC   model.MAC
	State PowerState
}

func (r *SetIntfPwrStateRequest) Forge() []byte {
	w := wire.NewWriter(8)
	w.U8(byte(TypeSetIntfPwrStateRequest))
	w.MAC(r.MAC)
	w.U8(byte(r.State))
	return w.Bytes()
}

func parseSetIntfPwrStateRequest(r *wire.Reader) (*SetIntfPwrStateRequest, error) {
	mac, err := r.MAC()
	if err != nil {
		return nil, fmt.Errorf("alme: SetIntfPwrStateRequest mac: %w", err)
	}
	state, err := r.U8()
	if err != nil {
		return nil, fmt.Errorf("alme: SetIntfPwrStateRequest state: %w", err)
	}
	return &SetIntfPwrStateRequest{MAC: model.MAC(mac), State: PowerState(state)}, nil
}

type SetIntfPwrStateConfirm struct {
	MAC    model.MAC
	Reason ReasonCode
}

func (r *SetIntfPwrStateConfirm) Forge() []byte {
	w := wire.NewWriter(8)
	w.U8(byte(TypeSetIntfPwrStateConfirm))
	w.MAC(r.MAC)
	w.U8(byte(r.Reason))
	return w.Bytes()
}

func parseSetIntfPwrStateConfirm(r *wire.Reader) (*SetIntfPwrStateConfirm, error) {
	mac, err := r.MAC()
	if err != nil {
		return nil, fmt.Errorf("alme: SetIntfPwrStateConfirm mac: %w", err)
	}
	reason, err := r.U8()
	if err != nil {
		return nil, fmt.Errorf("alme: SetIntfPwrStateConfirm reason: %w", err)
	}
	return &SetIntfPwrStateConfirm{MAC: model.MAC(mac), Reason: ReasonCode(reason)}, nil
}

type GetIntfPwrStateRequest struct {
	MAC model.MAC
}

func (r *GetIntfPwrStateRequest) Forge() []byte {
	w := wire.NewWriter(7)
	w.U8(byte(TypeGetIntfPwrStateRequest))
	w.MAC(r.MAC)
	return w.Bytes()
}

func parseGetIntfPwrStateRequest(r *wire.Reader) (*GetIntfPwrStateRequest, error) {
	mac, err := r.MAC()
	if err != nil {
		return nil, fmt.Errorf("alme: GetIntfPwrStateRequest mac: %w", err)
	}
	return &GetIntfPwrStateRequest{MAC: model.MAC(mac)}, nil
}

type GetIntfPwrStateResponse struct {
	MAC   model.MAC
	State PowerState
}

func (r *GetIntfPwrStateResponse) Forge() []byte {
	w := wire.NewWriter(8)
	w.U8(byte(TypeGetIntfPwrStateResponse))
	w.MAC(r.MAC)
	w.U8(byte(r.State))
	return w.Bytes()
}

func parseGetIntfPwrStateResponse(r *wire.Reader) (*GetIntfPwrStateResponse, error) {
	mac, err := r.MAC()
	if err != nil {
		return nil, fmt.Errorf("alme: GetIntfPwrStateResponse mac: %w", err)
	}
	state, err := r.U8()
	if err != nil {
		return nil, fmt.Errorf("alme: GetIntfPwrStateResponse state: %w", err)
	}
	return &GetIntfPwrStateResponse{MAC: model.MAC(mac), State: PowerState(state)}, nil
}

// GetMetricRequest asks for the link metrics of one neighbor, or (if MAC is
// the zero value) every known neighbor.
type GetMetricRequest struct {
	NeighborALMAC model.MAC
}

func (r *GetMetricRequest) Forge() []byte {
	w := wire.NewWriter(7)
	w.U8(byte(TypeGetMetricRequest))
	w.MAC(r.NeighborALMAC)
	return w.Bytes()
}

func parseGetMetricRequest(r *wire.Reader) (*GetMetricRequest, error) {
	mac, err := r.MAC()
	if err != nil {
		return nil, fmt.Errorf("alme: GetMetricRequest mac: %w", err)
	}
	return &GetMetricRequest{NeighborALMAC: model.MAC(mac)}, nil
}

// MetricDescriptor is one neighbor's combined tx/rx metric record, mirroring
// getMetricResponseALME's _metricDescriptorsEntries.
type MetricDescriptor struct {
	NeighborALMAC  model.MAC
	LocalIfaceMAC  model.MAC
	BridgeFlag     bool
	Tx             *tlv.TxLinkMetricEntry
	Rx             *tlv.RxLinkMetricEntry
}

type GetMetricResponse struct {
	Metrics []MetricDescriptor
	Reason  ReasonCode
}

func (r *GetMetricResponse) Forge() []byte {
	w := wire.NewWriter(32)
	w.U8(byte(TypeGetMetricResponse))
	w.U8(uint8(len(r.Metrics)))
	for _, m := range r.Metrics {
		w.MAC(m.NeighborALMAC)
		w.MAC(m.LocalIfaceMAC)
		w.U8(boolByte(m.BridgeFlag))
		w.U8(boolByte(m.Tx != nil))
		if m.Tx != nil {
			w.U32(m.Tx.PacketErrors)
			w.U32(m.Tx.PacketsSent)
			w.U16(m.Tx.MACThroughput)
			w.U16(m.Tx.LinkAvailability)
			w.U16(m.Tx.PHYRate)
		}
		w.U8(boolByte(m.Rx != nil))
		if m.Rx != nil {
			w.U32(m.Rx.PacketErrors)
			w.U32(m.Rx.PacketsReceived)
			w.U8(m.Rx.RSSI)
		}
	}
	w.U8(byte(r.Reason))
	return w.Bytes()
}

func parseGetMetricResponse(r *wire.Reader) (*GetMetricResponse, error) {
	n, err := r.U8()
	if err != nil {
		return nil, fmt.Errorf("alme: GetMetricResponse count: %w", err)
	}
	out := &GetMetricResponse{}
	for i := 0; i < int(n); i++ {
		var d MetricDescriptor
		neigh, err := r.MAC()
		if err != nil {
			return nil, fmt.Errorf("alme: GetMetricResponse entry %d neighbor: %w", i, err)
		}
		local, err := r.MAC()
		if err != nil {
			return nil, fmt.Errorf("alme: GetMetricResponse entry %d local iface: %w", i, err)
		}
		bridge, err := r.U8()
		if err != nil {
			return nil, fmt.Errorf("alme: GetMetricResponse entry %d bridge flag: %w", i, err)
		}
		d.NeighborALMAC, d.LocalIfaceMAC, d.BridgeFlag = model.MAC(neigh), model.MAC(local), bridge != 0

		hasTx, err := r.U8()
		if err != nil {
			return nil, fmt.Errorf("alme: GetMetricResponse entry %d tx flag: %w", i, err)
		}
		if hasTx != 0 {
			errCount, _ := r.U32()
			sent, _ := r.U32()
			throughput, _ := r.U16()
			avail, _ := r.U16()
			phy, err := r.U16()
			if err != nil {
				return nil, fmt.Errorf("alme: GetMetricResponse entry %d tx fields: %w", i, err)
			}
			d.Tx = &tlv.TxLinkMetricEntry{
				PacketErrors: errCount, PacketsSent: sent,
				MACThroughput: throughput, LinkAvailability: avail, PHYRate: phy,
			}
		}
		hasRx, err := r.U8()
		if err != nil {
			return nil, fmt.Errorf("alme: GetMetricResponse entry %d rx flag: %w", i, err)
		}
		if hasRx != 0 {
			errCount, _ := r.U32()
			recv, _ := r.U32()
			rssi, err := r.U8()
			if err != nil {
				return nil, fmt.Errorf("alme: GetMetricResponse entry %d rx fields: %w", i, err)
			}
			d.Rx = &tlv.RxLinkMetricEntry{PacketErrors: errCount, PacketsReceived: recv, RSSI: rssi}
		}
		out.Metrics = append(out.Metrics, d)
	}
	reason, err := r.U8()
	if err != nil {
		return nil, fmt.Errorf("alme: GetMetricResponse reason: %w", err)
	}
	out.Reason = ReasonCode(reason)
	return out, nil
}

type CustomCommandRequest struct {
	Command CustomCommand
}

func (r *CustomCommandRequest) Forge() []byte {
	return []byte{byte(TypeCustomCommandRequest), byte(r.Command)}
}

func parseCustomCommandRequest(r *wire.Reader) (*CustomCommandRequest, error) {
	cmd, err := r.U8()
	if err != nil {
		return nil, fmt.Errorf("alme: CustomCommandRequest command: %w", err)
	}
	return &CustomCommandRequest{Command: CustomCommand(cmd)}, nil
}

type CustomCommandResponse struct {
	Payload []byte
}

func (r *CustomCommandResponse) Forge() []byte {
	w := wire.NewWriter(3 + len(r.Payload))
	w.U8(byte(TypeCustomCommandResponse))
	w.U16(uint16(len(r.Payload)))
	w.Raw(r.Payload)
	return w.Bytes()
}

func parseCustomCommandResponse(r *wire.Reader) (*CustomCommandResponse, error) {
	n, err := r.U16()
	if err != nil {
		return nil, fmt.Errorf("alme: CustomCommandResponse length: %w", err)
	}
	payload, err := r.Raw(int(n))
	if err != nil {
		return nil, fmt.Errorf("alme: CustomCommandResponse payload: %w", err)
	}
	return &CustomCommandResponse{Payload: payload}, nil
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
