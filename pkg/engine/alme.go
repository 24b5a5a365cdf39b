package engine

import (
	"time"

	"github.com/krisarmstrong/hmeshd/pkg/alme"
	"github.com/krisarmstrong/hmeshd/pkg/logging"
	"github.com/krisarmstrong/hmeshd/pkg/model"
	"github.com/krisarmstrong/hmeshd/pkg/tlv"
)

// AlmeRequest is one debug/management request handed off by the ALME TCP
// server. Reply is a one-shot channel the loop posts its answer to,
// implementing spec section 5's per-request reply rendezvous with a Go
// channel standing in for the condition-variable/reply-slot pair.
type AlmeRequest struct {
	Payload []byte
	Reply   chan []byte
}

// SubmitALME is called from the ALME server's connection-handling
// goroutine. It posts the request into the loop's single-consumer event
// channel and blocks (up to timeout) for the loop's reply.
func (l *Loop) SubmitALME(payload []byte, timeout time.Duration) []byte {
	reply := make(chan []byte, 1)
	select {
	case l.events <- AlmeRequest{Payload: payload, Reply: reply}:
	case <-time.After(timeout):
		return nil
	}
	select {
	case r := <-reply:
		return r
	case <-time.After(timeout):
		return nil
	}
}

func (l *Loop) handleAlmeRequest(req AlmeRequest) {
	reply := l.buildAlmeReply(req.Payload)
	select {
	case req.Reply <- reply:
	default:
	}
}

func (l *Loop) buildAlmeReply(payload []byte) []byte {
	t, msg, err := alme.Decode(payload)
	if err != nil {
		logging.Warning("alme: malformed request: %v", err)
		return nil
	}

	switch t {
	case alme.TypeGetIntfListRequest:
		resp := &alme.GetIntfListResponse{}
		for _, iface := range l.graph.Local().Interfaces {
			resp.Interfaces = append(resp.Interfaces, alme.IntfDescriptor{
				MAC: iface.MAC, MediaType: tlv.MediaEthernetGigabit, BridgeFlag: iface.Bridged,
			})
		}
		return resp.Forge()

	case alme.TypeSetIntfPwrStateRequest:
		r := msg.(*alme.SetIntfPwrStateRequest)
		iface := l.graph.Local().Interfaces[r.MAC]
		if iface == nil {
			return (&alme.SetIntfPwrStateConfirm{MAC: r.MAC, Reason: alme.ReasonUnmatchedMAC}).Forge()
		}
		iface.Power = model.PowerState(r.State)
		return (&alme.SetIntfPwrStateConfirm{MAC: r.MAC, Reason: alme.ReasonSuccess}).Forge()

	case alme.TypeGetIntfPwrStateRequest:
		r := msg.(*alme.GetIntfPwrStateRequest)
		iface := l.graph.Local().Interfaces[r.MAC]
		if iface == nil {
			return (&alme.GetIntfPwrStateResponse{MAC: r.MAC, State: alme.PowerOff}).Forge()
		}
		return (&alme.GetIntfPwrStateResponse{MAC: r.MAC, State: alme.PowerState(iface.Power)}).Forge()

	case alme.TypeGetMetricRequest:
		r := msg.(*alme.GetMetricRequest)
		return l.buildGetMetricResponse(r.NeighborALMAC).Forge()

	case alme.TypeCustomCommandRequest:
		r := msg.(*alme.CustomCommandRequest)
		return l.buildCustomCommandResponse(r.Command).Forge()

	default:
		logging.Debug("alme: no handler for request type %s", t)
		return nil
	}
}

// buildGetMetricResponse answers with placeholder (zeroed) tx/rx entries
// per known neighbor, same limitation as handleLinkMetricQuery: no
// platform/pcapnet link-stats source is wired in yet.
func (l *Loop) buildGetMetricResponse(neighborALMAC model.MAC) *alme.GetMetricResponse {
	var zero model.MAC
	resp := &alme.GetMetricResponse{Reason: alme.ReasonSuccess}
	for _, dev := range l.graph.All() {
		if dev.ALMAC == l.localALMAC {
			continue
		}
		if neighborALMAC != zero && dev.ALMAC != neighborALMAC {
			continue
		}
		resp.Metrics = append(resp.Metrics, alme.MetricDescriptor{
			NeighborALMAC: dev.ALMAC,
			Tx:            &tlv.TxLinkMetricEntry{},
			Rx:            &tlv.RxLinkMetricEntry{},
		})
	}
	if neighborALMAC != zero && len(resp.Metrics) == 0 {
		resp.Reason = alme.ReasonUnmatchedMAC
	}
	return resp
}

func (l *Loop) buildCustomCommandResponse(cmd alme.CustomCommand) *alme.CustomCommandResponse {
	if cmd != alme.DumpNetworkDevices {
		return &alme.CustomCommandResponse{Payload: []byte("unsupported custom command")}
	}
	var out []byte
	for _, dev := range l.graph.All() {
		line := dev.ALMAC.String()
		if dev.IsMultiAPController {
			line += " controller"
		}
		if dev.IsMultiAPAgent {
			line += " agent"
		}
		out = append(out, []byte(line+"\n")...)
	}
	return &alme.CustomCommandResponse{Payload: out}
}
